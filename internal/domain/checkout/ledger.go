package checkout

import "context"

// SimulatedOrder is a locally recorded order placed while the order backend was unreachable.
type SimulatedOrder struct {
	ID         string
	SessionID  string
	Method     MethodKind
	Amount     Money
	UPIPayerID string
	Product    *ProductRef
	Cause      string
}

// LocalOrderLedger keeps simulated orders for later reconciliation.
type LocalOrderLedger interface {
	Record(ctx context.Context, o SimulatedOrder) error
	List(ctx context.Context) ([]SimulatedOrder, error)
}
