package checkout

import "time"

// SucceededEvent is emitted when a session reaches Succeeded.
type SucceededEvent struct {
	SessionID  string
	Method     MethodKind
	Amount     Money
	Reference  string
	Simulated  bool
	OccurredAt time.Time
}

func (SucceededEvent) EventName() string { return "checkout.succeeded" }

func NewSucceededEvent(s *Session) SucceededEvent {
	return SucceededEvent{
		SessionID:  s.ID,
		Method:     s.Method.Kind(),
		Amount:     s.Amount,
		Reference:  s.Reference,
		Simulated:  s.Simulated,
		OccurredAt: time.Now().UTC(),
	}
}

// FailedEvent is emitted when a session reaches Failed.
type FailedEvent struct {
	SessionID  string
	Method     MethodKind
	Amount     Money
	Kind       ErrorKind
	Reason     string
	OccurredAt time.Time
}

func (FailedEvent) EventName() string { return "checkout.failed" }

func NewFailedEvent(s *Session) FailedEvent {
	evt := FailedEvent{
		SessionID:  s.ID,
		Method:     s.Method.Kind(),
		Amount:     s.Amount,
		OccurredAt: time.Now().UTC(),
	}
	if s.LastError != nil {
		evt.Kind = s.LastError.Kind
		evt.Reason = s.LastError.Message
	}
	return evt
}

// SimulatedOrderRecordedEvent is emitted when an order is recorded locally because the
// order backend could not be reached. Such orders need reconciliation.
type SimulatedOrderRecordedEvent struct {
	OrderID    string
	SessionID  string
	Method     MethodKind
	Amount     Money
	Cause      string
	OccurredAt time.Time
}

func (SimulatedOrderRecordedEvent) EventName() string { return "checkout.simulated_order_recorded" }

func NewSimulatedOrderRecordedEvent(o SimulatedOrder) SimulatedOrderRecordedEvent {
	return SimulatedOrderRecordedEvent{
		OrderID:    o.ID,
		SessionID:  o.SessionID,
		Method:     o.Method,
		Amount:     o.Amount,
		Cause:      o.Cause,
		OccurredAt: time.Now().UTC(),
	}
}
