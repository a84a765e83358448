package memory

import (
	"context"
	"fmt"
	"sync"

	domain "github.com/Zhima-Mochi/minishop-checkout/internal/domain/checkout"
)

// OrderLedger records orders placed locally while the order backend was unreachable.
type OrderLedger struct {
	mu     sync.RWMutex
	orders []domain.SimulatedOrder
	byID   map[string]int
}

func NewOrderLedger() *OrderLedger {
	return &OrderLedger{
		byID: make(map[string]int),
	}
}

func (l *OrderLedger) Record(ctx context.Context, o domain.SimulatedOrder) error {
	_ = ctx
	if o.ID == "" {
		return fmt.Errorf("order ledger: id is required")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.byID[o.ID]; exists {
		return fmt.Errorf("order ledger: %s already recorded", o.ID)
	}
	l.byID[o.ID] = len(l.orders)
	l.orders = append(l.orders, cloneOrder(o))
	return nil
}

// List returns recorded orders in the order they were placed.
func (l *OrderLedger) List(ctx context.Context) ([]domain.SimulatedOrder, error) {
	_ = ctx

	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]domain.SimulatedOrder, 0, len(l.orders))
	for _, o := range l.orders {
		out = append(out, cloneOrder(o))
	}
	return out, nil
}

func cloneOrder(o domain.SimulatedOrder) domain.SimulatedOrder {
	if o.Product != nil {
		p := *o.Product
		o.Product = &p
	}
	return o
}
