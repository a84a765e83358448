package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	appcheckout "github.com/Zhima-Mochi/minishop-checkout/internal/application/checkout"
	domain "github.com/Zhima-Mochi/minishop-checkout/internal/domain/checkout"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/id"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOrchestrator(t *testing.T, id string) *appcheckout.Orchestrator {
	t.Helper()
	amount, err := domain.NewMoney(1999, "inr")
	require.NoError(t, err)
	s, err := domain.NewSession(id, amount, nil)
	require.NoError(t, err)
	return appcheckout.NewOrchestrator(s, appcheckout.Dependencies{})
}

func TestSessionStore(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore()
	o := newOrchestrator(t, "s-1")

	require.NoError(t, store.Insert(ctx, o))
	assert.Error(t, store.Insert(ctx, o))
	assert.Equal(t, 1, store.Len())

	got, err := store.Get(ctx, "s-1")
	require.NoError(t, err)
	assert.Same(t, o, got)

	require.NoError(t, store.Delete(ctx, "s-1"))
	_, err = store.Get(ctx, "s-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, store.Delete(ctx, "s-1"), domain.ErrNotFound)
}

func terminalOrchestrator(t *testing.T, id string) *appcheckout.Orchestrator {
	t.Helper()
	amount, err := domain.NewMoney(1999, "inr")
	require.NoError(t, err)
	s, err := domain.NewSession(id, amount, nil)
	require.NoError(t, err)
	require.NoError(t, s.SelectMethod(domain.KindCashOnDelivery))
	_, err = s.BeginSubmit()
	require.NoError(t, err)
	require.NoError(t, s.Dispatch("Placing COD order..."))
	require.NoError(t, s.Complete(domain.Success("Order placed.", "ord_1", false)))
	require.Equal(t, domain.PhaseSucceeded, s.Phase())
	return appcheckout.NewOrchestrator(s, appcheckout.Dependencies{})
}

func TestSessionStoreEvictsIdleSessions(t *testing.T) {
	ctx := context.Background()
	var evicted []string
	store := NewSessionStore(WithIdleTTL(time.Minute), OnEvict(func(id string) { evicted = append(evicted, id) }))

	done := terminalOrchestrator(t, "s-done")
	idle := newOrchestrator(t, "s-idle")
	require.NoError(t, store.Insert(ctx, done))
	require.NoError(t, store.Insert(ctx, idle))

	_, err := store.Get(ctx, "s-done")
	require.NoError(t, err)

	later := time.Now().Add(2 * time.Minute)
	store.now = func() time.Time { return later }

	_, err = store.Get(ctx, "s-done")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Zero(t, store.Len())
	assert.ElementsMatch(t, []string{"s-done", "s-idle"}, evicted)
	assert.ErrorIs(t, idle.SelectMethod(domain.KindUPI), appcheckout.ErrSessionClosed)
}

func TestSessionStoreKeepsRunningSubmissions(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore(WithIdleTTL(time.Minute))

	amount, err := domain.NewMoney(1999, "inr")
	require.NoError(t, err)
	s, err := domain.NewSession("s-busy", amount, nil)
	require.NoError(t, err)
	_, err = s.BeginSubmit()
	require.NoError(t, err)
	busy := appcheckout.NewOrchestrator(s, appcheckout.Dependencies{})
	require.NoError(t, store.Insert(ctx, busy))

	later := time.Now().Add(time.Hour)
	store.now = func() time.Time { return later }

	got, err := store.Get(ctx, "s-busy")
	require.NoError(t, err)
	assert.Same(t, busy, got)
	assert.Equal(t, 1, store.Len())
}

type downBackend struct{}

func (downBackend) CreatePaymentIntent(context.Context, appcheckout.IntentRequest) (string, error) {
	return "", appcheckout.ErrBackendUnavailable
}

func (downBackend) CreateOrder(context.Context, appcheckout.OrderRequest) (string, error) {
	return "", errors.New("connection refused")
}

func TestCompletedCheckoutsAreReleased(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore(WithIdleTTL(time.Minute))
	svc := appcheckout.NewService(store, appcheckout.Dependencies{
		Backend: downBackend{},
		Ledger:  NewOrderLedger(),
		IDs:     id.NewUUIDGenerator(),
	})

	for i := 0; i < 100; i++ {
		s, err := svc.Start(ctx, appcheckout.StartInput{})
		require.NoError(t, err)
		_, err = svc.SelectMethod(ctx, s.ID, domain.KindCashOnDelivery)
		require.NoError(t, err)
		done, err := svc.Submit(ctx, s.ID)
		require.NoError(t, err)
		require.Equal(t, domain.PhaseSucceeded, done.Phase())
	}
	assert.Equal(t, 100, store.Len())

	later := time.Now().Add(2 * time.Minute)
	store.now = func() time.Time { return later }
	_, err := svc.Get(ctx, "unknown")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.Zero(t, store.Len())
}

func TestOrderLedger(t *testing.T) {
	ctx := context.Background()
	ledger := NewOrderLedger()
	product := &domain.ProductRef{ID: "p-1", Name: "Gond art"}

	require.NoError(t, ledger.Record(ctx, domain.SimulatedOrder{ID: "local-1", Method: domain.KindUPI, Product: product}))
	require.NoError(t, ledger.Record(ctx, domain.SimulatedOrder{ID: "local-2", Method: domain.KindCashOnDelivery}))
	assert.Error(t, ledger.Record(ctx, domain.SimulatedOrder{ID: "local-1"}))
	assert.Error(t, ledger.Record(ctx, domain.SimulatedOrder{}))

	product.Name = "mutated"
	orders, err := ledger.List(ctx)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, "local-1", orders[0].ID)
	assert.Equal(t, "Gond art", orders[0].Product.Name)
	assert.Equal(t, domain.KindCashOnDelivery, orders[1].Method)
}
