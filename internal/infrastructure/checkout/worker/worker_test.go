package worker

import (
	"context"
	"strings"
	"sync"
	"testing"

	domain "github.com/Zhima-Mochi/minishop-checkout/internal/domain/checkout"
	domoutbox "github.com/Zhima-Mochi/minishop-checkout/internal/domain/outbox"
	infraobs "github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/observability"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/observability/prometrics"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/observability/zaplogger"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type captureSubscriber struct {
	mu       sync.Mutex
	handlers map[string]domoutbox.Handler
}

func (s *captureSubscriber) Subscribe(name string, h domoutbox.Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handlers == nil {
		s.handlers = make(map[string]domoutbox.Handler)
	}
	s.handlers[name] = h
}

func (s *captureSubscriber) deliver(t *testing.T, e domoutbox.Event) {
	t.Helper()
	h, ok := s.handlers[e.EventName()]
	require.True(t, ok, "no handler for %s", e.EventName())
	require.NoError(t, h(context.Background(), e))
}

func newWorker(t *testing.T) (*captureSubscriber, *prometheus.Registry, *observer.ObservedLogs) {
	t.Helper()
	reg := prometheus.NewRegistry()
	counters, histograms := prometrics.Standard(prometrics.New(reg, "", ""))
	core, logs := observer.New(zap.InfoLevel)
	tel := infraobs.New(observability.NopTracer(), zaplogger.New(zap.New(core)), counters, histograms)

	sub := &captureSubscriber{}
	New(sub, tel).Start()
	return sub, reg, logs
}

func TestWorkerSubscribesToOutcomes(t *testing.T) {
	sub, _, _ := newWorker(t)

	assert.Contains(t, sub.handlers, "checkout.succeeded")
	assert.Contains(t, sub.handlers, "checkout.failed")
	assert.Contains(t, sub.handlers, "checkout.simulated_order_recorded")
}

func TestWorkerCountsOutcomes(t *testing.T) {
	sub, reg, logs := newWorker(t)
	amount := domain.Money{MinorUnits: 1999, Currency: "inr"}

	sub.deliver(t, domain.SucceededEvent{SessionID: "s1", Method: domain.KindCard, Amount: amount, Reference: "pi_1"})
	sub.deliver(t, domain.SucceededEvent{SessionID: "s2", Method: domain.KindUPI, Amount: amount, Reference: "local-1", Simulated: true})
	sub.deliver(t, domain.FailedEvent{SessionID: "s3", Method: domain.KindCard, Amount: amount, Kind: domain.KindGatewayDeclined, Reason: "Your card was declined."})

	expected := `
# HELP checkout_outcomes_total Terminal checkout outcomes by payment method.
# TYPE checkout_outcomes_total counter
checkout_outcomes_total{method="card",outcome="failed",simulated="false"} 1
checkout_outcomes_total{method="card",outcome="succeeded",simulated="false"} 1
checkout_outcomes_total{method="upi",outcome="succeeded",simulated="true"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "checkout_outcomes_total"))

	recorded := logs.FilterMessage("checkout_outcome_recorded").All()
	require.Len(t, recorded, 3)
	failed := recorded[2].ContextMap()
	assert.Equal(t, "gateway_declined", failed["error_kind"])
	assert.Equal(t, "checkout.failed", failed["event"])
	assert.Equal(t, "checkout.outcome", failed["use_case"])
	assert.NotEmpty(t, failed["event_id"])
}

func TestWorkerIgnoresForeignEvents(t *testing.T) {
	sub, reg, _ := newWorker(t)

	h := sub.handlers["checkout.succeeded"]
	require.NoError(t, h(context.Background(), domain.FailedEvent{}))

	n, err := testutil.GatherAndCount(reg, "checkout_outcomes_total")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestWorkerFlagsSimulatedOrders(t *testing.T) {
	sub, reg, logs := newWorker(t)

	sub.deliver(t, domain.NewSimulatedOrderRecordedEvent(domain.SimulatedOrder{
		ID:        "local-7",
		SessionID: "s7",
		Method:    domain.KindCashOnDelivery,
		Amount:    domain.Money{MinorUnits: 500, Currency: "inr"},
		Cause:     "order backend unavailable",
	}))

	expected := `
# HELP checkout_simulated_orders_total Orders recorded locally while the order backend was unreachable.
# TYPE checkout_simulated_orders_total counter
checkout_simulated_orders_total{method="cod"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "checkout_simulated_orders_total"))

	flagged := logs.FilterMessage("simulated_order_pending_reconciliation").All()
	require.Len(t, flagged, 1)
	assert.Equal(t, zap.WarnLevel, flagged[0].Level)
	assert.Equal(t, "local-7", flagged[0].ContextMap()["order_id"])
}
