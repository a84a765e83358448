package worker

import (
	"context"
	"strconv"

	domain "github.com/Zhima-Mochi/minishop-checkout/internal/domain/checkout"
	domoutbox "github.com/Zhima-Mochi/minishop-checkout/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability/logctx"
	workerpresentation "github.com/Zhima-Mochi/minishop-checkout/internal/presentation/worker"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	componentWorker = "checkout_outcome_worker"
	useCaseOutcome  = "checkout.outcome"
	spanPrefix      = "EVT."
)

// Worker records terminal checkout outcomes published on the event bus.
type Worker struct {
	subscriber domoutbox.Subscriber
	tel        observability.Observability
	log        observability.Logger
	outcomes   observability.Counter // checkout_outcomes_total{method,outcome,simulated}
	simulated  observability.Counter // checkout_simulated_orders_total{method}
}

func New(subscriber domoutbox.Subscriber, tel observability.Observability) *Worker {
	if tel == nil {
		tel = observability.Nop()
	}
	return &Worker{
		subscriber: subscriber,
		tel:        tel,
		log:        tel.Logger().With(observability.F("component", componentWorker)),
		outcomes:   tel.Metrics().Counter(observability.MCheckoutOutcomes),
		simulated:  tel.Metrics().Counter(observability.MSimulatedOrders),
	}
}

func (w *Worker) Start() {
	w.subscriber.Subscribe(domain.SucceededEvent{}.EventName(), w.handleSucceeded)
	w.subscriber.Subscribe(domain.FailedEvent{}.EventName(), w.handleFailed)
	w.subscriber.Subscribe(domain.SimulatedOrderRecordedEvent{}.EventName(), w.handleSimulatedOrder)
}

func (w *Worker) handleSucceeded(ctx context.Context, e domoutbox.Event) error {
	evt, ok := e.(domain.SucceededEvent)
	if !ok {
		return nil
	}
	ctx, span := w.begin(ctx, evt.EventName(), evt.SessionID, evt.Method)
	defer span.End()

	w.outcomes.Add(1,
		observability.L("method", string(evt.Method)),
		observability.L("outcome", "succeeded"),
		observability.L("simulated", strconv.FormatBool(evt.Simulated)),
	)
	logctx.FromOr(ctx, w.log).Info("checkout_outcome_recorded",
		observability.F("session_id", evt.SessionID),
		observability.F("outcome", "succeeded"),
		observability.F("reference", evt.Reference),
		observability.F("simulated", evt.Simulated),
		observability.F("amount", evt.Amount.MinorUnits),
		observability.F("currency", string(evt.Amount.Currency)),
	)
	span.SetStatus(codes.Ok, "OK")
	return nil
}

func (w *Worker) handleFailed(ctx context.Context, e domoutbox.Event) error {
	evt, ok := e.(domain.FailedEvent)
	if !ok {
		return nil
	}
	ctx, span := w.begin(ctx, evt.EventName(), evt.SessionID, evt.Method)
	defer span.End()

	w.outcomes.Add(1,
		observability.L("method", string(evt.Method)),
		observability.L("outcome", "failed"),
		observability.L("simulated", "false"),
	)
	logctx.FromOr(ctx, w.log).Info("checkout_outcome_recorded",
		observability.F("session_id", evt.SessionID),
		observability.F("outcome", "failed"),
		observability.F("error_kind", string(evt.Kind)),
		observability.F("reason", evt.Reason),
		observability.F("amount", evt.Amount.MinorUnits),
		observability.F("currency", string(evt.Amount.Currency)),
	)
	span.SetStatus(codes.Ok, "OK")
	return nil
}

// handleSimulatedOrder flags a locally recorded order for reconciliation.
func (w *Worker) handleSimulatedOrder(ctx context.Context, e domoutbox.Event) error {
	evt, ok := e.(domain.SimulatedOrderRecordedEvent)
	if !ok {
		return nil
	}
	ctx, span := w.begin(ctx, evt.EventName(), evt.SessionID, evt.Method)
	defer span.End()
	span.SetAttributes(attribute.String("checkout.order_id", evt.OrderID))

	w.simulated.Add(1, observability.L("method", string(evt.Method)))
	logctx.FromOr(ctx, w.log).Warn("simulated_order_pending_reconciliation",
		observability.F("session_id", evt.SessionID),
		observability.F("order_id", evt.OrderID),
		observability.F("cause", evt.Cause),
		observability.F("amount", evt.Amount.MinorUnits),
		observability.F("currency", string(evt.Amount.Currency)),
	)
	span.SetStatus(codes.Ok, "OK")
	return nil
}

// begin opens the handler span and puts an event-scoped logger on ctx.
func (w *Worker) begin(ctx context.Context, event, sessionID string, method domain.MethodKind) (context.Context, trace.Span) {
	ctx, span := w.tel.Tracer().Start(ctx, spanPrefix+event,
		attribute.String("use_case", useCaseOutcome),
		attribute.String("checkout.session_id", sessionID),
		attribute.String("checkout.method", string(method)),
	)
	ctx = workerpresentation.WithEventContext(ctx, w.log, span.SpanContext(), map[string]string{
		"use_case": useCaseOutcome,
		"event":    event,
		"method":   string(method),
	})
	return ctx, span
}
