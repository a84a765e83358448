package checkout

import (
	"context"
	"errors"
	"sync"
	"time"

	domain "github.com/Zhima-Mochi/minishop-checkout/internal/domain/checkout"
	domoutbox "github.com/Zhima-Mochi/minishop-checkout/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	checkoutService   = "checkout-service"
	useCaseSubmit     = "checkout.submit"
	spanPrefix        = "UC."
	extSpanPrefix     = "EXT."
	peerOrderBackend  = "order_backend"
	peerGateway       = "payment_gateway"
	endpointIntent    = "create-payment-intent"
	endpointOrder     = "create-order"
	endpointConfirm   = "confirm-card-payment"
	publishTimeout    = 300 * time.Millisecond
	networkErrMessage = "Could not reach the payment service. Please try again."
)

// Dependencies are the collaborators shared by every orchestrator of a service.
type Dependencies struct {
	Backend   OrderBackend
	Gateway   PaymentGateway
	Ledger    domain.LocalOrderLedger
	IDs       IDGenerator
	Publisher domoutbox.Publisher
	Tel       observability.Observability
}

// Orchestrator drives one checkout session through its payment protocol.
// At most one submission runs at a time; observers read consistent snapshots.
type Orchestrator struct {
	mu        sync.Mutex
	session   *domain.Session
	cancel    context.CancelFunc
	abandoned bool

	deps Dependencies
	log  observability.Logger

	// RED metrics (supplied via DI; do not instantiate inside methods).
	reqCounter   observability.Counter   // usecase_requests_total{use_case,outcome}
	durHistogram observability.Histogram // usecase_duration_seconds{use_case}
	extCounter   observability.Counter   // external_requests_total{peer,endpoint,outcome}
	extHistogram observability.Histogram // external_request_duration_seconds{peer,endpoint}
}

// NewOrchestrator takes ownership of session.
func NewOrchestrator(session *domain.Session, deps Dependencies) *Orchestrator {
	if deps.Tel == nil {
		deps.Tel = observability.Nop()
	}
	if deps.Publisher == nil {
		deps.Publisher = domoutbox.Discard
	}
	metrics := deps.Tel.Metrics()
	return &Orchestrator{
		session:      session,
		deps:         deps,
		log:          deps.Tel.Logger().With(observability.F("service", checkoutService)),
		reqCounter:   metrics.Counter(observability.MUsecaseRequests),
		durHistogram: metrics.Histogram(observability.MUsecaseDuration),
		extCounter:   metrics.Counter(observability.MExternalRequests),
		extHistogram: metrics.Histogram(observability.MExternalRequestDuration),
	}
}

func (o *Orchestrator) ID() string { return o.session.ID }

// Snapshot returns a copy of the session as it is right now.
func (o *Orchestrator) Snapshot() *domain.Session {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.session.Clone()
}

// LastActivity reports when the session last changed and whether a submission is running.
func (o *Orchestrator) LastActivity() (at time.Time, inFlight bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.session.UpdatedAt, o.cancel != nil || o.session.Phase().InFlight()
}

func (o *Orchestrator) SelectMethod(kind domain.MethodKind) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.abandoned {
		return ErrSessionClosed
	}
	return o.session.SelectMethod(kind)
}

func (o *Orchestrator) SetMethodInput(in domain.MethodInput) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.abandoned {
		return ErrSessionClosed
	}
	return o.session.SetMethodInput(in)
}

// Reset returns a finished session to Idle.
func (o *Orchestrator) Reset() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.abandoned {
		return ErrSessionClosed
	}
	return o.session.Reset()
}

// Abandon closes the session. An in-flight submission is cancelled and its result,
// if it still arrives, is discarded. The backend may still act on a request already sent.
func (o *Orchestrator) Abandon() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.abandoned {
		return
	}
	o.abandoned = true
	if o.cancel != nil {
		o.cancel()
	}
	o.log.Info("checkout_abandoned",
		observability.F("session_id", o.session.ID),
		observability.F("phase", string(o.session.Phase())),
	)
}

// Submit runs the selected method's protocol to a terminal phase.
//
// It returns an error only when nothing was started: a submission already in flight
// (ErrSubmitInFlight, the call is a no-op), a terminal session that was not reset,
// a closed session, or a validation failure (the session is back in Idle with the failure
// recorded). Succeeded and Failed outcomes are reported through the returned session.
// Cancelling ctx abandons the session.
func (o *Orchestrator) Submit(ctx context.Context) (_ *domain.Session, err error) {
	ctx = logctx.Enrich(ctx, o.log,
		observability.F("use_case", useCaseSubmit),
		observability.F("session_id", o.session.ID),
	)
	logger := logctx.From(ctx)

	ctx, span := o.deps.Tel.Tracer().Start(ctx, spanPrefix+"SubmitCheckout",
		attribute.String("use_case", useCaseSubmit),
		attribute.String("checkout.session_id", o.session.ID),
	)
	start := time.Now()
	outcome, statusText := "success", "OK"
	var method domain.Method
	var snapshot *domain.Session

	defer func() {
		lat := time.Since(start).Seconds()

		if span != nil {
			if snapshot != nil {
				span.SetAttributes(attribute.String("checkout.phase", string(snapshot.Phase())))
			}
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, statusText)
			} else {
				span.SetStatus(codes.Ok, statusText)
			}
			span.End()
		}

		o.reqCounter.Add(1,
			observability.L("use_case", useCaseSubmit),
			observability.L("outcome", outcome),
		)
		o.durHistogram.Observe(lat,
			observability.L("use_case", useCaseSubmit),
		)

		fields := []observability.Field{
			observability.F("outcome", outcome),
			observability.F("status", statusText),
			observability.F("latency_seconds", lat),
		}
		if method != nil {
			fields = append(fields, observability.F("method", string(method.Kind())))
		}
		if snapshot != nil {
			fields = append(fields,
				observability.F("phase", string(snapshot.Phase())),
				observability.F("amount", snapshot.Amount.MinorUnits),
				observability.F("currency", string(snapshot.Amount.Currency)),
			)
			if snapshot.Simulated {
				fields = append(fields, observability.F("simulated", true))
			}
		}
		if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
			fields = append(fields,
				observability.F("trace_id", sc.TraceID().String()),
				observability.F("span_id", sc.SpanID().String()),
			)
		}
		if err != nil {
			fields = append(fields, observability.Err(err))
		}
		logger.Info("use_case_done", fields...)
	}()

	o.mu.Lock()
	if o.abandoned {
		o.mu.Unlock()
		outcome, statusText = "error", "SESSION_CLOSED"
		return nil, ErrSessionClosed
	}
	method, err = o.session.BeginSubmit()
	if err != nil {
		snapshot = o.session.Clone()
		o.mu.Unlock()
		if errors.Is(err, domain.ErrSubmitInFlight) {
			outcome, statusText = "ignored", "SUBMIT_IN_FLIGHT"
		} else {
			outcome, statusText = "error", "INVALID_STATE"
		}
		return snapshot, err
	}
	span.SetAttributes(attribute.String("checkout.method", string(method.Kind())))

	if verr := method.Validate(); verr != nil {
		f := asFailure(verr, domain.KindValidation)
		_ = o.session.RejectInput(f)
		snapshot = o.session.Clone()
		o.mu.Unlock()
		outcome, statusText = "rejected", "VALIDATION_FAILED"
		return snapshot, f
	}

	runCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel
	_ = o.session.Dispatch(initialStatus(method.Kind()))
	o.mu.Unlock()

	result := method.Dispatch(runCtx, &submission{o: o, logger: logger})

	o.mu.Lock()
	cancel()
	o.cancel = nil
	if ctx.Err() != nil && !o.abandoned {
		o.abandoned = true
	}
	if o.abandoned {
		snapshot = o.session.Clone()
		o.mu.Unlock()
		logger.Warn("checkout_result_discarded",
			observability.F("method", string(method.Kind())),
			observability.F("succeeded", result.Succeeded),
		)
		outcome, statusText = "abandoned", "SESSION_CLOSED"
		return snapshot, ErrSessionClosed
	}
	_ = o.session.Complete(result)
	snapshot = o.session.Clone()
	o.mu.Unlock()

	if !result.Succeeded {
		outcome, statusText = "failed", string(result.Failure.Kind)
	} else if result.Simulated {
		statusText = "SIMULATED"
	}
	o.publish(ctx, logger, snapshot)

	return snapshot, nil
}

// progress updates the status text shown while a submission is in flight.
func (o *Orchestrator) progress(text string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.abandoned {
		o.session.Progress(text)
	}
}

func (o *Orchestrator) publish(ctx context.Context, logger observability.Logger, s *domain.Session) {
	if s.Phase() == domain.PhaseSucceeded {
		o.publishEvent(ctx, logger, domain.NewSucceededEvent(s))
		return
	}
	o.publishEvent(ctx, logger, domain.NewFailedEvent(s))
}

// publishEvent hands evt to the bus without letting a slow bus hold up the buyer.
func (o *Orchestrator) publishEvent(ctx context.Context, logger observability.Logger, evt domoutbox.Event) {
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := o.deps.Publisher.Publish(pubCtx, evt); err != nil {
		logger.Warn("checkout_event_publish_failed",
			observability.F("event", evt.EventName()),
			observability.Err(err),
		)
	}
}

// callExternal wraps one call to a collaborator with a span, RED metrics and a failure log.
func (o *Orchestrator) callExternal(ctx context.Context, logger observability.Logger, peer, endpoint string, call func(ctx context.Context) error) error {
	ctx, span := o.deps.Tel.Tracer().Start(ctx, extSpanPrefix+endpoint,
		attribute.String("peer.service", peer),
		attribute.String("checkout.session_id", o.session.ID),
	)
	start := time.Now()

	err := call(ctx)

	extOutcome := "success"
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled):
		extOutcome = "canceled"
	default:
		extOutcome = "error"
	}
	o.extCounter.Add(1,
		observability.L("peer", peer),
		observability.L("endpoint", endpoint),
		observability.L("outcome", extOutcome),
	)
	o.extHistogram.Observe(time.Since(start).Seconds(),
		observability.L("peer", peer),
		observability.L("endpoint", endpoint),
	)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, extOutcome)
		logger.Warn("external_call_failed",
			observability.F("peer", peer),
			observability.F("endpoint", endpoint),
			observability.Err(err),
		)
	} else {
		span.SetStatus(codes.Ok, "OK")
	}
	span.End()
	return err
}

func initialStatus(kind domain.MethodKind) string {
	switch kind {
	case domain.KindUPI:
		return "Creating UPI order..."
	case domain.KindCashOnDelivery:
		return "Placing COD order..."
	default:
		return "Creating payment intent..."
	}
}

func asFailure(err error, kind domain.ErrorKind) *domain.Failure {
	var f *domain.Failure
	if errors.As(err, &f) {
		return f
	}
	return domain.NewFailure(kind, err.Error(), err)
}
