package workerpresentation

import (
	"context"
	"sort"

	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability/logctx"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

const eventIDKey = "event_id"

// WithEventContext puts an event-scoped logger on ctx for a background handler.
// The logger carries event_id (generated when attrs has none), the span identifiers when
// sc is valid, and the remaining attrs. Keep attrs low-cardinality: event name, use case, method.
func WithEventContext(ctx context.Context, base observability.Logger, sc trace.SpanContext, attrs map[string]string) context.Context {
	if base == nil {
		base = logctx.FromOr(ctx, observability.NopLogger())
	}

	evtID := attrs[eventIDKey]
	if evtID == "" {
		evtID = uuid.NewString()
	}
	fields := make([]observability.Field, 0, len(attrs)+3)
	fields = append(fields, observability.F(eventIDKey, evtID))

	if sc.HasTraceID() {
		fields = append(fields, observability.F("trace_id", sc.TraceID().String()))
	}
	if sc.HasSpanID() {
		fields = append(fields, observability.F("span_id", sc.SpanID().String()))
	}

	keys := make([]string, 0, len(attrs))
	for k, v := range attrs {
		if k == eventIDKey || v == "" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fields = append(fields, observability.F(k, attrs[k]))
	}

	return logctx.With(ctx, base.With(fields...))
}
