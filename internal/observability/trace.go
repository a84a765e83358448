package observability

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Tracer starts spans. Span names follow "UC.<UseCase>" for use cases, "EXT.<endpoint>"
// for calls to collaborators and "EVT.<event>" for event handlers.
type Tracer interface {
	Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span)
}
