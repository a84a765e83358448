package oteltrace

import (
	"context"

	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const defaultName = "minishop-checkout"

type tracer struct {
	t      trace.Tracer
	common []attribute.KeyValue
}

// New returns a Tracer from the global provider. common is stamped on every span,
// e.g. the deployment environment.
func New(name string, common ...attribute.KeyValue) observability.Tracer {
	return FromProvider(otel.GetTracerProvider(), name, common...)
}

func FromProvider(tp trace.TracerProvider, name string, common ...attribute.KeyValue) observability.Tracer {
	if name == "" {
		name = defaultName
	}
	return &tracer{t: tp.Tracer(name), common: common}
}

func (t *tracer) Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	all := make([]attribute.KeyValue, 0, len(t.common)+len(attrs))
	all = append(all, t.common...)
	all = append(all, attrs...)
	return t.t.Start(ctx, name, trace.WithAttributes(all...))
}

// NewProvider builds an SDK provider that samples every trace and exports nowhere.
// Spans still carry real ids, so logs can be correlated by trace_id; plug an exporter
// in with extra options.
func NewProvider(opts ...sdktrace.TracerProviderOption) *sdktrace.TracerProvider {
	return sdktrace.NewTracerProvider(append([]sdktrace.TracerProviderOption{
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	}, opts...)...)
}
