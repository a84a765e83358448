// Package observability holds the vendor-neutral telemetry ports used by the checkout
// use cases. Adapters live under internal/infrastructure/observability.
package observability

// Observability is what a use case receives: one tracer, one logger, one metric set.
type Observability interface {
	Tracer() Tracer
	Logger() Logger
	Metrics() Metrics
}
