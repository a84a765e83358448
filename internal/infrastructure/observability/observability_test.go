package observability

import (
	"testing"

	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
	"github.com/stretchr/testify/assert"
)

type countingCounter struct{ total float64 }

func (c *countingCounter) Add(d float64, _ ...observability.Label) { c.total += d }
func (c *countingCounter) Bind(...observability.Label) observability.BoundCounter {
	return observability.NopCounter().Bind()
}

func TestProviderFallsBackToNop(t *testing.T) {
	p := New(nil, nil, nil, nil)

	assert.NotNil(t, p.Tracer())
	assert.NotNil(t, p.Logger())
	assert.NotPanics(t, func() {
		p.Metrics().Counter(observability.MUsecaseRequests).Add(1)
		p.Metrics().Histogram(observability.MUsecaseDuration).Observe(0.1)
	})
}

func TestProviderResolvesRegisteredCounter(t *testing.T) {
	c := &countingCounter{}
	p := New(nil, nil, map[observability.MetricKey]observability.Counter{
		observability.MCheckoutOutcomes: c,
		observability.MUsecaseRequests:  nil,
	}, nil)

	p.Metrics().Counter(observability.MCheckoutOutcomes).Add(2)
	p.Metrics().Counter(observability.MUsecaseRequests).Add(5)

	assert.Equal(t, float64(2), c.total)
}
