package observability

type MetricKey string

const (
	MUsecaseRequests         MetricKey = "usecase_requests_total"
	MUsecaseDuration         MetricKey = "usecase_duration_seconds"
	MHTTPRequests            MetricKey = "http_requests_total"
	MHTTPRequestDuration     MetricKey = "http_request_duration_seconds"
	MExternalRequests        MetricKey = "external_requests_total"
	MExternalRequestDuration MetricKey = "external_request_duration_seconds"
	MCheckoutOutcomes        MetricKey = "checkout_outcomes_total"
	MSimulatedOrders         MetricKey = "checkout_simulated_orders_total"
)

// Metrics resolves instruments by key. Unknown keys resolve to no-ops.
type Metrics interface {
	Counter(name MetricKey) Counter
	Histogram(name MetricKey) Histogram
}

type Counter interface {
	Add(delta float64, labels ...Label)
	// Bind fixes the labels of a hot series.
	Bind(labels ...Label) BoundCounter
}

type BoundCounter interface {
	Add(delta float64)
}

type Histogram interface {
	Observe(value float64, labels ...Label)
	Bind(labels ...Label) BoundHistogram
}

type BoundHistogram interface {
	Observe(value float64)
}

// Label values must stay low-cardinality: never session ids or amounts.
type Label struct{ Key, Value string }

func L(k, v string) Label { return Label{Key: k, Value: v} }

// MetricSpec describes one instrument the service exports.
type MetricSpec struct {
	Key    MetricKey
	Help   string
	Labels []string
}

// CounterSpecs and HistogramSpecs are the instruments every adapter must provide.
var (
	CounterSpecs = []MetricSpec{
		{MUsecaseRequests, "Total number of use case invocations.", []string{"use_case", "outcome"}},
		{MExternalRequests, "Total number of calls to external collaborators.", []string{"peer", "endpoint", "outcome"}},
		{MHTTPRequests, "Total number of HTTP requests served.", []string{"method", "route", "status"}},
		{MCheckoutOutcomes, "Terminal checkout outcomes by payment method.", []string{"method", "outcome", "simulated"}},
		{MSimulatedOrders, "Orders recorded locally while the order backend was unreachable.", []string{"method"}},
	}
	HistogramSpecs = []MetricSpec{
		{MUsecaseDuration, "Duration of use case execution in seconds.", []string{"use_case"}},
		{MExternalRequestDuration, "Duration of external collaborator calls in seconds.", []string{"peer", "endpoint"}},
		{MHTTPRequestDuration, "Duration of HTTP requests in seconds.", []string{"method", "route", "status"}},
	}
)
