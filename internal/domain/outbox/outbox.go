// Package outbox defines how domain events leave a use case. Delivery is at-most-once
// and asynchronous; publishers must not depend on handlers having run.
package outbox

import "context"

type Event interface {
	EventName() string
}

// Handler processes one event. A returned error is logged, never retried.
type Handler func(ctx context.Context, e Event) error

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

type Subscriber interface {
	Subscribe(eventName string, h Handler)
}

// Discard is a Publisher that drops every event.
var Discard Publisher = discard{}

type discard struct{}

func (discard) Publish(context.Context, Event) error { return nil }
