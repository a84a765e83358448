package outbox

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	domoutbox "github.com/Zhima-Mochi/minishop-checkout/internal/domain/outbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEvent struct{ name string }

func (e testEvent) EventName() string { return e.name }

func TestBusDeliversToSubscribers(t *testing.T) {
	bus := NewBus(nil)

	var mu sync.Mutex
	var got []string
	record := func(tag string) domoutbox.Handler {
		return func(_ context.Context, e domoutbox.Event) error {
			mu.Lock()
			defer mu.Unlock()
			got = append(got, tag+":"+e.EventName())
			return nil
		}
	}
	bus.Subscribe("checkout.succeeded", record("a"))
	bus.Subscribe("checkout.succeeded", record("b"))
	bus.Subscribe("checkout.failed", func(context.Context, domoutbox.Event) error {
		panic("boom")
	})

	bus.Start(context.Background())
	require.NoError(t, bus.Publish(context.Background(), testEvent{name: "checkout.succeeded"}))
	require.NoError(t, bus.Publish(context.Background(), testEvent{name: "checkout.failed"}))
	require.NoError(t, bus.Publish(context.Background(), testEvent{name: "unrouted"}))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	bus.Stop(ctx)

	mu.Lock()
	defer mu.Unlock()
	assert.ElementsMatch(t, []string{"a:checkout.succeeded", "b:checkout.succeeded"}, got)
}

func TestPublishAfterStop(t *testing.T) {
	bus := NewBus(nil)
	bus.Start(context.Background())
	bus.Stop(context.Background())

	err := bus.Publish(context.Background(), testEvent{name: "checkout.succeeded"})
	assert.True(t, errors.Is(err, ErrBusStopped))
}
