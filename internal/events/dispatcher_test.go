package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPublishRunsEveryHandler(t *testing.T) {
	d := NewInMemoryDispatcher()
	var calls []string

	d.Subscribe(EventTicketCompleted, func(_ context.Context, e Event) error {
		calls = append(calls, "first:"+e.TicketID)
		return errors.New("mail relay down")
	})
	d.Subscribe(EventTicketCompleted, func(_ context.Context, e Event) error {
		calls = append(calls, "second:"+e.TicketID)
		return nil
	})
	d.Subscribe(EventTicketCanceled, func(context.Context, Event) error {
		calls = append(calls, "canceled")
		return nil
	})

	err := d.Publish(context.Background(), Event{Type: EventTicketCompleted, TicketID: "t-1"})
	assert.ErrorContains(t, err, "mail relay down")
	assert.Equal(t, []string{"first:t-1", "second:t-1"}, calls)
}

func TestPublishWithoutSubscribers(t *testing.T) {
	d := NewInMemoryDispatcher()
	assert.NoError(t, d.Publish(context.Background(), Event{Type: EventTicketReopened}))
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	d := NewInMemoryDispatcher()
	var first, second int
	stop := d.Subscribe(EventTicketDispatched, func(context.Context, Event) error { first++; return nil })
	d.Subscribe(EventTicketDispatched, func(context.Context, Event) error { second++; return nil })

	assert.NoError(t, d.Publish(context.Background(), Event{Type: EventTicketDispatched}))
	stop()
	stop()
	assert.NoError(t, d.Publish(context.Background(), Event{Type: EventTicketDispatched}))

	assert.Equal(t, 1, first)
	assert.Equal(t, 2, second)
}

func TestPublishRecoversHandlerPanic(t *testing.T) {
	d := NewInMemoryDispatcher()
	delivered := false
	d.Subscribe(EventTicketCanceled, func(context.Context, Event) error { panic("boom") })
	d.Subscribe(EventTicketCanceled, func(context.Context, Event) error { delivered = true; return nil })

	err := d.Publish(context.Background(), Event{Type: EventTicketCanceled, TicketNumber: "AB12"})
	assert.ErrorContains(t, err, "ticket_canceled AB12: handler panic: boom")
	assert.True(t, delivered)
}
