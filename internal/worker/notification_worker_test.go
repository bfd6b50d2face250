package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/crm-helpdesk/internal/events"
)

func TestNotificationWorkerDeliversAsync(t *testing.T) {
	inner := events.NewInMemoryDispatcher()
	w := NewNotificationWorker(inner, 4, nil)

	var mu sync.Mutex
	var got []int64
	w.Subscribe(events.EventTicketCreated, func(ctx context.Context, e events.Event) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, e.TicketID)
		return nil
	})
	w.Start()

	for i := int64(1); i <= 3; i++ {
		require.NoError(t, w.Publish(context.Background(), events.NewEvent(events.EventTicketCreated, i, events.Actor{}, nil)))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, w.Stop(ctx))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int64{1, 2, 3}, got)

	err := w.Publish(context.Background(), events.NewEvent(events.EventTicketCreated, 4, events.Actor{}, nil))
	assert.ErrorIs(t, err, ErrWorkerStopped)
}

func TestNotificationWorkerQueueFull(t *testing.T) {
	w := NewNotificationWorker(events.NewInMemoryDispatcher(), 1, nil)

	require.NoError(t, w.Publish(context.Background(), events.NewEvent(events.EventTicketUpdated, 1, events.Actor{}, nil)))
	err := w.Publish(context.Background(), events.NewEvent(events.EventTicketUpdated, 2, events.Actor{}, nil))
	assert.ErrorIs(t, err, ErrQueueFull)

	require.NoError(t, w.Stop(context.Background()))
}
