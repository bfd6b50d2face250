package worker

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/crm-helpdesk/internal/events"
)

var (
	// ErrQueueFull is returned when the event buffer is saturated.
	ErrQueueFull = errors.New("notification queue full")
	// ErrWorkerStopped is returned after Stop.
	ErrWorkerStopped = errors.New("notification worker stopped")
)

type queuedEvent struct {
	ctx   context.Context
	event events.Event
}

// NotificationWorker is an events.Dispatcher that hands events to the wrapped
// dispatcher on a background goroutine, so slow SMTP never holds a request.
type NotificationWorker struct {
	inner  events.Dispatcher
	queue  chan queuedEvent
	logger *zap.Logger

	mu      sync.RWMutex
	stopped bool
	wg      sync.WaitGroup
	once    sync.Once
}

// NewNotificationWorker wraps inner with a buffered queue.
func NewNotificationWorker(inner events.Dispatcher, buffer int, logger *zap.Logger) *NotificationWorker {
	if buffer <= 0 {
		buffer = 64
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationWorker{
		inner:  inner,
		queue:  make(chan queuedEvent, buffer),
		logger: logger.Named("notification_worker"),
	}
}

// Subscribe registers handlers on the wrapped dispatcher.
func (w *NotificationWorker) Subscribe(eventType events.EventType, handler events.EventHandler) {
	w.inner.Subscribe(eventType, handler)
}

// Publish enqueues event without waiting for handlers.
func (w *NotificationWorker) Publish(ctx context.Context, event events.Event) error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.stopped {
		return ErrWorkerStopped
	}
	select {
	case w.queue <- queuedEvent{ctx: context.WithoutCancel(ctx), event: event}:
		return nil
	default:
		w.logger.Warn("dropping event", zap.String("event_type", string(event.Type)), zap.Int64("ticket_id", event.TicketID))
		return ErrQueueFull
	}
}

// Start launches the delivery goroutine.
func (w *NotificationWorker) Start() {
	w.once.Do(func() {
		w.wg.Add(1)
		go w.run()
	})
}

// Stop refuses new events and waits for queued ones to drain or ctx to end.
func (w *NotificationWorker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.stopped {
		w.stopped = true
		close(w.queue)
	}
	w.mu.Unlock()

	w.Start()
	finished := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *NotificationWorker) run() {
	defer w.wg.Done()
	for item := range w.queue {
		if err := w.inner.Publish(item.ctx, item.event); err != nil {
			w.logger.Warn("event delivery failed",
				zap.String("event_type", string(item.event.Type)),
				zap.Int64("ticket_id", item.event.TicketID),
				zap.Error(err))
		}
	}
}
