package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// EventHandler reacts to one published event.
type EventHandler func(context.Context, Event) error

// Dispatcher fans ticket events out to subscribers.
type Dispatcher interface {
	Publish(ctx context.Context, event Event) error
	Subscribe(eventType EventType, handler EventHandler)
}

type inMemoryDispatcher struct {
	mu       sync.RWMutex
	handlers map[EventType][]EventHandler
}

// NewInMemoryDispatcher returns a synchronous in-process dispatcher.
func NewInMemoryDispatcher() Dispatcher {
	return &inMemoryDispatcher{handlers: map[EventType][]EventHandler{}}
}

// Publish calls every subscriber of event.Type in registration order. A
// failing or panicking handler does not stop the rest; failures are joined.
func (d *inMemoryDispatcher) Publish(ctx context.Context, event Event) error {
	d.mu.RLock()
	subscribers := d.handlers[event.Type]
	d.mu.RUnlock()

	var errs []error
	for i, handler := range subscribers {
		if err := invoke(ctx, handler, event); err != nil {
			errs = append(errs, fmt.Errorf("%s handler %d: %w", event.Type, i, err))
		}
	}
	return errors.Join(errs...)
}

func invoke(ctx context.Context, handler EventHandler, event Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return handler(ctx, event)
}

func (d *inMemoryDispatcher) Subscribe(eventType EventType, handler EventHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	// Copy on write so Publish can iterate a snapshot without holding the lock.
	current := d.handlers[eventType]
	next := make([]EventHandler, len(current), len(current)+1)
	copy(next, current)
	d.handlers[eventType] = append(next, handler)
}
