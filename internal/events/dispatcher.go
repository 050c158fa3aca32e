package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// EventHandler reacts to one ticket event.
type EventHandler func(context.Context, Event) error

// Dispatcher fans ticket events out to subscribers after a mutation commits.
type Dispatcher interface {
	Publish(ctx context.Context, event Event) error
	Subscribe(eventType EventType, handler EventHandler)
}

// HandlerError reports a failed or panicking subscriber.
type HandlerError struct {
	EventType EventType
	// Index is the subscription order of the failing handler.
	Index int
	Err   error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("%s handler %d: %v", e.EventType, e.Index, e.Err)
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}

// ticketDispatcher delivers events synchronously in subscription order.
type ticketDispatcher struct {
	mu       sync.RWMutex
	handlers map[EventType][]EventHandler
}

func NewInMemoryDispatcher() Dispatcher {
	return &ticketDispatcher{handlers: make(map[EventType][]EventHandler)}
}

// Publish runs every handler subscribed to event.Type, even after one fails
// or panics, and joins their failures as *HandlerError values. Handlers not
// yet started when ctx is cancelled are skipped.
func (d *ticketDispatcher) Publish(ctx context.Context, event Event) error {
	d.mu.RLock()
	handlers := append([]EventHandler(nil), d.handlers[event.Type]...)
	d.mu.RUnlock()

	var errs []error
	for i, handler := range handlers {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := invoke(ctx, handler, event); err != nil {
			errs = append(errs, &HandlerError{EventType: event.Type, Index: i, Err: err})
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

func (d *ticketDispatcher) Subscribe(eventType EventType, handler EventHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[eventType] = append(d.handlers[eventType], handler)
}

// SubscribeAll registers handler for every ticket event type.
func SubscribeAll(d Dispatcher, handler EventHandler) {
	for _, eventType := range AllEventTypes {
		d.Subscribe(eventType, handler)
	}
}
