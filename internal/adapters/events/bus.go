// Package events fans committed workflow events out to in-process handlers and NATS.
package events

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hylla/sgc/internal/domain"
)

// Handler receives published events.
type Handler interface {
	Publish(context.Context, domain.Event) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(context.Context, domain.Event) error

// Publish calls f.
func (f HandlerFunc) Publish(ctx context.Context, event domain.Event) error {
	return f(ctx, event)
}

type subscription struct {
	name    string
	handler Handler
}

// Bus delivers each event to every subscriber in subscription order.
type Bus struct {
	mu   sync.RWMutex
	subs []subscription
}

// NewBus constructs an empty bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers handler under name.
func (b *Bus) Subscribe(name string, handler Handler) {
	if handler == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, subscription{name: name, handler: handler})
}

// Publish delivers event to every subscriber. One failing subscriber does not stop the
// others; their errors are joined.
func (b *Bus) Publish(ctx context.Context, event domain.Event) error {
	b.mu.RLock()
	subs := append([]subscription(nil), b.subs...)
	b.mu.RUnlock()

	var errs []error
	for _, sub := range subs {
		if err := sub.handler.Publish(ctx, event); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", sub.name, err))
		}
	}
	return errors.Join(errs...)
}
