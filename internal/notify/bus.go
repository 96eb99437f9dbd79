// Package notify turns domain events into notifications. Listeners are
// registered explicitly when the bus is built; there is no global registry.
package notify

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

type Handler func(ctx context.Context, e Event) error

type Bus struct {
	handlers map[Kind][]Handler
	log      *zap.Logger
}

func NewBus(log *zap.Logger) *Bus {
	return &Bus{handlers: map[Kind][]Handler{}, log: log}
}

func (b *Bus) Subscribe(kind Kind, h Handler) {
	b.handlers[kind] = append(b.handlers[kind], h)
}

// Publish delivers each event to its listeners in registration order. A
// failing listener is logged and does not affect the publisher.
func (b *Bus) Publish(ctx context.Context, events ...Event) {
	for _, e := range events {
		for _, h := range b.handlers[e.Kind()] {
			if err := b.dispatch(ctx, h, e); err != nil {
				b.log.Error("notification listener failed", zap.String("event", string(e.Kind())), zap.Error(err))
			}
		}
	}
}

func (b *Bus) dispatch(ctx context.Context, h Handler, e Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("listener panic: %v", r)
		}
	}()
	return h(ctx, e)
}
