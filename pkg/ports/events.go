package ports

import (
	"context"

	"github.com/aretw0/redline/pkg/domain"
)

// EventSink receives events emitted by the engine.
// Emit must not block the engine for long; slow consumers should buffer or drop.
type EventSink interface {
	Emit(ctx context.Context, event domain.Event)
}

// EventSinkFunc adapts a function to the EventSink interface.
type EventSinkFunc func(ctx context.Context, event domain.Event)

// Emit calls f(ctx, event).
func (f EventSinkFunc) Emit(ctx context.Context, event domain.Event) {
	f(ctx, event)
}

// FanOut returns a sink that forwards every event to all sinks.
func FanOut(sinks ...EventSink) EventSink {
	return EventSinkFunc(func(ctx context.Context, event domain.Event) {
		for _, s := range sinks {
			if s != nil {
				s.Emit(ctx, event)
			}
		}
	})
}
