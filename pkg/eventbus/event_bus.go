// Package eventbus carries lifecycle events between the executor, the
// automation loops and anything observing them.
package eventbus

import (
	"context"

	"github.com/opsweep/opsweep/pkg/events"
)

// Event is anything that can travel over the bus; the concrete types live
// in pkg/events.
type Event interface {
	GetType() events.EventType
}

// EventPublisher is the write side of the bus. The key groups related
// events, e.g. all events of one workflow execution.
type EventPublisher interface {
	Publish(ctx context.Context, key string, event Event) error
}

// EventHandler processes one delivered event. A non-nil error nacks the
// message.
type EventHandler func(ctx context.Context, event interface{}) error

// EventSubscriber is the read side: register handlers per event type, then
// Subscribe to start delivery.
type EventSubscriber interface {
	Handle(eventType events.EventType, handler EventHandler) error
	Subscribe(ctx context.Context) error
}

type EventBus interface {
	EventPublisher
	EventSubscriber
	Close() error
	GenerateID() string
}
