package events

import (
	"github.com/kelindar/event"
)

// Bus wraps kelindar/event dispatcher for event broadcasting
type Bus struct {
	dispatcher *event.Dispatcher
}

// New creates a new event bus
func New() *Bus {
	return &Bus{
		dispatcher: event.NewDispatcher(),
	}
}

// Publish publishes an event to all subscribers.
// A nil Bus drops the event, so callers can leave it unset.
// Usage: bus.Publish(ExecStartedEvent{...})
func (b *Bus) Publish(ev Event) {
	if b == nil {
		return
	}
	switch e := ev.(type) {
	case ExecStartedEvent:
		event.Publish(b.dispatcher, e)
	case ExecStateChangedEvent:
		event.Publish(b.dispatcher, e)
	case ExecKilledEvent:
		event.Publish(b.dispatcher, e)
	case ExecFinishedEvent:
		event.Publish(b.dispatcher, e)
	case LogEntryEvent:
		event.Publish(b.dispatcher, e)
	}
}

// Subscribe subscribes to events with a handler function
// The handler type determines which events it receives
// Returns an unsubscribe function
// Usage: unsub := bus.Subscribe(func(e ExecFinishedEvent) { ... })
func (b *Bus) Subscribe(handler any) func() {
	switch h := handler.(type) {
	case func(ExecStartedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(ExecStateChangedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(ExecKilledEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(ExecFinishedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(LogEntryEvent):
		return event.Subscribe(b.dispatcher, h)
	default:
		// Return a no-op function if handler type is not recognized
		return func() {}
	}
}
