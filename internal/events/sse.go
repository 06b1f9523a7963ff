package events

import "github.com/kelindar/event"

// SubscribeToChannel forwards every T published on bus into ch, for SSE
// handlers that select over a channel. Events are dropped while ch is full.
func SubscribeToChannel[T Event](bus *Bus, ch chan<- any) func() {
	return SubscribeFiltered[T](bus, ch, nil)
}

// SubscribeFiltered is SubscribeToChannel restricted to events accepted by
// match. A nil match accepts everything.
func SubscribeFiltered[T Event](bus *Bus, ch chan<- any, match func(T) bool) func() {
	return event.Subscribe(bus.dispatcher, func(e T) {
		if match != nil && !match(e) {
			return
		}
		select {
		case ch <- e:
		default:
		}
	})
}
