package tui

import "github.com/mmcdole/shelf/internal/events"

// ChannelObserver adapts bus delivery to a channel for Bubble Tea. Bus handlers
// run on the publisher's goroutine, so delivery never blocks.
type ChannelObserver struct {
	ch chan<- events.Event
}

// NewChannelObserver creates a new channel-based observer.
func NewChannelObserver(ch chan<- events.Event) *ChannelObserver {
	return &ChannelObserver{ch: ch}
}

// OnEvent sends the event to the channel (non-blocking if full).
func (o *ChannelObserver) OnEvent(e events.Event) {
	select {
	case o.ch <- e:
	default: // Non-blocking if channel full
	}
}

// viewEvents are the events the terminal view redraws on
var viewEvents = events.Filter{Types: []events.EventType{
	events.EventListsHydrated,
	events.EventCardsChanged,
	events.EventItemAddError,
	events.EventItemMoveError,
	events.EventItemRemoveError,
	events.EventItemUpdateError,
}}

// Subscriber is the bus surface the view needs
type Subscriber interface {
	Subscribe(filter events.Filter, handler events.Handler) *events.Subscription
	Unsubscribe(id string)
}

// Observe subscribes a channel observer to bus and returns the receiving end
// together with a function that detaches it.
func Observe(bus Subscriber, buffer int) (<-chan events.Event, func()) {
	ch := make(chan events.Event, buffer)
	obs := NewChannelObserver(ch)
	sub := bus.Subscribe(viewEvents, obs.OnEvent)
	return ch, func() { bus.Unsubscribe(sub.ID) }
}
