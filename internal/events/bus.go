package events

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mmcdole/shelf/internal/log"
)

// Bus is a process-wide publish/subscribe channel. Publish runs matching handlers
// on the caller's goroutine, in subscription order; a panicking handler is logged
// and does not stop delivery to the others.
type Bus struct {
	logger *slog.Logger
	now    func() time.Time

	mu     sync.RWMutex
	subs   map[string]*Subscription
	order  []string
	closed bool
}

func NewBus(logger *slog.Logger) *Bus {
	return &Bus{
		logger: log.Component(logger, "events"),
		now:    time.Now,
		subs:   make(map[string]*Subscription),
	}
}

// Subscribe registers handler for events passing filter
func (b *Bus) Subscribe(filter Filter, handler Handler) *Subscription {
	sub := &Subscription{
		ID:      uuid.NewString(),
		Filter:  filter,
		Handler: handler,
		Created: b.now(),
	}

	b.mu.Lock()
	b.subs[sub.ID] = sub
	b.order = append(b.order, sub.ID)
	b.mu.Unlock()

	b.logger.Debug("subscription added", "subscription_id", sub.ID, "types", filter.Types)
	return sub
}

// Unsubscribe removes a subscription; unknown ids are ignored
func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subs[id]; !ok {
		return
	}
	delete(b.subs, id)
	for i, sid := range b.order {
		if sid == id {
			b.order = append(b.order[:i:i], b.order[i+1:]...)
			break
		}
	}
}

// Publish stamps and delivers e. It returns the stamped event.
func (b *Bus) Publish(e Event) Event {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.At.IsZero() {
		e.At = b.now()
	}

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return e
	}
	targets := make([]*Subscription, 0, len(b.order))
	for _, id := range b.order {
		if sub := b.subs[id]; sub.Filter.Matches(e) {
			targets = append(targets, sub)
		}
	}
	b.mu.RUnlock()

	for _, sub := range targets {
		b.notify(sub, e)
	}
	return e
}

func (b *Bus) notify(sub *Subscription, e Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("panic in event handler", "subscription_id", sub.ID, "event_type", e.Type, "event_id", e.ID, "error", r)
		}
	}()
	sub.Handler(e)
}

// Close drops every subscription; later publishes are no-ops
func (b *Bus) Close() {
	b.mu.Lock()
	b.closed = true
	b.subs = make(map[string]*Subscription)
	b.order = nil
	b.mu.Unlock()
}
