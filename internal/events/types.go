// Package events carries mutation outcomes from the watchlist coordinator to
// independent subscribers.
package events

import (
	"time"

	"github.com/mmcdole/shelf/internal/domain"
)

// EventType names an event on the bus
type EventType string

const (
	// Outcome events, exactly one per admitted mutation
	EventItemAdded   EventType = "item:added"
	EventItemMoved   EventType = "item:moved"
	EventItemRemoved EventType = "item:removed"
	EventItemUpdated EventType = "item:updated"

	EventItemAddError    EventType = "item:add:error"
	EventItemMoveError   EventType = "item:move:error"
	EventItemRemoveError EventType = "item:remove:error"
	EventItemUpdateError EventType = "item:update:error"

	// EventCardsChanged is the coarse "re-derive your view" signal
	EventCardsChanged EventType = "cards:changed"

	// EventListsHydrated fires when the list cache becomes readable for an identity
	EventListsHydrated EventType = "lists:hydrated"
)

// IsError reports whether t is one of the :error variants
func (t EventType) IsError() bool {
	switch t {
	case EventItemAddError, EventItemMoveError, EventItemRemoveError, EventItemUpdateError:
		return true
	}
	return false
}

// OutcomeType returns the success event for op, or its error variant
func OutcomeType(op domain.OpKind, failed bool) EventType {
	switch op {
	case domain.OpAdd:
		if failed {
			return EventItemAddError
		}
		return EventItemAdded
	case domain.OpMove:
		if failed {
			return EventItemMoveError
		}
		return EventItemMoved
	case domain.OpRemove:
		if failed {
			return EventItemRemoveError
		}
		return EventItemRemoved
	default:
		if failed {
			return EventItemUpdateError
		}
		return EventItemUpdated
	}
}

// Event is the payload delivered to subscribers
type Event struct {
	ID       string
	Type     EventType
	ItemID   string
	ListKey  domain.ListKey
	FromList domain.ListKey
	ToList   domain.ListKey
	Kind     domain.MediaKind
	Item     *domain.MediaItem
	UID      string // set on lists:hydrated
	Error    string
	At       time.Time
}

// Filter selects events by type. An empty filter matches everything.
type Filter struct {
	Types []EventType
}

// Matches reports whether e passes the filter
func (f Filter) Matches(e Event) bool {
	if len(f.Types) == 0 {
		return true
	}
	for _, t := range f.Types {
		if t == e.Type {
			return true
		}
	}
	return false
}

// Handler receives events synchronously, in publish order
type Handler func(Event)

// Subscription is a registered handler
type Subscription struct {
	ID      string
	Filter  Filter
	Handler Handler
	Created time.Time
}
