package tui

import "github.com/mmcdole/shelf/internal/events"

// Message types for the TUI

// EventMsg carries one bus event into the update loop
type EventMsg struct {
	Event events.Event
}

// EventsClosedMsg signals that the event channel was closed
type EventsClosedMsg struct{}

// ClearToastMsg clears the toast it was scheduled for
type ClearToastMsg struct {
	Seq int
}

// ActionDoneMsg reports whether a dispatched trigger was admitted and applied.
// Failures are reported by the :error event, not here.
type ActionDoneMsg struct {
	Label string
	OK    bool
}
