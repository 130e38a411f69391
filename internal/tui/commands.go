package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mmcdole/shelf/internal/domain"
	"github.com/mmcdole/shelf/internal/events"
)

// WaitForEventCmd blocks on the observer channel for the next bus event
func WaitForEventCmd(ch <-chan events.Event) tea.Cmd {
	return func() tea.Msg {
		e, ok := <-ch
		if !ok {
			return EventsClosedMsg{}
		}
		return EventMsg{Event: e}
	}
}

// ClearToastCmd returns a command that clears the toast after a delay
func ClearToastCmd(seq int, delay time.Duration) tea.Cmd {
	return tea.Tick(delay, func(time.Time) tea.Msg {
		return ClearToastMsg{Seq: seq}
	})
}

// DispatchCmd sends a trigger through the coordinator off the update loop
func DispatchCmd(actions Actions, label string, t domain.Trigger) tea.Cmd {
	return func() tea.Msg {
		ok := actions.Dispatch(context.Background(), t)
		return ActionDoneMsg{Label: label, OK: ok}
	}
}

// MarkWatchedCmd marks an item watched off the update loop
func MarkWatchedCmd(actions Actions, label, itemID string) tea.Cmd {
	return func() tea.Msg {
		ok := actions.MarkWatched(context.Background(), itemID)
		return ActionDoneMsg{Label: label, OK: ok}
	}
}
