package main

import (
	"errors"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/mmcdole/shelf/internal/tui"
)

// eventBuffer bounds how far the view may fall behind the bus before events
// are dropped; the next cards:changed re-derives everything anyway.
const eventBuffer = 64

func newTUICommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Browse and edit the lists in a terminal view",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !term.IsTerminal(int(os.Stdout.Fd())) || !term.IsTerminal(int(os.Stdin.Fd())) {
				return errors.New("tui needs an interactive terminal")
			}

			a, err := ctx.ensureApp()
			if err != nil {
				return err
			}

			// Subscribe before hydration starts so lists:hydrated is not missed
			events, detach := tui.Observe(a.Bus, eventBuffer)
			defer detach()

			model := tui.NewModel(a.Lists, a.Watchlist, events)
			a.Start(cmd.Context())

			p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(cmd.Context()))
			a.Logger.Info("starting TUI")
			if _, err := p.Run(); err != nil {
				a.Logger.Error("TUI error", "error", err)
				return fmt.Errorf("TUI error: %w", err)
			}
			a.Logger.Info("shutting down")
			return nil
		},
	}
}
