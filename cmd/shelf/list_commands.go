package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mmcdole/shelf/internal/app"
	"github.com/mmcdole/shelf/internal/domain"
)

func newAddCommand(ctx *commandContext) *cobra.Command {
	var (
		title   string
		kind    string
		release string
		poster  string
		rating  float64
	)
	cmd := &cobra.Command{
		Use:   "add <id> <list>",
		Short: "File an item under watching, wishlist or watched",
		Long: "File an item under a status list. The id is a TMDb id, optionally qualified as movie:<id> or tv:<id>.\n" +
			"Without --title the record is reused if already tracked, or looked up on TMDb when an API key is configured.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			mediaKind, err := parseKindFlag(kind)
			if err != nil {
				return err
			}
			var data *domain.ItemData
			if title != "" {
				data = &domain.ItemData{
					Title:       title,
					Kind:        mediaKind,
					ReleaseDate: release,
					PosterPath:  poster,
					VoteAverage: rating,
				}
			}
			err = ctx.apply(func(a *app.App) bool {
				return a.Watchlist.AddItem(cmd.Context(), args[0], args[1], data)
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s to %s\n", args[0], args[1])
			return nil
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "Title to record")
	cmd.Flags().StringVar(&kind, "kind", "", "movie or tv")
	cmd.Flags().StringVar(&release, "release-date", "", "Release date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&poster, "poster", "", "Poster path")
	cmd.Flags().Float64Var(&rating, "rating", 0, "Public rating, 0-10")
	return cmd
}

func newMoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "move <id> <from> <to>",
		Short: "Move an item between status lists",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			err := ctx.apply(func(a *app.App) bool {
				return a.Watchlist.MoveItem(cmd.Context(), args[0], args[1], args[2])
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Moved %s to %s\n", args[0], args[2])
			return nil
		},
	}
}

func newRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id> <list>",
		Aliases: []string{"remove"},
		Short:   "Stop tracking an item",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			err := ctx.apply(func(a *app.App) bool {
				return a.Watchlist.RemoveItem(cmd.Context(), args[0], args[1])
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", args[0])
			return nil
		},
	}
}

func newWatchedCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "watched <id>",
		Short: "Mark an item watched and bump its watch count",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			err := ctx.apply(func(a *app.App) bool {
				return a.Watchlist.MarkWatched(cmd.Context(), args[0])
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Marked %s watched\n", args[0])
			return nil
		},
	}
}

func newNoteCommand(ctx *commandContext) *cobra.Command {
	var (
		text   string
		rating string
	)
	cmd := &cobra.Command{
		Use:   "note <id>",
		Short: "Set personal notes or rating on a tracked item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var edit domain.ItemEdit
			if cmd.Flags().Changed("text") {
				edit.UserNotes = &text
			}
			if cmd.Flags().Changed("rating") {
				r, err := strconv.ParseFloat(rating, 64)
				if err != nil {
					return fmt.Errorf("invalid rating %q: %w", rating, err)
				}
				edit.UserRating = &r
			}
			err := ctx.apply(func(a *app.App) bool {
				return a.Watchlist.UpdateItem(cmd.Context(), args[0], edit)
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&text, "text", "", "Notes text (empty clears)")
	cmd.Flags().StringVar(&rating, "rating", "", "Personal rating, 0-10")
	return cmd
}

func newHasCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "has <id> <list>",
		Short: "Report whether an item is filed under a list",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.ensureApp()
			if err != nil {
				return err
			}
			has := a.Watchlist.HasItem(cmd.Context(), args[0], args[1])
			fmt.Fprintln(cmd.OutOrStdout(), yesNo(has))
			return nil
		},
	}
}

func newListCommand(ctx *commandContext) *cobra.Command {
	var (
		kind     string
		jsonFlag bool
	)
	cmd := &cobra.Command{
		Use:     "ls [list]",
		Aliases: []string{"list"},
		Short:   "Show status lists",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mediaKind, err := parseKindFlag(kind)
			if err != nil {
				return err
			}
			lists := domain.ListKeys
			if len(args) == 1 {
				list, err := domain.ParseListKey(args[0])
				if err != nil {
					return err
				}
				lists = []domain.ListKey{list}
			}

			a, err := ctx.ensureApp()
			if err != nil {
				return err
			}
			grouped := collectLists(cmd.Context(), a, lists, mediaKind)
			if jsonFlag {
				return writeJSON(cmd, grouped)
			}
			out := cmd.OutOrStdout()
			for _, list := range lists {
				fmt.Fprintf(out, "%s (%d)\n", list, len(grouped[list]))
				if len(grouped[list]) > 0 {
					fmt.Fprintln(out, renderItems(grouped[list]))
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "", "Only movie or tv")
	cmd.Flags().BoolVar(&jsonFlag, "json", false, "Output JSON")
	return cmd
}

func collectLists(ctx context.Context, a *app.App, lists []domain.ListKey, kind domain.MediaKind) map[domain.ListKey][]domain.MediaItem {
	grouped := make(map[domain.ListKey][]domain.MediaItem, len(lists))
	for _, list := range lists {
		items := a.Watchlist.GetItems(ctx, string(list), kind)
		if items == nil {
			items = []domain.MediaItem{}
		}
		grouped[list] = items
	}
	return grouped
}

func newFindCommand(ctx *commandContext) *cobra.Command {
	var (
		kind     string
		jsonFlag bool
	)
	cmd := &cobra.Command{
		Use:   "find <query>",
		Short: "Fuzzy-search tracked titles",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mediaKind, err := parseKindFlag(kind)
			if err != nil {
				return err
			}
			a, err := ctx.ensureApp()
			if err != nil {
				return err
			}
			items := a.Watchlist.FindItems(cmd.Context(), strings.Join(args, " "), mediaKind)
			if jsonFlag {
				if items == nil {
					items = []domain.MediaItem{}
				}
				return writeJSON(cmd, items)
			}
			if len(items) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No matches")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderItems(items))
			return nil
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "", "Only movie or tv")
	cmd.Flags().BoolVar(&jsonFlag, "json", false, "Output JSON")
	return cmd
}

func parseKindFlag(kind string) (domain.MediaKind, error) {
	if strings.TrimSpace(kind) == "" {
		return "", nil
	}
	k, ok := domain.ParseMediaKind(kind)
	if !ok {
		return "", fmt.Errorf("unknown kind %q (want movie or tv)", kind)
	}
	return k, nil
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
