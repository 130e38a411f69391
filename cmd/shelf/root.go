package main

import (
	"github.com/spf13/cobra"
)

// newRootCommand returns the command tree and a cleanup that releases whatever
// the invoked command opened. Cleanup must run even when Execute fails.
func newRootCommand() (*cobra.Command, func() error) {
	var configFlag string
	var uidFlag string

	ctx := newCommandContext(&configFlag, &uidFlag)

	rootCmd := &cobra.Command{
		Use:           "shelf",
		Short:         "Track what you are watching, want to watch and have watched",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration directory (default ~/.config/shelf)")
	rootCmd.PersistentFlags().StringVar(&uidFlag, "uid", "", "Act as this account uid instead of the configured one")

	rootCmd.AddCommand(newAddCommand(ctx))
	rootCmd.AddCommand(newMoveCommand(ctx))
	rootCmd.AddCommand(newRemoveCommand(ctx))
	rootCmd.AddCommand(newHasCommand(ctx))
	rootCmd.AddCommand(newListCommand(ctx))
	rootCmd.AddCommand(newFindCommand(ctx))
	rootCmd.AddCommand(newWatchedCommand(ctx))
	rootCmd.AddCommand(newNoteCommand(ctx))
	rootCmd.AddCommand(newTUICommand(ctx))
	rootCmd.AddCommand(newLoginCommand(ctx))
	rootCmd.AddCommand(newLogoutCommand(ctx))

	return rootCmd, ctx.close
}
