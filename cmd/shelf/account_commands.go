package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mmcdole/shelf/internal/config"
)

func newLoginCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "login <uid>",
		Short: "Sign in so lists sync to the configured remote store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			uid := strings.TrimSpace(args[0])
			if uid == "" {
				return fmt.Errorf("uid must not be empty")
			}
			if err := saveAccount(ctx, uid); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s\n", uid)
			return nil
		},
	}
}

func newLogoutCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out; lists stay on this device",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := saveAccount(ctx, ""); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			return nil
		},
	}
}

func saveAccount(ctx *commandContext, uid string) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	cfg.Account.UID = uid
	if err := config.SaveConfig(cfg, ctx.configDir()); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	return nil
}
