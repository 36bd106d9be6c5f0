package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"packages/internal/config"
	"packages/internal/db"
)

func newMigrateCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := db.Migrate(g.cfg.DatabaseURL); err != nil {
				return err
			}
			g.logger.Info().Msg("migrations applied")
			return nil
		},
	}
}

func newSeedCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "seed <remotes.yaml>",
		Short: "Create or update remotes and API tokens from a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := config.LoadRemotesFile(args[0])
			if err != nil {
				return err
			}

			ctx, stop := signalContext(cmd.Context())
			defer stop()
			a, err := openApp(ctx, g)
			if err != nil {
				return err
			}
			defer a.Close()

			n, err := a.svc.SeedRemotes(ctx, f)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d remotes and %d API tokens\n", n, len(f.APITokens))
			return nil
		},
	}
}

func newRemoteCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remote",
		Short: "Manage remotes",
	}
	cmd.AddCommand(
		newRemoteToggleCmd(g, "enable", true),
		newRemoteToggleCmd(g, "disable", false),
	)
	return cmd
}

func newRemoteToggleCmd(g *globals, use string, enabled bool) *cobra.Command {
	short := "Enable a remote"
	if !enabled {
		short = "Disable a remote and remove the webhooks of its packages"
	}
	return &cobra.Command{
		Use:   use + " <name>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()
			a, err := openApp(ctx, g)
			if err != nil {
				return err
			}
			defer a.Close()

			remote, err := a.store.GetRemoteByName(ctx, args[0])
			if err != nil {
				return fmt.Errorf("remote %q: %w", args[0], err)
			}
			toggle, err := a.svc.SetRemoteEnabled(ctx, remote.ID.String(), enabled)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "remote %s enabled=%v\n", toggle.Remote.Name, toggle.Remote.Enabled)
			if toggle.HookFailures > 0 {
				return fmt.Errorf("%d webhooks could not be removed", toggle.HookFailures)
			}
			return nil
		},
	}
}
