package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"fansapprove/internal/config"
	"fansapprove/internal/roster"
)

func newRosterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "roster",
		Short: "Manage the player and alias tables",
	}
	cmd.AddCommand(
		newRosterSyncCmd(),
		newRosterFetchCmd(),
		newRosterReconcileCmd(),
		newRosterSeedCmd(),
		newRosterSeedTeamCmd(),
		newRosterStatusCmd(),
	)
	return cmd
}

func newRosterSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Fetch from Wikidata, write the snapshot and reconcile it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, log, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()
			defer log.Sync()

			result, err := a.Roster.Sync(ctx)
			if err != nil {
				return err
			}
			return printJSON(result)
		},
	}
}

func newRosterFetchCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch from Wikidata and write the snapshot only",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, log, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()
			defer log.Sync()

			path := output
			if path == "" {
				path = a.Roster.SnapshotPath
			}
			n, err := a.Roster.FetchSnapshot(ctx, path)
			if err != nil {
				return err
			}
			fmt.Printf("Wrote %d players to %s\n", n, path)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "snapshot path (default from config)")
	return cmd
}

func newRosterReconcileCmd() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Load an existing snapshot into the database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, log, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()
			defer log.Sync()

			result, err := a.Roster.Reconcile(ctx, path)
			if err != nil {
				return err
			}
			return printJSON(result)
		},
	}
	cmd.Flags().StringVarP(&path, "path", "p", "", "snapshot path (default from config)")
	return cmd
}

func newRosterSeedCmd() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load a hand-written player list",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, log, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()
			defer log.Sync()

			result, err := a.Roster.Seed(ctx, path)
			if err != nil {
				return err
			}
			return printJSON(result)
		},
	}
	cmd.Flags().StringVarP(&path, "path", "p", "", "seed file (default roster.seed_path)")
	return cmd
}

func newRosterSeedTeamCmd() *cobra.Command {
	var team string
	cmd := &cobra.Command{
		Use:   "seed-team <names.json>",
		Short: "Load a JSON array of player names for one team",
		Long:  "Each name becomes a player on --team; a last name of four or more letters is added as an alias.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if team == "" {
				return fmt.Errorf("--team is required")
			}
			ctx := cmd.Context()
			a, log, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()
			defer log.Sync()

			result, err := a.Roster.SeedTeam(ctx, args[0], team)
			if err != nil {
				return err
			}
			return printJSON(result)
		},
	}
	cmd.Flags().StringVarP(&team, "team", "t", "", "team label, e.g. \"Houston Rockets\"")
	return cmd
}

func newRosterStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the snapshot file summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath, envOnly)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			status, err := roster.Status(cfg.Roster.SnapshotPath)
			if err != nil {
				return err
			}
			return printJSON(status)
		},
	}
}
