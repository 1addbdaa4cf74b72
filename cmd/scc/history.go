package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/scc-project/scc/internal/cli"
	"github.com/scc-project/scc/internal/db"
)

func openHistory() (*db.HandStore, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if !cfg.Database.Enabled {
		return nil, fmt.Errorf("hand history is disabled in %s", cfg.Path())
	}
	return db.NewHandStore(cfg.Database.Path)
}

func newHistoryCmd() *cobra.Command {
	var (
		limit  int
		player int
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print the most recent hands",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openHistory()
			if err != nil {
				return err
			}
			defer store.Close()

			q := db.HandQuery{Limit: limit}
			if cmd.Flags().Changed("player") {
				q.PlayerID, q.ByPlayer = player, true
			}
			hands, err := store.RecentHands(cmd.Context(), q)
			if err != nil {
				return err
			}
			cli.PrintHands(cmd.OutOrStdout(), hands)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "number of hands")
	cmd.Flags().IntVar(&player, "player", 0, "only hands played by this id")
	return cmd
}

func newLeaderboardCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Print net gems won per player",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openHistory()
			if err != nil {
				return err
			}
			defer store.Close()

			entries, err := store.Leaderboard(cmd.Context(), limit)
			if err != nil {
				return err
			}
			cli.PrintLeaderboard(cmd.OutOrStdout(), entries)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 10, "number of players")
	return cmd
}
