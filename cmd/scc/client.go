package main

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/scc-project/scc/internal/client"
	"github.com/scc-project/scc/internal/config"
)

type clientFlags struct {
	host        string
	port        int
	interactive int
	id          int
	games       int
}

func newClientCmd() *cobra.Command {
	var flags clientFlags
	cmd := &cobra.Command{
		Use:   "client",
		Short: "Connect to a game server and play",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runClient(cmd, flags)
		},
	}

	cmd.Flags().StringVarP(&flags.host, "server", "s", "localhost", "server host")
	cmd.Flags().IntVarP(&flags.port, "port", "p", config.DefaultGamePort, "server port")
	cmd.Flags().IntVarP(&flags.interactive, "interactive", "i", 1, "0 asks for every decision, 1 plays automatically")
	cmd.Flags().IntVar(&flags.id, "id", 0, "player id (random when 0)")
	cmd.Flags().IntVar(&flags.games, "games", client.MaxGames, "hands the automatic player plays")
	return cmd
}

func runClient(cmd *cobra.Command, flags clientFlags) error {
	if flags.interactive != 0 && flags.interactive != 1 {
		return fmt.Errorf("invalid interactive flag %d, use 0 or 1", flags.interactive)
	}
	id := flags.id
	if id == 0 {
		id = client.RandomID(flags.port)
	}
	if err := client.ValidateID(id, flags.port); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	var strategy client.Strategy = client.Automatic{MaxGames: flags.games}
	if flags.interactive == 0 {
		strategy = client.NewInteractive(cmd.InOrStdin(), out)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr := net.JoinHostPort(flags.host, strconv.Itoa(flags.port))
	player, err := client.Dial(ctx, addr, id, strategy, out)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Connected to %s as player %d\n", addr, id)

	stats, err := player.Run(ctx)
	fmt.Fprintf(out, "Played %d hands: %d won, %d lost, %d tied. Final cash %d\n",
		stats.Played, stats.Won, stats.Lost, stats.Tied, stats.Cash)
	if err != nil && ctx.Err() == nil {
		return err
	}
	log.Debug().Int("player", id).Msg("client finished")
	return nil
}
