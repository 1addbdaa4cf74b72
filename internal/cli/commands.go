// Package cli implements the operator console of the game server and the
// table output shared with the history commands.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/scc-project/scc/internal/db"
	"github.com/scc-project/scc/internal/events"
	"github.com/scc-project/scc/internal/game"
	"github.com/scc-project/scc/internal/network"
)

// ServerView is what the console can see of the running game server.
type ServerView interface {
	Status() events.ServerStatusPayload
	Sessions() []network.SessionInfo
	Registry() *game.Registry
}

// History is the read side of the hand history store.
type History interface {
	RecentHands(ctx context.Context, q db.HandQuery) ([]db.HandRecord, error)
	Leaderboard(ctx context.Context, limit int) ([]db.LeaderboardEntry, error)
}

// CLI provides an interactive operator console.
type CLI struct {
	server   ServerView
	history  History
	shutdown func()

	in  io.Reader
	out io.Writer
}

// NewCLI creates a console reading commands from in and writing to out.
// history may be nil; shutdown is called by "quit".
func NewCLI(server ServerView, history History, shutdown func(), in io.Reader, out io.Writer) *CLI {
	return &CLI{
		server:   server,
		history:  history,
		shutdown: shutdown,
		in:       in,
		out:      out,
	}
}

// Start runs the console until ctx is cancelled, input ends or the
// operator quits.
func (c *CLI) Start(ctx context.Context) {
	fmt.Fprintln(c.out, "\nscc console ready. Type 'help' for available commands.")

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(c.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		fmt.Fprint(c.out, "scc> ")
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			parts := strings.Fields(line)
			if len(parts) == 0 {
				continue
			}
			quit, err := c.execute(ctx, strings.ToLower(parts[0]), parts[1:])
			if err != nil {
				fmt.Fprintf(c.out, "Error: %v\n", err)
			}
			if quit {
				return
			}
		}
	}
}

// execute processes a single console command and reports whether the
// console should stop.
func (c *CLI) execute(ctx context.Context, cmd string, args []string) (bool, error) {
	switch cmd {
	case "help", "h", "?":
		c.printHelp()
	case "status", "s":
		c.printStatus()
	case "sessions":
		PrintSessions(c.out, c.server.Sessions())
	case "players", "p":
		PrintPlayers(c.out, c.server.Registry().Snapshot())
	case "history":
		return false, c.cmdHistory(ctx, args)
	case "leaderboard", "top":
		return false, c.cmdLeaderboard(ctx, args)
	case "quit", "exit", "q":
		fmt.Fprintln(c.out, "Shutting down...")
		if c.shutdown != nil {
			c.shutdown()
		}
		return true, nil
	default:
		fmt.Fprintf(c.out, "Unknown command: '%s'. Type 'help' for available commands.\n", cmd)
	}
	return false, nil
}

func (c *CLI) printHelp() {
	fmt.Fprintln(c.out, `
  status              Show server status
  sessions            List running sessions
  players             List known players and their gems
  history [n] [id]    Show the last n hands, optionally for one player
  leaderboard [n]     Rank players by net gems
  quit                Shut the server down
  help                Show this help message`)
}

func (c *CLI) printStatus() {
	st := c.server.Status()
	fmt.Fprintf(c.out, "\n  Mode:              %s\n", st.Mode)
	fmt.Fprintf(c.out, "  Port:              %d\n", st.Port)
	fmt.Fprintf(c.out, "  Uptime:            %s\n", st.Uptime.Truncate(time.Second))
	fmt.Fprintf(c.out, "  Active sessions:   %d\n", st.ActiveSessions)
	fmt.Fprintf(c.out, "  Players connected: %d / %d\n", st.PlayersConnected, st.PlayersKnown)
	fmt.Fprintf(c.out, "  CPU usage:         %.1f%%\n", st.CPUPercent)
	fmt.Fprintf(c.out, "  Memory usage:      %.1f%%\n\n", st.MemoryPercent)
}

func (c *CLI) cmdHistory(ctx context.Context, args []string) error {
	if c.history == nil {
		return fmt.Errorf("hand history is disabled")
	}

	q := db.HandQuery{Limit: 20}
	if len(args) > 0 {
		n, err := parsePositive(args[0])
		if err != nil {
			return err
		}
		q.Limit = n
	}
	if len(args) > 1 {
		id, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid player id: %s", args[1])
		}
		q.PlayerID, q.ByPlayer = id, true
	}

	hands, err := c.history.RecentHands(ctx, q)
	if err != nil {
		return err
	}
	PrintHands(c.out, hands)
	return nil
}

func (c *CLI) cmdLeaderboard(ctx context.Context, args []string) error {
	if c.history == nil {
		return fmt.Errorf("hand history is disabled")
	}

	limit := 10
	if len(args) > 0 {
		n, err := parsePositive(args[0])
		if err != nil {
			return err
		}
		limit = n
	}

	entries, err := c.history.Leaderboard(ctx, limit)
	if err != nil {
		return err
	}
	PrintLeaderboard(c.out, entries)
	return nil
}

func parsePositive(arg string) (int, error) {
	n, err := strconv.Atoi(arg)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid count: %s", arg)
	}
	return n, nil
}

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	tw := tablewriter.NewWriter(w)
	tw.SetHeader(header)
	tw.SetBorder(true)
	tw.SetAutoWrapText(false)
	return tw
}

// PrintHands renders hands as a table, newest first.
func PrintHands(w io.Writer, hands []db.HandRecord) {
	if len(hands) == 0 {
		fmt.Fprintln(w, "No hands recorded.")
		return
	}

	tw := newTable(w, "Finished", "Mode", "Players", "Scores", "Winner", "Loot", "Balances")
	for _, h := range hands {
		winner := "tie"
		if h.Winner == 0 || h.Winner == 1 {
			winner = strconv.Itoa(h.PlayerIDs[h.Winner])
		}
		tw.Append([]string{
			h.FinishedAt.Format("2006-01-02 15:04:05"),
			h.Mode,
			fmt.Sprintf("%d vs %d", h.PlayerIDs[0], h.PlayerIDs[1]),
			fmt.Sprintf("%d - %d", h.Scores[0], h.Scores[1]),
			winner,
			strconv.Itoa(h.Loot),
			fmt.Sprintf("%d / %d", h.Balances[0], h.Balances[1]),
		})
	}
	tw.Render()
}

// PrintLeaderboard renders the leaderboard with a rank column.
func PrintLeaderboard(w io.Writer, entries []db.LeaderboardEntry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No hands recorded.")
		return
	}

	tw := newTable(w, "#", "Player", "Played", "Won", "Net gems")
	for i, e := range entries {
		tw.Append([]string{
			strconv.Itoa(i + 1),
			strconv.Itoa(e.PlayerID),
			strconv.Itoa(e.Played),
			strconv.Itoa(e.Won),
			fmt.Sprintf("%+d", e.Net),
		})
	}
	tw.Render()
}

// PrintPlayers renders the registry snapshot.
func PrintPlayers(w io.Writer, players []game.PlayerInfo) {
	if len(players) == 0 {
		fmt.Fprintln(w, "No players yet.")
		return
	}

	tw := newTable(w, "Player", "Gems", "Connected")
	for _, p := range players {
		tw.Append([]string{strconv.Itoa(p.ID), strconv.Itoa(p.Gems), strconv.FormatBool(p.Connected)})
	}
	tw.Render()
}

// PrintSessions renders the running sessions.
func PrintSessions(w io.Writer, sessions []network.SessionInfo) {
	if len(sessions) == 0 {
		fmt.Fprintln(w, "No running sessions.")
		return
	}

	tw := newTable(w, "Session", "Mode", "Remotes", "Running for")
	for _, s := range sessions {
		tw.Append([]string{
			s.ID,
			string(s.Mode),
			strings.Join(s.Remotes, ", "),
			time.Since(s.StartedAt).Truncate(time.Second).String(),
		})
	}
	tw.Render()
}
