package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scc-project/scc/internal/db"
	"github.com/scc-project/scc/internal/events"
	"github.com/scc-project/scc/internal/game"
	"github.com/scc-project/scc/internal/network"
)

type stubServer struct{ registry *game.Registry }

func (s stubServer) Status() events.ServerStatusPayload {
	return events.ServerStatusPayload{Mode: events.ModeSolo, Port: 1212, ActiveSessions: 3}
}

func (s stubServer) Sessions() []network.SessionInfo {
	return []network.SessionInfo{{ID: "sess-1", Mode: events.ModeSolo, Remotes: []string{"10.0.0.1:5000"}, StartedAt: time.Now()}}
}

func (s stubServer) Registry() *game.Registry { return s.registry }

type stubHistory struct{ query db.HandQuery }

func (h *stubHistory) RecentHands(_ context.Context, q db.HandQuery) ([]db.HandRecord, error) {
	h.query = q
	return []db.HandRecord{{Mode: "solo", PlayerIDs: [2]int{42, 1212}, Scores: [2]int{9, 4}, Winner: 0, Loot: 2}}, nil
}

func (h *stubHistory) Leaderboard(_ context.Context, _ int) ([]db.LeaderboardEntry, error) {
	return []db.LeaderboardEntry{{PlayerID: 42, Played: 3, Won: 2, Net: 1}}, nil
}

func runConsole(t *testing.T, history History, input string) (string, bool) {
	t.Helper()
	registry := game.NewRegistry(10)
	registry.GetOrCreate(42)

	var out bytes.Buffer
	quit := false
	c := NewCLI(stubServer{registry: registry}, history, func() { quit = true }, strings.NewReader(input), &out)

	done := make(chan struct{})
	go func() {
		c.Start(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("console did not stop")
	}
	return out.String(), quit
}

func TestConsoleStatusAndPlayers(t *testing.T) {
	out, quit := runConsole(t, nil, "status\nplayers\nsessions\n")
	assert.False(t, quit)
	assert.Contains(t, out, "Active sessions:   3")
	assert.Contains(t, out, "42")
	assert.Contains(t, out, "sess-1")
}

func TestConsoleHistory(t *testing.T) {
	history := &stubHistory{}
	out, _ := runConsole(t, history, "history 5 42\nleaderboard\n")
	assert.Equal(t, db.HandQuery{Limit: 5, PlayerID: 42, ByPlayer: true}, history.query)
	assert.Contains(t, out, "42 vs 1212")
	assert.Contains(t, out, "+1")
}

func TestConsoleHistoryDisabled(t *testing.T) {
	out, _ := runConsole(t, nil, "history\n")
	assert.Contains(t, out, "Error: hand history is disabled")
}

func TestConsoleQuit(t *testing.T) {
	out, quit := runConsole(t, nil, "bogus\nquit\nstatus\n")
	require.True(t, quit)
	assert.Contains(t, out, "Unknown command: 'bogus'")
	assert.NotContains(t, out, "Active sessions")
}

func TestPrintHandsMarksTies(t *testing.T) {
	var out bytes.Buffer
	PrintHands(&out, []db.HandRecord{{PlayerIDs: [2]int{1, 2}, Winner: 2}})
	assert.Contains(t, out.String(), "tie")

	out.Reset()
	PrintHands(&out, nil)
	assert.Equal(t, "No hands recorded.\n", out.String())
}
