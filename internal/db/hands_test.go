package db

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scc-project/scc/internal/events"
)

func openStore(t *testing.T) *HandStore {
	t.Helper()
	hs, err := NewHandStore(filepath.Join(t.TempDir(), "nested", "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { hs.Close() })
	return hs
}

func hand(players [2]int, winner, loot int, at time.Time) events.HandResultPayload {
	return events.HandResultPayload{
		SessionID:  "s-1",
		Mode:       events.ModeDuel,
		PlayerIDs:  players,
		Scores:     [2]int{7, 3},
		Balances:   [2]int{11, 9},
		Winner:     winner,
		Loot:       loot,
		Bet:        1,
		FinishedAt: at,
	}
}

func TestHandStore_RecordAndList(t *testing.T) {
	hs := openStore(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, hs.RecordHand(ctx, hand([2]int{1, 2}, 0, 2, now.Add(-time.Minute))))
	require.NoError(t, hs.RecordHand(ctx, hand([2]int{3, 1}, 1, 2, now)))
	require.NoError(t, hs.RecordHand(ctx, hand([2]int{4, 5}, 2, 2, now.Add(-2*time.Minute))))

	all, err := hs.RecentHands(ctx, HandQuery{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, [2]int{3, 1}, all[0].PlayerIDs)
	assert.Equal(t, [2]int{4, 5}, all[2].PlayerIDs)
	assert.Equal(t, "duel", all[0].Mode)
	assert.Equal(t, [2]int{7, 3}, all[0].Scores)
	assert.Equal(t, now.UnixMilli(), all[0].FinishedAt.UnixMilli())

	mine, err := hs.RecentHands(ctx, HandQuery{PlayerID: 1, ByPlayer: true})
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	limited, err := hs.RecentHands(ctx, HandQuery{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestHandStore_Leaderboard(t *testing.T) {
	hs := openStore(t)
	ctx := context.Background()
	now := time.Now()

	// Player 1 wins two pots of 2; player 2 loses both and then ties.
	require.NoError(t, hs.RecordHand(ctx, hand([2]int{1, 2}, 0, 2, now)))
	require.NoError(t, hs.RecordHand(ctx, hand([2]int{2, 1}, 1, 2, now)))
	require.NoError(t, hs.RecordHand(ctx, hand([2]int{2, 3}, 2, 2, now)))

	board, err := hs.Leaderboard(ctx, 10)
	require.NoError(t, err)
	require.Len(t, board, 3)

	assert.Equal(t, LeaderboardEntry{PlayerID: 1, Played: 2, Won: 2, Net: 2}, board[0])
	assert.Equal(t, LeaderboardEntry{PlayerID: 3, Played: 1, Won: 0, Net: -1}, board[1])
	assert.Equal(t, LeaderboardEntry{PlayerID: 2, Played: 3, Won: 0, Net: -3}, board[2])
}

func TestHandStore_PruneOlderThan(t *testing.T) {
	hs := openStore(t)
	ctx := context.Background()

	require.NoError(t, hs.RecordHand(ctx, hand([2]int{1, 2}, 0, 2, time.Now().AddDate(0, 0, -40))))
	require.NoError(t, hs.RecordHand(ctx, hand([2]int{1, 2}, 0, 2, time.Now())))

	n, err := hs.PruneOlderThan(ctx, 30)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	left, err := hs.RecentHands(ctx, HandQuery{})
	require.NoError(t, err)
	assert.Len(t, left, 1)
}

func TestHandStore_SubscribeRecordsEvents(t *testing.T) {
	hs := openStore(t)
	bus := events.NewEventBus()
	defer bus.Stop()
	hs.Subscribe(bus)

	bus.Emit(context.Background(), events.Event{
		Type:    events.EventHandFinished,
		Source:  "test",
		Payload: hand([2]int{8, 9}, 0, 2, time.Now()),
	})

	require.Eventually(t, func() bool {
		hands, err := hs.RecentHands(context.Background(), HandQuery{PlayerID: 8, ByPlayer: true})
		return err == nil && len(hands) == 1
	}, 3*time.Second, 10*time.Millisecond)
}
