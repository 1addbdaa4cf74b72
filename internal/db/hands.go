package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/scc-project/scc/internal/events"
)

// HandRecord is one settled hand as stored.
type HandRecord struct {
	ID         int64     `json:"id"`
	SessionID  string    `json:"session_id"`
	Mode       string    `json:"mode"`
	PlayerIDs  [2]int    `json:"player_ids"`
	Scores     [2]int    `json:"scores"`
	Balances   [2]int    `json:"balances"`
	Winner     int       `json:"winner"`
	Loot       int       `json:"loot"`
	Bet        int       `json:"bet"`
	FinishedAt time.Time `json:"finished_at"`
}

// LeaderboardEntry aggregates the hands of one player id.
type LeaderboardEntry struct {
	PlayerID int `json:"player_id"`
	Played   int `json:"played"`
	Won      int `json:"won"`
	// Net is gems won minus gems staked.
	Net int `json:"net"`
}

// HandQuery selects hands for RecentHands.
type HandQuery struct {
	Limit int
	// PlayerID filters on either seat when ByPlayer is set.
	PlayerID int
	ByPlayer bool
}

// HandStore records finished hands.
type HandStore struct {
	db     *Database
	logger zerolog.Logger
}

// NewHandStore opens the history database and applies the schema.
func NewHandStore(dbPath string) (*HandStore, error) {
	database, err := NewDatabase(dbPath)
	if err != nil {
		return nil, err
	}

	hs := &HandStore{
		db:     database,
		logger: log.With().Str("component", "hand_store").Logger(),
	}

	if err := hs.migrate(context.Background()); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to migrate hand history: %w", err)
	}

	return hs, nil
}

func (hs *HandStore) migrate(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS hands (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			mode TEXT NOT NULL,
			player0 INTEGER NOT NULL,
			player1 INTEGER NOT NULL,
			score0 INTEGER NOT NULL,
			score1 INTEGER NOT NULL,
			balance0 INTEGER NOT NULL,
			balance1 INTEGER NOT NULL,
			winner INTEGER NOT NULL,
			loot INTEGER NOT NULL,
			bet INTEGER NOT NULL,
			finished_at INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_hands_player0 ON hands(player0);
		CREATE INDEX IF NOT EXISTS idx_hands_player1 ON hands(player1);
		CREATE INDEX IF NOT EXISTS idx_hands_finished ON hands(finished_at);
	`

	return hs.db.Transaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, schema)
		return err
	})
}

// Close closes the underlying database.
func (hs *HandStore) Close() error {
	return hs.db.Close()
}

// Subscribe records every hand.finished event published on bus.
func (hs *HandStore) Subscribe(bus *events.EventBus) {
	bus.Subscribe(events.EventHandFinished, "hand_store", func(ctx context.Context, e events.Event) error {
		result, ok := e.Payload.(events.HandResultPayload)
		if !ok {
			return fmt.Errorf("unexpected payload %T", e.Payload)
		}
		// A hand settled just before shutdown is still recorded.
		if err := hs.RecordHand(context.WithoutCancel(ctx), result); err != nil {
			hs.logger.Error().Err(err).Str("session", result.SessionID).Msg("failed to record hand")
			return err
		}
		return nil
	})
}

// RecordHand stores one settled hand.
func (hs *HandStore) RecordHand(ctx context.Context, h events.HandResultPayload) error {
	finished := h.FinishedAt
	if finished.IsZero() {
		finished = time.Now()
	}

	_, err := hs.db.Exec(ctx, `
		INSERT INTO hands (session_id, mode, player0, player1, score0, score1,
			balance0, balance1, winner, loot, bet, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		h.SessionID, string(h.Mode), h.PlayerIDs[0], h.PlayerIDs[1], h.Scores[0], h.Scores[1],
		h.Balances[0], h.Balances[1], h.Winner, h.Loot, h.Bet, finished.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to insert hand: %w", err)
	}

	hs.logger.Debug().
		Str("session", h.SessionID).
		Int("winner", h.Winner).
		Int("loot", h.Loot).
		Msg("hand recorded")
	return nil
}

// RecentHands returns the newest hands first.
func (hs *HandStore) RecentHands(ctx context.Context, q HandQuery) ([]HandRecord, error) {
	if q.Limit <= 0 {
		q.Limit = 20
	}

	query := `SELECT id, session_id, mode, player0, player1, score0, score1,
			balance0, balance1, winner, loot, bet, finished_at
		FROM hands`
	args := []any{}
	if q.ByPlayer {
		query += ` WHERE player0 = ? OR player1 = ?`
		args = append(args, q.PlayerID, q.PlayerID)
	}
	query += ` ORDER BY finished_at DESC, id DESC LIMIT ?`
	args = append(args, q.Limit)

	rows, err := hs.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query hands: %w", err)
	}
	defer rows.Close()

	var hands []HandRecord
	for rows.Next() {
		var (
			h        HandRecord
			finished int64
		)
		if err := rows.Scan(&h.ID, &h.SessionID, &h.Mode,
			&h.PlayerIDs[0], &h.PlayerIDs[1], &h.Scores[0], &h.Scores[1],
			&h.Balances[0], &h.Balances[1], &h.Winner, &h.Loot, &h.Bet, &finished); err != nil {
			return nil, fmt.Errorf("failed to scan hand: %w", err)
		}
		h.FinishedAt = time.UnixMilli(finished)
		hands = append(hands, h)
	}

	return hands, rows.Err()
}

// Leaderboard ranks player ids by net gems, then by hands won.
func (hs *HandStore) Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	if limit <= 0 {
		limit = 10
	}

	// Each hand contributes one row per seat. A tie leaves the stake in
	// the pot, which the eventual winner collects.
	rows, err := hs.db.Query(ctx, `
		SELECT player_id, COUNT(*) AS played, SUM(won) AS won, SUM(net) AS net FROM (
			SELECT player0 AS player_id,
				CASE WHEN winner = 0 THEN 1 ELSE 0 END AS won,
				CASE WHEN winner = 0 THEN loot - bet ELSE -bet END AS net
			FROM hands
			UNION ALL
			SELECT player1,
				CASE WHEN winner = 1 THEN 1 ELSE 0 END,
				CASE WHEN winner = 1 THEN loot - bet ELSE -bet END
			FROM hands
		)
		GROUP BY player_id
		ORDER BY net DESC, won DESC, player_id ASC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard: %w", err)
	}
	defer rows.Close()

	var entries []LeaderboardEntry
	for rows.Next() {
		var e LeaderboardEntry
		if err := rows.Scan(&e.PlayerID, &e.Played, &e.Won, &e.Net); err != nil {
			return nil, fmt.Errorf("failed to scan leaderboard row: %w", err)
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// PruneOlderThan deletes hands finished more than days ago and returns
// how many were removed.
func (hs *HandStore) PruneOlderThan(ctx context.Context, days int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -days).UnixMilli()

	res, err := hs.db.Exec(ctx, `DELETE FROM hands WHERE finished_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune hands: %w", err)
	}

	n, _ := res.RowsAffected()
	if n > 0 {
		hs.logger.Info().Int64("removed", n).Int("days", days).Msg("pruned hand history")
	}
	return n, nil
}
