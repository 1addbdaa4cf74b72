// Package events defines the in-process event bus and the events exchanged
// between the game sessions and the observers around them (history store,
// telemetry, status API).
package events

import "time"

// EventType represents the type of event emitted through the EventBus.
type EventType string

const (
	// Session lifecycle
	EventSessionStarted EventType = "session.started"
	EventSessionEnded   EventType = "session.ended"

	// Players
	EventPlayerAttached EventType = "player.attached"
	EventPlayerReleased EventType = "player.released"

	// Game
	EventHandFinished EventType = "hand.finished"

	// Faults reported to a peer as ERRO
	EventProtocolError EventType = "protocol.error"

	// Periodic status snapshot
	EventServerStatus EventType = "server.status"
)

// Mode identifies how a session is played.
type Mode string

const (
	ModeSolo Mode = "solo"
	ModeDuel Mode = "duel"
)

// Event represents a single event in the system.
type Event struct {
	Type    EventType
	Source  string
	Payload interface{}
}

// SessionPayload describes a session that started or ended.
type SessionPayload struct {
	SessionID string   `json:"session_id"`
	Mode      Mode     `json:"mode"`
	Remotes   []string `json:"remotes"`
	// Reason is set on session.ended: "exit", "peer_error", "timeout",
	// "protocol", "io" or "shutdown".
	Reason   string        `json:"reason"`
	Duration time.Duration `json:"duration_ns"`
}

// PlayerPayload is carried by player.attached and player.released.
type PlayerPayload struct {
	SessionID string `json:"session_id"`
	PlayerID  int    `json:"player_id"`
	Gems      int    `json:"gems"`
}

// HandResultPayload is carried by hand.finished.
type HandResultPayload struct {
	SessionID string `json:"session_id"`
	Mode      Mode   `json:"mode"`
	// PlayerIDs and Scores are indexed by party: 0 is the first party
	// (the human in solo mode), 1 the second (the built-in opponent).
	PlayerIDs [2]int `json:"player_ids"`
	Scores    [2]int `json:"scores"`
	Balances  [2]int `json:"balances"`
	// Winner is 0 or 1 for a party, 2 for a tie.
	Winner int `json:"winner"`
	// Loot is the pot settled (or carried on a tie); Bet is what each
	// party staked on this hand.
	Loot       int       `json:"loot"`
	Bet        int       `json:"bet"`
	FinishedAt time.Time `json:"finished_at"`
}

// ProtocolErrorPayload describes an ERRO sent because of a peer fault.
type ProtocolErrorPayload struct {
	SessionID string `json:"session_id"`
	Remote    string `json:"remote"`
	Reason    string `json:"reason"`
}

// ServerStatusPayload is a snapshot of the running server.
type ServerStatusPayload struct {
	Mode             Mode          `json:"mode"`
	Port             int           `json:"port"`
	Uptime           time.Duration `json:"uptime_ns"`
	ActiveSessions   int           `json:"active_sessions"`
	PlayersConnected int           `json:"players_connected"`
	PlayersKnown     int           `json:"players_known"`
	CPUPercent       float64       `json:"cpu_percent"`
	MemoryPercent    float64       `json:"memory_percent"`
}
