package network

import (
	"context"
	"errors"
	"time"

	"github.com/scc-project/scc/internal/events"
	"github.com/scc-project/scc/internal/game"
	"github.com/scc-project/scc/internal/protocol"
)

// Why a session ended, as reported on session.ended.
const (
	EndExit      = "exit"
	EndPeerError = "peer_error"
	EndTimeout   = "timeout"
	EndProtocol  = "protocol"
	EndIO        = "io"
	EndShutdown  = "shutdown"
)

// Notices sent as ERRO bodies, after the protocol error prefix.
const (
	NoticeTimeout      = "Timeout problem"
	NoticeDisconnected = "The opponent has disconnected"
)

// SessionInfo describes a running session.
type SessionInfo struct {
	ID        string      `json:"id"`
	Mode      events.Mode `json:"mode"`
	Remotes   []string    `json:"remotes"`
	StartedAt time.Time   `json:"started_at"`
}

// rejection returns the ERRO body for a fault raised by the peer, or false
// when err is not the peer's fault.
func rejection(err error) (string, bool) {
	var synErr *protocol.SyntaxError
	if errors.As(err, &synErr) {
		return synErr.Reason, true
	}
	var actErr *game.ActionError
	if errors.As(err, &actErr) {
		return actErr.Reason, true
	}
	return "", false
}

func emitSessionStarted(ctx context.Context, bus *events.EventBus, info SessionInfo) {
	bus.Emit(ctx, events.Event{
		Type:   events.EventSessionStarted,
		Source: "network",
		Payload: events.SessionPayload{
			SessionID: info.ID,
			Mode:      info.Mode,
			Remotes:   info.Remotes,
		},
	})
}

func emitSessionEnded(ctx context.Context, bus *events.EventBus, info SessionInfo, reason string) {
	bus.Emit(ctx, events.Event{
		Type:   events.EventSessionEnded,
		Source: "network",
		Payload: events.SessionPayload{
			SessionID: info.ID,
			Mode:      info.Mode,
			Remotes:   info.Remotes,
			Reason:    reason,
			Duration:  time.Since(info.StartedAt),
		},
	})
}

func emitProtocolError(ctx context.Context, bus *events.EventBus, sessionID, remote, reason string) {
	bus.Emit(ctx, events.Event{
		Type:   events.EventProtocolError,
		Source: "network",
		Payload: events.ProtocolErrorPayload{
			SessionID: sessionID,
			Remote:    remote,
			Reason:    reason,
		},
	})
}
