package network

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/scc-project/scc/internal/audit"
	"github.com/scc-project/scc/internal/events"
	"github.com/scc-project/scc/internal/game"
	"github.com/scc-project/scc/internal/protocol"
)

// SoloWorker serves one connection playing against the built-in opponent.
// It owns the connection, the session and the audit log, and releases all
// three when Run returns.
type SoloWorker struct {
	conn        *Connection
	session     *game.Solo
	audit       *audit.Log
	bus         *events.EventBus
	info        SessionInfo
	readTimeout time.Duration
	logger      zerolog.Logger
}

// NewSoloWorker wires a connection to its session. readTimeout bounds the
// wait for each client message; an idle client is dropped without notice.
func NewSoloWorker(info SessionInfo, conn *Connection, session *game.Solo, transcript *audit.Log, bus *events.EventBus, readTimeout time.Duration) *SoloWorker {
	return &SoloWorker{
		conn:        conn,
		session:     session,
		audit:       transcript,
		bus:         bus,
		info:        info,
		readTimeout: readTimeout,
		logger: log.With().
			Str("component", "solo_worker").
			Str("session", info.ID).
			Str("remote", conn.RemoteAddr().String()).
			Logger(),
	}
}

// Run processes messages until the client leaves, misbehaves or goes
// quiet, and returns why the session ended.
func (w *SoloWorker) Run(ctx context.Context) (reason string) {
	emitSessionStarted(ctx, w.bus, w.info)
	w.logger.Info().Msg("solo session started")

	defer func() {
		w.teardown(ctx, reason)
	}()

	for {
		msg, err := w.conn.ReadMessage(w.readTimeout)
		if err != nil {
			return w.readFailed(ctx, err)
		}
		w.audit.Record(audit.Client, msg)

		replies, err := w.session.Handle(ctx, msg)
		if err != nil {
			return w.reject(ctx, err)
		}

		for _, reply := range replies {
			if err := w.send(reply); err != nil {
				w.logger.Warn().Err(err).Msg("write failed")
				return EndIO
			}
		}

		switch msg.Tag() {
		case protocol.TagExit:
			return EndExit
		case protocol.TagErro:
			return EndPeerError
		}
	}
}

func (w *SoloWorker) readFailed(ctx context.Context, err error) string {
	switch {
	case errors.Is(err, ErrNoMessage):
		w.logger.Warn().Dur("timeout", w.readTimeout).Msg("client idle, closing")
		return EndTimeout
	case w.conn.IsClosed() || ctx.Err() != nil:
		return EndShutdown
	}

	if _, ok := rejection(err); ok {
		return w.reject(ctx, err)
	}

	w.logger.Debug().Err(err).Msg("read failed")
	return EndIO
}

// reject reports a peer fault with ERRO and ends the session.
func (w *SoloWorker) reject(ctx context.Context, err error) string {
	reason, ok := rejection(err)
	if !ok {
		w.logger.Error().Err(err).Msg("session failed")
		return EndIO
	}

	w.logger.Warn().Str("reason", reason).Msg("rejecting client")
	emitProtocolError(ctx, w.bus, w.info.ID, w.conn.RemoteAddr().String(), reason)

	if err := w.send(protocol.ProtocolError(reason)); err != nil {
		w.logger.Debug().Err(err).Msg("failed to deliver error notice")
	}
	return EndProtocol
}

func (w *SoloWorker) send(msg protocol.Message) error {
	if err := w.conn.WriteMessage(msg); err != nil {
		return err
	}
	w.audit.Record(audit.Server, msg)
	return nil
}

func (w *SoloWorker) teardown(ctx context.Context, reason string) {
	ctx = context.WithoutCancel(ctx)

	w.conn.Close()
	w.session.Close(ctx)
	if err := w.audit.Close(); err != nil {
		w.logger.Warn().Err(err).Msg("failed to close audit log")
	}

	emitSessionEnded(ctx, w.bus, w.info, reason)
	w.logger.Info().Str("reason", reason).Msg("solo session ended")
}
