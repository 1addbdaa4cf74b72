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

// PairTiming controls how the synchronizer polls its two connections.
type PairTiming struct {
	// Attempt bounds a single read on one connection.
	Attempt time.Duration
	// Budget is the number of empty attempts tolerated between two
	// consumed messages.
	Budget int
	// Handshake is the number of empty attempts tolerated while waiting
	// for both opening messages.
	Handshake int
}

// PairWorker synchronizes two connections sharing one Duel. Party 0 is the
// first connection accepted. A single goroutine polls both sockets with
// short reads, so messages are handled one at a time and party 0 wins
// when both have one pending.
type PairWorker struct {
	conns   [2]*Connection
	duel    *game.Duel
	audit   *audit.Log
	bus     *events.EventBus
	info    SessionInfo
	timing  PairTiming
	pending [2]*protocol.Message
	logger  zerolog.Logger
}

// NewPairWorker wires two connections to a shared two-party session.
func NewPairWorker(info SessionInfo, first, second *Connection, duel *game.Duel, transcript *audit.Log, bus *events.EventBus, timing PairTiming) *PairWorker {
	return &PairWorker{
		conns:  [2]*Connection{first, second},
		duel:   duel,
		audit:  transcript,
		bus:    bus,
		info:   info,
		timing: timing,
		logger: log.With().
			Str("component", "pair_worker").
			Str("session", info.ID).
			Logger(),
	}
}

// Run drives the pair until one side leaves, misbehaves or both go quiet,
// and returns why the session ended.
func (w *PairWorker) Run(ctx context.Context) (reason string) {
	emitSessionStarted(ctx, w.bus, w.info)
	w.logger.Info().Strs("remotes", w.info.Remotes).Msg("pair session started")

	defer func() {
		w.teardown(ctx, reason)
	}()

	if reason, ok := w.handshake(ctx); !ok {
		return reason
	}

	for {
		party := w.nextPending()
		if party < 0 {
			if reason, ok := w.await(ctx); !ok {
				return reason
			}
			continue
		}

		msg := *w.pending[party]
		w.pending[party] = nil

		if reason, done := w.react(ctx, party, msg); done {
			return reason
		}
	}
}

// handshake waits until both parties have sent their opening message.
func (w *PairWorker) handshake(ctx context.Context) (string, bool) {
	attempts := 0
	for w.pending[0] == nil || w.pending[1] == nil {
		if ctx.Err() != nil {
			return EndShutdown, false
		}
		if attempts >= w.timing.Handshake {
			w.logger.Warn().Int("attempts", attempts).Msg("handshake timed out")
			w.broadcast(protocol.ProtocolError(NoticeTimeout))
			return EndTimeout, false
		}
		for party := range w.conns {
			if w.pending[party] != nil {
				continue
			}
			got, err := w.poll(party)
			if err != nil {
				return w.readFailed(ctx, party, err), false
			}
			if !got {
				attempts++
			}
		}
	}
	return "", true
}

// await polls party 0 then party 1 until one message arrives. The budget
// restarts every time a message has been handled.
func (w *PairWorker) await(ctx context.Context) (string, bool) {
	attempts := 0
	for {
		if ctx.Err() != nil {
			return EndShutdown, false
		}
		for party := range w.conns {
			if attempts >= w.timing.Budget {
				w.logger.Warn().Int("attempts", attempts).Msg("both parties idle")
				w.broadcast(protocol.ProtocolError(NoticeTimeout))
				return EndTimeout, false
			}
			got, err := w.poll(party)
			if err != nil {
				return w.readFailed(ctx, party, err), false
			}
			if got {
				return "", true
			}
			attempts++
		}
	}
}

func (w *PairWorker) nextPending() int {
	for party, msg := range w.pending {
		if msg != nil {
			return party
		}
	}
	return -1
}

// poll makes one bounded read attempt on party's connection.
func (w *PairWorker) poll(party int) (bool, error) {
	msg, err := w.conns[party].ReadMessage(w.timing.Attempt)
	if errors.Is(err, ErrNoMessage) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	w.audit.Record(audit.PartyRole(party), msg)
	w.pending[party] = &msg
	return true, nil
}

func (w *PairWorker) react(ctx context.Context, party int, msg protocol.Message) (string, bool) {
	replies, err := w.duel.Handle(ctx, msg, party)
	if err != nil {
		return w.reject(ctx, party, err), true
	}

	if reason, failed := w.route(replies); failed {
		return reason, true
	}

	switch msg.Tag() {
	case protocol.TagExit:
		w.logger.Info().Int("party", party).Msg("party left")
		w.notifyOther(party)
		return EndExit, true
	case protocol.TagErro:
		w.logger.Info().Int("party", party).Str("reason", msg.Reason()).Msg("party reported an error")
		w.notifyOther(party)
		return EndPeerError, true
	}
	return "", false
}

// route delivers every reply to the parties it names.
func (w *PairWorker) route(replies []game.Reply) (string, bool) {
	for _, reply := range replies {
		for party := range w.conns {
			if !reply.To.Includes(party) {
				continue
			}
			if err := w.send(party, reply.Msg); err != nil {
				w.logger.Warn().Err(err).Int("party", party).Msg("write failed")
				w.notifyOther(party)
				return EndIO, true
			}
		}
	}
	return "", false
}

func (w *PairWorker) readFailed(ctx context.Context, party int, err error) string {
	if ctx.Err() != nil || (w.conns[0].IsClosed() && w.conns[1].IsClosed()) {
		return EndShutdown
	}
	if _, ok := rejection(err); ok {
		return w.reject(ctx, party, err)
	}

	w.logger.Info().Err(err).Int("party", party).Msg("party disconnected")
	w.notifyOther(party)
	return EndIO
}

// reject reports a fault by party to both sides and ends the pair.
func (w *PairWorker) reject(ctx context.Context, party int, err error) string {
	reason, ok := rejection(err)
	if !ok {
		w.logger.Error().Err(err).Msg("session failed")
		w.broadcast(protocol.ProtocolError(NoticeDisconnected))
		return EndIO
	}

	w.logger.Warn().Int("party", party).Str("reason", reason).Msg("rejecting party")
	emitProtocolError(ctx, w.bus, w.info.ID, w.conns[party].RemoteAddr().String(), reason)

	w.broadcast(protocol.ProtocolError(reason))
	return EndProtocol
}

func (w *PairWorker) notifyOther(party int) {
	other := 1 - party
	if err := w.send(other, protocol.ProtocolError(NoticeDisconnected)); err != nil {
		w.logger.Debug().Err(err).Int("party", other).Msg("failed to deliver disconnect notice")
	}
}

func (w *PairWorker) broadcast(msg protocol.Message) {
	for party := range w.conns {
		if err := w.send(party, msg); err != nil {
			w.logger.Debug().Err(err).Int("party", party).Msg("failed to deliver notice")
		}
	}
}

func (w *PairWorker) send(party int, msg protocol.Message) error {
	if err := w.conns[party].WriteMessage(msg); err != nil {
		return err
	}
	w.audit.Record(audit.Server, msg)
	return nil
}

func (w *PairWorker) teardown(ctx context.Context, reason string) {
	ctx = context.WithoutCancel(ctx)

	for _, conn := range w.conns {
		conn.Close()
	}
	w.duel.Close(ctx)
	if err := w.audit.Close(); err != nil {
		w.logger.Warn().Err(err).Msg("failed to close audit log")
	}

	emitSessionEnded(ctx, w.bus, w.info, reason)
	w.logger.Info().Str("reason", reason).Msg("pair session ended")
}
