package network

import (
	"context"
	"fmt"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/scc-project/scc/internal/audit"
	"github.com/scc-project/scc/internal/config"
	"github.com/scc-project/scc/internal/events"
	"github.com/scc-project/scc/internal/game"
	"github.com/scc-project/scc/internal/util"
)

// TCPListener accepts game clients. In solo mode every connection gets its
// own worker against the built-in opponent; in two-party mode consecutive
// connections are paired.
type TCPListener struct {
	cfg      *config.Config
	eventBus *events.EventBus
	registry *game.Registry
	conns    *ConnectionRegistry
	logger   zerolog.Logger
	started  time.Time

	// Rand overrides dice rolls for every new session when set.
	Rand game.Rand

	mu       sync.Mutex
	listener net.Listener
	ready    chan struct{}
	waiting  *Connection
	sessions map[string]SessionInfo
	wg       sync.WaitGroup
}

// NewTCPListener creates a new TCP listener.
func NewTCPListener(cfg *config.Config, eventBus *events.EventBus, registry *game.Registry) *TCPListener {
	return &TCPListener{
		cfg:      cfg,
		eventBus: eventBus,
		registry: registry,
		conns:    NewConnectionRegistry(),
		logger:   log.With().Str("component", "tcp_listener").Logger(),
		started:  time.Now(),
		ready:    make(chan struct{}),
		sessions: make(map[string]SessionInfo),
	}
}

// Start listens and serves clients until ctx is cancelled. It returns once
// every session has been torn down.
func (l *TCPListener) Start(ctx context.Context) error {
	srv := l.cfg.GetServer()
	addr := srv.ListenAddr()

	lc := ReuseAddrListenConfig()
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to start TCP listener on %s: %w", addr, err)
	}

	l.mu.Lock()
	l.listener = ln
	l.mu.Unlock()
	close(l.ready)

	l.logger.Info().
		Str("addr", ln.Addr().String()).
		Int("mode", srv.Mode).
		Msg("TCP listener started")

	go func() {
		<-ctx.Done()
		ln.Close()
		l.conns.CloseAll()
	}()

	defer l.wg.Wait()

	for {
		rawConn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				l.logger.Info().Msg("TCP listener stopping")
				return nil
			default:
				l.logger.Error().Err(err).Msg("failed to accept connection")
				continue
			}
		}

		l.logger.Debug().
			Str("remote", rawConn.RemoteAddr().String()).
			Msg("new client connection")

		conn := NewConnection(rawConn, srv.FrameTimeout())
		l.conns.Register(conn)

		if srv.Mode == config.ModeDuel {
			l.pair(ctx, conn)
		} else {
			l.serveSolo(ctx, conn)
		}
	}
}

// Addr blocks until the listener is bound and returns its address.
func (l *TCPListener) Addr() net.Addr {
	<-l.ready
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.listener.Addr()
}

// Sessions returns the running sessions, oldest first.
func (l *TCPListener) Sessions() []SessionInfo {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]SessionInfo, 0, len(l.sessions))
	for _, s := range l.sessions {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out
}

// ConnectionCount returns the number of open client connections.
func (l *TCPListener) ConnectionCount() int {
	return l.conns.Count()
}

// Registry returns the player registry shared by every session.
func (l *TCPListener) Registry() *game.Registry {
	return l.registry
}

// Status returns a snapshot of the running server. Host metrics that cannot
// be read are reported as zero.
func (l *TCPListener) Status() events.ServerStatusPayload {
	srv := l.cfg.GetServer()

	status := events.ServerStatusPayload{
		Mode:           events.ModeSolo,
		Port:           srv.Port,
		Uptime:         time.Since(l.started).Truncate(time.Second),
		ActiveSessions: len(l.Sessions()),
	}
	if srv.Mode == config.ModeDuel {
		status.Mode = events.ModeDuel
	}

	for _, p := range l.registry.Snapshot() {
		status.PlayersKnown++
		if p.Connected {
			status.PlayersConnected++
		}
	}

	if cpu, err := util.GetCPUUsage(); err == nil {
		status.CPUPercent = cpu
	}
	if mem, err := util.GetMemoryUsage(); err == nil {
		status.MemoryPercent = mem
	}
	return status
}

// Stop closes the listening socket.
func (l *TCPListener) Stop() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.listener != nil {
		return l.listener.Close()
	}
	return nil
}

func (l *TCPListener) serveSolo(ctx context.Context, conn *Connection) {
	srv := l.cfg.GetServer()

	info := l.newSession(events.ModeSolo, conn)
	transcript := l.openAudit(srv.AuditDirectory, info.ID)

	// The house plays under the server port.
	session := game.NewSolo(l.registry, srv.Port, l.sessionOptions(info.ID))
	worker := NewSoloWorker(info, conn, session, transcript, l.eventBus, srv.SoloReadTimeout())

	l.run(ctx, info, func(ctx context.Context) { worker.Run(ctx) }, conn)
}

// pair holds the first connection until a partner arrives. A waiting
// client that hung up in the meantime is dropped and conn waits instead.
func (l *TCPListener) pair(ctx context.Context, conn *Connection) {
	l.mu.Lock()
	first := l.waiting
	if first != nil && !first.Alive() {
		l.logger.Info().Str("remote", first.RemoteAddr().String()).Msg("waiting player left before pairing")
		l.conns.Unregister(first)
		first.Close()
		first = nil
	}
	if first == nil {
		l.waiting = conn
		l.mu.Unlock()
		l.logger.Info().Str("remote", conn.RemoteAddr().String()).Msg("waiting for a second player")
		return
	}
	l.waiting = nil
	l.mu.Unlock()

	srv := l.cfg.GetServer()
	info := l.newSession(events.ModeDuel, first, conn)
	transcript := l.openAudit(srv.AuditDirectory, info.ID)

	duel := game.NewDuel(l.registry, l.sessionOptions(info.ID))
	worker := NewPairWorker(info, first, conn, duel, transcript, l.eventBus, PairTiming{
		Attempt:   srv.PairAttemptTimeout(),
		Budget:    srv.PairTimeoutBudget,
		Handshake: srv.HandshakeBudget,
	})

	l.run(ctx, info, func(ctx context.Context) { worker.Run(ctx) }, first, conn)
}

func (l *TCPListener) run(ctx context.Context, info SessionInfo, work func(context.Context), conns ...*Connection) {
	l.mu.Lock()
	l.sessions[info.ID] = info
	l.mu.Unlock()

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		defer func() {
			l.mu.Lock()
			delete(l.sessions, info.ID)
			l.mu.Unlock()
			for _, c := range conns {
				l.conns.Unregister(c)
			}
		}()
		work(ctx)
	}()
}

func (l *TCPListener) newSession(mode events.Mode, conns ...*Connection) SessionInfo {
	remotes := make([]string, len(conns))
	for i, c := range conns {
		remotes[i] = c.RemoteAddr().String()
	}
	return SessionInfo{
		ID:        audit.NewSessionID(),
		Mode:      mode,
		Remotes:   remotes,
		StartedAt: time.Now(),
	}
}

func (l *TCPListener) sessionOptions(sessionID string) game.Options {
	return game.Options{
		SessionID: sessionID,
		Bet:       l.cfg.GetGame().Bet,
		Rand:      l.Rand,
		Bus:       l.eventBus,
	}
}

func (l *TCPListener) openAudit(dir, sessionID string) *audit.Log {
	transcript, err := audit.Open(dir, sessionID)
	if err != nil {
		l.logger.Warn().Err(err).Str("session", sessionID).Msg("audit disabled for session")
		return audit.Discard()
	}
	return transcript
}
