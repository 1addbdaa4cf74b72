// Package network implements the game listener, the per-connection solo
// worker and the two-party synchronizer.
package network

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/scc-project/scc/internal/protocol"
)

const writeTimeout = 10 * time.Second

// aliveWait is how long Alive waits on the socket. It must be positive: an
// already expired deadline fails the read before the socket reports EOF.
const aliveWait = time.Millisecond

// ErrNoMessage is returned by ReadMessage when no byte of a new message
// arrived before the wait expired. Nothing was consumed and the read can be
// retried.
var ErrNoMessage = errors.New("no message before deadline")

var connSeq atomic.Uint64

// Connection wraps a client socket with the message codec. Reads are meant
// for a single goroutine; writes and Close may come from anywhere.
type Connection struct {
	mu      sync.Mutex
	id      uint64
	conn    net.Conn
	reader  *bufio.Reader
	decoder *protocol.Decoder
	encoder *protocol.Encoder
	logger  zerolog.Logger

	// frameTimeout bounds the rest of a message once its first byte is in.
	frameTimeout time.Duration

	connectedAt  time.Time
	lastActivity time.Time

	closed atomic.Bool
}

// NewConnection wraps an existing net.Conn.
func NewConnection(conn net.Conn, frameTimeout time.Duration) *Connection {
	now := time.Now()
	reader := bufio.NewReader(conn)
	id := connSeq.Add(1)
	return &Connection{
		id:           id,
		conn:         conn,
		reader:       reader,
		decoder:      protocol.NewDecoder(reader),
		encoder:      protocol.NewEncoder(conn),
		frameTimeout: frameTimeout,
		connectedAt:  now,
		lastActivity: now,
		logger: log.With().
			Str("component", "connection").
			Uint64("conn", id).
			Str("remote", conn.RemoteAddr().String()).
			Logger(),
	}
}

// ID returns the process-unique connection number.
func (c *Connection) ID() uint64 {
	return c.id
}

// ReadMessage waits up to wait for the next message; zero waits forever.
// It returns ErrNoMessage when the wait expires before the message starts.
// A deadline hit in the middle of a message is an I/O failure, as is any
// error from the socket. Malformed input yields a *protocol.SyntaxError.
func (c *Connection) ReadMessage(wait time.Duration) (protocol.Message, error) {
	c.setReadDeadline(wait)

	if _, err := c.reader.Peek(1); err != nil {
		if isTimeout(err) {
			return protocol.Message{}, ErrNoMessage
		}
		return protocol.Message{}, fmt.Errorf("failed to read message: %w", err)
	}

	c.setReadDeadline(c.frameTimeout)

	msg, err := c.decoder.Decode()
	if err != nil {
		var synErr *protocol.SyntaxError
		if errors.As(err, &synErr) {
			return protocol.Message{}, err
		}
		return protocol.Message{}, fmt.Errorf("failed to read message: %w", err)
	}

	c.mu.Lock()
	c.lastActivity = time.Now()
	c.mu.Unlock()

	return msg, nil
}

// Alive reports whether the peer still holds the connection open. Pending
// input counts as alive and stays buffered for the next ReadMessage. Only
// call it while no other goroutine reads from c.
func (c *Connection) Alive() bool {
	if c.closed.Load() {
		return false
	}
	c.setReadDeadline(aliveWait)
	defer c.setReadDeadline(0)

	_, err := c.reader.Peek(1)
	return err == nil || isTimeout(err)
}

func (c *Connection) setReadDeadline(d time.Duration) {
	var deadline time.Time
	if d > 0 {
		deadline = time.Now().Add(d)
	}
	c.conn.SetReadDeadline(deadline)
}

// WriteMessage encodes msg and sends it in a single write.
func (c *Connection) WriteMessage(msg protocol.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("connection is closed")
	}

	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.encoder.Encode(msg); err != nil {
		return fmt.Errorf("failed to write %s: %w", msg.Tag(), err)
	}

	c.lastActivity = time.Now()
	return nil
}

// Close closes the connection. It does not wait for a pending write, so it
// also unblocks a worker stuck on a slow peer.
func (c *Connection) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}

	c.logger.Debug().Msg("connection closed")
	return c.conn.Close()
}

// IsClosed returns whether the connection has been closed.
func (c *Connection) IsClosed() bool {
	return c.closed.Load()
}

// LastActivity returns the time of the last read/write activity.
func (c *Connection) LastActivity() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActivity
}

// ConnectedAt returns the time the connection was established.
func (c *Connection) ConnectedAt() time.Time {
	return c.connectedAt
}

// RemoteAddr returns the remote address of the connection.
func (c *Connection) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// ConnectionRegistry tracks open client connections so they can be closed
// together on shutdown.
type ConnectionRegistry struct {
	mu    sync.RWMutex
	conns map[uint64]*Connection
}

// NewConnectionRegistry creates a new ConnectionRegistry.
func NewConnectionRegistry() *ConnectionRegistry {
	return &ConnectionRegistry{
		conns: make(map[uint64]*Connection),
	}
}

// Register adds a connection to the registry.
func (r *ConnectionRegistry) Register(conn *Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[conn.ID()] = conn
}

// Unregister removes a connection from the registry and closes it.
func (r *ConnectionRegistry) Unregister(conn *Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.conns[conn.ID()]; ok {
		conn.Close()
		delete(r.conns, conn.ID())
	}
}

// Count returns the number of open connections.
func (r *ConnectionRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// CloseAll closes every registered connection.
func (r *ConnectionRegistry) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, conn := range r.conns {
		conn.Close()
		delete(r.conns, id)
	}

	log.Info().Msg("all connections closed")
}
