// Package audit records every message a session exchanges, one line per
// message, prefixed with the role of its sender.
package audit

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/scc-project/scc/internal/protocol"
)

// Role identifies who sent an audited message.
type Role int

const (
	Server Role = iota
	Client
	FirstClient
	SecondClient
)

// Prefix returns the role marker written in front of each line.
func (r Role) Prefix() string {
	switch r {
	case Server:
		return "S"
	case Client:
		return "C"
	case FirstClient:
		return "C1"
	case SecondClient:
		return "C2"
	default:
		return "?"
	}
}

// PartyRole maps a two-party session index to its role.
func PartyRole(party int) Role {
	if party == 0 {
		return FirstClient
	}
	return SecondClient
}

// Log is a per-session transcript. It is safe for concurrent use.
type Log struct {
	mu     sync.Mutex
	w      *bufio.Writer
	closer io.Closer
	path   string
	failed bool
	logger zerolog.Logger
}

// NewSessionID returns a fresh session identifier.
func NewSessionID() string {
	return uuid.NewString()
}

// Open creates <dir>/<sessionID>.log. An empty dir yields a Log that
// discards everything.
func Open(dir, sessionID string) (*Log, error) {
	if dir == "" {
		return Discard(), nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create audit directory %s: %w", dir, err)
	}

	path := filepath.Join(dir, sessionID+".log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log %s: %w", path, err)
	}

	l := New(f)
	l.closer = f
	l.path = path
	return l, nil
}

// New writes the transcript to w.
func New(w io.Writer) *Log {
	return &Log{
		w:      bufio.NewWriter(w),
		logger: log.With().Str("component", "audit").Logger(),
	}
}

// Discard returns a Log that writes nowhere.
func Discard() *Log {
	return New(io.Discard)
}

// Path returns the file backing the log, empty when not file based.
func (l *Log) Path() string {
	return l.path
}

// Record appends one line for m. Write failures are logged once and never
// interrupt the session.
func (l *Log) Record(role Role, m protocol.Message) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := fmt.Fprintf(l.w, "%s: %s\n", role.Prefix(), m); err != nil && !l.failed {
		l.failed = true
		l.logger.Warn().Err(err).Str("path", l.path).Msg("audit write failed")
	}
}

// Close flushes the transcript and closes the underlying file.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	err := l.w.Flush()
	if l.closer != nil {
		if cerr := l.closer.Close(); err == nil {
			err = cerr
		}
		l.closer = nil
	}
	if err != nil {
		return fmt.Errorf("failed to close audit log: %w", err)
	}
	return nil
}
