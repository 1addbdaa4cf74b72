package network

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/scc-project/scc/internal/protocol"
)

const waitFor = 3 * time.Second

// peer is the client end of a pipe, with messages decoded in the
// background so the server never blocks on a write.
type peer struct {
	conn net.Conn
	enc  *protocol.Encoder
	msgs chan protocol.Message
}

func newPeer(conn net.Conn) *peer {
	p := &peer{
		conn: conn,
		enc:  protocol.NewEncoder(conn),
		msgs: make(chan protocol.Message, 64),
	}
	go func() {
		defer close(p.msgs)
		dec := protocol.NewDecoder(conn)
		for {
			msg, err := dec.Decode()
			if err != nil {
				return
			}
			p.msgs <- msg
		}
	}()
	return p
}

// pipe returns a server side Connection and its client peer.
func pipe(t *testing.T) (*Connection, *peer) {
	t.Helper()
	server, client := net.Pipe()
	t.Cleanup(func() {
		server.Close()
		client.Close()
	})
	return NewConnection(server, time.Second), newPeer(client)
}

func (p *peer) send(t *testing.T, msg protocol.Message) {
	t.Helper()
	require.NoError(t, p.enc.Encode(msg))
}

func (p *peer) sendRaw(t *testing.T, data string) {
	t.Helper()
	_, err := p.conn.Write([]byte(data))
	require.NoError(t, err)
}

func (p *peer) next(t *testing.T) protocol.Message {
	t.Helper()
	select {
	case msg, ok := <-p.msgs:
		require.True(t, ok, "connection closed before the next message")
		return msg
	case <-time.After(waitFor):
		t.Fatal("no message received")
		return protocol.Message{}
	}
}

// nextTag skips messages until one carries tag.
func (p *peer) nextTag(t *testing.T, tag protocol.Tag) protocol.Message {
	t.Helper()
	for {
		if msg := p.next(t); msg.Tag() == tag {
			return msg
		}
	}
}

// closed waits for the server to hang up.
func (p *peer) closed(t *testing.T) {
	t.Helper()
	deadline := time.After(waitFor)
	for {
		select {
		case _, ok := <-p.msgs:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("connection still open")
		}
	}
}

func wait(t *testing.T, done <-chan string) string {
	t.Helper()
	select {
	case reason := <-done:
		return reason
	case <-time.After(waitFor):
		t.Fatal("worker did not finish")
		return ""
	}
}

// notice returns the body of an ERRO sent for reason.
func notice(reason string) string {
	return protocol.ErrorPrefix + reason
}
