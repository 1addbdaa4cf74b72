package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scc-project/scc/internal/protocol"
)

// scriptedRand replays a fixed sequence of draws.
type scriptedRand struct {
	t      *testing.T
	values []int
}

func newScriptedRand(t *testing.T) *scriptedRand {
	return &scriptedRand{t: t}
}

// coin queues the outcome of a first-party draw.
func (r *scriptedRand) coin(v int) *scriptedRand {
	r.values = append(r.values, v)
	return r
}

// faces queues die faces (1..6) for the next rolls.
func (r *scriptedRand) faces(faces ...int) *scriptedRand {
	for _, f := range faces {
		r.values = append(r.values, f-1)
	}
	return r
}

func (r *scriptedRand) IntN(n int) int {
	r.t.Helper()
	require.NotEmpty(r.t, r.values, "random source exhausted")
	v := r.values[0]
	r.values = r.values[1:]
	require.Less(r.t, v, n)
	return v
}

func (r *scriptedRand) drained(t *testing.T) {
	t.Helper()
	assert.Empty(t, r.values, "unused random draws")
}

func assertMessages(t *testing.T, want, got []protocol.Message) {
	t.Helper()
	require.Len(t, got, len(want), "got %v", got)
	for i := range want {
		assert.True(t, want[i].Equal(got[i]), "message %d: want %s, got %s", i, want[i], got[i])
	}
}

func assertReplies(t *testing.T, want, got []Reply) {
	t.Helper()
	require.Len(t, got, len(want), "got %v", got)
	for i := range want {
		assert.Equal(t, want[i].To, got[i].To, "receiver of reply %d (%s)", i, got[i].Msg)
		assert.True(t, want[i].Msg.Equal(got[i].Msg), "reply %d: want %s, got %s", i, want[i].Msg, got[i].Msg)
	}
}

func requireActionError(t *testing.T, err error, reason string) {
	t.Helper()
	var ae *ActionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, reason, ae.Reason)
}
