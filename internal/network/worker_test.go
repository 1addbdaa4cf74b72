package network

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scc-project/scc/internal/audit"
	"github.com/scc-project/scc/internal/events"
	"github.com/scc-project/scc/internal/game"
	"github.com/scc-project/scc/internal/protocol"
)

const houseID = 1212

func startSolo(t *testing.T, registry *game.Registry, readTimeout time.Duration, bus *events.EventBus) (*peer, <-chan string) {
	t.Helper()
	conn, client := pipe(t)
	info := SessionInfo{ID: audit.NewSessionID(), Mode: events.ModeSolo, StartedAt: time.Now()}
	session := game.NewSolo(registry, houseID, game.Options{SessionID: info.ID, Bus: bus})
	worker := NewSoloWorker(info, conn, session, audit.Discard(), bus, readTimeout)

	done := make(chan string, 1)
	go func() { done <- worker.Run(context.Background()) }()
	return client, done
}

func TestSoloWorkerPlaysAndExits(t *testing.T) {
	registry := game.NewRegistry(10)
	client, done := startSolo(t, registry, time.Second, nil)

	client.send(t, protocol.Start(5))
	assert.Equal(t, 10, client.next(t).Coins())

	client.send(t, protocol.Bet())
	loot := client.next(t)
	require.Equal(t, protocol.TagLoot, loot.Tag())
	assert.Equal(t, 2, loot.Coins())
	assert.Equal(t, protocol.TagPlay, client.next(t).Tag())

	// The house may have rolled first; the hand continues with our dice.
	for {
		msg := client.nextTag(t, protocol.TagDice)
		if msg.ID() == 5 {
			break
		}
	}

	client.send(t, protocol.Exit())
	assert.Equal(t, EndExit, wait(t, done))
	client.closed(t)

	p := registry.GetOrCreate(5)
	assert.False(t, registry.Connected(p))
	assert.Equal(t, 9, p.Gems())
}

func TestSoloWorkerRejectsUnknownCommand(t *testing.T) {
	client, done := startSolo(t, game.NewRegistry(10), time.Second, nil)

	client.sendRaw(t, "HELO")
	msg := client.next(t)
	require.Equal(t, protocol.TagErro, msg.Tag())
	assert.Equal(t, notice(protocol.ReasonUnknownCommand), msg.Reason())
	assert.Equal(t, EndProtocol, wait(t, done))
}

func TestSoloWorkerRejectsActionOutOfPhase(t *testing.T) {
	bus := events.NewEventBus()
	defer bus.Stop()

	reported := make(chan events.ProtocolErrorPayload, 1)
	bus.Subscribe(events.EventProtocolError, "test", func(_ context.Context, e events.Event) error {
		reported <- e.Payload.(events.ProtocolErrorPayload)
		return nil
	})

	client, done := startSolo(t, game.NewRegistry(10), time.Second, bus)

	client.send(t, protocol.Bet())
	msg := client.next(t)
	assert.Equal(t, notice(game.ReasonNoBetting), msg.Reason())
	assert.Equal(t, EndProtocol, wait(t, done))

	select {
	case p := <-reported:
		assert.Equal(t, game.ReasonNoBetting, p.Reason)
	case <-time.After(waitFor):
		t.Fatal("protocol.error not emitted")
	}
}

func TestSoloWorkerDropsIdleClient(t *testing.T) {
	client, done := startSolo(t, game.NewRegistry(10), 50*time.Millisecond, nil)

	assert.Equal(t, EndTimeout, wait(t, done))
	// No notice is sent; the socket is simply closed.
	client.closed(t)
}

func TestSoloWorkerSameIDTwice(t *testing.T) {
	registry := game.NewRegistry(10)
	first, _ := startSolo(t, registry, time.Second, nil)
	first.send(t, protocol.Start(3))
	first.next(t)

	second, done := startSolo(t, registry, time.Second, nil)
	second.send(t, protocol.Start(3))
	assert.Equal(t, notice(game.ReasonAlreadyPlaying), second.next(t).Reason())
	assert.Equal(t, EndProtocol, wait(t, done))
}

func startPair(t *testing.T, timing PairTiming) (*peer, *peer, <-chan string) {
	t.Helper()
	a, clientA := pipe(t)
	b, clientB := pipe(t)
	info := SessionInfo{ID: audit.NewSessionID(), Mode: events.ModeDuel, StartedAt: time.Now()}
	duel := game.NewDuel(game.NewRegistry(10), game.Options{SessionID: info.ID})
	worker := NewPairWorker(info, a, b, duel, audit.Discard(), nil, timing)

	done := make(chan string, 1)
	go func() { done <- worker.Run(context.Background()) }()
	return clientA, clientB, done
}

var fastTiming = PairTiming{Attempt: 10 * time.Millisecond, Budget: 20, Handshake: 20}

func joinPair(t *testing.T, a, b *peer) {
	t.Helper()
	a.send(t, protocol.Start(1))
	b.send(t, protocol.Start(2))
	assert.Equal(t, 10, a.next(t).Coins())
	assert.Equal(t, 10, b.next(t).Coins())
}

func TestPairWorkerExitNotifiesOpponent(t *testing.T) {
	a, b, done := startPair(t, PairTiming{Attempt: 10 * time.Millisecond, Budget: 500, Handshake: 500})
	joinPair(t, a, b)

	a.send(t, protocol.Exit())
	msg := b.next(t)
	require.Equal(t, protocol.TagErro, msg.Tag())
	assert.Equal(t, notice(NoticeDisconnected), msg.Reason())
	assert.Equal(t, EndExit, wait(t, done))
	a.closed(t)
	b.closed(t)
}

func TestPairWorkerBetHandsOutDice(t *testing.T) {
	a, b, done := startPair(t, PairTiming{Attempt: 10 * time.Millisecond, Budget: 500, Handshake: 500})
	joinPair(t, a, b)

	a.send(t, protocol.Bet())
	b.send(t, protocol.Bet())

	for _, p := range []*peer{a, b} {
		assert.Equal(t, 2, p.nextTag(t, protocol.TagLoot).Coins())
	}
	playA := a.nextTag(t, protocol.TagPlay).Player()
	playB := b.nextTag(t, protocol.TagPlay).Player()
	assert.Equal(t, 1, playA+playB, "exactly one party rolls first")

	firstID := 1
	if playB == 0 {
		firstID = 2
	}
	assert.Equal(t, firstID, a.nextTag(t, protocol.TagDice).ID())
	assert.Equal(t, firstID, b.nextTag(t, protocol.TagDice).ID())

	b.send(t, protocol.Exit())
	assert.Equal(t, EndExit, wait(t, done))
}

func TestPairWorkerHandshakeTimeout(t *testing.T) {
	a, b, done := startPair(t, PairTiming{Attempt: 10 * time.Millisecond, Budget: 20, Handshake: 20})

	a.send(t, protocol.Start(1))
	assert.Equal(t, notice(NoticeTimeout), a.next(t).Reason())
	assert.Equal(t, notice(NoticeTimeout), b.next(t).Reason())
	assert.Equal(t, EndTimeout, wait(t, done))
}

func TestPairWorkerIdleBudget(t *testing.T) {
	a, b, done := startPair(t, fastTiming)
	joinPair(t, a, b)

	assert.Equal(t, notice(NoticeTimeout), a.next(t).Reason())
	assert.Equal(t, notice(NoticeTimeout), b.next(t).Reason())
	assert.Equal(t, EndTimeout, wait(t, done))
}

func TestPairWorkerActionErrorReachesBoth(t *testing.T) {
	a, b, done := startPair(t, PairTiming{Attempt: 10 * time.Millisecond, Budget: 500, Handshake: 500})
	joinPair(t, a, b)

	b.send(t, protocol.Take(2, []int{1}))
	assert.Equal(t, notice(game.ReasonNoTaking), a.next(t).Reason())
	assert.Equal(t, notice(game.ReasonNoTaking), b.next(t).Reason())
	assert.Equal(t, EndProtocol, wait(t, done))
}

func TestPairWorkerDisconnect(t *testing.T) {
	a, b, done := startPair(t, PairTiming{Attempt: 10 * time.Millisecond, Budget: 500, Handshake: 500})
	joinPair(t, a, b)

	require.NoError(t, b.conn.Close())
	assert.Equal(t, notice(NoticeDisconnected), a.next(t).Reason())
	assert.Equal(t, EndIO, wait(t, done))
}

func TestConnectionReadTimeoutKeepsStream(t *testing.T) {
	conn, client := pipe(t)

	_, err := conn.ReadMessage(10 * time.Millisecond)
	require.ErrorIs(t, err, ErrNoMessage)

	go client.enc.Encode(protocol.Start(9))
	msg, err := conn.ReadMessage(time.Second)
	require.NoError(t, err)
	assert.Equal(t, 9, msg.ID())
}

func TestConnectionAlive(t *testing.T) {
	conn, client := pipe(t)
	assert.True(t, conn.Alive())

	// Pending input is kept for the next read.
	go client.enc.Encode(protocol.Start(5))
	assert.True(t, conn.Alive())
	msg, err := conn.ReadMessage(time.Second)
	require.NoError(t, err)
	assert.Equal(t, 5, msg.ID())

	client.conn.Close()
	assert.False(t, conn.Alive())
}

func TestConnectionAliveAfterClose(t *testing.T) {
	conn, _ := pipe(t)
	conn.Close()
	assert.False(t, conn.Alive())
}
