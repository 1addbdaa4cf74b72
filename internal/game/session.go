package game

import (
	"context"
	"time"

	"github.com/scc-project/scc/internal/events"
	"github.com/scc-project/scc/internal/protocol"
)

// Phase is the position of a session in the hand cycle.
type Phase int

const (
	PhaseWaiting Phase = iota // no STRT handled yet
	PhaseStarted              // between hands, waiting for bets
	PhaseBet                  // first party rolling
	PhasePlayer1              // second party rolling (two-party only)
)

func (p Phase) String() string {
	switch p {
	case PhaseWaiting:
		return "WAITING"
	case PhaseStarted:
		return "STARTED"
	case PhaseBet:
		return "BET"
	case PhasePlayer1:
		return "PLAYER1"
	default:
		return "UNKNOWN"
	}
}

// Receiver selects which connection of a two-party session gets a reply.
type Receiver int

const (
	ToFirst  Receiver = 0
	ToSecond Receiver = 1
	ToBoth   Receiver = 2
)

// To returns the receiver addressing a single party.
func To(party int) Receiver {
	return Receiver(party)
}

// Includes reports whether party must receive a reply sent to r.
func (r Receiver) Includes(party int) bool {
	return r == ToBoth || int(r) == party
}

// Reply is an outgoing message with its destination.
type Reply struct {
	To  Receiver
	Msg protocol.Message
}

// Options configures a session.
type Options struct {
	SessionID string
	// Bet is staked by each party per hand.
	Bet int
	// Rand drives dice rolls and the choice of first party.
	Rand Rand
	// Bus receives player and hand events; nil drops them.
	Bus *events.EventBus
}

func (o Options) withDefaults() Options {
	if o.Bet <= 0 {
		o.Bet = DefaultBet
	}
	if o.Rand == nil {
		o.Rand = DefaultRand
	}
	return o
}

func emitAttached(ctx context.Context, bus *events.EventBus, sessionID string, p *Player) {
	bus.Emit(ctx, events.Event{
		Type:   events.EventPlayerAttached,
		Source: "game",
		Payload: events.PlayerPayload{
			SessionID: sessionID,
			PlayerID:  p.ID,
			Gems:      p.Gems(),
		},
	})
}

func emitReleased(ctx context.Context, bus *events.EventBus, sessionID string, p *Player) {
	bus.Emit(ctx, events.Event{
		Type:   events.EventPlayerReleased,
		Source: "game",
		Payload: events.PlayerPayload{
			SessionID: sessionID,
			PlayerID:  p.ID,
			Gems:      p.Gems(),
		},
	})
}

func emitHand(ctx context.Context, bus *events.EventBus, result events.HandResultPayload) {
	result.FinishedAt = time.Now()
	bus.Emit(ctx, events.Event{
		Type:    events.EventHandFinished,
		Source:  "game",
		Payload: result,
	})
}

// winner compares two scores: 0 or 1 for the higher party, 2 for a tie.
func winner(first, second int) int {
	switch {
	case first > second:
		return 0
	case first < second:
		return 1
	default:
		return 2
	}
}
