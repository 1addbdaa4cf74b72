package game

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/scc-project/scc/internal/events"
	"github.com/scc-project/scc/internal/protocol"
)

// Solo is the state machine of a game between one connection and the
// built-in opponent. It is not safe for concurrent use; one connection
// worker owns it.
type Solo struct {
	registry *Registry
	opts     Options
	bot      *Opponent
	logger   zerolog.Logger

	phase          Phase
	loot           int
	firstParty     int
	opponentPlayed bool
	human          *Player
	opponent       *Player
}

// NewSolo creates a solo session. The built-in opponent plays under
// opponentID and is not part of the registry.
func NewSolo(registry *Registry, opponentID int, opts Options) *Solo {
	opts = opts.withDefaults()
	return &Solo{
		registry: registry,
		opts:     opts,
		bot:      NewOpponent(opts.Rand),
		logger: log.With().
			Str("component", "solo").
			Str("session", opts.SessionID).
			Logger(),
		phase:    PhaseWaiting,
		opponent: NewPlayer(opponentID, 0),
	}
}

// Phase returns the current phase.
func (s *Solo) Phase() Phase { return s.phase }

// Loot returns the amount at stake.
func (s *Solo) Loot() int { return s.loot }

// Player returns the attached human player, nil before STRT.
func (s *Solo) Player() *Player { return s.human }

// Handle applies msg and returns the replies to send, in order.
func (s *Solo) Handle(ctx context.Context, msg protocol.Message) ([]protocol.Message, error) {
	switch msg.Tag() {
	case protocol.TagStrt:
		return s.start(ctx, msg.ID())
	case protocol.TagBett:
		return s.bet()
	case protocol.TagTake:
		return s.take(ctx, msg.Dice())
	case protocol.TagPass:
		return s.pass(ctx)
	case protocol.TagErro:
		s.logger.Info().Str("reason", msg.Reason()).Msg("client reported an error")
		return nil, nil
	case protocol.TagExit:
		return nil, nil
	default:
		return nil, actionError(ReasonNotExpected)
	}
}

func (s *Solo) start(ctx context.Context, id int) ([]protocol.Message, error) {
	if s.phase != PhaseWaiting {
		return nil, actionError(ReasonAlreadyStarted)
	}
	p, err := s.registry.Attach(id)
	if err != nil {
		return nil, err
	}
	p.NewDice()
	s.human = p
	s.phase = PhaseStarted

	s.logger.Info().Int("player", id).Int("gems", p.Gems()).Msg("player attached")
	emitAttached(ctx, s.opts.Bus, s.opts.SessionID, p)

	return []protocol.Message{protocol.Cash(p.Gems())}, nil
}

func (s *Solo) bet() ([]protocol.Message, error) {
	if s.phase != PhaseStarted {
		return nil, actionError(ReasonNoBetting)
	}
	if err := s.human.Bet(s.opts.Bet); err != nil {
		return nil, asActionError(err)
	}
	s.loot += 2 * s.opts.Bet

	out := []protocol.Message{protocol.Loot(s.loot)}

	s.firstParty = s.opts.Rand.IntN(2)
	out = append(out, protocol.Play(s.firstParty))

	s.opponentPlayed = s.firstParty == 1
	if s.opponentPlayed {
		out = append(out, s.bot.Play(s.opponent, true, 0)...)
	}

	dice := s.human.Dice()
	if err := dice.Roll(s.opts.Rand); err != nil {
		return nil, asActionError(err)
	}
	out = append(out, protocol.Dice(s.human.ID, dice.Values()))

	s.phase = PhaseBet
	return out, nil
}

func (s *Solo) take(ctx context.Context, positions []int) ([]protocol.Message, error) {
	if s.phase != PhaseBet {
		return nil, actionError(ReasonNoTaking)
	}
	dice := s.human.Dice()
	if err := dice.Take(positions); err != nil {
		return nil, asActionError(err)
	}
	if err := dice.Roll(s.opts.Rand); err != nil {
		return nil, asActionError(err)
	}

	out := []protocol.Message{protocol.Dice(s.human.ID, dice.Values())}
	if !dice.CanRoll() {
		out = append(out, s.finish(ctx)...)
	}
	return out, nil
}

func (s *Solo) pass(ctx context.Context) ([]protocol.Message, error) {
	if s.phase != PhaseBet {
		return nil, actionError(ReasonNoPassing)
	}
	if s.human.Dice().Score() < 2 {
		return nil, actionError(ReasonPassTooLow)
	}
	return s.finish(ctx), nil
}

// finish scores the hand, lets the opponent play if it has not, settles the
// loot and returns to PhaseStarted.
func (s *Solo) finish(ctx context.Context) []protocol.Message {
	humanScore := s.human.Dice().Score()
	out := []protocol.Message{protocol.Points(s.human.ID, humanScore)}

	if !s.opponentPlayed {
		out = append(out, s.bot.Play(s.opponent, false, humanScore)...)
		s.opponentPlayed = true
	}
	opponentScore := s.opponent.Dice().Score()

	loot := s.loot
	w := winner(humanScore, opponentScore)
	switch w {
	case 0:
		s.human.Win(s.loot)
		s.loot = 0
	case 1:
		s.opponent.Win(s.loot)
		s.loot = 0
	}

	s.human.NewDice()
	s.opponent.NewDice()
	s.phase = PhaseStarted

	s.logger.Debug().
		Int("score", humanScore).
		Int("opponent_score", opponentScore).
		Int("winner", w).
		Msg("hand finished")

	emitHand(ctx, s.opts.Bus, events.HandResultPayload{
		SessionID: s.opts.SessionID,
		Mode:      events.ModeSolo,
		PlayerIDs: [2]int{s.human.ID, s.opponent.ID},
		Scores:    [2]int{humanScore, opponentScore},
		Balances:  [2]int{s.human.Gems(), s.opponent.Gems()},
		Winner:    w,
		Loot:      loot,
		Bet:       s.opts.Bet,
	})

	return append(out, protocol.Wins(w), protocol.Cash(s.human.Gems()))
}

// Close releases the attached player.
func (s *Solo) Close(ctx context.Context) {
	if s.human == nil {
		return
	}
	s.registry.Release(s.human)
	emitReleased(ctx, s.opts.Bus, s.opts.SessionID, s.human)
}
