package game

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/scc-project/scc/internal/events"
	"github.com/scc-project/scc/internal/protocol"
)

// undetermined marks that no party holds the turn.
const undetermined = -1

// Duel is the state machine of a game between two connections, called
// party 0 and party 1. Replies carry the receiver they are meant for. It
// is not safe for concurrent use; the pair synchronizer owns it.
type Duel struct {
	registry *Registry
	opts     Options
	logger   zerolog.Logger

	phase   Phase
	loot    int
	turn    int
	players [2]*Player
	betting [2]bool
}

// NewDuel creates a two-party session.
func NewDuel(registry *Registry, opts Options) *Duel {
	opts = opts.withDefaults()
	return &Duel{
		registry: registry,
		opts:     opts,
		logger: log.With().
			Str("component", "duel").
			Str("session", opts.SessionID).
			Logger(),
		phase: PhaseWaiting,
		turn:  undetermined,
	}
}

// Phase returns the current phase.
func (d *Duel) Phase() Phase { return d.phase }

// Loot returns the amount at stake.
func (d *Duel) Loot() int { return d.loot }

// Turn returns the party allowed to TAKE or PASS, or -1 between hands.
func (d *Duel) Turn() int { return d.turn }

// Players returns the attached players indexed by party.
func (d *Duel) Players() [2]*Player { return d.players }

// Handle applies msg received from party (0 or 1) and returns the replies.
func (d *Duel) Handle(ctx context.Context, msg protocol.Message, party int) ([]Reply, error) {
	switch msg.Tag() {
	case protocol.TagStrt:
		return d.start(ctx, party, msg.ID())
	case protocol.TagBett:
		return d.bet(party)
	case protocol.TagTake:
		return d.take(ctx, party, msg.Dice())
	case protocol.TagPass:
		return d.pass(ctx, party)
	case protocol.TagErro:
		d.logger.Info().Int("party", party).Str("reason", msg.Reason()).Msg("client reported an error")
		return nil, nil
	case protocol.TagExit:
		return nil, nil
	default:
		return nil, actionError(ReasonNotExpected)
	}
}

func (d *Duel) start(ctx context.Context, party, id int) ([]Reply, error) {
	if d.phase != PhaseWaiting || d.players[party] != nil {
		return nil, actionError(ReasonAlreadyStarted)
	}
	p, err := d.registry.Attach(id)
	if err != nil {
		return nil, err
	}
	p.NewDice()
	d.players[party] = p

	d.logger.Info().Int("party", party).Int("player", id).Msg("player attached")
	emitAttached(ctx, d.opts.Bus, d.opts.SessionID, p)

	if d.players[1-party] == nil {
		return nil, nil
	}

	d.phase = PhaseStarted
	d.turn = undetermined
	return []Reply{
		{To: ToFirst, Msg: protocol.Cash(d.players[0].Gems())},
		{To: ToSecond, Msg: protocol.Cash(d.players[1].Gems())},
	}, nil
}

func (d *Duel) bet(party int) ([]Reply, error) {
	if d.phase != PhaseStarted || d.betting[party] {
		return nil, actionError(ReasonNoBetting)
	}
	if err := d.players[party].Bet(d.opts.Bet); err != nil {
		return nil, asActionError(err)
	}
	d.loot += d.opts.Bet
	d.betting[party] = true

	if !d.betting[1-party] {
		return nil, nil
	}
	d.betting = [2]bool{}

	first := d.opts.Rand.IntN(2)
	d.turn = first

	out := []Reply{
		{To: ToBoth, Msg: protocol.Loot(d.loot)},
		{To: To(first), Msg: protocol.Play(0)},
		{To: To(1 - first), Msg: protocol.Play(1)},
	}

	p := d.players[first]
	if err := p.Dice().Roll(d.opts.Rand); err != nil {
		return nil, asActionError(err)
	}
	out = append(out, Reply{To: ToBoth, Msg: protocol.Dice(p.ID, p.Dice().Values())})

	d.phase = PhaseBet
	return out, nil
}

// checkTurn validates that party may act on its dice now.
func (d *Duel) checkTurn(party int, reason string) error {
	if d.phase != PhaseBet && d.phase != PhasePlayer1 {
		return actionError(reason)
	}
	if party != d.turn {
		return actionError(ReasonNotYourTurn)
	}
	return nil
}

func (d *Duel) take(ctx context.Context, party int, positions []int) ([]Reply, error) {
	if err := d.checkTurn(party, ReasonNoTaking); err != nil {
		return nil, err
	}
	p := d.players[party]
	dice := p.Dice()
	if err := dice.Take(positions); err != nil {
		return nil, asActionError(err)
	}
	if err := dice.Roll(d.opts.Rand); err != nil {
		return nil, asActionError(err)
	}

	out := []Reply{{To: ToBoth, Msg: protocol.Dice(p.ID, dice.Values())}}
	if dice.CanRoll() {
		return out, nil
	}
	next, err := d.endTurn(ctx)
	if err != nil {
		return nil, err
	}
	return append(out, next...), nil
}

func (d *Duel) pass(ctx context.Context, party int) ([]Reply, error) {
	if err := d.checkTurn(party, ReasonNoPassing); err != nil {
		return nil, err
	}
	if d.players[party].Dice().Score() < 2 {
		return nil, actionError(ReasonPassTooLow)
	}
	return d.endTurn(ctx)
}

// endTurn closes the turn of the current party: either the other party
// starts rolling or, if it already has, the hand is settled.
func (d *Duel) endTurn(ctx context.Context) ([]Reply, error) {
	if d.phase == PhasePlayer1 {
		return d.finish(ctx), nil
	}

	current := d.players[d.turn]
	out := []Reply{{To: ToBoth, Msg: protocol.Points(current.ID, current.Dice().Score())}}

	d.turn = 1 - d.turn
	next := d.players[d.turn]
	if err := next.Dice().Roll(d.opts.Rand); err != nil {
		return nil, asActionError(err)
	}
	out = append(out, Reply{To: ToBoth, Msg: protocol.Dice(next.ID, next.Dice().Values())})

	d.phase = PhasePlayer1
	return out, nil
}

func (d *Duel) finish(ctx context.Context) []Reply {
	last := d.players[d.turn]
	out := []Reply{{To: ToBoth, Msg: protocol.Points(last.ID, last.Dice().Score())}}

	p0, p1 := d.players[0], d.players[1]
	s0, s1 := p0.Dice().Score(), p1.Dice().Score()

	loot := d.loot
	w := winner(s0, s1)
	switch w {
	case 0:
		p0.Win(d.loot)
		d.loot = 0
		out = append(out, Reply{To: ToFirst, Msg: protocol.Wins(0)}, Reply{To: ToSecond, Msg: protocol.Wins(1)})
	case 1:
		p1.Win(d.loot)
		d.loot = 0
		out = append(out, Reply{To: ToFirst, Msg: protocol.Wins(1)}, Reply{To: ToSecond, Msg: protocol.Wins(0)})
	default:
		out = append(out, Reply{To: ToBoth, Msg: protocol.Wins(2)})
	}

	p0.NewDice()
	p1.NewDice()
	d.phase = PhaseStarted
	d.turn = undetermined

	d.logger.Debug().Int("score0", s0).Int("score1", s1).Int("winner", w).Msg("hand finished")

	emitHand(ctx, d.opts.Bus, events.HandResultPayload{
		SessionID: d.opts.SessionID,
		Mode:      events.ModeDuel,
		PlayerIDs: [2]int{p0.ID, p1.ID},
		Scores:    [2]int{s0, s1},
		Balances:  [2]int{p0.Gems(), p1.Gems()},
		Winner:    w,
		Loot:      loot,
		Bet:       d.opts.Bet,
	})

	return append(out,
		Reply{To: ToFirst, Msg: protocol.Cash(p0.Gems())},
		Reply{To: ToSecond, Msg: protocol.Cash(p1.Gems())},
	)
}

// Close releases both attached players.
func (d *Duel) Close(ctx context.Context) {
	for _, p := range d.players {
		if p == nil {
			continue
		}
		d.registry.Release(p)
		emitReleased(ctx, d.opts.Bus, d.opts.SessionID, p)
	}
}
