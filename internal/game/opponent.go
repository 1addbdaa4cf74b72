package game

import (
	"github.com/scc-project/scc/internal/protocol"
)

// FirstPassScore is the score above which the opponent stands when it
// plays first.
const FirstPassScore = 7

// Opponent is the built-in player of solo sessions.
type Opponent struct {
	rng Rand
}

// NewOpponent creates an opponent rolling with rng.
func NewOpponent(rng Rand) *Opponent {
	return &Opponent{rng: rng}
}

// ShouldPass decides whether to stand on score. Playing first it stands
// above FirstPassScore; playing second it stands once it beats target.
func ShouldPass(first bool, score, target int) bool {
	if first {
		return score > FirstPassScore
	}
	return score > target
}

// Play runs a whole turn for p and returns the messages it produced: a DICE
// per roll, a TAKE or PASS per decision and a final PNTS. target is the
// score to beat when playing second.
func (o *Opponent) Play(p *Player, first bool, target int) []protocol.Message {
	dice := p.Dice()
	var out []protocol.Message

	for dice.CanRoll() {
		if err := dice.Roll(o.rng); err != nil {
			break
		}
		out = append(out, protocol.Dice(p.ID, dice.Values()))

		taken := dice.TakeEligible()
		if !dice.CanRoll() {
			break
		}
		if ShouldPass(first, dice.Score(), target) {
			out = append(out, protocol.Pass(p.ID))
			break
		}
		out = append(out, protocol.Take(p.ID, taken))
	}

	return append(out, protocol.Points(p.ID, dice.Score()))
}
