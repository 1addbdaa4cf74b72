// Package game implements the Ship-Captain-Crew rules: the dice take order,
// players and their balances, and the session state machines for solo play
// against the built-in opponent and for two remote parties.
package game

import (
	"errors"
	"math/rand"
	"strings"
)

const (
	// NumDice is the number of dice a player rolls.
	NumDice = 5

	// MaxRolls is the number of rolls a player gets per hand.
	MaxRolls = 3
)

// Dice rule violations. The messages are sent to peers verbatim.
var (
	ErrNoMoreRolls     = errors.New("No more rolls allowed")
	ErrDieTaken        = errors.New("This dice cannot be taken")
	ErrIncorrectChoice = errors.New("Incorrect dice choice")
	ErrNoNextState     = errors.New("Next state not defined")
)

// Rand is the randomness source for rolls and first-party draws.
type Rand interface {
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) IntN(n int) int { return rand.Intn(n) }

// DefaultRand draws from the process-wide math/rand source.
var DefaultRand Rand = globalRand{}

// TakeState tracks which of ship (6), captain (5) and crew (4) have been set
// aside. It only moves forward.
type TakeState int

const (
	StateNone TakeState = iota
	StateShip
	StateCaptain
	StateCrew
)

var takeStates = [...]struct {
	name  string
	value int
	next  int
}{
	StateNone:    {"NONE", 0, 6},
	StateShip:    {"SHIP", 6, 5},
	StateCaptain: {"CAPTAIN", 5, 4},
	StateCrew:    {"CREW", 4, 0},
}

// Value is the die value this state represents, 0 for NONE.
func (s TakeState) Value() int { return takeStates[s].value }

// NextValue is the die value needed to leave this state, 0 for CREW.
func (s TakeState) NextValue() int { return takeStates[s].next }

func (s TakeState) String() string { return takeStates[s].name }

// Next returns the following state.
func (s TakeState) Next() (TakeState, error) {
	if s >= StateCrew {
		return s, ErrNoNextState
	}
	return s + 1, nil
}

// Die is a single die. Value is 0 until the first roll.
type Die struct {
	Taken bool
	Value int
}

// DiceSet is the five dice a player rolls during one hand.
type DiceSet struct {
	dice  [NumDice]Die
	rolls int
	state TakeState
}

// NewDiceSet returns a fresh, unrolled set.
func NewDiceSet() *DiceSet {
	return &DiceSet{}
}

// Roll rerolls every die that has not been taken.
func (d *DiceSet) Roll(rng Rand) error {
	if d.rolls >= MaxRolls {
		return ErrNoMoreRolls
	}
	for i := range d.dice {
		if !d.dice[i].Taken {
			d.dice[i].Value = rng.IntN(6) + 1
		}
	}
	d.rolls++
	return nil
}

// Observe records a roll made elsewhere: the values of the dice that have
// not been taken are replaced by those in values. Clients use it to mirror
// the server's dice.
func (d *DiceSet) Observe(values []int) error {
	if d.rolls >= MaxRolls {
		return ErrNoMoreRolls
	}
	if len(values) != NumDice {
		return ErrIncorrectChoice
	}
	for i := range d.dice {
		if !d.dice[i].Taken {
			d.dice[i].Value = values[i]
		}
	}
	d.rolls++
	return nil
}

// CanRoll reports whether rolls remain this hand.
func (d *DiceSet) CanRoll() bool {
	return d.rolls < MaxRolls
}

// Rolls returns how many times the set has been rolled.
func (d *DiceSet) Rolls() int {
	return d.rolls
}

// State returns the take-order progress.
func (d *DiceSet) State() TakeState {
	return d.state
}

// Values returns the current value of every die.
func (d *DiceSet) Values() []int {
	values := make([]int, NumDice)
	for i, die := range d.dice {
		values[i] = die.Value
	}
	return values
}

// Die returns the die at a 1-based position.
func (d *DiceSet) Die(pos int) Die {
	return d.dice[pos-1]
}

// Take sets aside the dice at the given 1-based positions. The positions are
// scanned repeatedly, each pass taking any die matching the value the take
// order currently needs, so [4 5 6] is as good as [6 5 4]. Every requested
// die must end up taken or nothing changes.
func (d *DiceSet) Take(positions []int) error {
	for _, p := range positions {
		if p < 1 || p > NumDice {
			return ErrIncorrectChoice
		}
		if d.dice[p-1].Taken {
			return ErrDieTaken
		}
	}

	dice, state := d.dice, d.state
	taken := 0
	for pass := 0; pass < len(positions) && taken < len(positions); pass++ {
		for _, p := range positions {
			die := &dice[p-1]
			if die.Taken || die.Value != state.NextValue() {
				continue
			}
			next, err := state.Next()
			if err != nil {
				return err
			}
			die.Taken = true
			state = next
			taken++
		}
	}
	if taken < len(positions) {
		return ErrIncorrectChoice
	}

	d.dice, d.state = dice, state
	return nil
}

// Eligible returns, in take order, the positions that would be set aside by
// taking every die the take order allows right now. It does not modify the
// set.
func (d *DiceSet) Eligible() []int {
	return eligible(d.dice, d.state)
}

func eligible(dice [NumDice]Die, state TakeState) []int {
	var positions []int
	for progress := true; progress && state != StateCrew; {
		progress = false
		for i := range dice {
			if state == StateCrew {
				break
			}
			if !dice[i].Taken && dice[i].Value == state.NextValue() {
				dice[i].Taken = true
				state, _ = state.Next()
				positions = append(positions, i+1)
				progress = true
			}
		}
	}
	return positions
}

// TakeEligible takes every die the take order allows and returns their
// positions.
func (d *DiceSet) TakeEligible() []int {
	positions := d.Eligible()
	if len(positions) > 0 {
		// Eligible positions are always a valid choice.
		_ = d.Take(positions)
	}
	return positions
}

// Score first takes every eligible die, then returns the sum of the dice
// left over once ship, captain and crew are all set aside, or 0 otherwise.
func (d *DiceSet) Score() int {
	if d.state != StateCrew {
		d.TakeEligible()
	}
	if d.state != StateCrew {
		return 0
	}
	sum := 0
	for _, die := range d.dice {
		if !die.Taken {
			sum += die.Value
		}
	}
	return sum
}

// Reset returns the set to its fresh state.
func (d *DiceSet) Reset() {
	*d = DiceSet{}
}

func (d *DiceSet) String() string {
	var sb strings.Builder
	for i, die := range d.dice {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteByte(byte('0' + die.Value))
		if die.Taken {
			sb.WriteByte('*')
		}
	}
	return sb.String()
}
