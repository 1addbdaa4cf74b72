package game

import (
	"sync"
)

const (
	// DefaultInitialGems is the balance of a newly seen player id.
	DefaultInitialGems = 10

	// DefaultBet is what each party stakes per hand.
	DefaultBet = 1
)

// Player is a participant known by its integer id. Its balance survives
// across sessions for the life of the process.
type Player struct {
	ID int

	mu   sync.Mutex
	gems int
	dice *DiceSet

	// connected is guarded by the owning Registry.
	connected bool
}

// NewPlayer creates a player with the given balance.
func NewPlayer(id, gems int) *Player {
	return &Player{ID: id, gems: gems, dice: NewDiceSet()}
}

// Gems returns the current balance.
func (p *Player) Gems() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.gems
}

// Bet removes amount from the balance.
func (p *Player) Bet(amount int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.gems-amount < 0 {
		return ErrNoCash
	}
	p.gems -= amount
	return nil
}

// Win adds amount to the balance.
func (p *Player) Win(amount int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.gems += amount
}

// Dice returns the player's dice for the current hand.
func (p *Player) Dice() *DiceSet {
	return p.dice
}

// NewDice replaces the dice with a fresh set.
func (p *Player) NewDice() {
	p.dice = NewDiceSet()
}
