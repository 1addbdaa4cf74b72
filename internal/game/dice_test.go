package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rolled(t *testing.T, faces ...int) *DiceSet {
	t.Helper()
	d := NewDiceSet()
	require.NoError(t, d.Roll(newScriptedRand(t).faces(faces...)))
	return d
}

func TestTakeState_Order(t *testing.T) {
	tests := []struct {
		state TakeState
		value int
		next  int
	}{
		{StateNone, 0, 6},
		{StateShip, 6, 5},
		{StateCaptain, 5, 4},
		{StateCrew, 4, 0},
	}
	for _, tt := range tests {
		t.Run(tt.state.String(), func(t *testing.T) {
			assert.Equal(t, tt.value, tt.state.Value())
			assert.Equal(t, tt.next, tt.state.NextValue())
		})
	}

	_, err := StateCrew.Next()
	assert.ErrorIs(t, err, ErrNoNextState)
}

func TestDiceSet_TakeShipCaptainCrew(t *testing.T) {
	d := rolled(t, 6, 5, 4, 2, 2)

	require.NoError(t, d.Take([]int{1, 2, 3}))
	assert.Equal(t, StateCrew, d.State())
	assert.Equal(t, 4, d.Score())
}

func TestDiceSet_TakeInAnyListedOrder(t *testing.T) {
	d := rolled(t, 4, 5, 6, 1, 3)

	require.NoError(t, d.Take([]int{1, 2, 3}))
	assert.Equal(t, StateCrew, d.State())
	assert.Equal(t, 4, d.Score())
}

func TestDiceSet_TakeOutOfOrderFails(t *testing.T) {
	d := rolled(t, 6, 5, 4, 2, 2)

	assert.ErrorIs(t, d.Take([]int{2}), ErrIncorrectChoice)
	assert.Equal(t, StateNone, d.State())
	assert.False(t, d.Die(2).Taken)

	assert.ErrorIs(t, d.Take([]int{1, 4}), ErrIncorrectChoice)
	assert.False(t, d.Die(1).Taken, "failed take must not change the set")
}

func TestDiceSet_TakeAlreadyTaken(t *testing.T) {
	d := rolled(t, 6, 5, 4, 2, 2)
	require.NoError(t, d.Take([]int{1}))

	assert.ErrorIs(t, d.Take([]int{1}), ErrDieTaken)
}

func TestDiceSet_TakeNothing(t *testing.T) {
	d := rolled(t, 1, 1, 1, 1, 1)
	assert.NoError(t, d.Take(nil))
	assert.Equal(t, StateNone, d.State())
}

func TestDiceSet_RollLimit(t *testing.T) {
	d := NewDiceSet()
	rng := newScriptedRand(t).faces(1, 1, 1, 1, 1, 2, 2, 2, 2, 2, 3, 3, 3, 3, 3)
	for i := 0; i < MaxRolls; i++ {
		require.True(t, d.CanRoll())
		require.NoError(t, d.Roll(rng))
	}

	assert.False(t, d.CanRoll())
	assert.ErrorIs(t, d.Roll(rng), ErrNoMoreRolls)
	assert.Equal(t, MaxRolls, d.Rolls())
	rng.drained(t)
}

func TestDiceSet_TakenDiceKeepTheirValue(t *testing.T) {
	d := rolled(t, 6, 1, 1, 1, 1)
	require.NoError(t, d.Take([]int{1}))

	require.NoError(t, d.Roll(newScriptedRand(t).faces(2, 3, 4, 5)))
	assert.Equal(t, []int{6, 2, 3, 4, 5}, d.Values())
}

func TestDiceSet_ScoreTakesEligibleDice(t *testing.T) {
	d := rolled(t, 3, 4, 6, 3, 5)

	assert.Equal(t, 6, d.Score())
	assert.Equal(t, StateCrew, d.State())
	assert.True(t, d.Die(2).Taken)
	assert.True(t, d.Die(3).Taken)
	assert.True(t, d.Die(5).Taken)
}

func TestDiceSet_ScoreWithoutCrewIsZero(t *testing.T) {
	d := rolled(t, 6, 6, 5, 1, 1)

	assert.Equal(t, 0, d.Score())
	assert.Equal(t, StateCaptain, d.State())
}

func TestDiceSet_EligibleDoesNotTake(t *testing.T) {
	d := rolled(t, 4, 6, 5, 6, 2)

	assert.Equal(t, []int{2, 3, 1}, d.Eligible())
	assert.Equal(t, StateNone, d.State())

	assert.Equal(t, []int{2, 3, 1}, d.TakeEligible())
	assert.Equal(t, StateCrew, d.State())
	assert.Empty(t, d.Eligible())
}

func TestDiceSet_Reset(t *testing.T) {
	d := rolled(t, 6, 5, 4, 2, 2)
	d.Score()
	d.Reset()

	assert.Equal(t, 0, d.Rolls())
	assert.Equal(t, StateNone, d.State())
	assert.Equal(t, []int{0, 0, 0, 0, 0}, d.Values())
}

func TestDiceSet_ObserveMirrorsRemoteRolls(t *testing.T) {
	d := NewDiceSet()
	require.NoError(t, d.Observe([]int{6, 1, 1, 1, 1}))
	require.NoError(t, d.Take([]int{1}))

	// The taken ship keeps its value whatever the server reports.
	require.NoError(t, d.Observe([]int{3, 5, 4, 2, 3}))
	assert.Equal(t, []int{6, 5, 4, 2, 3}, d.Values())
	assert.Equal(t, []int{2, 3}, d.Eligible())

	require.NoError(t, d.Observe([]int{6, 5, 4, 2, 3}))
	assert.ErrorIs(t, d.Observe([]int{1, 1, 1, 1, 1}), ErrNoMoreRolls)
	assert.Equal(t, 5, d.Score())
}

func TestDiceSet_ObserveRejectsShortRoll(t *testing.T) {
	assert.ErrorIs(t, NewDiceSet().Observe([]int{1, 2}), ErrIncorrectChoice)
}
