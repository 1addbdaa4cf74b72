package game

import (
	"errors"
)

// Reasons for rejecting an action in the current phase.
const (
	ReasonAlreadyStarted = "The game is already started"
	ReasonAlreadyPlaying = "This id is already playing"
	ReasonNoBetting      = "Betting not allowed here"
	ReasonNoTaking       = "Taking not allowed here"
	ReasonNoPassing      = "Passing not allowed here"
	ReasonPassTooLow     = "Pass not allowed here"
	ReasonNotYourTurn    = "You cannot play right now"
	ReasonNotExpected    = "Command not expected here"
)

// ErrNoCash is returned when a bet exceeds the player's balance.
var ErrNoCash = errors.New("You have no cash")

// ActionError rejects a well-formed message that the session cannot accept
// right now. Dice rule violations reach callers wrapped in one.
type ActionError struct {
	Reason string
	Err    error
}

func (e *ActionError) Error() string {
	return e.Reason
}

func (e *ActionError) Unwrap() error {
	return e.Err
}

func actionError(reason string) error {
	return &ActionError{Reason: reason}
}

// asActionError wraps a rule violation so that its text becomes the reason.
func asActionError(err error) error {
	if err == nil {
		return nil
	}
	var ae *ActionError
	if errors.As(err, &ae) {
		return err
	}
	return &ActionError{Reason: err.Error(), Err: err}
}
