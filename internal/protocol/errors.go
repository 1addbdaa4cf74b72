package protocol

import "fmt"

// Reasons reported by the decoder.
const (
	ReasonUnknownCommand   = "The command does not exist"
	ReasonMissingSeparator = "There is not an space between command parameters"
	ReasonNegativeGems     = "Gems cannot be negative"
	ReasonLootTooSmall     = "Loot cannot be less than two"
	ReasonTwoPlayers       = "This is a two player game"
	ReasonDiceRange        = "Dices must be between 1-6"
	ReasonTakeCount        = "User can take between 0 and 3 dices"
	ReasonTakePosition     = "Dice positions must be between 1 and 5"
	ReasonPointsRange      = "Points must be 0 or grater that one or less that 13"
	ReasonWinnerRange      = "Winner not defined"
	ReasonNotDigit         = "Expected a decimal digit"
	ReasonLengthHeader     = "String length header must be decimal"
)

// SyntaxError reports malformed or out-of-range message content. The
// stream is still usable after it: the peer gets an ERRO carrying Reason.
type SyntaxError struct {
	Reason string
}

func (e *SyntaxError) Error() string {
	return e.Reason
}

func syntaxError(reason string) error {
	return &SyntaxError{Reason: reason}
}

func syntaxErrorf(format string, args ...interface{}) error {
	return &SyntaxError{Reason: fmt.Sprintf(format, args...)}
}
