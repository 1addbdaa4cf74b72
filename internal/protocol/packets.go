// Package protocol implements the Ship-Captain-Crew wire protocol. Every
// message starts with a 4-byte ASCII command tag; each following field is
// preceded by a single space. Integers are big-endian.
package protocol

// Tag is the 4-letter command identifier that opens every message.
type Tag string

// Command tags.
const (
	TagCash Tag = "CASH" // Player balance
	TagLoot Tag = "LOOT" // Pot at stake for the hand
	TagPlay Tag = "PLAY" // Who rolls first (0 = receiver)
	TagDice Tag = "DICE" // Five dice values for a player
	TagTake Tag = "TAKE" // Dice positions set aside
	TagPass Tag = "PASS" // Player stands on the current score
	TagPnts Tag = "PNTS" // Final score of a player
	TagWins Tag = "WINS" // Hand winner (0 = receiver, 1 = other, 2 = tie)
	TagErro Tag = "ERRO" // Error notice
	TagStrt Tag = "STRT" // Join with a player id
	TagBett Tag = "BETT" // Place the bet for the next hand
	TagExit Tag = "EXIT" // Leave the game
)

// Tags lists every command in wire order.
var Tags = []Tag{
	TagCash, TagLoot, TagPlay, TagDice, TagTake, TagPass,
	TagPnts, TagWins, TagErro, TagStrt, TagBett, TagExit,
}

// Parameter names used in message parameter bags.
const (
	ParamCoins   = "COINS"
	ParamPlayer  = "PLAYER"
	ParamID      = "ID"
	ParamDices   = "DICES"
	ParamPoints  = "POINTS"
	ParamWinner  = "WINNER"
	ParamMessage = "MESSAGE"
)

const (
	// TagSize is the fixed width of a command tag on the wire.
	TagSize = 4

	// NumDice is the number of dice carried by a DICE message.
	NumDice = 5

	// MaxTake is the largest number of positions a TAKE may carry.
	MaxTake = 3

	// ErrorHeaderDigits is the width of the ERRO length header.
	ErrorHeaderDigits = 2

	// MaxErrorLength is the longest ERRO text representable by its header.
	MaxErrorLength = 99

	// Separator precedes every field after the tag.
	Separator byte = ' '

	// ErrorPrefix is prepended to the reason of protocol and action errors
	// before they are sent to a peer.
	ErrorPrefix = "Protocol error:"
)

// Known reports whether t is one of the defined command tags.
func (t Tag) Known() bool {
	for _, k := range Tags {
		if k == t {
			return true
		}
	}
	return false
}
