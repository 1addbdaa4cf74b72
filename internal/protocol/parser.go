package protocol

import (
	"io"
)

// Decoder reads messages from a byte stream and validates every field.
type Decoder struct {
	r *Reader
}

// NewDecoder creates a Decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: NewReader(r)}
}

// Decode reads one complete message. Malformed content yields a
// *SyntaxError; a broken or closed stream yields a wrapped io error.
func (d *Decoder) Decode() (Message, error) {
	raw, err := d.r.ReadFixedString(TagSize)
	if err != nil {
		return Message{}, err
	}

	switch tag := Tag(raw); tag {
	case TagCash:
		return d.decodeCash()
	case TagLoot:
		return d.decodeLoot()
	case TagPlay:
		return d.decodePlay()
	case TagDice:
		return d.decodeDice()
	case TagTake:
		return d.decodeTake()
	case TagPass:
		return d.decodeID(TagPass)
	case TagPnts:
		return d.decodePoints()
	case TagWins:
		return d.decodeWins()
	case TagErro:
		return d.decodeError()
	case TagStrt:
		return d.decodeID(TagStrt)
	case TagBett, TagExit:
		return NewMessageBuilder(tag).Build(), nil
	default:
		return Message{}, syntaxError(ReasonUnknownCommand)
	}
}

// separator consumes the single space that precedes every field.
func (d *Decoder) separator() error {
	c, err := d.r.ReadChar()
	if err != nil {
		return err
	}
	if c != Separator {
		return syntaxError(ReasonMissingSeparator)
	}
	return nil
}

func (d *Decoder) int32Field() (int, error) {
	if err := d.separator(); err != nil {
		return 0, err
	}
	v, err := d.r.ReadInt32()
	return int(v), err
}

func (d *Decoder) int8Field() (int, error) {
	if err := d.separator(); err != nil {
		return 0, err
	}
	return d.r.ReadInt8()
}

func (d *Decoder) digitField() (int, error) {
	if err := d.separator(); err != nil {
		return 0, err
	}
	c, err := d.r.ReadChar()
	if err != nil {
		return 0, err
	}
	if c < '0' || c > '9' {
		return 0, syntaxError(ReasonNotDigit)
	}
	return int(c - '0'), nil
}

func (d *Decoder) decodeCash() (Message, error) {
	coins, err := d.int32Field()
	if err != nil {
		return Message{}, err
	}
	if err := validateCash(coins); err != nil {
		return Message{}, err
	}
	return Cash(coins), nil
}

func (d *Decoder) decodeLoot() (Message, error) {
	coins, err := d.int32Field()
	if err != nil {
		return Message{}, err
	}
	if err := validateLoot(coins); err != nil {
		return Message{}, err
	}
	return Loot(coins), nil
}

func (d *Decoder) decodePlay() (Message, error) {
	player, err := d.digitField()
	if err != nil {
		return Message{}, err
	}
	if err := validatePlay(player); err != nil {
		return Message{}, err
	}
	return Play(player), nil
}

func (d *Decoder) decodeDice() (Message, error) {
	id, err := d.int32Field()
	if err != nil {
		return Message{}, err
	}
	values := make([]int, NumDice)
	for i := range values {
		if values[i], err = d.digitField(); err != nil {
			return Message{}, err
		}
		if values[i] < 1 || values[i] > 6 {
			return Message{}, syntaxError(ReasonDiceRange)
		}
	}
	return Dice(id, values), nil
}

func (d *Decoder) decodeTake() (Message, error) {
	id, err := d.int32Field()
	if err != nil {
		return Message{}, err
	}
	count, err := d.int8Field()
	if err != nil {
		return Message{}, err
	}
	if count > MaxTake {
		return Message{}, syntaxError(ReasonTakeCount)
	}
	positions := make([]int, count)
	for i := range positions {
		if positions[i], err = d.int8Field(); err != nil {
			return Message{}, err
		}
		if positions[i] < 1 || positions[i] > NumDice {
			return Message{}, syntaxError(ReasonTakePosition)
		}
	}
	return Take(id, positions), nil
}

func (d *Decoder) decodeID(tag Tag) (Message, error) {
	id, err := d.int32Field()
	if err != nil {
		return Message{}, err
	}
	return NewMessageBuilder(tag).WithInt(ParamID, id).Build(), nil
}

func (d *Decoder) decodePoints() (Message, error) {
	id, err := d.int32Field()
	if err != nil {
		return Message{}, err
	}
	points, err := d.int8Field()
	if err != nil {
		return Message{}, err
	}
	if err := validatePoints(points); err != nil {
		return Message{}, err
	}
	return Points(id, points), nil
}

func (d *Decoder) decodeWins() (Message, error) {
	winner, err := d.digitField()
	if err != nil {
		return Message{}, err
	}
	if err := validateWinner(winner); err != nil {
		return Message{}, err
	}
	return Wins(winner), nil
}

func (d *Decoder) decodeError() (Message, error) {
	if err := d.separator(); err != nil {
		return Message{}, err
	}
	msg, err := d.r.ReadVarString(ErrorHeaderDigits)
	if err != nil {
		return Message{}, err
	}
	return Error(msg), nil
}

func validateCash(coins int) error {
	if coins < 0 {
		return syntaxError(ReasonNegativeGems)
	}
	return nil
}

func validateLoot(coins int) error {
	if coins < 2 {
		return syntaxError(ReasonLootTooSmall)
	}
	return nil
}

func validatePlay(player int) error {
	if player != 0 && player != 1 {
		return syntaxError(ReasonTwoPlayers)
	}
	return nil
}

func validatePoints(points int) error {
	if points != 0 && (points < 2 || points > 12) {
		return syntaxError(ReasonPointsRange)
	}
	return nil
}

func validateWinner(winner int) error {
	if winner < 0 || winner > 2 {
		return syntaxError(ReasonWinnerRange)
	}
	return nil
}
