package protocol

import (
	"fmt"
	"io"
)

// Encoder writes messages to a byte stream. Each message is written with a
// single Write call.
type Encoder struct {
	w io.Writer
}

// NewEncoder creates an Encoder writing to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// Encode validates and writes m.
func (e *Encoder) Encode(m Message) error {
	data, err := Marshal(m)
	if err != nil {
		return err
	}
	if _, err := e.w.Write(data); err != nil {
		return fmt.Errorf("failed to write %s message: %w", m.Tag(), err)
	}
	return nil
}

// Marshal returns the wire encoding of m. It applies the same range checks
// as the decoder so that every encoded message decodes back to itself.
func Marshal(m Message) ([]byte, error) {
	w := NewWriter()
	w.WriteFixedString(TagSize, string(m.Tag()))

	switch m.Tag() {
	case TagCash:
		coins, err := requireInt(m, ParamCoins)
		if err != nil {
			return nil, err
		}
		if err := validateCash(coins); err != nil {
			return nil, err
		}
		w.WriteChar(Separator).WriteInt32(int32(coins))

	case TagLoot:
		coins, err := requireInt(m, ParamCoins)
		if err != nil {
			return nil, err
		}
		if err := validateLoot(coins); err != nil {
			return nil, err
		}
		w.WriteChar(Separator).WriteInt32(int32(coins))

	case TagPlay:
		player, err := requireInt(m, ParamPlayer)
		if err != nil {
			return nil, err
		}
		if err := validatePlay(player); err != nil {
			return nil, err
		}
		w.WriteChar(Separator).WriteChar(byte('0' + player))

	case TagDice:
		id, err := requireInt(m, ParamID)
		if err != nil {
			return nil, err
		}
		values, ok := m.Ints(ParamDices)
		if !ok || len(values) != NumDice {
			return nil, fmt.Errorf("DICE message needs %d dice values", NumDice)
		}
		w.WriteChar(Separator).WriteInt32(int32(id))
		for _, v := range values {
			if v < 1 || v > 6 {
				return nil, syntaxError(ReasonDiceRange)
			}
			w.WriteChar(Separator).WriteChar(byte('0' + v))
		}

	case TagTake:
		id, err := requireInt(m, ParamID)
		if err != nil {
			return nil, err
		}
		positions, _ := m.Ints(ParamDices)
		if len(positions) > MaxTake {
			return nil, syntaxError(ReasonTakeCount)
		}
		w.WriteChar(Separator).WriteInt32(int32(id))
		w.WriteChar(Separator).WriteInt8(len(positions))
		for _, p := range positions {
			if p < 1 || p > NumDice {
				return nil, syntaxError(ReasonTakePosition)
			}
			w.WriteChar(Separator).WriteInt8(p)
		}

	case TagPass, TagStrt:
		id, err := requireInt(m, ParamID)
		if err != nil {
			return nil, err
		}
		w.WriteChar(Separator).WriteInt32(int32(id))

	case TagPnts:
		id, err := requireInt(m, ParamID)
		if err != nil {
			return nil, err
		}
		points, err := requireInt(m, ParamPoints)
		if err != nil {
			return nil, err
		}
		if err := validatePoints(points); err != nil {
			return nil, err
		}
		w.WriteChar(Separator).WriteInt32(int32(id))
		w.WriteChar(Separator).WriteInt8(points)

	case TagWins:
		winner, err := requireInt(m, ParamWinner)
		if err != nil {
			return nil, err
		}
		if err := validateWinner(winner); err != nil {
			return nil, err
		}
		w.WriteChar(Separator).WriteChar(byte('0' + winner))

	case TagErro:
		w.WriteChar(Separator).WriteVarString(ErrorHeaderDigits, m.Reason())

	case TagBett, TagExit:

	default:
		return nil, fmt.Errorf("cannot encode unknown command %q", m.Tag())
	}

	return w.Bytes(), nil
}

func requireInt(m Message, name string) (int, error) {
	v, ok := m.Int(name)
	if !ok {
		return 0, fmt.Errorf("%s message missing %s parameter", m.Tag(), name)
	}
	return v, nil
}
