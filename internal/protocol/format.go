package protocol

import (
	"strconv"
	"strings"
)

// String renders m as space-separated tokens mirroring the wire layout,
// with numbers in decimal: "DICE 7 6 5 4 1 2", "TAKE 7 2 1 2".
func (m Message) String() string {
	var sb strings.Builder
	sb.WriteString(string(m.tag))

	field := func(v int) {
		sb.WriteByte(' ')
		sb.WriteString(strconv.Itoa(v))
	}

	switch m.tag {
	case TagCash, TagLoot:
		field(m.Coins())
	case TagPlay:
		field(m.Player())
	case TagDice:
		field(m.ID())
		for _, v := range m.Dice() {
			field(v)
		}
	case TagTake:
		positions := m.Dice()
		field(m.ID())
		field(len(positions))
		for _, p := range positions {
			field(p)
		}
	case TagPass, TagStrt:
		field(m.ID())
	case TagPnts:
		field(m.ID())
		field(m.Points())
	case TagWins:
		field(m.Winner())
	case TagErro:
		sb.WriteByte(' ')
		sb.WriteString(m.Reason())
	}

	return sb.String()
}
