package protocol

import (
	"maps"
	"slices"
)

// Params is the typed parameter bag of a message. Each of the three
// mappings is only allocated once a parameter of that kind is added.
type Params struct {
	ints    map[string]int
	strings map[string]string
	arrays  map[string][]int
}

// Equal compares only the mappings that are present on both sides, so a
// bag holding just integers equals a bag holding the same integers plus
// strings.
func (p Params) Equal(o Params) bool {
	if p.ints != nil && o.ints != nil && !maps.Equal(p.ints, o.ints) {
		return false
	}
	if p.strings != nil && o.strings != nil && !maps.Equal(p.strings, o.strings) {
		return false
	}
	if p.arrays != nil && o.arrays != nil && !maps.EqualFunc(p.arrays, o.arrays, slices.Equal[[]int]) {
		return false
	}
	return true
}

// Message is an immutable protocol message: a command tag plus parameters.
type Message struct {
	tag    Tag
	params Params
}

// Tag returns the command tag.
func (m Message) Tag() Tag {
	return m.tag
}

// Int returns an integer parameter.
func (m Message) Int(name string) (int, bool) {
	v, ok := m.params.ints[name]
	return v, ok
}

// Text returns a string parameter.
func (m Message) Text(name string) (string, bool) {
	v, ok := m.params.strings[name]
	return v, ok
}

// Ints returns a copy of an integer-list parameter.
func (m Message) Ints(name string) ([]int, bool) {
	v, ok := m.params.arrays[name]
	if !ok {
		return nil, false
	}
	return slices.Clone(v), true
}

// Equal reports whether both messages carry the same tag and equal
// parameter bags (see Params.Equal).
func (m Message) Equal(o Message) bool {
	return m.tag == o.tag && m.params.Equal(o.params)
}

// Shorthand accessors; they return zero when the parameter is absent.

func (m Message) ID() int {
	v, _ := m.Int(ParamID)
	return v
}

func (m Message) Coins() int {
	v, _ := m.Int(ParamCoins)
	return v
}

func (m Message) Points() int {
	v, _ := m.Int(ParamPoints)
	return v
}

func (m Message) Player() int {
	v, _ := m.Int(ParamPlayer)
	return v
}

func (m Message) Winner() int {
	v, _ := m.Int(ParamWinner)
	return v
}

func (m Message) Dice() []int {
	v, _ := m.Ints(ParamDices)
	return v
}

func (m Message) Reason() string {
	v, _ := m.Text(ParamMessage)
	return v
}

// MessageBuilder constructs messages incrementally.
type MessageBuilder struct {
	tag    Tag
	params Params
}

// NewMessageBuilder creates a builder for the given command.
func NewMessageBuilder(tag Tag) *MessageBuilder {
	return &MessageBuilder{tag: tag}
}

// WithInt sets an integer parameter.
func (b *MessageBuilder) WithInt(name string, v int) *MessageBuilder {
	if b.params.ints == nil {
		b.params.ints = make(map[string]int)
	}
	b.params.ints[name] = v
	return b
}

// WithString sets a string parameter.
func (b *MessageBuilder) WithString(name, v string) *MessageBuilder {
	if b.params.strings == nil {
		b.params.strings = make(map[string]string)
	}
	b.params.strings[name] = v
	return b
}

// WithInts sets an integer-list parameter. The slice is copied.
func (b *MessageBuilder) WithInts(name string, v []int) *MessageBuilder {
	if b.params.arrays == nil {
		b.params.arrays = make(map[string][]int)
	}
	if v == nil {
		v = []int{}
	}
	b.params.arrays[name] = slices.Clone(v)
	return b
}

// Build returns the message. The builder can keep being used without
// affecting messages already built.
func (b *MessageBuilder) Build() Message {
	return Message{
		tag: b.tag,
		params: Params{
			ints:    maps.Clone(b.params.ints),
			strings: maps.Clone(b.params.strings),
			arrays:  cloneArrays(b.params.arrays),
		},
	}
}

func cloneArrays(in map[string][]int) map[string][]int {
	if in == nil {
		return nil
	}
	out := make(map[string][]int, len(in))
	for k, v := range in {
		out[k] = slices.Clone(v)
	}
	return out
}

// Constructors for every command.

func Cash(coins int) Message {
	return NewMessageBuilder(TagCash).WithInt(ParamCoins, coins).Build()
}

func Loot(coins int) Message {
	return NewMessageBuilder(TagLoot).WithInt(ParamCoins, coins).Build()
}

func Play(player int) Message {
	return NewMessageBuilder(TagPlay).WithInt(ParamPlayer, player).Build()
}

func Dice(id int, values []int) Message {
	return NewMessageBuilder(TagDice).WithInt(ParamID, id).WithInts(ParamDices, values).Build()
}

func Take(id int, positions []int) Message {
	return NewMessageBuilder(TagTake).WithInt(ParamID, id).WithInts(ParamDices, positions).Build()
}

func Pass(id int) Message {
	return NewMessageBuilder(TagPass).WithInt(ParamID, id).Build()
}

func Points(id, points int) Message {
	return NewMessageBuilder(TagPnts).WithInt(ParamID, id).WithInt(ParamPoints, points).Build()
}

func Wins(winner int) Message {
	return NewMessageBuilder(TagWins).WithInt(ParamWinner, winner).Build()
}

// Error builds an ERRO message carrying msg verbatim.
func Error(msg string) Message {
	return NewMessageBuilder(TagErro).WithString(ParamMessage, msg).Build()
}

// ProtocolError builds the ERRO message sent when a peer breaks the
// protocol or the game rules.
func ProtocolError(reason string) Message {
	return Error(ErrorPrefix + reason)
}

func Start(id int) Message {
	return NewMessageBuilder(TagStrt).WithInt(ParamID, id).Build()
}

func Bet() Message {
	return NewMessageBuilder(TagBett).Build()
}

func Exit() Message {
	return NewMessageBuilder(TagExit).Build()
}
