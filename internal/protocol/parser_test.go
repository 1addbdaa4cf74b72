package protocol

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, data []byte) (Message, error) {
	t.Helper()
	return NewDecoder(bytes.NewReader(data)).Decode()
}

func frame(tag string) *Writer {
	return NewWriter().WriteFixedString(TagSize, tag)
}

func requireSyntaxError(t *testing.T, err error, reason string) {
	t.Helper()
	var synErr *SyntaxError
	require.ErrorAs(t, err, &synErr)
	assert.Equal(t, reason, synErr.Reason)
}

func TestRoundTrip(t *testing.T) {
	messages := []Message{
		Cash(0),
		Cash(10),
		Loot(2),
		Loot(40),
		Play(0),
		Play(1),
		Dice(7, []int{6, 5, 4, 2, 1}),
		Take(7, []int{1, 2, 3}),
		Take(7, []int{}),
		Pass(1212),
		Points(7, 0),
		Points(7, 12),
		Wins(0),
		Wins(2),
		Error("Protocol error:Timeout problem"),
		Error(""),
		Start(-5),
		Bet(),
		Exit(),
	}

	for _, m := range messages {
		t.Run(m.String(), func(t *testing.T) {
			data, err := Marshal(m)
			require.NoError(t, err)

			got, err := decode(t, data)
			require.NoError(t, err)
			assert.True(t, m.Equal(got), "want %s, got %s", m, got)
		})
	}
}

func TestDecoder_ConsecutiveMessages(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	require.NoError(t, enc.Encode(Start(3)))
	require.NoError(t, enc.Encode(Bet()))
	require.NoError(t, enc.Encode(Take(3, []int{2})))

	dec := NewDecoder(&buf)
	for _, want := range []Message{Start(3), Bet(), Take(3, []int{2})} {
		got, err := dec.Decode()
		require.NoError(t, err)
		assert.True(t, want.Equal(got))
	}

	_, err := dec.Decode()
	assert.True(t, errors.Is(err, io.EOF))
}

func TestMarshal_WireLayout(t *testing.T) {
	data, err := Marshal(Dice(7, []int{6, 5, 4, 2, 1}))
	require.NoError(t, err)
	assert.Equal(t, []byte{'D', 'I', 'C', 'E', ' ', 0, 0, 0, 7, ' ', '6', ' ', '5', ' ', '4', ' ', '2', ' ', '1'}, data)

	data, err = Marshal(Take(1, []int{3, 5}))
	require.NoError(t, err)
	assert.Equal(t, []byte{'T', 'A', 'K', 'E', ' ', 0, 0, 0, 1, ' ', 2, ' ', 3, ' ', 5}, data)

	data, err = Marshal(Error("bad"))
	require.NoError(t, err)
	assert.Equal(t, []byte("ERRO 03bad"), data)

	data, err = Marshal(Bet())
	require.NoError(t, err)
	assert.Equal(t, []byte("BETT"), data)
}

func TestMarshal_TruncatesLongErrors(t *testing.T) {
	long := string(bytes.Repeat([]byte("e"), 120))
	data, err := Marshal(Error(long))
	require.NoError(t, err)

	got, err := decode(t, data)
	require.NoError(t, err)
	assert.Len(t, got.Reason(), MaxErrorLength)
}

func TestDecoder_ValidationBoundaries(t *testing.T) {
	tests := []struct {
		name   string
		data   []byte
		reason string
	}{
		{"negative cash", frame("CASH").WriteChar(' ').WriteInt32(-1).Bytes(), ReasonNegativeGems},
		{"loot of one", frame("LOOT").WriteChar(' ').WriteInt32(1).Bytes(), ReasonLootTooSmall},
		{"play two", frame("PLAY").WriteChar(' ').WriteChar('2').Bytes(), ReasonTwoPlayers},
		{"die of seven", frame("DICE").WriteChar(' ').WriteInt32(1).
			WriteChar(' ').WriteChar('1').WriteChar(' ').WriteChar('7').Bytes(), ReasonDiceRange},
		{"die of zero", frame("DICE").WriteChar(' ').WriteInt32(1).
			WriteChar(' ').WriteChar('0').Bytes(), ReasonDiceRange},
		{"take four", frame("TAKE").WriteChar(' ').WriteInt32(1).WriteChar(' ').WriteInt8(4).Bytes(), ReasonTakeCount},
		{"take position six", frame("TAKE").WriteChar(' ').WriteInt32(1).WriteChar(' ').WriteInt8(1).
			WriteChar(' ').WriteInt8(6).Bytes(), ReasonTakePosition},
		{"take position zero", frame("TAKE").WriteChar(' ').WriteInt32(1).WriteChar(' ').WriteInt8(1).
			WriteChar(' ').WriteInt8(0).Bytes(), ReasonTakePosition},
		{"points one", frame("PNTS").WriteChar(' ').WriteInt32(1).WriteChar(' ').WriteInt8(1).Bytes(), ReasonPointsRange},
		{"points thirteen", frame("PNTS").WriteChar(' ').WriteInt32(1).WriteChar(' ').WriteInt8(13).Bytes(), ReasonPointsRange},
		{"winner three", frame("WINS").WriteChar(' ').WriteChar('3').Bytes(), ReasonWinnerRange},
		{"winner not a digit", frame("WINS").WriteChar(' ').WriteChar('x').Bytes(), ReasonNotDigit},
		{"unknown command", frame("ROLL").Bytes(), ReasonUnknownCommand},
		{"missing separator", frame("STRT").WriteChar('_').WriteInt32(1).Bytes(), ReasonMissingSeparator},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decode(t, tt.data)
			requireSyntaxError(t, err, tt.reason)
		})
	}
}

func TestDecoder_AcceptedBoundaries(t *testing.T) {
	m, err := decode(t, frame("LOOT").WriteChar(' ').WriteInt32(2).Bytes())
	require.NoError(t, err)
	assert.Equal(t, 2, m.Coins())

	m, err = decode(t, frame("PNTS").WriteChar(' ').WriteInt32(9).WriteChar(' ').WriteInt8(2).Bytes())
	require.NoError(t, err)
	assert.Equal(t, 2, m.Points())

	m, err = decode(t, frame("TAKE").WriteChar(' ').WriteInt32(9).WriteChar(' ').WriteInt8(0).Bytes())
	require.NoError(t, err)
	assert.Empty(t, m.Dice())
}

func TestDecoder_TruncatedStreamIsNotSyntactic(t *testing.T) {
	_, err := decode(t, []byte("DICE \x00\x00"))
	require.Error(t, err)

	var synErr *SyntaxError
	assert.False(t, errors.As(err, &synErr))
}

func TestMarshal_RejectsInvalidMessages(t *testing.T) {
	_, err := Marshal(Cash(-3))
	requireSyntaxError(t, err, ReasonNegativeGems)

	_, err = Marshal(Take(1, []int{1, 2, 3, 4}))
	requireSyntaxError(t, err, ReasonTakeCount)

	_, err = Marshal(Dice(1, []int{1, 2}))
	assert.Error(t, err)

	_, err = Marshal(NewMessageBuilder(TagPnts).WithInt(ParamID, 1).Build())
	assert.Error(t, err)
}

func TestParams_AsymmetricEquality(t *testing.T) {
	intsOnly := NewMessageBuilder(TagPnts).WithInt(ParamID, 1).WithInt(ParamPoints, 5).Build()
	withText := NewMessageBuilder(TagPnts).WithInt(ParamID, 1).WithInt(ParamPoints, 5).
		WithString(ParamMessage, "extra").Build()
	assert.True(t, intsOnly.Equal(withText))
	assert.True(t, withText.Equal(intsOnly))

	assert.False(t, Points(1, 5).Equal(Points(1, 6)))
	assert.False(t, Pass(1).Equal(Start(1)))
	assert.False(t, Dice(1, []int{1, 2, 3, 4, 5}).Equal(Dice(1, []int{1, 2, 3, 4, 6})))
}

func TestMessage_IsImmutable(t *testing.T) {
	values := []int{1, 2, 3, 4, 5}
	m := Dice(1, values)
	values[0] = 6

	got := m.Dice()
	assert.Equal(t, 1, got[0])
	got[1] = 6
	assert.Equal(t, 2, m.Dice()[1])
}

func TestMessage_String(t *testing.T) {
	assert.Equal(t, "CASH 10", Cash(10).String())
	assert.Equal(t, "TAKE 7 2 1 3", Take(7, []int{1, 3}).String())
	assert.Equal(t, "DICE 7 6 5 4 2 2", Dice(7, []int{6, 5, 4, 2, 2}).String())
	assert.Equal(t, "ERRO oops", Error("oops").String())
	assert.Equal(t, "BETT", Bet().String())
}
