package protocol

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriter_FixedStringPadsAndReaderTrims(t *testing.T) {
	data := NewWriter().WriteFixedString(4, "AB").Bytes()
	assert.Equal(t, []byte("AB  "), data)

	s, err := NewReader(bytes.NewReader(data)).ReadFixedString(4)
	require.NoError(t, err)
	assert.Equal(t, "AB", s)
}

func TestWriter_Int32IsBigEndian(t *testing.T) {
	data := NewWriter().WriteInt32(0x01020304).Bytes()
	assert.Equal(t, []byte{1, 2, 3, 4}, data)

	v, err := NewReader(bytes.NewReader([]byte{0xFF, 0xFF, 0xFF, 0xFF})).ReadInt32()
	require.NoError(t, err)
	assert.Equal(t, int32(-1), v)
}

func TestReader_Int8IsUnsigned(t *testing.T) {
	v, err := NewReader(bytes.NewReader([]byte{0xFE})).ReadInt8()
	require.NoError(t, err)
	assert.Equal(t, 254, v)
}

func TestVarString(t *testing.T) {
	data := NewWriter().WriteVarString(2, "hello").Bytes()
	assert.Equal(t, []byte("05hello"), data)

	s, err := NewReader(bytes.NewReader(data)).ReadVarString(2)
	require.NoError(t, err)
	assert.Equal(t, "hello", s)
}

func TestVarString_TruncatesToHeaderCapacity(t *testing.T) {
	long := bytes.Repeat([]byte("x"), 150)
	data := NewWriter().WriteVarString(2, string(long)).Bytes()
	assert.Equal(t, "99", string(data[:2]))
	assert.Len(t, data, 2+99)
}

func TestVarString_TruncatesOnRuneBoundary(t *testing.T) {
	// 98 ASCII bytes leave one byte of room, too few for the two-byte rune.
	text := strings.Repeat("x", 98) + "é" + "tail"
	data := NewWriter().WriteVarString(2, text).Bytes()
	assert.Equal(t, "98", string(data[:2]))
	assert.True(t, utf8.Valid(data[2:]))

	text = strings.Repeat("x", 97) + "é" + "tail"
	data = NewWriter().WriteVarString(2, text).Bytes()
	assert.Equal(t, "99", string(data[:2]))
	assert.Equal(t, strings.Repeat("x", 97)+"é", string(data[2:]))
}

func TestVarString_NonDigitHeader(t *testing.T) {
	_, err := NewReader(bytes.NewReader([]byte("1xabc"))).ReadVarString(2)
	var synErr *SyntaxError
	require.ErrorAs(t, err, &synErr)
	assert.Equal(t, ReasonLengthHeader, synErr.Reason)
}

func TestReader_ShortReadIsIOError(t *testing.T) {
	_, err := NewReader(bytes.NewReader([]byte{0, 1})).ReadInt32()
	require.Error(t, err)

	var synErr *SyntaxError
	assert.False(t, errors.As(err, &synErr))
	assert.True(t, errors.Is(err, io.ErrUnexpectedEOF))
}
