package protocol

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Reader reads the primitive field types of the protocol. It knows nothing
// about commands. A stream that ends before a field is complete yields a
// wrapped io error, never a SyntaxError.
type Reader struct {
	r io.Reader
}

// NewReader wraps r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// ReadBytes reads exactly n bytes.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(r.r, buf); err != nil {
		return nil, fmt.Errorf("failed to read %d bytes: %w", n, err)
	}
	return buf, nil
}

// ReadFixedString reads n bytes and trims trailing spaces.
func (r *Reader) ReadFixedString(n int) (string, error) {
	buf, err := r.ReadBytes(n)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(buf), " "), nil
}

// ReadInt32 reads a big-endian signed 32-bit integer.
func (r *Reader) ReadInt32() (int32, error) {
	var v int32
	if err := binary.Read(r.r, binary.BigEndian, &v); err != nil {
		return 0, fmt.Errorf("failed to read int32: %w", err)
	}
	return v, nil
}

// ReadInt8 reads a single byte as an unsigned value in 0..255.
func (r *Reader) ReadInt8() (int, error) {
	var v uint8
	if err := binary.Read(r.r, binary.BigEndian, &v); err != nil {
		return 0, fmt.Errorf("failed to read int8: %w", err)
	}
	return int(v), nil
}

// ReadChar reads a single byte.
func (r *Reader) ReadChar() (byte, error) {
	buf, err := r.ReadBytes(1)
	if err != nil {
		return 0, err
	}
	return buf[0], nil
}

// ReadVarString reads a string preceded by a zero-padded decimal length
// header of headerDigits bytes.
func (r *Reader) ReadVarString(headerDigits int) (string, error) {
	header, err := r.ReadBytes(headerDigits)
	if err != nil {
		return "", err
	}
	for _, c := range header {
		if c < '0' || c > '9' {
			return "", syntaxError(ReasonLengthHeader)
		}
	}
	n, _ := strconv.Atoi(string(header))
	if n == 0 {
		return "", nil
	}
	body, err := r.ReadBytes(n)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// Writer accumulates primitive fields; Bytes returns the encoded frame so a
// whole message reaches the connection in a single write.
type Writer struct {
	buf bytes.Buffer
}

// NewWriter creates an empty Writer.
func NewWriter() *Writer {
	return &Writer{}
}

// Reset clears the writer for reuse.
func (w *Writer) Reset() {
	w.buf.Reset()
}

// WriteFixedString writes s truncated or space-padded to exactly n bytes.
func (w *Writer) WriteFixedString(n int, s string) *Writer {
	data := []byte(s)
	if len(data) > n {
		data = data[:n]
	}
	w.buf.Write(data)
	for i := len(data); i < n; i++ {
		w.buf.WriteByte(' ')
	}
	return w
}

// WriteInt32 writes a big-endian signed 32-bit integer.
func (w *Writer) WriteInt32(v int32) *Writer {
	binary.Write(&w.buf, binary.BigEndian, v)
	return w
}

// WriteInt8 writes the low byte of v.
func (w *Writer) WriteInt8(v int) *Writer {
	w.buf.WriteByte(byte(v))
	return w
}

// WriteChar writes a single byte.
func (w *Writer) WriteChar(c byte) *Writer {
	w.buf.WriteByte(c)
	return w
}

// WriteVarString writes s preceded by its length as a zero-padded decimal
// header of headerDigits bytes. s is truncated to the largest length the
// header can express, never inside a multi-byte UTF-8 sequence.
func (w *Writer) WriteVarString(headerDigits int, s string) *Writer {
	limit := 1
	for i := 0; i < headerDigits; i++ {
		limit *= 10
	}
	data := []byte(s)
	if len(data) > limit-1 {
		cut := limit - 1
		for cut > 0 && !utf8.RuneStart(data[cut]) {
			cut--
		}
		data = data[:cut]
	}
	fmt.Fprintf(&w.buf, "%0*d", headerDigits, len(data))
	w.buf.Write(data)
	return w
}

// Bytes returns the encoded data.
func (w *Writer) Bytes() []byte {
	return w.buf.Bytes()
}
