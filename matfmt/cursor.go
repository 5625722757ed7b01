// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package matfmt

import (
	"encoding/binary"
	"fmt"
	"math"
	"unicode/utf8"
)

// Cursor is a forward-only reader over an owned byte
// buffer. All multi-byte values are little-endian.
// Reads past the end of the buffer return a *FormatError
// wrapping ErrShortRead; the cursor does not advance on
// a failed read.
type Cursor struct {
	buf []byte
	off int
}

// NewCursor returns a Cursor reading from buf.
// The cursor does not copy buf; the caller must not
// mutate it while the cursor is in use.
func NewCursor(buf []byte) *Cursor {
	return &Cursor{buf: buf}
}

// Offset returns the current byte offset of the cursor.
func (c *Cursor) Offset() int { return c.off }

// Remaining returns the number of unread bytes.
func (c *Cursor) Remaining() int { return len(c.buf) - c.off }

func (c *Cursor) short(n int) *FormatError {
	return &FormatError{
		Off: c.off,
		Msg: fmt.Sprintf("need %d bytes, have %d", n, c.Remaining()),
		Err: ErrShortRead,
	}
}

func (c *Cursor) take(n int) ([]byte, error) {
	if n < 0 || c.Remaining() < n {
		return nil, c.short(n)
	}
	p := c.buf[c.off : c.off+n]
	c.off += n
	return p, nil
}

// Uint8 reads one byte.
func (c *Cursor) Uint8() (uint8, error) {
	p, err := c.take(1)
	if err != nil {
		return 0, err
	}
	return p[0], nil
}

// Bool reads one byte and interprets any nonzero value
// as true.
func (c *Cursor) Bool() (bool, error) {
	b, err := c.Uint8()
	return b != 0, err
}

// Uint16 reads a little-endian u16.
func (c *Cursor) Uint16() (uint16, error) {
	p, err := c.take(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(p), nil
}

// Uint32 reads a little-endian u32.
func (c *Cursor) Uint32() (uint32, error) {
	p, err := c.take(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(p), nil
}

// Uint64 reads a little-endian u64.
func (c *Cursor) Uint64() (uint64, error) {
	p, err := c.take(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(p), nil
}

// Float32 reads a little-endian IEEE-754 float32.
func (c *Cursor) Float32() (float32, error) {
	u, err := c.Uint32()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(u), nil
}

// Float32Array reads n consecutive float32 values.
func (c *Cursor) Float32Array(n int) ([]float32, error) {
	out := make([]float32, n)
	for i := range out {
		f, err := c.Float32()
		if err != nil {
			return nil, err
		}
		out[i] = f
	}
	return out, nil
}

// Bytes reads n raw bytes. The returned slice is a copy
// owned by the caller.
func (c *Cursor) Bytes(n int) ([]byte, error) {
	p, err := c.take(n)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, p)
	return out, nil
}

// Array reads a u32 length prefix followed by that many
// raw bytes.
func (c *Cursor) Array() ([]byte, error) {
	n, err := c.Uint32()
	if err != nil {
		return nil, err
	}
	return c.Bytes(int(n))
}

// String reads a length-prefixed byte array and decodes
// it as UTF-8. Invalid UTF-8 is a format error.
func (c *Cursor) String() (string, error) {
	start := c.off
	p, err := c.Array()
	if err != nil {
		return "", err
	}
	if !utf8.Valid(p) {
		return "", errf(start, "string is not valid UTF-8")
	}
	return string(p), nil
}

// Buffer is a growable little-endian writer. The zero
// value is ready to use. Writes never fail; Finish
// returns the accumulated bytes.
type Buffer struct {
	buf []byte
}

// Reset discards the buffered contents but keeps the
// underlying allocation.
func (b *Buffer) Reset() { b.buf = b.buf[:0] }

// Len returns the number of buffered bytes.
func (b *Buffer) Len() int { return len(b.buf) }

// Finish returns the accumulated bytes. The buffer may be
// reused after Reset.
func (b *Buffer) Finish() []byte { return b.buf }

// Uint8 writes one byte.
func (b *Buffer) Uint8(v uint8) { b.buf = append(b.buf, v) }

// Bool writes 1 for true and 0 for false.
func (b *Buffer) Bool(v bool) {
	if v {
		b.Uint8(1)
	} else {
		b.Uint8(0)
	}
}

// Uint16 writes a little-endian u16.
func (b *Buffer) Uint16(v uint16) {
	b.buf = append(b.buf, byte(v), byte(v>>8))
}

// Uint32 writes a little-endian u32.
func (b *Buffer) Uint32(v uint32) {
	b.buf = append(b.buf, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

// Uint64 writes a little-endian u64.
func (b *Buffer) Uint64(v uint64) {
	b.buf = append(b.buf,
		byte(v), byte(v>>8), byte(v>>16), byte(v>>24),
		byte(v>>32), byte(v>>40), byte(v>>48), byte(v>>56))
}

// Float32 writes a little-endian IEEE-754 float32.
func (b *Buffer) Float32(v float32) {
	b.Uint32(math.Float32bits(v))
}

// Float32Array writes each element of v in order.
func (b *Buffer) Float32Array(v []float32) {
	for _, f := range v {
		b.Float32(f)
	}
}

// Bytes writes p verbatim.
func (b *Buffer) Bytes(p []byte) {
	b.buf = append(b.buf, p...)
}

// Array writes a u32 length prefix followed by p.
func (b *Buffer) Array(p []byte) {
	b.Uint32(uint32(len(p)))
	b.Bytes(p)
}

// String writes s as a length-prefixed UTF-8 byte array.
func (b *Buffer) String(s string) {
	b.Uint32(uint32(len(s)))
	b.buf = append(b.buf, s...)
}
