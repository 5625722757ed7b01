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
	"bytes"
	"errors"
	"testing"
)

func TestCursorScalars(t *testing.T) {
	var b Buffer
	b.Uint8(0xab)
	b.Bool(true)
	b.Bool(false)
	b.Uint16(0x1234)
	b.Uint32(0xdeadbeef)
	b.Uint64(0x0123456789abcdef)
	b.Float32(1.5)
	b.String("héllo")
	b.Array([]byte{1, 2, 3})

	c := NewCursor(b.Finish())
	if v, err := c.Uint8(); err != nil || v != 0xab {
		t.Errorf("Uint8: %v %v", v, err)
	}
	if v, err := c.Bool(); err != nil || !v {
		t.Errorf("Bool: %v %v", v, err)
	}
	if v, err := c.Bool(); err != nil || v {
		t.Errorf("Bool: %v %v", v, err)
	}
	if v, err := c.Uint16(); err != nil || v != 0x1234 {
		t.Errorf("Uint16: %#x %v", v, err)
	}
	if v, err := c.Uint32(); err != nil || v != 0xdeadbeef {
		t.Errorf("Uint32: %#x %v", v, err)
	}
	if v, err := c.Uint64(); err != nil || v != 0x0123456789abcdef {
		t.Errorf("Uint64: %#x %v", v, err)
	}
	if v, err := c.Float32(); err != nil || v != 1.5 {
		t.Errorf("Float32: %v %v", v, err)
	}
	if v, err := c.String(); err != nil || v != "héllo" {
		t.Errorf("String: %q %v", v, err)
	}
	if v, err := c.Array(); err != nil || !bytes.Equal(v, []byte{1, 2, 3}) {
		t.Errorf("Array: %v %v", v, err)
	}
	if c.Remaining() != 0 {
		t.Errorf("remaining %d bytes", c.Remaining())
	}
}

func TestCursorShortRead(t *testing.T) {
	c := NewCursor([]byte{1, 2})
	if _, err := c.Uint32(); !errors.Is(err, ErrShortRead) {
		t.Errorf("Uint32 on 2 bytes: err = %v", err)
	}
	// failed reads do not advance
	if c.Offset() != 0 {
		t.Errorf("offset moved to %d after failed read", c.Offset())
	}
	var fe *FormatError
	_, err := c.Uint64()
	if !errors.As(err, &fe) {
		t.Errorf("short read is not a *FormatError: %v", err)
	}
}

func TestCursorBadUTF8(t *testing.T) {
	var b Buffer
	b.Uint32(2)
	b.Bytes([]byte{0xff, 0xfe})
	c := NewCursor(b.Finish())
	var fe *FormatError
	if _, err := c.String(); !errors.As(err, &fe) {
		t.Errorf("invalid utf-8: err = %v", err)
	}
}

func TestCursorHugeArray(t *testing.T) {
	var b Buffer
	b.Uint32(0xffffffff)
	c := NewCursor(b.Finish())
	if _, err := c.Array(); !errors.Is(err, ErrShortRead) {
		t.Errorf("oversized array: err = %v", err)
	}
}

func TestBufferFloat32Array(t *testing.T) {
	in := []float32{0, -1, 3.25, 1e9}
	var b Buffer
	b.Float32Array(in)
	c := NewCursor(b.Finish())
	out, err := c.Float32Array(len(in))
	if err != nil {
		t.Fatal(err)
	}
	for i := range in {
		if in[i] != out[i] {
			t.Errorf("word %d: got %v, want %v", i, out[i], in[i])
		}
	}
}
