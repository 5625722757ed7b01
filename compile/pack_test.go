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

package compile

import (
	"bytes"
	"strings"
	"testing"
)

func packSources() map[string][]byte {
	return map[string][]byte{
		"shaders/a.hlsl":   []byte(strings.Repeat("float4 main() { return 0; }\n", 50)),
		"shaders/b.hlsl":   []byte("void CSMain() {}"),
		"include/common.h": []byte("#define COMMON 1\n"),
	}
}

func TestPackRoundTrip(t *testing.T) {
	for _, algo := range []string{"zstd", "s2"} {
		raw, err := WritePack(packSources(), algo)
		if err != nil {
			t.Fatalf("%s: %v", algo, err)
		}
		p, err := OpenPack(raw)
		if err != nil {
			t.Fatalf("%s: %v", algo, err)
		}
		for name, want := range packSources() {
			got, err := p.Load(name)
			if err != nil {
				t.Fatalf("%s: %s: %v", algo, name, err)
			}
			if !bytes.Equal(got, want) {
				t.Errorf("%s: %s: contents differ", algo, name)
			}
		}
		names := p.Names()
		if len(names) != 3 || names[0] != "include/common.h" {
			t.Errorf("%s: names = %v", algo, names)
		}
	}
}

func TestPackMissingEntry(t *testing.T) {
	raw, err := WritePack(packSources(), "zstd")
	if err != nil {
		t.Fatal(err)
	}
	p, err := OpenPack(raw)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.Load("nope.hlsl"); err == nil {
		t.Error("missing entry should fail")
	}
}

func TestPackChecksum(t *testing.T) {
	raw, err := WritePack(map[string][]byte{"a": []byte("contents contents contents")}, "s2")
	if err != nil {
		t.Fatal(err)
	}
	// flip a checksum byte; the load must fail rather
	// than return silently corrupted data
	i := bytes.Index(raw, []byte{1}) // pack version byte
	if i != 4 {
		t.Fatalf("unexpected layout")
	}
	// name(u32+1) raw size(u32) then the 32-byte sum
	sumOff := 4 + 1 + (4 + len("s2")) + 4 + (4 + 1) + 4
	raw[sumOff] ^= 0xff
	p, err := OpenPack(raw)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.Load("a"); err == nil || !strings.Contains(err.Error(), "checksum") {
		t.Errorf("corrupt checksum: err = %v", err)
	}
}

func TestPackBadInput(t *testing.T) {
	if _, err := OpenPack([]byte("not a pack")); err == nil {
		t.Error("bad magic accepted")
	}
	if _, err := WritePack(nil, "lz77"); err == nil {
		t.Error("unknown algorithm accepted")
	}
}
