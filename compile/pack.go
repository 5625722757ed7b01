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
	"fmt"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/rdtools/rdmat/compr"
	"github.com/rdtools/rdmat/matfmt"
)

// A shader pack bundles compressed shader sources into one
// file:
//
//	u32 magic "RDSP"
//	u8  pack version (1)
//	u32 len, algorithm name
//	u32 entry count
//	per entry:
//	  string name
//	  u32 raw size
//	  bytes[32] BLAKE2b-256 of the raw contents
//	  array compressed contents
//
// Scalars are little-endian; string and array use the
// container codec's length-prefixed encodings.

const (
	packMagic   = "RDSP"
	packVersion = 1
)

// PackSource serves shader sources from an in-memory
// shader pack. Entry checksums are verified on every Load.
type PackSource struct {
	algo    compr.Decompressor
	entries map[string]packEntry
}

type packEntry struct {
	rawSize    uint32
	sum        [32]byte
	compressed []byte
}

// WritePack encodes the given sources as a shader pack
// compressed with the named algorithm ("zstd" or "s2").
func WritePack(sources map[string][]byte, algo string) ([]byte, error) {
	comp := compr.Compression(algo)
	if comp == nil {
		return nil, &SettingsError{Msg: "unknown pack compression " + algo}
	}
	names := maps.Keys(sources)
	slices.Sort(names)

	var b matfmt.Buffer
	b.Bytes([]byte(packMagic))
	b.Uint8(packVersion)
	b.String(comp.Name())
	b.Uint32(uint32(len(names)))
	for _, name := range names {
		raw := sources[name]
		sum := blake2b.Sum256(raw)
		b.String(name)
		b.Uint32(uint32(len(raw)))
		b.Bytes(sum[:])
		b.Array(comp.Compress(raw, nil))
	}
	return b.Finish(), nil
}

// OpenPack parses a shader pack produced by WritePack.
func OpenPack(buf []byte) (*PackSource, error) {
	c := matfmt.NewCursor(buf)
	magic, err := c.Bytes(4)
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(magic, []byte(packMagic)) {
		return nil, fmt.Errorf("compile: bad pack magic %q", magic)
	}
	ver, err := c.Uint8()
	if err != nil {
		return nil, err
	}
	if ver != packVersion {
		return nil, fmt.Errorf("compile: unsupported pack version %d", ver)
	}
	algoName, err := c.String()
	if err != nil {
		return nil, err
	}
	algo, err := compr.Decompression(algoName)
	if err != nil {
		return nil, err
	}
	count, err := c.Uint32()
	if err != nil {
		return nil, err
	}
	p := &PackSource{algo: algo, entries: make(map[string]packEntry, count)}
	for i := uint32(0); i < count; i++ {
		name, err := c.String()
		if err != nil {
			return nil, err
		}
		rawSize, err := c.Uint32()
		if err != nil {
			return nil, err
		}
		sum, err := c.Bytes(32)
		if err != nil {
			return nil, err
		}
		compressed, err := c.Array()
		if err != nil {
			return nil, err
		}
		e := packEntry{rawSize: rawSize, compressed: compressed}
		copy(e.sum[:], sum)
		p.entries[name] = e
	}
	if c.Remaining() != 0 {
		return nil, fmt.Errorf("compile: %d trailing bytes after pack", c.Remaining())
	}
	return p, nil
}

// Load implements Source.
func (p *PackSource) Load(fileName string) ([]byte, error) {
	e, ok := p.entries[fileName]
	if !ok {
		return nil, &SourceNotFoundError{FileName: fileName}
	}
	raw, err := p.algo.Decompress(e.compressed, make([]byte, 0, e.rawSize))
	if err != nil {
		return nil, fmt.Errorf("compile: pack entry %q: %w", fileName, err)
	}
	if uint32(len(raw)) != e.rawSize {
		return nil, fmt.Errorf("compile: pack entry %q: size %d, want %d",
			fileName, len(raw), e.rawSize)
	}
	if blake2b.Sum256(raw) != e.sum {
		return nil, fmt.Errorf("compile: pack entry %q: checksum mismatch", fileName)
	}
	return raw, nil
}

// Names lists the entries of the pack, sorted.
func (p *PackSource) Names() []string {
	names := maps.Keys(p.entries)
	slices.Sort(names)
	return names
}
