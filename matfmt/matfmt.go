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

// Package matfmt reads and writes compiled-material
// containers ("RenderDragon.CompiledMaterialDefinition"
// files, format versions 22 through 25).
//
// A container packages, for one named material, a set of
// render passes; each pass holds one variant per combination
// of feature flags; each variant holds per-(platform, stage)
// shader blobs in the back-end wrapper sub-format together
// with uniform, buffer and vertex-input metadata.
//
// The package implements the format bit-exactly: for every
// valid container b, Encode(Decode(b)) == b. See the
// round-trip tests for the precise laws.
package matfmt

import (
	"errors"
	"fmt"
)

// Magic is the u64 that begins and ends every container.
const Magic uint64 = 168_942_106

// Identifier is the fixed ASCII string that follows the
// leading magic.
const Identifier = "RenderDragon.CompiledMaterialDefinition"

// MinVersion and MaxVersion delimit the supported range of
// container format versions (inclusive).
const (
	MinVersion = 22
	MaxVersion = 25
)

// builtinsName is the one material name whose container
// omits the uniform-override table.
const builtinsName = "Core/Builtins"

// ErrShortRead is returned (wrapped in a *FormatError) when
// a read cursor runs off the end of its buffer.
var ErrShortRead = errors.New("matfmt: unexpected end of input")

// FormatError describes malformed container input or an
// attempt to encode an unencodable value. Off is the byte
// offset at which the problem was detected, or -1 when no
// offset applies.
type FormatError struct {
	Off int
	Msg string
	Err error // wrapped cause, may be nil
}

func (e *FormatError) Error() string {
	if e.Off >= 0 {
		return fmt.Sprintf("matfmt: offset %d: %s", e.Off, e.Msg)
	}
	return "matfmt: " + e.Msg
}

func (e *FormatError) Unwrap() error { return e.Err }

func errf(off int, f string, args ...interface{}) *FormatError {
	return &FormatError{Off: off, Msg: fmt.Sprintf(f, args...)}
}

// UnsupportedVersionError indicates a container whose
// version field lies outside [MinVersion, MaxVersion].
type UnsupportedVersionError uint64

func (e UnsupportedVersionError) Error() string {
	return fmt.Sprintf("matfmt: unsupported container version %d", uint64(e))
}

// EnumError indicates a name that does not belong to the
// enumeration it was looked up in, or a numeric value with
// no name.
type EnumError struct {
	Kind string // enumeration name, e.g. "platform"
	Name string // offending name or formatted value
}

func (e *EnumError) Error() string {
	return fmt.Sprintf("matfmt: no %s named %q", e.Kind, e.Name)
}

// EncryptionError indicates an unusable encryption mode or
// key material.
type EncryptionError struct {
	Reason string
}

func (e *EncryptionError) Error() string {
	return "matfmt: encryption: " + e.Reason
}
