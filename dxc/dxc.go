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

// Package dxc adapts external HLSL compilers behind a
// narrow interface.
//
// Two adapters are provided: Exec shells out to a compiler
// executable with temp-file source and object output, and
// MapCompiler serves precompiled objects from memory (used
// by tests and embedded toolchains). The compile pipeline
// does not distinguish them.
package dxc

import (
	"context"
	"fmt"
	"sort"
)

// Job is one compilation request. The caller owns all of
// the fields; the compiler must not retain them.
type Job struct {
	Source        []byte
	EntryPoint    string
	TargetProfile string
	Defines       map[string]string
	IncludePaths  []string
	Args          []string
}

// Result is the outcome of one compilation. Object is
// owned by the caller after return. Diagnostics carries
// the compiler's full diagnostic text verbatim, for
// success and failure alike.
type Result struct {
	OK          bool
	Object      []byte
	Diagnostics string
}

// Compiler is the contract the compile pipeline depends
// on. Compile must be callable repeatedly. Release tears
// the instance down; double release is a no-op.
type Compiler interface {
	Compile(ctx context.Context, job *Job) (*Result, error)
	Release()
}

// LoadError indicates the compiler executable or library
// could not be opened.
type LoadError struct {
	Path   string
	Reason string
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("dxc: cannot load compiler %q: %s", e.Path, e.Reason)
}

// defineArgs renders a define map as -D arguments in
// sorted key order so invocations are reproducible.
func defineArgs(defines map[string]string) []string {
	keys := make([]string, 0, len(defines))
	for k := range defines {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	args := make([]string, 0, len(keys))
	for _, k := range keys {
		v := defines[k]
		if v == "" {
			args = append(args, "-D", k)
		} else {
			args = append(args, "-D", k+"="+v)
		}
	}
	return args
}
