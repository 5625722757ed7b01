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

// Package decompile reconstructs a single preprocessor-
// conditional shader source from the compiled variants of
// one material pass.
//
// Each input variant is the text produced from one source
// under one combination of feature-flag values. The
// decompiler diffs all variants line by line, groups lines
// by the set of flag assignments that produce them,
// searches for a short boolean expression matching each
// group, minimizes it over synthesized macro names, and
// re-emits the source with #if/#ifdef/#ifndef blocks.
//
// For identical inputs (including the documented flag-value
// ordering bias and an identical search timeout) the output
// is byte-deterministic.
package decompile

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Variant is one input: shader text plus the flag values
// it was compiled under.
type Variant struct {
	Code  string
	Flags map[string]string
}

// Options configures a decompilation.
type Options struct {
	// Preprocess strips comments and applies the GLSL
	// back-end rewrites before diffing.
	Preprocess bool
	// KeepComments disables comment stripping while the
	// rest of preprocessing still runs. Used for varying
	// definition restoration.
	KeepComments bool
	// SearchTimeout bounds the brute-force expression
	// search per deduplicated input. Zero means
	// DefaultSearchTimeout.
	SearchTimeout time.Duration
	// Postprocess merges $input/$output runs and marks
	// preprocessor-fragile lines.
	Postprocess bool
}

// DefaultSearchTimeout bounds the brute-force expression
// search when Options.SearchTimeout is zero.
const DefaultSearchTimeout = 2 * time.Second

// Result is a reconstructed source.
type Result struct {
	Code string
	// UsedMacros lists every macro name referenced by a
	// synthesized conditional, sorted.
	UsedMacros []string
}

// ErrInconsistent reports an unrecoverable grouping or
// diffing inconsistency.
var ErrInconsistent = errors.New("decompile: inconsistent variant grouping")

// Decompile reconstructs one source from variants.
//
// All variants must stem from the same original source;
// variants with byte-identical code are merged. At least
// one variant is required.
func Decompile(variants []Variant, opts Options) (*Result, error) {
	if len(variants) == 0 {
		return nil, fmt.Errorf("decompile: no input variants")
	}
	timeout := opts.SearchTimeout
	if timeout <= 0 {
		timeout = DefaultSearchTimeout
	}

	codes := make([]string, len(variants))
	for i := range variants {
		code := variants[i].Code
		if opts.Preprocess {
			code = preprocess(code, !opts.KeepComments)
		}
		codes[i] = code
	}

	d := &decompiler{timeout: timeout}
	for i := range variants {
		d.addVariant(codes[i], variants[i].Flags)
	}
	code, err := d.run()
	if err != nil {
		return nil, err
	}
	if opts.Postprocess {
		code = postprocess(code)
	}
	return &Result{Code: code, UsedMacros: d.macroList()}, nil
}

// decompiler accumulates per-variant state and drives the
// diff/group/search/assemble pipeline.
type decompiler struct {
	timeout time.Duration

	table lineTable

	main      []permutation
	funcs     map[string]*funcContext
	funcOrder []string

	searches    []*searchInput
	searchByKey map[string]int
	results     []searchResult
	dirs        []*directive
	macros      map[string]bool
}

type funcContext struct {
	sig      string
	isStruct bool
	perms    []permutation
}

func (d *decompiler) addVariant(code string, flags map[string]string) {
	main, parts := extract(code)
	d.addPermutation(&d.main, main, flags)
	for _, part := range parts {
		fc := d.funcs[part.sig]
		if fc == nil {
			if d.funcs == nil {
				d.funcs = make(map[string]*funcContext)
			}
			fc = &funcContext{sig: part.sig, isStruct: part.isStruct}
			d.funcs[part.sig] = fc
			d.funcOrder = append(d.funcOrder, part.sig)
		}
		d.addPermutation(&fc.perms, part.code, flags)
	}
}

// addPermutation encodes code and either merges it into an
// existing byte-identical permutation or appends a new one.
func (d *decompiler) addPermutation(perms *[]permutation, code string, flags map[string]string) {
	lines := d.table.encode(code)
	for i := range *perms {
		if linesEqual((*perms)[i].lines, lines) {
			(*perms)[i].flags = append((*perms)[i].flags, flags)
			return
		}
	}
	*perms = append(*perms, permutation{lines: lines, flags: []assign{flags}})
}

func (d *decompiler) run() (string, error) {
	mainGroups, err := d.processContext(d.main)
	if err != nil {
		return "", err
	}
	bodies := make(map[string]string, len(d.funcs))
	for _, sig := range d.funcOrder {
		fc := d.funcs[sig]
		groups, err := d.processContext(fc.perms)
		if err != nil {
			return "", err
		}
		bodies[sig] = d.assemble(groups)
	}
	main := d.assemble(mainGroups)
	return d.replaceMarkers(main, bodies), nil
}

// processContext diffs and groups one context (the main
// text or one function body) and registers expression
// searches for every conditional group.
func (d *decompiler) processContext(perms []permutation) ([]group, error) {
	folded, err := foldDiff(perms)
	if err != nil {
		return nil, err
	}
	groups := groupLines(folded)

	def := buildFlagDef(perms)
	universe := contextUniverse(perms)

	for gi := range groups {
		groups[gi].searchIdx = -1
		if len(def.names) == 0 {
			continue
		}
		if coversUniverse(groups[gi].cond, universe) {
			continue
		}
		in := buildSearchInput(groups[gi].cond, universe, def)
		groups[gi].searchIdx = d.internSearch(in)
	}

	// run any searches registered by this context that
	// have not produced a result yet
	for len(d.results) < len(d.searches) {
		i := len(d.results)
		d.results = append(d.results, runSearch(d.searches[i], d.timeout))
	}
	return groups, nil
}

func (d *decompiler) internSearch(in *searchInput) int {
	if d.searchByKey == nil {
		d.searchByKey = make(map[string]int)
	}
	if i, ok := d.searchByKey[in.key]; ok {
		return i
	}
	i := len(d.searches)
	d.searchByKey[in.key] = i
	d.searches = append(d.searches, in)
	return i
}

func (d *decompiler) noteMacros(names []string) {
	if d.macros == nil {
		d.macros = make(map[string]bool)
	}
	for _, n := range names {
		d.macros[n] = true
	}
}

func (d *decompiler) macroList() []string {
	return sortedKeys(d.macros)
}

func linesEqual(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// replaceMarkers substitutes assembled function and struct
// bodies back into the main text.
func (d *decompiler) replaceMarkers(main string, bodies map[string]string) string {
	lines := strings.Split(main, "\n")
	var out []string
	for _, line := range lines {
		sig, ok := markerSig(line)
		if !ok {
			out = append(out, line)
			continue
		}
		body, ok := bodies[sig]
		if !ok {
			out = append(out, line)
			continue
		}
		fc := d.funcs[sig]
		closer := "}"
		if fc != nil && fc.isStruct {
			closer = "};"
		}
		out = append(out, sig+" {")
		if body != "" {
			out = append(out, body)
		}
		out = append(out, closer)
	}
	return strings.Join(out, "\n")
}
