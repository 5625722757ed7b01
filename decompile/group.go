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

package decompile

import (
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// group is a run of consecutive lines sharing one
// condition.
type group struct {
	lines []int
	cond  []assign
	// searchIdx indexes the deduplicated expression-search
	// list, or -1 for unconditional groups.
	searchIdx int
}

// groupLines merges consecutive lines with identical
// conditions.
func groupLines(folded []condLine) []group {
	var out []group
	var curKey string
	for i := range folded {
		key := condKey(folded[i].cond)
		if len(out) > 0 && key == curKey {
			g := &out[len(out)-1]
			g.lines = append(g.lines, folded[i].line)
			continue
		}
		out = append(out, group{
			lines: []int{folded[i].line},
			cond:  folded[i].cond,
		})
		curKey = key
	}
	return out
}

// flagDef is the local flag definition of one context:
// the discriminating flag names in first-seen order and,
// per name, the value list with On/Enabled biased to the
// front and Off/Disabled to the back.
type flagDef struct {
	names  []string
	values map[string][]string
}

// buildFlagDef collects flag names and values from the
// context's permutations and drops names with a single
// value (they cannot discriminate).
func buildFlagDef(perms []permutation) *flagDef {
	def := &flagDef{values: make(map[string][]string)}
	var order []string
	seen := make(map[string]map[string]bool)
	for pi := range perms {
		for _, a := range perms[pi].flags {
			// iterate this assignment's names in the
			// deterministic first-seen-then-sorted way:
			// names new to the context are appended in
			// sorted order
			for _, name := range sortedAssignNames(a) {
				if seen[name] == nil {
					seen[name] = make(map[string]bool)
					order = append(order, name)
				}
				if !seen[name][a[name]] {
					seen[name][a[name]] = true
					def.values[name] = append(def.values[name], a[name])
				}
			}
		}
	}
	for _, name := range order {
		if len(def.values[name]) < 2 {
			delete(def.values, name)
			continue
		}
		def.names = append(def.names, name)
		def.values[name] = biasValues(def.values[name])
	}
	return def
}

func sortedAssignNames(a assign) []string {
	names := maps.Keys(a)
	slices.Sort(names)
	return names
}

// biasValues moves On/Enabled to the front and
// Off/Disabled to the back, keeping the rest stable. The
// bias keeps greedy search results readable and stable.
func biasValues(values []string) []string {
	var front, mid, back []string
	for _, v := range values {
		switch v {
		case "On", "Enabled":
			front = append(front, v)
		case "Off", "Disabled":
			back = append(back, v)
		default:
			mid = append(mid, v)
		}
	}
	out := make([]string, 0, len(values))
	out = append(out, front...)
	out = append(out, mid...)
	out = append(out, back...)
	return out
}

// contextUniverse returns every flag assignment of the
// context in permutation order.
func contextUniverse(perms []permutation) []assign {
	var out []assign
	for pi := range perms {
		out = append(out, perms[pi].flags...)
	}
	return out
}

// coversUniverse reports whether cond contains every
// assignment of the universe.
func coversUniverse(cond, universe []assign) bool {
	have := make(map[string]bool, len(cond))
	for _, a := range cond {
		have[assignKey(a)] = true
	}
	for _, a := range universe {
		if !have[assignKey(a)] {
			return false
		}
	}
	return true
}

// searchCase is one row of an expression-search input.
type searchCase struct {
	expected bool
	flags    assign
}

// searchInput is a deduplicated expression-search problem:
// find a token sequence evaluating to expected on every
// case.
type searchInput struct {
	cases []searchCase
	def   *flagDef
	key   string
}

// buildSearchInput constructs the search problem for one
// group: expected is true exactly on the assignments the
// group's condition contains.
func buildSearchInput(cond, universe []assign, def *flagDef) *searchInput {
	in := make(map[string]bool, len(cond))
	for _, a := range cond {
		in[assignKey(a)] = true
	}
	si := &searchInput{def: def}
	var kb []byte
	for _, a := range universe {
		k := assignKey(a)
		si.cases = append(si.cases, searchCase{expected: in[k], flags: a})
		if in[k] {
			kb = append(kb, '1')
		} else {
			kb = append(kb, '0')
		}
		kb = append(kb, k...)
	}
	si.key = string(kb)
	return si
}
