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
	"strings"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// assign is one flag assignment: flag name -> flag value.
type assign = map[string]string

// permutation is one deduplicated variant of a context:
// the encoded line sequence plus every flag assignment
// that produced exactly this text.
type permutation struct {
	lines []int
	flags []assign
}

// lineTable interns source lines: every distinct line gets
// a global index, so diffing compares ints, not strings.
type lineTable struct {
	byText map[string]int
	texts  []string
}

func (t *lineTable) intern(line string) int {
	if t.byText == nil {
		t.byText = make(map[string]int)
	}
	if i, ok := t.byText[line]; ok {
		return i
	}
	i := len(t.texts)
	t.texts = append(t.texts, line)
	t.byText[line] = i
	return i
}

// encode splits code into lines and interns each one.
func (t *lineTable) encode(code string) []int {
	code = strings.TrimRight(code, "\n")
	if code == "" {
		return nil
	}
	lines := strings.Split(code, "\n")
	out := make([]int, len(lines))
	for i, line := range lines {
		out[i] = t.intern(line)
	}
	return out
}

// decode returns the text of line index i.
func (t *lineTable) decode(i int) string { return t.texts[i] }

// assignKey renders an assignment canonically for
// comparison and dedup.
func assignKey(a assign) string {
	keys := maps.Keys(a)
	slices.Sort(keys)
	var sb strings.Builder
	for _, k := range keys {
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(a[k])
		sb.WriteByte('\x00')
	}
	return sb.String()
}

// condKey renders a condition (an ordered list of
// assignments) canonically.
func condKey(cond []assign) string {
	var sb strings.Builder
	for _, a := range cond {
		sb.WriteString(assignKey(a))
		sb.WriteByte('\x01')
	}
	return sb.String()
}

func sortedKeys(m map[string]bool) []string {
	keys := maps.Keys(m)
	slices.Sort(keys)
	return keys
}
