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
	"fmt"
	"strings"
)

// directiveFor formats (and caches) the conditional for
// one search result.
func (d *decompiler) directiveFor(idx int) directive {
	for len(d.dirs) <= idx {
		d.dirs = append(d.dirs, nil)
	}
	if d.dirs[idx] == nil {
		dir := synthesize(d.results[idx].tokens)
		d.noteMacros(dir.macros)
		d.dirs[idx] = &dir
	}
	return *d.dirs[idx]
}

// assemble renders one context's groups: conditional
// groups are wrapped in their directive and #endif, and
// imperfectly matched conditionals are marked as
// approximations.
func (d *decompiler) assemble(groups []group) string {
	var lines []string
	for gi := range groups {
		g := &groups[gi]
		if g.searchIdx >= 0 {
			dir := d.directiveFor(g.searchIdx)
			if dir.text != "" {
				res := &d.results[g.searchIdx]
				if res.score < res.total {
					lines = append(lines, fmt.Sprintf(
						"// Approximation, matches %d cases out of %d",
						res.score, res.total))
				}
				lines = append(lines, dir.text)
				for _, li := range g.lines {
					lines = append(lines, d.table.decode(li))
				}
				lines = append(lines, "#endif")
				continue
			}
		}
		for _, li := range g.lines {
			lines = append(lines, d.table.decode(li))
		}
	}
	return strings.Join(lines, "\n")
}

// postprocess merges consecutive $input/$output lines into
// comma-separated declarations and marks constructs that
// tend to break under re-preprocessing.
func postprocess(code string) string {
	lines := strings.Split(code, "\n")
	var out []string
	for i := 0; i < len(lines); {
		merged, n := mergeIO(lines[i:], "$input ")
		if n == 0 {
			merged, n = mergeIO(lines[i:], "$output ")
		}
		if n > 0 {
			out = append(out, merged)
			i += n
			continue
		}
		out = append(out, lines[i])
		i++
	}
	for i, line := range out {
		if strings.Contains(line, ") * (") || strings.Contains(line, "][") {
			out[i] = line + " // Attention!"
		}
	}
	return strings.Join(out, "\n")
}

// mergeIO merges the leading run of lines carrying the
// given $input/$output prefix into one declaration,
// returning the merged line and the run length.
func mergeIO(lines []string, prefix string) (string, int) {
	var operands []string
	n := 0
	for _, line := range lines {
		t := strings.TrimSpace(line)
		if !strings.HasPrefix(t, prefix) {
			break
		}
		operands = append(operands, strings.TrimSpace(t[len(prefix):]))
		n++
	}
	if n < 2 {
		return "", 0
	}
	return strings.TrimSuffix(prefix, " ") + " " + strings.Join(operands, ", "), n
}
