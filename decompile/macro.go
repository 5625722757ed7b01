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
	"regexp"
	"strings"
	"unicode"

	"github.com/rdtools/rdmat/qmc"
)

// MacroName synthesizes the preprocessor macro name for a
// flag name/value pair:
//
//   - the "pass" flag maps to UPPER_SNAKE(value) with a
//     _PASS suffix;
//   - "f_..." flags map to UPPER_SNAKE(name) for boolean
//     values and UPPER_SNAKE(name__value) otherwise;
//   - anything else maps to UPPER_SNAKE(name + value).
func MacroName(flagName, value string) string {
	switch {
	case flagName == "pass":
		n := upperSnake(value)
		if !strings.HasSuffix(n, "_PASS") {
			n += "_PASS"
		}
		return n
	case strings.HasPrefix(flagName, "f_"):
		base := flagName[len("f_"):]
		if isBoolValue(value) {
			return upperSnake(base)
		}
		return upperSnake(base + "__" + value)
	default:
		return upperSnake(flagName + value)
	}
}

func isBoolValue(v string) bool {
	switch v {
	case "On", "Off", "True", "False", "Enabled", "Disabled":
		return true
	}
	return false
}

// negBoolValue reports whether v is the negative side of a
// boolean flag. For f_ flags both sides share one macro
// name: the macro is defined on the positive side, so a
// token testing the negative side reads as "not defined".
func negBoolValue(v string) bool {
	switch v {
	case "Off", "False", "Disabled":
		return true
	}
	return false
}

// upperSnake converts camelCase and mixed identifiers to
// UPPER_SNAKE_CASE. Existing underscores are preserved.
func upperSnake(s string) string {
	var sb strings.Builder
	prev := rune(0)
	for _, r := range s {
		switch {
		case unicode.IsUpper(r):
			if prev != 0 && prev != '_' && !unicode.IsUpper(prev) {
				sb.WriteByte('_')
			}
			sb.WriteRune(r)
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			sb.WriteRune(unicode.ToUpper(r))
		case r == '_':
			sb.WriteByte('_')
		default:
			if prev != '_' {
				sb.WriteByte('_')
			}
		}
		prev = r
	}
	return sb.String()
}

// directive is a formatted preprocessor conditional.
type directive struct {
	// text is the full opening line, e.g. "#ifdef FOO" or
	// "#if defined(A) && defined(B)". Empty when the
	// condition simplified to a tautology.
	text   string
	macros []string
}

// synthesize converts a search result's token sequence to
// a minimized preprocessor conditional over macro names.
func synthesize(tokens []token) directive {
	// distinct macros in first-appearance order; pol
	// records whether the token tests the macro's defined
	// (true) or undefined (false) side
	var vars []string
	macroOf := make([]int, len(tokens))
	pol := make([]bool, len(tokens))
	index := make(map[string]int)
	for i := range tokens {
		name := MacroName(tokens[i].name, tokens[i].value)
		pol[i] = true
		if strings.HasPrefix(tokens[i].name, "f_") && negBoolValue(tokens[i].value) {
			pol[i] = false
		}
		vi, ok := index[name]
		if !ok {
			vi = len(vars)
			index[name] = vi
			vars = append(vars, name)
		}
		macroOf[i] = vi
	}

	// truth table over "is defined" assignments; variable
	// 0 owns the most significant minterm bit
	n := len(vars)
	var minterms []uint
	for idx := uint(0); idx < 1<<n; idx++ {
		defined := make([]bool, n)
		for v := 0; v < n; v++ {
			defined[v] = idx&(1<<(n-1-v)) != 0
		}
		if evalDefined(tokens, macroOf, pol, defined) {
			minterms = append(minterms, idx)
		}
	}

	simplified := qmc.Simplify(vars, minterms)
	return format(simplified)
}

// evalDefined evaluates the token sequence treating each
// token as a test of its macro's definedness (respecting
// polarity), with the same right-to-left short-circuit
// rule as evalTokens.
func evalDefined(tokens []token, macroOf []int, pol []bool, defined []bool) bool {
	for i := len(tokens) - 1; i >= 0; i-- {
		v := (defined[macroOf[i]] == pol[i]) != tokens[i].neg
		switch tokens[i].join {
		case joinAnd:
			if !v {
				return false
			}
		case joinOr:
			if v {
				return true
			}
		case joinInitial:
			return v
		}
	}
	return false
}

var atomRe = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*`)

// format renders a minimized expression as a directive:
// single positive atoms become #ifdef, single negated
// atoms #ifndef, everything else #if with defined(...)
// atoms and C operators.
func format(s qmc.Simplified) directive {
	switch {
	case s.Expression == "True":
		return directive{}
	case s.Expression == "False":
		return directive{text: "#if 0"}
	case len(s.Atoms) == 1 && s.Expression == s.Atoms[0]:
		return directive{text: "#ifdef " + s.Atoms[0], macros: s.Atoms}
	case len(s.Atoms) == 1 && s.Expression == "~"+s.Atoms[0]:
		return directive{text: "#ifndef " + s.Atoms[0], macros: s.Atoms}
	}
	expr := atomRe.ReplaceAllStringFunc(s.Expression, func(name string) string {
		return "defined(" + name + ")"
	})
	expr = strings.ReplaceAll(expr, "~", "!")
	expr = strings.ReplaceAll(expr, "|", "||")
	expr = strings.ReplaceAll(expr, "&", "&&")
	return directive{text: "#if " + expr, macros: s.Atoms}
}
