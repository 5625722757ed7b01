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
	"testing"
	"time"
)

// reprocess expands the simple conditionals emitted in
// these tests under the macro set implied by flags: a
// synthesized macro is defined iff its (name, value) pair
// matches the flag assignment.
func reprocess(t *testing.T, code string, flags map[string]string) string {
	t.Helper()
	defined := make(map[string]bool)
	for k, v := range flags {
		if strings.HasPrefix(k, "f_") && negBoolValue(v) {
			// the negative side of a boolean flag leaves
			// its macro undefined
			continue
		}
		defined[MacroName(k, v)] = true
	}
	var out []string
	keep := true
	depth := 0
	for _, line := range strings.Split(code, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "#ifdef "):
			depth++
			keep = defined[strings.TrimPrefix(trimmed, "#ifdef ")]
		case strings.HasPrefix(trimmed, "#ifndef "):
			depth++
			keep = !defined[strings.TrimPrefix(trimmed, "#ifndef ")]
		case strings.HasPrefix(trimmed, "#if "):
			depth++
			keep = evalIfLine(t, trimmed, defined)
		case trimmed == "#endif":
			if depth == 0 {
				t.Fatalf("unbalanced #endif in %q", code)
			}
			depth--
			keep = true
		case strings.HasPrefix(trimmed, "// Approximation"):
			// ignored for reconstruction comparison
		default:
			if keep {
				out = append(out, line)
			}
		}
	}
	return strings.Join(out, "\n")
}

// evalIfLine evaluates "#if defined(A) && defined(B)"
// style lines (sums of && products, optional ! negation).
func evalIfLine(t *testing.T, line string, defined map[string]bool) bool {
	t.Helper()
	expr := strings.TrimPrefix(line, "#if ")
	for _, sum := range strings.Split(expr, "||") {
		all := true
		for _, term := range strings.Split(sum, "&&") {
			term = strings.TrimSpace(term)
			term = strings.Trim(term, "()")
			term = strings.TrimSpace(term)
			neg := strings.HasPrefix(term, "!")
			term = strings.TrimPrefix(term, "!")
			if !strings.HasPrefix(term, "defined(") {
				t.Fatalf("cannot evaluate term %q", term)
			}
			name := strings.TrimSuffix(strings.TrimPrefix(term, "defined("), ")")
			if defined[name] == neg {
				all = false
				break
			}
		}
		if all {
			return true
		}
	}
	return false
}

func mustDecompile(t *testing.T, variants []Variant, opts Options) *Result {
	t.Helper()
	res, err := Decompile(variants, opts)
	if err != nil {
		t.Fatal(err)
	}
	return res
}

func TestSingleVariantPassesThrough(t *testing.T) {
	v := Variant{Code: "vec4 x;\nvec4 y;", Flags: map[string]string{"f_a": "On"}}
	res := mustDecompile(t, []Variant{v}, Options{})
	if res.Code != v.Code {
		t.Errorf("got %q, want input unchanged", res.Code)
	}
	if len(res.UsedMacros) != 0 {
		t.Errorf("unexpected macros %v", res.UsedMacros)
	}
}

func TestDiamond(t *testing.T) {
	// S4: two variants differing in exactly one line
	on := Variant{
		Code:  "float a;\nfloat extra;\nfloat b;",
		Flags: map[string]string{"f_glow": "On"},
	}
	off := Variant{
		Code:  "float a;\nfloat b;",
		Flags: map[string]string{"f_glow": "Off"},
	}
	res := mustDecompile(t, []Variant{on, off}, Options{})

	want := "float a;\n#ifdef GLOW\nfloat extra;\n#endif\nfloat b;"
	if res.Code != want {
		t.Errorf("got:\n%s\nwant:\n%s", res.Code, want)
	}
	if strings.Contains(res.Code, "Approximation") {
		t.Error("diamond should not be an approximation")
	}
	if len(res.UsedMacros) != 1 || res.UsedMacros[0] != "GLOW" {
		t.Errorf("macros = %v", res.UsedMacros)
	}

	// law 11: re-preprocessing under each flag set gives
	// back each variant
	for _, v := range []Variant{on, off} {
		got := reprocess(t, res.Code, v.Flags)
		if got != v.Code {
			t.Errorf("flags %v: reprocessed to %q, want %q", v.Flags, got, v.Code)
		}
	}
}

func TestConjunction(t *testing.T) {
	// S5: a line present only under f_light=On and
	// f_mode=Sharp; four variants cover the flag square
	withLine := "int x;\nint gated;\nint y;"
	base := "int x;\nint y;"
	variants := []Variant{
		{Code: withLine, Flags: map[string]string{"f_light": "On", "f_mode": "Sharp"}},
		{Code: base, Flags: map[string]string{"f_light": "On", "f_mode": "Soft"}},
		{Code: base, Flags: map[string]string{"f_light": "Off", "f_mode": "Sharp"}},
		{Code: base, Flags: map[string]string{"f_light": "Off", "f_mode": "Soft"}},
	}
	res := mustDecompile(t, variants, Options{})

	if strings.Contains(res.Code, "Approximation") {
		t.Errorf("conjunction should be exact:\n%s", res.Code)
	}
	if !strings.Contains(res.Code, "#if ") {
		t.Errorf("expected an #if conditional:\n%s", res.Code)
	}
	for _, v := range variants {
		got := reprocess(t, res.Code, v.Flags)
		if got != v.Code {
			t.Errorf("flags %v: reprocessed to:\n%s\nwant:\n%s", v.Flags, got, v.Code)
		}
	}
}

func TestApproximationMarking(t *testing.T) {
	// xor of two boolean flags cannot be expressed by the
	// token grammar; the best sequence matches 3 of 4
	withLine := "int x;\nint odd;\nint y;"
	base := "int x;\nint y;"
	variants := []Variant{
		{Code: base, Flags: map[string]string{"f_a": "On", "f_b": "On"}},
		{Code: withLine, Flags: map[string]string{"f_a": "On", "f_b": "Off"}},
		{Code: withLine, Flags: map[string]string{"f_a": "Off", "f_b": "On"}},
		{Code: base, Flags: map[string]string{"f_a": "Off", "f_b": "Off"}},
	}
	res := mustDecompile(t, variants, Options{SearchTimeout: 50 * time.Millisecond})
	if !strings.Contains(res.Code, "// Approximation, matches 3 cases out of 4") {
		t.Errorf("missing approximation comment:\n%s", res.Code)
	}
}

func TestDeterminism(t *testing.T) {
	variants := []Variant{
		{Code: "a;\nb;\nc;\nd;", Flags: map[string]string{"f_x": "On", "f_y": "On"}},
		{Code: "a;\nc;", Flags: map[string]string{"f_x": "Off", "f_y": "On"}},
		{Code: "a;\nb;\nd;", Flags: map[string]string{"f_x": "On", "f_y": "Off"}},
		{Code: "a;", Flags: map[string]string{"f_x": "Off", "f_y": "Off"}},
	}
	first := mustDecompile(t, variants, Options{SearchTimeout: time.Second})
	for i := 0; i < 3; i++ {
		again := mustDecompile(t, variants, Options{SearchTimeout: time.Second})
		if again.Code != first.Code {
			t.Fatalf("run %d differs:\n%s\nvs:\n%s", i, again.Code, first.Code)
		}
	}
}

func TestFunctionDiamond(t *testing.T) {
	// the differing line lives inside a function body, so
	// the conditional must too
	on := Variant{
		Code:  "uniform vec4 c;\nvec4 shade(vec4 p) {\n  p = c;\n  p = p * 2.0;\n  return p;\n}",
		Flags: map[string]string{"f_fog": "On"},
	}
	off := Variant{
		Code:  "uniform vec4 c;\nvec4 shade(vec4 p) {\n  p = c;\n  return p;\n}",
		Flags: map[string]string{"f_fog": "Off"},
	}
	res := mustDecompile(t, []Variant{on, off}, Options{})

	if !strings.Contains(res.Code, "vec4 shade(vec4 p) {") {
		t.Errorf("function signature lost:\n%s", res.Code)
	}
	if !strings.Contains(res.Code, "#ifdef FOG\n  p = p * 2.0;\n#endif") {
		t.Errorf("conditional not inside function body:\n%s", res.Code)
	}
	if strings.Contains(res.Code, markerOpen) {
		t.Errorf("marker leaked into output:\n%s", res.Code)
	}
	for _, v := range []Variant{on, off} {
		got := reprocess(t, res.Code, v.Flags)
		if got != v.Code {
			t.Errorf("flags %v: reprocessed to:\n%s\nwant:\n%s", v.Flags, got, v.Code)
		}
	}
}

func TestStructExtraction(t *testing.T) {
	on := Variant{
		Code:  "struct Light {\n  vec4 pos;\n  vec4 color;\n};\nint x;",
		Flags: map[string]string{"f_color": "On"},
	}
	off := Variant{
		Code:  "struct Light {\n  vec4 pos;\n};\nint x;",
		Flags: map[string]string{"f_color": "Off"},
	}
	res := mustDecompile(t, []Variant{on, off}, Options{})
	if !strings.Contains(res.Code, "struct Light {") || !strings.Contains(res.Code, "};") {
		t.Errorf("struct not reassembled:\n%s", res.Code)
	}
	if !strings.Contains(res.Code, "#ifdef COLOR\n  vec4 color;\n#endif") {
		t.Errorf("struct member not conditional:\n%s", res.Code)
	}
}

func TestPassFlagMacro(t *testing.T) {
	on := Variant{
		Code:  "int a;\nint depth_only;",
		Flags: map[string]string{"pass": "DepthOnly"},
	}
	off := Variant{
		Code:  "int a;",
		Flags: map[string]string{"pass": "Transparent"},
	}
	res := mustDecompile(t, []Variant{on, off}, Options{})
	if !strings.Contains(res.Code, "DEPTH_ONLY_PASS") {
		t.Errorf("pass macro not synthesized:\n%s", res.Code)
	}
}

func TestPostprocess(t *testing.T) {
	got := postprocess("$input v_color0\n$input v_texcoord0\nvoid f();\nx = m[a][b];")
	if !strings.Contains(got, "$input v_color0, v_texcoord0") {
		t.Errorf("inputs not merged:\n%s", got)
	}
	if !strings.Contains(got, "x = m[a][b]; // Attention!") {
		t.Errorf("fragile line not marked:\n%s", got)
	}
}

func TestUsedMacrosSorted(t *testing.T) {
	variants := []Variant{
		{Code: "a;\nb;", Flags: map[string]string{"f_z": "On", "f_m": "On"}},
		{Code: "a;", Flags: map[string]string{"f_z": "Off", "f_m": "On"}},
		{Code: "b;", Flags: map[string]string{"f_z": "On", "f_m": "Off"}},
		{Code: "", Flags: map[string]string{"f_z": "Off", "f_m": "Off"}},
	}
	res := mustDecompile(t, variants, Options{})
	for i := 1; i < len(res.UsedMacros); i++ {
		if res.UsedMacros[i-1] >= res.UsedMacros[i] {
			t.Errorf("macros not sorted: %v", res.UsedMacros)
		}
	}
}
