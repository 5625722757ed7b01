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

package qmc

import (
	"strings"
	"testing"
)

// eval evaluates a sum-of-products expression produced by
// Simplify under the given assignment.
func eval(expr string, assign map[string]bool) bool {
	switch expr {
	case "True":
		return true
	case "False":
		return false
	}
	for _, product := range strings.Split(expr, "|") {
		ok := true
		for _, lit := range strings.Split(product, "&") {
			lit = strings.TrimSpace(lit)
			lit = strings.Trim(lit, "()")
			lit = strings.TrimSpace(lit)
			neg := strings.HasPrefix(lit, "~")
			lit = strings.TrimPrefix(lit, "~")
			if assign[lit] == neg {
				ok = false
				break
			}
		}
		if ok {
			return true
		}
	}
	return false
}

func assignment(vars []string, idx uint) map[string]bool {
	n := len(vars)
	m := make(map[string]bool, n)
	for i, v := range vars {
		m[v] = idx&(1<<(n-1-i)) != 0
	}
	return m
}

func checkExact(t *testing.T, vars []string, minterms []uint) {
	t.Helper()
	got := Simplify(vars, minterms)
	want := make(map[uint]bool)
	for _, m := range minterms {
		want[m] = true
	}
	for idx := uint(0); idx < 1<<len(vars); idx++ {
		if eval(got.Expression, assignment(vars, idx)) != want[idx] {
			t.Errorf("vars %v minterms %v: %q wrong at index %d",
				vars, minterms, got.Expression, idx)
		}
	}
}

func TestSimplifySingleVariable(t *testing.T) {
	// S3: f(A,B,C) true on {011, 010, 110, 111} is just B
	got := Simplify([]string{"A", "B", "C"}, []uint{0b011, 0b010, 0b110, 0b111})
	if got.Expression != "B" {
		t.Errorf("expression = %q, want \"B\"", got.Expression)
	}
	if len(got.Atoms) != 1 || got.Atoms[0] != "B" {
		t.Errorf("atoms = %v, want [B]", got.Atoms)
	}
}

func TestSimplifyConstants(t *testing.T) {
	vars := []string{"X", "Y"}
	if got := Simplify(vars, nil); got.Expression != "False" {
		t.Errorf("empty minterms: %q", got.Expression)
	}
	if got := Simplify(vars, []uint{0, 1, 2, 3}); got.Expression != "True" {
		t.Errorf("full minterms: %q", got.Expression)
	}
	// duplicates count once
	if got := Simplify(vars, []uint{0, 0, 1, 1, 2, 3, 3}); got.Expression != "True" {
		t.Errorf("full minterms with duplicates: %q", got.Expression)
	}
}

func TestSimplifyExact(t *testing.T) {
	testcases := []struct {
		vars     []string
		minterms []uint
	}{
		{[]string{"A"}, []uint{0}},
		{[]string{"A"}, []uint{1}},
		{[]string{"A", "B"}, []uint{0b11}},
		{[]string{"A", "B"}, []uint{0b01, 0b10}}, // xor: two products
		{[]string{"A", "B", "C"}, []uint{0b000, 0b001, 0b010, 0b011}},
		{[]string{"A", "B", "C"}, []uint{0b111}},
		{[]string{"A", "B", "C"}, []uint{0b001, 0b011, 0b101, 0b111, 0b110}},
		{[]string{"A", "B", "C", "D"}, []uint{0, 1, 2, 3, 8, 9, 10, 11}},
		{[]string{"A", "B", "C", "D"}, []uint{4, 8, 9, 10, 11, 12, 14, 15}},
		{[]string{"A", "B", "C", "D", "E"}, []uint{0, 31, 15, 7, 3, 1, 30, 28, 24, 16}},
	}
	for _, tc := range testcases {
		checkExact(t, tc.vars, tc.minterms)
	}
}

func TestSimplifyAllThreeVariableFunctions(t *testing.T) {
	// exhaustive over every 3-variable boolean function
	vars := []string{"A", "B", "C"}
	for fn := uint(0); fn < 256; fn++ {
		var minterms []uint
		for m := uint(0); m < 8; m++ {
			if fn&(1<<m) != 0 {
				minterms = append(minterms, m)
			}
		}
		checkExact(t, vars, minterms)
	}
}

func TestXorShape(t *testing.T) {
	// xor cannot merge: expect two parenthesized products
	got := Simplify([]string{"A", "B"}, []uint{0b01, 0b10})
	if !strings.Contains(got.Expression, "|") {
		t.Errorf("xor should be a sum: %q", got.Expression)
	}
	if !strings.Contains(got.Expression, "(") {
		t.Errorf("multiple multi-literal products should be parenthesized: %q",
			got.Expression)
	}
}
