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

// Package qmc minimizes boolean functions given as minterm
// lists into short sum-of-products expressions using the
// Quine-McCluskey prime-implicant method with an
// essential-then-greedy cover.
package qmc

import (
	"math/bits"
	"strings"
)

// Simplified is a minimized sum-of-products expression.
// Expression uses '&', '|' and '~' over the input variable
// names; the constants "True" and "False" stand for the
// full and the empty function.
type Simplified struct {
	Expression string
	// Atoms is the set of variable names that appear in
	// Expression, in first-use order.
	Atoms []string
}

// implicant is a cube over n variables: bit i of mask is
// set if variable i is fixed, in which case bit i of value
// gives its polarity. Bit significance is MSB-first:
// variable 0 owns bit n-1.
type implicant struct {
	mask, value uint
	covers      []uint // minterm indices covered
}

// Simplify minimizes the function over vars that is true
// exactly on the given minterm indices. Variable 0 is the
// most significant bit of a minterm index.
//
// The result is exact: evaluating Expression at any
// assignment yields true iff the assignment's index is in
// minterms.
func Simplify(vars []string, minterms []uint) Simplified {
	n := len(vars)
	full := uint(1) << n
	if len(minterms) == 0 {
		return Simplified{Expression: "False"}
	}
	seen := make(map[uint]bool, len(minterms))
	for _, m := range minterms {
		seen[m] = true
	}
	if uint(len(seen)) == full {
		return Simplified{Expression: "True"}
	}

	primes := primeImplicants(n, minterms)
	cover := selectCover(primes, minterms)
	return format(vars, cover)
}

// primeImplicants runs the combining rounds: two cubes
// with the same mask whose values differ in exactly one
// masked bit merge into a cube with that bit freed. Cubes
// that never merge in a round are prime.
func primeImplicants(n int, minterms []uint) []implicant {
	allMask := uint(1)<<n - 1
	cur := make([]implicant, 0, len(minterms))
	dedup := make(map[[2]uint]bool)
	for _, m := range minterms {
		key := [2]uint{allMask, m}
		if dedup[key] {
			continue
		}
		dedup[key] = true
		cur = append(cur, implicant{mask: allMask, value: m, covers: []uint{m}})
	}

	var primes []implicant
	for len(cur) > 0 {
		used := make([]bool, len(cur))
		var next []implicant
		nextSeen := make(map[[2]uint]int)
		for i := 0; i < len(cur); i++ {
			for j := i + 1; j < len(cur); j++ {
				if cur[i].mask != cur[j].mask {
					continue
				}
				diff := cur[i].value ^ cur[j].value
				if bits.OnesCount(diff) != 1 || cur[i].mask&diff == 0 {
					continue
				}
				used[i], used[j] = true, true
				mask := cur[i].mask &^ diff
				value := cur[i].value & mask
				key := [2]uint{mask, value}
				if _, ok := nextSeen[key]; ok {
					continue
				}
				covers := make([]uint, 0, len(cur[i].covers)+len(cur[j].covers))
				covers = append(covers, cur[i].covers...)
				covers = append(covers, cur[j].covers...)
				nextSeen[key] = len(next)
				next = append(next, implicant{mask: mask, value: value, covers: covers})
			}
		}
		for i := range cur {
			if !used[i] {
				primes = append(primes, cur[i])
			}
		}
		cur = next
	}
	return primes
}

// selectCover picks essential prime implicants first, then
// greedily covers the remaining minterms by repeatedly
// taking the implicant covering the most uncovered ones.
// Ties break on first-seen order.
func selectCover(primes []implicant, minterms []uint) []implicant {
	remaining := make(map[uint]bool, len(minterms))
	for _, m := range minterms {
		remaining[m] = true
	}

	chosen := make([]bool, len(primes))
	var cover []implicant

	// essential primes: sole cover of some minterm
	for _, m := range minterms {
		owner := -1
		for i := range primes {
			if covers(&primes[i], m) {
				if owner >= 0 {
					owner = -2
					break
				}
				owner = i
			}
		}
		if owner >= 0 && !chosen[owner] {
			chosen[owner] = true
			cover = append(cover, primes[owner])
			for _, c := range primes[owner].covers {
				delete(remaining, c)
			}
		}
	}

	for len(remaining) > 0 {
		best, bestCount := -1, 0
		for i := range primes {
			if chosen[i] {
				continue
			}
			count := 0
			for _, c := range primes[i].covers {
				if remaining[c] {
					count++
				}
			}
			if count > bestCount {
				best, bestCount = i, count
			}
		}
		if best < 0 {
			break
		}
		chosen[best] = true
		cover = append(cover, primes[best])
		for _, c := range primes[best].covers {
			delete(remaining, c)
		}
	}
	return cover
}

func covers(im *implicant, m uint) bool {
	return m&im.mask == im.value
}

// format renders the cover as a sum of products. Products
// with more than one literal are parenthesized when the
// sum has more than one such product.
func format(vars []string, cover []implicant) Simplified {
	n := len(vars)
	var atoms []string
	atomSeen := make(map[string]bool)

	products := make([]string, 0, len(cover))
	multi := 0
	for i := range cover {
		var lits []string
		for v := 0; v < n; v++ {
			bit := uint(1) << (n - 1 - v)
			if cover[i].mask&bit == 0 {
				continue
			}
			lit := vars[v]
			if cover[i].value&bit == 0 {
				lit = "~" + lit
			}
			lits = append(lits, lit)
			if !atomSeen[vars[v]] {
				atomSeen[vars[v]] = true
				atoms = append(atoms, vars[v])
			}
		}
		if len(lits) > 1 {
			multi++
		}
		products = append(products, strings.Join(lits, " & "))
	}

	if len(products) == 1 {
		return Simplified{Expression: products[0], Atoms: atoms}
	}
	parts := make([]string, len(products))
	for i, p := range products {
		if multi > 1 && strings.Contains(p, "&") {
			p = "(" + p + ")"
		}
		parts[i] = p
	}
	return Simplified{Expression: strings.Join(parts, " | "), Atoms: atoms}
}
