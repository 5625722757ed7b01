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

import "time"

// joinType links a token to the tokens on its left.
type joinType uint8

const (
	joinInitial joinType = iota
	joinAnd
	joinOr
)

// token is one literal of a searched expression: the test
// flags[name] == value, possibly negated, joined to the
// rest of the sequence by And or Or.
type token struct {
	join  joinType
	neg   bool
	name  string
	value string
}

// evalTokens evaluates a sequence right-to-left with
// short-circuiting: an And token that is false decides the
// whole expression, as does an Or token that is true; the
// leftmost (Initial) token decides otherwise.
func evalTokens(tokens []token, a assign) bool {
	for i := len(tokens) - 1; i >= 0; i-- {
		t := &tokens[i]
		v := (a[t.name] == t.value) != t.neg
		switch t.join {
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

// searchResult is the best token sequence found for one
// search input, with its score (matching cases) and the
// case total.
type searchResult struct {
	tokens []token
	score  int
	total  int
}

func (r *searchResult) perfect() bool { return r.score == r.total }

func scoreTokens(tokens []token, cases []searchCase) int {
	score := 0
	for i := range cases {
		if evalTokens(tokens, cases[i].flags) == cases[i].expected {
			score++
		}
	}
	return score
}

// runSearch finds a token sequence for in: a greedy pass
// first, then a bounded brute-force pass if the greedy
// result is imperfect. The brute-force result replaces the
// greedy one only if it strictly improves the score, or
// ties it with a shorter sequence.
func runSearch(in *searchInput, timeout time.Duration) searchResult {
	fast := greedySearch(in)
	if fast.perfect() {
		return fast
	}
	slow := bruteSearch(in, timeout)
	if slow.score > fast.score ||
		(slow.score == fast.score && len(slow.tokens) < len(fast.tokens)) {
		return slow
	}
	return fast
}

// candidate enumeration order is part of the output
// contract: negation, then join type, then flag name, then
// flag value; ties keep the first candidate seen.
func enumTokens(def *flagDef, initial bool, yield func(token) bool) {
	joins := []joinType{joinAnd, joinOr}
	if initial {
		joins = []joinType{joinInitial}
	}
	for _, neg := range []bool{false, true} {
		for _, join := range joins {
			for _, name := range def.names {
				for _, value := range def.values[name] {
					if !yield(token{join: join, neg: neg, name: name, value: value}) {
						return
					}
				}
			}
		}
	}
}

// greedySearch appends the locally best token for up to
// len(names)+5 rounds, tracking the best complete sequence
// seen across rounds.
func greedySearch(in *searchInput) searchResult {
	best := searchResult{score: -1, total: len(in.cases)}
	var seq []token
	rounds := len(in.def.names) + 5
	for round := 0; round < rounds; round++ {
		var bestTok token
		bestScore := -1
		enumTokens(in.def, len(seq) == 0, func(t token) bool {
			cand := append(seq, t)
			s := scoreTokens(cand, in.cases)
			if s > bestScore {
				bestScore = s
				bestTok = t
			}
			return true
		})
		if bestScore < 0 {
			break
		}
		seq = append(seq, bestTok)
		if bestScore > best.score {
			best.tokens = append([]token{}, seq...)
			best.score = bestScore
		}
		if best.perfect() {
			break
		}
	}
	return best
}

// bruteSearch enumerates token sequences as a variable-
// length counter: each position is a digit over the token
// alphabet, the first position restricted to Initial
// joins. The search stops on a perfect sequence, on
// timeout, or when the length bound is exhausted, and
// returns the best sequence seen.
func bruteSearch(in *searchInput, timeout time.Duration) searchResult {
	var first, rest []token
	enumTokens(in.def, true, func(t token) bool {
		first = append(first, t)
		return true
	})
	enumTokens(in.def, false, func(t token) bool {
		rest = append(rest, t)
		return true
	})
	best := searchResult{score: -1, total: len(in.cases)}
	if len(first) == 0 {
		return best
	}

	const maxLen = 6
	deadline := time.Now().Add(timeout)
	checked := 0

	seq := make([]token, maxLen)
	for length := 1; length <= maxLen; length++ {
		digits := make([]int, length)
		for {
			for i := range digits {
				if i == 0 {
					seq[i] = first[digits[i]]
				} else {
					seq[i] = rest[digits[i]]
				}
			}
			s := scoreTokens(seq[:length], in.cases)
			if s > best.score {
				best.tokens = append([]token{}, seq[:length]...)
				best.score = s
				if best.perfect() {
					return best
				}
			}
			checked++
			if checked&0x3ff == 0 && time.Now().After(deadline) {
				return best
			}
			// increment the counter
			i := length - 1
			for i >= 0 {
				digits[i]++
				radix := len(rest)
				if i == 0 {
					radix = len(first)
				}
				if digits[i] < radix {
					break
				}
				digits[i] = 0
				i--
			}
			if i < 0 {
				break // this length exhausted
			}
		}
	}
	return best
}
