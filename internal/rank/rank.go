// Package rank filters and orders tabs for a fuzzy query.
//
// A query matches a tab when its characters can be consumed, in order, first
// from the title and then (for whatever the title left over) from the URL.
// Matching is greedy and case-insensitive per code point.
package rank

import (
	"slices"
	"unicode"

	"github.com/walunjakarsachinedu/tab-navigator/internal/tab"
)

// Result is a tab accepted by a query, with the rune offsets that matched.
type Result struct {
	tab.Record
	TitlePositions []int   `json:"titleMatch"`
	URLPositions   []int   `json:"urlMatch"`
	Rank           float64 `json:"rank"`
}

// Search returns the candidates that fully match query, best rank first.
// Ties keep their input order.
//
// An empty query does not search: every candidate is returned unranked in
// input order.
func Search(candidates []tab.Record, query string) []Result {
	q := []rune(query)
	if len(q) == 0 {
		out := make([]Result, len(candidates))
		for i, c := range candidates {
			out[i] = Result{Record: c}
		}
		return out
	}

	out := make([]Result, 0, len(candidates))
	for _, c := range candidates {
		r, ok := Match(c, q)
		if ok {
			out = append(out, r)
		}
	}
	slices.SortStableFunc(out, func(a, b Result) int {
		switch {
		case a.Rank > b.Rank:
			return -1
		case a.Rank < b.Rank:
			return 1
		default:
			return 0
		}
	})
	return out
}

// Match tests one candidate against a non-empty query.
func Match(c tab.Record, query []rune) (Result, bool) {
	title := Positions([]rune(c.Title), query)
	var url []int
	if rest := query[len(title):]; len(rest) > 0 {
		url = Positions([]rune(c.URL), rest)
	}
	if len(title)+len(url) != len(query) {
		return Result{}, false
	}
	rank := Score(title) + Score(url)
	if rank == 0 {
		return Result{}, false
	}
	return Result{
		Record:         c,
		TitlePositions: title,
		URLPositions:   url,
		Rank:           rank,
	}, true
}

// Positions scans text once and returns the offsets of a greedy
// left-to-right subsequence match of query.
func Positions(text, query []rune) []int {
	var out []int
	qi := 0
	for i := 0; i < len(text) && qi < len(query); i++ {
		if unicode.ToLower(text[i]) == unicode.ToLower(query[qi]) {
			out = append(out, i)
			qi++
		}
	}
	return out
}

// Score rates one field's match positions. Early first matches, more matches
// and tightly clustered matches all score higher. No positions score 0.
func Score(positions []int) float64 {
	if len(positions) == 0 {
		return 0
	}
	score := 1/float64(positions[0]+1) + float64(len(positions))
	for i := 1; i < len(positions); i++ {
		score += 1 / float64(positions[i]-positions[i-1])
	}
	return score
}
