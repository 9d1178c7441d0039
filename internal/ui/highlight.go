package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

// highlight renders text with the runes at positions styled as matches,
// truncated to width display cells. positions are rune offsets in text.
func highlight(text string, positions []int, width int, base, match lipgloss.Style) string {
	runes := []rune(text)
	if width > 0 && runewidth.StringWidth(text) > width {
		runes = []rune(runewidth.Truncate(text, width, "…"))
	}

	marked := make(map[int]bool, len(positions))
	for _, p := range positions {
		marked[p] = true
	}

	var b strings.Builder
	var run []rune
	runMatched := false
	flush := func() {
		if len(run) == 0 {
			return
		}
		if runMatched {
			b.WriteString(match.Render(string(run)))
		} else {
			b.WriteString(base.Render(string(run)))
		}
		run = run[:0]
	}
	for i, r := range runes {
		m := marked[i]
		if m != runMatched {
			flush()
			runMatched = m
		}
		run = append(run, r)
	}
	flush()
	return b.String()
}

// shiftPositions moves rune offsets of a full URL onto its display form,
// which drops a scheme prefix of prefix runes. Offsets inside the prefix
// are dropped.
func shiftPositions(positions []int, prefix int) []int {
	if prefix == 0 {
		return positions
	}
	out := make([]int, 0, len(positions))
	for _, p := range positions {
		if p >= prefix {
			out = append(out, p-prefix)
		}
	}
	return out
}
