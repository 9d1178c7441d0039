package rank

import (
	"math"
	"strings"
	"testing"

	"github.com/walunjakarsachinedu/tab-navigator/internal/tab"
)

func TestSearchGitHubExample(t *testing.T) {
	got := Search([]tab.Record{{ID: 1, Title: "GitHub", URL: "github.com"}}, "gh")
	if len(got) != 1 {
		t.Fatalf("expected 1 result, got %d", len(got))
	}
	r := got[0]
	if !equalInts(r.TitlePositions, []int{0, 3}) {
		t.Errorf("TitlePositions = %v, want [0 3]", r.TitlePositions)
	}
	if len(r.URLPositions) != 0 {
		t.Errorf("URL should not be scanned when title consumes the query, got %v", r.URLPositions)
	}
	want := 1.0 + 2 + 1.0/3
	if math.Abs(r.Rank-want) > 1e-9 {
		t.Errorf("Rank = %v, want %v", r.Rank, want)
	}
}

func TestSearchRejectsUncoveredQuery(t *testing.T) {
	got := Search([]tab.Record{{Title: "Example", URL: "example.com"}}, "xyz")
	if len(got) != 0 {
		t.Fatalf("expected no results, got %+v", got)
	}
}

func TestSearchSplitsAcrossTitleAndURL(t *testing.T) {
	got := Search([]tab.Record{{Title: "Docs", URL: "go.dev/doc"}}, "dsgo")
	if len(got) != 1 {
		t.Fatalf("expected a title+url match, got %d results", len(got))
	}
	if !equalInts(got[0].TitlePositions, []int{0, 3}) {
		t.Errorf("TitlePositions = %v", got[0].TitlePositions)
	}
	if !equalInts(got[0].URLPositions, []int{0, 1}) {
		t.Errorf("URLPositions = %v", got[0].URLPositions)
	}
}

func TestSearchRemainderMustBeContiguousInOrder(t *testing.T) {
	// Title consumes "a"; the remainder "zb" must match the URL as a
	// subsequence, and "b" appears before "z" there.
	got := Search([]tab.Record{{Title: "a", URL: "bz"}}, "azb")
	if len(got) != 0 {
		t.Fatalf("expected rejection, got %+v", got)
	}
}

func TestSearchCaseInsensitive(t *testing.T) {
	got := Search([]tab.Record{{Title: "ÉCOLE Paris"}}, "écp")
	if len(got) != 1 {
		t.Fatalf("expected code-point case-insensitive match, got %d", len(got))
	}
	if !equalInts(got[0].TitlePositions, []int{0, 1, 6}) {
		t.Errorf("TitlePositions = %v", got[0].TitlePositions)
	}
}

func TestSearchEmptyQueryPassesThrough(t *testing.T) {
	in := []tab.Record{{ID: 3}, {ID: 1}, {ID: 2}}
	got := Search(in, "")
	if len(got) != 3 {
		t.Fatalf("expected all candidates, got %d", len(got))
	}
	for i, r := range got {
		if r.ID != in[i].ID || r.Rank != 0 || r.TitlePositions != nil {
			t.Errorf("result %d = %+v, want unranked %d", i, r, in[i].ID)
		}
	}
}

func TestSearchSortsByRankStable(t *testing.T) {
	in := []tab.Record{
		{ID: 1, Title: "xxxxab"},
		{ID: 2, Title: "ab"},
		{ID: 3, Title: "ab"},
		{ID: 4, Title: "a b"},
		{ID: 5, Title: "ab"},
	}
	got := Search(in, "ab")
	var order []int64
	for _, r := range got {
		order = append(order, r.ID)
	}
	want := []int64{2, 3, 5, 4, 1}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestSearchCompletenessFilter(t *testing.T) {
	candidates := []tab.Record{
		{Title: "Inbox - Mail", URL: "mail.example.com/inbox"},
		{Title: "Pull requests", URL: "github.com/pulls"},
		{Title: "", URL: "about:blank"},
		{Title: "Go Packages", URL: "pkg.go.dev"},
		{Title: "Calendar", URL: "calendar.example.com"},
	}
	for _, q := range []string{"in", "pr", "gpkg", "blank", "zzz", "calex", "mail.com", "a"} {
		for _, r := range Search(candidates, q) {
			if n := len(r.TitlePositions) + len(r.URLPositions); n != len([]rune(q)) {
				t.Errorf("query %q accepted %q with %d/%d matched", q, r.Title, n, len(q))
			}
		}
	}
}

func TestScoreMonotonicWhenMatchMovesEarlier(t *testing.T) {
	// Shifting the whole match left, or pulling the last matched character
	// closer, never lowers the rank.
	for gap := 1; gap < 6; gap++ {
		for lead := 1; lead < 6; lead++ {
			later := Score([]int{lead, lead + gap})
			shifted := Score([]int{lead - 1, lead - 1 + gap})
			if shifted < later {
				t.Errorf("shift left lowered score: lead=%d gap=%d", lead, gap)
			}
			if gap > 1 {
				pulled := Score([]int{lead, lead + gap - 1})
				if pulled < later {
					t.Errorf("pulling last match earlier lowered score: lead=%d gap=%d", lead, gap)
				}
			}
		}
	}

	for i := 1; i < 10; i++ {
		title := strings.Repeat("-", i) + "q"
		earlier := strings.Repeat("-", i-1) + "q"
		a := Search([]tab.Record{{Title: title}}, "q")[0].Rank
		b := Search([]tab.Record{{Title: earlier}}, "q")[0].Rank
		if b < a {
			t.Errorf("single-char match at %d ranked above %d", i, i-1)
		}
	}
}

func TestScoreDropsWhenOnlyFirstMatchMovesEarlier(t *testing.T) {
	// [2 3] -> [1 3]: the first match gains 1/2-1/3 but the gap costs 1-1/2.
	before := Score([]int{2, 3})
	after := Score([]int{1, 3})
	if math.Abs(before-(3+1.0/3)) > 1e-9 || math.Abs(after-3) > 1e-9 {
		t.Fatalf("Score = %v, %v; want 3.333, 3", before, after)
	}
	if after >= before {
		t.Errorf("expected the wider gap to outweigh the earlier start: %v >= %v", after, before)
	}

	res := Search([]tab.Record{{ID: 1, Title: "-xab"}, {ID: 2, Title: "-a-b"}}, "ab")
	if len(res) != 2 || res[0].ID != 1 {
		t.Errorf("order = %v, want the contiguous match first", res)
	}
}

func TestPositionsGreedy(t *testing.T) {
	got := Positions([]rune("banana"), []rune("ana"))
	if !equalInts(got, []int{1, 2, 3}) {
		t.Fatalf("Positions = %v, want [1 2 3]", got)
	}
	if got := Positions([]rune("abc"), nil); got != nil {
		t.Fatalf("empty query should match nothing, got %v", got)
	}
}

func TestScoreEmpty(t *testing.T) {
	if s := Score(nil); s != 0 {
		t.Fatalf("Score(nil) = %v", s)
	}
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
