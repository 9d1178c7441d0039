package cdp

import (
	"hash/fnv"

	"github.com/chromedp/cdproto/target"

	"github.com/walunjakarsachinedu/tab-navigator/internal/tab"
)

const targetTypePage = "page"

// StatusComplete is reported for every CDP tab; target info carries no
// loading state.
const StatusComplete = "complete"

// FoldID maps a DevTools target id onto a stable non-negative tab id using
// FNV-1a.
func FoldID(id target.ID) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(id))
	return int64(h.Sum64() &^ (1 << 63))
}

func isPage(info *target.Info) bool {
	return info != nil && info.Type == targetTypePage
}

func toRecord(info *target.Info, window int64) tab.Record {
	return tab.Record{
		ID:       FoldID(info.TargetID),
		URL:      info.URL,
		Title:    info.Title,
		Status:   StatusComplete,
		WindowID: window,
	}
}

// diff returns the fields of next that differ from prev, or nil.
func diff(prev, next tab.Record) *tab.Patch {
	p := &tab.Patch{}
	if prev.URL != next.URL {
		p.URL = tab.String(next.URL)
	}
	if prev.Title != next.Title {
		p.Title = tab.String(next.Title)
	}
	if p.Empty() {
		return nil
	}
	return p
}
