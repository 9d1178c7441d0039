package reconcile

import "github.com/walunjakarsachinedu/tab-navigator/internal/tab"

// Merge orders the live tabs using a persisted snapshot.
//
// Persisted records that are still live come first, in persisted order,
// followed by the live records the snapshot did not know about, in live
// order. Persisted records that are no longer live are dropped, so the
// result holds exactly the live IDs, once each. Kept records are the
// persisted ones, unchanged.
func Merge(persisted, live []tab.Record) []tab.Record {
	isLive := make(map[int64]bool, len(live))
	for _, r := range live {
		isLive[r.ID] = true
	}

	out := make([]tab.Record, 0, len(live))
	placed := make(map[int64]bool, len(live))
	for _, p := range persisted {
		if !isLive[p.ID] || placed[p.ID] {
			continue
		}
		out = append(out, p)
		placed[p.ID] = true
	}
	for _, l := range live {
		if placed[l.ID] {
			continue
		}
		out = append(out, l)
		placed[l.ID] = true
	}
	return out
}
