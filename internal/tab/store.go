package tab

import "github.com/walunjakarsachinedu/tab-navigator/internal/mru"

// ByID matches the record with the given tab ID.
func ByID(id int64) mru.Matcher[*Record] {
	return mru.ByPredicate(func(r *Record) bool { return r.ID == id })
}

// Store keeps tab records in most-recently-used order. Index 0 is the
// active tab. A Store is not safe for concurrent use.
type Store struct {
	list *mru.List[*Record]
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{list: mru.New[*Record]()}
}

// NewStoreFrom builds a store holding records in the given order.
func NewStoreFrom(records []Record) *Store {
	s := NewStore()
	for _, r := range records {
		s.Add(r)
	}
	return s
}

// Add appends a copy of r at the least recently used end. The caller must
// ensure r.ID is not already present.
func (s *Store) Add(r Record) {
	s.list.Add(&r)
}

// Has reports whether a record with id is present.
func (s *Store) Has(id int64) bool {
	return s.list.Index(ByID(id)) >= 0
}

// Get returns a copy of the record with id.
func (s *Store) Get(id int64) (Record, bool) {
	r, ok := s.list.Find(ByID(id))
	if !ok {
		return Record{}, false
	}
	return *r, true
}

// MoveToFront marks the matched record as most recently used.
func (s *Store) MoveToFront(m mru.Matcher[*Record]) bool {
	return s.list.MoveToFront(m)
}

// Remove drops the first matched record.
func (s *Store) Remove(m mru.Matcher[*Record]) bool {
	return s.list.Remove(m)
}

// Update merges p into the first matched record in place.
func (s *Store) Update(m mru.Matcher[*Record], p *Patch) bool {
	if p.Empty() {
		return false
	}
	return s.list.Update(m, p)
}

// Len returns the number of tracked tabs.
func (s *Store) Len() int {
	return s.list.Len()
}

// Front returns a copy of the most recently used record.
func (s *Store) Front() (Record, bool) {
	items := s.list.Snapshot()
	if len(items) == 0 {
		return Record{}, false
	}
	return *items[0], true
}

// Snapshot returns copies of the records in MRU order. When window is
// non-nil only records of that window are returned.
func (s *Store) Snapshot(window *int64) []Record {
	items := s.list.Snapshot()
	out := make([]Record, 0, len(items))
	for _, r := range items {
		if window != nil && r.WindowID != *window {
			continue
		}
		out = append(out, *r)
	}
	return out
}
