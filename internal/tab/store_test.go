package tab

import (
	"bytes"
	"encoding/json"
	"testing"
)

func idsOf(records []Record) []int64 {
	out := make([]int64, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}

func equalIDs(a, b []int64) bool {
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

func TestStoreMoveToFront(t *testing.T) {
	s := NewStoreFrom([]Record{{ID: 1}, {ID: 2}, {ID: 3}})

	s.MoveToFront(ByID(3))

	got := idsOf(s.Snapshot(nil))
	if want := []int64{3, 1, 2}; !equalIDs(got, want) {
		t.Fatalf("order = %v, want %v", got, want)
	}
	front, ok := s.Front()
	if !ok || front.ID != 3 {
		t.Fatalf("Front = %+v, %v", front, ok)
	}
}

func TestStoreSnapshotIsDeepCopy(t *testing.T) {
	s := NewStoreFrom([]Record{{ID: 1, Title: "one"}})

	snap := s.Snapshot(nil)
	snap[0].Title = "mutated"

	got, _ := s.Get(1)
	if got.Title != "one" {
		t.Fatalf("store observed caller mutation: %q", got.Title)
	}
}

func TestStoreSnapshotWindowFilter(t *testing.T) {
	s := NewStoreFrom([]Record{
		{ID: 1, WindowID: 10},
		{ID: 2, WindowID: 20},
		{ID: 3, WindowID: 10},
	})

	w := int64(10)
	got := idsOf(s.Snapshot(&w))
	if want := []int64{1, 3}; !equalIDs(got, want) {
		t.Fatalf("window 10 = %v, want %v", got, want)
	}
}

func TestStoreUpdateMergesFields(t *testing.T) {
	s := NewStoreFrom([]Record{{ID: 1, URL: "a", Title: "A", Status: "loading"}, {ID: 2}})

	if !s.Update(ByID(1), &Patch{Status: String("complete"), Title: String("Alpha")}) {
		t.Fatal("Update returned false")
	}

	got, _ := s.Get(1)
	if got.URL != "a" || got.Title != "Alpha" || got.Status != "complete" {
		t.Fatalf("merged record = %+v", got)
	}
	if order := idsOf(s.Snapshot(nil)); !equalIDs(order, []int64{1, 2}) {
		t.Fatalf("update moved record: %v", order)
	}
}

func TestStoreUpdateNoops(t *testing.T) {
	s := NewStoreFrom([]Record{{ID: 1, Title: "A"}})

	if s.Update(ByID(1), nil) {
		t.Error("nil patch should be a no-op")
	}
	if s.Update(ByID(1), &Patch{}) {
		t.Error("empty patch should be a no-op")
	}
	if s.Update(ByID(2), &Patch{Title: String("B")}) {
		t.Error("missing id should be a no-op")
	}
}

func TestStoreRemoveMissingKeepsBytes(t *testing.T) {
	s := NewStoreFrom([]Record{{ID: 1, Title: "A"}, {ID: 2, Title: "B"}})
	before, _ := json.Marshal(s.Snapshot(nil))

	s.Remove(ByID(3))

	after, _ := json.Marshal(s.Snapshot(nil))
	if !bytes.Equal(before, after) {
		t.Fatalf("snapshot changed:\n%s\n%s", before, after)
	}
}

func TestPatchJSONMatchesChangeInfo(t *testing.T) {
	var p Patch
	if err := json.Unmarshal([]byte(`{"status":"complete","title":"Docs","pinned":true}`), &p); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if p.Status == nil || *p.Status != "complete" || p.Title == nil || *p.Title != "Docs" {
		t.Fatalf("decoded patch = %+v", p)
	}
	if p.URL != nil || p.WindowID != nil {
		t.Fatalf("unexpected fields set: %v", p.Fields())
	}
}

func TestDisplayURL(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"https://github.com/x", "github.com/x"},
		{"http://example.com", "example.com"},
		{"ftp://files.example.com", "files.example.com"},
		{"chrome://extensions", "chrome://extensions"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := DisplayURL(tt.in); got != tt.want {
			t.Errorf("DisplayURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
