package mru

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type item struct {
	id   int
	name string
}

type rename struct{ name *string }

func (r rename) Empty() bool { return r.name == nil }

func (r rename) Apply(v *item) *item {
	v.name = *r.name
	return v
}

func byID(id int) Matcher[*item] {
	return ByPredicate(func(it *item) bool { return it.id == id })
}

func ids(l *List[*item]) []int {
	out := make([]int, 0, l.Len())
	for _, it := range l.Snapshot() {
		out = append(out, it.id)
	}
	return out
}

func newList(idList ...int) *List[*item] {
	l := New[*item]()
	for _, id := range idList {
		l.Add(&item{id: id})
	}
	return l
}

func TestMoveToFront(t *testing.T) {
	l := newList(1, 2, 3)

	require.True(t, l.MoveToFront(byID(3)))
	assert.Equal(t, []int{3, 1, 2}, ids(l))

	require.True(t, l.MoveToFront(byID(3)))
	assert.Equal(t, []int{3, 1, 2}, ids(l), "already at front")

	assert.False(t, l.MoveToFront(byID(9)))
	assert.Equal(t, []int{3, 1, 2}, ids(l))
}

func TestRemoveFirstMatchOnly(t *testing.T) {
	l := New[*item]()
	a := &item{id: 1, name: "a"}
	b := &item{id: 1, name: "b"}
	l.Add(a)
	l.Add(b)

	require.True(t, l.Remove(byID(1)))
	snap := l.Snapshot()
	require.Len(t, snap, 1)
	assert.Same(t, b, snap[0])
}

func TestRemoveMissingIsNoop(t *testing.T) {
	l := newList(1, 2, 3)
	before := l.Snapshot()

	assert.False(t, l.Remove(byID(42)))
	assert.Equal(t, before, l.Snapshot())
}

func TestUpdateKeepsPosition(t *testing.T) {
	l := newList(1, 2, 3)
	name := "renamed"

	require.True(t, l.Update(byID(2), rename{name: &name}))
	assert.Equal(t, []int{1, 2, 3}, ids(l))
	got, ok := l.Find(byID(2))
	require.True(t, ok)
	assert.Equal(t, "renamed", got.name)
}

func TestUpdateEmptyOrNilPatch(t *testing.T) {
	l := newList(1)
	assert.False(t, l.Update(byID(1), rename{}))
	assert.False(t, l.Update(byID(1), nil))

	name := "x"
	assert.False(t, l.Update(byID(5), rename{name: &name}))
}

func TestExactValueWinsOverPredicate(t *testing.T) {
	l := New[*item]()
	first := &item{id: 1}
	second := &item{id: 2}
	l.Add(first)
	l.Add(second)

	m := ByValue(second).WithPredicate(func(it *item) bool { return it.id == 1 })
	require.True(t, l.MoveToFront(m))
	assert.Equal(t, []int{2, 1}, ids(l))
}

func TestByValueUsesIdentity(t *testing.T) {
	l := New[*item]()
	l.Add(&item{id: 1, name: "same"})

	lookalike := &item{id: 1, name: "same"}
	assert.Equal(t, -1, l.Index(ByValue(lookalike)))
}

func TestSnapshotIsCopy(t *testing.T) {
	l := newList(1, 2)
	snap := l.Snapshot()
	snap[0] = &item{id: 99}

	assert.Equal(t, []int{1, 2}, ids(l))
}

func TestZeroMatcherMatchesNothing(t *testing.T) {
	l := newList(1)
	assert.False(t, l.Remove(Matcher[*item]{}))
	assert.Equal(t, 1, l.Len())
}

// Random operation sequences must leave exactly one entry per live id, and a
// moved id must end up at the front.
func TestOrderInvariantUnderRandomOps(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	l := New[*item]()
	live := map[int]bool{}
	nextID := 1

	for step := 0; step < 2000; step++ {
		switch op := rng.Intn(4); {
		case op == 0 || len(live) == 0:
			l.Add(&item{id: nextID})
			live[nextID] = true
			nextID++
		case op == 1:
			id := rng.Intn(nextID) + 1
			l.MoveToFront(byID(id))
			if live[id] {
				require.Equal(t, id, l.Snapshot()[0].id, "step %d", step)
			}
		case op == 2:
			id := rng.Intn(nextID) + 1
			l.Remove(byID(id))
			delete(live, id)
		default:
			name := "n"
			l.Update(byID(rng.Intn(nextID)+1), rename{name: &name})
		}

		seen := map[int]bool{}
		for _, it := range l.Snapshot() {
			require.False(t, seen[it.id], "duplicate id %d at step %d", it.id, step)
			seen[it.id] = true
		}
		require.Equal(t, live, seen, "step %d", step)
	}
}
