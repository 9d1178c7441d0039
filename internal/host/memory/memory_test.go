package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/walunjakarsachinedu/tab-navigator/internal/host"
	"github.com/walunjakarsachinedu/tab-navigator/internal/tab"
)

func rec(id, window int64) tab.Record {
	return tab.Record{ID: id, URL: "https://example.com", Title: "t", Status: "complete", WindowID: window}
}

func TestEnumerateFiltersByWindow(t *testing.T) {
	h := New(rec(1, 1), rec(2, 2), rec(3, 1))

	all, err := h.Enumerate(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	w := int64(1)
	one, err := h.Enumerate(context.Background(), &w)
	require.NoError(t, err)
	require.Len(t, one, 2)
	assert.Equal(t, int64(1), one[0].ID)
	assert.Equal(t, int64(3), one[1].ID)
}

func TestFailEnumerate(t *testing.T) {
	h := New(rec(1, 1))
	boom := errors.New("boom")
	h.FailEnumerate(boom)
	_, err := h.Enumerate(context.Background(), nil)
	assert.ErrorIs(t, err, boom)

	h.FailEnumerate(nil)
	_, err = h.Enumerate(context.Background(), nil)
	assert.NoError(t, err)
}

func TestMutationsEmitEvents(t *testing.T) {
	h := New(rec(1, 1))
	var got []host.Event
	unsub := h.Subscribe(func(ev host.Event) { got = append(got, ev) })

	h.Open(rec(2, 1))
	h.Change(2, &tab.Patch{Title: tab.String("new")})
	h.Move(2, 5)
	require.NoError(t, h.Activate(context.Background(), 2))
	require.NoError(t, h.Close(context.Background(), 1))

	kinds := make([]host.Kind, len(got))
	for i, ev := range got {
		kinds[i] = ev.Kind
	}
	assert.Equal(t, []host.Kind{host.Created, host.Updated, host.Moved, host.Activated, host.Removed}, kinds)
	assert.Equal(t, int64(5), got[3].WindowID)

	tabs, _ := h.Enumerate(context.Background(), nil)
	require.Len(t, tabs, 1)
	assert.Equal(t, "new", tabs[0].Title)

	unsub()
	assert.Equal(t, 0, h.Subscribers())
}

func TestUnknownTab(t *testing.T) {
	h := New()
	assert.ErrorIs(t, h.Activate(context.Background(), 9), host.ErrUnknownTab)
	assert.ErrorIs(t, h.Close(context.Background(), 9), host.ErrUnknownTab)
	assert.False(t, h.Remove(9))
}
