package cdp

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/chromedp/cdproto/target"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/walunjakarsachinedu/tab-navigator/internal/host"
	"github.com/walunjakarsachinedu/tab-navigator/internal/tab"
)

type fakeBrowser struct {
	mu        sync.Mutex
	self      target.ID
	infos     []*target.Info
	windows   map[target.ID]int64
	activated []target.ID
	closed    []target.ID
	fail      error
}

func (f *fakeBrowser) own(id target.ID) bool { return id == f.self }

func (f *fakeBrowser) targets(context.Context) ([]*target.Info, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.infos, f.fail
}

func (f *fakeBrowser) window(_ context.Context, id target.ID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w, ok := f.windows[id]
	if !ok {
		return 0, errors.New("no such target")
	}
	return w, nil
}

func (f *fakeBrowser) activate(_ context.Context, id target.ID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.activated = append(f.activated, id)
	return f.fail
}

func (f *fakeBrowser) close(_ context.Context, id target.ID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = append(f.closed, id)
	return f.fail
}

func page(id, url, title string) *target.Info {
	return &target.Info{TargetID: target.ID(id), Type: "page", URL: url, Title: title}
}

func newFake() *fakeBrowser {
	return &fakeBrowser{
		self: "SELF",
		infos: []*target.Info{
			page("A", "https://go.dev", "Go"),
			{TargetID: "W", Type: "service_worker", URL: "https://go.dev/sw.js"},
			page("SELF", "about:blank", ""),
			page("B", "https://pkg.go.dev", "Packages"),
		},
		windows: map[target.ID]int64{"A": 1, "B": 2, "SELF": 1},
	}
}

func record(events *[]host.Event) func(host.Event) {
	return func(ev host.Event) { *events = append(*events, ev) }
}

func TestFoldIDStable(t *testing.T) {
	a := FoldID("E3B0C44298FC1C149AFBF4C8996FB924")
	assert.Equal(t, a, FoldID("E3B0C44298FC1C149AFBF4C8996FB924"))
	assert.NotEqual(t, a, FoldID("E3B0C44298FC1C149AFBF4C8996FB925"))
	assert.GreaterOrEqual(t, a, int64(0))
}

func TestEnumerateSkipsNonPagesAndSelf(t *testing.T) {
	h := newHost(newFake(), Options{})

	tabs, err := h.Enumerate(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, tabs, 2)
	assert.Equal(t, tab.Record{
		ID: FoldID("A"), URL: "https://go.dev", Title: "Go", Status: StatusComplete, WindowID: 1,
	}, tabs[0])
	assert.Equal(t, FoldID("B"), tabs[1].ID)

	w := int64(2)
	tabs, err = h.Enumerate(context.Background(), &w)
	require.NoError(t, err)
	require.Len(t, tabs, 1)
	assert.Equal(t, "Packages", tabs[0].Title)
}

func TestEnumerateError(t *testing.T) {
	f := newFake()
	f.fail = errors.New("gone")
	h := newHost(f, Options{})
	_, err := h.Enumerate(context.Background(), nil)
	assert.Error(t, err)
}

func TestTargetEventsBecomeTabEvents(t *testing.T) {
	f := newFake()
	h := newHost(f, Options{})
	var events []host.Event
	h.Subscribe(record(&events))

	f.windows["C"] = 1
	h.process(&target.EventTargetCreated{TargetInfo: page("C", "https://a.example", "A")})
	h.process(&target.EventTargetInfoChanged{TargetInfo: page("C", "https://a.example", "A")})
	h.process(&target.EventTargetInfoChanged{TargetInfo: page("C", "https://b.example", "B")})
	f.windows["C"] = 3
	h.process(&target.EventTargetInfoChanged{TargetInfo: page("C", "https://b.example", "B")})
	h.process(&target.EventTargetDestroyed{TargetID: "C"})
	h.process(&target.EventTargetDestroyed{TargetID: "C"})

	id := FoldID("C")
	require.Len(t, events, 4)
	assert.Equal(t, host.Created, events[0].Kind)
	assert.Equal(t, int64(1), events[0].Tab.WindowID)

	assert.Equal(t, host.Updated, events[1].Kind)
	assert.Equal(t, id, events[1].TabID)
	assert.Equal(t, []string{"url", "title"}, events[1].Patch.Fields())

	assert.Equal(t, host.Moved, events[2].Kind)
	assert.Equal(t, int64(3), *events[2].Patch.WindowID)

	assert.Equal(t, host.Event{Kind: host.Removed, TabID: id}, events[3])
}

func TestIgnoredTargets(t *testing.T) {
	h := newHost(newFake(), Options{})
	var events []host.Event
	h.Subscribe(record(&events))

	h.process(&target.EventTargetCreated{TargetInfo: page("SELF", "about:blank", "")})
	h.process(&target.EventTargetCreated{TargetInfo: &target.Info{TargetID: "W", Type: "service_worker"}})
	h.process(&target.EventTargetCreated{TargetInfo: page("NOWINDOW", "https://x.example", "x")})

	assert.Empty(t, events)
}

func TestActivateEmitsEvent(t *testing.T) {
	f := newFake()
	h := newHost(f, Options{})
	_, err := h.Enumerate(context.Background(), nil)
	require.NoError(t, err)

	var events []host.Event
	h.Subscribe(record(&events))

	require.NoError(t, h.Activate(context.Background(), FoldID("B")))
	assert.Equal(t, []target.ID{"B"}, f.activated)
	require.Len(t, events, 1)
	assert.Equal(t, host.Event{Kind: host.Activated, TabID: FoldID("B"), WindowID: 2}, events[0])

	assert.ErrorIs(t, h.Activate(context.Background(), 12345), host.ErrUnknownTab)
}

func TestCloseCallsBrowser(t *testing.T) {
	f := newFake()
	h := newHost(f, Options{})
	_, err := h.Enumerate(context.Background(), nil)
	require.NoError(t, err)

	require.NoError(t, h.Close(context.Background(), FoldID("A")))
	assert.Equal(t, []target.ID{"A"}, f.closed)
	assert.ErrorIs(t, h.Close(context.Background(), 1), host.ErrUnknownTab)
}

func TestDiff(t *testing.T) {
	base := tab.Record{ID: 1, URL: "u", Title: "t"}
	assert.Nil(t, diff(base, base))

	p := diff(base, tab.Record{ID: 1, URL: "u", Title: "t2"})
	require.NotNil(t, p)
	assert.Nil(t, p.URL)
	assert.Equal(t, "t2", *p.Title)
}

func TestOnEventDropsWhenFull(t *testing.T) {
	h := newHost(newFake(), Options{})
	for i := 0; i < queueSize+10; i++ {
		h.onEvent(&target.EventTargetDestroyed{TargetID: "X"})
	}
	h.onEvent("ignored")
	assert.Len(t, h.queue, queueSize)
}
