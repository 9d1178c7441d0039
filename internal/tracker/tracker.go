// Package tracker keeps the MRU tab store in sync with a browser host and
// answers ordered-list and search queries against it.
package tracker

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/walunjakarsachinedu/tab-navigator/internal/future"
	"github.com/walunjakarsachinedu/tab-navigator/internal/host"
	"github.com/walunjakarsachinedu/tab-navigator/internal/logging"
	"github.com/walunjakarsachinedu/tab-navigator/internal/pubsub"
	"github.com/walunjakarsachinedu/tab-navigator/internal/rank"
	"github.com/walunjakarsachinedu/tab-navigator/internal/reconcile"
	"github.com/walunjakarsachinedu/tab-navigator/internal/tab"
)

var trackerLog = logging.ForComponent(logging.CompTracker)

// ErrStopped is returned by queries after Stop.
var ErrStopped = errors.New("tracker: stopped")

// Options tunes a Tracker.
type Options struct {
	// MaxResults caps Search results. 0 means no cap.
	MaxResults int
}

// Tracker owns the tab store. All store access goes through one mutex, so
// each host event is applied completely before the next one or any query.
type Tracker struct {
	host host.Host
	rec  *reconcile.Reconciler
	opts Options

	ready *future.Future[struct{}]

	mu      sync.Mutex
	store   *tab.Store
	unsub   func()
	started bool
	stopped bool

	changes pubsub.Bus[[]tab.Record]
}

// New returns a tracker over h that persists through rec. Call Start.
func New(h host.Host, rec *reconcile.Reconciler, opts Options) *Tracker {
	return &Tracker{
		host:  h,
		rec:   rec,
		opts:  opts,
		ready: future.New[struct{}](),
		store: tab.NewStore(),
	}
}

// Start restores the saved order against the host's live tabs and then
// begins applying host events. It returns immediately; queries wait until
// the restore is done. Calling Start more than once has no effect.
func (t *Tracker) Start(ctx context.Context) {
	t.mu.Lock()
	if t.started || t.stopped {
		t.mu.Unlock()
		return
	}
	t.started = true
	t.mu.Unlock()

	go t.restore(ctx)
}

func (t *Tracker) restore(ctx context.Context) {
	store := t.rec.Restore(ctx, func(ctx context.Context) ([]tab.Record, error) {
		return t.host.Enumerate(ctx, nil)
	})

	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		t.ready.Resolve(struct{}{}, ErrStopped)
		return
	}
	t.store = store
	snap := t.store.Snapshot(nil)
	t.rec.Persist(snap)
	t.mu.Unlock()

	// The restored list goes out before any host event can produce a newer one.
	t.changes.Emit(snap)

	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		t.ready.Resolve(struct{}{}, ErrStopped)
		return
	}
	t.unsub = t.host.Subscribe(t.apply)
	t.mu.Unlock()

	t.ready.Resolve(struct{}{}, nil)
	trackerLog.Info("tracker_ready", slog.Int("tabs", len(snap)))
}

// Ready is closed once the initial restore has finished.
func (t *Tracker) Ready() <-chan struct{} {
	return t.ready.Done()
}

func (t *Tracker) apply(ev host.Event) {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	if !t.applyLocked(ev) {
		t.mu.Unlock()
		return
	}
	snap := t.store.Snapshot(nil)
	// Persist under the lock so snapshots are queued in mutation order.
	t.rec.Persist(snap)
	t.mu.Unlock()

	t.changes.Emit(snap)
}

func (t *Tracker) applyLocked(ev host.Event) bool {
	id := ev.TabID
	switch ev.Kind {
	case host.Created:
		if ev.Tab == nil {
			trackerLog.Warn("created_without_tab", slog.Int64("tab", id))
			return false
		}
		if t.store.Has(ev.Tab.ID) {
			// Seen during restore already; refresh instead of duplicating.
			trackerLog.Debug("created_known_tab", slog.Int64("tab", ev.Tab.ID))
			return t.store.Update(tab.ByID(ev.Tab.ID), fullPatch(*ev.Tab))
		}
		t.store.Add(*ev.Tab)
		return true

	case host.Updated, host.Moved:
		if ev.Patch.Empty() {
			return false
		}
		logging.Aggregate(logging.CompTracker, "tab_"+string(ev.Kind),
			slog.Int64("tab", id),
			slog.Any("fields", ev.Patch.Fields()),
		)
		return t.store.Update(tab.ByID(id), ev.Patch)

	case host.Removed:
		return t.store.Remove(tab.ByID(id))

	case host.Activated:
		moved := t.store.MoveToFront(tab.ByID(id))
		if moved && ev.WindowID != 0 {
			t.store.Update(tab.ByID(id), &tab.Patch{WindowID: tab.Int64(ev.WindowID)})
		}
		if !moved {
			trackerLog.Debug("activated_unknown_tab", slog.Int64("tab", id))
		}
		return moved
	}
	trackerLog.Warn("unknown_event", slog.String("kind", string(ev.Kind)))
	return false
}

func fullPatch(r tab.Record) *tab.Patch {
	return &tab.Patch{
		URL:        tab.String(r.URL),
		Title:      tab.String(r.Title),
		Status:     tab.String(r.Status),
		FavIconURL: tab.String(r.FavIconURL),
		WindowID:   tab.Int64(r.WindowID),
	}
}

// OrderedTabs returns the tabs most recently used first, optionally only
// those of one window. It waits for the initial restore.
func (t *Tracker) OrderedTabs(ctx context.Context, window *int64) ([]tab.Record, error) {
	if _, err := t.ready.Await(ctx); err != nil {
		return nil, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return nil, ErrStopped
	}
	return t.store.Snapshot(window), nil
}

// Search ranks the ordered tabs against query. An empty query returns the
// ordered tabs unranked.
func (t *Tracker) Search(ctx context.Context, window *int64, query string) ([]rank.Result, error) {
	tabs, err := t.OrderedTabs(ctx, window)
	if err != nil {
		return nil, err
	}
	res := rank.Search(tabs, query)
	if n := t.opts.MaxResults; n > 0 && len(res) > n {
		res = res[:n]
	}
	return res, nil
}

// CurrentWindow returns the window of the most recently used tab. ok is
// false when no tab is tracked.
func (t *Tracker) CurrentWindow(ctx context.Context) (window int64, ok bool, err error) {
	if _, err := t.ready.Await(ctx); err != nil {
		return 0, false, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	front, ok := t.store.Front()
	return front.WindowID, ok, nil
}

// Activate asks the browser to focus the tab. The store is updated by the
// resulting Activated event.
func (t *Tracker) Activate(ctx context.Context, id int64) error {
	return t.host.Activate(ctx, id)
}

// Close asks the browser to close the tab.
func (t *Tracker) Close(ctx context.Context, id int64) error {
	return t.host.Close(ctx, id)
}

// Changes calls fn with the full ordered list after every store change.
func (t *Tracker) Changes(fn func([]tab.Record)) (unsubscribe func()) {
	return t.changes.Subscribe(fn)
}

// Stop detaches from the host and flushes the last snapshot.
func (t *Tracker) Stop() error {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return nil
	}
	t.stopped = true
	unsub := t.unsub
	t.unsub = nil
	started := t.started
	t.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	t.changes.Clear()
	if !started {
		t.ready.Resolve(struct{}{}, ErrStopped)
	}
	return t.rec.Close()
}
