// Package reconcile persists the tab order and rebuilds it on startup from
// the stored snapshot and the browser's live tabs.
package reconcile

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/walunjakarsachinedu/tab-navigator/internal/logging"
	"github.com/walunjakarsachinedu/tab-navigator/internal/tab"
)

// Key is the storage key holding the snapshot.
const Key = "tabQueue"

var reconcileLog = logging.ForComponent(logging.CompReconcile)

// Enumerator lists the live tabs.
type Enumerator func(ctx context.Context) ([]tab.Record, error)

// Options tunes the background writer.
type Options struct {
	// MinInterval is the minimum gap between two writes. Default 250ms.
	MinInterval time.Duration

	// WriteTimeout bounds one KV write. Default 5s.
	WriteTimeout time.Duration
}

// Reconciler writes snapshots to a KV in the background and restores them.
type Reconciler struct {
	kv      KV
	limiter *rate.Limiter
	timeout time.Duration

	mu      sync.Mutex
	pending []tab.Record
	dirty   bool
	closed  bool

	writeMu sync.Mutex

	wake      chan struct{}
	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// New starts a reconciler writing to kv.
func New(kv KV, opts Options) *Reconciler {
	if opts.MinInterval <= 0 {
		opts.MinInterval = 250 * time.Millisecond
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 5 * time.Second
	}
	r := &Reconciler{
		kv:      kv,
		limiter: rate.NewLimiter(rate.Every(opts.MinInterval), 1),
		timeout: opts.WriteTimeout,
		wake:    make(chan struct{}, 1),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go r.run()
	return r
}

// Persist schedules records to be written. It never blocks on I/O; if
// several snapshots arrive before the writer runs, only the newest is
// written. Write failures are logged.
func (r *Reconciler) Persist(records []tab.Record) {
	snap := append([]tab.Record(nil), records...)

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		reconcileLog.Debug("persist_after_close", slog.Int("tabs", len(snap)))
		return
	}
	r.pending = snap
	r.dirty = true
	r.mu.Unlock()

	select {
	case r.wake <- struct{}{}:
	default:
	}
}

func (r *Reconciler) take() ([]tab.Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.dirty {
		return nil, false
	}
	recs := r.pending
	r.pending, r.dirty = nil, false
	return recs, true
}

// requeue puts a failed snapshot back unless a newer one arrived meanwhile.
func (r *Reconciler) requeue(recs []tab.Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.dirty {
		r.pending, r.dirty = recs, true
	}
}

func (r *Reconciler) writePending(ctx context.Context) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	recs, ok := r.take()
	if !ok {
		return nil
	}
	blob, err := Encode(recs)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	if err := r.kv.Set(ctx, Key, blob); err != nil {
		r.requeue(recs)
		return err
	}
	reconcileLog.Debug("snapshot_written", slog.Int("tabs", len(recs)), slog.Int("bytes", len(blob)))
	return nil
}

func (r *Reconciler) run() {
	defer close(r.done)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-r.stop
		cancel()
	}()

	for {
		select {
		case <-r.stop:
			return
		case <-r.wake:
		}
		if err := r.limiter.Wait(ctx); err != nil {
			// stopping; Close does the final write
			return
		}
		// An in-flight write is allowed to finish even if Close was called.
		if err := r.writePending(context.Background()); err != nil {
			reconcileLog.Warn("snapshot_write_failed", slog.String("error", err.Error()))
		}
	}
}

// Flush writes any pending snapshot now.
func (r *Reconciler) Flush(ctx context.Context) error {
	return r.writePending(ctx)
}

// Close stops the background writer and flushes what is pending.
// Later Persist calls are dropped.
func (r *Reconciler) Close() error {
	var err error
	r.closeOnce.Do(func() {
		r.mu.Lock()
		r.closed = true
		r.mu.Unlock()
		close(r.stop)
		<-r.done
		err = r.writePending(context.Background())
	})
	return err
}

// Load reads the stored snapshot. A missing, unreadable or malformed
// snapshot is reported as ok == false and logged; it is never an error.
func (r *Reconciler) Load(ctx context.Context) (records []tab.Record, ok bool) {
	blob, found, err := r.kv.Get(ctx, Key)
	switch {
	case err != nil:
		reconcileLog.Warn("snapshot_read_failed", slog.String("error", err.Error()))
		return nil, false
	case !found:
		reconcileLog.Info("snapshot_absent")
		return nil, false
	}
	records, err = Decode(blob)
	if err != nil {
		reconcileLog.Warn("snapshot_discarded", slog.String("error", err.Error()), slog.Int("bytes", len(blob)))
		return nil, false
	}
	attrs := []any{slog.Int("tabs", len(records))}
	if at, ok := r.savedAt(ctx); ok {
		attrs = append(attrs, slog.Duration("age", time.Since(at).Round(time.Second)))
	}
	reconcileLog.Debug("snapshot_loaded", attrs...)
	return records, true
}

// savedAt reports when the snapshot was written, if the KV records it.
func (r *Reconciler) savedAt(ctx context.Context) (time.Time, bool) {
	ts, ok := r.kv.(Timestamped)
	if !ok {
		return time.Time{}, false
	}
	at, err := ts.UpdatedAt(ctx, Key)
	if err != nil || at.IsZero() {
		return time.Time{}, false
	}
	return at, true
}

// Restore rebuilds the store from the stored snapshot and the live tabs
// returned by enumerate. Without a usable snapshot the store starts empty
// and the live tabs are not consulted; tabs then enter it through host
// events. If enumeration fails the store is empty too.
func (r *Reconciler) Restore(ctx context.Context, enumerate Enumerator) *tab.Store {
	persisted, ok := r.Load(ctx)
	if !ok {
		return tab.NewStore()
	}

	live, err := enumerate(ctx)
	if err != nil {
		reconcileLog.Error("live_enumeration_failed", slog.String("error", err.Error()))
		return tab.NewStore()
	}

	merged := Merge(persisted, live)
	reconcileLog.Info("restored",
		slog.Int("persisted", len(persisted)),
		slog.Int("live", len(live)),
		slog.Int("tracked", len(merged)),
	)
	return tab.NewStoreFrom(merged)
}
