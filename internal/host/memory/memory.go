// Package memory is an in-process Host for tests and offline demos.
package memory

import (
	"context"
	"sync"

	"github.com/walunjakarsachinedu/tab-navigator/internal/host"
	"github.com/walunjakarsachinedu/tab-navigator/internal/pubsub"
	"github.com/walunjakarsachinedu/tab-navigator/internal/tab"
)

// Host keeps tabs in memory and emits events synchronously from the
// goroutine that changed them.
type Host struct {
	mu      sync.Mutex
	tabs    []tab.Record
	enumErr error

	// emitMu keeps handler calls from overlapping.
	emitMu sync.Mutex
	bus    pubsub.Bus[host.Event]
}

var _ host.Host = (*Host)(nil)

// New returns a host holding tabs in browser (tab strip) order.
func New(tabs ...tab.Record) *Host {
	return &Host{tabs: append([]tab.Record(nil), tabs...)}
}

func (h *Host) emit(ev host.Event) {
	h.emitMu.Lock()
	defer h.emitMu.Unlock()
	h.bus.Emit(ev)
}

func (h *Host) indexOf(id int64) int {
	for i, t := range h.tabs {
		if t.ID == id {
			return i
		}
	}
	return -1
}

// FailEnumerate makes Enumerate return err until called again with nil.
func (h *Host) FailEnumerate(err error) {
	h.mu.Lock()
	h.enumErr = err
	h.mu.Unlock()
}

func (h *Host) Enumerate(ctx context.Context, window *int64) ([]tab.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.enumErr != nil {
		return nil, h.enumErr
	}
	out := make([]tab.Record, 0, len(h.tabs))
	for _, t := range h.tabs {
		if window == nil || t.WindowID == *window {
			out = append(out, t)
		}
	}
	return out, nil
}

func (h *Host) Subscribe(fn func(host.Event)) func() {
	return h.bus.Subscribe(fn)
}

// Subscribers returns how many handlers are registered.
func (h *Host) Subscribers() int {
	return h.bus.Len()
}

func (h *Host) Activate(ctx context.Context, id int64) error {
	h.mu.Lock()
	i := h.indexOf(id)
	var window int64
	if i >= 0 {
		window = h.tabs[i].WindowID
	}
	h.mu.Unlock()
	if i < 0 {
		return host.ErrUnknownTab
	}
	h.emit(host.Event{Kind: host.Activated, TabID: id, WindowID: window})
	return nil
}

func (h *Host) Close(ctx context.Context, id int64) error {
	if !h.Remove(id) {
		return host.ErrUnknownTab
	}
	return nil
}

// Open adds a tab and emits Created.
func (h *Host) Open(r tab.Record) {
	h.mu.Lock()
	h.tabs = append(h.tabs, r)
	h.mu.Unlock()
	h.emit(host.CreatedEvent(r))
}

// Change applies p to a tab and emits Updated. Unknown ids still emit, the
// way a browser may report changes for tabs the tracker never saw.
func (h *Host) Change(id int64, p *tab.Patch) {
	h.mu.Lock()
	if i := h.indexOf(id); i >= 0 {
		p.Apply(&h.tabs[i])
	}
	h.mu.Unlock()
	h.emit(host.UpdatedEvent(id, p))
}

// Move attaches a tab to window and emits Moved.
func (h *Host) Move(id, window int64) {
	h.mu.Lock()
	if i := h.indexOf(id); i >= 0 {
		h.tabs[i].WindowID = window
	}
	h.mu.Unlock()
	h.emit(host.MovedEvent(id, window))
}

// Remove drops a tab and emits Removed. It reports whether the tab existed.
func (h *Host) Remove(id int64) bool {
	h.mu.Lock()
	i := h.indexOf(id)
	if i >= 0 {
		h.tabs = append(h.tabs[:i], h.tabs[i+1:]...)
	}
	h.mu.Unlock()
	if i < 0 {
		return false
	}
	h.emit(host.Event{Kind: host.Removed, TabID: id})
	return true
}

// Emit sends an arbitrary event without changing state.
func (h *Host) Emit(ev host.Event) {
	h.emit(ev)
}
