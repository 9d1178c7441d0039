// Package host defines the boundary to the browser that owns the tabs.
package host

import (
	"context"
	"errors"
	"fmt"

	"github.com/walunjakarsachinedu/tab-navigator/internal/tab"
)

var (
	// ErrNotConnected is returned when the browser side is not reachable.
	ErrNotConnected = errors.New("host: not connected")

	// ErrUnknownTab is returned for an id the browser does not know.
	ErrUnknownTab = errors.New("host: unknown tab")
)

// Kind is a tab lifecycle event type.
type Kind string

const (
	Created   Kind = "created"
	Updated   Kind = "updated"
	Removed   Kind = "removed"
	Activated Kind = "activated"
	Moved     Kind = "moved"
)

// Event is one lifecycle notification.
//
//	Created:   Tab is set.
//	Updated:   Patch holds the changed fields.
//	Moved:     Patch.WindowID holds the new window.
//	Activated: WindowID is the window that gained focus on TabID.
//	Removed:   only TabID.
type Event struct {
	Kind     Kind
	TabID    int64
	Tab      *tab.Record
	Patch    *tab.Patch
	WindowID int64
}

func (e Event) String() string {
	return fmt.Sprintf("%s(tab=%d)", e.Kind, e.TabID)
}

// Host is a source of tabs and tab events.
type Host interface {
	// Enumerate returns the live tabs, limited to one window when window
	// is non-nil.
	Enumerate(ctx context.Context, window *int64) ([]tab.Record, error)

	// Subscribe registers fn for lifecycle events until unsubscribe is
	// called. fn may be called from any goroutine but never concurrently
	// with itself.
	Subscribe(fn func(Event)) (unsubscribe func())

	// Activate focuses the tab in the browser.
	Activate(ctx context.Context, id int64) error

	// Close closes the tab in the browser.
	Close(ctx context.Context, id int64) error
}

// CreatedEvent builds a Created event for r.
func CreatedEvent(r tab.Record) Event {
	return Event{Kind: Created, TabID: r.ID, Tab: &r}
}

// UpdatedEvent builds an Updated event.
func UpdatedEvent(id int64, p *tab.Patch) Event {
	return Event{Kind: Updated, TabID: id, Patch: p}
}

// MovedEvent builds a Moved event attaching id to window.
func MovedEvent(id, window int64) Event {
	return Event{Kind: Moved, TabID: id, Patch: &tab.Patch{WindowID: tab.Int64(window)}}
}
