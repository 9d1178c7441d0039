package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/walunjakarsachinedu/tab-navigator/internal/tab"
)

var tabEventsHeartbeatInterval = 15 * time.Second

// handleTabEvents streams the ordered tab list as "tabs" events: once on
// connect and again after every change.
func (s *Server) handleTabEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeAPIError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
		return
	}
	if s.cfg.Tabs == nil {
		writeAPIError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "tracker not running")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeAPIError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "stream unavailable")
		return
	}

	ctx := r.Context()

	// Subscribe before the first read so no change falls in between.
	changes := make(chan []tab.Record, 1)
	unsubscribe := s.cfg.Tabs.Changes(func(tabs []tab.Record) {
		// Keep only the newest list.
		select {
		case <-changes:
		default:
		}
		select {
		case changes <- tabs:
		default:
		}
	})
	defer unsubscribe()

	initial, err := s.cfg.Tabs.OrderedTabs(ctx, nil)
	if err != nil {
		writeHostError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	if err := writeSSEEvent(w, flusher, "tabs", recordsResponse{Tabs: initial}); err != nil {
		return
	}

	heartbeat := time.NewTicker(tabEventsHeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			if err := writeSSEComment(w, flusher, "keepalive"); err != nil {
				return
			}
		case tabs := <-changes:
			if err := writeSSEEvent(w, flusher, "tabs", recordsResponse{Tabs: tabs}); err != nil {
				return
			}
		}
	}
}

func writeSSEEvent(w http.ResponseWriter, flusher http.Flusher, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}

func writeSSEComment(w http.ResponseWriter, flusher http.Flusher, comment string) error {
	if _, err := fmt.Fprintf(w, ": %s\n\n", comment); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
