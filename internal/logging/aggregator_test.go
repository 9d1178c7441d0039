package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
)

type syncBuffer struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.Write(p)
}

func (s *syncBuffer) lines() []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []map[string]any
	for _, l := range strings.Split(strings.TrimSpace(s.b.String()), "\n") {
		var m map[string]any
		if json.Unmarshal([]byte(l), &m) == nil {
			out = append(out, m)
		}
	}
	return out
}

func TestAggregatorCountsPerEvent(t *testing.T) {
	var buf syncBuffer
	agg := NewAggregator(slog.New(slog.NewJSONHandler(&buf, nil)), time.Hour)

	agg.Record(CompTracker, "tab_updated", slog.Int64("tab", 1))
	agg.Record(CompTracker, "tab_updated", slog.Int64("tab", 2))
	agg.Record(CompTracker, "tab_updated")
	agg.Record(CompBridge, "frame_dropped")
	agg.Flush()

	recs := buf.lines()
	if len(recs) != 2 {
		t.Fatalf("got %d summaries, want 2: %v", len(recs), recs)
	}
	// sorted by component then event
	if recs[0]["component"] != CompBridge || recs[1]["event"] != "tab_updated" {
		t.Errorf("unexpected order: %v", recs)
	}
	if recs[1]["count"] != float64(3) || recs[1]["tab"] != float64(2) {
		t.Errorf("tab_updated summary = %v", recs[1])
	}

	agg.Flush()
	if n := len(buf.lines()); n != 2 {
		t.Errorf("empty flush wrote output, now %d lines", n)
	}
}

func TestAggregatorTicker(t *testing.T) {
	var buf syncBuffer
	agg := NewAggregator(slog.New(slog.NewJSONHandler(&buf, nil)), 20*time.Millisecond)
	agg.Start()
	defer agg.Stop()

	agg.Record(CompWeb, "sse_client")
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(buf.lines()) > 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("ticker never flushed")
}

func TestAggregatorNilLoggerAndDoubleStop(t *testing.T) {
	agg := NewAggregator(nil, time.Millisecond)
	agg.Start()
	agg.Record(CompStore, "noop")
	agg.Stop()
	agg.Stop()
}
