package logging

import (
	"log/slog"
	"sort"
	"sync"
	"time"
)

type eventKey struct {
	component string
	event     string
}

type eventCount struct {
	n    int64
	last []slog.Attr
}

// Aggregator counts repeated events and logs one summary line per event
// each interval instead of one line per occurrence.
type Aggregator struct {
	logger   *slog.Logger
	interval time.Duration

	mu     sync.Mutex
	counts map[eventKey]*eventCount

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewAggregator returns an aggregator writing to logger. A nil logger drops
// summaries.
func NewAggregator(logger *slog.Logger, interval time.Duration) *Aggregator {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Aggregator{
		logger:   logger,
		interval: interval,
		counts:   make(map[eventKey]*eventCount),
		stop:     make(chan struct{}),
	}
}

// Start runs the periodic flush in the background.
func (a *Aggregator) Start() {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		t := time.NewTicker(a.interval)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				a.Flush()
			case <-a.stop:
				return
			}
		}
	}()
}

// Stop ends the background loop and writes whatever is still pending.
func (a *Aggregator) Stop() {
	a.stopOnce.Do(func() { close(a.stop) })
	a.wg.Wait()
	a.Flush()
}

// Record counts one occurrence. The attributes of the latest call are kept
// for the summary.
func (a *Aggregator) Record(component, event string, fields ...slog.Attr) {
	a.mu.Lock()
	defer a.mu.Unlock()
	k := eventKey{component, event}
	c := a.counts[k]
	if c == nil {
		c = &eventCount{}
		a.counts[k] = c
	}
	c.n++
	if len(fields) > 0 {
		c.last = fields
	}
}

// Flush logs and resets the current counts.
func (a *Aggregator) Flush() {
	a.mu.Lock()
	counts := a.counts
	a.counts = make(map[eventKey]*eventCount)
	a.mu.Unlock()

	if a.logger == nil || len(counts) == 0 {
		return
	}

	keys := make([]eventKey, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].component != keys[j].component {
			return keys[i].component < keys[j].component
		}
		return keys[i].event < keys[j].event
	})

	for _, k := range keys {
		c := counts[k]
		args := []any{
			slog.String("component", k.component),
			slog.String("event", k.event),
			slog.Int64("count", c.n),
			slog.Duration("window", a.interval),
		}
		for _, f := range c.last {
			args = append(args, f)
		}
		a.logger.Info("event_summary", args...)
	}
}
