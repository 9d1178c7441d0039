// Package logging wires log/slog to a rotating file, an in-memory crash ring
// and a periodic summary aggregator.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Components used as the "component" attribute on every record.
const (
	CompTracker   = "tracker"
	CompStore     = "store"
	CompReconcile = "reconcile"
	CompHost      = "host"
	CompBridge    = "bridge"
	CompCDP       = "cdp"
	CompWeb       = "web"
	CompUI        = "ui"
	CompConfig    = "config"
	CompStateDB   = "statedb"
	CompCLI       = "cli"
)

// LogFileName is the active log file inside Config.Dir.
const LogFileName = "debug.log"

// Config controls Init.
type Config struct {
	// Dir receives LogFileName. Empty with Debug unset discards output.
	Dir string

	// Level is one of "debug", "info", "warn", "error". Default info.
	Level string

	// Format is "json" (default) or "text".
	Format string

	// Rotation, passed through to lumberjack.
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool

	// RingBufferSize bounds the crash ring in bytes (default 2MB).
	RingBufferSize int

	// AggregateInterval is how often batched events are summarised (default 30s).
	AggregateInterval time.Duration

	// PprofAddr starts net/http/pprof on this address when non-empty.
	PprofAddr string

	// Debug mirrors records to stderr and forces debug level.
	Debug bool
}

type state struct {
	logger *slog.Logger
	ring   *RingBuffer
	agg    *Aggregator
	file   *lumberjack.Logger
}

var (
	mu      sync.RWMutex
	current state
	discard = slog.New(slog.NewJSONHandler(io.Discard, nil))
)

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// Init replaces the global logging setup. Call Shutdown to release the file.
func Init(cfg Config) {
	if cfg.MaxSizeMB <= 0 {
		cfg.MaxSizeMB = 10
	}
	if cfg.MaxBackups <= 0 {
		cfg.MaxBackups = 3
	}
	if cfg.MaxAgeDays <= 0 {
		cfg.MaxAgeDays = 14
	}
	if cfg.RingBufferSize <= 0 {
		cfg.RingBufferSize = 2 << 20
	}
	if cfg.AggregateInterval <= 0 {
		cfg.AggregateInterval = 30 * time.Second
	}
	level := parseLevel(cfg.Level)
	if cfg.Debug {
		level = slog.LevelDebug
	}

	Shutdown()

	mu.Lock()
	defer mu.Unlock()

	if cfg.Dir == "" && !cfg.Debug {
		current = state{
			logger: discard,
			ring:   NewRingBuffer(4096),
			agg:    NewAggregator(nil, cfg.AggregateInterval),
		}
		return
	}

	ring := NewRingBuffer(cfg.RingBufferSize)
	writers := []io.Writer{ring}
	var file *lumberjack.Logger
	if cfg.Dir != "" {
		file = &lumberjack.Logger{
			Filename:   filepath.Join(cfg.Dir, LogFileName),
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		}
		writers = append(writers, file)
	}
	if cfg.Debug {
		writers = append(writers, os.Stderr)
	}

	opts := &slog.HandlerOptions{Level: level}
	out := io.MultiWriter(writers...)
	var h slog.Handler = slog.NewJSONHandler(out, opts)
	if cfg.Format == "text" {
		h = slog.NewTextHandler(out, opts)
	}
	logger := slog.New(h)

	agg := NewAggregator(logger, cfg.AggregateInterval)
	agg.Start()

	current = state{logger: logger, ring: ring, agg: agg, file: file}

	if cfg.PprofAddr != "" {
		startPprof(cfg.PprofAddr)
	}
}

// Logger returns the root logger. Before Init it discards everything.
func Logger() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	if current.logger == nil {
		return discard
	}
	return current.logger
}

// ForComponent returns a logger tagged with component. It resolves the root
// handler on every record, so package-level loggers declared before Init
// still reach the configured outputs.
func ForComponent(component string) *slog.Logger {
	return slog.New(&lateHandler{component: component})
}

type lateHandler struct {
	component string
	// ops replays WithAttrs/WithGroup calls, in order, on the live handler.
	ops []func(slog.Handler) slog.Handler
}

func (h *lateHandler) resolve() slog.Handler {
	out := Logger().Handler().WithAttrs([]slog.Attr{slog.String("component", h.component)})
	for _, op := range h.ops {
		out = op(out)
	}
	return out
}

func (h *lateHandler) with(op func(slog.Handler) slog.Handler) *lateHandler {
	ops := make([]func(slog.Handler) slog.Handler, len(h.ops), len(h.ops)+1)
	copy(ops, h.ops)
	return &lateHandler{component: h.component, ops: append(ops, op)}
}

func (h *lateHandler) Enabled(ctx context.Context, l slog.Level) bool {
	return Logger().Handler().Enabled(ctx, l)
}

func (h *lateHandler) Handle(ctx context.Context, r slog.Record) error {
	return h.resolve().Handle(ctx, r)
}

func (h *lateHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	return h.with(func(in slog.Handler) slog.Handler { return in.WithAttrs(attrs) })
}

func (h *lateHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return h.with(func(in slog.Handler) slog.Handler { return in.WithGroup(name) })
}

// Aggregate counts a high-frequency event; a summary is logged per interval.
func Aggregate(component, event string, fields ...slog.Attr) {
	mu.RLock()
	agg := current.agg
	mu.RUnlock()
	if agg != nil {
		agg.Record(component, event, fields...)
	}
}

// DumpRingBuffer writes the recent log history to path.
func DumpRingBuffer(path string) error {
	mu.RLock()
	ring := current.ring
	mu.RUnlock()
	if ring == nil {
		return nil
	}
	return ring.DumpToFile(path)
}

// Shutdown flushes pending summaries and closes the log file.
func Shutdown() {
	mu.Lock()
	st := current
	current = state{}
	mu.Unlock()

	if st.agg != nil {
		st.agg.Stop()
	}
	if st.file != nil {
		_ = st.file.Close()
	}
}
