// Package cdp is a Host that follows a running Chromium browser over the
// DevTools protocol.
package cdp

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/walunjakarsachinedu/tab-navigator/internal/host"
	"github.com/walunjakarsachinedu/tab-navigator/internal/logging"
	"github.com/walunjakarsachinedu/tab-navigator/internal/pubsub"
	"github.com/walunjakarsachinedu/tab-navigator/internal/tab"
)

var cdpLog = logging.ForComponent(logging.CompCDP)

const (
	queueSize = 1024
	blankURL  = "about:blank"
)

// Options configures Dial.
type Options struct {
	// URL is the DevTools endpoint, http://host:port or a ws:// browser URL.
	URL string

	// Timeout bounds each protocol call. Default 5s.
	Timeout time.Duration
}

// Host tracks page targets as tabs. Target ids are folded to int64 with
// FoldID; windows come from Browser.getWindowForTarget.
type Host struct {
	opts Options
	api  browserAPI

	windows singleflight.Group

	mu    sync.Mutex
	known map[target.ID]tab.Record
	byID  map[int64]target.ID

	queue    chan any
	done     chan struct{}
	stopOnce sync.Once
	stop     func()

	emitMu sync.Mutex
	bus    pubsub.Bus[host.Event]
}

var _ host.Host = (*Host)(nil)

func newHost(api browserAPI, opts Options) *Host {
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	return &Host{
		opts:  opts,
		api:   api,
		known: make(map[target.ID]tab.Record),
		byID:  make(map[int64]target.ID),
		queue: make(chan any, queueSize),
		done:  make(chan struct{}),
		stop:  func() {},
	}
}

// Dial connects to the browser at opts.URL and starts following target
// events. ctx bounds only the connection attempt.
func Dial(ctx context.Context, opts Options) (*Host, error) {
	allocCtx, cancelAlloc := chromedp.NewRemoteAllocator(context.Background(), opts.URL)
	bctx, cancelBrowser := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(logging.Printf(logging.CompCDP, slog.LevelInfo)),
		chromedp.WithErrorf(logging.Printf(logging.CompCDP, slog.LevelError)),
		chromedp.WithDebugf(logging.Printf(logging.CompCDP, slog.LevelDebug)),
	)
	stop := func() {
		cancelBrowser()
		cancelAlloc()
	}

	// The first Run binds the browser to bctx for its whole lifetime, so it
	// must not carry ctx's deadline.
	connected := make(chan error, 1)
	go func() { connected <- chromedp.Run(bctx) }()
	select {
	case err := <-connected:
		if err != nil {
			stop()
			return nil, fmt.Errorf("%w: %s: %v", host.ErrNotConnected, opts.URL, err)
		}
	case <-ctx.Done():
		stop()
		return nil, fmt.Errorf("%w: %s: %v", host.ErrNotConnected, opts.URL, ctx.Err())
	}

	c := chromedp.FromContext(bctx)
	api := &remote{browser: c.Browser}
	if c.Target != nil {
		api.self = c.Target.TargetID
	}
	h := newHost(api, opts)
	h.stop = stop

	chromedp.ListenBrowser(bctx, h.onEvent)
	callCtx, cancel := context.WithTimeout(ctx, h.opts.Timeout)
	defer cancel()
	if err := api.discover(callCtx); err != nil {
		stop()
		return nil, fmt.Errorf("cdp: discover targets: %w", err)
	}
	if infos, err := api.targets(callCtx); err == nil {
		for _, info := range infos {
			if info.TargetID == api.self && info.URL != blankURL {
				api.self = ""
			}
		}
	}

	go h.run()
	cdpLog.Info("cdp_connected", slog.String("url", opts.URL))
	return h, nil
}

// onEvent runs on chromedp's event goroutine and must not block.
func (h *Host) onEvent(ev any) {
	switch ev.(type) {
	case *target.EventTargetCreated, *target.EventTargetInfoChanged, *target.EventTargetDestroyed:
	default:
		return
	}
	select {
	case h.queue <- ev:
	default:
		logging.Aggregate(logging.CompCDP, "event_dropped")
	}
}

func (h *Host) run() {
	for {
		select {
		case <-h.done:
			return
		case ev := <-h.queue:
			h.process(ev)
		}
	}
}

func (h *Host) process(ev any) {
	ctx, cancel := context.WithTimeout(context.Background(), h.opts.Timeout)
	defer cancel()
	switch e := ev.(type) {
	case *target.EventTargetCreated:
		h.observe(ctx, e.TargetInfo)
	case *target.EventTargetInfoChanged:
		h.observe(ctx, e.TargetInfo)
	case *target.EventTargetDestroyed:
		h.forget(e.TargetID)
	}
}

func (h *Host) tracked(info *target.Info) bool {
	return isPage(info) && !h.api.own(info.TargetID)
}

func (h *Host) window(ctx context.Context, id target.ID) (int64, error) {
	v, err, _ := h.windows.Do(string(id), func() (any, error) {
		return h.api.window(ctx, id)
	})
	if err != nil {
		return 0, err
	}
	return v.(int64), nil
}

// observe records the latest info for a target and emits what changed.
func (h *Host) observe(ctx context.Context, info *target.Info) {
	if !h.tracked(info) {
		return
	}

	h.mu.Lock()
	prev, seen := h.known[info.TargetID]
	h.mu.Unlock()

	window, err := h.window(ctx, info.TargetID)
	if err != nil {
		if !seen {
			cdpLog.Debug("window_lookup_failed",
				slog.String("target", string(info.TargetID)), slog.String("error", err.Error()))
			return
		}
		window = prev.WindowID
	}
	next := toRecord(info, window)

	h.mu.Lock()
	h.known[info.TargetID] = next
	h.byID[next.ID] = info.TargetID
	h.mu.Unlock()

	if !seen {
		h.emit(host.CreatedEvent(next))
		return
	}
	if p := diff(prev, next); p != nil {
		h.emit(host.UpdatedEvent(next.ID, p))
	}
	if prev.WindowID != next.WindowID {
		h.emit(host.MovedEvent(next.ID, next.WindowID))
	}
}

func (h *Host) forget(id target.ID) {
	h.mu.Lock()
	r, ok := h.known[id]
	delete(h.known, id)
	delete(h.byID, r.ID)
	h.mu.Unlock()
	if ok {
		h.emit(host.Event{Kind: host.Removed, TabID: r.ID})
	}
}

func (h *Host) emit(ev host.Event) {
	h.emitMu.Lock()
	defer h.emitMu.Unlock()
	h.bus.Emit(ev)
}

// Enumerate lists page targets in the browser's order.
func (h *Host) Enumerate(ctx context.Context, window *int64) ([]tab.Record, error) {
	ctx, cancel := context.WithTimeout(ctx, h.opts.Timeout)
	defer cancel()

	infos, err := h.api.targets(ctx)
	if err != nil {
		return nil, fmt.Errorf("cdp: get targets: %w", err)
	}
	pages := make([]*target.Info, 0, len(infos))
	for _, info := range infos {
		if h.tracked(info) {
			pages = append(pages, info)
		}
	}

	records := make([]tab.Record, len(pages))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, info := range pages {
		g.Go(func() error {
			w, err := h.window(gctx, info.TargetID)
			if err != nil {
				return fmt.Errorf("cdp: window for %s: %w", info.TargetID, err)
			}
			records[i] = toRecord(info, w)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	h.mu.Lock()
	h.known = make(map[target.ID]tab.Record, len(pages))
	h.byID = make(map[int64]target.ID, len(pages))
	for i, info := range pages {
		h.known[info.TargetID] = records[i]
		h.byID[records[i].ID] = info.TargetID
	}
	h.mu.Unlock()

	if window == nil {
		return records, nil
	}
	out := records[:0]
	for _, r := range records {
		if r.WindowID == *window {
			out = append(out, r)
		}
	}
	return out, nil
}

func (h *Host) Subscribe(fn func(host.Event)) func() {
	return h.bus.Subscribe(fn)
}

func (h *Host) lookup(id int64) (target.ID, tab.Record, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	tid, ok := h.byID[id]
	if !ok {
		return "", tab.Record{}, host.ErrUnknownTab
	}
	return tid, h.known[tid], nil
}

// Activate brings the target to front and emits Activated, since the
// protocol reports no focus changes of its own.
func (h *Host) Activate(ctx context.Context, id int64) error {
	tid, r, err := h.lookup(id)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, h.opts.Timeout)
	defer cancel()
	if err := h.api.activate(ctx, tid); err != nil {
		return fmt.Errorf("cdp: activate %s: %w", tid, err)
	}
	h.emit(host.Event{Kind: host.Activated, TabID: id, WindowID: r.WindowID})
	return nil
}

// Close closes the target. Removed follows from the destroyed event.
func (h *Host) Close(ctx context.Context, id int64) error {
	tid, _, err := h.lookup(id)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, h.opts.Timeout)
	defer cancel()
	if err := h.api.close(ctx, tid); err != nil {
		return fmt.Errorf("cdp: close %s: %w", tid, err)
	}
	return nil
}

// Shutdown disconnects from the browser. The browser keeps running.
func (h *Host) Shutdown() {
	h.stopOnce.Do(func() {
		close(h.done)
		h.stop()
	})
}
