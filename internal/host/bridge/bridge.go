// Package bridge is a Host backed by the companion browser extension, which
// connects over a websocket and relays the browser's tab events.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/walunjakarsachinedu/tab-navigator/internal/future"
	"github.com/walunjakarsachinedu/tab-navigator/internal/host"
	"github.com/walunjakarsachinedu/tab-navigator/internal/logging"
	"github.com/walunjakarsachinedu/tab-navigator/internal/pubsub"
	"github.com/walunjakarsachinedu/tab-navigator/internal/tab"
)

var bridgeLog = logging.ForComponent(logging.CompBridge)

// Extension to server.
const (
	msgTabCreated   = "tab.created"
	msgTabUpdated   = "tab.updated"
	msgTabRemoved   = "tab.removed"
	msgTabActivated = "tab.activated"
	msgTabMoved     = "tab.moved"
)

// Server to extension.
const (
	cmdTabsQuery   = "tabs.query"
	cmdTabActivate = "tab.activate"
	cmdTabClose    = "tab.close"
)

const (
	maxMessageBytes = 4 << 20
	writeTimeout    = 10 * time.Second
)

// inbound is any message sent by the extension. Replies carry ID and OK.
type inbound struct {
	Type     string       `json:"type"`
	ID       string       `json:"id,omitempty"`
	OK       *bool        `json:"ok,omitempty"`
	Error    string       `json:"error,omitempty"`
	Tab      *tab.Record  `json:"tab,omitempty"`
	TabID    *int64       `json:"tabId,omitempty"`
	WindowID *int64       `json:"windowId,omitempty"`
	Changes  *tab.Patch   `json:"changes,omitempty"`
	Tabs     []tab.Record `json:"tabs,omitempty"`
}

type command struct {
	Type     string `json:"type"`
	ID       string `json:"id"`
	TabID    *int64 `json:"tabId,omitempty"`
	WindowID *int64 `json:"windowId,omitempty"`
}

// ReplyError is a failed command as reported by the extension.
type ReplyError struct {
	Command string
	Message string
}

func (e *ReplyError) Error() string {
	return fmt.Sprintf("bridge: %s: %s", e.Command, e.Message)
}

// Is maps the extension's "unknown tab" failures to host.ErrUnknownTab.
func (e *ReplyError) Is(target error) bool {
	return target == host.ErrUnknownTab && strings.Contains(strings.ToLower(e.Message), "unknown tab")
}

// Options configures a Host.
type Options struct {
	// Timeout bounds each command round trip. Default 5s.
	Timeout time.Duration

	// AllowedOrigins lists accepted Origin headers. When empty, any
	// chrome-extension:// or moz-extension:// origin is accepted.
	AllowedOrigins []string
}

type conn struct {
	ws   *websocket.Conn
	mu   sync.Mutex
	once sync.Once
}

func (c *conn) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.ws.WriteJSON(v)
}

func (c *conn) close(code int, reason string) {
	c.once.Do(func() {
		c.mu.Lock()
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(code, reason), time.Now().Add(time.Second))
		c.mu.Unlock()
		_ = c.ws.Close()
	})
}

type pending struct {
	conn  *conn
	reply *future.Future[inbound]
}

// Host serves the extension websocket and implements host.Host on top of it.
// Only one extension connection is live; a new one replaces the old.
type Host struct {
	opts     Options
	upgrader websocket.Upgrader

	mu       sync.Mutex
	cur      *conn
	ready    chan struct{} // closed while cur != nil
	requests map[string]pending
	shutdown bool

	emitMu sync.Mutex
	bus    pubsub.Bus[host.Event]
}

var _ host.Host = (*Host)(nil)

// New returns a Host waiting for the extension to connect.
func New(opts Options) *Host {
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	h := &Host{
		opts:     opts,
		ready:    make(chan struct{}),
		requests: make(map[string]pending),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     h.allowOrigin,
	}
	return h
}

func (h *Host) allowOrigin(r *http.Request) bool {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}
	for _, allowed := range h.opts.AllowedOrigins {
		if strings.EqualFold(origin, allowed) {
			return true
		}
	}

	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	if len(h.opts.AllowedOrigins) == 0 && (u.Scheme == "chrome-extension" || u.Scheme == "moz-extension") {
		return true
	}
	return strings.EqualFold(u.Host, r.Host)
}

// Connected reports whether an extension is attached.
func (h *Host) Connected() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cur != nil
}

// ServeHTTP upgrades the request and reads extension messages until the
// connection drops or is replaced.
func (h *Host) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		bridgeLog.Warn("upgrade_failed", slog.String("error", err.Error()))
		return
	}
	ws.SetReadLimit(maxMessageBytes)

	c := &conn{ws: ws}
	if !h.attach(c) {
		c.close(websocket.CloseGoingAway, "shutting down")
		return
	}
	defer h.detach(c)

	bridgeLog.Info("extension_connected", slog.String("remote", r.RemoteAddr))
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				bridgeLog.Debug("read_ended", slog.String("error", err.Error()))
			}
			return
		}
		h.handle(data)
	}
}

func (h *Host) attach(c *conn) bool {
	h.mu.Lock()
	if h.shutdown {
		h.mu.Unlock()
		return false
	}
	old := h.cur
	h.cur = c
	if old == nil {
		close(h.ready)
	}
	h.mu.Unlock()

	if old != nil {
		bridgeLog.Info("extension_replaced")
		h.failRequests(old)
		old.close(websocket.CloseNormalClosure, "replaced by a newer connection")
	}
	return true
}

func (h *Host) detach(c *conn) {
	h.mu.Lock()
	if h.cur == c {
		h.cur = nil
		h.ready = make(chan struct{})
		bridgeLog.Info("extension_disconnected")
	}
	h.mu.Unlock()
	h.failRequests(c)
	c.close(websocket.CloseNormalClosure, "")
}

// failRequests resolves every command still waiting on c.
func (h *Host) failRequests(c *conn) {
	h.mu.Lock()
	var waiting []*future.Future[inbound]
	for id, p := range h.requests {
		if p.conn == c {
			waiting = append(waiting, p.reply)
			delete(h.requests, id)
		}
	}
	h.mu.Unlock()
	for _, f := range waiting {
		f.Resolve(inbound{}, host.ErrNotConnected)
	}
}

func (h *Host) handle(data []byte) {
	var msg inbound
	if err := json.Unmarshal(data, &msg); err != nil {
		bridgeLog.Warn("malformed_message", slog.String("error", err.Error()))
		return
	}

	if msg.ID != "" && msg.OK != nil {
		h.mu.Lock()
		p, ok := h.requests[msg.ID]
		delete(h.requests, msg.ID)
		h.mu.Unlock()
		if !ok {
			bridgeLog.Debug("unmatched_reply", slog.String("id", msg.ID))
			return
		}
		p.reply.Resolve(msg, nil)
		return
	}

	ev, err := toEvent(msg)
	if err != nil {
		bridgeLog.Warn("malformed_message", slog.String("type", msg.Type), slog.String("error", err.Error()))
		return
	}
	h.emitMu.Lock()
	h.bus.Emit(ev)
	h.emitMu.Unlock()
}

func toEvent(msg inbound) (host.Event, error) {
	switch msg.Type {
	case msgTabCreated:
		if msg.Tab == nil {
			return host.Event{}, errors.New("missing tab")
		}
		return host.CreatedEvent(*msg.Tab), nil
	case msgTabUpdated:
		if msg.TabID == nil {
			return host.Event{}, errors.New("missing tabId")
		}
		if msg.Changes == nil {
			msg.Changes = &tab.Patch{}
		}
		return host.UpdatedEvent(*msg.TabID, msg.Changes), nil
	case msgTabRemoved:
		if msg.TabID == nil {
			return host.Event{}, errors.New("missing tabId")
		}
		return host.Event{Kind: host.Removed, TabID: *msg.TabID}, nil
	case msgTabActivated:
		if msg.TabID == nil || msg.WindowID == nil {
			return host.Event{}, errors.New("missing tabId or windowId")
		}
		return host.Event{Kind: host.Activated, TabID: *msg.TabID, WindowID: *msg.WindowID}, nil
	case msgTabMoved:
		if msg.TabID == nil || msg.WindowID == nil {
			return host.Event{}, errors.New("missing tabId or windowId")
		}
		return host.MovedEvent(*msg.TabID, *msg.WindowID), nil
	}
	return host.Event{}, fmt.Errorf("unknown type %q", msg.Type)
}

// waitConn returns the live connection, waiting for one until ctx is done.
func (h *Host) waitConn(ctx context.Context) (*conn, error) {
	for {
		h.mu.Lock()
		c, ready, down := h.cur, h.ready, h.shutdown
		h.mu.Unlock()
		if down {
			return nil, host.ErrNotConnected
		}
		if c != nil {
			return c, nil
		}
		select {
		case <-ready:
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", host.ErrNotConnected, ctx.Err())
		}
	}
}

func (h *Host) current() (*conn, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cur == nil {
		return nil, host.ErrNotConnected
	}
	return h.cur, nil
}

func (h *Host) send(ctx context.Context, c *conn, cmd command) (inbound, error) {
	cmd.ID = uuid.NewString()
	reply := future.New[inbound]()

	h.mu.Lock()
	h.requests[cmd.ID] = pending{conn: c, reply: reply}
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		delete(h.requests, cmd.ID)
		h.mu.Unlock()
	}()

	if err := c.writeJSON(cmd); err != nil {
		return inbound{}, fmt.Errorf("%w: %v", host.ErrNotConnected, err)
	}

	ctx, cancel := context.WithTimeout(ctx, h.opts.Timeout)
	defer cancel()
	msg, err := reply.Await(ctx)
	if err != nil {
		return inbound{}, fmt.Errorf("bridge: %s: %w", cmd.Type, err)
	}
	if !*msg.OK {
		return inbound{}, &ReplyError{Command: cmd.Type, Message: msg.Error}
	}
	return msg, nil
}

// Enumerate waits for the extension to connect, then queries its tabs.
func (h *Host) Enumerate(ctx context.Context, window *int64) ([]tab.Record, error) {
	c, err := h.waitConn(ctx)
	if err != nil {
		return nil, err
	}
	msg, err := h.send(ctx, c, command{Type: cmdTabsQuery, WindowID: window})
	if err != nil {
		return nil, err
	}
	if window == nil {
		return msg.Tabs, nil
	}
	out := msg.Tabs[:0]
	for _, t := range msg.Tabs {
		if t.WindowID == *window {
			out = append(out, t)
		}
	}
	return out, nil
}

func (h *Host) Subscribe(fn func(host.Event)) func() {
	return h.bus.Subscribe(fn)
}

// Activate asks the extension to focus id. The resulting tab.activated
// event arrives from the browser.
func (h *Host) Activate(ctx context.Context, id int64) error {
	c, err := h.current()
	if err != nil {
		return err
	}
	_, err = h.send(ctx, c, command{Type: cmdTabActivate, TabID: &id})
	return err
}

func (h *Host) Close(ctx context.Context, id int64) error {
	c, err := h.current()
	if err != nil {
		return err
	}
	_, err = h.send(ctx, c, command{Type: cmdTabClose, TabID: &id})
	return err
}

// Shutdown drops the live connection and refuses new ones.
func (h *Host) Shutdown() {
	h.mu.Lock()
	c := h.cur
	h.cur = nil
	if !h.shutdown && c == nil {
		// wake waitConn so it observes shutdown
		close(h.ready)
	}
	h.shutdown = true
	h.mu.Unlock()
	if c != nil {
		h.failRequests(c)
		c.close(websocket.CloseGoingAway, "shutting down")
	}
}
