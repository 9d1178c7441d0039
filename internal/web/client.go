package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/walunjakarsachinedu/tab-navigator/internal/host"
	"github.com/walunjakarsachinedu/tab-navigator/internal/rank"
)

// ErrServerDown is returned when no tracker answers at the address.
var ErrServerDown = errors.New("web: tracker not reachable")

// Client talks to a running "tabnav serve".
type Client struct {
	base  string
	token string
	http  *http.Client
}

// NewClient returns a client for the server listening on addr
// (host:port or a full http URL).
func NewClient(addr, token string) *Client {
	base := addr
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	return &Client{
		base:  strings.TrimRight(base, "/"),
		token: token,
		http:  &http.Client{Timeout: 10 * time.Second},
	}
}

// APIError is a non-2xx response.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("web: %d %s: %s", e.Status, e.Code, e.Message)
}

// Is lets callers test API errors against the host sentinels.
func (e *APIError) Is(target error) bool {
	switch target {
	case host.ErrUnknownTab:
		return e.Status == http.StatusNotFound && e.Code == "NOT_FOUND"
	case host.ErrNotConnected:
		return e.Status == http.StatusServiceUnavailable
	}
	return false
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, out any) error {
	u := c.base + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", ErrServerDown, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		var body apiErrorResponse
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if json.Unmarshal(raw, &body) != nil || body.Error.Code == "" {
			body.Error.Message = strings.TrimSpace(string(raw))
		}
		return &APIError{Status: resp.StatusCode, Code: body.Error.Code, Message: body.Error.Message}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("web: decode %s: %w", path, err)
	}
	return nil
}

// Health checks the server.
func (c *Client) Health(ctx context.Context) (Health, error) {
	var h Health
	err := c.do(ctx, http.MethodGet, "/healthz", nil, &h)
	return h, err
}

// Query lists tabs, most recently used first. window is "", "current" or a
// window id; a non-empty query returns ranked matches.
func (c *Client) Query(ctx context.Context, window, query string) ([]rank.Result, error) {
	q := url.Values{}
	if window != "" {
		q.Set("window", window)
	}
	if query != "" {
		q.Set("q", query)
	}
	var resp TabsResponse
	if err := c.do(ctx, http.MethodGet, "/api/tabs", q, &resp); err != nil {
		return nil, err
	}
	return resp.Tabs, nil
}

func (c *Client) Activate(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodPost, "/api/tabs/"+strconv.FormatInt(id, 10)+"/activate", nil, nil)
}

func (c *Client) Close(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, "/api/tabs/"+strconv.FormatInt(id, 10), nil, nil)
}

// Local adapts an in-process tracker to the same surface as Client.
type Local struct {
	Tabs Tabs
}

func (l Local) Query(ctx context.Context, window, query string) ([]rank.Result, error) {
	w, ok, err := resolveWindow(ctx, l.Tabs, window)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return l.Tabs.Search(ctx, w, query)
}

func (l Local) Activate(ctx context.Context, id int64) error { return l.Tabs.Activate(ctx, id) }

func (l Local) Close(ctx context.Context, id int64) error { return l.Tabs.Close(ctx, id) }
