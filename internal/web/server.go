package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/walunjakarsachinedu/tab-navigator/internal/logging"
	"github.com/walunjakarsachinedu/tab-navigator/internal/rank"
	"github.com/walunjakarsachinedu/tab-navigator/internal/tab"
)

var webLog = logging.ForComponent(logging.CompWeb)

// Tabs is the tracker surface served over HTTP.
type Tabs interface {
	OrderedTabs(ctx context.Context, window *int64) ([]tab.Record, error)
	Search(ctx context.Context, window *int64, query string) ([]rank.Result, error)
	CurrentWindow(ctx context.Context) (int64, bool, error)
	Activate(ctx context.Context, id int64) error
	Close(ctx context.Context, id int64) error
	Changes(fn func([]tab.Record)) (unsubscribe func())
}

// Config defines runtime options for the web server.
type Config struct {
	ListenAddr string
	Profile    string
	Token      string
	Tabs       Tabs

	// Extension, when set, is mounted at /ws/extension.
	Extension http.Handler
}

// Server wraps an HTTP server exposing the tracker.
type Server struct {
	cfg        Config
	httpServer *http.Server
	baseCtx    context.Context
	cancelBase context.CancelFunc
}

// NewServer creates a new web server with base routes and middleware.
func NewServer(cfg Config) *Server {
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = "127.0.0.1:7878"
	}

	s := &Server{cfg: cfg}
	s.baseCtx, s.cancelBase = context.WithCancel(context.Background())

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, http.StatusOK, Health{
			OK:      true,
			Profile: cfg.Profile,
			Time:    time.Now().UTC().Format(time.RFC3339),
		})
	})
	mux.Handle("/api/tabs", s.requireToken(http.HandlerFunc(s.handleTabs)))
	mux.Handle("/api/tabs/", s.requireToken(http.HandlerFunc(s.handleTabByID)))
	mux.Handle("/events/tabs", s.requireToken(http.HandlerFunc(s.handleTabEvents)))
	if cfg.Extension != nil {
		mux.Handle("/ws/extension", s.requireToken(cfg.Extension))
	}

	s.httpServer = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           withRecover(withRequestID(mux)),
		BaseContext:       func(_ net.Listener) context.Context { return s.baseCtx },
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
		ErrorLog:          logging.StdLogger(logging.CompWeb, slog.LevelWarn),
	}

	return s
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Handler returns the configured HTTP handler (used by tests).
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start serves until Shutdown. Returns nil on graceful shutdown.
func (s *Server) Start() error {
	webLog.Info("listening", slog.String("addr", s.cfg.ListenAddr))
	err := s.httpServer.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	// Signal long-lived handlers (SSE/WS) to stop promptly.
	s.cancelBase()

	err := s.httpServer.Shutdown(ctx)
	if err == nil {
		return nil
	}

	// Hijacked websocket connections are not tracked by Shutdown; force
	// close after the grace period.
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		if closeErr := s.httpServer.Close(); closeErr != nil {
			return fmt.Errorf("graceful shutdown timed out and force close failed: %w", closeErr)
		}
		return nil
	}
	return err
}

func (s *Server) String() string {
	return fmt.Sprintf("web-server(addr=%s, profile=%s)", s.cfg.ListenAddr, s.cfg.Profile)
}
