package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/walunjakarsachinedu/tab-navigator/internal/host"
	"github.com/walunjakarsachinedu/tab-navigator/internal/rank"
	"github.com/walunjakarsachinedu/tab-navigator/internal/tab"
	"github.com/walunjakarsachinedu/tab-navigator/internal/tracker"
)

// WindowCurrent selects the window of the most recently used tab.
const WindowCurrent = "current"

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type apiErrorResponse struct {
	Error apiError `json:"error"`
}

// Health is the /healthz body.
type Health struct {
	OK      bool   `json:"ok"`
	Profile string `json:"profile"`
	Time    string `json:"time"`
}

// TabsResponse is the /api/tabs body. Without a query the rank fields are
// omitted by the server and decode as zero.
type TabsResponse struct {
	Tabs []rank.Result `json:"tabs"`
}

type recordsResponse struct {
	Tabs []tab.Record `json:"tabs"`
}

type okResponse struct {
	OK bool `json:"ok"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeAPIError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, apiErrorResponse{
		Error: apiError{
			Code:    code,
			Message: message,
		},
	})
}

// writeHostError maps tracker and host failures onto HTTP statuses.
func writeHostError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, host.ErrUnknownTab):
		writeAPIError(w, http.StatusNotFound, "NOT_FOUND", "tab not found")
	case errors.Is(err, host.ErrNotConnected), errors.Is(err, tracker.ErrStopped):
		writeAPIError(w, http.StatusServiceUnavailable, "UNAVAILABLE", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		writeAPIError(w, http.StatusGatewayTimeout, "TIMEOUT", err.Error())
	default:
		writeAPIError(w, http.StatusBadGateway, "HOST_ERROR", err.Error())
	}
}

// resolveWindow turns the window parameter into a filter. ok is false when
// "current" was asked for but no tab is tracked.
func resolveWindow(ctx context.Context, tabs Tabs, param string) (window *int64, ok bool, err error) {
	switch param {
	case "":
		return nil, true, nil
	case WindowCurrent:
		w, ok, err := tabs.CurrentWindow(ctx)
		if err != nil || !ok {
			return nil, false, err
		}
		return &w, true, nil
	}
	w, err := strconv.ParseInt(param, 10, 64)
	if err != nil {
		return nil, false, errInvalidWindow
	}
	return &w, true, nil
}

var errInvalidWindow = errors.New("window must be an id or \"current\"")

func (s *Server) handleTabs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeAPIError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
		return
	}
	if s.cfg.Tabs == nil {
		writeAPIError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "tracker not running")
		return
	}

	ctx := r.Context()
	window, ok, err := resolveWindow(ctx, s.cfg.Tabs, r.URL.Query().Get("window"))
	if errors.Is(err, errInvalidWindow) {
		writeAPIError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	if err != nil {
		writeHostError(w, err)
		return
	}
	if !ok {
		writeJSON(w, http.StatusOK, recordsResponse{Tabs: []tab.Record{}})
		return
	}

	query := r.URL.Query().Get("q")
	if query == "" {
		records, err := s.cfg.Tabs.OrderedTabs(ctx, window)
		if err != nil {
			writeHostError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, recordsResponse{Tabs: records})
		return
	}

	results, err := s.cfg.Tabs.Search(ctx, window, query)
	if err != nil {
		writeHostError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, TabsResponse{Tabs: results})
}

// handleTabByID serves POST /api/tabs/{id}/activate and DELETE /api/tabs/{id}.
func (s *Server) handleTabByID(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Tabs == nil {
		writeAPIError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "tracker not running")
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/tabs/")
	idPart, action, _ := strings.Cut(rest, "/")
	id, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil {
		writeAPIError(w, http.StatusBadRequest, "INVALID_REQUEST", "tab id must be an integer")
		return
	}

	switch {
	case action == "activate" && r.Method == http.MethodPost:
		err = s.cfg.Tabs.Activate(r.Context(), id)
	case action == "" && r.Method == http.MethodDelete:
		err = s.cfg.Tabs.Close(r.Context(), id)
	case action == "activate" || action == "":
		writeAPIError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
		return
	default:
		writeAPIError(w, http.StatusNotFound, "NOT_FOUND", "route not found")
		return
	}
	if err != nil {
		writeHostError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}
