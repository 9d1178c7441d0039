// Package ui is the terminal tab navigator: an MRU list with a fuzzy
// search bar, modelled on the browser overlay.
package ui

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/walunjakarsachinedu/tab-navigator/internal/clipboard"
	"github.com/walunjakarsachinedu/tab-navigator/internal/logging"
	"github.com/walunjakarsachinedu/tab-navigator/internal/rank"
	"github.com/walunjakarsachinedu/tab-navigator/internal/tab"
)

var uiLog = logging.ForComponent(logging.CompUI)

// Source serves tab queries and actions, locally or over HTTP.
type Source interface {
	// Query returns tabs for window ("" for all, "current") ranked against
	// query, most recently used first when query is empty.
	Query(ctx context.Context, window, query string) ([]rank.Result, error)
	Activate(ctx context.Context, id int64) error
	Close(ctx context.Context, id int64) error
}

// Options configures a Navigator.
type Options struct {
	// CurrentWindow starts scoped to the current window.
	CurrentWindow bool

	// StartAtPrevious selects the second entry on open, the previously
	// used tab, the way alt-tab does.
	StartAtPrevious bool

	// MaxVisible caps rendered rows. Default 10.
	MaxVisible int

	// Timeout bounds each Source call. Default 5s.
	Timeout time.Duration

	// Themes, when set, delivers palette changes (e.g. config.toml edits)
	// until closed.
	Themes <-chan string

	// Copy puts text on the clipboard. Default clipboard.Copy.
	Copy func(text string) (method string, err error)
}

type resultsMsg struct {
	seq     int
	results []rank.Result
	err     error
}

type closedMsg struct {
	id  int64
	err error
}

type activatedMsg struct {
	id  int64
	err error
}

type copiedMsg struct {
	url string
	err error
}

// ThemeMsg switches the palette live, e.g. from a system theme watcher.
type ThemeMsg string

type themeChangedMsg string

// Navigator is a bubbletea model.
type Navigator struct {
	src  Source
	opts Options

	input   textinput.Model
	results []rank.Result
	cursor  int
	offset  int
	width   int
	height  int

	currentOnly bool
	seq         int
	loaded      bool
	err         error
	note        string

	activated int64
	done      bool
}

// NewNavigator returns a navigator reading from src.
func NewNavigator(src Source, opts Options) *Navigator {
	if opts.MaxVisible <= 0 {
		opts.MaxVisible = 10
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.Copy == nil {
		opts.Copy = clipboard.Copy
	}
	ti := textinput.New()
	ti.Placeholder = "Search tabs..."
	ti.Prompt = "› "
	ti.CharLimit = 200
	ti.Width = 50
	ti.Focus()

	return &Navigator{
		src:         src,
		opts:        opts,
		input:       ti,
		currentOnly: opts.CurrentWindow,
		activated:   -1,
	}
}

func (n *Navigator) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), n.opts.Timeout)
}

func (n *Navigator) window() string {
	if n.currentOnly {
		return "current"
	}
	return ""
}

// refresh queries the source; older in-flight answers are discarded.
func (n *Navigator) refresh() tea.Cmd {
	n.seq++
	seq, window, query := n.seq, n.window(), n.input.Value()
	return func() tea.Msg {
		ctx, cancel := n.ctx()
		defer cancel()
		res, err := n.src.Query(ctx, window, query)
		return resultsMsg{seq: seq, results: res, err: err}
	}
}

// listenThemes waits for the next theme change.
func (n *Navigator) listenThemes() tea.Cmd {
	ch := n.opts.Themes
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		theme, ok := <-ch
		if !ok {
			return nil
		}
		return themeChangedMsg(theme)
	}
}

func (n *Navigator) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, n.refresh(), n.listenThemes())
}

// Selected returns the highlighted tab.
func (n *Navigator) Selected() (rank.Result, bool) {
	if n.cursor < 0 || n.cursor >= len(n.results) {
		return rank.Result{}, false
	}
	return n.results[n.cursor], true
}

// Activated returns the tab chosen with enter, if any.
func (n *Navigator) Activated() (int64, bool) {
	return n.activated, n.activated >= 0
}

// Err returns the last Source failure.
func (n *Navigator) Err() error {
	return n.err
}

func (n *Navigator) move(delta int) {
	if len(n.results) == 0 {
		return
	}
	n.cursor = (n.cursor + delta + len(n.results)) % len(n.results)
	n.scroll()
}

func (n *Navigator) scroll() {
	if n.cursor < n.offset {
		n.offset = n.cursor
	}
	if n.cursor >= n.offset+n.opts.MaxVisible {
		n.offset = n.cursor - n.opts.MaxVisible + 1
	}
}

func (n *Navigator) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		n.width, n.height = msg.Width, msg.Height
		return n, nil

	case ThemeMsg:
		InitTheme(string(msg))
		return n, nil

	case themeChangedMsg:
		InitTheme(string(msg))
		return n, n.listenThemes()

	case resultsMsg:
		if msg.seq != n.seq {
			return n, nil
		}
		n.err = msg.err
		if msg.err != nil {
			uiLog.Warn("query_failed", slog.String("error", msg.err.Error()))
			return n, nil
		}
		first := !n.loaded
		n.loaded = true
		n.results = msg.results
		switch {
		case first && n.opts.StartAtPrevious && len(n.results) > 1 && n.input.Value() == "":
			n.cursor = 1
		case n.cursor >= len(n.results):
			n.cursor = max(len(n.results)-1, 0)
		}
		n.scroll()
		return n, nil

	case activatedMsg:
		if msg.err != nil {
			n.err = msg.err
			return n, nil
		}
		n.activated = msg.id
		n.done = true
		return n, tea.Quit

	case copiedMsg:
		if msg.err != nil {
			n.err = msg.err
			return n, nil
		}
		n.note = "Copied " + tab.DisplayURL(msg.url)
		return n, nil

	case closedMsg:
		if msg.err != nil {
			n.err = msg.err
			return n, nil
		}
		for i, r := range n.results {
			if r.ID == msg.id {
				n.results = append(n.results[:i], n.results[i+1:]...)
				break
			}
		}
		if n.cursor >= len(n.results) {
			n.cursor = max(len(n.results)-1, 0)
		}
		n.scroll()
		return n, n.refresh()

	case tea.KeyMsg:
		return n.handleKey(msg)
	}
	return n, nil
}

func (n *Navigator) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	n.note = ""
	switch msg.String() {
	case "esc", "ctrl+c":
		n.done = true
		return n, tea.Quit

	case "down", "ctrl+j", "alt+j":
		n.move(1)
		return n, nil

	case "up", "ctrl+k", "alt+k":
		n.move(-1)
		return n, nil

	case "enter":
		sel, ok := n.Selected()
		if !ok {
			return n, nil
		}
		return n, func() tea.Msg {
			ctx, cancel := n.ctx()
			defer cancel()
			return activatedMsg{id: sel.ID, err: n.src.Activate(ctx, sel.ID)}
		}

	case "ctrl+d":
		sel, ok := n.Selected()
		if !ok {
			return n, nil
		}
		return n, func() tea.Msg {
			ctx, cancel := n.ctx()
			defer cancel()
			return closedMsg{id: sel.ID, err: n.src.Close(ctx, sel.ID)}
		}

	case "ctrl+y":
		sel, ok := n.Selected()
		if !ok {
			return n, nil
		}
		return n, func() tea.Msg {
			_, err := n.opts.Copy(sel.URL)
			return copiedMsg{url: sel.URL, err: err}
		}

	case "tab":
		n.currentOnly = !n.currentOnly
		n.cursor, n.offset = 0, 0
		return n, n.refresh()
	}

	before := n.input.Value()
	var cmd tea.Cmd
	n.input, cmd = n.input.Update(msg)
	if n.input.Value() == before {
		return n, cmd
	}
	// New query: selection restarts at the best match.
	n.cursor, n.offset = 0, 0
	return n, tea.Batch(cmd, n.refresh())
}

func (n *Navigator) View() string {
	if n.done {
		return ""
	}
	st := activeStyles()

	scope := "all windows"
	if n.currentOnly {
		scope = "current window"
	}
	header := st.header.Render("Tabs") + st.count.Render("  "+scope)

	inner := 60
	if n.width > 0 && n.width < inner+10 {
		inner = max(n.width-10, 30)
	}

	var rows strings.Builder
	end := min(n.offset+n.opts.MaxVisible, len(n.results))
	for i := n.offset; i < end; i++ {
		rows.WriteString(n.renderRow(st, n.results[i], i == n.cursor, inner))
		if i < end-1 {
			rows.WriteString("\n")
		}
	}

	var status string
	switch {
	case n.err != nil:
		status = st.err.Render("  " + n.err.Error())
	case n.note != "":
		status = st.count.Render("  " + n.note)
	case !n.loaded:
		status = st.count.Render("  Loading…")
	default:
		status = st.count.Render("  " + formatCount(len(n.results)))
	}
	keys := st.hint.Render("  [Enter] Go  [alt+j/k ↑↓] Move  [ctrl+d] Close  [ctrl+y] Copy URL  [Tab] Scope  [Esc] Quit")

	content := header + "\n\n" + st.box.Render(n.input.View()) + "\n\n" + rows.String() + "\n" + status + "\n" + keys
	overlay := st.overlay.Width(inner + 4).Render(content)
	if n.width == 0 || n.height == 0 {
		return overlay
	}
	return lipgloss.Place(n.width, n.height, lipgloss.Center, lipgloss.Center, overlay)
}

func (n *Navigator) renderRow(st styles, r rank.Result, selected bool, width int) string {
	base, match, url := st.item, st.match, st.url
	if selected {
		base, match, url = st.selected, st.selected.Underline(true), st.selected
	}
	title := r.Title
	if title == "" {
		title = r.URL
	}
	display := tab.DisplayURL(r.URL)
	prefix := len([]rune(r.URL)) - len([]rune(display))

	marker := "  "
	if selected {
		marker = "› "
	}
	line := base.Render(marker) + highlight(title, r.TitlePositions, width-2, base, match)
	line += "\n" + base.Render("  ") + highlight(display, shiftPositions(r.URLPositions, prefix), width-2, url, match)
	return line
}

func formatCount(count int) string {
	switch count {
	case 0:
		return "No tabs"
	case 1:
		return "1 tab"
	}
	return fmt.Sprintf("%d tabs", count)
}
