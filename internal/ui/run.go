package ui

import (
	"context"
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/walunjakarsachinedu/tab-navigator/internal/config"
)

// Run shows the navigator full screen until the user picks a tab or quits.
// It returns the activated tab id, or ok false when nothing was chosen.
func Run(ctx context.Context, src Source, theme string, opts Options, in io.Reader, out io.Writer) (id int64, ok bool, err error) {
	InitTheme(config.ResolveTheme(theme))

	nav := NewNavigator(src, opts)
	p := tea.NewProgram(nav,
		tea.WithAltScreen(),
		tea.WithContext(ctx),
		tea.WithInput(in),
		tea.WithOutput(out),
	)
	if theme == "system" {
		FollowSystemTheme(ctx, p)
	}

	if _, err := p.Run(); err != nil {
		return 0, false, fmt.Errorf("ui: %w", err)
	}
	id, ok = nav.Activated()
	return id, ok, nil
}
