package ui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/walunjakarsachinedu/tab-navigator/internal/config"
)

// Sender is the part of *tea.Program used by FollowSystemTheme.
type Sender interface {
	Send(msg tea.Msg)
}

// FollowSystemTheme forwards OS appearance changes to p as ThemeMsg until
// ctx ends. It returns at once; watching stops quietly where unsupported.
func FollowSystemTheme(ctx context.Context, p Sender) {
	changes := config.WatchSystemTheme(ctx)
	go func() {
		for theme := range changes {
			p.Send(ThemeMsg(theme))
		}
	}()
}
