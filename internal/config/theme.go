package config

import (
	"context"
	"log/slog"

	dark "github.com/thiagokokada/dark-mode-go"
)

// ResolveTheme turns "system" into "dark" or "light" using the OS setting.
// Any failure to read the OS setting resolves to dark.
func ResolveTheme(theme string) string {
	if theme != "system" {
		if theme == "light" {
			return "light"
		}
		return "dark"
	}
	isDark, err := dark.IsDarkMode()
	if err != nil {
		configLog.Debug("dark_mode_unavailable", slog.String("error", err.Error()))
		return "dark"
	}
	if isDark {
		return "dark"
	}
	return "light"
}

// WatchSystemTheme streams "dark"/"light" when the OS appearance changes.
// The channel is closed when ctx ends or watching is not supported.
func WatchSystemTheme(ctx context.Context) <-chan string {
	out := make(chan string, 1)
	events, errs, err := dark.WatchDarkMode(ctx)
	if err != nil {
		configLog.Debug("dark_mode_watch_unavailable", slog.String("error", err.Error()))
		close(out)
		return out
	}
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case isDark, ok := <-events:
				if !ok {
					return
				}
				theme := "light"
				if isDark {
					theme = "dark"
				}
				select {
				case out <- theme:
				default:
				}
			case err, ok := <-errs:
				if !ok {
					errs = nil
					continue
				}
				if err != nil {
					configLog.Warn("dark_mode_watch_error", slog.String("error", err.Error()))
				}
			}
		}
	}()
	return out
}
