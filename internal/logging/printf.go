package logging

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"strings"
)

// Printf adapts a component logger to the func(format, args...) shape used
// by libraries such as chromedp. Lines are logged at level.
func Printf(component string, level slog.Level) func(string, ...any) {
	l := ForComponent(component)
	return func(format string, args ...any) {
		msg := strings.TrimSpace(fmt.Sprintf(format, args...))
		if msg == "" {
			return
		}
		l.Log(context.Background(), level, msg)
	}
}

// StdLogger returns a *log.Logger whose output goes to the component logger
// at level, for APIs like http.Server.ErrorLog.
func StdLogger(component string, level slog.Level) *log.Logger {
	return slog.NewLogLogger(ForComponent(component).Handler(), level)
}
