package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/term"

	"github.com/walunjakarsachinedu/tab-navigator/internal/config"
	"github.com/walunjakarsachinedu/tab-navigator/internal/logging"
	"github.com/walunjakarsachinedu/tab-navigator/internal/ui"
)

func handlePick(profile string, args []string) {
	fs := flag.NewFlagSet("pick", flag.ContinueOnError)
	current := fs.Bool("current", false, "Start scoped to the current window")
	theme := fs.String("theme", "", "dark, light or system (default from config)")
	hostKind := fs.String("host", "", "Run in-process with this tab source instead of a running server")
	local := fs.Bool("local", false, "Do not use a running server")
	first := fs.Bool("first", false, "Select the most recent tab instead of the previous one")

	fs.Usage = func() {
		fmt.Println("Usage: tabnav pick [options]")
		fmt.Println()
		fmt.Println("Open the tab navigator. Uses a running 'tabnav serve' when one")
		fmt.Println("answers, otherwise tracks tabs in-process.")
		fmt.Println()
		fmt.Println("Options:")
		fs.PrintDefaults()
		fmt.Println()
		fmt.Println("Keys:")
		fmt.Println("  alt+j / alt+k, ↑ ↓   Move (wraps)")
		fmt.Println("  enter                Go to tab")
		fmt.Println("  ctrl+d               Close tab")
		fmt.Println("  tab                  Toggle current window")
		fmt.Println("  esc                  Quit")
	}

	if err := fs.Parse(normalizeArgs(fs, args)); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		os.Exit(1)
	}
	if fs.NArg() > 0 {
		fail("unexpected arguments: %v", fs.Args())
	}
	if !term.IsTerminal(int(os.Stdin.Fd())) || !term.IsTerminal(int(os.Stdout.Fd())) {
		fail("pick needs a terminal; use 'tabnav list' in scripts")
	}

	profile = config.EffectiveProfile(profile)
	cfg := loadConfig(profile)
	if *hostKind != "" {
		cfg.Host.Kind = *hostKind
	}
	initLogging(profile, cfg, false)
	defer logging.Shutdown()
	initColorProfile()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	sess, err := connect(ctx, profile, cfg, *local || *hostKind != "")
	if err != nil {
		fail("%v", err)
	}
	defer sess.close()

	themeName := *theme
	var themes <-chan string
	if themeName == "" {
		themeName = cfg.GetTheme()
		themes = watchTheme(ctx, profile)
	}

	id, ok, err := ui.Run(ctx, sess, themeName, ui.Options{
		CurrentWindow:   *current,
		StartAtPrevious: !*first,
		Timeout:         cfg.Host.GetTimeout(),
		Themes:          themes,
	}, os.Stdin, os.Stdout)
	if err != nil {
		fail("%v", err)
	}
	if ok {
		cliLog.Info("tab_picked", slog.Int64("tab", id))
	}
}

// watchTheme follows theme edits in config.toml. It returns nil when the
// file cannot be watched.
func watchTheme(ctx context.Context, profile string) <-chan string {
	w, err := config.NewWatcher(0)
	if err != nil {
		cliLog.Debug("theme_watch_unavailable", slog.String("error", err.Error()))
		return nil
	}
	out := make(chan string, 1)
	go func() {
		defer close(out)
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case cfg := <-w.Changes():
				theme := config.ResolveTheme(cfg.ForProfile(profile).GetTheme())
				// keep only the newest
				select {
				case <-out:
				default:
				}
				out <- theme
			}
		}
	}()
	return out
}
