package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/walunjakarsachinedu/tab-navigator/internal/config"
	"github.com/walunjakarsachinedu/tab-navigator/internal/logging"
	"github.com/walunjakarsachinedu/tab-navigator/internal/web"
)

// serveOptions overrides config for one serve run. Empty fields keep the
// configured value.
type serveOptions struct {
	listen string
	token  string
	host   string
	cdpURL string
}

func (o serveOptions) apply(cfg *config.UserConfig) {
	if o.listen != "" {
		cfg.Web.Listen = o.listen
	}
	if o.token != "" {
		cfg.Web.Token = o.token
	}
	if o.host != "" {
		cfg.Host.Kind = o.host
	}
	if o.cdpURL != "" {
		cfg.Host.CDPURL = o.cdpURL
	}
}

func handleServe(profile string, args []string) {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	var opts serveOptions
	fs.StringVar(&opts.listen, "listen", "", "Listen address (default from config, 127.0.0.1:7878)")
	fs.StringVar(&opts.token, "token", "", "Bearer token for API and extension access")
	fs.StringVar(&opts.host, "host", "", "Tab source: bridge, cdp or memory")
	fs.StringVar(&opts.cdpURL, "cdp-url", "", "DevTools endpoint for --host cdp")

	fs.Usage = func() {
		fmt.Println("Usage: tabnav serve [options]")
		fmt.Println()
		fmt.Println("Track tabs in the background and serve the HTTP API.")
		fmt.Println()
		fmt.Println("Options:")
		fs.PrintDefaults()
		fmt.Println()
		fmt.Println("Examples:")
		fmt.Println("  tabnav serve")
		fmt.Println("  tabnav -p work serve --listen 127.0.0.1:7879")
		fmt.Println("  tabnav serve --host cdp --cdp-url http://127.0.0.1:9222")
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

	profile = config.EffectiveProfile(profile)
	cfg := loadConfig(profile)
	opts.apply(cfg)

	logDir := initLogging(profile, cfg, true)
	defer logging.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := runServe(ctx, profile, cfg, opts, logDir); err != nil {
		if errors.Is(err, errAlreadyRunning) {
			fmt.Fprintf(os.Stderr, "Error: tabnav is already serving profile %q\n", profile)
			fmt.Fprintln(os.Stderr, "Set [instances] allow_multiple = true in config.toml to allow multiple instances")
			os.Exit(1)
		}
		fail("%v", err)
	}
}

// runServe runs until ctx ends or the listener fails.
func runServe(ctx context.Context, profile string, cfg *config.UserConfig, opts serveOptions, logDir string) error {
	rt, err := openRuntime(ctx, profile, cfg)
	if err != nil {
		return err
	}
	defer func() {
		_ = rt.db.ResignPrimary()
		_ = rt.db.UnregisterInstance()
		if err := rt.Close(); err != nil {
			cliLog.Warn("runtime_close_failed", slog.String("error", err.Error()))
		}
	}()

	primary, err := claimPrimary(rt.db, cfg.Instances.GetAllowMultiple())
	if err != nil {
		return err
	}
	instanceType := "primary"
	if !primary {
		instanceType = "secondary"
	}
	cliLog.Info("instance_started",
		slog.Int("pid", os.Getpid()),
		slog.String("instance_type", instanceType))

	srvCfg := web.Config{
		ListenAddr: cfg.Web.GetListen(),
		Profile:    profile,
		Token:      cfg.Web.Token,
		Tabs:       rt.tracker,
	}
	if b := rt.extension(); b != nil {
		srvCfg.Extension = b
	}
	srv := web.NewServer(srvCfg)
	fmt.Printf("tabnav serving profile %q on http://%s (host %s)\n", profile, srv.Addr(), cfg.Host.GetKind())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Start(); err != nil {
			return fmt.Errorf("listen %s: %w", srv.Addr(), err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	g.Go(func() error {
		heartbeat(gctx, rt.db, primary)
		return nil
	})
	g.Go(func() error {
		watchLogConfig(gctx, profile, opts, logDir)
		return nil
	})
	g.Go(func() error {
		dumpOnSignal(gctx, logDir)
		return nil
	})

	err = g.Wait()
	cliLog.Info("serve_stopped")
	return err
}

// watchLogConfig re-applies [logs] when config.toml changes. Host and web
// settings need a restart.
func watchLogConfig(ctx context.Context, profile string, opts serveOptions, logDir string) {
	w, err := config.NewWatcher(0)
	if err != nil {
		cliLog.Warn("config_watch_unavailable", slog.String("error", err.Error()))
		return
	}
	defer w.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case cfg := <-w.Changes():
			cfg = cfg.ForProfile(profile)
			opts.apply(cfg)
			initLogging(profile, cfg, true)
			cliLog.Info("logging_reconfigured", slog.String("dir", logDir))
		}
	}
}

// writeCrashDump dumps the log ring buffer into dir.
func writeCrashDump(dir string) (string, error) {
	path := filepath.Join(dir, fmt.Sprintf("crash-dump-%d.jsonl", time.Now().Unix()))
	if err := logging.DumpRingBuffer(path); err != nil {
		return "", err
	}
	return path, nil
}
