package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/walunjakarsachinedu/tab-navigator/internal/config"
	"github.com/walunjakarsachinedu/tab-navigator/internal/host"
	"github.com/walunjakarsachinedu/tab-navigator/internal/host/bridge"
	"github.com/walunjakarsachinedu/tab-navigator/internal/host/cdp"
	"github.com/walunjakarsachinedu/tab-navigator/internal/host/memory"
	"github.com/walunjakarsachinedu/tab-navigator/internal/logging"
	"github.com/walunjakarsachinedu/tab-navigator/internal/reconcile"
	"github.com/walunjakarsachinedu/tab-navigator/internal/statedb"
	"github.com/walunjakarsachinedu/tab-navigator/internal/tracker"
	"github.com/walunjakarsachinedu/tab-navigator/internal/ui"
	"github.com/walunjakarsachinedu/tab-navigator/internal/web"
)

var cliLog = logging.ForComponent(logging.CompCLI)

const (
	// heartbeatInterval refreshes this process in instance_heartbeats.
	heartbeatInterval = 10 * time.Second

	// instanceTimeout is how stale a heartbeat may be before its process
	// is considered dead.
	instanceTimeout = 30 * time.Second

	// probeTimeout bounds the health check against a running server.
	probeTimeout = 500 * time.Millisecond
)

var errAlreadyRunning = errors.New("a tracker is already running for this profile")

// loadConfig returns the config for profile. A broken config.toml is
// reported and defaults are used.
func loadConfig(profile string) *config.UserConfig {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", err)
	}
	return cfg.ForProfile(profile)
}

// initLogging starts file logging in the profile directory. mirror sends
// records to stderr too when TABNAV_DEBUG is set; the TUI passes false.
func initLogging(profile string, cfg *config.UserConfig, mirror bool) string {
	dir, err := config.ProfileDir(profile)
	if err != nil {
		fail("%v", err)
	}
	debug := os.Getenv(debugEnv) != ""
	ls := cfg.Logs
	lc := logging.Config{
		Dir:               dir,
		Level:             ls.Level,
		Format:            ls.Format,
		MaxSizeMB:         ls.MaxSizeMB,
		MaxBackups:        ls.MaxBackups,
		MaxAgeDays:        ls.MaxAgeDays,
		Compress:          ls.GetCompress(),
		RingBufferSize:    ls.GetRingBufferBytes(),
		AggregateInterval: ls.GetAggregateInterval(),
		PprofAddr:         ls.PprofAddr,
		Debug:             debug && mirror,
	}
	if debug {
		lc.Level = "debug"
	}
	logging.Init(lc)
	return dir
}

// runtime is one in-process tracker with everything it needs.
type runtime struct {
	profile string
	cfg     *config.UserConfig
	db      *statedb.StateDB
	host    host.Host
	tracker *tracker.Tracker

	// bridge is set for the extension host; it must be mounted on a web
	// server for the extension to reach it.
	bridge *bridge.Host

	shutdownHost func()
}

// openHost builds the tab source named by kind.
func openHost(ctx context.Context, kind string, cfg *config.UserConfig) (host.Host, *bridge.Host, func(), error) {
	switch kind {
	case config.HostBridge:
		b := bridge.New(bridge.Options{
			Timeout:        cfg.Host.GetTimeout(),
			AllowedOrigins: cfg.Web.ExtensionOrigins,
		})
		return b, b, b.Shutdown, nil
	case config.HostCDP:
		c, err := cdp.Dial(ctx, cdp.Options{URL: cfg.Host.GetCDPURL(), Timeout: cfg.Host.GetTimeout()})
		if err != nil {
			return nil, nil, nil, err
		}
		return c, nil, c.Shutdown, nil
	case config.HostMemory:
		return memory.New(), nil, func() {}, nil
	}
	return nil, nil, nil, fmt.Errorf("unknown host kind %q (want bridge, cdp or memory)", kind)
}

// openRuntime opens the profile's state database, connects the host and
// starts a tracker restoring from the saved snapshot.
func openRuntime(ctx context.Context, profile string, cfg *config.UserConfig) (*runtime, error) {
	path, err := config.StatePath(profile)
	if err != nil {
		return nil, err
	}
	db, err := statedb.Open(path)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, err
	}

	kind := cfg.Host.GetKind()
	h, b, shutdown, err := openHost(ctx, kind, cfg)
	if err != nil {
		db.Close()
		return nil, err
	}

	rec := reconcile.New(db, reconcile.Options{MinInterval: cfg.Persist.GetMinInterval()})
	tr := tracker.New(h, rec, tracker.Options{MaxResults: cfg.Search.GetMaxResults()})
	tr.Start(ctx)

	cliLog.Info("runtime_started",
		slog.String("profile", profile),
		slog.String("host", kind),
		slog.String("state", path))

	return &runtime{
		profile:      profile,
		cfg:          cfg,
		db:           db,
		host:         h,
		tracker:      tr,
		bridge:       b,
		shutdownHost: shutdown,
	}, nil
}

// extension returns the websocket handler to mount, or nil.
func (rt *runtime) extension() *bridge.Host {
	return rt.bridge
}

// Close stops the tracker (flushing the snapshot), the host and the
// database, in that order.
func (rt *runtime) Close() error {
	err := rt.tracker.Stop()
	rt.shutdownHost()
	if cerr := rt.db.Close(); err == nil {
		err = cerr
	}
	return err
}

// claimPrimary registers this process and elects it primary. Unless
// allowMultiple is set, a second live tracker on the profile is refused.
func claimPrimary(db *statedb.StateDB, allowMultiple bool) (bool, error) {
	_ = db.CleanDeadInstances(instanceTimeout * 2)
	if err := db.RegisterInstance(false); err != nil {
		return false, fmt.Errorf("register instance: %w", err)
	}
	primary, err := db.ElectPrimary(instanceTimeout)
	if err != nil {
		return false, err
	}
	if !primary && !allowMultiple {
		_ = db.UnregisterInstance()
		return false, errAlreadyRunning
	}
	return primary, nil
}

// heartbeat keeps this process alive in instance_heartbeats until ctx
// ends, taking over as primary when the holder dies.
func heartbeat(ctx context.Context, db *statedb.StateDB, primary bool) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := db.Heartbeat(); err != nil {
				cliLog.Warn("heartbeat_failed", slog.String("error", err.Error()))
				continue
			}
			if primary {
				continue
			}
			if ok, err := db.ElectPrimary(instanceTimeout); err == nil && ok {
				primary = true
				cliLog.Info("became_primary")
			}
		}
	}
}

// session is what the one-shot commands and the navigator talk to.
type session struct {
	ui.Source
	close func()
}

// connect returns the running server when one answers for profile,
// otherwise an in-process tracker. local skips the probe.
func connect(ctx context.Context, profile string, cfg *config.UserConfig, local bool) (*session, error) {
	if !local {
		client := web.NewClient(cfg.Web.GetListen(), cfg.Web.Token)
		pctx, cancel := context.WithTimeout(ctx, probeTimeout)
		health, err := client.Health(pctx)
		cancel()
		switch {
		case err == nil && health.Profile == profile:
			cliLog.Debug("using_server", slog.String("addr", cfg.Web.GetListen()))
			return &session{Source: client, close: func() {}}, nil
		case err == nil:
			return nil, fmt.Errorf("server at %s is serving profile %q, not %q", cfg.Web.GetListen(), health.Profile, profile)
		case !errors.Is(err, web.ErrServerDown) && !errors.Is(err, context.DeadlineExceeded):
			return nil, err
		}
	}

	rt, err := openRuntime(ctx, profile, cfg)
	if err != nil {
		return nil, err
	}
	s := &session{Source: web.Local{Tabs: rt.tracker}}

	var srv *web.Server
	if b := rt.extension(); b != nil {
		// The extension connects to us, so listen while we run.
		srv = web.NewServer(web.Config{
			ListenAddr: cfg.Web.GetListen(),
			Profile:    profile,
			Token:      cfg.Web.Token,
			Tabs:       rt.tracker,
			Extension:  b,
		})
		go func() {
			if err := srv.Start(); err != nil {
				cliLog.Error("listen_failed", slog.String("error", err.Error()))
			}
		}()
	}
	s.close = func() {
		if srv != nil {
			sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			_ = srv.Shutdown(sctx)
			cancel()
		}
		if err := rt.Close(); err != nil {
			cliLog.Warn("runtime_close_failed", slog.String("error", err.Error()))
		}
	}
	return s, nil
}
