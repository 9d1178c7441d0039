package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads config.toml when it changes on disk and publishes the
// new configuration. The directory is watched rather than the file, since
// Save replaces the file by rename.
type Watcher struct {
	path     string
	fs       *fsnotify.Watcher
	debounce time.Duration

	changes   chan *UserConfig
	stop      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewWatcher watches the config file at Path(). Rapid bursts of events are
// collapsed into one reload after debounce (default 150ms).
func NewWatcher(debounce time.Duration) (*Watcher, error) {
	path, err := Path()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = 150 * time.Millisecond
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, err
	}
	w := &Watcher{
		path:     path,
		fs:       fw,
		debounce: debounce,
		changes:  make(chan *UserConfig, 1),
		stop:     make(chan struct{}),
	}
	w.wg.Add(1)
	go w.loop()
	return w, nil
}

// Changes delivers each successfully reloaded config. If the consumer is
// slow, only the newest is kept.
func (w *Watcher) Changes() <-chan *UserConfig {
	return w.changes
}

// Close stops watching. Safe to call more than once.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.stop)
		err = w.fs.Close()
		w.wg.Wait()
	})
	return err
}

func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if filepath.Clean(ev.Name) != filepath.Clean(w.path) {
		return false
	}
	return ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename)
}

func (w *Watcher) loop() {
	defer w.wg.Done()
	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-w.stop:
			return
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if !w.relevant(ev) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			w.reload()
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			configLog.Warn("config_watch_error", slog.String("error", err.Error()))
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := LoadFile(w.path)
	if err != nil {
		// keep the previous config
		configLog.Warn("config_reload_failed", slog.String("error", err.Error()))
		return
	}
	cacheMu.Lock()
	cache = cfg
	cacheMu.Unlock()
	configLog.Info("config_reloaded", slog.String("path", w.path))

	select {
	case w.changes <- cfg:
	default:
		select {
		case <-w.changes:
		default:
		}
		select {
		case w.changes <- cfg:
		default:
		}
	}
}
