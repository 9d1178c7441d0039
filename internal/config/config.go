// Package config loads and saves the user's config.toml.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
)

// FileName is the TOML file inside Dir.
const FileName = "config.toml"

// Host kinds.
const (
	HostBridge = "bridge"
	HostCDP    = "cdp"
	HostMemory = "memory"
)

// UserConfig is the on-disk configuration. Zero values mean "use the
// default"; read settings through the getters.
type UserConfig struct {
	// Theme is "dark", "light" or "system". Default dark.
	Theme string `toml:"theme"`

	Host      HostSettings       `toml:"host"`
	Web       WebSettings        `toml:"web"`
	Search    SearchSettings     `toml:"search"`
	Persist   PersistSettings    `toml:"persist"`
	Logs      LogSettings        `toml:"logs"`
	Instances InstanceSettings   `toml:"instances"`
	Profiles  map[string]Profile `toml:"profiles"`
}

// HostSettings selects where live tabs come from.
type HostSettings struct {
	// Kind is "bridge" (browser extension over websocket), "cdp" (DevTools
	// remote debugging) or "memory". Default bridge.
	Kind string `toml:"kind"`

	// CDPURL is the DevTools websocket or http endpoint. Default
	// http://127.0.0.1:9222.
	CDPURL string `toml:"cdp_url"`

	// TimeoutMS bounds each host call. Default 5000.
	TimeoutMS int `toml:"timeout_ms"`
}

// WebSettings configures the HTTP API.
type WebSettings struct {
	// Listen is the bind address. Default 127.0.0.1:7878.
	Listen string `toml:"listen"`

	// Token, when set, is required as a bearer token or ?token= parameter.
	Token string `toml:"token"`

	// ExtensionOrigins lists the extension origins accepted on
	// /ws/extension, e.g. "chrome-extension://<id>". Empty accepts any
	// browser-extension origin.
	ExtensionOrigins []string `toml:"extension_origins"`
}

// SearchSettings tunes query results.
type SearchSettings struct {
	// MaxResults caps ranked results shown. 0 means no cap.
	MaxResults int `toml:"max_results"`
}

// PersistSettings tunes snapshot writes.
type PersistSettings struct {
	// MinIntervalMS is the minimum gap between two snapshot writes.
	// Default 250.
	MinIntervalMS int `toml:"min_interval_ms"`
}

// LogSettings configures internal/logging.
type LogSettings struct {
	Level         string `toml:"level"`
	Format        string `toml:"format"`
	MaxSizeMB     int    `toml:"max_size_mb"`
	MaxBackups    int    `toml:"max_backups"`
	MaxAgeDays    int    `toml:"max_age_days"`
	Compress      *bool  `toml:"compress"`
	RingBufferKB  int    `toml:"ring_buffer_kb"`
	AggregateSecs int    `toml:"aggregate_interval_secs"`
	PprofAddr     string `toml:"pprof_addr"`
}

// InstanceSettings controls concurrent trackers on one profile.
type InstanceSettings struct {
	// AllowMultiple lets a second "serve" run alongside a primary.
	AllowMultiple *bool `toml:"allow_multiple"`
}

// Profile holds per-profile overrides.
type Profile struct {
	Host *HostSettings `toml:"host"`
	Web  *WebSettings  `toml:"web"`
}

var (
	cache   *UserConfig
	cacheMu sync.RWMutex
)

func defaults() *UserConfig {
	return &UserConfig{Profiles: map[string]Profile{}}
}

// Load returns the cached configuration, reading config.toml on first use.
// A missing file yields defaults. A parse error returns defaults together
// with the error so callers can report it and carry on.
func Load() (*UserConfig, error) {
	cacheMu.RLock()
	if cache != nil {
		defer cacheMu.RUnlock()
		return cache, nil
	}
	cacheMu.RUnlock()

	cacheMu.Lock()
	defer cacheMu.Unlock()
	if cache != nil {
		return cache, nil
	}

	path, err := Path()
	if err != nil {
		cache = defaults()
		return cache, nil
	}
	cfg, err := LoadFile(path)
	if err != nil {
		cache = defaults()
		return cache, err
	}
	cache = cfg
	return cache, nil
}

// LoadFile parses one config file without touching the cache.
func LoadFile(path string) (*UserConfig, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return defaults(), nil
	}
	cfg := defaults()
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", filepath.Base(path), err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		configLog.Warn("unknown_config_keys", "keys", fmt.Sprint(undecoded))
	}
	if cfg.Profiles == nil {
		cfg.Profiles = map[string]Profile{}
	}
	return cfg, nil
}

// Reload drops the cache and reads the file again.
func Reload() (*UserConfig, error) {
	ClearCache()
	return Load()
}

// ClearCache forgets the cached config.
func ClearCache() {
	cacheMu.Lock()
	cache = nil
	cacheMu.Unlock()
}

// Save writes cfg to config.toml atomically and clears the cache.
func Save(cfg *UserConfig) error {
	path, err := Path()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("config: mkdir: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString("# tab-navigator configuration\n\n")
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("config: encode: %w", err)
	}

	// Write a temp file, fsync it, then rename over the original.
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("config: write temp: %w", err)
	}
	if f, err := os.Open(tmp); err == nil {
		_ = f.Sync()
		f.Close()
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("config: rename: %w", err)
	}
	ClearCache()
	return nil
}

// ForProfile returns a copy of c with the named profile's overrides applied.
func (c *UserConfig) ForProfile(name string) *UserConfig {
	out := *c
	p, ok := c.Profiles[name]
	if !ok {
		return &out
	}
	if p.Host != nil {
		if p.Host.Kind != "" {
			out.Host.Kind = p.Host.Kind
		}
		if p.Host.CDPURL != "" {
			out.Host.CDPURL = p.Host.CDPURL
		}
		if p.Host.TimeoutMS > 0 {
			out.Host.TimeoutMS = p.Host.TimeoutMS
		}
	}
	if p.Web != nil {
		if p.Web.Listen != "" {
			out.Web.Listen = p.Web.Listen
		}
		if p.Web.Token != "" {
			out.Web.Token = p.Web.Token
		}
		if len(p.Web.ExtensionOrigins) > 0 {
			out.Web.ExtensionOrigins = p.Web.ExtensionOrigins
		}
	}
	return &out
}

// GetTheme returns the configured theme, default "dark".
func (c *UserConfig) GetTheme() string {
	switch c.Theme {
	case "light", "system":
		return c.Theme
	}
	return "dark"
}

// GetKind returns the host kind, default bridge.
func (h *HostSettings) GetKind() string {
	switch h.Kind {
	case HostCDP, HostMemory:
		return h.Kind
	}
	return HostBridge
}

// GetCDPURL returns the DevTools endpoint.
func (h *HostSettings) GetCDPURL() string {
	if h.CDPURL == "" {
		return "http://127.0.0.1:9222"
	}
	return h.CDPURL
}

// GetTimeout returns the per-call host timeout.
func (h *HostSettings) GetTimeout() time.Duration {
	if h.TimeoutMS <= 0 {
		return 5 * time.Second
	}
	return time.Duration(h.TimeoutMS) * time.Millisecond
}

// GetListen returns the HTTP bind address.
func (w *WebSettings) GetListen() string {
	if w.Listen == "" {
		return "127.0.0.1:7878"
	}
	return w.Listen
}

// GetMaxResults returns the result cap; 0 means unlimited.
func (s *SearchSettings) GetMaxResults() int {
	if s.MaxResults < 0 {
		return 0
	}
	return s.MaxResults
}

// GetMinInterval returns the minimum gap between snapshot writes.
func (p *PersistSettings) GetMinInterval() time.Duration {
	if p.MinIntervalMS <= 0 {
		return 250 * time.Millisecond
	}
	return time.Duration(p.MinIntervalMS) * time.Millisecond
}

// GetCompress reports whether rotated logs are gzipped. Default true.
func (l *LogSettings) GetCompress() bool {
	if l.Compress == nil {
		return true
	}
	return *l.Compress
}

// GetRingBufferBytes returns the crash ring size in bytes.
func (l *LogSettings) GetRingBufferBytes() int {
	if l.RingBufferKB <= 0 {
		return 2 << 20
	}
	return l.RingBufferKB << 10
}

// GetAggregateInterval returns the summary interval.
func (l *LogSettings) GetAggregateInterval() time.Duration {
	if l.AggregateSecs <= 0 {
		return 30 * time.Second
	}
	return time.Duration(l.AggregateSecs) * time.Second
}

// GetAllowMultiple reports whether several trackers may share a profile.
// Default false.
func (i *InstanceSettings) GetAllowMultiple() bool {
	return i.AllowMultiple != nil && *i.AllowMultiple
}
