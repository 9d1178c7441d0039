package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/walunjakarsachinedu/tab-navigator/internal/config"
	"github.com/walunjakarsachinedu/tab-navigator/internal/host/memory"
	"github.com/walunjakarsachinedu/tab-navigator/internal/reconcile"
	"github.com/walunjakarsachinedu/tab-navigator/internal/statedb"
	"github.com/walunjakarsachinedu/tab-navigator/internal/tab"
	"github.com/walunjakarsachinedu/tab-navigator/internal/web"
)

// TestMain points every test at a throwaway base directory so nothing
// touches ~/.tab-navigator.
func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "tabnav-cmd-test")
	if err != nil {
		panic(err)
	}
	os.Setenv(config.HomeEnv, dir)
	code := m.Run()
	os.RemoveAll(dir)
	os.Exit(code)
}

func memoryConfig() *config.UserConfig {
	cfg := &config.UserConfig{}
	cfg.Host.Kind = config.HostMemory
	cfg.Persist.MinIntervalMS = 1
	return cfg
}

func withHome(t *testing.T) {
	t.Helper()
	t.Setenv(config.HomeEnv, t.TempDir())
}

func TestRuntimeTracksAndPersists(t *testing.T) {
	withHome(t)
	ctx := context.Background()

	rt, err := openRuntime(ctx, "test", memoryConfig())
	require.NoError(t, err)
	<-rt.tracker.Ready()

	mh, ok := rt.host.(*memory.Host)
	require.True(t, ok)
	assert.Nil(t, rt.extension())

	mh.Open(tab.Record{ID: 1, Title: "Go Packages", URL: "https://pkg.go.dev", Status: "complete", WindowID: 1})
	mh.Open(tab.Record{ID: 2, Title: "Issues", URL: "https://github.com/issues", Status: "complete", WindowID: 1})
	require.NoError(t, mh.Activate(ctx, 1))

	var buf bytes.Buffer
	require.NoError(t, runList(ctx, web.Local{Tabs: rt.tracker}, &buf, "", "", formatJSON))
	var rows []tabRow
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, int64(1), rows[0].ID)
	assert.Equal(t, int64(2), rows[1].ID)

	buf.Reset()
	require.NoError(t, runList(ctx, web.Local{Tabs: rt.tracker}, &buf, "", "issu", formatJSON))
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, int64(2), rows[0].ID)

	require.NoError(t, rt.Close())

	path, err := config.StatePath("test")
	require.NoError(t, err)
	db, err := statedb.Open(path)
	require.NoError(t, err)
	defer db.Close()
	blob, found, err := db.Get(ctx, reconcile.Key)
	require.NoError(t, err)
	require.True(t, found)
	recs, err := reconcile.Decode(blob)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, int64(1), recs[0].ID)
}

func TestOpenHostUnknownKind(t *testing.T) {
	_, _, _, err := openHost(context.Background(), "firefox", memoryConfig())
	assert.ErrorContains(t, err, "unknown host kind")
}

func TestOpenHostBridge(t *testing.T) {
	cfg := memoryConfig()
	cfg.Host.Kind = config.HostBridge
	h, b, shutdown, err := openHost(context.Background(), config.HostBridge, cfg)
	require.NoError(t, err)
	defer shutdown()
	assert.NotNil(t, b)
	assert.Same(t, b, h)
}

func TestClaimPrimary(t *testing.T) {
	db, err := statedb.Open(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, db.Migrate())

	primary, err := claimPrimary(db, false)
	require.NoError(t, err)
	assert.True(t, primary)

	// Another live process takes over.
	require.NoError(t, db.ResignPrimary())
	now := time.Now().Unix()
	_, err = db.DB().Exec(
		"INSERT INTO instance_heartbeats (pid, started, heartbeat, is_primary) VALUES (?, ?, ?, 1)",
		os.Getpid()+100000, now, now)
	require.NoError(t, err)

	_, err = claimPrimary(db, false)
	assert.ErrorIs(t, err, errAlreadyRunning)

	primary, err = claimPrimary(db, true)
	require.NoError(t, err)
	assert.False(t, primary)
}

func TestConnectLocal(t *testing.T) {
	withHome(t)
	sess, err := connect(context.Background(), "test", memoryConfig(), true)
	require.NoError(t, err)
	defer sess.close()
	assert.IsType(t, web.Local{}, sess.Source)
}

func TestConnectFallsBackWhenServerDown(t *testing.T) {
	withHome(t)
	cfg := memoryConfig()
	cfg.Web.Listen = "127.0.0.1:1"
	sess, err := connect(context.Background(), "test", cfg, false)
	require.NoError(t, err)
	defer sess.close()
	assert.IsType(t, web.Local{}, sess.Source)
}

func TestConnectUsesRunningServer(t *testing.T) {
	srv := web.NewServer(web.Config{Profile: "test"})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	cfg := memoryConfig()
	cfg.Web.Listen = ts.URL
	sess, err := connect(context.Background(), "test", cfg, false)
	require.NoError(t, err)
	defer sess.close()
	assert.IsType(t, &web.Client{}, sess.Source)

	_, err = connect(context.Background(), "other", cfg, false)
	assert.ErrorContains(t, err, `serving profile "test"`)
}

func TestRunImport(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "state.db")
	export := filepath.Join(dir, "export.json")
	body := `{"tabQueue": "[{\"id\":5,\"url\":\"https://go.dev\",\"title\":\"Go\",\"status\":\"complete\",\"favIconUrl\":\"\",\"windowId\":1}]", "other": 1}`
	require.NoError(t, os.WriteFile(export, []byte(body), 0o600))

	var out bytes.Buffer
	require.NoError(t, runImport(context.Background(), dbPath, export, &out))
	assert.Contains(t, out.String(), "Imported 2 key(s): other, tabQueue")
	assert.Contains(t, out.String(), "tabQueue holds 1 tab(s)")
}

func TestRunImportMalformedQueue(t *testing.T) {
	dir := t.TempDir()
	export := filepath.Join(dir, "export.json")
	require.NoError(t, os.WriteFile(export, []byte(`{"tabQueue": "nope"}`), 0o600))

	var out bytes.Buffer
	require.NoError(t, runImport(context.Background(), filepath.Join(dir, "state.db"), export, &out))
	assert.Contains(t, out.String(), "malformed and will be ignored")
}

func TestRunImportWithoutQueue(t *testing.T) {
	dir := t.TempDir()
	export := filepath.Join(dir, "export.json")
	require.NoError(t, os.WriteFile(export, []byte(`{"theme": "dark"}`), 0o600))

	var out bytes.Buffer
	require.NoError(t, runImport(context.Background(), filepath.Join(dir, "state.db"), export, &out))
	assert.Contains(t, out.String(), "No tabQueue key")
}

func TestServeOptionsApply(t *testing.T) {
	cfg := memoryConfig()
	cfg.Web.Token = "keep"
	serveOptions{listen: "127.0.0.1:9", host: config.HostCDP, cdpURL: "http://h:1"}.apply(cfg)
	assert.Equal(t, "127.0.0.1:9", cfg.Web.Listen)
	assert.Equal(t, "keep", cfg.Web.Token)
	assert.Equal(t, config.HostCDP, cfg.Host.Kind)
	assert.Equal(t, "http://h:1", cfg.Host.CDPURL)
}
