package clipboard

import (
	"bytes"
	"encoding/base64"
	"errors"
	"io"
	"strings"
	"testing"
)

type nopCloser struct{ *bytes.Buffer }

func (nopCloser) Close() error { return nil }

func stub(t *testing.T, unsupported bool, native func(string) error) *bytes.Buffer {
	t.Helper()
	prevU, prevW, prevT := nativeUnsupported, writeNative, openTTY
	t.Cleanup(func() { nativeUnsupported, writeNative, openTTY = prevU, prevW, prevT })

	var tty bytes.Buffer
	nativeUnsupported = func() bool { return unsupported }
	writeNative = native
	openTTY = func() (io.WriteCloser, error) { return nopCloser{&tty}, nil }
	return &tty
}

func TestCopyEmpty(t *testing.T) {
	if _, err := Copy(""); !errors.Is(err, ErrEmpty) {
		t.Fatalf("err = %v, want ErrEmpty", err)
	}
}

func TestCopyNative(t *testing.T) {
	var got string
	tty := stub(t, false, func(s string) error { got = s; return nil })

	method, err := Copy("https://go.dev")
	if err != nil {
		t.Fatal(err)
	}
	if method != MethodNative || got != "https://go.dev" {
		t.Errorf("method=%q got=%q", method, got)
	}
	if tty.Len() != 0 {
		t.Error("osc52 written although native copy worked")
	}
}

func TestCopyFallsBackToOSC52(t *testing.T) {
	t.Setenv("TMUX", "")
	tty := stub(t, false, func(string) error { return errors.New("xclip: no display") })

	method, err := Copy("https://go.dev")
	if err != nil {
		t.Fatal(err)
	}
	if method != MethodOSC52 {
		t.Errorf("method = %q", method)
	}
	out := tty.String()
	if !strings.HasPrefix(out, "\x1b]52;c;") {
		t.Errorf("sequence = %q", out)
	}
	if !strings.Contains(out, base64.StdEncoding.EncodeToString([]byte("https://go.dev"))) {
		t.Errorf("payload missing from %q", out)
	}
}

func TestCopyUnsupportedSkipsNative(t *testing.T) {
	t.Setenv("TMUX", "/tmp/tmux-1000/default,1,0")
	called := false
	tty := stub(t, true, func(string) error { called = true; return nil })

	if _, err := Copy("x"); err != nil {
		t.Fatal(err)
	}
	if called {
		t.Error("native copy attempted on unsupported platform")
	}
	if !strings.HasPrefix(tty.String(), "\x1bPtmux;") {
		t.Errorf("want tmux passthrough, got %q", tty.String())
	}
}

func TestCopyNoTTY(t *testing.T) {
	stub(t, true, nil)
	openTTY = func() (io.WriteCloser, error) { return nil, errors.New("no tty") }
	if _, err := Copy("x"); err == nil {
		t.Fatal("expected error without native tool or tty")
	}
}
