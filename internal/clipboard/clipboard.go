// Package clipboard copies text to the system clipboard, falling back to
// the OSC 52 terminal escape when no native clipboard tool is installed.
package clipboard

import (
	"errors"
	"fmt"
	"io"
	"os"

	sysclip "github.com/atotto/clipboard"
	"github.com/aymanbagabas/go-osc52/v2"
)

// Methods reported by Copy.
const (
	MethodNative = "native"
	MethodOSC52  = "osc52"
)

// ErrEmpty is returned for an empty string.
var ErrEmpty = errors.New("clipboard: no content to copy")

// Replaced in tests.
var (
	nativeUnsupported = func() bool { return sysclip.Unsupported }
	writeNative       = sysclip.WriteAll
	openTTY           = func() (io.WriteCloser, error) {
		return os.OpenFile("/dev/tty", os.O_WRONLY, 0)
	}
)

// Copy puts text on the clipboard and reports how.
func Copy(text string) (method string, err error) {
	if text == "" {
		return "", ErrEmpty
	}
	if !nativeUnsupported() {
		if err := writeNative(text); err == nil {
			return MethodNative, nil
		}
	}

	// Write to the tty so the sequence survives stdout redirection.
	tty, err := openTTY()
	if err != nil {
		return "", fmt.Errorf("clipboard: no native tool and no tty: %w", err)
	}
	defer tty.Close()

	seq := osc52.New(text)
	if os.Getenv("TMUX") != "" {
		seq = seq.Tmux()
	}
	if _, err := seq.WriteTo(tty); err != nil {
		return "", fmt.Errorf("clipboard: osc52: %w", err)
	}
	return MethodOSC52, nil
}
