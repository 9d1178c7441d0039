package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func TestRingBufferWrites(t *testing.T) {
	tests := []struct {
		name   string
		size   int
		writes []string
		want   string
	}{
		{"fits", 16, []string{"tab", "nav"}, "tabnav"},
		{"exact fill", 6, []string{"abc", "def"}, "abcdef"},
		{"wraps", 6, []string{"abcdef", "gh"}, "cdefgh"},
		{"split write", 6, []string{"abcd", "efgh"}, "cdefgh"},
		{"oversized single write", 4, []string{"0123456789"}, "6789"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rb := NewRingBuffer(tt.size)
			for _, w := range tt.writes {
				n, err := rb.Write([]byte(w))
				if err != nil || n != len(w) {
					t.Fatalf("Write(%q) = %d, %v", w, n, err)
				}
			}
			if got := string(rb.Bytes()); got != tt.want {
				t.Errorf("Bytes = %q, want %q", got, tt.want)
			}
			if rb.Len() != len(tt.want) {
				t.Errorf("Len = %d, want %d", rb.Len(), len(tt.want))
			}
		})
	}
}

func TestRingBufferResetAndWriteTo(t *testing.T) {
	rb := NewRingBuffer(8)
	_, _ = rb.Write([]byte("12345678xy"))
	rb.Reset()
	_, _ = rb.Write([]byte("ok"))

	var out bytes.Buffer
	if _, err := rb.WriteTo(&out); err != nil {
		t.Fatal(err)
	}
	if out.String() != "ok" {
		t.Errorf("after reset got %q", out.String())
	}
}

func TestRingBufferDumpToFile(t *testing.T) {
	rb := NewRingBuffer(32)
	_, _ = rb.Write([]byte("crash context"))

	path := filepath.Join(t.TempDir(), "ring.dump")
	if err := rb.DumpToFile(path); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "crash context" {
		t.Errorf("dump = %q", data)
	}
}

func TestRingBufferConcurrentWriters(t *testing.T) {
	rb := NewRingBuffer(4096)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_, _ = rb.Write([]byte("z"))
			}
		}()
	}
	wg.Wait()
	if rb.Len() != 400 {
		t.Errorf("Len = %d, want 400", rb.Len())
	}
}
