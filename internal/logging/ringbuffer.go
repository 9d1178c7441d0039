package logging

import (
	"io"
	"os"
	"sync"
)

// RingBuffer keeps the most recent bytes written to it. It is an io.Writer
// that never fails and never grows.
type RingBuffer struct {
	mu      sync.Mutex
	data    []byte
	next    int
	wrapped bool
}

// NewRingBuffer allocates a ring of size bytes (default 2MB).
func NewRingBuffer(size int) *RingBuffer {
	if size <= 0 {
		size = 2 << 20
	}
	return &RingBuffer{data: make([]byte, size)}
}

// Write stores p, overwriting the oldest bytes once the ring is full.
func (r *RingBuffer) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(p)
	size := len(r.data)
	if n >= size {
		copy(r.data, p[n-size:])
		r.next = 0
		r.wrapped = true
		return n, nil
	}

	c := copy(r.data[r.next:], p)
	if c < n {
		r.next = copy(r.data, p[c:])
		r.wrapped = true
		return n, nil
	}
	r.next += c
	if r.next == size {
		r.next = 0
		r.wrapped = true
	}
	return n, nil
}

// Len reports how many bytes are currently held.
func (r *RingBuffer) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.wrapped {
		return len(r.data)
	}
	return r.next
}

// Bytes returns a copy of the held bytes, oldest first.
func (r *RingBuffer) Bytes() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.wrapped {
		return append([]byte(nil), r.data[:r.next]...)
	}
	out := make([]byte, 0, len(r.data))
	out = append(out, r.data[r.next:]...)
	return append(out, r.data[:r.next]...)
}

// WriteTo copies the held bytes to w.
func (r *RingBuffer) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(r.Bytes())
	return int64(n), err
}

// Reset discards the held bytes.
func (r *RingBuffer) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next = 0
	r.wrapped = false
}

// DumpToFile writes the held bytes to path, replacing it.
func (r *RingBuffer) DumpToFile(path string) error {
	return os.WriteFile(path, r.Bytes(), 0o600)
}
