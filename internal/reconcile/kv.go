package reconcile

import (
	"context"
	"sync"
	"time"
)

// KV is the durable string store snapshots are written to.
// *statedb.StateDB satisfies it.
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// Timestamped is implemented by a KV that records write times.
// *statedb.StateDB does.
type Timestamped interface {
	UpdatedAt(ctx context.Context, key string) (time.Time, error)
}

// MemoryKV is an in-process KV.
type MemoryKV struct {
	mu   sync.Mutex
	data map[string]string
	sets int

	failGet error
	failSet error
}

// NewMemoryKV returns an empty MemoryKV.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: make(map[string]string)}
}

func (m *MemoryKV) Get(ctx context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGet != nil {
		return "", false, m.failGet
	}
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *MemoryKV) Set(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSet != nil {
		return m.failSet
	}
	m.data[key] = value
	m.sets++
	return nil
}

// Sets counts successful writes.
func (m *MemoryKV) Sets() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sets
}

// Fail makes subsequent Get and Set calls return the given errors. Pass nil
// to restore normal behaviour.
func (m *MemoryKV) Fail(getErr, setErr error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failGet, m.failSet = getErr, setErr
}
