package store

import (
	"context"
	"sync"
)

var _ Backend = (*MemoryBackend)(nil)

// MemoryBackend keeps records in process memory. Used in tests and when no
// database path is configured.
type MemoryBackend struct {
	mu      sync.Mutex
	records map[string][]byte
	saves   int
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{records: make(map[string][]byte)}
}

func (b *MemoryBackend) Load(ctx context.Context, namespace string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	data, ok := b.records[namespace]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), data...), nil
}

func (b *MemoryBackend) Save(ctx context.Context, namespace string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.records[namespace] = append([]byte(nil), data...)
	b.saves++
	return nil
}

// Saves reports how many writes reached the backend.
func (b *MemoryBackend) Saves() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.saves
}
