// Package memory keeps the state record in-process for tests and dry runs.
package memory

import (
	"context"
	"sync"

	"github.com/JakeFAU/page-watcher/internal/storage"
)

// Backend stores the record in memory.
type Backend struct {
	mu     sync.RWMutex
	data   []byte
	exists bool
}

var _ storage.Backend = (*Backend)(nil)

// New creates an empty in-memory backend.
func New() *Backend {
	return &Backend{}
}

// Read returns a copy of the stored bytes.
func (b *Backend) Read(_ context.Context) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.exists {
		return nil, storage.ErrNotFound
	}
	return append([]byte(nil), b.data...), nil
}

// Write replaces the stored bytes with a copy of data.
func (b *Backend) Write(_ context.Context, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data = append([]byte(nil), data...)
	b.exists = true
	return nil
}

// Location returns a pseudo URI.
func (b *Backend) Location() string {
	return "memory://state"
}
