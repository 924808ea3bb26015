package storage

import (
	"context"
	"log/slog"
	"sync"

	"github.com/ruteri/delegate-upgrade-registry/interfaces"
)

// MemoryBackend implements an in-process storage backend backed by a map.
// It is safe for concurrent use and loses all data on restart.
type MemoryBackend struct {
	mu   sync.RWMutex
	data map[string][]byte
	log  *slog.Logger
}

// NewMemoryBackend creates a new, empty MemoryBackend.
func NewMemoryBackend(log *slog.Logger) *MemoryBackend {
	if log == nil {
		log = slog.Default()
	}
	return &MemoryBackend{
		data: make(map[string][]byte),
		log:  log,
	}
}

// Get returns a copy of the stored value, or ErrKeyNotFound.
func (b *MemoryBackend) Get(ctx context.Context, key []byte) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	value, ok := b.data[string(key)]
	if !ok {
		return nil, interfaces.ErrKeyNotFound
	}
	return append([]byte(nil), value...), nil
}

// Put stores a copy of value so the caller's slice is not retained.
func (b *MemoryBackend) Put(ctx context.Context, key []byte, value []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.data[string(key)] = append([]byte(nil), value...)
	b.log.Debug("Stored value in memory", slog.Int("size", len(value)))
	return nil
}

// Available always returns true.
func (b *MemoryBackend) Available(ctx context.Context) bool {
	return true
}

// Name returns a unique identifier for this storage backend.
func (b *MemoryBackend) Name() string {
	return "memory"
}

// LocationURI returns the URI that identifies this storage backend.
func (b *MemoryBackend) LocationURI() string {
	return "memory://"
}

// Len returns the number of stored keys.
func (b *MemoryBackend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.data)
}
