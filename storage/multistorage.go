package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/ruteri/delegate-upgrade-registry/interfaces"
)

// MultiStorageBackend implements interfaces.KVStore using multiple backends with fallback
type MultiStorageBackend struct {
	backends []interfaces.KVStore
	log      *slog.Logger
}

// NewMultiStorageBackend creates a new multi-storage backend with fallback
func NewMultiStorageBackend(backends []interfaces.KVStore, logger *slog.Logger) *MultiStorageBackend {
	// If no logger is provided, create a default one
	if logger == nil {
		logger = slog.Default()
	}

	return &MultiStorageBackend{
		backends: backends,
		log:      logger,
	}
}

// Get returns the value from the first backend that has it.
// ErrKeyNotFound is returned only if every available backend reported a miss;
// if some backend failed and none had the key the failure is returned instead.
func (m *MultiStorageBackend) Get(ctx context.Context, key []byte) ([]byte, error) {
	start := time.Now()
	var errs []error
	misses := 0

	for _, backend := range m.backends {
		if !backend.Available(ctx) {
			m.log.Debug("Backend unavailable", slog.String("backend_name", backend.Name()))
			errs = append(errs, fmt.Errorf("%s: %w", backend.Name(), interfaces.ErrBackendUnavailable))
			continue
		}

		data, err := backend.Get(ctx, key)
		if err == nil {
			m.log.Debug("Successfully fetched value",
				slog.String("backend_name", backend.Name()),
				slog.Duration("duration", time.Since(start)))
			return data, nil
		}

		if errors.Is(err, interfaces.ErrKeyNotFound) {
			misses++
			continue
		}

		errs = append(errs, fmt.Errorf("%s: %w", backend.Name(), err))
		m.log.Debug("Failed to fetch from backend",
			slog.String("backend_name", backend.Name()),
			"err", err)
	}

	if len(errs) == 0 && misses > 0 {
		return nil, interfaces.ErrKeyNotFound
	}

	m.log.Error("All backends failed to fetch value",
		slog.Int("failed_backends", len(errs)),
		slog.Duration("duration", time.Since(start)))

	return nil, fmt.Errorf("all backends failed to fetch: %w", errors.Join(errs...))
}

// Put writes the value to every backend. It fails, wrapping
// ErrBackendUnavailable, unless all of them accepted the write: a backend left
// with an older value would otherwise serve it to later reads.
func (m *MultiStorageBackend) Put(ctx context.Context, key []byte, value []byte) error {
	start := time.Now()
	var errs []error

	for _, backend := range m.backends {
		if !backend.Available(ctx) {
			m.log.Warn("Backend unavailable for write", slog.String("backend_name", backend.Name()))
			errs = append(errs, fmt.Errorf("%s: %w", backend.Name(), interfaces.ErrBackendUnavailable))
			continue
		}

		if err := backend.Put(ctx, key, value); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", backend.Name(), err))
			m.log.Warn("Failed to store to backend",
				slog.String("backend_name", backend.Name()),
				"err", err)
		}
	}

	if len(errs) > 0 {
		m.log.Error("Value not stored on every backend",
			slog.Int("failed_backends", len(errs)),
			slog.Int("backends", len(m.backends)),
			slog.Duration("duration", time.Since(start)))
		return fmt.Errorf("%w: stored on %d of %d backends: %w",
			interfaces.ErrBackendUnavailable, len(m.backends)-len(errs), len(m.backends), errors.Join(errs...))
	}

	m.log.Debug("Stored value",
		slog.Int("backends", len(m.backends)),
		slog.Duration("duration", time.Since(start)))
	return nil
}

// Available checks if any backend is available
func (m *MultiStorageBackend) Available(ctx context.Context) bool {
	for _, backend := range m.backends {
		if backend.Available(ctx) {
			return true
		}
	}
	return false
}

// Name returns the name of this backend
func (m *MultiStorageBackend) Name() string {
	return "multi-storage"
}

// LocationURI returns the URI of this backend
func (m *MultiStorageBackend) LocationURI() string {
	var locations []string
	for _, backend := range m.backends {
		locations = append(locations, backend.LocationURI())
	}

	return "multi:[" + strings.Join(locations, ",") + "]"
}

// Close closes every backend that holds resources.
func (m *MultiStorageBackend) Close() error {
	var errs []error
	for _, backend := range m.backends {
		if closer, ok := backend.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", backend.Name(), err))
			}
		}
	}
	return errors.Join(errs...)
}
