package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/ruteri/confidential-move-client/interfaces"
)

// MirroredStore writes to every available backend and reads from the first one
// that has the key.
type MirroredStore struct {
	backends []interfaces.KeyValueStore
	log      *slog.Logger
}

func NewMirroredStore(backends []interfaces.KeyValueStore, logger *slog.Logger) *MirroredStore {
	if logger == nil {
		logger = slog.Default()
	}

	return &MirroredStore{
		backends: backends,
		log:      logger,
	}
}

func (m *MirroredStore) Get(ctx context.Context, key string) ([]byte, error) {
	start := time.Now()
	var errs []error
	notFound := 0

	for _, backend := range m.backends {
		if !backend.Available(ctx) {
			m.log.Debug("Backend unavailable", slog.String("backend_name", backend.Name()))
			continue
		}

		data, err := backend.Get(ctx, key)
		if err == nil {
			m.log.Debug("Fetched key",
				slog.String("backend_name", backend.Name()),
				slog.Duration("duration", time.Since(start)))
			return data, nil
		}
		if errors.Is(err, interfaces.ErrKeyNotFound) {
			notFound++
			continue
		}

		errs = append(errs, fmt.Errorf("%s: %w", backend.Name(), err))
		m.log.Debug("Failed to fetch from backend",
			slog.String("backend_name", backend.Name()),
			"err", err)
	}

	if len(errs) == 0 && notFound > 0 {
		return nil, interfaces.ErrKeyNotFound
	}

	m.log.Error("All backends failed to fetch key",
		slog.Int("failed_backends", len(errs)),
		slog.Duration("duration", time.Since(start)))
	return nil, fmt.Errorf("%w: all backends failed: %w", interfaces.ErrStoreUnavailable, errors.Join(errs...))
}

// Set succeeds when at least one backend accepted the value.
func (m *MirroredStore) Set(ctx context.Context, key string, value []byte) error {
	var success bool
	var errs []error

	for _, backend := range m.backends {
		if !backend.Available(ctx) {
			m.log.Debug("Backend unavailable", slog.String("backend_name", backend.Name()))
			continue
		}

		if err := backend.Set(ctx, key, value); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", backend.Name(), err))
			m.log.Warn("Failed to store to backend",
				slog.String("backend_name", backend.Name()),
				"err", err)
			continue
		}
		success = true
	}

	if !success {
		return fmt.Errorf("%w: all backends failed to store: %w", interfaces.ErrStoreUnavailable, errors.Join(errs...))
	}
	return nil
}

// Delete is attempted on every backend, including ones reporting unavailable,
// and fails if any of them failed.
func (m *MirroredStore) Delete(ctx context.Context, key string) error {
	var errs []error
	for _, backend := range m.backends {
		if err := backend.Delete(ctx, key); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", backend.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Keys returns the union of keys over all available backends.
func (m *MirroredStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	seen := make(map[string]struct{})
	var errs []error
	var listed bool

	for _, backend := range m.backends {
		if !backend.Available(ctx) {
			continue
		}
		keys, err := backend.Keys(ctx, prefix)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", backend.Name(), err))
			continue
		}
		listed = true
		for _, k := range keys {
			seen[k] = struct{}{}
		}
	}

	if !listed && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *MirroredStore) Available(ctx context.Context) bool {
	for _, backend := range m.backends {
		if backend.Available(ctx) {
			return true
		}
	}
	return false
}

func (m *MirroredStore) Name() string {
	names := make([]string, 0, len(m.backends))
	for _, backend := range m.backends {
		names = append(names, backend.Name())
	}
	return "mirrored:[" + strings.Join(names, ",") + "]"
}
