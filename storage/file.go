package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ruteri/confidential-move-client/interfaces"
)

// FileStore keeps one file per key under a base directory. Key names are
// path-escaped so any key maps to a single file.
type FileStore struct {
	baseDir string
	log     *slog.Logger
}

// NewFileStore creates the base directory if it doesn't exist.
func NewFileStore(baseDir string, log *slog.Logger) (*FileStore, error) {
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	if log == nil {
		log = slog.Default()
	}
	return &FileStore{baseDir: baseDir, log: log}, nil
}

// Get reads the file for key. Returns ErrKeyNotFound if it doesn't exist.
func (s *FileStore) Get(ctx context.Context, key string) ([]byte, error) {
	filePath := s.filePath(key)

	data, err := os.ReadFile(filePath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, interfaces.ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	s.log.Debug("Fetched key from file",
		slog.String("path", filePath),
		slog.Int("size", len(data)))

	return data, nil
}

// Set writes value through a temporary file and a rename, so readers never
// observe a partial record.
func (s *FileStore) Set(ctx context.Context, key string, value []byte) error {
	filePath := s.filePath(key)

	tmp, err := os.CreateTemp(s.baseDir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := os.Rename(tmp.Name(), filePath); err != nil {
		return fmt.Errorf("failed to replace file: %w", err)
	}

	s.log.Debug("Stored key in file", slog.String("path", filePath))
	return nil
}

func (s *FileStore) Delete(ctx context.Context, key string) error {
	err := os.Remove(s.filePath(key))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove file: %w", err)
	}
	return nil
}

func (s *FileStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to list directory: %w", err)
	}

	var keys []string
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".tmp-") {
			continue
		}
		key, err := url.PathUnescape(entry.Name())
		if err != nil {
			continue
		}
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Available checks that the base directory exists.
func (s *FileStore) Available(ctx context.Context) bool {
	_, err := os.Stat(s.baseDir)
	if err != nil {
		s.log.Debug("File store unavailable", "err", err)
		return false
	}
	return true
}

func (s *FileStore) Name() string {
	return fmt.Sprintf("file-%s", filepath.Base(s.baseDir))
}

func (s *FileStore) filePath(key string) string {
	name := url.PathEscape(key)
	if strings.HasPrefix(name, ".") {
		name = "%2E" + strings.TrimPrefix(name, ".")
	}
	return filepath.Join(s.baseDir, name)
}
