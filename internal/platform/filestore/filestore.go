// Package filestore provides content storage for template PDFs. It defines
// the FileStore interface, a local-disk implementation, and an in-memory
// implementation suitable for testing and development. An S3/MinIO backend
// lives in minio.go.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

var (
	ErrFileNotFound = errors.New("file not found")
	ErrInvalidName  = errors.New("invalid file name")
)

// FileStore is the contract for template PDF storage backends. Names are
// flat keys generated by the template service; they never contain path
// separators.
type FileStore interface {
	Put(ctx context.Context, name string, data []byte) error
	Get(ctx context.Context, name string) ([]byte, error)
	// Stat returns the stored size in bytes.
	Stat(ctx context.Context, name string) (int64, error)
	// Copy duplicates a stored object under a new name.
	Copy(ctx context.Context, src, dst string) error
}

func validName(name string) error {
	if name == "" || strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Disk implementation
// ---------------------------------------------------------------------------

// DiskStore stores files in a single flat directory.
type DiskStore struct {
	dir string
}

func NewDiskStore(dir string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage directory %s: %w", dir, err)
	}
	return &DiskStore{dir: dir}, nil
}

func (s *DiskStore) path(name string) string {
	return filepath.Join(s.dir, name)
}

func (s *DiskStore) Put(_ context.Context, name string, data []byte) error {
	if err := validName(name); err != nil {
		return err
	}
	if err := os.WriteFile(s.path(name), data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

func (s *DiskStore) Get(_ context.Context, name string) ([]byte, error) {
	if err := validName(name); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrFileNotFound
		}
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return data, nil
}

func (s *DiskStore) Stat(_ context.Context, name string) (int64, error) {
	if err := validName(name); err != nil {
		return 0, err
	}
	info, err := os.Stat(s.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, ErrFileNotFound
		}
		return 0, fmt.Errorf("stat %s: %w", name, err)
	}
	return info.Size(), nil
}

func (s *DiskStore) Copy(ctx context.Context, src, dst string) error {
	data, err := s.Get(ctx, src)
	if err != nil {
		return err
	}
	return s.Put(ctx, dst, data)
}

// ---------------------------------------------------------------------------
// In-memory implementation
// ---------------------------------------------------------------------------

// MemoryStore is a thread-safe, in-memory FileStore for testing/dev.
type MemoryStore struct {
	mu    sync.RWMutex
	files map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{files: make(map[string][]byte)}
}

func (s *MemoryStore) Put(_ context.Context, name string, data []byte) error {
	if err := validName(name); err != nil {
		return err
	}
	cp := make([]byte, len(data))
	copy(cp, data)

	s.mu.Lock()
	s.files[name] = cp
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Get(_ context.Context, name string) ([]byte, error) {
	if err := validName(name); err != nil {
		return nil, err
	}
	s.mu.RLock()
	data, ok := s.files[name]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrFileNotFound
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return cp, nil
}

func (s *MemoryStore) Stat(_ context.Context, name string) (int64, error) {
	if err := validName(name); err != nil {
		return 0, err
	}
	s.mu.RLock()
	data, ok := s.files[name]
	s.mu.RUnlock()
	if !ok {
		return 0, ErrFileNotFound
	}
	return int64(len(data)), nil
}

func (s *MemoryStore) Copy(ctx context.Context, src, dst string) error {
	data, err := s.Get(ctx, src)
	if err != nil {
		return err
	}
	return s.Put(ctx, dst, data)
}

// Delete removes a stored file. Not part of FileStore (templates are only
// ever soft-deleted); tests use it to simulate a missing backing file.
func (s *MemoryStore) Delete(name string) {
	s.mu.Lock()
	delete(s.files, name)
	s.mu.Unlock()
}
