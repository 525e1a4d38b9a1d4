package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rendis/pdc/internal/isolation"
)

// LocalStore writes objects as files below a root directory. Keys are
// slash-separated and may not escape the root.
type LocalStore struct {
	root string
}

func NewLocalStore(dir string) (*LocalStore, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, fmt.Errorf("local storage dir is required")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", dir, err)
	}
	return &LocalStore{root: abs}, nil
}

// Root returns the absolute storage directory.
func (s *LocalStore) Root() string { return s.root }

func (s *LocalStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	target, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

func (s *LocalStore) Get(ctx context.Context, key string) ([]byte, error) {
	target, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(target)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	return data, err
}

func (s *LocalStore) resolve(key string) (string, error) {
	key, err := validateKey(key)
	if err != nil {
		return "", err
	}
	target, err := isolation.Contain(s.root, key)
	if err != nil {
		return "", fmt.Errorf("object key %q escapes storage root: %w", key, err)
	}
	return target, nil
}
