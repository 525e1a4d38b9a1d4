// Package objectstore keeps rendered artifacts (specs, Mermaid, draw.io XML,
// Markdown plans) in S3-compatible storage or a local directory.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
)

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = errors.New("object not found")

// Default content types for the artifacts the pipeline writes.
const (
	ContentTypeText     = "text/plain; charset=utf-8"
	ContentTypeJSON     = "application/json; charset=utf-8"
	ContentTypeXML      = "application/xml; charset=utf-8"
	ContentTypeMarkdown = "text/markdown; charset=utf-8"
)

// Store puts and gets objects by key.
type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// Storage modes.
const (
	ModeMinio    = "minio"
	ModeLocal    = "local"
	ModeDisabled = "disabled"
)

// Config selects and configures an object store.
type Config struct {
	Mode     string      `yaml:"mode"`
	Minio    MinioConfig `yaml:"minio"`
	LocalDir string      `yaml:"local_dir"`
}

// New builds the store named by cfg.Mode. An empty mode or "disabled"
// returns (nil, nil): artifacts are then kept only in the database.
func New(cfg Config) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Mode)) {
	case "", ModeDisabled:
		return nil, nil
	case ModeMinio:
		s, err := NewMinioStore(cfg.Minio)
		if err != nil {
			return nil, err
		}
		return s, nil
	case ModeLocal:
		s, err := NewLocalStore(cfg.LocalDir)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown storage mode %q", cfg.Mode)
	}
}

// ArtifactKey returns the object key for a named file of an artifact.
func ArtifactKey(id, name string) string {
	return path.Join("artifacts", strings.TrimSpace(id), strings.TrimLeft(strings.TrimSpace(name), "/"))
}

// SafePut writes data and returns key, or "" when the store is nil or the
// write fails. Failures are logged and never returned.
func SafePut(ctx context.Context, s Store, logger *slog.Logger, key string, data []byte, contentType string) string {
	if s == nil {
		return ""
	}
	if err := s.Put(ctx, key, data, contentType); err != nil {
		if logger != nil {
			logger.Warn("object put failed", "key", key, "error", err)
		}
		return ""
	}
	return key
}

func validateKey(key string) (string, error) {
	key = strings.TrimLeft(strings.TrimSpace(key), "/")
	if key == "" {
		return "", errors.New("object key is required")
	}
	return key, nil
}
