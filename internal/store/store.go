package store

import (
	"context"
	"time"
)

// Store defines the artifact persistence contract.
// All implementations must be safe for concurrent use.
type Store interface {
	CreateArtifact(ctx context.Context, a *Artifact) error
	GetArtifact(ctx context.Context, id string) (*Artifact, error)
	ListArtifacts(ctx context.Context, filter ArtifactFilter) ([]*Artifact, error)
	UpdateArtifactStatus(ctx context.Context, id string, status ArtifactStatus, errMsg string) error
	// DeleteArtifactsBefore removes artifacts created before cutoff and
	// returns how many were deleted.
	DeleteArtifactsBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// Maintenance
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Dialect() string

	// Lifecycle
	Close() error
}
