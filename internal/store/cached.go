package store

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is the number of artifacts CachedStore keeps in memory.
const DefaultCacheSize = 1024

// CachedStore is a read-through cache in front of another Store. Only
// GetArtifact is cached; writes that touch an artifact evict it.
type CachedStore struct {
	Store
	cache *lru.Cache[string, *Artifact]
}

// NewCachedStore wraps inner with an LRU of size entries (DefaultCacheSize when size <= 0).
func NewCachedStore(inner Store, size int) (*CachedStore, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, *Artifact](size)
	if err != nil {
		return nil, err
	}
	return &CachedStore{Store: inner, cache: cache}, nil
}

func (c *CachedStore) GetArtifact(ctx context.Context, id string) (*Artifact, error) {
	if a, ok := c.cache.Get(id); ok {
		return cloneArtifact(a), nil
	}
	a, err := c.Store.GetArtifact(ctx, id)
	if err != nil {
		return nil, err
	}
	c.cache.Add(id, cloneArtifact(a))
	return a, nil
}

func (c *CachedStore) UpdateArtifactStatus(ctx context.Context, id string, status ArtifactStatus, errMsg string) error {
	c.cache.Remove(id)
	return c.Store.UpdateArtifactStatus(ctx, id, status, errMsg)
}

// DeleteArtifactsBefore purges the whole cache; the deleted ids are not known here.
func (c *CachedStore) DeleteArtifactsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	n, err := c.Store.DeleteArtifactsBefore(ctx, cutoff)
	if n > 0 {
		c.cache.Purge()
	}
	return n, err
}

// Len reports how many artifacts are cached.
func (c *CachedStore) Len() int { return c.cache.Len() }

func cloneArtifact(a *Artifact) *Artifact {
	cp := *a
	cp.Request = append([]byte(nil), a.Request...)
	if a.Spec != nil {
		cp.Spec = append([]byte(nil), a.Spec...)
	}
	return &cp
}
