// Package cache holds computed topic rankings keyed by project. An entry is
// only as good as its digest: callers compare it with the digest of the
// current topic snapshot and recompute on mismatch.
package cache

import (
	"context"
	"fmt"

	"github.com/kalambet/elicit/internal/config"
	"github.com/kalambet/elicit/internal/storage"
)

// Entry is a ranking together with the digest of the snapshot it was built from.
type Entry struct {
	Digest  string                  `json:"digest"`
	Ranking []storage.PriorityEntry `json:"ranking"`
}

// PriorityCache stores one Entry per project.
type PriorityCache interface {
	Get(ctx context.Context, projectID int64) (Entry, bool, error)
	Put(ctx context.Context, projectID int64, e Entry) error
	Invalidate(ctx context.Context, projectID int64) error
}

// New builds the cache selected by cfg.
func New(ctx context.Context, cfg config.CacheConfig) (PriorityCache, error) {
	switch cfg.Backend {
	case config.CacheMemory:
		return NewMemory(cfg.Size)
	case config.CacheRedis:
		return NewRedis(ctx, cfg.RedisAddr)
	}
	return nil, fmt.Errorf("unsupported cache backend %q", cfg.Backend)
}
