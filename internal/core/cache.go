package core

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/kilupskalvis/ovc/internal/models"
)

// CacheKey identifies a merge computation. Versions are immutable, so a
// result stored under a key never goes stale.
type CacheKey struct {
	SourceVersionID string
	TargetVersionID string
	Strategy        models.MergeStrategy
	DryRun          bool
	AutoResolve     bool
}

// String encodes the key for persistent backends and in-flight tracking
func (k CacheKey) String() string {
	return fmt.Sprintf("%s:%s:%s:dry=%t:auto=%t", k.SourceVersionID, k.TargetVersionID, k.Strategy, k.DryRun, k.AutoResolve)
}

// Backend is a persistent tier behind the in-memory cache
type Backend interface {
	// Get returns ok=false on a miss
	Get(ctx context.Context, key string) (*models.MergeResult, bool, error)
	// Put stores a result if the key is not yet present
	Put(ctx context.Context, key string, result *models.MergeResult) error
}

// ResultCache memoizes merge results so the pipeline runs at most once per
// key. Reads do not lock. Concurrent callers for the same key wait for the
// one in-flight computation and receive the same result.
type ResultCache struct {
	entries  sync.Map // CacheKey -> *models.MergeResult
	inflight singleflight.Group
	backend  Backend
	logger   *slog.Logger
}

// NewResultCache creates a cache. backend may be nil for memory only.
func NewResultCache(backend Backend, logger *slog.Logger) *ResultCache {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &ResultCache{backend: backend, logger: logger}
}

// Get returns the cached result for key, if any
func (c *ResultCache) Get(key CacheKey) (*models.MergeResult, bool) {
	v, ok := c.entries.Load(key)
	if !ok {
		return nil, false
	}
	return v.(*models.MergeResult), true
}

// Len returns the number of results held in memory
func (c *ResultCache) Len() int {
	n := 0
	c.entries.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Do returns the cached result for key or computes it with fn. Results with
// status ERROR are returned but never stored.
func (c *ResultCache) Do(ctx context.Context, key CacheKey, fn func() *models.MergeResult) *models.MergeResult {
	if r, ok := c.Get(key); ok {
		return r
	}

	v, _, _ := c.inflight.Do(key.String(), func() (any, error) {
		if r, ok := c.Get(key); ok {
			return r, nil
		}

		if c.backend != nil {
			r, ok, err := c.backend.Get(ctx, key.String())
			if err != nil {
				c.logger.Warn("result cache backend read failed", "key", key.String(), "error", err)
			} else if ok {
				actual, _ := c.entries.LoadOrStore(key, r)
				return actual, nil
			}
		}

		r := fn()
		if r.Status == models.StatusError {
			return r, nil
		}
		actual, loaded := c.entries.LoadOrStore(key, r)
		if !loaded && c.backend != nil {
			if err := c.backend.Put(ctx, key.String(), r); err != nil {
				c.logger.Warn("result cache backend write failed", "key", key.String(), "error", err)
			}
		}
		return actual, nil
	})
	return v.(*models.MergeResult)
}
