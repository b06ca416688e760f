package cache

import (
	"context"
	"fmt"
	"io"

	"github.com/kilupskalvis/ovc/internal/config"
	"github.com/kilupskalvis/ovc/internal/core"
)

var (
	_ core.Backend = (*RedisBackend)(nil)
	_ core.Backend = (*SQLiteBackend)(nil)
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Open returns the backend configured for the repository. The memory backend
// is represented by a nil Backend.
func Open(ctx context.Context, cfg *config.Config) (core.Backend, io.Closer, error) {
	switch cfg.Cache.Backend {
	case config.CacheRedis:
		rc := DefaultRedisConfig()
		if cfg.Cache.RedisAddr != "" {
			rc.Addr = cfg.Cache.RedisAddr
		}
		rc.DB = cfg.Cache.RedisDB
		if cfg.Cache.RedisPrefix != "" {
			rc.Prefix = cfg.Cache.RedisPrefix
		}
		b, err := NewRedisBackend(ctx, rc)
		if err != nil {
			return nil, nil, err
		}
		return b, b, nil
	case config.CacheSQLite:
		b, err := NewSQLiteBackend(cfg.CachePath())
		if err != nil {
			return nil, nil, err
		}
		return b, b, nil
	case config.CacheMemory, "":
		return nil, nopCloser{}, nil
	}
	return nil, nil, fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
}
