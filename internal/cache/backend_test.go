package cache

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilupskalvis/ovc/internal/config"
	"github.com/kilupskalvis/ovc/internal/core"
	"github.com/kilupskalvis/ovc/internal/models"
)

func setupTestRedis(t *testing.T) (*RedisBackend, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	b := NewRedisBackendWithClient(client, "")
	t.Cleanup(func() { b.Close() })
	return b, mr
}

func setupTestSQLite(t *testing.T) *SQLiteBackend {
	t.Helper()
	b, err := NewSQLiteBackend(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })
	return b
}

func sampleResult(commit string) *models.MergeResult {
	r := &models.MergeResult{
		Status:          models.StatusSuccess,
		Strategy:        models.StrategyMerge,
		MergeCommitID:   commit,
		SourceVersionID: "src",
		TargetVersionID: "tgt",
		Conflicts: []models.Conflict{
			&models.PropertyTypeConflict{
				ConflictHeader: models.ConflictHeader{Severity: models.SeverityInfo, EntityID: "User", FieldID: "age", AutoResolvable: true},
				TypeA:          "long",
				TypeB:          "integer",
				Suggested:      "long",
			},
		},
		AutoResolved: true,
		States:       []models.MergeState{models.StateInit, models.StateDoneSuccess},
	}
	r.ComputeStats()
	return r
}

// backends runs fn against every persistent backend
func backends(t *testing.T, fn func(t *testing.T, b core.Backend)) {
	t.Run("redis", func(t *testing.T) {
		b, _ := setupTestRedis(t)
		fn(t, b)
	})
	t.Run("sqlite", func(t *testing.T) {
		fn(t, setupTestSQLite(t))
	})
}

func TestBackend_Miss(t *testing.T) {
	backends(t, func(t *testing.T, b core.Backend) {
		r, ok, err := b.Get(context.Background(), "absent")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Nil(t, r)
	})
}

func TestBackend_PutGet(t *testing.T) {
	backends(t, func(t *testing.T, b core.Backend) {
		ctx := context.Background()
		require.NoError(t, b.Put(ctx, "k", sampleResult("c1")))

		r, ok, err := b.Get(ctx, "k")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "c1", r.MergeCommitID)
		assert.Equal(t, models.SeverityInfo, r.MaxSeverity)
		require.Len(t, r.Conflicts, 1)
		assert.Equal(t, models.ConflictPropertyType, r.Conflicts[0].Kind())
	})
}

func TestBackend_FirstWriteWins(t *testing.T) {
	backends(t, func(t *testing.T, b core.Backend) {
		ctx := context.Background()
		require.NoError(t, b.Put(ctx, "k", sampleResult("first")))
		require.NoError(t, b.Put(ctx, "k", sampleResult("second")))

		r, ok, err := b.Get(ctx, "k")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "first", r.MergeCommitID)
	})
}

func TestBackend_WithResultCache(t *testing.T) {
	backends(t, func(t *testing.T, b core.Backend) {
		ctx := context.Background()
		key := core.CacheKey{SourceVersionID: "src", TargetVersionID: "tgt", Strategy: models.StrategyMerge}

		calls := 0
		compute := func() *models.MergeResult {
			calls++
			return sampleResult("c1")
		}

		// A fresh process sees the result written by an earlier one
		core.NewResultCache(b, nil).Do(ctx, key, compute)
		r := core.NewResultCache(b, nil).Do(ctx, key, compute)

		assert.Equal(t, 1, calls)
		assert.Equal(t, "c1", r.MergeCommitID)
	})
}

func TestRedisBackend_Prefix(t *testing.T) {
	b, mr := setupTestRedis(t)
	require.NoError(t, b.Put(context.Background(), "k", sampleResult("c1")))

	assert.True(t, mr.Exists(DefaultPrefix+"k"))
	assert.Zero(t, mr.TTL(DefaultPrefix+"k"), "entries never expire")
}

func TestRedisBackend_CorruptEntry(t *testing.T) {
	b, mr := setupTestRedis(t)
	require.NoError(t, mr.Set(DefaultPrefix+"k", "not json"))

	_, _, err := b.Get(context.Background(), "k")
	assert.Error(t, err)
}

func TestNewRedisBackend(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := DefaultRedisConfig()
	cfg.Addr = mr.Addr()

	b, err := NewRedisBackend(context.Background(), cfg)
	require.NoError(t, err)
	defer b.Close()
	assert.Equal(t, DefaultPrefix, b.prefix)
}

func TestNewRedisBackend_ConnectionError(t *testing.T) {
	cfg := DefaultRedisConfig()
	cfg.Addr = "localhost:99999"

	_, err := NewRedisBackend(context.Background(), cfg)
	assert.Error(t, err)
}

func TestSQLiteBackend_Len(t *testing.T) {
	b := setupTestSQLite(t)
	ctx := context.Background()
	require.NoError(t, b.Put(ctx, "a", sampleResult("c1")))
	require.NoError(t, b.Put(ctx, "b", sampleResult("c2")))
	require.NoError(t, b.Put(ctx, "a", sampleResult("c3")))

	n, err := b.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	t.Run("memory", func(t *testing.T) {
		cfg := config.Default()
		b, closer, err := Open(ctx, cfg)
		require.NoError(t, err)
		assert.Nil(t, b)
		assert.NoError(t, closer.Close())
	})

	t.Run("sqlite", func(t *testing.T) {
		cfg := config.Default()
		cfg.Cache.Backend = config.CacheSQLite
		cfg.Cache.SQLitePath = filepath.Join(t.TempDir(), "c.db")
		b, closer, err := Open(ctx, cfg)
		require.NoError(t, err)
		defer closer.Close()
		assert.IsType(t, &SQLiteBackend{}, b)
	})

	t.Run("redis", func(t *testing.T) {
		mr := miniredis.RunT(t)
		cfg := config.Default()
		cfg.Cache.Backend = config.CacheRedis
		cfg.Cache.RedisAddr = mr.Addr()
		cfg.Cache.RedisPrefix = "test:"
		b, closer, err := Open(ctx, cfg)
		require.NoError(t, err)
		defer closer.Close()

		require.NoError(t, b.Put(ctx, "k", sampleResult("c1")))
		assert.True(t, mr.Exists("test:k"))
	})

	t.Run("unknown", func(t *testing.T) {
		cfg := config.Default()
		cfg.Cache.Backend = "memcached"
		_, _, err := Open(ctx, cfg)
		assert.Error(t, err)
	})
}
