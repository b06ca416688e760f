package core

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilupskalvis/ovc/internal/models"
)

// memoryBackend is a Backend that records its traffic
type memoryBackend struct {
	mu      sync.Mutex
	data    map[string]*models.MergeResult
	puts    int
	readErr error
}

func newMemoryBackend() *memoryBackend {
	return &memoryBackend{data: make(map[string]*models.MergeResult)}
}

func (b *memoryBackend) Get(_ context.Context, key string) (*models.MergeResult, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.readErr != nil {
		return nil, false, b.readErr
	}
	r, ok := b.data[key]
	return r, ok, nil
}

func (b *memoryBackend) Put(_ context.Context, key string, r *models.MergeResult) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.data[key]; !ok {
		b.data[key] = r
		b.puts++
	}
	return nil
}

var testKey = CacheKey{SourceVersionID: "s1", TargetVersionID: "t1", Strategy: models.StrategyMerge}

func TestResultCache_ComputesOnce(t *testing.T) {
	cache := NewResultCache(nil, nil)
	var calls atomic.Int32
	release := make(chan struct{})

	compute := func() *models.MergeResult {
		calls.Add(1)
		<-release
		return &models.MergeResult{Status: models.StatusSuccess}
	}

	const callers = 8
	results := make([]*models.MergeResult, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = cache.Do(context.Background(), testKey, compute)
		}()
	}
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, r := range results {
		assert.Same(t, results[0], r)
	}

	cached, ok := cache.Get(testKey)
	require.True(t, ok)
	assert.Same(t, results[0], cached)
	assert.Equal(t, 1, cache.Len())
}

func TestResultCache_KeyIncludesFlags(t *testing.T) {
	cache := NewResultCache(nil, nil)
	dry := testKey
	dry.DryRun = true

	a := cache.Do(context.Background(), testKey, func() *models.MergeResult {
		return &models.MergeResult{Status: models.StatusConflict}
	})
	b := cache.Do(context.Background(), dry, func() *models.MergeResult {
		return &models.MergeResult{Status: models.StatusSuccess}
	})

	assert.Equal(t, models.StatusConflict, a.Status)
	assert.Equal(t, models.StatusSuccess, b.Status)
	assert.Equal(t, 2, cache.Len())
	assert.NotEqual(t, testKey.String(), dry.String())
}

func TestResultCache_ErrorsAreNotStored(t *testing.T) {
	backend := newMemoryBackend()
	cache := NewResultCache(backend, nil)
	calls := 0

	compute := func() *models.MergeResult {
		calls++
		return &models.MergeResult{Status: models.StatusError, Error: &models.MergeError{Kind: models.ErrorExternalStore}}
	}
	cache.Do(context.Background(), testKey, compute)
	cache.Do(context.Background(), testKey, compute)

	assert.Equal(t, 2, calls)
	assert.Equal(t, 0, cache.Len())
	assert.Equal(t, 0, backend.puts)
}

func TestResultCache_Backend(t *testing.T) {
	backend := newMemoryBackend()
	stored := &models.MergeResult{Status: models.StatusNoChanges}
	backend.data[testKey.String()] = stored

	cache := NewResultCache(backend, nil)
	got := cache.Do(context.Background(), testKey, func() *models.MergeResult {
		t.Fatal("pipeline must not run on a backend hit")
		return nil
	})
	assert.Same(t, stored, got)

	// A miss is computed and written through once
	other := testKey
	other.AutoResolve = true
	cache.Do(context.Background(), other, func() *models.MergeResult {
		return &models.MergeResult{Status: models.StatusSuccess}
	})
	assert.Equal(t, 1, backend.puts)
	assert.Contains(t, backend.data, other.String())
}

func TestResultCache_BackendReadFailureFallsBack(t *testing.T) {
	backend := newMemoryBackend()
	backend.readErr = errors.New("connection refused")
	cache := NewResultCache(backend, nil)

	got := cache.Do(context.Background(), testKey, func() *models.MergeResult {
		return &models.MergeResult{Status: models.StatusSuccess}
	})
	assert.Equal(t, models.StatusSuccess, got.Status)
}
