package graphstore

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilupskalvis/ovc/internal/models"
)

// flakyStore fails GetSchema and CommitMerge a fixed number of times
type flakyStore struct {
	*MockStore
	failures int
	calls    int
	err      error
}

func (f *flakyStore) GetSchema(ctx context.Context, ref string) (*models.SchemaVersion, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, f.err
	}
	return f.MockStore.GetSchema(ctx, ref)
}

func (f *flakyStore) CommitMerge(ctx context.Context, req *CommitRequest) (string, error) {
	f.calls++
	if f.calls <= f.failures {
		return "", f.err
	}
	return f.MockStore.CommitMerge(ctx, req)
}

func fastRetry() *RetryConfig {
	return &RetryConfig{MaxRetries: 3, InitialBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond}
}

func newFlaky(failures int, err error) *flakyStore {
	m := NewMockStore()
	v := models.NewSchemaVersion()
	v.VersionID = "v0"
	m.AddVersion(v)
	m.SetBranch("main", "v0")
	return &flakyStore{MockStore: m, failures: failures, err: err}
}

func TestIsTransient(t *testing.T) {
	assert.False(t, IsTransient(nil))
	assert.False(t, IsTransient(ErrHeadMoved))
	assert.False(t, IsTransient(context.Canceled))
	assert.False(t, IsTransient(&StoreError{Op: "read", Err: context.DeadlineExceeded, Transient: true}))
	assert.False(t, IsTransient(&StoreError{Op: "read", Err: errors.New("corrupt page")}))
	assert.True(t, IsTransient(&StoreError{Op: "read", Err: errors.New("timeout"), Transient: true}))
	assert.True(t, IsTransient(fmt.Errorf("wrapped: %w", &StoreError{Op: "read", Err: errors.New("busy"), Transient: true})))
}

func TestRetryStore_Backoff(t *testing.T) {
	rs := NewRetryStore(nil, &RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     10 * time.Second,
		JitterFraction: 0.0,
	})

	assert.Equal(t, 100*time.Millisecond, rs.config.backoff(0))
	assert.Equal(t, 200*time.Millisecond, rs.config.backoff(1))
	assert.Equal(t, 400*time.Millisecond, rs.config.backoff(2))
}

func TestRetryStore_BackoffCapped(t *testing.T) {
	rs := NewRetryStore(nil, &RetryConfig{
		MaxRetries:     10,
		InitialBackoff: time.Second,
		MaxBackoff:     5 * time.Second,
	})
	assert.Equal(t, 5*time.Second, rs.config.backoff(8))
}

func TestRetryStore_RetriesTransientReads(t *testing.T) {
	inner := newFlaky(2, &StoreError{Op: "read", Err: errors.New("busy"), Transient: true})
	rs := NewRetryStore(inner, fastRetry())

	v, err := rs.GetSchema(context.Background(), "main")
	require.NoError(t, err)
	assert.Equal(t, "v0", v.VersionID)
	assert.Equal(t, 3, inner.calls)
}

func TestRetryStore_GivesUp(t *testing.T) {
	cause := &StoreError{Op: "read", Err: errors.New("busy"), Transient: true}
	inner := newFlaky(100, cause)
	rs := NewRetryStore(inner, fastRetry())

	_, err := rs.GetSchema(context.Background(), "main")
	require.Error(t, err)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, 4, inner.calls)
}

func TestRetryStore_PermanentErrorNotRetried(t *testing.T) {
	inner := newFlaky(100, ErrRefNotFound)
	rs := NewRetryStore(inner, fastRetry())

	_, err := rs.GetSchema(context.Background(), "main")
	assert.ErrorIs(t, err, ErrRefNotFound)
	assert.Equal(t, 1, inner.calls)
}

func TestRetryStore_CommitNotRetried(t *testing.T) {
	inner := newFlaky(1, &StoreError{Op: "commit", Err: errors.New("busy"), Transient: true})
	rs := NewRetryStore(inner, fastRetry())

	_, err := rs.CommitMerge(context.Background(), &CommitRequest{Target: "main", FastForwardTo: "v0"})
	assert.Error(t, err)
	assert.Equal(t, 1, inner.calls)
}

func TestRetryStore_CancelledDuringBackoff(t *testing.T) {
	inner := newFlaky(100, &StoreError{Op: "read", Err: errors.New("busy"), Transient: true})
	rs := NewRetryStore(inner, &RetryConfig{MaxRetries: 5, InitialBackoff: time.Hour, MaxBackoff: time.Hour})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := rs.GetSchema(ctx, "main")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "retry cancelled")
	assert.Equal(t, 1, inner.calls)
}
