package graphstore

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/kilupskalvis/ovc/internal/models"
)

// RetryConfig configures retry behavior for transient errors.
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	JitterFraction float64 // 0.0 to 1.0
}

// DefaultRetryConfig returns sensible retry defaults.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
		JitterFraction: 0.25,
	}
}

// RetryStore wraps a Store with automatic retry on transient errors.
type RetryStore struct {
	inner  Store
	config *RetryConfig
}

// NewRetryStore creates a RetryStore that wraps the given Store.
func NewRetryStore(inner Store, cfg *RetryConfig) *RetryStore {
	if cfg == nil {
		cfg = DefaultRetryConfig()
	}
	return &RetryStore{inner: inner, config: cfg}
}

// IsTransient returns true for errors that are worth retrying.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *StoreError
	if errors.As(err, &se) {
		return se.Transient
	}
	return false
}

// backoff computes the delay for the given attempt with jitter.
func (c *RetryConfig) backoff(attempt int) time.Duration {
	base := float64(c.InitialBackoff) * math.Pow(2, float64(attempt))
	if base > float64(c.MaxBackoff) {
		base = float64(c.MaxBackoff)
	}
	jitter := base * c.JitterFraction * (rand.Float64()*2 - 1) // +/- jitter
	d := time.Duration(base + jitter)
	if d < 0 {
		d = 0
	}
	return d
}

// sleep waits for the given duration or until the context is cancelled.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// do executes fn with retry logic. Only retries transient errors.
func (c *RetryConfig) do(ctx context.Context, operation string, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= c.MaxRetries; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !IsTransient(lastErr) {
			return lastErr
		}
		if attempt < c.MaxRetries {
			if err := sleep(ctx, c.backoff(attempt)); err != nil {
				return fmt.Errorf("%s: %w (retry cancelled)", operation, lastErr)
			}
		}
	}
	return fmt.Errorf("%s: %w (after %d retries)", operation, lastErr, c.MaxRetries)
}

func (rs *RetryStore) retry(ctx context.Context, operation string, fn func() error) error {
	return rs.config.do(ctx, operation, fn)
}

// OpenBboltStore opens the bbolt store, waiting out another process that
// holds the database lock according to cfg.
func OpenBboltStore(ctx context.Context, dbPath string, cfg *RetryConfig) (st *BboltStore, err error) {
	if cfg == nil {
		cfg = DefaultRetryConfig()
	}
	err = cfg.do(ctx, "open store", func() error {
		st, err = NewBboltStore(dbPath)
		return err
	})
	return st, err
}

func (rs *RetryStore) GetSchema(ctx context.Context, ref string) (v *models.SchemaVersion, err error) {
	err = rs.retry(ctx, "get schema", func() error {
		v, err = rs.inner.GetSchema(ctx, ref)
		return err
	})
	return
}

func (rs *RetryStore) CommitMerge(ctx context.Context, req *CommitRequest) (string, error) {
	// Head-checked commits are NOT retried; the merge pipeline must rerun
	// against the new head instead.
	return rs.inner.CommitMerge(ctx, req)
}

func (rs *RetryStore) CreateBranch(ctx context.Context, name, fromRef string) error {
	return rs.retry(ctx, "create branch", func() error {
		return rs.inner.CreateBranch(ctx, name, fromRef)
	})
}

func (rs *RetryStore) DeleteBranch(ctx context.Context, name string) error {
	return rs.retry(ctx, "delete branch", func() error {
		return rs.inner.DeleteBranch(ctx, name)
	})
}
