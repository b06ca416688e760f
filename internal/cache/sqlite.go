package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/kilupskalvis/ovc/internal/models"
)

// SQLiteBackend stores merge results in a local SQLite database
type SQLiteBackend struct {
	db *sql.DB
}

// NewSQLiteBackend opens or creates the database at dbPath
func NewSQLiteBackend(dbPath string) (*SQLiteBackend, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS merge_results (
		cache_key TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		result JSON NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteBackend{db: db}, nil
}

// Get returns the stored result for key. A missing key is not an error.
func (s *SQLiteBackend) Get(ctx context.Context, key string) (*models.MergeResult, bool, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, "SELECT result FROM merge_results WHERE cache_key = ?", key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var result models.MergeResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, false, fmt.Errorf("decode cached result %s: %w", key, err)
	}
	return &result, true, nil
}

// Put stores result unless key is already present
func (s *SQLiteBackend) Put(ctx context.Context, key string, result *models.MergeResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode result %s: %w", key, err)
	}
	_, err = s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO merge_results (cache_key, status, result) VALUES (?, ?, ?)",
		key, string(result.Status), data,
	)
	return err
}

// Len returns the number of stored results
func (s *SQLiteBackend) Len(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM merge_results").Scan(&n)
	return n, err
}

// Close closes the database connection
func (s *SQLiteBackend) Close() error {
	return s.db.Close()
}
