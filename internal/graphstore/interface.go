// Package graphstore defines the versioned graph store the merge engine talks
// to, and provides a bbolt-backed implementation, a retrying decorator and an
// in-memory mock.
package graphstore

import (
	"context"

	"github.com/kilupskalvis/ovc/internal/models"
)

// CommitRequest describes a commit onto a branch. Exactly one of Schema and
// FastForwardTo is set.
type CommitRequest struct {
	Target        string                // Branch receiving the commit
	ExpectedHead  string                // Version the caller based its work on; empty skips the check
	Schema        *models.SchemaVersion // Content to commit as a new version
	FastForwardTo string                // Existing version to move the branch to
	MergeParent   string                // Second parent of a merge commit
	Author        string
	Message       string
}

// Store is the contract the merge engine needs from the versioned graph store.
// The only calls that block on I/O are the four below.
type Store interface {
	// GetSchema resolves a branch name or version ID to a schema version
	GetSchema(ctx context.Context, ref string) (*models.SchemaVersion, error)
	// CommitMerge commits onto Target if its head still equals ExpectedHead.
	// Returns ErrHeadMoved if it does not and *ExternalConflict if the
	// content fails the store's structural checks.
	CommitMerge(ctx context.Context, req *CommitRequest) (string, error)
	CreateBranch(ctx context.Context, name, fromRef string) error
	DeleteBranch(ctx context.Context, name string) error
}

// Verify implementations at compile time
var (
	_ Store = (*BboltStore)(nil)
	_ Store = (*RetryStore)(nil)
	_ Store = (*MockStore)(nil)
)
