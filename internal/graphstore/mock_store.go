package graphstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/kilupskalvis/ovc/internal/models"
)

// MockStore is an in-memory Store for tests. It is safe for concurrent use.
type MockStore struct {
	mu       sync.Mutex
	versions map[string]*models.SchemaVersion
	branches map[string]string
	seq      int

	// CommitHook, if set, runs before every CommitMerge and may fail it
	CommitHook func(req *CommitRequest) error
	// GetSchemaErr makes GetSchema fail for the given ref
	GetSchemaErr map[string]error
	// Commits records every successful CommitMerge request
	Commits []*CommitRequest
	// NewVersions counts versions created by CommitMerge
	NewVersions int
	// BranchesCreated and BranchesDeleted record transient branch activity
	BranchesCreated []string
	BranchesDeleted []string
}

// NewMockStore creates an empty MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		versions:     make(map[string]*models.SchemaVersion),
		branches:     make(map[string]string),
		GetSchemaErr: make(map[string]error),
	}
}

// AddVersion stores a version as-is. Its VersionID must be set.
func (m *MockStore) AddVersion(v *models.SchemaVersion) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v.Normalize()
	m.versions[v.VersionID] = v
}

// SetBranch points a branch at a version.
func (m *MockStore) SetBranch(name, versionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.branches[name] = versionID
}

// Head returns the version a branch points at.
func (m *MockStore) Head(name string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.branches[name]
}

// BranchNames returns all branch names in sorted order.
func (m *MockStore) BranchNames() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.branches))
	for name := range m.branches {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetSchema resolves a branch name first, then a version ID.
func (m *MockStore) GetSchema(ctx context.Context, ref string) (*models.SchemaVersion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.GetSchemaErr[ref]; err != nil {
		return nil, err
	}
	id := ref
	if head, ok := m.branches[ref]; ok {
		id = head
	}
	v, ok := m.versions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRefNotFound, ref)
	}
	return v, nil
}

// CommitMerge applies the same head check as BboltStore.
func (m *MockStore) CommitMerge(ctx context.Context, req *CommitRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if m.CommitHook != nil {
		if err := m.CommitHook(req); err != nil {
			return "", err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	head, ok := m.branches[req.Target]
	if !ok {
		return "", fmt.Errorf("%w: branch %s", ErrRefNotFound, req.Target)
	}
	if req.ExpectedHead != "" && head != req.ExpectedHead {
		return "", fmt.Errorf("%w: %s", ErrHeadMoved, req.Target)
	}

	if req.FastForwardTo != "" {
		if _, ok := m.versions[req.FastForwardTo]; !ok {
			return "", fmt.Errorf("%w: %s", ErrRefNotFound, req.FastForwardTo)
		}
		m.branches[req.Target] = req.FastForwardTo
		m.Commits = append(m.Commits, req)
		return req.FastForwardTo, nil
	}

	if reports := ValidateSchema(req.Schema); len(reports) > 0 {
		return "", conflictFromReports(reports)
	}

	m.seq++
	v := req.Schema.Clone()
	v.VersionID = fmt.Sprintf("mock-%04d", m.seq)
	v.AncestorVersionID = head
	v.MergeParentVersionID = req.MergeParent
	v.Author = req.Author
	v.Message = req.Message
	v.Normalize()

	m.versions[v.VersionID] = v
	m.branches[req.Target] = v.VersionID
	m.Commits = append(m.Commits, req)
	m.NewVersions++
	return v.VersionID, nil
}

// CreateBranch creates a branch at the version fromRef resolves to.
func (m *MockStore) CreateBranch(ctx context.Context, name, fromRef string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.branches[name]; exists {
		return fmt.Errorf("%w: %s", ErrBranchExists, name)
	}
	id := fromRef
	if head, ok := m.branches[fromRef]; ok {
		id = head
	}
	if _, ok := m.versions[id]; !ok {
		return fmt.Errorf("%w: %s", ErrRefNotFound, fromRef)
	}
	m.branches[name] = id
	m.BranchesCreated = append(m.BranchesCreated, name)
	return nil
}

// DeleteBranch removes a branch.
func (m *MockStore) DeleteBranch(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.branches[name]; !ok {
		return fmt.Errorf("%w: branch %s", ErrRefNotFound, name)
	}
	delete(m.branches, name)
	m.BranchesDeleted = append(m.BranchesDeleted, name)
	return nil
}
