package graphstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/kilupskalvis/ovc/internal/models"
	bolt "go.etcd.io/bbolt"
)

// Bucket names used by the graph store.
var (
	bucketVersions = []byte("versions")
	bucketBranches = []byte("branches")
)

// lockTimeout bounds a single attempt to acquire the database file lock
var lockTimeout = time.Second

// BboltStore implements Store on a single embedded bbolt database. Every
// branch update runs inside one read-write transaction, which makes the head
// comparison and the pointer update atomic.
type BboltStore struct {
	db  *bolt.DB
	now func() time.Time
}

// NewBboltStore opens or creates a bbolt database at the given path.
func NewBboltStore(dbPath string) (*BboltStore, error) {
	dir := filepath.Dir(dbPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}

	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: lockTimeout})
	if err != nil {
		return nil, &StoreError{Op: "open store", Err: err, Transient: errors.Is(err, bolt.ErrTimeout)}
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketVersions, bucketBranches} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("create bucket %s: %w", name, err)
			}
		}
		return nil
	}); err != nil {
		db.Close()
		return nil, err
	}

	return &BboltStore{db: db, now: time.Now}, nil
}

// Close closes the database.
func (s *BboltStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Initialize creates an empty root version and the default branch pointing
// at it. It is a no-op if the branch already exists.
func (s *BboltStore) Initialize(ctx context.Context, branch, author string) (*models.SchemaVersion, error) {
	if existing, err := s.GetSchema(ctx, branch); err == nil {
		return existing, nil
	}

	root := models.NewSchemaVersion()
	root.Author = author
	root.Message = "Initial schema"
	root.CreatedAt = s.now()
	root.VersionID = models.GenerateVersionID(root.Message, root.CreatedAt, "", "", models.HashSchemaContent(root))

	err := s.db.Update(func(tx *bolt.Tx) error {
		if err := putVersion(tx, root); err != nil {
			return err
		}
		return putBranch(tx, &models.Branch{Name: branch, VersionID: root.VersionID, CreatedAt: root.CreatedAt})
	})
	if err != nil {
		return nil, &StoreError{Op: "initialize", Err: err}
	}
	return root, nil
}

// GetSchema resolves a branch name first, then a version ID.
func (s *BboltStore) GetSchema(ctx context.Context, ref string) (*models.SchemaVersion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var version *models.SchemaVersion
	err := s.db.View(func(tx *bolt.Tx) error {
		versionID := ref
		if branch, err := getBranch(tx, ref); err != nil {
			return err
		} else if branch != nil {
			versionID = branch.VersionID
		}

		v, err := getVersion(tx, versionID)
		if err != nil {
			return err
		}
		version = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	return version, nil
}

// CommitMerge commits a new version, or fast-forwards, onto the target branch.
func (s *BboltStore) CommitMerge(ctx context.Context, req *CommitRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if req == nil || req.Target == "" || (req.Schema == nil) == (req.FastForwardTo == "") {
		return "", ErrInvalidCommit
	}

	var (
		version *models.SchemaVersion
		reports []ConflictReport
	)
	if req.Schema != nil {
		version = req.Schema.Clone()
		version.Normalize()
		reports = ValidateSchema(version)
		if len(reports) > 0 {
			return "", conflictFromReports(reports)
		}
	}

	var committed string
	err := s.db.Update(func(tx *bolt.Tx) error {
		branch, err := getBranch(tx, req.Target)
		if err != nil {
			return err
		}
		if branch == nil {
			return fmt.Errorf("%w: branch %s", ErrRefNotFound, req.Target)
		}
		if req.ExpectedHead != "" && branch.VersionID != req.ExpectedHead {
			return fmt.Errorf("%w: %s is at %s, expected %s", ErrHeadMoved, req.Target, shortRef(branch.VersionID), shortRef(req.ExpectedHead))
		}

		if req.FastForwardTo != "" {
			next, err := getVersion(tx, req.FastForwardTo)
			if err != nil {
				return err
			}
			if !isAncestor(tx, branch.VersionID, next.VersionID) {
				return fmt.Errorf("%w: %s is not a descendant of %s", ErrInvalidCommit, shortRef(next.VersionID), shortRef(branch.VersionID))
			}
			branch.VersionID = next.VersionID
			committed = next.VersionID
			return putBranch(tx, branch)
		}

		version.AncestorVersionID = branch.VersionID
		version.MergeParentVersionID = req.MergeParent
		version.Author = req.Author
		version.Message = req.Message
		version.CreatedAt = s.now()
		version.VersionID = models.GenerateVersionID(version.Message, version.CreatedAt,
			version.AncestorVersionID, version.MergeParentVersionID, models.HashSchemaContent(version))

		if err := putVersion(tx, version); err != nil {
			return err
		}
		branch.VersionID = version.VersionID
		committed = version.VersionID
		return putBranch(tx, branch)
	})
	if err != nil {
		return "", err
	}
	return committed, nil
}

// CommitSchema commits a schema onto a branch without a head check. It is
// used to record ordinary edits rather than merges.
func (s *BboltStore) CommitSchema(ctx context.Context, branch string, schema *models.SchemaVersion, author, message string) (string, error) {
	return s.CommitMerge(ctx, &CommitRequest{
		Target:  branch,
		Schema:  schema,
		Author:  author,
		Message: message,
	})
}

// CreateBranch creates a branch at the version fromRef resolves to.
func (s *BboltStore) CreateBranch(ctx context.Context, name, fromRef string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		existing, err := getBranch(tx, name)
		if err != nil {
			return err
		}
		if existing != nil {
			return fmt.Errorf("%w: %s", ErrBranchExists, name)
		}

		versionID := fromRef
		if from, err := getBranch(tx, fromRef); err != nil {
			return err
		} else if from != nil {
			versionID = from.VersionID
		}
		if _, err := getVersion(tx, versionID); err != nil {
			return err
		}

		return putBranch(tx, &models.Branch{Name: name, VersionID: versionID, CreatedAt: s.now()})
	})
}

// DeleteBranch removes a branch. Versions are kept.
func (s *BboltStore) DeleteBranch(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketBranches)
		if b.Get([]byte(name)) == nil {
			return fmt.Errorf("%w: branch %s", ErrRefNotFound, name)
		}
		return b.Delete([]byte(name))
	})
}

// ListBranches returns all branches sorted by name.
func (s *BboltStore) ListBranches(_ context.Context) ([]*models.Branch, error) {
	var branches []*models.Branch
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketBranches).ForEach(func(k, v []byte) error {
			var branch models.Branch
			if err := json.Unmarshal(v, &branch); err != nil {
				return fmt.Errorf("unmarshal branch: %w", err)
			}
			branches = append(branches, &branch)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(branches, func(i, j int) bool {
		return branches[i].Name < branches[j].Name
	})
	return branches, nil
}

// Log walks first-parent history from ref. A limit of 0 means no limit.
func (s *BboltStore) Log(ctx context.Context, ref string, limit int) ([]*models.SchemaVersion, error) {
	head, err := s.GetSchema(ctx, ref)
	if err != nil {
		return nil, err
	}

	history := []*models.SchemaVersion{head}
	err = s.db.View(func(tx *bolt.Tx) error {
		current := head
		for current.AncestorVersionID != "" && (limit == 0 || len(history) < limit) {
			parent, err := getVersion(tx, current.AncestorVersionID)
			if err != nil {
				return err
			}
			history = append(history, parent)
			current = parent
		}
		return nil
	})
	return history, err
}

// isAncestor reports whether ancestorID is reachable from versionID
func isAncestor(tx *bolt.Tx, ancestorID, versionID string) bool {
	queue := []string{versionID}
	visited := make(map[string]bool)
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if current == "" || visited[current] {
			continue
		}
		if current == ancestorID {
			return true
		}
		visited[current] = true

		v, err := getVersion(tx, current)
		if err != nil {
			continue
		}
		queue = append(queue, v.AncestorVersionID, v.MergeParentVersionID)
	}
	return false
}

func getBranch(tx *bolt.Tx, name string) (*models.Branch, error) {
	data := tx.Bucket(bucketBranches).Get([]byte(name))
	if data == nil {
		return nil, nil
	}
	var branch models.Branch
	if err := json.Unmarshal(data, &branch); err != nil {
		return nil, fmt.Errorf("unmarshal branch: %w", err)
	}
	return &branch, nil
}

func putBranch(tx *bolt.Tx, branch *models.Branch) error {
	data, err := json.Marshal(branch)
	if err != nil {
		return fmt.Errorf("marshal branch: %w", err)
	}
	return tx.Bucket(bucketBranches).Put([]byte(branch.Name), data)
}

func getVersion(tx *bolt.Tx, id string) (*models.SchemaVersion, error) {
	data := tx.Bucket(bucketVersions).Get([]byte(id))
	if data == nil {
		return nil, fmt.Errorf("%w: %s", ErrRefNotFound, id)
	}
	version := &models.SchemaVersion{}
	if err := json.Unmarshal(data, version); err != nil {
		return nil, fmt.Errorf("unmarshal version: %w", err)
	}
	version.Normalize()
	return version, nil
}

func putVersion(tx *bolt.Tx, version *models.SchemaVersion) error {
	data, err := json.Marshal(version)
	if err != nil {
		return fmt.Errorf("marshal version: %w", err)
	}
	return tx.Bucket(bucketVersions).Put([]byte(version.VersionID), data)
}

func shortRef(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
