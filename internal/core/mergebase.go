package core

import (
	"context"
	"errors"

	"github.com/kilupskalvis/ovc/internal/graphstore"
	"github.com/kilupskalvis/ovc/internal/models"
)

// lineage loads versions from the store once per merge
type lineage struct {
	store    graphstore.Store
	versions map[string]*models.SchemaVersion
}

func newLineage(st graphstore.Store, heads ...*models.SchemaVersion) *lineage {
	l := &lineage{store: st, versions: make(map[string]*models.SchemaVersion)}
	for _, h := range heads {
		l.versions[h.VersionID] = h
	}
	return l
}

// get loads a version that another version declares as its parent. A parent
// that cannot be found means the lineage is corrupt.
func (l *lineage) get(ctx context.Context, id, child string) (*models.SchemaVersion, error) {
	if v, ok := l.versions[id]; ok {
		return v, nil
	}
	v, err := l.store.GetSchema(ctx, id)
	if err != nil {
		if errors.Is(err, graphstore.ErrRefNotFound) {
			return nil, &SchemaCorruptError{VersionID: child, Reason: "ancestor " + id + " cannot be resolved", Err: err}
		}
		return nil, err
	}
	l.versions[id] = v
	return v, nil
}

func parents(v *models.SchemaVersion) []string {
	var ids []string
	if v.AncestorVersionID != "" {
		ids = append(ids, v.AncestorVersionID)
	}
	if v.MergeParentVersionID != "" {
		ids = append(ids, v.MergeParentVersionID)
	}
	return ids
}

// ancestors returns every version reachable from head, head included
func (l *lineage) ancestors(ctx context.Context, head *models.SchemaVersion) (map[string]bool, error) {
	seen := map[string]bool{head.VersionID: true}
	queue := []*models.SchemaVersion{head}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, id := range parents(current) {
			if seen[id] {
				continue
			}
			seen[id] = true
			v, err := l.get(ctx, id, current.VersionID)
			if err != nil {
				return nil, err
			}
			queue = append(queue, v)
		}
	}
	return seen, nil
}

// FindMergeBase finds the nearest common ancestor of two versions by walking
// both lineages, following merge parents as well as ancestors.
func FindMergeBase(ctx context.Context, st graphstore.Store, a, b *models.SchemaVersion) (*models.SchemaVersion, error) {
	l := newLineage(st, a, b)

	ancestorsA, err := l.ancestors(ctx, a)
	if err != nil {
		return nil, err
	}

	// BFS from b, looking for the first version in a's set
	visited := make(map[string]bool)
	queue := []*models.SchemaVersion{b}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		if visited[current.VersionID] {
			continue
		}
		visited[current.VersionID] = true

		if ancestorsA[current.VersionID] {
			return current, nil
		}

		for _, id := range parents(current) {
			v, err := l.get(ctx, id, current.VersionID)
			if err != nil {
				return nil, err
			}
			queue = append(queue, v)
		}
	}

	return nil, ErrNoCommonAncestor
}
