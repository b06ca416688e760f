package core

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/kilupskalvis/ovc/internal/models"
)

// Resolution is the outcome of automatic conflict resolution
type Resolution struct {
	Schema    *models.SchemaVersion // Candidate with every applied suggestion
	Applied   []models.Conflict
	Remaining []models.Conflict
}

// AutoResolver applies the suggested resolutions of auto-resolvable conflicts.
// Conflicts touching the same field are applied together or not at all.
type AutoResolver struct {
	workers int
	logger  *slog.Logger
}

// NewAutoResolver creates an AutoResolver that resolves up to workers fields
// concurrently. A nil logger discards output.
func NewAutoResolver(workers int, logger *slog.Logger) *AutoResolver {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &AutoResolver{workers: workers, logger: logger}
}

type refKind int

const (
	refProperty refKind = iota
	refLink
)

// fieldRef identifies the field a resolution writes to
type fieldRef struct {
	kind        refKind
	owner       string // Entity or interface ID for properties
	onInterface bool
	name        string // Property name or link ID
}

type groupResult struct {
	property *models.PropertyDef
	link     *models.LinkDef
	err      error
}

// Resolve applies the suggestions of auto-resolvable conflicts to a copy of
// candidate. The candidate itself is not modified. Resolving conflicts that
// are already applied is a no-op.
func (r *AutoResolver) Resolve(ctx context.Context, conflicts []models.Conflict, candidate *models.SchemaVersion) (*Resolution, error) {
	res := &Resolution{Schema: candidate.Clone()}

	groups := make(map[fieldRef][]models.Conflict)
	var order []fieldRef
	for _, c := range conflicts {
		if !c.Header().AutoResolvable {
			res.Remaining = append(res.Remaining, c)
			continue
		}
		ref := refOf(c)
		if _, ok := groups[ref]; !ok {
			order = append(order, ref)
		}
		groups[ref] = append(groups[ref], c)
	}

	// Each group works on a private copy of its field; the schema is only
	// read until every group has finished
	results := make([]groupResult, len(order))
	g, gctx := errgroup.WithContext(ctx)
	if r.workers > 0 {
		g.SetLimit(r.workers)
	}
	for i, ref := range order {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = applyGroup(res.Schema, ref, groups[ref])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i, ref := range order {
		result := results[i]
		if result.err != nil {
			r.logger.Debug("resolution left unapplied", "owner", ref.owner, "field", ref.name, "error", result.err)
			res.Remaining = append(res.Remaining, groups[ref]...)
			continue
		}
		switch ref.kind {
		case refProperty:
			propertiesOf(res.Schema, ref)[ref.name] = result.property
		case refLink:
			res.Schema.Links[ref.name] = result.link
		}
		res.Applied = append(res.Applied, groups[ref]...)
	}

	SortConflicts(res.Applied)
	SortConflicts(res.Remaining)
	return res, nil
}

func refOf(c models.Conflict) fieldRef {
	h := c.Header()
	switch c.(type) {
	case *models.PropertyTypeConflict, *models.ConstraintConflict:
		return fieldRef{kind: refProperty, owner: h.EntityID, onInterface: h.OnInterface, name: h.FieldID}
	case *models.CardinalityConflict:
		return fieldRef{kind: refLink, name: h.FieldID}
	}
	panic(fmt.Sprintf("conflict %s on %s/%s is auto-resolvable but has no resolution", c.Kind(), h.EntityID, h.FieldID))
}

// propertiesOf returns the property map of the entity or interface ref points at
func propertiesOf(s *models.SchemaVersion, ref fieldRef) map[string]*models.PropertyDef {
	if ref.onInterface {
		if i, ok := s.Interfaces[ref.owner]; ok {
			return i.Properties
		}
		return nil
	}
	if e, ok := s.Entities[ref.owner]; ok {
		return e.Properties
	}
	return nil
}

// applyGroup applies every conflict of one field to a copy of that field
func applyGroup(s *models.SchemaVersion, ref fieldRef, conflicts []models.Conflict) groupResult {
	switch ref.kind {
	case refLink:
		current, ok := s.Links[ref.name]
		if !ok {
			return groupResult{err: fmt.Errorf("link %s not in merged schema", ref.name)}
		}
		link := current.Clone()
		for _, c := range conflicts {
			if err := applyToLink(link, c); err != nil {
				return groupResult{err: err}
			}
		}
		return groupResult{link: link}

	default:
		current, ok := propertiesOf(s, ref)[ref.name]
		if !ok {
			return groupResult{err: fmt.Errorf("property %s.%s not in merged schema", ref.owner, ref.name)}
		}
		prop := current.Clone()
		for _, c := range conflicts {
			if err := applyToProperty(prop, c); err != nil {
				return groupResult{err: err}
			}
		}
		return groupResult{property: prop}
	}
}

func applyToProperty(p *models.PropertyDef, c models.Conflict) error {
	switch c := c.(type) {
	case *models.PropertyTypeConflict:
		if !TypesEquivalent(p.Type, c.TypeA) && !TypesEquivalent(p.Type, c.TypeB) && !TypesEquivalent(p.Type, c.Suggested) {
			return fmt.Errorf("property %s.%s has type %s, expected %s or %s", c.EntityID, c.FieldID, p.Type, c.TypeA, c.TypeB)
		}
		p.Type = c.Suggested
	case *models.ConstraintConflict:
		p.Constraints = models.CloneConstraints(c.Merged)
	default:
		return fmt.Errorf("cannot apply %s to a property", c.Kind())
	}
	return nil
}

func applyToLink(l *models.LinkDef, c models.Conflict) error {
	cc, ok := c.(*models.CardinalityConflict)
	if !ok {
		return fmt.Errorf("cannot apply %s to a link", c.Kind())
	}
	if l.Cardinality != cc.A && l.Cardinality != cc.B && l.Cardinality != cc.Suggested {
		return fmt.Errorf("link %s has cardinality %s, expected %s or %s", l.ID, l.Cardinality, cc.A, cc.B)
	}
	l.Cardinality = cc.Suggested
	return nil
}
