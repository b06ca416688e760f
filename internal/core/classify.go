package core

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/kilupskalvis/ovc/internal/models"
)

// Classify maps a delta to the conflicts it carries. It handles deltas
// modified on both branches, and incoming source modifications for the type
// and cardinality dimensions. Every other delta merges cleanly. Classify is
// pure: the result depends only on the delta's values.
func Classify(d *Delta) []models.Conflict {
	if d.Kind != DeltaModifiedInBoth && d.Kind != DeltaModifiedInSource {
		return nil
	}

	var out []models.Conflict
	switch d.Scope {
	case models.ScopeEntity:
		if d.Kind == DeltaModifiedInBoth {
			out = classifyEntity(d)
		}
	case models.ScopeProperty:
		out = classifyProperty(d.ID, d.Field, d.Kind, d.Property)
	case models.ScopeLink:
		out = classifyLink(d)
	case models.ScopeInterface:
		if d.Kind == DeltaModifiedInBoth {
			out = classifyInterface(d)
		}
	default:
		panic(fmt.Sprintf("classify: unknown delta scope %q", d.Scope))
	}

	for _, c := range out {
		assertConsistent(c)
	}
	return out
}

// ClassifyAll classifies deltas on a bounded worker pool. The result is
// sorted by entity, field and kind regardless of scheduling.
func ClassifyAll(ctx context.Context, deltas []*Delta, workers int) ([]models.Conflict, error) {
	results := make([][]models.Conflict, len(deltas))

	g, ctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for i, d := range deltas {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = Classify(d)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []models.Conflict
	for _, r := range results {
		all = append(all, r...)
	}
	SortConflicts(all)
	return all, nil
}

// SortConflicts orders conflicts by entity ID, field ID and kind
func SortConflicts(cs []models.Conflict) {
	sort.SliceStable(cs, func(i, j int) bool {
		hi, hj := cs[i].Header(), cs[j].Header()
		if hi.EntityID != hj.EntityID {
			return hi.EntityID < hj.EntityID
		}
		if hi.FieldID != hj.FieldID {
			return hi.FieldID < hj.FieldID
		}
		if cs[i].Kind() != cs[j].Kind() {
			return cs[i].Kind() < cs[j].Kind()
		}
		ai, bi := cs[i].Values()
		aj, bj := cs[j].Values()
		if ai != aj {
			return ai < aj
		}
		return bi < bj
	})
}

// assertConsistent panics on a conflict whose classification breaks the
// taxonomy. Merging on top of such a conflict could lose data.
func assertConsistent(c models.Conflict) {
	h := c.Header()
	if h.Severity < models.SeverityInfo || h.Severity > models.SeverityBlock {
		panic(fmt.Sprintf("conflict %s on %s/%s has invalid severity %v", c.Kind(), h.EntityID, h.FieldID, h.Severity))
	}
	if !h.AutoResolvable {
		return
	}
	if h.Severity >= models.SeverityError {
		panic(fmt.Sprintf("conflict %s on %s/%s is auto-resolvable at severity %s", c.Kind(), h.EntityID, h.FieldID, h.Severity))
	}
	if _, ok := c.Suggestion(); !ok {
		panic(fmt.Sprintf("conflict %s on %s/%s is auto-resolvable without a suggestion", c.Kind(), h.EntityID, h.FieldID))
	}
}

func classifyEntity(d *Delta) []models.Conflict {
	t := d.Entity
	if side, ok := deletedVersusModified(t.Source == nil, t.Target == nil); ok {
		return []models.Conflict{&models.DeleteModifyConflict{
			ConflictHeader: models.ConflictHeader{Severity: models.SeverityError, EntityID: d.ID},
			Scope:          models.ScopeEntity,
			DeletedOn:      side,
			Detail:         fmt.Sprintf("entity %s deleted on %s branch and modified on the other", d.ID, side),
		}}
	}
	// Interface sets merge as a union; conformance is checked on the candidate
	return nil
}

func classifyProperty(ownerID, name string, kind DeltaKind, t *Triple[*models.PropertyDef]) []models.Conflict {
	anc, src, tgt := t.Ancestor, t.Source, t.Target

	if src == nil || tgt == nil {
		side, ok := deletedVersusModified(src == nil, tgt == nil)
		if !ok {
			return nil
		}
		return []models.Conflict{&models.DeleteModifyConflict{
			ConflictHeader: models.ConflictHeader{Severity: models.SeverityError, EntityID: ownerID, FieldID: name},
			Scope:          models.ScopeProperty,
			DeletedOn:      side,
			Detail:         fmt.Sprintf("property %s.%s deleted on %s branch and modified on the other", ownerID, name, side),
		}}
	}

	var out []models.Conflict
	if !TypesEquivalent(src.Type, tgt.Type) {
		out = append(out, propertyTypeConflict(ownerID, name, src, tgt))
	}

	if kind == DeltaModifiedInBoth && !constraintsEqual(src.Constraints, tgt.Constraints) {
		var ancConstraints []models.Constraint
		if anc != nil {
			ancConstraints = anc.Constraints
		}
		if anc == nil || (!constraintsEqual(ancConstraints, src.Constraints) && !constraintsEqual(ancConstraints, tgt.Constraints)) {
			out = append(out, constraintConflict(ownerID, name, src.Constraints, tgt.Constraints))
		}
	}
	return out
}

// propertyTypeConflict classifies a type discrepancy using the widening lattice
func propertyTypeConflict(ownerID, name string, src, tgt *models.PropertyDef) *models.PropertyTypeConflict {
	c := &models.PropertyTypeConflict{
		ConflictHeader: models.ConflictHeader{EntityID: ownerID, FieldID: name},
		TypeA:          src.Type,
		TypeB:          tgt.Type,
		RequiredA:      src.Required,
		RequiredB:      tgt.Required,
	}
	if wider, ok := WiderType(src.Type, tgt.Type); ok {
		c.Severity = models.SeverityInfo
		c.AutoResolvable = true
		c.Suggested = wider
		return c
	}
	c.Severity = models.SeverityError
	if src.Required || tgt.Required {
		c.Severity = models.SeverityBlock
	}
	return c
}

// constraintConflict classifies two diverging constraint sets by whether
// their conjunction is satisfiable
func constraintConflict(ownerID, name string, a, b []models.Constraint) *models.ConstraintConflict {
	merged, ok := MergeConstraints(a, b)
	c := &models.ConstraintConflict{
		ConflictHeader: models.ConflictHeader{EntityID: ownerID, FieldID: name},
		A:              NormalizeConstraints(a),
		B:              NormalizeConstraints(b),
		Merged:         merged,
	}
	if ok {
		c.Severity = models.SeverityWarn
		c.AutoResolvable = true
	} else {
		c.Severity = models.SeverityError
	}
	return c
}

func classifyLink(d *Delta) []models.Conflict {
	anc, src, tgt := d.Link.Ancestor, d.Link.Source, d.Link.Target

	if src == nil || tgt == nil {
		side, ok := deletedVersusModified(src == nil, tgt == nil)
		if !ok {
			return nil
		}
		owner := src
		if owner == nil {
			owner = tgt
		}
		return []models.Conflict{&models.DeleteModifyConflict{
			ConflictHeader: models.ConflictHeader{Severity: models.SeverityError, EntityID: owner.Source, FieldID: d.ID},
			Scope:          models.ScopeLink,
			DeletedOn:      side,
			Detail:         fmt.Sprintf("link %s deleted on %s branch and modified on the other", d.ID, side),
		}}
	}

	var out []models.Conflict
	if d.Kind == DeltaModifiedInBoth && !sameWiring(src, tgt) && (anc == nil || (!sameWiring(anc, src) && !sameWiring(anc, tgt))) {
		out = append(out, &models.DeleteModifyConflict{
			ConflictHeader: models.ConflictHeader{Severity: models.SeverityError, EntityID: tgt.Source, FieldID: d.ID},
			Scope:          models.ScopeLink,
			DeletedOn:      models.SideBoth,
			Detail: fmt.Sprintf("link %s rewired differently: %s -[%s]-> %s vs %s -[%s]-> %s",
				d.ID, src.Source, src.Kind, src.Target, tgt.Source, tgt.Kind, tgt.Target),
		})
	}

	if src.Cardinality != tgt.Cardinality {
		out = append(out, cardinalityConflict(tgt.Source, d.ID, src.Cardinality, tgt.Cardinality))
	}
	return out
}

// cardinalityConflict classifies a cardinality discrepancy. Only single-step
// expansions are compatible.
func cardinalityConflict(entityID, linkID string, a, b models.Cardinality) *models.CardinalityConflict {
	c := &models.CardinalityConflict{
		ConflictHeader: models.ConflictHeader{EntityID: entityID, FieldID: linkID},
		A:              a,
		B:              b,
	}
	if wider, ok := MorePermissive(a, b); ok {
		c.Severity = models.SeverityInfo
		c.AutoResolvable = true
		c.Suggested = wider
		return c
	}
	c.Severity = models.SeverityError
	return c
}

func classifyInterface(d *Delta) []models.Conflict {
	anc, src, tgt := d.Interface.Ancestor, d.Interface.Source, d.Interface.Target

	if src == nil || tgt == nil {
		side, ok := deletedVersusModified(src == nil, tgt == nil)
		if !ok {
			return nil
		}
		return []models.Conflict{&models.DeleteModifyConflict{
			ConflictHeader: models.ConflictHeader{Severity: models.SeverityError, EntityID: d.ID},
			Scope:          models.ScopeInterface,
			DeletedOn:      side,
			Detail:         fmt.Sprintf("interface %s deleted on %s branch and modified on the other", d.ID, side),
		}}
	}

	var ancMembers map[string]*models.PropertyDef
	if anc != nil {
		ancMembers = anc.Properties
	}
	var out []models.Conflict
	for _, name := range unionKeys(ancMembers, src.Properties, tgt.Properties) {
		t := &Triple[*models.PropertyDef]{Ancestor: ancMembers[name], Source: src.Properties[name], Target: tgt.Properties[name]}
		srcChanged := !propertiesEqual(t.Ancestor, t.Source)
		tgtChanged := !propertiesEqual(t.Ancestor, t.Target)
		switch {
		case srcChanged && tgtChanged:
			out = append(out, classifyProperty(d.ID, name, DeltaModifiedInBoth, t)...)
		case srcChanged && t.Source != nil && t.Target != nil:
			out = append(out, classifyProperty(d.ID, name, DeltaModifiedInSource, t)...)
		}
	}
	for _, c := range out {
		switch c := c.(type) {
		case *models.PropertyTypeConflict:
			c.OnInterface = true
		case *models.ConstraintConflict:
			c.OnInterface = true
		case *models.DeleteModifyConflict:
			c.OnInterface = true
		}
	}
	return out
}

// deletedVersusModified reports which side deleted a key that the other side
// kept and changed. ok is false when both or neither side deleted it.
func deletedVersusModified(srcDeleted, tgtDeleted bool) (models.Side, bool) {
	switch {
	case srcDeleted && !tgtDeleted:
		return models.SideSource, true
	case tgtDeleted && !srcDeleted:
		return models.SideTarget, true
	}
	return "", false
}

func sameWiring(a, b *models.LinkDef) bool {
	return a.Source == b.Source && a.Target == b.Target && a.Kind == b.Kind
}
