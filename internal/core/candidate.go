package core

import (
	"github.com/kilupskalvis/ovc/internal/models"
)

// BuildCandidate computes the three-way merge of source into target. Changes
// made only on the source branch are applied on top of target. Wherever the
// branches disagree the target's value is kept; the conflicts raised for
// those keys carry the suggested resolution.
func BuildCandidate(ds *DeltaSet, source, target *models.SchemaVersion) *models.SchemaVersion {
	merged := target.Clone()
	merged.VersionID = ""
	merged.AncestorVersionID = target.VersionID
	merged.MergeParentVersionID = source.VersionID
	merged.Author = ""
	merged.Message = ""

	for _, d := range ds.Deltas {
		switch d.Scope {
		case models.ScopeEntity:
			mergeEntity(merged, d)
		case models.ScopeProperty:
			mergeProperty(merged.Entities[d.ID], d)
		case models.ScopeLink:
			mergeLink(merged, d)
		case models.ScopeInterface:
			mergeInterface(merged, d)
		}
	}
	return merged
}

func mergeEntity(merged *models.SchemaVersion, d *Delta) {
	t := d.Entity
	switch d.Kind {
	case DeltaAddedInSource:
		merged.Entities[d.ID] = t.Source.Clone()
	case DeltaDeletedInSource:
		delete(merged.Entities, d.ID)
	case DeltaModifiedInSource, DeltaModifiedInBoth:
		entity := merged.Entities[d.ID]
		if entity == nil || t.Source == nil {
			return
		}
		var ancestral []string
		if t.Ancestor != nil {
			ancestral = t.Ancestor.Interfaces
		}
		entity.Interfaces = mergeSet(ancestral, t.Source.Interfaces, t.Target.Interfaces)
	}
}

// mergeSet applies the source's additions and removals to the target's set
func mergeSet(ancestor, source, target []string) []string {
	inAncestor := make(map[string]bool, len(ancestor))
	for _, v := range ancestor {
		inAncestor[v] = true
	}
	inSource := make(map[string]bool, len(source))
	for _, v := range source {
		inSource[v] = true
	}

	var out []string
	for _, v := range target {
		if inAncestor[v] && !inSource[v] {
			continue
		}
		out = append(out, v)
	}
	for _, v := range source {
		if !inAncestor[v] {
			out = append(out, v)
		}
	}
	return models.NormalizeSet(out)
}

func mergeProperty(entity *models.EntityDef, d *Delta) {
	if entity == nil {
		return
	}
	entity.Properties = mergeMember(entity.Properties, d.Field, d.Kind, d.Property)
}

// mergeMember merges one property of an entity or interface into props
func mergeMember(props map[string]*models.PropertyDef, name string, kind DeltaKind, t *Triple[*models.PropertyDef]) map[string]*models.PropertyDef {
	if props == nil {
		props = make(map[string]*models.PropertyDef)
	}
	switch kind {
	case DeltaAddedInSource:
		props[name] = t.Source.Clone()
	case DeltaDeletedInSource:
		delete(props, name)
	case DeltaModifiedInSource, DeltaModifiedInBoth:
		if t.Source == nil || t.Target == nil {
			return props
		}
		props[name] = mergePropertyDef(t.Ancestor, t.Source, t.Target)
	}
	return props
}

// mergePropertyDef merges the dimensions of a property changed on either side.
// The type stays the target's; a differing source type is a conflict.
func mergePropertyDef(anc, src, tgt *models.PropertyDef) *models.PropertyDef {
	out := tgt.Clone()
	if anc == nil {
		return out
	}
	if constraintsEqual(anc.Constraints, tgt.Constraints) {
		out.Constraints = models.CloneConstraints(src.Constraints)
	}
	if src.Required != anc.Required {
		out.Required = src.Required
	}
	if src.Deprecated != anc.Deprecated {
		out.Deprecated = src.Deprecated
	}
	return out
}

func mergeLink(merged *models.SchemaVersion, d *Delta) {
	t := d.Link
	switch d.Kind {
	case DeltaAddedInSource:
		merged.Links[d.ID] = t.Source.Clone()
	case DeltaDeletedInSource:
		delete(merged.Links, d.ID)
	case DeltaModifiedInSource, DeltaModifiedInBoth:
		if t.Source == nil || t.Target == nil {
			return
		}
		link := t.Target.Clone()
		if t.Ancestor != nil && sameWiring(t.Ancestor, t.Target) {
			link.Source, link.Target, link.Kind = t.Source.Source, t.Source.Target, t.Source.Kind
		}
		merged.Links[d.ID] = link
	}
}

func mergeInterface(merged *models.SchemaVersion, d *Delta) {
	t := d.Interface
	switch d.Kind {
	case DeltaAddedInSource:
		merged.Interfaces[d.ID] = t.Source.Clone()
	case DeltaDeletedInSource:
		delete(merged.Interfaces, d.ID)
	case DeltaModifiedInSource, DeltaModifiedInBoth:
		if t.Source == nil || t.Target == nil {
			return
		}
		var ancMembers map[string]*models.PropertyDef
		if t.Ancestor != nil {
			ancMembers = t.Ancestor.Properties
		}
		iface := t.Target.Clone()
		for _, name := range unionKeys(ancMembers, t.Source.Properties, t.Target.Properties) {
			mt := &Triple[*models.PropertyDef]{Ancestor: ancMembers[name], Source: t.Source.Properties[name], Target: t.Target.Properties[name]}
			srcChanged := !propertiesEqual(mt.Ancestor, mt.Source)
			if !srcChanged {
				continue
			}
			kind := deltaKind(mt.Ancestor != nil, mt.Source, mt.Target, srcChanged, !propertiesEqual(mt.Ancestor, mt.Target))
			iface.Properties = mergeMember(iface.Properties, name, kind, mt)
		}
		merged.Interfaces[d.ID] = iface
	}
}
