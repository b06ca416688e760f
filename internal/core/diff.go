// Package core implements the merge conflict engine for ontology schemas:
// three-way structural diff, conflict classification, graph analysis,
// automatic resolution and the merge state machine.
package core

import (
	"sort"

	"github.com/kilupskalvis/ovc/internal/models"
)

// DeltaKind classifies how a key changed across the three versions of a merge
type DeltaKind string

const (
	DeltaUnchanged        DeltaKind = "unchanged"
	DeltaAddedInSource    DeltaKind = "addedInSource"
	DeltaAddedInTarget    DeltaKind = "addedInTarget"
	DeltaModifiedInSource DeltaKind = "modifiedInSource"
	DeltaModifiedInTarget DeltaKind = "modifiedInTarget"
	DeltaModifiedInBoth   DeltaKind = "modifiedInBoth"
	DeltaDeletedInSource  DeltaKind = "deletedInSource"
	DeltaDeletedInTarget  DeltaKind = "deletedInTarget"
)

// Triple holds the ancestor, source and target values of one key. A nil
// value means the key is absent from that version.
type Triple[T any] struct {
	Ancestor T
	Source   T
	Target   T
}

// Delta is the change of a single entity, property, link or interface
type Delta struct {
	Kind  DeltaKind
	Scope models.DeleteScope
	ID    string // Entity, link or interface ID
	Field string // Property name for property scope

	Entity    *Triple[*models.EntityDef]
	Property  *Triple[*models.PropertyDef]
	Link      *Triple[*models.LinkDef]
	Interface *Triple[*models.InterfaceDef]
}

// DeltaSet is the result of a three-way diff. Deltas holds every key that is
// not unchanged, sorted by scope, ID and field.
type DeltaSet struct {
	AncestorID string
	SourceID   string
	TargetID   string
	Deltas     []*Delta
	Unchanged  int
}

// HasChanges returns true if any key changed on either branch
func (d *DeltaSet) HasChanges() bool {
	return len(d.Deltas) > 0
}

// SourceContributes returns true if merging the source would change the
// target. False means the target is already up to date.
func (d *DeltaSet) SourceContributes() bool {
	for _, delta := range d.Deltas {
		switch delta.Kind {
		case DeltaAddedInSource, DeltaModifiedInSource, DeltaDeletedInSource:
			return true
		case DeltaModifiedInBoth:
			if !delta.sidesEqual() {
				return true
			}
		}
	}
	return false
}

// Count returns the number of deltas of the given kind
func (d *DeltaSet) Count(kind DeltaKind) int {
	n := 0
	for _, delta := range d.Deltas {
		if delta.Kind == kind {
			n++
		}
	}
	return n
}

// sidesEqual returns true if source and target ended up identical
func (d *Delta) sidesEqual() bool {
	switch d.Scope {
	case models.ScopeEntity:
		return entitiesEqual(d.Entity.Source, d.Entity.Target)
	case models.ScopeProperty:
		return propertiesEqual(d.Property.Source, d.Property.Target)
	case models.ScopeLink:
		return linksEqual(d.Link.Source, d.Link.Target)
	case models.ScopeInterface:
		return interfacesEqual(d.Interface.Source, d.Interface.Target)
	}
	return false
}

// Diff computes the structural deltas of source and target against their
// common ancestor. Keys are matched by stable ID.
func Diff(ancestor, source, target *models.SchemaVersion) (*DeltaSet, error) {
	if err := checkLineage(ancestor, source, target); err != nil {
		return nil, err
	}

	ds := &DeltaSet{
		AncestorID: ancestor.VersionID,
		SourceID:   source.VersionID,
		TargetID:   target.VersionID,
	}

	// Entities, and the properties of entities present on both branches
	for _, id := range unionKeys(ancestor.Entities, source.Entities, target.Entities) {
		anc, src, tgt := ancestor.Entities[id], source.Entities[id], target.Entities[id]

		equal := entityShellsEqual
		if src == nil || tgt == nil {
			equal = entitiesEqual
		}
		ds.add(&Delta{
			Kind:   deltaKind(anc != nil, src, tgt, !equal(anc, src), !equal(anc, tgt)),
			Scope:  models.ScopeEntity,
			ID:     id,
			Entity: &Triple[*models.EntityDef]{Ancestor: anc, Source: src, Target: tgt},
		})

		if src == nil || tgt == nil {
			continue
		}
		var ancProps map[string]*models.PropertyDef
		if anc != nil {
			ancProps = anc.Properties
		}
		ds.addProperties(id, ancProps, src.Properties, tgt.Properties)
	}

	for _, id := range unionKeys(ancestor.Links, source.Links, target.Links) {
		anc, src, tgt := ancestor.Links[id], source.Links[id], target.Links[id]
		ds.add(&Delta{
			Kind:  deltaKind(anc != nil, src, tgt, !linksEqual(anc, src), !linksEqual(anc, tgt)),
			Scope: models.ScopeLink,
			ID:    id,
			Link:  &Triple[*models.LinkDef]{Ancestor: anc, Source: src, Target: tgt},
		})
	}

	for _, id := range unionKeys(ancestor.Interfaces, source.Interfaces, target.Interfaces) {
		anc, src, tgt := ancestor.Interfaces[id], source.Interfaces[id], target.Interfaces[id]
		ds.add(&Delta{
			Kind:      deltaKind(anc != nil, src, tgt, !interfacesEqual(anc, src), !interfacesEqual(anc, tgt)),
			Scope:     models.ScopeInterface,
			ID:        id,
			Interface: &Triple[*models.InterfaceDef]{Ancestor: anc, Source: src, Target: tgt},
		})
	}

	sort.SliceStable(ds.Deltas, func(i, j int) bool {
		a, b := ds.Deltas[i], ds.Deltas[j]
		if a.Scope != b.Scope {
			return scopeOrder[a.Scope] < scopeOrder[b.Scope]
		}
		if a.ID != b.ID {
			return a.ID < b.ID
		}
		return a.Field < b.Field
	})
	return ds, nil
}

var scopeOrder = map[models.DeleteScope]int{
	models.ScopeEntity:    0,
	models.ScopeProperty:  1,
	models.ScopeLink:      2,
	models.ScopeInterface: 3,
}

func (ds *DeltaSet) addProperties(entityID string, anc, src, tgt map[string]*models.PropertyDef) {
	for _, name := range unionKeys(anc, src, tgt) {
		a, s, t := anc[name], src[name], tgt[name]
		ds.add(&Delta{
			Kind:     deltaKind(a != nil, s, t, !propertiesEqual(a, s), !propertiesEqual(a, t)),
			Scope:    models.ScopeProperty,
			ID:       entityID,
			Field:    name,
			Property: &Triple[*models.PropertyDef]{Ancestor: a, Source: s, Target: t},
		})
	}
}

func (ds *DeltaSet) add(d *Delta) {
	if d.Kind == DeltaUnchanged {
		ds.Unchanged++
		return
	}
	ds.Deltas = append(ds.Deltas, d)
}

// deltaKind decides the kind of a key from its presence and whether each
// branch changed it relative to the ancestor
func deltaKind[T comparable](inAncestor bool, src, tgt T, srcChanged, tgtChanged bool) DeltaKind {
	var zero T
	if !inAncestor {
		switch {
		case src != zero && tgt != zero:
			return DeltaModifiedInBoth
		case src != zero:
			return DeltaAddedInSource
		case tgt != zero:
			return DeltaAddedInTarget
		}
		return DeltaUnchanged
	}

	switch {
	case srcChanged && tgtChanged:
		return DeltaModifiedInBoth
	case srcChanged:
		if src == zero {
			return DeltaDeletedInSource
		}
		return DeltaModifiedInSource
	case tgtChanged:
		if tgt == zero {
			return DeltaDeletedInTarget
		}
		return DeltaModifiedInTarget
	}
	return DeltaUnchanged
}

// checkLineage verifies that the three snapshots can be diffed. Both branch
// heads must exist and descend from the ancestor.
func checkLineage(ancestor, source, target *models.SchemaVersion) error {
	if source == nil || target == nil {
		return &SchemaCorruptError{Reason: "missing branch head snapshot"}
	}
	if ancestor == nil {
		for _, v := range []*models.SchemaVersion{source, target} {
			if v.AncestorVersionID != "" {
				return &SchemaCorruptError{
					VersionID: v.VersionID,
					Reason:    "ancestor " + v.AncestorVersionID + " cannot be resolved",
				}
			}
		}
		return &SchemaCorruptError{VersionID: source.VersionID, Reason: "no ancestor snapshot"}
	}
	for _, v := range []*models.SchemaVersion{source, target} {
		// A root version can only be diffed against itself
		if v.AncestorVersionID == "" && v.VersionID != "" && v.VersionID != ancestor.VersionID {
			return &SchemaCorruptError{
				VersionID: v.VersionID,
				Reason:    "root version does not descend from " + ancestor.VersionID,
			}
		}
	}
	return nil
}

func unionKeys[V any](maps ...map[string]V) []string {
	seen := make(map[string]bool)
	var keys []string
	for _, m := range maps {
		for k := range m {
			if !seen[k] {
				seen[k] = true
				keys = append(keys, k)
			}
		}
	}
	sort.Strings(keys)
	return keys
}
