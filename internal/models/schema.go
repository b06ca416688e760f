// Package models defines the core data structures used throughout OVC
// including schema versions, conflicts, and merge results.
package models

import (
	"sort"
	"time"
)

// Cardinality is the multiplicity constraint on a link
type Cardinality string

const (
	OneToOne   Cardinality = "ONE_TO_ONE"
	OneToMany  Cardinality = "ONE_TO_MANY"
	ManyToOne  Cardinality = "MANY_TO_ONE"
	ManyToMany Cardinality = "MANY_TO_MANY"
)

// Valid returns true for one of the four known cardinalities
func (c Cardinality) Valid() bool {
	switch c {
	case OneToOne, OneToMany, ManyToOne, ManyToMany:
		return true
	}
	return false
}

// LinkKind describes the semantics of a link. Ownership and containment
// links form the graph checked for circular dependencies.
type LinkKind string

const (
	LinkAssociation LinkKind = "association"
	LinkOwnership   LinkKind = "ownership"
	LinkContainment LinkKind = "containment"
)

// Structural returns true if the link expresses ownership or containment
func (k LinkKind) Structural() bool {
	return k == LinkOwnership || k == LinkContainment
}

// ConstraintKind identifies the type of a property constraint
type ConstraintKind string

const (
	ConstraintMin       ConstraintKind = "min"
	ConstraintMax       ConstraintKind = "max"
	ConstraintMinLength ConstraintKind = "min_length"
	ConstraintMaxLength ConstraintKind = "max_length"
	ConstraintEnum      ConstraintKind = "enum"
	ConstraintPattern   ConstraintKind = "pattern"
	ConstraintUnique    ConstraintKind = "unique"
)

// Constraint restricts the values a property accepts
type Constraint struct {
	Kind    ConstraintKind `json:"kind" toml:"kind"`
	Value   float64        `json:"value,omitempty" toml:"value,omitempty"`     // min, max, min_length, max_length
	Values  []string       `json:"values,omitempty" toml:"values,omitempty"`   // enum
	Pattern string         `json:"pattern,omitempty" toml:"pattern,omitempty"` // pattern
}

// PropertyDef is a typed property of an entity or interface
type PropertyDef struct {
	Name        string       `json:"name" toml:"name"`
	Type        string       `json:"type" toml:"type"`
	Constraints []Constraint `json:"constraints,omitempty" toml:"constraints,omitempty"`
	Required    bool         `json:"required,omitempty" toml:"required,omitempty"`
	Deprecated  bool         `json:"deprecated,omitempty" toml:"deprecated,omitempty"`
}

// EntityDef is an entity type of the ontology
type EntityDef struct {
	ID         string                  `json:"id" toml:"id"`
	Properties map[string]*PropertyDef `json:"properties,omitempty" toml:"properties,omitempty"`
	Interfaces []string                `json:"interfaces,omitempty" toml:"interfaces,omitempty"` // set, kept sorted
}

// InterfaceDef lists the properties an implementing entity must provide
type InterfaceDef struct {
	ID         string                  `json:"id" toml:"id"`
	Properties map[string]*PropertyDef `json:"properties,omitempty" toml:"properties,omitempty"`
}

// LinkDef is a typed relation between two entities
type LinkDef struct {
	ID          string      `json:"id" toml:"id"`
	Source      string      `json:"source" toml:"source"`
	Target      string      `json:"target" toml:"target"`
	Cardinality Cardinality `json:"cardinality" toml:"cardinality"`
	Kind        LinkKind    `json:"kind,omitempty" toml:"kind,omitempty"`
}

// SchemaVersion is an immutable snapshot of the ontology at a commit.
// Every edit produces a new version; existing versions are never mutated.
type SchemaVersion struct {
	VersionID            string                   `json:"version_id"`
	AncestorVersionID    string                   `json:"ancestor_version_id,omitempty"`
	MergeParentVersionID string                   `json:"merge_parent_version_id,omitempty"`
	Author               string                   `json:"author,omitempty"`
	Message              string                   `json:"message,omitempty"`
	CreatedAt            time.Time                `json:"created_at"`
	Entities             map[string]*EntityDef    `json:"entities"`
	Links                map[string]*LinkDef      `json:"links"`
	Interfaces           map[string]*InterfaceDef `json:"interfaces,omitempty"`
}

// NewSchemaVersion creates an empty schema version with initialized maps
func NewSchemaVersion() *SchemaVersion {
	return &SchemaVersion{
		Entities:   make(map[string]*EntityDef),
		Links:      make(map[string]*LinkDef),
		Interfaces: make(map[string]*InterfaceDef),
	}
}

// ShortID returns a shortened version ID (first 7 characters)
func (s *SchemaVersion) ShortID() string {
	if len(s.VersionID) > 7 {
		return s.VersionID[:7]
	}
	return s.VersionID
}

// IsMergeVersion returns true if this version has two parents
func (s *SchemaVersion) IsMergeVersion() bool {
	return s.MergeParentVersionID != ""
}

// EntityIDs returns all entity IDs in sorted order
func (s *SchemaVersion) EntityIDs() []string {
	return sortedKeys(s.Entities)
}

// LinkIDs returns all link IDs in sorted order
func (s *SchemaVersion) LinkIDs() []string {
	return sortedKeys(s.Links)
}

// InterfaceIDs returns all interface IDs in sorted order
func (s *SchemaVersion) InterfaceIDs() []string {
	return sortedKeys(s.Interfaces)
}

// Normalize fills nil maps and sorts entity interface sets in place.
// Only call it on versions that are still being built.
func (s *SchemaVersion) Normalize() {
	if s.Entities == nil {
		s.Entities = make(map[string]*EntityDef)
	}
	if s.Links == nil {
		s.Links = make(map[string]*LinkDef)
	}
	if s.Interfaces == nil {
		s.Interfaces = make(map[string]*InterfaceDef)
	}
	for id, e := range s.Entities {
		if e.ID == "" {
			e.ID = id
		}
		if e.Properties == nil {
			e.Properties = make(map[string]*PropertyDef)
		}
		for name, p := range e.Properties {
			if p.Name == "" {
				p.Name = name
			}
		}
		e.Interfaces = NormalizeSet(e.Interfaces)
	}
	for id, l := range s.Links {
		if l.ID == "" {
			l.ID = id
		}
		if l.Kind == "" {
			l.Kind = LinkAssociation
		}
	}
	for id, i := range s.Interfaces {
		if i.ID == "" {
			i.ID = id
		}
		for name, p := range i.Properties {
			if p.Name == "" {
				p.Name = name
			}
		}
	}
}

// Clone returns a deep copy of the schema content and metadata
func (s *SchemaVersion) Clone() *SchemaVersion {
	if s == nil {
		return nil
	}
	cp := *s
	cp.Entities = make(map[string]*EntityDef, len(s.Entities))
	for k, v := range s.Entities {
		cp.Entities[k] = v.Clone()
	}
	cp.Links = make(map[string]*LinkDef, len(s.Links))
	for k, v := range s.Links {
		cp.Links[k] = v.Clone()
	}
	cp.Interfaces = make(map[string]*InterfaceDef, len(s.Interfaces))
	for k, v := range s.Interfaces {
		cp.Interfaces[k] = v.Clone()
	}
	return &cp
}

// Clone returns a deep copy of the entity
func (e *EntityDef) Clone() *EntityDef {
	if e == nil {
		return nil
	}
	cp := &EntityDef{
		ID:         e.ID,
		Properties: make(map[string]*PropertyDef, len(e.Properties)),
	}
	for k, v := range e.Properties {
		cp.Properties[k] = v.Clone()
	}
	if e.Interfaces != nil {
		cp.Interfaces = append([]string{}, e.Interfaces...)
	}
	return cp
}

// PropertyNames returns all property names in sorted order
func (e *EntityDef) PropertyNames() []string {
	return sortedKeys(e.Properties)
}

// Implements returns true if the entity declares the interface
func (e *EntityDef) Implements(interfaceID string) bool {
	i := sort.SearchStrings(e.Interfaces, interfaceID)
	return i < len(e.Interfaces) && e.Interfaces[i] == interfaceID
}

// Clone returns a deep copy of the property
func (p *PropertyDef) Clone() *PropertyDef {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Constraints = CloneConstraints(p.Constraints)
	return &cp
}

// PropertyNames returns the interface's members in sorted order
func (i *InterfaceDef) PropertyNames() []string {
	return sortedKeys(i.Properties)
}

// Clone returns a deep copy of the interface
func (i *InterfaceDef) Clone() *InterfaceDef {
	if i == nil {
		return nil
	}
	cp := &InterfaceDef{
		ID:         i.ID,
		Properties: make(map[string]*PropertyDef, len(i.Properties)),
	}
	for k, v := range i.Properties {
		cp.Properties[k] = v.Clone()
	}
	return cp
}

// Clone returns a copy of the link
func (l *LinkDef) Clone() *LinkDef {
	if l == nil {
		return nil
	}
	cp := *l
	return &cp
}

// CloneConstraints deep-copies a constraint list
func CloneConstraints(cs []Constraint) []Constraint {
	if cs == nil {
		return nil
	}
	out := make([]Constraint, len(cs))
	for i, c := range cs {
		out[i] = c
		if c.Values != nil {
			out[i].Values = append([]string{}, c.Values...)
		}
	}
	return out
}

// NormalizeSet sorts and de-duplicates a string set
func NormalizeSet(set []string) []string {
	if len(set) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(set))
	out := make([]string, 0, len(set))
	for _, s := range set {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
