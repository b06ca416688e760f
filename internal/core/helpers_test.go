package core

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kilupskalvis/ovc/internal/graphstore"
	"github.com/kilupskalvis/ovc/internal/models"
)

// schemaBuilder assembles schema versions for tests
type schemaBuilder struct {
	v *models.SchemaVersion
}

func newSchema(id, ancestor string) *schemaBuilder {
	v := models.NewSchemaVersion()
	v.VersionID = id
	v.AncestorVersionID = ancestor
	return &schemaBuilder{v: v}
}

func (b *schemaBuilder) entity(id string, props ...*models.PropertyDef) *schemaBuilder {
	e := &models.EntityDef{ID: id, Properties: make(map[string]*models.PropertyDef)}
	for _, p := range props {
		e.Properties[p.Name] = p
	}
	b.v.Entities[id] = e
	return b
}

func (b *schemaBuilder) implements(entityID string, ifaces ...string) *schemaBuilder {
	b.v.Entities[entityID].Interfaces = append(b.v.Entities[entityID].Interfaces, ifaces...)
	return b
}

func (b *schemaBuilder) iface(id string, props ...*models.PropertyDef) *schemaBuilder {
	i := &models.InterfaceDef{ID: id, Properties: make(map[string]*models.PropertyDef)}
	for _, p := range props {
		i.Properties[p.Name] = p
	}
	b.v.Interfaces[id] = i
	return b
}

func (b *schemaBuilder) link(id, from, to string, card models.Cardinality, kind models.LinkKind) *schemaBuilder {
	b.v.Links[id] = &models.LinkDef{ID: id, Source: from, Target: to, Cardinality: card, Kind: kind}
	return b
}

func (b *schemaBuilder) build() *models.SchemaVersion {
	b.v.Normalize()
	return b.v
}

func prop(name, typ string) *models.PropertyDef {
	return &models.PropertyDef{Name: name, Type: typ}
}

func requiredProp(name, typ string) *models.PropertyDef {
	return &models.PropertyDef{Name: name, Type: typ, Required: true}
}

// derive returns a child version of parent with mutate applied
func derive(parent *models.SchemaVersion, id string, mutate func(s *models.SchemaVersion)) *models.SchemaVersion {
	child := parent.Clone()
	child.VersionID = id
	child.AncestorVersionID = parent.VersionID
	child.MergeParentVersionID = ""
	if mutate != nil {
		mutate(child)
	}
	child.Normalize()
	return child
}

// newMergeStore stores the three versions of a merge with "main" at target
// and "feature" at source
func newMergeStore(t *testing.T, ancestor, source, target *models.SchemaVersion) *graphstore.MockStore {
	t.Helper()
	st := graphstore.NewMockStore()
	st.AddVersion(ancestor)
	if source.VersionID != ancestor.VersionID {
		st.AddVersion(source)
	}
	if target.VersionID != ancestor.VersionID && target.VersionID != source.VersionID {
		st.AddVersion(target)
	}
	st.SetBranch("main", target.VersionID)
	st.SetBranch("feature", source.VersionID)
	require.Equal(t, target.VersionID, st.Head("main"))
	return st
}

// userAgeScenario builds User.age:integer with source changing it to long
func userAgeScenario() (ancestor, source, target *models.SchemaVersion) {
	ancestor = newSchema("v0", "").entity("User", prop("age", "integer"), prop("name", "string")).build()
	source = derive(ancestor, "v1", func(s *models.SchemaVersion) {
		s.Entities["User"].Properties["age"].Type = "long"
	})
	target = derive(ancestor, "v2", func(s *models.SchemaVersion) {
		s.Entities["User"].Properties["email"] = prop("email", "string")
	})
	return ancestor, source, target
}

// cardinalityScenario builds a ONE_TO_ONE link changed differently on each side
func cardinalityScenario(src, tgt models.Cardinality) (ancestor, source, target *models.SchemaVersion) {
	ancestor = newSchema("v0", "").
		entity("User").entity("Profile").
		link("has_profile", "User", "Profile", models.OneToOne, models.LinkAssociation).
		build()
	source = derive(ancestor, "v1", func(s *models.SchemaVersion) {
		s.Links["has_profile"].Cardinality = src
	})
	target = derive(ancestor, "v2", func(s *models.SchemaVersion) {
		s.Links["has_profile"].Cardinality = tgt
	})
	return ancestor, source, target
}

func kinds(cs []models.Conflict) []models.ConflictKind {
	out := make([]models.ConflictKind, len(cs))
	for i, c := range cs {
		out[i] = c.Kind()
	}
	return out
}
