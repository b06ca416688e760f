package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilupskalvis/ovc/internal/models"
)

func classifyScenario(t *testing.T, ancestor, source, target *models.SchemaVersion) []models.Conflict {
	t.Helper()
	ds, err := Diff(ancestor, source, target)
	require.NoError(t, err)
	conflicts, err := ClassifyAll(context.Background(), ds.Deltas, 4)
	require.NoError(t, err)
	return conflicts
}

func TestClassify_StringToTextIsInfo(t *testing.T) {
	ancestor := newSchema("v0", "").entity("Doc", prop("body", "string")).build()
	source := derive(ancestor, "v1", func(s *models.SchemaVersion) {
		s.Entities["Doc"].Properties["body"].Type = "text"
	})
	target := derive(ancestor, "v2", nil)

	conflicts := classifyScenario(t, ancestor, source, target)
	require.Len(t, conflicts, 1)

	c, ok := conflicts[0].(*models.PropertyTypeConflict)
	require.True(t, ok)
	assert.Equal(t, models.SeverityInfo, c.Severity)
	assert.True(t, c.AutoResolvable)
	assert.Equal(t, "Doc", c.EntityID)
	assert.Equal(t, "body", c.FieldID)
	a, b := c.Values()
	assert.Equal(t, "text", a)
	assert.Equal(t, "string", b)
	suggestion, ok := c.Suggestion()
	assert.True(t, ok)
	assert.Equal(t, "text", suggestion)
}

func TestClassify_IncompatibleTypes(t *testing.T) {
	ancestor := newSchema("v0", "").entity("User", prop("age", "int32"), requiredProp("id", "string")).build()
	source := derive(ancestor, "v1", func(s *models.SchemaVersion) {
		s.Entities["User"].Properties["age"].Type = "string"
		s.Entities["User"].Properties["id"].Type = "int64"
	})
	target := derive(ancestor, "v2", func(s *models.SchemaVersion) {
		s.Entities["User"].Properties["age"].Type = "float64"
		s.Entities["User"].Properties["id"].Type = "uuid"
	})

	conflicts := classifyScenario(t, ancestor, source, target)
	require.Len(t, conflicts, 2)

	age := conflicts[0].(*models.PropertyTypeConflict)
	assert.Equal(t, "age", age.FieldID)
	assert.Equal(t, models.SeverityError, age.Severity)
	assert.False(t, age.AutoResolvable)

	id := conflicts[1].(*models.PropertyTypeConflict)
	assert.Equal(t, "id", id.FieldID)
	assert.Equal(t, models.SeverityBlock, id.Severity, "required fields escalate to BLOCK")
	_, ok := id.Suggestion()
	assert.False(t, ok)
}

func TestClassify_EnumSuperset(t *testing.T) {
	ancestor := newSchema("v0", "").entity("Order", prop("status", "enum(new,paid)")).build()
	source := derive(ancestor, "v1", func(s *models.SchemaVersion) {
		s.Entities["Order"].Properties["status"].Type = "enum(new,paid,shipped)"
	})
	target := derive(ancestor, "v2", func(s *models.SchemaVersion) {
		s.Entities["Order"].Properties["status"].Type = "enum(new,paid,cancelled)"
	})

	// Neither enum contains the other
	conflicts := classifyScenario(t, ancestor, source, target)
	require.Len(t, conflicts, 1)
	assert.Equal(t, models.SeverityError, conflicts[0].Header().Severity)

	source.Entities["Order"].Properties["status"].Type = "enum(new,paid,shipped,cancelled)"
	conflicts = classifyScenario(t, ancestor, source, target)
	require.Len(t, conflicts, 1)
	assert.Equal(t, models.SeverityInfo, conflicts[0].Header().Severity)
	suggestion, _ := conflicts[0].Suggestion()
	assert.Equal(t, "enum(new,paid,shipped,cancelled)", suggestion)
}

func TestClassify_CardinalityExpansionIsInfo(t *testing.T) {
	ancestor, source, target := cardinalityScenario(models.OneToMany, models.OneToOne)

	conflicts := classifyScenario(t, ancestor, source, target)
	require.Len(t, conflicts, 1)

	c := conflicts[0].(*models.CardinalityConflict)
	assert.Equal(t, models.SeverityInfo, c.Severity)
	assert.True(t, c.AutoResolvable)
	assert.Equal(t, models.OneToMany, c.Suggested)
	assert.Equal(t, "User", c.EntityID)
	assert.Equal(t, "has_profile", c.FieldID)
}

func TestClassify_CardinalityManyToManyVersusOneToOne(t *testing.T) {
	ancestor := newSchema("v0", "").
		entity("User").entity("Group").
		link("in_group", "User", "Group", models.OneToMany, models.LinkAssociation).
		build()
	source := derive(ancestor, "v1", func(s *models.SchemaVersion) {
		s.Links["in_group"].Cardinality = models.ManyToMany
	})
	target := derive(ancestor, "v2", func(s *models.SchemaVersion) {
		s.Links["in_group"].Cardinality = models.OneToOne
	})

	conflicts := classifyScenario(t, ancestor, source, target)
	require.Len(t, conflicts, 1)
	c := conflicts[0].(*models.CardinalityConflict)
	assert.Equal(t, models.SeverityError, c.Severity)
	assert.False(t, c.AutoResolvable)
}

func TestClassify_CrossDirectionCardinality(t *testing.T) {
	ancestor, source, target := cardinalityScenario(models.OneToMany, models.ManyToOne)

	conflicts := classifyScenario(t, ancestor, source, target)
	require.Len(t, conflicts, 1)
	assert.Equal(t, models.ConflictCardinality, conflicts[0].Kind())
	assert.Equal(t, models.SeverityError, conflicts[0].Header().Severity)
	assert.False(t, conflicts[0].Header().AutoResolvable)
}

func TestClassify_Constraints(t *testing.T) {
	ancestor := newSchema("v0", "").entity("User", prop("age", "int32")).build()
	ancestor.Entities["User"].Properties["age"].Constraints = []models.Constraint{{Kind: models.ConstraintMin, Value: 0}}

	narrow := derive(ancestor, "v1", func(s *models.SchemaVersion) {
		s.Entities["User"].Properties["age"].Constraints = []models.Constraint{
			{Kind: models.ConstraintMin, Value: 0}, {Kind: models.ConstraintMax, Value: 150},
		}
	})
	raise := derive(ancestor, "v2", func(s *models.SchemaVersion) {
		s.Entities["User"].Properties["age"].Constraints = []models.Constraint{{Kind: models.ConstraintMin, Value: 18}}
	})

	conflicts := classifyScenario(t, ancestor, narrow, raise)
	require.Len(t, conflicts, 1)
	c := conflicts[0].(*models.ConstraintConflict)
	assert.Equal(t, models.SeverityWarn, c.Severity)
	assert.True(t, c.AutoResolvable)
	assert.Equal(t, []models.Constraint{
		{Kind: models.ConstraintMin, Value: 18},
		{Kind: models.ConstraintMax, Value: 150},
	}, c.Merged)

	impossible := derive(ancestor, "v3", func(s *models.SchemaVersion) {
		s.Entities["User"].Properties["age"].Constraints = []models.Constraint{{Kind: models.ConstraintMin, Value: 200}}
	})
	conflicts = classifyScenario(t, ancestor, narrow, impossible)
	require.Len(t, conflicts, 1)
	assert.Equal(t, models.SeverityError, conflicts[0].Header().Severity)
	assert.False(t, conflicts[0].Header().AutoResolvable)
	_, ok := conflicts[0].Suggestion()
	assert.False(t, ok)
}

func TestClassify_OneSidedConstraintChangeIsClean(t *testing.T) {
	ancestor := newSchema("v0", "").entity("User", prop("age", "int32")).build()
	source := derive(ancestor, "v1", func(s *models.SchemaVersion) {
		s.Entities["User"].Properties["age"].Constraints = []models.Constraint{{Kind: models.ConstraintMin, Value: 0}}
	})
	target := derive(ancestor, "v2", func(s *models.SchemaVersion) {
		s.Entities["User"].Properties["age"].Deprecated = true
	})

	assert.Empty(t, classifyScenario(t, ancestor, source, target))
}

func TestClassify_DeleteModify(t *testing.T) {
	ancestor := newSchema("v0", "").
		entity("User", prop("name", "string"), prop("age", "int32")).
		entity("Team").
		link("member_of", "User", "Team", models.ManyToOne, models.LinkAssociation).
		build()
	source := derive(ancestor, "v1", func(s *models.SchemaVersion) {
		delete(s.Entities["User"].Properties, "age")
		s.Links["member_of"].Cardinality = models.ManyToMany
	})
	target := derive(ancestor, "v2", func(s *models.SchemaVersion) {
		s.Entities["User"].Properties["age"].Required = true
		delete(s.Links, "member_of")
	})

	conflicts := classifyScenario(t, ancestor, source, target)
	require.Len(t, conflicts, 2)
	for _, c := range conflicts {
		assert.Equal(t, models.ConflictDeleteModify, c.Kind())
		assert.Equal(t, models.SeverityError, c.Header().Severity)
		assert.False(t, c.Header().AutoResolvable)
	}

	age := conflicts[0].(*models.DeleteModifyConflict)
	assert.Equal(t, "age", age.FieldID)
	assert.Equal(t, models.ScopeProperty, age.Scope)
	assert.Equal(t, models.SideSource, age.DeletedOn)

	link := conflicts[1].(*models.DeleteModifyConflict)
	assert.Equal(t, "member_of", link.FieldID)
	assert.Equal(t, models.ScopeLink, link.Scope)
	assert.Equal(t, models.SideTarget, link.DeletedOn)
}

func TestClassify_DeletedOnBothIsClean(t *testing.T) {
	ancestor := newSchema("v0", "").entity("User", prop("name", "string")).entity("Legacy").build()
	remove := func(s *models.SchemaVersion) { delete(s.Entities, "Legacy") }
	source := derive(ancestor, "v1", remove)
	target := derive(ancestor, "v2", remove)

	assert.Empty(t, classifyScenario(t, ancestor, source, target))
}

func TestClassify_TargetOnlyChangesAreClean(t *testing.T) {
	ancestor := newSchema("v0", "").entity("Doc", prop("body", "text")).build()
	source := derive(ancestor, "v1", nil)
	target := derive(ancestor, "v2", func(s *models.SchemaVersion) {
		s.Entities["Doc"].Properties["body"].Type = "string"
	})

	assert.Empty(t, classifyScenario(t, ancestor, source, target))
}

func TestClassify_InterfaceMembers(t *testing.T) {
	ancestor := newSchema("v0", "").iface("Named", prop("name", "string")).build()
	source := derive(ancestor, "v1", func(s *models.SchemaVersion) {
		s.Interfaces["Named"].Properties["name"].Type = "text"
	})
	target := derive(ancestor, "v2", func(s *models.SchemaVersion) {
		s.Interfaces["Named"].Properties["title"] = prop("title", "string")
	})

	conflicts := classifyScenario(t, ancestor, source, target)
	require.Len(t, conflicts, 1)
	assert.Equal(t, models.ConflictPropertyType, conflicts[0].Kind())
	assert.Equal(t, "Named", conflicts[0].Header().EntityID)
	assert.True(t, conflicts[0].Header().OnInterface)
	assert.Equal(t, models.SeverityInfo, conflicts[0].Header().Severity)
}

func TestClassifyAll_DeterministicAcrossWorkers(t *testing.T) {
	ancestor := newSchema("v0", "").
		entity("A", prop("x", "int32"), prop("y", "string")).
		entity("B", prop("x", "float32")).
		entity("C").
		link("ab", "A", "B", models.OneToOne, models.LinkAssociation).
		build()
	source := derive(ancestor, "v1", func(s *models.SchemaVersion) {
		s.Entities["A"].Properties["x"].Type = "int64"
		s.Entities["A"].Properties["y"].Type = "int32"
		s.Entities["B"].Properties["x"].Type = "float64"
		s.Links["ab"].Cardinality = models.OneToMany
	})
	target := derive(ancestor, "v2", func(s *models.SchemaVersion) {
		s.Entities["A"].Properties["y"].Type = "text"
	})

	ds, err := Diff(ancestor, source, target)
	require.NoError(t, err)

	sequential, err := ClassifyAll(context.Background(), ds.Deltas, 1)
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		parallel, err := ClassifyAll(context.Background(), ds.Deltas, 8)
		require.NoError(t, err)
		assert.Equal(t, sequential, parallel)
	}

	keys := make([]string, len(sequential))
	for i, c := range sequential {
		keys[i] = c.Header().EntityID + "/" + c.Header().FieldID
	}
	assert.Equal(t, []string{"A/ab", "A/x", "A/y", "B/x"}, keys)
}

func TestClassifyAll_Cancelled(t *testing.T) {
	ancestor, source, target := userAgeScenario()
	ds, err := Diff(ancestor, source, target)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = ClassifyAll(ctx, ds.Deltas, 2)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAssertConsistent_PanicsOnInvalidClassification(t *testing.T) {
	assert.Panics(t, func() {
		assertConsistent(&models.PropertyTypeConflict{
			ConflictHeader: models.ConflictHeader{Severity: models.SeverityError, AutoResolvable: true},
			Suggested:      "text",
		})
	})
	assert.Panics(t, func() {
		assertConsistent(&models.CardinalityConflict{
			ConflictHeader: models.ConflictHeader{Severity: models.SeverityInfo, AutoResolvable: true},
		})
	})
	assert.NotPanics(t, func() {
		assertConsistent(&models.CardinalityConflict{
			ConflictHeader: models.ConflictHeader{Severity: models.SeverityInfo, AutoResolvable: true},
			Suggested:      models.ManyToMany,
		})
	})
}
