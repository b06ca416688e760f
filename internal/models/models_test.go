package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeverity_Text(t *testing.T) {
	assert.Equal(t, "WARN", SeverityWarn.String())
	assert.Equal(t, "Severity(9)", Severity(9).String())

	var s Severity
	require.NoError(t, s.UnmarshalText([]byte("error")))
	assert.Equal(t, SeverityError, s)
	assert.Error(t, s.UnmarshalText([]byte("fatal")))

	assert.True(t, SeverityInfo < SeverityWarn && SeverityWarn < SeverityError && SeverityError < SeverityBlock)
}

func TestParseMergeStrategy(t *testing.T) {
	s, err := ParseMergeStrategy("")
	require.NoError(t, err)
	assert.Equal(t, StrategyMerge, s)

	s, err = ParseMergeStrategy("squash")
	require.NoError(t, err)
	assert.Equal(t, StrategySquash, s)

	_, err = ParseMergeStrategy("octopus")
	assert.Error(t, err)
}

func TestMergeState_Terminal(t *testing.T) {
	assert.True(t, StateDoneConflict.Terminal())
	assert.False(t, StateCommitting.Terminal())
}

func TestMergeError_Error(t *testing.T) {
	e := &MergeError{Kind: ErrorHeadMoved, Retryable: true, Message: "main moved"}
	assert.Equal(t, "merge failed (HeadMoved, retryable): main moved", e.Error())

	e = &MergeError{Kind: ErrorNotFound, Message: "no branch x"}
	assert.Equal(t, "merge failed (NotFound): no branch x", e.Error())
}

func TestSchemaVersion_CloneIsDeep(t *testing.T) {
	s := NewSchemaVersion()
	s.Entities["User"] = &EntityDef{
		ID:         "User",
		Interfaces: []string{"Named"},
		Properties: map[string]*PropertyDef{
			"role": {Name: "role", Type: "string", Constraints: []Constraint{{Kind: ConstraintEnum, Values: []string{"a", "b"}}}},
		},
	}
	s.Links["owns"] = &LinkDef{ID: "owns", Source: "User", Target: "User", Cardinality: OneToMany}

	cp := s.Clone()
	cp.Entities["User"].Properties["role"].Constraints[0].Values[0] = "z"
	cp.Entities["User"].Interfaces[0] = "Other"
	cp.Links["owns"].Cardinality = ManyToMany

	assert.Equal(t, "a", s.Entities["User"].Properties["role"].Constraints[0].Values[0])
	assert.Equal(t, "Named", s.Entities["User"].Interfaces[0])
	assert.Equal(t, OneToMany, s.Links["owns"].Cardinality)
}

func TestSchemaVersion_Normalize(t *testing.T) {
	s := &SchemaVersion{
		Entities: map[string]*EntityDef{
			"User": {Interfaces: []string{"b", "a", "b"}, Properties: map[string]*PropertyDef{"age": {Type: "int"}}},
		},
		Links: map[string]*LinkDef{"owns": {Source: "User", Target: "User", Cardinality: OneToOne}},
	}
	s.Normalize()

	assert.Equal(t, "User", s.Entities["User"].ID)
	assert.Equal(t, []string{"a", "b"}, s.Entities["User"].Interfaces)
	assert.Equal(t, "age", s.Entities["User"].Properties["age"].Name)
	assert.Equal(t, "owns", s.Links["owns"].ID)
	assert.Equal(t, LinkAssociation, s.Links["owns"].Kind)
	assert.NotNil(t, s.Interfaces)
	assert.True(t, s.Entities["User"].Implements("a"))
	assert.False(t, s.Entities["User"].Implements("c"))
}

func TestHashSchemaContent_IgnoresMetadata(t *testing.T) {
	a := NewSchemaVersion()
	a.Entities["User"] = &EntityDef{ID: "User"}
	b := a.Clone()
	b.Author = "someone else"
	b.Message = "different"

	assert.Equal(t, HashSchemaContent(a), HashSchemaContent(b))

	b.Entities["Team"] = &EntityDef{ID: "Team"}
	assert.NotEqual(t, HashSchemaContent(a), HashSchemaContent(b))
}

func TestGenerateVersionID(t *testing.T) {
	ts := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	id := GenerateVersionID("msg", ts, "p1", "", "hash")
	assert.Len(t, id, 64)
	assert.Equal(t, id, GenerateVersionID("msg", ts, "p1", "", "hash"))
	assert.NotEqual(t, id, GenerateVersionID("msg", ts, "p1", "p2", "hash"))
}

func TestMergeResult_JSON(t *testing.T) {
	res := &MergeResult{
		Status:          StatusConflict,
		Strategy:        StrategyMerge,
		SourceVersionID: "src",
		TargetVersionID: "tgt",
		Conflicts: []Conflict{
			&PropertyTypeConflict{
				ConflictHeader: ConflictHeader{Severity: SeverityInfo, EntityID: "User", FieldID: "age", AutoResolvable: true},
				TypeA:          "long",
				TypeB:          "integer",
				Suggested:      "long",
			},
			&CircularDependencyConflict{
				ConflictHeader: ConflictHeader{Severity: SeverityError, EntityID: "A", FieldID: "ab,ba"},
				Cycle:          []string{"A", "B"},
				LinkIDs:        []string{"ab", "ba"},
				Strategies:     []string{StrategyBreakCycle},
			},
		},
		States: []MergeState{StateInit, StateDiffing, StateDoneConflict},
	}
	res.Unresolved = res.Conflicts[1:]
	res.ComputeStats()

	data, err := json.Marshal(res)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"kind":"PROPERTY_TYPE"`)
	assert.Contains(t, string(data), `"max_severity":"ERROR"`)

	var decoded MergeResult
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, res.Conflicts, decoded.Conflicts)
	assert.Equal(t, res.Unresolved, decoded.Unresolved)
	assert.Equal(t, SeverityError, decoded.MaxSeverity)
	assert.Equal(t, 2, decoded.Stats.TotalConflicts)
	assert.Equal(t, StateDoneConflict, decoded.FinalState())
}

func TestUnmarshalConflict_UnknownKind(t *testing.T) {
	_, err := UnmarshalConflict([]byte(`{"kind":"MYSTERY","payload":{}}`))
	assert.Error(t, err)
}

func TestFormatConstraints(t *testing.T) {
	assert.NotEmpty(t, FormatConstraints([]Constraint{{Kind: ConstraintMin, Value: 1}}))
}
