package models

import (
	"encoding/json"
	"fmt"
)

// conflictEnvelope tags an encoded conflict with its variant
type conflictEnvelope struct {
	Kind    ConflictKind    `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// MarshalConflict encodes a conflict together with its kind tag
func MarshalConflict(c Conflict) ([]byte, error) {
	payload, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	return json.Marshal(conflictEnvelope{Kind: c.Kind(), Payload: payload})
}

// UnmarshalConflict decodes a conflict written by MarshalConflict
func UnmarshalConflict(data []byte) (Conflict, error) {
	var env conflictEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode conflict envelope: %w", err)
	}

	var c Conflict
	switch env.Kind {
	case ConflictPropertyType:
		c = &PropertyTypeConflict{}
	case ConflictCardinality:
		c = &CardinalityConflict{}
	case ConflictConstraint:
		c = &ConstraintConflict{}
	case ConflictDeleteModify:
		c = &DeleteModifyConflict{}
	case ConflictCircularDependency:
		c = &CircularDependencyConflict{}
	case ConflictInterfaceMismatch:
		c = &InterfaceMismatchConflict{}
	default:
		return nil, fmt.Errorf("unknown conflict kind %q", env.Kind)
	}

	if err := json.Unmarshal(env.Payload, c); err != nil {
		return nil, fmt.Errorf("decode %s conflict: %w", env.Kind, err)
	}
	return c, nil
}

type conflictList []Conflict

func (l conflictList) MarshalJSON() ([]byte, error) {
	out := make([]json.RawMessage, len(l))
	for i, c := range l {
		data, err := MarshalConflict(c)
		if err != nil {
			return nil, err
		}
		out[i] = data
	}
	return json.Marshal(out)
}

func (l *conflictList) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		*l = nil
		return nil
	}
	list := make(conflictList, len(raw))
	for i, r := range raw {
		c, err := UnmarshalConflict(r)
		if err != nil {
			return err
		}
		list[i] = c
	}
	*l = list
	return nil
}

// mergeResultJSON is the wire form of MergeResult
type mergeResultJSON struct {
	Status          MergeStatus    `json:"status"`
	Strategy        MergeStrategy  `json:"strategy"`
	MergeCommitID   string         `json:"merge_commit_id,omitempty"`
	SourceVersionID string         `json:"source_version_id"`
	TargetVersionID string         `json:"target_version_id"`
	AncestorID      string         `json:"ancestor_id,omitempty"`
	Conflicts       conflictList   `json:"conflicts"`
	Unresolved      conflictList   `json:"unresolved"`
	AutoResolved    bool           `json:"auto_resolved"`
	MaxSeverity     Severity       `json:"max_severity"`
	Stats           MergeStats     `json:"stats"`
	DurationMs      int64          `json:"duration_ms"`
	ResolvedSchema  *SchemaVersion `json:"resolved_schema,omitempty"`
	Error           *MergeError    `json:"error,omitempty"`
	States          []MergeState   `json:"states"`
}

// MarshalJSON encodes the result as a machine-readable conflict report
func (r *MergeResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(mergeResultJSON{
		Status:          r.Status,
		Strategy:        r.Strategy,
		MergeCommitID:   r.MergeCommitID,
		SourceVersionID: r.SourceVersionID,
		TargetVersionID: r.TargetVersionID,
		AncestorID:      r.AncestorID,
		Conflicts:       conflictList(r.Conflicts),
		Unresolved:      conflictList(r.Unresolved),
		AutoResolved:    r.AutoResolved,
		MaxSeverity:     r.MaxSeverity,
		Stats:           r.Stats,
		DurationMs:      r.DurationMs,
		ResolvedSchema:  r.ResolvedSchema,
		Error:           r.Error,
		States:          r.States,
	})
}

// UnmarshalJSON decodes a result written by MarshalJSON
func (r *MergeResult) UnmarshalJSON(data []byte) error {
	var w mergeResultJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*r = MergeResult{
		Status:          w.Status,
		Strategy:        w.Strategy,
		MergeCommitID:   w.MergeCommitID,
		SourceVersionID: w.SourceVersionID,
		TargetVersionID: w.TargetVersionID,
		AncestorID:      w.AncestorID,
		Conflicts:       []Conflict(w.Conflicts),
		Unresolved:      []Conflict(w.Unresolved),
		AutoResolved:    w.AutoResolved,
		MaxSeverity:     w.MaxSeverity,
		Stats:           w.Stats,
		DurationMs:      w.DurationMs,
		ResolvedSchema:  w.ResolvedSchema,
		Error:           w.Error,
		States:          w.States,
	}
	return nil
}
