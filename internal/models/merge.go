package models

import "fmt"

// MergeStrategy selects how a merge is committed
type MergeStrategy string

const (
	StrategyMerge  MergeStrategy = "MERGE"
	StrategySquash MergeStrategy = "SQUASH"
	StrategyRebase MergeStrategy = "REBASE" // runs MERGE and relabels the result
)

// ParseMergeStrategy parses a strategy name, case-insensitively
func ParseMergeStrategy(s string) (MergeStrategy, error) {
	switch s {
	case "", "merge", "MERGE":
		return StrategyMerge, nil
	case "squash", "SQUASH":
		return StrategySquash, nil
	case "rebase", "REBASE":
		return StrategyRebase, nil
	}
	return "", fmt.Errorf("unknown merge strategy %q", s)
}

// MergeStatus is the final outcome of a merge
type MergeStatus string

const (
	StatusSuccess   MergeStatus = "SUCCESS"
	StatusConflict  MergeStatus = "CONFLICT"
	StatusNoChanges MergeStatus = "NO_CHANGES"
	StatusError     MergeStatus = "ERROR"
)

// MergeState is a state of the merge pipeline
type MergeState string

const (
	StateInit          MergeState = "INIT"
	StateDiffing       MergeState = "DIFFING"
	StateClassifying   MergeState = "CLASSIFYING"
	StateAnalyzing     MergeState = "ANALYZING"
	StateAutoResolving MergeState = "AUTO_RESOLVING"
	StateDeciding      MergeState = "DECIDING"
	StateCommitting    MergeState = "COMMITTING"
	StateDoneSuccess   MergeState = "DONE_SUCCESS"
	StateDoneConflict  MergeState = "DONE_CONFLICT"
	StateDoneNoChange  MergeState = "DONE_NO_CHANGE"
	StateDoneError     MergeState = "DONE_ERROR"
)

// Terminal returns true for the DONE_* states
func (s MergeState) Terminal() bool {
	switch s {
	case StateDoneSuccess, StateDoneConflict, StateDoneNoChange, StateDoneError:
		return true
	}
	return false
}

// ErrorKind classifies a failed merge
type ErrorKind string

const (
	ErrorSchemaCorrupt  ErrorKind = "SchemaCorrupt"
	ErrorNotFound       ErrorKind = "NotFound"
	ErrorInvalidRequest ErrorKind = "InvalidRequest"
	ErrorExternalStore  ErrorKind = "ExternalStore"
	ErrorHeadMoved      ErrorKind = "HeadMoved"
	ErrorCancelled      ErrorKind = "Cancelled"
)

// MergeError describes why a merge ended in DONE_ERROR
type MergeError struct {
	Kind      ErrorKind `json:"kind"`
	Retryable bool      `json:"retryable"`
	Message   string    `json:"message"`
}

func (e *MergeError) Error() string {
	if e.Retryable {
		return fmt.Sprintf("merge failed (%s, retryable): %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("merge failed (%s): %s", e.Kind, e.Message)
}

// MergeStats summarizes the conflicts of a merge
type MergeStats struct {
	TotalConflicts int                  `json:"total_conflicts"`
	ByType         map[ConflictKind]int `json:"by_type"`
}

// MergeResult contains the outcome of a merge operation
type MergeResult struct {
	Status          MergeStatus    // Final status
	Strategy        MergeStrategy  // Strategy as requested (REBASE is a relabelled MERGE)
	MergeCommitID   string         // Empty unless a commit was made
	SourceVersionID string         // Source head the merge ran against
	TargetVersionID string         // Target head the merge ran against
	AncestorID      string         // Merge base
	Conflicts       []Conflict     // Every conflict detected, sorted
	Unresolved      []Conflict     // Conflicts left after auto-resolution
	AutoResolved    bool           // True if at least one conflict was resolved automatically
	MaxSeverity     Severity       // Highest severity among Conflicts
	Stats           MergeStats     // Conflict counts
	DurationMs      int64          // Wall time of the pipeline
	ResolvedSchema  *SchemaVersion // Candidate that was (or would be) committed
	Error           *MergeError    // Set when Status is ERROR
	States          []MergeState   // States visited, in order
}

// FinalState returns the last state the pipeline reached
func (r *MergeResult) FinalState() MergeState {
	if len(r.States) == 0 {
		return StateInit
	}
	return r.States[len(r.States)-1]
}

// ComputeStats fills Stats and MaxSeverity from Conflicts
func (r *MergeResult) ComputeStats() {
	r.Stats = MergeStats{
		TotalConflicts: len(r.Conflicts),
		ByType:         make(map[ConflictKind]int),
	}
	r.MaxSeverity = SeverityNone
	for _, c := range r.Conflicts {
		r.Stats.ByType[c.Kind()]++
		if s := c.Header().Severity; s > r.MaxSeverity {
			r.MaxSeverity = s
		}
	}
}
