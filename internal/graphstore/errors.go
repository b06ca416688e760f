package graphstore

import (
	"errors"
	"fmt"
)

// Sentinel errors for expected conditions.
var (
	ErrRefNotFound   = errors.New("ref not found")
	ErrBranchExists  = errors.New("branch already exists")
	ErrHeadMoved     = errors.New("branch head moved")
	ErrInvalidCommit = errors.New("invalid commit request")
)

// ExternalConflict is returned by CommitMerge when the store's own structural
// checks reject the schema being committed. Payload is a JSON array of
// ConflictReport entries, but callers must treat it as opaque bytes.
type ExternalConflict struct {
	Payload []byte
}

func (e *ExternalConflict) Error() string {
	return fmt.Sprintf("store rejected merge: structural conflict (%d bytes of detail)", len(e.Payload))
}

// ConflictReport is one structural problem found by the store
type ConflictReport struct {
	Type    string `json:"type"`
	Entity  string `json:"entity,omitempty"`
	Field   string `json:"field,omitempty"`
	ValueA  string `json:"value_a,omitempty"`
	ValueB  string `json:"value_b,omitempty"`
	Message string `json:"message,omitempty"`
}

// StoreError wraps a failure of the underlying storage engine
type StoreError struct {
	Op        string
	Err       error
	Transient bool
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}
