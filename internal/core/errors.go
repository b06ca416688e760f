package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/kilupskalvis/ovc/internal/graphstore"
	"github.com/kilupskalvis/ovc/internal/models"
)

// ErrNoCommonAncestor is returned when two versions share no lineage
var ErrNoCommonAncestor = errors.New("no common ancestor")

// SchemaCorruptError reports a version whose lineage cannot be resolved
type SchemaCorruptError struct {
	VersionID string
	Reason    string
	Err       error
}

func (e *SchemaCorruptError) Error() string {
	msg := fmt.Sprintf("schema version %s is corrupt: %s", e.VersionID, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *SchemaCorruptError) Unwrap() error {
	return e.Err
}

// isCancellation returns true if err comes from a cancelled or expired context
func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// toMergeError maps a pipeline failure onto the error kinds reported in a MergeResult
func toMergeError(err error) *models.MergeError {
	var corrupt *SchemaCorruptError
	switch {
	case isCancellation(err):
		return &models.MergeError{Kind: models.ErrorCancelled, Message: err.Error()}
	case errors.As(err, &corrupt), errors.Is(err, ErrNoCommonAncestor):
		return &models.MergeError{Kind: models.ErrorSchemaCorrupt, Message: err.Error()}
	case errors.Is(err, graphstore.ErrHeadMoved):
		return &models.MergeError{Kind: models.ErrorHeadMoved, Retryable: true, Message: err.Error()}
	case errors.Is(err, graphstore.ErrRefNotFound):
		return &models.MergeError{Kind: models.ErrorNotFound, Message: err.Error()}
	case errors.Is(err, graphstore.ErrInvalidCommit), errors.Is(err, errInvalidRequest):
		return &models.MergeError{Kind: models.ErrorInvalidRequest, Message: err.Error()}
	default:
		return &models.MergeError{Kind: models.ErrorExternalStore, Retryable: true, Message: err.Error()}
	}
}

var errInvalidRequest = errors.New("invalid merge request")
