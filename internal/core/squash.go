package core

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/kilupskalvis/ovc/internal/graphstore"
	"github.com/kilupskalvis/ovc/internal/models"
)

// squashBranchPrefix names the temporary branches created by SQUASH merges
const squashBranchPrefix = "ovc/squash-"

// commitSquash commits the merged schema as a single version on a temporary
// branch cut from the target head, then fast-forwards the target to it. The
// temporary branch is deleted on every path, including cancellation.
func (o *Orchestrator) commitSquash(ctx context.Context, req MergeRequest, source, target, resolved *models.SchemaVersion) (commitID string, err error) {
	temp := squashBranchPrefix + uuid.NewString()
	if err := o.store.CreateBranch(ctx, temp, target.VersionID); err != nil {
		return "", fmt.Errorf("create squash branch: %w", err)
	}
	defer func() {
		if derr := o.store.DeleteBranch(context.WithoutCancel(ctx), temp); derr != nil {
			o.logger.Warn("failed to delete squash branch", "branch", temp, "error", derr)
		}
	}()

	squashed, err := o.store.CommitMerge(ctx, &graphstore.CommitRequest{
		Target:       temp,
		ExpectedHead: target.VersionID,
		Schema:       resolved,
		Author:       req.Author,
		Message:      fmt.Sprintf("%s (squashed from %s)", req.Message, source.ShortID()),
	})
	if err != nil {
		return "", err
	}

	return o.store.CommitMerge(ctx, &graphstore.CommitRequest{
		Target:        req.Target,
		ExpectedHead:  target.VersionID,
		FastForwardTo: squashed,
		Author:        req.Author,
		Message:       req.Message,
	})
}
