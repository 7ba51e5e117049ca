package workflow

import (
	"context"
	"errors"
	"fmt"

	"chart-revisor/internal/models"
	"chart-revisor/internal/repository"

	"go.uber.org/zap"
)

// ErrInvalidTransition means the requested status change is not allowed by
// the revision state machine.
var ErrInvalidTransition = errors.New("invalid revision status transition")

// allowed transitions: pending -> approved/rejected/flagged,
// flagged -> approved/rejected. approved and rejected are terminal.
var transitions = map[models.RevisionStatus]map[models.RevisionStatus]bool{
	models.StatusPending: {
		models.StatusApproved: true,
		models.StatusRejected: true,
		models.StatusFlagged:  true,
	},
	models.StatusFlagged: {
		models.StatusApproved: true,
		models.StatusRejected: true,
	},
}

// CanTransition reports whether a revision may move from one status to
// another.
func CanTransition(from, to models.RevisionStatus) bool {
	return transitions[from][to]
}

// Workflow drives the approval state machine for staged revisions. Pushing
// an approved config live belongs to the admin API, not here; the workflow
// only guarantees an unambiguous, retrievable staged record.
type Workflow struct {
	repo   repository.RevisionsRepo
	logger *zap.Logger
}

func New(repo repository.RevisionsRepo, logger *zap.Logger) *Workflow {
	return &Workflow{repo: repo, logger: logger}
}

func (w *Workflow) Approve(ctx context.Context, revisionID int64) (*models.SuggestedRevision, error) {
	return w.transition(ctx, revisionID, models.StatusApproved)
}

func (w *Workflow) Reject(ctx context.Context, revisionID int64) (*models.SuggestedRevision, error) {
	return w.transition(ctx, revisionID, models.StatusRejected)
}

func (w *Workflow) Flag(ctx context.Context, revisionID int64) (*models.SuggestedRevision, error) {
	return w.transition(ctx, revisionID, models.StatusFlagged)
}

func (w *Workflow) transition(ctx context.Context, revisionID int64, to models.RevisionStatus) (*models.SuggestedRevision, error) {
	rev, err := w.repo.GetRevision(ctx, revisionID)
	if err != nil {
		return nil, err
	}
	if !CanTransition(rev.Status, to) {
		return nil, fmt.Errorf("%w: %s -> %s (revision %d)", ErrInvalidTransition, rev.Status, to, revisionID)
	}
	// The current status guards the update so a concurrent reviewer's
	// transition is not silently overwritten.
	if err := w.repo.UpdateStatus(ctx, revisionID, rev.Status, to); err != nil {
		return nil, err
	}
	w.logger.Info("Revision transitioned",
		zap.Int64("revision_id", revisionID),
		zap.String("from", string(rev.Status)),
		zap.String("to", string(to)),
	)
	rev.Status = to
	return rev, nil
}
