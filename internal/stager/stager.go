package stager

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"chart-revisor/internal/models"
	"chart-revisor/internal/repository"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"
)

// ErrDuplicateChartInBatch means the caller handed in two revisions for the
// same chart. Nothing is written.
var ErrDuplicateChartInBatch = errors.New("duplicate chart in batch")

// Conflict is one chart with more than one live revision in the store.
type Conflict struct {
	ChartID     int64
	RevisionIDs []int64
}

// ConflictError reports charts violating the one-live-revision-per-chart
// invariant. When PostInsert is set the batch is already persisted and the
// listed charts must go to manual resolution, never automatic retry.
type ConflictError struct {
	Conflicts  []Conflict
	PostInsert bool
}

func (e *ConflictError) Error() string {
	parts := make([]string, len(e.Conflicts))
	for i, c := range e.Conflicts {
		parts[i] = fmt.Sprintf("chart %d (revisions %v)", c.ChartID, c.RevisionIDs)
	}
	stage := "pre-insert"
	if e.PostInsert {
		stage = "post-insert"
	}
	return fmt.Sprintf("concurrent revision conflict (%s): %s", stage, strings.Join(parts, ", "))
}

// Stager diffs transformed configs against originals and submits batches of
// suggested revisions with conflict detection.
type Stager struct {
	repo      repository.RevisionsRepo
	logger    *zap.Logger
	createdBy string
}

func New(repo repository.RevisionsRepo, createdBy string, logger *zap.Logger) *Stager {
	return &Stager{repo: repo, createdBy: createdBy, logger: logger}
}

// Diff reports whether two configs differ structurally. Comparison happens
// on the generic JSON form, so key order and representation details do not
// produce false positives.
func (s *Stager) Diff(a, b *models.ChartConfig) (bool, error) {
	am, err := a.AsMap()
	if err != nil {
		return false, err
	}
	bm, err := b.AsMap()
	if err != nil {
		return false, err
	}
	return !cmp.Equal(am, bm), nil
}

// Stage builds a pending revision for a chart, or nil when the transformed
// config is identical to the original. The suggested config's version is
// bumped by one.
func (s *Stager) Stage(chart models.Chart, newCfg *models.ChartConfig) (*models.SuggestedRevision, error) {
	changed, err := s.Diff(chart.Config, newCfg)
	if err != nil {
		return nil, fmt.Errorf("diff configs of chart %d: %w", chart.ID, err)
	}
	if !changed {
		return nil, nil
	}

	suggested, err := newCfg.Clone()
	if err != nil {
		return nil, fmt.Errorf("clone suggested config of chart %d: %w", chart.ID, err)
	}
	suggested.Version = chart.Config.Version + 1

	return &models.SuggestedRevision{
		ChartID:         chart.ID,
		OriginalConfig:  chart.Config,
		SuggestedConfig: suggested,
		Status:          models.StatusPending,
		CreatedBy:       s.createdBy,
	}, nil
}

// SubmitBatch persists a batch of revisions:
//  1. duplicate chart ids in the batch are rejected before any write;
//  2. a store already holding >1 live revision for any chart is corrupt, so
//     the whole submit aborts;
//  3. all rows go in as one transaction;
//  4. a re-check over just the inserted charts catches a concurrent writer
//     that raced the insert. The rows stay persisted; the conflicting
//     charts are reported for manual resolution.
//
// Uniqueness among live revisions spans two non-terminal statuses and so
// cannot be a declarative constraint; the stager writes optimistically and
// verifies, failing loudly instead of silently picking a winner.
func (s *Stager) SubmitBatch(ctx context.Context, revs []*models.SuggestedRevision) error {
	if len(revs) == 0 {
		return nil
	}

	seen := map[int64]bool{}
	chartIDs := make([]int64, 0, len(revs))
	for _, rev := range revs {
		if seen[rev.ChartID] {
			return fmt.Errorf("%w: chart %d", ErrDuplicateChartInBatch, rev.ChartID)
		}
		seen[rev.ChartID] = true
		chartIDs = append(chartIDs, rev.ChartID)
	}

	existing, err := s.repo.ConflictingChartIDs(ctx, nil)
	if err != nil {
		return fmt.Errorf("pre-insert conflict check: %w", err)
	}
	if len(existing) > 0 {
		return &ConflictError{Conflicts: conflictList(existing)}
	}

	if err := s.repo.InsertRevisions(ctx, revs); err != nil {
		return fmt.Errorf("insert revision batch: %w", err)
	}

	conflicted, err := s.repo.ConflictingChartIDs(ctx, chartIDs)
	if err != nil {
		return fmt.Errorf("post-insert conflict check: %w", err)
	}
	if len(conflicted) > 0 {
		for chartID, revIDs := range conflicted {
			s.logger.Warn("Concurrent revision conflict",
				zap.Int64("chart_id", chartID),
				zap.Int64s("revision_ids", revIDs),
			)
		}
		return &ConflictError{Conflicts: conflictList(conflicted), PostInsert: true}
	}

	s.logger.Info("Submitted revision batch", zap.Int("count", len(revs)))
	return nil
}

func conflictList(byChart map[int64][]int64) []Conflict {
	conflicts := make([]Conflict, 0, len(byChart))
	for chartID, revIDs := range byChart {
		conflicts = append(conflicts, Conflict{ChartID: chartID, RevisionIDs: revIDs})
	}
	sort.Slice(conflicts, func(i, j int) bool { return conflicts[i].ChartID < conflicts[j].ChartID })
	return conflicts
}
