package repository

import (
	"context"
	"errors"

	"chart-revisor/internal/models"
)

// ErrRevisionNotFound means no suggested revision row exists for the id.
var ErrRevisionNotFound = errors.New("suggested revision not found")

// ErrStaleRevision means a status update matched no row because the
// revision's status changed underneath the caller.
var ErrStaleRevision = errors.New("suggested revision status changed concurrently")

// ChartsRepo locates and loads chart rows.
type ChartsRepo interface {
	// FindChartsByVariableIDs returns every chart whose dimensions or map
	// tab reference one of ids.
	FindChartsByVariableIDs(ctx context.Context, ids []int) ([]models.Chart, error)
	// LoadCharts loads an explicit chart id set, bypassing discovery.
	LoadCharts(ctx context.Context, chartIDs []int64) ([]models.Chart, error)
}

// VariablesRepo resolves indicator metadata.
type VariablesRepo interface {
	// YearRanges bulk-fetches data coverage for a set of indicator ids.
	// Ids without a variables row are absent from the result.
	YearRanges(ctx context.Context, ids []int) ([]models.YearRange, error)
}

// RevisionsRepo persists suggested chart revisions.
type RevisionsRepo interface {
	// InsertRevisions inserts all rows in a single transaction and fills in
	// generated ids and timestamps.
	InsertRevisions(ctx context.Context, revs []*models.SuggestedRevision) error
	// ConflictingChartIDs returns, per chart, the ids of live (pending or
	// flagged) revisions for charts having more than one such row. A nil
	// chartIDs scans the whole table; otherwise the check is restricted to
	// the given charts.
	ConflictingChartIDs(ctx context.Context, chartIDs []int64) (map[int64][]int64, error)
	GetRevision(ctx context.Context, id int64) (*models.SuggestedRevision, error)
	// UpdateStatus moves a revision from one status to another, guarded by
	// the expected current status. ErrStaleRevision on a lost race.
	UpdateStatus(ctx context.Context, id int64, from, to models.RevisionStatus) error
}
