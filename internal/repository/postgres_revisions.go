package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"chart-revisor/internal/models"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

type PostgresRevisionsRepo struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewPostgresRevisionsRepo(db *sql.DB, logger *zap.Logger) *PostgresRevisionsRepo {
	return &PostgresRevisionsRepo{db: db, logger: logger}
}

// InsertRevisions writes the whole batch in one transaction. Generated ids
// and timestamps are written back into the passed revisions.
func (r *PostgresRevisionsRepo) InsertRevisions(ctx context.Context, revs []*models.SuggestedRevision) error {
	if len(revs) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert revisions: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO suggested_chart_revisions
			("chartId", "originalConfig", "suggestedConfig", status, "createdBy", "createdAt", "updatedAt")
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		RETURNING id, "createdAt", "updatedAt"`

	for _, rev := range revs {
		origJSON, err := json.Marshal(rev.OriginalConfig)
		if err != nil {
			return fmt.Errorf("marshal original config of chart %d: %w", rev.ChartID, err)
		}
		suggJSON, err := json.Marshal(rev.SuggestedConfig)
		if err != nil {
			return fmt.Errorf("marshal suggested config of chart %d: %w", rev.ChartID, err)
		}
		if err := tx.QueryRowContext(ctx, query,
			rev.ChartID, origJSON, suggJSON, string(rev.Status), rev.CreatedBy,
		).Scan(&rev.ID, &rev.CreatedAt, &rev.UpdatedAt); err != nil {
			return fmt.Errorf("insert revision for chart %d: %w", rev.ChartID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit insert revisions: %w", err)
	}
	r.logger.Info("Inserted suggested revisions", zap.Int("count", len(revs)))
	return nil
}

// ConflictingChartIDs finds charts with more than one live revision.
func (r *PostgresRevisionsRepo) ConflictingChartIDs(ctx context.Context, chartIDs []int64) (map[int64][]int64, error) {
	query := `
		SELECT "chartId", array_agg(id ORDER BY id)
		FROM suggested_chart_revisions
		WHERE status IN ('pending', 'flagged')
		  AND ($1::bigint[] IS NULL OR "chartId" = ANY($1))
		GROUP BY "chartId"
		HAVING COUNT(*) > 1`

	var scope any
	if chartIDs != nil {
		scope = pq.Array(chartIDs)
	}
	rows, err := r.db.QueryContext(ctx, query, scope)
	if err != nil {
		return nil, fmt.Errorf("query conflicting revisions: %w", err)
	}
	defer rows.Close()

	conflicts := map[int64][]int64{}
	for rows.Next() {
		var (
			chartID int64
			revIDs  pq.Int64Array
		)
		if err := rows.Scan(&chartID, &revIDs); err != nil {
			return nil, fmt.Errorf("scan conflict row: %w", err)
		}
		conflicts[chartID] = []int64(revIDs)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return conflicts, nil
}

func (r *PostgresRevisionsRepo) GetRevision(ctx context.Context, id int64) (*models.SuggestedRevision, error) {
	query := `
		SELECT id, "chartId", "originalConfig", "suggestedConfig", status, "createdBy", "createdAt", "updatedAt"
		FROM suggested_chart_revisions
		WHERE id = $1`

	var (
		rev      models.SuggestedRevision
		origJSON []byte
		suggJSON []byte
		status   string
	)
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&rev.ID, &rev.ChartID, &origJSON, &suggJSON, &status,
		&rev.CreatedBy, &rev.CreatedAt, &rev.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: id %d", ErrRevisionNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get revision %d: %w", id, err)
	}

	rev.Status = models.RevisionStatus(status)
	rev.OriginalConfig = &models.ChartConfig{}
	if err := json.Unmarshal(origJSON, rev.OriginalConfig); err != nil {
		return nil, fmt.Errorf("parse original config of revision %d: %w", id, err)
	}
	rev.SuggestedConfig = &models.ChartConfig{}
	if err := json.Unmarshal(suggJSON, rev.SuggestedConfig); err != nil {
		return nil, fmt.Errorf("parse suggested config of revision %d: %w", id, err)
	}
	return &rev, nil
}

// UpdateStatus transitions a revision, guarded by the expected current
// status so a concurrent reviewer cannot be silently overwritten.
func (r *PostgresRevisionsRepo) UpdateStatus(ctx context.Context, id int64, from, to models.RevisionStatus) error {
	query := `
		UPDATE suggested_chart_revisions
		SET status = $3, "updatedAt" = NOW()
		WHERE id = $1 AND status = $2`

	res, err := r.db.ExecContext(ctx, query, id, string(from), string(to))
	if err != nil {
		return fmt.Errorf("update revision %d status: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: revision %d no longer %s", ErrStaleRevision, id, from)
	}
	r.logger.Info("Updated revision status",
		zap.Int64("revision_id", id),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
	)
	return nil
}
