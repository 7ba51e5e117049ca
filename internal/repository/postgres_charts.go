package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"

	"chart-revisor/internal/models"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

type PostgresChartsRepo struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewPostgresChartsRepo(db *sql.DB, logger *zap.Logger) *PostgresChartsRepo {
	return &PostgresChartsRepo{db: db, logger: logger}
}

// FindChartsByVariableIDs matches charts through the chart_dimensions table
// plus a JSON scan of the map-tab binding. The map binding is compared as
// text because columnSlug stores the indicator id as a string.
func (r *PostgresChartsRepo) FindChartsByVariableIDs(ctx context.Context, ids []int) ([]models.Chart, error) {
	if len(ids) == 0 {
		return []models.Chart{}, nil
	}

	intIDs := make([]int64, 0, len(ids))
	strIDs := make([]string, 0, len(ids))
	for _, id := range ids {
		intIDs = append(intIDs, int64(id))
		strIDs = append(strIDs, strconv.Itoa(id))
	}

	query := `
		SELECT c.id, c.config
		FROM charts c
		WHERE c.id IN (
			SELECT cd."chartId" FROM chart_dimensions cd WHERE cd."variableId" = ANY($1)
			UNION
			SELECT c2.id FROM charts c2
			WHERE c2.config->'map'->>'variableId' = ANY($2)
			   OR c2.config->'map'->>'columnSlug' = ANY($2)
		)
		ORDER BY c.id`

	rows, err := r.db.QueryContext(ctx, query, pq.Array(intIDs), pq.Array(strIDs))
	if err != nil {
		return nil, fmt.Errorf("find charts by variable ids: %w", err)
	}
	defer rows.Close()

	return r.scanCharts(rows)
}

func (r *PostgresChartsRepo) LoadCharts(ctx context.Context, chartIDs []int64) ([]models.Chart, error) {
	if len(chartIDs) == 0 {
		return []models.Chart{}, nil
	}

	query := `SELECT c.id, c.config FROM charts c WHERE c.id = ANY($1) ORDER BY c.id`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(chartIDs))
	if err != nil {
		return nil, fmt.Errorf("load charts: %w", err)
	}
	defer rows.Close()

	return r.scanCharts(rows)
}

func (r *PostgresChartsRepo) scanCharts(rows *sql.Rows) ([]models.Chart, error) {
	charts := []models.Chart{}
	for rows.Next() {
		var (
			id      int64
			rawJSON []byte
		)
		if err := rows.Scan(&id, &rawJSON); err != nil {
			return nil, fmt.Errorf("scan chart row: %w", err)
		}
		cfg := &models.ChartConfig{}
		if err := json.Unmarshal(rawJSON, cfg); err != nil {
			return nil, fmt.Errorf("parse config of chart %d: %w", id, err)
		}
		// Some stored configs are missing id/version. Repair in memory from
		// the row id so downstream code can rely on both being set.
		if cfg.ID == 0 {
			r.logger.Warn("Chart config missing id, repairing from row id", zap.Int64("chart_id", id))
			cfg.ID = id
		}
		if cfg.Version == 0 {
			r.logger.Warn("Chart config missing version, defaulting to 1", zap.Int64("chart_id", id))
			cfg.Version = 1
		}
		charts = append(charts, models.Chart{ID: id, Config: cfg})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return charts, nil
}
