package repository

import (
	"context"
	"database/sql"
	"fmt"

	"chart-revisor/internal/models"

	"github.com/lib/pq"
)

type PostgresVariablesRepo struct {
	db *sql.DB
}

func NewPostgresVariablesRepo(db *sql.DB) *PostgresVariablesRepo {
	return &PostgresVariablesRepo{db: db}
}

// YearRanges resolves data coverage for a set of indicators in one query.
// An indicator with a variables row but no data yet comes back with nil
// bounds; an id with no variables row at all is simply absent.
func (r *PostgresVariablesRepo) YearRanges(ctx context.Context, ids []int) ([]models.YearRange, error) {
	if len(ids) == 0 {
		return []models.YearRange{}, nil
	}

	intIDs := make([]int64, 0, len(ids))
	for _, id := range ids {
		intIDs = append(intIDs, int64(id))
	}

	query := `
		SELECT v.id, MIN(dv.year), MAX(dv.year)
		FROM variables v
		LEFT JOIN data_values dv ON dv."variableId" = v.id
		WHERE v.id = ANY($1)
		GROUP BY v.id`

	rows, err := r.db.QueryContext(ctx, query, pq.Array(intIDs))
	if err != nil {
		return nil, fmt.Errorf("fetch year ranges: %w", err)
	}
	defer rows.Close()

	ranges := []models.YearRange{}
	for rows.Next() {
		var (
			id       int64
			min, max sql.NullInt64
		)
		if err := rows.Scan(&id, &min, &max); err != nil {
			return nil, fmt.Errorf("scan year range row: %w", err)
		}
		yr := models.YearRange{IndicatorID: int(id)}
		if min.Valid {
			v := int(min.Int64)
			yr.MinYear = &v
		}
		if max.Valid {
			v := int(max.Int64)
			yr.MaxYear = &v
		}
		ranges = append(ranges, yr)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ranges, nil
}
