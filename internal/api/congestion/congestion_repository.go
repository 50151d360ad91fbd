package congestion

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/daytrip-kr/go-daytrip/app/observability/metrics"
	"github.com/daytrip-kr/go-daytrip/internal/types"
)

// DB is the subset of pgxpool.Pool the repository needs. Narrowing to an
// interface lets tests substitute a pgxmock pool.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

var _ Repository = (*RepositoryImpl)(nil)

// Repository loads the static congestion reference table.
type Repository interface {
	GetAll(ctx context.Context) ([]types.CongestionRecord, error)
}

type RepositoryImpl struct {
	logger *slog.Logger
	db     DB
}

func NewRepository(db DB, logger *slog.Logger) *RepositoryImpl {
	return &RepositoryImpl{logger: logger, db: db}
}

// GetAll reads the whole congestion table. The table is small (one row per
// sub-district per hour bucket) and read once per snapshot refresh.
func (r *RepositoryImpl) GetAll(ctx context.Context) ([]types.CongestionRecord, error) {
	rows, err := r.db.Query(ctx, `
        SELECT province, district, sub_district, latitude, longitude, time_bucket, level
        FROM congestion_levels`)
	if err != nil {
		metrics.Get().DbQueryErrorsTotal.Add(ctx, 1)
		return nil, fmt.Errorf("querying congestion levels: %w", err)
	}
	defer rows.Close()

	var records []types.CongestionRecord
	for rows.Next() {
		var rec types.CongestionRecord
		var level int16
		if err := rows.Scan(&rec.Province, &rec.District, &rec.SubDistrict,
			&rec.Latitude, &rec.Longitude, &rec.Bucket, &level); err != nil {
			metrics.Get().DbQueryErrorsTotal.Add(ctx, 1)
			return nil, fmt.Errorf("scanning congestion row: %w", err)
		}
		// The column carries the ordinal directly. Values outside the
		// published range degrade to unknown rather than failing the load.
		if level >= int16(types.GradeRelaxed) && level <= int16(types.GradeVeryCrowded) {
			rec.Level = types.Grade(level)
		} else {
			rec.Level = types.GradeUnknown
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		metrics.Get().DbQueryErrorsTotal.Add(ctx, 1)
		return nil, fmt.Errorf("reading congestion rows: %w", err)
	}

	r.logger.DebugContext(ctx, "loaded congestion table", slog.Int("rows", len(records)))
	return records, nil
}
