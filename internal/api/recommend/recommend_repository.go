package recommend

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
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var _ Repository = (*RepositoryImpl)(nil)

// Repository reads the place and review reference tables.
type Repository interface {
	GetPlaces(ctx context.Context) ([]types.Place, error)
	GetReviews(ctx context.Context) ([]types.Review, error)
	// GetAddressAggregates returns, per administrative address, the mean
	// review positivity and the distinct review keywords joined into one
	// string.
	GetAddressAggregates(ctx context.Context) (map[string]AddressAggregate, error)
}

// AddressAggregate is the per-address review summary joined onto the place
// table by the candidate pool builder.
type AddressAggregate struct {
	MeanPositivity float64
	Keywords       string
}

type RepositoryImpl struct {
	logger *slog.Logger
	db     DB
}

func NewRepository(db DB, logger *slog.Logger) *RepositoryImpl {
	return &RepositoryImpl{logger: logger, db: db}
}

func (r *RepositoryImpl) GetPlaces(ctx context.Context) ([]types.Place, error) {
	rows, err := r.db.Query(ctx, `
        SELECT title, cat1, COALESCE(cat2, ''), COALESCE(cat3, ''),
               latitude, longitude, address, COALESCE(closest_station, '')
        FROM places`)
	if err != nil {
		metrics.Get().DbQueryErrorsTotal.Add(ctx, 1)
		return nil, fmt.Errorf("querying places: %w", err)
	}
	defer rows.Close()

	var places []types.Place
	for rows.Next() {
		var p types.Place
		if err := rows.Scan(&p.Title, &p.Cat1, &p.Cat2, &p.Cat3,
			&p.Latitude, &p.Longitude, &p.Address, &p.ClosestStation); err != nil {
			metrics.Get().DbQueryErrorsTotal.Add(ctx, 1)
			return nil, fmt.Errorf("scanning place row: %w", err)
		}
		places = append(places, p)
	}
	if err := rows.Err(); err != nil {
		metrics.Get().DbQueryErrorsTotal.Add(ctx, 1)
		return nil, fmt.Errorf("reading place rows: %w", err)
	}
	return places, nil
}

func (r *RepositoryImpl) GetReviews(ctx context.Context) ([]types.Review, error) {
	rows, err := r.db.Query(ctx, `
        SELECT address, COALESCE(district, ''), COALESCE(sub_district, ''),
               COALESCE(category, ''), rating, sentiment, sentiment_prob,
               COALESCE(content, '')
        FROM reviews`)
	if err != nil {
		metrics.Get().DbQueryErrorsTotal.Add(ctx, 1)
		return nil, fmt.Errorf("querying reviews: %w", err)
	}
	defer rows.Close()

	var reviews []types.Review
	for rows.Next() {
		var rv types.Review
		var sentiment string
		if err := rows.Scan(&rv.Address, &rv.District, &rv.SubDistrict,
			&rv.Category, &rv.Rating, &sentiment, &rv.SentimentProb, &rv.Content); err != nil {
			metrics.Get().DbQueryErrorsTotal.Add(ctx, 1)
			return nil, fmt.Errorf("scanning review row: %w", err)
		}
		rv.Sentiment = types.Sentiment(sentiment)
		reviews = append(reviews, rv)
	}
	if err := rows.Err(); err != nil {
		metrics.Get().DbQueryErrorsTotal.Add(ctx, 1)
		return nil, fmt.Errorf("reading review rows: %w", err)
	}
	return reviews, nil
}

func (r *RepositoryImpl) GetAddressAggregates(ctx context.Context) (map[string]AddressAggregate, error) {
	rows, err := r.db.Query(ctx, `
        SELECT address,
               AVG(CASE sentiment
                   WHEN 'positive' THEN COALESCE(sentiment_prob, 0.5)
                   WHEN 'negative' THEN 1 - COALESCE(sentiment_prob, 0.5)
                   ELSE 0.5
               END),
               COALESCE(STRING_AGG(DISTINCT NULLIF(TRIM(content), ''), ' '), '')
        FROM reviews
        GROUP BY address`)
	if err != nil {
		metrics.Get().DbQueryErrorsTotal.Add(ctx, 1)
		return nil, fmt.Errorf("querying review aggregates: %w", err)
	}
	defer rows.Close()

	aggregates := make(map[string]AddressAggregate)
	for rows.Next() {
		var address string
		var agg AddressAggregate
		if err := rows.Scan(&address, &agg.MeanPositivity, &agg.Keywords); err != nil {
			metrics.Get().DbQueryErrorsTotal.Add(ctx, 1)
			return nil, fmt.Errorf("scanning review aggregate row: %w", err)
		}
		aggregates[address] = agg
	}
	if err := rows.Err(); err != nil {
		metrics.Get().DbQueryErrorsTotal.Add(ctx, 1)
		return nil, fmt.Errorf("reading review aggregate rows: %w", err)
	}

	r.logger.DebugContext(ctx, "loaded review aggregates", slog.Int("addresses", len(aggregates)))
	return aggregates, nil
}
