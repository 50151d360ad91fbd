package recommend

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/daytrip-kr/go-daytrip/internal/api/scoring"
	"github.com/daytrip-kr/go-daytrip/internal/geocode"
	"github.com/daytrip-kr/go-daytrip/internal/types"
)

var _ Service = (*ServiceImpl)(nil)

// Service builds route and walking-tour recommendations for a region and
// theme. All methods geocode the region first; a region the geocoder cannot
// resolve surfaces as *types.GeocodeFailedError, an unknown theme as
// *types.CategoryNotFoundError.
type Service interface {
	Recommend(ctx context.Context, region, theme string) ([]types.RouteStage, error)
	Tour(ctx context.Context, region, theme string) ([]types.TourStage, error)
	// RecommendAll runs routes and tours for every theme in one pass over the
	// data, concatenating results in theme order.
	RecommendAll(ctx context.Context, region string, themes []string) ([]types.RouteStage, []types.TourStage, error)
	// RankAreas scores every (district, sub-district, category) group by
	// review popularity, best first.
	RankAreas(ctx context.Context) ([]types.AreaScore, error)
}

type ServiceImpl struct {
	logger      *slog.Logger
	repo        Repository
	geocoder    geocode.Geocoder
	areaScorer  *scoring.Scorer
	placeScorer *scoring.Scorer
	params      Params
	modes       TransportModePolicy
}

func NewService(repo Repository, geocoder geocode.Geocoder, params Params, logger *slog.Logger) *ServiceImpl {
	params = params.withDefaults()
	method := scoring.MethodEntropy
	switch params.Scoring {
	case ScoringEqual:
		method = scoring.MethodEqual
	case ScoringFixed:
		method = scoring.MethodFixed
	}
	return &ServiceImpl{
		logger:   logger,
		repo:     repo,
		geocoder: geocoder,
		areaScorer: scoring.New(scoring.Config{
			Method:      scoring.MethodEntropy,
			Granularity: scoring.GranularityAreaCategory,
		}, logger),
		placeScorer: scoring.New(scoring.Config{
			Method:      method,
			Granularity: scoring.GranularityPlace,
		}, logger),
		params: params,
		modes:  AlternatingModes,
	}
}

// WithTransportModes swaps the leg-labelling policy. Meant for wiring a real
// transit lookup in place of the alternating placeholder.
func (s *ServiceImpl) WithTransportModes(modes TransportModePolicy) *ServiceImpl {
	if modes != nil {
		s.modes = modes
	}
	return s
}

func (s *ServiceImpl) Recommend(ctx context.Context, region, theme string) ([]types.RouteStage, error) {
	ctx, span := otel.Tracer("RecommendService").Start(ctx, "Recommend")
	defer span.End()
	span.SetAttributes(attribute.String("region", region), attribute.String("theme", theme))

	anchor, pool, err := s.prepare(ctx, region, theme)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return buildRoutes(ctx, anchor, pool, s.params, s.modes)
}

func (s *ServiceImpl) Tour(ctx context.Context, region, theme string) ([]types.TourStage, error) {
	ctx, span := otel.Tracer("RecommendService").Start(ctx, "Tour")
	defer span.End()
	span.SetAttributes(attribute.String("region", region), attribute.String("theme", theme))

	anchor, pool, err := s.prepare(ctx, region, theme)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return buildTour(ctx, anchor, pool, s.params)
}

func (s *ServiceImpl) RecommendAll(ctx context.Context, region string, themes []string) ([]types.RouteStage, []types.TourStage, error) {
	ctx, span := otel.Tracer("RecommendService").Start(ctx, "RecommendAll")
	defer span.End()
	span.SetAttributes(attribute.String("region", region), attribute.Int("themes", len(themes)))

	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	anchor, err := s.geocoder.Geocode(ctx, region)
	if err != nil {
		span.RecordError(err)
		return nil, nil, err
	}
	places, aggregates, reviews, err := s.fetch(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, nil, err
	}

	// One route build and one tour build per theme, over shared immutable
	// pools. Each goroutine writes only its own slot.
	routesByTheme := make([][]types.RouteStage, len(themes))
	toursByTheme := make([][]types.TourStage, len(themes))
	g, gctx := errgroup.WithContext(ctx)
	for i, theme := range themes {
		pool, err := s.assemblePool(places, aggregates, reviews, theme)
		if err != nil {
			span.RecordError(err)
			return nil, nil, err
		}
		g.Go(func() error {
			routes, err := buildRoutes(gctx, anchor, pool, s.params, s.modes)
			if err != nil {
				return err
			}
			routesByTheme[i] = routes
			return nil
		})
		g.Go(func() error {
			tours, err := buildTour(gctx, anchor, pool, s.params)
			if err != nil {
				return err
			}
			toursByTheme[i] = tours
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return nil, nil, err
	}

	var routes []types.RouteStage
	var tours []types.TourStage
	for i := range themes {
		routes = append(routes, routesByTheme[i]...)
		tours = append(tours, toursByTheme[i]...)
	}
	s.logger.InfoContext(ctx, "recommendation run complete",
		slog.String("region", region),
		slog.Int("themes", len(themes)),
		slog.Int("routes", len(routes)),
		slog.Int("tours", len(tours)))
	return routes, tours, nil
}

func (s *ServiceImpl) RankAreas(ctx context.Context) ([]types.AreaScore, error) {
	ctx, span := otel.Tracer("RecommendService").Start(ctx, "RankAreas")
	defer span.End()

	reviews, err := s.repo.GetReviews(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("fetching reviews: %w", err)
	}
	return s.areaScorer.Score(reviews), nil
}

// prepare geocodes the region, fetches the data set and assembles the
// theme-filtered candidate pool.
func (s *ServiceImpl) prepare(ctx context.Context, region, theme string) (geocode.Coordinate, []Candidate, error) {
	if err := ctx.Err(); err != nil {
		return geocode.Coordinate{}, nil, err
	}
	anchor, err := s.geocoder.Geocode(ctx, region)
	if err != nil {
		return geocode.Coordinate{}, nil, err
	}
	places, aggregates, reviews, err := s.fetch(ctx)
	if err != nil {
		return geocode.Coordinate{}, nil, err
	}
	pool, err := s.assemblePool(places, aggregates, reviews, theme)
	if err != nil {
		return geocode.Coordinate{}, nil, err
	}
	return anchor, pool, nil
}

// fetch loads places and aggregates, plus raw reviews when the configured
// scoring policy needs the full popularity pipeline.
func (s *ServiceImpl) fetch(ctx context.Context) ([]types.Place, map[string]AddressAggregate, []types.Review, error) {
	places, err := s.repo.GetPlaces(ctx)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("fetching places: %w", err)
	}
	aggregates, err := s.repo.GetAddressAggregates(ctx)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("fetching review aggregates: %w", err)
	}
	var reviews []types.Review
	if s.params.Scoring != ScoringSentiment {
		reviews, err = s.repo.GetReviews(ctx)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("fetching reviews: %w", err)
		}
	}
	return places, aggregates, reviews, nil
}

func (s *ServiceImpl) assemblePool(places []types.Place, aggregates map[string]AddressAggregate, reviews []types.Review, theme string) ([]Candidate, error) {
	pool, err := BuildPool(places, aggregates, theme)
	if err != nil {
		return nil, err
	}
	if s.params.Scoring != ScoringSentiment && len(reviews) > 0 {
		scores := s.placeScorer.Score(reviews)
		byAddress := make(map[string]float64, len(scores))
		for _, sc := range scores {
			byAddress[sc.Place] = sc.Popularity
		}
		OverrideScores(pool, byAddress)
	}
	return pool, nil
}
