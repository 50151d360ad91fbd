package recommend

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/daytrip-kr/go-daytrip/app/observability/metrics"
	"github.com/daytrip-kr/go-daytrip/internal/api"
	"github.com/daytrip-kr/go-daytrip/internal/types"
)

type HandlerImpl struct {
	service Service
	logger  *slog.Logger
}

func NewHandlerImpl(service Service, logger *slog.Logger) *HandlerImpl {
	return &HandlerImpl{service: service, logger: logger}
}

type recommendRequest struct {
	Region string   `json:"region"`
	Themes []string `json:"themes"`
}

type recommendResponse struct {
	Region string             `json:"region"`
	Routes []types.RouteStage `json:"routes"`
	Tours  []types.TourStage  `json:"tours"`
}

// CreateRecommendation builds routes and tours for a region and theme list in
// one request. Unresolvable regions and unknown themes are client errors.
func (h *HandlerImpl) CreateRecommendation(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("RecommendHandler").Start(r.Context(), "CreateRecommendation", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/recommend"),
	))
	defer span.End()

	l := h.logger.With(slog.String("handler", "CreateRecommendation"))

	var req recommendRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.Region == "" {
		api.ErrorResponse(w, r, http.StatusBadRequest, "region is required")
		return
	}
	if len(req.Themes) == 0 {
		api.ErrorResponse(w, r, http.StatusBadRequest, "at least one theme is required")
		return
	}

	m := metrics.Get()
	m.RecommendRequestsTotal.Add(ctx, 1)
	start := time.Now()

	routes, tours, err := h.service.RecommendAll(ctx, req.Region, req.Themes)
	m.RecommendDurationSeconds.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		var geocodeErr *types.GeocodeFailedError
		var themeErr *types.CategoryNotFoundError
		switch {
		case errors.As(err, &geocodeErr):
			l.WarnContext(ctx, "region not geocodable", slog.String("region", req.Region))
			m.GeocodeFailuresTotal.Add(ctx, 1)
			api.ErrorResponse(w, r, http.StatusUnprocessableEntity, geocodeErr.Error())
		case errors.As(err, &themeErr):
			l.WarnContext(ctx, "unknown theme", slog.String("theme", themeErr.Theme))
			api.ErrorResponse(w, r, http.StatusUnprocessableEntity, themeErr.Error())
		default:
			l.ErrorContext(ctx, "recommendation failed", slog.Any("error", err))
			span.RecordError(err)
			api.ErrorResponse(w, r, http.StatusInternalServerError, "failed to build recommendations")
		}
		return
	}

	m.RoutesBuiltTotal.Add(ctx, int64(len(routes)))
	m.ToursBuiltTotal.Add(ctx, int64(len(tours)))
	if routes == nil {
		routes = []types.RouteStage{}
	}
	if tours == nil {
		tours = []types.TourStage{}
	}
	api.WriteJSONResponse(w, r, http.StatusOK, recommendResponse{
		Region: req.Region,
		Routes: routes,
		Tours:  tours,
	})
}

// GetPopularAreas ranks every area and category pair by review popularity.
func (h *HandlerImpl) GetPopularAreas(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("RecommendHandler").Start(r.Context(), "GetPopularAreas", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/areas/popular"),
	))
	defer span.End()

	scores, err := h.service.RankAreas(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "area ranking failed", slog.Any("error", err))
		span.RecordError(err)
		api.ErrorResponse(w, r, http.StatusInternalServerError, "failed to rank areas")
		return
	}
	if scores == nil {
		scores = []types.AreaScore{}
	}
	api.WriteJSONResponse(w, r, http.StatusOK, scores)
}
