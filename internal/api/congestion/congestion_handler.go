package congestion

import (
	"errors"
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/daytrip-kr/go-daytrip/internal/api"
	"github.com/daytrip-kr/go-daytrip/internal/geocode"
	"github.com/daytrip-kr/go-daytrip/internal/types"
)

type HandlerImpl struct {
	service  Service
	geocoder geocode.Geocoder
	logger   *slog.Logger
}

func NewHandlerImpl(service Service, geocoder geocode.Geocoder, logger *slog.Logger) *HandlerImpl {
	return &HandlerImpl{service: service, geocoder: geocoder, logger: logger}
}

// dayProfilePoint is one chart point of the congestion overlay.
type dayProfilePoint struct {
	Bucket string `json:"bucket"`
	Level  int    `json:"level"`
	Label  string `json:"label"`
}

type dayProfileResponse struct {
	Area   types.AreaKey     `json:"area"`
	Points []dayProfilePoint `json:"points"`
}

// GetDayProfile returns the full-day congestion profile of the sub-district
// nearest to the geocoded region, as chart-ready JSON.
func (h *HandlerImpl) GetDayProfile(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("CongestionHandler").Start(r.Context(), "GetDayProfile", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/congestion/day"),
	))
	defer span.End()

	l := h.logger.With(slog.String("handler", "GetDayProfile"))

	region := r.URL.Query().Get("region")
	if region == "" {
		api.ErrorResponse(w, r, http.StatusBadRequest, "region query parameter is required")
		return
	}

	coord, err := h.geocoder.Geocode(ctx, region)
	if err != nil {
		var geocodeErr *types.GeocodeFailedError
		if errors.As(err, &geocodeErr) {
			l.WarnContext(ctx, "region not geocodable", slog.String("region", region))
			api.ErrorResponse(w, r, http.StatusUnprocessableEntity, geocodeErr.Error())
			return
		}
		l.ErrorContext(ctx, "geocode failed", slog.Any("error", err))
		span.RecordError(err)
		api.ErrorResponse(w, r, http.StatusBadGateway, "geocoding service unavailable")
		return
	}

	area, rows := h.service.NearestDayProfile(coord.Latitude, coord.Longitude)
	if len(rows) == 0 {
		api.ErrorResponse(w, r, http.StatusNotFound, "no congestion data near this region")
		return
	}

	resp := dayProfileResponse{Area: area, Points: make([]dayProfilePoint, 0, len(rows))}
	for _, rec := range rows {
		resp.Points = append(resp.Points, dayProfilePoint{
			Bucket: rec.Bucket,
			Level:  int(rec.Level),
			Label:  rec.Level.String(),
		})
	}
	api.WriteJSONResponse(w, r, http.StatusOK, resp)
}

// GetAtBucket returns every area's grade for one time bucket.
func (h *HandlerImpl) GetAtBucket(w http.ResponseWriter, r *http.Request) {
	_, span := otel.Tracer("CongestionHandler").Start(r.Context(), "GetAtBucket", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/congestion/at"),
	))
	defer span.End()

	bucket := r.URL.Query().Get("bucket")
	if bucket == "" {
		api.ErrorResponse(w, r, http.StatusBadRequest, "bucket query parameter is required")
		return
	}

	rows := h.service.AtBucket(bucket)
	out := make([]GradedArea, 0, len(rows))
	for _, rec := range rows {
		out = append(out, GradedArea{
			Area:  types.AreaKey{Province: rec.Province, District: rec.District, SubDistrict: rec.SubDistrict},
			Grade: rec.Level,
			Label: rec.Level.String(),
		})
	}
	api.WriteJSONResponse(w, r, http.StatusOK, out)
}
