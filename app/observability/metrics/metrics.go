package metrics

import (
	"log"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// AppMetrics holds the application's metric instruments.
type AppMetrics struct {
	RecommendRequestsTotal   metric.Int64Counter
	RecommendDurationSeconds metric.Float64Histogram
	RoutesBuiltTotal         metric.Int64Counter
	ToursBuiltTotal          metric.Int64Counter
	ConversationsStarted     metric.Int64Counter
	GeocodeFailuresTotal     metric.Int64Counter
	DbQueryErrorsTotal       metric.Int64Counter
}

var (
	appMetrics *AppMetrics
	once       sync.Once
)

// InitAppMetrics builds the instruments once from the global meter provider.
// Must run after the meter provider is installed.
func InitAppMetrics() {
	once.Do(func() {
		meter := otel.GetMeterProvider().Meter("daytrip")
		var err error
		m := &AppMetrics{}

		m.RecommendRequestsTotal, err = meter.Int64Counter(
			"recommend_requests_total",
			metric.WithDescription("Total number of recommendation runs"),
			metric.WithUnit("{request}"),
		)
		if err != nil {
			log.Fatalf("metrics: failed to create recommend_requests_total: %v", err)
		}

		m.RecommendDurationSeconds, err = meter.Float64Histogram(
			"recommend_duration_seconds",
			metric.WithDescription("Duration of recommendation runs in seconds"),
			metric.WithUnit("s"),
		)
		if err != nil {
			log.Fatalf("metrics: failed to create recommend_duration_seconds: %v", err)
		}

		m.RoutesBuiltTotal, err = meter.Int64Counter(
			"routes_built_total",
			metric.WithDescription("Total number of route stages built"),
			metric.WithUnit("{route}"),
		)
		if err != nil {
			log.Fatalf("metrics: failed to create routes_built_total: %v", err)
		}

		m.ToursBuiltTotal, err = meter.Int64Counter(
			"tours_built_total",
			metric.WithDescription("Total number of walking tour stages built"),
			metric.WithUnit("{tour}"),
		)
		if err != nil {
			log.Fatalf("metrics: failed to create tours_built_total: %v", err)
		}

		m.ConversationsStarted, err = meter.Int64Counter(
			"conversations_started_total",
			metric.WithDescription("Total number of chat conversations started"),
			metric.WithUnit("{conversation}"),
		)
		if err != nil {
			log.Fatalf("metrics: failed to create conversations_started_total: %v", err)
		}

		m.GeocodeFailuresTotal, err = meter.Int64Counter(
			"geocode_failures_total",
			metric.WithDescription("Total number of regions the geocoder could not resolve"),
			metric.WithUnit("{failure}"),
		)
		if err != nil {
			log.Fatalf("metrics: failed to create geocode_failures_total: %v", err)
		}

		m.DbQueryErrorsTotal, err = meter.Int64Counter(
			"db_query_errors_total",
			metric.WithDescription("Total number of database query errors"),
			metric.WithUnit("{error}"),
		)
		if err != nil {
			log.Fatalf("metrics: failed to create db_query_errors_total: %v", err)
		}

		appMetrics = m
	})
}

// Get returns the instruments, initializing them against the current global
// meter provider on first use (a no-op provider outside of full startup).
func Get() *AppMetrics {
	if appMetrics == nil {
		InitAppMetrics()
	}
	return appMetrics
}
