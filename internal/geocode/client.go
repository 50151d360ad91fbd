package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/daytrip-kr/go-daytrip/internal/types"
)

// Coordinate is a geocoded (latitude, longitude) pair in degrees.
type Coordinate struct {
	Latitude  float64
	Longitude float64
}

// Geocoder resolves a free-text region name to a coordinate.
type Geocoder interface {
	Geocode(ctx context.Context, region string) (Coordinate, error)
}

var _ Geocoder = (*Client)(nil)

// Client calls a Kakao-style keyword-search endpoint and caches results per
// region name. One attempt per call, bounded by the configured timeout; no
// retry (documented behaviour, the chat layer surfaces the failure).
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	cache      *cache.Cache
	logger     *slog.Logger
}

// NewClient builds a geocoder client. cacheTTL bounds how long a resolved
// coordinate is reused; there is no explicit invalidation beyond expiry.
func NewClient(baseURL, apiKey string, timeout, cacheTTL time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if cacheTTL <= 0 {
		cacheTTL = 15 * time.Minute
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		apiKey:     apiKey,
		cache:      cache.New(cacheTTL, 2*cacheTTL),
		logger:     logger,
	}
}

// keywordResponse mirrors the documents array of the keyword-search API.
// Coordinates arrive as strings ("y" = latitude, "x" = longitude).
type keywordResponse struct {
	Documents []struct {
		Y string `json:"y"`
		X string `json:"x"`
	} `json:"documents"`
}

// Geocode resolves region to a coordinate, or a GeocodeFailedError when the
// search returns no documents.
func (c *Client) Geocode(ctx context.Context, region string) (Coordinate, error) {
	if cached, found := c.cache.Get(region); found {
		if coord, ok := cached.(Coordinate); ok {
			c.logger.DebugContext(ctx, "geocode cache hit", slog.String("region", region))
			return coord, nil
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL, nil)
	if err != nil {
		return Coordinate{}, fmt.Errorf("geocode: building request: %w", err)
	}
	q := url.Values{}
	q.Set("query", region)
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Authorization", "KakaoAK "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Coordinate{}, fmt.Errorf("geocode: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Coordinate{}, fmt.Errorf("geocode: unexpected status %d", resp.StatusCode)
	}

	var body keywordResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Coordinate{}, fmt.Errorf("geocode: decoding response: %w", err)
	}
	if len(body.Documents) == 0 {
		return Coordinate{}, &types.GeocodeFailedError{Region: region}
	}

	first := body.Documents[0]
	lat, err := strconv.ParseFloat(first.Y, 64)
	if err != nil {
		return Coordinate{}, fmt.Errorf("geocode: parsing latitude %q: %w", first.Y, err)
	}
	lon, err := strconv.ParseFloat(first.X, 64)
	if err != nil {
		return Coordinate{}, fmt.Errorf("geocode: parsing longitude %q: %w", first.X, err)
	}

	coord := Coordinate{Latitude: lat, Longitude: lon}
	c.cache.Set(region, coord, cache.DefaultExpiration)
	c.logger.InfoContext(ctx, "region geocoded",
		slog.String("region", region),
		slog.Float64("lat", lat),
		slog.Float64("lon", lon))
	return coord, nil
}
