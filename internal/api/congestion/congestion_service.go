package congestion

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync/atomic"

	"go.opentelemetry.io/otel"

	"github.com/daytrip-kr/go-daytrip/internal/geo"
	"github.com/daytrip-kr/go-daytrip/internal/types"
)

var _ Service = (*ServiceImpl)(nil)

// Service answers congestion-grade questions against a loaded snapshot of the
// reference table. Every lookup is best-effort: a miss yields GradeUnknown,
// never an error.
type Service interface {
	// GradeAt returns the grade for one area at a single time bucket.
	GradeAt(area types.AreaKey, bucket string) types.Grade
	// GradeOver averages the ordinal grades over several buckets and maps the
	// rounded mean back to a grade.
	GradeOver(area types.AreaKey, buckets []string) types.Grade
	// RecommendAt filters areas down to those graded relaxed or normal over
	// the given buckets.
	RecommendAt(areas []types.AreaKey, buckets []string) []GradedArea
	// DayProfile returns every bucket row for one area, sorted by bucket.
	DayProfile(area types.AreaKey) []types.CongestionRecord
	// AtBucket returns every area's row for one bucket.
	AtBucket(bucket string) []types.CongestionRecord
	// NearestDayProfile finds the area closest to the coordinate and returns
	// its day profile.
	NearestDayProfile(lat, lon float64) (types.AreaKey, []types.CongestionRecord)
	// Refresh reloads the snapshot from the repository, swapping it atomically.
	Refresh(ctx context.Context) error
}

// GradedArea pairs an area with its evaluated grade.
type GradedArea struct {
	Area  types.AreaKey `json:"area"`
	Grade types.Grade   `json:"grade"`
	Label string        `json:"label"`
}

type areaInfo struct {
	lat, lon float64
	rows     []types.CongestionRecord
}

// snapshot is an immutable view of the congestion table. Refresh builds a new
// one and swaps the pointer, so in-flight lookups keep a consistent view.
type snapshot struct {
	byArea   map[types.AreaKey]*areaInfo
	byBucket map[string][]types.CongestionRecord
}

type ServiceImpl struct {
	logger *slog.Logger
	repo   Repository
	snap   atomic.Pointer[snapshot]
}

// NewService loads the initial snapshot eagerly; a service without data would
// answer GradeUnknown to everything, which hides load failures.
func NewService(ctx context.Context, repo Repository, logger *slog.Logger) (*ServiceImpl, error) {
	s := &ServiceImpl{logger: logger, repo: repo}
	if err := s.Refresh(ctx); err != nil {
		return nil, fmt.Errorf("loading initial congestion snapshot: %w", err)
	}
	return s, nil
}

func (s *ServiceImpl) Refresh(ctx context.Context) error {
	ctx, span := otel.Tracer("CongestionService").Start(ctx, "Refresh")
	defer span.End()

	records, err := s.repo.GetAll(ctx)
	if err != nil {
		span.RecordError(err)
		return err
	}

	snap := &snapshot{
		byArea:   make(map[types.AreaKey]*areaInfo),
		byBucket: make(map[string][]types.CongestionRecord),
	}
	for _, rec := range records {
		key := types.AreaKey{Province: rec.Province, District: rec.District, SubDistrict: rec.SubDistrict}
		info, ok := snap.byArea[key]
		if !ok {
			info = &areaInfo{lat: rec.Latitude, lon: rec.Longitude}
			snap.byArea[key] = info
		}
		info.rows = append(info.rows, rec)
		snap.byBucket[rec.Bucket] = append(snap.byBucket[rec.Bucket], rec)
	}
	for _, info := range snap.byArea {
		sort.Slice(info.rows, func(i, j int) bool { return info.rows[i].Bucket < info.rows[j].Bucket })
	}

	s.snap.Store(snap)
	s.logger.InfoContext(ctx, "congestion snapshot refreshed",
		slog.Int("areas", len(snap.byArea)), slog.Int("rows", len(records)))
	return nil
}

func (s *ServiceImpl) GradeAt(area types.AreaKey, bucket string) types.Grade {
	info, ok := s.snap.Load().byArea[area]
	if !ok {
		return types.GradeUnknown
	}
	for _, rec := range info.rows {
		if rec.Bucket == bucket {
			return rec.Level
		}
	}
	return types.GradeUnknown
}

func (s *ServiceImpl) GradeOver(area types.AreaKey, buckets []string) types.Grade {
	info, ok := s.snap.Load().byArea[area]
	if !ok {
		return types.GradeUnknown
	}
	wanted := make(map[string]bool, len(buckets))
	for _, b := range buckets {
		wanted[b] = true
	}

	var sum, n int
	for _, rec := range info.rows {
		if wanted[rec.Bucket] && rec.Level != types.GradeUnknown {
			sum += int(rec.Level)
			n++
		}
	}
	if n == 0 {
		return types.GradeUnknown
	}

	mean := int(math.Round(float64(sum) / float64(n)))
	if mean < int(types.GradeRelaxed) {
		mean = int(types.GradeRelaxed)
	}
	if mean > int(types.GradeVeryCrowded) {
		mean = int(types.GradeVeryCrowded)
	}
	return types.Grade(mean)
}

func (s *ServiceImpl) RecommendAt(areas []types.AreaKey, buckets []string) []GradedArea {
	var out []GradedArea
	for _, area := range areas {
		var g types.Grade
		if len(buckets) == 1 {
			g = s.GradeAt(area, buckets[0])
		} else {
			g = s.GradeOver(area, buckets)
		}
		if g == types.GradeRelaxed || g == types.GradeNormal {
			out = append(out, GradedArea{Area: area, Grade: g, Label: g.String()})
		}
	}
	return out
}

func (s *ServiceImpl) DayProfile(area types.AreaKey) []types.CongestionRecord {
	info, ok := s.snap.Load().byArea[area]
	if !ok {
		return nil
	}
	return append([]types.CongestionRecord(nil), info.rows...)
}

func (s *ServiceImpl) AtBucket(bucket string) []types.CongestionRecord {
	rows := s.snap.Load().byBucket[bucket]
	return append([]types.CongestionRecord(nil), rows...)
}

func (s *ServiceImpl) NearestDayProfile(lat, lon float64) (types.AreaKey, []types.CongestionRecord) {
	snap := s.snap.Load()
	var (
		bestKey  types.AreaKey
		bestDist = math.Inf(1)
		found    bool
	)
	for key, info := range snap.byArea {
		d := geo.Haversine(lat, lon, info.lat, info.lon)
		if d < bestDist {
			bestDist = d
			bestKey = key
			found = true
		}
	}
	if !found {
		return types.AreaKey{}, nil
	}
	return bestKey, s.DayProfile(bestKey)
}
