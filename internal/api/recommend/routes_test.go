package recommend

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daytrip-kr/go-daytrip/internal/geo"
	"github.com/daytrip-kr/go-daytrip/internal/geocode"
	"github.com/daytrip-kr/go-daytrip/internal/types"
)

var testAnchor = geocode.Coordinate{Latitude: 37.5665, Longitude: 126.978}

const degPerKmLat = 180 / (math.Pi * geo.EarthRadiusKm)

// syntheticPool scatters n scored candidates within spreadKm of the anchor.
// Deterministic seed so failures reproduce.
func syntheticPool(n int, spreadKm float64) []Candidate {
	rng := rand.New(rand.NewSource(42))
	degPerKmLon := degPerKmLat / math.Cos(testAnchor.Latitude*math.Pi/180)

	pool := make([]Candidate, n)
	for i := range pool {
		dLatKm := rng.Float64()*2*spreadKm - spreadKm
		dLonKm := rng.Float64()*2*spreadKm - spreadKm
		pool[i] = Candidate{
			Place: types.Place{
				Title:          fmt.Sprintf("place-%02d", i),
				Cat1:           "food",
				Latitude:       testAnchor.Latitude + dLatKm*degPerKmLat,
				Longitude:      testAnchor.Longitude + dLonKm*degPerKmLon,
				Address:        fmt.Sprintf("addr-%02d", i),
				ClosestStation: fmt.Sprintf("station-%02d", i),
			},
			Score:    rng.Float64(),
			HasScore: true,
		}
	}
	return pool
}

func splitCompanions(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ", ")
}

func poolByTitle(pool []Candidate) map[string]Candidate {
	m := make(map[string]Candidate, len(pool))
	for _, c := range pool {
		m[c.Place.Title] = c
	}
	return m
}

func TestBuildRoutes_NoCompanionReuse(t *testing.T) {
	pool := syntheticPool(40, 12)

	routes, err := buildRoutes(context.Background(), testAnchor, pool, Params{}, nil)
	require.NoError(t, err)
	require.Len(t, routes, 10)

	seen := make(map[string]bool)
	for _, rt := range routes {
		for _, title := range splitCompanions(rt.Companions1) {
			assert.False(t, seen[title], "companion %s recommended twice", title)
			seen[title] = true
		}
		for _, title := range splitCompanions(rt.Companions2) {
			assert.False(t, seen[title], "companion %s recommended twice", title)
			seen[title] = true
		}
	}
}

func TestBuildRoutes_CompanionsWithinBand(t *testing.T) {
	pool := syntheticPool(40, 12)
	byTitle := poolByTitle(pool)
	p := Params{BandLowKm: 5, BandHighKm: 10}

	routes, err := buildRoutes(context.Background(), testAnchor, pool, p, nil)
	require.NoError(t, err)

	for _, rt := range routes {
		stage := byTitle[rt.StageName]
		round1 := splitCompanions(rt.Companions1)
		for _, title := range round1 {
			c := byTitle[title]
			d := geo.Haversine(stage.Place.Latitude, stage.Place.Longitude, c.Place.Latitude, c.Place.Longitude)
			assert.GreaterOrEqual(t, d, 5.0, "round 1 companion %s too close to %s", title, rt.StageName)
			assert.LessOrEqual(t, d, 10.0, "round 1 companion %s too far from %s", title, rt.StageName)
		}
		if len(round1) == 0 {
			assert.Empty(t, rt.Companions2, "round 2 without a round 1 center")
			continue
		}
		center := byTitle[round1[0]]
		for _, title := range splitCompanions(rt.Companions2) {
			c := byTitle[title]
			d := geo.Haversine(center.Place.Latitude, center.Place.Longitude, c.Place.Latitude, c.Place.Longitude)
			assert.GreaterOrEqual(t, d, 5.0)
			assert.LessOrEqual(t, d, 10.0)
		}
	}
}

func TestBuildRoutes_RoundSizeBounded(t *testing.T) {
	pool := syntheticPool(40, 12)

	routes, err := buildRoutes(context.Background(), testAnchor, pool, Params{RoundSize: 3}, nil)
	require.NoError(t, err)

	for _, rt := range routes {
		assert.LessOrEqual(t, len(splitCompanions(rt.Companions1)), 3)
		assert.LessOrEqual(t, len(splitCompanions(rt.Companions2)), 3)
	}
}

func TestBuildRoutes_StagesOrderedByScore(t *testing.T) {
	pool := syntheticPool(40, 12)
	byTitle := poolByTitle(pool)

	routes, err := buildRoutes(context.Background(), testAnchor, pool, Params{}, nil)
	require.NoError(t, err)
	require.NotEmpty(t, routes)

	for i := 1; i < len(routes); i++ {
		prev := byTitle[routes[i-1].StageName].Score
		cur := byTitle[routes[i].StageName].Score
		assert.GreaterOrEqual(t, prev, cur, "stages not sorted by score at %d", i)
	}
}

func TestBuildRoutes_AlternatingModes(t *testing.T) {
	pool := syntheticPool(20, 12)

	routes, err := buildRoutes(context.Background(), testAnchor, pool, Params{}, nil)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(routes), 2)

	assert.Equal(t, "subway", routes[0].Mode1)
	assert.Equal(t, "bus", routes[0].Mode2)
	assert.Equal(t, "bus", routes[1].Mode1)
	assert.Equal(t, "subway", routes[1].Mode2)
}

func TestBuildRoutes_FewerCandidatesThanStages(t *testing.T) {
	pool := syntheticPool(3, 5)

	routes, err := buildRoutes(context.Background(), testAnchor, pool, Params{}, nil)
	require.NoError(t, err)

	// All three become stages; nothing is left over for companions.
	assert.Len(t, routes, 3)
	for _, rt := range routes {
		assert.Empty(t, rt.Companions1)
		assert.Empty(t, rt.Companions2)
		assert.Equal(t, "origin", rt.BoardingPoint1)
		assert.Empty(t, rt.AlightingPoint1)
	}
}

func TestBuildRoutes_EmptyPool(t *testing.T) {
	routes, err := buildRoutes(context.Background(), testAnchor, nil, Params{}, nil)
	require.NoError(t, err)
	assert.Empty(t, routes)
}

func TestBuildRoutes_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := buildRoutes(ctx, testAnchor, syntheticPool(20, 12), Params{}, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSelectRound_ScorePreferredOverDistance(t *testing.T) {
	// Two in-band companions: a low-score one at 6 km, a high-score one at
	// 9 km. Score wins; distance only breaks ties.
	companions := []Candidate{
		{Place: types.Place{Title: "near-low", Latitude: testAnchor.Latitude + 6*degPerKmLat, Longitude: testAnchor.Longitude}, Score: 0.2, HasScore: true},
		{Place: types.Place{Title: "far-high", Latitude: testAnchor.Latitude + 9*degPerKmLat, Longitude: testAnchor.Longitude}, Score: 0.9, HasScore: true},
	}
	points := make([]geo.Point, len(companions))
	for i, c := range companions {
		points[i] = geo.Point{ID: i, Latitude: c.Place.Latitude, Longitude: c.Place.Longitude}
	}
	idx := geo.NewRadiusIndex(points, 10)

	round := selectRound(idx, companions, make(usedSet), testAnchor.Latitude, testAnchor.Longitude, Params{}.withDefaults())
	require.Len(t, round, 2)
	assert.Equal(t, "far-high", round[0].Place.Title)
	assert.Equal(t, "near-low", round[1].Place.Title)
}

func TestBuildTour_Invariants(t *testing.T) {
	pool := syntheticPool(40, 8)
	// A few unscored entries must never appear in a tour.
	for i := 0; i < 5; i++ {
		pool = append(pool, Candidate{
			Place: types.Place{
				Title:     fmt.Sprintf("unscored-%d", i),
				Latitude:  testAnchor.Latitude,
				Longitude: testAnchor.Longitude,
			},
		})
	}
	byTitle := poolByTitle(pool)

	tours, err := buildTour(context.Background(), testAnchor, pool, Params{})
	require.NoError(t, err)
	require.NotEmpty(t, tours)

	seen := make(map[string]bool)
	for _, tour := range tours {
		assert.NotContains(t, tour.Place, "unscored")
		anchorPlace := byTitle[tour.Place]

		round1 := splitCompanions(tour.Companions1)
		for _, title := range round1 {
			assert.NotContains(t, title, "unscored")
			assert.False(t, seen[title], "tour companion %s reused", title)
			seen[title] = true

			c := byTitle[title]
			d := geo.Haversine(anchorPlace.Place.Latitude, anchorPlace.Place.Longitude, c.Place.Latitude, c.Place.Longitude)
			assert.LessOrEqual(t, d, 5.0, "walking leg beyond the radius")
		}
		for _, title := range splitCompanions(tour.Companions2) {
			assert.False(t, seen[title], "tour companion %s reused", title)
			seen[title] = true
		}

		if len(round1) > 0 {
			assert.Greater(t, tour.WalkKm1, 0.0)
			assert.LessOrEqual(t, tour.WalkKm1, 5.0)
			// Rounded to two decimals.
			assert.InDelta(t, tour.WalkKm1, math.Round(tour.WalkKm1*100)/100, 1e-9)
		}
	}
}

func TestBuildTour_AllUnscored(t *testing.T) {
	pool := []Candidate{
		{Place: types.Place{Title: "a", Latitude: testAnchor.Latitude, Longitude: testAnchor.Longitude}},
		{Place: types.Place{Title: "b", Latitude: testAnchor.Latitude, Longitude: testAnchor.Longitude}},
	}
	tours, err := buildTour(context.Background(), testAnchor, pool, Params{})
	require.NoError(t, err)
	assert.Empty(t, tours)
}

func TestBuildTour_MeanWalkDistance(t *testing.T) {
	// One seed with two companions at exactly 1 and 3 km north: the mean
	// walking distance of round 1 is 2 km.
	pool := []Candidate{
		{Place: types.Place{Title: "seed", Latitude: testAnchor.Latitude, Longitude: testAnchor.Longitude}, Score: 0.9, HasScore: true},
		{Place: types.Place{Title: "one-km", Latitude: testAnchor.Latitude + 1*degPerKmLat, Longitude: testAnchor.Longitude}, Score: 0.5, HasScore: true},
		{Place: types.Place{Title: "three-km", Latitude: testAnchor.Latitude + 3*degPerKmLat, Longitude: testAnchor.Longitude}, Score: 0.4, HasScore: true},
	}

	tours, err := buildTour(context.Background(), testAnchor, pool, Params{StageCount: 1})
	require.NoError(t, err)
	require.Len(t, tours, 1)

	assert.Equal(t, "seed", tours[0].Place)
	assert.ElementsMatch(t, []string{"one-km", "three-km"}, splitCompanions(tours[0].Companions1))
	assert.InDelta(t, 2.0, tours[0].WalkKm1, 0.01)
}
