package recommend

import (
	"context"
	"math"
	"sort"
	"strings"

	"github.com/daytrip-kr/go-daytrip/internal/geo"
	"github.com/daytrip-kr/go-daytrip/internal/geocode"
	"github.com/daytrip-kr/go-daytrip/internal/types"
)

// ScoringPolicy selects how candidate pool scores are derived.
type ScoringPolicy string

const (
	// ScoringSentiment uses the mean review positivity per address.
	ScoringSentiment ScoringPolicy = "sentiment"
	// ScoringEntropy, ScoringEqual and ScoringFixed run the popularity
	// scorer at place granularity with the corresponding weighting method.
	ScoringEntropy ScoringPolicy = "entropy"
	ScoringEqual   ScoringPolicy = "equal"
	ScoringFixed   ScoringPolicy = "fixed"
)

// Params bounds one recommendation run. Zero values take the documented
// defaults.
type Params struct {
	StageCount   int           // anchor places per run (default 10)
	RoundSize    int           // companions per round (default 5)
	BandLowKm    float64       // companion band lower bound (default 5)
	BandHighKm   float64       // companion band upper bound (default 10)
	RadiusKm     float64       // companion search radius (default 10)
	TourRadiusKm float64       // walking radius of the tour variant (default 5)
	Scoring      ScoringPolicy // default ScoringSentiment
}

func (p Params) withDefaults() Params {
	if p.StageCount <= 0 {
		p.StageCount = 10
	}
	if p.RoundSize <= 0 {
		p.RoundSize = 5
	}
	if p.BandLowKm <= 0 {
		p.BandLowKm = 5
	}
	if p.BandHighKm <= 0 {
		p.BandHighKm = 10
	}
	if p.RadiusKm <= 0 {
		p.RadiusKm = 10
	}
	if p.TourRadiusKm <= 0 {
		p.TourRadiusKm = 5
	}
	if p.Scoring == "" {
		p.Scoring = ScoringSentiment
	}
	return p
}

// TransportModePolicy labels the two legs of a stage. The default alternates
// by stage parity; it is illustrative metadata, not a transit lookup, and is
// injectable so a real one can replace it.
type TransportModePolicy func(stageIndex int) (mode1, mode2 string)

// AlternatingModes is the placeholder policy: even stages lead with the
// subway, odd stages with the bus.
func AlternatingModes(stageIndex int) (string, string) {
	if stageIndex%2 == 0 {
		return "subway", "bus"
	}
	return "bus", "subway"
}

// usedSet tracks companion assignments across one whole run so no place is
// recommended twice. It is owned by the run; nothing outlives it.
type usedSet map[int]bool

// buildRoutes runs the two-hop route construction over a theme-filtered pool:
// the StageCount nearest candidates to the anchor become stages (ordered by
// score), the rest form a companion pool indexed for radius queries, and each
// stage draws two rounds of band-constrained companions.
func buildRoutes(ctx context.Context, anchor geocode.Coordinate, pool []Candidate, p Params, modes TransportModePolicy) ([]types.RouteStage, error) {
	p = p.withDefaults()
	if modes == nil {
		modes = AlternatingModes
	}
	if len(pool) == 0 {
		return nil, nil
	}

	// Stage selection: K nearest to the anchor, then score order.
	type ranked struct {
		idx  int
		dist float64
	}
	byDist := make([]ranked, len(pool))
	for i, c := range pool {
		byDist[i] = ranked{idx: i, dist: geo.Haversine(anchor.Latitude, anchor.Longitude, c.Place.Latitude, c.Place.Longitude)}
	}
	sort.SliceStable(byDist, func(i, j int) bool { return byDist[i].dist < byDist[j].dist })

	stageCount := p.StageCount
	if stageCount > len(byDist) {
		stageCount = len(byDist)
	}
	stageIdx := make([]int, stageCount)
	isStage := make(map[int]bool, stageCount)
	for i := 0; i < stageCount; i++ {
		stageIdx[i] = byDist[i].idx
		isStage[byDist[i].idx] = true
	}
	sort.SliceStable(stageIdx, func(i, j int) bool { return pool[stageIdx[i]].Score > pool[stageIdx[j]].Score })

	// Companion pool and its radius index, built once and reused per stage.
	var companions []Candidate
	for i, c := range pool {
		if !isStage[i] {
			companions = append(companions, c)
		}
	}
	points := make([]geo.Point, len(companions))
	for i, c := range companions {
		points[i] = geo.Point{ID: i, Latitude: c.Place.Latitude, Longitude: c.Place.Longitude}
	}
	idx := geo.NewRadiusIndex(points, p.RadiusKm)

	used := make(usedSet)
	routes := make([]types.RouteStage, 0, stageCount)
	for order, si := range stageIdx {
		if err := ctx.Err(); err != nil {
			return routes, err
		}
		stage := pool[si]

		round1 := selectRound(idx, companions, used,
			stage.Place.Latitude, stage.Place.Longitude, p)

		var round2 []Candidate
		if len(round1) > 0 {
			first := round1[0]
			round2 = selectRound(idx, companions, used,
				first.Place.Latitude, first.Place.Longitude, p)
		}

		mode1, mode2 := modes(order)
		alight1 := firstStation(round1)
		routes = append(routes, types.RouteStage{
			StageName:       stage.Place.Title,
			Mode1:           mode1,
			BoardingPoint1:  "origin",
			AlightingPoint1: alight1,
			Companions1:     joinTitles(round1),
			Mode2:           mode2,
			BoardingPoint2:  alight1,
			AlightingPoint2: firstStation(round2),
			Companions2:     joinTitles(round2),
		})
	}
	return routes, nil
}

// selectRound queries the companion index around a center, keeps unused
// candidates inside the distance band, ranks them score-first then nearest,
// and claims up to RoundSize of them. The round may come back short when the
// band runs dry.
func selectRound(idx *geo.RadiusIndex, companions []Candidate, used usedSet, lat, lon float64, p Params) []Candidate {
	neighbors := idx.Within(lat, lon, p.RadiusKm)

	type hit struct {
		id   int
		dist float64
	}
	var hits []hit
	for _, n := range neighbors {
		if n.DistanceKm < p.BandLowKm || n.DistanceKm > p.BandHighKm || used[n.ID] {
			continue
		}
		hits = append(hits, hit{id: n.ID, dist: n.DistanceKm})
	}
	sort.SliceStable(hits, func(i, j int) bool {
		si, sj := companions[hits[i].id].Score, companions[hits[j].id].Score
		if si != sj {
			return si > sj
		}
		return hits[i].dist < hits[j].dist
	})

	if len(hits) > p.RoundSize {
		hits = hits[:p.RoundSize]
	}
	round := make([]Candidate, 0, len(hits))
	for _, h := range hits {
		used[h.id] = true
		round = append(round, companions[h.id])
	}
	return round
}

// buildTour is the popularity-first walking variant: the pool is ranked by
// score (unscored rows dropped), the StageCount anchors nearest the region
// seed chained 5 km rounds, and each round reports its mean walking distance.
func buildTour(ctx context.Context, anchor geocode.Coordinate, pool []Candidate, p Params) ([]types.TourStage, error) {
	p = p.withDefaults()

	var scored []Candidate
	for _, c := range pool {
		if c.HasScore {
			scored = append(scored, c)
		}
	}
	if len(scored) == 0 {
		return nil, nil
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })

	type ranked struct {
		idx  int
		dist float64
	}
	byDist := make([]ranked, len(scored))
	for i, c := range scored {
		byDist[i] = ranked{idx: i, dist: geo.Haversine(anchor.Latitude, anchor.Longitude, c.Place.Latitude, c.Place.Longitude)}
	}
	sort.SliceStable(byDist, func(i, j int) bool { return byDist[i].dist < byDist[j].dist })

	seedCount := p.StageCount
	if seedCount > len(byDist) {
		seedCount = len(byDist)
	}

	points := make([]geo.Point, len(scored))
	byTitle := make(map[string]int, len(scored))
	for i, c := range scored {
		points[i] = geo.Point{ID: i, Latitude: c.Place.Latitude, Longitude: c.Place.Longitude}
		if _, ok := byTitle[c.Place.Title]; !ok {
			byTitle[c.Place.Title] = i
		}
	}
	idx := geo.NewRadiusIndex(points, p.TourRadiusKm)

	used := make(usedSet)
	findNearby := func(title string) ([]Candidate, float64) {
		center, ok := byTitle[title]
		if !ok {
			return nil, 0
		}
		var round []Candidate
		var walkSum float64
		for _, n := range idx.Within(scored[center].Place.Latitude, scored[center].Place.Longitude, p.TourRadiusKm) {
			if n.ID == center || used[n.ID] {
				continue
			}
			used[n.ID] = true
			round = append(round, scored[n.ID])
			walkSum += n.DistanceKm
			if len(round) == p.RoundSize {
				break
			}
		}
		if len(round) == 0 {
			return nil, 0
		}
		avg := walkSum / float64(len(round))
		return round, math.Round(avg*100) / 100
	}

	tours := make([]types.TourStage, 0, seedCount)
	for i := 0; i < seedCount; i++ {
		if err := ctx.Err(); err != nil {
			return tours, err
		}
		seed := scored[byDist[i].idx]
		used[byDist[i].idx] = true

		round1, walk1 := findNearby(seed.Place.Title)
		var round2 []Candidate
		var walk2 float64
		if len(round1) > 0 {
			round2, walk2 = findNearby(round1[0].Place.Title)
		}

		tours = append(tours, types.TourStage{
			Place:       seed.Place.Title,
			WalkKm1:     walk1,
			Companions1: joinTitles(round1),
			WalkKm2:     walk2,
			Companions2: joinTitles(round2),
		})
	}
	return tours, nil
}

func joinTitles(round []Candidate) string {
	titles := make([]string, len(round))
	for i, c := range round {
		titles[i] = c.Place.Title
	}
	return strings.Join(titles, ", ")
}

func firstStation(round []Candidate) string {
	if len(round) == 0 {
		return ""
	}
	return round[0].Place.ClosestStation
}
