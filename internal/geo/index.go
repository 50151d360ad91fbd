package geo

import (
	"math"
	"sort"
)

// Point is one indexed coordinate. ID is the caller's index into whatever
// slice the point came from.
type Point struct {
	ID        int
	Latitude  float64
	Longitude float64
}

// Neighbor is one radius-query hit.
type Neighbor struct {
	ID         int
	DistanceKm float64
}

type cellKey struct {
	row, col int
}

// RadiusIndex answers "which points lie within r km of here" without scanning
// the whole set. Points are bucketed into a degree grid sized to the maximum
// query radius, so a query only inspects the 3x3 block of cells around the
// center before the exact haversine filter. The index is immutable after
// NewRadiusIndex; concurrent reads need no locking.
type RadiusIndex struct {
	cells      map[cellKey][]Point
	cellDegLat float64
	cellDegLon float64
	maxRadius  float64
}

// NewRadiusIndex builds an index over points for queries up to maxRadiusKm.
func NewRadiusIndex(points []Point, maxRadiusKm float64) *RadiusIndex {
	// One degree of latitude is ~111 km. A degree of longitude shrinks with
	// latitude, so longitude cells are twice as wide; that keeps the 3x3
	// block a superset of the true radius anywhere below 60° latitude.
	cellDeg := maxRadiusKm / 111.0
	if cellDeg <= 0 {
		cellDeg = 1
	}

	idx := &RadiusIndex{
		cells:      make(map[cellKey][]Point),
		cellDegLat: cellDeg,
		cellDegLon: 2 * cellDeg,
		maxRadius:  maxRadiusKm,
	}
	for _, p := range points {
		k := idx.keyFor(p.Latitude, p.Longitude)
		idx.cells[k] = append(idx.cells[k], p)
	}
	return idx
}

func (idx *RadiusIndex) keyFor(lat, lon float64) cellKey {
	return cellKey{
		row: int(math.Floor(lat / idx.cellDegLat)),
		col: int(math.Floor(lon / idx.cellDegLon)),
	}
}

// Within returns every indexed point whose haversine distance from the center
// is at most radiusKm, nearest first. radiusKm must not exceed the radius the
// index was built for; larger values are clamped.
func (idx *RadiusIndex) Within(lat, lon, radiusKm float64) []Neighbor {
	if radiusKm > idx.maxRadius {
		radiusKm = idx.maxRadius
	}

	center := idx.keyFor(lat, lon)
	var hits []Neighbor
	for dr := -1; dr <= 1; dr++ {
		for dc := -1; dc <= 1; dc++ {
			k := cellKey{row: center.row + dr, col: center.col + dc}
			for _, p := range idx.cells[k] {
				d := Haversine(lat, lon, p.Latitude, p.Longitude)
				if d <= radiusKm {
					hits = append(hits, Neighbor{ID: p.ID, DistanceKm: d})
				}
			}
		}
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].DistanceKm < hits[j].DistanceKm })
	return hits
}
