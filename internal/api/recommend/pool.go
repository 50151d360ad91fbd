package recommend

import (
	"strings"

	"github.com/daytrip-kr/go-daytrip/internal/types"
)

// Candidate is one scored entry of the theme-filtered candidate pool.
type Candidate struct {
	Place    types.Place
	Score    float64
	HasScore bool // false for places whose address has no reviews
	Keywords string
}

// BuildPool joins the place table to the per-address review aggregates and
// filters by theme. Places without reviews are kept with no score (left
// join); duplicates by title keep the first occurrence; a place whose address
// has no review keywords falls back to its sub-category label as the keyword
// signal.
//
// A theme that matches nothing is a caller/data mismatch and fails with
// CategoryNotFoundError; an empty place table yields an empty pool without
// error.
func BuildPool(places []types.Place, aggregates map[string]AddressAggregate, theme string) ([]Candidate, error) {
	theme = strings.TrimSpace(theme)

	seen := make(map[string]bool, len(places))
	var pool []Candidate
	seenThemes := make(map[string]bool)
	var validThemes []string // first-seen order, for the error message

	for _, p := range places {
		if seen[p.Title] {
			continue
		}
		seen[p.Title] = true

		cat := strings.TrimSpace(p.Cat1)
		if cat != "" && !seenThemes[cat] {
			seenThemes[cat] = true
			validThemes = append(validThemes, cat)
		}
		if cat != theme {
			continue
		}

		c := Candidate{Place: p}
		if agg, ok := aggregates[p.Address]; ok {
			c.Score = agg.MeanPositivity
			c.HasScore = true
			c.Keywords = agg.Keywords
		}
		if c.Keywords == "" {
			c.Keywords = p.Cat3
		}
		pool = append(pool, c)
	}

	if len(pool) == 0 && len(places) > 0 {
		if len(validThemes) > 10 {
			validThemes = validThemes[:10]
		}
		return nil, &types.CategoryNotFoundError{Theme: theme, ValidThemes: validThemes}
	}
	return pool, nil
}

// OverrideScores replaces the pool's sentiment-heuristic scores with
// externally computed ones keyed by address. Entries without a computed score
// lose theirs, mirroring the join semantics of the heuristic path.
func OverrideScores(pool []Candidate, scoreByAddress map[string]float64) {
	for i := range pool {
		score, ok := scoreByAddress[pool[i].Place.Address]
		pool[i].Score = score
		pool[i].HasScore = ok
	}
}
