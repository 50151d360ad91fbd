package scoring

import (
	"log/slog"
	"math"
	"sort"

	"github.com/daytrip-kr/go-daytrip/internal/types"
)

// Granularity selects the grouping key of one scoring run.
type Granularity string

const (
	// GranularityAreaCategory groups reviews by (district, sub-district, category).
	GranularityAreaCategory Granularity = "area_category"
	// GranularityPlace groups reviews by administrative address, one score per place.
	GranularityPlace Granularity = "place"
)

// Method selects how the three features are weighted into the composite index.
type Method string

const (
	// MethodEntropy derives weights from the Shannon entropy of the z-scored
	// feature distributions, capping the review-count weight.
	MethodEntropy Method = "entropy"
	// MethodEqual min-max scales the features and weights them 1/3 each.
	MethodEqual Method = "equal"
	// MethodFixed min-max scales the features and applies fixed weights
	// (review count 0.5, positivity 0.3, rating 0.2).
	MethodFixed Method = "fixed"
)

const epsilon = 1e-9

// Config parameterizes a Scorer. Zero values fall back to entropy weighting
// at area-category granularity with a 0.5 review-count weight cap.
type Config struct {
	Method       Method
	Granularity  Granularity
	LogWeightCap float64 // upper bound on the review-count weight (entropy method)
	MinReviews   int     // drop groups with fewer reviews (0 keeps everything)
}

// Scorer turns raw review rows into a ranked per-group popularity index:
// aggregation, log1p count transform, Bayesian shrinkage toward the global
// mean, feature weighting, composite score, descending sort.
type Scorer struct {
	cfg    Config
	logger *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Scorer {
	if cfg.Method == "" {
		cfg.Method = MethodEntropy
	}
	if cfg.Granularity == "" {
		cfg.Granularity = GranularityAreaCategory
	}
	if cfg.LogWeightCap <= 0 || cfg.LogWeightCap > 1 {
		cfg.LogWeightCap = 0.5
	}
	return &Scorer{cfg: cfg, logger: logger}
}

// Positivity maps a review's sentiment onto a [0,1] positivity probability.
// Positive keeps the model probability, negative flips it, anything else
// (including a missing probability) counts as the 0.5 midpoint.
func Positivity(r types.Review) float64 {
	if r.SentimentProb == nil {
		return 0.5
	}
	switch r.Sentiment {
	case types.SentimentPositive:
		return *r.SentimentProb
	case types.SentimentNegative:
		return 1 - *r.SentimentProb
	default:
		return 0.5
	}
}

type groupKey struct {
	district    string
	subDistrict string
	category    string
	place       string
}

func (s *Scorer) keyFor(r types.Review) groupKey {
	if s.cfg.Granularity == GranularityPlace {
		return groupKey{place: r.Address}
	}
	return groupKey{district: r.District, subDistrict: r.SubDistrict, category: r.Category}
}

// Score runs the full pipeline over reviews. An empty input yields an empty
// result, not an error.
func (s *Scorer) Score(reviews []types.Review) []types.AreaScore {
	if len(reviews) == 0 {
		return nil
	}

	type agg struct {
		count     int
		sumRating float64
		sumPos    float64
	}
	groups := make(map[groupKey]*agg)
	var order []groupKey // deterministic output independent of map iteration
	for _, r := range reviews {
		k := s.keyFor(r)
		g, ok := groups[k]
		if !ok {
			g = &agg{}
			groups[k] = g
			order = append(order, k)
		}
		g.count++
		g.sumRating += r.Rating
		g.sumPos += Positivity(r)
	}

	scores := make([]types.AreaScore, 0, len(order))
	for _, k := range order {
		g := groups[k]
		if g.count < s.cfg.MinReviews {
			continue
		}
		scores = append(scores, types.AreaScore{
			District:       k.district,
			SubDistrict:    k.subDistrict,
			Category:       k.category,
			Place:          k.place,
			ReviewCount:    g.count,
			MeanRating:     g.sumRating / float64(g.count),
			MeanPositivity: g.sumPos / float64(g.count),
			LogReviewCount: math.Log1p(float64(g.count)),
		})
	}
	if len(scores) == 0 {
		return nil
	}

	s.applyShrinkage(scores)
	s.applyWeights(scores)

	sort.SliceStable(scores, func(i, j int) bool { return scores[i].Popularity > scores[j].Popularity })
	if s.logger != nil {
		s.logger.Debug("popularity scoring run complete",
			slog.Int("groups", len(scores)),
			slog.String("method", string(s.cfg.Method)),
			slog.String("granularity", string(s.cfg.Granularity)))
	}
	return scores
}

// BayesianAdjust pulls a group mean toward the global mean, weighted by the
// group's review count against the shrinkage constant m.
func BayesianAdjust(raw float64, count int, globalMean, m float64) float64 {
	return (float64(count)*raw + m*globalMean) / (float64(count) + m)
}

func (s *Scorer) applyShrinkage(scores []types.AreaScore) {
	var sumRating, sumPos float64
	counts := make([]int, len(scores))
	for i, sc := range scores {
		sumRating += sc.MeanRating
		sumPos += sc.MeanPositivity
		counts[i] = sc.ReviewCount
	}
	n := float64(len(scores))
	globalRating := sumRating / n
	globalPos := sumPos / n
	m := medianCount(counts)

	for i := range scores {
		scores[i].AdjRating = BayesianAdjust(scores[i].MeanRating, scores[i].ReviewCount, globalRating, m)
		scores[i].AdjPositivity = BayesianAdjust(scores[i].MeanPositivity, scores[i].ReviewCount, globalPos, m)
	}
}

func (s *Scorer) applyWeights(scores []types.AreaScore) {
	// Feature order: log review count, adjusted positivity, adjusted rating.
	features := [3][]float64{}
	for _, sc := range scores {
		features[0] = append(features[0], sc.LogReviewCount)
		features[1] = append(features[1], sc.AdjPositivity)
		features[2] = append(features[2], sc.AdjRating)
	}

	switch s.cfg.Method {
	case MethodEqual, MethodFixed:
		wCount, wPos, wRating := 1.0/3, 1.0/3, 1.0/3
		if s.cfg.Method == MethodFixed {
			wCount, wPos, wRating = 0.5, 0.3, 0.2
		}
		scaled := [3][]float64{minMax(features[0]), minMax(features[1]), minMax(features[2])}
		for i := range scores {
			scores[i].Popularity = wCount*scaled[0][i] + wPos*scaled[1][i] + wRating*scaled[2][i]
		}
	default: // MethodEntropy
		wCount, wPos, wRating := entropyWeights(
			zScore(features[0]), zScore(features[1]), zScore(features[2]), s.cfg.LogWeightCap)
		for i := range scores {
			scores[i].Popularity = wCount*scores[i].LogReviewCount +
				wPos*scores[i].AdjPositivity + wRating*scores[i].AdjRating
		}
	}
}

// entropyWeights computes per-feature weights as (1 - Shannon entropy) of the
// standardized distributions, normalized to sum to one, with the review-count
// weight capped and the excess redistributed proportionally.
func entropyWeights(count, pos, rating []float64, logWeightCap float64) (wCount, wPos, wRating float64) {
	d := [3]float64{degreeOfDiversity(count), degreeOfDiversity(pos), degreeOfDiversity(rating)}
	total := d[0] + d[1] + d[2]
	if total == 0 {
		return 1.0 / 3, 1.0 / 3, 1.0 / 3
	}
	raw := [3]float64{d[0] / total, d[1] / total, d[2] / total}

	wCount = math.Min(raw[0], logWeightCap)
	remaining := 1 - wCount
	rest := raw[1] + raw[2]
	if rest == 0 {
		return wCount, remaining / 2, remaining / 2
	}
	wPos = raw[1] / rest * remaining
	wRating = raw[2] / rest * remaining
	return wCount, wPos, wRating
}

// degreeOfDiversity is 1 - normalized Shannon entropy of a feature column.
// Terms whose proportion makes the logarithm undefined are skipped.
func degreeOfDiversity(col []float64) float64 {
	var sum float64
	for _, v := range col {
		sum += v
	}
	var entropy float64
	for _, v := range col {
		p := v / (sum + epsilon)
		term := p * math.Log(p+epsilon)
		if !math.IsNaN(term) {
			entropy += term
		}
	}
	entropy = -entropy / math.Log(float64(len(col)))
	return 1 - entropy
}

func minMax(col []float64) []float64 {
	lo, hi := col[0], col[0]
	for _, v := range col {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	out := make([]float64, len(col))
	if hi == lo {
		return out
	}
	for i, v := range col {
		out[i] = (v - lo) / (hi - lo)
	}
	return out
}

func zScore(col []float64) []float64 {
	var sum float64
	for _, v := range col {
		sum += v
	}
	mean := sum / float64(len(col))
	var variance float64
	for _, v := range col {
		variance += (v - mean) * (v - mean)
	}
	std := math.Sqrt(variance / float64(len(col)))
	out := make([]float64, len(col))
	if std == 0 {
		return out
	}
	for i, v := range col {
		out[i] = (v - mean) / std
	}
	return out
}

func medianCount(counts []int) float64 {
	sorted := append([]int(nil), counts...)
	sort.Ints(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return float64(sorted[n/2])
	}
	return float64(sorted[n/2-1]+sorted[n/2]) / 2
}
