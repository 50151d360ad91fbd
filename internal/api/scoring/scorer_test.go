package scoring

import (
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daytrip-kr/go-daytrip/internal/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func prob(p float64) *float64 { return &p }

func review(district, subDistrict, category string, rating float64, s types.Sentiment, p *float64) types.Review {
	return types.Review{
		Address:       district + " " + subDistrict,
		District:      district,
		SubDistrict:   subDistrict,
		Category:      category,
		Rating:        rating,
		Sentiment:     s,
		SentimentProb: p,
	}
}

func TestPositivity(t *testing.T) {
	assert.Equal(t, 0.9, Positivity(review("a", "b", "c", 5, types.SentimentPositive, prob(0.9))))
	assert.InDelta(t, 0.1, Positivity(review("a", "b", "c", 1, types.SentimentNegative, prob(0.9))), 1e-9)
	assert.Equal(t, 0.5, Positivity(review("a", "b", "c", 3, types.SentimentNeutral, prob(0.9))))
	// Missing probability counts as neutral regardless of label.
	assert.Equal(t, 0.5, Positivity(review("a", "b", "c", 5, types.SentimentPositive, nil)))
}

func TestBayesianAdjust_Bounded(t *testing.T) {
	global := 3.0
	for _, tc := range []struct {
		raw   float64
		count int
	}{
		{5.0, 0}, {5.0, 1}, {5.0, 100}, {1.0, 0}, {1.0, 3}, {3.0, 50},
	} {
		adj := BayesianAdjust(tc.raw, tc.count, global, 4)
		lo, hi := tc.raw, global
		if lo > hi {
			lo, hi = hi, lo
		}
		assert.GreaterOrEqual(t, adj, lo, "raw=%v count=%d", tc.raw, tc.count)
		assert.LessOrEqual(t, adj, hi, "raw=%v count=%d", tc.raw, tc.count)
	}

	// Zero observations collapse fully onto the global mean.
	assert.Equal(t, global, BayesianAdjust(5.0, 0, global, 4))
}

func TestScore_EmptyInput(t *testing.T) {
	s := New(Config{}, testLogger())
	assert.Nil(t, s.Score(nil))
}

func TestScore_SingleFiveStarDoesNotOutrankEstablished(t *testing.T) {
	var reviews []types.Review
	// A well-reviewed group: 20 reviews around 4.5 stars, strongly positive.
	for i := 0; i < 20; i++ {
		reviews = append(reviews, review("Mapo", "Yeonnam", "food", 4.5, types.SentimentPositive, prob(0.9)))
	}
	// A second group of moderate size so the median does not degenerate.
	for i := 0; i < 10; i++ {
		reviews = append(reviews, review("Jongno", "Insadong", "food", 3.5, types.SentimentPositive, prob(0.7)))
	}
	// A single perfect review.
	reviews = append(reviews, review("Gangnam", "Yeoksam", "food", 5.0, types.SentimentPositive, prob(0.99)))

	for _, method := range []Method{MethodEntropy, MethodEqual, MethodFixed} {
		s := New(Config{Method: method}, testLogger())
		ranked := s.Score(reviews)
		require.Len(t, ranked, 3, "method %s", method)
		assert.Equal(t, "Yeonnam", ranked[0].SubDistrict, "method %s", method)
	}
}

func TestScore_SortedDescending(t *testing.T) {
	reviews := []types.Review{
		review("A", "a", "food", 5, types.SentimentPositive, prob(0.95)),
		review("A", "a", "food", 4, types.SentimentPositive, prob(0.9)),
		review("B", "b", "food", 2, types.SentimentNegative, prob(0.8)),
		review("B", "b", "food", 1, types.SentimentNegative, prob(0.9)),
		review("C", "c", "shopping", 3, types.SentimentNeutral, nil),
	}
	ranked := New(Config{Method: MethodEqual}, testLogger()).Score(reviews)
	require.Len(t, ranked, 3)
	for i := 1; i < len(ranked); i++ {
		assert.GreaterOrEqual(t, ranked[i-1].Popularity, ranked[i].Popularity)
	}
}

func TestScore_PlaceGranularity(t *testing.T) {
	reviews := []types.Review{
		review("A", "a", "food", 5, types.SentimentPositive, prob(0.9)),
		review("A", "a", "food", 4, types.SentimentPositive, prob(0.8)),
		review("B", "b", "food", 3, types.SentimentNeutral, nil),
	}
	ranked := New(Config{Granularity: GranularityPlace, Method: MethodEqual}, testLogger()).Score(reviews)
	require.Len(t, ranked, 2)
	for _, sc := range ranked {
		assert.NotEmpty(t, sc.Place)
		assert.Empty(t, sc.Category)
	}
	assert.Equal(t, "A a", ranked[0].Place)
	assert.Equal(t, 2, ranked[0].ReviewCount)
}

func TestScore_MinReviewsFilter(t *testing.T) {
	reviews := []types.Review{
		review("A", "a", "food", 5, types.SentimentPositive, prob(0.9)),
		review("A", "a", "food", 4, types.SentimentPositive, prob(0.8)),
		review("B", "b", "food", 3, types.SentimentNeutral, nil),
	}
	ranked := New(Config{Method: MethodFixed, MinReviews: 2}, testLogger()).Score(reviews)
	require.Len(t, ranked, 1)
	assert.Equal(t, "a", ranked[0].SubDistrict)
}

func TestScore_AggregatesMeans(t *testing.T) {
	reviews := []types.Review{
		review("A", "a", "food", 4, types.SentimentPositive, prob(0.8)),
		review("A", "a", "food", 2, types.SentimentNegative, prob(0.6)),
	}
	ranked := New(Config{Method: MethodEqual}, testLogger()).Score(reviews)
	require.Len(t, ranked, 1)
	sc := ranked[0]
	assert.Equal(t, 2, sc.ReviewCount)
	assert.InDelta(t, 3.0, sc.MeanRating, 1e-9)
	assert.InDelta(t, 0.6, sc.MeanPositivity, 1e-9) // (0.8 + (1-0.6)) / 2
	assert.InDelta(t, 1.0986, sc.LogReviewCount, 1e-3)
}
