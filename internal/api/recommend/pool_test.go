package recommend

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daytrip-kr/go-daytrip/internal/types"
)

func TestBuildPool_LeftJoinAndFallbacks(t *testing.T) {
	places := []types.Place{
		{Title: "reviewed", Cat1: "food", Cat3: "noodles", Address: "addr-1"},
		{Title: "unreviewed", Cat1: "food", Cat3: "bakery", Address: "addr-2"},
	}
	aggregates := map[string]AddressAggregate{
		"addr-1": {MeanPositivity: 0.8, Keywords: "spicy broth"},
	}

	pool, err := BuildPool(places, aggregates, "food")
	require.NoError(t, err)
	require.Len(t, pool, 2)

	assert.True(t, pool[0].HasScore)
	assert.Equal(t, 0.8, pool[0].Score)
	assert.Equal(t, "spicy broth", pool[0].Keywords)

	// No reviews: kept, unscored, keywords fall back to the sub-category.
	assert.False(t, pool[1].HasScore)
	assert.Equal(t, "bakery", pool[1].Keywords)
}

func TestBuildPool_DeduplicatesByTitle(t *testing.T) {
	places := []types.Place{
		{Title: "dup", Cat1: "food", Address: "addr-first"},
		{Title: "dup", Cat1: "food", Address: "addr-second"},
	}
	aggregates := map[string]AddressAggregate{
		"addr-first":  {MeanPositivity: 0.9},
		"addr-second": {MeanPositivity: 0.1},
	}

	pool, err := BuildPool(places, aggregates, "food")
	require.NoError(t, err)
	require.Len(t, pool, 1)
	assert.Equal(t, "addr-first", pool[0].Place.Address)
	assert.Equal(t, 0.9, pool[0].Score)
}

func TestBuildPool_FiltersByTheme(t *testing.T) {
	places := []types.Place{
		{Title: "a", Cat1: "food"},
		{Title: "b", Cat1: "culture"},
		{Title: "c", Cat1: "food"},
	}

	pool, err := BuildPool(places, nil, "food")
	require.NoError(t, err)
	require.Len(t, pool, 2)
	assert.Equal(t, "a", pool[0].Place.Title)
	assert.Equal(t, "c", pool[1].Place.Title)
}

func TestBuildPool_UnknownTheme(t *testing.T) {
	places := []types.Place{
		{Title: "a", Cat1: "food"},
		{Title: "b", Cat1: "culture"},
	}

	_, err := BuildPool(places, nil, "shopping")
	var catErr *types.CategoryNotFoundError
	require.ErrorAs(t, err, &catErr)
	assert.Equal(t, "shopping", catErr.Theme)
	assert.Equal(t, []string{"food", "culture"}, catErr.ValidThemes)
}

func TestBuildPool_EmptyPlaceTable(t *testing.T) {
	pool, err := BuildPool(nil, nil, "food")
	require.NoError(t, err)
	assert.Empty(t, pool)
}

func TestOverrideScores(t *testing.T) {
	pool := []Candidate{
		{Place: types.Place{Address: "addr-1"}, Score: 0.5, HasScore: true},
		{Place: types.Place{Address: "addr-2"}, Score: 0.5, HasScore: true},
	}
	OverrideScores(pool, map[string]float64{"addr-1": 0.93})

	assert.True(t, pool[0].HasScore)
	assert.Equal(t, 0.93, pool[0].Score)
	assert.False(t, pool[1].HasScore)
	assert.Zero(t, pool[1].Score)
}
