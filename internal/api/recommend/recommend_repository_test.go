package recommend

import (
	"context"
	"errors"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daytrip-kr/go-daytrip/internal/types"
)

func TestRepositoryGetPlaces(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT title, cat1").WillReturnRows(
		pgxmock.NewRows([]string{"title", "cat1", "cat2", "cat3", "latitude", "longitude", "address", "closest_station"}).
			AddRow("gwangjang market", "food", "market", "street food", 37.5704, 126.9998, "88 changgyeonggung-ro", "jongno 5-ga"))

	repo := NewRepository(mock, testLogger())
	places, err := repo.GetPlaces(context.Background())
	require.NoError(t, err)
	require.Len(t, places, 1)
	assert.Equal(t, "gwangjang market", places[0].Title)
	assert.Equal(t, "jongno 5-ga", places[0].ClosestStation)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryGetReviews_NullableProbability(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	prob := 0.87
	mock.ExpectQuery("SELECT address").WillReturnRows(
		pgxmock.NewRows([]string{"address", "district", "sub_district", "category", "rating", "sentiment", "sentiment_prob", "content"}).
			AddRow("addr-1", "jongno", "insadong", "food", 4.5, "positive", &prob, "great tteokbokki").
			AddRow("addr-2", "jongno", "insadong", "food", 2.0, "negative", (*float64)(nil), ""))

	repo := NewRepository(mock, testLogger())
	reviews, err := repo.GetReviews(context.Background())
	require.NoError(t, err)
	require.Len(t, reviews, 2)

	require.NotNil(t, reviews[0].SentimentProb)
	assert.Equal(t, 0.87, *reviews[0].SentimentProb)
	assert.Equal(t, types.SentimentPositive, reviews[0].Sentiment)
	assert.Nil(t, reviews[1].SentimentProb)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryGetAddressAggregates(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT address").WillReturnRows(
		pgxmock.NewRows([]string{"address", "positivity", "keywords"}).
			AddRow("addr-1", 0.72, "spicy crowded").
			AddRow("addr-2", 0.4, ""))

	repo := NewRepository(mock, testLogger())
	aggregates, err := repo.GetAddressAggregates(context.Background())
	require.NoError(t, err)
	require.Len(t, aggregates, 2)
	assert.Equal(t, 0.72, aggregates["addr-1"].MeanPositivity)
	assert.Equal(t, "spicy crowded", aggregates["addr-1"].Keywords)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryQueryError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT title").WillReturnError(errors.New("connection reset"))

	repo := NewRepository(mock, testLogger())
	_, err = repo.GetPlaces(context.Background())
	assert.ErrorContains(t, err, "connection reset")
}
