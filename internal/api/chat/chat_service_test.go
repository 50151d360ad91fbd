package chat

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daytrip-kr/go-daytrip/internal/geocode"
	"github.com/daytrip-kr/go-daytrip/internal/types"
)

type stubRecommender struct {
	routes []types.RouteStage
	tours  []types.TourStage
	err    error
}

func (s *stubRecommender) Recommend(context.Context, string, string) ([]types.RouteStage, error) {
	return s.routes, s.err
}

func (s *stubRecommender) Tour(context.Context, string, string) ([]types.TourStage, error) {
	return s.tours, s.err
}

func (s *stubRecommender) RecommendAll(context.Context, string, []string) ([]types.RouteStage, []types.TourStage, error) {
	return s.routes, s.tours, s.err
}

func (s *stubRecommender) RankAreas(context.Context) ([]types.AreaScore, error) {
	return nil, s.err
}

type fakeGeocoder struct {
	err error
}

func (f *fakeGeocoder) Geocode(context.Context, string) (geocode.Coordinate, error) {
	return geocode.Coordinate{Latitude: 37.5665, Longitude: 126.978}, f.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(rec *stubRecommender, geo *fakeGeocoder) *ServiceImpl {
	return NewService(NewStore(time.Minute), rec, geo, testLogger())
}

func TestConversation_HappyPath(t *testing.T) {
	rec := &stubRecommender{
		routes: []types.RouteStage{{StageName: "gwangjang market"}, {StageName: "tongin market"}},
		tours:  []types.TourStage{{Place: "bukchon"}},
	}
	svc := newTestService(rec, &fakeGeocoder{})
	ctx := context.Background()

	conv, err := svc.StartConversation(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.StateAwaitingRegion, conv.State)
	require.NotEmpty(t, conv.Messages)
	assert.Equal(t, types.SenderBot, conv.Messages[0].Sender)

	conv, err = svc.SubmitRegion(ctx, conv.ID, "seoul")
	require.NoError(t, err)
	assert.Equal(t, types.StateAwaitingThemes, conv.State)
	assert.Equal(t, "seoul", conv.Region)

	conv, err = svc.SubmitThemes(ctx, conv.ID, []string{"food", " culture "})
	require.NoError(t, err)
	assert.Equal(t, types.StateAwaitingPreferences, conv.State)
	assert.Equal(t, []string{"food", "culture"}, conv.Themes)

	conv, err = svc.SubmitPreferences(ctx, conv.ID, []string{"quiet"})
	require.NoError(t, err)
	assert.Equal(t, types.StateDone, conv.State)
	assert.Len(t, conv.Routes, 2)
	assert.Len(t, conv.Tours, 1)

	route, err := svc.RouteDetail(ctx, conv.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, "tongin market", route.StageName)

	tour, err := svc.TourDetail(ctx, conv.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, "bukchon", tour.Place)
}

func TestSubmitRegion_NotGeocodable(t *testing.T) {
	svc := newTestService(&stubRecommender{}, &fakeGeocoder{err: &types.GeocodeFailedError{Region: "atlantis"}})
	ctx := context.Background()

	conv, err := svc.StartConversation(ctx)
	require.NoError(t, err)

	conv, err = svc.SubmitRegion(ctx, conv.ID, "atlantis")
	require.NoError(t, err)

	// The miss becomes a bot reply; the conversation waits for another try.
	assert.Equal(t, types.StateAwaitingRegion, conv.State)
	assert.Empty(t, conv.Region)
	last := conv.Messages[len(conv.Messages)-1]
	assert.Equal(t, types.SenderBot, last.Sender)
	assert.Contains(t, last.Text, "atlantis")
}

func TestSubmitThemes_WrongState(t *testing.T) {
	svc := newTestService(&stubRecommender{}, &fakeGeocoder{})
	ctx := context.Background()

	conv, err := svc.StartConversation(ctx)
	require.NoError(t, err)

	_, err = svc.SubmitThemes(ctx, conv.ID, []string{"food"})
	assert.ErrorIs(t, err, ErrWrongState)
}

func TestSubmitPreferences_UnknownThemeRewinds(t *testing.T) {
	rec := &stubRecommender{err: &types.CategoryNotFoundError{Theme: "nightlife", ValidThemes: []string{"food", "culture"}}}
	svc := newTestService(rec, &fakeGeocoder{})
	ctx := context.Background()

	conv, err := svc.StartConversation(ctx)
	require.NoError(t, err)
	_, err = svc.SubmitRegion(ctx, conv.ID, "seoul")
	require.NoError(t, err)
	_, err = svc.SubmitThemes(ctx, conv.ID, []string{"nightlife"})
	require.NoError(t, err)

	conv, err = svc.SubmitPreferences(ctx, conv.ID, nil)
	require.NoError(t, err)

	assert.Equal(t, types.StateAwaitingThemes, conv.State)
	last := conv.Messages[len(conv.Messages)-1]
	assert.Contains(t, last.Text, "nightlife")
	assert.Contains(t, last.Text, "food, culture")
}

func TestSubmitThemes_AllBlank(t *testing.T) {
	svc := newTestService(&stubRecommender{}, &fakeGeocoder{})
	ctx := context.Background()

	conv, err := svc.StartConversation(ctx)
	require.NoError(t, err)
	_, err = svc.SubmitRegion(ctx, conv.ID, "seoul")
	require.NoError(t, err)

	conv, err = svc.SubmitThemes(ctx, conv.ID, []string{"  ", ""})
	require.NoError(t, err)
	assert.Equal(t, types.StateAwaitingThemes, conv.State)
	assert.Empty(t, conv.Themes)
}

func TestGetConversation_NotFound(t *testing.T) {
	svc := newTestService(&stubRecommender{}, &fakeGeocoder{})

	_, err := svc.GetConversation(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrConversationNotFound)
}

func TestRouteDetail_IndexOutOfRange(t *testing.T) {
	rec := &stubRecommender{routes: []types.RouteStage{{StageName: "only one"}}}
	svc := newTestService(rec, &fakeGeocoder{})
	ctx := context.Background()

	conv, err := svc.StartConversation(ctx)
	require.NoError(t, err)
	_, err = svc.SubmitRegion(ctx, conv.ID, "seoul")
	require.NoError(t, err)
	_, err = svc.SubmitThemes(ctx, conv.ID, []string{"food"})
	require.NoError(t, err)
	_, err = svc.SubmitPreferences(ctx, conv.ID, nil)
	require.NoError(t, err)

	_, err = svc.RouteDetail(ctx, conv.ID, 1)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
	_, err = svc.RouteDetail(ctx, conv.ID, -1)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
}

func TestEndConversation_Removes(t *testing.T) {
	svc := newTestService(&stubRecommender{}, &fakeGeocoder{})
	ctx := context.Background()

	conv, err := svc.StartConversation(ctx)
	require.NoError(t, err)

	svc.EndConversation(ctx, conv.ID)

	_, err = svc.GetConversation(ctx, conv.ID)
	assert.ErrorIs(t, err, ErrConversationNotFound)
}

func TestGetConversation_ReturnsIndependentCopy(t *testing.T) {
	svc := newTestService(&stubRecommender{}, &fakeGeocoder{})
	ctx := context.Background()

	conv, err := svc.StartConversation(ctx)
	require.NoError(t, err)

	got, err := svc.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	got.State = types.StateDone
	got.Messages = append(got.Messages, types.ChatMessage{Sender: types.SenderUser, Text: "tampered"})

	again, err := svc.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StateAwaitingRegion, again.State)
	require.Len(t, again.Messages, 1)
	assert.Equal(t, types.SenderBot, again.Messages[0].Sender)
}

func TestConversation_ConcurrentReadDuringWrites(t *testing.T) {
	// A failed geocode keeps the conversation in awaiting_region, so the
	// writer can keep appending messages while a reader polls and encodes.
	svc := newTestService(&stubRecommender{}, &fakeGeocoder{err: &types.GeocodeFailedError{Region: "atlantis"}})
	ctx := context.Background()

	conv, err := svc.StartConversation(ctx)
	require.NoError(t, err)
	id := conv.ID

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
			}
			got, err := svc.GetConversation(ctx, id)
			if !assert.NoError(t, err) {
				return
			}
			if _, err := json.Marshal(got); !assert.NoError(t, err) {
				return
			}
		}
	}()

	for i := 0; i < 100; i++ {
		_, err := svc.SubmitRegion(ctx, id, "atlantis")
		require.NoError(t, err)
	}
	close(done)
	wg.Wait()

	final, err := svc.GetConversation(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, types.StateAwaitingRegion, final.State)
	// Opening prompt plus a user and a bot message per attempt.
	assert.Len(t, final.Messages, 1+2*100)
}
