package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/daytrip-kr/go-daytrip/internal/api/recommend"
	"github.com/daytrip-kr/go-daytrip/internal/geocode"
	"github.com/daytrip-kr/go-daytrip/internal/types"
)

var (
	// ErrWrongState is returned when an input arrives out of order, for
	// example themes before a region.
	ErrWrongState = errors.New("conversation is not expecting this input")
	// ErrIndexOutOfRange is returned for a detail view past the end of the
	// built routes or tours.
	ErrIndexOutOfRange = errors.New("no route or tour at this index")
)

var _ Service = (*ServiceImpl)(nil)

// Service drives the region → themes → preferences conversation. Inputs that
// the recommendation core rejects (unknown region or theme) come back as bot
// messages and rewind the state, so the conversation itself never errors on
// bad user input.
type Service interface {
	StartConversation(ctx context.Context) (*types.Conversation, error)
	SubmitRegion(ctx context.Context, id uuid.UUID, region string) (*types.Conversation, error)
	SubmitThemes(ctx context.Context, id uuid.UUID, themes []string) (*types.Conversation, error)
	SubmitPreferences(ctx context.Context, id uuid.UUID, preferences []string) (*types.Conversation, error)
	EndConversation(ctx context.Context, id uuid.UUID)
	GetConversation(ctx context.Context, id uuid.UUID) (*types.Conversation, error)
	RouteDetail(ctx context.Context, id uuid.UUID, index int) (*types.RouteStage, error)
	TourDetail(ctx context.Context, id uuid.UUID, index int) (*types.TourStage, error)
}

type ServiceImpl struct {
	logger      *slog.Logger
	store       *Store
	recommender recommend.Service
	geocoder    geocode.Geocoder

	// Serializes state transitions. Conversations are short-lived and cheap,
	// one coarse lock is enough.
	mu sync.Mutex
}

func NewService(store *Store, recommender recommend.Service, geocoder geocode.Geocoder, logger *slog.Logger) *ServiceImpl {
	return &ServiceImpl{
		logger:      logger,
		store:       store,
		recommender: recommender,
		geocoder:    geocoder,
	}
}

func (s *ServiceImpl) StartConversation(ctx context.Context) (*types.Conversation, error) {
	ctx, span := otel.Tracer("ChatService").Start(ctx, "StartConversation")
	defer span.End()

	now := time.Now()
	conv := &types.Conversation{
		ID:        uuid.New(),
		State:     types.StateAwaitingRegion,
		CreatedAt: now,
		UpdatedAt: now,
	}
	say(conv, "Hi! Where would you like to spend the day? Tell me a region or neighborhood.")
	s.store.Put(conv)

	s.logger.InfoContext(ctx, "conversation started", slog.String("conversation_id", conv.ID.String()))
	return conv.Clone(), nil
}

func (s *ServiceImpl) SubmitRegion(ctx context.Context, id uuid.UUID, region string) (*types.Conversation, error) {
	ctx, span := otel.Tracer("ChatService").Start(ctx, "SubmitRegion")
	defer span.End()
	span.SetAttributes(attribute.String("region", region))

	s.mu.Lock()
	defer s.mu.Unlock()

	conv, err := s.store.Get(id)
	if err != nil {
		return nil, err
	}
	if conv.State != types.StateAwaitingRegion {
		return nil, fmt.Errorf("%w: state %s", ErrWrongState, conv.State)
	}
	hear(conv, region)

	// Resolve the region up front so the user gets a second chance right
	// away instead of at the end of the flow.
	if _, err := s.geocoder.Geocode(ctx, region); err != nil {
		var geocodeErr *types.GeocodeFailedError
		if errors.As(err, &geocodeErr) {
			say(conv, fmt.Sprintf("I couldn't find %q on the map. Could you try another region name?", region))
			s.store.Put(conv)
			return conv.Clone(), nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("resolving region: %w", err)
	}

	conv.Region = region
	conv.State = types.StateAwaitingThemes
	say(conv, fmt.Sprintf("%s it is. What are you in the mood for? Pick one or more themes, like food or culture.", region))
	s.store.Put(conv)
	return conv.Clone(), nil
}

func (s *ServiceImpl) SubmitThemes(ctx context.Context, id uuid.UUID, themes []string) (*types.Conversation, error) {
	_, span := otel.Tracer("ChatService").Start(ctx, "SubmitThemes")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	conv, err := s.store.Get(id)
	if err != nil {
		return nil, err
	}
	if conv.State != types.StateAwaitingThemes {
		return nil, fmt.Errorf("%w: state %s", ErrWrongState, conv.State)
	}

	cleaned := make([]string, 0, len(themes))
	for _, theme := range themes {
		if theme = strings.TrimSpace(theme); theme != "" {
			cleaned = append(cleaned, theme)
		}
	}
	if len(cleaned) == 0 {
		say(conv, "I need at least one theme to work with. Food? Culture? Shopping?")
		s.store.Put(conv)
		return conv.Clone(), nil
	}
	hear(conv, strings.Join(cleaned, ", "))

	conv.Themes = cleaned
	conv.State = types.StateAwaitingPreferences
	say(conv, "Got it. Any preferences I should keep in mind? Quiet places, short walks, anything goes.")
	s.store.Put(conv)
	return conv.Clone(), nil
}

func (s *ServiceImpl) SubmitPreferences(ctx context.Context, id uuid.UUID, preferences []string) (*types.Conversation, error) {
	ctx, span := otel.Tracer("ChatService").Start(ctx, "SubmitPreferences")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	conv, err := s.store.Get(id)
	if err != nil {
		return nil, err
	}
	if conv.State != types.StateAwaitingPreferences {
		return nil, fmt.Errorf("%w: state %s", ErrWrongState, conv.State)
	}
	conv.Preferences = preferences
	hear(conv, strings.Join(preferences, ", "))

	routes, tours, err := s.recommender.RecommendAll(ctx, conv.Region, conv.Themes)
	if err != nil {
		var themeErr *types.CategoryNotFoundError
		var geocodeErr *types.GeocodeFailedError
		switch {
		case errors.As(err, &themeErr):
			say(conv, fmt.Sprintf("I don't know the theme %q. I do know: %s. Want to pick again?",
				themeErr.Theme, strings.Join(themeErr.ValidThemes, ", ")))
			conv.State = types.StateAwaitingThemes
			s.store.Put(conv)
			return conv.Clone(), nil
		case errors.As(err, &geocodeErr):
			say(conv, fmt.Sprintf("I lost track of %q on the map. Could you give me the region again?", conv.Region))
			conv.Region = ""
			conv.State = types.StateAwaitingRegion
			s.store.Put(conv)
			return conv.Clone(), nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("building recommendations: %w", err)
	}

	conv.Routes = routes
	conv.Tours = tours
	conv.State = types.StateDone
	if len(routes) == 0 && len(tours) == 0 {
		say(conv, "I looked around but found nothing matching near there. Try a different region or theme?")
	} else {
		say(conv, fmt.Sprintf("Done! I put together %d routes and %d walking tours. Ask for any of them by number.",
			len(routes), len(tours)))
	}
	s.store.Put(conv)

	s.logger.InfoContext(ctx, "conversation completed",
		slog.String("conversation_id", conv.ID.String()),
		slog.Int("routes", len(routes)),
		slog.Int("tours", len(tours)))
	return conv.Clone(), nil
}

// EndConversation drops a conversation. Used when a client starts over, so
// the abandoned session does not sit in the store until its TTL runs out.
func (s *ServiceImpl) EndConversation(ctx context.Context, id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.store.Delete(id)
	s.logger.InfoContext(ctx, "conversation ended", slog.String("conversation_id", id.String()))
}

// Readers take the same lock as the submit methods and return copies, so a
// client polling the conversation during a long recommendation build never
// observes a half-written one.

func (s *ServiceImpl) GetConversation(_ context.Context, id uuid.UUID) (*types.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, err := s.store.Get(id)
	if err != nil {
		return nil, err
	}
	return conv.Clone(), nil
}

func (s *ServiceImpl) RouteDetail(_ context.Context, id uuid.UUID, index int) (*types.RouteStage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, err := s.store.Get(id)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(conv.Routes) {
		return nil, fmt.Errorf("%w: route %d of %d", ErrIndexOutOfRange, index, len(conv.Routes))
	}
	stage := conv.Routes[index]
	return &stage, nil
}

func (s *ServiceImpl) TourDetail(_ context.Context, id uuid.UUID, index int) (*types.TourStage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, err := s.store.Get(id)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(conv.Tours) {
		return nil, fmt.Errorf("%w: tour %d of %d", ErrIndexOutOfRange, index, len(conv.Tours))
	}
	stage := conv.Tours[index]
	return &stage, nil
}

func say(conv *types.Conversation, text string) {
	conv.Messages = append(conv.Messages, types.ChatMessage{Sender: types.SenderBot, Text: text, SentAt: time.Now()})
	conv.UpdatedAt = time.Now()
}

func hear(conv *types.Conversation, text string) {
	conv.Messages = append(conv.Messages, types.ChatMessage{Sender: types.SenderUser, Text: text, SentAt: time.Now()})
	conv.UpdatedAt = time.Now()
}
