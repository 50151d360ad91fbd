package container

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	database "github.com/daytrip-kr/go-daytrip/app/db"
	"github.com/daytrip-kr/go-daytrip/config"
	"github.com/daytrip-kr/go-daytrip/internal/api/auth"
	"github.com/daytrip-kr/go-daytrip/internal/api/chat"
	"github.com/daytrip-kr/go-daytrip/internal/api/congestion"
	"github.com/daytrip-kr/go-daytrip/internal/api/recommend"
	"github.com/daytrip-kr/go-daytrip/internal/geocode"
)

// Container holds the wired application dependencies.
type Container struct {
	Config *config.Config
	Logger *slog.Logger
	Pool   *pgxpool.Pool

	Geocoder geocode.Geocoder

	AuthHandler       *auth.HandlerImpl
	RecommendHandler  *recommend.HandlerImpl
	ChatHandler       *chat.HandlerImpl
	CongestionHandler *congestion.HandlerImpl

	CongestionService congestion.Service
}

// NewContainer wires repositories, services and handlers over one pgx pool.
// The congestion snapshot is loaded eagerly, so a missing table fails startup
// instead of answering unknown to everything.
func NewContainer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Container, error) {
	connURL, err := database.ConnectionURL(cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("building database url: %w", err)
	}
	pool, err := database.Init(connURL, logger)
	if err != nil {
		return nil, fmt.Errorf("initializing database pool: %w", err)
	}

	geocoder := geocode.NewClient(
		cfg.Geocoder.BaseURL,
		cfg.Geocoder.APIKey,
		cfg.Geocoder.Timeout,
		cfg.Geocoder.CacheTTL,
		logger,
	)

	authRepo := auth.NewRepository(pool, logger)
	authService := auth.NewService(authRepo, cfg.JWT, logger)
	authHandler := auth.NewHandlerImpl(authService, logger)

	recommendRepo := recommend.NewRepository(pool, logger)
	recommendService := recommend.NewService(recommendRepo, geocoder, recommend.Params{
		StageCount:   cfg.Recommend.StageCount,
		RoundSize:    cfg.Recommend.RoundSize,
		BandLowKm:    cfg.Recommend.BandLowKm,
		BandHighKm:   cfg.Recommend.BandHighKm,
		RadiusKm:     cfg.Recommend.RadiusKm,
		TourRadiusKm: cfg.Recommend.TourRadiusKm,
		Scoring:      recommend.ScoringPolicy(cfg.Recommend.Scoring),
	}, logger)
	recommendHandler := recommend.NewHandlerImpl(recommendService, logger)

	congestionRepo := congestion.NewRepository(pool, logger)
	congestionService, err := congestion.NewService(ctx, congestionRepo, logger)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("initializing congestion service: %w", err)
	}
	congestionHandler := congestion.NewHandlerImpl(congestionService, geocoder, logger)

	chatStore := chat.NewStore(cfg.Chat.SessionTTL)
	chatService := chat.NewService(chatStore, recommendService, geocoder, logger)
	chatHandler := chat.NewHandlerImpl(chatService, logger)

	return &Container{
		Config:            cfg,
		Logger:            logger,
		Pool:              pool,
		Geocoder:          geocoder,
		AuthHandler:       authHandler,
		RecommendHandler:  recommendHandler,
		ChatHandler:       chatHandler,
		CongestionHandler: congestionHandler,
		CongestionService: congestionService,
	}, nil
}

// Close releases pooled resources.
func (c *Container) Close() {
	if c.Pool != nil {
		c.Pool.Close()
	}
}
