package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/daytrip-kr/go-daytrip/internal/api/auth"
	"github.com/daytrip-kr/go-daytrip/internal/api/chat"
	"github.com/daytrip-kr/go-daytrip/internal/api/congestion"
	"github.com/daytrip-kr/go-daytrip/internal/api/recommend"
)

// Config carries the handlers the router mounts. Server-wide middleware
// (request ID, recoverer, logger) is applied in main before mounting.
type Config struct {
	AuthHandler            *auth.HandlerImpl
	RecommendHandler       *recommend.HandlerImpl
	ChatHandler            *chat.HandlerImpl
	CongestionHandler      *congestion.HandlerImpl
	AuthenticateMiddleware func(http.Handler) http.Handler
}

// SetupRouter mounts the /api/v1 surface. Chat, recommendation and
// congestion endpoints are public; logout needs a valid access token.
func SetupRouter(cfg *Config) chi.Router {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:3000"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("pong"))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Post("/auth/register", cfg.AuthHandler.Register)
			r.Post("/auth/login", cfg.AuthHandler.Login)
			r.Post("/auth/refresh", cfg.AuthHandler.Refresh)
		})

		r.Group(func(r chi.Router) {
			r.Use(cfg.AuthenticateMiddleware)
			r.Post("/auth/logout", cfg.AuthHandler.Logout)
		})

		r.Post("/recommend", cfg.RecommendHandler.CreateRecommendation)
		r.Get("/areas/popular", cfg.RecommendHandler.GetPopularAreas)

		r.Route("/chat", func(r chi.Router) {
			r.Post("/", cfg.ChatHandler.StartConversation)
			r.Route("/{conversationID}", func(r chi.Router) {
				r.Get("/", cfg.ChatHandler.GetConversation)
				r.Post("/region", cfg.ChatHandler.SubmitRegion)
				r.Post("/themes", cfg.ChatHandler.SubmitThemes)
				r.Post("/preferences", cfg.ChatHandler.SubmitPreferences)
				r.Get("/routes/{index}", cfg.ChatHandler.GetRouteDetail)
				r.Get("/tours/{index}", cfg.ChatHandler.GetTourDetail)
			})
		})

		r.Route("/congestion", func(r chi.Router) {
			r.Get("/day", cfg.CongestionHandler.GetDayProfile)
			r.Get("/at", cfg.CongestionHandler.GetAtBucket)
		})
	})

	return r
}
