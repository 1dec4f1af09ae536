package routes

import (
	"log/slog"
	"net/http"

	_ "github.com/Dosada05/matchday/docs"
	"github.com/Dosada05/matchday/handlers"
	"github.com/Dosada05/matchday/middleware"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware" // Alias to avoid conflict
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"
)

// Handlers groups every HTTP handler the router mounts.
type Handlers struct {
	Teams     *handlers.TeamHandler
	Matches   *handlers.MatchHandler
	Lifecycle *handlers.LifecycleHandler
	Periods   *handlers.PeriodHandler
	Events    *handlers.EventHandler
	Stream    *handlers.StreamHandler
	WebSocket *handlers.WebSocketHandler
}

type Config struct {
	JWTSecret      []byte
	AllowedOrigins []string
	Logger         *slog.Logger
}

func InitRoutes(cfg Config, h Handlers) *chi.Mux {
	router := chi.NewRouter()

	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(middleware.RequestLogger(cfg.Logger))
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Last-Event-ID"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	authenticate := middleware.Authenticate(cfg.JWTSecret)

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	router.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	router.Route("/teams", func(r chi.Router) {
		// Публичные маршруты
		r.Get("/", h.Teams.ListTeams)
		r.Get("/{teamID}", h.Teams.GetTeamByID)
		r.Get("/{teamID}/players", h.Teams.ListPlayers)

		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			r.Post("/", h.Teams.CreateTeam)
			r.Post("/{teamID}/players", h.Teams.AddPlayer)
		})
	})

	router.Route("/matches", func(r chi.Router) {
		r.Get("/", h.Matches.ListMatches)

		r.With(authenticate).Post("/", h.Matches.CreateMatch)

		r.Route("/{matchID}", func(r chi.Router) {
			// Публичные маршруты для зрителей
			r.Get("/", h.Matches.GetMatchByID)
			r.Get("/state", h.Lifecycle.GetState)
			r.Get("/events", h.Events.ListEvents)
			r.Get("/snapshot", h.Events.GetSnapshot)
			r.Get("/live", h.Stream.ServeSSE)

			// Управление матчем: только создатель или администратор
			r.Group(func(r chi.Router) {
				r.Use(authenticate)

				r.Delete("/", h.Matches.DeleteMatch)

				r.Post("/start", h.Lifecycle.Start)
				r.Post("/pause", h.Lifecycle.Pause)
				r.Post("/resume", h.Lifecycle.Resume)
				r.Post("/complete", h.Lifecycle.Complete)
				r.Post("/cancel", h.Lifecycle.Cancel)

				r.Get("/periods", h.Periods.ListPeriods)
				r.Post("/periods", h.Periods.StartPeriod)
				r.Get("/periods/active", h.Periods.GetActivePeriod)
				r.Post("/periods/{periodID}/end", h.Periods.EndPeriod)
				r.Delete("/periods/{periodID}", h.Periods.DeletePeriod)
				r.Get("/elapsed", h.Periods.GetElapsedTime)

				r.Post("/events", h.Events.RecordEvent)
				r.Delete("/events/{eventID}", h.Events.DeleteEvent)
			})
		})
	})

	router.Get("/ws/matches/{matchID}", h.WebSocket.ServeWs)

	return router
}
