package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vedran77/mentormatch/internal/service"
	"github.com/vedran77/mentormatch/internal/transport/http/handlers"
	"github.com/vedran77/mentormatch/internal/transport/http/middleware"
)

type Services struct {
	Auth      *service.AuthService
	Profiles  *service.ProfileService
	Directory *service.DirectoryService
	Matches   *service.MatchService
}

type RouterConfig struct {
	CORSOrigins []string
	Gatherer    prometheus.Gatherer
}

func NewRouter(svc Services, cfg RouterConfig, logger *slog.Logger) http.Handler {
	authHandler := handlers.NewAuthHandler(svc.Auth, logger)
	profileHandler := handlers.NewProfileHandler(svc.Profiles, logger)
	mentorHandler := handlers.NewMentorHandler(svc.Directory, logger)
	matchHandler := handlers.NewMatchHandler(svc.Matches, logger)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(chimw.Recoverer)
	r.Use(middleware.CORS(cfg.CORSOrigins))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status": "ok"}`))
	})
	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/signup", authHandler.Signup)
		r.Post("/login", authHandler.Login)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(svc.Auth, logger))

			r.Post("/logout", authHandler.Logout)
			r.Get("/me", profileHandler.Me)
			r.Put("/profile", profileHandler.Update)
			r.Get("/images/{role}/{id}", profileHandler.Image)
			r.Get("/mentors", mentorHandler.List)

			r.Route("/match-requests", func(r chi.Router) {
				r.Post("/", matchHandler.Create)
				r.Get("/incoming", matchHandler.ListIncoming)
				r.Get("/outgoing", matchHandler.ListOutgoing)
				r.Put("/{id}/accept", matchHandler.Accept)
				r.Put("/{id}/reject", matchHandler.Reject)
				r.Delete("/{id}", matchHandler.Cancel)
			})
		})
	})

	return r
}
