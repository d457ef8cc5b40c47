package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"krosswordle/internal/metrics"
	"krosswordle/internal/security"
)

// Handlers bundles everything the router mounts
type Handlers struct {
	Middleware   *Middleware
	Auth         *AuthHandler
	Puzzle       *PuzzleHandler
	Admin        *AdminHandler
	Startup      *StartupStatus
	Metrics      *metrics.Recorder
	LoginLimiter *security.RateLimiter
}

// NewRouter installs middleware and registers every route
func NewRouter(h Handlers) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(h.Middleware.Logging)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(15 * time.Second))

	r.Get("/health", h.Startup.Health)
	r.Get("/ready", h.Startup.Ready)
	r.Method(http.MethodGet, "/metrics", h.Metrics.Handler())

	r.Get("/auth/providers", h.Auth.Providers)
	r.Get("/auth/{provider}/start", h.Auth.StartOAuth)
	r.Get("/auth/{provider}/callback", h.Auth.OAuthCallback)

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				if h.LoginLimiter != nil {
					r.Use(h.Middleware.RateLimit(h.LoginLimiter))
				}
				r.Post("/register", h.Auth.Register)
				r.Post("/login", h.Auth.Login)
				r.Post("/token", h.Auth.Token)
			})
			r.Group(func(r chi.Router) {
				r.Use(h.Middleware.RequireAuth)
				r.Post("/logout", h.Auth.Logout)
				r.Get("/me", h.Auth.Me)
				r.Put("/me", h.Auth.UpdateProfile)
			})
		})

		r.Route("/puzzle", func(r chi.Router) {
			r.Use(h.Middleware.RequireAuth)
			r.Get("/state", h.Puzzle.State)
			r.Get("/level", h.Puzzle.GetLevel)
			r.Get("/session", h.Puzzle.GetSession)
			r.Post("/session", h.Puzzle.StartSession)
			r.Put("/session/progress", h.Puzzle.SaveProgress)
			r.Post("/score", h.Puzzle.SaveScore)
			r.Get("/leaderboard", h.Puzzle.Leaderboard)
			r.Get("/freeze", h.Puzzle.Freeze)
			r.Get("/winners", h.Puzzle.Winners)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(h.Middleware.RequireAuth)
			r.Use(h.Middleware.RequireAdmin)
			r.Get("/levels", h.Admin.ListLevels)
			r.Post("/levels", h.Admin.SaveLevel)
			r.Delete("/levels/{date}", h.Admin.DeleteLevel)
			r.Put("/prize", h.Admin.SetPrize)
			r.Post("/winners/notify", h.Admin.NotifyWinners)
			r.Get("/backup", h.Admin.ExportDatabase)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondWithError(w, http.StatusNotFound, "Not found", "", nil)
	})

	return r
}
