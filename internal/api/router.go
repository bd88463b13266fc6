package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/promptvault/promptvault/internal/api/handlers"
	"github.com/promptvault/promptvault/internal/api/middleware"
	"github.com/promptvault/promptvault/internal/audit"
	"github.com/promptvault/promptvault/internal/auth"
	"github.com/promptvault/promptvault/internal/config"
	"github.com/promptvault/promptvault/internal/prompt"
	"github.com/promptvault/promptvault/internal/user"
)

// Deps carries everything the router wires together. DB, Redis and
// Audit may be nil in degraded mode; handlers that need them cope.
type Deps struct {
	DB      *pgxpool.Pool
	Redis   *redis.Client
	Cfg     *config.Config
	Users   *user.Service
	Prompts *prompt.Service
	Audit   *audit.Service
	Issuer  *auth.Issuer
}

type Router struct {
	mux  *chi.Mux
	deps Deps
	jwt  *auth.Middleware
}

func NewRouter(deps Deps) *Router {
	return &Router{
		mux:  chi.NewRouter(),
		deps: deps,
		jwt:  auth.NewMiddleware(deps.Issuer, deps.Users),
	}
}

func (rt *Router) Setup() http.Handler {
	r := rt.mux

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(rt.deps.Cfg.CORS.AllowedOrigins))

	rl := middleware.NewRateLimiter(rt.deps.Cfg.RateLimit.RequestsPerSecond, rt.deps.Cfg.RateLimit.Burst)
	r.Use(rl.Limit)

	health := handlers.NewHealthHandler(rt.deps.DB, rt.deps.Redis)
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)

	authH := handlers.NewAuthHandler(rt.deps.Users, rt.deps.Issuer)
	promptH := handlers.NewPromptHandler(rt.deps.Prompts)
	transferH := handlers.NewTransferHandler(rt.deps.Prompts)
	auditH := handlers.NewAuditHandler(rt.deps.Audit)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authH.Register)
			r.Post("/login", authH.Login)
			r.With(rt.jwt.Authenticate).Get("/me", authH.Me)
		})

		r.Group(func(r chi.Router) {
			r.Use(rt.jwt.Authenticate)

			r.Route("/prompts", func(r chi.Router) {
				r.Post("/", promptH.Create)
				r.Get("/", promptH.List)
				r.Get("/{id}", promptH.Get)
				r.Patch("/{id}", promptH.Update)
				r.Delete("/{id}", promptH.Delete)
				r.Patch("/{id}/archive", promptH.Archive)
				r.Patch("/{id}/restore", promptH.Restore)
				r.Get("/{id}/versions", promptH.Versions)
			})

			r.Route("/transfer", func(r chi.Router) {
				r.Get("/export", transferH.Export)
				r.Post("/import", transferH.Import)
			})

			r.Get("/audit", auditH.List)
		})
	})

	return r
}
