package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/contractiq/backend/internal/api/handlers"
	"github.com/contractiq/backend/internal/api/middleware"
	"github.com/contractiq/backend/internal/auth"
	"github.com/contractiq/backend/internal/contracts"
	"github.com/contractiq/backend/internal/query"
	"github.com/contractiq/backend/internal/store"
)

// Deps are the wired services the router exposes over HTTP. DB and Redis
// are only used for readiness reporting and may be nil.
type Deps struct {
	DB           *pgxpool.Pool
	Redis        *redis.Client
	Tenants      store.TenantStore
	AuthService  *auth.Service
	Contracts    *contracts.Service
	Engine       *query.Engine
	AskTimeout   time.Duration
	CORSOrigins  []string
	RateLimitRPS float64
}

func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging)
	r.Use(chimiddleware.Recoverer)

	origins := d.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(middleware.CORS(origins))

	rps := d.RateLimitRPS
	if rps <= 0 {
		rps = 100
	}
	rl := middleware.NewRateLimiter(rps, int(rps*2))
	r.Use(rl.Limit)

	health := handlers.NewHealthHandler(d.DB, d.Redis)
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)

	authH := handlers.NewAuthHandler(d.AuthService)
	contractH := handlers.NewContractHandler(d.Contracts)
	askH := handlers.NewAskHandler(d.Engine, d.AskTimeout)
	authMW := auth.NewMiddleware(d.AuthService, d.Tenants)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/signup", authH.Signup)
		r.Post("/auth/login", authH.Login)

		r.Group(func(r chi.Router) {
			r.Use(authMW.Authenticate)

			r.Post("/auth/password", authH.RotatePassword)

			r.Route("/contracts", func(r chi.Router) {
				r.Post("/", contractH.Upload)
				r.Get("/", contractH.List)
				r.Get("/{id}", contractH.Get)
				r.Delete("/{id}", contractH.Delete)
			})

			r.Post("/ask", askH.Ask)
		})
	})

	return r
}
