package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/itchan-dev/authd/backend/internal/handler"
	"github.com/itchan-dev/authd/backend/internal/setup"
	mw "github.com/itchan-dev/authd/shared/middleware"
	"github.com/itchan-dev/authd/shared/middleware/metrics"
	rl "github.com/itchan-dev/authd/shared/middleware/ratelimiter"
)

// maxBodyBytes caps every request body; credential payloads are tiny.
const maxBodyBytes = 64 << 10

// Limits holds the per-route limiters so tests can supply their own.
type Limits struct {
	LoginByIP       *rl.Limiter
	LoginByEmail    *rl.Limiter
	RegisterByIP    *rl.Limiter
	RegisterByEmail *rl.Limiter
	RefreshByIP     *rl.Limiter
	Global          *rl.Limiter
	PerAccount      *rl.Limiter
}

func DefaultLimits() Limits {
	return Limits{
		LoginByIP:       rl.PerMinute(20),
		LoginByEmail:    rl.PerMinute(5),
		RegisterByIP:    rl.PerMinute(5),
		RegisterByEmail: rl.PerMinute(2),
		RefreshByIP:     rl.PerMinute(60),
		Global:          rl.New(1000, 1000, time.Hour),
		PerAccount:      rl.PerMinute(120),
	}
}

// Stop cancels the idle-bucket timers of every limiter.
func (l Limits) Stop() {
	for _, limiter := range []*rl.Limiter{l.LoginByIP, l.LoginByEmail, l.RegisterByIP, l.RegisterByEmail, l.RefreshByIP, l.Global, l.PerAccount} {
		if limiter != nil {
			limiter.Stop()
		}
	}
}

// New creates the chi router with all routes.
// IMPORTANT! limiters attached with Use apply to every route of that group combined
func New(deps *setup.Dependencies, limits Limits) http.Handler {
	r := chi.NewRouter()
	cfg := deps.Config.Public
	h := deps.Handler
	authMw := deps.AuthMiddleware

	r.Use(chimw.RequestID)
	r.Use(chimw.RequestSize(maxBodyBytes))
	// principal in context lets the error boundary and limiters see staff callers.
	// Mounted outside Recoverer so a recovered panic still knows the caller.
	r.Use(authMw.OptionalAuth())
	r.Use(handler.Recoverer)
	r.Use(metrics.Middleware)
	r.Use(mw.SecurityHeaders(cfg.SecureHeaders, mw.APIContentSecurityPolicy))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", h.Health)
	r.Get("/ready", h.Ready)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(mw.GlobalRateLimit(limits.Global))

			r.With(
				mw.RateLimit(limits.RegisterByIP, mw.GetIP),
				mw.RateLimit(limits.RegisterByEmail, mw.GetEmailFromBody),
			).Post("/register/", h.Register)

			r.With(
				mw.RateLimit(limits.LoginByIP, mw.GetIP),
				mw.RateLimit(limits.LoginByEmail, mw.GetEmailFromBody),
			).Post("/login/", h.Login)

			r.With(mw.RateLimit(limits.RefreshByIP, mw.GetIP)).Post("/token/refresh/", h.Refresh)
		})

		// Logout (no rate limits)
		r.Post("/logout/", h.Logout)

		r.With(
			authMw.NeedAuth(),
			mw.RateLimit(limits.PerAccount, mw.GetAccountIDFromContext),
		).Get("/profile/", h.Profile)

		r.Route("/admin", func(r chi.Router) {
			r.Use(authMw.StaffOnly())
			r.Patch("/accounts/{id}/", h.SetAccountActive)
			r.Get("/accounts/{id}/revocations/", h.AccountRevocations)
		})
	})

	return r
}
