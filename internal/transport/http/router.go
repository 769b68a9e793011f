package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/edge-rewards/internal/config"
	jwtinfra "github.com/edge-rewards/internal/infrastructure/jwt"
	"github.com/edge-rewards/internal/observability/metrics"
	"github.com/edge-rewards/internal/transport/http/handler"
	appmiddleware "github.com/edge-rewards/internal/transport/http/middleware"
)

// NewRouter builds and returns the application router. ctx bounds background
// work owned by the router (rate limiter cleanup).
func NewRouter(ctx context.Context, cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	if cfg.TrustProxyHeaders {
		r.Use(chimiddleware.RealIP)
	}
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(metrics.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// 5 requests/second, burst of 10, on endpoints that cost a captcha check,
	// an email or a payout.
	sensitiveRL := appmiddleware.NewRateLimiter(ctx, rate.Limit(5), 10)

	healthH := handler.NewHealthHandler()
	rewardsH := handler.NewRewardsHandler(deps.Rewards, deps.Captcha, cfg.PublicBaseURL)
	adminH := handler.NewAdminHandler(deps.Rewards)

	r.Get("/health-check/{action}", healthH.Ping)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/rewards", func(r chi.Router) {
		// ── Public routes ────────────────────────────────────────────────────
		r.Get("/campaign-info", rewardsH.CampaignInfo)
		r.Group(func(r chi.Router) {
			r.Use(sensitiveRL.Limit)

			r.Post("/validate-captcha", rewardsH.ValidateCaptcha)
			r.Post("/captcha/validate", rewardsH.ValidateCaptcha)
			r.Post("/register", rewardsH.Register)
			r.Post("/verify-code", rewardsH.VerifyCode)
			r.Get("/verify", rewardsH.Verify)
		})

		// ── Operator routes ──────────────────────────────────────────────────
		if deps.Tokens == nil {
			slog.Warn("operator routes disabled: no JWT verifier configured")
			return
		}
		r.Route("/admin", func(r chi.Router) {
			r.Use(appmiddleware.Auth(deps.Tokens))
			r.Use(appmiddleware.RequireRole(jwtinfra.RoleOperator))

			r.Get("/claims/parked", adminH.ListParked)
			r.Post("/claims/{id}/retry-payout", adminH.RetryPayout)
			r.Put("/campaigns/{id}/active", adminH.SetCampaignActive)
		})
	})

	return r
}
