package http

import (
	"net/http"

	"github.com/go-api-auth/internal/config"
	"github.com/go-api-auth/internal/domain"
	"github.com/go-api-auth/internal/transport/http/handler"
	appmiddleware "github.com/go-api-auth/internal/transport/http/middleware"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/time/rate"
)

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	if cfg.TrustProxy {
		r.Use(chimiddleware.RealIP)
	}
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	authMw := appmiddleware.Auth(deps.Sessions, deps.Identity)

	// 5 requests/second, burst of 10, applied to code and credential endpoints.
	sensitiveRL := appmiddleware.NewRateLimiter(rate.Limit(5), 10)

	cookie := handler.CookieOptions{TTL: cfg.RefreshTokenTTL, Secure: cfg.CookieSecure}
	healthH := handler.NewHealthHandler(deps.Healthcheck)
	verifyH := handler.NewVerificationHandler(deps.Verification)
	sessionH := handler.NewSessionHandler(deps.Sessions, cookie)
	accountH := handler.NewAccountHandler(deps.Users)

	r.Get("/health", healthH.Check)

	r.Route("/api", func(r chi.Router) {
		// ── Public routes (no auth) ──────────────────────────────────────────
		r.Route("/auth", func(r chi.Router) {
			r.With(sensitiveRL.Limit).Post("/send-code", verifyH.SendCode)
			r.With(sensitiveRL.Limit).Post("/verify-code", verifyH.VerifyCode)
			r.With(sensitiveRL.Limit).Post("/signup", sessionH.Signup)
			r.With(sensitiveRL.Limit).Post("/login", sessionH.Login)
			r.Post("/refresh", sessionH.Refresh)
			r.Post("/logout", sessionH.Logout)
			r.Post("/kakao", sessionH.SocialLogin)
			r.Post("/social/{provider}", sessionH.SocialLogin)
			r.Post("/link-social", sessionH.LinkSocial)
		})

		// ── Authenticated routes ─────────────────────────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(authMw)

			r.With(appmiddleware.RequireRole(domain.RoleUser, domain.RoleAdmin)).
				Get("/private/me", accountH.Me)

			// Admin-only routes
			r.Route("/admin", func(r chi.Router) {
				r.Use(appmiddleware.RequireRole(domain.RoleAdmin))

				r.Get("/dashboard", accountH.Dashboard)
				r.Get("/users", accountH.ListUsers)
			})
		})
	})

	return r
}
