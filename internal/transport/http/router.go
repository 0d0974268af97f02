package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-magiclink-api/internal/application/auth"
	"github.com/go-magiclink-api/internal/application/user"
	"github.com/go-magiclink-api/internal/config"
	"github.com/go-magiclink-api/internal/transport/http/handler"
	appmiddleware "github.com/go-magiclink-api/internal/transport/http/middleware"
	"golang.org/x/time/rate"
)

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// 5 requests/second with a burst of 10, applied to credential-issuing endpoints.
	sensitiveRL := appmiddleware.NewRateLimiter(rate.Limit(5), 10)

	authSvc := auth.NewService(auth.ServiceDeps{
		UserRepo:       deps.UserRepo,
		LinkStore:      deps.MagicLinks,
		Mailer:         deps.Mailer,
		TokenProvider:  deps.JWTProvider,
		GoogleVerifier: deps.GoogleVerifier,
		LinkTTL:        cfg.MagicLinkTTL,
		LinkBaseURL:    cfg.MagicLinkBaseURL,
	})
	userSvc := user.NewService(user.ServiceDeps{
		UserRepo:    deps.UserRepo,
		ObjectStore: deps.ObjectStore,
	})

	cookies := handler.CookieWriter{
		Secure:        cfg.AppEnv != "development",
		AccessMaxAge:  cfg.AccessTokenExpiry,
		RefreshMaxAge: cfg.RefreshTokenExpiry,
	}

	healthH := handler.NewHealthHandler()
	authH := handler.NewAuthHandler(authSvc, cookies)
	userH := handler.NewUserHandler(userSvc)

	r.Route("/v1", func(r chi.Router) {
		// ── Public routes (no auth) ──────────────────────────────────────────
		r.Get("/health-check/{action}", healthH.Ping)
		r.With(sensitiveRL.Limit).Post("/auth/login", authH.Login)
		r.With(sensitiveRL.Limit).Post("/auth/verify-magic-link", authH.VerifyMagicLink)
		r.With(sensitiveRL.Limit).Post("/auth/google", authH.GoogleLogin)
		r.Post("/auth/refresh-token", authH.RefreshToken)
		r.Post("/auth/logout", authH.Logout)

		// ── Authenticated routes ─────────────────────────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(appmiddleware.Auth(deps.JWTProvider))

			r.Get("/users/me", userH.Me)
			r.Put("/users/me", userH.UpdateMe)
			r.Post("/users/me/avatar", userH.UploadAvatar)
		})
	})

	return r
}
