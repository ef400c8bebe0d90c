package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-otp-onboarding/internal/application/auth"
	"github.com/go-otp-onboarding/internal/application/user"
	"github.com/go-otp-onboarding/internal/config"
	"github.com/go-otp-onboarding/internal/transport/http/handler"
	appmiddleware "github.com/go-otp-onboarding/internal/transport/http/middleware"
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
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	otpRL := appmiddleware.NewRateLimiter(deps.OTPLimiter)
	authMw := appmiddleware.Auth(deps.JWTProvider)

	authSvc := auth.NewService(auth.ServiceDeps{
		Provider: deps.Provider,
		UserRepo: deps.UserRepo,
		Tokens:   deps.JWTProvider,
		Retry:    deps.Retry,
	})
	userSvc := user.NewService(user.ServiceDeps{UserRepo: deps.UserRepo, Mailer: deps.Mailer})

	healthH := handler.NewHealthHandler()
	otpH := handler.NewOTPHandler(authSvc)
	userH := handler.NewUserHandler(userSvc)

	// ── Public routes (no auth) ──────────────────────────────────────────
	r.Get("/health-check/{action}", healthH.Ping)
	r.With(otpRL.Limit).Post("/mobile", otpH.RequestOTP)
	r.Post("/otp", otpH.VerifyOTP)
	r.Post("/email", userH.SetEmail)
	r.Post("/name", userH.SetName)

	// ── Authenticated routes ─────────────────────────────────────────────
	r.Group(func(r chi.Router) {
		r.Use(authMw)

		r.Get("/me", userH.Me)
		r.Get("/protected", userH.Protected)
	})

	return r
}
