package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-verify-api/internal/application/otp"
	"github.com/go-verify-api/internal/application/reset"
	"github.com/go-verify-api/internal/application/session"
	"github.com/go-verify-api/internal/config"
	"github.com/go-verify-api/internal/infrastructure/dynamo"
	jwtinfra "github.com/go-verify-api/internal/infrastructure/jwt"
	"github.com/go-verify-api/internal/notify"
	"github.com/go-verify-api/internal/pkg/audit"
	"github.com/go-verify-api/internal/pkg/ratelimit"
	"github.com/go-verify-api/internal/transport/http/handler"
	appmiddleware "github.com/go-verify-api/internal/transport/http/middleware"
	"golang.org/x/time/rate"
)

// Deps holds all infrastructure dependencies for the router.
type Deps struct {
	CredentialRepo *dynamo.CredentialRepo
	ResetRepo      *dynamo.ResetRepo
	UserRepo       *dynamo.UserRepo
	SessionRepo    *dynamo.SessionRepo
	ResetTxn       *dynamo.ResetTxn
	Dispatcher     *notify.Dispatcher
	AuditLog       *audit.Logger
	OTPLimiter     *ratelimit.WindowLimiter
	ResetLimiter   *ratelimit.WindowLimiter
	JWTProvider    *jwtinfra.Provider
}

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
		AllowCredentials: false,
		MaxAge:           300,
	}))

	var authMw func(http.Handler) http.Handler
	if deps.JWTProvider != nil {
		authMw = appmiddleware.Auth(deps.JWTProvider)
	} else {
		authMw = func(next http.Handler) http.Handler { return next }
	}

	// 5 requests/second, burst of 10 — applied to sensitive public endpoints.
	sensitiveRL := appmiddleware.NewRateLimiter(rate.Limit(5), 10)

	otpSvc := otp.NewService(otp.ServiceDeps{
		CredentialRepo: deps.CredentialRepo,
		AccountRepo:    deps.UserRepo,
		IssueLimiter:   deps.OTPLimiter,
		Notifier:       deps.Dispatcher,
		AuditLog:       deps.AuditLog,
	})
	resetSvc := reset.NewService(reset.ServiceDeps{
		ResetRepo:      deps.ResetRepo,
		AccountRepo:    deps.UserRepo,
		SessionRepo:    deps.SessionRepo,
		ConsumeTxn:     deps.ResetTxn,
		RequestLimiter: deps.ResetLimiter,
		Notifier:       deps.Dispatcher,
		AuditLog:       deps.AuditLog,
	})

	sessionSvc := session.NewService(session.ServiceDeps{
		SessionRepo: deps.SessionRepo,
		AuditLog:    deps.AuditLog,
	})

	verificationH := handler.NewVerificationHandler(otpSvc)
	resetH := handler.NewPasswordResetHandler(resetSvc)
	sessionH := handler.NewSessionHandler(sessionSvc)

	r.Route("/v1", func(r chi.Router) {
		// ── Public routes (no auth) ──────────────────────────────────────────
		r.Get("/health-check", handler.Health)
		r.With(sensitiveRL.Limit).Post("/password-reset/{action}", resetH.Action)

		// ── Authenticated routes ─────────────────────────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(authMw)

			r.Post("/verification/{action}", verificationH.Action)
			r.Post("/sessions/logout", sessionH.Logout)
		})
	})

	return r
}
