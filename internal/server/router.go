package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/terraconstructs/gridlogin/internal/auth"
	"github.com/terraconstructs/gridlogin/internal/services/flow"
	"github.com/terraconstructs/gridlogin/internal/services/passkey"
	"github.com/terraconstructs/gridlogin/internal/telemetry"
	"github.com/terraconstructs/gridlogin/internal/validation"
)

// FlowService runs the login and registration flows. Implemented by *flow.Service.
type FlowService interface {
	Register(ctx context.Context, in flow.RegisterInput, write flow.SessionWriter) (*flow.RegisterResult, error)
	Login(ctx context.Context, in flow.LoginInput, write flow.SessionWriter) (*flow.LoginResult, error)
	StartPasskeyLogin(ctx context.Context, loginName string, writePending flow.SessionWriter) (*flow.PasskeyChallenge, error)
	FinishPasskeyLogin(ctx context.Context, in flow.PasskeyLoginInput, write flow.SessionWriter) (*flow.PasskeyLoginResult, error)
	Logout(ctx context.Context, session auth.Session) error
	FinalizeAuthRequest(ctx context.Context, session auth.Session, authRequestID string) (string, error)
	ChangePassword(ctx context.Context, in flow.ChangePasswordInput) error
	ResetPassword(ctx context.Context, in flow.ResetPasswordInput) error
	RequestPasswordReset(ctx context.Context, loginName string) error
	StartExternalLogin(ctx context.Context, in flow.ExternalStartInput) (string, error)
	CompleteExternalLogin(ctx context.Context, in flow.ExternalLoginInput, write flow.SessionWriter) error
}

// PasskeyService runs the passkey registration ceremony. Implemented by *passkey.Service.
type PasskeyService interface {
	BeginRegistration(ctx context.Context, orgID, userID string) (*passkey.Registration, error)
	FinishRegistration(ctx context.Context, orgID, userID, passkeyID string, credential json.RawMessage, name string) error
}

// Compile-time verification that the services satisfy the handler contracts
var (
	_ FlowService    = (*flow.Service)(nil)
	_ PasskeyService = (*passkey.Service)(nil)
)

// RouterOptions controls the construction of the login HTTP router.
type RouterOptions struct {
	Flows         FlowService
	Passkeys      PasskeyService
	Validator     *validation.Validator
	Cookies       *auth.Cookies
	Metrics       *telemetry.Metrics
	Logger        *zap.Logger
	CORSOptions   *cors.Options
	Middleware    []func(http.Handler) http.Handler
	HealthHandler http.HandlerFunc
}

// DefaultCORSOptions returns the CORS policy for the login pages served from origins.
func DefaultCORSOptions(origins []string) cors.Options {
	return cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}
}

func defaultHealthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// NewRouter assembles a chi.Router with shared middleware, CORS policy and the /api routes.
func NewRouter(opts RouterOptions) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Without configured origins the API is same-origin only.
	if opts.CORSOptions != nil {
		r.Use(cors.Handler(*opts.CORSOptions))
	}

	if opts.Metrics != nil {
		r.Use(opts.Metrics.Instrument)
	}
	for _, mw := range opts.Middleware {
		if mw != nil {
			r.Use(mw)
		}
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &handlers{
		flows:     opts.Flows,
		passkeys:  opts.Passkeys,
		validator: opts.Validator,
		cookies:   opts.Cookies,
		logger:    logger,
	}

	r.Route("/api", func(r chi.Router) {
		if opts.Flows != nil {
			r.Post("/register", h.register)
			r.Post("/login", h.login)
			r.Post("/logout", h.logout)
			r.Post("/auth_request/finalize", h.finalize)
			r.Post("/passkey/start", h.passkeyStart)
			r.Post("/passkey/login", h.passkeyLogin)
			r.Post("/users/password", h.changePassword)
			r.Post("/users/request-code", h.requestCode)
			r.Post("/users/verify-code", h.verifyCode)
			r.Post("/external/start", h.externalStart)
			r.Post("/login/external", h.externalLogin)
		} else {
			logger.Warn("flow service not configured, skipping login routes")
		}
		if opts.Passkeys != nil {
			r.Post("/passkey/register", h.passkeyRegister)
			r.Post("/passkey/verify", h.passkeyVerify)
		}
	})

	healthHandler := opts.HealthHandler
	if healthHandler == nil {
		healthHandler = defaultHealthHandler
	}
	r.Get("/health", healthHandler)

	if opts.Metrics != nil {
		r.Handle("/metrics", opts.Metrics.Handler())
	}

	return r
}
