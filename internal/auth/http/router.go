package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aussiebroadwan/tokenauth/internal/auth/domain"
	"github.com/aussiebroadwan/tokenauth/internal/auth/service"
	"github.com/aussiebroadwan/tokenauth/internal/auth/store"
	"github.com/aussiebroadwan/tokenauth/pkg/httpx"
	"github.com/aussiebroadwan/tokenauth/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger
	limits       httpx.RateLimitProfiles

	store store.Store

	Authenticator *service.Authenticator
	Accounts      *service.AccountService
	TOTP          *service.TOTPService

	// Gatherer backs GET /metrics. Defaults to prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer
}

func NewRouter(
	buildVersion string,
	st store.Store,
	logger *slog.Logger,
	limits httpx.RateLimitProfiles,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		buildVersion: buildVersion,
		startTime:    time.Now(),
		logger:       logger,
		limits:       limits,
		store:        st,
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

// ApplyRoutes registers every route. Set the services first.
func (r *Router) ApplyRoutes() {
	r.registerLogin()
	r.registerSession()
	r.registerAccount()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

// authn accepts local access tokens and, when configured, Cognito tokens.
func (r *Router) authn() httpx.Middleware {
	return httpx.AuthnMiddleware(func(ctx context.Context, raw string) (httpx.Authenticated, error) {
		p, err := r.Authenticator.ValidateRequest(ctx, raw, domain.KindAccess)
		if err != nil {
			return httpx.Authenticated{}, err
		}
		return httpx.Authenticated{UserID: p.UserID, Principal: p}, nil
	})
}

// byIPAnd keys a limiter on the client address plus a JSON body field.
func byIPAnd(field string) httpx.KeyFunc {
	return httpx.Composite("|", httpx.ClientIP, httpx.ByJSONField(field))
}

func (r *Router) registerLogin() {
	h := &AuthHandler{Authenticator: r.Authenticator}

	r.Mux.Handle("POST /v1/auth/login",
		httpx.Chain(http.HandlerFunc(h.HandleLogin),
			httpx.RateLimit(r.limits.Strict, byIPAnd("email")),
		),
	)
	r.Mux.Handle("POST /v1/auth/google",
		httpx.Chain(http.HandlerFunc(h.HandleGoogle),
			httpx.RateLimit(r.limits.Strict, httpx.ClientIP),
		),
	)
	r.Mux.Handle("POST /v1/auth/cognito",
		httpx.Chain(http.HandlerFunc(h.HandleCognito),
			httpx.RateLimit(r.limits.Strict, httpx.ClientIP),
		),
	)

	// Keyed per target user as well as per address.
	r.Mux.Handle("POST /v1/auth/2fa/verify",
		httpx.Chain(http.HandlerFunc(h.HandleVerify2FA),
			httpx.RateLimit(r.limits.Strict, byIPAnd("user_id")),
		),
	)

	r.Mux.Handle("POST /v1/auth/refresh",
		httpx.Chain(http.HandlerFunc(h.HandleRefresh),
			httpx.RateLimit(r.limits.Moderate, httpx.ClientIP),
		),
	)
}

func (r *Router) registerSession() {
	h := &AuthHandler{Authenticator: r.Authenticator}
	t := &TOTPHandler{TOTP: r.TOTP}

	r.Mux.Handle("POST /v1/auth/logout",
		httpx.Chain(http.HandlerFunc(h.HandleLogout),
			r.authn(),
		),
	)
	r.Mux.Handle("GET /v1/auth/me",
		httpx.Chain(http.HandlerFunc(h.HandleMe),
			r.authn(),
			httpx.RateLimit(r.limits.Lenient, httpx.ByUser),
		),
	)
	r.Mux.Handle("POST /v1/auth/2fa/enroll",
		httpx.Chain(http.HandlerFunc(t.HandleEnroll),
			r.authn(),
			httpx.RateLimit(r.limits.Moderate, httpx.ByUser),
		),
	)
}

func (r *Router) registerAccount() {
	h := &AccountHandler{Accounts: r.Accounts}

	r.Mux.Handle("POST /v1/auth/register",
		httpx.Chain(http.HandlerFunc(h.HandleRegister),
			httpx.RateLimit(r.limits.Strict, httpx.ClientIP),
		),
	)
	r.Mux.Handle("POST /v1/auth/verify-email",
		httpx.Chain(http.HandlerFunc(h.HandleVerifyEmail),
			httpx.RateLimit(r.limits.Strict, httpx.ClientIP),
		),
	)
	r.Mux.Handle("POST /v1/auth/verify-email/resend",
		httpx.Chain(http.HandlerFunc(h.HandleResendVerification),
			httpx.RateLimit(r.limits.Strict, byIPAnd("email")),
		),
	)
	r.Mux.Handle("POST /v1/auth/password/forgot",
		httpx.Chain(http.HandlerFunc(h.HandleForgotPassword),
			httpx.RateLimit(r.limits.Strict, byIPAnd("email")),
		),
	)
	r.Mux.Handle("POST /v1/auth/password/reset",
		httpx.Chain(http.HandlerFunc(h.HandleResetPassword),
			httpx.RateLimit(r.limits.Strict, httpx.ClientIP),
		),
	)
	r.Mux.Handle("POST /v1/auth/otp/send",
		httpx.Chain(http.HandlerFunc(h.HandleSendOTP),
			httpx.RateLimit(r.limits.Strict, byIPAnd("email")),
		),
	)
	r.Mux.Handle("POST /v1/auth/otp/verify",
		httpx.Chain(http.HandlerFunc(h.HandleVerifyOTP),
			httpx.RateLimit(r.limits.Strict, httpx.ClientIP),
		),
	)
	r.Mux.Handle("POST /v1/auth/password/reset-otp",
		httpx.Chain(http.HandlerFunc(h.HandleResetPasswordOTP),
			httpx.RateLimit(r.limits.Strict, httpx.ClientIP),
		),
	)
	r.Mux.Handle("POST /v1/auth/password/change",
		httpx.Chain(http.HandlerFunc(h.HandleChangePassword),
			r.authn(),
			httpx.RateLimit(r.limits.Strict, httpx.ByUser),
		),
	)
}

func (r *Router) registerSystem() {
	gatherer := r.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	r.Mux.Handle("GET /livez", LivezHandler(r.startTime, r.buildVersion))
	r.Mux.Handle("GET /readyz", ReadyzHandler(r.startTime, r.buildVersion, r.store))
	r.Mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
}
