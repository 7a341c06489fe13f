package httpx

import (
	"context"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/tokenauth/pkg/slogx"
)

// Authenticated is what a BearerValidator learns about the caller.
type Authenticated struct {
	UserID    string
	Principal any
}

// BearerValidator checks a raw bearer token.
type BearerValidator func(ctx context.Context, token string) (Authenticated, error)

// AuthnMiddleware rejects requests without a valid bearer token and stores the
// caller in the request context otherwise.
func AuthnMiddleware(validate BearerValidator) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			raw, ok := BearerToken(r)
			if !ok {
				writeBearerError(w, "missing bearer token")
				return
			}

			who, err := validate(ctx, raw)
			if err != nil {
				slogx.FromContext(ctx).Info("bearer rejected", "err", err)
				writeBearerError(w, "token verification failed")
				return
			}

			ctx = contextWithAuth(ctx, raw, who)
			ctx = slogx.WithUserID(ctx, who.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// BearerToken extracts the token from an "Authorization: Bearer" header. The
// scheme is matched case-insensitively.
func BearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// RFC 6750-compliant error response for bearer auth.
func writeBearerError(w http.ResponseWriter, desc string) {
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token", error_description="`+desc+`"`)
	WriteError(w, http.StatusUnauthorized, "invalid_token", desc)
}
