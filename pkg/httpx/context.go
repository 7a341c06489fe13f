package httpx

import "context"

type ctxKey string

const (
	CtxKeyUserID    ctxKey = "user_id"
	CtxKeyPrincipal ctxKey = "principal"
)

// UserIDFromContext returns the authenticated user id, if any.
func UserIDFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(CtxKeyUserID).(string)
	return v, ok && v != ""
}

// PrincipalFromContext returns whatever the bearer validator attached.
func PrincipalFromContext(ctx context.Context) any {
	return ctx.Value(CtxKeyPrincipal)
}

// BearerFromContext returns the raw bearer token the request authenticated
// with.
func BearerFromContext(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeyBearer).(string)
	return v
}

const ctxKeyBearer ctxKey = "bearer"

func contextWithAuth(ctx context.Context, raw string, a Authenticated) context.Context {
	ctx = context.WithValue(ctx, CtxKeyUserID, a.UserID)
	ctx = context.WithValue(ctx, CtxKeyPrincipal, a.Principal)
	ctx = context.WithValue(ctx, ctxKeyBearer, raw)
	return ctx
}
