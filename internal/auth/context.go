package auth

import (
	"context"
)

type contextKey string

const authContextKey contextKey = "loom_auth"

// AuthInfo is the authenticated identity of a caller service, extracted from
// its service key.
type AuthInfo struct {
	KeyID       string
	ServiceName string
	Environment string
	RPMLimit    *int
}

func ContextWithAuth(ctx context.Context, info *AuthInfo) context.Context {
	return context.WithValue(ctx, authContextKey, info)
}

func AuthFromContext(ctx context.Context) (*AuthInfo, bool) {
	info, ok := ctx.Value(authContextKey).(*AuthInfo)
	return info, ok
}
