package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/atelierhq/loom-core/internal/httputil"
)

// Middleware returns a chi middleware that authenticates requests via Bearer
// service key.
func Middleware(store KeyStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := w.Header().Get("X-Request-ID")

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				httputil.WriteAuthError(w, "Missing Authorization header. Use: Authorization: Bearer <service-key>", reqID)
				return
			}

			token := strings.TrimPrefix(authHeader, "Bearer ")
			if token == authHeader {
				httputil.WriteAuthError(w, "Invalid Authorization format. Use: Authorization: Bearer <service-key>", reqID)
				return
			}
			if token == "" {
				httputil.WriteAuthError(w, "Empty service key", reqID)
				return
			}

			keyHash := HashKey(token)
			meta, err := store.Lookup(r.Context(), keyHash)
			if err != nil {
				slog.Error("key lookup failed", "error", err, "key_prefix", KeyPrefix(token))
				httputil.WriteInternalError(w, reqID)
				return
			}
			if meta == nil {
				slog.Warn("auth failed: key not found", "key_prefix", KeyPrefix(token))
				httputil.WriteAuthError(w, "Invalid service key", reqID)
				return
			}

			info := &AuthInfo{
				KeyID:       meta.ID,
				ServiceName: meta.ServiceName,
				Environment: meta.Environment,
				RPMLimit:    meta.RPMLimit,
			}

			ctx := ContextWithAuth(r.Context(), info)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
