package middleware

import (
	"context"
	"log/slog"
	"net/http"
)

// UserIDHeader carries the authenticated caller's opaque user ID. The
// authentication mechanism itself lives at the edge (gateway); this
// service only consumes the identity it forwards.
const UserIDHeader = "X-User-ID"

type contextKey string

const userIDKey contextKey = "user_id"

// Identity is a middleware factory that requires a caller identity on the
// request and stores it in the request context.
func Identity(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := r.Header.Get(UserIDHeader)
			if userID == "" {
				logger.Warn("user identity missing from request", "remote_addr", r.RemoteAddr, "path", r.URL.Path)
				http.Error(w, "Unauthorized: user identity required", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserID returns the caller identity stored by Identity, or an empty
// string if the middleware did not run.
func UserID(ctx context.Context) string {
	userID, _ := ctx.Value(userIDKey).(string)
	return userID
}
