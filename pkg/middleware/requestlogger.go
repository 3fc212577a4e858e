package middleware

import (
	"log/slog"
	"net/http"

	"github.com/mahmoodamara/storefront/pkg/logger"
)

// RequestLogger builds a request-scoped logger carrying correlation_id,
// user_id, and the active trace ids, then stores it in the context for
// handlers to fetch with logger.FromContext. Mount it after RequestLogging
// and Tracing, and after Auth where the route is authenticated.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			// The auth middleware is the normal source of the user id; the
			// X-User-ID header covers internal calls that skip auth.
			userID := UserIDFromContext(ctx)
			if userID == "" {
				userID = r.Header.Get("X-User-ID")
			}
			if userID != "" {
				ctx = logger.WithUserID(ctx, userID)
			}

			enriched := logger.WithContext(ctx, base)
			ctx = logger.NewContext(ctx, enriched)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
