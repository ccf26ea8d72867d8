package middleware

import (
	"log/slog"
	"net/http"

	"github.com/utafrali/storefront/pkg/logger"
)

// UserIDHeader optionally names the shopper a request acts for. It is only
// used to enrich logs; there is no authentication.
const UserIDHeader = "X-User-ID"

// RequestLogger stores a request-scoped logger (correlation_id, user_id,
// trace_id, span_id) in the context for logger.FromContext.
//
// Mount it after RequestLogging and Tracing.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if userID := r.Header.Get(UserIDHeader); userID != "" {
				ctx = logger.WithUserID(ctx, userID)
			}

			ctx = logger.NewContext(ctx, logger.WithContext(ctx, base))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
