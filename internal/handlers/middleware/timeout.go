package middleware

import (
	"context"
	"net/http"
	"time"
)

// Timeout bounds request context with deadline
// Handlers see context.DeadlineExceeded from store calls once it passed
func Timeout(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
