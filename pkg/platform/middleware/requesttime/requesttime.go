// Package requesttime captures one "now" per request so every log line and
// audit event of a request carries the same timestamp.
package requesttime

import (
	"net/http"
	"time"

	"antns/pkg/requestcontext"
)

// Middleware captures the current time at the start of the request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
