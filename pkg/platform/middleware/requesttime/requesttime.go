// Package requesttime captures one timestamp per request so every record a
// request produces (drafts, evidence, audit events) carries the same "now".
package requesttime

import (
	"net/http"
	"time"

	"evidentia/pkg/requestcontext"
)

// Middleware stores the request start time in the context.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now().UTC())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
