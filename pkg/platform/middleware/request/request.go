// Package request assigns every inbound request a correlation ID.
package request

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"evidentia/pkg/platform/httputil"
	"evidentia/pkg/requestcontext"
)

const maxCorrelationIDLength = 128

// RequestID reuses a well-formed inbound X-Correlation-ID or mints a new one,
// stores it in the context and echoes it on the response.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := strings.TrimSpace(r.Header.Get(httputil.CorrelationHeader))
		if reqID == "" || len(reqID) > maxCorrelationIDLength || strings.ContainsAny(reqID, "\r\n") {
			reqID = uuid.NewString()
		}
		w.Header().Set(httputil.CorrelationHeader, reqID)
		next.ServeHTTP(w, r.WithContext(requestcontext.WithRequestID(r.Context(), reqID)))
	})
}

// GetRequestID retrieves the correlation ID from the context.
func GetRequestID(ctx context.Context) string {
	return requestcontext.RequestID(ctx)
}
