package testutil

import (
	"net/http"
	"time"

	id "evidentia/pkg/domain"
	"evidentia/pkg/requestcontext"
)

// WithActor attaches an authenticated actor the way the auth middleware does.
func WithActor(req *http.Request, userID string, tenantID id.TenantID, role string) *http.Request {
	ctx := requestcontext.WithActor(req.Context(), requestcontext.ActorInfo{
		UserID:   userID,
		TenantID: tenantID,
		Role:     role,
	})
	return req.WithContext(ctx)
}

// WithRequestID sets the correlation ID normally assigned by the request middleware.
func WithRequestID(req *http.Request, requestID string) *http.Request {
	return req.WithContext(requestcontext.WithRequestID(req.Context(), requestID))
}

// WithTime pins the request clock.
func WithTime(req *http.Request, t time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), t))
}
