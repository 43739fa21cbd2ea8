package testutil

import (
	"context"
	"net/http"
	"time"

	"onboarding/pkg/requestcontext"
)

// WithRequestScope pins the request id and clock on req, as the request
// middleware would.
func WithRequestScope(req *http.Request, requestID string, now time.Time) *http.Request {
	ctx := requestcontext.WithRequestID(req.Context(), requestID)
	ctx = requestcontext.WithTime(ctx, now)
	return req.WithContext(ctx)
}

// FixedContext returns a background context whose request-scoped clock is now.
func FixedContext(now time.Time) context.Context {
	return requestcontext.WithTime(context.Background(), now)
}
