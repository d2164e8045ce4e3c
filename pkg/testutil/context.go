package testutil

import (
	"net/http"
	"time"

	"askme/pkg/requestcontext"
)

// WithRequestTime pins the request-scoped clock, simulating what the
// request-time middleware would do.
func WithRequestTime(req *http.Request, now time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), now))
}

// WithClientMetadata injects client IP and User-Agent, simulating the
// client-metadata middleware.
func WithClientMetadata(req *http.Request, clientIP, userAgent string) *http.Request {
	return req.WithContext(requestcontext.WithClientMetadata(req.Context(), clientIP, userAgent))
}
