package testutil

import (
	"net/http"

	"selfid/pkg/domain"
	"selfid/pkg/requestcontext"
)

// WithDID adds an authenticated identity to the request context.
// This simulates what the auth middleware would do for authenticated requests.
// Invalid DIDs are silently ignored.
func WithDID(req *http.Request, id string) *http.Request {
	parsed, err := domain.ParseDID(id)
	if err != nil {
		return req
	}
	return req.WithContext(requestcontext.WithDID(req.Context(), parsed))
}
