package testutil

import (
	"net/http"
	"time"

	"sanctuary/pkg/requestcontext"

	"github.com/ethereum/go-ethereum/common"
)

// WithPrincipal simulates the auth middleware for an authenticated caller.
func WithPrincipal(req *http.Request, caller common.Address) *http.Request {
	return req.WithContext(requestcontext.WithPrincipal(req.Context(), caller))
}

// WithRequestTime pins the request-scoped clock.
func WithRequestTime(req *http.Request, now time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), now))
}
