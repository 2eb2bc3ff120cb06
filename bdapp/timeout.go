package bdapp

import (
	"context"
	"time"

	"github.com/advdv/bdispatch"
)

// DefaultRequestTimeout applies when BD_REQUEST_TIMEOUT is not positive.
const DefaultRequestTimeout = 30 * time.Second

// TimeoutConfig holds timeout configuration for the HTTP server.
type TimeoutConfig struct {
	// RequestTimeout bounds the time a single request may take, from reading the headers to writing
	// the response.
	RequestTimeout time.Duration
}

func (tc TimeoutConfig) timeout() time.Duration {
	if tc.RequestTimeout <= 0 {
		return DefaultRequestTimeout
	}

	return tc.RequestTimeout
}

// ServerTimeouts returns the http.Server timeout values. Reading headers is capped at five seconds,
// bodies may stream for the whole request timeout. The write timeout leaves one extra second to
// render a timeout error.
func (tc TimeoutConfig) ServerTimeouts() (readHeaderTimeout, readTimeout, writeTimeout, idleTimeout time.Duration) {
	timeout := tc.timeout()

	readHeaderTimeout = min(timeout, 5*time.Second)
	readTimeout = timeout
	writeTimeout = timeout + time.Second
	idleTimeout = 2 * timeout

	return
}

// WithRequestDeadline returns middleware that sets a context deadline of timeout on every request,
// a non-positive timeout selects DefaultRequestTimeout.
func WithRequestDeadline(timeout time.Duration) bdispatch.Middleware {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}

	return func(next bdispatch.Handler) bdispatch.Handler {
		return bdispatch.HandlerFunc(func(ctx context.Context, w bdispatch.ResponseWriter, r *bdispatch.Request) error {
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			return next.ServeBHTTP(ctx, w, r)
		})
	}
}

// RequestRemainingTime returns the duration until the request context deadline.
// Returns 0 if no deadline is set or if the deadline has passed.
func RequestRemainingTime(ctx context.Context) time.Duration {
	deadline, ok := ctx.Deadline()
	if !ok {
		return 0
	}
	remaining := time.Until(deadline)
	if remaining < 0 {
		return 0
	}
	return remaining
}
