package bdispatch

import (
	"context"
	"net/http"
)

// ResponseWriter implements the http.ResponseWriter but the underlying bytes are buffered. This allows
// middleware to reset the writer and formulate a completely new response.
type ResponseWriter interface {
	http.ResponseWriter
	Reset()
	Free()
	FlushBuffer() error
}

// Handler serves a dispatched request. Returning an error discards whatever was buffered and lets the
// dispatcher render an error response.
type Handler interface {
	ServeBHTTP(ctx context.Context, w ResponseWriter, r *Request) error
}

// HandlerFunc allow casting a function to implement [Handler].
type HandlerFunc func(context.Context, ResponseWriter, *Request) error

// ServeBHTTP implements the [Handler] interface.
func (f HandlerFunc) ServeBHTTP(ctx context.Context, w ResponseWriter, r *Request) error {
	return f(ctx, w, r)
}

// StdHandler adapts a standard library handler. The handler owns its error responses; it sees the
// transport's *http.Request when the request came in through [Dispatcher.ServeHTTP] and a request
// rebuilt from the dispatched path and headers otherwise.
func StdHandler(h http.Handler) Handler {
	return HandlerFunc(func(ctx context.Context, w ResponseWriter, r *Request) error {
		hr, err := r.HTTPRequest(ctx)
		if err != nil {
			return err
		}

		h.ServeHTTP(w, hr)

		return nil
	})
}
