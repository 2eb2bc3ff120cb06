// Package example implements example middleware in an outside package.
package example

import (
	"context"

	"github.com/advdv/bdispatch"
	"go.uber.org/zap"
)

// ctxKey type scopes middlware values.
type ctxKey string

// Middleware provides an example for middleware that adds a logger to the context.
func Middleware(logs *zap.Logger) bdispatch.Middleware {
	return func(n bdispatch.Handler) bdispatch.Handler {
		return bdispatch.HandlerFunc(func(ctx context.Context, w bdispatch.ResponseWriter, r *bdispatch.Request) error {
			logs := logs.With(zap.String("method", r.Method), zap.String("pattern", r.Pattern))

			return n.ServeBHTTP(context.WithValue(ctx, ctxKey("zap"), logs), w, r)
		})
	}
}

// Log returns the logger the middleware stored, or a no-op logger.
func Log(ctx context.Context) *zap.Logger {
	if v, ok := ctx.Value(ctxKey("zap")).(*zap.Logger); ok {
		return v
	}

	return zap.NewNop()
}
