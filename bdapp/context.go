package bdapp

import (
	"context"
	"time"

	"github.com/advdv/bdispatch"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type ctxKey int

const ctxKeyRequestDep ctxKey = iota

// requestDep holds request-scoped dependencies available via context.
// App-scoped dependencies (env, router, uploads) are accessed via Runtime instead.
type requestDep struct {
	logger *zap.Logger
}

// withRequestDep injects dependencies into the request context.
func withRequestDep(d *requestDep) bdispatch.Middleware {
	return func(next bdispatch.Handler) bdispatch.Handler {
		return bdispatch.HandlerFunc(func(ctx context.Context, w bdispatch.ResponseWriter, r *bdispatch.Request) error {
			rd := &requestDep{logger: d.logger.With(
				zap.String("method", r.Method),
				zap.String("pattern", r.Pattern),
			)}

			return next.ServeBHTTP(context.WithValue(ctx, ctxKeyRequestDep, rd), w, r)
		})
	}
}

// withAccessLog logs every request once the handler returned. Errors are logged with the code they
// are rendered with.
func withAccessLog() bdispatch.Middleware {
	return func(next bdispatch.Handler) bdispatch.Handler {
		return bdispatch.HandlerFunc(func(ctx context.Context, w bdispatch.ResponseWriter, r *bdispatch.Request) error {
			start := time.Now()
			err := next.ServeBHTTP(ctx, w, r)

			fields := []zap.Field{zap.String("path", r.Path), zap.Duration("duration", time.Since(start))}
			if err != nil {
				code := bdispatch.CodeOf(err)
				if code == bdispatch.CodeUnknown {
					code = bdispatch.CodeInternalServerError
				}

				Log(ctx).Info("request failed", append(fields, zap.Int("code", int(code)), zap.Error(err))...)
				return err
			}

			Log(ctx).Debug("request served", fields...)

			return nil
		})
	}
}

// RequestLogger makes l available to handlers through Log.
func RequestLogger(l *zap.Logger) bdispatch.Middleware {
	return withRequestDep(&requestDep{logger: l})
}

func requestDepFromContext(ctx context.Context) *requestDep {
	d, ok := ctx.Value(ctxKeyRequestDep).(*requestDep)
	if !ok {
		panic("bdapp: requestDep not found in context; is the middleware configured?")
	}
	return d
}

// Log returns a trace-correlated zap logger from the context.
func Log(ctx context.Context) *zap.Logger {
	d := requestDepFromContext(ctx)
	return d.logger.With(traceFields(ctx)...)
}

// Span returns the current trace span from the context.
func Span(ctx context.Context) trace.Span {
	return trace.SpanFromContext(ctx)
}

// traceFields extracts trace_id and span_id from the context for log correlation.
func traceFields(ctx context.Context) []zap.Field {
	span := trace.SpanFromContext(ctx)
	if !span.SpanContext().IsValid() {
		return nil
	}
	sc := span.SpanContext()
	return []zap.Field{
		zap.String("trace_id", sc.TraceID().String()),
		zap.String("span_id", sc.SpanID().String()),
	}
}
