package bdispatch_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/advdv/bdispatch"
	"github.com/advdv/bdispatch/internal/example"
	"github.com/advdv/bdispatch/route"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type ctxKey string

func TestWrapWithoutMiddleware(t *testing.T) {
	hdlr := bdispatch.HandlerFunc(func(context.Context, bdispatch.ResponseWriter, *bdispatch.Request) error {
		return nil
	})

	assert.Equal(t, fmt.Sprint(hdlr), fmt.Sprint(bdispatch.Wrap(hdlr))) // compare addrs
}

func TestWrapOrder(t *testing.T) {
	var res string

	inner := bdispatch.HandlerFunc(func(ctx context.Context, _ bdispatch.ResponseWriter, r *bdispatch.Request) error {
		res += fmt.Sprintf("inner %v %s", ctx.Value(ctxKey("foo")), r.Pattern)
		example.Log(ctx).Info("in handler")

		return errors.New("inner error")
	})

	mw := func(name string) bdispatch.Middleware {
		return func(n bdispatch.Handler) bdispatch.Handler {
			return bdispatch.HandlerFunc(func(ctx context.Context, w bdispatch.ResponseWriter, r *bdispatch.Request) error {
				if name == "3" {
					ctx = context.WithValue(ctx, ctxKey("foo"), "bar")
				}

				res += name + "("
				err := n.ServeBHTTP(ctx, w, r)
				res += ")" + name

				return fmt.Errorf("%s(%w)", name, err)
			})
		}
	}

	core, logs := observer.New(zap.InfoLevel)

	b := route.NewBuilder[bdispatch.Handler]()
	b.Path("items").Wild().Handle(inner)

	testLogs := bdispatch.NewTestLogger(t)
	d := newDispatcher(t, b,
		bdispatch.WithLogger(testLogs),
		bdispatch.WithMiddleware(example.Middleware(zap.New(core)), mw("3"), mw("2")),
		bdispatch.WithMiddleware(mw("1")))

	rec := serve(d, http.MethodGet, "/items/x")
	assert.Equal(t, "3(2(1(inner bar /items/*)1)2)3", res)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, int64(1), testLogs.NumLogUnhandledServeError)

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, map[string]any{"method": "GET", "pattern": "/items/*"}, logs.All()[0].ContextMap())
}

func TestMiddlewareSeesNotFound(t *testing.T) {
	var seen []bdispatch.Code

	record := func(n bdispatch.Handler) bdispatch.Handler {
		return bdispatch.HandlerFunc(func(ctx context.Context, w bdispatch.ResponseWriter, r *bdispatch.Request) error {
			err := n.ServeBHTTP(ctx, w, r)
			seen = append(seen, bdispatch.CodeOf(err))

			return err
		})
	}

	d := newDispatcher(t, route.NewBuilder[bdispatch.Handler](), bdispatch.WithMiddleware(record))
	serve(d, http.MethodGet, "/nothing")
	assert.Equal(t, []bdispatch.Code{bdispatch.CodeNotFound}, seen)
}

func TestRecoverAndReset(t *testing.T) {
	hdlr := bdispatch.HandlerFunc(func(_ context.Context, w bdispatch.ResponseWriter, _ *bdispatch.Request) error {
		w.Header().Set("X-Foo", "bar")
		w.WriteHeader(http.StatusCreated)
		fmt.Fprintf(w, "some body") // this will be reset

		panic("some panic")
	})

	b := route.NewBuilder[bdispatch.Handler]()
	b.Handle(hdlr)

	d := newDispatcher(t, b, bdispatch.WithMiddleware(Errorer(), Recoverer()))

	rec := httptest.NewRecorder()
	d.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, http.Header{
		"Content-Type":           {"text/plain; charset=utf-8"},
		"X-Content-Type-Options": {"nosniff"},
	}, rec.Header())
	assert.Equal(t, `recovered: some panic`+"\n", rec.Body.String())
}

// Errorer middleware will reset the buffered response, and return a server error.
func Errorer() bdispatch.Middleware {
	return func(next bdispatch.Handler) bdispatch.Handler {
		return bdispatch.HandlerFunc(func(ctx context.Context, w bdispatch.ResponseWriter, r *bdispatch.Request) error {
			if err := next.ServeBHTTP(ctx, w, r); err != nil {
				w.Reset()
				http.Error(w, err.Error(), http.StatusInternalServerError)
			}

			return nil
		})
	}
}

// Recoverer middleware will recover any panics and turn it into an error.
func Recoverer() bdispatch.Middleware {
	return func(next bdispatch.Handler) bdispatch.Handler {
		return bdispatch.HandlerFunc(func(ctx context.Context, w bdispatch.ResponseWriter, r *bdispatch.Request) (err error) {
			defer func() {
				if e := recover(); e != nil {
					err = fmt.Errorf("recovered: %v", e) //nolint:goerr113
				}
			}()

			return next.ServeBHTTP(ctx, w, r)
		})
	}
}
