package bdispatch_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/advdv/bdispatch"
	"github.com/advdv/bdispatch/route"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDispatcher(t *testing.T, b *route.Builder[bdispatch.Handler], opts ...bdispatch.Option) *bdispatch.Dispatcher {
	t.Helper()

	routes, err := b.Routes()
	require.NoError(t, err)

	d, err := bdispatch.New(routes, append([]bdispatch.Option{bdispatch.WithLogger(bdispatch.NewTestLogger(t))}, opts...)...)
	require.NoError(t, err)

	return d
}

func serve(d http.Handler, method, target string) *httptest.ResponseRecorder {
	rec, req := httptest.NewRecorder(), httptest.NewRequest(method, target, nil)
	d.ServeHTTP(rec, req)

	return rec
}

func handleHello(_ context.Context, w bdispatch.ResponseWriter, r *bdispatch.Request) error {
	w.Header().Set("Is-Bar", "rab")
	w.WriteHeader(http.StatusCreated)

	fmt.Fprintf(w, `hello %s, at %s`, r.Query().Values("name"), r.Path)

	if r.Path == "/trigger-error" {
		return errors.New("triggered error")
	}

	return nil
}

func TestDispatchBasic(t *testing.T) {
	logs := bdispatch.NewTestLogger(t)
	b := route.NewBuilder[bdispatch.Handler]()
	b.Path("bar").Method(http.MethodGet).Handle(bdispatch.HandlerFunc(handleHello))
	b.Path("trigger-error").Handle(bdispatch.HandlerFunc(handleHello))

	d := newDispatcher(t, b, bdispatch.WithLogger(logs))

	rec := serve(d, http.MethodGet, "/BAR/?name=foo#top")
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, `rab`, rec.Header().Get("Is-Bar"))
	require.Equal(t, `hello [foo], at /BAR`, rec.Body.String())

	t.Run("unhandled errors become a 500", func(t *testing.T) {
		rec := serve(d, http.MethodPost, "/trigger-error")
		require.Equal(t, http.StatusInternalServerError, rec.Code)
		require.Empty(t, rec.Header().Get("Is-Bar"))
		require.Equal(t, `Internal Server Error`+"\n", rec.Body.String())
		require.Equal(t, int64(1), logs.NumLogUnhandledServeError)
	})

	t.Run("unknown routes are not found", func(t *testing.T) {
		rec := serve(d, http.MethodPost, "/bar")
		require.Equal(t, http.StatusNotFound, rec.Code)
		require.Equal(t, "Not Found: no route for POST /bar\n", rec.Body.String())
		require.Equal(t, int64(1), logs.NumLogUnhandledServeError, "coded errors are not logged")
	})
}

func TestDispatchCodedError(t *testing.T) {
	b := route.NewBuilder[bdispatch.Handler]()
	b.Path("protected").Handle(bdispatch.HandlerFunc(func(_ context.Context, w bdispatch.ResponseWriter, r *bdispatch.Request) error {
		fmt.Fprint(w, "partial output")
		if r.Header("Authorization") == "" {
			return bdispatch.NewError(bdispatch.CodeUnauthorized, errors.New("missing token"))
		}

		return nil
	}))

	rec := serve(newDispatcher(t, b), http.MethodGet, "/protected")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Unauthorized: missing token\n", rec.Body.String())
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestDispatchWildcards(t *testing.T) {
	echo := bdispatch.HandlerFunc(func(_ context.Context, w bdispatch.ResponseWriter, r *bdispatch.Request) error {
		fmt.Fprintf(w, "%s %v %q", r.Pattern, r.Captures, r.Capture(5))
		return nil
	})

	b := route.NewBuilder[bdispatch.Handler]()
	users := b.Path("users")
	users.Method(http.MethodGet).Handle(echo)
	users.Wild().Path("posts").Wild().Method(http.MethodGet).Named("user_post").Handle(echo)
	b.Path("static").Trailing().Handle(echo)

	for _, opts := range [][]bdispatch.Option{nil, {bdispatch.WithSuffixTrie()}} {
		d := newDispatcher(t, b, opts...)

		assert.Equal(t, `/users [] ""`, serve(d, http.MethodGet, "/users").Body.String())
		assert.Equal(t, `/users/*/posts/* [12 7] ""`, serve(d, http.MethodGet, "/users/12/posts/7").Body.String())
		assert.Equal(t, `/static/** [css/a.css] ""`, serve(d, http.MethodHead, "/static/css/a.css?v=1").Body.String())
		assert.Equal(t, http.StatusNotFound, serve(d, http.MethodGet, "/static").Code)

		loc, err := d.Reverse("user_post", "12", "7")
		require.NoError(t, err)
		assert.Equal(t, "/users/12/posts/7", loc)
	}
}

func TestDispatchRejectsInvalidRoutes(t *testing.T) {
	_, err := bdispatch.New([]route.Route[bdispatch.Handler]{
		{Method: http.MethodGet, Path: "/a"},
		{Method: http.MethodGet, Path: "/a/"},
	})
	require.ErrorIs(t, err, route.ErrDuplicateRoute)

	_, err = bdispatch.New([]route.Route[bdispatch.Handler]{
		{Method: http.MethodGet, Path: "/a", Name: "x"},
		{Method: http.MethodGet, Path: "/b", Name: "x"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestDispatchStdHandler(t *testing.T) {
	b := route.NewBuilder[bdispatch.Handler]()
	b.Path("std").Method(http.MethodGet).Handle(bdispatch.StdHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "std:%s:%s", r.URL.Path, r.URL.Query().Get("x"))
	})))
	b.Path("teapot").Handle(bdispatch.StdHandler(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "custom error", http.StatusTeapot)
	})))

	d := newDispatcher(t, b)

	rec := serve(d, http.MethodGet, "/std/?x=1")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "std:/std:1", rec.Body.String())

	rec = serve(d, http.MethodGet, "/teapot")
	require.Equal(t, http.StatusTeapot, rec.Code)
	require.Equal(t, "custom error\n", rec.Body.String())
}

func TestDispatchBufferLimit(t *testing.T) {
	logs := bdispatch.NewTestLogger(t)
	b := route.NewBuilder[bdispatch.Handler]()
	b.Path("big").Handle(bdispatch.HandlerFunc(func(_ context.Context, w bdispatch.ResponseWriter, _ *bdispatch.Request) error {
		_, err := w.Write([]byte(strings.Repeat("x", 100)))
		return err
	}))

	rec := serve(newDispatcher(t, b, bdispatch.WithLogger(logs), bdispatch.WithBufferLimit(10)), http.MethodGet, "/big")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, int64(1), logs.NumLogUnhandledServeError)
}

func TestDispatchNotFoundHandler(t *testing.T) {
	d := newDispatcher(t, route.NewBuilder[bdispatch.Handler](),
		bdispatch.WithNotFound(bdispatch.HandlerFunc(func(_ context.Context, w bdispatch.ResponseWriter, r *bdispatch.Request) error {
			w.WriteHeader(http.StatusGone)
			fmt.Fprintf(w, "gone: %s", r.Path)
			return nil
		})))

	rec := serve(d, http.MethodDelete, "/x//y/")
	assert.Equal(t, http.StatusGone, rec.Code)
	assert.Equal(t, "gone: /x/y", rec.Body.String())
}

func TestDispatchMetrics(t *testing.T) {
	reg := prometheus.NewPedanticRegistry()
	metrics := bdispatch.NewMetrics(reg)

	b := route.NewBuilder[bdispatch.Handler]()
	b.Path("items").Wild().Method(http.MethodGet).Handle(bdispatch.HandlerFunc(handleHello))

	d := newDispatcher(t, b, bdispatch.WithMetrics(metrics))
	serve(d, http.MethodGet, "/items/1")
	serve(d, http.MethodGet, "/items/2")
	serve(d, "BREW", "/coffee")

	expected := `
# HELP bdispatch_dispatcher_route_misses_total Total number of requests no route matched
# TYPE bdispatch_dispatcher_route_misses_total counter
bdispatch_dispatcher_route_misses_total 1
# HELP bdispatch_dispatcher_requests_total Total number of dispatched requests by route pattern and status code
# TYPE bdispatch_dispatcher_requests_total counter
bdispatch_dispatcher_requests_total{code="201",method="GET",pattern="/items/*"} 2
bdispatch_dispatcher_requests_total{code="404",method="OTHER",pattern=""} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"bdispatch_dispatcher_route_misses_total", "bdispatch_dispatcher_requests_total"))
}
