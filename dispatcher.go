package bdispatch

import (
	"context"
	"log"
	"net/http"
	"slices"
	"time"

	"github.com/advdv/bdispatch/route"
	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// DefaultMaxBodyBytes limits bodies that are decoded into memory.
const DefaultMaxBodyBytes = 10 << 20

type config struct {
	middlewares    []Middleware
	logs           Logger
	decoderLogs    *zap.Logger
	bufLimit       int
	chunkSize      int
	maxBodyBytes   int64
	maxUploadBytes int64
	tempDir        string
	metrics        *Metrics
	dualOpts       []route.DualOption
	notFound       Handler
}

// Option configures a Dispatcher.
type Option func(*config)

// WithMiddleware wraps every route, and the not-found handler, with the middleware. The first
// middleware is the outermost.
func WithMiddleware(mw ...Middleware) Option {
	return func(c *config) { c.middlewares = append(c.middlewares, mw...) }
}

// WithLogger sets the logger for errors that cannot be reported to the client.
func WithLogger(logs Logger) Option {
	return func(c *config) { c.logs = logs }
}

// WithDecoderLogger sets the logger the multipart decoder reports to.
func WithDecoderLogger(logs *zap.Logger) Option {
	return func(c *config) { c.decoderLogs = logs }
}

// WithBufferLimit limits the size of buffered responses, -1 disables the limit.
func WithBufferLimit(n int) Option {
	return func(c *config) { c.bufLimit = n }
}

// WithChunkSize sets the size of chunks read from net/http request bodies.
func WithChunkSize(n int) Option {
	return func(c *config) { c.chunkSize = n }
}

// WithMaxBodyBytes limits bodies that are decoded into memory, -1 disables the limit.
func WithMaxBodyBytes(n int64) Option {
	return func(c *config) { c.maxBodyBytes = n }
}

// WithMaxUploadBytes limits multipart bodies, -1 disables the limit.
func WithMaxUploadBytes(n int64) Option {
	return func(c *config) { c.maxUploadBytes = n }
}

// WithTempDir sets the directory uploaded files are streamed to. The empty string selects the
// system's temporary directory.
func WithTempDir(dir string) Option {
	return func(c *config) { c.tempDir = dir }
}

// WithMetrics records dispatch and decode metrics.
func WithMetrics(m *Metrics) Option {
	return func(c *config) { c.metrics = m }
}

// WithSuffixTrie resolves exact routes with the suffix trie instead of a map.
func WithSuffixTrie() Option {
	return func(c *config) { c.dualOpts = append(c.dualOpts, route.WithSuffixTrie()) }
}

// WithNotFound replaces the handler for requests no route matches.
func WithNotFound(h Handler) Option {
	return func(c *config) { c.notFound = h }
}

// Dispatcher resolves requests to handlers and serves them with a buffered response. It is safe for
// concurrent use once created.
type Dispatcher struct {
	cfg      config
	matcher  route.Matcher[Handler]
	notFound Handler
	reverser *Reverser
}

// New creates a dispatcher for the routes. Invalid or duplicate routes are reported as an error.
func New(routes []route.Route[Handler], opts ...Option) (*Dispatcher, error) {
	cfg := config{
		logs:           NewStdLogger(log.Default()),
		decoderLogs:    zap.NewNop(),
		bufLimit:       -1,
		chunkSize:      DefaultChunkSize,
		maxBodyBytes:   DefaultMaxBodyBytes,
		maxUploadBytes: -1,
		notFound:       HandlerFunc(notFound),
	}

	for _, opt := range opts {
		opt(&cfg)
	}

	reverser := NewReverser()
	for _, r := range lo.UniqBy(lo.Filter(routes, func(r route.Route[Handler], _ int) bool { return r.Name != "" }),
		func(r route.Route[Handler]) string { return r.Name + " " + route.Normalize(r.Path) }) {
		if _, err := reverser.NamedPattern(r.Name, r.Path); err != nil {
			return nil, errors.Wrapf(err, "name route %q", r.Name)
		}
	}

	wrapped := lo.Map(routes, func(r route.Route[Handler], _ int) route.Route[Handler] {
		r.Handler = Wrap(r.Handler, cfg.middlewares...)
		return r
	})

	matcher, err := route.NewDual(wrapped, cfg.dualOpts...)
	if err != nil {
		return nil, errors.Wrap(err, "build route matcher")
	}

	return &Dispatcher{
		cfg:      cfg,
		matcher:  matcher,
		notFound: Wrap(cfg.notFound, cfg.middlewares...),
		reverser: reverser,
	}, nil
}

// Reverse returns the path of a named route with its wildcard segments replaced by vals.
func (d *Dispatcher) Reverse(name string, vals ...string) (string, error) {
	return d.reverser.Reverse(name, vals...)
}

// ServeHTTP dispatches a standard library request.
func (d *Dispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	d.Serve(r.Context(), w, StdSource(r, d.cfg.chunkSize))
}

// Serve dispatches a request from any transport. The response is buffered and written to w when the
// handler returns, uploaded files are removed afterwards.
func (d *Dispatcher) Serve(ctx context.Context, w http.ResponseWriter, src Source) {
	start := time.Now()

	path, rawQuery := route.SplitTarget(src.Target())
	path = route.Normalize(path)

	h := d.notFound

	m, ok := d.matcher.Resolve(src.Method(), path)
	if ok {
		h = m.Handler
	}

	req := newRequest(src, path, rawQuery, m, bodyConfig{
		maxBodyBytes:   d.cfg.maxBodyBytes,
		maxUploadBytes: d.cfg.maxUploadBytes,
		tempDir:        d.cfg.tempDir,
		logs:           d.cfg.decoderLogs,
		metrics:        d.cfg.metrics,
	})

	defer func() {
		if err := req.close(); err != nil {
			d.cfg.logs.LogBodyCleanupError(err)
		}
	}()

	status := d.serve(ctx, w, h, req)
	d.cfg.metrics.served(metricMethod(src.Method()), m.Pattern, status, time.Since(start))
}

func (d *Dispatcher) serve(ctx context.Context, w http.ResponseWriter, h Handler, req *Request) int {
	bresp := NewResponseWriter(w, d.cfg.bufLimit)
	defer bresp.Free()

	if err := h.ServeBHTTP(ctx, bresp, req); err != nil {
		d.writeError(bresp, err)
	}

	if err := bresp.FlushBuffer(); err != nil {
		d.cfg.logs.LogImplicitFlushError(err)
	}

	return bresp.Status()
}

// writeError replaces the buffered response with one describing err. Errors without a code are
// logged and rendered as a plain 500.
func (d *Dispatcher) writeError(bresp *ResponseBuffer, err error) {
	if bresp.Flushed() {
		d.cfg.logs.LogUnhandledServeError(errors.Wrap(err, "after explicit flush"))
		return
	}

	bresp.Reset()
	bresp.limit = -1

	code, msg := CodeOf(err), err.Error()
	if code == CodeUnknown {
		d.cfg.logs.LogUnhandledServeError(err)
		code, msg = CodeInternalServerError, http.StatusText(http.StatusInternalServerError)
	}

	http.Error(bresp, msg, int(code))
}

func notFound(_ context.Context, _ ResponseWriter, r *Request) error {
	return Errorf(CodeNotFound, "no route for %s %s", r.Method, r.Path)
}

func metricMethod(method string) string {
	if slices.Contains(route.AllMethods, method) {
		return method
	}

	return "OTHER"
}
