package bdapp

import (
	"context"
	"fmt"
	"net"
	"net/http"

	"github.com/advdv/bdispatch"
	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// ServerConfig holds optional configuration for the HTTP server.
type ServerConfig struct {
	HealthHandler   bdispatch.Handler
	DispatchOptions []bdispatch.Option
}

// DispatcherParams holds the dependencies for building the dispatcher.
type DispatcherParams struct {
	fx.In

	Env      Environment
	Router   *Router
	Logger   *zap.Logger
	Registry *prometheus.Registry
	Metrics  *bdispatch.Metrics
}

// NewDispatcher registers the health and metrics endpoints and builds the dispatcher from all
// routes that were added to the router.
func NewDispatcher(params DispatcherParams, cfg ServerConfig) (*bdispatch.Dispatcher, error) {
	health := cfg.HealthHandler
	if health == nil {
		health = bdispatch.HandlerFunc(defaultHealthHandler)
	}

	params.Router.Path(params.Env.healthPath()).Method(http.MethodGet, http.MethodHead).Handle(health)

	if p := params.Env.metricsPath(); p != "" {
		params.Router.Path(p).Method(http.MethodGet).Handle(metricsHandler(params.Registry))
	}

	opts := []bdispatch.Option{
		bdispatch.WithMiddleware(
			RequestLogger(params.Logger),
			withAccessLog(),
			WithRequestDeadline(params.Env.requestTimeout()),
		),
		bdispatch.WithLogger(NewDispatchLogger(params.Logger)),
		bdispatch.WithDecoderLogger(params.Logger.Named("multipart")),
		bdispatch.WithBufferLimit(params.Env.bufferLimit()),
		bdispatch.WithMaxBodyBytes(params.Env.maxBodyBytes()),
		bdispatch.WithMaxUploadBytes(params.Env.maxUploadBytes()),
		bdispatch.WithTempDir(params.Env.uploadDir()),
		bdispatch.WithMetrics(params.Metrics),
	}

	return params.Router.build(append(opts, cfg.DispatchOptions...)...)
}

// ServerParams holds the dependencies for creating an HTTP server.
type ServerParams struct {
	fx.In

	Env        Environment
	Dispatcher *bdispatch.Dispatcher
	TracerProv trace.TracerProvider
	Propagator propagation.TextMapPropagator
}

// NewServer creates an HTTP server that serves the dispatcher with tracing and timeouts.
func NewServer(params ServerParams) *http.Server {
	// probes and scrapes are not traced
	handler := withTracing(params.TracerProv, params.Propagator, params.Env.serviceName(),
		params.Env.healthPath(), params.Env.metricsPath())(params.Dispatcher)

	tc := TimeoutConfig{RequestTimeout: params.Env.requestTimeout()}
	readHeaderTimeout, readTimeout, writeTimeout, idleTimeout := tc.ServerTimeouts()

	return &http.Server{
		Addr:              fmt.Sprintf(":%d", params.Env.port()),
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}
}

// startServerHook registers lifecycle hooks for the HTTP server. The listener is opened on start so
// a port that is in use fails the start of the app.
func startServerHook(lc fx.Lifecycle, server *http.Server, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := (&net.ListenConfig{}).Listen(ctx, "tcp", server.Addr)
			if err != nil {
				return errors.Wrapf(err, "listen on %s", server.Addr)
			}

			logger.Info("starting server", zap.String("addr", ln.Addr().String()))
			go func() {
				if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("server error", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("stopping server")
			return server.Shutdown(ctx)
		},
	})
}

func defaultHealthHandler(_ context.Context, w bdispatch.ResponseWriter, _ *bdispatch.Request) error {
	w.WriteHeader(http.StatusOK)
	return nil
}
