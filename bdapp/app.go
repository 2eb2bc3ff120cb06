package bdapp

import (
	"context"
	"net/http"

	"github.com/advdv/bdispatch"
	"github.com/advdv/bdispatch/uploadstore"
	"github.com/aws/aws-sdk-go-v2/aws"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// App wraps an fx.App for lifecycle management.
type App struct {
	app *fx.App
}

// AppConfig holds configuration for the app.
type AppConfig struct {
	ServerConfig
	UploadStore uploadstore.Store
	FxOptions   []fx.Option
}

// Option configures the App.
type Option func(*AppConfig)

// runtimeProviderParams holds dependencies for Runtime.
type runtimeProviderParams[E Environment] struct {
	fx.In

	Env       E
	Router    *Router
	Uploader  *uploadstore.Uploader
	Transport http.RoundTripper
}

// WithAWSClient registers an AWS SDK v2 client for dependency injection.
// Clients are injected directly into handler constructors via fx.
//
// By default, clients target AWS_REGION:
//
//	bdapp.WithAWSClient(func(cfg aws.Config) *dynamodb.Client {
//	    return dynamodb.NewFromConfig(cfg)
//	})
func WithAWSClient[T any](factory func(aws.Config) T, opts ...ClientOption) Option {
	return func(c *AppConfig) {
		c.FxOptions = append(c.FxOptions, AWSClientProvider(factory, opts...))
	}
}

// WithFx adds fx options for dependency injection.
func WithFx(fxOpts ...fx.Option) Option {
	return func(c *AppConfig) {
		c.FxOptions = append(c.FxOptions, fxOpts...)
	}
}

// WithHealthHandler sets a custom health check handler.
// If not set, a default handler returning 200 OK is used.
func WithHealthHandler(h bdispatch.Handler) Option {
	return func(c *AppConfig) {
		c.HealthHandler = h
	}
}

// WithDispatchOptions passes additional options to the dispatcher, after the ones derived from
// the environment.
func WithDispatchOptions(opts ...bdispatch.Option) Option {
	return func(c *AppConfig) {
		c.DispatchOptions = append(c.DispatchOptions, opts...)
	}
}

// WithUploadStore stores uploads in store instead of the S3 bucket from BD_UPLOAD_BUCKET.
func WithUploadStore(store uploadstore.Store) Option {
	return func(c *AppConfig) {
		c.UploadStore = store
	}
}

// FxOptions returns the complete DI graph of an app. NewApp and bdapptest both build on it.
func FxOptions[E Environment](routing any, opts ...Option) []fx.Option {
	var cfg AppConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	baseOpts := make([]fx.Option, 0, 18+len(cfg.FxOptions))
	baseOpts = append(baseOpts, []fx.Option{
		fx.NopLogger,
		fx.Provide(ParseEnv[E]()),
		fx.Provide(func(e E) Environment { return e }),
		fx.Provide(NewRouter),
		fx.Provide(func(e E) (*zap.Logger, error) { return NewLogger(e) }),
		fx.Provide(NewTracerProvider),
		fx.Provide(NewPropagator),
		fx.Provide(NewHTTPTransport),
		fx.Provide(provideAWSConfig),
		fx.Provide(NewRegistry),
		fx.Provide(provideMetrics),
		fx.Supply(uploadConfig{store: cfg.UploadStore}),
		fx.Provide(provideUploader),
		fx.Supply(cfg.ServerConfig),
		fx.Provide(NewDispatcher),
		fx.Provide(NewServer),
		fx.Provide(func(p runtimeProviderParams[E]) *Runtime[E] {
			return NewRuntime(p.Env, p.Router, RuntimeParams{Uploader: p.Uploader, Transport: p.Transport})
		}),
	}...)

	baseOpts = append(baseOpts, cfg.FxOptions...)

	// routes must all be registered before the dispatcher is built for the server
	return append(baseOpts,
		fx.Invoke(routing),
		fx.Invoke(startServerHook),
	)
}

// NewApp creates a batteries-included app with dependency injection.
//
// The routing function can request any types that are provided via fx options.
// At minimum, it should accept *Router for routing.
//
// Example:
//
//	bdapp.NewApp[Env](func(r *bdapp.Router, h *Handlers) {
//	    r.Path("items").Wild().Method(http.MethodGet).Named("get-item").Handle(bdispatch.HandlerFunc(h.GetItem))
//	},
//	    bdapp.WithFx(fx.Provide(NewHandlers)),
//	).Run()
func NewApp[E Environment](routing any, opts ...Option) *App {
	return &App{
		app: fx.New(FxOptions[E](routing, opts...)...),
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() {
	a.app.Run()
}

// Start starts the application and stops it again once ctx is done.
func (a *App) Start(ctx context.Context) error {
	if err := a.app.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.app.StopTimeout())
	defer cancel()

	return a.app.Stop(stopCtx)
}
