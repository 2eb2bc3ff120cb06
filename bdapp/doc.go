// Package bdapp runs a bdispatch.Dispatcher as a complete HTTP service.
//
// # Overview
//
// bdapp handles the boilerplate around the dispatcher: environment parsing, structured logging,
// OpenTelemetry tracing, prometheus metrics, AWS SDK clients, upload hand-off and graceful shutdown.
// A complete application can be created in a single call:
//
//	bdapp.NewApp[Env](func(r *bdapp.Router, h *Handlers) {
//	    r.Path("items").Wild().Method(http.MethodGet).Named("get-item").Handle(bdispatch.HandlerFunc(h.GetItem))
//	    r.Path("uploads").Method(http.MethodPost).Handle(uploadstore.Handler(h.rt.Uploads()))
//	},
//	    bdapp.WithFx(fx.Provide(NewHandlers)),
//	).Run()
//
// # Environment
//
// Configuration is read from environment variables into a struct that embeds [BaseEnvironment]:
//
//	type Env struct {
//	    bdapp.BaseEnvironment
//	    TableName string `env:"TABLE_NAME,required"`
//	}
//
// BD_PORT, BD_SERVICE_NAME and AWS_REGION are required. The remaining variables configure the
// dispatcher (BD_MAX_BODY_BYTES, BD_MAX_UPLOAD_BYTES, BD_BUFFER_LIMIT, BD_UPLOAD_DIR), the server
// (BD_REQUEST_TIMEOUT, BD_HEALTH_PATH, BD_METRICS_PATH), telemetry (BD_LOG_LEVEL, BD_OTEL_EXPORTER)
// and the upload hand-off (BD_UPLOAD_BUCKET, BD_UPLOAD_QUEUE_URL, BD_UPLOAD_WEBHOOK_URL).
//
// # Routing
//
// The routing function receives the [Router] and any dependency provided with [WithFx]. Routes are
// collected until all routing functions ran, then the dispatcher is built once. Invalid or
// duplicate routes fail the start of the app. The health endpoint is registered on BD_HEALTH_PATH,
// the metrics endpoint on BD_METRICS_PATH unless it is empty. Neither is traced.
//
// # Request Scope
//
// Every handler runs with a deadline of BD_REQUEST_TIMEOUT and a logger that carries the method, the
// route pattern and the trace and span ids:
//
//	func (h *Handlers) GetItem(ctx context.Context, w bdispatch.ResponseWriter, r *bdispatch.Request) error {
//	    bdapp.Log(ctx).Info("loading item", zap.String("id", r.Capture(0)))
//	    bdapp.Span(ctx).AddEvent("cache miss")
//	    // ...
//	}
//
// App-scoped dependencies are reached through [Runtime]: the environment, reverse routing,
// outbound requests that propagate the trace ([Runtime.NewRequest]) and the uploader.
//
// # Uploads
//
// With BD_UPLOAD_BUCKET set, [Runtime.Uploads] stores the files of multipart bodies in S3 and
// announces them on BD_UPLOAD_QUEUE_URL and BD_UPLOAD_WEBHOOK_URL when those are set. Tests replace
// the bucket with [WithUploadStore].
//
// # Testing
//
// The bdapptest package builds the same DI graph with fxtest and sets the base environment:
//
//	bdapptest.SetBaseEnv(t, 18081)
//	app := bdapptest.New[Env](t, routing, bdapp.WithFx(fx.Provide(NewHandlers)))
//	app.RequireStart()
//	t.Cleanup(app.RequireStop)
package bdapp
