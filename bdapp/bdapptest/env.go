package bdapptest

import (
	"strconv"
	"testing"
)

// Env provides a chainable builder for setting [bdapp.BaseEnvironment] env vars
// via t.Setenv. Create one with [SetBaseEnv].
type Env struct {
	t testing.TB
}

// SetBaseEnv sets all required [bdapp.BaseEnvironment] env vars to test defaults.
// Port is required because each test must use a unique port to avoid collisions.
//
// Defaults:
//   - BD_SERVICE_NAME: "test"
//   - BD_HEALTH_PATH: "/health"
//   - BD_OTEL_EXPORTER: "none"
//   - AWS_REGION: "us-east-1"
//   - AWS_ACCESS_KEY_ID: "test"
//   - AWS_SECRET_ACCESS_KEY: "test"
//
// Use the returned [Env] to override individual values:
//
//	bdapptest.SetBaseEnv(t, 18085).ServiceName("uploads").MaxBodyBytes(1024)
func SetBaseEnv(t testing.TB, port int) *Env {
	t.Helper()
	t.Setenv("BD_PORT", strconv.Itoa(port))
	t.Setenv("BD_SERVICE_NAME", "test")
	t.Setenv("BD_HEALTH_PATH", "/health")
	t.Setenv("BD_OTEL_EXPORTER", "none")
	t.Setenv("AWS_REGION", "us-east-1")
	t.Setenv("AWS_ACCESS_KEY_ID", "test")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "test")
	return &Env{t: t}
}

func (e *Env) set(key, val string) *Env {
	e.t.Helper()
	e.t.Setenv(key, val)
	return e
}

// ServiceName overrides BD_SERVICE_NAME.
func (e *Env) ServiceName(name string) *Env { return e.set("BD_SERVICE_NAME", name) }

// HealthPath overrides BD_HEALTH_PATH.
func (e *Env) HealthPath(path string) *Env { return e.set("BD_HEALTH_PATH", path) }

// MetricsPath overrides BD_METRICS_PATH, the empty string disables the endpoint.
func (e *Env) MetricsPath(path string) *Env { return e.set("BD_METRICS_PATH", path) }

// UploadDir overrides BD_UPLOAD_DIR.
func (e *Env) UploadDir(dir string) *Env { return e.set("BD_UPLOAD_DIR", dir) }

// MaxBodyBytes overrides BD_MAX_BODY_BYTES.
func (e *Env) MaxBodyBytes(n int64) *Env {
	return e.set("BD_MAX_BODY_BYTES", strconv.FormatInt(n, 10))
}

// RequestTimeout overrides BD_REQUEST_TIMEOUT.
func (e *Env) RequestTimeout(d string) *Env { return e.set("BD_REQUEST_TIMEOUT", d) }

// UploadWebhookURL overrides BD_UPLOAD_WEBHOOK_URL.
func (e *Env) UploadWebhookURL(url string) *Env { return e.set("BD_UPLOAD_WEBHOOK_URL", url) }
