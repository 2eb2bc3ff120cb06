package bdapp

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/cockroachdb/errors"
	"go.uber.org/zap/zapcore"
)

// Environment defines the interface that all environment configurations must implement.
// Embed BaseEnvironment in your struct to satisfy this interface.
type Environment interface {
	port() int
	serviceName() string
	healthPath() string
	metricsPath() string
	logLevel() zapcore.Level
	otelExporter() string
	uploadDir() string
	maxBodyBytes() int64
	maxUploadBytes() int64
	bufferLimit() int
	requestTimeout() time.Duration
	uploadBucket() string
	uploadQueueURL() string
	uploadWebhookURL() string
	awsRegion() string
}

// BaseEnvironment contains the environment variables every bdapp service reads.
// Embed this in your custom environment struct.
type BaseEnvironment struct {
	Port           int           `env:"BD_PORT,required"`
	ServiceName    string        `env:"BD_SERVICE_NAME,required"`
	HealthPath     string        `env:"BD_HEALTH_PATH" envDefault:"/healthz"`
	MetricsPath    string        `env:"BD_METRICS_PATH" envDefault:"/metrics"`
	LogLevel       zapcore.Level `env:"BD_LOG_LEVEL" envDefault:"info"`
	OtelExporter   string        `env:"BD_OTEL_EXPORTER" envDefault:"stdout"`
	UploadDir      string        `env:"BD_UPLOAD_DIR"`
	MaxBodyBytes   int64         `env:"BD_MAX_BODY_BYTES" envDefault:"10485760"`
	MaxUploadBytes int64         `env:"BD_MAX_UPLOAD_BYTES" envDefault:"-1"`
	BufferLimit    int           `env:"BD_BUFFER_LIMIT" envDefault:"-1"`
	RequestTimeout time.Duration `env:"BD_REQUEST_TIMEOUT" envDefault:"30s"`
	AWSRegion      string        `env:"AWS_REGION,required"`

	// UploadBucket enables storing uploads in S3, the queue and webhook are only
	// notified when uploads are stored.
	UploadBucket     string `env:"BD_UPLOAD_BUCKET"`
	UploadQueueURL   string `env:"BD_UPLOAD_QUEUE_URL"`
	UploadWebhookURL string `env:"BD_UPLOAD_WEBHOOK_URL"`
}

func (e BaseEnvironment) port() int {
	return e.Port
}

func (e BaseEnvironment) serviceName() string {
	return e.ServiceName
}

func (e BaseEnvironment) healthPath() string {
	return e.HealthPath
}

func (e BaseEnvironment) metricsPath() string {
	return e.MetricsPath
}

func (e BaseEnvironment) logLevel() zapcore.Level {
	return e.LogLevel
}

func (e BaseEnvironment) otelExporter() string {
	return e.OtelExporter
}

func (e BaseEnvironment) uploadDir() string {
	return e.UploadDir
}

func (e BaseEnvironment) maxBodyBytes() int64 {
	return e.MaxBodyBytes
}

func (e BaseEnvironment) maxUploadBytes() int64 {
	return e.MaxUploadBytes
}

func (e BaseEnvironment) bufferLimit() int {
	return e.BufferLimit
}

func (e BaseEnvironment) requestTimeout() time.Duration {
	return e.RequestTimeout
}

func (e BaseEnvironment) uploadBucket() string {
	return e.UploadBucket
}

func (e BaseEnvironment) uploadQueueURL() string {
	return e.UploadQueueURL
}

func (e BaseEnvironment) uploadWebhookURL() string {
	return e.UploadWebhookURL
}

func (e BaseEnvironment) awsRegion() string {
	return e.AWSRegion
}

var _ Environment = BaseEnvironment{}

// ParseEnv parses environment variables into the given Environment type.
func ParseEnv[E Environment]() func() (E, error) {
	return func() (e E, err error) {
		if err := env.Parse(&e); err != nil {
			return e, errors.Wrap(err, "failed to parse environment")
		}
		return e, nil
	}
}
