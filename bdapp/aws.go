package bdapp

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/cockroachdb/errors"
	"go.opentelemetry.io/contrib/instrumentation/github.com/aws/aws-sdk-go-v2/otelaws"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
)

// InRegion wraps an AWS client configured for a specific fixed region.
//
// Registration:
//
//	bdapp.WithAWSClient(func(cfg aws.Config) *bdapp.InRegion[sqs.Client] {
//	    return bdapp.NewInRegion(sqs.NewFromConfig(cfg), "us-east-1")
//	}, bdapp.ForRegion("us-east-1"))
type InRegion[T any] struct {
	Client *T
	Region string
}

// NewInRegion creates an InRegion wrapper for an AWS client configured for a fixed region.
func NewInRegion[T any](client *T, region string) *InRegion[T] {
	return &InRegion[T]{Client: client, Region: region}
}

type clientOptions struct {
	region string
}

// ClientOption configures AWS client registration.
type ClientOption func(*clientOptions)

// ForRegion configures the client to use a specific fixed region instead of AWS_REGION.
func ForRegion(region string) ClientOption {
	return func(o *clientOptions) {
		o.region = region
	}
}

const awsConfigTimeout = 10 * time.Second

// provideAWSConfig loads the default AWS config for AWS_REGION and instruments it with
// OpenTelemetry.
func provideAWSConfig(env Environment, tp trace.TracerProvider, prop propagation.TextMapPropagator) (aws.Config, error) {
	ctx, cancel := context.WithTimeout(context.Background(), awsConfigTimeout)
	defer cancel()

	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(env.awsRegion()))
	if err != nil {
		return cfg, errors.Wrap(err, "load aws config")
	}

	otelaws.AppendMiddlewares(&cfg.APIOptions,
		otelaws.WithTracerProvider(tp),
		otelaws.WithTextMapPropagator(prop),
	)

	return cfg, nil
}

// AWSClientProvider creates an fx.Option that provides an AWS client for injection.
// The factory receives a copy of the app's aws.Config with the region already configured.
func AWSClientProvider[T any](factory func(aws.Config) T, opts ...ClientOption) fx.Option {
	var options clientOptions
	for _, opt := range opts {
		opt(&options)
	}

	return fx.Provide(func(cfg aws.Config) T {
		awsCfg := cfg.Copy()
		if options.region != "" {
			awsCfg.Region = options.region
		}
		return factory(awsCfg)
	})
}
