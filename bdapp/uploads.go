package bdapp

import (
	"net/http"

	"github.com/advdv/bdispatch/uploadstore"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// uploadConfig replaces the S3 store when set.
type uploadConfig struct {
	store uploadstore.Store
}

type uploaderParams struct {
	fx.In

	Env       Environment
	AWS       aws.Config
	Transport http.RoundTripper
	Logger    *zap.Logger
	Config    uploadConfig
}

// provideUploader builds the uploader from the environment. Without BD_UPLOAD_BUCKET, and without a
// store given to WithUploadStore, uploads are not stored and the uploader is nil.
func provideUploader(p uploaderParams) *uploadstore.Uploader {
	store := p.Config.store
	if store == nil {
		if p.Env.uploadBucket() == "" {
			return nil
		}

		store = uploadstore.NewS3Store(s3.NewFromConfig(p.AWS), p.Env.uploadBucket())
	}

	opts := []uploadstore.Option{uploadstore.WithLogger(p.Logger.Named("uploads"))}

	if url := p.Env.uploadQueueURL(); url != "" {
		opts = append(opts, uploadstore.WithNotifier(uploadstore.NewSQSNotifier(sqs.NewFromConfig(p.AWS), url)))
	}

	if url := p.Env.uploadWebhookURL(); url != "" {
		opts = append(opts, uploadstore.WithNotifier(uploadstore.NewWebhookNotifier(url, p.Transport)))
	}

	return uploadstore.New(store, opts...)
}
