// Package uploadstore hands uploaded files off to object storage once a multipart body has been
// decoded, and announces the stored objects to interested parties.
package uploadstore

import (
	"context"
	"path"
	"path/filepath"
	"strings"

	"github.com/advdv/bdispatch/multipart"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/cockroachdb/errors"
)

// Object describes an upload after it was stored.
type Object struct {
	Bucket      string `json:"bucket"`
	Key         string `json:"key"`
	FieldName   string `json:"field_name"`
	FileName    string `json:"file_name"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

// Store persists the temp file of a completed file part under key.
type Store interface {
	Put(ctx context.Context, key string, spec *multipart.BodySpec) (Object, error)
}

// PutObjectAPI is the part of the S3 client the store uses.
type PutObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Store stores uploads in a S3 bucket.
type S3Store struct {
	client PutObjectAPI
	bucket string
	prefix string
}

// S3Option configures the S3Store.
type S3Option func(*S3Store)

// WithKeyPrefix puts all objects below the prefix.
func WithKeyPrefix(prefix string) S3Option {
	return func(s *S3Store) { s.prefix = strings.Trim(prefix, "/") }
}

// NewS3Store creates a store that writes to bucket.
func NewS3Store(client PutObjectAPI, bucket string, opts ...S3Option) *S3Store {
	s := &S3Store{client: client, bucket: bucket}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Put uploads the temp file of spec. The file stays on disk, it is removed with the request.
func (s *S3Store) Put(ctx context.Context, key string, spec *multipart.BodySpec) (Object, error) {
	if !spec.IsFile() {
		return Object{}, errors.Newf("part %q is not a file", spec.FieldName)
	}

	if s.prefix != "" {
		key = path.Join(s.prefix, key)
	}

	f, err := spec.Open()
	if err != nil {
		return Object{}, errors.Wrap(err, "open upload")
	}
	defer f.Close()

	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(spec.FileSize),
		Metadata: map[string]string{
			"field-name": spec.FieldName,
			"file-name":  spec.FileName,
		},
	}

	// without a part Content-Type S3 applies its default
	if spec.ContentType != "" {
		input.ContentType = aws.String(spec.ContentType)
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return Object{}, errors.Wrapf(err, "put object %q", key)
	}

	return Object{
		Bucket:      s.bucket,
		Key:         key,
		FieldName:   spec.FieldName,
		FileName:    spec.FileName,
		ContentType: spec.ContentType,
		Size:        spec.FileSize,
	}, nil
}

// DefaultKey names an upload after its temp file, which is unique, followed by the client's file
// name reduced to its base.
func DefaultKey(spec *multipart.BodySpec) string {
	name := path.Base(strings.ReplaceAll(spec.FileName, `\`, "/"))
	if name == "." || name == "/" || name == ".." {
		name = "upload"
	}

	return path.Join(filepath.Base(spec.TmpFileName), name)
}

var _ Store = &S3Store{}
