package uploadstore

import (
	"context"
	"net/http"

	"github.com/advdv/bdispatch"
	"github.com/advdv/bdispatch/multipart"
	"github.com/cockroachdb/errors"
	"github.com/goccy/go-json"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency is the number of files stored at the same time.
const DefaultConcurrency = 4

// Uploader stores the files of a decoded body and notifies about them.
type Uploader struct {
	store       Store
	notifiers   []Notifier
	concurrency int
	key         func(*multipart.BodySpec) string
	logs        *zap.Logger
}

// Option configures the Uploader.
type Option func(*Uploader)

// WithNotifier adds a notifier that is called after every batch that was stored completely.
func WithNotifier(n ...Notifier) Option {
	return func(u *Uploader) { u.notifiers = append(u.notifiers, n...) }
}

// WithConcurrency limits how many files are stored at the same time.
func WithConcurrency(n int) Option {
	return func(u *Uploader) { u.concurrency = n }
}

// WithKeyFunc decides the object key for each file.
func WithKeyFunc(fn func(*multipart.BodySpec) string) Option {
	return func(u *Uploader) { u.key = fn }
}

// WithLogger sets the logger that records every stored object.
func WithLogger(logs *zap.Logger) Option {
	return func(u *Uploader) { u.logs = logs }
}

// New creates an uploader that writes to store.
func New(store Store, opts ...Option) *Uploader {
	u := &Uploader{
		store:       store,
		concurrency: DefaultConcurrency,
		key:         DefaultKey,
		logs:        zap.NewNop(),
	}

	for _, opt := range opts {
		opt(u)
	}

	return u
}

// PersistAll stores every file part of specs, value parts are skipped. The first failure cancels the
// files still in flight and nothing is announced. Objects are returned in the order of the parts.
func (u *Uploader) PersistAll(ctx context.Context, specs []*multipart.BodySpec) ([]Object, error) {
	files := lo.Filter(specs, func(s *multipart.BodySpec, _ int) bool { return s.IsFile() })
	if len(files) == 0 {
		return nil, nil
	}

	objs := make([]Object, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(u.concurrency, 1))

	for i, spec := range files {
		g.Go(func() error {
			obj, err := u.store.Put(gctx, u.key(spec), spec)
			if err != nil {
				return errors.Wrapf(err, "store %q", spec.FieldName)
			}

			objs[i] = obj
			u.logs.Debug("stored upload",
				zap.String("field", spec.FieldName),
				zap.String("key", obj.Key),
				zap.Int64("size", obj.Size))

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err //nolint:wrapcheck
	}

	msg := Notification{Objects: objs}
	for _, n := range u.notifiers {
		if err := n.Notify(ctx, msg); err != nil {
			return objs, errors.Wrap(err, "notify")
		}
	}

	return objs, nil
}

// Handler stores the files of a multipart request and responds with the stored objects as JSON.
func Handler(u *Uploader) bdispatch.Handler {
	return bdispatch.HandlerFunc(func(ctx context.Context, w bdispatch.ResponseWriter, r *bdispatch.Request) error {
		body, err := r.Body(ctx)
		if err != nil {
			return err //nolint:wrapcheck
		}

		if body.Kind != bdispatch.BodyMultipart {
			return bdispatch.Errorf(bdispatch.CodeUnsupportedMediaType, "expected multipart/form-data, got %q", body.ContentType)
		}

		objs, err := u.PersistAll(ctx, body.Parts)
		if err != nil {
			return bdispatch.NewError(bdispatch.CodeBadGateway, err)
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)

		return json.NewEncoder(w).Encode(Notification{Objects: lo.Ternary(objs == nil, []Object{}, objs)})
	})
}
