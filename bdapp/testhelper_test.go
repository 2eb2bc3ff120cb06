package bdapp_test

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/advdv/bdispatch"
	"github.com/advdv/bdispatch/bdapp"
	"github.com/advdv/bdispatch/multipart"
	"github.com/advdv/bdispatch/uploadstore"
	"github.com/goccy/go-json"
	"go.uber.org/zap"
)

// TestEnv is a test environment with app-specific fields beyond BaseEnvironment.
type TestEnv struct {
	bdapp.BaseEnvironment
	Greeting string `env:"GREETING" envDefault:"hello"`
}

// memStore keeps uploads in memory.
type memStore struct {
	mu   sync.Mutex
	keys []string
}

func (s *memStore) Put(_ context.Context, key string, spec *multipart.BodySpec) (uploadstore.Object, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.keys = append(s.keys, key)

	return uploadstore.Object{Bucket: "mem", Key: key, FieldName: spec.FieldName, FileName: spec.FileName, Size: spec.FileSize}, nil
}

type Handlers struct {
	rt *bdapp.Runtime[TestEnv]
}

func NewHandlers(rt *bdapp.Runtime[TestEnv]) *Handlers {
	return &Handlers{rt: rt}
}

func (h *Handlers) GetItem(ctx context.Context, w bdispatch.ResponseWriter, r *bdispatch.Request) error {
	self, err := h.rt.Reverse("get-item", r.Capture(0))
	if err != nil {
		return err
	}

	bdapp.Log(ctx).Info("get item", zap.String("id", r.Capture(0)))

	w.Header().Set("Content-Type", "application/json")

	return json.NewEncoder(w).Encode(map[string]any{
		"id":       r.Capture(0),
		"self":     self,
		"greeting": h.rt.Env().Greeting,
		"service":  h.rt.Env().ServiceName,
		"deadline": bdapp.RequestRemainingTime(ctx) > 0,
	})
}

func (h *Handlers) Upload(ctx context.Context, w bdispatch.ResponseWriter, r *bdispatch.Request) error {
	if h.rt.Uploads() == nil {
		return bdispatch.Errorf(bdispatch.CodeServiceUnavailable, "uploads are not configured")
	}

	return uploadstore.Handler(h.rt.Uploads()).ServeBHTTP(ctx, w, r)
}

func (h *Handlers) Echo(ctx context.Context, w bdispatch.ResponseWriter, r *bdispatch.Request) error {
	body, err := r.Body(ctx)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(w, "%s:%d", body.Kind, len(body.Raw))

	return err
}

func routing(r *bdapp.Router, h *Handlers) {
	r.Path("items").Wild().Method(http.MethodGet).Named("get-item").Handle(bdispatch.HandlerFunc(h.GetItem))
	r.Path("uploads").Method(http.MethodPost).Handle(bdispatch.HandlerFunc(h.Upload))
	r.Path("echo").Method(http.MethodPost).Handle(bdispatch.HandlerFunc(h.Echo))
}
