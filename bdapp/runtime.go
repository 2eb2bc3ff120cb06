package bdapp

import (
	"net/http"

	"github.com/advdv/bdispatch/uploadstore"
	"github.com/carlmjohnson/requests"
)

// Runtime provides access to app-scoped dependencies.
// Inject this into handler constructors via fx instead of pulling from context.
//
// Example:
//
//	type Handlers struct {
//	    rt *bdapp.Runtime[Env]
//	}
//
//	func NewHandlers(rt *bdapp.Runtime[Env]) *Handlers {
//	    return &Handlers{rt: rt}
//	}
//
//	func (h *Handlers) GetItem(ctx context.Context, w bdispatch.ResponseWriter, r *bdispatch.Request) error {
//	    env := h.rt.Env()
//	    url, _ := h.rt.Reverse("get-item", r.Capture(0))
//	    // ...
//	}
type Runtime[E Environment] struct {
	env       E
	router    *Router
	uploader  *uploadstore.Uploader
	transport http.RoundTripper
}

// RuntimeParams holds optional dependencies for Runtime.
type RuntimeParams struct {
	Uploader  *uploadstore.Uploader
	Transport http.RoundTripper
}

// NewRuntime creates a new Runtime with the given dependencies.
func NewRuntime[E Environment](env E, router *Router, params RuntimeParams) *Runtime[E] {
	if params.Transport == nil {
		params.Transport = http.DefaultTransport
	}

	return &Runtime[E]{
		env:       env,
		router:    router,
		uploader:  params.Uploader,
		transport: params.Transport,
	}
}

// Env returns the environment configuration.
func (r *Runtime[E]) Env() E {
	return r.env
}

// Reverse returns the URL for a named route with the given parameters.
// It fails until the app has started.
func (r *Runtime[E]) Reverse(name string, params ...string) (string, error) {
	return r.router.Reverse(name, params...)
}

// NewRequest starts an outbound request whose spans are children of the request's span.
func (r *Runtime[E]) NewRequest() *requests.Builder {
	return newRequestBuilder(r.transport)
}

// Uploads returns the uploader, nil when uploads are not configured.
func (r *Runtime[E]) Uploads() *uploadstore.Uploader {
	return r.uploader
}
