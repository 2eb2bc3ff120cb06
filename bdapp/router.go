package bdapp

import (
	"github.com/advdv/bdispatch"
	"github.com/advdv/bdispatch/route"
	"github.com/cockroachdb/errors"
)

// Router collects the routes of the app. The dispatcher is built from it once all routing functions
// have run, after that new routes are ignored.
type Router struct {
	*route.Builder[bdispatch.Handler]

	dispatcher *bdispatch.Dispatcher
}

// NewRouter creates an empty router.
func NewRouter() *Router {
	return &Router{Builder: route.NewBuilder[bdispatch.Handler]()}
}

// Reverse returns the path of a named route with its wildcard segments replaced by vals.
func (r *Router) Reverse(name string, vals ...string) (string, error) {
	if r.dispatcher == nil {
		return "", errors.New("bdapp: routes are not built yet")
	}

	return r.dispatcher.Reverse(name, vals...) //nolint:wrapcheck
}

func (r *Router) build(opts ...bdispatch.Option) (*bdispatch.Dispatcher, error) {
	routes, err := r.Routes()
	if err != nil {
		return nil, errors.Wrap(err, "collect routes")
	}

	d, err := bdispatch.New(routes, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "build dispatcher")
	}

	r.dispatcher = d

	return d, nil
}
