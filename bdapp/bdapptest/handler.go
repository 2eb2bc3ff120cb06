package bdapptest

import (
	"net/http"
	"net/http/httptest"

	"github.com/advdv/bdispatch"
	"github.com/advdv/bdispatch/bdapp"
	"github.com/advdv/bdispatch/route"
	"go.uber.org/zap"
)

// CallHandler serves req with a dispatcher that only has handler, registered for pattern, and returns
// the recorded response. Errors are rendered as they would be by the app, [bdapp.Log] writes to a
// no-op logger unless a bdapp.RequestLogger middleware is passed in opts.
func CallHandler(handler bdispatch.Handler, pattern string, req *http.Request, opts ...bdispatch.Option) *httptest.ResponseRecorder {
	b := route.NewBuilder[bdispatch.Handler]()
	b.Path(pattern).Handle(handler)

	routes, err := b.Routes()
	if err != nil {
		panic("bdapptest: invalid pattern: " + err.Error())
	}

	d, err := bdispatch.New(routes, append([]bdispatch.Option{
		bdispatch.WithMiddleware(bdapp.RequestLogger(zap.NewNop())),
	}, opts...)...)
	if err != nil {
		panic("bdapptest: build dispatcher: " + err.Error())
	}

	rec := httptest.NewRecorder()
	d.ServeHTTP(rec, req)

	return rec
}
