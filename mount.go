package bdispatch

import (
	"context"
	"net/http"

	"github.com/advdv/bdispatch/route"
)

// Mount registers h for the builder's pattern and everything below it. The mounted handler receives
// requests with the prefix stripped from Request.Path. Middleware given to the dispatcher sees the
// original path; the strip happens after middleware.
func Mount(b *route.Builder[Handler], h Handler) {
	b.Handle(stripPrefix(h, false))
	b.Trailing().Named("").Handle(stripPrefix(h, true))
}

// MountStd mounts a standard library [http.Handler], see [Mount]. The handler owns its error
// responses.
func MountStd(b *route.Builder[Handler], h http.Handler) {
	Mount(b, StdHandler(h))
}

func stripPrefix(h Handler, subtree bool) Handler {
	return HandlerFunc(func(ctx context.Context, w ResponseWriter, r *Request) error {
		rest := "/"
		if subtree && len(r.Captures) > 0 {
			rest = route.Normalize(r.Captures[len(r.Captures)-1])
		}

		return h.ServeBHTTP(ctx, w, r.withPath(rest))
	})
}
