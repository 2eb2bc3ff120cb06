package bdispatch

import (
	"context"
	"net/http"
	"net/url"
	"sync"

	"github.com/advdv/bdispatch/query"
	"github.com/advdv/bdispatch/route"
	"github.com/cockroachdb/errors"
)

// Request is a dispatched request. The body is not read until a handler asks for it.
type Request struct {
	Method string
	// Path is the normalized request path. For handlers behind Mount it has the mount prefix removed.
	Path     string
	RawQuery string
	// Pattern is the route pattern that matched, empty when no route matched.
	Pattern string
	// Captures holds the values of the pattern's wildcard segments in order.
	Captures []string
	Source   Source

	state *requestState
}

// requestState is shared by copies of a request so the body is decoded once.
type requestState struct {
	queryOnce sync.Once
	query     *query.Decoder

	bodyOnce sync.Once
	body     *Body
	bodyErr  error
	decoder  *bodyDecoder
}

func newRequest(src Source, path, rawQuery string, m route.Match[Handler], cfg bodyConfig) *Request {
	return &Request{
		Method:   src.Method(),
		Path:     path,
		RawQuery: rawQuery,
		Pattern:  m.Pattern,
		Captures: m.Captures,
		Source:   src,
		state:    &requestState{decoder: newBodyDecoder(src, cfg)},
	}
}

// Header returns the first value of the named request header.
func (r *Request) Header(name string) string {
	return r.Source.Header(name)
}

// Query returns the decoded query string.
func (r *Request) Query() *query.Decoder {
	r.state.queryOnce.Do(func() {
		r.state.query = query.New([]byte(r.RawQuery))
	})

	return r.state.query
}

// Capture returns the value of the i-th wildcard segment or an empty string.
func (r *Request) Capture(i int) string {
	if i < 0 || i >= len(r.Captures) {
		return ""
	}

	return r.Captures[i]
}

// Body reads and decodes the request body on first use. Later calls return the same result.
// Uploaded files are removed when the request has been served.
func (r *Request) Body(ctx context.Context) (*Body, error) {
	r.state.bodyOnce.Do(func() {
		r.state.body, r.state.bodyErr = r.state.decoder.decode(ctx)
	})

	return r.state.body, r.state.bodyErr
}

// HTTPRequest returns a standard library request for the dispatched request. The request the
// transport provided is reused when there is one, otherwise a request is built that carries the
// Content-Type and Content-Length of the source and reads the undecoded body.
func (r *Request) HTTPRequest(ctx context.Context) (*http.Request, error) {
	target := &url.URL{Path: r.Path, RawQuery: r.RawQuery}

	if hs, ok := r.Source.(HTTPSource); ok {
		hr := hs.HTTPRequest().Clone(ctx)
		hr.URL.Path, hr.URL.RawPath = target.Path, ""

		return hr, nil
	}

	hr, err := http.NewRequestWithContext(ctx, r.Method, target.String(), &sourceReader{ctx: ctx, src: r.Source})
	if err != nil {
		return nil, errors.Wrap(err, "build http request")
	}

	if ct := r.Source.Header("Content-Type"); ct != "" {
		hr.Header.Set("Content-Type", ct)
	}

	hr.ContentLength = r.Source.ContentLength()
	hr.RequestURI = r.Source.Target()

	return hr, nil
}

// withPath returns a copy that shares the body but reports a different path.
func (r *Request) withPath(path string) *Request {
	r2 := *r
	r2.Path = path

	return &r2
}

func (r *Request) close() error {
	return r.state.decoder.close()
}
