package bdispatch

import (
	"context"
	"io"
	"net/http"

	"github.com/cockroachdb/errors"
)

// DefaultChunkSize is the size of the chunks read from a net/http request body.
const DefaultChunkSize = 32 << 10

// Source is what a transport provides for one request. Any server that can produce the method, the raw
// request target, header values and the body as a sequence of chunks can be dispatched.
type Source interface {
	Method() string
	// Target is the raw request target, path plus optional query.
	Target() string
	Header(name string) string
	// ContentLength is the declared body length or -1 when unknown.
	ContentLength() int64
	// ReadChunk returns the next body chunk. The caller takes ownership of the returned bytes. The end
	// of the body is reported with io.EOF.
	ReadChunk(ctx context.Context) ([]byte, error)
}

// HTTPSource is implemented by sources that are backed by a standard library request.
type HTTPSource interface {
	Source
	HTTPRequest() *http.Request
}

type stdSource struct {
	req     *http.Request
	scratch []byte
}

// StdSource adapts a standard library request. Body chunks are read with at most chunkSize bytes
// each, a non-positive size selects DefaultChunkSize.
func StdSource(req *http.Request, chunkSize int) HTTPSource {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	return &stdSource{req: req, scratch: make([]byte, chunkSize)}
}

func (s *stdSource) Method() string             { return s.req.Method }
func (s *stdSource) Header(name string) string  { return s.req.Header.Get(name) }
func (s *stdSource) ContentLength() int64       { return s.req.ContentLength }
func (s *stdSource) HTTPRequest() *http.Request { return s.req }

func (s *stdSource) Target() string {
	if s.req.RequestURI != "" {
		return s.req.RequestURI
	}

	return s.req.URL.RequestURI()
}

func (s *stdSource) ReadChunk(ctx context.Context) ([]byte, error) {
	if s.req.Body == nil || s.req.Body == http.NoBody {
		return nil, io.EOF
	}

	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "read body")
	}

	n, err := s.req.Body.Read(s.scratch)
	if n > 0 {
		// decoders keep the chunks they were fed, so each one is sized to what was read
		chunk := make([]byte, n)
		copy(chunk, s.scratch[:n])

		return chunk, nil
	}

	if errors.Is(err, io.EOF) {
		return nil, io.EOF
	}

	if err != nil {
		return nil, errors.Wrap(err, "read body")
	}

	return nil, nil
}

// sourceReader exposes the remaining body of a source as an io.Reader.
type sourceReader struct {
	ctx  context.Context //nolint:containedctx
	src  Source
	left []byte
}

func (r *sourceReader) Read(p []byte) (int, error) {
	for len(r.left) == 0 {
		chunk, err := r.src.ReadChunk(r.ctx)
		if len(chunk) > 0 {
			r.left = chunk
			break
		}

		if err != nil {
			return 0, err //nolint:wrapcheck
		}
	}

	n := copy(p, r.left)
	r.left = r.left[n:]

	return n, nil
}
