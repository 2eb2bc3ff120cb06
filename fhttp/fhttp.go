// Package fhttp serves a bdispatch.Dispatcher with fasthttp.
//
//	srv := &fasthttp.Server{
//	    Handler:           fhttp.Handler(d, 0),
//	    StreamRequestBody: true,
//	}
//
// With StreamRequestBody enabled multipart uploads are decoded while they arrive, otherwise fasthttp
// reads the whole body before the dispatcher sees it.
package fhttp

import (
	"context"
	"io"
	"net/http"

	"github.com/advdv/bdispatch"
	"github.com/cockroachdb/errors"
	"github.com/valyala/fasthttp"
)

// Handler returns a fasthttp handler that dispatches every request with d. Body chunks hold at most
// chunkSize bytes, a non-positive size selects bdispatch.DefaultChunkSize.
func Handler(d *bdispatch.Dispatcher, chunkSize int) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		d.Serve(ctx, NewResponseWriter(ctx), NewSource(ctx, chunkSize))
	}
}

type source struct {
	ctx       *fasthttp.RequestCtx
	chunkSize int
	started   bool
	stream    io.Reader
	scratch   []byte
	body      []byte
}

// NewSource adapts a fasthttp request. Chunks are copied out of fasthttp's buffers so they remain
// valid after the handler returned.
func NewSource(ctx *fasthttp.RequestCtx, chunkSize int) bdispatch.Source {
	if chunkSize <= 0 {
		chunkSize = bdispatch.DefaultChunkSize
	}

	return &source{ctx: ctx, chunkSize: chunkSize}
}

func (s *source) Method() string            { return string(s.ctx.Method()) }
func (s *source) Target() string            { return string(s.ctx.RequestURI()) }
func (s *source) Header(name string) string { return string(s.ctx.Request.Header.Peek(name)) }

// ContentLength reports chunked and identity bodies, which fasthttp marks with negative values,
// as unknown.
func (s *source) ContentLength() int64 {
	if n := s.ctx.Request.Header.ContentLength(); n >= 0 {
		return int64(n)
	}

	return -1
}

func (s *source) ReadChunk(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "read body")
	}

	if !s.started {
		s.started = true
		if s.stream = s.ctx.RequestBodyStream(); s.stream == nil {
			s.body = s.ctx.PostBody()
		}
	}

	if s.stream == nil {
		if len(s.body) == 0 {
			return nil, io.EOF
		}

		n := min(len(s.body), s.chunkSize)
		chunk := exact(s.body[:n])
		s.body = s.body[n:]

		return chunk, nil
	}

	if s.scratch == nil {
		s.scratch = make([]byte, s.chunkSize)
	}

	n, err := s.stream.Read(s.scratch)
	if n > 0 {
		return exact(s.scratch[:n]), nil
	}

	if errors.Is(err, io.EOF) {
		return nil, io.EOF
	}

	if err != nil {
		return nil, errors.Wrap(err, "read body stream")
	}

	return nil, nil
}

// exact copies p into a slice whose capacity matches its length.
func exact(p []byte) []byte {
	chunk := make([]byte, len(p))
	copy(chunk, p)

	return chunk
}

// ResponseWriter writes a net/http style response into a fasthttp response.
type ResponseWriter struct {
	ctx         *fasthttp.RequestCtx
	header      http.Header
	wroteHeader bool
}

func NewResponseWriter(ctx *fasthttp.RequestCtx) *ResponseWriter {
	return &ResponseWriter{ctx: ctx, header: http.Header{}}
}

func (w *ResponseWriter) Header() http.Header { return w.header }

// WriteHeader copies the header to the fasthttp response. Content-Length is left to fasthttp, it is
// derived from the written body.
func (w *ResponseWriter) WriteHeader(code int) {
	if w.wroteHeader {
		return
	}

	w.wroteHeader = true

	for name, vals := range w.header {
		if http.CanonicalHeaderKey(name) == "Content-Length" {
			continue
		}

		for i, v := range vals {
			if i == 0 {
				w.ctx.Response.Header.Set(name, v)
				continue
			}

			w.ctx.Response.Header.Add(name, v)
		}
	}

	w.ctx.SetStatusCode(code)
}

func (w *ResponseWriter) Write(p []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}

	return w.ctx.Write(p) //nolint:wrapcheck
}

var _ http.ResponseWriter = &ResponseWriter{}
