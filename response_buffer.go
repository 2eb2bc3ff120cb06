package bdispatch

import (
	"bytes"
	"maps"
	"net/http"
	"sync"

	"github.com/cockroachdb/errors"
)

// ErrBufferFull is returned when a write would grow the response buffer past its limit.
var ErrBufferFull = errors.New("bdispatch: response buffer is full")

var bufPool = sync.Pool{New: func() any { return new(bytes.Buffer) }}

// ResponseBuffer is the [ResponseWriter] handlers write to. Headers, status and body are held until
// the buffer is flushed so a handler or middleware can discard them with Reset.
type ResponseBuffer struct {
	resp   http.ResponseWriter
	header http.Header
	buf    *bytes.Buffer
	limit  int
	status int
	// headers as they were when the status was decided
	snapshot http.Header

	// headers and status have been written to resp
	wroteHeader bool
	// an explicit flush happened, the response can no longer be reset
	flushed bool
}

// NewResponseWriter buffers writes to resp. A negative limit disables the size limit.
func NewResponseWriter(resp http.ResponseWriter, limit int) *ResponseBuffer {
	return newBufferResponse(resp, limit)
}

func newBufferResponse(resp http.ResponseWriter, limit int) *ResponseBuffer {
	buf, _ := bufPool.Get().(*bytes.Buffer)
	buf.Reset()

	return &ResponseBuffer{
		resp:   resp,
		header: http.Header{},
		buf:    buf,
		limit:  limit,
	}
}

// Header returns the buffered headers. After the response has been flushed it returns the headers
// of the underlying writer so trailers can still be set.
func (w *ResponseBuffer) Header() http.Header {
	if w.wroteHeader {
		return w.resp.Header()
	}

	return w.header
}

// Write buffers p. It returns ErrBufferFull without writing anything when p does not fit.
func (w *ResponseBuffer) Write(p []byte) (int, error) {
	if w.limit >= 0 && w.buf.Len()+len(p) > w.limit {
		return 0, ErrBufferFull
	}

	if w.status == 0 {
		w.WriteHeader(http.StatusOK)
	}

	return w.buf.Write(p)
}

// WriteHeader records the status code and the headers that will be sent with it. Only the first call
// has an effect, like with the standard library writer.
func (w *ResponseBuffer) WriteHeader(statusCode int) {
	if w.status != 0 {
		return
	}

	w.status = statusCode
	w.snapshot = w.header.Clone()
}

// Status returns the status code that is or will be sent.
func (w *ResponseBuffer) Status() int {
	if w.status == 0 {
		return http.StatusOK
	}

	return w.status
}

// Reset discards the buffered body, headers and status. It panics when the response was flushed
// explicitly since part of it already left the process.
func (w *ResponseBuffer) Reset() {
	if w.flushed {
		panic("bdispatch: cannot reset response, it was already flushed")
	}

	clear(w.header)
	w.buf.Reset()
	w.status, w.snapshot = 0, nil
}

// Flushed reports whether the response was flushed explicitly.
func (w *ResponseBuffer) Flushed() bool { return w.flushed }

// Unwrap returns the underlying writer, for [http.ResponseController].
func (w *ResponseBuffer) Unwrap() http.ResponseWriter { return w.resp }

// FlushError writes the buffered response to the underlying writer and flushes it. It is called by
// [http.ResponseController.Flush].
func (w *ResponseBuffer) FlushError() error {
	w.flushed = true
	if err := w.FlushBuffer(); err != nil {
		return err
	}

	if err := http.NewResponseController(w.resp).Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return errors.Wrap(err, "flush underlying writer")
	}

	return nil
}

// FlushBuffer writes the headers, when not yet written, and the buffered body to the underlying
// writer without flushing it.
func (w *ResponseBuffer) FlushBuffer() error {
	if !w.wroteHeader {
		header := w.snapshot
		if header == nil {
			header = w.header
		}

		maps.Copy(w.resp.Header(), header)
		w.resp.WriteHeader(w.Status())
		w.wroteHeader = true
	}

	if w.buf.Len() == 0 {
		return nil
	}

	defer w.buf.Reset()
	if _, err := w.resp.Write(w.buf.Bytes()); err != nil {
		return errors.Wrap(err, "write buffered body")
	}

	return nil
}

// Free returns the buffer to the pool. The writer must not be used afterwards.
func (w *ResponseBuffer) Free() {
	if w.buf == nil {
		return
	}

	bufPool.Put(w.buf)
	w.buf = nil
}

var _ ResponseWriter = (*ResponseBuffer)(nil)
