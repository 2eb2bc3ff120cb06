// Package multipart implements an incremental multipart/form-data decoder. Input is fed as it arrives
// from the network, in chunks of any size. File parts are streamed to temporary files as soon as the
// decoder is certain their bytes are not part of a boundary.
package multipart

import (
	"bytes"
	"mime"
	"os"

	"github.com/advdv/bdispatch/chunkbuf"
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

// State is the position of the decoder in the body.
type State int

const (
	// StateNone means the input was not multipart/form-data and is ignored.
	StateNone State = iota
	StateBoundary
	StateHeader
	StateFieldValue
	StateFileData
	StateDone
	// StateFailed is terminal, Err returns the reason.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateNone:
		return "none"
	case StateBoundary:
		return "boundary"
	case StateHeader:
		return "header"
	case StateFieldValue:
		return "field-value"
	case StateFileData:
		return "file-data"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

var (
	// ErrMalformed is returned when a boundary line does not look like one.
	ErrMalformed = errors.New("multipart: malformed body")
	// ErrUnexpectedEOF is returned when the input ends before the closing boundary.
	ErrUnexpectedEOF = errors.New("multipart: unexpected end of body")
	// ErrHeaderTooLong is returned when a part header line exceeds the configured maximum.
	ErrHeaderTooLong = errors.New("multipart: part header line too long")
)

const (
	// TempFilePrefix prefixes the names of temporary upload files.
	TempFilePrefix = "bdispatch_upload_"
	// DefaultFileMode is applied to upload files once they are complete.
	DefaultFileMode os.FileMode = 0o666
	// DefaultMaxHeaderLine bounds the length of a single part header line.
	DefaultMaxHeaderLine = 8 << 10
)

var (
	crlf   = []byte("\r\n")
	dashes = []byte("--")
)

type options struct {
	tempDir       string
	fileMode      os.FileMode
	maxHeaderLine int
	logs          *zap.Logger
}

// Option configures a Reader.
type Option func(*options)

// WithTempDir sets the directory for upload files. The default is os.TempDir.
func WithTempDir(dir string) Option {
	return func(o *options) { o.tempDir = dir }
}

// WithFileMode sets the permissions applied to upload files after they are closed.
func WithFileMode(mode os.FileMode) Option {
	return func(o *options) { o.fileMode = mode }
}

// WithMaxHeaderLine bounds the length of part header lines.
func WithMaxHeaderLine(n int) Option {
	return func(o *options) { o.maxHeaderLine = n }
}

// WithLogger sets the logger that receives state transitions at debug level.
func WithLogger(logs *zap.Logger) Option {
	return func(o *options) { o.logs = logs }
}

// Reader decodes one multipart/form-data body. It is not safe for concurrent use, chunks must be fed
// in the order they were received.
type Reader struct {
	opts     options
	boundary string
	delim    []byte // "--" boundary
	sep      []byte // CRLF "--" boundary

	state    State
	preamble bool
	buf      chunkbuf.Buffer
	pos      int
	cur      *BodySpec
	specs    []*BodySpec
	err      error
}

// NewReader creates a reader for a body with the given Content-Type header value. When the content
// type is not multipart/form-data with a boundary the reader stays in StateNone and ignores input.
func NewReader(contentType string, opts ...Option) *Reader {
	r := &Reader{opts: options{
		fileMode:      DefaultFileMode,
		maxHeaderLine: DefaultMaxHeaderLine,
		logs:          zap.NewNop(),
	}}

	for _, opt := range opts {
		opt(&r.opts)
	}

	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil || mediaType != "multipart/form-data" || params["boundary"] == "" {
		return r
	}

	r.boundary = params["boundary"]
	r.delim = append([]byte("--"), r.boundary...)
	r.sep = append([]byte("\r\n"), r.delim...)
	r.state, r.preamble = StateBoundary, true

	return r
}

// IsMultipart reports whether the reader decodes its input.
func (r *Reader) IsMultipart() bool { return r.boundary != "" }

// Boundary returns the boundary parsed from the content type.
func (r *Reader) Boundary() string { return r.boundary }

// State returns the current state.
func (r *Reader) State() State { return r.state }

// Err returns the error that made the reader fail.
func (r *Reader) Err() error { return r.err }

// Specs returns the parts that were completely decoded so far, in arrival order.
func (r *Reader) Specs() []*BodySpec { return r.specs }

// Buffered returns the number of bytes held back because they cannot be decoded yet.
func (r *Reader) Buffered() int { return r.buf.Len() }

// Feed appends newly received chunks and decodes as far as the buffered input allows. The reader
// takes ownership of the chunks. After the reader failed every call returns the same error.
func (r *Reader) Feed(chunks ...[]byte) error {
	switch r.state {
	case StateFailed:
		return r.err
	case StateNone, StateDone:
		return nil
	}

	r.buf = r.buf.Append(chunks...)

	return r.run()
}

// Finish signals the end of the input. A body that did not reach its closing boundary fails with
// ErrUnexpectedEOF.
func (r *Reader) Finish() error {
	switch r.state {
	case StateNone, StateDone:
		return nil
	case StateFailed:
		return r.err
	}

	r.fail(errors.Wrapf(ErrUnexpectedEOF, "in state %s", r.state))

	return r.err
}

// Close removes the temporary files of all parts, including one that was still being written. The
// parts stay readable but their files cannot be opened anymore.
func (r *Reader) Close() error {
	var err error
	if r.cur != nil {
		err = r.cur.Cleanup()
		r.cur = nil
	}

	for _, s := range r.specs {
		err = errors.CombineErrors(err, s.Cleanup())
	}

	return err
}

// run executes steps until one of them cannot make progress. The consumed prefix of the buffer is
// released after every step.
func (r *Reader) run() error {
	for {
		var progressed bool
		var err error

		switch r.state {
		case StateBoundary:
			progressed, err = r.stepBoundary()
		case StateHeader:
			progressed, err = r.stepHeader()
		case StateFieldValue, StateFileData:
			progressed, err = r.stepData()
		case StateDone:
			r.buf, r.pos = chunkbuf.Buffer{}, 0
			return nil
		default:
			return r.err
		}

		r.buf, r.pos = r.buf.Trim(r.pos), 0

		if err != nil {
			r.fail(err)
			return r.err
		}

		if !progressed {
			return nil
		}
	}
}

func (r *Reader) stepBoundary() (bool, error) {
	if r.preamble {
		i := r.buf.Index(r.delim, r.pos)
		if i < 0 {
			r.pos = max(r.pos, r.buf.Len()-len(r.delim)+1)
			return false, nil
		}

		r.pos, r.preamble = i, false
	}

	after := r.pos + len(r.delim)
	if r.buf.Len() < after+2 {
		return false, nil
	}

	if !r.buf.HasPrefixAt(r.pos, r.delim) {
		return false, errors.Wrap(ErrMalformed, "expected boundary")
	}

	if r.buf.HasPrefixAt(after, dashes) {
		r.pos = after + 2
		r.state = StateDone
		r.opts.logs.Debug("multipart body done", zap.Int("parts", len(r.specs)))

		return true, nil
	}

	eol := r.buf.Index(crlf, after)
	if eol < 0 {
		if r.unterminatedTooLong(after) {
			return false, errors.Wrap(ErrMalformed, "boundary line too long")
		}

		return false, nil
	}

	if eol-after > r.opts.maxHeaderLine {
		return false, errors.Wrap(ErrMalformed, "boundary line too long")
	}

	if padding, _ := r.buf.Bytes(after, eol); len(bytes.Trim(padding, " \t")) > 0 {
		return false, errors.Wrap(ErrMalformed, "unexpected bytes after boundary")
	}

	r.pos = eol + len(crlf)
	r.cur = &BodySpec{}
	r.state = StateHeader

	return true, nil
}

// unterminatedTooLong reports whether the line starting at from can no longer end within
// maxHeaderLine bytes. A trailing CR may still be followed by its LF.
func (r *Reader) unterminatedTooLong(from int) bool {
	return r.buf.Len()-from > r.opts.maxHeaderLine+1
}

func (r *Reader) stepHeader() (bool, error) {
	eol := r.buf.Index(crlf, r.pos)
	if eol < 0 {
		if r.unterminatedTooLong(r.pos) {
			return false, ErrHeaderTooLong
		}

		return false, nil
	}

	if eol-r.pos > r.opts.maxHeaderLine {
		return false, ErrHeaderTooLong
	}

	line, _ := r.buf.Bytes(r.pos, eol)
	r.pos = eol + len(crlf)

	if len(line) > 0 {
		r.cur.parseHeaderLine(line)
		return true, nil
	}

	if r.cur.FileName == "" {
		r.state = StateFieldValue
		return true, nil
	}

	f, err := os.CreateTemp(r.opts.tempDir, TempFilePrefix+"*")
	if err != nil {
		return false, errors.Wrapf(err, "create upload for field %q", r.cur.FieldName)
	}

	r.cur.file, r.cur.TmpFileName = f, f.Name()
	r.state = StateFileData

	return true, nil
}

// stepData moves part content to the current spec. Only bytes that cannot belong to the terminating
// CRLF and boundary are written, the rest stays buffered until more input confirms or refutes it.
func (r *Reader) stepData() (bool, error) {
	end := r.buf.Index(r.sep, r.pos)
	found := end >= 0

	if !found {
		end = r.safeEnd()
	}

	if end > r.pos {
		if _, err := r.buf.WithRange(r.pos, end, r.cur.write); err != nil {
			return false, err
		}

		r.pos = end
	}

	if !found {
		return false, nil
	}

	if err := r.cur.finish(r.opts.fileMode); err != nil {
		return false, err
	}

	r.opts.logs.Debug("multipart part done",
		zap.String("field", r.cur.FieldName),
		zap.String("file_name", r.cur.FileName),
		zap.Int64("file_size", r.cur.FileSize))

	r.specs = append(r.specs, r.cur)
	r.cur = nil
	r.pos = end + len(crlf)
	r.state = StateBoundary

	return true, nil
}

// safeEnd returns the index up to which buffered content can be emitted when no complete separator is
// buffered: the tail that is a proper prefix of the separator is held back.
func (r *Reader) safeEnd() int {
	n := r.buf.Len()
	for k := min(len(r.sep)-1, n-r.pos); k > 0; k-- {
		if r.buf.At(n-k) == '\r' && r.buf.HasPrefixAt(n-k, r.sep[:k]) {
			return n - k
		}
	}

	return n
}

func (r *Reader) fail(err error) {
	r.err = err
	r.state = StateFailed
	r.buf, r.pos = chunkbuf.Buffer{}, 0

	if r.cur != nil {
		if cerr := r.cur.Cleanup(); cerr != nil {
			r.opts.logs.Warn("failed to clean up part", zap.Error(cerr))
		}

		r.cur = nil
	}

	r.opts.logs.Debug("multipart decoding failed", zap.Error(err))
}
