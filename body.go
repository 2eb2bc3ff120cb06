package bdispatch

import (
	"context"
	"io"
	"mime"
	"strings"

	"github.com/advdv/bdispatch/chunkbuf"
	"github.com/advdv/bdispatch/multipart"
	"github.com/advdv/bdispatch/query"
	"github.com/cockroachdb/errors"
	"github.com/goccy/go-json"
	"github.com/samber/lo"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// DefaultContentType is assumed for bodies without a Content-Type header.
const DefaultContentType = "application/octet-stream"

const (
	mediaMultipart  = "multipart/form-data"
	mediaURLEncoded = "application/x-www-form-urlencoded"
)

// BodyKind tells how a request body was decoded.
type BodyKind int

const (
	// BodyEmpty is a request without body bytes.
	BodyEmpty BodyKind = iota
	// BodyRaw holds the body bytes as they were received.
	BodyRaw
	// BodyForm is an application/x-www-form-urlencoded body.
	BodyForm
	// BodyMultipart is a multipart/form-data body.
	BodyMultipart
)

func (k BodyKind) String() string {
	switch k {
	case BodyEmpty:
		return "empty"
	case BodyRaw:
		return "raw"
	case BodyForm:
		return "form"
	case BodyMultipart:
		return "multipart"
	default:
		return "unknown"
	}
}

// Body is the decoded request body.
type Body struct {
	Kind BodyKind
	// ContentType is the media type without parameters, lower-cased.
	ContentType string
	// Raw holds the body of the in-memory kinds.
	Raw []byte
	// Form is set for BodyForm.
	Form *query.Decoder
	// Parts is set for BodyMultipart, in arrival order.
	Parts []*multipart.BodySpec
}

// JSON looks up path in a raw JSON body.
func (b *Body) JSON(path string) gjson.Result {
	return gjson.GetBytes(b.Raw, path)
}

// DecodeJSON unmarshals a raw body into v. Malformed JSON is a client error.
func (b *Body) DecodeJSON(v any) error {
	if len(b.Raw) == 0 {
		return Errorf(CodeBadRequest, "empty body")
	}

	if err := json.Unmarshal(b.Raw, v); err != nil {
		return NewError(CodeBadRequest, errors.Wrap(err, "decode json body"))
	}

	return nil
}

// Files returns the uploaded file parts of a multipart body.
func (b *Body) Files() []*multipart.BodySpec {
	return lo.Filter(b.Parts, func(s *multipart.BodySpec, _ int) bool { return s.IsFile() })
}

// File returns the first uploaded file for the field name.
func (b *Body) File(name string) (*multipart.BodySpec, bool) {
	return lo.Find(b.Parts, func(s *multipart.BodySpec) bool { return s.IsFile() && s.FieldName == name })
}

// Field returns the first value for name of a form or multipart body. Form values are
// percent-decoded.
func (b *Body) Field(name string) (string, bool) {
	switch b.Kind {
	case BodyForm:
		vals := b.Form.Unescaped(name)
		if len(vals) == 0 {
			return "", false
		}

		return vals[0], true
	case BodyMultipart:
		spec, ok := lo.Find(b.Parts, func(s *multipart.BodySpec) bool { return !s.IsFile() && s.FieldName == name })
		if !ok {
			return "", false
		}

		return spec.FieldValue, true
	default:
		return "", false
	}
}

type bodyConfig struct {
	maxBodyBytes   int64
	maxUploadBytes int64
	tempDir        string
	logs           *zap.Logger
	metrics        *Metrics
}

// bodyDecoder pulls chunks from a source and hands them to the decoder that fits the content type.
type bodyDecoder struct {
	cfg       bodyConfig
	src       Source
	remaining int64
	reader    *multipart.Reader
}

func newBodyDecoder(src Source, cfg bodyConfig) *bodyDecoder {
	return &bodyDecoder{cfg: cfg, src: src, remaining: src.ContentLength()}
}

// next returns the next chunk, clamped to the declared content length.
func (d *bodyDecoder) next(ctx context.Context) ([]byte, error) {
	if d.remaining == 0 {
		return nil, io.EOF
	}

	chunk, err := d.src.ReadChunk(ctx)
	if d.remaining > 0 && int64(len(chunk)) > d.remaining {
		chunk = chunk[:d.remaining]
	}

	if d.remaining > 0 {
		d.remaining -= int64(len(chunk))
	}

	if errors.Is(err, io.EOF) && d.remaining > 0 {
		return chunk, NewError(CodeBadRequest, errors.Newf("body ended %d bytes before its declared length", d.remaining))
	}

	return chunk, err
}

func (d *bodyDecoder) decode(ctx context.Context) (*Body, error) {
	contentType := d.src.Header("Content-Type")
	if contentType == "" {
		contentType = DefaultContentType
	}

	body := &Body{ContentType: mediaType(contentType)}

	switch body.ContentType {
	case mediaMultipart:
		body.Kind = BodyMultipart
		parts, err := d.decodeMultipart(ctx, contentType)
		if err != nil {
			d.cfg.metrics.decodeFailed(body.Kind)
			return nil, err
		}

		body.Parts = parts
		d.cfg.metrics.partsDecoded(parts)
	case mediaURLEncoded:
		raw, err := d.readAll(ctx)
		if err != nil {
			d.cfg.metrics.decodeFailed(BodyForm)
			return nil, err
		}

		body.Kind, body.Raw, body.Form = BodyForm, raw, query.New(raw)
	default:
		raw, err := d.readAll(ctx)
		if err != nil {
			d.cfg.metrics.decodeFailed(BodyRaw)
			return nil, err
		}

		body.Kind, body.Raw = BodyRaw, raw
		if len(raw) == 0 {
			body.Kind = BodyEmpty
		}
	}

	return body, nil
}

func (d *bodyDecoder) readAll(ctx context.Context) ([]byte, error) {
	if d.cfg.maxBodyBytes >= 0 && d.remaining > d.cfg.maxBodyBytes {
		return nil, Errorf(CodeRequestEntityTooLarge, "declared body of %d bytes exceeds %d", d.remaining, d.cfg.maxBodyBytes)
	}

	var buf chunkbuf.Buffer
	for {
		chunk, err := d.next(ctx)
		buf = buf.Append(chunk)

		if d.cfg.maxBodyBytes >= 0 && int64(buf.Len()) > d.cfg.maxBodyBytes {
			return nil, Errorf(CodeRequestEntityTooLarge, "body exceeds %d bytes", d.cfg.maxBodyBytes)
		}

		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return nil, errors.Wrap(err, "read body")
		}
	}

	raw, _ := buf.Bytes(0, buf.Len())

	return raw, nil
}

func (d *bodyDecoder) decodeMultipart(ctx context.Context, contentType string) ([]*multipart.BodySpec, error) {
	d.reader = multipart.NewReader(contentType,
		multipart.WithTempDir(d.cfg.tempDir),
		multipart.WithLogger(d.cfg.logs))
	if !d.reader.IsMultipart() {
		return nil, Errorf(CodeBadRequest, "multipart body without boundary")
	}

	var total int64
	for {
		chunk, err := d.next(ctx)
		if len(chunk) > 0 {
			total += int64(len(chunk))
			if d.cfg.maxUploadBytes >= 0 && total > d.cfg.maxUploadBytes {
				return nil, Errorf(CodeRequestEntityTooLarge, "multipart body exceeds %d bytes", d.cfg.maxUploadBytes)
			}

			if ferr := d.reader.Feed(chunk); ferr != nil {
				return nil, multipartError(ferr)
			}
		}

		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return nil, errors.Wrap(err, "read multipart body")
		}
	}

	if err := d.reader.Finish(); err != nil {
		return nil, multipartError(err)
	}

	return d.reader.Specs(), nil
}

// close removes the temporary files of a multipart body.
func (d *bodyDecoder) close() error {
	if d.reader == nil {
		return nil
	}

	return d.reader.Close()
}

func multipartError(err error) error {
	if errors.Is(err, multipart.ErrMalformed) ||
		errors.Is(err, multipart.ErrUnexpectedEOF) ||
		errors.Is(err, multipart.ErrHeaderTooLong) {
		return NewError(CodeBadRequest, err)
	}

	return errors.Wrap(err, "decode multipart body")
}

// mediaType returns the lower-cased media type of a Content-Type value. Values the mime package
// rejects are cut at the first parameter.
func mediaType(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err == nil {
		return mt
	}

	mt, _, _ = strings.Cut(contentType, ";")

	return strings.ToLower(strings.TrimSpace(mt))
}
