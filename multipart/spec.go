package multipart

import (
	"bytes"
	"net/url"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
)

// BodySpec is one decoded part of a multipart body. A part is either a simple value, in which case
// FieldValue holds it, or an uploaded file that was streamed to the temporary file TmpFileName.
type BodySpec struct {
	FieldName   string
	FieldValue  string
	ContentType string
	FileName    string
	FileSize    int64
	TmpFileName string

	file    *os.File
	value   []byte
	removed bool
}

// IsFile reports whether the part was an uploaded file.
func (s *BodySpec) IsFile() bool { return s.TmpFileName != "" }

// Open opens the temporary file of a file part for reading.
func (s *BodySpec) Open() (*os.File, error) {
	if !s.IsFile() {
		return nil, errors.Newf("multipart: field %q is not a file", s.FieldName)
	}

	if s.removed {
		return nil, errors.Newf("multipart: file of field %q was cleaned up", s.FieldName)
	}

	f, err := os.Open(s.TmpFileName)
	if err != nil {
		return nil, errors.Wrap(err, "open upload")
	}

	return f, nil
}

// Cleanup closes and removes the temporary file, if any. It is safe to call more than once.
func (s *BodySpec) Cleanup() error {
	var err error
	if s.file != nil {
		if cerr := s.file.Close(); cerr != nil && !errors.Is(cerr, os.ErrClosed) {
			err = errors.Wrap(cerr, "close upload")
		}

		s.file = nil
	}

	if s.TmpFileName != "" && !s.removed {
		s.removed = true
		if rerr := os.Remove(s.TmpFileName); rerr != nil && !errors.Is(rerr, os.ErrNotExist) {
			err = errors.CombineErrors(err, errors.Wrap(rerr, "remove upload"))
		}
	}

	return err
}

// write appends data to the value or the open file of the part.
func (s *BodySpec) write(p []byte) error {
	if s.file == nil {
		s.value = append(s.value, p...)
		return nil
	}

	n, err := s.file.Write(p)
	s.FileSize += int64(n)
	if err != nil {
		return errors.Wrapf(err, "write upload of field %q", s.FieldName)
	}

	return nil
}

// finish completes the part once its terminating boundary was seen.
func (s *BodySpec) finish(mode os.FileMode) error {
	if s.file == nil {
		s.FieldValue, s.value = string(s.value), nil
		return nil
	}

	err := s.file.Close()
	s.file = nil
	if err != nil {
		return errors.Wrapf(err, "close upload of field %q", s.FieldName)
	}

	if err := os.Chmod(s.TmpFileName, mode); err != nil {
		return errors.Wrapf(err, "chmod upload of field %q", s.FieldName)
	}

	return nil
}

var (
	headerDisposition = []byte("Content-Disposition")
	headerContentType = []byte("Content-Type")
)

// parseHeaderLine picks the name, file name and content type from one header line. Lines it does not
// understand are ignored.
func (s *BodySpec) parseHeaderLine(line []byte) {
	colon := bytes.IndexByte(line, ':')
	if colon < 0 {
		return
	}

	name, value := bytes.TrimSpace(line[:colon]), strings.TrimSpace(string(line[colon+1:]))

	switch {
	case bytes.EqualFold(name, headerDisposition):
		params := dispositionParams(value)
		s.FieldName = params["name"]
		s.FileName = params["filename"]

		if ext, ok := params["filename*"]; ok {
			if fn, ok := decodeExtValue(ext); ok {
				s.FileName = fn
			}
		}
	case bytes.EqualFold(name, headerContentType):
		s.ContentType = value
	}
}

// dispositionParams parses the ";"-separated parameters that follow the disposition type. Keys are
// lower-cased, values may be quoted. The first occurrence of a key wins.
func dispositionParams(v string) map[string]string {
	params := map[string]string{}

	semi := strings.IndexByte(v, ';')
	if semi < 0 {
		return params
	}

	for rest := v[semi+1:]; rest != ""; {
		rest = strings.TrimLeft(rest, " \t;")

		i := strings.IndexAny(rest, "=;")
		switch {
		case i < 0:
			return params
		case rest[i] == ';':
			rest = rest[i+1:]
			continue
		}

		key := strings.ToLower(strings.TrimSpace(rest[:i]))
		rest = strings.TrimLeft(rest[i+1:], " \t")

		var val string
		val, rest = paramValue(rest)

		if _, seen := params[key]; !seen && key != "" {
			params[key] = val
		}
	}

	return params
}

// paramValue reads a token or quoted string from the start of s and returns it with the remainder.
// An unterminated quoted string runs to the end of s.
func paramValue(s string) (string, string) {
	if !strings.HasPrefix(s, `"`) {
		end := strings.IndexByte(s, ';')
		if end < 0 {
			return strings.TrimSpace(s), ""
		}

		return strings.TrimSpace(s[:end]), s[end:]
	}

	var sb strings.Builder
	for i := 1; i < len(s); i++ {
		switch c := s[i]; {
		case c == '\\' && i+1 < len(s):
			i++
			sb.WriteByte(s[i])
		case c == '"':
			return sb.String(), s[i+1:]
		default:
			sb.WriteByte(c)
		}
	}

	return sb.String(), ""
}

// decodeExtValue decodes an RFC 5987 extended value such as "UTF-8''na%C3%AFve.txt".
func decodeExtValue(v string) (string, bool) {
	parts := strings.SplitN(v, "'", 3)
	if len(parts) != 3 {
		return "", false
	}

	s, err := url.PathUnescape(parts[2])
	if err != nil {
		return "", false
	}

	return s, true
}
