// Package chunkbuf provides a byte-addressable view over an ordered list of independently received
// network buffers. The view is an immutable value: appending and trimming return a new Buffer and
// never mutate the chunks that were handed in.
package chunkbuf

import "bytes"

// Buffer is an append-only view over an ordered list of byte chunks. Index 0 always refers to the
// first byte that was not yet trimmed away.
type Buffer struct {
	chunks [][]byte
	offset int // bytes of chunks[0] that are consumed
	count  int
}

// New creates a buffer over the given chunks. Empty chunks are skipped.
func New(chunks ...[]byte) Buffer {
	return Buffer{}.Append(chunks...)
}

// Len returns the number of unconsumed bytes in the buffer.
func (b Buffer) Len() int { return b.count }

// NumChunks returns the number of chunks that still hold unconsumed bytes.
func (b Buffer) NumChunks() int { return len(b.chunks) }

// At returns the byte at logical index i. It returns 0 when i is out of range, callers that depend
// on the value for control flow must check the index against Len first.
func (b Buffer) At(i int) byte {
	if i < 0 || i >= b.count {
		return 0
	}

	ci, pos := b.locate(i)

	return b.chunks[ci][pos]
}

// WithRange calls fn with a contiguous view of the bytes in [start, end). When the range lies within
// one chunk the view aliases that chunk, otherwise the bytes are copied into a scratch slice first.
// It returns false, without calling fn, when the range is not fully buffered yet. The view must not
// be retained or modified by fn.
func (b Buffer) WithRange(start, end int, fn func(p []byte) error) (bool, error) {
	p, ok := b.Bytes(start, end)
	if !ok {
		return false, nil
	}

	return true, fn(p)
}

// Bytes returns the bytes in [start, end) and whether the range is available. The result aliases
// the underlying chunk when possible and must then be treated as read-only.
func (b Buffer) Bytes(start, end int) ([]byte, bool) {
	if start < 0 || end < start || end > b.count {
		return nil, false
	}

	if start == end {
		return []byte{}, true
	}

	ci, pos := b.locate(start)
	if n := end - start; pos+n <= len(b.chunks[ci]) {
		return b.chunks[ci][pos : pos+n : pos+n], true
	}

	scratch := make([]byte, 0, end-start)
	for remaining := end - start; remaining > 0; ci++ {
		chunk := b.chunks[ci][pos:]
		pos = 0

		if len(chunk) > remaining {
			chunk = chunk[:remaining]
		}

		scratch = append(scratch, chunk...)
		remaining -= len(chunk)
	}

	return scratch, true
}

// Append returns a buffer that has the given chunks added at the end. The chunks are owned by the
// buffer from now on and must not be modified by the caller.
func (b Buffer) Append(chunks ...[]byte) Buffer {
	added := 0
	for _, c := range chunks {
		added += len(c)
	}

	if added == 0 {
		return b
	}

	next := make([][]byte, len(b.chunks), len(b.chunks)+len(chunks))
	copy(next, b.chunks)

	for _, c := range chunks {
		if len(c) > 0 {
			next = append(next, c)
		}
	}

	return Buffer{chunks: next, offset: b.offset, count: b.count + added}
}

// Trim returns a buffer representing everything from logical index i onward. Leading chunks that are
// fully consumed are dropped. Trimming at or beyond Len yields the empty buffer.
func (b Buffer) Trim(i int) Buffer {
	switch {
	case i <= 0:
		return b
	case i >= b.count:
		return Buffer{}
	}

	ci, pos := b.locate(i)

	return Buffer{chunks: b.chunks[ci:], offset: pos, count: b.count - i}
}

// Index returns the logical index of the first occurrence of sep at or after from, or -1 when the
// buffered bytes do not contain it. Matches that straddle chunk edges are found as well.
func (b Buffer) Index(sep []byte, from int) int {
	if len(sep) == 0 || from < 0 || from+len(sep) > b.count {
		return -1
	}

	ci, pos := b.locate(from)
	at := from // logical index of chunks[ci][pos]

	for ; ci < len(b.chunks); ci++ {
		chunk := b.chunks[ci]
		for pos < len(chunk) {
			j := bytes.IndexByte(chunk[pos:], sep[0])
			if j < 0 {
				break
			}

			if at+j+len(sep) > b.count {
				return -1
			}

			if b.hasPrefix(ci, pos+j, sep) {
				return at + j
			}

			pos, at = pos+j+1, at+j+1
		}

		at += len(chunk) - pos
		pos = 0
	}

	return -1
}

// HasPrefixAt reports whether the bytes starting at logical index i begin with p. It returns false
// when fewer than len(p) bytes are buffered from i.
func (b Buffer) HasPrefixAt(i int, p []byte) bool {
	if i < 0 || i+len(p) > b.count {
		return false
	}

	if len(p) == 0 {
		return true
	}

	ci, pos := b.locate(i)

	return b.hasPrefix(ci, pos, p)
}

// hasPrefix compares p against the chunks starting at chunk ci, position pos. The caller guarantees
// that enough bytes are buffered.
func (b Buffer) hasPrefix(ci, pos int, p []byte) bool {
	for len(p) > 0 {
		chunk := b.chunks[ci][pos:]
		n := min(len(chunk), len(p))

		if !bytes.Equal(chunk[:n], p[:n]) {
			return false
		}

		p = p[n:]
		ci, pos = ci+1, 0
	}

	return true
}

// locate walks the chunks to find the chunk that holds logical index i and the position of the byte
// within that chunk. The caller guarantees 0 <= i < count.
func (b Buffer) locate(i int) (ci, pos int) {
	i += b.offset
	for ci = 0; ci < len(b.chunks)-1; ci++ {
		n := len(b.chunks[ci])
		if i < n {
			break
		}

		i -= n
	}

	return ci, i
}
