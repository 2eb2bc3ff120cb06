// Package query decodes "name=value&name=value" byte sequences into ranges over the original bytes.
// It serves both URL query strings and application/x-www-form-urlencoded request bodies.
package query

import (
	"bytes"
	"net/url"
)

// RangeTriple locates one "name[=value]" pair in the decoded bytes. The name spans [Start, Middle) or
// [Start, Middle-1) when an '=' was present, the value spans [Middle, End).
type RangeTriple struct {
	Start, Middle, End int
}

// Decoder provides lookups over a query string without copying it. The zero value is an empty decoder.
type Decoder struct {
	data    []byte
	triples []RangeTriple
	lookup  map[string][]int
}

// New scans b once and indexes every pair. The decoder keeps a reference to b, so the caller must not
// modify it afterwards.
func New(b []byte) *Decoder {
	d := &Decoder{data: b, lookup: map[string][]int{}}

	for pos := 0; pos < len(b); {
		end := bytes.IndexByte(b[pos:], '&')
		if end < 0 {
			end = len(b)
		} else {
			end += pos
		}

		if end > pos {
			t := RangeTriple{Start: pos, Middle: end, End: end}
			if eq := bytes.IndexByte(b[pos:end], '='); eq >= 0 {
				t.Middle = pos + eq + 1
			}

			name := string(b[t.Start:d.nameEnd(t)])
			d.lookup[name] = append(d.lookup[name], len(d.triples))
			d.triples = append(d.triples, t)
		}

		pos = end + 1
	}

	return d
}

// Len returns the number of pairs.
func (d *Decoder) Len() int { return len(d.triples) }

// Triples returns the ranges of all pairs in scan order.
func (d *Decoder) Triples() []RangeTriple { return d.triples }

// Has reports whether at least one pair with the given name exists.
func (d *Decoder) Has(name string) bool {
	_, ok := d.lookup[name]
	return ok
}

// Get returns the raw value bytes for every pair with the given name, in the order they appear. A pair
// without '=' or with an empty right-hand side yields an empty value. The slices alias the decoded
// bytes.
func (d *Decoder) Get(name string) [][]byte {
	idxs := d.lookup[name]
	if len(idxs) == 0 {
		return nil
	}

	vals := make([][]byte, len(idxs))
	for i, idx := range idxs {
		vals[i] = d.value(d.triples[idx])
	}

	return vals
}

// Values is like Get but materializes the values as strings.
func (d *Decoder) Values(name string) []string {
	idxs := d.lookup[name]
	if len(idxs) == 0 {
		return nil
	}

	vals := make([]string, len(idxs))
	for i, idx := range idxs {
		vals[i] = string(d.value(d.triples[idx]))
	}

	return vals
}

// Value returns the first value for name.
func (d *Decoder) Value(name string) (string, bool) {
	idxs := d.lookup[name]
	if len(idxs) == 0 {
		return "", false
	}

	return string(d.value(d.triples[idxs[0]])), true
}

// Unescaped returns the values for name with form decoding applied: '+' becomes a space and "%XX"
// escapes are resolved. A value with a malformed escape is returned as-is.
func (d *Decoder) Unescaped(name string) []string {
	vals := d.Values(name)
	for i, v := range vals {
		if u, err := url.QueryUnescape(v); err == nil {
			vals[i] = u
		}
	}

	return vals
}

// Each calls fn for every pair in scan order until fn returns false.
func (d *Decoder) Each(fn func(name string, value []byte) bool) {
	for _, t := range d.triples {
		if !fn(string(d.data[t.Start:d.nameEnd(t)]), d.value(t)) {
			return
		}
	}
}

func (d *Decoder) nameEnd(t RangeTriple) int {
	if t.Middle > t.Start && d.data[t.Middle-1] == '=' {
		return t.Middle - 1
	}

	return t.Middle
}

func (d *Decoder) value(t RangeTriple) []byte {
	return d.data[t.Middle:t.End:t.End]
}
