package route

import (
	"regexp"
	"strings"
	"sync/atomic"

	"github.com/cockroachdb/errors"
)

type pattern[H any] struct {
	route     Route[H]
	re        *regexp.Regexp
	segments  []string
	cacheable bool
}

func (p *pattern[H]) match(path string) (Match[H], bool) {
	sub := p.re.FindStringSubmatch(path)
	if sub == nil {
		return Match[H]{}, false
	}

	return Match[H]{
		Handler:  p.route.Handler,
		Method:   p.route.Method,
		Pattern:  p.route.Path,
		Captures: sub[1:],
	}, true
}

// Wildcard matches patterns in registration order and the first pattern that matches wins, even if
// a later pattern would match more specifically.
//
// The last matched pattern is remembered in a single atomic slot and tried first on the next lookup.
// Concurrent lookups may overwrite each other's slot, which only costs a cache miss. A pattern is
// only tried from the slot when no earlier pattern of its method can match the same path, so the
// slot never changes which pattern wins.
type Wildcard[H any] struct {
	patterns []pattern[H]
	byMethod map[string][]int
	last     atomic.Int64 // index+1, zero when empty
}

// NewWildcard compiles every route, including those without wildcards.
func NewWildcard[H any](routes []Route[H]) (*Wildcard[H], error) {
	if err := Validate(routes); err != nil {
		return nil, err
	}

	w := &Wildcard[H]{byMethod: map[string][]int{}}
	for _, r := range expand(routes) {
		re, err := compilePattern(r.Path)
		if err != nil {
			return nil, err
		}

		p := pattern[H]{
			route:     r,
			re:        re,
			segments:  Segments(strings.ToLower(r.Path)),
			cacheable: true,
		}

		for _, prev := range w.byMethod[r.Method] {
			if overlaps(w.patterns[prev].segments, p.segments) {
				p.cacheable = false
				break
			}
		}

		w.byMethod[r.Method] = append(w.byMethod[r.Method], len(w.patterns))
		w.patterns = append(w.patterns, p)
	}

	return w, nil
}

// Len returns the number of compiled patterns.
func (w *Wildcard[H]) Len() int { return len(w.patterns) }

// Resolve implements Matcher.
func (w *Wildcard[H]) Resolve(method, path string) (Match[H], bool) {
	method, path = strings.ToUpper(method), Normalize(path)

	if idx := w.last.Load() - 1; idx >= 0 {
		if p := &w.patterns[idx]; p.cacheable && p.route.Method == method {
			if m, ok := p.match(path); ok {
				return m, true
			}
		}
	}

	for _, idx := range w.byMethod[method] {
		if m, ok := w.patterns[idx].match(path); ok {
			w.last.Store(int64(idx) + 1)
			return m, true
		}
	}

	return Match[H]{}, false
}

// compilePattern turns a normalized pattern into an anchored, case-insensitive expression with one
// capture group per wildcard segment.
func compilePattern(path string) (*regexp.Regexp, error) {
	var sb strings.Builder
	sb.WriteString("(?i)^")

	segs := Segments(path)
	for _, seg := range segs {
		switch seg {
		case wildSegment:
			sb.WriteString("/([^/]+)")
		case trailingSegment:
			sb.WriteString("/(.+)")
		default:
			sb.WriteString("/" + regexp.QuoteMeta(seg))
		}
	}

	if len(segs) == 0 {
		sb.WriteString("/")
	}

	sb.WriteString("$")

	re, err := regexp.Compile(sb.String())
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidPattern, "compile %q: %v", path, err)
	}

	return re, nil
}

// overlaps reports whether some path exists that both segment patterns match. Literal segments must
// be lower-cased.
func overlaps(a, b []string) bool {
	for i := 0; ; i++ {
		aEnd, bEnd := i >= len(a), i >= len(b)
		if aEnd || bEnd {
			return aEnd && bEnd
		}

		if a[i] == trailingSegment || b[i] == trailingSegment {
			return true
		}

		if a[i] != wildSegment && b[i] != wildSegment && a[i] != b[i] {
			return false
		}
	}
}
