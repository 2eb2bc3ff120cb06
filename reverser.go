package bdispatch

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/advdv/bdispatch/route"
	"github.com/samber/lo"
)

// Reverser keeps track of named patterns and allows building URLs.
type Reverser struct {
	pats map[string][]string
}

// NewReverser inits the reverser.
func NewReverser() *Reverser {
	return &Reverser{make(map[string][]string)}
}

// Reverse builds the path for the named pattern. Values replace the wildcard segments in order, the
// value for a trailing wildcard may contain slashes.
func (r Reverser) Reverse(name string, vals ...string) (string, error) {
	segs, ok := r.pats[name]
	if !ok {
		return "", fmt.Errorf("no pattern named: %q, got: %v", name, lo.Keys(r.pats)) //nolint:goerr113
	}

	var (
		out  strings.Builder
		next int
	)

	for _, seg := range segs {
		out.WriteByte('/')

		switch seg {
		case "*", "**":
			if next >= len(vals) {
				return "", fmt.Errorf("failed to build %q: not enough values", name) //nolint:goerr113
			}

			val := vals[next]
			next++

			if seg == "*" {
				out.WriteString(url.PathEscape(val))
				continue
			}

			parts := strings.Split(strings.Trim(val, "/"), "/")
			out.WriteString(strings.Join(lo.Map(parts, func(p string, _ int) string { return url.PathEscape(p) }), "/"))
		default:
			out.WriteString(seg)
		}
	}

	if next < len(vals) {
		return "", fmt.Errorf("failed to build %q: too many values", name) //nolint:goerr113
	}

	if out.Len() == 0 {
		return "/", nil
	}

	return out.String(), nil
}

// Named is a convenience method that panics if naming the pattern fails.
func (r Reverser) Named(name, pattern string) string {
	pattern, err := r.NamedPattern(name, pattern)
	if err != nil {
		panic("bdispatch: " + err.Error())
	}

	return pattern
}

// NamedPattern registers the route pattern under name and returns it.
func (r Reverser) NamedPattern(name, pattern string) (string, error) {
	if _, exists := r.pats[name]; exists {
		return pattern, fmt.Errorf("pattern with name %q already exists", name) //nolint:goerr113
	}

	if err := route.Validate([]route.Route[struct{}]{{Path: pattern}}); err != nil {
		return pattern, fmt.Errorf("failed to parse pattern: %w", err)
	}

	r.pats[name] = route.Segments(pattern)

	return pattern, nil
}
