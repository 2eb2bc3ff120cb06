// Package route resolves request paths to handlers. Routes are registered once, before serving, and
// the matchers built from them are read-only afterwards so they can be shared by concurrent requests.
//
// Path patterns are normalized paths in which a "*" segment matches exactly one path segment and a
// trailing "**" segment matches one or more remaining segments, slashes included. Matching ignores
// the case of the path.
package route

import (
	"net/http"
	"slices"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
)

var (
	// ErrDuplicateRoute is returned when the same method and path are registered more than once.
	ErrDuplicateRoute = errors.New("route: duplicate routes")
	// ErrInvalidPattern is returned for patterns with a "**" segment that is not the last one.
	ErrInvalidPattern = errors.New("route: invalid pattern")
)

// AllMethods are the methods a route without an explicit method is registered for.
var AllMethods = []string{
	http.MethodGet,
	http.MethodHead,
	http.MethodPost,
	http.MethodPut,
	http.MethodPatch,
	http.MethodDelete,
	http.MethodConnect,
	http.MethodOptions,
	http.MethodTrace,
}

const (
	wildSegment     = "*"
	trailingSegment = "**"
)

// Route associates a method and path pattern with a handler. An empty method stands for all methods.
// Name is optional and identifies the pattern for building URLs.
type Route[H any] struct {
	Method  string
	Path    string
	Name    string
	Handler H
}

// Match is the result of a successful lookup.
type Match[H any] struct {
	Handler H
	Method  string
	Pattern string
	// Captures holds the values of "*" and "**" segments in pattern order.
	Captures []string
}

// Matcher resolves a method and request path.
type Matcher[H any] interface {
	Resolve(method, path string) (Match[H], bool)
}

// Key returns the lookup key for a method and normalized path, e.g. "GET://a/b".
func Key(method, path string) string {
	return strings.ToUpper(method) + ":/" + strings.ToLower(path)
}

// IsWildcard reports whether the pattern contains a "*" or "**" segment.
func IsWildcard(pattern string) bool {
	return slices.ContainsFunc(Segments(pattern), isWildSegment)
}

func isWildSegment(seg string) bool {
	return seg == wildSegment || seg == trailingSegment
}

// Validate checks the routes for invalid patterns and for duplicate method and path combinations.
// Routes without a method conflict with routes of every method.
func Validate[H any](routes []Route[H]) error {
	expanded := expand(routes)

	for _, r := range expanded {
		segs := Segments(r.Path)
		if i := slices.Index(segs, trailingSegment); i >= 0 && i != len(segs)-1 {
			return errors.Wrapf(ErrInvalidPattern, "%q: %q must be the last segment", r.Path, trailingSegment)
		}
	}

	dups := lo.FindDuplicates(lo.Map(expanded, func(r Route[H], _ int) string {
		return Key(r.Method, Normalize(r.Path))
	}))
	if len(dups) > 0 {
		slices.Sort(dups)
		return errors.Wrapf(ErrDuplicateRoute, "%s", strings.Join(dups, ", "))
	}

	return nil
}

// expand returns the routes with normalized paths, upper-cased methods, and method-less routes
// replaced by one route per method in AllMethods.
func expand[H any](routes []Route[H]) []Route[H] {
	return lo.FlatMap(routes, func(r Route[H], _ int) []Route[H] {
		r.Path = Normalize(r.Path)
		if r.Method != "" {
			r.Method = strings.ToUpper(r.Method)
			return []Route[H]{r}
		}

		return lo.Map(AllMethods, func(m string, _ int) Route[H] {
			return Route[H]{Method: m, Path: r.Path, Name: r.Name, Handler: r.Handler}
		})
	})
}
