package route

import (
	"slices"
	"strings"
)

// Builder registers routes with a chainable API. Each call returns a derived builder so a common
// prefix can be shared:
//
//	b := route.NewBuilder[http.Handler]()
//	api := b.Path("api", "v1")
//	api.Path("users").Method(http.MethodGet).Handle(listUsers)
//	api.Path("users").Wild().Method(http.MethodGet).Handle(getUser)
//	api.Path("files").Trailing().Handle(serveFile)
//
//	routes, err := b.Routes()
//
// All derived builders register into the same route table.
type Builder[H any] struct {
	segments []string
	methods  []string
	name     string
	routes   *[]Route[H]
}

// NewBuilder creates a builder rooted at "/".
func NewBuilder[H any]() *Builder[H] {
	return &Builder[H]{routes: new([]Route[H])}
}

// Path appends literal segments. A segment containing "/" is split.
func (b *Builder[H]) Path(segments ...string) *Builder[H] {
	next := b.derive()
	for _, s := range segments {
		next.segments = append(next.segments, Segments(s)...)
	}

	return next
}

// Wild appends a segment that matches any single path segment.
func (b *Builder[H]) Wild() *Builder[H] {
	next := b.derive()
	next.segments = append(next.segments, wildSegment)

	return next
}

// Trailing appends a segment that matches the remainder of the path.
func (b *Builder[H]) Trailing() *Builder[H] {
	next := b.derive()
	next.segments = append(next.segments, trailingSegment)

	return next
}

// Method restricts the routes registered from the returned builder to the given methods.
func (b *Builder[H]) Method(methods ...string) *Builder[H] {
	next := b.derive()
	next.methods = next.methods[:0]

	for _, m := range methods {
		next.methods = append(next.methods, strings.ToUpper(m))
	}

	return next
}

// Named names the routes registered from the returned builder.
func (b *Builder[H]) Named(name string) *Builder[H] {
	next := b.derive()
	next.name = name

	return next
}

// Group calls fn with the builder, for registering several routes below a common prefix.
func (b *Builder[H]) Group(fn func(g *Builder[H])) *Builder[H] {
	fn(b)
	return b
}

// Handle registers h at the builder's pattern for each of its methods, or for all methods when
// none were given.
func (b *Builder[H]) Handle(h H) *Builder[H] {
	if len(b.methods) == 0 {
		*b.routes = append(*b.routes, Route[H]{Path: b.Pattern(), Name: b.name, Handler: h})
		return b
	}

	for _, m := range b.methods {
		*b.routes = append(*b.routes, Route[H]{Method: m, Path: b.Pattern(), Name: b.name, Handler: h})
	}

	return b
}

// Pattern returns the path pattern of the builder.
func (b *Builder[H]) Pattern() string {
	return "/" + strings.Join(b.segments, "/")
}

// Routes validates the registered routes and returns them with method-less routes expanded to every
// method in AllMethods.
func (b *Builder[H]) Routes() ([]Route[H], error) {
	if err := Validate(*b.routes); err != nil {
		return nil, err
	}

	return expand(*b.routes), nil
}

func (b *Builder[H]) derive() *Builder[H] {
	return &Builder[H]{
		segments: slices.Clone(b.segments),
		methods:  slices.Clone(b.methods),
		name:     b.name,
		routes:   b.routes,
	}
}
