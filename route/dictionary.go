package route

// Dictionary resolves routes without wildcards by a single map lookup on Key(method, path).
type Dictionary[H any] struct {
	routes map[string]Route[H]
}

// NewDictionary indexes every route that has no wildcard segment. Wildcard routes are ignored.
func NewDictionary[H any](routes []Route[H]) (*Dictionary[H], error) {
	if err := Validate(routes); err != nil {
		return nil, err
	}

	d := &Dictionary[H]{routes: map[string]Route[H]{}}
	for _, r := range expand(routes) {
		if IsWildcard(r.Path) {
			continue
		}

		d.routes[Key(r.Method, r.Path)] = r
	}

	return d, nil
}

// Len returns the number of indexed method and path combinations.
func (d *Dictionary[H]) Len() int { return len(d.routes) }

// Resolve implements Matcher.
func (d *Dictionary[H]) Resolve(method, path string) (Match[H], bool) {
	r, ok := d.routes[Key(method, Normalize(path))]
	if !ok {
		return Match[H]{}, false
	}

	return Match[H]{Handler: r.Handler, Method: r.Method, Pattern: r.Path}, true
}
