package route

import "github.com/samber/lo"

type dualConfig struct {
	suffixTrie bool
}

// DualOption configures NewDual.
type DualOption func(*dualConfig)

// WithSuffixTrie makes the exact stage use the suffix trie instead of the map.
func WithSuffixTrie() DualOption {
	return func(c *dualConfig) { c.suffixTrie = true }
}

// Dual resolves exact paths first and falls back to the wildcard patterns, in registration order,
// when no exact route matches.
type Dual[H any] struct {
	exact Matcher[H]
	wild  *Wildcard[H]
}

// NewDual builds both stages from routes. Duplicate or invalid routes are a configuration error.
func NewDual[H any](routes []Route[H], opts ...DualOption) (*Dual[H], error) {
	var cfg dualConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	if err := Validate(routes); err != nil {
		return nil, err
	}

	isExact := func(r Route[H], _ int) bool { return !IsWildcard(r.Path) }
	exact, wildcards := lo.Filter(routes, isExact), lo.Reject(routes, isExact)

	d := &Dual[H]{}

	var err error
	if cfg.suffixTrie {
		d.exact, err = NewTrie(exact)
	} else {
		d.exact, err = NewDictionary(exact)
	}

	if err != nil {
		return nil, err
	}

	if d.wild, err = NewWildcard(wildcards); err != nil {
		return nil, err
	}

	return d, nil
}

// Resolve implements Matcher.
func (d *Dual[H]) Resolve(method, path string) (Match[H], bool) {
	path = Normalize(path)
	if m, ok := d.exact.Resolve(method, path); ok {
		return m, true
	}

	return d.wild.Resolve(method, path)
}
