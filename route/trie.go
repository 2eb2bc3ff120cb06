package route

import "github.com/cockroachdb/errors"

// trieNode is one node of the suffix trie. A node is either a branch with children and an optional
// terminal value, or a leaf holding the unexpanded remainder of a single key in tail.
type trieNode struct {
	children map[byte]int32
	value    int32 // route index, -1 if no key ends here
	tail     []byte
	tailVal  int32 // route index of tail, -1 if the node has no tail
}

// Trie resolves routes without wildcards by walking the bytes of Key(method, path) from the end
// towards the start. Paths with a common suffix share nodes. The nodes live in one slice and refer
// to each other by index.
type Trie[H any] struct {
	nodes  []trieNode
	routes []Route[H]
}

// NewTrie indexes every route that has no wildcard segment. Wildcard routes are ignored.
func NewTrie[H any](routes []Route[H]) (*Trie[H], error) {
	if err := Validate(routes); err != nil {
		return nil, err
	}

	t := &Trie[H]{}
	t.newNode()

	for _, r := range expand(routes) {
		if IsWildcard(r.Path) {
			continue
		}

		key := Key(r.Method, r.Path)
		if err := t.insert(key, int32(len(t.routes))); err != nil {
			return nil, err
		}

		t.routes = append(t.routes, r)
	}

	return t, nil
}

// Len returns the number of indexed method and path combinations.
func (t *Trie[H]) Len() int { return len(t.routes) }

// Resolve implements Matcher.
func (t *Trie[H]) Resolve(method, path string) (Match[H], bool) {
	idx := t.find(Key(method, Normalize(path)))
	if idx < 0 {
		return Match[H]{}, false
	}

	r := t.routes[idx]

	return Match[H]{Handler: r.Handler, Method: r.Method, Pattern: r.Path}, true
}

func (t *Trie[H]) newNode() int32 {
	t.nodes = append(t.nodes, trieNode{value: -1, tailVal: -1})
	return int32(len(t.nodes) - 1)
}

// insert adds key, read back to front, with the given route index.
func (t *Trie[H]) insert(key string, val int32) error {
	var n int32
	for i := len(key); ; i-- {
		if t.nodes[n].tailVal >= 0 {
			t.expand(n)
		}

		if i == 0 {
			if t.nodes[n].value >= 0 {
				return errors.Wrapf(ErrDuplicateRoute, "%s", key)
			}

			t.nodes[n].value = val

			return nil
		}

		if t.nodes[n].children == nil && t.nodes[n].value < 0 {
			t.nodes[n].tail = reversed(key[:i])
			t.nodes[n].tailVal = val

			return nil
		}

		c := key[i-1]
		child, ok := t.nodes[n].children[c]
		if !ok {
			child = t.newNode()
			if t.nodes[n].children == nil {
				t.nodes[n].children = map[byte]int32{}
			}

			t.nodes[n].children[c] = child
		}

		n = child
	}
}

// expand pushes the tail of node n one level down so the node can branch.
func (t *Trie[H]) expand(n int32) {
	tail, val := t.nodes[n].tail, t.nodes[n].tailVal
	t.nodes[n].tail, t.nodes[n].tailVal = nil, -1

	child := t.newNode()
	if t.nodes[n].children == nil {
		t.nodes[n].children = map[byte]int32{}
	}

	t.nodes[n].children[tail[0]] = child

	if len(tail) == 1 {
		t.nodes[child].value = val
		return
	}

	t.nodes[child].tail, t.nodes[child].tailVal = tail[1:], val
}

// find returns the route index for key, or -1.
func (t *Trie[H]) find(key string) int32 {
	var n int32
	for i := len(key); ; i-- {
		node := &t.nodes[n]
		if node.tailVal >= 0 {
			if i != len(node.tail) {
				return -1
			}

			for j, c := range node.tail {
				if key[i-1-j] != c {
					return -1
				}
			}

			return node.tailVal
		}

		if i == 0 {
			return node.value
		}

		child, ok := node.children[key[i-1]]
		if !ok {
			return -1
		}

		n = child
	}
}

// reversed returns the bytes of s from back to front.
func reversed(s string) []byte {
	b := make([]byte, len(s))
	for i := range len(s) {
		b[i] = s[len(s)-1-i]
	}

	return b
}
