package topic

import "sort"

// Index maps pattern keys to values and resolves channels against them.
//
// Every key is kept in an exact-match map. Rooted keys are also stored in a
// trie of their segments, so resolving a channel walks its segments once
// instead of building and looking up each candidate string. The result is
// the same as filtering Candidates by key presence.
//
// Index is not safe for concurrent use; callers synchronise access.
// The zero value is ready to use.
type Index[V any] struct {
	root  *indexNode[V]
	exact map[string]V
}

// indexNode is a node in the pattern trie.
type indexNode[V any] struct {
	children map[string]*indexNode[V]
	key      string // pattern terminating here, if set
	value    V
	set      bool
}

// newIndexNode creates a new trie node.
func newIndexNode[V any]() *indexNode[V] {
	return &indexNode[V]{
		children: make(map[string]*indexNode[V]),
	}
}

// isEmpty returns true if the node has no children and no value.
func (n *indexNode[V]) isEmpty() bool {
	return len(n.children) == 0 && !n.set
}

// Match is a pattern key found during resolution and its value.
type Match[V any] struct {
	Pattern string
	Value   V
}

// NewIndex creates an empty index.
func NewIndex[V any]() *Index[V] {
	return &Index[V]{
		root:  newIndexNode[V](),
		exact: make(map[string]V),
	}
}

// Insert stores v under pattern, replacing any previous value.
func (x *Index[V]) Insert(pattern string, v V) {
	if x.root == nil {
		x.root = newIndexNode[V]()
	}
	if x.exact == nil {
		x.exact = make(map[string]V)
	}

	x.exact[pattern] = v
	if !IsRooted(pattern) {
		// Only reachable through the exact pass.
		return
	}

	node := x.root
	for _, seg := range Split(pattern) {
		child := node.children[seg]
		if child == nil {
			child = newIndexNode[V]()
			node.children[seg] = child
		}
		node = child
	}
	node.key = pattern
	node.value = v
	node.set = true
}

// Lookup returns the value stored under the exact pattern key.
func (x *Index[V]) Lookup(pattern string) (V, bool) {
	v, ok := x.exact[pattern]
	return v, ok
}

// pathEntry tracks a node and the key used to reach it during traversal.
type pathEntry[V any] struct {
	node *indexNode[V]
	key  string
}

// Delete removes a pattern and prunes trie nodes left empty.
// Returns false if the pattern was not present.
func (x *Index[V]) Delete(pattern string) bool {
	if _, ok := x.exact[pattern]; !ok {
		return false
	}
	delete(x.exact, pattern)

	if !IsRooted(pattern) || x.root == nil {
		return true
	}

	segments := Split(pattern)
	path := make([]pathEntry[V], 0, len(segments)+1)
	path = append(path, pathEntry[V]{node: x.root})

	node := x.root
	for _, seg := range segments {
		child := node.children[seg]
		if child == nil {
			return true
		}
		path = append(path, pathEntry[V]{node: child, key: seg})
		node = child
	}

	var zero V
	node.key = ""
	node.value = zero
	node.set = false

	// Prune empty nodes from leaf back to root
	for i := len(path) - 1; i > 0; i-- {
		if !path[i].node.isEmpty() {
			break
		}
		delete(path[i-1].node.children, path[i].key)
	}
	return true
}

// Len returns the number of stored patterns.
func (x *Index[V]) Len() int {
	return len(x.exact)
}

// Patterns returns all stored pattern keys in sorted order.
func (x *Index[V]) Patterns() []string {
	if len(x.exact) == 0 {
		return nil
	}
	out := make([]string, 0, len(x.exact))
	for p := range x.exact {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// NodeCount returns the number of trie nodes, including the root.
func (x *Index[V]) NodeCount() int {
	if x.root == nil {
		return 0
	}
	count := 0
	var walk func(n *indexNode[V])
	walk = func(n *indexNode[V]) {
		count++
		for _, child := range n.children {
			walk(child)
		}
	}
	walk(x.root)
	return count
}

// Resolve returns every stored pattern matching channel, in resolution order:
// trailing "**" patterns from the shortest prefix to the longest, then
// single "*" patterns from the leftmost position, then the exact channel key.
// A pattern appears once per way it matches.
func (x *Index[V]) Resolve(channel string) []Match[V] {
	var out []Match[V]
	segments := Split(channel)

	if x.root != nil {
		// path[k] is the node reached by the first k literal segments.
		path := make([]*indexNode[V], len(segments)+1)
		node := x.root
		for k := 0; node != nil && k <= len(segments); k++ {
			path[k] = node
			if multi := node.children[WildcardMulti]; multi != nil && multi.set {
				out = append(out, Match[V]{Pattern: multi.key, Value: multi.value})
			}
			if k < len(segments) {
				node = node.children[segments[k]]
			}
		}

		for i := range segments {
			if path[i] == nil {
				break
			}
			node := path[i].children[WildcardSingle]
			for j := i + 1; node != nil && j < len(segments); j++ {
				node = node.children[segments[j]]
			}
			if node != nil && node.set {
				out = append(out, Match[V]{Pattern: node.key, Value: node.value})
			}
		}
	}

	if v, ok := x.exact[channel]; ok {
		out = append(out, Match[V]{Pattern: channel, Value: v})
	}
	return out
}

// Clear removes all patterns.
func (x *Index[V]) Clear() {
	x.root = newIndexNode[V]()
	x.exact = make(map[string]V)
}
