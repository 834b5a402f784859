package hub

import (
	"sync"
	"sync/atomic"

	"github.com/dshills/topichub/internal/hub/topic"
)

// entry is one registration inside a bucket.
type entry struct {
	handle  Handle
	ident   any
	removed atomic.Bool
}

// bucket holds the registrations for one exact pattern key in insertion order.
// A publish captures the bucket pointer; the entries it sees are read when
// the delivery task runs.
type bucket struct {
	pattern string
	entries []*entry
}

// Registry maps pattern keys to buckets of registrations.
// It is thread-safe for concurrent access.
type Registry struct {
	mu    sync.RWMutex
	index topic.Index[*bucket]
	byID  map[string]*entry
	count int
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byID: make(map[string]*entry),
	}
}

// Add appends a registration for pattern and returns its handle.
// ident is the identity UnsubscribeFunc compares against; nil disables
// removal by callback.
func (r *Registry) Add(pattern string, h Handler, ident any) Handle {
	e := &entry{handle: newHandle(pattern, h), ident: ident}

	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.index.Lookup(pattern)
	if !ok {
		b = &bucket{pattern: pattern}
		r.index.Insert(pattern, b)
	}
	b.entries = append(b.entries, e)
	r.byID[e.handle.id] = e
	r.count++

	return e.handle
}

// Remove removes the registration with the given handle ID.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.byID[id]
	if !ok {
		return false
	}
	r.removeLocked(e)
	return true
}

// RemoveFirst removes the first registration under pattern whose identity
// equals ident.
func (r *Registry) RemoveFirst(pattern string, ident any) bool {
	if ident == nil {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.index.Lookup(pattern)
	if !ok {
		return false
	}
	for _, e := range b.entries {
		if sameIdentity(e.ident, ident) {
			r.removeLocked(e)
			return true
		}
	}
	return false
}

// removeLocked detaches e from its bucket. The bucket stays in the index
// when it empties, so a publish that captured it still sees registrations
// added under the same key later. Caller must hold the write lock.
func (r *Registry) removeLocked(e *entry) {
	e.removed.Store(true)
	delete(r.byID, e.handle.id)
	r.count--

	pattern := e.handle.pattern
	b, ok := r.index.Lookup(pattern)
	if !ok {
		return
	}

	// Copy on removal so snapshots held by running deliveries stay intact.
	entries := make([]*entry, 0, len(b.entries))
	for _, other := range b.entries {
		if other != e {
			entries = append(entries, other)
		}
	}
	b.entries = entries
}

// resolve returns the buckets matching channel in firing order.
func (r *Registry) resolve(channel string) []*bucket {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matches := r.index.Resolve(channel)
	if len(matches) == 0 {
		return nil
	}
	buckets := make([]*bucket, len(matches))
	for i, m := range matches {
		buckets[i] = m.Value
	}
	return buckets
}

// entriesOf returns the current registrations of b.
func (r *Registry) entriesOf(b *bucket) []*entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return b.entries
}

// Match returns the pattern keys that a publish on channel would fire,
// in firing order. A key appears more than once when the channel itself
// contains wildcard characters.
func (r *Registry) Match(channel string) []string {
	buckets := r.resolve(channel)
	if buckets == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	var keys []string
	for _, b := range buckets {
		if len(b.entries) > 0 {
			keys = append(keys, b.pattern)
		}
	}
	return keys
}

// Count returns the total number of registrations.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.count
}

// CountByPattern returns the number of registrations under the exact key.
func (r *Registry) CountByPattern(pattern string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.index.Lookup(pattern)
	if !ok {
		return 0
	}
	return len(b.entries)
}

// Patterns returns every pattern key with at least one registration, sorted.
func (r *Registry) Patterns() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var live []string
	for _, p := range r.index.Patterns() {
		if b, ok := r.index.Lookup(p); ok && len(b.entries) > 0 {
			live = append(live, p)
		}
	}
	return live
}

// Clear removes all registrations.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range r.byID {
		e.removed.Store(true)
	}
	r.index.Clear()
	r.byID = make(map[string]*entry)
	r.count = 0
}
