// Package container implements the small set of generic data structures the
// rest of ircservd is built on (§2 "Containers" in the design): a
// case-folded ordered map, a priority queue, and a growable buffer. The
// original srvx used a splay tree keyed by irccasecmp for the map and an
// intrusive binary heap for the queue; here a balanced structure (Go's
// built-in map plus an explicit insertion-order slice) stands in, since
// iteration order is only ever required for display and display always
// sorts explicitly (see DESIGN_NOTES "Case-folded ordered map").
package container

import "ircservd/internal/casefold"

// OrderedMap is a map keyed by a case-folded string, remembering insertion
// order for iteration. It is the Go stand-in for srvx's splay-tree dict.
type OrderedMap[V any] struct {
	mapping Mapping
	index   map[string]int
	keys    []string
	values  []V
}

// Mapping selects the casemapping used to fold keys.
type Mapping = casefold.Mapping

// NewOrderedMap creates an empty map using the given case mapping.
func NewOrderedMap[V any](m Mapping) *OrderedMap[V] {
	return &OrderedMap[V]{
		mapping: m,
		index:   make(map[string]int),
	}
}

// Set inserts or replaces the value for key, preserving original-case key
// for iteration/display while indexing on the folded form.
func (o *OrderedMap[V]) Set(key string, value V) {
	fk := casefold.Fold(key, o.mapping)
	if i, ok := o.index[fk]; ok {
		o.keys[i] = key
		o.values[i] = value
		return
	}
	o.index[fk] = len(o.keys)
	o.keys = append(o.keys, key)
	o.values = append(o.values, value)
}

// Get looks up a key, folding it first.
func (o *OrderedMap[V]) Get(key string) (V, bool) {
	var zero V
	fk := casefold.Fold(key, o.mapping)
	i, ok := o.index[fk]
	if !ok {
		return zero, false
	}
	return o.values[i], true
}

// Delete removes key if present. Later entries shift down one slot and
// their index entries are fixed up, so insertion order is kept. Callers
// that need to delete the entry they're iterating over must capture the
// next key before calling Delete (see Iterate).
func (o *OrderedMap[V]) Delete(key string) bool {
	fk := casefold.Fold(key, o.mapping)
	i, ok := o.index[fk]
	if !ok {
		return false
	}
	last := len(o.keys) - 1
	copy(o.keys[i:], o.keys[i+1:])
	copy(o.values[i:], o.values[i+1:])
	o.keys = o.keys[:last]
	o.values = o.values[:last]
	delete(o.index, fk)
	for j := i; j < last; j++ {
		o.index[casefold.Fold(o.keys[j], o.mapping)] = j
	}
	return true
}

func (o *OrderedMap[V]) Len() int { return len(o.keys) }

// Keys returns a snapshot of insertion-order keys. Safe to range over while
// mutating the map afterward, since it is a copy.
func (o *OrderedMap[V]) Keys() []string {
	out := make([]string, len(o.keys))
	copy(out, o.keys)
	return out
}

// Iterate calls fn for every entry. fn may delete the current key (or any
// other) from the map — Iterate always snapshots keys up front, implementing
// the "save next pointer first" rule from §5 of the design.
func (o *OrderedMap[V]) Iterate(fn func(key string, value V) bool) {
	for _, k := range o.Keys() {
		v, ok := o.Get(k)
		if !ok {
			continue // deleted by a previous callback invocation
		}
		if !fn(k, v) {
			return
		}
	}
}
