// Package collection provides an ordered, generic result container.
package collection

import (
	"iter"
	"slices"
)

// Collection is an ordered sequence of items. Operations returning a
// Collection never modify the receiver.
type Collection[T any] struct {
	items []T
}

// New returns a collection holding items.
func New[T any](items ...T) *Collection[T] {
	return &Collection[T]{items: items}
}

// All returns the items.
func (c *Collection[T]) All() []T {
	return c.items
}

// Items iterates over the items with their index.
func (c *Collection[T]) Items() iter.Seq2[int, T] {
	return slices.All(c.items)
}

// Len returns the number of items.
func (c *Collection[T]) Len() int {
	return len(c.items)
}

// Empty reports whether the collection has no items.
func (c *Collection[T]) Empty() bool {
	return len(c.items) == 0
}

// Add appends item.
func (c *Collection[T]) Add(item T) {
	c.items = append(c.items, item)
}

// First returns the first item.
func (c *Collection[T]) First() (T, bool) {
	return c.At(0)
}

// Last returns the last item.
func (c *Collection[T]) Last() (T, bool) {
	return c.At(len(c.items) - 1)
}

// At returns the item at index i.
func (c *Collection[T]) At(i int) (T, bool) {
	if i < 0 || i >= len(c.items) {
		var zero T
		return zero, false
	}
	return c.items[i], true
}

// FirstWhere returns the first item satisfying fn.
func (c *Collection[T]) FirstWhere(fn func(T) bool) (T, bool) {
	for _, item := range c.items {
		if fn(item) {
			return item, true
		}
	}
	var zero T
	return zero, false
}

// Filter returns the items satisfying fn.
func (c *Collection[T]) Filter(fn func(T) bool) *Collection[T] {
	out := make([]T, 0, len(c.items))
	for _, item := range c.items {
		if fn(item) {
			out = append(out, item)
		}
	}
	return New(out...)
}

// SortBy returns the items sorted by cmp. The sort is stable.
func (c *Collection[T]) SortBy(cmp func(a, b T) int) *Collection[T] {
	out := slices.Clone(c.items)
	slices.SortStableFunc(out, cmp)
	return New(out...)
}

// Chunk splits the items into collections of size items. The last chunk may
// be smaller. A non-positive size yields no chunks.
func (c *Collection[T]) Chunk(size int) []*Collection[T] {
	if size <= 0 {
		return nil
	}
	var chunks []*Collection[T]
	for chunk := range slices.Chunk(c.items, size) {
		chunks = append(chunks, New(slices.Clone(chunk)...))
	}
	return chunks
}

// Each calls fn for every item in order until fn returns false.
func (c *Collection[T]) Each(fn func(i int, item T) bool) *Collection[T] {
	for i, item := range c.items {
		if !fn(i, item) {
			break
		}
	}
	return c
}

// Merge returns the items followed by the items of others.
func (c *Collection[T]) Merge(others ...*Collection[T]) *Collection[T] {
	out := slices.Clone(c.items)
	for _, o := range others {
		out = append(out, o.items...)
	}
	return New(out...)
}

// Map returns the results of fn applied to every item.
func Map[T, U any](c *Collection[T], fn func(T) U) *Collection[U] {
	out := make([]U, len(c.items))
	for i, item := range c.items {
		out[i] = fn(item)
	}
	return New(out...)
}

// Reduce folds the items into a single value, starting from initial.
func Reduce[T, U any](c *Collection[T], fn func(acc U, item T) U, initial U) U {
	acc := initial
	for _, item := range c.items {
		acc = fn(acc, item)
	}
	return acc
}

// Group is the items sharing a key. Groups keep the order in which their
// keys first appear.
type Group[K comparable, T any] struct {
	Key   K
	Items *Collection[T]
}

// GroupBy groups the items by the key returned by fn.
func GroupBy[T any, K comparable](c *Collection[T], fn func(T) K) []Group[K, T] {
	var groups []Group[K, T]
	index := make(map[K]int)
	for _, item := range c.items {
		k := fn(item)
		i, ok := index[k]
		if !ok {
			i = len(groups)
			index[k] = i
			groups = append(groups, Group[K, T]{Key: k, Items: New[T]()})
		}
		groups[i].Items.Add(item)
	}
	return groups
}

// KeyBy indexes the items by the key returned by fn. Later items replace
// earlier ones with the same key.
func KeyBy[T any, K comparable](c *Collection[T], fn func(T) K) map[K]T {
	out := make(map[K]T, len(c.items))
	for _, item := range c.items {
		out[fn(item)] = item
	}
	return out
}
