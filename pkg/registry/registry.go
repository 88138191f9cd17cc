// Package registry provides a generic name-keyed catalog tuned for
// assemble-once, read-forever collections like the model registry.
package registry

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
)

// Catalog is a copy-on-write collection keyed by name. Writes clone the
// backing map under a mutex and publish the clone atomically, so reads on
// the hot path never contend with anything.
type Catalog[T any] struct {
	mu   sync.Mutex
	view atomic.Pointer[map[string]T]
}

// New returns an empty Catalog.
func New[T any]() *Catalog[T] {
	c := &Catalog[T]{}
	empty := make(map[string]T)
	c.view.Store(&empty)
	return c
}

// Register adds an item under name. Names are unique; registering a taken
// name is an error rather than a silent replace.
func (c *Catalog[T]) Register(name string, item T) error {
	if name == "" {
		return fmt.Errorf("name cannot be empty")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	cur := *c.view.Load()
	if _, taken := cur[name]; taken {
		return fmt.Errorf("item %q already registered", name)
	}

	next := make(map[string]T, len(cur)+1)
	for k, v := range cur {
		next[k] = v
	}
	next[name] = item
	c.view.Store(&next)
	return nil
}

// Get looks up an item by name.
func (c *Catalog[T]) Get(name string) (T, bool) {
	item, ok := (*c.view.Load())[name]
	return item, ok
}

// Names returns the registered names in sorted order.
func (c *Catalog[T]) Names() []string {
	cur := *c.view.Load()
	names := make([]string, 0, len(cur))
	for name := range cur {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// List returns all items, ordered by name.
func (c *Catalog[T]) List() []T {
	cur := *c.view.Load()
	items := make([]T, 0, len(cur))
	for _, name := range c.Names() {
		items = append(items, cur[name])
	}
	return items
}

// Remove deletes an item. Removing an unknown name is an error.
func (c *Catalog[T]) Remove(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	cur := *c.view.Load()
	if _, ok := cur[name]; !ok {
		return fmt.Errorf("item %q not found", name)
	}

	next := make(map[string]T, len(cur)-1)
	for k, v := range cur {
		if k != name {
			next[k] = v
		}
	}
	c.view.Store(&next)
	return nil
}

// Count returns the number of registered items.
func (c *Catalog[T]) Count() int {
	return len(*c.view.Load())
}

// Clear drops every item.
func (c *Catalog[T]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	empty := make(map[string]T)
	c.view.Store(&empty)
}
