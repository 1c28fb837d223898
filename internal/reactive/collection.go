package reactive

import (
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrDuplicateKey is returned by Add when the key is already present.
	ErrDuplicateKey = errors.New("reactive: duplicate collection key")
	// ErrKeyNotFound is returned by Update for an unknown key.
	ErrKeyNotFound = errors.New("reactive: collection key not found")
)

// Entry is one (key, value) pair of a keyed collection.
type Entry[T any] struct {
	Key   string
	Value T
}

type collectionItem[T any] struct {
	key string
	sig *Signal[T]
}

// collectionObserver receives membership changes. Value changes flow through
// the item signals and need no observer.
type collectionObserver[T any] interface {
	added(key string, sig *Signal[T])
	removed(key string, sig *Signal[T])
}

// KeyedCollection is an ordered, keyed set of observable items. Each item is
// backed by its own signal; membership changes bump a version node so
// iterating readers re-run exactly when the set of keys changes.
type KeyedCollection[T any] struct {
	rt        *Runtime
	name      string
	items     map[string]*collectionItem[T]
	order     []string
	version   *node
	less      func(a, b Entry[T]) bool
	observers []collectionObserver[T]
	holder    *resourceHolder
	equal     func(a, b T) bool
}

// CollectionOption configures a KeyedCollection.
type CollectionOption[T any] func(*KeyedCollection[T])

// WithComparator orders iteration by less instead of insertion order.
func WithComparator[T any](less func(a, b Entry[T]) bool) CollectionOption[T] {
	return func(c *KeyedCollection[T]) { c.less = less }
}

// WithItemEquals overrides the structural-equality gate on Update.
func WithItemEquals[T any](eq func(a, b T) bool) CollectionOption[T] {
	return func(c *KeyedCollection[T]) { c.equal = eq }
}

// NewKeyedCollection creates an empty collection owned by rt.
func NewKeyedCollection[T any](rt *Runtime, name string, opts ...CollectionOption[T]) *KeyedCollection[T] {
	c := &KeyedCollection[T]{
		rt:      rt,
		name:    name,
		items:   make(map[string]*collectionItem[T]),
		version: rt.newNode(name+".version", kindSignal),
		equal:   structurallyEqual[T],
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BindResource ties res to the collection's transitive liveness: Activate on
// the first live subscriber anywhere downstream, Deactivate on the last.
func (c *KeyedCollection[T]) BindResource(res *LazyResource) {
	c.rt.lk.lock()
	defer c.rt.lk.unlock()
	c.holder = newResourceHolder(c.rt, c.name, res)
	c.version.holder = c.holder
	if c.version.isLive() {
		c.holder.acquire()
	}
	for _, key := range c.order {
		n := c.items[key].sig.n
		n.holder = c.holder
		if n.isLive() {
			c.holder.acquire()
		}
	}
}

// Add inserts a new item. The key must be fresh; items append last unless a
// comparator was supplied. The mutation and its propagation apply as one
// atomic step.
func (c *KeyedCollection[T]) Add(key string, value T) error {
	c.rt.lk.lock()
	defer c.rt.lk.unlock()

	if _, ok := c.items[key]; ok {
		return fmt.Errorf("%w: %s in %s", ErrDuplicateKey, key, c.name)
	}

	c.rt.Batch(func() {
		sig := NewSignal(c.rt, c.name+"/"+key, value, WithEquals(c.equal))
		if c.holder != nil {
			sig.n.holder = c.holder
		}
		c.items[key] = &collectionItem[T]{key: key, sig: sig}
		c.order = append(c.order, key)
		if c.less != nil {
			c.resort()
		}
		c.bumpVersion()
		for _, obs := range c.observers {
			obs.added(key, sig)
		}
	})
	return nil
}

// Remove tears down an item and cascades removal to every observer-derived
// node keyed by it. Reports whether the key existed.
func (c *KeyedCollection[T]) Remove(key string) bool {
	c.rt.lk.lock()
	defer c.rt.lk.unlock()

	item, ok := c.items[key]
	if !ok {
		return false
	}
	c.rt.Batch(func() {
		for _, obs := range c.observers {
			obs.removed(key, item.sig)
		}
		delete(c.items, key)
		for i, k := range c.order {
			if k == key {
				c.order = append(c.order[:i], c.order[i+1:]...)
				break
			}
		}
		// Readers keyed on this item re-run, miss the key, and re-track
		// the version node through Get's miss path.
		item.sig.n.dirtySubs()
		item.sig.n.detach()
		c.bumpVersion()
	})
	return true
}

// Update replaces an item's value. Structurally identical content does not
// trigger downstream recomputation.
func (c *KeyedCollection[T]) Update(key string, value T) error {
	c.rt.lk.lock()
	defer c.rt.lk.unlock()

	item, ok := c.items[key]
	if !ok {
		return fmt.Errorf("%w: %s in %s", ErrKeyNotFound, key, c.name)
	}
	changed := !c.equal(item.sig.value, value)
	c.rt.Batch(func() {
		item.sig.setLocked(value)
		if changed && c.less != nil {
			c.resort()
			c.bumpVersion()
		}
	})
	return nil
}

// Get reads one item by key. A miss tracks the version node, so a reader
// re-runs when the key appears.
func (c *KeyedCollection[T]) Get(key string) (T, bool) {
	c.rt.lk.lock()
	defer c.rt.lk.unlock()

	item, ok := c.items[key]
	if !ok {
		c.rt.trackRead(c.version)
		var zero T
		return zero, false
	}
	c.rt.trackRead(item.sig.n)
	return item.sig.value, true
}

// Len returns the item count, tracking membership.
func (c *KeyedCollection[T]) Len() int {
	c.rt.lk.lock()
	defer c.rt.lk.unlock()
	c.rt.trackRead(c.version)
	return len(c.order)
}

// Entries returns (key, value) pairs in stable order: insertion order, or
// comparator order when one was supplied. Tracks membership and every item.
func (c *KeyedCollection[T]) Entries() []Entry[T] {
	c.rt.lk.lock()
	defer c.rt.lk.unlock()

	c.rt.trackRead(c.version)
	out := make([]Entry[T], 0, len(c.order))
	for _, key := range c.order {
		item := c.items[key]
		c.rt.trackRead(item.sig.n)
		out = append(out, Entry[T]{Key: key, Value: item.sig.value})
	}
	return out
}

// Keys returns the keys in iteration order, tracking membership only.
func (c *KeyedCollection[T]) Keys() []string {
	c.rt.lk.lock()
	defer c.rt.lk.unlock()
	c.rt.trackRead(c.version)
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// signal exposes an item's backing signal to in-package derivations.
func (c *KeyedCollection[T]) signal(key string) (*Signal[T], bool) {
	item, ok := c.items[key]
	if !ok {
		return nil, false
	}
	return item.sig, true
}

func (c *KeyedCollection[T]) observe(obs collectionObserver[T]) {
	c.rt.lk.lock()
	defer c.rt.lk.unlock()
	c.observers = append(c.observers, obs)
}

func (c *KeyedCollection[T]) bumpVersion() {
	c.version.version = c.rt.clock
	c.version.dirtySubs()
	c.rt.schedule()
}

func (c *KeyedCollection[T]) resort() {
	sort.SliceStable(c.order, func(i, j int) bool {
		a := c.items[c.order[i]]
		b := c.items[c.order[j]]
		return c.less(
			Entry[T]{Key: a.key, Value: a.sig.value},
			Entry[T]{Key: b.key, Value: b.sig.value},
		)
	})
}
