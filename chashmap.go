package chashmap

import (
	"iter"
	"log/slog"
	"sync"
	"sync/atomic"
)

// CHashMap is a concurrent hash map built from individually locked
// buckets under open addressing with linear probing.
//
// Per-key operations take the table gate in shared mode and then lock
// only the buckets they inspect, one at a time, so operations on
// unrelated keys proceed in parallel. Resizing takes the gate in
// exclusive mode and replaces the whole table; no operation observes a
// state straddling two tables.
//
// Removal leaves a Tombstone in place. Tombstones keep probe paths intact
// and are reclaimed when the table is rehashed (on growth, Reserve,
// ShrinkToFit).
//
// Key features:
//   - Borrow-scoped access: Get and GetMut return guards that keep the
//     entry locked until Release; Load and Update are closure forms
//   - Grows automatically on insertion, shrinks only on ShrinkToFit
//   - Snapshot iterators (Iter, Keys, Values, All), in-place IterMut and
//     an owning IntoIter
//   - Keys and values implementing Releaser are released exactly once
//     when the map gives up ownership; Cloner is honored by Clone
//
// A CHashMap must not be copied after first use. The zero value is not
// usable; construct with New or NewWithCapacity.
type CHashMap[K comparable, V any] struct {
	_ noCopy

	//lint:ignore U1000 prevents false sharing
	pad [CacheLineSize]byte

	// mu is the table gate: shared for per-key operations, exclusive for
	// replacing table.
	mu    sync.RWMutex
	table atomic.Pointer[table[K, V]]

	keyHash          HashFunc[K]
	initialCap       int
	growLoadFactor   float64
	shrinkLoadFactor float64
	logger           *slog.Logger

	totalGrowths  atomic.Uint32
	totalShrinks  atomic.Uint32
	totalRehashes atomic.Uint32
}

// Entry is a key-value pair yielded by iterators and accepted by
// FromEntries.
type Entry[K comparable, V any] struct {
	Key   K
	Value V
}

// New creates an empty map with capacity 0 unless WithPresize is given.
// The first insertion allocates.
func New[K comparable, V any](options ...func(*MapConfig)) *CHashMap[K, V] {
	cfg := resolveConfig(options)
	m := &CHashMap[K, V]{
		keyHash:          resolveHasher[K](cfg),
		growLoadFactor:   cfg.growLoadFactor,
		shrinkLoadFactor: cfg.shrinkLoadFactor,
		logger:           cfg.logger,
	}
	m.initialCap = calcCapacity(cfg.sizeHint, m.growLoadFactor)
	m.table.Store(newTable[K, V](m.initialCap))
	return m
}

// NewWithCapacity creates a map able to hold n entries before growing.
// n <= 0 yields a map with capacity 0.
func NewWithCapacity[K comparable, V any](n int, options ...func(*MapConfig)) *CHashMap[K, V] {
	return New[K, V](append(options, WithPresize(n))...)
}

// FromSeq builds a map by inserting every pair of seq in order; a later
// pair overwrites an earlier one with the same key.
func FromSeq[K comparable, V any](seq iter.Seq2[K, V], options ...func(*MapConfig)) *CHashMap[K, V] {
	m := New[K, V](options...)
	for k, v := range seq {
		m.Insert(k, v)
	}
	return m
}

// FromEntries is FromSeq over a slice, presized to len(entries).
func FromEntries[K comparable, V any](entries []Entry[K, V], options ...func(*MapConfig)) *CHashMap[K, V] {
	m := NewWithCapacity[K, V](len(entries), options...)
	for _, e := range entries {
		m.Insert(e.Key, e.Value)
	}
	return m
}

// Get looks up key and returns a guard holding the entry's bucket in
// shared mode. The guard must be released; until then writers of this
// entry and any resize wait.
func (m *CHashMap[K, V]) Get(key K) (*ReadGuard[K, V], bool) {
	hash := m.keyHash(key)
	m.mu.RLock()
	b := m.table.Load().lookup(hash, key, false)
	if b == nil {
		m.mu.RUnlock()
		return nil, false
	}
	return &ReadGuard[K, V]{m: m, b: b}, true
}

// GetMut looks up key and returns a guard holding the entry's bucket in
// exclusive mode, through which the value may be modified in place.
func (m *CHashMap[K, V]) GetMut(key K) (*WriteGuard[K, V], bool) {
	hash := m.keyHash(key)
	m.mu.RLock()
	b := m.table.Load().lookup(hash, key, true)
	if b == nil {
		m.mu.RUnlock()
		return nil, false
	}
	return &WriteGuard[K, V]{m: m, b: b}, true
}

// Load calls fn with the value stored for key while the entry is locked
// for reading, and reports whether key was present. fn must not call
// methods of m.
func (m *CHashMap[K, V]) Load(key K, fn func(value V)) bool {
	g, ok := m.Get(key)
	if !ok {
		return false
	}
	defer g.Release()
	fn(g.b.value)
	return true
}

// Update calls fn with a pointer to the value stored for key while the
// entry is locked for writing, and reports whether key was present.
// fn must not call methods of m.
func (m *CHashMap[K, V]) Update(key K, fn func(value *V)) bool {
	g, ok := m.GetMut(key)
	if !ok {
		return false
	}
	defer g.Release()
	fn(&g.b.value)
	return true
}

// Value returns a copy of the value stored for key.
func (m *CHashMap[K, V]) Value(key K) (value V, ok bool) {
	ok = m.Load(key, func(v V) { value = v })
	return value, ok
}

// ContainsKey reports whether key is present.
func (m *CHashMap[K, V]) ContainsKey(key K) bool {
	hash := m.keyHash(key)
	m.mu.RLock()
	defer m.mu.RUnlock()
	if b := m.table.Load().lookup(hash, key, false); b != nil {
		b.mu.RUnlock()
		return true
	}
	return false
}

// Insert stores value for key. If key was present its previous value is
// returned with loaded == true, the stored key is replaced by key and the
// old stored key is released.
//
// Insertion may grow the table once the new entry is in place; the grow
// happens after all bucket locks have been dropped.
func (m *CHashMap[K, V]) Insert(key K, value V) (previous V, loaded bool) {
	hash := m.keyHash(key)
	for {
		m.mu.RLock()
		t := m.table.Load()
		b, res := t.claim(hash, key)
		switch res {
		case claimFound:
			oldKey := b.key
			previous = b.value
			b.key, b.value = key, value
			b.mu.Unlock()
			m.mu.RUnlock()
			release(oldKey)
			return previous, true

		case claimFree:
			if b.state == bucketTombstone {
				t.tombstones.Add(-1)
			}
			b.set(hash, key, value)
			t.occupied.Add(1)
			b.mu.Unlock()
			grow := m.overloaded(t)
			m.mu.RUnlock()
			if grow {
				m.grow()
			}
			return previous, false

		case claimFull:
			m.mu.RUnlock()
			m.grow()

		case claimRetry:
			m.mu.RUnlock()
		}
	}
}

// Remove deletes key and returns the value it held. Removing an absent
// key is a no-op. The stored key is released; the value is handed to the
// caller. Remove never resizes.
func (m *CHashMap[K, V]) Remove(key K) (value V, ok bool) {
	hash := m.keyHash(key)
	m.mu.RLock()
	t := m.table.Load()
	b := t.lookup(hash, key, true)
	if b == nil {
		m.mu.RUnlock()
		return value, false
	}
	oldKey, value := b.evict()
	t.occupied.Add(-1)
	t.tombstones.Add(1)
	b.mu.Unlock()
	m.mu.RUnlock()
	release(oldKey)
	return value, true
}

// Len returns the number of entries. This is an O(1) operation.
func (m *CHashMap[K, V]) Len() int {
	return m.table.Load().len()
}

// IsEmpty reports whether Len() == 0.
func (m *CHashMap[K, V]) IsEmpty() bool {
	return m.Len() == 0
}

// Capacity returns the current bucket count.
func (m *CHashMap[K, V]) Capacity() int {
	return m.table.Load().capacity()
}

// Clear removes every entry, releasing all keys and values, and resets
// the table to its initial capacity.
func (m *CHashMap[K, V]) Clear() {
	m.mu.Lock()
	old := m.table.Load()
	m.table.Store(newTable[K, V](m.initialCap))
	m.mu.Unlock()

	for i := range old.buckets {
		b := &old.buckets[i]
		if b.state == bucketOccupied {
			k, v := b.evict()
			release(k)
			release(v)
		}
	}
}

// Clone creates a copy of the map with the same configuration. Every key
// and value implementing Cloner is copied through Clone; others are
// copied by assignment.
//
// The clone is not atomic with respect to concurrent modifications of
// other entries; each entry is copied under its own bucket lock.
func (m *CHashMap[K, V]) Clone() *CHashMap[K, V] {
	c := &CHashMap[K, V]{
		keyHash:          m.keyHash,
		initialCap:       m.initialCap,
		growLoadFactor:   m.growLoadFactor,
		shrinkLoadFactor: m.shrinkLoadFactor,
		logger:           m.logger,
	}

	m.mu.RLock()
	src := m.table.Load()
	dst := newTable[K, V](calcCapacity(src.len(), m.growLoadFactor))
	for i := range src.buckets {
		b := &src.buckets[i]
		b.mu.RLock()
		if b.state == bucketOccupied {
			if !fits(dst.used()+1, dst.capacity(), m.growLoadFactor) {
				dst = rehashInto(dst, doubleCapacity(dst.capacity()))
			}
			dst.place(b.hash, clone(b.key), clone(b.value))
		}
		b.mu.RUnlock()
	}
	m.mu.RUnlock()

	c.table.Store(dst)
	return c
}

// All iterates over a snapshot of the map's entries.
func (m *CHashMap[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		it := m.Iter()
		for k, v, ok := it.Next(); ok; k, v, ok = it.Next() {
			if !yield(k, v) {
				return
			}
		}
	}
}

// Keys iterates over the keys of a snapshot of the map.
func (m *CHashMap[K, V]) Keys() iter.Seq[K] {
	return func(yield func(K) bool) {
		for k := range m.All() {
			if !yield(k) {
				return
			}
		}
	}
}

// Values iterates over the values of a snapshot of the map.
func (m *CHashMap[K, V]) Values() iter.Seq[V] {
	return func(yield func(V) bool) {
		for _, v := range m.All() {
			if !yield(v) {
				return
			}
		}
	}
}

// ToMap collects a snapshot of the map into a Go map.
func (m *CHashMap[K, V]) ToMap() map[K]V {
	it := m.Iter()
	out := make(map[K]V, it.Len())
	for k, v, ok := it.Next(); ok; k, v, ok = it.Next() {
		out[k] = v
	}
	return out
}
