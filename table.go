package chashmap

import (
	"math/bits"
	"sync"
)

type bucketState uint8

const (
	bucketEmpty bucketState = iota
	// bucketTombstone marks a removed entry. Searches step over it,
	// inserts may reuse it.
	bucketTombstone
	bucketOccupied
)

// bucket is a single slot of the table. Its fields are guarded by mu
// while the owning table is shared; under the map's exclusive gate
// (resize, IterMut) they are accessed without it.
type bucket[K comparable, V any] struct {
	mu    sync.RWMutex
	state bucketState
	hash  uint64
	key   K
	value V
}

//go:nosplit
func (b *bucket[K, V]) lock(write bool) {
	if write {
		b.mu.Lock()
	} else {
		b.mu.RLock()
	}
}

//go:nosplit
func (b *bucket[K, V]) unlock(write bool) {
	if write {
		b.mu.Unlock()
	} else {
		b.mu.RUnlock()
	}
}

// set installs an entry into a free bucket. Caller holds b.mu exclusively
// or owns the table.
func (b *bucket[K, V]) set(hash uint64, key K, value V) {
	b.state = bucketOccupied
	b.hash = hash
	b.key = key
	b.value = value
}

// evict turns an occupied bucket into a tombstone and hands back what it
// held.
func (b *bucket[K, V]) evict() (key K, value V) {
	key, value = b.key, b.value
	var zeroK K
	var zeroV V
	b.state = bucketTombstone
	b.key, b.value = zeroK, zeroV
	return key, value
}

// table is a fixed-size bucket array. The length is 0 or a power of two
// and never changes; resizing builds a new table.
type table[K comparable, V any] struct {
	buckets    []bucket[K, V]
	mask       uint64
	occupied   paddedCounter
	tombstones paddedCounter
}

func newTable[K comparable, V any](capacity int) *table[K, V] {
	t := &table[K, V]{
		buckets: make([]bucket[K, V], capacity),
	}
	if capacity > 0 {
		t.mask = uint64(capacity - 1)
	}
	return t
}

func (t *table[K, V]) capacity() int {
	return len(t.buckets)
}

func (t *table[K, V]) len() int {
	return int(t.occupied.Load())
}

// used is the number of non-empty buckets, the quantity the grow
// threshold is measured against.
func (t *table[K, V]) used() int {
	return int(t.occupied.Load() + t.tombstones.Load())
}

// maxCapacity is the largest bucket count a table can be asked for.
const maxCapacity = 1 << (bits.UintSize - 2)

const errCapacityOverflow = "chashmap: capacity overflow"

// calcCapacity returns the smallest power of two able to hold n entries
// while staying under loadFactor, or 0 for n <= 0. It panics when no
// representable capacity is large enough.
func calcCapacity(n int, loadFactor float64) int {
	if n <= 0 {
		return 0
	}
	c := nextPowOf2(n)
	for !fits(n, c, loadFactor) {
		c = doubleCapacity(c)
	}
	return c
}

// doubleCapacity is the capacity after c, 0 steps to 1.
func doubleCapacity(c int) int {
	if c >= maxCapacity {
		panic(errCapacityOverflow)
	}
	return max(c*2, 1)
}

// fits reports whether a table of capacity c holds n used buckets without
// reaching the grow threshold.
func fits(n, c int, loadFactor float64) bool {
	return n < c && float64(n) < float64(c)*loadFactor
}

// nextPowOf2 calculates the smallest power of 2 that is greater than or equal to n.
func nextPowOf2(n int) int {
	if n <= 1 {
		return 1
	}
	if n > maxCapacity {
		panic(errCapacityOverflow)
	}
	c := 1
	for c < n {
		c <<= 1
	}
	return c
}
