package chashmap

import (
	"log/slog"
	"time"
)

type resizeHint int

const (
	resizeGrow resizeHint = iota
	resizeShrink
	resizePurge
)

func (h resizeHint) String() string {
	switch h {
	case resizeGrow:
		return "grow"
	case resizeShrink:
		return "shrink"
	default:
		return "purge"
	}
}

// overloaded reports whether t has reached the grow threshold.
func (m *CHashMap[K, V]) overloaded(t *table[K, V]) bool {
	return !fits(t.used(), t.capacity(), m.growLoadFactor)
}

// grow is the insert-triggered resize. It re-checks the live table under
// the exclusive gate since another goroutine may have resized already.
//
// When tombstones rather than entries fill the table, it is rehashed at
// the same capacity instead of doubling, so alternating insert/remove
// workloads do not inflate it.
func (m *CHashMap[K, V]) grow() {
	m.mu.Lock()
	defer m.mu.Unlock()

	t := m.table.Load()
	if !m.overloaded(t) {
		return
	}
	c := t.capacity()
	if c > 0 && fits(2*t.len(), c, m.growLoadFactor) {
		m.rehash(c, resizePurge)
		return
	}
	m.rehash(doubleCapacity(c), resizeGrow)
}

// Reserve makes room for at least additional more entries without
// triggering growth, doubling the capacity as many times as needed.
// Reserve never shrinks; if the capacity suffices but tombstones would
// trip the threshold, they are purged. It panics if the required capacity
// is not representable, leaving the map unchanged.
func (m *CHashMap[K, V]) Reserve(additional int) {
	if additional <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	t := m.table.Load()
	c := t.capacity()
	used := t.used() + additional
	if used < additional {
		panic(errCapacityOverflow)
	}
	if fits(used, c, m.growLoadFactor) {
		return
	}
	need := t.len() + additional
	target := c
	for !fits(need, target, m.growLoadFactor) {
		target = doubleCapacity(target)
	}
	if target == c {
		m.rehash(c, resizePurge)
		return
	}
	m.rehash(target, resizeGrow)
}

// ShrinkToFit halves the capacity while the entries still fit under the
// shrink load factor, never going below 1. It does nothing if no smaller
// capacity qualifies.
func (m *CHashMap[K, V]) ShrinkToFit() {
	m.mu.Lock()
	defer m.mu.Unlock()

	t := m.table.Load()
	n := t.len()
	c := t.capacity()
	target := c
	for target > 1 && float64(n) <= float64(target/2)*m.shrinkLoadFactor {
		target /= 2
	}
	if target < c {
		m.rehash(target, resizeShrink)
	}
}

// rehash replaces the live table with a new one of newCap buckets holding
// the same entries, in old index order, with no tombstones. Caller holds
// the exclusive gate, so no bucket of the old table is locked.
func (m *CHashMap[K, V]) rehash(newCap int, hint resizeHint) {
	start := time.Now()
	old := m.table.Load()
	nt := rehashInto(old, newCap)
	m.table.Store(nt)

	switch hint {
	case resizeGrow:
		m.totalGrowths.Add(1)
	case resizeShrink:
		m.totalShrinks.Add(1)
	}
	m.totalRehashes.Add(1)

	m.logger.Debug("chashmap resize",
		slog.String("kind", hint.String()),
		slog.Int("old_capacity", old.capacity()),
		slog.Int("new_capacity", newCap),
		slog.Int("entries", nt.len()),
		slog.Int("tombstones_dropped", int(old.tombstones.Load())),
		slog.Duration("took", time.Since(start)),
	)
}

// rehashInto copies the occupied buckets of src into a fresh table. src
// must not be visible to other goroutines, or be guarded by the exclusive
// gate.
func rehashInto[K comparable, V any](src *table[K, V], newCap int) *table[K, V] {
	nt := newTable[K, V](newCap)
	for i := range src.buckets {
		b := &src.buckets[i]
		if b.state == bucketOccupied {
			nt.place(b.hash, b.key, b.value)
		}
	}
	return nt
}
