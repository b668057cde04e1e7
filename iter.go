package chashmap

// Iter is a cursor over a snapshot of the map taken when it was created.
// Entries come in ascending bucket order. Later changes to the map are
// not visible to it. It is not restartable and not safe for concurrent
// use by several goroutines.
type Iter[K comparable, V any] struct {
	entries []Entry[K, V]
	pos     int
}

// Iter snapshots the map. The snapshot is taken under the shared gate,
// copying each bucket under its own read lock, so per-key operations on
// other buckets keep running while it is built. Like Clone it is not a
// point-in-time view when the map is modified concurrently, but every
// entry is seen either before or after any single change to it.
func (m *CHashMap[K, V]) Iter() *Iter[K, V] {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t := m.table.Load()
	entries := make([]Entry[K, V], 0, t.len())
	for i := range t.buckets {
		b := &t.buckets[i]
		b.mu.RLock()
		if b.state == bucketOccupied {
			entries = append(entries, Entry[K, V]{Key: b.key, Value: b.value})
		}
		b.mu.RUnlock()
	}
	return &Iter[K, V]{entries: entries}
}

// Next returns the next entry, or ok == false once exhausted.
func (it *Iter[K, V]) Next() (key K, value V, ok bool) {
	if it.pos >= len(it.entries) {
		return key, value, false
	}
	e := it.entries[it.pos]
	it.pos++
	return e.Key, e.Value, true
}

// Len returns the exact number of entries not yet returned by Next.
func (it *Iter[K, V]) Len() int {
	return len(it.entries) - it.pos
}

// IterMut walks the live table and hands out pointers to the stored
// values. It holds the map's exclusive gate from creation until it is
// exhausted or closed: every other operation on the map waits. Always
// Close it, typically with defer.
type IterMut[K comparable, V any] struct {
	m         *CHashMap[K, V]
	t         *table[K, V]
	idx       int
	remaining int
}

// IterMut locks the map for exclusive iteration.
func (m *CHashMap[K, V]) IterMut() *IterMut[K, V] {
	m.mu.Lock()
	t := m.table.Load()
	return &IterMut[K, V]{m: m, t: t, remaining: t.len()}
}

// Next returns the next key and a pointer to its value, valid until the
// iterator is closed. The map is unlocked when Next reports ok == false.
func (it *IterMut[K, V]) Next() (key K, value *V, ok bool) {
	if it.t == nil {
		return key, nil, false
	}
	for ; it.idx < len(it.t.buckets); it.idx++ {
		b := &it.t.buckets[it.idx]
		if b.state == bucketOccupied {
			it.idx++
			it.remaining--
			return b.key, &b.value, true
		}
	}
	it.Close()
	return key, nil, false
}

// Len returns the exact number of entries not yet returned by Next.
func (it *IterMut[K, V]) Len() int {
	return it.remaining
}

// Close unlocks the map. It is safe to call more than once.
func (it *IterMut[K, V]) Close() {
	if it.t == nil {
		return
	}
	it.t = nil
	it.remaining = 0
	it.m.mu.Unlock()
}

// IntoIter owns the entries of a table detached from the map. Each entry
// returned by Next belongs to the caller; entries still inside when Close
// is called are released. It is not safe for concurrent use.
type IntoIter[K comparable, V any] struct {
	t         *table[K, V]
	idx       int
	remaining int
}

// IntoIter moves every entry out of the map into the returned iterator
// and leaves the map empty at its initial capacity.
func (m *CHashMap[K, V]) IntoIter() *IntoIter[K, V] {
	m.mu.Lock()
	t := m.table.Load()
	m.table.Store(newTable[K, V](m.initialCap))
	m.mu.Unlock()
	return &IntoIter[K, V]{t: t, remaining: t.len()}
}

// Next moves the next entry out to the caller.
func (it *IntoIter[K, V]) Next() (key K, value V, ok bool) {
	if it.t == nil {
		return key, value, false
	}
	for ; it.idx < len(it.t.buckets); it.idx++ {
		b := &it.t.buckets[it.idx]
		if b.state == bucketOccupied {
			it.idx++
			it.remaining--
			key, value = b.evict()
			return key, value, true
		}
	}
	it.t = nil
	return key, value, false
}

// Len returns the exact number of entries not yet moved out.
func (it *IntoIter[K, V]) Len() int {
	return it.remaining
}

// Close releases every entry not yet moved out. It is safe to call more
// than once and after exhaustion.
func (it *IntoIter[K, V]) Close() {
	if it.t == nil {
		return
	}
	for ; it.idx < len(it.t.buckets); it.idx++ {
		b := &it.t.buckets[it.idx]
		if b.state == bucketOccupied {
			k, v := b.evict()
			release(k)
			release(v)
		}
	}
	it.t = nil
	it.remaining = 0
}
