package chashmap

// ReadGuard gives read access to one entry. While it is held the entry's
// bucket is locked in shared mode and the map cannot be resized, so the
// value cannot change or move underneath the caller.
//
// Release must be called exactly when the caller is done; further calls
// are no-ops. Accessors panic after Release. The goroutine holding a guard
// must not call other methods of the same map until it releases it.
type ReadGuard[K comparable, V any] struct {
	m *CHashMap[K, V]
	b *bucket[K, V]
}

// Key returns the stored key.
func (g *ReadGuard[K, V]) Key() K {
	return g.b.key
}

// Value returns the stored value.
func (g *ReadGuard[K, V]) Value() V {
	return g.b.value
}

// Release unlocks the entry.
func (g *ReadGuard[K, V]) Release() {
	if g.b == nil {
		return
	}
	g.b.mu.RUnlock()
	g.m.mu.RUnlock()
	g.b = nil
}

// WriteGuard gives exclusive access to one entry, allowing its value to
// be changed in place. The same rules as ReadGuard apply.
type WriteGuard[K comparable, V any] struct {
	m *CHashMap[K, V]
	b *bucket[K, V]
}

// Key returns the stored key.
func (g *WriteGuard[K, V]) Key() K {
	return g.b.key
}

// Value returns the stored value.
func (g *WriteGuard[K, V]) Value() V {
	return g.b.value
}

// Ptr returns a pointer to the stored value, valid until Release.
func (g *WriteGuard[K, V]) Ptr() *V {
	return &g.b.value
}

// Set replaces the stored value.
func (g *WriteGuard[K, V]) Set(value V) {
	g.b.value = value
}

// Release unlocks the entry.
func (g *WriteGuard[K, V]) Release() {
	if g.b == nil {
		return
	}
	g.b.mu.Unlock()
	g.m.mu.RUnlock()
	g.b = nil
}
