package chashmap

// Probing is linear: candidate i for a hash is (hash + i) mod capacity.
// Every index is visited exactly once in the first capacity steps.

//go:nosplit
func (t *table[K, V]) slot(hash uint64, i int) int {
	return int((hash + uint64(i)) & t.mask)
}

// lookup scans for key and returns its bucket with the lock held in the
// requested mode, or nil when an Empty bucket is reached first or the
// whole table was scanned. At most one bucket lock is held at a time.
func (t *table[K, V]) lookup(hash uint64, key K, write bool) *bucket[K, V] {
	n := len(t.buckets)
	for i := 0; i < n; i++ {
		b := &t.buckets[t.slot(hash, i)]
		b.lock(write)
		switch b.state {
		case bucketEmpty:
			b.unlock(write)
			return nil
		case bucketOccupied:
			if b.hash == hash && b.key == key {
				return b
			}
		}
		b.unlock(write)
	}
	return nil
}

type claimResult uint8

const (
	// claimFound: the returned bucket holds key.
	claimFound claimResult = iota
	// claimFree: key is absent; the returned bucket is the first free
	// (Tombstone or Empty) one on its probe path.
	claimFree
	// claimFull: no free bucket anywhere, the table must grow.
	claimFull
	// claimRetry: a wrapped-around lock was contended, start over.
	claimRetry
)

// claim finds where key lives or should be placed. The returned bucket is
// locked exclusively.
//
// Locks are coupled along the probe path: bucket i is released only after
// bucket i+1 is held, so a later claim of the same key can never overtake
// an earlier one. The first Tombstone seen additionally stays locked as
// the reuse slot until the scan ends.
//
// A blocking acquisition only happens at an index above every bucket
// already held. Anything else (the scan wrapped past the end of the
// array) uses TryLock; on contention all held buckets are released, the
// contended one is waited for and claimRetry is reported.
func (t *table[K, V]) claim(hash uint64, key K) (*bucket[K, V], claimResult) {
	var reuse, prev *bucket[K, V]
	reuseIdx, prevIdx := -1, -1
	n := len(t.buckets)
	for i := 0; i < n; i++ {
		idx := t.slot(hash, i)
		b := &t.buckets[idx]
		if idx > max(prevIdx, reuseIdx) {
			b.mu.Lock()
		} else if !b.mu.TryLock() {
			releaseClaim(prev, reuse)
			b.mu.Lock()
			b.mu.Unlock()
			return nil, claimRetry
		}
		if prev != nil && prev != reuse {
			prev.mu.Unlock()
		}
		prev, prevIdx = b, idx

		switch b.state {
		case bucketEmpty:
			if reuse != nil {
				b.mu.Unlock()
				return reuse, claimFree
			}
			return b, claimFree
		case bucketTombstone:
			if reuse == nil {
				reuse, reuseIdx = b, idx
			}
		case bucketOccupied:
			if b.hash == hash && b.key == key {
				if reuse != nil {
					reuse.mu.Unlock()
				}
				return b, claimFound
			}
		}
	}
	if prev != nil && prev != reuse {
		prev.mu.Unlock()
	}
	if reuse != nil {
		return reuse, claimFree
	}
	return nil, claimFull
}

func releaseClaim[K comparable, V any](prev, reuse *bucket[K, V]) {
	if prev != nil && prev != reuse {
		prev.mu.Unlock()
	}
	if reuse != nil {
		reuse.mu.Unlock()
	}
}

// place puts an entry into the first Empty bucket of its probe path.
// Only used on tables nobody else can see yet, so no locks are taken and
// the key is known to be absent.
func (t *table[K, V]) place(hash uint64, key K, value V) {
	n := len(t.buckets)
	for i := 0; i < n; i++ {
		b := &t.buckets[t.slot(hash, i)]
		if b.state == bucketEmpty {
			b.set(hash, key, value)
			t.occupied.Add(1)
			return
		}
	}
	panic("chashmap: no free bucket in rehash target")
}

// distance is how far idx lies from the home slot of hash.
func (t *table[K, V]) distance(hash uint64, idx int) int {
	return int((uint64(idx) - hash) & t.mask)
}
