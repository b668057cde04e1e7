package chashmap

import (
	"fmt"
	"strings"
)

// Stats returns statistics for the CHashMap. Just like other map
// methods, this one is thread-safe. Yet it's an O(N) operation that
// briefly blocks writers bucket by bucket, so it should be used only for
// diagnostics or debugging purposes.
func (m *CHashMap[K, V]) Stats() *MapStats {
	stats := &MapStats{
		TotalGrowths:  m.totalGrowths.Load(),
		TotalShrinks:  m.totalShrinks.Load(),
		TotalRehashes: m.totalRehashes.Load(),
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	t := m.table.Load()
	stats.Capacity = t.capacity()
	stats.Counter = t.len()
	stats.TombstoneCounter = int(t.tombstones.Load())
	var totalProbe int
	for i := range t.buckets {
		b := &t.buckets[i]
		b.mu.RLock()
		switch b.state {
		case bucketOccupied:
			stats.Size++
			d := t.distance(b.hash, i)
			totalProbe += d
			stats.MaxProbe = max(stats.MaxProbe, d)
		case bucketTombstone:
			stats.Tombstones++
		}
		b.mu.RUnlock()
	}
	if stats.Size > 0 {
		stats.AvgProbe = float64(totalProbe) / float64(stats.Size)
	}
	if stats.Capacity > 0 {
		stats.LoadFactor = float64(stats.Size+stats.Tombstones) / float64(stats.Capacity)
	}
	return stats
}

// MapStats is CHashMap statistics.
//
// Warning: map statistics are intended to be used for diagnostic
// purposes, not for production code. This means that breaking changes
// may be introduced into this struct even between minor releases.
type MapStats struct {
	// Capacity is the number of buckets in the current table.
	Capacity int
	// Size is the number of occupied buckets found by scanning.
	Size int
	// Tombstones is the number of tombstoned buckets found by scanning.
	Tombstones int
	// Counter is the number of entries according to the table's atomic
	// counter. Under concurrent modification it may differ from Size.
	Counter int
	// TombstoneCounter is the atomic tombstone counter.
	TombstoneCounter int
	// LoadFactor is (Size + Tombstones) / Capacity.
	LoadFactor float64
	// MaxProbe is the longest distance of an entry from its home bucket.
	MaxProbe int
	// AvgProbe is the mean distance of entries from their home buckets.
	AvgProbe float64
	// TotalGrowths is the number of times the table doubled (or more).
	TotalGrowths uint32
	// TotalShrinks is the number of times ShrinkToFit shrank the table.
	TotalShrinks uint32
	// TotalRehashes counts every table replacement, including same-size
	// tombstone purges.
	TotalRehashes uint32
}

// String returns string representation of map stats.
func (s *MapStats) String() string {
	var sb strings.Builder
	sb.WriteString("MapStats{\n")
	sb.WriteString(fmt.Sprintf("Capacity:         %d\n", s.Capacity))
	sb.WriteString(fmt.Sprintf("Size:             %d\n", s.Size))
	sb.WriteString(fmt.Sprintf("Tombstones:       %d\n", s.Tombstones))
	sb.WriteString(fmt.Sprintf("Counter:          %d\n", s.Counter))
	sb.WriteString(fmt.Sprintf("TombstoneCounter: %d\n", s.TombstoneCounter))
	sb.WriteString(fmt.Sprintf("LoadFactor:       %.3f\n", s.LoadFactor))
	sb.WriteString(fmt.Sprintf("MaxProbe:         %d\n", s.MaxProbe))
	sb.WriteString(fmt.Sprintf("AvgProbe:         %.3f\n", s.AvgProbe))
	sb.WriteString(fmt.Sprintf("TotalGrowths:     %d\n", s.TotalGrowths))
	sb.WriteString(fmt.Sprintf("TotalShrinks:     %d\n", s.TotalShrinks))
	sb.WriteString(fmt.Sprintf("TotalRehashes:    %d\n", s.TotalRehashes))
	sb.WriteString("}\n")
	return sb.String()
}
