//go:build !chashmap_nopadding

package chashmap

import (
	"sync/atomic"
	"unsafe"
)

// paddedCounter is an atomic counter occupying its own cache line, so the
// occupied and tombstone counters of a table do not bounce between cores
// that update them independently.
// Build with the chashmap_nopadding tag to trade this for smaller tables.
type paddedCounter struct {
	//lint:ignore U1000 prevents false sharing
	pad [(CacheLineSize - unsafe.Sizeof(atomic.Int64{})%CacheLineSize) % CacheLineSize]byte
	atomic.Int64
}
