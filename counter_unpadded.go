//go:build chashmap_nopadding

package chashmap

import "sync/atomic"

// paddedCounter is a plain atomic counter when padding is disabled.
type paddedCounter struct {
	atomic.Int64
}
