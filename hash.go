package chashmap

import (
	"hash/maphash"

	"github.com/cespare/xxhash/v2"
	"github.com/spaolacci/murmur3"
)

// HashFunc maps a key to a 64-bit hash. It must be deterministic for equal
// keys and free of shared mutable state; the map calls it concurrently.
type HashFunc[K comparable] func(key K) uint64

// HashCoder is an opt-in interface for key types that know how to hash
// themselves. It is consulted when no explicit hasher is configured via
// WithKeyHasher. seed is fixed per map instance.
type HashCoder interface {
	HashCode(seed uint64) uint64
}

// WithKeyHasher configures a custom key hashing function. The function is
// stored untyped and checked against the map's key type on construction;
// a hasher for a different key type is ignored.
//
// Usage:
//
//	m := chashmap.New[string, int](chashmap.WithKeyHasher(chashmap.XXHashString))
func WithKeyHasher[K comparable](keyHash func(key K) uint64) func(*MapConfig) {
	return func(c *MapConfig) {
		if keyHash != nil {
			c.keyHash = HashFunc[K](keyHash)
		}
	}
}

// XXHashString hashes a string key with xxHash64.
func XXHashString(s string) uint64 {
	return xxhash.Sum64String(s)
}

// Murmur3String hashes a string key with MurmurHash3 (x64, low 64 bits).
func Murmur3String(s string) uint64 {
	return murmur3.Sum64([]byte(s))
}

// resolveHasher picks the key hash for a new map: an explicit hasher from
// the config, then HashCoder on the key type, then the runtime's hash for
// comparable values.
func resolveHasher[K comparable](cfg *MapConfig) HashFunc[K] {
	if h, ok := cfg.keyHash.(HashFunc[K]); ok && h != nil {
		return h
	}

	seed := maphash.MakeSeed()
	var zeroK K
	if _, ok := any(&zeroK).(HashCoder); ok {
		s := maphash.Comparable(seed, 0)
		return func(key K) uint64 {
			return any(&key).(HashCoder).HashCode(s)
		}
	}
	if _, ok := any(zeroK).(HashCoder); ok {
		s := maphash.Comparable(seed, 0)
		return func(key K) uint64 {
			return any(key).(HashCoder).HashCode(s)
		}
	}
	return func(key K) uint64 {
		return maphash.Comparable(seed, key)
	}
}
