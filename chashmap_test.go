package chashmap

import (
	"fmt"
	"testing"
)

func identityHash(k int) uint64 {
	return uint64(k)
}

func mustValue[K comparable, V any](t *testing.T, m *CHashMap[K, V], key K) V {
	t.Helper()
	v, ok := m.Value(key)
	if !ok {
		t.Fatalf("key %v not found", key)
	}
	return v
}

func TestCHashMap_CreateCapacityZero(t *testing.T) {
	m := NewWithCapacity[int, int](0)
	if m.Capacity() != 0 {
		t.Fatalf("capacity = %d, want 0", m.Capacity())
	}
	if _, loaded := m.Insert(1, 1); loaded {
		t.Fatal("insert into empty map reported a previous value")
	}
	if !m.ContainsKey(1) {
		t.Fatal("expected key 1")
	}
	if m.ContainsKey(0) {
		t.Fatal("unexpected key 0")
	}
}

func TestCHashMap_Insert(t *testing.T) {
	m := New[int, int]()
	if m.Len() != 0 {
		t.Fatalf("len = %d", m.Len())
	}
	if _, loaded := m.Insert(1, 2); loaded {
		t.Fatal("unexpected previous value")
	}
	if m.Len() != 1 {
		t.Fatalf("len = %d", m.Len())
	}
	if _, loaded := m.Insert(2, 4); loaded {
		t.Fatal("unexpected previous value")
	}
	if m.Len() != 2 {
		t.Fatalf("len = %d", m.Len())
	}
	if v := mustValue(t, m, 1); v != 2 {
		t.Fatalf("get(1) = %d", v)
	}
	if v := mustValue(t, m, 2); v != 4 {
		t.Fatalf("get(2) = %d", v)
	}
}

func TestCHashMap_InsertOverwrite(t *testing.T) {
	m := New[int, int]()
	m.Insert(1, 2)
	if v := mustValue(t, m, 1); v != 2 {
		t.Fatalf("get(1) = %d", v)
	}
	prev, loaded := m.Insert(1, 3)
	if !loaded || prev != 2 {
		t.Fatalf("overwrite returned (%d, %v)", prev, loaded)
	}
	if v := mustValue(t, m, 1); v != 3 {
		t.Fatalf("get(1) = %d", v)
	}
	if m.Len() != 1 {
		t.Fatalf("len = %d after overwrite", m.Len())
	}
}

func TestCHashMap_InsertConflicts(t *testing.T) {
	m := NewWithCapacity[int, int](4, WithKeyHasher(identityHash))
	for _, kv := range [][2]int{{1, 2}, {5, 3}, {9, 4}} {
		if _, loaded := m.Insert(kv[0], kv[1]); loaded {
			t.Fatalf("insert %d reported a previous value", kv[0])
		}
	}
	if v := mustValue(t, m, 9); v != 4 {
		t.Fatalf("get(9) = %d", v)
	}
	if v := mustValue(t, m, 5); v != 3 {
		t.Fatalf("get(5) = %d", v)
	}
	if v := mustValue(t, m, 1); v != 2 {
		t.Fatalf("get(1) = %d", v)
	}
}

func TestCHashMap_ConflictRemove(t *testing.T) {
	m := NewWithCapacity[int, int](4, WithKeyHasher(identityHash))
	m.Insert(1, 2)
	if v := mustValue(t, m, 1); v != 2 {
		t.Fatalf("get(1) = %d", v)
	}
	m.Insert(5, 3)
	m.Insert(9, 4)
	if mustValue(t, m, 1) != 2 || mustValue(t, m, 5) != 3 || mustValue(t, m, 9) != 4 {
		t.Fatal("colliding keys lost their values")
	}
	if v, ok := m.Remove(1); !ok || v != 2 {
		t.Fatalf("remove(1) = (%d, %v)", v, ok)
	}
	if v := mustValue(t, m, 9); v != 4 {
		t.Fatalf("get(9) = %d after removing 1", v)
	}
	if v := mustValue(t, m, 5); v != 3 {
		t.Fatalf("get(5) = %d after removing 1", v)
	}
}

func TestCHashMap_TombstoneDoesNotDuplicateKey(t *testing.T) {
	m := NewWithCapacity[int, int](4, WithKeyHasher(identityHash))
	// 1 and 9 share a home bucket; 9 lands behind 1.
	m.Insert(1, 1)
	m.Insert(9, 9)
	m.Remove(1)

	// 9 must be found behind the tombstone, not inserted into it.
	prev, loaded := m.Insert(9, 90)
	if !loaded || prev != 9 {
		t.Fatalf("insert(9) = (%d, %v), want (9, true)", prev, loaded)
	}
	if m.Len() != 1 {
		t.Fatalf("len = %d, want 1", m.Len())
	}
	s := m.Stats()
	if s.Size != 1 || s.Tombstones != 1 {
		t.Fatalf("size=%d tombstones=%d, want 1 and 1", s.Size, s.Tombstones)
	}

	// A new colliding key reuses the tombstone.
	m.Insert(17, 17)
	s = m.Stats()
	if s.Tombstones != 0 || s.Size != 2 {
		t.Fatalf("size=%d tombstones=%d, want 2 and 0", s.Size, s.Tombstones)
	}
}

func TestCHashMap_IsEmpty(t *testing.T) {
	m := NewWithCapacity[int, int](4)
	m.Insert(1, 2)
	if m.IsEmpty() {
		t.Fatal("expected non-empty")
	}
	if _, ok := m.Remove(1); !ok {
		t.Fatal("expected removal")
	}
	if !m.IsEmpty() {
		t.Fatal("expected empty")
	}
}

func TestCHashMap_EmptyPop(t *testing.T) {
	m := New[int, bool]()
	if _, ok := m.Remove(0); ok {
		t.Fatal("removed from empty map")
	}
}

func TestCHashMap_Pop(t *testing.T) {
	m := New[int, int]()
	m.Insert(1, 2)
	if v, ok := m.Remove(1); !ok || v != 2 {
		t.Fatalf("remove(1) = (%d, %v)", v, ok)
	}
	for i := 0; i < 3; i++ {
		if _, ok := m.Remove(1); ok {
			t.Fatal("second remove found the key")
		}
	}
}

func TestCHashMap_LotsOfInsertions(t *testing.T) {
	const n = 1000
	rounds := 3
	if testing.Short() || raceEnabled {
		rounds = 1
	}
	m := New[int, int]()

	for r := 0; r < rounds; r++ {
		if !m.IsEmpty() {
			t.Fatalf("round %d: map not empty", r)
		}

		for i := 1; i <= n; i++ {
			if _, loaded := m.Insert(i, i); loaded {
				t.Fatalf("insert(%d) found a previous value", i)
			}
			for j := 1; j <= i; j++ {
				if v, ok := m.Value(j); !ok || v != j {
					t.Fatalf("after insert(%d): get(%d) = (%d, %v)", i, j, v, ok)
				}
			}
			for j := i + 1; j <= n; j++ {
				if _, ok := m.Value(j); ok {
					t.Fatalf("after insert(%d): unexpected key %d", i, j)
				}
			}
		}

		for i := n + 1; i <= 2*n; i++ {
			if m.ContainsKey(i) {
				t.Fatalf("unexpected key %d", i)
			}
		}

		// remove forwards
		for i := 1; i <= n; i++ {
			if _, ok := m.Remove(i); !ok {
				t.Fatalf("remove(%d) missed", i)
			}
			for j := 1; j <= i; j++ {
				if m.ContainsKey(j) {
					t.Fatalf("after remove(%d): key %d still present", i, j)
				}
			}
			for j := i + 1; j <= n; j++ {
				if !m.ContainsKey(j) {
					t.Fatalf("after remove(%d): key %d missing", i, j)
				}
			}
		}

		for i := 1; i <= n; i++ {
			if m.ContainsKey(i) {
				t.Fatalf("key %d survived", i)
			}
		}

		for i := 1; i <= n; i++ {
			if _, loaded := m.Insert(i, i); loaded {
				t.Fatalf("reinsert(%d) found a previous value", i)
			}
		}

		// remove backwards
		for i := n; i >= 1; i-- {
			if _, ok := m.Remove(i); !ok {
				t.Fatalf("remove(%d) missed", i)
			}
			for j := i; j <= n; j++ {
				if m.ContainsKey(j) {
					t.Fatalf("after remove(%d): key %d still present", i, j)
				}
			}
			for j := 1; j < i; j++ {
				if !m.ContainsKey(j) {
					t.Fatalf("after remove(%d): key %d missing", i, j)
				}
			}
		}
	}
}

func TestCHashMap_FindMut(t *testing.T) {
	m := New[int, int]()
	m.Insert(1, 12)
	m.Insert(2, 8)
	m.Insert(5, 14)

	g, ok := m.GetMut(5)
	if !ok {
		t.Fatal("get_mut(5) missed")
	}
	g.Set(100)
	g.Release()

	if v := mustValue(t, m, 5); v != 100 {
		t.Fatalf("get(5) = %d, want 100", v)
	}

	if !m.Update(5, func(v *int) { *v++ }) {
		t.Fatal("update(5) missed")
	}
	if v := mustValue(t, m, 5); v != 101 {
		t.Fatalf("get(5) = %d, want 101", v)
	}
	if m.Update(6, func(*int) { t.Fatal("callback for absent key") }) {
		t.Fatal("update(6) reported presence")
	}
}

func TestCHashMap_Find(t *testing.T) {
	m := New[int, int]()
	if _, ok := m.Get(1); ok {
		t.Fatal("get(1) on empty map")
	}
	m.Insert(1, 2)
	g, ok := m.Get(1)
	if !ok {
		t.Fatal("get(1) missed")
	}
	if g.Key() != 1 || g.Value() != 2 {
		t.Fatalf("guard = (%d, %d)", g.Key(), g.Value())
	}
	g.Release()
	g.Release()

	var seen int
	if !m.Load(1, func(v int) { seen = v }) || seen != 2 {
		t.Fatalf("load(1) saw %d", seen)
	}
}

func TestCHashMap_Keys(t *testing.T) {
	m := FromEntries([]Entry[int, rune]{{1, 'a'}, {2, 'b'}, {3, 'c'}})
	keys := make(map[int]bool)
	for k := range m.Keys() {
		keys[k] = true
	}
	if len(keys) != 3 || !keys[1] || !keys[2] || !keys[3] {
		t.Fatalf("keys = %v", keys)
	}
}

func TestCHashMap_Values(t *testing.T) {
	m := FromEntries([]Entry[int, rune]{{1, 'a'}, {2, 'b'}, {3, 'c'}})
	values := make(map[rune]bool)
	for v := range m.Values() {
		values[v] = true
	}
	if len(values) != 3 || !values['a'] || !values['b'] || !values['c'] {
		t.Fatalf("values = %v", values)
	}
}

func TestCHashMap_FromSeq(t *testing.T) {
	xs := []Entry[int, int]{{1, 1}, {2, 2}, {3, 3}, {4, 4}, {5, 5}, {6, 6}, {3, 30}}
	m := FromSeq[int, int](func(yield func(int, int) bool) {
		for _, e := range xs {
			if !yield(e.Key, e.Value) {
				return
			}
		}
	})
	if m.Len() != 6 {
		t.Fatalf("len = %d, want 6", m.Len())
	}
	want := map[int]int{1: 1, 2: 2, 3: 30, 4: 4, 5: 5, 6: 6}
	for k, v := range want {
		if got := mustValue(t, m, k); got != v {
			t.Fatalf("get(%d) = %d, want %d", k, got, v)
		}
	}
	got := m.ToMap()
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("ToMap = %v, want %v", got, want)
	}
}

func TestCHashMap_Clear(t *testing.T) {
	m := New[string, int](WithPresize(16))
	c := m.Capacity()
	for i := 0; i < 100; i++ {
		m.Insert(fmt.Sprint(i), i)
	}
	m.Clear()
	if !m.IsEmpty() {
		t.Fatalf("len = %d after Clear", m.Len())
	}
	if m.Capacity() != c {
		t.Fatalf("capacity = %d after Clear, want %d", m.Capacity(), c)
	}
	if m.ContainsKey("1") {
		t.Fatal("key survived Clear")
	}
}

type badHashKey struct {
	id int
}

func (badHashKey) HashCode(uint64) uint64 { return 42 }

func TestCHashMap_BadHash(t *testing.T) {
	m := New[badHashKey, int]()
	for i := 0; i < 200; i++ {
		m.Insert(badHashKey{i}, i)
	}
	for i := 0; i < 200; i += 2 {
		m.Remove(badHashKey{i})
	}
	for i := 0; i < 200; i++ {
		v, ok := m.Value(badHashKey{i})
		if i%2 == 0 {
			if ok {
				t.Fatalf("key %d should be gone", i)
			}
		} else if !ok || v != i {
			t.Fatalf("get(%d) = (%d, %v)", i, v, ok)
		}
	}
	if m.Len() != 100 {
		t.Fatalf("len = %d", m.Len())
	}
}

func TestCHashMap_StringHashers(t *testing.T) {
	if XXHashString("abc") != XXHashString("abc") {
		t.Fatal("xxhash not deterministic")
	}
	if Murmur3String("abc") != Murmur3String("abc") {
		t.Fatal("murmur3 not deterministic")
	}
	for name, h := range map[string]func(string) uint64{
		"xxhash":  XXHashString,
		"murmur3": Murmur3String,
	} {
		t.Run(name, func(t *testing.T) {
			m := New[string, int](WithKeyHasher(h))
			for i := 0; i < 500; i++ {
				m.Insert(fmt.Sprintf("key-%d", i), i)
			}
			for i := 0; i < 500; i++ {
				if v := mustValue(t, m, fmt.Sprintf("key-%d", i)); v != i {
					t.Fatalf("get(key-%d) = %d", i, v)
				}
			}
		})
	}
}

func TestCHashMap_HasherForOtherKeyTypeIgnored(t *testing.T) {
	m := New[string, int](WithKeyHasher(identityHash))
	m.Insert("a", 1)
	if v := mustValue(t, m, "a"); v != 1 {
		t.Fatalf("get(a) = %d", v)
	}
}

func TestCHashMap_StatsString(t *testing.T) {
	m := New[int, int]()
	for i := 0; i < 10; i++ {
		m.Insert(i, i)
	}
	m.Remove(3)
	s := m.Stats()
	if s.Size != 9 || s.Counter != 9 || s.Tombstones != 1 || s.TombstoneCounter != 1 {
		t.Fatalf("stats = %+v", s)
	}
	if s.Capacity != m.Capacity() {
		t.Fatalf("stats capacity %d, map %d", s.Capacity, m.Capacity())
	}
	t.Log(s.String())
}
