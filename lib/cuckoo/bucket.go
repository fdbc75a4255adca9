package cuckoo

import "unsafe"

// bucket is a fixed-capacity associative slab. The value array precedes
// the key array so that a zero-size V (the set variant) collapses the
// struct to exactly 32 bytes without trailing padding; with an 8-byte V
// the bucket is a full 64-byte line. Either way a cache-line aligned
// bucket array never straddles a line.
type bucket[V Value] struct {
	vals [SlotsPerBucket]V
	keys [SlotsPerBucket]uint64
}

// Cursor is a borrowed handle to a found slot. It stays valid only until
// the next mutation of the owning table.
type Cursor[V Value] struct {
	b    *bucket[V]
	slot uint32
}

// IsNull reports the miss case of Find.
func (c Cursor[V]) IsNull() bool {
	return c.b == nil
}

func (c Cursor[V]) Key() uint64 {
	return c.b.keys[c.slot]
}

// Value exposes the slot payload for in-place reads and updates. For the
// set variant the payload is zero sized and carries nothing.
func (c Cursor[V]) Value() *V {
	return &c.b.vals[c.slot]
}

// find probes all slots at once. Slot order is immaterial; the lowest
// matching lane wins.
func (b *bucket[V]) find(key uint64) Cursor[V] {
	mask := matchKeys(&b.keys, key)
	if mask == 0 {
		return Cursor[V]{}
	}
	return Cursor[V]{b: b, slot: nextMatch(&mask)}
}

// findLinear is the scalar twin of find, kept as the executable statement
// of the probe's semantics.
func (b *bucket[V]) findLinear(key uint64) Cursor[V] {
	for i := uint32(0); i < SlotsPerBucket; i++ {
		if b.keys[i] == key {
			return Cursor[V]{b: b, slot: i}
		}
	}
	return Cursor[V]{}
}

// insert writes the pair into an empty slot if one exists. A key already
// resident in this bucket is a caller precondition violation.
func (b *bucket[V]) insert(key uint64, val V) (bool, error) {
	if dup := matchKeys(&b.keys, key); dup != 0 {
		return false, ErrKeyExists
	}
	free := matchKeys(&b.keys, NullKey)
	if free == 0 {
		return false, nil
	}
	b.update(nextMatch(&free), key, val)
	return true, nil
}

// displaceInsert unconditionally installs the pair into the victim slot
// and hands back the prior tenant.
func (b *bucket[V]) displaceInsert(key uint64, val V, victim uint32) (uint64, V) {
	evictedKey, evictedVal := b.keys[victim], b.vals[victim]
	b.update(victim, key, val)
	return evictedKey, evictedVal
}

func (b *bucket[V]) update(slot uint32, key uint64, val V) {
	b.keys[slot] = key
	b.vals[slot] = val
}

func (b *bucket[V]) erase(slot uint32) {
	b.keys[slot] = NullKey
	// The value sentinel is all-ones like the key's. The width test is a
	// compile-time constant, so the set variant's erase compiles to the
	// key store alone.
	if unsafe.Sizeof(b.vals[slot]) == 8 {
		*(*uint64)(unsafe.Pointer(&b.vals[slot])) = NullValue
	}
}
