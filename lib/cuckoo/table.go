package cuckoo

import (
	"fmt"
	"unsafe"

	"github.com/ff-zhang/cuckoo-table/lib/hash"
	"github.com/ff-zhang/cuckoo-table/lib/mem"
)

// Table is the map variant: every key carries a 64-bit payload. The set
// variant is the same machinery over a zero-size payload, see Set.
//
// Each key k owns two home buckets, H(k)&mask and H(H(k)^k)&mask. The
// XOR-through-hash secondary is involutive: from either home and the key
// the other home is derivable, which is what keeps the displacement walk
// cheap. The two homes may coincide; nothing below assumes otherwise.
type Table[V Value] struct {
	hasher     hash.Func
	alloc      mem.Allocator
	raw        []byte
	buckets    []bucket[V]
	bucketMask uint64
	sz         uint64
	victimIdx  uint32
	maxDepth   int
	path       []walkStep[V]
}

type walkStep[V Value] struct {
	bid  uint64
	slot uint32
	key  uint64
	val  V
}

type Option[V Value] func(*Table[V])

// WithHasher installs the hash strategy. It must stay deterministic for
// the table's whole lifetime. Default is hash.CRC32CFold.
func WithHasher[V Value](h hash.Func) Option[V] {
	return func(t *Table[V]) {
		t.hasher = h
	}
}

// WithAllocator installs the bucket-array allocator strategy. Default is
// the GC heap; mem.NewHugePageAllocator trades that for 2 MiB pages.
func WithAllocator[V Value](a mem.Allocator) Option[V] {
	return func(t *Table[V]) {
		t.alloc = a
	}
}

// WithMaxDisplacementDepth bounds the eviction chain on insert. The
// default of 256 is a tunable, not a fundamental constant; shorter caps
// reject keys earlier at very high load.
func WithMaxDisplacementDepth[V Value](depth int) Option[V] {
	return func(t *Table[V]) {
		t.maxDepth = depth
	}
}

// NewTable rounds capacity up to a power-of-two slot count, obtains a
// cache-line aligned bucket array from the allocator and fills every
// slot with the empty sentinel. Construction fails if the allocator
// hands back an unaligned base.
func NewTable[V Value](capacity int, opts ...Option[V]) (*Table[V], error) {
	if capacity <= 0 {
		return nil, ErrBadCapacity
	}

	t := &Table[V]{
		hasher:   hash.CRC32CFold,
		alloc:    mem.HeapAllocator{},
		maxDepth: defaultMaxDisplacementDepth,
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.maxDepth <= 0 {
		t.maxDepth = defaultMaxDisplacementDepth
	}

	numBuckets := nextPow2(uint64(capacity)) / SlotsPerBucket
	if numBuckets == 0 {
		numBuckets = 1
	}
	if numBuckets&(numBuckets-1) != 0 {
		return nil, fmt.Errorf("[cuckoo] bucket count %d is not a power of two", numBuckets)
	}

	bucketBytes := int(unsafe.Sizeof(bucket[V]{}))
	raw, err := t.alloc.Allocate(int(numBuckets)*bucketBytes, CacheLineSize)
	if err != nil {
		return nil, fmt.Errorf("[cuckoo] bucket array allocation: %w", err)
	}
	if uintptr(unsafe.Pointer(&raw[0]))&(CacheLineSize-1) != 0 {
		_ = t.alloc.Deallocate(raw)
		return nil, ErrUnaligned
	}

	t.raw = raw
	t.buckets = unsafe.Slice((*bucket[V])(unsafe.Pointer(&raw[0])), numBuckets)
	t.bucketMask = numBuckets - 1
	t.path = make([]walkStep[V], 0, t.maxDepth)
	for i := range t.buckets {
		for s := uint32(0); s < SlotsPerBucket; s++ {
			t.buckets[i].erase(s)
		}
	}
	return t, nil
}

// Close returns the bucket array to the allocator. The table must not be
// used afterwards.
func (t *Table[V]) Close() error {
	if t.raw == nil {
		return nil
	}
	raw := t.raw
	t.raw, t.buckets = nil, nil
	return t.alloc.Deallocate(raw)
}

func (t *Table[V]) Size() int {
	return int(t.sz)
}

func (t *Table[V]) LoadFactor() float64 {
	return float64(t.sz) / float64(uint64(len(t.buckets))*SlotsPerBucket)
}

func (t *Table[V]) bucketID(h uint64) uint64 {
	return h & t.bucketMask
}

func (t *Table[V]) otherBucketID(h, key uint64) uint64 {
	return t.hasher(h^key) & t.bucketMask
}

// Find returns a cursor to the slot holding key, or a null cursor. The
// two home buckets are probed serially; FindBatched is the variant that
// overlaps the stalls of independent lookups.
func (t *Table[V]) Find(key uint64) Cursor[V] {
	h := t.hasher(key)
	if c := t.buckets[t.bucketID(h)].find(key); !c.IsNull() {
		return c
	}
	return t.buckets[t.otherBucketID(h, key)].find(key)
}

// Insert installs (key, val). Preconditions: key is not present and is
// not NullKey. Returns ErrKeyExists on a detected duplicate and
// ErrSaturated when the displacement walk hits its depth cap; in both
// failure cases the table is left exactly as it was and Size is
// unchanged.
func (t *Table[V]) Insert(key uint64, val V) error {
	h := t.hasher(key)
	bid1 := t.bucketID(h)
	bid2 := t.otherBucketID(h, key)

	ok, err := t.buckets[bid1].insert(key, val)
	if err != nil {
		return err
	}
	if !ok {
		if ok, err = t.buckets[bid2].insert(key, val); err != nil {
			return err
		}
	}
	if !ok {
		if err = t.displace(bid1, key, val); err != nil {
			return err
		}
	}
	t.sz++
	return nil
}

// displace runs the bounded eviction chain starting at bid. Every step
// records the displaced tenant so a failed walk can be unwound; on error
// the table is byte-for-byte back in its pre-insert state.
func (t *Table[V]) displace(bid uint64, key uint64, val V) error {
	t.path = t.path[:0]
	for depth := 0; depth < t.maxDepth; depth++ {
		victim := t.nextVictim()
		evictedKey, evictedVal := t.buckets[bid].displaceInsert(key, val, victim)
		t.path = append(t.path, walkStep[V]{bid: bid, slot: victim, key: evictedKey, val: evictedVal})

		h := t.hasher(evictedKey)
		next := t.bucketID(h)
		if next == bid {
			// Self-collision homes still resolve to bid here; the depth
			// cap bounds the revisit loop.
			next = t.otherBucketID(h, evictedKey)
		}

		ok, err := t.buckets[next].insert(evictedKey, evictedVal)
		if err != nil {
			t.unwind()
			return err
		}
		if ok {
			return nil
		}
		bid, key, val = next, evictedKey, evictedVal
	}
	t.unwind()
	return ErrSaturated
}

// unwind restores displaced tenants newest-first, which also evicts the
// key each step had pushed in.
func (t *Table[V]) unwind() {
	for i := len(t.path) - 1; i >= 0; i-- {
		step := t.path[i]
		t.buckets[step.bid].update(step.slot, step.key, step.val)
	}
	t.path = t.path[:0]
}

// nextVictim rotates through the bucket lanes so successive
// displacements spread over every slot instead of churning one lane.
func (t *Table[V]) nextVictim() uint32 {
	t.victimIdx++
	return t.victimIdx & (SlotsPerBucket - 1)
}

// Erase frees the slot behind a non-null cursor. Erasing a null or stale
// cursor is a caller error with undefined results.
func (t *Table[V]) Erase(c Cursor[V]) {
	t.sz--
	c.b.erase(c.slot)
}

// FindBatched looks up to MaxLookupBatch independent keys in one
// software-pipelined pass: hash and prefetch every primary bucket, probe
// them, then compute, prefetch and probe secondaries for the misses
// only. results[i] is identical to what Find(keys[i]) would return.
func (t *Table[V]) FindBatched(keys []uint64, results []Cursor[V]) error {
	n := len(keys)
	if n > MaxLookupBatch {
		return ErrBatchTooLarge
	}
	if len(results) < n {
		return ErrShortResults
	}

	var hashes [MaxLookupBatch]uint64
	var bid1s [MaxLookupBatch]uint64
	for i := 0; i < n; i++ {
		h := t.hasher(keys[i])
		hashes[i] = h
		bid1s[i] = t.bucketID(h)
		prefetch(unsafe.Pointer(&t.buckets[bid1s[i]]))
	}

	for i := 0; i < n; i++ {
		results[i] = t.buckets[bid1s[i]].find(keys[i])
	}

	var bid2s [MaxLookupBatch]uint64
	for i := 0; i < n; i++ {
		if !results[i].IsNull() {
			continue
		}
		bid2s[i] = t.otherBucketID(hashes[i], keys[i])
		prefetch(unsafe.Pointer(&t.buckets[bid2s[i]]))
	}

	for i := 0; i < n; i++ {
		if !results[i].IsNull() {
			continue
		}
		results[i] = t.buckets[bid2s[i]].find(keys[i])
	}
	return nil
}
