//go:build !amd64 || nosimd
// +build !amd64 nosimd

package cuckoo

import "unsafe"

// Branch-ladder fallback for the vector probe. Semantically identical to
// the SSE path, and the compiler unrolls the constant-bound loop; on a
// front-loaded hit distribution it can even win.
func matchKeys(slots *[SlotsPerBucket]uint64, key uint64) bitset {
	res := bitset(0)
	for i := 0; i < SlotsPerBucket; i++ {
		if slots[i] == key {
			res |= 1 << uint(i)
		}
	}
	return res
}

// Prefetch is a correctness-neutral hint, so it degrades to a no-op.
func prefetch(addr unsafe.Pointer) {
	_ = addr
}
