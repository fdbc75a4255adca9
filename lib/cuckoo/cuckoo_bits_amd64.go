//go:build amd64 && !nosimd
// +build amd64,!nosimd

package cuckoo

import "unsafe"

//go:generate go run ./simd/asm.go -out match_keys.s -stubs match_keys_amd64.go

func matchKeys(slots *[SlotsPerBucket]uint64, key uint64) bitset {
	return bitset(Fast4WayKeyMatch(slots, key))
}

func prefetch(addr unsafe.Pointer) {
	PrefetchT0(addr)
}
