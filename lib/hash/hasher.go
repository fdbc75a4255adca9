package hash

import (
	"encoding/binary"
	"hash/crc32"

	"github.com/cespare/xxhash/v2"
)

// References:
// https://github.com/Cyan4973/xxHash
// https://www.intel.com/content/www/us/en/docs/intrinsics-guide/index.html#text=crc32

// Func maps a 64-bit key to a machine word. It must be deterministic and
// free of mutable global state for the whole lifetime of any table it is
// attached to. Hash quality only affects displacement depth, never
// correctness.
type Func func(key uint64) uint64

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// CRC32CFold is the reference hasher: a CRC32C of the key folded into a
// 64-bit word by duplicating the 32-bit CRC into the high and low halves.
// The stdlib Castagnoli table dispatches to the hardware CRC32 instruction
// on amd64 and arm64.
func CRC32CFold(key uint64) uint64 {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], key)
	crc := crc32.Checksum(buf[:], castagnoli)
	return uint64(crc)<<32 | uint64(crc)
}

// XXH64 hashes the key's little-endian bytes with xxhash64. Stronger
// avalanche than CRC32CFold, a little slower per key.
func XXH64(key uint64) uint64 {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], key)
	return xxhash.Sum64(buf[:])
}
