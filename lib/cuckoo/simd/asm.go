package main

import (
	. "github.com/mmcloughlin/avo/build"
	. "github.com/mmcloughlin/avo/operand"
)

func main() {
	ConstraintExpr("amd64")
	ConstraintExpr("!nosimd")

	TEXT("Fast4WayKeyMatch", NOSPLIT, "func(slots *[4]uint64, key uint64) uint8")
	Doc("Fast4WayKeyMatch compares the four 64-bit slots of one bucket against key with two SSE4.1 lane compares",
		"bit i of the result is set iff slots[i] == key",
		"the slot array must not straddle a cache line")

	Comment("Move the slot array pointer to register AX")
	mem := Mem{Base: Load(Param("slots"), GP64())}
	Comment("Move the key to register CX")
	key := Load(Param("key"), GP64())

	x0, x1, x2 := XMM(), XMM(), XMM()
	lo, hi := GP32(), GP32()

	Comment("Broadcast the key into both 64-bit lanes of X0")
	MOVQ(key, x0)
	PUNPCKLQDQ(x0, x0)

	Comment("Load slots 0-1 into X1 and slots 2-3 into X2")
	MOVOU(mem, x1)
	MOVOU(mem.Offset(16), x2)

	Comment("Lane-wise 64-bit equality, matching lanes become all-ones")
	PCMPEQQ(x0, x1)
	PCMPEQQ(x0, x2)

	Comment("Pack each lane's sign bit down into a 2-bit mask per pair")
	MOVMSKPD(x1, lo)
	MOVMSKPD(x2, hi)

	Comment("Merge the two pair masks into one 4-bit slot mask")
	SHLL(Imm(2), hi)
	ORL(hi, lo)

	Store(lo.As8(), ReturnIndex(0))
	RET()

	TEXT("PrefetchT0", NOSPLIT, "func(addr unsafe.Pointer)")
	Doc("PrefetchT0 hints the cache line at addr into every cache level")
	p := Load(Param("addr"), GP64())
	PREFETCHT0(Mem{Base: p})
	RET()

	Generate()
}
