//go:build !linux
// +build !linux

package mem

import (
	"go.uber.org/zap"
)

// HugePageSize is kept for API parity with the linux build.
const HugePageSize = 1 << 21

// HugePageAllocator degenerates to heap allocations where MAP_HUGETLB
// is unavailable.
type HugePageAllocator struct {
	heap HeapAllocator
}

func NewHugePageAllocator(logger *zap.Logger) *HugePageAllocator {
	if logger != nil {
		logger.Warn("huge pages are unsupported on this platform, using the heap allocator")
	}
	return &HugePageAllocator{}
}

func (a *HugePageAllocator) Allocate(size, align int) ([]byte, error) {
	return a.heap.Allocate(size, align)
}

func (a *HugePageAllocator) Deallocate(buf []byte) error {
	return a.heap.Deallocate(buf)
}
