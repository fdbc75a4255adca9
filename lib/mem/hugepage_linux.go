//go:build linux
// +build linux

package mem

import (
	"fmt"
	"sync"
	"unsafe"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// References:
// https://rigtorp.se/hugepages/
// https://www.kernel.org/doc/Documentation/vm/hugetlbpage.txt

// HugePageSize is the transparent 2 MiB huge page size on x86-64 and
// most arm64 kernels.
const HugePageSize = 1 << 21

// HugePageAllocator maps anonymous 2 MiB huge pages. Huge pages keep the
// whole bucket array under a handful of TLB entries and the mapping base
// is always page aligned, so any cache-line alignment demand holds for
// free. When the kernel has no huge pages reserved the allocator falls
// back to a normal anonymous mapping and logs once per failure.
type HugePageAllocator struct {
	logger   *zap.Logger
	mu       sync.Mutex
	mappings map[uintptr][]byte
}

func NewHugePageAllocator(logger *zap.Logger) *HugePageAllocator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HugePageAllocator{
		logger:   logger,
		mappings: make(map[uintptr][]byte),
	}
}

func roundToHugePageSize(n int) int {
	return (n + HugePageSize - 1) &^ (HugePageSize - 1)
}

func (a *HugePageAllocator) Allocate(size, align int) ([]byte, error) {
	if size <= 0 {
		return nil, ErrBadSize
	}
	if align <= 0 || align&(align-1) != 0 {
		return nil, ErrBadAlignment
	}
	if align > HugePageSize {
		return nil, fmt.Errorf("%w: %d exceeds the huge page size", ErrBadAlignment, align)
	}

	length := roundToHugePageSize(size)
	prot := unix.PROT_READ | unix.PROT_WRITE
	mapping, err := unix.Mmap(-1, 0, length, prot, unix.MAP_PRIVATE|unix.MAP_ANON|unix.MAP_HUGETLB)
	if err != nil {
		a.logger.Warn("huge page mapping failed, falling back to regular pages",
			zap.Int("length", length), zap.Error(err))
		mapping, err = unix.Mmap(-1, 0, length, prot, unix.MAP_PRIVATE|unix.MAP_ANON)
		if err != nil {
			return nil, fmt.Errorf("[mem] anonymous mmap of %d bytes: %w", length, err)
		}
	}

	base := uintptr(unsafe.Pointer(&mapping[0]))
	if base&uintptr(align-1) != 0 {
		_ = unix.Munmap(mapping)
		return nil, fmt.Errorf("%w: mapping base is not %d-byte aligned", ErrBadAlignment, align)
	}
	a.mu.Lock()
	a.mappings[base] = mapping
	a.mu.Unlock()
	return mapping[:size:size], nil
}

func (a *HugePageAllocator) Deallocate(buf []byte) error {
	if len(buf) == 0 {
		return ErrUnknownBuf
	}
	base := uintptr(unsafe.Pointer(&buf[0]))
	a.mu.Lock()
	mapping, ok := a.mappings[base]
	if ok {
		delete(a.mappings, base)
	}
	a.mu.Unlock()
	if !ok {
		return ErrUnknownBuf
	}
	return unix.Munmap(mapping)
}
