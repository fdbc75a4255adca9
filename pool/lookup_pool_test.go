package pool

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ff-zhang/cuckoo-table/lib/cuckoo"
)

func buildTable(t *testing.T, capacity int, numKeys uint64) *cuckoo.Table[uint64] {
	t.Helper()
	tbl, err := cuckoo.NewTable[uint64](capacity)
	require.NoError(t, err)
	for k := uint64(1); k <= numKeys; k++ {
		require.NoError(t, tbl.Insert(k, k*3))
	}
	return tbl
}

func TestLookupPoolMatchesSerialFind(t *testing.T) {
	tbl := buildTable(t, 4096, 3000)
	defer func() { _ = tbl.Close() }()

	p, err := NewLookupPool[uint64](tbl, 4, WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	defer func() { require.NoError(t, p.Release()) }()

	// Interleave hits and misses across many windows.
	requests := make([]uint64, 4096)
	for i := range requests {
		if i%3 == 0 {
			requests[i] = 0xFFFF_0000_0000_0000 + uint64(i)
		} else {
			requests[i] = uint64(i%3000) + 1
		}
	}

	var mu sync.Mutex
	got := make(map[uint64]bool, len(requests))
	for off := 0; off < len(requests); off += cuckoo.MaxLookupBatch {
		window := requests[off : off+cuckoo.MaxLookupBatch]
		err := p.Submit(window, func(results []cuckoo.Cursor[uint64]) {
			mu.Lock()
			defer mu.Unlock()
			for i, c := range results {
				got[window[i]] = !c.IsNull()
			}
		})
		require.NoError(t, err)
	}
	p.Drain()

	for _, key := range requests {
		hit, seen := got[key]
		require.True(t, seen, "key %d never delivered", key)
		require.Equal(t, !tbl.Find(key).IsNull(), hit, "key %d", key)
	}
}

func TestLookupPoolWorksWithSet(t *testing.T) {
	s, err := cuckoo.NewSet(256)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	for k := uint64(1); k <= 100; k++ {
		require.NoError(t, s.Insert(k))
	}

	p, err := NewLookupPool[struct{}](s, 2)
	require.NoError(t, err)
	defer func() { _ = p.Release() }()

	keys := []uint64{1, 2, 3, 4, 1000, 2000}
	done := make(chan int, 1)
	require.NoError(t, p.SubmitTo(1, keys, func(results []cuckoo.SetCursor) {
		hits := 0
		for _, c := range results {
			if !c.IsNull() {
				hits++
			}
		}
		done <- hits
	}))
	p.Drain()
	assert.Equal(t, 4, <-done)
}

func TestLookupPoolPreconditions(t *testing.T) {
	tbl := buildTable(t, 64, 10)
	defer func() { _ = tbl.Close() }()

	_, err := NewLookupPool[uint64](tbl, 0)
	assert.ErrorIs(t, err, ErrBadWorkerCount)

	p, err := NewLookupPool[uint64](tbl, 2)
	require.NoError(t, err)

	assert.ErrorIs(t, p.SubmitTo(5, []uint64{1}, func([]cuckoo.Cursor[uint64]) {}), ErrBadWorkerIndex)
	tooMany := make([]uint64, cuckoo.MaxLookupBatch+1)
	assert.ErrorIs(t, p.Submit(tooMany, func([]cuckoo.Cursor[uint64]) {}), cuckoo.ErrBatchTooLarge)

	require.NoError(t, p.Release())
	assert.ErrorIs(t, p.Submit([]uint64{1}, func([]cuckoo.Cursor[uint64]) {}), ErrReleased)
	// Release is idempotent.
	require.NoError(t, p.Release())
}

func TestLookupPoolDrainIdles(t *testing.T) {
	tbl := buildTable(t, 1024, 500)
	defer func() { _ = tbl.Close() }()

	p, err := NewLookupPool[uint64](tbl, 3)
	require.NoError(t, err)
	defer func() { _ = p.Release() }()

	var delivered sync.WaitGroup
	for i := 0; i < 300; i++ {
		delivered.Add(1)
		keys := []uint64{uint64(i%500) + 1, uint64(i)}
		require.NoError(t, p.Submit(keys, func(results []cuckoo.Cursor[uint64]) {
			delivered.Done()
		}))
	}
	p.Drain()
	delivered.Wait()
	// A batch stops counting as running before it signals the in-flight
	// accounting that Drain waits on, so nothing is left running here.
	require.Eventually(t, func() bool { return p.Running() == 0 }, time.Second, 5*time.Millisecond)
}
