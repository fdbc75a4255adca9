// cuckoo-bench drives the set variant through the build-then-query
// pattern the table is designed for: bulk insert, verify, batched
// lookups fanned out over pool workers, then erase everything. All
// parameters are compiled in.
package main

import (
	"errors"
	randv2 "math/rand"
	"sync/atomic"
	"time"

	"github.com/samber/lo"
	_ "go.uber.org/automaxprocs"
	"go.uber.org/zap"

	"github.com/ff-zhang/cuckoo-table/lib/cuckoo"
	"github.com/ff-zhang/cuckoo-table/lib/hash"
	"github.com/ff-zhang/cuckoo-table/lib/mem"
	"github.com/ff-zhang/cuckoo-table/pool"
)

const (
	capacity       = 1 << 22
	loadPercentage = 80
	hitPercentage  = 80
	numRequests    = 1 << 24
	numWorkers     = 2

	numKeys = capacity * loadPercentage / 100
)

func main() {
	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	alloc := mem.NewHugePageAllocator(logger)
	set, err := cuckoo.NewSet(capacity,
		cuckoo.WithAllocator[struct{}](alloc),
		cuckoo.WithHasher[struct{}](hash.CRC32CFold),
	)
	if err != nil {
		logger.Fatal("construct set", zap.Error(err))
	}

	// Insert phase. At 80% load a handful of keys can exhaust the
	// displacement walk; they are skipped and reported.
	saturated := make(map[uint64]struct{})
	start := time.Now()
	for key := uint64(1); key <= numKeys; key++ {
		if err := set.Insert(key); err != nil {
			if errors.Is(err, cuckoo.ErrSaturated) {
				saturated[key] = struct{}{}
				continue
			}
			logger.Fatal("insert", zap.Uint64("key", key), zap.Error(err))
		}
	}
	logger.Info("insert phase done",
		zap.Int("size", set.Size()),
		zap.Float64("load_factor", set.LoadFactor()),
		zap.Int("saturated", len(saturated)),
		zap.Duration("elapsed", time.Since(start)))

	for key := uint64(1); key <= numKeys; key++ {
		if _, skipped := saturated[key]; skipped {
			continue
		}
		if set.Find(key).IsNull() {
			logger.Fatal("inserted key missing", zap.Uint64("key", key))
		}
	}

	// Pre-generate random requests; ~hitPercentage% land in the
	// inserted range.
	requests := make([]uint64, numRequests)
	for i := range requests {
		requests[i] = randv2.Uint64()%(numKeys*100/hitPercentage) + 1
	}

	lookups, err := pool.NewLookupPool[struct{}](set, numWorkers, pool.WithLogger(logger))
	if err != nil {
		logger.Fatal("construct lookup pool", zap.Error(err))
	}

	var hits atomic.Int64
	start = time.Now()
	for off := 0; off < numRequests; off += cuckoo.MaxLookupBatch {
		end := off + cuckoo.MaxLookupBatch
		if end > numRequests {
			end = numRequests
		}
		err := lookups.Submit(requests[off:end], func(results []cuckoo.SetCursor) {
			hits.Add(int64(lo.CountBy(results, func(c cuckoo.SetCursor) bool {
				return !c.IsNull()
			})))
		})
		if err != nil {
			logger.Fatal("submit batch", zap.Error(err))
		}
	}
	lookups.Drain()
	elapsed := time.Since(start)
	logger.Info("batched lookup phase done",
		zap.Int("requests", numRequests),
		zap.Int64("hits", hits.Load()),
		zap.Float64("lookups_per_sec", float64(numRequests)/elapsed.Seconds()),
		zap.Duration("elapsed", elapsed))
	if err := lookups.Release(); err != nil {
		logger.Warn("release lookup pool", zap.Error(err))
	}

	// Erase phase.
	start = time.Now()
	for key := uint64(1); key <= numKeys; key++ {
		if c := set.Find(key); !c.IsNull() {
			set.Erase(c)
		}
	}
	logger.Info("erase phase done",
		zap.Int("size", set.Size()),
		zap.Duration("elapsed", time.Since(start)))
	if set.Size() != 0 {
		logger.Fatal("table not empty after erase phase", zap.Int("size", set.Size()))
	}

	if err := set.Close(); err != nil {
		logger.Warn("close set", zap.Error(err))
	}
}
