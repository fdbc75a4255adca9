// Package pool layers caller-managed parallelism over an immutable
// cuckoo table: batched lookups are dispatched round-robin to a fixed
// set of workers, each owning a private result slab. The table is never
// mutated through this package, which is the whole concurrency contract.
package pool

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/samber/lo"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/ff-zhang/cuckoo-table/lib/cuckoo"
)

var (
	ErrBadWorkerCount = errors.New("[pool] worker count must be positive")
	ErrBadWorkerIndex = errors.New("[pool] worker index out of range")
	ErrReleased       = errors.New("[pool] lookup pool already released")
)

const defaultReleaseTimeout = 5 * time.Second

// DeliverFunc receives a completed batch's results. The slice aliases
// the owning worker's slab and is valid only until that worker starts
// its next batch; copy out anything that must outlive the callback.
type DeliverFunc[V cuckoo.Value] func(results []cuckoo.Cursor[V])

// BatchFinder is the slice of the table surface the pool needs. Both
// cuckoo.Table and cuckoo.Set satisfy it.
type BatchFinder[V cuckoo.Value] interface {
	FindBatched(keys []uint64, results []cuckoo.Cursor[V]) error
}

// LookupPool fans FindBatched windows out to serial workers. Safe for
// concurrent Submit from multiple producers; the underlying table must
// stay immutable while any batch is in flight.
type LookupPool[V cuckoo.Value] struct {
	table    BatchFinder[V]
	workers  []*lookupWorker[V]
	rrIdx    atomic.Uint32
	released atomic.Bool
	logger   *zap.Logger
	timeout  time.Duration
}

// lookupWorker is a single-goroutine executor: batches queued on it run
// serially, so its result slab never sees two batches at once.
type lookupWorker[V cuckoo.Value] struct {
	exec     *ants.Pool
	inflight sync.WaitGroup
	running  atomic.Int32
	results  []cuckoo.Cursor[V]
}

type PoolOption func(*poolConfig)

type poolConfig struct {
	logger  *zap.Logger
	timeout time.Duration
}

func WithLogger(logger *zap.Logger) PoolOption {
	return func(c *poolConfig) {
		c.logger = logger
	}
}

// WithReleaseTimeout bounds how long Release waits for idle workers.
func WithReleaseTimeout(d time.Duration) PoolOption {
	return func(c *poolConfig) {
		c.timeout = d
	}
}

func NewLookupPool[V cuckoo.Value](table BatchFinder[V], numWorkers int, opts ...PoolOption) (*LookupPool[V], error) {
	if numWorkers <= 0 {
		return nil, ErrBadWorkerCount
	}
	cfg := &poolConfig{
		logger:  zap.NewNop(),
		timeout: defaultReleaseTimeout,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	p := &LookupPool[V]{
		table:   table,
		workers: make([]*lookupWorker[V], 0, numWorkers),
		logger:  cfg.logger,
	}
	for i := 0; i < numWorkers; i++ {
		exec, err := ants.NewPool(1,
			ants.WithLogger(newAntsLogger(cfg.logger)),
			ants.WithPreAlloc(true),
		)
		if err != nil {
			p.release(cfg.timeout)
			return nil, fmt.Errorf("[pool] spawn worker %d: %w", i, err)
		}
		p.workers = append(p.workers, &lookupWorker[V]{
			exec:    exec,
			results: make([]cuckoo.Cursor[V], cuckoo.MaxLookupBatch),
		})
	}
	p.timeout = cfg.timeout
	return p, nil
}

// Submit queues a batch on the next worker round-robin.
func (p *LookupPool[V]) Submit(keys []uint64, deliver DeliverFunc[V]) error {
	idx := int(p.rrIdx.Add(1)-1) % len(p.workers)
	return p.SubmitTo(idx, keys, deliver)
}

// SubmitTo queues a batch on worker i. The keys slice must stay
// untouched until deliver has run.
func (p *LookupPool[V]) SubmitTo(i int, keys []uint64, deliver DeliverFunc[V]) error {
	if p.released.Load() {
		return ErrReleased
	}
	if i < 0 || i >= len(p.workers) {
		return ErrBadWorkerIndex
	}
	if len(keys) > cuckoo.MaxLookupBatch {
		return cuckoo.ErrBatchTooLarge
	}

	w := p.workers[i]
	w.inflight.Add(1)
	err := w.exec.Submit(func() {
		defer w.inflight.Done()
		w.running.Add(1)
		defer w.running.Add(-1)
		if err := p.table.FindBatched(keys, w.results); err != nil {
			p.logger.Error("batched lookup rejected", zap.Int("worker", i), zap.Error(err))
			return
		}
		deliver(w.results[:len(keys)])
	})
	if err != nil {
		w.inflight.Done()
		return fmt.Errorf("[pool] queue batch on worker %d: %w", i, err)
	}
	return nil
}

// Drain blocks until every queued batch has completed. Producers must
// not race new Submits against a Drain they care about.
func (p *LookupPool[V]) Drain() {
	for _, w := range p.workers {
		w.inflight.Wait()
	}
}

// Running reports currently executing batches across all workers.
func (p *LookupPool[V]) Running() int {
	return lo.SumBy(p.workers, func(w *lookupWorker[V]) int {
		return int(w.running.Load())
	})
}

// Release drains the pool and stops all workers. Further Submits fail
// with ErrReleased.
func (p *LookupPool[V]) Release() error {
	if !p.released.CompareAndSwap(false, true) {
		return nil
	}
	p.Drain()
	return p.release(p.timeout)
}

func (p *LookupPool[V]) release(timeout time.Duration) error {
	var err error
	for i, w := range p.workers {
		if w == nil {
			continue
		}
		if e := w.exec.ReleaseTimeout(timeout); e != nil {
			err = multierr.Append(err, fmt.Errorf("[pool] stop worker %d: %w", i, e))
		}
	}
	return err
}
