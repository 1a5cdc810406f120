package main

import (
	"sync"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"

	"github.com/funny-falcon/blockpool/pool"
)

// batch is how many blocks a measured run holds at once before freeing them.
const batch = 256

type sizeResult struct {
	BlockSize   int     `json:"block_size"`
	Effective   int     `json:"effective_block_size"`
	Ops         int     `json:"ops"`
	PoolNsPerOp float64 `json:"pool_ns_per_op"`
	HeapNsPerOp float64 `json:"heap_ns_per_op"`
	Speedup     float64 `json:"speedup"`
}

type concurrentResult struct {
	Goroutines int     `json:"goroutines"`
	Ops        int     `json:"ops"`
	Exhausted  int     `json:"exhausted"`
	NsPerOp    float64 `json:"ns_per_op"`
	UsedAfter  int     `json:"used_after"`
}

type report struct {
	Sizes      []sizeResult     `json:"sizes"`
	Concurrent concurrentResult `json:"concurrent"`
	Checksum   uint64           `json:"checksum"`
}

// bench holds the sink every measured loop writes to, so that the compiler
// cannot drop the loops.
type bench struct {
	cfg    Config
	logger log.Logger
	sink   uint64
	held   [][]byte
}

func runBench(cfg Config, logger log.Logger) (report, error) {
	b := &bench{cfg: cfg, logger: logger, held: make([][]byte, 0, batch)}
	var rep report
	for _, size := range cfg.Bench.Sizes {
		res, err := b.size(size)
		if err != nil {
			return rep, errors.Wrapf(err, "block size %d", size)
		}
		level.Info(logger).Log("msg", "benchmarked block size", "size", size, "pool_ns", res.PoolNsPerOp, "heap_ns", res.HeapNsPerOp)
		rep.Sizes = append(rep.Sizes, res)
	}
	conc, err := b.concurrent()
	if err != nil {
		return rep, errors.Wrap(err, "concurrent run")
	}
	rep.Concurrent = conc
	rep.Checksum = b.sink
	return rep, nil
}

func (b *bench) size(size int) (sizeResult, error) {
	cfg := b.cfg.Pool
	cfg.BlockSize = size
	cfg.NumBlocks = batch
	p, err := pool.NewAllocator(cfg, pool.WithLogger(b.logger))
	if err != nil {
		return sizeResult{}, err
	}
	defer b.close(p)

	n := b.cfg.Bench.Iterations
	poolDur, err := b.measure(n, p.Alloc, p.Free)
	if err != nil {
		return sizeResult{}, err
	}
	heapDur, err := b.measure(n, func() []byte { return make([]byte, size) }, func([]byte) error { return nil })
	if err != nil {
		return sizeResult{}, err
	}

	res := sizeResult{
		BlockSize:   size,
		Effective:   p.BlockSize(),
		Ops:         n,
		PoolNsPerOp: float64(poolDur.Nanoseconds()) / float64(n),
		HeapNsPerOp: float64(heapDur.Nanoseconds()) / float64(n),
	}
	if poolDur > 0 {
		res.Speedup = float64(heapDur) / float64(poolDur)
	}
	return res, nil
}

func (b *bench) close(p pool.Allocator) {
	if err := p.Close(); err != nil {
		level.Error(b.logger).Log("msg", "close pool", "err", err)
	}
}

// measure runs n alloc/free pairs in batches, touching every block.
func (b *bench) measure(n int, alloc func() []byte, free func([]byte) error) (time.Duration, error) {
	start := time.Now()
	for done := 0; done < n; {
		b.held = b.held[:0]
		for i := 0; i < batch && done < n; i++ {
			blk := alloc()
			if blk == nil {
				return 0, errors.New("pool exhausted during measurement")
			}
			blk[0] = byte(done)
			b.held = append(b.held, blk)
			done++
		}
		for _, blk := range b.held {
			b.sink += uint64(blk[0])
			if err := free(blk); err != nil {
				return 0, err
			}
		}
	}
	return time.Since(start), nil
}

func (b *bench) concurrent() (concurrentResult, error) {
	cfg := b.cfg.Pool
	cfg.Synchronized = true
	p, err := pool.NewAllocator(cfg, pool.WithLogger(b.logger))
	if err != nil {
		return concurrentResult{}, err
	}
	defer b.close(p)

	workers := b.cfg.Bench.Goroutines
	perWorker := b.cfg.Bench.Iterations / workers
	if perWorker == 0 {
		perWorker = 1
	}
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		exhausted int
		sink      uint64
		firstErr  error
	)
	start := time.Now()
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var miss int
			var sum uint64
			var err error
			for i := 0; i < perWorker && err == nil; i++ {
				blk := p.Alloc()
				if blk == nil {
					miss++
					continue
				}
				blk[0] = byte(i)
				sum += uint64(blk[0])
				err = p.Free(blk)
			}
			mu.Lock()
			exhausted += miss
			sink += sum
			if firstErr == nil {
				firstErr = err
			}
			mu.Unlock()
		}()
	}
	wg.Wait()
	elapsed := time.Since(start)
	if firstErr != nil {
		return concurrentResult{}, firstErr
	}
	b.sink += sink

	ops := perWorker * workers
	return concurrentResult{
		Goroutines: workers,
		Ops:        ops,
		Exhausted:  exhausted,
		NsPerOp:    float64(elapsed.Nanoseconds()) / float64(ops),
		UsedAfter:  p.UsedBlocks(),
	}, nil
}
