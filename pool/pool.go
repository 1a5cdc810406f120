// Package pool implements a fixed-size block allocator: one arena of equal
// slots reserved up front, handed out and taken back in O(1) through a free
// list threaded through the unused slots.
//
// A Pool is not safe for concurrent use; SyncPool wraps one with a mutex.
// Free on a plain pool trusts its argument completely: a pointer that is not
// a live block of this pool corrupts the free list. Build the pool with
// WithGuard to have Free validate addresses and catch double frees.
package pool

import (
	"math"
	"unsafe"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
)

// Usage is the read-only view of a pool's counters.
type Usage interface {
	IsExhausted() bool
	UsedBlocks() int
	FreeBlocks() int
	BlockSize() int
	TotalBlocks() int
}

// Allocator is implemented by Pool and SyncPool.
type Allocator interface {
	Usage
	Alloc() []byte
	Free(b []byte) error
	AllocInto(pptr interface{}) bool
	FreeObject(obj interface{}) error
	Reset()
	Close() error
}

type Pool struct {
	arena     []byte
	base      uintptr
	blockSize int
	total     int
	free      int
	head      uintptr
	guard     *guard
	logger    log.Logger
}

var _ Allocator = (*Pool)(nil)

// New reserves numBlocks blocks of at least blockSize bytes each.
func New(blockSize, numBlocks int, opts ...Option) (*Pool, error) {
	p := &Pool{}
	if err := p.init(blockSize, numBlocks, buildOptions(opts)); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Pool) init(blockSize, numBlocks int, o options) error {
	if numBlocks <= 0 {
		return errors.Wrapf(ErrZeroBlocks, "got %d", numBlocks)
	}
	if blockSize <= 0 {
		return errors.Wrapf(ErrInvalidBlockSize, "got %d", blockSize)
	}
	if blockSize > math.MaxInt-(MaxAlign-1) {
		return errors.Wrapf(ErrOutOfMemory, "block size %d cannot be aligned to %d", blockSize, MaxAlign)
	}
	bs := effectiveBlockSize(blockSize)
	arena, err := newArena(bs, numBlocks)
	if err != nil {
		return err
	}
	*p = Pool{
		arena:     arena,
		base:      uintptr(unsafe.Pointer(&arena[0])),
		blockSize: bs,
		total:     numBlocks,
		logger:    o.logger,
	}
	if o.guarded {
		p.guard = newGuard(numBlocks)
	}
	p.relink()
	return nil
}

// Alloc returns a free block, or nil if the pool is exhausted. The block is
// not zeroed: its first PointerWidth bytes hold a stale free-list link.
func (p *Pool) Alloc() []byte {
	off, ok := p.alloc()
	if !ok {
		return nil
	}
	end := off + uintptr(p.blockSize)
	return p.arena[off:end:end]
}

func (p *Pool) alloc() (uintptr, bool) {
	off, ok := p.pop()
	if ok && p.guard != nil {
		p.guard.occupy(p.index(off))
	}
	return off, ok
}

// Free returns b to the pool; it becomes the next block Alloc hands out.
// A block with zero capacity, nil included, is ignored without looking at
// its address. The caller must not touch b afterwards.
func (p *Pool) Free(b []byte) error {
	if cap(b) == 0 {
		return nil
	}
	return p.release(uintptr(unsafe.Pointer(unsafe.SliceData(b))))
}

func (p *Pool) release(addr uintptr) error {
	if p.guard != nil {
		if err := p.guard.vacate(p, addr); err != nil {
			return err
		}
	}
	p.push(addr - p.base)
	return nil
}

func (p *Pool) index(off uintptr) int {
	return int(off / uintptr(p.blockSize))
}

// Reset takes back every block at once. Blocks handed out before the call
// must not be used or freed afterwards.
func (p *Pool) Reset() {
	p.relink()
	if p.guard != nil {
		p.guard.reset()
	}
}

// Close releases the arena. Outstanding blocks are reported as a leak and
// become invalid. Closing twice is a no-op.
func (p *Pool) Close() error {
	if p.arena == nil {
		return nil
	}
	if p.free < p.total {
		level.Warn(p.logger).Log("msg", "memory leak detected, blocks not freed", "blocks", p.total-p.free, "total", p.total)
	}
	arena := p.arena
	p.arena = nil
	p.head = endOfList
	return errors.Wrap(unmapArena(arena), "pool: unmap arena")
}

func (p *Pool) IsExhausted() bool { return p.free == 0 }

func (p *Pool) UsedBlocks() int { return p.total - p.free }

func (p *Pool) FreeBlocks() int { return p.free }

// BlockSize is the aligned size of a block, never less than requested.
func (p *Pool) BlockSize() int { return p.blockSize }

func (p *Pool) TotalBlocks() int { return p.total }
