package pool

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/funny-falcon/blockpool/bitmap"
)

// guard tracks which blocks are handed out, one bit per block.
type guard struct {
	occupied bitmap.Block
}

func newGuard(n int) *guard {
	return &guard{occupied: bitmap.New(n)}
}

// occupy marks block i handed out. A block the free list yields while it is
// still marked means the list was corrupted behind the guard's back.
func (g *guard) occupy(i int) {
	if !g.occupied.Set(i) {
		panic(fmt.Sprintf("pool: free list corrupted, block %d handed out twice", i))
	}
}

// vacate validates addr and marks its block free. The pool is left
// untouched when an error is returned.
func (g *guard) vacate(p *Pool, addr uintptr) error {
	end := p.base + uintptr(len(p.arena))
	if addr < p.base || addr >= end {
		return errors.Wrapf(ErrInvalidPointer, "address %#x outside arena [%#x, %#x)", addr, p.base, end)
	}
	off := addr - p.base
	if off%uintptr(p.blockSize) != 0 {
		return errors.Wrapf(ErrInvalidPointer, "address %#x is not on a block boundary", addr)
	}
	i := p.index(off)
	if !g.occupied.Unset(i) {
		return errors.Wrapf(ErrDoubleFree, "block %d", i)
	}
	return nil
}

func (g *guard) reset() {
	g.occupied.Reset()
}
