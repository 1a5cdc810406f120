package pool

import (
	"math"
	"unsafe"

	"github.com/pkg/errors"
)

type maxAlignT struct {
	_ uint64
	_ float64
	_ complex128
	_ uintptr
	_ unsafe.Pointer
}

const (
	// MaxAlign is the strictest alignment any scalar type needs on this
	// platform. Every block starts on a multiple of it.
	MaxAlign = int(unsafe.Alignof(maxAlignT{}))
	// PointerWidth is the size of the free-list link kept in a free block.
	PointerWidth = int(unsafe.Sizeof(uintptr(0)))
)

// mapArena reserves the backing region. Tests replace it to simulate
// exhaustion of the address space.
var mapArena = sysMap

var unmapArena = sysUnmap

func alignUp(n, align int) int {
	if align <= 0 || align&(align-1) != 0 {
		panic("pool: alignment must be a power of two")
	}
	return (n + align - 1) &^ (align - 1)
}

func effectiveBlockSize(requested int) int {
	size := alignUp(requested, MaxAlign)
	if least := alignUp(PointerWidth, MaxAlign); size < least {
		size = least
	}
	return size
}

func newArena(blockSize, numBlocks int) ([]byte, error) {
	if numBlocks > math.MaxInt/blockSize {
		return nil, errors.Wrapf(ErrOutOfMemory, "%d blocks of %d bytes overflow the address space", numBlocks, blockSize)
	}
	size := blockSize * numBlocks
	buf, err := mapArena(size)
	if err != nil {
		return nil, errors.Wrapf(ErrOutOfMemory, "map %d bytes: %v", size, err)
	}
	return buf, nil
}
