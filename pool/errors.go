package pool

import "github.com/pkg/errors"

var (
	ErrZeroBlocks       = errors.New("pool: number of blocks must be greater than zero")
	ErrInvalidBlockSize = errors.New("pool: block size must be greater than zero")
	ErrOutOfMemory      = errors.New("pool: cannot reserve arena")
	ErrInvalidPointer   = errors.New("pool: pointer not from this pool")
	ErrDoubleFree       = errors.New("pool: block is already free")
)

// IsConstructionError reports whether err was caused by invalid construction
// parameters, as opposed to a failure to reserve memory.
func IsConstructionError(err error) bool {
	return errors.Is(err, ErrZeroBlocks) || errors.Is(err, ErrInvalidBlockSize)
}
