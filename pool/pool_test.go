package pool_test

import (
	"bytes"
	"testing"
	"unsafe"

	"github.com/go-kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/funny-falcon/blockpool/pool"
)

func addr(b []byte) uintptr {
	return uintptr(unsafe.Pointer(unsafe.SliceData(b)))
}

func newPool(t testing.TB, blockSize, numBlocks int, opts ...pool.Option) *pool.Pool {
	t.Helper()
	opts = append([]pool.Option{pool.WithLogger(log.NewNopLogger())}, opts...)
	p, err := pool.New(blockSize, numBlocks, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, p.Close()) })
	return p
}

func checkCounters(t *testing.T, p pool.Usage, used int) {
	t.Helper()
	assert.Equal(t, used, p.UsedBlocks())
	assert.Equal(t, p.TotalBlocks()-used, p.FreeBlocks())
	assert.Equal(t, p.TotalBlocks(), p.FreeBlocks()+p.UsedBlocks())
	assert.Equal(t, used == p.TotalBlocks(), p.IsExhausted())
}

func TestNew(t *testing.T) {
	p := newPool(t, 64, 10)
	require.Equal(t, 10, p.TotalBlocks())
	require.Equal(t, 10, p.FreeBlocks())
	require.Equal(t, 64, p.BlockSize())
	checkCounters(t, p, 0)
}

func TestNew_constructionErrors(t *testing.T) {
	_, err := pool.New(64, 0)
	require.ErrorIs(t, err, pool.ErrZeroBlocks)
	require.True(t, pool.IsConstructionError(err))

	_, err = pool.New(64, -1)
	require.ErrorIs(t, err, pool.ErrZeroBlocks)

	_, err = pool.New(0, 10)
	require.ErrorIs(t, err, pool.ErrInvalidBlockSize)
	require.True(t, pool.IsConstructionError(err))

	_, err = pool.NewSync(32, 0)
	require.ErrorIs(t, err, pool.ErrZeroBlocks)
}

func TestPool_basic(t *testing.T) {
	p := newPool(t, 64, 10)

	b := p.Alloc()
	require.NotNil(t, b)
	require.Len(t, b, 64)
	require.Equal(t, 64, cap(b))
	checkCounters(t, p, 1)

	require.NoError(t, p.Free(b))
	checkCounters(t, p, 0)
}

func TestPool_multiple(t *testing.T) {
	p := newPool(t, 128, 100)

	blocks := make([][]byte, 0, 50)
	for i := 0; i < 50; i++ {
		b := p.Alloc()
		require.NotNil(t, b)
		blocks = append(blocks, b)
	}
	checkCounters(t, p, 50)

	for _, b := range blocks {
		require.NoError(t, p.Free(b))
	}
	checkCounters(t, p, 0)
}

func TestPool_blockSizes(t *testing.T) {
	for _, size := range []int{1, 8, 16, 32, 64, 128, 256, 512, 1024} {
		p := newPool(t, size, 10)
		require.GreaterOrEqual(t, p.BlockSize(), size)
		require.Zero(t, p.BlockSize()%pool.MaxAlign, "size %d", size)
		require.GreaterOrEqual(t, p.BlockSize(), pool.PointerWidth)

		b := p.Alloc()
		require.NotNil(t, b, "size %d", size)
		require.Len(t, b, p.BlockSize())
		require.Zero(t, addr(b)%uintptr(pool.MaxAlign))
		require.NoError(t, p.Free(b))
	}
}

func TestPool_reuseOrder(t *testing.T) {
	p := newPool(t, 64, 3)

	p1 := p.Alloc()
	p2 := p.Alloc()
	p3 := p.Alloc()
	require.NotNil(t, p1)
	require.NotNil(t, p3)

	require.NoError(t, p.Free(p2))
	b := p.Alloc()
	require.Same(t, &p2[0], &b[0])
}

func TestPool_lifo(t *testing.T) {
	p := newPool(t, 16, 4)
	a, b, c := p.Alloc(), p.Alloc(), p.Alloc()

	require.NoError(t, p.Free(a))
	require.NoError(t, p.Free(c))
	require.NoError(t, p.Free(b))

	require.Equal(t, addr(b), addr(p.Alloc()))
	require.Equal(t, addr(c), addr(p.Alloc()))
	require.Equal(t, addr(a), addr(p.Alloc()))
}

func TestPool_exhaustion(t *testing.T) {
	p := newPool(t, 32, 5)

	blocks := make([][]byte, 0, 5)
	for i := 0; i < 5; i++ {
		b := p.Alloc()
		require.NotNil(t, b)
		blocks = append(blocks, b)
	}
	require.True(t, p.IsExhausted())

	require.Nil(t, p.Alloc())
	require.Equal(t, 5, p.UsedBlocks())

	require.NoError(t, p.Free(blocks[3]))
	require.False(t, p.IsExhausted())
	b := p.Alloc()
	require.NotNil(t, b)
	require.Equal(t, addr(blocks[3]), addr(b))
	require.True(t, p.IsExhausted())
}

func TestPool_addresses(t *testing.T) {
	p := newPool(t, 40, 16)
	bs := uintptr(p.BlockSize())

	first := p.Alloc()
	base := addr(first)
	seen := map[uintptr]bool{base: true}
	for i := 1; i < 16; i++ {
		b := p.Alloc()
		a := addr(b)
		require.Equal(t, base+uintptr(i)*bs, a, "fresh pool hands blocks out in address order")
		require.False(t, seen[a])
		seen[a] = true
	}
}

func TestPool_interleaved(t *testing.T) {
	p := newPool(t, 64, 10)

	b1 := p.Alloc()
	b2 := p.Alloc()
	require.NoError(t, p.Free(b1))
	b3 := p.Alloc()
	b4 := p.Alloc()
	b5 := p.Alloc()
	require.NoError(t, p.Free(b3))
	b6 := p.Alloc()
	checkCounters(t, p, 4)

	for _, b := range [][]byte{b2, b4, b5, b6} {
		require.NoError(t, p.Free(b))
	}
	checkCounters(t, p, 0)
}

func TestPool_payloadOwnedByCaller(t *testing.T) {
	p := newPool(t, 48, 8)

	blocks := make([][]byte, 0, 8)
	for i := 0; i < 8; i++ {
		b := p.Alloc()
		for j := range b {
			b[j] = byte(i)
		}
		blocks = append(blocks, b)
	}
	for i, b := range blocks {
		require.Equal(t, bytes.Repeat([]byte{byte(i)}, len(b)), b, "block %d was touched by the pool", i)
	}
	for _, b := range blocks {
		require.NoError(t, p.Free(b))
	}

	seen := map[uintptr]bool{}
	for i := 0; i < 8; i++ {
		b := p.Alloc()
		require.NotNil(t, b)
		require.False(t, seen[addr(b)])
		seen[addr(b)] = true
	}
	require.Nil(t, p.Alloc())
}

func TestPool_freeNil(t *testing.T) {
	p := newPool(t, 32, 2)
	require.NoError(t, p.Free(nil))
	checkCounters(t, p, 0)
}

func TestPool_reset(t *testing.T) {
	p := newPool(t, 32, 10)

	for i := 0; i < 5; i++ {
		require.NotNil(t, p.Alloc())
	}
	require.Equal(t, 5, p.UsedBlocks())

	p.Reset()
	require.Equal(t, 0, p.UsedBlocks())
	require.Equal(t, 10, p.FreeBlocks())

	b := p.Alloc()
	require.NotNil(t, b)

	for i := 0; i < 9; i++ {
		require.NotNil(t, p.Alloc())
	}
	require.True(t, p.IsExhausted())
	p.Reset()
	require.Equal(t, addr(b), addr(p.Alloc()), "reset relinks in address order")
}

func TestPool_stress(t *testing.T) {
	p := newPool(t, 64, 1000)

	live := make([][]byte, 0, 1000)
	for round := 0; round < 10; round++ {
		for i := 0; i < 100; i++ {
			b := p.Alloc()
			require.NotNil(t, b)
			live = append(live, b)
		}
		for i := 0; i < 50; i++ {
			require.NoError(t, p.Free(live[len(live)-1]))
			live = live[:len(live)-1]
		}
		checkCounters(t, p, len(live))
	}
	for _, b := range live {
		require.NoError(t, p.Free(b))
	}
	checkCounters(t, p, 0)
}

func TestPool_closeLeak(t *testing.T) {
	var buf bytes.Buffer
	p, err := pool.New(32, 4, pool.WithLogger(log.NewLogfmtLogger(&buf)))
	require.NoError(t, err)

	p.Alloc()
	p.Alloc()
	require.NoError(t, p.Close())
	require.Contains(t, buf.String(), "level=warn")
	require.Contains(t, buf.String(), "blocks=2")
	require.Contains(t, buf.String(), "total=4")

	buf.Reset()
	require.NoError(t, p.Close())
	require.Empty(t, buf.String(), "second close is a no-op")
	require.Nil(t, p.Alloc())
}

func TestPool_closeClean(t *testing.T) {
	var buf bytes.Buffer
	p, err := pool.New(32, 4, pool.WithLogger(log.NewLogfmtLogger(&buf)))
	require.NoError(t, err)

	p.Free(p.Alloc())
	require.NoError(t, p.Close())
	require.Empty(t, buf.String())
}

func TestNewAllocator(t *testing.T) {
	a, err := pool.NewAllocator(pool.Config{BlockSize: 16, NumBlocks: 4}, pool.WithLogger(log.NewNopLogger()))
	require.NoError(t, err)
	require.IsType(t, &pool.Pool{}, a)
	require.NoError(t, a.Close())

	a, err = pool.NewAllocator(pool.Config{BlockSize: 16, NumBlocks: 4, Synchronized: true, Guarded: true}, pool.WithLogger(log.NewNopLogger()))
	require.NoError(t, err)
	require.IsType(t, &pool.SyncPool{}, a)
	var x byte
	require.ErrorIs(t, a.Free(unsafe.Slice(&x, 1)), pool.ErrInvalidPointer)
	require.NoError(t, a.Close())

	a, err = pool.NewAllocator(pool.Config{BlockSize: 16}, pool.WithLogger(log.NewNopLogger()))
	require.ErrorIs(t, err, pool.ErrZeroBlocks)
	require.Nil(t, a)
}

func BenchmarkPool_AllocFree(b *testing.B) {
	p := newPool(b, 64, 1024)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		p.Free(p.Alloc())
	}
}

func BenchmarkSyncPool_AllocFree(b *testing.B) {
	p, err := pool.NewSync(64, 1024, pool.WithLogger(log.NewNopLogger()))
	require.NoError(b, err)
	defer p.Close()
	b.ReportAllocs()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if blk := p.Alloc(); blk != nil {
				p.Free(blk)
			}
		}
	})
}

func TestNewAllocator_keepsCallerOptions(t *testing.T) {
	opts := make([]pool.Option, 1, 2)
	opts[0] = pool.WithLogger(log.NewNopLogger())
	spare := opts[:2]

	a, err := pool.NewAllocator(pool.Config{BlockSize: 16, NumBlocks: 2, Guarded: true}, opts...)
	require.NoError(t, err)
	defer a.Close()
	require.Nil(t, spare[1], "caller's backing array is left alone")
}
