package pool

import (
	"sync"

	"go.uber.org/atomic"
)

// SyncPool is a Pool whose mutating operations are serialised by one
// pool-wide mutex. Queries do not take the lock; they read a snapshot of the
// free count that is republished after every mutation.
type SyncPool struct {
	mu   sync.Mutex
	p    Pool
	free atomic.Int64
}

var _ Allocator = (*SyncPool)(nil)

func NewSync(blockSize, numBlocks int, opts ...Option) (*SyncPool, error) {
	s := &SyncPool{}
	if err := s.p.init(blockSize, numBlocks, buildOptions(opts)); err != nil {
		return nil, err
	}
	s.publish()
	return s, nil
}

func (s *SyncPool) publish() {
	s.free.Store(int64(s.p.free))
}

func (s *SyncPool) Alloc() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.p.Alloc()
	s.publish()
	return b
}

func (s *SyncPool) Free(b []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.p.Free(b)
	s.publish()
	return err
}

func (s *SyncPool) AllocInto(pptr interface{}) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	ok := s.p.AllocInto(pptr)
	s.publish()
	return ok
}

func (s *SyncPool) FreeObject(obj interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.p.FreeObject(obj)
	s.publish()
	return err
}

func (s *SyncPool) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.p.Reset()
	s.publish()
}

func (s *SyncPool) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.p.Close()
}

func (s *SyncPool) IsExhausted() bool { return s.free.Load() == 0 }

func (s *SyncPool) UsedBlocks() int { return s.p.total - int(s.free.Load()) }

func (s *SyncPool) FreeBlocks() int { return int(s.free.Load()) }

func (s *SyncPool) BlockSize() int { return s.p.blockSize }

func (s *SyncPool) TotalBlocks() int { return s.p.total }
