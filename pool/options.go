package pool

import (
	"flag"
	"os"

	"github.com/go-kit/log"
)

// Config holds the construction parameters of a pool.
type Config struct {
	BlockSize    int  `yaml:"block_size"`
	NumBlocks    int  `yaml:"num_blocks"`
	Synchronized bool `yaml:"synchronized"`
	Guarded      bool `yaml:"guarded"`
}

// RegisterFlags adds the flags required to config this to the given FlagSet.
func (cfg *Config) RegisterFlags(f *flag.FlagSet) {
	cfg.RegisterFlagsWithPrefix("pool.", f)
}

// RegisterFlagsWithPrefix adds the flags required to config this to the given FlagSet, with prefix.
func (cfg *Config) RegisterFlagsWithPrefix(prefix string, f *flag.FlagSet) {
	f.IntVar(&cfg.BlockSize, prefix+"block-size", 64, "Requested size of every block in bytes, before alignment.")
	f.IntVar(&cfg.NumBlocks, prefix+"num-blocks", 1024, "Number of blocks reserved up front. The pool never grows.")
	f.BoolVar(&cfg.Synchronized, prefix+"synchronized", false, "Guard the pool with a mutex so it can be shared between goroutines.")
	f.BoolVar(&cfg.Guarded, prefix+"guarded", false, "Validate pointers passed to Free and detect double frees.")
}

func (cfg *Config) Validate() error {
	if cfg.BlockSize <= 0 {
		return ErrInvalidBlockSize
	}
	if cfg.NumBlocks <= 0 {
		return ErrZeroBlocks
	}
	return nil
}

type options struct {
	logger  log.Logger
	guarded bool
}

type Option func(*options)

// WithLogger sets the logger the pool reports diagnostics to.
func WithLogger(l log.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithGuard turns on pointer validation and double free detection in Free.
func WithGuard() Option {
	return func(o *options) {
		o.guarded = true
	}
}

func buildOptions(opts []Option) options {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
	}
	return o
}

// NewAllocator builds the pool variant selected by cfg.
func NewAllocator(cfg Config, opts ...Option) (Allocator, error) {
	if cfg.Guarded {
		opts = append(opts[:len(opts):len(opts)], WithGuard())
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Synchronized {
		s, err := NewSync(cfg.BlockSize, cfg.NumBlocks, opts...)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	p, err := New(cfg.BlockSize, cfg.NumBlocks, opts...)
	if err != nil {
		return nil, err
	}
	return p, nil
}
