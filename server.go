package main

import (
	"sync"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	jsoniter "github.com/json-iterator/go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"

	"github.com/funny-falcon/blockpool/pool"
)

var jsonConfig = jsoniter.ConfigFastest

type stats struct {
	BlockSize   int  `json:"block_size"`
	TotalBlocks int  `json:"total_blocks"`
	FreeBlocks  int  `json:"free_blocks"`
	UsedBlocks  int  `json:"used_blocks"`
	Exhausted   bool `json:"exhausted"`
	Held        int  `json:"held"`
}

// server exposes a demo pool over HTTP. Blocks allocated through /alloc are
// kept on a stack and returned by /free, most recent first.
type server struct {
	mu      sync.Mutex
	pool    pool.Allocator
	held    [][]byte
	logger  log.Logger
	metrics fasthttp.RequestHandler
}

func newServer(p pool.Allocator, reg prometheus.Gatherer, logger log.Logger) *server {
	return &server{
		pool:    p,
		logger:  logger,
		metrics: fasthttpadaptor.NewFastHTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})),
	}
}

func (s *server) handler(ctx *fasthttp.RequestCtx) {
	switch string(ctx.Path()) {
	case "/stats":
		if !ctx.IsGet() {
			ctx.SetStatusCode(fasthttp.StatusMethodNotAllowed)
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		s.writeStats(ctx)
	case "/metrics":
		s.metrics(ctx)
	case "/alloc":
		s.mutate(ctx, s.alloc)
	case "/free":
		s.mutate(ctx, s.free)
	case "/reset":
		s.mutate(ctx, s.reset)
	default:
		ctx.SetStatusCode(fasthttp.StatusNotFound)
	}
}

func (s *server) mutate(ctx *fasthttp.RequestCtx, op func(*fasthttp.RequestCtx) bool) {
	if !ctx.IsPost() {
		ctx.SetStatusCode(fasthttp.StatusMethodNotAllowed)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if op(ctx) {
		s.writeStats(ctx)
	}
}

func (s *server) alloc(ctx *fasthttp.RequestCtx) bool {
	b := s.pool.Alloc()
	if b == nil {
		ctx.SetStatusCode(fasthttp.StatusServiceUnavailable)
		s.writeStats(ctx)
		return false
	}
	s.held = append(s.held, b)
	return true
}

func (s *server) free(ctx *fasthttp.RequestCtx) bool {
	if len(s.held) == 0 {
		ctx.SetStatusCode(fasthttp.StatusConflict)
		return false
	}
	b := s.held[len(s.held)-1]
	if err := s.pool.Free(b); err != nil {
		level.Error(s.logger).Log("msg", "free failed", "err", err)
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)
		return false
	}
	s.held = s.held[:len(s.held)-1]
	return true
}

func (s *server) reset(*fasthttp.RequestCtx) bool {
	s.pool.Reset()
	s.held = s.held[:0]
	return true
}

func (s *server) writeStats(ctx *fasthttp.RequestCtx) {
	st := stats{
		BlockSize:   s.pool.BlockSize(),
		TotalBlocks: s.pool.TotalBlocks(),
		FreeBlocks:  s.pool.FreeBlocks(),
		UsedBlocks:  s.pool.UsedBlocks(),
		Exhausted:   s.pool.IsExhausted(),
		Held:        len(s.held),
	}
	stream := jsonConfig.BorrowStream(nil)
	stream.WriteVal(st)
	ctx.SetContentType("application/json")
	ctx.SetBody(stream.Buffer())
	jsonConfig.ReturnStream(stream)
}
