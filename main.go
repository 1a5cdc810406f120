package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/valyala/fasthttp"

	"github.com/funny-falcon/blockpool/pool"
)

func main() {
	logger := log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
	logger = log.With(logger, "ts", log.DefaultTimestampUTC, "caller", log.DefaultCaller)

	cfg, err := loadConfig(os.Args[0], os.Args[1:])
	if err != nil {
		level.Error(logger).Log("msg", "invalid configuration", "err", err)
		os.Exit(1)
	}

	rep, err := runBench(cfg, logger)
	if err != nil {
		level.Error(logger).Log("msg", "benchmark failed", "err", err)
		os.Exit(1)
	}
	out, err := jsonConfig.MarshalIndent(rep, "", "  ")
	if err != nil {
		level.Error(logger).Log("msg", "encode report", "err", err)
		os.Exit(1)
	}
	if _, err := os.Stdout.Write(append(out, '\n')); err != nil {
		level.Error(logger).Log("msg", "write report", "err", err)
		os.Exit(1)
	}

	if cfg.Listen == "" {
		return
	}
	if err := serve(cfg, logger); err != nil {
		level.Error(logger).Log("msg", "server stopped", "err", err)
		os.Exit(1)
	}
}

func serve(cfg Config, logger log.Logger) error {
	// Handlers and scrapes run concurrently.
	cfg.Pool.Synchronized = true
	demo, err := pool.NewAllocator(cfg.Pool, pool.WithLogger(logger))
	if err != nil {
		return err
	}
	defer func() {
		if err := demo.Close(); err != nil {
			level.Error(logger).Log("msg", "close demo pool", "err", err)
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(pool.NewCollector("demo", demo))

	srv := &fasthttp.Server{
		Handler: newServer(demo, reg, logger).handler,
		Name:    "blockpool",
	}
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig
		level.Info(logger).Log("msg", "shutting down")
		srv.Shutdown()
	}()

	level.Info(logger).Log("msg", "listening", "addr", cfg.Listen)
	return srv.ListenAndServe(cfg.Listen)
}
