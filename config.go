package main

import (
	"flag"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/funny-falcon/blockpool/pool"
)

type Config struct {
	Pool   pool.Config `yaml:"pool"`
	Bench  BenchConfig `yaml:"bench"`
	Listen string      `yaml:"listen"`

	configFile string
}

type BenchConfig struct {
	Iterations int     `yaml:"iterations"`
	Goroutines int     `yaml:"goroutines"`
	Sizes      intsCSV `yaml:"sizes"`
}

func (cfg *Config) RegisterFlags(f *flag.FlagSet) {
	f.StringVar(&cfg.configFile, "config.file", "", "YAML file to load. Flags given on the command line override it.")
	f.StringVar(&cfg.Listen, "http.listen", "", "Address to serve /stats and /metrics on after the benchmark. Empty disables the server.")
	cfg.Pool.RegisterFlags(f)
	cfg.Bench.RegisterFlags(f)
}

func (cfg *BenchConfig) RegisterFlags(f *flag.FlagSet) {
	cfg.Sizes = intsCSV{16, 64, 256, 1024}
	f.IntVar(&cfg.Iterations, "bench.iterations", 1000000, "Allocate/free pairs per measured run.")
	f.IntVar(&cfg.Goroutines, "bench.goroutines", 4, "Goroutines sharing the synchronized pool in the concurrent run.")
	f.Var(&cfg.Sizes, "bench.sizes", "Comma separated block sizes to benchmark.")
}

func (cfg *Config) Validate() error {
	if err := cfg.Pool.Validate(); err != nil {
		return errors.Wrap(err, "pool")
	}
	if cfg.Bench.Iterations <= 0 {
		return errors.New("bench: iterations must be positive")
	}
	if cfg.Bench.Goroutines <= 0 {
		return errors.New("bench: goroutines must be positive")
	}
	for _, s := range cfg.Bench.Sizes {
		if s <= 0 {
			return errors.Errorf("bench: invalid block size %d", s)
		}
	}
	return nil
}

// loadConfig parses args, then the config file if one was named, then args
// again so that explicit flags win over the file.
func loadConfig(name string, args []string) (Config, error) {
	var cfg Config
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	cfg.RegisterFlags(fs)
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}
	if cfg.configFile != "" {
		buf, err := os.ReadFile(cfg.configFile)
		if err != nil {
			return cfg, errors.Wrap(err, "read config file")
		}
		if err := yaml.Unmarshal(buf, &cfg); err != nil {
			return cfg, errors.Wrapf(err, "parse config file %s", cfg.configFile)
		}
		if err := fs.Parse(args); err != nil {
			return cfg, err
		}
	}
	return cfg, cfg.Validate()
}

// intsCSV is a list of ints given as one comma separated flag.
type intsCSV []int

func (v intsCSV) String() string {
	s := make([]string, len(v))
	for i, n := range v {
		s[i] = strconv.Itoa(n)
	}
	return strings.Join(s, ",")
}

func (v *intsCSV) Set(s string) error {
	var r intsCSV
	for _, f := range strings.Split(s, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil {
			return errors.Wrapf(err, "parse %q", f)
		}
		r = append(r, n)
	}
	*v = r
	return nil
}
