package pool

import "github.com/prometheus/client_golang/prometheus"

// Collector exposes a pool's counters to Prometheus. Values are read at
// scrape time, so the pool pays nothing per operation.
type Collector struct {
	usage Usage

	blocks     *prometheus.Desc
	freeBlocks *prometheus.Desc
	usedBlocks *prometheus.Desc
	blockSize  *prometheus.Desc
	exhausted  *prometheus.Desc
}

func NewCollector(name string, u Usage) *Collector {
	labels := prometheus.Labels{"pool": name}
	return &Collector{
		usage:      u,
		blocks:     prometheus.NewDesc("blockpool_blocks", "Number of blocks reserved by the pool.", nil, labels),
		freeBlocks: prometheus.NewDesc("blockpool_free_blocks", "Number of blocks available for allocation.", nil, labels),
		usedBlocks: prometheus.NewDesc("blockpool_used_blocks", "Number of blocks currently handed out.", nil, labels),
		blockSize:  prometheus.NewDesc("blockpool_block_size_bytes", "Aligned size of a single block.", nil, labels),
		exhausted:  prometheus.NewDesc("blockpool_exhausted", "1 if every block is handed out.", nil, labels),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.blocks
	ch <- c.freeBlocks
	ch <- c.usedBlocks
	ch <- c.blockSize
	ch <- c.exhausted
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	free := c.usage.FreeBlocks()
	total := c.usage.TotalBlocks()
	exhausted := 0.0
	if free == 0 {
		exhausted = 1
	}
	ch <- prometheus.MustNewConstMetric(c.blocks, prometheus.GaugeValue, float64(total))
	ch <- prometheus.MustNewConstMetric(c.freeBlocks, prometheus.GaugeValue, float64(free))
	ch <- prometheus.MustNewConstMetric(c.usedBlocks, prometheus.GaugeValue, float64(total-free))
	ch <- prometheus.MustNewConstMetric(c.blockSize, prometheus.GaugeValue, float64(c.usage.BlockSize()))
	ch <- prometheus.MustNewConstMetric(c.exhausted, prometheus.GaugeValue, exhausted)
}
