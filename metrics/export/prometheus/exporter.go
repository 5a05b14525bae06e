package prometheus

import (
	"net/http"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sentinelgrid/authcore"
	"github.com/sentinelgrid/authcore/metrics/export/internaldefs"
)

// MetricsSource is satisfied by [*authcore.Engine].
type MetricsSource interface {
	MetricsSnapshot() authcore.MetricsSnapshot
}

type counterDesc struct {
	id   authcore.MetricID
	desc *prom.Desc
}

// Collector converts engine snapshots into const metrics at scrape time.
type Collector struct {
	source     MetricsSource
	counters   []counterDesc
	histograms []counterDesc
}

var _ prom.Collector = (*Collector)(nil)

// NewCollector creates a collector over source.
func NewCollector(source MetricsSource) *Collector {
	c := &Collector{source: source}
	for _, def := range internaldefs.CounterDefs {
		c.counters = append(c.counters, counterDesc{id: def.ID, desc: prom.NewDesc(def.Name, def.Help, nil, nil)})
	}
	for _, def := range internaldefs.HistogramDefs {
		c.histograms = append(c.histograms, counterDesc{id: def.ID, desc: prom.NewDesc(def.Name, def.Help, nil, nil)})
	}
	return c
}

func (c *Collector) Describe(ch chan<- *prom.Desc) {
	for _, d := range c.counters {
		ch <- d.desc
	}
	for _, d := range c.histograms {
		ch <- d.desc
	}
}

// Collect emits every counter. Histograms are emitted only when the engine
// records latency, matching what the snapshot contains.
func (c *Collector) Collect(ch chan<- prom.Metric) {
	if c == nil || c.source == nil {
		return
	}
	snapshot := c.source.MetricsSnapshot()

	for _, d := range c.counters {
		ch <- prom.MustNewConstMetric(d.desc, prom.CounterValue, float64(snapshot.Counters[d.id]))
	}

	for _, d := range c.histograms {
		raw, ok := snapshot.Histograms[d.id]
		if !ok {
			continue
		}
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(raw))
		buckets := make(map[float64]uint64, len(internaldefs.HistogramUpperBounds))
		for i, le := range internaldefs.HistogramUpperBounds {
			buckets[le] = cumulative[i]
		}
		// The snapshot has no sum.
		ch <- prom.MustNewConstHistogram(d.desc, cumulative[len(cumulative)-1], 0, buckets)
	}
}

// Handler serves a private registry holding only this collector.
func (c *Collector) Handler() http.Handler {
	reg := prom.NewRegistry()
	reg.MustRegister(c)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
