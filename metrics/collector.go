// Package metrics exports ring buffer state to Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/five-vee/ringpipe"
)

// Source is the part of a Sequencer the collector reads.
type Source interface {
	Cursor() *ringpipe.Sequence
	RemainingCapacity() int64
	Stats() ringpipe.Stats
}

// Collector is a prometheus.Collector reporting the state of one ring
// buffer. Values are read at scrape time; nothing is recorded on the hot
// path beyond the sequencer's own counters.
type Collector struct {
	source Source

	cursor            *prometheus.Desc
	remainingCapacity *prometheus.Desc
	claims            *prometheus.Desc
	claimRetries      *prometheus.Desc
	backpressureWaits *prometheus.Desc
}

// NewCollector returns a Collector labelling every metric with ring=name.
func NewCollector(name string, source Source) *Collector {
	labels := prometheus.Labels{"ring": name}
	return &Collector{
		source: source,
		cursor: prometheus.NewDesc("ringpipe_cursor",
			"Highest published sequence.", nil, labels),
		remainingCapacity: prometheus.NewDesc("ringpipe_remaining_capacity",
			"Slots that can be claimed without blocking.", nil, labels),
		claims: prometheus.NewDesc("ringpipe_claims_total",
			"Successful claims.", nil, labels),
		claimRetries: prometheus.NewDesc("ringpipe_claim_retries_total",
			"Claim attempts lost to a concurrent producer.", nil, labels),
		backpressureWaits: prometheus.NewDesc("ringpipe_backpressure_waits_total",
			"Claims that had to wait for a slow consumer.", nil, labels),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.cursor
	ch <- c.remainingCapacity
	ch <- c.claims
	ch <- c.claimRetries
	ch <- c.backpressureWaits
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	stats := c.source.Stats()
	ch <- prometheus.MustNewConstMetric(c.cursor, prometheus.GaugeValue, float64(c.source.Cursor().Get()))
	ch <- prometheus.MustNewConstMetric(c.remainingCapacity, prometheus.GaugeValue, float64(c.source.RemainingCapacity()))
	ch <- prometheus.MustNewConstMetric(c.claims, prometheus.CounterValue, float64(stats.Claims))
	ch <- prometheus.MustNewConstMetric(c.claimRetries, prometheus.CounterValue, float64(stats.ClaimRetries))
	ch <- prometheus.MustNewConstMetric(c.backpressureWaits, prometheus.CounterValue, float64(stats.BackpressureWaits))
}
