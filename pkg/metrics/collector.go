// Package metrics exports binding and command queue counters to Prometheus.
package metrics

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/veesix-networks/vppom/pkg/binding"
	"github.com/veesix-networks/vppom/pkg/events"
	"github.com/veesix-networks/vppom/pkg/logger"
)

const namespace = "vppom"

// StatsSource is satisfied by every binding.Manager.
type StatsSource interface {
	Stats() binding.Stats
}

// QueueSource is satisfied by *hw.Queue.
type QueueSource interface {
	Metrics() map[string]uint64
}

// EventSource is satisfied by every events.Bus.
type EventSource interface {
	Stats() events.Stats
}

type Collector struct {
	logger   *slog.Logger
	queue    QueueSource
	bindings []StatsSource
	events   EventSource

	total    *prometheus.Desc
	bound    *prometheus.Desc
	failed   *prometheus.Desc
	commands *prometheus.Desc
	writes   *prometheus.Desc
	faults   *prometheus.Desc
	depth    *prometheus.Desc

	published *prometheus.Desc
	dropped   *prometheus.Desc
	backlog   *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector reports on queue (may be nil) and every binding flavour.
func NewCollector(queue QueueSource, bindings ...StatsSource) *Collector {
	flavour := []string{"flavour"}
	return &Collector{
		logger:   logger.Get(logger.Metrics),
		queue:    queue,
		bindings: bindings,
		total: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "bindings", "total"),
			"Live bindings.", flavour, nil),
		bound: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "bindings", "bound"),
			"Bindings programmed in the dataplane.", flavour, nil),
		failed: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "bindings", "failed"),
			"Bindings whose last command was rejected.", flavour, nil),
		commands: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "hw", "commands_total"),
			"Commands by outcome.", []string{"result"}, nil),
		writes: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "hw", "writes_total"),
			"Flushes of the command queue.", nil, nil),
		faults: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "hw", "faults_total"),
			"Flushes that could not reach the dataplane.", nil, nil),
		depth: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "hw", "queue_depth"),
			"Commands waiting for the next flush.", nil, nil),
		published: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "events", "published_total"),
			"Binding events handed to the bus.", nil, nil),
		dropped: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "events", "dropped_total"),
			"Binding events dropped on a full bus.", nil, nil),
		backlog: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "events", "backlog"),
			"Events waiting for delivery.", nil, nil),
	}
}

// WatchEvents adds the bus counters to the collected metrics.
func (c *Collector) WatchEvents(src EventSource) *Collector {
	c.events = src
	return c
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.total
	ch <- c.bound
	ch <- c.failed
	if c.queue != nil {
		ch <- c.commands
		ch <- c.writes
		ch <- c.faults
		ch <- c.depth
	}
	if c.events != nil {
		ch <- c.published
		ch <- c.dropped
		ch <- c.backlog
	}
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for _, src := range c.bindings {
		s := src.Stats()
		ch <- prometheus.MustNewConstMetric(c.total, prometheus.GaugeValue, float64(s.Total), s.Flavour)
		ch <- prometheus.MustNewConstMetric(c.bound, prometheus.GaugeValue, float64(s.Bound), s.Flavour)
		ch <- prometheus.MustNewConstMetric(c.failed, prometheus.GaugeValue, float64(s.Failed), s.Flavour)
	}

	if c.events != nil {
		s := c.events.Stats()
		ch <- prometheus.MustNewConstMetric(c.published, prometheus.CounterValue, float64(s.Published))
		ch <- prometheus.MustNewConstMetric(c.dropped, prometheus.CounterValue, float64(s.Dropped))
		ch <- prometheus.MustNewConstMetric(c.backlog, prometheus.GaugeValue, float64(s.PublishChLen))
	}

	if c.queue == nil {
		return
	}
	m := c.queue.Metrics()
	for _, result := range []string{"issued", "failed", "retired"} {
		ch <- prometheus.MustNewConstMetric(c.commands, prometheus.CounterValue, float64(m[result]), result)
	}
	ch <- prometheus.MustNewConstMetric(c.writes, prometheus.CounterValue, float64(m["writes"]))
	ch <- prometheus.MustNewConstMetric(c.faults, prometheus.CounterValue, float64(m["faults"]))
	ch <- prometheus.MustNewConstMetric(c.depth, prometheus.GaugeValue, float64(m["queue_current"]))
	c.logger.Debug("Collected metrics", "flavours", len(c.bindings))
}
