package metrics

import (
	"net/http"
	"sort"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusExporter serves metrics in Prometheus text exposition format at
// the /metrics HTTP endpoint. It bridges a Registry's dynamically-created
// counters, gauges, and histograms into a real prometheus.Registry, and
// supports custom collector registration alongside Go runtime metrics.

// PrometheusConfig configures the Prometheus exporter.
type PrometheusConfig struct {
	// Namespace is an optional prefix prepended to all metric names
	// (e.g. "ledgernode" produces "ledgernode_chain_height").
	Namespace string
	// EnableRuntime controls whether Go runtime and process metrics
	// (goroutines, memory, GC, open fds) are included in the output.
	EnableRuntime bool
	// Path is the HTTP path to serve metrics on (default "/metrics").
	Path string
}

// DefaultPrometheusConfig returns a config with sensible defaults.
func DefaultPrometheusConfig() PrometheusConfig {
	return PrometheusConfig{
		Namespace:     "ledgernode",
		EnableRuntime: true,
		Path:          "/metrics",
	}
}

// CustomCollector is an interface for registering arbitrary metric producers
// that are called during each scrape.
type CustomCollector interface {
	// Collect returns the data points to expose on this scrape, one
	// MetricLine (name, labels, value) per sample.
	Collect() []MetricLine
}

// MetricLine represents a single Prometheus metric data point with optional labels.
type MetricLine struct {
	Name   string
	Labels map[string]string
	Value  float64
}

// PrometheusExporter formats and serves metrics over HTTP.
type PrometheusExporter struct {
	mu         sync.RWMutex
	config     PrometheusConfig
	registry   *Registry
	promReg    *prometheus.Registry
	collectors map[string]CustomCollector
}

// NewPrometheusExporter creates a new exporter that reads from the given
// registry and wires it into a fresh prometheus.Registry.
func NewPrometheusExporter(registry *Registry, config PrometheusConfig) *PrometheusExporter {
	if config.Path == "" {
		config.Path = "/metrics"
	}
	pe := &PrometheusExporter{
		config:     config,
		registry:   registry,
		promReg:    prometheus.NewRegistry(),
		collectors: make(map[string]CustomCollector),
	}
	pe.promReg.MustRegister(&bridgeCollector{pe: pe})
	if config.EnableRuntime {
		pe.promReg.MustRegister(collectors.NewGoCollector())
		pe.promReg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	return pe
}

// RegisterCollector adds a named custom collector. If a collector with the
// same name exists, it is replaced.
func (pe *PrometheusExporter) RegisterCollector(name string, c CustomCollector) {
	pe.mu.Lock()
	defer pe.mu.Unlock()
	pe.collectors[name] = c
}

// UnregisterCollector removes a previously registered custom collector.
func (pe *PrometheusExporter) UnregisterCollector(name string) {
	pe.mu.Lock()
	defer pe.mu.Unlock()
	delete(pe.collectors, name)
}

// Handler returns an http.Handler that serves the /metrics endpoint using
// the standard Prometheus exposition format.
func (pe *PrometheusExporter) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(pe.config.Path, promhttp.HandlerFor(pe.promReg, promhttp.HandlerOpts{}))
	return mux
}

// promName converts a dot-separated metric name to Prometheus format: dots
// and dashes become underscores, and the namespace prefix is prepended.
func (pe *PrometheusExporter) promName(name string) string {
	b := []byte(name)
	for i, c := range b {
		if c == '.' || c == '-' {
			b[i] = '_'
		}
	}
	sanitized := string(b)
	if pe.config.Namespace != "" {
		return pe.config.Namespace + "_" + sanitized
	}
	return sanitized
}

// bridgeCollector adapts a Registry's get-or-create counters/gauges/
// histograms, plus any registered CustomCollectors, into a
// prometheus.Collector. It sends no descriptors in Describe because metric
// names appear dynamically as Registry.Counter/Gauge/Histogram are called;
// the prometheus client treats such a collector as unchecked, which is the
// documented pattern for collectors wrapping a dynamically-named metric
// store.
type bridgeCollector struct {
	pe *PrometheusExporter
}

func (c *bridgeCollector) Describe(ch chan<- *prometheus.Desc) {}

func (c *bridgeCollector) Collect(ch chan<- prometheus.Metric) {
	pe := c.pe

	pe.registry.mu.RLock()
	for name, ctr := range pe.registry.counters {
		desc := prometheus.NewDesc(pe.promName(name), name, nil, nil)
		ch <- prometheus.MustNewConstMetric(desc, prometheus.CounterValue, float64(ctr.Value()))
	}
	for name, g := range pe.registry.gauges {
		desc := prometheus.NewDesc(pe.promName(name), name, nil, nil)
		ch <- prometheus.MustNewConstMetric(desc, prometheus.GaugeValue, float64(g.Value()))
	}
	for name, h := range pe.registry.histograms {
		desc := prometheus.NewDesc(pe.promName(name), name, nil, nil)
		count := h.Count()
		quantiles := map[float64]float64{}
		if count > 0 {
			quantiles[0.5] = h.Mean()
			quantiles[1.0] = h.Max()
			quantiles[0.0] = h.Min()
		}
		ch <- prometheus.MustNewConstSummary(desc, uint64(count), h.Sum(), quantiles)
	}
	pe.registry.mu.RUnlock()

	pe.mu.RLock()
	custom := make(map[string]CustomCollector, len(pe.collectors))
	for k, v := range pe.collectors {
		custom[k] = v
	}
	pe.mu.RUnlock()

	for _, cc := range custom {
		for _, line := range cc.Collect() {
			labelNames := make([]string, 0, len(line.Labels))
			for k := range line.Labels {
				labelNames = append(labelNames, k)
			}
			sort.Strings(labelNames)
			labelValues := make([]string, len(labelNames))
			for i, k := range labelNames {
				labelValues[i] = line.Labels[k]
			}
			desc := prometheus.NewDesc(pe.promName(line.Name), line.Name, labelNames, nil)
			ch <- prometheus.MustNewConstMetric(desc, prometheus.GaugeValue, line.Value, labelValues...)
		}
	}
}
