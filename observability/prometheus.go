package observability

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var nameReplacer = strings.NewReplacer(".", "_", "-", "_")

// PrometheusFactory is a MetricFactory backed by Prometheus collectors.
// Dotted names become underscored; counters get a _total suffix. Asking for
// the same name twice returns the same collector.
type PrometheusFactory struct {
	reg prometheus.Registerer

	mu         sync.Mutex
	counters   map[string]prometheus.Counter
	histograms map[string]prometheus.Histogram
}

// NewPrometheusFactory creates a factory registering on reg. A nil reg uses
// prometheus.DefaultRegisterer.
func NewPrometheusFactory(reg prometheus.Registerer) *PrometheusFactory {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return &PrometheusFactory{
		reg:        reg,
		counters:   map[string]prometheus.Counter{},
		histograms: map[string]prometheus.Histogram{},
	}
}

// Counter implements MetricFactory.
func (f *PrometheusFactory) Counter(name string) Counter {
	f.mu.Lock()
	defer f.mu.Unlock()

	if c, ok := f.counters[name]; ok {
		return c
	}
	c := prometheus.NewCounter(prometheus.CounterOpts{
		Name: nameReplacer.Replace(name) + "_total",
		Help: "Count of " + name + " events.",
	})
	f.reg.MustRegister(c)
	f.counters[name] = c
	return c
}

// Histogram implements MetricFactory.
func (f *PrometheusFactory) Histogram(name string) Histogram {
	f.mu.Lock()
	defer f.mu.Unlock()

	if h, ok := f.histograms[name]; ok {
		return h
	}
	h := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    nameReplacer.Replace(name),
		Help:    "Distribution of " + name + ".",
		Buckets: []float64{0, 1, 4, 13, 26, 52, 104, 208},
	})
	f.reg.MustRegister(h)
	f.histograms[name] = h
	return h
}
