// Package observability provides the in-process metrics registry, the
// Prometheus text exporter and the component health monitor used by the
// API server.
package observability

import (
	"sync"
	"sync/atomic"
	"time"
)

// MetricType identifies the kind of metric.
type MetricType string

const (
	MetricCounter MetricType = "counter"
	MetricGauge   MetricType = "gauge"
)

// MetricEntry is a point-in-time snapshot of one metric.
type MetricEntry struct {
	Name      string     `json:"name"`
	Type      MetricType `json:"type"`
	Help      string     `json:"help"`
	Value     float64    `json:"value"`
	Timestamp time.Time  `json:"ts"`
}

// Counter is a monotonically increasing counter, lock-free via atomics.
type Counter struct {
	name  string
	help  string
	value atomic.Int64
}

// Inc increments the counter by 1.
func (c *Counter) Inc() {
	c.value.Add(1)
}

// Add increments the counter by delta. Negative deltas are ignored.
func (c *Counter) Add(delta int64) {
	if delta < 0 {
		return
	}
	c.value.Add(delta)
}

// Value returns the current counter value.
func (c *Counter) Value() int64 {
	return c.value.Load()
}

// Gauge is a value that can go up and down. Stored as value*1000 so three
// decimal places survive the atomic representation.
type Gauge struct {
	name  string
	help  string
	value atomic.Int64
}

// Set sets the gauge.
func (g *Gauge) Set(v float64) {
	g.value.Store(int64(v * 1000))
}

// Value returns the current gauge value.
func (g *Gauge) Value() float64 {
	return float64(g.value.Load()) / 1000.0
}

// Registry holds all named metrics. Registering the same name twice
// returns the existing metric.
type Registry struct {
	mu       sync.RWMutex
	counters map[string]*Counter
	gauges   map[string]*Gauge

	// gaugeFuncs are sampled at export time, for values owned elsewhere
	// (graph node counts, memory failures).
	gaugeFuncs map[string]gaugeFunc
}

type gaugeFunc struct {
	help string
	fn   func() float64
}

// NewRegistry creates an empty metrics registry.
func NewRegistry() *Registry {
	return &Registry{
		counters:   make(map[string]*Counter),
		gauges:     make(map[string]*Gauge),
		gaugeFuncs: make(map[string]gaugeFunc),
	}
}

// Counter registers (or fetches) a counter.
func (r *Registry) Counter(name, help string) *Counter {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.counters[name]; ok {
		return c
	}
	c := &Counter{name: name, help: help}
	r.counters[name] = c
	return c
}

// Gauge registers (or fetches) a gauge.
func (r *Registry) Gauge(name, help string) *Gauge {
	r.mu.Lock()
	defer r.mu.Unlock()
	if g, ok := r.gauges[name]; ok {
		return g
	}
	g := &Gauge{name: name, help: help}
	r.gauges[name] = g
	return g
}

// GaugeFunc registers a gauge sampled lazily at export time.
func (r *Registry) GaugeFunc(name, help string, fn func() float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gaugeFuncs[name] = gaugeFunc{help: help, fn: fn}
}

// AllMetrics returns a snapshot of every registered metric.
func (r *Registry) AllMetrics() []MetricEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	now := time.Now()
	out := make([]MetricEntry, 0, len(r.counters)+len(r.gauges)+len(r.gaugeFuncs))
	for _, c := range r.counters {
		out = append(out, MetricEntry{Name: c.name, Type: MetricCounter, Help: c.help, Value: float64(c.Value()), Timestamp: now})
	}
	for _, g := range r.gauges {
		out = append(out, MetricEntry{Name: g.name, Type: MetricGauge, Help: g.help, Value: g.Value(), Timestamp: now})
	}
	for name, gf := range r.gaugeFuncs {
		out = append(out, MetricEntry{Name: name, Type: MetricGauge, Help: gf.help, Value: gf.fn(), Timestamp: now})
	}
	return out
}
