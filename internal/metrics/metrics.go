// Package metrics provides Prometheus-compatible counters and histograms.
//
// Metrics are registered on a Registry and exposed in the Prometheus text
// format, either written directly or served over HTTP. All operations are
// safe for concurrent use; counters never take a lock.
package metrics

import (
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Labels are constant label pairs attached to a metric.
type Labels map[string]string

// String renders labels as {k="v",...} with sorted keys.
func (l Labels) String() string {
	if len(l) == 0 {
		return ""
	}
	keys := make([]string, 0, len(l))
	for k := range l {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(l))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf(`%s=%q`, k, l[k]))
	}
	return "{" + strings.Join(parts, ",") + "}"
}

// withLE appends the le label used by histogram buckets.
func (l Labels) withLE(le string) string {
	s := l.String()
	if s == "" {
		return fmt.Sprintf(`{le=%q}`, le)
	}
	return s[:len(s)-1] + fmt.Sprintf(`,le=%q}`, le)
}

// Counter is a monotonically increasing count.
type Counter struct {
	name   string
	help   string
	labels Labels
	value  atomic.Uint64
}

// Inc adds one.
func (c *Counter) Inc() {
	c.value.Add(1)
}

// Add adds v.
func (c *Counter) Add(v uint64) {
	c.value.Add(v)
}

// Value returns the current count.
func (c *Counter) Value() uint64 {
	return c.value.Load()
}

// Histogram tracks a distribution over fixed buckets.
type Histogram struct {
	name    string
	help    string
	labels  Labels
	buckets []float64

	mu     sync.Mutex
	counts []uint64 // per bucket, last is +Inf
	sum    float64
	count  uint64
}

// LatencyBuckets suit network round trips, in seconds.
var LatencyBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}

// Observe records v.
func (h *Histogram) Observe(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.sum += v
	h.count++
	// Buckets are upper-inclusive.
	idx := sort.SearchFloat64s(h.buckets, v)
	h.counts[idx]++
}

// ObserveDuration records d in seconds.
func (h *Histogram) ObserveDuration(d time.Duration) {
	h.Observe(d.Seconds())
}

// Count returns the number of observations.
func (h *Histogram) Count() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.count
}

// Sum returns the total of observed values.
func (h *Histogram) Sum() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sum
}

// Registry holds named metrics.
type Registry struct {
	namespace string

	mu         sync.RWMutex
	counters   map[string]*Counter
	histograms map[string]*Histogram
}

// NewRegistry creates an empty registry. Names are prefixed with
// namespace and an underscore.
func NewRegistry(namespace string) *Registry {
	return &Registry{
		namespace:  namespace,
		counters:   make(map[string]*Counter),
		histograms: make(map[string]*Histogram),
	}
}

func (r *Registry) fullName(name string) string {
	if r.namespace == "" {
		return name
	}
	return r.namespace + "_" + name
}

func key(name string, labels Labels) string {
	return name + labels.String()
}

// Counter returns the counter for name and labels, creating it on first use.
func (r *Registry) Counter(name, help string, labels Labels) *Counter {
	full := r.fullName(name)
	k := key(full, labels)

	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.counters[k]; ok {
		return c
	}
	c := &Counter{name: full, help: help, labels: labels}
	r.counters[k] = c
	return c
}

// Histogram returns the histogram for name and labels, creating it on first
// use. Nil buckets mean LatencyBuckets.
func (r *Registry) Histogram(name, help string, labels Labels, buckets []float64) *Histogram {
	full := r.fullName(name)
	k := key(full, labels)

	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok := r.histograms[k]; ok {
		return h
	}
	if buckets == nil {
		buckets = LatencyBuckets
	}
	sorted := append([]float64(nil), buckets...)
	sort.Float64s(sorted)
	h := &Histogram{
		name:    full,
		help:    help,
		labels:  labels,
		buckets: sorted,
		counts:  make([]uint64, len(sorted)+1),
	}
	r.histograms[k] = h
	return h
}

// WritePrometheus writes all metrics in the Prometheus text format, sorted
// by name so output is stable.
func (r *Registry) WritePrometheus(w io.Writer) error {
	r.mu.RLock()
	counters := make([]*Counter, 0, len(r.counters))
	for _, c := range r.counters {
		counters = append(counters, c)
	}
	histograms := make([]*Histogram, 0, len(r.histograms))
	for _, h := range r.histograms {
		histograms = append(histograms, h)
	}
	r.mu.RUnlock()

	sort.Slice(counters, func(i, j int) bool {
		return key(counters[i].name, counters[i].labels) < key(counters[j].name, counters[j].labels)
	})
	sort.Slice(histograms, func(i, j int) bool {
		return key(histograms[i].name, histograms[i].labels) < key(histograms[j].name, histograms[j].labels)
	})

	var b strings.Builder
	seen := make(map[string]bool)
	header := func(name, help, typ string) {
		if seen[name] {
			return
		}
		seen[name] = true
		fmt.Fprintf(&b, "# HELP %s %s\n# TYPE %s %s\n", name, help, name, typ)
	}

	for _, c := range counters {
		header(c.name, c.help, "counter")
		fmt.Fprintf(&b, "%s%s %d\n", c.name, c.labels.String(), c.Value())
	}

	for _, h := range histograms {
		header(h.name, h.help, "histogram")
		h.mu.Lock()
		var cumulative uint64
		for i, upper := range h.buckets {
			cumulative += h.counts[i]
			fmt.Fprintf(&b, "%s_bucket%s %d\n", h.name, h.labels.withLE(fmt.Sprintf("%g", upper)), cumulative)
		}
		cumulative += h.counts[len(h.buckets)]
		fmt.Fprintf(&b, "%s_bucket%s %d\n", h.name, h.labels.withLE("+Inf"), cumulative)
		fmt.Fprintf(&b, "%s_sum%s %g\n", h.name, h.labels.String(), h.sum)
		fmt.Fprintf(&b, "%s_count%s %d\n", h.name, h.labels.String(), h.count)
		h.mu.Unlock()
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// HTTPHandler serves the registry in the Prometheus text format.
func (r *Registry) HTTPHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		r.WritePrometheus(w)
	})
}
