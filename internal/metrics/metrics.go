package metrics

import (
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"
)

// Registry holds proxy metrics and renders them in Prometheus text format.
type Registry struct {
	mu sync.RWMutex
	// Key is "name|labels"
	counters   map[string]uint64
	gauges     map[string]int64
	histograms map[string]*Histogram
}

type Histogram struct {
	Count   uint64
	Sum     float64
	Buckets []float64
	Counts  []uint64
}

var defaultBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}

func NewRegistry() *Registry {
	return &Registry{
		counters:   make(map[string]uint64),
		gauges:     make(map[string]int64),
		histograms: make(map[string]*Histogram),
	}
}

// IncRequest counts a request. rule is empty for requests that fell through
// to the default handler.
func (r *Registry) IncRequest(rule, method, status string) {
	key := fmt.Sprintf("devproxy_requests_total|rule=%q,method=%q,status=%q", rule, method, status)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counters[key]++
}

func (r *Registry) IncActiveTunnels(rule string) {
	r.addGauge(rule, 1)
}

func (r *Registry) DecActiveTunnels(rule string) {
	r.addGauge(rule, -1)
}

func (r *Registry) addGauge(rule string, delta int64) {
	key := fmt.Sprintf("devproxy_active_tunnels|rule=%q", rule)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gauges[key] += delta
}

func (r *Registry) ObserveLatency(rule string, duration time.Duration) {
	key := fmt.Sprintf("devproxy_upstream_latency_seconds|rule=%q", rule)
	val := duration.Seconds()

	r.mu.Lock()
	defer r.mu.Unlock()

	h, ok := r.histograms[key]
	if !ok {
		h = &Histogram{
			Buckets: defaultBuckets,
			Counts:  make([]uint64, len(defaultBuckets)),
		}
		r.histograms[key] = h
	}

	h.Count++
	h.Sum += val
	for i, b := range h.Buckets {
		if val <= b {
			h.Counts[i]++
		}
	}
}

// Handler serves WritePrometheus over HTTP.
func (r *Registry) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		r.WritePrometheus(w)
	})
}

func (r *Registry) WritePrometheus(w io.Writer) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if keys := sortedKeys(r.counters); len(keys) > 0 {
		_, _ = fmt.Fprintln(w, "# HELP devproxy_requests_total Total number of requests")
		_, _ = fmt.Fprintln(w, "# TYPE devproxy_requests_total counter")
		for _, k := range keys {
			if name, labels, ok := strings.Cut(k, "|"); ok {
				_, _ = fmt.Fprintf(w, "%s{%s} %d\n", name, labels, r.counters[k])
			}
		}
	}

	if keys := sortedKeys(r.gauges); len(keys) > 0 {
		_, _ = fmt.Fprintln(w, "# HELP devproxy_active_tunnels Number of open upgraded connections")
		_, _ = fmt.Fprintln(w, "# TYPE devproxy_active_tunnels gauge")
		for _, k := range keys {
			if name, labels, ok := strings.Cut(k, "|"); ok {
				_, _ = fmt.Fprintf(w, "%s{%s} %d\n", name, labels, r.gauges[k])
			}
		}
	}

	if keys := sortedKeys(r.histograms); len(keys) > 0 {
		_, _ = fmt.Fprintln(w, "# HELP devproxy_upstream_latency_seconds Upstream latency in seconds")
		_, _ = fmt.Fprintln(w, "# TYPE devproxy_upstream_latency_seconds histogram")
		for _, k := range keys {
			name, labels, ok := strings.Cut(k, "|")
			if !ok {
				continue
			}
			h := r.histograms[k]
			for i, b := range h.Buckets {
				_, _ = fmt.Fprintf(w, "%s_bucket{%s,le=\"%g\"} %d\n", name, labels, b, h.Counts[i])
			}
			_, _ = fmt.Fprintf(w, "%s_bucket{%s,le=\"+Inf\"} %d\n", name, labels, h.Count)
			_, _ = fmt.Fprintf(w, "%s_sum{%s} %g\n", name, labels, h.Sum)
			_, _ = fmt.Fprintf(w, "%s_count{%s} %d\n", name, labels, h.Count)
		}
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
