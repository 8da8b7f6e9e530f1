package observability

import (
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// MetricsRegistry holds all registered metrics.
type MetricsRegistry struct {
	mu       sync.RWMutex
	counters map[string]*Counter
	gauges   map[string]*Gauge
	histos   map[string]*Histogram
}

// Counter is a monotonically increasing metric.
type Counter struct {
	name   string
	help   string
	labels map[string]string
	value  float64
	mu     sync.Mutex
}

// Gauge is a metric that can go up or down.
type Gauge struct {
	name   string
	help   string
	labels map[string]string
	value  float64
	mu     sync.Mutex
}

// Histogram tracks distribution of values.
type Histogram struct {
	name    string
	help    string
	labels  map[string]string
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
	mu      sync.Mutex
}

// NewMetricsRegistry creates a new metrics registry.
func NewMetricsRegistry() *MetricsRegistry {
	return &MetricsRegistry{
		counters: make(map[string]*Counter),
		gauges:   make(map[string]*Gauge),
		histos:   make(map[string]*Histogram),
	}
}

// NewCounter creates and registers a counter.
func (r *MetricsRegistry) NewCounter(name, help string, labels map[string]string) *Counter {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := &Counter{name: name, help: help, labels: labels}
	r.counters[name] = c
	return c
}

// NewGauge creates and registers a gauge.
func (r *MetricsRegistry) NewGauge(name, help string, labels map[string]string) *Gauge {
	r.mu.Lock()
	defer r.mu.Unlock()

	g := &Gauge{name: name, help: help, labels: labels}
	r.gauges[name] = g
	return g
}

// NewHistogram creates and registers a histogram. Nil buckets use DefaultBuckets.
func (r *MetricsRegistry) NewHistogram(name, help string, labels map[string]string, buckets []float64) *Histogram {
	r.mu.Lock()
	defer r.mu.Unlock()

	if buckets == nil {
		buckets = DefaultBuckets()
	}

	h := &Histogram{
		name:    name,
		help:    help,
		labels:  labels,
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
	r.histos[name] = h
	return h
}

// DefaultBuckets returns latency buckets suited to LLM calls and node
// commands, which run from milliseconds up to the 30s command timeout.
func DefaultBuckets() []float64 {
	return []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120}
}

// Inc increments a counter by 1.
func (c *Counter) Inc() {
	c.Add(1)
}

// Add adds a value to the counter.
func (c *Counter) Add(v float64) {
	c.mu.Lock()
	c.value += v
	c.mu.Unlock()
}

// Value returns the counter value.
func (c *Counter) Value() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

// Set sets the gauge value.
func (g *Gauge) Set(v float64) {
	g.mu.Lock()
	g.value = v
	g.mu.Unlock()
}

func (g *Gauge) Inc() { g.Add(1) }

func (g *Gauge) Dec() { g.Add(-1) }

// Add adds a value to the gauge.
func (g *Gauge) Add(v float64) {
	g.mu.Lock()
	g.value += v
	g.mu.Unlock()
}

// Value returns the gauge value.
func (g *Gauge) Value() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.value
}

// Observe records a value in the histogram.
func (h *Histogram) Observe(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.sum += v
	h.count++

	for i, bound := range h.buckets {
		if v <= bound {
			h.counts[i]++
		}
	}
}

// ObserveDuration records the time elapsed since start.
func (h *Histogram) ObserveDuration(start time.Time) {
	h.Observe(time.Since(start).Seconds())
}

// Count returns the number of observations.
func (h *Histogram) Count() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.count
}

// Handler returns an HTTP handler for Prometheus metrics.
func (r *MetricsRegistry) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		r.WritePrometheus(w)
	})
}

// WritePrometheus writes metrics in Prometheus text format, sorted by name.
func (r *MetricsRegistry) WritePrometheus(w io.Writer) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, name := range sortedKeys(r.counters) {
		c := r.counters[name]
		c.mu.Lock()
		writeMetric(w, c.name, "counter", c.help, c.labels, c.value)
		c.mu.Unlock()
	}

	for _, name := range sortedKeys(r.gauges) {
		g := r.gauges[name]
		g.mu.Lock()
		writeMetric(w, g.name, "gauge", g.help, g.labels, g.value)
		g.mu.Unlock()
	}

	for _, name := range sortedKeys(r.histos) {
		h := r.histos[name]
		h.mu.Lock()
		writeHistogram(w, h)
		h.mu.Unlock()
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

func writeMetric(w io.Writer, name, metricType, help string, labels map[string]string, value float64) {
	io.WriteString(w, "# HELP "+name+" "+help+"\n")
	io.WriteString(w, "# TYPE "+name+" "+metricType+"\n")
	io.WriteString(w, name+formatLabels(labels)+" "+formatFloat(value)+"\n")
}

func writeHistogram(w io.Writer, h *Histogram) {
	io.WriteString(w, "# HELP "+h.name+" "+h.help+"\n")
	io.WriteString(w, "# TYPE "+h.name+" histogram\n")

	for i, bound := range h.buckets {
		labels := copyLabels(h.labels)
		labels["le"] = formatFloat(bound)
		io.WriteString(w, h.name+"_bucket"+formatLabels(labels)+" "+strconv.FormatUint(h.counts[i], 10)+"\n")
	}

	labels := copyLabels(h.labels)
	labels["le"] = "+Inf"
	io.WriteString(w, h.name+"_bucket"+formatLabels(labels)+" "+strconv.FormatUint(h.count, 10)+"\n")

	io.WriteString(w, h.name+"_sum"+formatLabels(h.labels)+" "+formatFloat(h.sum)+"\n")
	io.WriteString(w, h.name+"_count"+formatLabels(h.labels)+" "+strconv.FormatUint(h.count, 10)+"\n")
}

func formatLabels(labels map[string]string) string {
	if len(labels) == 0 {
		return ""
	}
	parts := make([]string, 0, len(labels))
	for _, k := range sortedKeys(labels) {
		parts = append(parts, k+"="+strconv.Quote(labels[k]))
	}
	return "{" + strings.Join(parts, ",") + "}"
}

func copyLabels(labels map[string]string) map[string]string {
	result := make(map[string]string, len(labels)+1)
	for k, v := range labels {
		result[k] = v
	}
	return result
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// Metrics contains the minichat-specific metrics.
type Metrics struct {
	Registry *MetricsRegistry

	ChatTurnsTotal  *Counter
	ChatErrorsTotal *Counter
	ChatDuration    *Histogram

	LLMRequestsTotal   *Counter
	LLMErrorsTotal     *Counter
	LLMTokensTotal     *Counter
	LLMRequestDuration *Histogram

	CommandsTotal        *Counter
	CommandFailuresTotal *Counter
	CommandTimeoutsTotal *Counter
	CommandDuration      *Histogram

	RateLimitedTotal *Counter
	LoginFailures    *Counter
	ActiveSessions   *Gauge
}

// NewMetrics creates the minichat metrics on a fresh registry.
func NewMetrics() *Metrics {
	r := NewMetricsRegistry()

	return &Metrics{
		Registry: r,

		ChatTurnsTotal:  r.NewCounter("minichat_chat_turns_total", "Total chat turns", nil),
		ChatErrorsTotal: r.NewCounter("minichat_chat_errors_total", "Chat turns that failed", nil),
		ChatDuration:    r.NewHistogram("minichat_chat_duration_seconds", "Chat turn duration", nil, nil),

		LLMRequestsTotal:   r.NewCounter("minichat_llm_requests_total", "Total LLM API requests", nil),
		LLMErrorsTotal:     r.NewCounter("minichat_llm_errors_total", "Total LLM errors", nil),
		LLMTokensTotal:     r.NewCounter("minichat_llm_tokens_total", "Total tokens used", nil),
		LLMRequestDuration: r.NewHistogram("minichat_llm_request_duration_seconds", "LLM request duration", nil, nil),

		CommandsTotal:        r.NewCounter("minichat_commands_total", "Total node commands executed", nil),
		CommandFailuresTotal: r.NewCounter("minichat_command_failures_total", "Node commands with status false", nil),
		CommandTimeoutsTotal: r.NewCounter("minichat_command_timeouts_total", "Node commands killed on timeout", nil),
		CommandDuration:      r.NewHistogram("minichat_command_duration_seconds", "Node command duration", nil, nil),

		RateLimitedTotal: r.NewCounter("minichat_rate_limited_total", "Requests rejected by the rate limiter", nil),
		LoginFailures:    r.NewCounter("minichat_login_failures_total", "Failed login attempts", nil),
		ActiveSessions:   r.NewGauge("minichat_active_sessions", "Sessions currently held in memory", nil),
	}
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return m.Registry.Handler()
}

// RecordLLMRequest records an LLM request. Nil receivers are ignored.
func (m *Metrics) RecordLLMRequest(duration time.Duration, tokens int, err error) {
	if m == nil {
		return
	}
	m.LLMRequestsTotal.Inc()
	m.LLMRequestDuration.Observe(duration.Seconds())
	m.LLMTokensTotal.Add(float64(tokens))
	if err != nil {
		m.LLMErrorsTotal.Inc()
	}
}

// RecordChatTurn records a completed or failed chat turn.
func (m *Metrics) RecordChatTurn(duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.ChatTurnsTotal.Inc()
	m.ChatDuration.Observe(duration.Seconds())
	if err != nil {
		m.ChatErrorsTotal.Inc()
	}
}

// RecordCommand records one node command execution.
func (m *Metrics) RecordCommand(duration time.Duration, ok, timedOut bool) {
	if m == nil {
		return
	}
	m.CommandsTotal.Inc()
	m.CommandDuration.Observe(duration.Seconds())
	if !ok {
		m.CommandFailuresTotal.Inc()
	}
	if timedOut {
		m.CommandTimeoutsTotal.Inc()
	}
}
