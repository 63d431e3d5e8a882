package metrics

import (
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	mutex         sync.RWMutex
	totalRequests int64
	successful    int64
	failed        int64
	requests      map[string]int64
	responseTimes map[string][]time.Duration
	maxSamples    int
	startTime     time.Time

	exporter *exporter
}

// Snapshot is a point-in-time copy of the aggregated counters.
type Snapshot struct {
	TotalRequests int64
	Successful    int64
	Failed        int64
	Requests      map[string]int64
	ResponseTimes map[string][]time.Duration
	Latency       map[string]LatencyStats
	StartTime     time.Time
	Uptime        time.Duration
}

// LatencyStats summarises the response-time samples of one service.
type LatencyStats struct {
	Samples int
	Avg     time.Duration
	P50     time.Duration
	P95     time.Duration
	P99     time.Duration
}

type Option func(*Metrics)

// WithMaxSamples bounds the response-time samples kept per service.
// Zero keeps every sample.
func WithMaxSamples(n int) Option {
	return func(m *Metrics) {
		if n > 0 {
			m.maxSamples = n
		}
	}
}

// WithStartTime overrides the recorded start time.
func WithStartTime(t time.Time) Option {
	return func(m *Metrics) {
		m.startTime = t
	}
}

func NewMetrics(opts ...Option) *Metrics {
	m := &Metrics{
		requests:      make(map[string]int64),
		responseTimes: make(map[string][]time.Duration),
		startTime:     time.Now(),
		exporter:      newExporter(prometheus.NewRegistry()),
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Record counts one completed forward. Status codes below 400 count as
// successful, everything else as failed.
func (m *Metrics) Record(service string, statusCode int, elapsed time.Duration) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.totalRequests++
	if statusCode < 400 {
		m.successful++
	} else {
		m.failed++
	}

	m.requests[service]++

	m.responseTimes[service] = append(m.responseTimes[service], elapsed)
	if m.maxSamples > 0 && len(m.responseTimes[service]) > m.maxSamples {
		m.responseTimes[service] = m.responseTimes[service][1:]
	}

	m.exporter.observe(service, statusCode, elapsed)
}

// SetInstanceHealth publishes the latest probe result of an instance.
func (m *Metrics) SetInstanceHealth(service, instance string, healthy bool) {
	m.exporter.setHealth(service, instance, healthy)
}

// Requests returns the number of recorded requests for one service.
func (m *Metrics) Requests(service string) int64 {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.requests[service]
}

// Snapshot copies the counters and samples under the read lock and derives
// the latency figures after releasing it.
func (m *Metrics) Snapshot() Snapshot {
	snap := m.copyState()

	for service, samples := range snap.ResponseTimes {
		sorted := make([]time.Duration, len(samples))
		copy(sorted, samples)
		sort.Slice(sorted, func(i, j int) bool {
			return sorted[i] < sorted[j]
		})

		snap.Latency[service] = LatencyStats{
			Samples: len(sorted),
			Avg:     average(sorted),
			P50:     percentile(sorted, 0.50),
			P95:     percentile(sorted, 0.95),
			P99:     percentile(sorted, 0.99),
		}
	}

	return snap
}

func (m *Metrics) copyState() Snapshot {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	snap := Snapshot{
		TotalRequests: m.totalRequests,
		Successful:    m.successful,
		Failed:        m.failed,
		Requests:      make(map[string]int64, len(m.requests)),
		ResponseTimes: make(map[string][]time.Duration, len(m.responseTimes)),
		Latency:       make(map[string]LatencyStats, len(m.responseTimes)),
		StartTime:     m.startTime,
		Uptime:        time.Since(m.startTime),
	}

	for service, n := range m.requests {
		snap.Requests[service] = n
	}

	for service, durations := range m.responseTimes {
		samples := make([]time.Duration, len(durations))
		copy(samples, durations)
		snap.ResponseTimes[service] = samples
	}

	return snap
}

// Handler serves the Prometheus exposition of the counters.
func (m *Metrics) Handler() http.Handler {
	return m.exporter.handler()
}

func average(durations []time.Duration) time.Duration {
	if len(durations) == 0 {
		return 0
	}

	var sum time.Duration
	for _, d := range durations {
		sum += d
	}

	return sum / time.Duration(len(durations))
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}

	index := int(float64(len(sorted)) * p)
	if index >= len(sorted) {
		index = len(sorted) - 1
	}

	return sorted[index]
}
