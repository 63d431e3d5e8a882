package handler

import (
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/angeloszaimis/chama-gateway/internal/loadbalancer"
	"github.com/angeloszaimis/chama-gateway/internal/metrics"
)

const balancingStrategy = "Round-Robin"

// StatusHandler serves read-only views of the registry and metrics.
type StatusHandler struct {
	registry *loadbalancer.Registry
	metrics  *metrics.Metrics
	name     string
	port     int
}

func NewStatusHandler(registry *loadbalancer.Registry, m *metrics.Metrics, name string, port int) *StatusHandler {
	return &StatusHandler{
		registry: registry,
		metrics:  m,
		name:     name,
		port:     port,
	}
}

type healthResponse struct {
	Service  string                   `json:"service"`
	Status   string                   `json:"status"`
	Port     int                      `json:"port"`
	Services map[string]serviceHealth `json:"services"`
	Metrics  healthMetrics            `json:"metrics"`
}

type serviceHealth struct {
	Instances int      `json:"instances"`
	Healthy   int      `json:"healthy"`
	URLs      []string `json:"urls"`
}

type healthMetrics struct {
	TotalRequests      int64            `json:"total_requests"`
	Successful         int64            `json:"successful"`
	Failed             int64            `json:"failed"`
	RequestsPerService map[string]int64 `json:"requests_per_service"`
	UptimeSince        string           `json:"uptime_since"`
}

// Health reports gateway liveness, per-service instance health and the
// request counters.
func (s *StatusHandler) Health(w http.ResponseWriter, r *http.Request) {
	snap := s.metrics.Snapshot()

	services := make(map[string]serviceHealth)
	for _, entry := range s.registry.Services() {
		instances := entry.Instances()
		urls := make([]string, 0, len(instances))
		healthy := 0
		for _, inst := range instances {
			urls = append(urls, inst.String())
			if inst.IsHealthy() {
				healthy++
			}
		}
		services[entry.Name()] = serviceHealth{
			Instances: len(instances),
			Healthy:   healthy,
			URLs:      urls,
		}
	}

	writeJSON(w, http.StatusOK, healthResponse{
		Service:  s.name,
		Status:   "UP",
		Port:     s.port,
		Services: services,
		Metrics: healthMetrics{
			TotalRequests:      snap.TotalRequests,
			Successful:         snap.Successful,
			Failed:             snap.Failed,
			RequestsPerService: snap.Requests,
			UptimeSince:        snap.StartTime.Format(time.RFC3339),
		},
	})
}

type servicesResponse struct {
	Success      bool                      `json:"success"`
	LoadBalancer string                    `json:"load_balancer"`
	Services     map[string]serviceDetails `json:"services"`
}

type serviceDetails struct {
	Instances []string        `json:"instances"`
	Healthy   []bool          `json:"healthy"`
	Active    []int           `json:"active"`
	Routes    []string        `json:"routes"`
	Requests  int64           `json:"requests"`
	LatencyMs *latencyFigures `json:"latency_ms,omitempty"`
}

type latencyFigures struct {
	Avg float64 `json:"avg"`
	P50 float64 `json:"p50"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
}

// Services lists the registry: instances, their health flags, owned routes
// and recorded request counts.
func (s *StatusHandler) Services(w http.ResponseWriter, r *http.Request) {
	snap := s.metrics.Snapshot()

	services := make(map[string]serviceDetails)
	for _, entry := range s.registry.Services() {
		instances := entry.Instances()
		details := serviceDetails{
			Instances: make([]string, 0, len(instances)),
			Healthy:   make([]bool, 0, len(instances)),
			Active:    make([]int, 0, len(instances)),
			Routes:    entry.Routes(),
			Requests:  snap.Requests[entry.Name()],
		}
		for _, inst := range instances {
			details.Instances = append(details.Instances, inst.String())
			details.Healthy = append(details.Healthy, inst.IsHealthy())
			details.Active = append(details.Active, inst.ActiveConnections())
		}
		if stats, ok := snap.Latency[entry.Name()]; ok && stats.Samples > 0 {
			details.LatencyMs = &latencyFigures{
				Avg: milliseconds(stats.Avg),
				P50: milliseconds(stats.P50),
				P95: milliseconds(stats.P95),
				P99: milliseconds(stats.P99),
			}
		}
		services[entry.Name()] = details
	}

	writeJSON(w, http.StatusOK, servicesResponse{
		Success:      true,
		LoadBalancer: balancingStrategy,
		Services:     services,
	})
}

// PortFromAddr extracts the numeric port of a listen address such as ":5000".
// It returns 0 when the address carries no numeric port.
func PortFromAddr(addr string) int {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return 0
	}
	n, err := strconv.Atoi(port)
	if err != nil {
		return 0
	}
	return n
}
