package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type exporter struct {
	registry        *prometheus.Registry
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	instanceHealthy *prometheus.GaugeVec
}

func newExporter(registry *prometheus.Registry) *exporter {
	factory := promauto.With(registry)

	return &exporter{
		registry: registry,
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_requests_total",
				Help: "Forwarded requests by service, outcome and status code",
			},
			[]string{"service", "outcome", "status"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gateway_request_duration_seconds",
				Help:    "Round-trip time of forwarded requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"service"},
		),
		instanceHealthy: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "gateway_instance_healthy",
				Help: "1 if the latest health probe of the instance succeeded",
			},
			[]string{"service", "instance"},
		),
	}
}

func (e *exporter) observe(service string, statusCode int, elapsed time.Duration) {
	outcome := "successful"
	if statusCode >= 400 {
		outcome = "failed"
	}

	e.requestsTotal.WithLabelValues(service, outcome, strconv.Itoa(statusCode)).Inc()
	e.requestDuration.WithLabelValues(service).Observe(elapsed.Seconds())
}

func (e *exporter) setHealth(service, instance string, healthy bool) {
	value := 0.0
	if healthy {
		value = 1
	}
	e.instanceHealthy.WithLabelValues(service, instance).Set(value)
}

func (e *exporter) handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}
