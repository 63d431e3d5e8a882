package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/angeloszaimis/chama-gateway/internal/backend"
	"github.com/angeloszaimis/chama-gateway/internal/loadbalancer"
	"github.com/angeloszaimis/chama-gateway/internal/metrics"
	"github.com/angeloszaimis/chama-gateway/internal/router"
	apperrors "github.com/angeloszaimis/chama-gateway/pkg/errors"
)

// LoadBalancerHandler proxies requests to the service owning their path.
type LoadBalancerHandler struct {
	logger    *slog.Logger
	routes    *router.RouteTable
	registry  *loadbalancer.Registry
	forwarder *backend.Forwarder
	metrics   *metrics.Metrics
	identity  string
}

func NewLoadBalancerHandler(
	logger *slog.Logger,
	routes *router.RouteTable,
	registry *loadbalancer.Registry,
	forwarder *backend.Forwarder,
	m *metrics.Metrics,
	identity string,
) *LoadBalancerHandler {
	return &LoadBalancerHandler{
		logger:    logger,
		routes:    routes,
		registry:  registry,
		forwarder: forwarder,
		metrics:   m,
		identity:  identity,
	}
}

// ServeHTTP makes exactly one routing decision, one instance pick and one
// forward attempt per request.
func (lb *LoadBalancerHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	service, ok := lb.routes.Resolve(path)
	if !ok {
		notFound := apperrors.RouteNotFound(path, lb.routes.Prefixes())
		lb.logger.Info("No route for path",
			slog.String("method", r.Method),
			slog.String("path", path))
		writeJSON(w, notFound.HTTPStatusCode(), errorResponse{
			Error:          notFound.Message,
			AvailablePaths: lb.routes.Prefixes(),
		})
		return
	}

	instance, err := lb.registry.NextInstance(service)
	if err != nil {
		lb.writeInternalError(w, service, err)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "failed to read request body"})
		return
	}

	instance.IncrementConn()
	defer instance.DecrementConn()

	// The forward outlives a disconnected caller so its outcome still counts.
	ctx := context.WithoutCancel(r.Context())

	target := instance.Target(r.URL.EscapedPath(), r.URL.RawQuery)

	start := time.Now()
	res, fwdErr := lb.forwarder.Forward(ctx, target, r.Method, r.Header, body)
	elapsed := time.Since(start)

	lb.metrics.Record(service, res.StatusCode, elapsed)

	attrs := []any{
		slog.String("method", r.Method),
		slog.String("path", path),
		slog.String("service", service),
		slog.String("instance", instance.String()),
		slog.Int("status", res.StatusCode),
		slog.Float64("elapsed_ms", milliseconds(elapsed)),
		slog.String("request_id", res.RequestID),
	}
	switch {
	case fwdErr != nil:
		lb.logger.Warn("Backend unreachable", append(attrs, slog.Any("err", fwdErr))...)
	case res.StatusCode >= http.StatusBadRequest:
		lb.logger.Warn("Backend returned error status",
			append(attrs, slog.Any("err", apperrors.BackendStatus(target, res.StatusCode)))...)
	default:
		lb.logger.Info("Forwarded request", attrs...)
	}

	header := w.Header()
	copyResponseHeaders(header, res.Header)
	if header.Get("Content-Type") == "" {
		header.Set("Content-Type", "application/json")
	}
	header.Set(HeaderServedBy, service)
	header.Set(HeaderResponseTime, fmt.Sprintf("%.2fms", milliseconds(elapsed)))
	header.Set(HeaderLoadBalancer, lb.identity)
	header.Set(backend.RequestIDHeader, res.RequestID)

	w.WriteHeader(res.StatusCode)
	_, _ = w.Write(res.Body)
}

// writeInternalError handles a router/registry mismatch. It is a wiring
// fault, never caused by the caller.
func (lb *LoadBalancerHandler) writeInternalError(w http.ResponseWriter, service string, err error) {
	lb.logger.Error("Route resolved to unregistered service",
		slog.String("service", service),
		slog.Any("err", err))

	status := http.StatusInternalServerError
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		status = appErr.HTTPStatusCode()
	}

	writeJSON(w, status, errorResponse{Error: "internal routing error"})
}

func milliseconds(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}
