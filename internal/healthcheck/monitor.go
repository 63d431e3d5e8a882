package healthcheck

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/angeloszaimis/chama-gateway/internal/backend"
	"github.com/angeloszaimis/chama-gateway/internal/loadbalancer"
)

const defaultConcurrency = 16

// Observer is told the outcome of every probe.
type Observer func(service string, instance *backend.Instance, healthy bool)

// Monitor periodically probes every instance of a registry.
type Monitor struct {
	registry    *loadbalancer.Registry
	client      *http.Client
	interval    time.Duration
	timeout     time.Duration
	path        string
	concurrency int
	observers   []Observer
	logger      *slog.Logger
}

type Option func(*Monitor)

// WithConcurrency caps the number of probes in flight during a sweep.
func WithConcurrency(n int) Option {
	return func(m *Monitor) {
		if n > 0 {
			m.concurrency = n
		}
	}
}

// WithObserver registers a callback invoked after each probe.
func WithObserver(o Observer) Option {
	return func(m *Monitor) {
		m.observers = append(m.observers, o)
	}
}

// New creates a Monitor probing path on every instance with the given
// per-probe timeout. Call Run to start the loop or Sweep for a single pass.
func New(
	registry *loadbalancer.Registry,
	interval, timeout time.Duration,
	path string,
	logger *slog.Logger,
	opts ...Option,
) *Monitor {
	m := &Monitor{
		registry:    registry,
		client:      &http.Client{Timeout: timeout},
		interval:    interval,
		timeout:     timeout,
		path:        path,
		concurrency: defaultConcurrency,
		logger:      logger,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Run sweeps immediately and then every interval until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	m.logger.Info("Health monitor started",
		slog.Duration("interval", m.interval),
		slog.String("path", m.path))
	defer m.logger.Info("Health monitor stopped")

	m.Sweep(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep(ctx)
		}
	}
}

// Sweep probes every instance once. Probes run in parallel so one slow
// instance delays the sweep by at most the probe timeout.
func (m *Monitor) Sweep(ctx context.Context) {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(m.concurrency)

	for _, svc := range m.registry.Services() {
		service := svc.Name()
		for _, inst := range svc.Instances() {
			g.Go(func() error {
				m.check(ctx, service, inst)
				return nil
			})
		}
	}

	_ = g.Wait()
}

func (m *Monitor) check(ctx context.Context, service string, inst *backend.Instance) {
	if ctx.Err() != nil {
		return
	}

	healthy := m.probe(ctx, inst)

	// A probe cut short by shutdown says nothing about the instance.
	if ctx.Err() != nil {
		return
	}

	if inst.SetHealthy(healthy) {
		if healthy {
			m.logger.Info("Instance is back up",
				slog.String("service", service),
				slog.String("instance", inst.String()))
		} else {
			m.logger.Warn("Instance is down",
				slog.String("service", service),
				slog.String("instance", inst.String()))
		}
	}

	for _, observe := range m.observers {
		observe(service, inst, healthy)
	}
}

func (m *Monitor) probe(ctx context.Context, inst *backend.Instance) bool {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, inst.Target(m.path, ""), nil)
	if err != nil {
		m.logger.Debug("Building health probe failed",
			slog.String("instance", inst.String()),
			slog.Any("err", err))
		return false
	}

	res, err := m.client.Do(req)
	if err != nil {
		m.logger.Debug("Health probe failed",
			slog.String("instance", inst.String()),
			slog.Any("err", err))
		return false
	}
	defer res.Body.Close()
	_, _ = io.Copy(io.Discard, res.Body)

	return res.StatusCode >= 200 && res.StatusCode < 300
}
