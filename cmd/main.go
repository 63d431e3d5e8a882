package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/angeloszaimis/chama-gateway/config"
	"github.com/angeloszaimis/chama-gateway/internal/backend"
	"github.com/angeloszaimis/chama-gateway/internal/handler"
	"github.com/angeloszaimis/chama-gateway/internal/healthcheck"
	"github.com/angeloszaimis/chama-gateway/internal/httpserver"
	"github.com/angeloszaimis/chama-gateway/internal/loadbalancer"
	"github.com/angeloszaimis/chama-gateway/internal/metrics"
	"github.com/angeloszaimis/chama-gateway/internal/router"
	"github.com/angeloszaimis/chama-gateway/pkg/logger"
)

// gateway holds the components built once at startup.
type gateway struct {
	registry *loadbalancer.Registry
	routes   *router.RouteTable
	metrics  *metrics.Metrics
	monitor  *healthcheck.Monitor
	handler  http.Handler
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.Any("err", err))
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level, true, cfg.Server.Environment,
		slog.String("lb", cfg.Server.Identity))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	gw, err := newGateway(cfg, log)
	if err != nil {
		log.Error("Failed to build gateway", slog.Any("err", err))
		os.Exit(1)
	}

	srv, err := httpserver.New(cfg.Server.Address, gw.handler,
		httpserver.WithWriteTimeout(writeTimeout(cfg.ProxyTimeout())))
	if err != nil {
		log.Error("Failed to create server", slog.Any("err", err))
		os.Exit(1)
	}

	logRouteTable(log, cfg)

	go gw.monitor.Run(ctx)

	srvErrCh := make(chan error, 1)

	go func() {
		srvErrCh <- srv.Start()
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
		if err := srv.Shutdown(context.Background()); err != nil {
			log.Error("Error during shutdown", slog.Any("err", err))
		}
	case err := <-srvErrCh:
		if err != nil {
			log.Error("Error starting load balancer", slog.Any("err", err))
			os.Exit(1)
		}
	}
}

func newGateway(cfg *config.Config, log *slog.Logger) (*gateway, error) {
	registry, routes, err := buildRegistry(cfg)
	if err != nil {
		return nil, err
	}

	m := metrics.NewMetrics(metrics.WithMaxSamples(cfg.Metrics.MaxSamples))

	monitor := healthcheck.New(
		registry,
		cfg.HealthCheckInterval(),
		cfg.HealthCheckTimeout(),
		cfg.HealthCheck.Path,
		log,
		healthcheck.WithObserver(func(service string, inst *backend.Instance, healthy bool) {
			m.SetInstanceHealth(service, inst.String(), healthy)
		}),
	)

	lbHandler := handler.NewLoadBalancerHandler(
		log,
		routes,
		registry,
		backend.NewForwarder(cfg.ProxyTimeout()),
		m,
		cfg.Server.Identity,
	)

	statusHandler := handler.NewStatusHandler(registry, m, cfg.Server.Name, handler.PortFromAddr(cfg.Server.Address))

	return &gateway{
		registry: registry,
		routes:   routes,
		metrics:  m,
		monitor:  monitor,
		handler:  setupRouter(lbHandler, statusHandler, m),
	}, nil
}

// buildRegistry creates the registry and the route table from the same
// service list so both share one set of names.
func buildRegistry(cfg *config.Config) (*loadbalancer.Registry, *router.RouteTable, error) {
	if len(cfg.Services) == 0 {
		return nil, nil, fmt.Errorf("no services configured")
	}

	entries := make([]*loadbalancer.ServiceEntry, 0, len(cfg.Services))
	routes := make([]router.Route, 0, len(cfg.Services))

	for _, svc := range cfg.Services {
		entry, err := loadbalancer.NewServiceEntry(svc.Name, svc.Instances, svc.Routes)
		if err != nil {
			return nil, nil, err
		}
		entries = append(entries, entry)
		routes = append(routes, router.Route{Service: svc.Name, Prefixes: svc.Routes})
	}

	registry, err := loadbalancer.NewRegistry(entries, loadbalancer.SkipUnhealthy(cfg.Proxy.SkipUnhealthy))
	if err != nil {
		return nil, nil, err
	}

	return registry, router.NewRouteTable(routes), nil
}

// writeTimeout leaves room for the slowest forward plus writing the reply.
func writeTimeout(proxyTimeout time.Duration) time.Duration {
	const floor = 15 * time.Second
	if t := proxyTimeout + 10*time.Second; t > floor {
		return t
	}
	return floor
}

func logRouteTable(log *slog.Logger, cfg *config.Config) {
	strategy := "round-robin"
	if cfg.Proxy.SkipUnhealthy {
		strategy = "round-robin (healthy only)"
	}

	log.Info("Load balancer listening",
		slog.String("address", cfg.Server.Address),
		slog.String("strategy", strategy))

	for _, svc := range cfg.Services {
		log.Info("Service registered",
			slog.String("service", svc.Name),
			slog.String("routes", strings.Join(svc.Routes, ", ")),
			slog.Int("instances", len(svc.Instances)))
	}
}
