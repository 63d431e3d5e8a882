package main

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/angeloszaimis/chama-gateway/internal/handler"
	"github.com/angeloszaimis/chama-gateway/internal/metrics"
)

// setupRouter serves the status endpoints itself and hands every other path
// to the proxy.
func setupRouter(lb *handler.LoadBalancerHandler, status *handler.StatusHandler, m *metrics.Metrics) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", status.Health).Methods(http.MethodGet)
	r.HandleFunc("/services", status.Services).Methods(http.MethodGet)
	r.Handle("/metrics", m.Handler()).Methods(http.MethodGet)
	r.PathPrefix("/").Handler(lb)

	return r
}
