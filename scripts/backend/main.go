// Backend is a stand-in chama microservice used to exercise the gateway
// locally. It answers /health and echoes a small JSON document for any
// path under its routes.
//
// Usage:
//
//	go run ./scripts/backend -name member -port 5001
//	go run ./scripts/backend -name savings -port 5005 -delay 50ms
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/angeloszaimis/chama-gateway/pkg/logger"
)

// record is the document returned for every non-health request.
type record struct {
	ID        string          `json:"id"`
	Service   string          `json:"service"`
	Path      string          `json:"path"`
	Method    string          `json:"method"`
	RequestID string          `json:"request_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp string          `json:"timestamp"`
}

func main() {
	name := flag.String("name", "member", "service name reported in responses")
	port := flag.Int("port", 5001, "port to listen on")
	delay := flag.Duration("delay", 0, "artificial latency added to each request")
	failHealth := flag.Bool("fail-health", false, "answer /health with 503")
	flag.Parse()

	log := logger.New("info", false, "dev", slog.String("service", *name))

	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if *failHealth {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"UP"}`))
	})

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if *delay > 0 {
			time.Sleep(*delay)
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, `{"error":"bad request"}`, http.StatusBadRequest)
			return
		}

		rec := record{
			ID:        uuid.NewString(),
			Service:   *name,
			Path:      r.URL.RequestURI(),
			Method:    r.Method,
			RequestID: r.Header.Get("X-Request-ID"),
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		}
		if len(body) > 0 && json.Valid(body) {
			rec.Payload = body
		}

		status := http.StatusOK
		if r.Method == http.MethodPost {
			status = http.StatusCreated
		}

		log.Info("request",
			slog.String("method", r.Method),
			slog.String("path", rec.Path),
			slog.String("request_id", rec.RequestID),
			slog.Int("status", status))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(rec)
	})

	addr := fmt.Sprintf(":%d", *port)
	log.Info("starting backend", slog.String("address", addr))
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Error("server failed", slog.Any("err", err))
		os.Exit(1)
	}
}
