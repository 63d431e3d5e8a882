// Loadtest drives concurrent traffic through the gateway and reports the
// status code mix and how requests were spread across services, using the
// X-Served-By header the gateway sets on every proxied response.
//
// Usage:
//
//	go run ./scripts/loadtest -url http://localhost:5000 -paths /members,/loans -requests 1000
//	go run ./scripts/loadtest -url http://localhost:5000 -paths /contributions -method POST -out summary.json
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

type serviceStats struct {
	Count     int64           `json:"count"`
	Success   int64           `json:"success"`
	Failure   int64           `json:"failure"`
	Latencies []time.Duration `json:"-"`
}

type summary struct {
	Target        string                    `json:"target"`
	Requests      int                       `json:"requests"`
	Concurrency   int                       `json:"concurrency"`
	Success       int64                     `json:"success"`
	Failure       int64                     `json:"failure"`
	DurationMs    int64                     `json:"duration_ms"`
	ThroughputRPS float64                   `json:"throughput_rps"`
	StatusCodes   map[int]int64             `json:"status_codes"`
	Services      map[string]serviceSummary `json:"services"`
}

type serviceSummary struct {
	Total   int64   `json:"total"`
	Success int64   `json:"success"`
	Failure int64   `json:"failure"`
	P50     float64 `json:"p50_ms"`
	P95     float64 `json:"p95_ms"`
	P99     float64 `json:"p99_ms"`
}

func main() {
	var (
		target      = flag.String("url", "http://localhost:5000", "gateway base URL")
		paths       = flag.String("paths", "/members,/contributions,/loans,/savings,/reports", "comma separated paths, used in turn")
		concurrency = flag.Int("concurrency", 10, "number of concurrent requests")
		requests    = flag.Int("requests", 100, "total number of requests to send")
		method      = flag.String("method", http.MethodGet, "HTTP method")
		body        = flag.String("body", `{"member_id":"M001","amount":500}`, "request body for POST/PUT")
		timeout     = flag.Duration("timeout", 10*time.Second, "per-request timeout")
		outJSON     = flag.String("out", "", "write JSON summary to this file")
	)
	flag.Parse()

	pathList := strings.Split(*paths, ",")
	client := &http.Client{Timeout: *timeout}

	var success, failure atomic.Int64
	var mu sync.Mutex
	statusCodes := make(map[int]int64)
	services := make(map[string]*serviceStats)

	record := func(service string, status int, elapsed time.Duration, ok bool) {
		mu.Lock()
		defer mu.Unlock()

		if status > 0 {
			statusCodes[status]++
		}
		s, found := services[service]
		if !found {
			s = &serviceStats{}
			services[service] = s
		}
		s.Count++
		if ok {
			s.Success++
		} else {
			s.Failure++
		}
		s.Latencies = append(s.Latencies, elapsed)
	}

	g, ctx := errgroup.WithContext(context.Background())
	g.SetLimit(*concurrency)

	start := time.Now()
	for i := 0; i < *requests; i++ {
		path := strings.TrimSpace(pathList[i%len(pathList)])
		g.Go(func() error {
			var reqBody io.Reader
			if *method == http.MethodPost || *method == http.MethodPut {
				reqBody = strings.NewReader(*body)
			}

			req, err := http.NewRequestWithContext(ctx, *method, *target+path, reqBody)
			if err != nil {
				return err
			}
			req.Header.Set("Content-Type", "application/json")

			began := time.Now()
			resp, err := client.Do(req)
			elapsed := time.Since(began)
			if err != nil {
				failure.Add(1)
				record("(unreachable)", 0, elapsed, false)
				return nil
			}
			defer resp.Body.Close()
			io.Copy(io.Discard, resp.Body)

			service := resp.Header.Get("X-Served-By")
			if service == "" {
				service = "(unrouted)"
			}

			ok := resp.StatusCode < http.StatusBadRequest
			if ok {
				success.Add(1)
			} else {
				failure.Add(1)
			}
			record(service, resp.StatusCode, elapsed, ok)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		fmt.Fprintf(os.Stderr, "load test aborted: %v\n", err)
		os.Exit(1)
	}
	duration := time.Since(start)

	report := summary{
		Target:        *target,
		Requests:      *requests,
		Concurrency:   *concurrency,
		Success:       success.Load(),
		Failure:       failure.Load(),
		DurationMs:    duration.Milliseconds(),
		ThroughputRPS: float64(*requests) / duration.Seconds(),
		StatusCodes:   statusCodes,
		Services:      make(map[string]serviceSummary, len(services)),
	}

	fmt.Println("--- Load Test Summary ---")
	fmt.Printf("Target: %s  Paths: %s\n", *target, *paths)
	fmt.Printf("Requests: %d  Concurrency: %d\n", *requests, *concurrency)
	fmt.Printf("Success: %d  Failure: %d\n", report.Success, report.Failure)
	fmt.Printf("Duration: %v  Throughput: %.2f req/s\n", duration, report.ThroughputRPS)

	fmt.Println("\nStatus codes:")
	codes := make([]int, 0, len(statusCodes))
	for code := range statusCodes {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	for _, code := range codes {
		fmt.Printf("  %d -> %d\n", code, statusCodes[code])
	}

	fmt.Println("\nServed by:")
	names := make([]string, 0, len(services))
	for name := range services {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		s := services[name]
		sorted := append([]time.Duration(nil), s.Latencies...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		sum := serviceSummary{
			Total:   s.Count,
			Success: s.Success,
			Failure: s.Failure,
			P50:     percentileMs(sorted, 0.50),
			P95:     percentileMs(sorted, 0.95),
			P99:     percentileMs(sorted, 0.99),
		}
		report.Services[name] = sum

		fmt.Printf("  %s -> total=%d success=%d failure=%d p50=%.2fms p95=%.2fms p99=%.2fms\n",
			name, sum.Total, sum.Success, sum.Failure, sum.P50, sum.P95, sum.P99)
	}

	if *outJSON != "" {
		f, err := os.Create(*outJSON)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to create json file: %v\n", err)
			os.Exit(1)
		}
		enc := json.NewEncoder(f)
		enc.SetIndent("", "  ")
		enc.Encode(report)
		f.Close()
		fmt.Printf("\nWrote JSON summary to %s\n", *outJSON)
	}

	if report.Failure > 0 {
		os.Exit(2)
	}
}

// percentileMs expects sorted input.
func percentileMs(sorted []time.Duration, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	return float64(sorted[int(float64(len(sorted)-1)*p)].Microseconds()) / 1000
}
