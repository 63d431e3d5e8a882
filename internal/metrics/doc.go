// Package metrics aggregates request outcomes for the gateway.
//
// Every forwarded request is recorded once, under a single lock, so that
// TotalRequests == Successful + Failed holds for every snapshot:
//
//	m := metrics.NewMetrics()
//	m.Record("member", http.StatusCreated, 12*time.Millisecond)
//	snap := m.Snapshot()
//
// Response times are kept per service as raw samples. The sample list is
// unbounded unless WithMaxSamples is given, in which case the oldest samples
// are dropped.
//
// The same counters are mirrored into a private Prometheus registry served
// by Handler, together with per-instance health gauges fed by the health
// monitor.
package metrics
