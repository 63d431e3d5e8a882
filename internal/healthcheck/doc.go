// Package healthcheck implements the background health monitor. Each sweep
// probes every registered instance in parallel and overwrites its health
// flag. Probe failures only flip flags; they are retried on the next sweep.
package healthcheck
