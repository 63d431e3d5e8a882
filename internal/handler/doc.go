// Package handler implements the HTTP front of the gateway. The proxy
// handler routes each request by path, picks an instance, forwards the
// request, records the outcome and writes the backend response. The status
// handlers expose the registry and metrics as JSON.
package handler
