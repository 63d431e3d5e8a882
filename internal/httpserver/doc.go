// Package httpserver owns the listening socket of the gateway: address
// validation, server timeouts and graceful shutdown.
package httpserver
