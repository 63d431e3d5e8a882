// Package errors defines the failure taxonomy of the gateway and maps each
// failure type onto the HTTP status returned to callers.
package errors
