// Package config handles loading and parsing of configuration from YAML files
// and environment variables. It defines the gateway configuration structure
// including server identity, the static service registry with its route
// prefixes, proxy and health check timings, and logging.
package config
