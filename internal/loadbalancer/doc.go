// Package loadbalancer holds the static service registry: each logical
// service owns an ordered list of backend instances and a rotation cursor.
// Selection is plain round-robin over the full instance list; health flags
// are informational unless the registry is built with SkipUnhealthy.
package loadbalancer
