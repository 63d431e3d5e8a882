// Package backend models concrete backend instances and forwards proxied
// requests to them. An Instance carries the health flag maintained by the
// health monitor and an in-flight request counter; the Forwarder performs
// the outbound call and turns transport failures into a synthetic 503.
package backend
