package handler

import (
	"encoding/json"
	"net/http"
	"net/textproto"
)

const (
	HeaderServedBy     = "X-Served-By"
	HeaderResponseTime = "X-Response-Time"
	HeaderLoadBalancer = "X-Load-Balancer"
)

// Headers owned by the connection between gateway and caller.
var hopHeaders = map[string]struct{}{
	"Connection":          {},
	"Keep-Alive":          {},
	"Proxy-Authenticate":  {},
	"Proxy-Authorization": {},
	"Te":                  {},
	"Trailer":             {},
	"Transfer-Encoding":   {},
	"Upgrade":             {},
	"Content-Length":      {},
}

func copyResponseHeaders(dst, src http.Header) {
	for key, values := range src {
		if _, hop := hopHeaders[textproto.CanonicalMIMEHeaderKey(key)]; hop {
			continue
		}
		for _, v := range values {
			dst.Add(key, v)
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type errorResponse struct {
	Error          string   `json:"error"`
	AvailablePaths []string `json:"available_paths,omitempty"`
}
