package backend

import (
	"net/url"
	"strings"
	"sync"
)

// Instance is one addressable replica of a logical service.
type Instance struct {
	url               *url.URL
	mutex             sync.Mutex
	isHealthy         bool
	activeConnections int
}

// New creates an Instance for u. Instances start healthy.
func New(u *url.URL) *Instance {
	return &Instance{
		url:       u,
		isHealthy: true,
	}
}

// Parse creates an Instance from a base URL string.
func Parse(rawURL string) (*Instance, error) {
	u, err := url.Parse(strings.TrimRight(rawURL, "/"))
	if err != nil {
		return nil, err
	}
	return New(u), nil
}

// URL returns the instance base URL.
func (i *Instance) URL() *url.URL {
	return i.url
}

// String returns the base URL as configured.
func (i *Instance) String() string {
	return i.url.String()
}

// IsHealthy reports the result of the latest health probe.
func (i *Instance) IsHealthy() bool {
	i.mutex.Lock()
	defer i.mutex.Unlock()
	return i.isHealthy
}

// SetHealthy updates the health flag.
// Returns true if the status changed, false if it was already in that state.
func (i *Instance) SetHealthy(healthy bool) (changed bool) {
	i.mutex.Lock()
	defer i.mutex.Unlock()

	if i.isHealthy == healthy {
		return false
	}

	i.isHealthy = healthy
	return true
}

// IncrementConn marks the start of a forwarded request.
func (i *Instance) IncrementConn() {
	i.mutex.Lock()
	i.activeConnections++
	i.mutex.Unlock()
}

// DecrementConn marks the end of a forwarded request.
func (i *Instance) DecrementConn() {
	i.mutex.Lock()
	if i.activeConnections > 0 {
		i.activeConnections--
	}
	i.mutex.Unlock()
}

// ActiveConnections returns the number of requests currently in flight.
func (i *Instance) ActiveConnections() int {
	i.mutex.Lock()
	defer i.mutex.Unlock()
	return i.activeConnections
}

// Target joins the instance base URL with an inbound escaped path and raw
// query. Both are appended as sent by the caller.
func (i *Instance) Target(escapedPath, rawQuery string) string {
	target := i.url.String() + escapedPath
	if rawQuery != "" {
		target += "?" + rawQuery
	}
	return target
}
