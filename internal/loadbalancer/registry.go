package loadbalancer

import (
	"fmt"
	"sync"

	"github.com/angeloszaimis/chama-gateway/internal/backend"
	apperrors "github.com/angeloszaimis/chama-gateway/pkg/errors"
)

// ServiceEntry is one logical service with its instances and rotation cursor.
// The instance list is fixed once the entry is built.
type ServiceEntry struct {
	name      string
	instances []*backend.Instance
	routes    []string

	mutex  sync.Mutex
	cursor int
}

// NewServiceEntry builds an entry from base URLs and route prefixes.
func NewServiceEntry(name string, instanceURLs, routes []string) (*ServiceEntry, error) {
	if len(instanceURLs) == 0 {
		return nil, fmt.Errorf("service %q has no instances", name)
	}

	instances := make([]*backend.Instance, 0, len(instanceURLs))
	for _, raw := range instanceURLs {
		inst, err := backend.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("service %q: parse instance %q: %w", name, raw, err)
		}
		instances = append(instances, inst)
	}

	return &ServiceEntry{
		name:      name,
		instances: instances,
		routes:    append([]string(nil), routes...),
	}, nil
}

func (s *ServiceEntry) Name() string { return s.name }

// Instances returns the instances in configured order.
func (s *ServiceEntry) Instances() []*backend.Instance {
	return append([]*backend.Instance(nil), s.instances...)
}

// Routes returns the path prefixes the service owns.
func (s *ServiceEntry) Routes() []string {
	return append([]string(nil), s.routes...)
}

// HealthyCount returns how many instances passed their latest probe.
func (s *ServiceEntry) HealthyCount() int {
	n := 0
	for _, inst := range s.instances {
		if inst.IsHealthy() {
			n++
		}
	}
	return n
}

// next returns the instance at the cursor and advances it.
func (s *ServiceEntry) next(skipUnhealthy bool) *backend.Instance {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	n := len(s.instances)
	if skipUnhealthy {
		for step := 0; step < n; step++ {
			candidate := s.instances[s.cursor]
			s.cursor = (s.cursor + 1) % n
			if candidate.IsHealthy() {
				return candidate
			}
		}
	}

	chosen := s.instances[s.cursor]
	s.cursor = (s.cursor + 1) % n
	return chosen
}

// Registry maps service names to entries. Registration order is kept.
type Registry struct {
	entries       []*ServiceEntry
	byName        map[string]*ServiceEntry
	skipUnhealthy bool
}

type Option func(*Registry)

// SkipUnhealthy makes NextInstance pass over instances whose latest probe
// failed. When every instance is unhealthy rotation falls back to the full
// list.
func SkipUnhealthy(enabled bool) Option {
	return func(r *Registry) {
		r.skipUnhealthy = enabled
	}
}

// NewRegistry indexes entries by name. Names must be unique.
func NewRegistry(entries []*ServiceEntry, opts ...Option) (*Registry, error) {
	r := &Registry{
		entries: make([]*ServiceEntry, 0, len(entries)),
		byName:  make(map[string]*ServiceEntry, len(entries)),
	}

	for _, entry := range entries {
		if _, dup := r.byName[entry.name]; dup {
			return nil, fmt.Errorf("service %q registered twice", entry.name)
		}
		r.entries = append(r.entries, entry)
		r.byName[entry.name] = entry
	}

	for _, opt := range opts {
		opt(r)
	}

	return r, nil
}

// NextInstance picks the next instance of service in round-robin order.
func (r *Registry) NextInstance(service string) (*backend.Instance, error) {
	entry, ok := r.byName[service]
	if !ok {
		return nil, apperrors.UnknownService(service)
	}

	return entry.next(r.skipUnhealthy), nil
}

// Service looks up a single entry.
func (r *Registry) Service(name string) (*ServiceEntry, bool) {
	entry, ok := r.byName[name]
	return entry, ok
}

// Services returns all entries in registration order.
func (r *Registry) Services() []*ServiceEntry {
	return append([]*ServiceEntry(nil), r.entries...)
}

// AllInstances returns every instance of every service.
func (r *Registry) AllInstances() []*backend.Instance {
	var all []*backend.Instance
	for _, entry := range r.entries {
		all = append(all, entry.instances...)
	}
	return all
}
