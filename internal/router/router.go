package router

import "strings"

// Route is the set of path prefixes owned by one service.
type Route struct {
	Service  string
	Prefixes []string
}

// RouteTable is immutable after construction. Lookup walks services in
// registration order and the first service owning a matching prefix wins.
type RouteTable struct {
	routes []Route
}

func NewRouteTable(routes []Route) *RouteTable {
	copied := make([]Route, 0, len(routes))
	for _, r := range routes {
		copied = append(copied, Route{
			Service:  r.Service,
			Prefixes: append([]string(nil), r.Prefixes...),
		})
	}
	return &RouteTable{routes: copied}
}

// Resolve returns the service owning path, or false when no prefix matches.
func (t *RouteTable) Resolve(path string) (string, bool) {
	for _, r := range t.routes {
		for _, prefix := range r.Prefixes {
			if strings.HasPrefix(path, prefix) {
				return r.Service, true
			}
		}
	}
	return "", false
}

// Prefixes lists every configured prefix in registration order.
func (t *RouteTable) Prefixes() []string {
	var all []string
	for _, r := range t.routes {
		all = append(all, r.Prefixes...)
	}
	return all
}

// Routes returns a copy of the table.
func (t *RouteTable) Routes() []Route {
	return NewRouteTable(t.routes).routes
}
