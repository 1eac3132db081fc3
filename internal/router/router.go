// Package router maps request paths to logical service names using
// longest-lived gateway semantics: the first configured prefix that
// matches wins, so overlapping prefixes resolve by declaration order.
package router

import (
	"strings"

	"cloudgateway/internal/config"
	"cloudgateway/pkg/errors"
)

// Route binds a path prefix to a logical service name
type Route struct {
	Prefix  string
	Service string
}

// Table resolves paths against an ordered route list and a public path
// allow-list. It is immutable after construction and safe for concurrent
// use.
type Table struct {
	routes []Route
	public []string
}

// NewTable builds a table preserving the configured route order
func NewTable(routes []config.Route, publicPaths []string) *Table {
	t := &Table{
		routes: make([]Route, 0, len(routes)),
		public: make([]string, 0, len(publicPaths)),
	}
	for _, r := range routes {
		t.routes = append(t.routes, Route{Prefix: r.Prefix, Service: r.Service})
	}
	t.public = append(t.public, publicPaths...)
	return t
}

// Resolve returns the service owning the first prefix that matches path
func (t *Table) Resolve(path string) (string, error) {
	for _, r := range t.routes {
		if strings.HasPrefix(path, r.Prefix) {
			return r.Service, nil
		}
	}
	return "", errors.NewError(errors.ErrorTypeNotFound, errors.CodeServiceNotFound, "no route for path").
		WithDetail("path", path)
}

// IsPublic reports whether path is reachable without authentication
func (t *Table) IsPublic(path string) bool {
	for _, p := range t.public {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// Routes returns a copy of the configured routes in declaration order
func (t *Table) Routes() []Route {
	out := make([]Route, len(t.routes))
	copy(out, t.routes)
	return out
}
