// Package registry maps logical service names to network endpoints and
// tracks their liveness. The endpoint table is owned here: registration
// and deregistration mutate it, the health prober updates liveness, and
// everything else reads snapshots. Registrations are mirrored into the
// shared store so other gateway instances can resolve services this one
// learned about.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"cloudgateway/internal/storage"
	"cloudgateway/internal/task"
	"cloudgateway/pkg/errors"
	"cloudgateway/pkg/metrics"
)

// Status is the registry's belief about an endpoint's liveness
type Status string

const (
	StatusUnknown   Status = "unknown"
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
)

// directoryKey is the shared-store key space for the service directory
func directoryKey(name string) string {
	return "service:" + name
}

// Endpoint describes a registered backend service
type Endpoint struct {
	Name             string    `json:"name"`
	Host             string    `json:"host"`
	Port             int       `json:"port"`
	HealthPath       string    `json:"health_path"`
	BaseURL          string    `json:"url"`
	Status           Status    `json:"status"`
	LastProbe        time.Time `json:"last_probe"`
	ConsecutiveFails int       `json:"-"`
}

// Registry is the mutex-guarded endpoint table
type Registry struct {
	mu        sync.RWMutex
	endpoints map[string]*Endpoint

	store   storage.Store
	tasks   *task.Queue
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New creates an empty registry. The store provides the best-effort
// external directory; tasks carries the asynchronous mirror writes.
// Both may be nil, in which case the registry is purely local.
func New(store storage.Store, tasks *task.Queue, m *metrics.Metrics, logger *slog.Logger) *Registry {
	return &Registry{
		endpoints: make(map[string]*Endpoint),
		store:     store,
		tasks:     tasks,
		metrics:   m,
		logger:    logger.With("component", "registry"),
	}
}

// Register upserts an endpoint. A prior entry under the same name is
// overwritten; liveness starts as unknown until the prober reports.
func (r *Registry) Register(name, host string, port int, healthPath string) {
	if healthPath == "" {
		healthPath = "/health"
	}

	ep := &Endpoint{
		Name:       name,
		Host:       host,
		Port:       port,
		HealthPath: healthPath,
		BaseURL:    fmt.Sprintf("http://%s:%d", host, port),
		Status:     StatusUnknown,
	}

	r.mu.Lock()
	r.endpoints[name] = ep
	count := len(r.endpoints)
	r.mu.Unlock()

	if r.metrics != nil {
		r.metrics.RegisteredServices.Set(float64(count))
	}
	r.logger.Info("registered service", "service", name, "url", ep.BaseURL)

	r.mirror(name, ep.BaseURL)
}

// Deregister removes an endpoint; absent names are a no-op
func (r *Registry) Deregister(name string) {
	r.mu.Lock()
	_, existed := r.endpoints[name]
	delete(r.endpoints, name)
	count := len(r.endpoints)
	r.mu.Unlock()

	if r.metrics != nil {
		r.metrics.RegisteredServices.Set(float64(count))
	}
	if existed {
		r.logger.Info("deregistered service", "service", name)
	}

	r.unmirror(name)
}

// Resolve returns the base URL for a service. The local table is
// authoritative for names it holds: only healthy endpoints resolve, and
// an unhealthy one never falls through to its own mirrored directory
// entry. The shared directory is consulted for names another gateway
// instance published.
func (r *Registry) Resolve(ctx context.Context, name string) (string, error) {
	r.mu.RLock()
	ep, ok := r.endpoints[name]
	var url string
	var status Status
	if ok {
		url = ep.BaseURL
		status = ep.Status
	}
	r.mu.RUnlock()

	if ok {
		if status == StatusHealthy {
			return url, nil
		}
		return "", errors.NewError(errors.ErrorTypeNotFound, errors.CodeServiceNotFound, "service not found").
			WithDetail("service", name)
	}

	if r.store != nil {
		stored, err := r.store.Get(ctx, directoryKey(name))
		if err == nil && stored != "" {
			return stored, nil
		}
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			r.logger.Warn("directory lookup failed", "service", name, "error", err)
		}
	}

	return "", errors.NewError(errors.ErrorTypeNotFound, errors.CodeServiceNotFound, "service not found").
		WithDetail("service", name)
}

// UpdateStatus records a probe outcome. Only the prober calls this.
func (r *Registry) UpdateStatus(name string, healthy bool, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ep, ok := r.endpoints[name]
	if !ok {
		return
	}

	ep.LastProbe = at
	if healthy {
		ep.Status = StatusHealthy
		ep.ConsecutiveFails = 0
	} else {
		ep.Status = StatusUnhealthy
		ep.ConsecutiveFails++
	}
}

// List returns a snapshot of all endpoints for observability
func (r *Registry) List() []Endpoint {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Endpoint, 0, len(r.endpoints))
	for _, ep := range r.endpoints {
		out = append(out, *ep)
	}
	return out
}

// mirror writes the directory entry through the bounded task queue
func (r *Registry) mirror(name, url string) {
	if r.store == nil || r.tasks == nil {
		return
	}
	err := r.tasks.Submit("registry-mirror", func(ctx context.Context) error {
		return r.store.SetWithTTL(ctx, directoryKey(name), url, 0)
	})
	if err != nil {
		r.logger.Warn("directory mirror not queued", "service", name, "error", err)
	}
}

func (r *Registry) unmirror(name string) {
	if r.store == nil || r.tasks == nil {
		return
	}
	err := r.tasks.Submit("registry-unmirror", func(ctx context.Context) error {
		return r.store.Delete(ctx, directoryKey(name))
	})
	if err != nil {
		r.logger.Warn("directory removal not queued", "service", name, "error", err)
	}
}
