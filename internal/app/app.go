// Package app assembles the gateway: the request pipeline, the operator
// endpoints and the HTTP server lifecycle.
package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"cloudgateway/internal/auth"
	"cloudgateway/internal/balancer"
	"cloudgateway/internal/config"
	"cloudgateway/internal/core"
	"cloudgateway/internal/health"
	"cloudgateway/internal/middleware"
	"cloudgateway/internal/proxy"
	"cloudgateway/internal/ratelimit"
	"cloudgateway/internal/registry"
	"cloudgateway/internal/router"
	"cloudgateway/internal/storage"
	"cloudgateway/internal/task"
	"cloudgateway/pkg/errors"
	"cloudgateway/pkg/metrics"
)

// Version is reported in the X-Gateway-Version header and /health
const Version = "1.0.0"

// mirrorWorkers/mirrorQueueCap size the background queue that mirrors
// registry changes into the shared store
const (
	mirrorWorkers  = 2
	mirrorQueueCap = 64
)

// App wires the gateway subsystems together
type App struct {
	cfg       *config.Config
	logger    *slog.Logger
	metrics   *metrics.Metrics
	store     storage.Store
	tasks     *task.Queue
	registry  *registry.Registry
	prober    *health.Prober
	selector  *balancer.Selector
	routes    *router.Table
	forwarder *proxy.Forwarder
	verifier  *auth.Verifier
	strategy  core.LoadBalanceStrategy
	pipeline  core.Handler
	mux       *http.ServeMux
}

// New builds a fully wired gateway from configuration. Services declared
// in the config are registered immediately; the health prober starts
// when Run is called.
func New(cfg *config.Config, store storage.Store, m *metrics.Metrics, logger *slog.Logger) *App {
	gw := cfg.Gateway

	a := &App{
		cfg:      cfg,
		logger:   logger,
		metrics:  m,
		store:    store,
		strategy: core.LoadBalanceStrategy(gw.LoadBalancer.Strategy),
	}

	a.tasks = task.NewQueue(mirrorWorkers, mirrorQueueCap, logger)
	a.registry = registry.New(store, a.tasks, m, logger)
	for _, svc := range gw.Services {
		a.registry.Register(svc.Name, svc.Host, svc.Port, svc.HealthPath)
	}

	a.prober = health.NewProber(a.registry, gw.Health.Interval(), gw.Health.Timeout(), m, logger)
	a.selector = balancer.NewSelector()
	a.routes = router.NewTable(gw.Routes, gw.PublicPaths)
	a.forwarder = proxy.NewForwarder(gw.Proxy.Timeout(), a.selector, m, logger)
	a.verifier = auth.NewVerifier(gw.Auth.Secret, store, logger)

	limiter := ratelimit.NewLimiter(store, gw.RateLimit.Requests, gw.RateLimit.Window(), logger)

	a.pipeline = middleware.Chain(a.route,
		middleware.Recovery(logger),
		middleware.Logging(logger),
		ratelimit.Middleware(limiter, ratelimit.BySourceAddress, m, logger),
		auth.Middleware(a.verifier, a.routes.IsPublic, m, logger),
	)

	a.buildMux()
	return a
}

// route is the innermost handler: path to service, service to instance,
// instance to backend response
func (a *App) route(ctx context.Context, req core.Request) (core.Response, error) {
	service, err := a.routes.Resolve(req.Path())
	if err != nil {
		return nil, err
	}

	// The route matched, so a resolution miss means the service has no
	// live instance right now, not that the path is unroutable.
	url, err := a.registry.Resolve(ctx, service)
	if err != nil {
		return nil, errors.NewError(errors.ErrorTypeUnavailable, errors.CodeServiceUnavailable, "no live instance available").
			WithCause(err).
			WithDetail("service", service)
	}

	instance, err := a.selector.Select(service, []string{url}, a.strategy)
	if err != nil {
		return nil, err
	}

	return a.forwarder.Forward(ctx, req, service, instance)
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully
func (a *App) Run(ctx context.Context) error {
	gw := a.cfg.Gateway

	srv := &http.Server{
		Addr:         gw.Server.Addr(),
		Handler:      a.Handler(),
		ReadTimeout:  time.Duration(gw.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(gw.Server.WriteTimeout) * time.Second,
	}

	probeCtx, stopProbing := context.WithCancel(ctx)
	defer stopProbing()
	go a.prober.Run(probeCtx)

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("gateway listening", "addr", srv.Addr, "version", Version)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		a.Close()
		return err
	case err := <-errCh:
		a.Close()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Close releases background resources. Pending registry mirror tasks are
// drained before the store closes.
func (a *App) Close() {
	a.tasks.Close()
	if err := a.store.Close(); err != nil {
		a.logger.Warn("store close failed", "error", err)
	}
}
