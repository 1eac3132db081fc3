// Package health probes registered backends and feeds liveness back into
// the registry. Probe failures update state and are logged; they never
// propagate into request handling.
package health

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"cloudgateway/internal/registry"
	"cloudgateway/pkg/metrics"
)

// ProbeResult is the outcome of probing one endpoint
type ProbeResult struct {
	Service   string          `json:"-"`
	URL       string          `json:"url"`
	Status    registry.Status `json:"status"`
	Elapsed   time.Duration   `json:"-"`
	ElapsedMS float64         `json:"response_time_ms"`
}

// Prober periodically checks every registered endpoint
type Prober struct {
	registry *registry.Registry
	client   *http.Client
	interval time.Duration
	timeout  time.Duration
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewProber creates a prober with the given loop interval and per-probe
// timeout
func NewProber(reg *registry.Registry, interval, timeout time.Duration, m *metrics.Metrics, logger *slog.Logger) *Prober {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	return &Prober{
		registry: reg,
		client:   &http.Client{Timeout: timeout},
		interval: interval,
		timeout:  timeout,
		metrics:  m,
		logger:   logger.With("component", "health-prober"),
	}
}

// Run loops until the context is cancelled, probing all endpoints each
// interval. An initial probe runs immediately so liveness leaves the
// unknown state without waiting a full interval.
func (p *Prober) Run(ctx context.Context) {
	p.ProbeAll(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.ProbeAll(ctx)
		}
	}
}

// ProbeAll probes every registered endpoint concurrently and returns the
// per-service results. Probes are independent: a slow endpoint delays
// only its own result.
func (p *Prober) ProbeAll(ctx context.Context) map[string]ProbeResult {
	endpoints := p.registry.List()

	results := make([]ProbeResult, len(endpoints))
	g, ctx := errgroup.WithContext(ctx)

	for i, ep := range endpoints {
		g.Go(func() error {
			results[i] = p.probe(ctx, ep)
			return nil
		})
	}
	// Workers never return errors; Wait is just the join point.
	_ = g.Wait()

	out := make(map[string]ProbeResult, len(results))
	for _, res := range results {
		out[res.Service] = res
	}
	return out
}

// probe checks one endpoint and records the outcome in the registry
func (p *Prober) probe(ctx context.Context, ep registry.Endpoint) ProbeResult {
	probeCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	healthy := false

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, ep.BaseURL+ep.HealthPath, nil)
	if err == nil {
		resp, doErr := p.client.Do(req)
		if doErr == nil {
			healthy = resp.StatusCode == http.StatusOK
			resp.Body.Close()
		} else {
			err = doErr
		}
	}

	elapsed := time.Since(start)
	p.registry.UpdateStatus(ep.Name, healthy, start)

	if p.metrics != nil {
		p.metrics.ProbeDuration.WithLabelValues(ep.Name).Observe(elapsed.Seconds())
		if healthy {
			p.metrics.ServiceHealth.WithLabelValues(ep.Name).Set(1)
		} else {
			p.metrics.ServiceHealth.WithLabelValues(ep.Name).Set(0)
		}
	}

	status := registry.StatusHealthy
	if !healthy {
		status = registry.StatusUnhealthy
		p.logger.Warn("health probe failed",
			"service", ep.Name,
			"url", ep.BaseURL+ep.HealthPath,
			"error", err,
		)
	}

	return ProbeResult{
		Service:   ep.Name,
		URL:       ep.BaseURL,
		Status:    status,
		Elapsed:   elapsed,
		ElapsedMS: float64(elapsed.Microseconds()) / 1000.0,
	}
}
