package app

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"cloudgateway/internal/auth"
	"cloudgateway/internal/core"
	"cloudgateway/internal/registry"
	"cloudgateway/pkg/errors"
)

// buildMux registers the gateway-owned endpoints. Exact patterns shadow
// the proxy catch-all, so /metrics/cpu still routes to a backend while
// /metrics itself serves the Prometheus exposition.
func (a *App) buildMux() {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", a.handleHealth)
	mux.HandleFunc("GET /gateway/services", a.handleListServices)
	mux.HandleFunc("POST /gateway/services", a.requireAuth(a.handleRegisterService))
	mux.HandleFunc("DELETE /gateway/services/{name}", a.requireAuth(a.handleDeregisterService))
	mux.HandleFunc("GET /gateway/metrics", a.handleSelectorMetrics)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("/", a.handleProxy)
	a.mux = mux
}

// Handler returns the gateway's HTTP entrypoint with the observability
// headers applied to every response
func (a *App) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &responseRecorder{ResponseWriter: w, start: time.Now()}
		a.mux.ServeHTTP(rec, r)
	})
}

// responseRecorder injects the timing and version headers just before
// the status line is written, and remembers the status for metrics
type responseRecorder struct {
	http.ResponseWriter
	start       time.Time
	status      int
	wroteHeader bool
}

func (r *responseRecorder) WriteHeader(status int) {
	if r.wroteHeader {
		return
	}
	r.wroteHeader = true
	r.status = status
	r.Header().Set("X-Process-Time", fmt.Sprintf("%.6f", time.Since(r.start).Seconds()))
	r.Header().Set("X-Gateway-Version", Version)
	r.ResponseWriter.WriteHeader(status)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	if !r.wroteHeader {
		r.WriteHeader(http.StatusOK)
	}
	return r.ResponseWriter.Write(b)
}

// handleProxy adapts the HTTP request into the pipeline and relays the
// pipeline's answer
func (a *App) handleProxy(w http.ResponseWriter, r *http.Request) {
	req := core.NewRequest(
		uuid.NewString(),
		r.Method,
		r.URL.Path,
		r.URL.RequestURI(),
		r.RemoteAddr,
		r.Header,
		r.Body,
		r.Context(),
	)

	start := time.Now()
	resp, err := a.pipeline(r.Context(), req)
	elapsed := time.Since(start)

	service := "unknown"
	if svc, rerr := a.routes.Resolve(r.URL.Path); rerr == nil {
		service = svc
	}

	var status int
	if err != nil {
		status = a.writeError(w, err)
	} else {
		status = resp.StatusCode()
		a.writeResponse(w, resp)
	}

	a.metrics.RequestsTotal.WithLabelValues(r.Method, service, fmt.Sprintf("%d", status)).Inc()
	a.metrics.RequestDuration.WithLabelValues(r.Method, service).Observe(elapsed.Seconds())
}

// writeResponse relays a pipeline response to the client
func (a *App) writeResponse(w http.ResponseWriter, resp core.Response) {
	for name, values := range resp.Headers() {
		for _, v := range values {
			w.Header().Add(name, v)
		}
	}
	w.WriteHeader(resp.StatusCode())
	if body := resp.Body(); body != nil {
		defer body.Close()
		io.Copy(w, body)
	}
}

// writeError renders a structured error body and returns the status used
func (a *App) writeError(w http.ResponseWriter, err error) int {
	code := errors.CodeInternalError
	message := "internal server error"
	status := http.StatusInternalServerError

	var gwErr *errors.Error
	if errors.As(err, &gwErr) {
		code = gwErr.Code
		message = gwErr.Message
		status = gwErr.HTTPStatusCode()
	}

	writeJSON(w, status, map[string]string{
		"error":   code,
		"message": message,
	})
	return status
}

// requireAuth gates the management endpoints behind token verification
func (a *App) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := a.verifier.Verify(r.Context(), auth.FromAuthorizationHeader(r.Header)); err != nil {
			a.writeError(w, err)
			return
		}
		next(w, r)
	}
}

// handleHealth probes every registered service synchronously and reports
// the composite result
func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	results := a.prober.ProbeAll(r.Context())

	healthy := 0
	for _, res := range results {
		if res.Status == registry.StatusHealthy {
			healthy++
		}
	}

	overall := "healthy"
	if healthy < len(results) {
		overall = "degraded"
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":           overall,
		"version":          Version,
		"healthy_services": fmt.Sprintf("%d/%d", healthy, len(results)),
		"services":         results,
	})
}

// handleListServices reports the registry snapshot and the route table
func (a *App) handleListServices(w http.ResponseWriter, r *http.Request) {
	routes := make(map[string]string)
	for _, rt := range a.routes.Routes() {
		routes[rt.Prefix] = rt.Service
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"services": a.registry.List(),
		"routes":   routes,
	})
}

// handleSelectorMetrics reports the load balancer's aggregate view
func (a *App) handleSelectorMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.selector.Summary())
}

// registerServiceRequest is the management API payload
type registerServiceRequest struct {
	Name       string `json:"name"`
	Host       string `json:"host"`
	Port       int    `json:"port"`
	HealthPath string `json:"health_path"`
}

// handleRegisterService adds or replaces a backend at runtime
func (a *App) handleRegisterService(w http.ResponseWriter, r *http.Request) {
	var body registerServiceRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		a.writeError(w, errors.NewError(errors.ErrorTypeBadRequest, errors.CodeInvalidRequest, "invalid request body").WithCause(err))
		return
	}
	if body.Name == "" || body.Host == "" || body.Port <= 0 {
		a.writeError(w, errors.NewError(errors.ErrorTypeBadRequest, errors.CodeInvalidRequest, "name, host and port are required"))
		return
	}
	if body.HealthPath == "" {
		body.HealthPath = "/health"
	}

	a.registry.Register(body.Name, body.Host, body.Port, body.HealthPath)
	writeJSON(w, http.StatusCreated, map[string]string{
		"status":  "registered",
		"service": body.Name,
	})
}

// handleDeregisterService removes a backend; removing an unknown name is
// a no-op
func (a *App) handleDeregisterService(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	a.registry.Deregister(name)
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "deregistered",
		"service": name,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
