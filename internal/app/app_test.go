package app

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cloudgateway/internal/config"
	"cloudgateway/internal/storage/memory"
	"cloudgateway/pkg/metrics"
)

const testSecret = "test-signing-key"

// newTestApp wires a gateway against an in-memory store, routing /users
// to the given backend URL. Extra configuration is applied via mutate.
func newTestApp(t *testing.T, backendURL string, mutate func(*config.Config)) *App {
	t.Helper()

	cfg := &config.Config{}
	cfg.Gateway.Auth.Secret = testSecret
	cfg.Gateway.RateLimit.Requests = 1000
	cfg.Gateway.RateLimit.WindowSeconds = 3600
	cfg.Gateway.Health.IntervalSeconds = 30
	cfg.Gateway.Health.TimeoutSeconds = 5
	cfg.Gateway.Proxy.TimeoutSeconds = 5
	cfg.Gateway.LoadBalancer.Strategy = "round_robin"
	cfg.Gateway.Routes = []config.Route{{Prefix: "/users", Service: "user-service"}}
	cfg.Gateway.PublicPaths = []string{"/auth/login", "/health"}

	if backendURL != "" {
		host, port := splitBackend(t, backendURL)
		cfg.Gateway.Services = []config.Service{
			{Name: "user-service", Host: host, Port: port, HealthPath: "/health"},
		}
	}

	if mutate != nil {
		mutate(cfg)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	a := New(cfg, memory.NewStore(), m, logger)
	t.Cleanup(a.Close)
	return a
}

func splitBackend(t *testing.T, rawURL string) (string, int) {
	t.Helper()
	u, err := url.Parse(rawURL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)
	return u.Hostname(), port
}

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

func validToken(t *testing.T) string {
	return signToken(t, jwt.MapClaims{
		"sub":  "user-1",
		"role": "admin",
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
}

// markHealthy runs one probe round so the registry can resolve services
func markHealthy(t *testing.T, a *App) {
	t.Helper()
	a.prober.ProbeAll(t.Context())
}

func TestProxyAuthenticatedRequest(t *testing.T) {
	var backendCalls atomic.Int64
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		backendCalls.Add(1)
		assert.Equal(t, "/users/42?fields=name", r.URL.RequestURI())
		w.Write([]byte(`{"id":42}`))
	}))
	defer backend.Close()

	a := newTestApp(t, backend.URL, nil)
	markHealthy(t, a)

	req := httptest.NewRequest(http.MethodGet, "/users/42?fields=name", nil)
	req.Header.Set("Authorization", "Bearer "+validToken(t))
	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `{"id":42}`, rec.Body.String())
	assert.Equal(t, int64(1), backendCalls.Load())
}

func TestProxyMissingCredential(t *testing.T) {
	var backendCalls atomic.Int64
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			backendCalls.Add(1)
		}
	}))
	defer backend.Close()

	a := newTestApp(t, backend.URL, nil)
	markHealthy(t, a)

	req := httptest.NewRequest(http.MethodGet, "/users/42", nil)
	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "missing_credential", body["error"])
	assert.Equal(t, int64(0), backendCalls.Load(), "rejected requests must not reach the backend")
}

func TestProxyNoRoute(t *testing.T) {
	a := newTestApp(t, "", nil)

	req := httptest.NewRequest(http.MethodGet, "/nowhere", nil)
	req.Header.Set("Authorization", "Bearer "+validToken(t))
	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "service_not_found", body["error"])
}

func TestProxyUnresolvableService(t *testing.T) {
	// Route exists but no backend was ever registered or mirrored. A
	// matched route with no live instance is 503, never 404: the path
	// is routable, the service just has nowhere to go.
	a := newTestApp(t, "", nil)

	req := httptest.NewRequest(http.MethodGet, "/users/1", nil)
	req.Header.Set("Authorization", "Bearer "+validToken(t))
	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "service_unavailable", body["error"])
}

func TestProxyUnhealthyServiceIs503(t *testing.T) {
	// A registered backend that fails its probe is equally unavailable.
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer backend.Close()

	a := newTestApp(t, backend.URL, nil)
	markHealthy(t, a)

	req := httptest.NewRequest(http.MethodGet, "/users/1", nil)
	req.Header.Set("Authorization", "Bearer "+validToken(t))
	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestProxyRateLimitExceeded(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer backend.Close()

	a := newTestApp(t, backend.URL, func(cfg *config.Config) {
		cfg.Gateway.RateLimit.Requests = 2
	})
	markHealthy(t, a)

	token := validToken(t)
	var lastCode int
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/users/1", nil)
		req.RemoteAddr = "10.1.2.3:44321"
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		a.Handler().ServeHTTP(rec, req)
		lastCode = rec.Code
	}

	assert.Equal(t, http.StatusTooManyRequests, lastCode)
}

func TestObservabilityHeaders(t *testing.T) {
	a := newTestApp(t, "", nil)

	req := httptest.NewRequest(http.MethodGet, "/nowhere", nil)
	req.Header.Set("Authorization", "Bearer "+validToken(t))
	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, req)

	assert.Equal(t, Version, rec.Header().Get("X-Gateway-Version"))

	elapsed, err := strconv.ParseFloat(rec.Header().Get("X-Process-Time"), 64)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, elapsed, 0.0)
}

func TestHealthEndpoint(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer backend.Close()

	a := newTestApp(t, backend.URL, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Status          string `json:"status"`
		Version         string `json:"version"`
		HealthyServices string `json:"healthy_services"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body.Status)
	assert.Equal(t, Version, body.Version)
	assert.Equal(t, "1/1", body.HealthyServices)
}

func TestHealthEndpointDegraded(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer backend.Close()

	a := newTestApp(t, backend.URL, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, req)

	var body struct {
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body.Status)
}

func TestGatewayServicesEndpoint(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer backend.Close()

	a := newTestApp(t, backend.URL, nil)

	req := httptest.NewRequest(http.MethodGet, "/gateway/services", nil)
	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Services []map[string]any  `json:"services"`
		Routes   map[string]string `json:"routes"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Services, 1)
	assert.Equal(t, "user-service", body.Routes["/users"])
}

func TestGatewayMetricsEndpoint(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer backend.Close()

	a := newTestApp(t, backend.URL, nil)
	markHealthy(t, a)

	// Drive one proxied request so the summary has data.
	req := httptest.NewRequest(http.MethodGet, "/users/1", nil)
	req.Header.Set("Authorization", "Bearer "+validToken(t))
	a.Handler().ServeHTTP(httptest.NewRecorder(), req)

	mreq := httptest.NewRequest(http.MethodGet, "/gateway/metrics", nil)
	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, mreq)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		TotalRequests uint64            `json:"total_requests"`
		PerService    map[string]uint64 `json:"requests_per_service"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, uint64(1), body.TotalRequests)
	assert.Equal(t, uint64(1), body.PerService["user-service"])
}

func TestManagementRegisterAndDeregister(t *testing.T) {
	a := newTestApp(t, "", nil)
	token := validToken(t)

	payload, _ := json.Marshal(map[string]any{
		"name": "report-generator", "host": "reports.internal", "port": 8080,
	})
	req := httptest.NewRequest(http.MethodPost, "/gateway/services", bytes.NewReader(payload))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusCreated, rec.Code)

	assert.Len(t, a.registry.List(), 1)

	del := httptest.NewRequest(http.MethodDelete, "/gateway/services/report-generator", nil)
	del.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, del)
	assert.Equal(t, http.StatusOK, rec.Code)

	assert.Empty(t, a.registry.List())
}

func TestManagementRequiresAuth(t *testing.T) {
	a := newTestApp(t, "", nil)

	req := httptest.NewRequest(http.MethodPost, "/gateway/services", bytes.NewReader([]byte(`{}`)))
	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, a.registry.List())
}

func TestManagementRejectsInvalidPayload(t *testing.T) {
	a := newTestApp(t, "", nil)

	req := httptest.NewRequest(http.MethodPost, "/gateway/services", bytes.NewReader([]byte(`{"name":""}`)))
	req.Header.Set("Authorization", "Bearer "+validToken(t))
	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
