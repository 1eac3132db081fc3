// Package proxy forwards gateway requests to backend instances and
// translates transport failures into gateway errors.
package proxy

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"cloudgateway/internal/core"
	"cloudgateway/pkg/errors"
	"cloudgateway/pkg/metrics"
)

// OutcomeRecorder receives the result of every completed forward attempt
type OutcomeRecorder interface {
	RecordOutcome(service, instance string, elapsed time.Duration, isError bool)
}

// hopByHopHeaders must not be relayed in either direction
var hopByHopHeaders = map[string]struct{}{
	"Connection":          {},
	"Keep-Alive":          {},
	"Proxy-Authenticate":  {},
	"Proxy-Authorization": {},
	"Te":                  {},
	"Trailer":             {},
	"Transfer-Encoding":   {},
	"Upgrade":             {},
}

// Forwarder relays requests to resolved backend instances
type Forwarder struct {
	client   *http.Client
	timeout  time.Duration
	recorder OutcomeRecorder
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewForwarder creates a forwarder with a per-request timeout
func NewForwarder(timeout time.Duration, recorder OutcomeRecorder, m *metrics.Metrics, logger *slog.Logger) *Forwarder {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Forwarder{
		client:   &http.Client{},
		timeout:  timeout,
		recorder: recorder,
		metrics:  m,
		logger:   logger.With("component", "proxy"),
	}
}

// Forward sends the request to instance and relays the backend response.
// The backend body is read fully before returning so the outcome sample
// covers the complete exchange. All completed attempts, successful or
// not, are reported to the recorder; a 5xx status counts as an error.
func (f *Forwarder) Forward(ctx context.Context, req core.Request, service, instance string) (core.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	target := instance + req.URL()

	outbound, err := http.NewRequestWithContext(ctx, req.Method(), target, req.Body())
	if err != nil {
		// Still an attempt against the instance: report it so the
		// in-flight slot taken at selection time is released.
		f.recorder.RecordOutcome(service, instance, 0, true)
		return nil, errors.NewError(errors.ErrorTypeInternal, errors.CodeInternalError, "failed to build backend request").
			WithCause(err).
			WithDetail("service", service)
	}

	copyRequestHeaders(outbound, req.Headers())
	outbound.Header.Set("X-Forwarded-For", forwardedFor(req))

	start := time.Now()
	resp, err := f.client.Do(outbound)
	elapsed := time.Since(start)

	if err != nil {
		f.recorder.RecordOutcome(service, instance, elapsed, true)
		f.metrics.BackendErrors.WithLabelValues(service, "transport").Inc()
		f.logger.Warn("backend request failed",
			"request_id", req.ID(),
			"service", service,
			"instance", instance,
			"error", err)
		return nil, f.classify(err, service)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	elapsed = time.Since(start)
	if err != nil {
		f.recorder.RecordOutcome(service, instance, elapsed, true)
		f.metrics.BackendErrors.WithLabelValues(service, "read_body").Inc()
		return nil, f.classify(err, service)
	}

	isError := resp.StatusCode >= 500
	f.recorder.RecordOutcome(service, instance, elapsed, isError)
	f.metrics.BackendRequestsTotal.WithLabelValues(service, strconv.Itoa(resp.StatusCode)).Inc()
	f.metrics.BackendRequestDuration.WithLabelValues(service).Observe(elapsed.Seconds())

	return core.NewResponseWithHeaders(resp.StatusCode, relayResponseHeaders(resp.Header), body), nil
}

// classify maps a transport error to the gateway error taxonomy
func (f *Forwarder) classify(err error, service string) error {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &netErr) && netErr.Timeout():
		return errors.NewError(errors.ErrorTypeTimeout, errors.CodeGatewayTimeout, "backend did not respond in time").
			WithCause(err).
			WithDetail("service", service)
	case isConnectionFailure(err):
		return errors.NewError(errors.ErrorTypeUnavailable, errors.CodeServiceUnavailable, "backend connection failed").
			WithCause(err).
			WithDetail("service", service)
	default:
		return errors.NewError(errors.ErrorTypeInternal, errors.CodeInternalError, "backend request failed").
			WithCause(err).
			WithDetail("service", service)
	}
}

// isConnectionFailure reports whether err is a dial-level failure such as
// connection refused or an unresolvable host
func isConnectionFailure(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}

// copyRequestHeaders relays client headers, dropping Host and hop-by-hop
// headers. Authorization passes through so backends can re-verify.
func copyRequestHeaders(outbound *http.Request, headers map[string][]string) {
	for name, values := range headers {
		canonical := http.CanonicalHeaderKey(name)
		if canonical == "Host" {
			continue
		}
		if _, hop := hopByHopHeaders[canonical]; hop {
			continue
		}
		for _, v := range values {
			outbound.Header.Add(canonical, v)
		}
	}
}

// relayResponseHeaders strips hop-by-hop and encoding headers that no
// longer describe the relayed body
func relayResponseHeaders(headers http.Header) map[string][]string {
	out := make(map[string][]string, len(headers))
	for name, values := range headers {
		canonical := http.CanonicalHeaderKey(name)
		if canonical == "Content-Encoding" || canonical == "Content-Length" {
			continue
		}
		if _, hop := hopByHopHeaders[canonical]; hop {
			continue
		}
		out[canonical] = append([]string(nil), values...)
	}
	return out
}

// forwardedFor extracts the client host for the X-Forwarded-For header
func forwardedFor(req core.Request) string {
	addr := req.RemoteAddr()
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
