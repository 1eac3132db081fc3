// Package balancer picks backend instances and keeps per-service request
// metrics. Selection state (the round-robin counter, in-flight counts)
// and the bounded sample rings are shared by every request goroutine, so
// all access is synchronized here.
package balancer

import (
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"cloudgateway/internal/core"
	"cloudgateway/pkg/errors"
)

// sampleRingSize bounds per-service memory for latency samples
const sampleRingSize = 100

// Selector picks instances and records request outcomes
type Selector struct {
	// counter drives round-robin selection; one counter across all
	// services, incremented atomically per selection
	counter atomic.Uint64

	mu       sync.Mutex
	services map[string]*serviceStats
	inflight map[string]*atomic.Int64 // instance URL -> in-flight requests
}

// serviceStats aggregates outcomes for one logical service
type serviceStats struct {
	requests uint64
	errors   uint64
	ring     [sampleRingSize]time.Duration
	ringLen  int
	ringNext int
}

// NewSelector creates an empty selector
func NewSelector() *Selector {
	return &Selector{
		services: make(map[string]*serviceStats),
		inflight: make(map[string]*atomic.Int64),
	}
}

// Select picks one instance from candidates using the given strategy.
// An empty candidate list is an error; a single candidate short-circuits.
func (s *Selector) Select(service string, instances []string, strategy core.LoadBalanceStrategy) (string, error) {
	if len(instances) == 0 {
		return "", errors.NewError(errors.ErrorTypeUnavailable, errors.CodeServiceUnavailable, "no instances available").
			WithDetail("service", service)
	}

	var chosen string
	switch {
	case len(instances) == 1:
		chosen = instances[0]
	case strategy == core.LoadBalanceRandom:
		chosen = instances[rand.IntN(len(instances))]
	case strategy == core.LoadBalanceLeastConnections:
		chosen = s.leastConnections(instances)
	default:
		// round_robin, also the fallback for unknown strategies
		idx := (s.counter.Add(1) - 1) % uint64(len(instances))
		chosen = instances[idx]
	}

	s.track(chosen).Add(1)
	return chosen, nil
}

// RecordOutcome appends a completed request's sample and releases the
// instance's in-flight slot. The per-service ring keeps only the most
// recent samples.
func (s *Selector) RecordOutcome(service, instance string, elapsed time.Duration, isError bool) {
	s.track(instance).Add(-1)

	s.mu.Lock()
	defer s.mu.Unlock()

	stats := s.statsLocked(service)
	stats.requests++
	if isError {
		stats.errors++
	}

	stats.ring[stats.ringNext] = elapsed
	stats.ringNext = (stats.ringNext + 1) % sampleRingSize
	if stats.ringLen < sampleRingSize {
		stats.ringLen++
	}
}

// AverageResponseTime returns the mean latency over the retained samples
func (s *Selector) AverageResponseTime(service string) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats, ok := s.services[service]
	if !ok || stats.ringLen == 0 {
		return 0
	}

	var total time.Duration
	for i := 0; i < stats.ringLen; i++ {
		total += stats.ring[i]
	}
	return total / time.Duration(stats.ringLen)
}

// ErrorRate returns the service's failure percentage over all recorded
// outcomes
func (s *Selector) ErrorRate(service string) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats, ok := s.services[service]
	if !ok || stats.requests == 0 {
		return 0
	}
	return float64(stats.errors) / float64(stats.requests) * 100
}

// HealthScore reduces error rate and latency to a 0-100 operational
// signal. It informs operators; selection never consults it.
func (s *Selector) HealthScore(service string) float64 {
	errScore := 100 - s.ErrorRate(service)*2
	if errScore < 0 {
		errScore = 0
	}

	avgMs := float64(s.AverageResponseTime(service).Microseconds()) / 1000.0
	timeScore := 100 - (avgMs-100)/10
	if timeScore < 0 {
		timeScore = 0
	}
	if timeScore > 100 {
		timeScore = 100
	}

	score := (errScore + timeScore) / 2
	if score > 100 {
		score = 100
	}
	return score
}

// Summary is the aggregate view served by the operator metrics endpoint
type Summary struct {
	TotalRequests        uint64             `json:"total_requests"`
	RequestsPerService   map[string]uint64  `json:"requests_per_service"`
	AverageResponseMS    map[string]float64 `json:"average_response_times_ms"`
	ErrorRates           map[string]float64 `json:"error_rates"`
	HealthScores         map[string]float64 `json:"health_scores"`
	OverallErrorRate     float64            `json:"overall_error_rate"`
	OverallAvgResponseMS float64            `json:"overall_average_response_time_ms"`
}

// Summary builds the aggregate metrics view
func (s *Selector) Summary() Summary {
	s.mu.Lock()
	names := make([]string, 0, len(s.services))
	var totalReq, totalErr uint64
	for name, stats := range s.services {
		names = append(names, name)
		totalReq += stats.requests
		totalErr += stats.errors
	}
	s.mu.Unlock()

	out := Summary{
		TotalRequests:      totalReq,
		RequestsPerService: make(map[string]uint64, len(names)),
		AverageResponseMS:  make(map[string]float64, len(names)),
		ErrorRates:         make(map[string]float64, len(names)),
		HealthScores:       make(map[string]float64, len(names)),
	}

	var weightedMS float64
	for _, name := range names {
		s.mu.Lock()
		reqs := s.services[name].requests
		s.mu.Unlock()

		avgMS := float64(s.AverageResponseTime(name).Microseconds()) / 1000.0
		out.RequestsPerService[name] = reqs
		out.AverageResponseMS[name] = avgMS
		out.ErrorRates[name] = s.ErrorRate(name)
		out.HealthScores[name] = s.HealthScore(name)
		weightedMS += avgMS * float64(reqs)
	}

	if totalReq > 0 {
		out.OverallErrorRate = float64(totalErr) / float64(totalReq) * 100
		out.OverallAvgResponseMS = weightedMS / float64(totalReq)
	}
	return out
}

// leastConnections picks the candidate with the fewest in-flight requests
func (s *Selector) leastConnections(instances []string) string {
	chosen := instances[0]
	minInflight := s.track(instances[0]).Load()

	for _, inst := range instances[1:] {
		if n := s.track(inst).Load(); n < minInflight {
			chosen = inst
			minInflight = n
		}
	}
	return chosen
}

// track returns the in-flight counter for an instance, creating it on
// first use
func (s *Selector) track(instance string) *atomic.Int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	counter, ok := s.inflight[instance]
	if !ok {
		counter = &atomic.Int64{}
		s.inflight[instance] = counter
	}
	return counter
}

// statsLocked returns the stats for a service; callers hold s.mu
func (s *Selector) statsLocked(service string) *serviceStats {
	stats, ok := s.services[service]
	if !ok {
		stats = &serviceStats{}
		s.services[service] = stats
	}
	return stats
}
