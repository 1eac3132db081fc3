package balancer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cloudgateway/internal/core"
	"cloudgateway/pkg/errors"
)

func TestSelectRoundRobinFairness(t *testing.T) {
	sel := NewSelector()
	instances := []string{"http://a:8000", "http://b:8000", "http://c:8000"}

	counts := make(map[string]int)
	for i := 0; i < 300; i++ {
		inst, err := sel.Select("user-service", instances, core.LoadBalanceRoundRobin)
		require.NoError(t, err)
		counts[inst]++
	}

	for _, inst := range instances {
		assert.Equal(t, 100, counts[inst], "round robin should distribute evenly to %s", inst)
	}
}

func TestSelectRoundRobinCycles(t *testing.T) {
	sel := NewSelector()
	instances := []string{"http://a:8000", "http://b:8000"}

	first, err := sel.Select("svc", instances, core.LoadBalanceRoundRobin)
	require.NoError(t, err)
	second, err := sel.Select("svc", instances, core.LoadBalanceRoundRobin)
	require.NoError(t, err)
	third, err := sel.Select("svc", instances, core.LoadBalanceRoundRobin)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.Equal(t, first, third)
}

func TestSelectEmptyCandidates(t *testing.T) {
	sel := NewSelector()

	_, err := sel.Select("user-service", nil, core.LoadBalanceRoundRobin)
	require.Error(t, err)

	var gwErr *errors.Error
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, errors.ErrorTypeUnavailable, gwErr.Type)
	assert.Equal(t, errors.CodeServiceUnavailable, gwErr.Code)
}

func TestSelectSingleInstance(t *testing.T) {
	sel := NewSelector()

	for i := 0; i < 5; i++ {
		inst, err := sel.Select("svc", []string{"http://only:9000"}, core.LoadBalanceRandom)
		require.NoError(t, err)
		assert.Equal(t, "http://only:9000", inst)
	}
}

func TestSelectRandomStaysInCandidates(t *testing.T) {
	sel := NewSelector()
	instances := []string{"http://a:8000", "http://b:8000", "http://c:8000"}
	valid := map[string]bool{}
	for _, inst := range instances {
		valid[inst] = true
	}

	for i := 0; i < 100; i++ {
		inst, err := sel.Select("svc", instances, core.LoadBalanceRandom)
		require.NoError(t, err)
		assert.True(t, valid[inst], "selected unknown instance %s", inst)
	}
}

func TestSelectLeastConnections(t *testing.T) {
	sel := NewSelector()
	instances := []string{"http://a:8000", "http://b:8000"}

	// Two selections without completion load both instances once.
	first, err := sel.Select("svc", instances, core.LoadBalanceLeastConnections)
	require.NoError(t, err)
	second, err := sel.Select("svc", instances, core.LoadBalanceLeastConnections)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	// Completing the first request makes its instance least loaded again.
	sel.RecordOutcome("svc", first, 10*time.Millisecond, false)

	third, err := sel.Select("svc", instances, core.LoadBalanceLeastConnections)
	require.NoError(t, err)
	assert.Equal(t, first, third)
}

func TestRecordOutcomeRingBounded(t *testing.T) {
	sel := NewSelector()

	// First 50 outcomes at 1s would dominate the average if retained.
	for i := 0; i < 50; i++ {
		sel.RecordOutcome("svc", "http://a:8000", time.Second, false)
	}
	// 100 more at 10ms should evict every old sample.
	for i := 0; i < 100; i++ {
		sel.RecordOutcome("svc", "http://a:8000", 10*time.Millisecond, false)
	}

	assert.Equal(t, 10*time.Millisecond, sel.AverageResponseTime("svc"))
}

func TestErrorRate(t *testing.T) {
	sel := NewSelector()

	for i := 0; i < 8; i++ {
		sel.RecordOutcome("svc", "http://a:8000", time.Millisecond, false)
	}
	sel.RecordOutcome("svc", "http://a:8000", time.Millisecond, true)
	sel.RecordOutcome("svc", "http://a:8000", time.Millisecond, true)

	assert.InDelta(t, 20.0, sel.ErrorRate("svc"), 0.001)
	assert.Zero(t, sel.ErrorRate("never-seen"))
}

func TestHealthScore(t *testing.T) {
	sel := NewSelector()

	// Fast and error free: full score.
	for i := 0; i < 10; i++ {
		sel.RecordOutcome("fast", "http://a:8000", 5*time.Millisecond, false)
	}
	assert.InDelta(t, 100.0, sel.HealthScore("fast"), 0.001)

	// All errors drag the error component to zero.
	for i := 0; i < 10; i++ {
		sel.RecordOutcome("failing", "http://b:8000", 5*time.Millisecond, true)
	}
	assert.InDelta(t, 50.0, sel.HealthScore("failing"), 0.001)

	// 600ms average: time component is 100-(600-100)/10 = 50.
	for i := 0; i < 10; i++ {
		sel.RecordOutcome("slow", "http://c:8000", 600*time.Millisecond, false)
	}
	assert.InDelta(t, 75.0, sel.HealthScore("slow"), 0.001)
}

func TestSummary(t *testing.T) {
	sel := NewSelector()

	for i := 0; i < 4; i++ {
		sel.RecordOutcome("users", "http://a:8000", 10*time.Millisecond, false)
	}
	sel.RecordOutcome("alerts", "http://b:8000", 20*time.Millisecond, true)

	sum := sel.Summary()
	assert.Equal(t, uint64(5), sum.TotalRequests)
	assert.Equal(t, uint64(4), sum.RequestsPerService["users"])
	assert.Equal(t, uint64(1), sum.RequestsPerService["alerts"])
	assert.InDelta(t, 10.0, sum.AverageResponseMS["users"], 0.001)
	assert.InDelta(t, 100.0, sum.ErrorRates["alerts"], 0.001)
	assert.InDelta(t, 20.0, sum.OverallErrorRate, 0.001)
}
