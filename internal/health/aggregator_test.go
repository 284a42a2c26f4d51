package health

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type mockChecker struct {
	name   string
	status Status
}

func (m *mockChecker) Name() string { return m.name }

func (m *mockChecker) Check(ctx context.Context) CheckResult {
	return CheckResult{
		Status:  m.status,
		Message: "mock",
		Latency: time.Millisecond,
	}
}

func TestAggregatorAllHealthy(t *testing.T) {
	agg := NewAggregator(
		&mockChecker{"database", StatusHealthy},
		&mockChecker{"gpio", StatusHealthy},
	)

	require.Equal(t, StatusHealthy, agg.OverallStatus(context.Background()))
	require.True(t, agg.Ready(context.Background()))
}

func TestAggregatorPartialDegraded(t *testing.T) {
	agg := NewAggregator(
		&mockChecker{"database", StatusHealthy},
		&mockChecker{"sessionpool", StatusDegraded},
	)

	require.Equal(t, StatusDegraded, agg.OverallStatus(context.Background()))
	require.True(t, agg.Ready(context.Background()), "degraded should still be ready")
}

func TestAggregatorPartialUnhealthy(t *testing.T) {
	agg := NewAggregator(
		&mockChecker{"database", StatusHealthy},
		&mockChecker{"gpio", StatusUnhealthy},
	)

	require.Equal(t, StatusUnhealthy, agg.OverallStatus(context.Background()))
	require.False(t, agg.Ready(context.Background()))
}

func TestAggregatorCheckAllConcurrent(t *testing.T) {
	agg := NewAggregator(
		&mockChecker{"check1", StatusHealthy},
		&mockChecker{"check2", StatusHealthy},
		&mockChecker{"check3", StatusHealthy},
	)

	results := agg.CheckAll(context.Background())
	require.Len(t, results, 3)
	for name, result := range results {
		require.Equal(t, StatusHealthy, result.Status, name)
	}
}

func TestAggregatorAddChecker(t *testing.T) {
	agg := NewAggregator(&mockChecker{"initial", StatusHealthy})
	agg.AddChecker(&mockChecker{"added", StatusHealthy})

	results := agg.CheckAll(context.Background())
	require.Len(t, results, 2)
}

func TestAggregatorAlive(t *testing.T) {
	agg := NewAggregator()
	require.True(t, agg.Alive())
}
