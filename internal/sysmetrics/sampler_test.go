package sysmetrics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bendatsko/dacroq/internal/migrate"
	"github.com/bendatsko/dacroq/internal/storage"
)

func newTestRepo(t *testing.T) *storage.Repository {
	t.Helper()
	db, err := storage.Open(":memory:", zap.NewNop())
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, (migrate.Runner{Dir: "../../migrations"}).Up(context.Background(), sqlDB))

	return storage.New(db)
}

func TestSampleReportsPlausibleUsage(t *testing.T) {
	s := New(newTestRepo(t), zap.NewNop())
	m, err := s.sample()
	require.NoError(t, err)
	require.GreaterOrEqual(t, m.CPUPercent, 0.0)
	require.GreaterOrEqual(t, m.MemoryPercent, 0.0)
	require.LessOrEqual(t, m.MemoryPercent, 100.0)
	require.GreaterOrEqual(t, m.DiskPercent, 0.0)
}

func TestTickPersistsOneRow(t *testing.T) {
	repo := newTestRepo(t)
	s := New(repo, zap.NewNop())

	s.tick(context.Background())

	rows, err := repo.RecentSystemMetrics(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	repo := newTestRepo(t)
	s := New(repo, zap.NewNop())
	s.Interval = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after context cancellation")
	}

	rows, err := repo.RecentSystemMetrics(context.Background(), 100)
	require.NoError(t, err)
	require.NotEmpty(t, rows)
}
