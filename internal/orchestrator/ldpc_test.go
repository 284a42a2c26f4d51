package orchestrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bendatsko/dacroq/internal/apierr"
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

func TestRunJobRejectsOutOfRangeSNR(t *testing.T) {
	o := NewLDPCOrchestrator(newTestRepo(t), nil)
	_, err := o.RunJob(context.Background(), "bad snr", 5, 2, 3)
	require.True(t, apierr.Is(err, apierr.InvalidInput))
}

func TestRunJobRejectsOutOfRangeRuns(t *testing.T) {
	o := NewLDPCOrchestrator(newTestRepo(t), nil)
	_, err := o.RunJob(context.Background(), "bad runs", 1, 5, 20)
	require.True(t, apierr.Is(err, apierr.InvalidInput))
}

func TestRunJobWithoutHardwareFailsFast(t *testing.T) {
	o := NewLDPCOrchestrator(newTestRepo(t), nil)
	_, err := o.RunJob(context.Background(), "no hardware", 1, 3, 1)
	require.True(t, apierr.Is(err, apierr.NotFound))
}
