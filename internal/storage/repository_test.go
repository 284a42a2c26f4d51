package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bendatsko/dacroq/internal/apierr"
	"github.com/bendatsko/dacroq/internal/migrate"
	"github.com/bendatsko/dacroq/internal/storage/models"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	db, err := Open(":memory:", zap.NewNop())
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, (migrate.Runner{Dir: "../../migrations"}).Up(context.Background(), sqlDB))

	return New(db)
}

func TestCreateAndGetTest(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	test := &models.Test{Name: "snr sweep", ChipType: "ldpc", Status: "pending"}
	require.NoError(t, repo.CreateTest(ctx, test))
	require.NotEmpty(t, test.ID)

	got, err := repo.GetTest(ctx, test.ID)
	require.NoError(t, err)
	require.Equal(t, "snr sweep", got.Name)
}

func TestGetTestNotFoundMapsToApierr(t *testing.T) {
	repo := newTestRepo(t)
	_, err := repo.GetTest(context.Background(), "missing")
	require.True(t, apierr.Is(err, apierr.NotFound))
}

func TestDeleteTestCascadesResults(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	test := &models.Test{Name: "cascade check", ChipType: "sat", Status: "completed"}
	require.NoError(t, repo.CreateTest(ctx, test))
	require.NoError(t, repo.AppendTestResult(ctx, &models.TestResult{TestID: test.ID, Iteration: 1}))

	require.NoError(t, repo.DeleteTest(ctx, test.ID))

	results, err := repo.ListTestResults(ctx, test.ID)
	require.NoError(t, err)
	require.Empty(t, results)
}

func TestLDPCJobProgressStampsTimestamps(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	job := &models.LDPCJob{Name: "snr-campaign", Status: "queued"}
	require.NoError(t, repo.CreateLDPCJob(ctx, job))

	require.NoError(t, repo.UpdateLDPCJobProgress(ctx, job.ID, 0.5, "running"))
	updated, err := repo.GetLDPCJob(ctx, job.ID)
	require.NoError(t, err)
	require.NotNil(t, updated.Started)
	require.Nil(t, updated.Completed)

	require.NoError(t, repo.UpdateLDPCJobProgress(ctx, job.ID, 1, "completed"))
	done, err := repo.GetLDPCJob(ctx, job.ID)
	require.NoError(t, err)
	require.NotNil(t, done.Completed)
}

func TestUpsertUserCreatesThenUpdatesLastLogin(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	u1, err := repo.UpsertUserByExternalSubject(ctx, "sub-123", "a@example.com", "Ada")
	require.NoError(t, err)
	firstLogin := u1.LastLogin

	u2, err := repo.UpsertUserByExternalSubject(ctx, "sub-123", "a@example.com", "Ada Lovelace")
	require.NoError(t, err)
	require.Equal(t, u1.ID, u2.ID)
	require.Equal(t, "Ada Lovelace", u2.Name)
	require.False(t, u2.LastLogin.Before(*firstLogin))
}

func TestRecentSystemMetricsReturnsOldestFirst(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.RecordSystemMetric(ctx, &models.SystemMetric{CPUPercent: float64(i)}))
	}

	metrics, err := repo.RecentSystemMetrics(ctx, 10)
	require.NoError(t, err)
	require.Len(t, metrics, 3)
	require.Equal(t, 0.0, metrics[0].CPUPercent)
	require.Equal(t, 2.0, metrics[2].CPUPercent)
}

func TestDeleteAnnouncementNotFound(t *testing.T) {
	repo := newTestRepo(t)
	err := repo.DeleteAnnouncement(context.Background(), "missing")
	require.True(t, apierr.Is(err, apierr.NotFound))
}
