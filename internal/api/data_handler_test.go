package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bendatsko/dacroq/internal/auth"
	"github.com/bendatsko/dacroq/internal/migrate"
	"github.com/bendatsko/dacroq/internal/orchestrator"
	"github.com/bendatsko/dacroq/internal/storage"
	"github.com/bendatsko/dacroq/internal/storage/models"
)

func newDataTestRepo(t *testing.T) *storage.Repository {
	t.Helper()
	db, err := storage.Open(":memory:", zap.NewNop())
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, (migrate.Runner{Dir: "../../migrations"}).Up(context.Background(), sqlDB))

	return storage.New(db)
}

type fakeGoogleVerifier struct{}

func (fakeGoogleVerifier) Verify(ctx context.Context, credential string) (auth.Identity, error) {
	return auth.Identity{Subject: "sub-1", Email: "e@x.com", Name: "Eve"}, nil
}

func newTestDataHandler(t *testing.T) (*DataHandler, *gin.Engine, *storage.Repository) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repo := newDataTestRepo(t)
	gate := auth.NewGate(fakeGoogleVerifier{}, repo, zap.NewNop(), false, false)
	ldpc := orchestrator.NewLDPCOrchestrator(repo, nil)
	sat := orchestrator.NewSATOrchestrator(repo, zap.NewNop())

	h := NewDataHandler(repo, gate, ldpc, sat, zap.NewNop())

	r := gin.New()
	RegisterDataRoutes(r, h)
	return h, r, repo
}

func TestAuthGoogleUpsertsUser(t *testing.T) {
	_, r, _ := newTestDataHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/auth/google", strings.NewReader(`{"credential":"whatever"}`))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), "e@x.com")
}

func TestCreateAndListTests(t *testing.T) {
	_, r, _ := newTestDataHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/tests", strings.NewReader(`{"name":"t1","chip_type":"LDPC"}`))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	rr2 := httptest.NewRecorder()
	r.ServeHTTP(rr2, httptest.NewRequest(http.MethodGet, "/tests", nil))
	require.Equal(t, http.StatusOK, rr2.Code)
	require.Contains(t, rr2.Body.String(), `"t1"`)
}

func TestDeleteTestRefusesNonTerminalStatus(t *testing.T) {
	_, r, repo := newTestDataHandler(t)

	test := &models.Test{Name: "running-test", ChipType: "LDPC", Status: "running"}
	require.NoError(t, repo.CreateTest(context.Background(), test))

	req := httptest.NewRequest(http.MethodDelete, "/tests/"+test.ID, nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestDeleteTestSucceedsOnTerminalStatus(t *testing.T) {
	_, r, repo := newTestDataHandler(t)

	test := &models.Test{Name: "done-test", ChipType: "LDPC", Status: "completed"}
	require.NoError(t, repo.CreateTest(context.Background(), test))

	req := httptest.NewRequest(http.MethodDelete, "/tests/"+test.ID, nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
}

func TestRenameTestUpdatesName(t *testing.T) {
	_, r, repo := newTestDataHandler(t)

	test := &models.Test{Name: "orig", ChipType: "LDPC", Status: "completed"}
	require.NoError(t, repo.CreateTest(context.Background(), test))

	req := httptest.NewRequest(http.MethodPut, "/tests/"+test.ID, strings.NewReader(`{"name":"renamed"}`))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	updated, err := repo.GetTest(context.Background(), test.ID)
	require.NoError(t, err)
	require.Equal(t, "renamed", updated.Name)
}

func TestCreateLDPCJobWithoutHardwareFailsFast(t *testing.T) {
	_, r, _ := newTestDataHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/ldpc/jobs", strings.NewReader(`{"name":"sweep","start_snr":1,"end_snr":3,"runs_per_snr":2}`))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestLDPCTestSummariesAggregatesStatus(t *testing.T) {
	_, r, repo := newTestDataHandler(t)

	require.NoError(t, repo.CreateLDPCJob(context.Background(), &models.LDPCJob{Name: "a", Status: "completed", Progress: 100}))
	require.NoError(t, repo.CreateLDPCJob(context.Background(), &models.LDPCJob{Name: "b", Status: "failed", Progress: 40}))

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/ldpc/test-summaries", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `"total":2`)
}

func TestSATSolveSubmitReturnsTestID(t *testing.T) {
	_, r, _ := newTestDataHandler(t)

	body := `{"name":"campaign","family":"flat50","problem_indices":[0],"solvers":[{"name":"minisat","iterations":1}]}`
	req := httptest.NewRequest(http.MethodPost, "/sat/solve", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), "test_id")
}

func TestSystemMetricsRecordAndList(t *testing.T) {
	_, r, _ := newTestDataHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/system/metrics", strings.NewReader(`{"cpu_percent":12.5,"memory_percent":40,"disk_percent":60}`))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	rr2 := httptest.NewRecorder()
	r.ServeHTTP(rr2, httptest.NewRequest(http.MethodGet, "/system/metrics", nil))
	require.Equal(t, http.StatusOK, rr2.Code)
	require.Contains(t, rr2.Body.String(), "12.5")
}

func TestAnnouncementsCreateAndList(t *testing.T) {
	_, r, _ := newTestDataHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/announcements", strings.NewReader(`{"title":"maintenance","body":"down at 5pm"}`))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	rr2 := httptest.NewRecorder()
	r.ServeHTTP(rr2, httptest.NewRequest(http.MethodGet, "/announcements", nil))
	require.Equal(t, http.StatusOK, rr2.Code)
	require.Contains(t, rr2.Body.String(), "maintenance")
}
