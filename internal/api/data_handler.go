package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/bendatsko/dacroq/internal/apierr"
	"github.com/bendatsko/dacroq/internal/auth"
	"github.com/bendatsko/dacroq/internal/orchestrator"
	"github.com/bendatsko/dacroq/internal/storage"
	"github.com/bendatsko/dacroq/internal/storage/models"
)

// DataHandler serves the Data service's HTTP surface (SPEC_FULL.md §6
// "HTTP — Data service"): auth, test/job CRUD, summary analytics, system
// metrics, and announcements. It never talks to a device directly; hardware
// access is the Hardware service's job.
type DataHandler struct {
	Repo   *storage.Repository
	Gate   *auth.Gate
	LDPC   *orchestrator.LDPCOrchestrator
	SAT    *orchestrator.SATOrchestrator
	Logger *zap.Logger
}

func NewDataHandler(repo *storage.Repository, gate *auth.Gate, ldpc *orchestrator.LDPCOrchestrator, sat *orchestrator.SATOrchestrator, logger *zap.Logger) *DataHandler {
	return &DataHandler{Repo: repo, Gate: gate, LDPC: ldpc, SAT: sat, Logger: logger}
}

// terminal reports whether a test/job status will never change again,
// per spec.md §3's "Cancellation is not supported mid-run; clients may
// delete completed/failed records."
func terminal(status string) bool {
	return status == "completed" || status == "failed" || status == "cancelled"
}

type googleAuthBody struct {
	Credential string `json:"credential"`
}

// AuthGoogle verifies a Google identity token and upserts the user.
func (h *DataHandler) AuthGoogle(c *gin.Context) {
	var body googleAuthBody
	if err := c.ShouldBindJSON(&body); err != nil {
		apierr.WriteJSON(c, apierr.New(apierr.InvalidInput, "credential is required"))
		return
	}
	user, err := h.Gate.Authenticate(c.Request.Context(), body.Credential)
	if err != nil {
		apierr.WriteJSON(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

type createTestBody struct {
	Name        string `json:"name"`
	ChipType    string `json:"chip_type"`
	TestMode    string `json:"test_mode"`
	Environment string `json:"environment"`
	Config      any    `json:"config"`
}

// ListTests returns tests, optionally filtered by chip_type, paginated.
func (h *DataHandler) ListTests(c *gin.Context) {
	limit, offset := pageParams(c)
	tests, err := h.Repo.ListTests(c.Request.Context(), c.Query("chip_type"), limit, offset)
	if err != nil {
		apierr.WriteJSON(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tests": tests})
}

// CreateTest records a new test in the "created" status. Running it is a
// client responsibility: the frontend drives the Hardware service directly
// and reports results back through AppendTestResult/UpdateTestStatus.
func (h *DataHandler) CreateTest(c *gin.Context) {
	var body createTestBody
	if err := c.ShouldBindJSON(&body); err != nil || body.Name == "" || body.ChipType == "" {
		apierr.WriteJSON(c, apierr.New(apierr.InvalidInput, "name and chip_type are required"))
		return
	}
	cfg, _ := json.Marshal(body.Config)
	t := &models.Test{
		Name:        body.Name,
		ChipType:    body.ChipType,
		TestMode:    body.TestMode,
		Environment: body.Environment,
		Config:      string(cfg),
		Status:      "created",
		Created:     time.Now().UTC(),
	}
	if err := h.Repo.CreateTest(c.Request.Context(), t); err != nil {
		apierr.WriteJSON(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"test": t})
}

// GetTest returns one test's row.
func (h *DataHandler) GetTest(c *gin.Context) {
	t, err := h.Repo.GetTest(c.Request.Context(), c.Param("id"))
	if err != nil {
		apierr.WriteJSON(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"test": t})
}

type renameBody struct {
	Name string `json:"name"`
}

// RenameTest implements PUT /tests/<id> as a rename, the one field spec.md
// leaves mutable on an otherwise-immutable record.
func (h *DataHandler) RenameTest(c *gin.Context) {
	var body renameBody
	if err := c.ShouldBindJSON(&body); err != nil || body.Name == "" {
		apierr.WriteJSON(c, apierr.New(apierr.InvalidInput, "name is required"))
		return
	}
	if err := h.Repo.RenameTest(c.Request.Context(), c.Param("id"), body.Name); err != nil {
		apierr.WriteJSON(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// DeleteTest removes a test and its cascaded results, refusing to touch a
// record that is still running.
func (h *DataHandler) DeleteTest(c *gin.Context) {
	id := c.Param("id")
	t, err := h.Repo.GetTest(c.Request.Context(), id)
	if err != nil {
		apierr.WriteJSON(c, err)
		return
	}
	if !terminal(t.Status) {
		apierr.WriteJSON(c, apierr.New(apierr.InvalidInput, "cannot delete a test that is not completed or failed"))
		return
	}
	if err := h.Repo.DeleteTest(c.Request.Context(), id); err != nil {
		apierr.WriteJSON(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

type createLDPCJobBody struct {
	Name       string `json:"name"`
	StartSNR   int    `json:"start_snr"`
	EndSNR     int    `json:"end_snr"`
	RunsPerSNR int    `json:"runs_per_snr"`
}

// ListLDPCJobs returns jobs, optionally filtered by status.
func (h *DataHandler) ListLDPCJobs(c *gin.Context) {
	jobs, err := h.Repo.ListLDPCJobs(c.Request.Context(), c.Query("status"))
	if err != nil {
		apierr.WriteJSON(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": jobs})
}

// CreateLDPCJob runs a synchronous SNR sweep. In the Data service binary
// the orchestrator's pool is nil, so this always fails fast with
// apierr.NotFound unless wired to a live Hardware service in a future
// deployment that links the two processes.
func (h *DataHandler) CreateLDPCJob(c *gin.Context) {
	var body createLDPCJobBody
	if err := c.ShouldBindJSON(&body); err != nil || body.Name == "" {
		apierr.WriteJSON(c, apierr.New(apierr.InvalidInput, "name is required"))
		return
	}
	job, err := h.LDPC.RunJob(c.Request.Context(), body.Name, body.StartSNR, body.EndSNR, body.RunsPerSNR)
	if err != nil {
		apierr.WriteJSON(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"job": job})
}

// GetLDPCJob returns one job's row.
func (h *DataHandler) GetLDPCJob(c *gin.Context) {
	j, err := h.Repo.GetLDPCJob(c.Request.Context(), c.Param("id"))
	if err != nil {
		apierr.WriteJSON(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"job": j})
}

// RenameLDPCJob implements PUT /ldpc/jobs/<id> as a rename.
func (h *DataHandler) RenameLDPCJob(c *gin.Context) {
	var body renameBody
	if err := c.ShouldBindJSON(&body); err != nil || body.Name == "" {
		apierr.WriteJSON(c, apierr.New(apierr.InvalidInput, "name is required"))
		return
	}
	if err := h.Repo.RenameLDPCJob(c.Request.Context(), c.Param("id"), body.Name); err != nil {
		apierr.WriteJSON(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// DeleteLDPCJob removes a job, refusing to touch one still running.
func (h *DataHandler) DeleteLDPCJob(c *gin.Context) {
	id := c.Param("id")
	j, err := h.Repo.GetLDPCJob(c.Request.Context(), id)
	if err != nil {
		apierr.WriteJSON(c, err)
		return
	}
	if !terminal(j.Status) {
		apierr.WriteJSON(c, apierr.New(apierr.InvalidInput, "cannot delete a job that is not completed or failed"))
		return
	}
	if err := h.Repo.DeleteLDPCJob(c.Request.Context(), id); err != nil {
		apierr.WriteJSON(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// LDPCTestSummaries aggregates stored job results without touching
// hardware: counts by status, mean progress, and the most recent failures.
func (h *DataHandler) LDPCTestSummaries(c *gin.Context) {
	jobs, err := h.Repo.ListLDPCJobs(c.Request.Context(), "")
	if err != nil {
		apierr.WriteJSON(c, err)
		return
	}
	c.JSON(http.StatusOK, summarizeJobs(jobs))
}

func summarizeJobs(jobs []models.LDPCJob) gin.H {
	byStatus := map[string]int{}
	var progressSum float64
	var recentFailures []string
	for _, j := range jobs {
		byStatus[j.Status]++
		progressSum += j.Progress
		if j.Status == "failed" {
			recentFailures = append(recentFailures, j.ID)
		}
	}
	meanProgress := 0.0
	if len(jobs) > 0 {
		meanProgress = progressSum / float64(len(jobs))
	}
	if len(recentFailures) > 5 {
		recentFailures = recentFailures[:5] // jobs are listed newest first
	}
	return gin.H{
		"total":           len(jobs),
		"by_status":       byStatus,
		"mean_progress":   meanProgress,
		"recent_failures": recentFailures,
	}
}

// SATTestSummaries mirrors LDPCTestSummaries for the SAT table.
func (h *DataHandler) SATTestSummaries(c *gin.Context) {
	tests, err := h.Repo.ListSATTests(c.Request.Context(), "")
	if err != nil {
		apierr.WriteJSON(c, err)
		return
	}
	byStatus := map[string]int{}
	var progressSum float64
	var recentFailures []string
	for _, t := range tests {
		byStatus[t.Status]++
		progressSum += t.Progress
		if t.Status == "failed" {
			recentFailures = append(recentFailures, t.ID)
		}
	}
	meanProgress := 0.0
	if len(tests) > 0 {
		meanProgress = progressSum / float64(len(tests))
	}
	if len(recentFailures) > 5 {
		recentFailures = recentFailures[:5] // tests are listed newest first
	}
	c.JSON(http.StatusOK, gin.H{
		"total":           len(tests),
		"by_status":       byStatus,
		"mean_progress":   meanProgress,
		"recent_failures": recentFailures,
	})
}

// ListSATTests returns SAT campaigns, optionally filtered by family.
func (h *DataHandler) ListSATTests(c *gin.Context) {
	tests, err := h.Repo.ListSATTests(c.Request.Context(), c.Query("family"))
	if err != nil {
		apierr.WriteJSON(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tests": tests})
}

// GetSATTest returns one SAT campaign's row.
func (h *DataHandler) GetSATTest(c *gin.Context) {
	t, err := h.Repo.GetSATTest(c.Request.Context(), c.Param("id"))
	if err != nil {
		apierr.WriteJSON(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"test": t})
}

type satSolveRequestBody struct {
	Name           string                    `json:"name"`
	Family         string                    `json:"family"`
	InlineDIMACS   string                    `json:"dimacs"`
	ProblemIndices []int                     `json:"problem_indices"`
	Solvers        []orchestrator.SolverSpec `json:"solvers"`
}

// SATSolveSubmit starts an async SAT campaign and returns its test ID
// immediately; progress is polled via GetSATTest.
func (h *DataHandler) SATSolveSubmit(c *gin.Context) {
	var body satSolveRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		apierr.WriteJSON(c, apierr.New(apierr.InvalidInput, "invalid request body"))
		return
	}
	id, err := h.SAT.Submit(c.Request.Context(), orchestrator.BatchRequest{
		Name:           body.Name,
		Family:         body.Family,
		InlineDIMACS:   body.InlineDIMACS,
		ProblemIndices: body.ProblemIndices,
		Solvers:        body.Solvers,
	})
	if err != nil {
		apierr.WriteJSON(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"test_id": id})
}

// SystemMetricsList returns the most recently sampled metrics.
func (h *DataHandler) SystemMetricsList(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if limit <= 0 {
		limit = 100
	}
	metrics, err := h.Repo.RecentSystemMetrics(c.Request.Context(), limit)
	if err != nil {
		apierr.WriteJSON(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"metrics": metrics})
}

type systemMetricBody struct {
	CPUPercent    float64  `json:"cpu_percent"`
	MemoryPercent float64  `json:"memory_percent"`
	DiskPercent   float64  `json:"disk_percent"`
	Temperature   *float64 `json:"temperature"`
}

// SystemMetricsRecord accepts a manually-reported sample, for environments
// where the periodic sampler cannot run (e.g. a sandboxed CI host) but the
// frontend still wants a data point on the chart.
func (h *DataHandler) SystemMetricsRecord(c *gin.Context) {
	var body systemMetricBody
	if err := c.ShouldBindJSON(&body); err != nil {
		apierr.WriteJSON(c, apierr.New(apierr.InvalidInput, "invalid request body"))
		return
	}
	m := &models.SystemMetric{
		Timestamp:     time.Now().UTC(),
		CPUPercent:    body.CPUPercent,
		MemoryPercent: body.MemoryPercent,
		DiskPercent:   body.DiskPercent,
		Temperature:   body.Temperature,
	}
	if err := h.Repo.RecordSystemMetric(c.Request.Context(), m); err != nil {
		apierr.WriteJSON(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"metric": m})
}

// ListAnnouncements returns all announcements, newest first.
func (h *DataHandler) ListAnnouncements(c *gin.Context) {
	announcements, err := h.Repo.ListAnnouncements(c.Request.Context())
	if err != nil {
		apierr.WriteJSON(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"announcements": announcements})
}

type createAnnouncementBody struct {
	Title     string `json:"title"`
	Body      string `json:"body"`
	CreatedBy string `json:"created_by"`
}

// CreateAnnouncement posts a new announcement.
func (h *DataHandler) CreateAnnouncement(c *gin.Context) {
	var body createAnnouncementBody
	if err := c.ShouldBindJSON(&body); err != nil || body.Title == "" {
		apierr.WriteJSON(c, apierr.New(apierr.InvalidInput, "title is required"))
		return
	}
	a := &models.Announcement{
		Title:     body.Title,
		Body:      body.Body,
		CreatedBy: body.CreatedBy,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.Repo.CreateAnnouncement(c.Request.Context(), a); err != nil {
		apierr.WriteJSON(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"announcement": a})
}

// DeleteAnnouncement removes an announcement.
func (h *DataHandler) DeleteAnnouncement(c *gin.Context) {
	if err := h.Repo.DeleteAnnouncement(c.Request.Context(), c.Param("id")); err != nil {
		apierr.WriteJSON(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func pageParams(c *gin.Context) (limit, offset int) {
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "100"))
	offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
