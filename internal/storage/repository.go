package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bendatsko/dacroq/internal/apierr"
	"github.com/bendatsko/dacroq/internal/storage/models"
)

// Repository wraps a *gorm.DB with CRUD access to every SPEC_FULL.md §5
// table. isTx distinguishes a transaction-scoped child so WithTx never
// nests a Begin inside another Begin.
type Repository struct {
	db   *gorm.DB
	isTx bool
}

// New returns a Repository bound to db.
func New(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx reuses an existing transaction or starts a new one to run fn.
func (r *Repository) WithTx(ctx context.Context, fn func(*Repository) error) error {
	if r.isTx {
		return fn(r)
	}

	tx := r.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return tx.Error
	}

	child := &Repository{db: tx, isTx: true}
	if err := fn(child); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit().Error
}

// DB exposes the underlying *sql.DB so health checks can ping it without
// depending on GORM.
func (r *Repository) DB() (*sql.DB, error) {
	return r.db.DB()
}

// parseJSON defensively decodes a JSON-valued column into v, falling back
// to v's zero value on a malformed or empty string rather than failing the
// whole read.
func parseJSON(raw string, v interface{}) {
	if raw == "" {
		return
	}
	_ = json.Unmarshal([]byte(raw), v)
}

func toJSON(v interface{}) string {
	if v == nil {
		return ""
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

func notFound(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apierr.New(apierr.NotFound, what+" not found")
	}
	return err
}

// CreateTest inserts a new test row, assigning an ID if absent.
func (r *Repository) CreateTest(ctx context.Context, t *models.Test) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.Created.IsZero() {
		t.Created = time.Now()
	}
	return r.db.WithContext(ctx).Create(t).Error
}

// GetTest returns a test by ID.
func (r *Repository) GetTest(ctx context.Context, id string) (*models.Test, error) {
	var t models.Test
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&t).Error
	if err != nil {
		return nil, notFound(err, "test")
	}
	return &t, nil
}

// ListTests returns tests ordered most-recent-first, optionally filtered
// by chip type.
func (r *Repository) ListTests(ctx context.Context, chipType string, limit, offset int) ([]models.Test, error) {
	var tests []models.Test
	q := r.db.WithContext(ctx).Order("created DESC")
	if chipType != "" {
		q = q.Where("chip_type = ?", chipType)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}
	if err := q.Find(&tests).Error; err != nil {
		return nil, err
	}
	return tests, nil
}

// UpdateTestStatus sets a test's status column.
func (r *Repository) UpdateTestStatus(ctx context.Context, id, status string) error {
	res := r.db.WithContext(ctx).Model(&models.Test{}).Where("id = ?", id).Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apierr.New(apierr.NotFound, "test not found")
	}
	return nil
}

// DeleteTest removes a test and cascades to its test_results rows.
func (r *Repository) DeleteTest(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Test{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apierr.New(apierr.NotFound, "test not found")
	}
	return nil
}

// RenameTest updates a test's display name.
func (r *Repository) RenameTest(ctx context.Context, id, name string) error {
	res := r.db.WithContext(ctx).Model(&models.Test{}).Where("id = ?", id).Update("name", name)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apierr.New(apierr.NotFound, "test not found")
	}
	return nil
}

// AppendTestResult inserts one result row for a test run.
func (r *Repository) AppendTestResult(ctx context.Context, res *models.TestResult) error {
	if res.ID == "" {
		res.ID = uuid.New().String()
	}
	if res.Timestamp.IsZero() {
		res.Timestamp = time.Now()
	}
	return r.db.WithContext(ctx).Create(res).Error
}

// ListTestResults returns every result recorded for a test, in iteration
// order.
func (r *Repository) ListTestResults(ctx context.Context, testID string) ([]models.TestResult, error) {
	var results []models.TestResult
	err := r.db.WithContext(ctx).Where("test_id = ?", testID).Order("iteration ASC").Find(&results).Error
	return results, err
}

// CreateLDPCJob inserts a new LDPC job row.
func (r *Repository) CreateLDPCJob(ctx context.Context, j *models.LDPCJob) error {
	if j.ID == "" {
		j.ID = uuid.New().String()
	}
	if j.Created.IsZero() {
		j.Created = time.Now()
	}
	return r.db.WithContext(ctx).Create(j).Error
}

// GetLDPCJob returns an LDPC job by ID.
func (r *Repository) GetLDPCJob(ctx context.Context, id string) (*models.LDPCJob, error) {
	var j models.LDPCJob
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&j).Error
	if err != nil {
		return nil, notFound(err, "ldpc job")
	}
	return &j, nil
}

// ListLDPCJobs returns LDPC jobs ordered most-recent-first.
func (r *Repository) ListLDPCJobs(ctx context.Context, status string) ([]models.LDPCJob, error) {
	var jobs []models.LDPCJob
	q := r.db.WithContext(ctx).Order("created DESC")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	err := q.Find(&jobs).Error
	return jobs, err
}

// UpdateLDPCJobProgress updates a job's progress and status fields, and
// stamps Started/Completed the first time status transitions into or out
// of "running".
func (r *Repository) UpdateLDPCJobProgress(ctx context.Context, id string, progress float64, status string) error {
	updates := map[string]interface{}{"progress": progress, "status": status}
	now := time.Now()
	switch status {
	case "running":
		updates["started"] = gorm.Expr("COALESCE(started, ?)", now)
	case "completed", "failed":
		updates["completed"] = gorm.Expr("COALESCE(completed, ?)", now)
	}
	res := r.db.WithContext(ctx).Model(&models.LDPCJob{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apierr.New(apierr.NotFound, "ldpc job not found")
	}
	return nil
}

// DeleteLDPCJob removes an LDPC job row.
func (r *Repository) DeleteLDPCJob(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.LDPCJob{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apierr.New(apierr.NotFound, "ldpc job not found")
	}
	return nil
}

// RenameLDPCJob updates a job's display name.
func (r *Repository) RenameLDPCJob(ctx context.Context, id, name string) error {
	res := r.db.WithContext(ctx).Model(&models.LDPCJob{}).Where("id = ?", id).Update("name", name)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apierr.New(apierr.NotFound, "ldpc job not found")
	}
	return nil
}

// SetLDPCJobResults stores the final results payload for a job.
func (r *Repository) SetLDPCJobResults(ctx context.Context, id string, results interface{}) error {
	res := r.db.WithContext(ctx).Model(&models.LDPCJob{}).Where("id = ?", id).Update("results", toJSON(results))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apierr.New(apierr.NotFound, "ldpc job not found")
	}
	return nil
}

// SetLDPCJobMetadata stores the job's summary metadata.
func (r *Repository) SetLDPCJobMetadata(ctx context.Context, id string, metadata interface{}) error {
	res := r.db.WithContext(ctx).Model(&models.LDPCJob{}).Where("id = ?", id).Update("metadata", toJSON(metadata))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apierr.New(apierr.NotFound, "ldpc job not found")
	}
	return nil
}

// CreateSATTest inserts a new SAT campaign row.
func (r *Repository) CreateSATTest(ctx context.Context, s *models.SATTest) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	if s.Created.IsZero() {
		s.Created = time.Now()
	}
	return r.db.WithContext(ctx).Create(s).Error
}

// GetSATTest returns a SAT campaign by ID.
func (r *Repository) GetSATTest(ctx context.Context, id string) (*models.SATTest, error) {
	var s models.SATTest
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&s).Error
	if err != nil {
		return nil, notFound(err, "sat test")
	}
	return &s, nil
}

// ListSATTests returns SAT campaigns ordered most-recent-first, optionally
// filtered by family.
func (r *Repository) ListSATTests(ctx context.Context, family string) ([]models.SATTest, error) {
	var tests []models.SATTest
	q := r.db.WithContext(ctx).Order("created DESC")
	if family != "" {
		q = q.Where("family = ?", family)
	}
	err := q.Find(&tests).Error
	return tests, err
}

// UpdateSATTestProgress mirrors UpdateLDPCJobProgress for the SAT table.
func (r *Repository) UpdateSATTestProgress(ctx context.Context, id string, progress float64, status string) error {
	updates := map[string]interface{}{"progress": progress, "status": status}
	now := time.Now()
	switch status {
	case "running":
		updates["started"] = gorm.Expr("COALESCE(started, ?)", now)
	case "completed", "failed":
		updates["completed"] = gorm.Expr("COALESCE(completed, ?)", now)
	}
	res := r.db.WithContext(ctx).Model(&models.SATTest{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apierr.New(apierr.NotFound, "sat test not found")
	}
	return nil
}

// SetSATTestResults stores the final results payload for a SAT campaign.
func (r *Repository) SetSATTestResults(ctx context.Context, id string, results interface{}) error {
	res := r.db.WithContext(ctx).Model(&models.SATTest{}).Where("id = ?", id).Update("results", toJSON(results))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apierr.New(apierr.NotFound, "sat test not found")
	}
	return nil
}

// SetSATTestMetadata stores the campaign's progress/summary metadata.
func (r *Repository) SetSATTestMetadata(ctx context.Context, id string, metadata interface{}) error {
	res := r.db.WithContext(ctx).Model(&models.SATTest{}).Where("id = ?", id).Update("metadata", toJSON(metadata))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apierr.New(apierr.NotFound, "sat test not found")
	}
	return nil
}

// UpsertUserByExternalSubject finds a user by OAuth subject (falling back
// to email), updating name/last_login, or creates one.
func (r *Repository) UpsertUserByExternalSubject(ctx context.Context, externalSubject, email, name string) (*models.User, error) {
	var u models.User
	err := r.db.WithContext(ctx).
		Where("external_subject = ? OR email = ?", externalSubject, email).
		First(&u).Error

	now := time.Now()
	if errors.Is(err, gorm.ErrRecordNotFound) {
		u = models.User{
			ID:              uuid.New().String(),
			Email:           email,
			Name:            name,
			Role:            "user",
			CreatedAt:       now,
			LastLogin:       &now,
			ExternalSubject: externalSubject,
		}
		if err := r.db.WithContext(ctx).Create(&u).Error; err != nil {
			return nil, err
		}
		return &u, nil
	}
	if err != nil {
		return nil, err
	}

	u.LastLogin = &now
	u.ExternalSubject = externalSubject
	if name != "" {
		u.Name = name
	}
	if err := r.db.WithContext(ctx).Save(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// RecordSystemMetric appends one sampled metric row.
func (r *Repository) RecordSystemMetric(ctx context.Context, m *models.SystemMetric) error {
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now()
	}
	return r.db.WithContext(ctx).Create(m).Error
}

// RecentSystemMetrics returns the most recent metric samples, oldest first.
func (r *Repository) RecentSystemMetrics(ctx context.Context, limit int) ([]models.SystemMetric, error) {
	var metrics []models.SystemMetric
	if limit <= 0 {
		limit = 100
	}
	err := r.db.WithContext(ctx).Order("timestamp DESC").Limit(limit).Find(&metrics).Error
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(metrics)-1; i < j; i, j = i+1, j-1 {
		metrics[i], metrics[j] = metrics[j], metrics[i]
	}
	return metrics, nil
}

// ListAnnouncements returns announcements newest first.
func (r *Repository) ListAnnouncements(ctx context.Context) ([]models.Announcement, error) {
	var items []models.Announcement
	err := r.db.WithContext(ctx).Order("created_at DESC").Find(&items).Error
	return items, err
}

// CreateAnnouncement inserts a new announcement.
func (r *Repository) CreateAnnouncement(ctx context.Context, a *models.Announcement) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	return r.db.WithContext(ctx).Create(a).Error
}

// DeleteAnnouncement removes an announcement by ID.
func (r *Repository) DeleteAnnouncement(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Announcement{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apierr.New(apierr.NotFound, "announcement not found")
	}
	return nil
}
