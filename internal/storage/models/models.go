// Package models holds the GORM-tagged row types persisted in the
// embedded SQLite store, matching SPEC_FULL.md §5.
//
// JSON-valued columns (Config, Metadata, Results) are stored as TEXT and
// parsed defensively by the repository layer; this package keeps them as
// plain strings rather than json.RawMessage so a malformed value never
// blocks a scan.
package models

import "time"

// Test maps the tests table.
type Test struct {
	ID          string    `gorm:"column:id;primaryKey;type:text"`
	Name        string    `gorm:"column:name;not null"`
	ChipType    string    `gorm:"column:chip_type;not null;index"`
	TestMode    string    `gorm:"column:test_mode"`
	Environment string    `gorm:"column:environment"`
	Config      string    `gorm:"column:config;type:text"`
	Status      string    `gorm:"column:status;not null;index"`
	Created     time.Time `gorm:"column:created;not null"`
	Metadata    string    `gorm:"column:metadata;type:text"`
}

func (Test) TableName() string { return "tests" }

// TestResult maps the test_results table. TestID cascades on delete of
// its parent Test.
type TestResult struct {
	ID        string    `gorm:"column:id;primaryKey;type:text"`
	TestID    string    `gorm:"column:test_id;not null;index"`
	Iteration int       `gorm:"column:iteration;not null"`
	Timestamp time.Time `gorm:"column:timestamp;not null"`
	Results   string    `gorm:"column:results;type:text"`
}

func (TestResult) TableName() string { return "test_results" }

// LDPCJob maps the ldpc_jobs table.
type LDPCJob struct {
	ID        string     `gorm:"column:id;primaryKey;type:text"`
	Name      string     `gorm:"column:name;not null"`
	JobType   string     `gorm:"column:job_type"`
	Config    string     `gorm:"column:config;type:text"`
	Status    string     `gorm:"column:status;not null;index"`
	Created   time.Time  `gorm:"column:created;not null"`
	Started   *time.Time `gorm:"column:started"`
	Completed *time.Time `gorm:"column:completed"`
	Progress  float64    `gorm:"column:progress;not null;default:0"`
	Results   string     `gorm:"column:results;type:text"`
	Metadata  string     `gorm:"column:metadata;type:text"`
}

func (LDPCJob) TableName() string { return "ldpc_jobs" }

// SATTest maps the sat_tests table: asynchronous multi-solver SAT
// campaigns, mirroring LDPCJob's shape for the SAT side of C9.
type SATTest struct {
	ID        string     `gorm:"column:id;primaryKey;type:text"`
	Name      string     `gorm:"column:name;not null"`
	Family    string     `gorm:"column:family;not null"`
	Config    string     `gorm:"column:config;type:text"`
	Status    string     `gorm:"column:status;not null;index"`
	Created   time.Time  `gorm:"column:created;not null"`
	Started   *time.Time `gorm:"column:started"`
	Completed *time.Time `gorm:"column:completed"`
	Progress  float64    `gorm:"column:progress;not null;default:0"`
	Results   string     `gorm:"column:results;type:text"`
	Metadata  string     `gorm:"column:metadata;type:text"`
}

func (SATTest) TableName() string { return "sat_tests" }

// User maps the users table.
type User struct {
	ID              string     `gorm:"column:id;primaryKey;type:text"`
	Email           string     `gorm:"column:email;not null;uniqueIndex"`
	Name            string     `gorm:"column:name"`
	Role            string     `gorm:"column:role;not null;default:user"`
	CreatedAt       time.Time  `gorm:"column:created_at;not null"`
	LastLogin       *time.Time `gorm:"column:last_login"`
	ExternalSubject string     `gorm:"column:external_subject;uniqueIndex"`
}

func (User) TableName() string { return "users" }

// SystemMetric maps the system_metrics table.
type SystemMetric struct {
	ID            int64     `gorm:"column:id;primaryKey;autoIncrement"`
	Timestamp     time.Time `gorm:"column:timestamp;not null;index"`
	CPUPercent    float64   `gorm:"column:cpu_percent"`
	MemoryPercent float64   `gorm:"column:memory_percent"`
	DiskPercent   float64   `gorm:"column:disk_percent"`
	Temperature   *float64  `gorm:"column:temperature"`
}

func (SystemMetric) TableName() string { return "system_metrics" }

// Announcement maps the announcements table, recovered from
// original_source/ per SPEC_FULL.md §9.
type Announcement struct {
	ID        string    `gorm:"column:id;primaryKey;type:text"`
	Title     string    `gorm:"column:title;not null"`
	Body      string    `gorm:"column:body"`
	CreatedAt time.Time `gorm:"column:created_at;not null"`
	CreatedBy string    `gorm:"column:created_by"`
}

func (Announcement) TableName() string { return "announcements" }
