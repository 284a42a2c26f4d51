// Package storage persists tests, test results, LDPC/SAT jobs, users,
// system metrics, and announcements in a single embedded SQLite file, per
// SPEC_FULL.md §6.8.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const slowQueryThreshold = 1 * time.Second

// Open opens the SQLite file at path, enabling WAL mode, a 5s busy
// timeout, and foreign-key enforcement, exactly as SPEC_FULL.md §6.8
// requires.
func Open(path string, logger *zap.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: newSlowQueryLogger(logger),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if err := db.Exec(pragma).Error; err != nil {
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	return db, nil
}

// slowQueryLogger is a GORM logger that logs two kinds of statement as
// warnings via zap: any statement that returns an error, and any statement
// taking longer than slowQueryThreshold, matching SPEC_FULL.md §6.8's
// slow-query note.
type slowQueryLogger struct {
	zap *zap.Logger
}

func newSlowQueryLogger(z *zap.Logger) gormlogger.Interface {
	if z == nil {
		z = zap.NewNop()
	}
	return &slowQueryLogger{zap: z}
}

func (l *slowQueryLogger) LogMode(gormlogger.LogLevel) gormlogger.Interface { return l }

func (l *slowQueryLogger) Info(_ context.Context, msg string, args ...interface{}) {
	l.zap.Sugar().Infof(msg, args...)
}

func (l *slowQueryLogger) Warn(_ context.Context, msg string, args ...interface{}) {
	l.zap.Sugar().Warnf(msg, args...)
}

func (l *slowQueryLogger) Error(_ context.Context, msg string, args ...interface{}) {
	l.zap.Sugar().Errorf(msg, args...)
}

func (l *slowQueryLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	elapsed := time.Since(begin)
	sql, rows := fc()
	if err != nil {
		l.zap.Warn("query error", zap.Error(err), zap.String("sql", sql), zap.Duration("elapsed", elapsed))
		return
	}
	if elapsed > slowQueryThreshold {
		l.zap.Warn("slow query", zap.String("sql", sql), zap.Int64("rows", rows), zap.Duration("elapsed", elapsed))
	}
}
