// Package sysmetrics periodically samples host CPU, memory, disk, and
// temperature and persists one row per tick via storage.Repository, per
// SPEC_FULL.md §9 ("system metrics sampler").
package sysmetrics

import (
	"context"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	"go.uber.org/zap"

	"github.com/bendatsko/dacroq/internal/storage"
	"github.com/bendatsko/dacroq/internal/storage/models"
)

// DiskPath is the filesystem mountpoint sampled for disk usage.
const DiskPath = "/"

// Sampler polls host resource usage on a fixed interval and records it.
type Sampler struct {
	Repo     *storage.Repository
	Interval time.Duration
	logger   *zap.Logger
}

func New(repo *storage.Repository, logger *zap.Logger) *Sampler {
	return &Sampler{Repo: repo, Interval: 30 * time.Second, logger: logger}
}

// Run blocks, sampling immediately and then every Interval, until ctx is
// cancelled.
func (s *Sampler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	s.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Sampler) tick(ctx context.Context) {
	m, err := s.sample()
	if err != nil {
		s.logger.Warn("sample system metrics", zap.Error(err))
		return
	}
	if err := s.Repo.RecordSystemMetric(ctx, m); err != nil {
		s.logger.Error("persist system metric", zap.Error(err))
	}
}

func (s *Sampler) sample() (*models.SystemMetric, error) {
	cpuPercent, err := cpu.Percent(0, false)
	if err != nil {
		return nil, err
	}
	memInfo, err := mem.VirtualMemory()
	if err != nil {
		return nil, err
	}
	diskInfo, err := disk.Usage(DiskPath)
	if err != nil {
		return nil, err
	}

	m := &models.SystemMetric{
		Timestamp:     time.Now(),
		CPUPercent:    firstOrZero(cpuPercent),
		MemoryPercent: memInfo.UsedPercent,
		DiskPercent:   diskInfo.UsedPercent,
	}
	if temp, ok := readTemperature(); ok {
		m.Temperature = &temp
	}
	return m, nil
}

// readTemperature reports the highest sensor reading available. Not every
// host exposes sensors (containers, CI, some laptops), so absence is not an
// error.
func readTemperature() (float64, bool) {
	stats, err := host.SensorsTemperatures()
	if err != nil || len(stats) == 0 {
		return 0, false
	}
	highest := stats[0].Temperature
	for _, st := range stats[1:] {
		if st.Temperature > highest {
			highest = st.Temperature
		}
	}
	if highest <= 0 {
		return 0, false
	}
	return highest, true
}

func firstOrZero(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	return vals[0]
}
