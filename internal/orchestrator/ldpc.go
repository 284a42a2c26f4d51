package orchestrator

import (
	"context"
	"fmt"

	"github.com/bendatsko/dacroq/internal/apierr"
	"github.com/bendatsko/dacroq/internal/devicesession"
	"github.com/bendatsko/dacroq/internal/devicetype"
	"github.com/bendatsko/dacroq/internal/metrics"
	"github.com/bendatsko/dacroq/internal/storage"
	"github.com/bendatsko/dacroq/internal/storage/models"
)

// LDPCOrchestrator drives the synchronous SNR sweep described in
// spec.md §4.9.1. Pool is the Hardware service's live session pool; it is
// nil in the Data service binary, where every job fails fast with a clear
// "hardware service not configured" error rather than hanging.
type LDPCOrchestrator struct {
	repo    *storage.Repository
	pool    *devicesession.Pool
	metrics *metrics.DataMetrics
}

// NewLDPCOrchestrator builds an orchestrator. pool may be nil.
func NewLDPCOrchestrator(repo *storage.Repository, pool *devicesession.Pool) *LDPCOrchestrator {
	return &LDPCOrchestrator{repo: repo, pool: pool}
}

// SetMetrics attaches the data service's metrics. Nil-safe.
func (o *LDPCOrchestrator) SetMetrics(m *metrics.DataMetrics) {
	o.metrics = m
}

// RunJob validates bounds, runs the SNR sweep, and persists the job's
// final state, per spec.md §4.9.1 steps 1-5. It is synchronous: the caller
// blocks for the full sweep, matching "Creation is synchronous in the
// current source".
func (o *LDPCOrchestrator) RunJob(ctx context.Context, name string, startSNR, endSNR, runsPerSNR int) (*models.LDPCJob, error) {
	if startSNR < 1 || endSNR < startSNR || endSNR > 10 {
		return nil, apierr.New(apierr.InvalidInput, "start_snr/end_snr must satisfy 1 <= start_snr <= end_snr <= 10")
	}
	if runsPerSNR < 1 || runsPerSNR > 10 {
		return nil, apierr.New(apierr.InvalidInput, "runs_per_snr must be between 1 and 10")
	}

	if o.pool == nil {
		return nil, apierr.New(apierr.NotFound, "hardware service not configured")
	}
	sess, err := o.pool.Acquire(devicetype.LDPC)
	if err != nil {
		return nil, err
	}
	if err := sess.HealthCheck(); err != nil {
		return nil, apierr.Wrap(apierr.DeviceError, "ldpc health check failed", err)
	}

	job := &models.LDPCJob{Name: name, JobType: "snr_sweep", Status: "running"}
	if err := o.repo.CreateLDPCJob(ctx, job); err != nil {
		return nil, err
	}
	if o.metrics != nil {
		o.metrics.JobsStarted.WithLabelValues("ldpc").Inc()
	}

	results := make(map[string]any)
	total := endSNR - startSNR + 1
	for i, snr := 0, startSNR; snr <= endSNR; i, snr = i+1, snr+1 {
		summary, runErr := sess.RunSNRTest(snr, runsPerSNR)
		key := fmt.Sprintf("%ddB", snr)
		if runErr != nil {
			results[key] = map[string]any{"error": runErr.Error()}
		} else {
			results[key] = summary
		}

		progress := float64(i+1) / float64(total) * 100
		if o.metrics != nil {
			o.metrics.JobProgress.WithLabelValues(job.ID).Set(progress)
		}
		if err := o.repo.UpdateLDPCJobProgress(ctx, job.ID, progress, "running"); err != nil {
			return nil, err
		}
	}

	if err := o.repo.SetLDPCJobResults(ctx, job.ID, results); err != nil {
		return nil, err
	}
	if err := o.repo.SetLDPCJobMetadata(ctx, job.ID, summarizeLDPCResults(results)); err != nil {
		return nil, err
	}
	if err := o.repo.UpdateLDPCJobProgress(ctx, job.ID, 100, "completed"); err != nil {
		return nil, err
	}
	if o.metrics != nil {
		o.metrics.JobsCompleted.WithLabelValues("ldpc", "completed").Inc()
	}

	return o.repo.GetLDPCJob(ctx, job.ID)
}

func summarizeLDPCResults(results map[string]any) map[string]any {
	successful, failed := 0, 0
	for _, v := range results {
		if m, ok := v.(map[string]any); ok {
			if _, hasErr := m["error"]; hasErr {
				failed++
				continue
			}
		}
		successful++
	}
	return map[string]any{
		"snr_points_run":        len(results),
		"snr_points_successful": successful,
		"snr_points_failed":     failed,
	}
}
