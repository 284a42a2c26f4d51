package orchestrator

import (
	"context"

	"go.uber.org/zap"

	"github.com/bendatsko/dacroq/internal/apierr"
	"github.com/bendatsko/dacroq/internal/metrics"
	"github.com/bendatsko/dacroq/internal/storage"
	"github.com/bendatsko/dacroq/internal/storage/models"
)

// SolverSpec names one solver to run and how many times per problem.
type SolverSpec struct {
	Name       string `json:"name"`
	Iterations int    `json:"iterations"`
}

// BatchRequest describes a SAT campaign: either a named benchmark family
// with a list of problem indices, or a single inline DIMACS problem (Family
// left empty, ProblemIndices a single placeholder entry), per spec.md
// §4.9.2.
type BatchRequest struct {
	Name           string
	Family         string
	InlineDIMACS   string
	ProblemIndices []int
	Solvers        []SolverSpec
}

// SATOrchestrator runs SAT campaigns asynchronously: Submit persists the
// test row and returns immediately, handing the sweep to a background
// goroutine, matching spec.md §4.9.2's "runs the test asynchronously".
type SATOrchestrator struct {
	repo    *storage.Repository
	logger  *zap.Logger
	metrics *metrics.DataMetrics
}

// NewSATOrchestrator builds a SAT orchestrator.
func NewSATOrchestrator(repo *storage.Repository, logger *zap.Logger) *SATOrchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SATOrchestrator{repo: repo, logger: logger}
}

// SetMetrics attaches the data service's metrics. Nil-safe.
func (o *SATOrchestrator) SetMetrics(m *metrics.DataMetrics) {
	o.metrics = m
}

// Submit creates the SATTest row with status "running" and starts the
// background worker, returning the row's ID immediately.
func (o *SATOrchestrator) Submit(ctx context.Context, req BatchRequest) (string, error) {
	if len(req.Solvers) == 0 {
		return "", apierr.New(apierr.InvalidInput, "at least one solver must be requested")
	}
	family := req.Family
	if family == "" {
		family = "inline"
	}

	test := &models.SATTest{Name: req.Name, Family: family, Status: "running"}
	if err := o.repo.CreateSATTest(ctx, test); err != nil {
		return "", err
	}
	if o.metrics != nil {
		o.metrics.JobsStarted.WithLabelValues("sat").Inc()
	}

	go o.run(test.ID, req)
	return test.ID, nil
}

func (o *SATOrchestrator) run(testID string, req BatchRequest) {
	ctx := context.Background()
	indices := req.ProblemIndices
	if len(indices) == 0 {
		indices = []int{0}
	}

	perSolverRuns := make(map[string][]SolverResult)
	total := len(indices)

	for i, idx := range indices {
		var cnfText string
		if req.InlineDIMACS != "" {
			cnfText = req.InlineDIMACS
		} else {
			cnfText = GenerateDIMACS(req.Family, idx)
		}

		cnf, err := ParseDIMACS(cnfText)
		if err != nil {
			o.logger.Warn("skipping unparseable problem", zap.String("test_id", testID), zap.Int("index", idx), zap.Error(err))
			continue
		}

		for _, spec := range req.Solvers {
			for run := 0; run < spec.Iterations; run++ {
				result, runErr := o.solveOne(spec.Name, cnf)
				if runErr != nil {
					o.logger.Warn("solver run failed", zap.String("solver", spec.Name), zap.Error(runErr))
					continue
				}
				perSolverRuns[spec.Name] = append(perSolverRuns[spec.Name], result)
			}
		}

		progress := float64(i+1) / float64(total) * 100
		if o.metrics != nil {
			o.metrics.JobProgress.WithLabelValues(testID).Set(progress)
		}
		_ = o.repo.SetSATTestMetadata(ctx, testID, map[string]any{
			"progress_percent":   progress,
			"problems_completed": i + 1,
			"total_problems":     total,
		})
		_ = o.repo.UpdateSATTestProgress(ctx, testID, progress, "running")
	}

	summary := summarizeSolverRuns(perSolverRuns)
	if err := o.repo.SetSATTestResults(ctx, testID, map[string]any{
		"per_solver": perSolverRuns,
		"summary":    summary,
	}); err != nil {
		o.logger.Error("persist sat summary", zap.Error(err))
		_ = o.repo.UpdateSATTestProgress(ctx, testID, 100, "failed")
		if o.metrics != nil {
			o.metrics.JobsCompleted.WithLabelValues("sat", "failed").Inc()
		}
		return
	}
	_ = o.repo.UpdateSATTestProgress(ctx, testID, 100, "completed")
	if o.metrics != nil {
		o.metrics.JobsCompleted.WithLabelValues("sat", "completed").Inc()
	}
}

func (o *SATOrchestrator) solveOne(solver string, cnf *CNF) (SolverResult, error) {
	switch solver {
	case "minisat":
		return SolveMinisat(cnf), nil
	case "walksat":
		return SolveWalksat(cnf), nil
	case "daedalus":
		return SolveDaedalus(cnf)
	default:
		return SolverResult{}, apierr.New(apierr.InvalidInput, "unknown solver "+solver)
	}
}

func summarizeSolverRuns(perSolver map[string][]SolverResult) map[string]any {
	summary := make(map[string]any, len(perSolver))
	for name, runs := range perSolver {
		if len(runs) == 0 {
			continue
		}
		var timeSum, energySum float64
		successes := 0
		for _, r := range runs {
			timeSum += r.SolveTimeMs
			energySum += r.EnergyNJ
			if r.Satisfiable {
				successes++
			}
		}
		n := float64(len(runs))
		summary[name] = map[string]any{
			"avg_solve_time_ms": timeSum / n,
			"avg_energy_nj":     energySum / n,
			"success_rate":      float64(successes) / n,
			"total_runs":        len(runs),
		}
	}
	return summary
}
