package orchestrator

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/bendatsko/dacroq/internal/apierr"
)

// CNF is a parsed DIMACS problem: variables are 1-indexed, a positive
// literal asserts the variable, negative its complement.
type CNF struct {
	NumVars int
	Clauses [][]int
}

// ParseDIMACS reads the "p cnf <vars> <clauses>" header and the 0-terminated
// clause lines that follow, skipping comment lines.
func ParseDIMACS(text string) (*CNF, error) {
	cnf := &CNF{}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case line == "", strings.HasPrefix(line, "c"):
			continue
		case strings.HasPrefix(line, "p"):
			fields := strings.Fields(line)
			if len(fields) < 4 {
				return nil, apierr.New(apierr.InvalidInput, "malformed DIMACS header")
			}
			n, err := strconv.Atoi(fields[2])
			if err != nil {
				return nil, apierr.New(apierr.InvalidInput, "malformed DIMACS variable count")
			}
			cnf.NumVars = n
		default:
			fields := strings.Fields(line)
			clause := make([]int, 0, len(fields))
			for _, f := range fields {
				lit, err := strconv.Atoi(f)
				if err != nil {
					return nil, apierr.New(apierr.InvalidInput, "malformed DIMACS literal")
				}
				if lit == 0 {
					break
				}
				clause = append(clause, lit)
			}
			if len(clause) > 0 {
				cnf.Clauses = append(cnf.Clauses, clause)
			}
		}
	}
	if cnf.NumVars == 0 {
		return nil, apierr.New(apierr.InvalidInput, "DIMACS text has no problem line")
	}
	return cnf, nil
}

// SolverResult is one solver's outcome for one CNF instance.
type SolverResult struct {
	Solver       string  `json:"solver"`
	Satisfiable  bool    `json:"satisfiable"`
	SolveTimeMs  float64 `json:"solve_time_ms"`
	EnergyNJ     float64 `json:"energy_nj"`
	PowerMW      float64 `json:"power_mw"`
	Propagations int     `json:"propagations"`
}

// softwareSolverPowerMW approximates a single CPU core's draw while a
// software solver is active; used only to report an energy figure
// alongside the hardware solver's measured one.
const softwareSolverPowerMW = 45.0

func buildResult(name string, sat bool, elapsed time.Duration, propagations int) SolverResult {
	ms := float64(elapsed) / float64(time.Millisecond)
	return SolverResult{
		Solver:       name,
		Satisfiable:  sat,
		SolveTimeMs:  ms,
		EnergyNJ:     softwareSolverPowerMW * ms * 1e3, // mW * ms -> nJ
		PowerMW:      softwareSolverPowerMW,
		Propagations: propagations,
	}
}

// SolveMinisat runs DPLL with unit propagation and chronological
// backtracking, per spec.md §4.9.2.
func SolveMinisat(cnf *CNF) SolverResult {
	start := time.Now()
	props := 0
	assign := make([]int, cnf.NumVars+1)
	sat, _ := dpll(cnf.Clauses, assign, &props)
	return buildResult("minisat", sat, time.Since(start), props)
}

func dpll(clauses [][]int, assign []int, props *int) (bool, []int) {
	assign = append([]int(nil), assign...)

	for {
		lit, ok := findUnitClause(clauses, assign)
		if !ok {
			break
		}
		*props++
		assign[abs(lit)] = sign(lit)
	}

	switch evalClauses(clauses, assign) {
	case evalSatisfied:
		return true, assign
	case evalConflict:
		return false, nil
	}

	v := pickUnassigned(assign)
	for _, val := range []int{1, -1} {
		assign[v] = val
		if ok, result := dpll(clauses, assign, props); ok {
			return true, result
		}
		assign[v] = 0
	}
	return false, nil
}

type evalStatus int

const (
	evalUnresolved evalStatus = iota
	evalSatisfied
	evalConflict
)

func evalClauses(clauses [][]int, assign []int) evalStatus {
	allSatisfied := true
	for _, cl := range clauses {
		status := clauseStatus(cl, assign)
		if status == evalConflict {
			return evalConflict
		}
		if status != evalSatisfied {
			allSatisfied = false
		}
	}
	if allSatisfied {
		return evalSatisfied
	}
	return evalUnresolved
}

func clauseStatus(clause []int, assign []int) evalStatus {
	unassigned := 0
	for _, lit := range clause {
		v := assign[abs(lit)]
		if v == 0 {
			unassigned++
			continue
		}
		if v == sign(lit) {
			return evalSatisfied
		}
	}
	if unassigned == 0 {
		return evalConflict
	}
	return evalUnresolved
}

func findUnitClause(clauses [][]int, assign []int) (int, bool) {
	for _, cl := range clauses {
		var unassignedLit int
		unassignedCount := 0
		satisfied := false
		for _, lit := range cl {
			v := assign[abs(lit)]
			if v == 0 {
				unassignedCount++
				unassignedLit = lit
				continue
			}
			if v == sign(lit) {
				satisfied = true
				break
			}
		}
		if !satisfied && unassignedCount == 1 {
			return unassignedLit, true
		}
	}
	return 0, false
}

func pickUnassigned(assign []int) int {
	for v := 1; v < len(assign); v++ {
		if assign[v] == 0 {
			return v
		}
	}
	return 0
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func sign(lit int) int {
	if lit < 0 {
		return -1
	}
	return 1
}

const (
	walksatNoise       = 0.5
	walksatMaxFlips    = 100_000
	walksatMaxRestarts = 10
)

// SolveWalksat runs stochastic local search with the noise/flip/restart
// budget from spec.md §4.9.2.
func SolveWalksat(cnf *CNF) SolverResult {
	start := time.Now()
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	props := 0

	for restart := 0; restart < walksatMaxRestarts; restart++ {
		assign := randomAssignment(rng, cnf.NumVars)
		for flip := 0; flip < walksatMaxFlips; flip++ {
			unsat := unsatisfiedClauses(cnf.Clauses, assign)
			if len(unsat) == 0 {
				return buildResult("walksat", true, time.Since(start), props)
			}
			clause := unsat[rng.Intn(len(unsat))]

			var v int
			if rng.Float64() < walksatNoise {
				v = abs(clause[rng.Intn(len(clause))])
			} else {
				v = leastBreakingVar(cnf.Clauses, assign, clause)
			}
			assign[v] = -assign[v]
			props++
		}
	}
	return buildResult("walksat", false, time.Since(start), props)
}

func randomAssignment(rng *rand.Rand, numVars int) []int {
	assign := make([]int, numVars+1)
	for v := 1; v <= numVars; v++ {
		if rng.Intn(2) == 0 {
			assign[v] = 1
		} else {
			assign[v] = -1
		}
	}
	return assign
}

func unsatisfiedClauses(clauses [][]int, assign []int) [][]int {
	var result [][]int
	for _, cl := range clauses {
		if !clauseTrue(cl, assign) {
			result = append(result, cl)
		}
	}
	return result
}

func clauseTrue(clause []int, assign []int) bool {
	for _, lit := range clause {
		if assign[abs(lit)] == sign(lit) {
			return true
		}
	}
	return false
}

// leastBreakingVar picks the variable in clause whose flip leaves the
// fewest unsatisfied clauses overall.
func leastBreakingVar(clauses [][]int, assign []int, clause []int) int {
	best, bestBreaks := 0, -1
	for _, lit := range clause {
		v := abs(lit)
		assign[v] = -assign[v]
		breaks := countBroken(clauses, assign)
		assign[v] = -assign[v]
		if bestBreaks == -1 || breaks < bestBreaks {
			best, bestBreaks = v, breaks
		}
	}
	return best
}

func countBroken(clauses [][]int, assign []int) int {
	broken := 0
	for _, cl := range clauses {
		if !clauseTrue(cl, assign) {
			broken++
		}
	}
	return broken
}

// SolveDaedalus would run the CNF on the hardware SAT accelerator. The
// Data service process that hosts the orchestrator has no link to the
// Hardware service's serial sessions (SPEC_FULL.md's non-goals exclude
// cross-service coordination), so this path always reports the
// accelerator as unavailable rather than fabricating a result.
func SolveDaedalus(*CNF) (SolverResult, error) {
	return SolverResult{}, apierr.New(apierr.NotFound, fmt.Sprintf("hardware service not configured for solver %q", "daedalus"))
}
