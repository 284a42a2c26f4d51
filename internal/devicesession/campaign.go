package devicesession

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bendatsko/dacroq/internal/apierr"
)

const (
	ackWindow         = 10 * time.Second
	campaignDeadline  = 60 * time.Second
	postResetSettle   = 2 * time.Second
	defaultAvgPowerMW = 5.9
	defaultEnergyPJ   = 5.47
	bitsPerFrame      = 48
)

// RunSNRTest drives an LDPC signal-to-noise-ratio campaign as described in
// SPEC_FULL.md §6.4 and aggregates the CSV telemetry it streams back. mu
// is held for the whole campaign, matching Execute's serialization.
func (s *Session) RunSNRTest(snrDB int, numRuns int) (result map[string]any, err error) {
	if err := s.ensureConnected(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.CampaignDuration.WithLabelValues(string(s.typ), campaignOutcome(err)).Observe(time.Since(start).Seconds())
		}
	}()

	link := s.link
	if link == nil {
		return nil, apierr.New(apierr.NotConnected, "no active link").WithHint("press RESET")
	}

	link.Drain()
	cmd := fmt.Sprintf("SIMPLE_TEST:%d:%d", snrDB, numRuns)
	if err := link.WriteLine(cmd); err != nil {
		return nil, apierr.Wrap(apierr.DeviceError, "write SIMPLE_TEST", err)
	}

	ack := fmt.Sprintf("ACK:SIMPLE_TEST:%d:%d", snrDB, numRuns)
	if !awaitLine(link, ack, ackWindow) {
		_ = link.WriteLine("RESET")
		time.Sleep(postResetSettle)
		return nil, apierr.New(apierr.NoAck, "no ACK for SIMPLE_TEST")
	}

	var header []string
	var rows []map[string]any
	deadline := time.Now().Add(campaignDeadline)
	for time.Now().Before(deadline) {
		line, err := link.ReadLine(time.Until(deadline))
		if err != nil {
			return nil, err
		}
		if line == "" {
			continue
		}
		switch {
		case strings.HasPrefix(line, "SIMPLE_TEST_START:"):
			continue
		case strings.HasPrefix(line, "CSV_HEADER:"):
			header = strings.Split(strings.TrimPrefix(line, "CSV_HEADER:"), ",")
		case strings.HasPrefix(line, "CSV_DATA:"):
			if header == nil {
				continue
			}
			fields := strings.Split(strings.TrimPrefix(line, "CSV_DATA:"), ",")
			if len(fields) != len(header) {
				continue // width mismatch: row dropped
			}
			rows = append(rows, decodeCSVRow(header, fields))
		case line == "SIMPLE_TEST_COMPLETE:SUCCESS":
			if len(rows) == 0 {
				return nil, apierr.New(apierr.NoData, "SNR campaign completed with zero rows")
			}
			return aggregateSNRRows(rows), nil
		case strings.HasPrefix(line, "ERROR:"):
			return nil, apierr.New(apierr.DeviceError, line)
		}
	}
	return nil, apierr.New(apierr.TimeoutExceeded, "SNR campaign did not complete within deadline")
}

func decodeCSVRow(header, fields []string) map[string]any {
	intFields := map[string]bool{
		"test_index": true, "snr_db": true, "execution_time_us": true,
		"bit_errors": true, "frame_errors": true, "success": true,
	}
	floatFields := map[string]bool{"energy_per_bit_pj": true, "avg_power_mw": true}

	row := make(map[string]any, len(header))
	for i, name := range header {
		v := fields[i]
		switch {
		case intFields[name]:
			n, err := strconv.Atoi(v)
			if err != nil {
				row[name] = 0
				continue
			}
			row[name] = n
		case floatFields[name]:
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				row[name] = 0.0
				continue
			}
			row[name] = f
		default:
			row[name] = v
		}
	}
	return row
}

// aggregateSNRRows assumes len(rows) > 0; callers must reject empty
// campaigns with apierr.NoData before reaching here.
func aggregateSNRRows(rows []map[string]any) map[string]any {
	n := len(rows)

	var successCount, bitErrSum, frameErrSum, execSum int
	var powerSum, energySum float64
	haveAvgPower, haveEnergy := 0, 0

	for _, r := range rows {
		if asInt(r["success"]) == 1 {
			successCount++
		}
		bitErrSum += asInt(r["bit_errors"])
		frameErrSum += asInt(r["frame_errors"])
		execSum += asInt(r["execution_time_us"])
		if v, ok := r["avg_power_mw"]; ok {
			powerSum += asFloat(v)
			haveAvgPower++
		}
		if v, ok := r["energy_per_bit_pj"]; ok {
			energySum += asFloat(v)
			haveEnergy++
		}
	}

	avgExecUS := float64(execSum) / float64(n)
	throughput := 0.0
	if avgExecUS > 0 {
		throughput = (bitsPerFrame * 1e6) / avgExecUS / 1e6
	}

	avgPower := defaultAvgPowerMW
	if haveAvgPower > 0 {
		avgPower = powerSum / float64(haveAvgPower)
	}
	energyPerBit := defaultEnergyPJ
	if haveEnergy > 0 {
		energyPerBit = energySum / float64(haveEnergy)
	}

	return map[string]any{
		"rows":                  n,
		"successful_decodes":    successCount,
		"bit_error_rate":        float64(bitErrSum) / float64(n*bitsPerFrame),
		"frame_error_rate":      float64(frameErrSum) / float64(n),
		"avg_execution_time_us": avgExecUS,
		"throughput_mbps":       throughput,
		"convergence_rate":      float64(successCount) / float64(n),
		"avg_power_mw":          avgPower,
		"energy_per_bit_pj":     energyPerBit,
	}
}

// HealthCheck runs the LDPC board's multi-line HEALTH_CHECK enumeration
// and requires POWER_OK, CLOCK_OK, MEMORY_OK, and OSCILLATORS_OK before
// accepting a HEALTH_CHECK_COMPLETE:OK terminator, per SPEC_FULL.md
// §6.4.
// mu is held for the whole exchange, matching Execute's serialization.
func (s *Session) HealthCheck() error {
	if err := s.ensureConnected(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	link := s.link
	if link == nil {
		return apierr.New(apierr.NotConnected, "no active link").WithHint("press RESET")
	}

	link.Drain()
	if err := link.WriteLine("HEALTH_CHECK"); err != nil {
		return apierr.Wrap(apierr.DeviceError, "write HEALTH_CHECK", err)
	}

	required := map[string]bool{
		"POWER_OK": false, "CLOCK_OK": false, "MEMORY_OK": false, "OSCILLATORS_OK": false,
	}
	deadline := time.Now().Add(ackWindow)
	for time.Now().Before(deadline) {
		line, err := link.ReadLine(time.Until(deadline))
		if err != nil {
			return err
		}
		if line == "" {
			continue
		}
		if _, ok := required[line]; ok {
			required[line] = true
		}
		if strings.HasPrefix(line, "HEALTH_CHECK_COMPLETE:") {
			if !strings.HasSuffix(line, "OK") {
				return apierr.New(apierr.DeviceError, "health check reported "+line)
			}
			for name, seen := range required {
				if !seen {
					return apierr.New(apierr.DeviceError, "health check missing "+name)
				}
			}
			return nil
		}
	}
	return apierr.New(apierr.TimeoutExceeded, "health check did not complete within deadline")
}

// SATClassFor maps a CNF variable count to the protocol's problem class,
// per §6.4.
func SATClassFor(numVars int) string {
	switch {
	case numVars <= 20:
		return "uf20"
	case numVars <= 50:
		return "uf50"
	default:
		return "uf100"
	}
}

// SolveSATProblem drives a SAT campaign against the board and aggregates
// the per-run RESULT lines it streams back. mu is held for the whole
// campaign, matching Execute's serialization.
func (s *Session) SolveSATProblem(numVars, count int) (result map[string]any, err error) {
	if err := s.ensureConnected(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.CampaignDuration.WithLabelValues(string(s.typ), campaignOutcome(err)).Observe(time.Since(start).Seconds())
		}
	}()

	link := s.link
	if link == nil {
		return nil, apierr.New(apierr.NotConnected, "no active link").WithHint("press RESET")
	}

	link.Drain()
	class := SATClassFor(numVars)
	cmd := fmt.Sprintf("SAT_TEST:%s:%d", class, count)
	if err := link.WriteLine(cmd); err != nil {
		return nil, apierr.Wrap(apierr.DeviceError, "write SAT_TEST", err)
	}
	if !awaitPrefix(link, "ACK:SAT_TEST", ackWindow) {
		return nil, apierr.New(apierr.NoAck, "no ACK for SAT_TEST")
	}

	var satCount, unsatCount int
	var timeSum, energySum, powerSum float64
	var propSum int
	var runs int

	deadline := time.Now().Add(campaignDeadline)
	for time.Now().Before(deadline) {
		line, err := link.ReadLine(time.Until(deadline))
		if err != nil {
			return nil, err
		}
		if line == "" {
			continue
		}
		if line == "TEST_COMPLETE" {
			if runs == 0 {
				return nil, apierr.New(apierr.NoData, "SAT campaign completed with zero runs")
			}
			return aggregateSATRuns(runs, satCount, unsatCount, timeSum, energySum, powerSum, propSum), nil
		}
		if strings.HasPrefix(line, "ERROR:") {
			return nil, apierr.New(apierr.DeviceError, line)
		}
		if !strings.HasPrefix(line, "RESULT:") {
			continue
		}
		fields := strings.Split(strings.TrimPrefix(line, "RESULT:"), ",")
		if len(fields) < 6 {
			continue
		}
		runs++
		if strings.TrimSpace(fields[1]) == "sat" {
			satCount++
		} else {
			unsatCount++
		}
		timeUS, _ := strconv.ParseFloat(fields[2], 64)
		timeSum += timeUS / 1000 // time_us -> solve_time_ms
		energy, _ := strconv.ParseFloat(fields[3], 64)
		energySum += energy
		power, _ := strconv.ParseFloat(fields[4], 64)
		powerSum += power
		prop, _ := strconv.Atoi(fields[5])
		propSum += prop
	}
	return nil, apierr.New(apierr.TimeoutExceeded, "SAT campaign did not complete within deadline")
}

// aggregateSATRuns assumes runs > 0; callers must reject empty campaigns
// with apierr.NoData before reaching here.
func aggregateSATRuns(runs, sat, unsat int, timeSum, energySum, powerSum float64, propSum int) map[string]any {
	n := float64(runs)
	return map[string]any{
		"total_runs":          runs,
		"sat_count":           sat,
		"unsat_count":         unsat,
		"satisfiability_rate": float64(sat) / n,
		"avg_solve_time_ms":   timeSum / n,
		"avg_energy_nj":       energySum / n,
		"avg_power_mw":        powerSum / n,
		"avg_propagations":    float64(propSum) / n,
	}
}

func campaignOutcome(err error) string {
	if err == nil {
		return "success"
	}
	return "error"
}

func awaitLine(link interface{ ReadLine(time.Duration) (string, error) }, want string, window time.Duration) bool {
	deadline := time.Now().Add(window)
	for time.Now().Before(deadline) {
		line, err := link.ReadLine(time.Until(deadline))
		if err != nil {
			return false
		}
		if line == want {
			return true
		}
	}
	return false
}

func awaitPrefix(link interface{ ReadLine(time.Duration) (string, error) }, prefix string, window time.Duration) bool {
	deadline := time.Now().Add(window)
	for time.Now().Before(deadline) {
		line, err := link.ReadLine(time.Until(deadline))
		if err != nil {
			return false
		}
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}
	return false
}

func asInt(v any) int {
	if n, ok := v.(int); ok {
		return n
	}
	return 0
}

func asFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	default:
		return 0
	}
}
