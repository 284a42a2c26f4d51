package devicesession

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSATClassFor(t *testing.T) {
	require.Equal(t, "uf20", SATClassFor(20))
	require.Equal(t, "uf50", SATClassFor(50))
	require.Equal(t, "uf100", SATClassFor(51))
	require.Equal(t, "uf100", SATClassFor(200))
}

func TestDecodeCSVRowCoercesByName(t *testing.T) {
	header := []string{"test_index", "snr_db", "bit_errors", "energy_per_bit_pj", "board_note"}
	fields := []string{"3", "5", "2", "5.47", "ok"}

	row := decodeCSVRow(header, fields)
	require.Equal(t, 3, row["test_index"])
	require.Equal(t, 5, row["snr_db"])
	require.Equal(t, 2, row["bit_errors"])
	require.InDelta(t, 5.47, row["energy_per_bit_pj"].(float64), 0.001)
	require.Equal(t, "ok", row["board_note"])
}

func TestAggregateSNRRowsFallsBackToDefaultPowerWhenRowsOmitIt(t *testing.T) {
	rows := []map[string]any{
		{"success": 1, "bit_errors": 0, "frame_errors": 0, "execution_time_us": 100},
	}
	agg := aggregateSNRRows(rows)
	require.Equal(t, defaultAvgPowerMW, agg["avg_power_mw"])
	require.Equal(t, defaultEnergyPJ, agg["energy_per_bit_pj"])
}

func TestAggregateSNRRows(t *testing.T) {
	rows := []map[string]any{
		{"success": 1, "bit_errors": 0, "frame_errors": 0, "execution_time_us": 100},
		{"success": 0, "bit_errors": 2, "frame_errors": 1, "execution_time_us": 200},
	}
	agg := aggregateSNRRows(rows)
	require.Equal(t, 2, agg["rows"])
	require.Equal(t, 1, agg["successful_decodes"])
	require.InDelta(t, 0.5, agg["convergence_rate"].(float64), 0.001)
	require.InDelta(t, 150.0, agg["avg_execution_time_us"].(float64), 0.001)
}

func TestAggregateSATRuns(t *testing.T) {
	agg := aggregateSATRuns(4, 3, 1, 40.0, 8.0, 20.0, 400)
	require.Equal(t, 4, agg["total_runs"])
	require.InDelta(t, 0.75, agg["satisfiability_rate"].(float64), 0.001)
	require.InDelta(t, 10.0, agg["avg_solve_time_ms"].(float64), 0.001)
}
