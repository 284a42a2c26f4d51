package devicesession

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/bendatsko/dacroq/internal/apierr"
	"github.com/bendatsko/dacroq/internal/devicetype"
	"github.com/bendatsko/dacroq/internal/metrics"
)

type stubFinder struct {
	ports []string
}

func (f *stubFinder) CandidatePorts(devicetype.Type) []string { return f.ports }
func (f *stubFinder) RegisterPort(string, devicetype.Type) error { return nil }
func (f *stubFinder) ClearPort(devicetype.Type) {}

func TestConnectWithNoCandidatePortsFails(t *testing.T) {
	table := devicetype.NewTable()
	cfg, _ := table.Get(devicetype.LDPC)
	sess := New(devicetype.LDPC, cfg, &stubFinder{})

	err := sess.Connect("")
	require.Error(t, err)
	require.True(t, apierr.Is(err, apierr.HandshakeFailed))
	require.False(t, sess.Connected())
}

func TestConnectWithUnopenablePortFails(t *testing.T) {
	table := devicetype.NewTable()
	cfg, _ := table.Get(devicetype.LDPC)
	sess := New(devicetype.LDPC, cfg, &stubFinder{ports: []string{"/dev/does-not-exist-1"}})

	err := sess.Connect("")
	require.Error(t, err)
	require.True(t, apierr.Is(err, apierr.HandshakeFailed))
}

func TestHandshakeFailureIncrementsMetric(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewHardwareMetrics(reg)

	table := devicetype.NewTable()
	cfg, _ := table.Get(devicetype.LDPC)
	sess := New(devicetype.LDPC, cfg, &stubFinder{ports: []string{"/dev/does-not-exist-1"}})
	sess.SetMetrics(m)

	err := sess.Connect("")
	require.Error(t, err)
	require.Equal(t, float64(1), testutil.ToFloat64(m.HandshakeFailures.WithLabelValues(string(devicetype.LDPC))))
}

func TestExecuteWithoutConnectionFails(t *testing.T) {
	table := devicetype.NewTable()
	cfg, _ := table.Get(devicetype.SAT)
	sess := New(devicetype.SAT, cfg, &stubFinder{})

	_, err := sess.Execute("STATUS", 0)
	require.Error(t, err)
}

func TestHasTerminatorPrefix(t *testing.T) {
	require.True(t, hasTerminatorPrefix("ACK:SIMPLE_TEST"))
	require.True(t, hasTerminatorPrefix("COMPLETE"))
	require.False(t, hasTerminatorPrefix("CSV_DATA:1,2,3"))
}

func TestMatchesAny(t *testing.T) {
	require.True(t, matchesAny("DACROQ_BOARD:LDPC ready", []string{"AMORGOS", "DACROQ_BOARD:LDPC"}))
	require.False(t, matchesAny("hello", []string{"AMORGOS"}))
}
