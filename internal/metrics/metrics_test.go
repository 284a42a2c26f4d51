package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewRegistryAndHandler(t *testing.T) {
	reg := NewRegistry()
	require.NotNil(t, reg)

	srv := httptest.NewServer(Handler(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestNewHardwareMetrics(t *testing.T) {
	reg := NewRegistry()
	m := NewHardwareMetrics(reg)
	require.NotNil(t, m)

	m.SessionsConnected.WithLabelValues("ldpc").Set(1)
	m.ReconnectAttempts.WithLabelValues("ldpc").Inc()
	m.GPIOResets.WithLabelValues("sat").Inc()
	m.CampaignDuration.WithLabelValues("ldpc", "completed").Observe(1.23)
	m.HTTPSlowRequests.Inc()
}

func TestNewDataMetrics(t *testing.T) {
	reg := NewRegistry()
	m := NewDataMetrics(reg)
	require.NotNil(t, m)

	m.JobsStarted.WithLabelValues("ldpc_snr").Inc()
	m.JobsCompleted.WithLabelValues("ldpc_snr", "completed").Inc()
	m.JobProgress.WithLabelValues("job-1").Set(50)
	m.AuthAttempts.WithLabelValues("success").Inc()
}
