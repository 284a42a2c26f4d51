// Package metrics exposes the control plane's Prometheus metrics: a custom
// registry plus the domain gauges/counters both services update.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRegistry creates a Prometheus registry with the standard Go/process
// collectors attached.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler returns the HTTP handler serving the given registry.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// HardwareMetrics are the domain metrics owned by the hardware service.
type HardwareMetrics struct {
	SessionsConnected *prometheus.GaugeVec
	ReconnectAttempts *prometheus.CounterVec
	HandshakeFailures *prometheus.CounterVec
	GPIOResets        *prometheus.CounterVec
	CampaignDuration  *prometheus.HistogramVec
	HTTPSlowRequests  prometheus.Counter
}

// NewHardwareMetrics registers and returns the hardware service's metrics.
func NewHardwareMetrics(reg *prometheus.Registry) *HardwareMetrics {
	m := &HardwareMetrics{
		SessionsConnected: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "dacroq_sessions_connected",
			Help: "Whether a device session is currently connected (1) or not (0), by device type.",
		}, []string{"device_type"}),
		ReconnectAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dacroq_session_reconnect_attempts_total",
			Help: "Total reconnect attempts made by device sessions.",
		}, []string{"device_type"}),
		HandshakeFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dacroq_session_handshake_failures_total",
			Help: "Total handshake failures, by device type.",
		}, []string{"device_type"}),
		GPIOResets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dacroq_gpio_resets_total",
			Help: "Total GPIO reset pulses issued, by device type.",
		}, []string{"device_type"}),
		CampaignDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dacroq_campaign_duration_seconds",
			Help:    "Duration of bulk telemetry campaigns (SNR tests, SAT solves).",
			Buckets: prometheus.DefBuckets,
		}, []string{"device_type", "outcome"}),
		HTTPSlowRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dacroq_http_slow_requests_total",
			Help: "Total HTTP requests that exceeded the slow-request threshold.",
		}),
	}
	reg.MustRegister(m.SessionsConnected, m.ReconnectAttempts, m.HandshakeFailures, m.GPIOResets, m.CampaignDuration, m.HTTPSlowRequests)
	return m
}

// DataMetrics are the domain metrics owned by the data service.
type DataMetrics struct {
	JobsStarted      *prometheus.CounterVec
	JobsCompleted    *prometheus.CounterVec
	JobProgress      *prometheus.GaugeVec
	AuthAttempts     *prometheus.CounterVec
	HTTPSlowRequests prometheus.Counter
}

// NewDataMetrics registers and returns the data service's metrics.
func NewDataMetrics(reg *prometheus.Registry) *DataMetrics {
	m := &DataMetrics{
		JobsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dacroq_jobs_started_total",
			Help: "Total jobs started, by job type.",
		}, []string{"job_type"}),
		JobsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dacroq_jobs_completed_total",
			Help: "Total jobs completed, by job type and terminal status.",
		}, []string{"job_type", "status"}),
		JobProgress: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "dacroq_job_progress_percent",
			Help: "Progress percentage of the most recently updated job, by job id.",
		}, []string{"job_id"}),
		AuthAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dacroq_auth_attempts_total",
			Help: "Total /auth/google attempts, by outcome.",
		}, []string{"outcome"}),
		HTTPSlowRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dacroq_http_slow_requests_total",
			Help: "Total HTTP requests that exceeded the slow-request threshold.",
		}),
	}
	reg.MustRegister(m.JobsStarted, m.JobsCompleted, m.JobProgress, m.AuthAttempts, m.HTTPSlowRequests)
	return m
}
