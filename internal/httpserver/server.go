// Package httpserver wraps a gin engine and *http.Server with the metrics
// mount, optional pprof, CORS, and request-timing middleware shared by the
// hardware and data services. Health routes are mounted separately by
// internal/health.RegisterHTTPRoutes via Register.
package httpserver

import (
	"context"
	"net/http"
	"net/http/pprof"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/bendatsko/dacroq/internal/api/middleware"
	cfgpkg "github.com/bendatsko/dacroq/internal/config"
)

// Server wraps a gin engine behind a standard net/http.Server.
type Server struct {
	srv *http.Server
	r   *gin.Engine
}

// New builds a gin engine with recovery, CORS, and timing middleware
// installed, mounts the metrics endpoint, and optionally exposes pprof.
// slowCounter, if non-nil, is incremented alongside every slow-request log.
func New(cfg cfgpkg.HTTPConfig, logger *zap.Logger, metricsPath string, metricsHandler http.Handler, slowCounter prometheus.Counter) *Server {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.CORS(cfg.AllowedOrigins))
	r.Use(middleware.Timing(logger, cfg.SlowRequestWarn, slowCounter))

	if metricsPath == "" {
		metricsPath = "/metrics"
	}
	if metricsHandler != nil {
		r.GET(metricsPath, gin.WrapH(metricsHandler))
	}

	if cfg.Pprof.Enable {
		prefix := cfg.Pprof.Prefix
		if prefix == "" {
			prefix = "/debug/pprof"
		}
		r.GET(prefix, gin.WrapH(http.HandlerFunc(pprof.Index)))
		r.GET(prefix+"/cmdline", gin.WrapH(http.HandlerFunc(pprof.Cmdline)))
		r.GET(prefix+"/profile", gin.WrapH(http.HandlerFunc(pprof.Profile)))
		r.GET(prefix+"/symbol", gin.WrapH(http.HandlerFunc(pprof.Symbol)))
		r.GET(prefix+"/trace", gin.WrapH(http.HandlerFunc(pprof.Trace)))
		r.GET(prefix+"/heap", gin.WrapH(pprof.Handler("heap")))
		r.GET(prefix+"/goroutine", gin.WrapH(pprof.Handler("goroutine")))
		r.GET(prefix+"/threadcreate", gin.WrapH(pprof.Handler("threadcreate")))
		r.GET(prefix+"/block", gin.WrapH(pprof.Handler("block")))
		r.GET(prefix+"/allocs", gin.WrapH(pprof.Handler("allocs")))
	}

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return &Server{srv: srv, r: r}
}

// Start runs the HTTP server until it errors or is shut down.
func (s *Server) Start() error {
	return s.srv.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// Register lets callers attach additional routes to the underlying engine.
func (s *Server) Register(fn func(*gin.Engine)) {
	if s == nil || s.r == nil || fn == nil {
		return
	}
	fn(s.r)
}

// Addr returns the address the server is configured to listen on, mainly
// useful in tests that bind to ":0".
func (s *Server) Addr() string {
	return s.srv.Addr
}
