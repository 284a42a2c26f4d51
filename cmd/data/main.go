// Command data runs the Data service: persistence, job orchestration, the
// auth gate, and the query/summary API, per SPEC_FULL.md §2.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/bendatsko/dacroq/internal/api"
	"github.com/bendatsko/dacroq/internal/auth"
	cfgpkg "github.com/bendatsko/dacroq/internal/config"
	"github.com/bendatsko/dacroq/internal/health"
	"github.com/bendatsko/dacroq/internal/httpserver"
	"github.com/bendatsko/dacroq/internal/logging"
	"github.com/bendatsko/dacroq/internal/metrics"
	"github.com/bendatsko/dacroq/internal/migrate"
	"github.com/bendatsko/dacroq/internal/orchestrator"
	"github.com/bendatsko/dacroq/internal/storage"
	"github.com/bendatsko/dacroq/internal/sysmetrics"
)

func main() {
	cfg, err := cfgpkg.Load("")
	if err != nil {
		panic(err)
	}

	logger, err := logging.Init(cfg.Logging)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	reg := metrics.NewRegistry()
	metricsHandler := metrics.Handler(reg)
	dataMetrics := metrics.NewDataMetrics(reg)

	db, err := storage.Open(cfg.Database.Path, logger)
	if err != nil {
		logger.Fatal("open database", zap.Error(err))
	}
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("unwrap database handle", zap.Error(err))
	}
	if cfg.Database.AutoMigrate {
		if err := (migrate.Runner{Dir: "migrations"}).Up(context.Background(), sqlDB); err != nil {
			logger.Fatal("run migrations", zap.Error(err))
		}
	}
	repo := storage.New(db)

	ldpc := orchestrator.NewLDPCOrchestrator(repo, nil)
	ldpc.SetMetrics(dataMetrics)
	sat := orchestrator.NewSATOrchestrator(repo, logger)
	sat.SetMetrics(dataMetrics)

	var verifier auth.IdentityVerifier = auth.NewGoogleVerifier(cfg.Auth.GoogleClientID)
	gate := auth.NewGate(verifier, repo, logger, cfg.Auth.AllowInsecureDevFallback, cfg.App.IsProduction())
	gate.Metrics = dataMetrics

	handler := api.NewDataHandler(repo, gate, ldpc, sat, logger)

	aggregator := health.NewAggregator(health.NewDatabaseChecker(sqlDB))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if cfg.SysMetrics.Enabled {
		sampler := sysmetrics.New(repo, logger)
		if cfg.SysMetrics.Interval > 0 {
			sampler.Interval = cfg.SysMetrics.Interval
		}
		go sampler.Run(ctx)
	}

	srv := httpserver.New(cfg.HTTP, logger, cfg.Metrics.Path, metricsHandler, dataMetrics.HTTPSlowRequests)
	srv.Register(func(r *gin.Engine) {
		api.RegisterDataRoutes(r, handler)
		health.RegisterHTTPRoutes(r, aggregator)
	})

	go func() {
		if err := srv.Start(); err != nil {
			logger.Error("data http server exited", zap.Error(err))
		}
	}()
	logger.Info("data service started", zap.String("addr", cfg.HTTP.Addr))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down data service")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
}
