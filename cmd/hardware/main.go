// Command hardware runs the Hardware service: the process with direct
// access to GPIO and USB serial devices, per SPEC_FULL.md §2.
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
	cfgpkg "github.com/bendatsko/dacroq/internal/config"
	"github.com/bendatsko/dacroq/internal/devicemanager"
	"github.com/bendatsko/dacroq/internal/devicesession"
	"github.com/bendatsko/dacroq/internal/devicetype"
	"github.com/bendatsko/dacroq/internal/firmware"
	"github.com/bendatsko/dacroq/internal/gpio"
	"github.com/bendatsko/dacroq/internal/health"
	"github.com/bendatsko/dacroq/internal/httpserver"
	"github.com/bendatsko/dacroq/internal/logging"
	"github.com/bendatsko/dacroq/internal/metrics"
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
	hwMetrics := metrics.NewHardwareMetrics(reg)

	table := devicetype.NewTable()
	manager := devicemanager.New(table, nil)

	chip := cfg.GPIO.Chip
	if !cfg.GPIO.Enabled {
		chip = "disabled"
	}
	gpioDrv := gpio.New(chip, table, manager)
	gpioDrv.SetMetrics(hwMetrics)
	manager.SetGPIO(gpioDrv)

	pool := devicesession.NewPool(table, manager)
	pool.SetMetrics(hwMetrics)
	fw := firmware.New(table, manager, logger)

	aggregator := health.NewAggregator(
		health.NewGPIOChecker(gpioDrv),
		health.NewSessionPoolChecker(pool),
	)

	handler := api.NewHardwareHandler(manager, pool, gpioDrv, fw, table, logger)

	srv := httpserver.New(cfg.HTTP, logger, cfg.Metrics.Path, metricsHandler, hwMetrics.HTTPSlowRequests)
	srv.Register(func(r *gin.Engine) {
		api.RegisterHardwareRoutes(r, handler)
		health.RegisterHTTPRoutes(r, aggregator)
	})

	go func() {
		if err := srv.Start(); err != nil {
			logger.Error("hardware http server exited", zap.Error(err))
		}
	}()
	logger.Info("hardware service started", zap.String("addr", cfg.HTTP.Addr))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down hardware service")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	pool.CloseAll()
	_ = gpioDrv.Close()
}
