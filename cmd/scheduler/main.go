// scheduler runs the playback driver on its own, next to one or more API
// servers started with DRIVER_ENABLED=false. It needs a store whose lock is
// shared across processes, so the file driver is refused.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ErlanBelekov/signage-scheduler/config"
	"github.com/ErlanBelekov/signage-scheduler/internal/bootstrap"
	"github.com/ErlanBelekov/signage-scheduler/internal/health"
	"github.com/ErlanBelekov/signage-scheduler/internal/metrics"
	"github.com/ErlanBelekov/signage-scheduler/internal/scheduler"
	"github.com/ErlanBelekov/signage-scheduler/internal/usecase"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.StoreDriver == config.DriverFile {
		log.Fatalf("config: STORE_DRIVER=file only supports the in-process driver; use postgres or sqlite")
	}

	logger := bootstrap.NewLogger(cfg.Env, cfg.SlogLevel())

	loc, err := cfg.Location()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	store, err := bootstrap.OpenStore(ctx, cfg, logger)
	if err != nil {
		stop()
		log.Fatalf("store: %v", err)
	}
	defer store.Close()

	logger.Info("store connected", "driver", cfg.StoreDriver)

	ctrl, closePlayer, err := bootstrap.NewPlayer(cfg, logger)
	if err != nil {
		stop()
		log.Fatalf("player: %v", err)
	}
	defer closePlayer()

	state, stateDep, closeState := bootstrap.NewDriverState(cfg)
	defer closeState()

	deps := []health.Dependency{{Name: cfg.StoreDriver, Pinger: store}}
	if stateDep != nil {
		deps = append(deps, *stateDep)
	}

	metrics.Register()
	checker := health.NewChecker(logger, prometheus.DefaultRegisterer, deps...)

	// Playlists are not re-validated here; the API servers own that check.
	scheduleUsecase := usecase.NewScheduleUsecase(store, nil, loc, logger)

	driver := scheduler.NewDriver(scheduleUsecase, state, ctrl, cfg.DefaultPlaylist, cfg.TickInterval(), logger)
	go driver.Start(ctx)

	refresher := scheduler.NewRefresher(scheduleUsecase, cfg.RefreshInterval(), logger)
	go refresher.Start(ctx)

	metricsSrv := metrics.NewServer(":"+cfg.MetricsPort, checker)
	go func() {
		logger.Info("metrics server started", "port", cfg.MetricsPort)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", "error", err)
		}
	}()

	<-ctx.Done()
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown", "error", err)
	}

	logger.Info("scheduler shut down")
}
