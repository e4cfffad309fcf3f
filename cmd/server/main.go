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
	"github.com/ErlanBelekov/signage-scheduler/internal/playlist"
	"github.com/ErlanBelekov/signage-scheduler/internal/scheduler"
	httptransport "github.com/ErlanBelekov/signage-scheduler/internal/transport/http"
	"github.com/ErlanBelekov/signage-scheduler/internal/transport/http/handler"
	"github.com/ErlanBelekov/signage-scheduler/internal/usecase"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger := bootstrap.NewLogger(cfg.Env, cfg.SlogLevel())

	if cfg.Env != "local" {
		gin.SetMode(gin.ReleaseMode)
	}

	loc, err := cfg.Location()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	store, err := bootstrap.OpenStore(ctx, cfg, logger)
	if err != nil {
		stop()
		log.Fatalf("store: %v", err)
	}
	defer store.Close()

	deps := []health.Dependency{{Name: cfg.StoreDriver, Pinger: store}}

	// Playlists
	var playlists usecase.PlaylistResolver
	if cfg.PlaylistsDir != "" {
		resolver, err := playlist.NewDirResolver(cfg.PlaylistsDir, logger)
		if err != nil {
			stop()
			log.Fatalf("playlists: %v", err)
		}
		go func() {
			if err := resolver.Watch(ctx); err != nil {
				logger.Error("playlist watcher", "error", err)
			}
		}()
		playlists = resolver
	}

	// Schedules
	scheduleUsecase := usecase.NewScheduleUsecase(store, playlists, loc, logger)
	scheduleHandler := handler.NewScheduleHandler(scheduleUsecase, logger)
	playbackHandler := handler.NewPlaybackHandler(scheduleUsecase, cfg.DefaultPlaylist, logger)

	// Playback driver
	if cfg.DriverEnabled {
		ctrl, closePlayer, err := bootstrap.NewPlayer(cfg, logger)
		if err != nil {
			stop()
			log.Fatalf("player: %v", err)
		}
		defer closePlayer()

		state, stateDep, closeState := bootstrap.NewDriverState(cfg)
		defer closeState()
		if stateDep != nil {
			deps = append(deps, *stateDep)
		}

		driver := scheduler.NewDriver(scheduleUsecase, state, ctrl, cfg.DefaultPlaylist, cfg.TickInterval(), logger)
		go driver.Start(ctx)

		refresher := scheduler.NewRefresher(scheduleUsecase, cfg.RefreshInterval(), logger)
		go refresher.Start(ctx)
	}

	metrics.Register()
	checker := health.NewChecker(logger, prometheus.DefaultRegisterer, deps...)

	srv := http.Server{
		Addr: ":" + cfg.Port,
		Handler: httptransport.NewRouter(logger, httptransport.RouterConfig{
			JWTKey:          []byte(cfg.JWTSecret),
			AllowAllOrigins: cfg.CORSAllowAll,
		}, scheduleHandler, playbackHandler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	metricsSrv := metrics.NewServer(":"+cfg.MetricsPort, checker)

	go func() {
		logger.Info("server started", "port", cfg.Port, "store", cfg.StoreDriver, "timezone", loc.String())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	}()

	go func() {
		logger.Info("metrics server started", "port", cfg.MetricsPort)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", "error", err)
		}
	}()

	<-ctx.Done()
	stop()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", "error", err)
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown", "error", err)
	}
}
