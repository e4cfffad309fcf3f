// Package bootstrap builds the runtime dependencies shared by the binaries
// from a loaded config.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/ErlanBelekov/signage-scheduler/config"
	"github.com/ErlanBelekov/signage-scheduler/internal/health"
	"github.com/ErlanBelekov/signage-scheduler/internal/infrastructure/file"
	"github.com/ErlanBelekov/signage-scheduler/internal/infrastructure/postgres"
	"github.com/ErlanBelekov/signage-scheduler/internal/infrastructure/redis"
	"github.com/ErlanBelekov/signage-scheduler/internal/infrastructure/sqlite"
	ctxlog "github.com/ErlanBelekov/signage-scheduler/internal/log"
	"github.com/ErlanBelekov/signage-scheduler/internal/player"
	"github.com/ErlanBelekov/signage-scheduler/internal/repository"
	"github.com/ErlanBelekov/signage-scheduler/internal/scheduler"
	"github.com/lmittmann/tint"
)

func NewLogger(env string, level slog.Level) *slog.Logger {
	var inner slog.Handler
	if env == "local" {
		inner = tint.NewHandler(os.Stdout, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
		})
	} else {
		inner = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}
	return slog.New(ctxlog.NewContextHandler(inner))
}

// Store is the schedule gateway plus the cleanup for whatever backs it.
type Store struct {
	repository.ScheduleStore
	Close func()
}

// OpenStore selects the gateway named by STORE_DRIVER. Postgres is migrated
// on open.
func OpenStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Store, error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("db: %w", err)
		}
		if err := postgres.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		return &Store{ScheduleStore: postgres.NewScheduleStore(pool, logger), Close: pool.Close}, nil
	case config.DriverSQLite:
		s, err := sqlite.Open(ctx, cfg.SQLitePath, logger)
		if err != nil {
			return nil, err
		}
		return &Store{ScheduleStore: s, Close: func() { _ = s.Close() }}, nil
	default:
		s, err := file.NewScheduleStore(cfg.SchedulesFile, logger)
		if err != nil {
			return nil, err
		}
		return &Store{ScheduleStore: s, Close: func() {}}, nil
	}
}

// NewPlayer fans commands out to every configured sink, falling back to the
// log sink when none is configured.
func NewPlayer(cfg *config.Config, logger *slog.Logger) (player.Controller, func(), error) {
	var sinks player.Fanout
	closeFn := func() {}

	if cfg.MQTTBrokerURL != "" {
		c, err := player.NewMQTTController(player.MQTTOptions{
			BrokerURL: cfg.MQTTBrokerURL,
			ClientID:  cfg.MQTTClientID,
			Topic:     cfg.MQTTTopic,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		sinks = append(sinks, c)
		closeFn = c.Close
	}
	if cfg.PlayerWebhookURL != "" {
		sinks = append(sinks, player.NewHTTPController(cfg.PlayerWebhookURL, time.Duration(cfg.PlayerTimeoutSec)*time.Second, logger))
	}

	switch len(sinks) {
	case 0:
		return player.NewLogController(logger), closeFn, nil
	case 1:
		return sinks[0], closeFn, nil
	default:
		return sinks, closeFn, nil
	}
}

// NewDriverState uses Redis when configured so a restarted driver does not
// record the current winner's activation twice. The returned dependency is
// nil for the in-memory state.
func NewDriverState(cfg *config.Config) (repository.DriverState, *health.Dependency, func()) {
	if cfg.RedisAddress == "" {
		return &scheduler.MemoryState{}, nil, func() {}
	}
	rs := redis.NewDriverState(redis.Options{
		Address:  cfg.RedisAddress,
		Username: cfg.RedisUsername,
		Password: cfg.RedisPassword,
	})
	return rs, &health.Dependency{Name: "redis", Pinger: rs}, func() { _ = rs.Close() }
}
