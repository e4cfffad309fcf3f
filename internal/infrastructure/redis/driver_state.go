package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const lastWinnerKey = "signage:driver:last_winner"

type Options struct {
	Address  string
	Username string
	Password string
}

// client is the subset of *goredis.Client the driver state uses.
type client interface {
	Get(ctx context.Context, key string) *goredis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *goredis.StatusCmd
	Ping(ctx context.Context) *goredis.StatusCmd
	Close() error
}

// DriverState stores the playback driver's last announced schedule id.
type DriverState struct {
	rdb client
}

func NewDriverState(opts Options) *DriverState {
	return &DriverState{rdb: goredis.NewClient(&goredis.Options{
		Addr:     opts.Address,
		Username: opts.Username,
		Password: opts.Password,
		DB:       0,
	})}
}

// LastWinner returns "" when no schedule was active at the last tick.
func (s *DriverState) LastWinner(ctx context.Context) (string, error) {
	id, err := s.rdb.Get(ctx, lastWinnerKey).Result()
	if errors.Is(err, goredis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get last winner: %w", err)
	}
	return id, nil
}

func (s *DriverState) SetLastWinner(ctx context.Context, scheduleID string) error {
	if err := s.rdb.Set(ctx, lastWinnerKey, scheduleID, 0).Err(); err != nil {
		return fmt.Errorf("set last winner: %w", err)
	}
	return nil
}

func (s *DriverState) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func (s *DriverState) Close() error {
	return s.rdb.Close()
}
