package repository

import (
	"context"

	"github.com/ErlanBelekov/signage-scheduler/internal/domain"
)

// MutateFunc receives the latest committed collection and returns the
// collection to commit. Returning an error aborts without writing.
type MutateFunc func(snapshot []domain.Schedule) ([]domain.Schedule, error)

// ScheduleStore is the only component that touches persistence. Every
// implementation replaces the whole collection atomically: a failed write
// leaves the previously committed collection intact.
type ScheduleStore interface {
	// LoadAll returns a snapshot of the committed collection without locking.
	LoadAll(ctx context.Context) ([]domain.Schedule, error)

	// WithExclusiveLock serializes read-modify-write cycles: it takes the
	// store-wide write lock, loads the latest collection, runs fn, and
	// persists the result before releasing the lock.
	WithExclusiveLock(ctx context.Context, fn MutateFunc) error

	// Ping reports whether the backing store is reachable.
	Ping(ctx context.Context) error
}

// DriverState remembers which schedule the playback driver last announced,
// so an edge transition is detected once even across restarts.
type DriverState interface {
	LastWinner(ctx context.Context) (string, error)
	SetLastWinner(ctx context.Context, scheduleID string) error
}
