package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ErlanBelekov/signage-scheduler/internal/domain"
	"github.com/ErlanBelekov/signage-scheduler/internal/metrics"
	"github.com/ErlanBelekov/signage-scheduler/internal/repository"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// scheduleLockKey identifies the advisory lock guarding the collection.
const scheduleLockKey int64 = 0x5ced01e

const selectSchedules = `
	SELECT id, name, description, playlist, enabled, priority,
	       days, start_minute, end_minute, conflict_behavior, post_actions,
	       created_at, updated_at, created_by, last_run_at, next_run_at, run_count
	FROM schedules
	ORDER BY position ASC`

type ScheduleStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewScheduleStore(pool *pgxpool.Pool, logger *slog.Logger) *ScheduleStore {
	return &ScheduleStore{pool: pool, logger: logger.With("component", "postgres_store")}
}

func (s *ScheduleStore) LoadAll(ctx context.Context) ([]domain.Schedule, error) {
	rows, err := s.pool.Query(ctx, selectSchedules)
	if err != nil {
		return nil, fmt.Errorf("load schedules: %w", err)
	}
	return collectSchedules(rows)
}

// WithExclusiveLock runs fn inside one transaction holding a transaction-scoped
// advisory lock, so concurrent writers across processes are serialized and a
// failed replace rolls back to the previous collection.
func (s *ScheduleStore) WithExclusiveLock(ctx context.Context, fn repository.MutateFunc) (err error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: begin tx: %w", domain.ErrPersistence, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if _, err = tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, scheduleLockKey); err != nil {
		return fmt.Errorf("%w: acquire lock: %w", domain.ErrPersistence, err)
	}

	rows, err := tx.Query(ctx, selectSchedules)
	if err != nil {
		return fmt.Errorf("load schedules: %w", err)
	}
	snapshot, err := collectSchedules(rows)
	if err != nil {
		return err
	}

	next, err := fn(snapshot)
	if err != nil {
		return err
	}

	start := time.Now()
	if err = replaceAll(ctx, tx, next); err != nil {
		s.logger.ErrorContext(ctx, "replace schedules", "error", err)
		return fmt.Errorf("%w: %w", domain.ErrPersistence, err)
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: commit tx: %w", domain.ErrPersistence, err)
	}
	metrics.StorePersistDuration.WithLabelValues("postgres").Observe(time.Since(start).Seconds())
	return nil
}

func (s *ScheduleStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func replaceAll(ctx context.Context, tx pgx.Tx, schedules []domain.Schedule) error {
	if _, err := tx.Exec(ctx, `DELETE FROM schedules`); err != nil {
		return fmt.Errorf("clear schedules: %w", err)
	}
	if len(schedules) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for i, sc := range schedules {
		days := make([]int16, len(sc.Recurrence.Days))
		for j, d := range sc.Recurrence.Days {
			days[j] = int16(d)
		}
		batch.Queue(`
			INSERT INTO schedules (
				id, position, name, description, playlist, enabled, priority,
				days, start_minute, end_minute, conflict_behavior, post_actions,
				created_at, updated_at, created_by, last_run_at, next_run_at, run_count
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
			sc.ID, i, sc.Name, sc.Description, sc.Playlist, sc.Enabled, sc.Priority,
			days, int(sc.Recurrence.StartTime), int(sc.Recurrence.EndTime),
			string(sc.ConflictBehavior), sc.PostActions,
			sc.Metadata.CreatedAt, sc.Metadata.UpdatedAt, sc.Metadata.CreatedBy,
			sc.Metadata.LastRunAt, sc.Metadata.NextRunAt, sc.Metadata.RunCount,
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert schedules: %w", err)
	}
	return nil
}

func collectSchedules(rows pgx.Rows) ([]domain.Schedule, error) {
	defer rows.Close()

	schedules := []domain.Schedule{}
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		schedules = append(schedules, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate schedules: %w", err)
	}
	return schedules, nil
}

func scanSchedule(row pgx.Row) (domain.Schedule, error) {
	var (
		s                domain.Schedule
		days             []int16
		start, end       int
		conflictBehavior string
	)
	err := row.Scan(
		&s.ID, &s.Name, &s.Description, &s.Playlist, &s.Enabled, &s.Priority,
		&days, &start, &end, &conflictBehavior, &s.PostActions,
		&s.Metadata.CreatedAt, &s.Metadata.UpdatedAt, &s.Metadata.CreatedBy,
		&s.Metadata.LastRunAt, &s.Metadata.NextRunAt, &s.Metadata.RunCount,
	)
	if err != nil {
		return domain.Schedule{}, fmt.Errorf("scan schedule: %w", err)
	}

	s.Recurrence.Days = make([]domain.Weekday, len(days))
	for i, d := range days {
		s.Recurrence.Days[i] = domain.Weekday(d)
	}
	s.Recurrence.StartTime = domain.TimeOfDay(start)
	s.Recurrence.EndTime = domain.TimeOfDay(end)
	s.ConflictBehavior = domain.ConflictBehavior(conflictBehavior)
	return s, nil
}
