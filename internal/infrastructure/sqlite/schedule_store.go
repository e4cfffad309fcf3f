// Package sqlite keeps the schedule collection in an embedded SQLite
// database, one JSON document per row. It suits single-board players that
// run the API and a standalone driver side by side.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/ErlanBelekov/signage-scheduler/internal/domain"
	"github.com/ErlanBelekov/signage-scheduler/internal/metrics"
	"github.com/ErlanBelekov/signage-scheduler/internal/repository"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS schedules (
	id       TEXT PRIMARY KEY,
	position INTEGER NOT NULL,
	doc      TEXT    NOT NULL
)`

type ScheduleStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open creates the database file if needed. Transactions start with
// BEGIN IMMEDIATE so a writer holds the database write lock from the first
// read of the cycle, which serializes writers across processes too.
func Open(ctx context.Context, path string, logger *slog.Logger) (*ScheduleStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	q := url.Values{}
	q.Set("_txlock", "immediate")
	q.Add("_pragma", "busy_timeout(5000)")
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "synchronous(FULL)")
	db, err := sql.Open("sqlite", "file:"+path+"?"+q.Encode())
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(4)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}
	return &ScheduleStore{db: db, logger: logger.With("component", "sqlite_store")}, nil
}

func (s *ScheduleStore) Close() error {
	return s.db.Close()
}

func (s *ScheduleStore) LoadAll(ctx context.Context) ([]domain.Schedule, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT doc FROM schedules ORDER BY position ASC`)
	if err != nil {
		return nil, fmt.Errorf("load schedules: %w", err)
	}
	return collect(rows)
}

func (s *ScheduleStore) WithExclusiveLock(ctx context.Context, fn repository.MutateFunc) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin tx: %w", domain.ErrPersistence, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	rows, err := tx.QueryContext(ctx, `SELECT doc FROM schedules ORDER BY position ASC`)
	if err != nil {
		return fmt.Errorf("load schedules: %w", err)
	}
	snapshot, err := collect(rows)
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
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit tx: %w", domain.ErrPersistence, err)
	}
	metrics.StorePersistDuration.WithLabelValues("sqlite").Observe(time.Since(start).Seconds())
	return nil
}

func (s *ScheduleStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func replaceAll(ctx context.Context, tx *sql.Tx, schedules []domain.Schedule) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM schedules`); err != nil {
		return fmt.Errorf("clear schedules: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO schedules (id, position, doc) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, sc := range schedules {
		doc, err := json.Marshal(sc)
		if err != nil {
			return fmt.Errorf("encode schedule %s: %w", sc.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, sc.ID, i, string(doc)); err != nil {
			return fmt.Errorf("insert schedule %s: %w", sc.ID, err)
		}
	}
	return nil
}

func collect(rows *sql.Rows) ([]domain.Schedule, error) {
	defer rows.Close()

	schedules := []domain.Schedule{}
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scan schedule: %w", err)
		}
		var s domain.Schedule
		if err := json.Unmarshal([]byte(doc), &s); err != nil {
			return nil, fmt.Errorf("decode schedule: %w", err)
		}
		schedules = append(schedules, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate schedules: %w", err)
	}
	return schedules, nil
}
