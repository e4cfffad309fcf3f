// Package file stores the schedule collection as a single JSON document.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ErlanBelekov/signage-scheduler/internal/domain"
	"github.com/ErlanBelekov/signage-scheduler/internal/metrics"
	"github.com/ErlanBelekov/signage-scheduler/internal/repository"
)

// ScheduleStore keeps the collection in one JSON file. Writes go to a temp
// file in the same directory which is then renamed over the original, so
// readers always observe a complete collection. The lock is process-local.
type ScheduleStore struct {
	path   string
	mu     sync.Mutex
	logger *slog.Logger
}

func NewScheduleStore(path string, logger *slog.Logger) (*ScheduleStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &ScheduleStore{path: path, logger: logger.With("component", "file_store")}, nil
}

func (s *ScheduleStore) LoadAll(_ context.Context) ([]domain.Schedule, error) {
	b, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []domain.Schedule{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}
	if len(b) == 0 {
		return []domain.Schedule{}, nil
	}

	var schedules []domain.Schedule
	if err := json.Unmarshal(b, &schedules); err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.path, err)
	}
	if schedules == nil {
		schedules = []domain.Schedule{}
	}
	return schedules, nil
}

func (s *ScheduleStore) WithExclusiveLock(ctx context.Context, fn repository.MutateFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot, err := s.LoadAll(ctx)
	if err != nil {
		return err
	}

	next, err := fn(snapshot)
	if err != nil {
		return err
	}

	start := time.Now()
	if err := s.replace(next); err != nil {
		s.logger.ErrorContext(ctx, "persist schedules", "path", s.path, "error", err)
		return fmt.Errorf("%w: %w", domain.ErrPersistence, err)
	}
	metrics.StorePersistDuration.WithLabelValues("file").Observe(time.Since(start).Seconds())
	return nil
}

func (s *ScheduleStore) Ping(_ context.Context) error {
	_, err := os.Stat(filepath.Dir(s.path))
	return err
}

func (s *ScheduleStore) replace(schedules []domain.Schedule) error {
	if schedules == nil {
		schedules = []domain.Schedule{}
	}
	b, err := json.MarshalIndent(schedules, "", "  ")
	if err != nil {
		return fmt.Errorf("encode schedules: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }() // no-op after a successful rename

	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace %s: %w", s.path, err)
	}
	return nil
}
