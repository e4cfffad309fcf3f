package usecase

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/ErlanBelekov/signage-scheduler/internal/domain"
	"github.com/ErlanBelekov/signage-scheduler/internal/engine"
	ctxlog "github.com/ErlanBelekov/signage-scheduler/internal/log"
	"github.com/ErlanBelekov/signage-scheduler/internal/metrics"
	"github.com/ErlanBelekov/signage-scheduler/internal/repository"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

const defaultCreatedBy = "admin"

// errUnchanged aborts a locked mutation that would write an identical collection.
var errUnchanged = errors.New("collection unchanged")

// PlaylistResolver reports whether a playlist reference exists.
type PlaylistResolver interface {
	Exists(ctx context.Context, name string) (bool, error)
}

type ScheduleUsecase struct {
	store     repository.ScheduleStore
	playlists PlaylistResolver
	loc       *time.Location
	validate  *validator.Validate
	logger    *slog.Logger
	now       func() time.Time
	newID     func() string
}

type Option func(*ScheduleUsecase)

// WithClock overrides the time source. The returned instant is converted to
// the configured location.
func WithClock(now func() time.Time) Option {
	return func(u *ScheduleUsecase) { u.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(u *ScheduleUsecase) { u.newID = newID }
}

// NewScheduleUsecase wires the service. playlists may be nil, which disables
// the playlist existence check. Recurrence is evaluated in loc.
func NewScheduleUsecase(store repository.ScheduleStore, playlists PlaylistResolver, loc *time.Location, logger *slog.Logger, opts ...Option) *ScheduleUsecase {
	u := &ScheduleUsecase{
		store:     store,
		playlists: playlists,
		loc:       loc,
		validate:  newValidator(),
		logger:    logger.With("component", "schedule_usecase"),
		now:       time.Now,
		newID: func() string {
			return uuid.Must(uuid.NewV7()).String()
		},
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Now returns the current instant in the configured zone, truncated to the second.
func (u *ScheduleUsecase) Now() time.Time {
	return u.now().In(u.loc).Truncate(time.Second)
}

func (u *ScheduleUsecase) CreateSchedule(ctx context.Context, in ScheduleInput) (out domain.Schedule, err error) {
	defer func() { observe("create", err) }()

	now := u.Now()
	rec, err := u.checkInput(ctx, in)
	if err != nil {
		return domain.Schedule{}, err
	}

	candidate := domain.Schedule{
		ID:               u.newID(),
		Name:             in.Name,
		Description:      in.Description,
		Playlist:         in.Playlist,
		Enabled:          deref(in.Enabled, true),
		Priority:         deref(in.Priority, domain.DefaultPriority),
		Recurrence:       rec,
		ConflictBehavior: conflictBehavior(in.ConflictBehavior, domain.ConflictBlock),
		PostActions:      deref(in.PostActions, domain.DefaultPostActions()),
		Metadata: domain.Metadata{
			CreatedAt: now,
			UpdatedAt: now,
			CreatedBy: cmp.Or(in.CreatedBy, defaultCreatedBy),
		},
	}
	candidate.Metadata.NextRunAt = nextRun(candidate, now)

	err = u.store.WithExclusiveLock(ctx, func(snapshot []domain.Schedule) ([]domain.Schedule, error) {
		if err := u.checkConflicts(ctx, candidate, snapshot, ""); err != nil {
			return nil, err
		}
		return append(snapshot, candidate), nil
	})
	if err != nil {
		return domain.Schedule{}, fmt.Errorf("create schedule: %w", err)
	}
	return candidate, nil
}

func (u *ScheduleUsecase) UpdateSchedule(ctx context.Context, id string, in ScheduleInput) (out domain.Schedule, err error) {
	defer func() { observe("update", err) }()

	now := u.Now()
	rec, err := u.checkInput(ctx, in)
	if err != nil {
		return domain.Schedule{}, err
	}

	err = u.store.WithExclusiveLock(ctx, func(snapshot []domain.Schedule) ([]domain.Schedule, error) {
		i := indexOf(snapshot, id)
		if i < 0 {
			return nil, domain.ErrScheduleNotFound
		}
		prev := snapshot[i]

		updated := domain.Schedule{
			ID:               prev.ID,
			Name:             in.Name,
			Description:      in.Description,
			Playlist:         in.Playlist,
			Enabled:          deref(in.Enabled, prev.Enabled),
			Priority:         deref(in.Priority, prev.Priority),
			Recurrence:       rec,
			ConflictBehavior: conflictBehavior(in.ConflictBehavior, prev.ConflictBehavior),
			PostActions:      deref(in.PostActions, prev.PostActions),
			Metadata: domain.Metadata{
				CreatedAt: prev.Metadata.CreatedAt,
				UpdatedAt: now,
				CreatedBy: prev.Metadata.CreatedBy,
				LastRunAt: prev.Metadata.LastRunAt,
				RunCount:  prev.Metadata.RunCount,
			},
		}
		updated.Metadata.NextRunAt = nextRun(updated, now)

		if err := u.checkConflicts(ctx, updated, snapshot, id); err != nil {
			return nil, err
		}
		snapshot[i] = updated
		out = updated
		return snapshot, nil
	})
	if err != nil {
		return domain.Schedule{}, fmt.Errorf("update schedule: %w", err)
	}
	return out, nil
}

// ToggleSchedule flips enabled without re-running conflict detection.
func (u *ScheduleUsecase) ToggleSchedule(ctx context.Context, id string) (out domain.Schedule, err error) {
	defer func() { observe("toggle", err) }()

	now := u.Now()
	err = u.store.WithExclusiveLock(ctx, func(snapshot []domain.Schedule) ([]domain.Schedule, error) {
		i := indexOf(snapshot, id)
		if i < 0 {
			return nil, domain.ErrScheduleNotFound
		}
		s := snapshot[i]
		s.Enabled = !s.Enabled
		s.Metadata.UpdatedAt = now
		s.Metadata.NextRunAt = nextRun(s, now)
		snapshot[i] = s
		out = s
		return snapshot, nil
	})
	if err != nil {
		return domain.Schedule{}, fmt.Errorf("toggle schedule: %w", err)
	}
	return out, nil
}

func (u *ScheduleUsecase) DeleteSchedule(ctx context.Context, id string) (err error) {
	defer func() { observe("delete", err) }()

	err = u.store.WithExclusiveLock(ctx, func(snapshot []domain.Schedule) ([]domain.Schedule, error) {
		i := indexOf(snapshot, id)
		if i < 0 {
			return nil, domain.ErrScheduleNotFound
		}
		return slices.Delete(snapshot, i, i+1), nil
	})
	if err != nil {
		return fmt.Errorf("delete schedule: %w", err)
	}
	return nil
}

// RecordActivation is called by the playback driver when a schedule becomes
// the winner: it bumps run_count, stamps last_run_at and advances next_run_at.
func (u *ScheduleUsecase) RecordActivation(ctx context.Context, id string, at time.Time) (out domain.Schedule, err error) {
	defer func() { observe("activate", err) }()

	at = at.In(u.loc)
	err = u.store.WithExclusiveLock(ctx, func(snapshot []domain.Schedule) ([]domain.Schedule, error) {
		i := indexOf(snapshot, id)
		if i < 0 {
			return nil, domain.ErrScheduleNotFound
		}
		s := snapshot[i]
		s.Metadata.RunCount++
		s.Metadata.LastRunAt = &at
		s.Metadata.NextRunAt = nextRun(s, at)
		snapshot[i] = s
		out = s
		return snapshot, nil
	})
	if err != nil {
		return domain.Schedule{}, fmt.Errorf("record activation: %w", err)
	}
	return out, nil
}

// RefreshNextRuns recomputes next_run_at for enabled schedules whose stored
// value is missing or already in the past. That happens when a window passes
// without an activation being recorded (lower priority, driver offline).
func (u *ScheduleUsecase) RefreshNextRuns(ctx context.Context) (refreshed int, err error) {
	now := u.Now()
	err = u.store.WithExclusiveLock(ctx, func(snapshot []domain.Schedule) ([]domain.Schedule, error) {
		for i, s := range snapshot {
			if !s.Enabled {
				continue
			}
			if s.Metadata.NextRunAt != nil && s.Metadata.NextRunAt.After(now) {
				continue
			}
			snapshot[i].Metadata.NextRunAt = nextRun(s, now)
			refreshed++
		}
		if refreshed == 0 {
			return nil, errUnchanged
		}
		return snapshot, nil
	})
	if errors.Is(err, errUnchanged) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("refresh next runs: %w", err)
	}
	return refreshed, nil
}

func (u *ScheduleUsecase) GetSchedule(ctx context.Context, id string) (domain.Schedule, error) {
	all, err := u.store.LoadAll(ctx)
	if err != nil {
		return domain.Schedule{}, fmt.Errorf("get schedule: %w", err)
	}
	i := indexOf(all, id)
	if i < 0 {
		return domain.Schedule{}, fmt.Errorf("get schedule: %w", domain.ErrScheduleNotFound)
	}
	return all[i], nil
}

// ListSchedules returns schedules ordered by next_run_at, soonest first,
// with disabled schedules (no next run) last. enabled filters when non-nil.
func (u *ScheduleUsecase) ListSchedules(ctx context.Context, enabled *bool) ([]domain.Schedule, error) {
	all, err := u.store.LoadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	out := make([]domain.Schedule, 0, len(all))
	for _, s := range all {
		if enabled == nil || s.Enabled == *enabled {
			out = append(out, s)
		}
	}
	slices.SortStableFunc(out, func(a, b domain.Schedule) int {
		an, bn := a.Metadata.NextRunAt, b.Metadata.NextRunAt
		switch {
		case an == nil && bn == nil:
			return 0
		case an == nil:
			return 1
		case bn == nil:
			return -1
		default:
			return an.Compare(*bn)
		}
	})
	return out, nil
}

// ActiveSchedule resolves the winning schedule at the given instant from a
// lock-free snapshot. A nil result means the default playlist should play.
func (u *ScheduleUsecase) ActiveSchedule(ctx context.Context, at time.Time) (*domain.Schedule, error) {
	all, err := u.store.LoadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve active schedule: %w", err)
	}
	return engine.ResolveActive(all, at.In(u.loc)), nil
}

// ActiveCandidates returns every enabled schedule whose window contains at,
// ranked so the first element is the one ActiveSchedule would pick.
func (u *ScheduleUsecase) ActiveCandidates(ctx context.Context, at time.Time) ([]domain.Schedule, error) {
	all, err := u.store.LoadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve active candidates: %w", err)
	}
	return engine.Candidates(all, at.In(u.loc)), nil
}

func (u *ScheduleUsecase) checkInput(ctx context.Context, in ScheduleInput) (domain.Recurrence, error) {
	rec, err := u.validateInput(in)
	if err != nil {
		return domain.Recurrence{}, err
	}
	if u.playlists == nil {
		return rec, nil
	}
	ok, err := u.playlists.Exists(ctx, in.Playlist)
	if err != nil {
		return domain.Recurrence{}, fmt.Errorf("resolve playlist: %w", err)
	}
	if !ok {
		return domain.Recurrence{}, &domain.ValidationError{Fields: map[string]string{
			"playlist": fmt.Sprintf("playlist %q does not exist", in.Playlist),
		}}
	}
	return rec, nil
}

func (u *ScheduleUsecase) checkConflicts(ctx context.Context, candidate domain.Schedule, snapshot []domain.Schedule, excludeID string) error {
	conflicts := engine.FindConflicts(candidate, snapshot, excludeID)
	if len(conflicts) == 0 {
		return nil
	}
	metrics.ConflictsDetectedTotal.Add(float64(len(conflicts)))
	if candidate.ConflictBehavior == domain.ConflictBlock {
		return &domain.ConflictError{Conflicts: conflicts}
	}
	u.logger.WarnContext(ctxlog.WithScheduleID(ctx, candidate.ID), "saving schedule despite overlaps",
		"conflicts", len(conflicts),
	)
	return nil
}

func nextRun(s domain.Schedule, now time.Time) *time.Time {
	if !s.Enabled {
		return nil
	}
	return engine.NextActivation(s.Recurrence, now)
}

func indexOf(schedules []domain.Schedule, id string) int {
	return slices.IndexFunc(schedules, func(s domain.Schedule) bool { return s.ID == id })
}

func deref[T any](p *T, fallback T) T {
	if p == nil {
		return fallback
	}
	return *p
}

func conflictBehavior(v string, fallback domain.ConflictBehavior) domain.ConflictBehavior {
	if v == "" {
		return fallback
	}
	return domain.ConflictBehavior(v)
}

func observe(op string, err error) {
	outcome := "ok"
	var verr *domain.ValidationError
	var cerr *domain.ConflictError
	switch {
	case err == nil:
	case errors.As(err, &verr):
		outcome = "invalid"
	case errors.As(err, &cerr):
		outcome = "conflict"
	case errors.Is(err, domain.ErrScheduleNotFound):
		outcome = "not_found"
	default:
		outcome = "error"
	}
	metrics.ScheduleOperationsTotal.WithLabelValues(op, outcome).Inc()
}
