package usecase_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/ErlanBelekov/signage-scheduler/internal/domain"
	"github.com/ErlanBelekov/signage-scheduler/internal/repository"
	"github.com/ErlanBelekov/signage-scheduler/internal/usecase"
)

// ---- fakes ----

type memoryStore struct {
	mu        sync.Mutex
	schedules []domain.Schedule
	writeErr  error
}

func (s *memoryStore) LoadAll(_ context.Context) ([]domain.Schedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return clone(s.schedules), nil
}

func (s *memoryStore) WithExclusiveLock(_ context.Context, fn repository.MutateFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, err := fn(clone(s.schedules))
	if err != nil {
		return err
	}
	if s.writeErr != nil {
		return fmt.Errorf("%w: %w", domain.ErrPersistence, s.writeErr)
	}
	s.schedules = next
	return nil
}

func (s *memoryStore) Ping(_ context.Context) error { return nil }

func clone(in []domain.Schedule) []domain.Schedule {
	out := make([]domain.Schedule, len(in))
	for i, s := range in {
		out[i] = s.Clone()
	}
	return out
}

type fakePlaylists struct {
	exists func(ctx context.Context, name string) (bool, error)
}

func (p *fakePlaylists) Exists(ctx context.Context, name string) (bool, error) {
	return p.exists(ctx, name)
}

// ---- helpers ----

// 2026-10-12 is a Monday.
func at(day int, hour, minute int) time.Time {
	return time.Date(2026, time.October, day, hour, minute, 0, 0, time.UTC)
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func newUsecase(store *memoryStore, clk *clock) *usecase.ScheduleUsecase {
	n := 0
	var mu sync.Mutex
	return usecase.NewScheduleUsecase(store, nil, time.UTC, slog.New(slog.NewTextHandler(io.Discard, nil)),
		usecase.WithClock(clk.Now),
		usecase.WithIDGenerator(func() string {
			mu.Lock()
			defer mu.Unlock()
			n++
			return fmt.Sprintf("sched-%02d", n)
		}),
	)
}

func ptr[T any](v T) *T { return &v }

func weekdayInput(name string) usecase.ScheduleInput {
	return usecase.ScheduleInput{
		Name:      name,
		Playlist:  "office-hours",
		Days:      []string{"mon", "tue", "wed", "thu", "fri"},
		StartTime: "08:00",
		EndTime:   "18:00",
	}
}

func mondayMorningInput(name string) usecase.ScheduleInput {
	return usecase.ScheduleInput{
		Name:             name,
		Playlist:         "standup",
		Priority:         ptr(2),
		Days:             []string{"mon"},
		StartTime:        "09:00",
		EndTime:          "10:00",
		ConflictBehavior: "ignore",
	}
}

// ---- Create ----

func TestCreate_NextRunRollsOverWeekend(t *testing.T) {
	clk := &clock{now: at(16, 19, 0)} // Friday
	uc := newUsecase(&memoryStore{}, clk)

	a, err := uc.CreateSchedule(context.Background(), weekdayInput("A"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Metadata.NextRunAt == nil || !a.Metadata.NextRunAt.Equal(at(19, 8, 0)) {
		t.Errorf("next_run_at = %v, want %v", a.Metadata.NextRunAt, at(19, 8, 0))
	}
}

func TestCreate_AppliesDefaults(t *testing.T) {
	clk := &clock{now: at(16, 19, 0)}
	uc := newUsecase(&memoryStore{}, clk)

	s, err := uc.CreateSchedule(context.Background(), weekdayInput("A"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !s.Enabled {
		t.Error("expected schedule to be enabled by default")
	}
	if s.Priority != domain.DefaultPriority {
		t.Errorf("priority = %d, want %d", s.Priority, domain.DefaultPriority)
	}
	if s.ConflictBehavior != domain.ConflictBlock {
		t.Errorf("conflict_behavior = %q, want block", s.ConflictBehavior)
	}
	if s.PostActions != domain.DefaultPostActions() {
		t.Errorf("post_actions = %+v, want defaults", s.PostActions)
	}
	if s.Metadata.CreatedBy != "admin" {
		t.Errorf("created_by = %q, want admin", s.Metadata.CreatedBy)
	}
	if !s.Metadata.CreatedAt.Equal(at(16, 19, 0)) || !s.Metadata.UpdatedAt.Equal(at(16, 19, 0)) {
		t.Errorf("timestamps = %v / %v", s.Metadata.CreatedAt, s.Metadata.UpdatedAt)
	}
	if s.Metadata.RunCount != 0 || s.Metadata.LastRunAt != nil {
		t.Error("expected fresh run metadata")
	}
}

func TestCreate_DisabledHasNoNextRun(t *testing.T) {
	clk := &clock{now: at(16, 19, 0)}
	uc := newUsecase(&memoryStore{}, clk)

	in := weekdayInput("A")
	in.Enabled = ptr(false)
	s, err := uc.CreateSchedule(context.Background(), in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Metadata.NextRunAt != nil {
		t.Errorf("expected nil next_run_at, got %v", s.Metadata.NextRunAt)
	}
}

func TestCreate_ValidationErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(in *usecase.ScheduleInput)
		field  string
	}{
		{"missing name", func(in *usecase.ScheduleInput) { in.Name = "" }, "name"},
		{"blank name", func(in *usecase.ScheduleInput) { in.Name = "   \t" }, "name"},
		{"missing playlist", func(in *usecase.ScheduleInput) { in.Playlist = "" }, "playlist"},
		{"no days", func(in *usecase.ScheduleInput) { in.Days = nil }, "recurrence.days"},
		{"empty days", func(in *usecase.ScheduleInput) { in.Days = []string{} }, "recurrence.days"},
		{"bad day", func(in *usecase.ScheduleInput) { in.Days = []string{"mon", "funday"} }, "recurrence.days[1]"},
		{"bad start", func(in *usecase.ScheduleInput) { in.StartTime = "8:00" }, "recurrence.start_time"},
		{"bad end", func(in *usecase.ScheduleInput) { in.EndTime = "24:00" }, "recurrence.end_time"},
		{"end before start", func(in *usecase.ScheduleInput) { in.StartTime, in.EndTime = "18:00", "08:00" }, "recurrence.end_time"},
		{"empty window", func(in *usecase.ScheduleInput) { in.EndTime = "08:00" }, "recurrence.end_time"},
		{"zero priority", func(in *usecase.ScheduleInput) { in.Priority = ptr(0) }, "priority"},
		{"bad conflict behavior", func(in *usecase.ScheduleInput) { in.ConflictBehavior = "merge" }, "conflict_behavior"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &memoryStore{}
			uc := newUsecase(store, &clock{now: at(12, 7, 0)})

			in := weekdayInput("A")
			tt.mutate(&in)
			_, err := uc.CreateSchedule(context.Background(), in)

			var verr *domain.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if _, ok := verr.Fields[tt.field]; !ok {
				t.Errorf("expected error on %q, got %v", tt.field, verr.Fields)
			}
			if len(store.schedules) != 0 {
				t.Error("invalid schedule must not be persisted")
			}
		})
	}
}

func TestCreate_AcceptsNumericAndFullDayNames(t *testing.T) {
	uc := newUsecase(&memoryStore{}, &clock{now: at(12, 7, 0)})

	in := weekdayInput("A")
	in.Days = []string{"5", "Monday", "1", "wed"}
	s, err := uc.CreateSchedule(context.Background(), in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []domain.Weekday{domain.Weekday(time.Monday), domain.Weekday(time.Wednesday), domain.Weekday(time.Friday)}
	if !slices.Equal(s.Recurrence.Days, want) {
		t.Errorf("days = %v, want %v", s.Recurrence.Days, want)
	}
}

func TestCreate_UnknownPlaylistRejected(t *testing.T) {
	store := &memoryStore{}
	playlists := &fakePlaylists{
		exists: func(_ context.Context, name string) (bool, error) {
			return name == "known", nil
		},
	}
	uc := usecase.NewScheduleUsecase(store, playlists, time.UTC, slog.New(slog.NewTextHandler(io.Discard, nil)))

	_, err := uc.CreateSchedule(context.Background(), weekdayInput("A"))

	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if _, ok := verr.Fields["playlist"]; !ok {
		t.Errorf("expected playlist error, got %v", verr.Fields)
	}
}

func TestCreate_PlaylistLookupFailure(t *testing.T) {
	lookupErr := errors.New("disk gone")
	playlists := &fakePlaylists{
		exists: func(_ context.Context, _ string) (bool, error) { return false, lookupErr },
	}
	uc := usecase.NewScheduleUsecase(&memoryStore{}, playlists, time.UTC, slog.New(slog.NewTextHandler(io.Discard, nil)))

	_, err := uc.CreateSchedule(context.Background(), weekdayInput("A"))
	if !errors.Is(err, lookupErr) {
		t.Errorf("expected lookup error, got %v", err)
	}
}

// ---- Conflicts and resolution scenarios ----

func TestScenario_IgnoredOverlapResolvesByPriority(t *testing.T) {
	clk := &clock{now: at(16, 19, 0)}
	uc := newUsecase(&memoryStore{}, clk)
	ctx := context.Background()

	a, err := uc.CreateSchedule(ctx, weekdayInput("A"))
	if err != nil {
		t.Fatalf("create A: %v", err)
	}
	b, err := uc.CreateSchedule(ctx, mondayMorningInput("B"))
	if err != nil {
		t.Fatalf("create B despite overlap: %v", err)
	}

	got, err := uc.ActiveSchedule(ctx, at(19, 9, 30))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || got.ID != b.ID {
		t.Errorf("Monday 09:30: want B, got %v", got)
	}

	got, err = uc.ActiveSchedule(ctx, at(19, 11, 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || got.ID != a.ID {
		t.Errorf("Monday 11:00: want A, got %v", got)
	}
}

func TestActiveCandidates_RankedWinnerFirst(t *testing.T) {
	uc := newUsecase(&memoryStore{}, &clock{now: at(16, 19, 0)})
	ctx := context.Background()

	a, err := uc.CreateSchedule(ctx, weekdayInput("A"))
	if err != nil {
		t.Fatalf("create A: %v", err)
	}
	b, err := uc.CreateSchedule(ctx, mondayMorningInput("B"))
	if err != nil {
		t.Fatalf("create B: %v", err)
	}

	got, err := uc.ActiveCandidates(ctx, at(19, 9, 30))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0].ID != b.ID || got[1].ID != a.ID {
		t.Errorf("candidates = %v, want [B A]", got)
	}

	got, err = uc.ActiveCandidates(ctx, at(18, 9, 30))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Sunday candidates = %v, want none", got)
	}
}

func TestScenario_BlockedConflictReturnsEntry(t *testing.T) {
	store := &memoryStore{}
	uc := newUsecase(store, &clock{now: at(16, 19, 0)})
	ctx := context.Background()

	a, err := uc.CreateSchedule(ctx, weekdayInput("A"))
	if err != nil {
		t.Fatalf("create A: %v", err)
	}

	_, err = uc.CreateSchedule(ctx, weekdayInput("C"))

	var cerr *domain.ConflictError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	if len(cerr.Conflicts) != 1 {
		t.Fatalf("expected 1 conflict, got %d", len(cerr.Conflicts))
	}
	c := cerr.Conflicts[0]
	if c.ScheduleID != a.ID || c.ScheduleName != "A" {
		t.Errorf("conflict references %q/%q, want %q/A", c.ScheduleID, c.ScheduleName, a.ID)
	}
	if c.OverlapStart.String() != "08:00" || c.OverlapEnd.String() != "18:00" {
		t.Errorf("overlap = %s-%s", c.OverlapStart, c.OverlapEnd)
	}
	if len(c.OverlappingDays) != 5 {
		t.Errorf("overlapping days = %v", c.OverlappingDays)
	}
	if len(store.schedules) != 1 {
		t.Errorf("rejected schedule must not be persisted, have %d", len(store.schedules))
	}
}

func TestScenario_DeleteFallsBackToNextCandidate(t *testing.T) {
	uc := newUsecase(&memoryStore{}, &clock{now: at(16, 19, 0)})
	ctx := context.Background()

	a, _ := uc.CreateSchedule(ctx, weekdayInput("A"))
	b, _ := uc.CreateSchedule(ctx, mondayMorningInput("B"))

	if err := uc.DeleteSchedule(ctx, b.ID); err != nil {
		t.Fatalf("delete B: %v", err)
	}

	got, err := uc.ActiveSchedule(ctx, at(19, 9, 30))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || got.ID != a.ID {
		t.Errorf("want A after deleting B, got %v", got)
	}
}

func TestScenario_ToggleDisablesSchedule(t *testing.T) {
	clk := &clock{now: at(16, 19, 0)}
	uc := newUsecase(&memoryStore{}, clk)
	ctx := context.Background()

	a, _ := uc.CreateSchedule(ctx, weekdayInput("A"))

	clk.Set(at(17, 10, 0))
	toggled, err := uc.ToggleSchedule(ctx, a.ID)
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if toggled.Enabled {
		t.Error("expected schedule to be disabled")
	}
	if toggled.Metadata.NextRunAt != nil {
		t.Errorf("expected nil next_run_at, got %v", toggled.Metadata.NextRunAt)
	}
	if !toggled.Metadata.UpdatedAt.Equal(at(17, 10, 0)) {
		t.Errorf("updated_at = %v", toggled.Metadata.UpdatedAt)
	}

	for day := 12; day <= 18; day++ {
		for hour := 0; hour < 24; hour++ {
			got, err := uc.ActiveSchedule(ctx, at(day, hour, 30))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != nil {
				t.Fatalf("disabled schedule resolved at %v", at(day, hour, 30))
			}
		}
	}
}

func TestToggle_PreservesSchedulingFields(t *testing.T) {
	clk := &clock{now: at(16, 19, 0)}
	uc := newUsecase(&memoryStore{}, clk)
	ctx := context.Background()

	orig, _ := uc.CreateSchedule(ctx, mondayMorningInput("B"))

	off, err := uc.ToggleSchedule(ctx, orig.ID)
	if err != nil {
		t.Fatalf("toggle off: %v", err)
	}
	on, err := uc.ToggleSchedule(ctx, orig.ID)
	if err != nil {
		t.Fatalf("toggle on: %v", err)
	}

	for _, s := range []domain.Schedule{off, on} {
		if s.Priority != orig.Priority || s.Playlist != orig.Playlist {
			t.Errorf("priority/playlist changed: %+v", s)
		}
		if !slices.Equal(s.Recurrence.Days, orig.Recurrence.Days) ||
			s.Recurrence.StartTime != orig.Recurrence.StartTime ||
			s.Recurrence.EndTime != orig.Recurrence.EndTime {
			t.Errorf("recurrence changed: %+v", s.Recurrence)
		}
	}
	if on.Metadata.NextRunAt == nil || !on.Metadata.NextRunAt.Equal(at(19, 9, 0)) {
		t.Errorf("re-enabled next_run_at = %v, want %v", on.Metadata.NextRunAt, at(19, 9, 0))
	}
}

func TestToggle_SkipsConflictCheck(t *testing.T) {
	uc := newUsecase(&memoryStore{}, &clock{now: at(16, 19, 0)})
	ctx := context.Background()

	a, _ := uc.CreateSchedule(ctx, weekdayInput("A"))
	if _, err := uc.ToggleSchedule(ctx, a.ID); err != nil {
		t.Fatalf("disable A: %v", err)
	}
	if _, err := uc.CreateSchedule(ctx, weekdayInput("C")); err != nil {
		t.Fatalf("create C while A disabled: %v", err)
	}
	if _, err := uc.ToggleSchedule(ctx, a.ID); err != nil {
		t.Errorf("re-enabling A should not be blocked, got %v", err)
	}
}

func TestToggle_NotFound(t *testing.T) {
	uc := newUsecase(&memoryStore{}, &clock{now: at(16, 19, 0)})

	_, err := uc.ToggleSchedule(context.Background(), "missing")
	if !errors.Is(err, domain.ErrScheduleNotFound) {
		t.Errorf("expected ErrScheduleNotFound, got %v", err)
	}
}

// ---- Update ----

func TestUpdate_PreservesIdentityAndRunMetadata(t *testing.T) {
	clk := &clock{now: at(16, 19, 0)}
	store := &memoryStore{}
	uc := newUsecase(store, clk)
	ctx := context.Background()

	in := weekdayInput("A")
	in.CreatedBy = "alice"
	orig, _ := uc.CreateSchedule(ctx, in)
	if _, err := uc.RecordActivation(ctx, orig.ID, at(19, 8, 0)); err != nil {
		t.Fatalf("record activation: %v", err)
	}

	clk.Set(at(19, 12, 0))
	upd := weekdayInput("A renamed")
	upd.CreatedBy = "mallory"
	upd.StartTime = "13:00"
	got, err := uc.UpdateSchedule(ctx, orig.ID, upd)
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	if got.ID != orig.ID || got.Name != "A renamed" {
		t.Errorf("id/name = %q/%q", got.ID, got.Name)
	}
	if !got.Metadata.CreatedAt.Equal(orig.Metadata.CreatedAt) || got.Metadata.CreatedBy != "alice" {
		t.Errorf("creation metadata changed: %+v", got.Metadata)
	}
	if got.Metadata.RunCount != 1 || got.Metadata.LastRunAt == nil {
		t.Errorf("run metadata lost: %+v", got.Metadata)
	}
	if !got.Metadata.UpdatedAt.Equal(at(19, 12, 0)) {
		t.Errorf("updated_at = %v", got.Metadata.UpdatedAt)
	}
	if got.Metadata.NextRunAt == nil || !got.Metadata.NextRunAt.Equal(at(19, 13, 0)) {
		t.Errorf("next_run_at = %v, want %v", got.Metadata.NextRunAt, at(19, 13, 0))
	}
}

func TestUpdate_OmittedOptionalsKeepStoredValues(t *testing.T) {
	uc := newUsecase(&memoryStore{}, &clock{now: at(16, 19, 0)})
	ctx := context.Background()

	in := mondayMorningInput("B")
	in.Enabled = ptr(false)
	in.PostActions = &domain.PostActions{StopPlayback: true}
	orig, _ := uc.CreateSchedule(ctx, in)

	upd := mondayMorningInput("B2")
	upd.Priority = nil
	upd.ConflictBehavior = ""
	got, err := uc.UpdateSchedule(ctx, orig.ID, upd)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Enabled || got.Priority != 2 || got.ConflictBehavior != domain.ConflictIgnore {
		t.Errorf("optionals not preserved: %+v", got)
	}
	if got.PostActions != (domain.PostActions{StopPlayback: true}) {
		t.Errorf("post_actions = %+v", got.PostActions)
	}
	if got.Metadata.NextRunAt != nil {
		t.Error("disabled schedule must keep nil next_run_at")
	}
}

func TestUpdate_DoesNotConflictWithItself(t *testing.T) {
	uc := newUsecase(&memoryStore{}, &clock{now: at(16, 19, 0)})
	ctx := context.Background()

	a, _ := uc.CreateSchedule(ctx, weekdayInput("A"))
	upd := weekdayInput("A")
	upd.EndTime = "17:00"
	if _, err := uc.UpdateSchedule(ctx, a.ID, upd); err != nil {
		t.Errorf("self-overlap should be excluded, got %v", err)
	}
}

func TestUpdate_ConflictWithOther(t *testing.T) {
	uc := newUsecase(&memoryStore{}, &clock{now: at(16, 19, 0)})
	ctx := context.Background()

	a, _ := uc.CreateSchedule(ctx, weekdayInput("A"))
	in := weekdayInput("Evening")
	in.StartTime, in.EndTime = "18:00", "22:00"
	ev, err := uc.CreateSchedule(ctx, in)
	if err != nil {
		t.Fatalf("touching window should not conflict: %v", err)
	}

	in.StartTime = "17:00"
	_, err = uc.UpdateSchedule(ctx, ev.ID, in)
	var cerr *domain.ConflictError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	if cerr.Conflicts[0].ScheduleID != a.ID {
		t.Errorf("conflict with %q, want %q", cerr.Conflicts[0].ScheduleID, a.ID)
	}
}

func TestUpdate_NotFoundBeforeConflict(t *testing.T) {
	uc := newUsecase(&memoryStore{}, &clock{now: at(16, 19, 0)})
	ctx := context.Background()

	_, _ = uc.CreateSchedule(ctx, weekdayInput("A"))
	_, err := uc.UpdateSchedule(ctx, "missing", weekdayInput("A"))
	if !errors.Is(err, domain.ErrScheduleNotFound) {
		t.Errorf("expected ErrScheduleNotFound, got %v", err)
	}
}

// ---- Delete / Get / List ----

func TestDelete_NotFound(t *testing.T) {
	uc := newUsecase(&memoryStore{}, &clock{now: at(16, 19, 0)})

	err := uc.DeleteSchedule(context.Background(), "missing")
	if !errors.Is(err, domain.ErrScheduleNotFound) {
		t.Errorf("expected ErrScheduleNotFound, got %v", err)
	}
}

func TestGet(t *testing.T) {
	uc := newUsecase(&memoryStore{}, &clock{now: at(16, 19, 0)})
	ctx := context.Background()

	a, _ := uc.CreateSchedule(ctx, weekdayInput("A"))
	got, err := uc.GetSchedule(ctx, a.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Name != "A" {
		t.Errorf("name = %q", got.Name)
	}
	if _, err := uc.GetSchedule(ctx, "missing"); !errors.Is(err, domain.ErrScheduleNotFound) {
		t.Errorf("expected ErrScheduleNotFound, got %v", err)
	}
}

func TestList_SortedByNextRunWithFilter(t *testing.T) {
	uc := newUsecase(&memoryStore{}, &clock{now: at(12, 7, 0)}) // Monday
	ctx := context.Background()

	late := weekdayInput("late")
	late.Days = []string{"fri"}
	disabled := weekdayInput("disabled")
	disabled.Days = []string{"sat"}
	disabled.Enabled = ptr(false)
	soon := weekdayInput("soon")
	soon.Days = []string{"mon"}

	for _, in := range []usecase.ScheduleInput{late, disabled, soon} {
		if _, err := uc.CreateSchedule(ctx, in); err != nil {
			t.Fatalf("create %s: %v", in.Name, err)
		}
	}

	all, err := uc.ListSchedules(ctx, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var names []string
	for _, s := range all {
		names = append(names, s.Name)
	}
	if !slices.Equal(names, []string{"soon", "late", "disabled"}) {
		t.Errorf("order = %v", names)
	}

	enabled, _ := uc.ListSchedules(ctx, ptr(true))
	if len(enabled) != 2 {
		t.Errorf("enabled filter returned %d", len(enabled))
	}
	off, _ := uc.ListSchedules(ctx, ptr(false))
	if len(off) != 1 || off[0].Name != "disabled" {
		t.Errorf("disabled filter returned %v", off)
	}
}

// ---- RecordActivation ----

func TestRecordActivation(t *testing.T) {
	uc := newUsecase(&memoryStore{}, &clock{now: at(16, 19, 0)})
	ctx := context.Background()

	a, _ := uc.CreateSchedule(ctx, weekdayInput("A"))
	got, err := uc.RecordActivation(ctx, a.ID, at(19, 8, 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Metadata.RunCount != 1 {
		t.Errorf("run_count = %d", got.Metadata.RunCount)
	}
	if got.Metadata.LastRunAt == nil || !got.Metadata.LastRunAt.Equal(at(19, 8, 0)) {
		t.Errorf("last_run_at = %v", got.Metadata.LastRunAt)
	}
	if got.Metadata.NextRunAt == nil || !got.Metadata.NextRunAt.Equal(at(20, 8, 0)) {
		t.Errorf("next_run_at = %v, want Tuesday 08:00", got.Metadata.NextRunAt)
	}

	if _, err := uc.RecordActivation(ctx, "missing", at(19, 8, 0)); !errors.Is(err, domain.ErrScheduleNotFound) {
		t.Errorf("expected ErrScheduleNotFound, got %v", err)
	}
}

// ---- Persistence ----

func TestCreate_PersistenceFailure(t *testing.T) {
	store := &memoryStore{writeErr: errors.New("disk full")}
	uc := newUsecase(store, &clock{now: at(16, 19, 0)})

	_, err := uc.CreateSchedule(context.Background(), weekdayInput("A"))
	if !errors.Is(err, domain.ErrPersistence) {
		t.Errorf("expected ErrPersistence, got %v", err)
	}
	if len(store.schedules) != 0 {
		t.Error("failed write must leave the collection unchanged")
	}
}

func TestConcurrentConflictingCreates_OnlyOneWins(t *testing.T) {
	store := &memoryStore{}
	uc := newUsecase(store, &clock{now: at(16, 19, 0)})

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = uc.CreateSchedule(context.Background(), weekdayInput(fmt.Sprintf("racer-%d", i)))
		}()
	}
	wg.Wait()

	ok, conflicts := 0, 0
	for _, err := range errs {
		var cerr *domain.ConflictError
		switch {
		case err == nil:
			ok++
		case errors.As(err, &cerr):
			conflicts++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if ok != 1 || conflicts != n-1 {
		t.Errorf("ok=%d conflicts=%d, want 1/%d", ok, conflicts, n-1)
	}
	if len(store.schedules) != 1 {
		t.Errorf("stored %d schedules, want 1", len(store.schedules))
	}
}

// ---- RefreshNextRuns ----

func TestRefreshNextRuns_AdvancesStaleEntries(t *testing.T) {
	clk := &clock{now: at(16, 19, 0)}
	store := &memoryStore{}
	uc := newUsecase(store, clk)
	ctx := context.Background()

	a, _ := uc.CreateSchedule(ctx, weekdayInput("A"))
	in := weekdayInput("off")
	in.Days = []string{"sun"}
	in.Enabled = ptr(false)
	_, _ = uc.CreateSchedule(ctx, in)

	// Monday's window passes without an activation.
	clk.Set(at(19, 19, 0))
	n, err := uc.RefreshNextRuns(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Errorf("refreshed = %d, want 1", n)
	}
	got, _ := uc.GetSchedule(ctx, a.ID)
	if got.Metadata.NextRunAt == nil || !got.Metadata.NextRunAt.Equal(at(20, 8, 0)) {
		t.Errorf("next_run_at = %v, want Tuesday 08:00", got.Metadata.NextRunAt)
	}

	n, err = uc.RefreshNextRuns(ctx)
	if err != nil || n != 0 {
		t.Errorf("second refresh = %d, %v; want 0, nil", n, err)
	}
}

func TestRefreshNextRuns_NoWriteWhenFresh(t *testing.T) {
	store := &memoryStore{}
	uc := newUsecase(store, &clock{now: at(16, 19, 0)})
	ctx := context.Background()

	_, _ = uc.CreateSchedule(ctx, weekdayInput("A"))
	store.writeErr = errors.New("read-only")

	n, err := uc.RefreshNextRuns(ctx)
	if err != nil || n != 0 {
		t.Errorf("refresh = %d, %v; want 0, nil", n, err)
	}
}
