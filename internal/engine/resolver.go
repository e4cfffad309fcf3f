package engine

import (
	"slices"
	"time"

	"github.com/ErlanBelekov/signage-scheduler/internal/domain"
)

// ResolveActive picks the single schedule that should drive playback at the
// given instant, or nil when none is eligible. Among several eligible
// schedules the highest priority wins, then the earliest created, then the
// smallest id. The returned value is a copy; schedules is never modified.
func ResolveActive(schedules []domain.Schedule, at time.Time) *domain.Schedule {
	var winner *domain.Schedule
	for i := range schedules {
		s := &schedules[i]
		if !s.Enabled || !IsActive(s.Recurrence, at) {
			continue
		}
		if winner == nil || outranks(s, winner) {
			winner = s
		}
	}
	if winner == nil {
		return nil
	}
	w := winner.Clone()
	return &w
}

// Candidates returns every enabled schedule whose window contains at, in
// resolution order (winner first).
func Candidates(schedules []domain.Schedule, at time.Time) []domain.Schedule {
	var out []domain.Schedule
	for _, s := range schedules {
		if s.Enabled && IsActive(s.Recurrence, at) {
			out = append(out, s)
		}
	}
	slices.SortFunc(out, func(a, b domain.Schedule) int {
		if a.ID == b.ID {
			return 0
		}
		if outranks(&a, &b) {
			return -1
		}
		return 1
	})
	return out
}

func outranks(a, b *domain.Schedule) bool {
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	if !a.Metadata.CreatedAt.Equal(b.Metadata.CreatedAt) {
		return a.Metadata.CreatedAt.Before(b.Metadata.CreatedAt)
	}
	return a.ID < b.ID
}
