package engine

import (
	"slices"
	"strings"

	"github.com/ErlanBelekov/signage-scheduler/internal/domain"
)

// FindConflicts lists every enabled schedule in existing (other than excludeID)
// whose window can be active at the same instant as candidate's. Results are
// ordered by schedule id so identical input yields identical output.
// Priority is not considered here.
func FindConflicts(candidate domain.Schedule, existing []domain.Schedule, excludeID string) []domain.ConflictEntry {
	ordered := slices.Clone(existing)
	slices.SortStableFunc(ordered, func(a, b domain.Schedule) int {
		return strings.Compare(a.ID, b.ID)
	})

	var conflicts []domain.ConflictEntry
	for _, other := range ordered {
		if !other.Enabled || (excludeID != "" && other.ID == excludeID) {
			continue
		}
		entry, ok := overlap(candidate, other)
		if ok {
			conflicts = append(conflicts, entry)
		}
	}
	return conflicts
}

func overlap(candidate, other domain.Schedule) (domain.ConflictEntry, bool) {
	common := domain.IntersectDays(candidate.Recurrence.Days, other.Recurrence.Days)
	if len(common) == 0 {
		return domain.ConflictEntry{}, false
	}
	a, b := candidate.Recurrence, other.Recurrence
	if !(a.StartTime < b.EndTime && b.StartTime < a.EndTime) {
		return domain.ConflictEntry{}, false
	}
	return domain.ConflictEntry{
		ScheduleID:      other.ID,
		ScheduleName:    other.Name,
		Priority:        other.Priority,
		OverlappingDays: common,
		OverlapStart:    max(a.StartTime, b.StartTime),
		OverlapEnd:      min(a.EndTime, b.EndTime),
	}, true
}
