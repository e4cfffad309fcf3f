package domain

import (
	"fmt"
	"sort"
	"strings"
)

// ValidationError carries one message per offending field, keyed by the
// field's JSON path (e.g. "recurrence.start_time").
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + e.Fields[k]
	}
	return "invalid schedule: " + strings.Join(parts, "; ")
}

// ConflictEntry describes one existing schedule whose window overlaps the candidate.
type ConflictEntry struct {
	ScheduleID      string    `json:"schedule_id"`
	ScheduleName    string    `json:"schedule_name"`
	Priority        int       `json:"priority"`
	OverlappingDays []Weekday `json:"overlapping_days"`
	OverlapStart    TimeOfDay `json:"overlap_start"`
	OverlapEnd      TimeOfDay `json:"overlap_end"`
}

type ConflictError struct {
	Conflicts []ConflictEntry
}

func (e *ConflictError) Error() string {
	ids := make([]string, len(e.Conflicts))
	for i, c := range e.Conflicts {
		ids[i] = c.ScheduleID
	}
	return fmt.Sprintf("schedule conflicts with %d existing schedule(s): %s", len(e.Conflicts), strings.Join(ids, ", "))
}
