package domain

import (
	"errors"
	"time"
)

var (
	ErrScheduleNotFound = errors.New("schedule not found")
	ErrPlaylistNotFound = errors.New("playlist not found")
	ErrPersistence      = errors.New("persist schedules")
)

type ConflictBehavior string

const (
	ConflictBlock  ConflictBehavior = "block"
	ConflictIgnore ConflictBehavior = "ignore"
)

const DefaultPriority = 1

// Recurrence is a weekly window: the schedule is eligible on each listed day
// from StartTime (inclusive) to EndTime (exclusive). Windows never cross midnight.
type Recurrence struct {
	Days      []Weekday `json:"days"`
	StartTime TimeOfDay `json:"start_time"`
	EndTime   TimeOfDay `json:"end_time"`
}

func (r Recurrence) HasDay(d time.Weekday) bool {
	for _, day := range r.Days {
		if day.Std() == d {
			return true
		}
	}
	return false
}

// PostActions are consumed by the player when the schedule's window ends.
type PostActions struct {
	RevertToDefaultPlaylist bool `json:"revert_to_default_playlist"`
	StopPlayback            bool `json:"stop_playback"`
	CaptureScreenshot       bool `json:"capture_screenshot"`
}

func DefaultPostActions() PostActions {
	return PostActions{RevertToDefaultPlaylist: true}
}

type Metadata struct {
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	CreatedBy string     `json:"created_by"`
	LastRunAt *time.Time `json:"last_run_at"`
	NextRunAt *time.Time `json:"next_run_at"` // nil iff the schedule is disabled
	RunCount  int        `json:"run_count"`
}

type Schedule struct {
	ID               string           `json:"id"`
	Name             string           `json:"name"`
	Description      string           `json:"description"`
	Playlist         string           `json:"playlist"`
	Enabled          bool             `json:"enabled"`
	Priority         int              `json:"priority"`
	Recurrence       Recurrence       `json:"recurrence"`
	ConflictBehavior ConflictBehavior `json:"conflict_behavior"`
	PostActions      PostActions      `json:"post_actions"`
	Metadata         Metadata         `json:"metadata"`
}

// Clone returns a deep copy so callers can mutate a snapshot entry freely.
func (s Schedule) Clone() Schedule {
	c := s
	c.Recurrence.Days = append([]Weekday(nil), s.Recurrence.Days...)
	if s.Metadata.LastRunAt != nil {
		t := *s.Metadata.LastRunAt
		c.Metadata.LastRunAt = &t
	}
	if s.Metadata.NextRunAt != nil {
		t := *s.Metadata.NextRunAt
		c.Metadata.NextRunAt = &t
	}
	return c
}
