// Package engine holds the pure schedule algorithms: window matching,
// next-activation search, pairwise conflict detection and winner resolution.
// Nothing here performs I/O or returns errors.
package engine

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ErlanBelekov/signage-scheduler/internal/domain"
	"github.com/robfig/cron/v3"
)

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// IsActive reports whether at falls inside r's window. The timestamp is read
// in its own location; callers normalize to the configured zone.
func IsActive(r domain.Recurrence, at time.Time) bool {
	if !r.HasDay(at.Weekday()) {
		return false
	}
	sec := at.Hour()*3600 + at.Minute()*60 + at.Second()
	return r.StartTime.Seconds() <= sec && sec < r.EndTime.Seconds()
}

// OccurrenceStart returns the start of r's window on the calendar day of at,
// in at's location.
func OccurrenceStart(r domain.Recurrence, at time.Time) time.Time {
	y, m, d := at.Date()
	return time.Date(y, m, d, r.StartTime.Hour(), r.StartTime.Minute(), 0, 0, at.Location())
}

// NextActivation returns the earliest window start strictly after the given
// instant, or nil when r has no days. A start exactly at after is skipped.
func NextActivation(r domain.Recurrence, after time.Time) *time.Time {
	if len(r.Days) == 0 {
		return nil
	}
	sched, err := cronParser.Parse(cronSpec(r))
	if err != nil {
		return nil
	}
	next := sched.Next(after)
	if next.IsZero() {
		return nil
	}
	return &next
}

// cronSpec renders the window start as a five-field cron expression,
// e.g. "0 8 * * 1,2,3,4,5".
func cronSpec(r domain.Recurrence) string {
	days := domain.NormalizeDays(r.Days)
	dow := make([]string, len(days))
	for i, d := range days {
		dow[i] = strconv.Itoa(int(d))
	}
	return fmt.Sprintf("%d %d * * %s", r.StartTime.Minute(), r.StartTime.Hour(), strings.Join(dow, ","))
}
