package domain

import (
	"encoding/json"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"
)

// TimeOfDay is a wall-clock time with minute precision, stored as minutes
// since midnight and encoded as "HH:MM".
type TimeOfDay int

var hhmmPattern = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

func ParseTimeOfDay(s string) (TimeOfDay, error) {
	if !hhmmPattern.MatchString(s) {
		return 0, fmt.Errorf("invalid time of day %q (HH:MM expected)", s)
	}
	h, _ := strconv.Atoi(s[:2])
	m, _ := strconv.Atoi(s[3:])
	return TimeOfDay(h*60 + m), nil
}

func MustTimeOfDay(s string) TimeOfDay {
	t, err := ParseTimeOfDay(s)
	if err != nil {
		panic(err)
	}
	return t
}

func (t TimeOfDay) Hour() int   { return int(t) / 60 }
func (t TimeOfDay) Minute() int { return int(t) % 60 }

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

// Seconds returns the offset from midnight in seconds.
func (t TimeOfDay) Seconds() int { return int(t) * 60 }

func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *TimeOfDay) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	v, err := ParseTimeOfDay(s)
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// Weekday mirrors time.Weekday (Sunday = 0) with a short lowercase JSON name.
type Weekday time.Weekday

var weekdayNames = [...]string{"sun", "mon", "tue", "wed", "thu", "fri", "sat"}

// ParseWeekday accepts short names ("mon"), full English names ("Monday"),
// or the numbers 0..6 with Sunday = 0.
func ParseWeekday(s string) (Weekday, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	if n, err := strconv.Atoi(v); err == nil {
		if n < 0 || n > 6 {
			return 0, fmt.Errorf("invalid weekday %q (0..6 expected)", s)
		}
		return Weekday(n), nil
	}
	for i, name := range weekdayNames {
		if v == name || v == strings.ToLower(time.Weekday(i).String()) {
			return Weekday(i), nil
		}
	}
	return 0, fmt.Errorf("invalid weekday %q", s)
}

func (d Weekday) Std() time.Weekday { return time.Weekday(d) }

func (d Weekday) String() string {
	if d < 0 || int(d) >= len(weekdayNames) {
		return "Weekday(" + strconv.Itoa(int(d)) + ")"
	}
	return weekdayNames[d]
}

func (d Weekday) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Weekday) UnmarshalJSON(b []byte) error {
	var raw any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	var s string
	switch v := raw.(type) {
	case string:
		s = v
	case float64:
		s = strconv.Itoa(int(v))
	default:
		return fmt.Errorf("invalid weekday %s", string(b))
	}
	w, err := ParseWeekday(s)
	if err != nil {
		return err
	}
	*d = w
	return nil
}

// NormalizeDays sorts days Sunday-first and removes duplicates.
func NormalizeDays(days []Weekday) []Weekday {
	out := slices.Clone(days)
	slices.Sort(out)
	return slices.Compact(out)
}

// IntersectDays returns the days present in both sets, Sunday-first.
func IntersectDays(a, b []Weekday) []Weekday {
	var out []Weekday
	for _, d := range NormalizeDays(a) {
		if slices.Contains(b, d) {
			out = append(out, d)
		}
	}
	return out
}
