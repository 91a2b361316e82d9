package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/prite36/watering-control/internal/models"
)

// ParseTimeOfDay parses an "HH:MM" 24-hour clock string.
func ParseTimeOfDay(s string) (hour, minute int, err error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid timeOfDay %q: want HH:MM", s)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid timeOfDay %q: bad hour", s)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid timeOfDay %q: bad minute", s)
	}
	return hour, minute, nil
}

// NextOccurrence computes the next instant at or after now at which the
// schedule should fire, with seconds zeroed. ok is false when no occurrence
// can be determined (unknown frequency, or weekly with no weekdays listed).
// A malformed timeOfDay is an error, never a valid instant.
func NextOccurrence(sched models.Schedule, now time.Time) (next time.Time, ok bool, err error) {
	hour, minute, err := ParseTimeOfDay(sched.TimeOfDay)
	if err != nil {
		return time.Time{}, false, err
	}

	candidate := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())

	switch sched.Frequency {
	case models.FrequencyDaily:
		if !candidate.After(now) {
			candidate = candidate.AddDate(0, 0, 1)
		}
		return candidate, true, nil

	case models.FrequencyWeekly:
		if len(sched.DaysOfWeek) == 0 {
			return time.Time{}, false, nil
		}
		var soonest time.Time
		for _, day := range sched.DaysOfWeek {
			offset := (day + 7 - int(now.Weekday())) % 7
			c := candidate.AddDate(0, 0, offset)
			if offset == 0 && !c.After(now) {
				c = c.AddDate(0, 0, 7)
			}
			if soonest.IsZero() || c.Before(soonest) {
				soonest = c
			}
		}
		return soonest, true, nil
	}

	return time.Time{}, false, nil
}
