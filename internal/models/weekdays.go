package models

import (
	"database/sql/driver"
	"fmt"
	"strconv"
	"strings"
)

// WeekdayList is a set of weekday indices (0=Sunday..6=Saturday) stored as a
// comma-separated string column.
type WeekdayList []int

func (w WeekdayList) Value() (driver.Value, error) {
	if len(w) == 0 {
		return "", nil
	}
	parts := make([]string, len(w))
	for i, d := range w {
		parts[i] = strconv.Itoa(d)
	}
	return strings.Join(parts, ","), nil
}

func (w *WeekdayList) Scan(value interface{}) error {
	var s string
	switch v := value.(type) {
	case nil:
		*w = nil
		return nil
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return fmt.Errorf("cannot scan %T into WeekdayList", value)
	}
	if s == "" {
		*w = nil
		return nil
	}
	parts := strings.Split(s, ",")
	out := make(WeekdayList, 0, len(parts))
	for _, p := range parts {
		d, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return fmt.Errorf("invalid weekday %q: %w", p, err)
		}
		out = append(out, d)
	}
	*w = out
	return nil
}
