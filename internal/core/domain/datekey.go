package domain

import (
	"strings"
	"time"
)

const (
	// DateKeyLayout is the calendar-day key used by totals, history and tasks.
	DateKeyLayout = "2006-01-02"

	// legacyDayLayout is the Date.toDateString() form older documents stored
	// as the streak's last active day.
	legacyDayLayout = "Mon Jan 02 2006"
)

// DateKey returns the YYYY-MM-DD key of t's calendar day in t's own location.
func DateKey(t time.Time) string {
	return t.Format(DateKeyLayout)
}

func ParseDateKey(key string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	return time.ParseInLocation(DateKeyLayout, strings.TrimSpace(key), loc)
}

// NormalizeDay converts a stored day string into a date key. It accepts both
// the date-key form and the legacy "Mon Jan 02 2006" form.
func NormalizeDay(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	if t, err := time.Parse(DateKeyLayout, s); err == nil {
		return DateKey(t), true
	}
	if t, err := time.Parse(legacyDayLayout, s); err == nil {
		return DateKey(t), true
	}
	return "", false
}

// StartOfWeek returns midnight of the Monday that starts t's week.
func StartOfWeek(t time.Time) time.Time {
	offset := int(t.Weekday()) - 1
	if offset < 0 {
		offset = 6
	}
	d := t.AddDate(0, 0, -offset)
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, t.Location())
}

func IsValidDateKey(key string) bool {
	_, err := time.Parse(DateKeyLayout, key)
	return err == nil
}
