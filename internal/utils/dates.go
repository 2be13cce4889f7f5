package utils

import (
	"errors"
	"fmt"
	"time"

	"github.com/yukikurage/habit-tracker-api/internal/constants"
)

// ErrInvalidDate is returned when a value is not a YYYY-MM-DD calendar date.
var ErrInvalidDate = errors.New("date must be formatted as YYYY-MM-DD")

// Clock returns the current wall-clock time. Services take one so tests can pin "today".
type Clock func() time.Time

// SystemClock is the production Clock.
func SystemClock() time.Time {
	return time.Now()
}

// FormatDate renders t as a calendar date in its own location.
func FormatDate(t time.Time) string {
	return t.Format(constants.DateLayout)
}

// Today returns the local calendar date for clock.
func Today(clock Clock) string {
	return FormatDate(clock())
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(value string) (time.Time, error) {
	t, err := time.Parse(constants.DateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, value)
	}
	return t, nil
}

// IsDate reports whether value is a valid YYYY-MM-DD date.
func IsDate(value string) bool {
	_, err := ParseDate(value)
	return err == nil
}

// AddDays shifts a calendar date by n days.
func AddDays(date string, n int) (string, error) {
	t, err := ParseDate(date)
	if err != nil {
		return "", err
	}
	return FormatDate(t.AddDate(0, 0, n)), nil
}

// DateRange returns every date from start to end inclusive.
// An empty slice is returned when end precedes start.
func DateRange(start, end string, maxDays int) ([]string, error) {
	from, err := ParseDate(start)
	if err != nil {
		return nil, err
	}
	to, err := ParseDate(end)
	if err != nil {
		return nil, err
	}

	dates := []string{}
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		if maxDays > 0 && len(dates) >= maxDays {
			return nil, fmt.Errorf("date range %s..%s exceeds %d days", start, end, maxDays)
		}
		dates = append(dates, FormatDate(d))
	}
	return dates, nil
}

// Timestamp truncates t to millisecond precision in UTC so values round-trip
// identically through every supported store.
func Timestamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}
