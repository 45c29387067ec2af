// Package timeparse resolves a calendar date plus an ambiguous
// time-of-day string into an absolute instant. Exactly two grammars
// are accepted: 24-hour "HH:MM" (zero-padded) and 12-hour "H:MM AM|PM"
// (case-insensitive, surrounding whitespace ignored). Anything else is
// rejected rather than guessed.
package timeparse

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"worklogd/internal/model"
)

var (
	ErrInvalidTimeFormat = errors.New("timeparse: invalid time format")
	ErrInvalidDate       = errors.New("timeparse: invalid date")
)

// Resolve returns the wall-clock instant for date + raw in loc.
func Resolve(date, raw string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	day, err := time.ParseInLocation(model.DateLayout, date, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}

	hour, minute, err := parseClock(raw)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, loc), nil
}

func parseClock(raw string) (hour, minute int, err error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, 0, fmt.Errorf("%w: empty", ErrInvalidTimeFormat)
	}

	upper := strings.ToUpper(trimmed)
	switch {
	case strings.HasSuffix(upper, "AM"):
		return parseTwelveHour(raw, strings.TrimSuffix(upper, "AM"), false)
	case strings.HasSuffix(upper, "PM"):
		return parseTwelveHour(raw, strings.TrimSuffix(upper, "PM"), true)
	default:
		return parseTwentyFourHour(raw, trimmed)
	}
}

// parseTwentyFourHour accepts exactly "HH:MM". A single-digit hour
// like "2:30" is ambiguous without a meridiem and is rejected.
func parseTwentyFourHour(raw, val string) (int, int, error) {
	hh, mm, ok := splitClock(val)
	if !ok || len(hh) != 2 || len(mm) != 2 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidTimeFormat, raw)
	}
	hour, ok := parseDigits(hh)
	if !ok || hour > 23 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidTimeFormat, raw)
	}
	minute, ok := parseDigits(mm)
	if !ok || minute > 59 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidTimeFormat, raw)
	}
	return hour, minute, nil
}

func parseTwelveHour(raw, val string, pm bool) (int, int, error) {
	hh, mm, ok := splitClock(strings.TrimSpace(val))
	if !ok || len(hh) < 1 || len(hh) > 2 || len(mm) != 2 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidTimeFormat, raw)
	}
	hour, ok := parseDigits(hh)
	if !ok || hour < 1 || hour > 12 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidTimeFormat, raw)
	}
	minute, ok := parseDigits(mm)
	if !ok || minute > 59 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidTimeFormat, raw)
	}
	// 12 AM is midnight, 12 PM is noon.
	if hour == 12 {
		hour = 0
	}
	if pm {
		hour += 12
	}
	return hour, minute, nil
}

func splitClock(val string) (hh, mm string, ok bool) {
	idx := strings.IndexByte(val, ':')
	if idx < 0 {
		return "", "", false
	}
	return val[:idx], val[idx+1:], true
}

func parseDigits(val string) (int, bool) {
	if val == "" {
		return 0, false
	}
	n := 0
	for _, r := range val {
		if r < '0' || r > '9' {
			return 0, false
		}
		n = n*10 + int(r-'0')
	}
	return n, true
}
