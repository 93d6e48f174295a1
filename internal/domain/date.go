package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const dateKeyLayout = "2006/01/02"

// DateKey returns the ledger key for the calendar date of t, e.g. 2024/05/01.
func DateKey(t time.Time) string {
	return t.Format(dateKeyLayout)
}

// ParseDateKey parses a ledger key. Both the zero-padded form (2024/05/01) and the
// legacy unpadded form (2024/5/1) are accepted.
func ParseDateKey(key string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}

	parts := strings.Split(strings.TrimSpace(key), "/")
	if len(parts) != 3 {
		return time.Time{}, fmt.Errorf("invalid date key %q", key)
	}

	var nums [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid date key %q: %w", key, err)
		}
		nums[i] = n
	}

	year, month, day := nums[0], nums[1], nums[2]
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, fmt.Errorf("invalid date key %q", key)
	}

	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, loc)
	if t.Day() != day {
		return time.Time{}, fmt.Errorf("invalid date key %q", key)
	}

	return t, nil
}

// NormalizeDateKey rewrites a key in the canonical zero-padded form.
func NormalizeDateKey(key string) (string, error) {
	t, err := ParseDateKey(key, time.UTC)
	if err != nil {
		return "", err
	}
	return DateKey(t), nil
}

// StartOfDay truncates t to midnight in its own location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// DaysAgo returns the calendar date n days before t.
func DaysAgo(t time.Time, n int) time.Time {
	return StartOfDay(t).AddDate(0, 0, -n)
}

// IsWeekend reports whether t falls on Saturday or Sunday.
func IsWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// Locale selects the language of dates shown on the image and in posts.
type Locale string

const (
	LocaleJA Locale = "ja"
	LocaleEN Locale = "en"
)

// IsValid checks if the Locale value is valid.
func (l Locale) IsValid() bool {
	return l == LocaleJA || l == LocaleEN
}

var (
	weekdaysJA = [7]string{"日", "月", "火", "水", "木", "金", "土"}
	weekdaysEN = [7]string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}
)

// DisplayDate formats t as a calendar date plus weekday name, e.g. 2024/05/01（水）.
func DisplayDate(t time.Time, locale Locale) string {
	if locale == LocaleEN {
		return fmt.Sprintf("%s (%s)", t.Format(dateKeyLayout), weekdaysEN[t.Weekday()])
	}
	return fmt.Sprintf("%s（%s）", t.Format(dateKeyLayout), weekdaysJA[t.Weekday()])
}
