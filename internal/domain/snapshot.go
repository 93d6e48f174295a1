package domain

import (
	"fmt"
	"time"
)

// OffsetKey identifies a historical reading relative to today.
type OffsetKey string

const (
	Offset1DayAgo   OffsetKey = "1_day_ago"
	Offset1WeekAgo  OffsetKey = "1_week_ago"
	Offset1MonthAgo OffsetKey = "1_month_ago"
	Offset1YearAgo  OffsetKey = "1_year_ago"
)

// OffsetKeys lists the offsets in display order.
func OffsetKeys() []OffsetKey {
	return []OffsetKey{Offset1DayAgo, Offset1WeekAgo, Offset1MonthAgo, Offset1YearAgo}
}

// Days returns the calendar distance of the offset.
func (k OffsetKey) Days() int {
	switch k {
	case Offset1DayAgo:
		return 1
	case Offset1WeekAgo:
		return 7
	case Offset1MonthAgo:
		return 30
	case Offset1YearAgo:
		return 365
	default:
		return 0
	}
}

// Snapshot current-run bundle of "now" plus historical offsets for one instrument.
// A missing offset means the value could not be resolved.
type Snapshot struct {
	Instrument Instrument        `json:"instrument"`
	Now        int               `json:"now"`
	Offsets    map[OffsetKey]int `json:"offsets"`
}

// NewSnapshot creates a snapshot with an empty offset map.
func NewSnapshot(instrument Instrument, now int) Snapshot {
	return Snapshot{
		Instrument: instrument,
		Now:        now,
		Offsets:    make(map[OffsetKey]int, 4),
	}
}

// Offset returns the value for key and whether it was resolved.
func (s Snapshot) Offset(key OffsetKey) (int, bool) {
	v, ok := s.Offsets[key]
	return v, ok
}

// Previous returns the most recent prior reading.
func (s Snapshot) Previous() (int, bool) {
	return s.Offset(Offset1DayAgo)
}

// WithOffset returns a copy of s with key set to v.
func (s Snapshot) WithOffset(key OffsetKey, v int) Snapshot {
	offsets := make(map[OffsetKey]int, len(s.Offsets)+1)
	for k, val := range s.Offsets {
		offsets[k] = val
	}
	offsets[key] = v
	s.Offsets = offsets
	return s
}

// Validate checks that every present value lies in the index range.
func (s Snapshot) Validate() error {
	if err := ValidateValue(s.Now); err != nil {
		return fmt.Errorf("%s now: %w", s.Instrument, err)
	}
	for k, v := range s.Offsets {
		if err := ValidateValue(v); err != nil {
			return fmt.Errorf("%s %s: %w", s.Instrument, k, err)
		}
	}
	return nil
}

// DatedReadings pairs today and every resolved offset with its calendar date.
// The result is ordered oldest first.
func (s Snapshot) DatedReadings(today time.Time) []Reading {
	readings := make([]Reading, 0, 5)
	keys := OffsetKeys()
	for i := len(keys) - 1; i >= 0; i-- {
		v, ok := s.Offset(keys[i])
		if !ok {
			continue
		}
		readings = append(readings, Reading{Date: DaysAgo(today, keys[i].Days()), Value: v})
	}
	return append(readings, Reading{Date: StartOfDay(today), Value: s.Now})
}
