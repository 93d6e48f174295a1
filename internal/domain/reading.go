package domain

import (
	"fmt"
	"time"
)

const (
	// MinValue lower bound of every sentiment index.
	MinValue = 0
	// MaxValue upper bound of every sentiment index.
	MaxValue = 100
)

// Reading a single dated index value.
type Reading struct {
	Date           time.Time `json:"date"`
	Value          int       `json:"value"`
	Classification Label     `json:"classification,omitempty"`
}

// DateKey returns the ledger key of the reading.
func (r Reading) DateKey() string {
	return DateKey(r.Date)
}

// Record converts the reading into a ledger row.
func (r Reading) Record() LedgerRecord {
	return LedgerRecord{
		DateKey:        r.DateKey(),
		Value:          r.Value,
		Classification: r.Classification,
	}
}

// LedgerRecord one row of an instrument's history. DateKey is unique within a ledger.
type LedgerRecord struct {
	DateKey        string `json:"date_key"`
	Value          int    `json:"value"`
	Classification Label  `json:"classification,omitempty"`
}

// ValidateValue checks that v is inside the index range.
func ValidateValue(v int) error {
	if v < MinValue || v > MaxValue {
		return fmt.Errorf("value %d out of range [%d,%d]", v, MinValue, MaxValue)
	}
	return nil
}
