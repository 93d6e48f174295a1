// Package ledger keeps the durable per-instrument daily history of index values.
package ledger

import (
	"context"
	"fmt"
	"sort"

	"github.com/pkg/errors"

	"github.com/vadiminshakov/fgi/internal/domain"
)

// Ledger append-only history of one instrument. Every date key appears at most once.
type Ledger interface {
	// HasDate reports whether a record exists for key.
	HasDate(ctx context.Context, key string) (bool, error)
	// Append stores rec unless its date is already present. The result tells whether a write happened.
	Append(ctx context.Context, rec domain.LedgerRecord) (bool, error)
	// RecordAt returns the value stored for key.
	RecordAt(ctx context.Context, key string) (int, bool, error)
	// LastN returns at most n values ordered by date, oldest first.
	LastN(ctx context.Context, n int) ([]int, error)
	// Records returns every record ordered by date, oldest first.
	Records(ctx context.Context) ([]domain.LedgerRecord, error)
	Close() error
}

// Backend storage engine of the ledger.
type Backend string

const (
	BackendWAL      Backend = "wal"
	BackendSheets   Backend = "sheets"
	BackendPostgres Backend = "postgres"
	BackendMemory   Backend = "memory"
)

// IsValid checks if the Backend value is valid.
func (b Backend) IsValid() bool {
	switch b {
	case BackendWAL, BackendSheets, BackendPostgres, BackendMemory:
		return true
	default:
		return false
	}
}

// DefaultSheetNames worksheet titles used by the original spreadsheet.
var DefaultSheetNames = map[domain.Instrument]string{
	domain.InstrumentStock:  "StockFear&Greed",
	domain.InstrumentCrypto: "CryptoGreedFear",
}

// Config selects and parameterizes a backend.
type Config struct {
	Backend         Backend
	Dir             string
	SpreadsheetID   string
	CredentialsFile string
	SheetNames      map[domain.Instrument]string
	DatabaseURL     string
	SheetsEndpoint  string
}

// Open creates the ledger of instrument on the configured backend.
func Open(ctx context.Context, cfg Config, instrument domain.Instrument) (Ledger, error) {
	if !instrument.IsValid() {
		return nil, fmt.Errorf("unknown instrument %q", instrument)
	}

	switch cfg.Backend {
	case BackendWAL, "":
		return NewWALStore(cfg.Dir, instrument)
	case BackendSheets:
		name := cfg.SheetNames[instrument]
		if name == "" {
			name = DefaultSheetNames[instrument]
		}
		return NewSheetsStore(ctx, SheetsConfig{
			SpreadsheetID:   cfg.SpreadsheetID,
			Sheet:           name,
			CredentialsFile: cfg.CredentialsFile,
			Endpoint:        cfg.SheetsEndpoint,
		})
	case BackendPostgres:
		return NewPostgresStore(ctx, cfg.DatabaseURL, instrument)
	case BackendMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown ledger backend %q", cfg.Backend)
	}
}

func unavailable(err error, format string, args ...any) error {
	return errors.Wrapf(domain.ErrLedgerUnavailable, "%s: %v", fmt.Sprintf(format, args...), err)
}

// validateRecord returns rec with a canonical date key.
func validateRecord(rec domain.LedgerRecord) (domain.LedgerRecord, error) {
	key, err := domain.NormalizeDateKey(rec.DateKey)
	if err != nil {
		return domain.LedgerRecord{}, err
	}
	if err := domain.ValidateValue(rec.Value); err != nil {
		return domain.LedgerRecord{}, errors.Wrapf(err, "record %s", key)
	}
	rec.DateKey = key
	return rec, nil
}

// sortRecords orders canonical records by date. Zero-padded keys sort lexically.
func sortRecords(records []domain.LedgerRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].DateKey < records[j].DateKey
	})
}

// lastValues returns the values of the newest n records of date-ordered records.
func lastValues(records []domain.LedgerRecord, n int) []int {
	if n <= 0 {
		return []int{}
	}
	if len(records) > n {
		records = records[len(records)-n:]
	}
	values := make([]int, 0, len(records))
	for _, r := range records {
		values = append(values, r.Value)
	}
	return values
}

// dedupe canonicalizes keys and keeps the first record of each date, dropping malformed rows.
func dedupe(records []domain.LedgerRecord) []domain.LedgerRecord {
	seen := make(map[string]struct{}, len(records))
	out := make([]domain.LedgerRecord, 0, len(records))
	for _, r := range records {
		rec, err := validateRecord(r)
		if err != nil {
			continue
		}
		if _, ok := seen[rec.DateKey]; ok {
			continue
		}
		seen[rec.DateKey] = struct{}{}
		out = append(out, rec)
	}
	sortRecords(out)
	return out
}

func canonicalKey(key string) (string, error) {
	k, err := domain.NormalizeDateKey(key)
	if err != nil {
		return "", errors.Wrap(err, "ledger key")
	}
	return k, nil
}
