package ledger

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/vadiminshakov/fgi/internal/domain"
)

// SheetsConfig locates one worksheet of a Google spreadsheet.
type SheetsConfig struct {
	SpreadsheetID   string
	Sheet           string
	CredentialsFile string
	// Endpoint overrides the API base URL, credentials are then not required.
	Endpoint string
}

// SheetsStore ledger kept in a worksheet: a header row followed by
// rows of [date_key, value, classification].
type SheetsStore struct {
	svc           *sheets.Service
	spreadsheetID string
	sheet         string
	mu            sync.Mutex
}

// NewSheetsStore connects to the Sheets API.
func NewSheetsStore(ctx context.Context, cfg SheetsConfig) (*SheetsStore, error) {
	if cfg.SpreadsheetID == "" {
		return nil, errors.New("spreadsheet id is required")
	}
	if cfg.Sheet == "" {
		return nil, errors.New("worksheet name is required")
	}

	var opts []option.ClientOption
	switch {
	case cfg.Endpoint != "":
		opts = append(opts, option.WithEndpoint(cfg.Endpoint), option.WithoutAuthentication())
	case cfg.CredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile), option.WithScopes(sheets.SpreadsheetsScope))
	default:
		return nil, errors.New("service account credentials file is required")
	}

	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, unavailable(err, "create sheets client")
	}

	return &SheetsStore{
		svc:           svc,
		spreadsheetID: cfg.SpreadsheetID,
		sheet:         cfg.Sheet,
	}, nil
}

func (s *SheetsStore) dataRange() string {
	return fmt.Sprintf("'%s'!A:C", strings.ReplaceAll(s.sheet, "'", "''"))
}

// fetch reads every data row, skipping the header.
func (s *SheetsStore) fetch(ctx context.Context) ([]domain.LedgerRecord, error) {
	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, s.dataRange()).Context(ctx).Do()
	if err != nil {
		return nil, unavailable(err, "read worksheet %s", s.sheet)
	}

	records := make([]domain.LedgerRecord, 0, len(resp.Values))
	for i, row := range resp.Values {
		if i == 0 || len(row) < 2 {
			continue
		}
		rec, ok := parseRow(row)
		if !ok {
			continue
		}
		records = append(records, rec)
	}

	return dedupe(records), nil
}

func parseRow(row []interface{}) (domain.LedgerRecord, bool) {
	key := strings.TrimSpace(fmt.Sprint(row[0]))
	v, err := strconv.ParseFloat(strings.TrimSpace(fmt.Sprint(row[1])), 64)
	if err != nil {
		return domain.LedgerRecord{}, false
	}
	rec := domain.LedgerRecord{DateKey: key, Value: int(v)}
	if len(row) > 2 {
		rec.Classification = domain.Label(strings.TrimSpace(fmt.Sprint(row[2])))
	}
	return rec, true
}

func (s *SheetsStore) HasDate(ctx context.Context, key string) (bool, error) {
	_, ok, err := s.RecordAt(ctx, key)
	return ok, err
}

// Append re-reads the worksheet immediately before writing, the API offers no conditional append.
func (s *SheetsStore) Append(ctx context.Context, rec domain.LedgerRecord) (bool, error) {
	rec, err := validateRecord(rec)
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.fetch(ctx)
	if err != nil {
		return false, err
	}
	for _, r := range records {
		if r.DateKey == rec.DateKey {
			return false, nil
		}
	}

	row := []interface{}{rec.DateKey, rec.Value}
	if rec.Classification != "" {
		row = append(row, rec.Classification.String())
	}

	_, err = s.svc.Spreadsheets.Values.Append(s.spreadsheetID, s.dataRange(), &sheets.ValueRange{
		Values: [][]interface{}{row},
	}).ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return false, unavailable(err, "append row %s to %s", rec.DateKey, s.sheet)
	}

	return true, nil
}

func (s *SheetsStore) RecordAt(ctx context.Context, key string) (int, bool, error) {
	key, err := canonicalKey(key)
	if err != nil {
		return 0, false, err
	}

	records, err := s.fetch(ctx)
	if err != nil {
		return 0, false, err
	}
	for _, r := range records {
		if r.DateKey == key {
			return r.Value, true, nil
		}
	}
	return 0, false, nil
}

func (s *SheetsStore) LastN(ctx context.Context, n int) ([]int, error) {
	records, err := s.fetch(ctx)
	if err != nil {
		return nil, err
	}
	return lastValues(records, n), nil
}

func (s *SheetsStore) Records(ctx context.Context) ([]domain.LedgerRecord, error) {
	return s.fetch(ctx)
}

func (s *SheetsStore) Close() error {
	return nil
}
