package ledger

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/gowal"

	"github.com/vadiminshakov/fgi/internal/domain"
)

const (
	DefaultDir   = "./wal/ledger"
	segmentLimit = 1000
	// history must never be pruned
	maxSegments = 1 << 20

	recordKeyPrefix = "ledger_"
)

// WALStore persists ledger records in a WAL, one log per instrument.
// The date index is rebuilt from the log on open.
type WALStore struct {
	wal        *gowal.Wal
	instrument domain.Instrument
	index      map[string]domain.LedgerRecord
	mu         sync.RWMutex
}

// NewWALStore opens (or creates) the ledger of instrument under dir.
func NewWALStore(dir string, instrument domain.Instrument) (*WALStore, error) {
	if dir == "" {
		dir = DefaultDir
	}
	dir = filepath.Join(dir, instrument.String())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, unavailable(err, "create ledger dir %s", dir)
	}

	cfg := gowal.Config{
		Dir:              dir,
		Prefix:           "ledger_",
		SegmentThreshold: segmentLimit,
		MaxSegments:      maxSegments,
		IsInSyncDiskMode: true,
	}

	wal, err := gowal.NewWAL(cfg)
	if err != nil {
		return nil, unavailable(err, "init %s ledger WAL", instrument)
	}

	s := &WALStore{
		wal:        wal,
		instrument: instrument,
		index:      make(map[string]domain.LedgerRecord),
	}
	if err := s.replay(); err != nil {
		_ = wal.Close()
		return nil, err
	}

	return s, nil
}

func (s *WALStore) replay() error {
	for msg := range s.wal.Iterator() {
		if !strings.HasPrefix(msg.Key, s.keyPrefix()) {
			continue
		}
		var rec domain.LedgerRecord
		if err := json.Unmarshal(msg.Value, &rec); err != nil {
			return unavailable(err, "decode ledger record %s", msg.Key)
		}
		rec, err := validateRecord(rec)
		if err != nil {
			continue
		}
		if _, ok := s.index[rec.DateKey]; !ok {
			s.index[rec.DateKey] = rec
		}
	}
	return nil
}

func (s *WALStore) keyPrefix() string {
	return recordKeyPrefix + s.instrument.String() + "_"
}

func (s *WALStore) HasDate(ctx context.Context, key string) (bool, error) {
	_, ok, err := s.RecordAt(ctx, key)
	return ok, err
}

// Append writes rec to the WAL unless its date is already present.
func (s *WALStore) Append(_ context.Context, rec domain.LedgerRecord) (bool, error) {
	if s == nil || s.wal == nil {
		return false, errors.Wrap(domain.ErrLedgerUnavailable, "ledger store is not initialized")
	}

	rec, err := validateRecord(rec)
	if err != nil {
		return false, err
	}

	payload, err := json.Marshal(rec)
	if err != nil {
		return false, errors.Wrap(err, "marshal ledger record")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.index[rec.DateKey]; ok {
		return false, nil
	}

	nextIndex := s.wal.CurrentIndex() + 1
	if err := s.wal.Write(nextIndex, s.keyPrefix()+rec.DateKey, payload); err != nil {
		return false, unavailable(err, "write ledger record %s", rec.DateKey)
	}
	s.index[rec.DateKey] = rec

	return true, nil
}

func (s *WALStore) RecordAt(_ context.Context, key string) (int, bool, error) {
	if s == nil || s.wal == nil {
		return 0, false, errors.Wrap(domain.ErrLedgerUnavailable, "ledger store is not initialized")
	}

	key, err := canonicalKey(key)
	if err != nil {
		return 0, false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.index[key]
	return rec.Value, ok, nil
}

func (s *WALStore) LastN(ctx context.Context, n int) ([]int, error) {
	records, err := s.Records(ctx)
	if err != nil {
		return nil, err
	}
	return lastValues(records, n), nil
}

func (s *WALStore) Records(_ context.Context) ([]domain.LedgerRecord, error) {
	if s == nil || s.wal == nil {
		return nil, errors.Wrap(domain.ErrLedgerUnavailable, "ledger store is not initialized")
	}

	s.mu.RLock()
	records := make([]domain.LedgerRecord, 0, len(s.index))
	for _, r := range s.index {
		records = append(records, r)
	}
	s.mu.RUnlock()

	sortRecords(records)
	return records, nil
}

// Close closes the underlying WAL.
func (s *WALStore) Close() error {
	if s == nil || s.wal == nil {
		return errors.New("ledger store is not initialized")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.wal.Close()
}
