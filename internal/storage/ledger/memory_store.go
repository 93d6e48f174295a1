package ledger

import (
	"context"
	"sync"

	"github.com/vadiminshakov/fgi/internal/domain"
)

// MemoryStore in-process ledger. Optionally layered over a read-only base ledger,
// in which case writes stay in memory and reads see both.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]domain.LedgerRecord
	base    Ledger
}

// NewMemoryStore creates an empty in-memory ledger holding records.
func NewMemoryStore(records ...domain.LedgerRecord) *MemoryStore {
	s := &MemoryStore{records: make(map[string]domain.LedgerRecord, len(records))}
	for _, r := range dedupe(records) {
		s.records[r.DateKey] = r
	}
	return s
}

// NewOverlay returns a ledger reading from base and keeping new writes in memory.
func NewOverlay(base Ledger) *MemoryStore {
	s := NewMemoryStore()
	s.base = base
	return s
}

func (s *MemoryStore) HasDate(ctx context.Context, key string) (bool, error) {
	_, ok, err := s.RecordAt(ctx, key)
	return ok, err
}

func (s *MemoryStore) Append(ctx context.Context, rec domain.LedgerRecord) (bool, error) {
	rec, err := validateRecord(rec)
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[rec.DateKey]; ok {
		return false, nil
	}
	if s.base != nil {
		ok, err := s.base.HasDate(ctx, rec.DateKey)
		if err != nil {
			return false, err
		}
		if ok {
			return false, nil
		}
	}

	s.records[rec.DateKey] = rec
	return true, nil
}

func (s *MemoryStore) RecordAt(ctx context.Context, key string) (int, bool, error) {
	key, err := canonicalKey(key)
	if err != nil {
		return 0, false, err
	}

	s.mu.RLock()
	rec, ok := s.records[key]
	s.mu.RUnlock()
	if ok {
		return rec.Value, true, nil
	}
	if s.base != nil {
		return s.base.RecordAt(ctx, key)
	}
	return 0, false, nil
}

func (s *MemoryStore) LastN(ctx context.Context, n int) ([]int, error) {
	records, err := s.Records(ctx)
	if err != nil {
		return nil, err
	}
	return lastValues(records, n), nil
}

func (s *MemoryStore) Records(ctx context.Context) ([]domain.LedgerRecord, error) {
	var all []domain.LedgerRecord
	if s.base != nil {
		base, err := s.base.Records(ctx)
		if err != nil {
			return nil, err
		}
		all = append(all, base...)
	}

	s.mu.RLock()
	for _, r := range s.records {
		all = append(all, r)
	}
	s.mu.RUnlock()

	return dedupe(all), nil
}

// Close closes the base ledger, if any.
func (s *MemoryStore) Close() error {
	if s.base != nil {
		return s.base.Close()
	}
	return nil
}
