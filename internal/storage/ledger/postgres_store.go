package ledger

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/vadiminshakov/fgi/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS fgi_ledger (
	instrument     TEXT     NOT NULL,
	day            DATE     NOT NULL,
	date_key       TEXT     NOT NULL,
	value          SMALLINT NOT NULL CHECK (value BETWEEN 0 AND 100),
	classification TEXT,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (instrument, day)
)`

// PostgresStore ledger kept in the fgi_ledger table. The primary key makes appends idempotent.
type PostgresStore struct {
	pool       *pgxpool.Pool
	instrument domain.Instrument
}

// NewPostgresStore connects and ensures the schema exists.
func NewPostgresStore(ctx context.Context, databaseURL string, instrument domain.Instrument) (*PostgresStore, error) {
	if databaseURL == "" {
		return nil, errors.New("database url is required")
	}

	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse database url")
	}
	poolConfig.MaxConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, unavailable(err, "connect to database")
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, unavailable(err, "create ledger table")
	}

	return &PostgresStore{pool: pool, instrument: instrument}, nil
}

func (s *PostgresStore) HasDate(ctx context.Context, key string) (bool, error) {
	_, ok, err := s.RecordAt(ctx, key)
	return ok, err
}

func (s *PostgresStore) Append(ctx context.Context, rec domain.LedgerRecord) (bool, error) {
	rec, err := validateRecord(rec)
	if err != nil {
		return false, err
	}
	day, err := domain.ParseDateKey(rec.DateKey, nil)
	if err != nil {
		return false, err
	}

	var classification *string
	if rec.Classification != "" {
		c := rec.Classification.String()
		classification = &c
	}

	tag, err := s.pool.Exec(ctx, `
		INSERT INTO fgi_ledger (instrument, day, date_key, value, classification)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (instrument, day) DO NOTHING`,
		s.instrument.String(), day, rec.DateKey, rec.Value, classification)
	if err != nil {
		return false, unavailable(err, "insert ledger record %s", rec.DateKey)
	}

	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) RecordAt(ctx context.Context, key string) (int, bool, error) {
	key, err := canonicalKey(key)
	if err != nil {
		return 0, false, err
	}
	day, err := domain.ParseDateKey(key, nil)
	if err != nil {
		return 0, false, err
	}

	var value int
	err = s.pool.QueryRow(ctx,
		"SELECT value FROM fgi_ledger WHERE instrument = $1 AND day = $2",
		s.instrument.String(), day).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, unavailable(err, "query ledger record %s", key)
	}
	return value, true, nil
}

func (s *PostgresStore) LastN(ctx context.Context, n int) ([]int, error) {
	if n <= 0 {
		return []int{}, nil
	}

	rows, err := s.pool.Query(ctx, `
		SELECT value FROM (
			SELECT day, value FROM fgi_ledger WHERE instrument = $1 ORDER BY day DESC LIMIT $2
		) recent ORDER BY day ASC`,
		s.instrument.String(), n)
	if err != nil {
		return nil, unavailable(err, "query ledger window")
	}

	values, err := pgx.CollectRows(rows, pgx.RowTo[int])
	if err != nil {
		return nil, unavailable(err, "scan ledger window")
	}
	return values, nil
}

func (s *PostgresStore) Records(ctx context.Context) ([]domain.LedgerRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT date_key, value, COALESCE(classification, '')
		FROM fgi_ledger WHERE instrument = $1 ORDER BY day ASC`,
		s.instrument.String())
	if err != nil {
		return nil, unavailable(err, "query ledger records")
	}

	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.LedgerRecord, error) {
		var rec domain.LedgerRecord
		var classification string
		err := row.Scan(&rec.DateKey, &rec.Value, &classification)
		rec.Classification = domain.Label(classification)
		return rec, err
	})
	if err != nil {
		return nil, unavailable(err, "scan ledger records")
	}
	return records, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
