// Package history seeds the ledgers from feed readings and reads back the
// windows the renderer needs.
package history

import (
	"context"
	"fmt"
	"time"
	_ "time/tzdata"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/fgi/internal/domain"
	"github.com/vadiminshakov/fgi/internal/services/sentiment"
	"github.com/vadiminshakov/fgi/internal/storage/ledger"
	"github.com/vadiminshakov/fgi/pkg/retrier"
)

const (
	DefaultCryptoSeedDays = 7
	DefaultMarketZone     = "America/New_York"
	yearDays              = 365
)

// Config seeding and lookup behavior.
type Config struct {
	// SkipWeekendEquitySeed skips equity seeding on Saturday and Sunday of MarketLocation.
	SkipWeekendEquitySeed bool
	// MarketLocation zone of the equity trading calendar. Nil means DefaultMarketZone.
	MarketLocation *time.Location
	// CryptoSeedDays number of newest raw crypto readings written per run.
	CryptoSeedDays int
	// YearAgoFallbackDays lets the year-ago lookup walk back to earlier dates. Zero means exact match.
	YearAgoFallbackDays int
	// TrendWindow number of trend points including the live value.
	TrendWindow int
}

// Keeper owns the ledgers of all instruments for one run.
type Keeper struct {
	ledgers map[domain.Instrument]ledger.Ledger
	cfg     Config
	retrier *retrier.Retrier
	logger  *zap.Logger
}

// NewKeeper creates a keeper over ledgers.
func NewKeeper(ledgers map[domain.Instrument]ledger.Ledger, cfg Config, logger *zap.Logger) *Keeper {
	if cfg.CryptoSeedDays <= 0 {
		cfg.CryptoSeedDays = DefaultCryptoSeedDays
	}
	if cfg.TrendWindow <= 0 {
		cfg.TrendWindow = sentiment.TrendWindow
	}
	if cfg.YearAgoFallbackDays < 0 {
		cfg.YearAgoFallbackDays = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MarketLocation == nil {
		loc, err := time.LoadLocation(DefaultMarketZone)
		if err != nil {
			logger.Warn("failed to load market zone, using run zone", zap.Error(err))
		}
		cfg.MarketLocation = loc
	}

	return &Keeper{
		ledgers: ledgers,
		cfg:     cfg,
		retrier: retrier.New(
			retrier.WithInitialInterval(200*time.Millisecond),
			retrier.WithRetryIf(func(err error) bool {
				return errors.Is(err, domain.ErrLedgerUnavailable)
			}),
			retrier.WithOnRetry(func(attempt int, err error) {
				logger.Warn("retrying ledger call", zap.Int("attempt", attempt), zap.Error(err))
			}),
		),
		logger: logger,
	}
}

func (k *Keeper) ledger(instrument domain.Instrument) (ledger.Ledger, error) {
	l, ok := k.ledgers[instrument]
	if !ok || l == nil {
		return nil, errors.Wrapf(domain.ErrLedgerUnavailable, "no ledger for %s", instrument)
	}
	return l, nil
}

// SeedSnapshot writes the five dated values of an equity-style snapshot.
// It returns the number of records appended.
func (k *Keeper) SeedSnapshot(ctx context.Context, snapshot domain.Snapshot, today time.Time) (int, error) {
	logger := k.logger.With(zap.String("instrument", snapshot.Instrument.String()))
	if k.cfg.SkipWeekendEquitySeed && snapshot.Instrument == domain.InstrumentStock && k.marketClosed(today) {
		logger.Info("market closed, skipping history seeding", zap.String("date", domain.DateKey(today)))
		return 0, nil
	}

	return k.seed(ctx, snapshot.Instrument, snapshot.DatedReadings(today), today)
}

// marketClosed reports whether today is a weekend on the equity market's own calendar.
// A run early on Saturday in Asia still carries Friday's US close.
func (k *Keeper) marketClosed(today time.Time) bool {
	if k.cfg.MarketLocation != nil {
		today = today.In(k.cfg.MarketLocation)
	}
	return domain.IsWeekend(today)
}

// SeedReadings writes the newest CryptoSeedDays of readings, oldest first.
// readings must be ordered oldest first.
func (k *Keeper) SeedReadings(ctx context.Context, instrument domain.Instrument, readings []domain.Reading, today time.Time) (int, error) {
	if n := k.cfg.CryptoSeedDays; len(readings) > n {
		readings = readings[len(readings)-n:]
	}
	return k.seed(ctx, instrument, readings, today)
}

func (k *Keeper) seed(ctx context.Context, instrument domain.Instrument, readings []domain.Reading, today time.Time) (int, error) {
	l, err := k.ledger(instrument)
	if err != nil {
		return 0, err
	}
	logger := k.logger.With(zap.String("instrument", instrument.String()))

	todayKey := domain.DateKey(today)
	seeded, err := retrier.DoWithData(k.retrier, ctx, func(ctx context.Context) (bool, error) {
		return l.HasDate(ctx, todayKey)
	})
	if err != nil {
		return 0, errors.Wrapf(err, "check %s ledger for %s", instrument, todayKey)
	}
	if seeded {
		logger.Info("history already seeded today", zap.String("date", todayKey))
		return 0, nil
	}

	appended := 0
	for _, r := range readings {
		rec := r.Record()
		ok, err := retrier.DoWithData(k.retrier, ctx, func(ctx context.Context) (bool, error) {
			return l.Append(ctx, rec)
		})
		if err != nil {
			logger.Error("failed to append ledger record", zap.String("date", rec.DateKey), zap.Int("value", rec.Value), zap.Error(err))
			return appended, errors.Wrapf(err, "append %s record %s", instrument, rec.DateKey)
		}
		if ok {
			appended++
			logger.Debug("ledger record appended", zap.String("date", rec.DateKey), zap.Int("value", rec.Value))
		}
	}

	logger.Info("history seeded", zap.Int("appended", appended), zap.Int("candidates", len(readings)))
	return appended, nil
}

// YearAgo returns the ledger value of the date one year before today. With a fallback
// window configured, earlier dates are tried in turn.
func (k *Keeper) YearAgo(ctx context.Context, instrument domain.Instrument, today time.Time) (int, bool, error) {
	l, err := k.ledger(instrument)
	if err != nil {
		return 0, false, err
	}

	for back := 0; back <= k.cfg.YearAgoFallbackDays; back++ {
		key := domain.DateKey(domain.DaysAgo(today, yearDays+back))
		type hit struct {
			value int
			ok    bool
		}
		h, err := retrier.DoWithData(k.retrier, ctx, func(ctx context.Context) (hit, error) {
			v, ok, err := l.RecordAt(ctx, key)
			return hit{value: v, ok: ok}, err
		})
		if err != nil {
			return 0, false, errors.Wrapf(err, "lookup %s record %s", instrument, key)
		}
		if h.ok {
			if back > 0 {
				k.logger.Info("year-ago value resolved from earlier date",
					zap.String("instrument", instrument.String()), zap.String("date", key))
			}
			return h.value, true, nil
		}
	}

	return 0, false, nil
}

// ResolveYearAgo fills the year-ago offset of snapshot from the ledger when it is missing.
func (k *Keeper) ResolveYearAgo(ctx context.Context, snapshot domain.Snapshot, today time.Time) (domain.Snapshot, error) {
	if _, ok := snapshot.Offset(domain.Offset1YearAgo); ok {
		return snapshot, nil
	}

	v, ok, err := k.YearAgo(ctx, snapshot.Instrument, today)
	if err != nil {
		return snapshot, err
	}
	if !ok {
		k.logger.Info("no year-ago record",
			zap.String("instrument", snapshot.Instrument.String()),
			zap.String("date", domain.DateKey(domain.DaysAgo(today, yearDays))))
		return snapshot, nil
	}
	return snapshot.WithOffset(domain.Offset1YearAgo, v), nil
}

// Trend returns the trend series: the newest ledger values followed by the live now.
func (k *Keeper) Trend(ctx context.Context, instrument domain.Instrument, now int) ([]int, error) {
	l, err := k.ledger(instrument)
	if err != nil {
		return nil, err
	}

	history, err := retrier.DoWithData(k.retrier, ctx, func(ctx context.Context) ([]int, error) {
		return l.LastN(ctx, k.cfg.TrendWindow-1)
	})
	if err != nil {
		return nil, errors.Wrapf(err, "read %s trend window", instrument)
	}

	return sentiment.TrendSeries(history, now, k.cfg.TrendWindow), nil
}

// Close closes every ledger.
func (k *Keeper) Close() error {
	var errs []error
	for instrument, l := range k.ledgers {
		if l == nil {
			continue
		}
		if err := l.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", instrument, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close ledgers: %v", errs)
	}
	return nil
}
