package internal

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/fgi/internal/domain"
	"github.com/vadiminshakov/fgi/internal/metrics"
	"github.com/vadiminshakov/fgi/internal/services/feed"
	"github.com/vadiminshakov/fgi/internal/services/history"
	"github.com/vadiminshakov/fgi/internal/services/posttext"
	"github.com/vadiminshakov/fgi/internal/services/publish"
	"github.com/vadiminshakov/fgi/internal/services/render"
	"github.com/vadiminshakov/fgi/internal/services/sentiment"
	"github.com/vadiminshakov/fgi/internal/storage/artifacts"
)

// movingAveragePeriod length of the moving average recorded in the run report.
const movingAveragePeriod = 7

// Outcome everything a run produced.
type Outcome struct {
	Report  domain.RunReport
	Results []domain.PublishResult
	// PublishFailed result of the fail policy applied to Results.
	PublishFailed bool
}

// Pipeline performs one aggregation, render and publish pass.
type Pipeline struct {
	assets       render.AssetPaths
	locale       domain.Locale
	location     *time.Location
	text         posttext.Options
	altText      string
	failPolicy   publish.FailPolicy
	stock        feed.Feed
	crypto       feed.Feed
	keeper       *history.Keeper
	store        *artifacts.Store
	orchestrator *publish.Orchestrator
	channels     []publish.Channel
	pricer       priceService
	pricePair    domain.Pair
	metrics      *metrics.Registry
	textfile     string
	dryRun       bool
	clock        func() time.Time
	logger       *zap.Logger
}

// Close releases the ledgers.
func (p *Pipeline) Close() error {
	return p.keeper.Close()
}

// Channels names of the configured channels in publish order.
func (p *Pipeline) Channels() []string {
	names := make([]string, 0, len(p.channels))
	for _, ch := range p.channels {
		names = append(names, ch.Name())
	}
	return names
}

// Run executes the pipeline. Any error is a *domain.StageError and means nothing was
// published. Per-channel failures are reported in the outcome instead.
func (p *Pipeline) Run(ctx context.Context) (*Outcome, error) {
	started := p.clock()
	runID := uuid.NewString()
	logger := p.logger.With(zap.String("run_id", runID))

	outcome, err := p.run(ctx, runID, started, logger)

	success := err == nil && !outcome.PublishFailed
	p.metrics.ObserveRun(started, p.clock(), success)
	if mErr := p.metrics.WriteTextfile(p.textfile); mErr != nil {
		logger.Warn("failed to write metrics textfile", zap.Error(mErr))
	}

	if err != nil {
		logger.Error("run failed", zap.Error(err))
		return nil, err
	}

	logger.Info("run finished",
		zap.Bool("dry_run", p.dryRun),
		zap.Bool("publish_failed", outcome.PublishFailed),
		zap.Duration("elapsed", p.clock().Sub(started)))
	return outcome, nil
}

func (p *Pipeline) run(ctx context.Context, runID string, started time.Time, logger *zap.Logger) (*Outcome, error) {
	today := domain.StartOfDay(started.In(p.location))
	logger.Info("run started", zap.String("date", domain.DateKey(today)), zap.Bool("dry_run", p.dryRun))

	assets, err := render.LoadAssets(p.assets)
	if err != nil {
		return nil, domain.NewStageError(domain.StageAssets, err)
	}
	renderer, err := render.New(assets, render.DefaultLayout(), p.locale)
	if err != nil {
		return nil, domain.NewStageError(domain.StageAssets, err)
	}

	stock, err := p.stock.Load(ctx)
	if err != nil {
		return nil, domain.NewStageError(domain.StageFeed, errors.Wrap(err, "equity feed"))
	}
	crypto, err := p.crypto.Load(ctx)
	if err != nil {
		return nil, domain.NewStageError(domain.StageFeed, errors.Wrap(err, "crypto feed"))
	}
	logger.Info("indices fetched",
		zap.Int("stock", stock.Snapshot.Now),
		zap.Int("crypto", crypto.Snapshot.Now),
		zap.Int("crypto_readings", len(crypto.Readings)))

	report := domain.RunReport{
		RunID:         runID,
		StartedAt:     started,
		Date:          domain.DateKey(today),
		Snapshots:     make(map[domain.Instrument]domain.Snapshot, 2),
		Trends:        make(map[domain.Instrument][]int, 2),
		MovingAverage: make(map[domain.Instrument]float64, 2),
		Appended:      make(map[domain.Instrument]int, 2),
		DryRun:        p.dryRun,
	}

	appended, err := p.keeper.SeedSnapshot(ctx, stock.Snapshot, today)
	if err != nil {
		return nil, domain.NewStageError(domain.StageLedger, err)
	}
	report.Appended[domain.InstrumentStock] = appended

	appended, err = p.keeper.SeedReadings(ctx, domain.InstrumentCrypto, crypto.Readings, today)
	if err != nil {
		return nil, domain.NewStageError(domain.StageLedger, err)
	}
	report.Appended[domain.InstrumentCrypto] = appended

	cryptoSnapshot, err := p.keeper.ResolveYearAgo(ctx, crypto.Snapshot, today)
	if err != nil {
		return nil, domain.NewStageError(domain.StageLedger, err)
	}

	snapshots := map[domain.Instrument]domain.Snapshot{
		domain.InstrumentStock:  stock.Snapshot,
		domain.InstrumentCrypto: cryptoSnapshot,
	}
	for _, instrument := range domain.Instruments() {
		s := snapshots[instrument]
		series, err := p.keeper.Trend(ctx, instrument, s.Now)
		if err != nil {
			return nil, domain.NewStageError(domain.StageLedger, err)
		}

		report.Snapshots[instrument] = s
		report.Trends[instrument] = series
		if avg, ok := sentiment.LatestMovingAverage(series, movingAveragePeriod); ok {
			report.MovingAverage[instrument] = avg
		}
		p.metrics.ObserveSnapshot(s)
		p.metrics.ObserveAppends(instrument, report.Appended[instrument])
	}

	png, err := renderer.Render(render.Frame{
		Stock:       report.Snapshots[domain.InstrumentStock],
		Crypto:      report.Snapshots[domain.InstrumentCrypto],
		StockTrend:  report.Trends[domain.InstrumentStock],
		CryptoTrend: report.Trends[domain.InstrumentCrypto],
		Today:       today,
	})
	if err != nil {
		return nil, domain.NewStageError(domain.StageRender, err)
	}

	opts := p.text
	opts.Locale = p.locale
	opts.Price = p.spotPrice(ctx, logger)
	report.Text = posttext.Compose(report.Snapshots[domain.InstrumentStock], report.Snapshots[domain.InstrumentCrypto], today, opts)

	if report.ImagePath, err = p.store.SaveImage(png); err != nil {
		return nil, domain.NewStageError(domain.StageOutput, err)
	}
	if report.TextPath, err = p.store.SaveText(report.Text); err != nil {
		return nil, domain.NewStageError(domain.StageOutput, err)
	}
	logger.Info("artifacts saved", zap.String("image", report.ImagePath), zap.String("text", report.TextPath))

	outcome := &Outcome{}
	if p.dryRun {
		logger.Info("dry run, publishing skipped", zap.Strings("channels", p.Channels()))
	} else {
		artifact := publish.Artifact{
			Data:     png,
			Filename: artifacts.ImageFile,
			MimeType: "image/png",
			AltText:  p.altText,
		}
		outcome.Results = p.orchestrator.Publish(ctx, artifact, report.Text, p.channels)
		outcome.PublishFailed = p.failPolicy.Failed(outcome.Results)
		p.metrics.ObservePublish(outcome.Results)
		report.Publish = domain.NewPublishReports(outcome.Results)
	}

	report.FinishedAt = p.clock()
	if _, err := p.store.SaveReport(report); err != nil {
		logger.Warn("failed to save run report", zap.Error(err))
	}

	outcome.Report = report
	return outcome, nil
}

// spotPrice fetches the optional price line. Failures only drop the line.
func (p *Pipeline) spotPrice(ctx context.Context, logger *zap.Logger) *posttext.Price {
	if p.pricer == nil {
		return nil
	}

	price, err := p.pricer.GetPrice(ctx, p.pricePair)
	if err != nil {
		logger.Warn("failed to get spot price, price line omitted", zap.String("pair", p.pricePair.String()), zap.Error(err))
		return nil
	}

	return &posttext.Price{Pair: p.pricePair, Value: price}
}
