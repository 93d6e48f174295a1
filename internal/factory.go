package internal

import (
	"context"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/fgi/config"
	"github.com/vadiminshakov/fgi/internal/domain"
	"github.com/vadiminshakov/fgi/internal/metrics"
	"github.com/vadiminshakov/fgi/internal/services/feed"
	"github.com/vadiminshakov/fgi/internal/services/history"
	"github.com/vadiminshakov/fgi/internal/services/posttext"
	"github.com/vadiminshakov/fgi/internal/services/publish"
	"github.com/vadiminshakov/fgi/internal/storage/artifacts"
	"github.com/vadiminshakov/fgi/internal/storage/ledger"
)

// NewPipeline wires every component from conf. With dryRun set, ledger writes stay in
// memory and nothing is published.
func NewPipeline(ctx context.Context, conf config.Config, logger *zap.Logger, dryRun bool) (*Pipeline, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	ledgers, err := openLedgers(ctx, conf.Ledger, dryRun)
	if err != nil {
		return nil, domain.NewStageError(domain.StageLedger, err)
	}

	store, err := artifacts.NewStore(conf.OutputDir)
	if err != nil {
		closeLedgers(ledgers)
		return nil, domain.NewStageError(domain.StageOutput, err)
	}

	client := &http.Client{Timeout: conf.FeedTimeout}
	feedOpts := func(instrument domain.Instrument) []feed.Option {
		return []feed.Option{
			feed.WithHTTPClient(client),
			feed.WithLocation(conf.Location),
			feed.WithLogger(logger.With(zap.String("component", "feed"), zap.String("instrument", instrument.String()))),
		}
	}

	p := &Pipeline{
		assets:   conf.Assets,
		locale:   conf.Locale,
		location: conf.Location,
		text: posttext.Options{
			Title:    conf.Title,
			Hashtags: conf.Hashtags,
		},
		altText:      conf.Publish.AltText,
		failPolicy:   conf.Publish.FailPolicy,
		stock:        feed.NewEquity(conf.Equity.URL, conf.Equity.Host, conf.Equity.APIKey, feedOpts(domain.InstrumentStock)...),
		crypto:       feed.NewCrypto(conf.Crypto.URL, conf.Crypto.Limit, feedOpts(domain.InstrumentCrypto)...),
		keeper:       history.NewKeeper(ledgers, conf.History, logger.With(zap.String("component", "history"))),
		store:        store,
		orchestrator: publish.NewOrchestrator(conf.Publish.Timeout, logger.With(zap.String("component", "publish"))),
		channels:     newChannels(conf.Publish, &http.Client{Timeout: conf.Publish.Timeout}),
		metrics:      metrics.NewRegistry(),
		textfile:     conf.MetricsTextfile,
		dryRun:       dryRun,
		clock:        time.Now,
		logger:       logger,
	}

	if conf.Price.Enabled() {
		pricer, err := createPricer(conf.Price)
		if err != nil {
			closeLedgers(ledgers)
			return nil, errors.Wrap(err, "failed to create pricer")
		}
		p.pricer = pricer
		p.pricePair = conf.Price.Pair
	}

	return p, nil
}

func createPricer(conf config.PriceConfig) (priceService, error) {
	client, err := newExchangeClient(conf)
	if err != nil {
		return nil, err
	}
	provider, err := newServiceProvider(client)
	if err != nil {
		return nil, err
	}
	return provider.Pricer()
}

// openLedgers opens one ledger per instrument. Dry runs wrap each in an overlay so
// writes are never persisted.
func openLedgers(ctx context.Context, conf ledger.Config, dryRun bool) (map[domain.Instrument]ledger.Ledger, error) {
	ledgers := make(map[domain.Instrument]ledger.Ledger, 2)
	for _, instrument := range domain.Instruments() {
		l, err := ledger.Open(ctx, conf, instrument)
		if err != nil {
			closeLedgers(ledgers)
			return nil, errors.Wrapf(err, "open %s ledger", instrument)
		}
		if dryRun {
			l = ledger.NewOverlay(l)
		}
		ledgers[instrument] = l
	}
	return ledgers, nil
}

func closeLedgers(ledgers map[domain.Instrument]ledger.Ledger) {
	for _, l := range ledgers {
		_ = l.Close()
	}
}
