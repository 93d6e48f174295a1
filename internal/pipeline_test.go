package internal

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	binance "github.com/adshao/go-binance/v2"
	bybit "github.com/hirokisan/bybit/v2"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/vadiminshakov/fgi/config"
	"github.com/vadiminshakov/fgi/internal/domain"
	"github.com/vadiminshakov/fgi/internal/metrics"
	"github.com/vadiminshakov/fgi/internal/services/feed"
	"github.com/vadiminshakov/fgi/internal/services/history"
	"github.com/vadiminshakov/fgi/internal/services/posttext"
	"github.com/vadiminshakov/fgi/internal/services/publish"
	"github.com/vadiminshakov/fgi/internal/services/render"
	"github.com/vadiminshakov/fgi/internal/storage/artifacts"
	"github.com/vadiminshakov/fgi/internal/storage/ledger"
)

// 2024-05-10 is a Friday.
var runTime = time.Date(2024, 5, 10, 8, 30, 0, 0, time.UTC)

type fakeFeed struct {
	instrument domain.Instrument
	res        feed.Result
	err        error
	calls      int
}

func (f *fakeFeed) Instrument() domain.Instrument {
	return f.instrument
}

func (f *fakeFeed) Fetch(ctx context.Context) (domain.Snapshot, error) {
	res, err := f.Load(ctx)
	return res.Snapshot, err
}

func (f *fakeFeed) FetchRaw(ctx context.Context) ([]domain.Reading, error) {
	res, err := f.Load(ctx)
	return res.Readings, err
}

func (f *fakeFeed) Load(context.Context) (feed.Result, error) {
	f.calls++
	return f.res, f.err
}

type fakeChannel struct {
	name    string
	authErr error

	mu    sync.Mutex
	posts []string
}

func (c *fakeChannel) Name() string {
	return c.name
}

func (c *fakeChannel) Authenticate(context.Context) (publish.Session, error) {
	if c.authErr != nil {
		return nil, c.authErr
	}
	return c.name, nil
}

func (c *fakeChannel) UploadMedia(_ context.Context, _ publish.Session, artifact publish.Artifact) (string, error) {
	if len(artifact.Data) == 0 {
		return "", errors.New("empty artifact")
	}
	return "media-" + c.name, nil
}

func (c *fakeChannel) CreatePost(_ context.Context, _ publish.Session, text, _ string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.posts = append(c.posts, text)
	return "post-" + c.name, nil
}

func (c *fakeChannel) postCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.posts)
}

type fakePricer struct {
	price decimal.Decimal
	err   error
}

func (p fakePricer) GetPrice(context.Context, domain.Pair) (decimal.Decimal, error) {
	return p.price, p.err
}

type failingLedger struct {
	*ledger.MemoryStore
}

func (failingLedger) Append(context.Context, domain.LedgerRecord) (bool, error) {
	return false, errors.Wrap(domain.ErrLedgerUnavailable, "sheet quota exceeded")
}

func writeAssets(t *testing.T) render.AssetPaths {
	t.Helper()
	dir := t.TempDir()

	tmpl := image.NewRGBA(image.Rect(0, 0, 1200, 630))
	draw.Draw(tmpl, tmpl.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, tmpl))

	paths := render.AssetPaths{
		Template:    filepath.Join(dir, "template.png"),
		BoldFont:    filepath.Join(dir, "bold.ttf"),
		RegularFont: filepath.Join(dir, "regular.ttf"),
	}
	require.NoError(t, os.WriteFile(paths.Template, buf.Bytes(), 0o644))
	require.NoError(t, os.WriteFile(paths.BoldFont, gobold.TTF, 0o644))
	require.NoError(t, os.WriteFile(paths.RegularFont, goregular.TTF, 0o644))
	return paths
}

func stockFeed() *fakeFeed {
	today := domain.StartOfDay(runTime)
	snapshot := domain.NewSnapshot(domain.InstrumentStock, 45).WithOffset(domain.Offset1DayAgo, 50)
	return &fakeFeed{
		instrument: domain.InstrumentStock,
		res:        feed.Result{Snapshot: snapshot, Readings: snapshot.DatedReadings(today)},
	}
}

// cryptoFeed returns 30 readings ending today with 18 yesterday and 20 today.
func cryptoFeed() *fakeFeed {
	today := domain.StartOfDay(runTime)
	readings := make([]domain.Reading, 30)
	for i := range readings {
		readings[i] = domain.Reading{Date: domain.DaysAgo(today, 29-i), Value: 30, Classification: domain.LabelFear}
	}
	readings[28].Value = 18
	readings[28].Classification = domain.LabelExtremeFear
	readings[29].Value = 20
	readings[29].Classification = domain.LabelExtremeFear

	snapshot := domain.NewSnapshot(domain.InstrumentCrypto, 20).
		WithOffset(domain.Offset1DayAgo, 18).
		WithOffset(domain.Offset1WeekAgo, 30).
		WithOffset(domain.Offset1MonthAgo, 30)
	return &fakeFeed{
		instrument: domain.InstrumentCrypto,
		res:        feed.Result{Snapshot: snapshot, Readings: readings},
	}
}

type pipelineFixture struct {
	pipeline *Pipeline
	stock    *fakeFeed
	crypto   *fakeFeed
	ledgers  map[domain.Instrument]ledger.Ledger
	outDir   string
}

func newFixture(t *testing.T, channels ...publish.Channel) *pipelineFixture {
	t.Helper()

	ledgers := map[domain.Instrument]ledger.Ledger{
		domain.InstrumentStock: ledger.NewMemoryStore(),
		// one year before 2024/05/10 across the leap day
		domain.InstrumentCrypto: ledger.NewMemoryStore(domain.LedgerRecord{DateKey: "2023/05/11", Value: 61}),
	}

	outDir := filepath.Join(t.TempDir(), "output")
	store, err := artifacts.NewStore(outDir)
	require.NoError(t, err)

	f := &pipelineFixture{
		stock:   stockFeed(),
		crypto:  cryptoFeed(),
		ledgers: ledgers,
		outDir:  outDir,
	}
	f.pipeline = &Pipeline{
		assets:       writeAssets(t),
		locale:       domain.LocaleJA,
		location:     time.UTC,
		altText:      publish.DefaultAltText,
		failPolicy:   publish.FailAll,
		stock:        f.stock,
		crypto:       f.crypto,
		keeper:       history.NewKeeper(ledgers, history.Config{SkipWeekendEquitySeed: true}, zap.NewNop()),
		store:        store,
		orchestrator: publish.NewOrchestrator(time.Second, zap.NewNop()),
		channels:     channels,
		metrics:      metrics.NewRegistry(),
		clock:        func() time.Time { return runTime },
		logger:       zap.NewNop(),
	}
	return f
}

func TestPipeline_Run(t *testing.T) {
	misskey := &fakeChannel{name: "misskey"}
	x := &fakeChannel{name: "x", authErr: errors.New("invalid token")}
	bluesky := &fakeChannel{name: "bluesky"}
	f := newFixture(t, misskey, x, bluesky)

	outcome, err := f.pipeline.Run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, outcome)

	report := outcome.Report
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, "2024/05/10", report.Date)
	assert.Equal(t, 2, report.Appended[domain.InstrumentStock])
	assert.Equal(t, 7, report.Appended[domain.InstrumentCrypto])

	yearAgo, ok := report.Snapshots[domain.InstrumentCrypto].Offset(domain.Offset1YearAgo)
	require.True(t, ok, "crypto year-ago value comes from the ledger")
	assert.Equal(t, 61, yearAgo)

	assert.Equal(t, []int{50, 45, 45}, report.Trends[domain.InstrumentStock])
	assert.Equal(t, []int{61, 30, 30, 30, 30, 30, 18, 20, 20}, report.Trends[domain.InstrumentCrypto])
	assert.InDelta(t, 178.0/7.0, report.MovingAverage[domain.InstrumentCrypto], 1e-9)
	_, hasStockAvg := report.MovingAverage[domain.InstrumentStock]
	assert.False(t, hasStockAvg, "too few points for a moving average")

	expected := "CNN・Crypto Fear & Greed Index（恐怖と欲望指数）\n" +
		"2024/05/10（金）\n\n" +
		"⬜Stock：45(-5)【Neutral】\n" +
		"🟧Bitcoin：20(+2)【Extreme Fear】"
	assert.Equal(t, expected, report.Text)

	require.Len(t, outcome.Results, 3)
	assert.Equal(t, "misskey", outcome.Results[0].Channel)
	assert.True(t, outcome.Results[0].OK)
	assert.False(t, outcome.Results[1].OK)
	assert.ErrorIs(t, outcome.Results[1].Err, domain.ErrPublish)
	assert.True(t, outcome.Results[2].OK)
	assert.False(t, outcome.PublishFailed, "one success is enough under the all policy")
	assert.Equal(t, 1, misskey.postCount())
	assert.Equal(t, 0, x.postCount())
	assert.Equal(t, 1, bluesky.postCount())

	img, err := os.ReadFile(filepath.Join(f.outDir, artifacts.ImageFile))
	require.NoError(t, err)
	decoded, err := png.Decode(bytes.NewReader(img))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 1200, 630), decoded.Bounds())

	text, err := os.ReadFile(filepath.Join(f.outDir, artifacts.TextFile))
	require.NoError(t, err)
	assert.Equal(t, expected, string(text))

	saved, err := f.pipeline.store.LoadReport()
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Equal(t, report.RunID, saved.RunID)
	require.Len(t, saved.Publish, 3)
	assert.Contains(t, saved.Publish[1].Error, "authenticate")

	records, err := f.ledgers[domain.InstrumentCrypto].Records(context.Background())
	require.NoError(t, err)
	assert.Len(t, records, 8)

	m := f.pipeline.metrics
	assert.Equal(t, 45.0, testutil.ToFloat64(m.IndexValue.WithLabelValues("stock")))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.LedgerAppends.WithLabelValues("crypto")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PublishTotal.WithLabelValues("x", "failure")))
	assert.Equal(t, float64(runTime.Unix()), testutil.ToFloat64(m.LastSuccessTime))
}

func TestPipeline_RunTwiceIsIdempotent(t *testing.T) {
	f := newFixture(t)

	_, err := f.pipeline.Run(context.Background())
	require.NoError(t, err)

	outcome, err := f.pipeline.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, outcome.Report.Appended[domain.InstrumentStock])
	assert.Equal(t, 0, outcome.Report.Appended[domain.InstrumentCrypto])
	assert.Empty(t, outcome.Results, "no channels configured")
	assert.False(t, outcome.PublishFailed)

	records, err := f.ledgers[domain.InstrumentStock].Records(context.Background())
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestPipeline_DryRun(t *testing.T) {
	channel := &fakeChannel{name: "misskey"}
	f := newFixture(t, channel)

	base := f.ledgers[domain.InstrumentCrypto]
	overlays := map[domain.Instrument]ledger.Ledger{
		domain.InstrumentStock:  ledger.NewOverlay(f.ledgers[domain.InstrumentStock]),
		domain.InstrumentCrypto: ledger.NewOverlay(base),
	}
	f.pipeline.keeper = history.NewKeeper(overlays, history.Config{}, zap.NewNop())
	f.pipeline.dryRun = true

	outcome, err := f.pipeline.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, outcome.Results)
	assert.Equal(t, 0, channel.postCount())
	assert.Equal(t, 7, outcome.Report.Appended[domain.InstrumentCrypto])

	records, err := base.Records(context.Background())
	require.NoError(t, err)
	assert.Len(t, records, 1, "dry run never writes through to the real ledger")

	_, err = os.Stat(filepath.Join(f.outDir, artifacts.ImageFile))
	assert.NoError(t, err, "artifacts are still written")
}

func TestPipeline_PriceLine(t *testing.T) {
	f := newFixture(t)
	f.pipeline.pricer = fakePricer{price: decimal.RequireFromString("67123.45")}
	f.pipeline.pricePair = domain.Pair{From: "BTC", To: "USDT"}
	f.pipeline.text = posttext.Options{Hashtags: []string{"FearAndGreed"}}

	outcome, err := f.pipeline.Run(context.Background())
	require.NoError(t, err)
	assert.Contains(t, outcome.Report.Text, "₿ BTC/USDT：67,123.45")
	assert.Contains(t, outcome.Report.Text, "#FearAndGreed")

	f = newFixture(t)
	f.pipeline.pricer = fakePricer{err: errors.New("exchange down")}
	f.pipeline.pricePair = domain.Pair{From: "BTC", To: "USDT"}

	outcome, err = f.pipeline.Run(context.Background())
	require.NoError(t, err, "price failures are not fatal")
	assert.NotContains(t, outcome.Report.Text, "₿")
}

func TestPipeline_FailPolicy(t *testing.T) {
	f := newFixture(t, &fakeChannel{name: "misskey"}, &fakeChannel{name: "x", authErr: errors.New("denied")})
	f.pipeline.failPolicy = publish.FailAny

	outcome, err := f.pipeline.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, outcome.PublishFailed)
	assert.Equal(t, 0.0, testutil.ToFloat64(f.pipeline.metrics.LastSuccessTime))
}

func TestPipeline_FatalStages(t *testing.T) {
	t.Run("missing assets abort before any feed call", func(t *testing.T) {
		channel := &fakeChannel{name: "misskey"}
		f := newFixture(t, channel)
		f.pipeline.assets.Template = filepath.Join(t.TempDir(), "missing.png")

		outcome, err := f.pipeline.Run(context.Background())
		require.Error(t, err)
		assert.Nil(t, outcome)

		var stageErr *domain.StageError
		require.ErrorAs(t, err, &stageErr)
		assert.Equal(t, domain.StageAssets, stageErr.Stage)
		assert.ErrorIs(t, err, domain.ErrAsset)
		assert.Equal(t, 0, f.stock.calls)
		assert.Equal(t, 0, channel.postCount())
	})

	t.Run("feed failure publishes nothing", func(t *testing.T) {
		channel := &fakeChannel{name: "misskey"}
		f := newFixture(t, channel)
		f.crypto.err = errors.Wrap(domain.ErrFeedUnavailable, "status 503")

		_, err := f.pipeline.Run(context.Background())
		require.Error(t, err)

		var stageErr *domain.StageError
		require.ErrorAs(t, err, &stageErr)
		assert.Equal(t, domain.StageFeed, stageErr.Stage)
		assert.ErrorIs(t, err, domain.ErrFeedUnavailable)
		assert.Equal(t, 0, channel.postCount())

		_, statErr := os.Stat(filepath.Join(f.outDir, artifacts.ImageFile))
		assert.True(t, os.IsNotExist(statErr))
	})

	t.Run("ledger failure publishes nothing", func(t *testing.T) {
		channel := &fakeChannel{name: "misskey"}
		f := newFixture(t, channel)
		f.pipeline.keeper = history.NewKeeper(map[domain.Instrument]ledger.Ledger{
			domain.InstrumentStock:  failingLedger{ledger.NewMemoryStore()},
			domain.InstrumentCrypto: ledger.NewMemoryStore(),
		}, history.Config{}, zap.NewNop())

		_, err := f.pipeline.Run(context.Background())
		require.Error(t, err)

		var stageErr *domain.StageError
		require.ErrorAs(t, err, &stageErr)
		assert.Equal(t, domain.StageLedger, stageErr.Stage)
		assert.ErrorIs(t, err, domain.ErrLedgerUnavailable)
		assert.Equal(t, 0, channel.postCount())
	})
}

func TestNewPipeline(t *testing.T) {
	dir := t.TempDir()
	conf := config.Config{
		Locale:    domain.LocaleEN,
		Location:  time.UTC,
		OutputDir: filepath.Join(dir, "output"),
		Equity:    config.EquityConfig{URL: feed.DefaultEquityURL, Host: feed.DefaultEquityHost, APIKey: "key"},
		Crypto:    config.CryptoConfig{URL: feed.DefaultCryptoURL, Limit: 30},
		Ledger:    ledger.Config{Backend: ledger.BackendMemory},
		Publish: config.PublishConfig{
			FailPolicy: publish.FailAll,
			Timeout:    time.Second,
			Misskey:    config.MisskeyConfig{Enabled: true, Host: "misskey.io", Token: "t"},
			Bluesky:    config.BlueskyConfig{Enabled: true, Handle: "fgi.bsky.social", AppPassword: "p"},
		},
		Price:       config.PriceConfig{Exchange: config.ExchangeBinance, Pair: domain.Pair{From: "BTC", To: "USDT"}},
		FeedTimeout: time.Second,
	}

	p, err := NewPipeline(context.Background(), conf, zap.NewNop(), true)
	require.NoError(t, err)
	defer p.Close()

	assert.Equal(t, []string{"misskey", "bluesky"}, p.Channels())
	assert.NotNil(t, p.pricer)
	assert.True(t, p.dryRun)

	_, err = os.Stat(conf.OutputDir)
	assert.NoError(t, err)
}

func TestNewServiceProvider(t *testing.T) {
	tests := []struct {
		name        string
		client      any
		expectError bool
	}{
		{name: "binance", client: &binance.Client{}},
		{name: "bybit", client: &bybit.Client{}},
		{name: "unsupported", client: "kraken", expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider, err := newServiceProvider(tt.client)
			if tt.expectError {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "unsupported client type")
				return
			}
			require.NoError(t, err)

			pricer, err := provider.Pricer()
			require.NoError(t, err)
			assert.NotNil(t, pricer)
		})
	}

	_, err := newExchangeClient(config.PriceConfig{Exchange: "kraken"})
	assert.Error(t, err)
}

func TestNewChannels(t *testing.T) {
	conf := config.PublishConfig{
		Misskey: config.MisskeyConfig{Enabled: false},
		Twitter: config.TwitterConfig{Enabled: true},
		Bluesky: config.BlueskyConfig{Enabled: true},
	}

	var names []string
	for _, ch := range newChannels(conf, nil) {
		names = append(names, ch.Name())
	}
	assert.Equal(t, []string{"x", "bluesky"}, names)
	assert.Empty(t, newChannels(config.PublishConfig{}, nil))
}
