package feed

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/vadiminshakov/fgi/internal/domain"
)

const (
	// DefaultCryptoURL alternative.me Fear & Greed endpoint.
	DefaultCryptoURL = "https://api.alternative.me/fng/"
	// DefaultCryptoLimit number of daily readings requested.
	DefaultCryptoLimit = 30
)

// Crypto reads the alternative.me crypto Fear & Greed index.
type Crypto struct {
	url   string
	limit int
	opts  options
}

// NewCrypto creates the crypto feed requesting limit daily readings.
func NewCrypto(baseURL string, limit int, opts ...Option) *Crypto {
	if baseURL == "" {
		baseURL = DefaultCryptoURL
	}
	if limit < 1 {
		limit = DefaultCryptoLimit
	}
	return &Crypto{
		url:   baseURL,
		limit: limit,
		opts:  buildOptions(opts),
	}
}

func (c *Crypto) Instrument() domain.Instrument {
	return domain.InstrumentCrypto
}

func (c *Crypto) Fetch(ctx context.Context) (domain.Snapshot, error) {
	res, err := c.Load(ctx)
	return res.Snapshot, err
}

func (c *Crypto) FetchRaw(ctx context.Context) ([]domain.Reading, error) {
	res, err := c.Load(ctx)
	return res.Readings, err
}

func (c *Crypto) Load(ctx context.Context) (Result, error) {
	u, err := url.Parse(c.url)
	if err != nil {
		return Result{}, errors.Wrapf(domain.ErrFeedUnavailable, "invalid crypto feed url: %v", err)
	}
	q := u.Query()
	q.Set("limit", strconv.Itoa(c.limit))
	u.RawQuery = q.Encode()

	body, err := c.opts.get(ctx, u.String(), nil)
	if err != nil {
		return Result{}, err
	}

	entries, err := decodeCrypto(body)
	if err != nil {
		return Result{}, err
	}

	return Result{
		Snapshot: cryptoSnapshot(entries),
		Readings: c.readings(entries),
	}, nil
}

type cryptoEntry struct {
	Value          flexInt `json:"value"`
	Classification string  `json:"value_classification"`
	Timestamp      flexInt `json:"timestamp"`
}

type cryptoResponse struct {
	Data     []cryptoEntry `json:"data"`
	Metadata struct {
		Error *string `json:"error"`
	} `json:"metadata"`
}

// decodeCrypto returns entries newest first, as served by the API.
func decodeCrypto(body []byte) ([]cryptoEntry, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, bodyError("crypto", err)
	}
	if _, ok := raw["data"]; !ok {
		return nil, errors.Wrapf(domain.ErrSchema, "crypto response has no data: %s", truncate(body))
	}

	var resp cryptoResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, errors.Wrapf(domain.ErrSchema, "crypto response: %v", err)
	}
	if resp.Metadata.Error != nil && *resp.Metadata.Error != "" {
		return nil, errors.Wrapf(domain.ErrFeedUnavailable, "crypto api error: %s", *resp.Metadata.Error)
	}
	if len(resp.Data) == 0 {
		return nil, errors.Wrap(domain.ErrSchema, "crypto response has no readings")
	}

	for i, e := range resp.Data {
		if err := domain.ValidateValue(int(e.Value)); err != nil {
			return nil, errors.Wrapf(domain.ErrSchema, "crypto reading %d: %v", i, err)
		}
		if e.Timestamp <= 0 {
			return nil, errors.Wrapf(domain.ErrSchema, "crypto reading %d has no timestamp", i)
		}
	}

	return resp.Data, nil
}

// cryptoSnapshot maps newest-first entries onto offsets. The month offset is the
// oldest entry fetched, which approximates 30 days only when the full window is served.
func cryptoSnapshot(entries []cryptoEntry) domain.Snapshot {
	s := domain.NewSnapshot(domain.InstrumentCrypto, int(entries[0].Value))
	n := len(entries)
	if n > 1 {
		s.Offsets[domain.Offset1DayAgo] = int(entries[1].Value)
		s.Offsets[domain.Offset1MonthAgo] = int(entries[n-1].Value)
	}
	if n > 7 {
		s.Offsets[domain.Offset1WeekAgo] = int(entries[7].Value)
	}
	return s
}

func (c *Crypto) readings(entries []cryptoEntry) []domain.Reading {
	readings := make([]domain.Reading, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		date := time.Unix(int64(e.Timestamp), 0).In(c.opts.location)
		readings = append(readings, domain.Reading{
			Date:           domain.StartOfDay(date),
			Value:          int(e.Value),
			Classification: domain.Label(e.Classification),
		})
	}
	return readings
}
