package feed

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/vadiminshakov/fgi/internal/domain"
)

const (
	// DefaultEquityURL RapidAPI endpoint of the CNN Fear & Greed index.
	DefaultEquityURL = "https://fear-and-greed-index.p.rapidapi.com/v1/fgi"
	// DefaultEquityHost value of the x-rapidapi-host header.
	DefaultEquityHost = "fear-and-greed-index.p.rapidapi.com"
)

// Equity reads the CNN Fear & Greed index through RapidAPI.
type Equity struct {
	url    string
	host   string
	apiKey string
	opts   options
}

// NewEquity creates the equity feed. Empty url and host fall back to the public endpoint.
func NewEquity(url, host, apiKey string, opts ...Option) *Equity {
	if url == "" {
		url = DefaultEquityURL
	}
	if host == "" {
		host = DefaultEquityHost
	}
	return &Equity{
		url:    url,
		host:   host,
		apiKey: apiKey,
		opts:   buildOptions(opts),
	}
}

func (e *Equity) Instrument() domain.Instrument {
	return domain.InstrumentStock
}

func (e *Equity) Fetch(ctx context.Context) (domain.Snapshot, error) {
	res, err := e.Load(ctx)
	return res.Snapshot, err
}

func (e *Equity) FetchRaw(ctx context.Context) ([]domain.Reading, error) {
	res, err := e.Load(ctx)
	return res.Readings, err
}

func (e *Equity) Load(ctx context.Context) (Result, error) {
	body, err := e.opts.get(ctx, e.url, map[string]string{
		"x-rapidapi-key":  e.apiKey,
		"x-rapidapi-host": e.host,
	})
	if err != nil {
		return Result{}, err
	}

	snapshot, err := decodeEquity(body)
	if err != nil {
		return Result{}, err
	}

	return Result{
		Snapshot: snapshot,
		Readings: snapshot.DatedReadings(e.opts.today()),
	}, nil
}

type equityPoint struct {
	Value     *flexInt `json:"value"`
	ValueText string   `json:"valueText,omitempty"`
}

type equityPayload struct {
	Now           *equityPoint `json:"now"`
	PreviousClose *equityPoint `json:"previousClose"`
	OneWeekAgo    *equityPoint `json:"oneWeekAgo"`
	OneMonthAgo   *equityPoint `json:"oneMonthAgo"`
	OneYearAgo    *equityPoint `json:"oneYearAgo"`
}

type equityEnvelope struct {
	FGI  json.RawMessage `json:"fgi"`
	Data json.RawMessage `json:"data"`
}

// decodeEquity accepts the payload under "fgi" (v1) or "data" (v2).
func decodeEquity(body []byte) (domain.Snapshot, error) {
	var env equityEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return domain.Snapshot{}, bodyError("equity", err)
	}

	payload, version, err := tryDecodeV1(env)
	if payload == nil && err == nil {
		payload, version, err = tryDecodeV2(env)
	}
	if err != nil {
		return domain.Snapshot{}, err
	}
	if payload == nil {
		return domain.Snapshot{}, errors.Wrapf(domain.ErrSchema, "equity response has neither fgi nor data: %s", truncate(body))
	}

	if payload.Now == nil || payload.Now.Value == nil {
		return domain.Snapshot{}, errors.Wrapf(domain.ErrSchema, "equity %s payload has no now.value", version)
	}

	snapshot := domain.NewSnapshot(domain.InstrumentStock, int(*payload.Now.Value))
	for key, point := range map[domain.OffsetKey]*equityPoint{
		domain.Offset1DayAgo:   payload.PreviousClose,
		domain.Offset1WeekAgo:  payload.OneWeekAgo,
		domain.Offset1MonthAgo: payload.OneMonthAgo,
		domain.Offset1YearAgo:  payload.OneYearAgo,
	} {
		if point == nil || point.Value == nil {
			continue
		}
		snapshot.Offsets[key] = int(*point.Value)
	}

	if err := snapshot.Validate(); err != nil {
		return domain.Snapshot{}, errors.Wrapf(domain.ErrSchema, "equity %s payload: %v", version, err)
	}

	return snapshot, nil
}

func tryDecodeV1(env equityEnvelope) (*equityPayload, string, error) {
	return decodePayload(env.FGI, "v1")
}

func tryDecodeV2(env equityEnvelope) (*equityPayload, string, error) {
	return decodePayload(env.Data, "v2")
}

func decodePayload(raw json.RawMessage, version string) (*equityPayload, string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, version, nil
	}
	var p equityPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, version, errors.Wrapf(domain.ErrSchema, "equity %s payload: %v", version, err)
	}
	return &p, version, nil
}
