// Package feed fetches the current sentiment index values from the upstream providers.
package feed

import (
	"context"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/fgi/internal/domain"
	"github.com/vadiminshakov/fgi/pkg/retrier"
)

const (
	defaultTimeout = 15 * time.Second
	maxErrorBody   = 512
)

// Feed source of one instrument's index.
type Feed interface {
	Instrument() domain.Instrument
	// Fetch returns the current snapshot.
	Fetch(ctx context.Context) (domain.Snapshot, error)
	// FetchRaw returns dated readings, oldest first.
	FetchRaw(ctx context.Context) ([]domain.Reading, error)
	// Load returns snapshot and readings from a single upstream call.
	Load(ctx context.Context) (Result, error)
}

// Result snapshot plus the dated readings it was derived from.
type Result struct {
	Snapshot domain.Snapshot
	Readings []domain.Reading
}

// Option configures a feed.
type Option func(*options)

type options struct {
	httpClient *http.Client
	retrier    *retrier.Retrier
	location   *time.Location
	clock      func() time.Time
	logger     *zap.Logger
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		o.httpClient = c
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.httpClient = &http.Client{Timeout: d}
		}
	}
}

// WithRetrier overrides the retry policy for transient failures.
func WithRetrier(r *retrier.Retrier) Option {
	return func(o *options) {
		o.retrier = r
	}
}

// WithLocation sets the zone used to resolve calendar dates.
func WithLocation(loc *time.Location) Option {
	return func(o *options) {
		if loc != nil {
			o.location = loc
		}
	}
}

// WithClock overrides the wall clock.
func WithClock(clock func() time.Time) Option {
	return func(o *options) {
		o.clock = clock
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{
		httpClient: &http.Client{Timeout: defaultTimeout},
		location:   time.UTC,
		clock:      time.Now,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.retrier == nil {
		o.retrier = retrier.New(
			retrier.WithRetryIf(isTransient),
			retrier.WithOnRetry(func(attempt int, err error) {
				o.logger.Warn("retrying feed request", zap.Int("attempt", attempt), zap.Error(err))
			}),
		)
	}
	return o
}

func (o options) today() time.Time {
	return domain.StartOfDay(o.clock().In(o.location))
}

// transientError marks failures worth another attempt.
type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }

func (e *transientError) Unwrap() error { return e.err }

func isTransient(err error) bool {
	var t *transientError
	return errors.As(err, &t)
}

// get performs a GET request and returns the body of a 2xx response.
func (o options) get(ctx context.Context, url string, headers map[string]string) ([]byte, error) {
	body, err := retrier.DoWithData(o.retrier, ctx, func(ctx context.Context) ([]byte, error) {
		return o.doGet(ctx, url, headers)
	})
	if err != nil && !errors.Is(err, domain.ErrFeedUnavailable) {
		return nil, errors.Wrapf(domain.ErrFeedUnavailable, "GET %s: %v", url, err)
	}
	return body, err
}

func (o options) doGet(ctx context.Context, url string, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrapf(domain.ErrFeedUnavailable, "failed to create request: %v", err)
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, &transientError{err: errors.Wrapf(domain.ErrFeedUnavailable, "GET %s: %v", url, err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &transientError{err: errors.Wrapf(domain.ErrFeedUnavailable, "failed to read response body: %v", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := errors.Wrapf(domain.ErrFeedUnavailable, "GET %s returned status %d: %s", url, resp.StatusCode, truncate(body))
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return nil, &transientError{err: err}
		}
		return nil, err
	}

	return body, nil
}

func truncate(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxErrorBody {
		return s[:maxErrorBody] + "..."
	}
	return s
}

// bodyError classifies a decode failure of a whole response body. Valid JSON of the
// wrong shape is a schema error, anything else means the feed served no usable data.
func bodyError(feed string, err error) error {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return errors.Wrapf(domain.ErrSchema, "%s response is not an object: %v", feed, err)
	}
	return errors.Wrapf(domain.ErrFeedUnavailable, "failed to decode %s response: %v", feed, err)
}

// flexInt accepts a JSON number or a numeric string. Fractions are truncated.
type flexInt int64

func (f *flexInt) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		return errors.New("null number")
	}
	s = strings.Trim(s, `"`)
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return errors.Wrapf(err, "not a number: %s", string(b))
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return errors.Errorf("not a finite number: %s", string(b))
	}
	*f = flexInt(v)
	return nil
}
