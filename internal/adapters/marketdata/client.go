package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"janus/internal/adapters/config"
	"janus/internal/adapters/ratelimit"
	"janus/internal/metrics"
	"janus/pkg/errors"
	"janus/pkg/logger"
)

// Candle is one daily OHLC bar
type Candle struct {
	Date  string // YYYY-MM-DD, UTC
	Open  float64
	High  float64
	Low   float64
	Close float64
}

// FundingPoint is one daily funding-rate sample
type FundingPoint struct {
	Date string // YYYY-MM-DD, UTC
	Rate float64
}

// OpenInterestPoint is one daily open-interest sample
type OpenInterestPoint struct {
	Date  string // YYYY-MM-DD, UTC
	Value float64
}

// Client fetches daily market history from the market-data provider.
//
// The provider mixes time-unit conventions across endpoints: the candles
// endpoint takes millisecond timestamps, the funding-rate and open-interest
// endpoints take seconds. Each fetch method converts explicitly so the
// convention never leaks past this package.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	symbol     string
	exchange   string
	limiter    *ratelimit.Limiter
	log        *logger.Logger
}

// NewClient creates a market-data client. Every request waits on the shared
// rate limiter before going out.
func NewClient(cfg config.MarketDataConfig, limiter *ratelimit.Limiter) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		symbol:     cfg.Symbol,
		exchange:   cfg.Exchange,
		limiter:    limiter,
		log:        logger.Get().With("component", "marketdata_client"),
	}
}

type seriesResponse struct {
	Data []seriesRow `json:"data"`
}

type seriesRow struct {
	Timestamp int64   `json:"t"`
	Open      float64 `json:"o"`
	High      float64 `json:"h"`
	Low       float64 `json:"l"`
	Close     float64 `json:"c"`
	Rate      float64 `json:"r"`
	Value     float64 `json:"v"`
}

// DailyCandles fetches daily OHLC bars over [from, to].
// Endpoint convention: millisecond timestamps.
func (c *Client) DailyCandles(ctx context.Context, from, to time.Time) ([]Candle, error) {
	start := time.Now()

	q := c.baseQuery()
	q.Set("interval", "1d")
	q.Set("start", strconv.FormatInt(from.UTC().UnixMilli(), 10))
	q.Set("end", strconv.FormatInt(to.UTC().UnixMilli(), 10))

	rows, err := c.fetchSeries(ctx, "/api/v1/candles", q)
	metrics.RecordAPICall("marketdata", "candles", start, err)
	if err != nil {
		return nil, err
	}

	candles := make([]Candle, 0, len(rows))
	for _, row := range rows {
		candles = append(candles, Candle{
			Date:  time.UnixMilli(row.Timestamp).UTC().Format("2006-01-02"),
			Open:  row.Open,
			High:  row.High,
			Low:   row.Low,
			Close: row.Close,
		})
	}
	return candles, nil
}

// FundingHistory fetches daily funding-rate samples over [from, to].
// Endpoint convention: second timestamps.
func (c *Client) FundingHistory(ctx context.Context, from, to time.Time) ([]FundingPoint, error) {
	start := time.Now()

	q := c.baseQuery()
	q.Set("from", strconv.FormatInt(from.UTC().Unix(), 10))
	q.Set("to", strconv.FormatInt(to.UTC().Unix(), 10))

	rows, err := c.fetchSeries(ctx, "/api/v1/funding-rate/history", q)
	metrics.RecordAPICall("marketdata", "funding_rate", start, err)
	if err != nil {
		return nil, err
	}

	points := make([]FundingPoint, 0, len(rows))
	for _, row := range rows {
		points = append(points, FundingPoint{
			Date: time.Unix(row.Timestamp, 0).UTC().Format("2006-01-02"),
			Rate: row.Rate,
		})
	}
	return points, nil
}

// OpenInterestHistory fetches daily open-interest samples over [from, to].
// Endpoint convention: second timestamps.
func (c *Client) OpenInterestHistory(ctx context.Context, from, to time.Time) ([]OpenInterestPoint, error) {
	start := time.Now()

	q := c.baseQuery()
	q.Set("from", strconv.FormatInt(from.UTC().Unix(), 10))
	q.Set("to", strconv.FormatInt(to.UTC().Unix(), 10))

	rows, err := c.fetchSeries(ctx, "/api/v1/open-interest/history", q)
	metrics.RecordAPICall("marketdata", "open_interest", start, err)
	if err != nil {
		return nil, err
	}

	points := make([]OpenInterestPoint, 0, len(rows))
	for _, row := range rows {
		points = append(points, OpenInterestPoint{
			Date:  time.Unix(row.Timestamp, 0).UTC().Format("2006-01-02"),
			Value: row.Value,
		})
	}
	return points, nil
}

func (c *Client) baseQuery() url.Values {
	q := url.Values{}
	q.Set("symbol", c.symbol)
	q.Set("exchange", c.exchange)
	return q
}

func (c *Client) fetchSeries(ctx context.Context, path string, q url.Values) ([]seriesRow, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s%s?%s", c.baseURL, path, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "create request for %s", path)
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "fetch %s", path)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, errors.Wrapf(errors.ErrRateLimitExceeded, "endpoint %s", path)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, errors.Newf("%s returned status %d: %s", path, resp.StatusCode, string(body))
	}

	var payload seriesResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, errors.Wrapf(err, "decode %s response", path)
	}

	return payload.Data, nil
}
