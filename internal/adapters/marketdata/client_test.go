package marketdata

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"janus/internal/adapters/config"
	"janus/internal/adapters/ratelimit"
	"janus/pkg/errors"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewClient(config.MarketDataConfig{
		BaseURL:  srv.URL,
		APIKey:   "md-key",
		Symbol:   "BTCUSDT",
		Exchange: "binance",
		Timeout:  5 * time.Second,
	}, ratelimit.NewLimiter("test", time.Millisecond))
}

func TestDailyCandles_MillisecondConvention(t *testing.T) {
	from := time.Date(2024, time.November, 10, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, time.November, 18, 0, 0, 0, 0, time.UTC)

	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/candles", r.URL.Path)
		assert.Equal(t, "md-key", r.Header.Get("X-API-Key"))
		assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		assert.Equal(t, "binance", r.URL.Query().Get("exchange"))

		// The candles endpoint speaks milliseconds
		assert.Equal(t, strconv.FormatInt(from.UnixMilli(), 10), r.URL.Query().Get("start"))
		assert.Equal(t, strconv.FormatInt(to.UnixMilli(), 10), r.URL.Query().Get("end"))

		day := time.Date(2024, time.November, 13, 0, 0, 0, 0, time.UTC)
		fmt.Fprintf(w, `{"data":[{"t":%d,"o":100,"h":104,"l":99,"c":103}]}`, day.UnixMilli())
	})

	candles, err := client.DailyCandles(context.Background(), from, to)
	require.NoError(t, err)
	require.Len(t, candles, 1)
	assert.Equal(t, "2024-11-13", candles[0].Date)
	assert.Equal(t, 103.0, candles[0].Close)
}

func TestFundingHistory_SecondConvention(t *testing.T) {
	from := time.Date(2024, time.November, 10, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, time.November, 18, 0, 0, 0, 0, time.UTC)

	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/funding-rate/history", r.URL.Path)

		// The funding endpoint speaks seconds
		assert.Equal(t, strconv.FormatInt(from.Unix(), 10), r.URL.Query().Get("from"))
		assert.Equal(t, strconv.FormatInt(to.Unix(), 10), r.URL.Query().Get("to"))

		day := time.Date(2024, time.November, 13, 0, 0, 0, 0, time.UTC)
		fmt.Fprintf(w, `{"data":[{"t":%d,"r":0.0001}]}`, day.Unix())
	})

	points, err := client.FundingHistory(context.Background(), from, to)
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, "2024-11-13", points[0].Date)
	assert.Equal(t, 0.0001, points[0].Rate)
}

func TestOpenInterestHistory_SecondConvention(t *testing.T) {
	from := time.Date(2024, time.November, 10, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, time.November, 18, 0, 0, 0, 0, time.UTC)

	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/open-interest/history", r.URL.Path)
		assert.Equal(t, strconv.FormatInt(from.Unix(), 10), r.URL.Query().Get("from"))

		day := time.Date(2024, time.November, 13, 0, 0, 0, 0, time.UTC)
		fmt.Fprintf(w, `{"data":[{"t":%d,"v":1250000}]}`, day.Unix())
	})

	points, err := client.OpenInterestHistory(context.Background(), from, to)
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, "2024-11-13", points[0].Date)
	assert.Equal(t, 1250000.0, points[0].Value)
}

func TestFetchSeries_RateLimited(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := client.DailyCandles(context.Background(), time.Now().AddDate(0, 0, -3), time.Now())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrRateLimitExceeded))
}
