package reaction

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"janus/internal/adapters/marketdata"
	"janus/internal/domain/calendar"
	"janus/internal/domain/reaction"
	"janus/internal/events"
	"janus/pkg/errors"
)

// fakeReactionRepo is an in-memory reaction.Repository
type fakeReactionRepo struct {
	records map[string]*reaction.Record
}

func newFakeReactionRepo() *fakeReactionRepo {
	return &fakeReactionRepo{records: make(map[string]*reaction.Record)}
}

func (f *fakeReactionRepo) Get(ctx context.Context, key string) (*reaction.Record, error) {
	rec, ok := f.records[key]
	if !ok {
		return nil, nil
	}
	clone := *rec
	return &clone, nil
}

func (f *fakeReactionRepo) Put(ctx context.Context, rec *reaction.Record) error {
	clone := *rec
	f.records[rec.Key()] = &clone
	return nil
}

func (f *fakeReactionRepo) ListByEvent(ctx context.Context, eventKey calendar.EventType) ([]reaction.Record, error) {
	var out []reaction.Record
	for _, rec := range f.records {
		if rec.EventKey == eventKey {
			out = append(out, *rec)
		}
	}
	return out, nil
}

// fakeMarketSource serves a canned window and counts fetches
type fakeMarketSource struct {
	candles    []marketdata.Candle
	funding    []marketdata.FundingPoint
	oi         []marketdata.OpenInterestPoint
	candleErr  error
	fundingErr error
	oiErr      error

	candleCalls int
}

func (f *fakeMarketSource) DailyCandles(ctx context.Context, from, to time.Time) ([]marketdata.Candle, error) {
	f.candleCalls++
	return f.candles, f.candleErr
}

func (f *fakeMarketSource) FundingHistory(ctx context.Context, from, to time.Time) ([]marketdata.FundingPoint, error) {
	return f.funding, f.fundingErr
}

func (f *fakeMarketSource) OpenInterestHistory(ctx context.Context, from, to time.Time) ([]marketdata.OpenInterestPoint, error) {
	return f.oi, f.oiErr
}

func testOccurrence() *calendar.Occurrence {
	return &calendar.Occurrence{
		EventKey:    calendar.EventCPI,
		ScheduledAt: time.Date(2024, time.November, 13, 13, 30, 0, 0, time.UTC),
		Notes:       "Oct 2024 CPI",
	}
}

// window of five consecutive days around D0 = 2024-11-13
func testCandles() []marketdata.Candle {
	return []marketdata.Candle{
		{Date: "2024-11-11", Open: 98, High: 99, Low: 97, Close: 98},
		{Date: "2024-11-12", Open: 98, High: 100, Low: 98, Close: 99},
		{Date: "2024-11-13", Open: 100, High: 104, Low: 99, Close: 100},
		{Date: "2024-11-14", Open: 100, High: 104, Low: 100, Close: 103},
		{Date: "2024-11-15", Open: 103, High: 105, Low: 102, Close: 104},
	}
}

func fullSecondary() ([]marketdata.FundingPoint, []marketdata.OpenInterestPoint) {
	var funding []marketdata.FundingPoint
	var oi []marketdata.OpenInterestPoint
	for _, c := range testCandles() {
		funding = append(funding, marketdata.FundingPoint{Date: c.Date, Rate: 0.0001})
		oi = append(oi, marketdata.OpenInterestPoint{Date: c.Date, Value: 1_000_000})
	}
	return funding, oi
}

func newTestService(repo *fakeReactionRepo, market *fakeMarketSource) *Service {
	return NewService(nil, repo, market, nil, events.NewNoopPublisher(), 0)
}

func TestBackfill_ComputesStatsAndDirection(t *testing.T) {
	repo := newFakeReactionRepo()
	funding, oi := fullSecondary()
	market := &fakeMarketSource{candles: testCandles(), funding: funding, oi: oi}

	rec, skipped, err := newTestService(repo, market).Backfill(context.Background(), testOccurrence())
	require.NoError(t, err)
	require.False(t, skipped)
	require.NotNil(t, rec)

	assert.Equal(t, "cpi-2024-11-13", rec.Key())
	assert.Len(t, rec.PriceSeries, 5)

	// D0 close 100 -> D+1 close 103
	require.NotNil(t, rec.Stats.D1Return)
	assert.InDelta(t, 3.0, *rec.Stats.D1Return, 1e-9)
	assert.Equal(t, reaction.DirectionUp, rec.Stats.Direction)

	// D0 intraday: open 100, close 100, high 104, low 99
	assert.InDelta(t, 0.0, rec.Stats.D0Return, 1e-9)
	assert.InDelta(t, 5.0, rec.Stats.Range, 1e-9)

	// Window ends at D+5, so no D+7 row exists
	assert.Nil(t, rec.Stats.D7Return)

	// Acknowledged placeholder until a real drawdown pass lands
	assert.Equal(t, 0.0, rec.Stats.MaxDrawdown)

	stored, err := repo.Get(context.Background(), rec.Key())
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.True(t, stored.IsRich())
}

func TestBackfill_SkipsRichRecord(t *testing.T) {
	repo := newFakeReactionRepo()
	funding, oi := fullSecondary()
	market := &fakeMarketSource{candles: testCandles(), funding: funding, oi: oi}
	svc := newTestService(repo, market)

	first, skipped, err := svc.Backfill(context.Background(), testOccurrence())
	require.NoError(t, err)
	require.False(t, skipped)

	second, skipped, err := svc.Backfill(context.Background(), testOccurrence())
	require.NoError(t, err)
	assert.True(t, skipped)

	// No second provider round trip, and the stored record is unchanged
	assert.Equal(t, 1, market.candleCalls)

	firstJSON, err := json.Marshal(first)
	require.NoError(t, err)
	secondJSON, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, firstJSON, secondJSON)
}

func TestBackfill_SecondarySeriesDegrade(t *testing.T) {
	repo := newFakeReactionRepo()
	market := &fakeMarketSource{
		candles:    testCandles(),
		fundingErr: errors.ErrUnavailable,
		oiErr:      errors.ErrUnavailable,
	}

	rec, skipped, err := newTestService(repo, market).Backfill(context.Background(), testOccurrence())
	require.NoError(t, err)
	require.False(t, skipped)

	for _, p := range rec.PriceSeries {
		assert.Nil(t, p.FundingRate, "date %s", p.Date)
		assert.Nil(t, p.OpenInterest, "date %s", p.Date)
	}
	assert.False(t, rec.IsRich())

	// Stats still computed from the primary series
	require.NotNil(t, rec.Stats.D1Return)
	assert.InDelta(t, 3.0, *rec.Stats.D1Return, 1e-9)
}

func TestBackfill_PartialSecondaryCoverage(t *testing.T) {
	repo := newFakeReactionRepo()
	market := &fakeMarketSource{
		candles: testCandles(),
		funding: []marketdata.FundingPoint{{Date: "2024-11-13", Rate: 0.0002}},
	}

	rec, _, err := newTestService(repo, market).Backfill(context.Background(), testOccurrence())
	require.NoError(t, err)

	for _, p := range rec.PriceSeries {
		if p.Date == "2024-11-13" {
			require.NotNil(t, p.FundingRate)
			assert.Equal(t, 0.0002, *p.FundingRate)
		} else {
			assert.Nil(t, p.FundingRate)
		}
		assert.Nil(t, p.OpenInterest)
	}
}

func TestBackfill_NoPriceDataSkipsOccurrence(t *testing.T) {
	repo := newFakeReactionRepo()

	// Seed a prior non-rich record that must survive the failed pass
	prior := &reaction.Record{
		EventKey:       calendar.EventCPI,
		OccurrenceDate: "2024-11-13",
		PriceSeries:    []reaction.PricePoint{{Date: "2024-11-13", Close: 95}},
	}
	require.NoError(t, repo.Put(context.Background(), prior))

	market := &fakeMarketSource{}

	rec, skipped, err := newTestService(repo, market).Backfill(context.Background(), testOccurrence())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNoPriceData))
	assert.False(t, skipped)
	assert.Nil(t, rec)

	stored, err := repo.Get(context.Background(), "cpi-2024-11-13")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, 95.0, stored.PriceSeries[0].Close)
}

func TestBackfill_DirectionChopWithinThreshold(t *testing.T) {
	repo := newFakeReactionRepo()
	candles := []marketdata.Candle{
		{Date: "2024-11-13", Open: 100, High: 101, Low: 99, Close: 100},
		{Date: "2024-11-14", Open: 100, High: 101, Low: 100, Close: 100.4},
	}
	market := &fakeMarketSource{candles: candles}

	rec, _, err := newTestService(repo, market).Backfill(context.Background(), testOccurrence())
	require.NoError(t, err)

	require.NotNil(t, rec.Stats.D1Return)
	assert.InDelta(t, 0.4, *rec.Stats.D1Return, 1e-9)
	assert.Equal(t, reaction.DirectionChop, rec.Stats.Direction)
}
