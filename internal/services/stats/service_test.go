package stats

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"janus/internal/domain/calendar"
	"janus/internal/domain/reaction"
	"janus/pkg/errors"
)

type fakeReactionRepo struct {
	records []reaction.Record
	err     error
}

func (f *fakeReactionRepo) Get(ctx context.Context, key string) (*reaction.Record, error) {
	return nil, nil
}

func (f *fakeReactionRepo) Put(ctx context.Context, rec *reaction.Record) error {
	f.records = append(f.records, *rec)
	return nil
}

func (f *fakeReactionRepo) ListByEvent(ctx context.Context, eventKey calendar.EventType) ([]reaction.Record, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []reaction.Record
	for _, rec := range f.records {
		if rec.EventKey == eventKey {
			out = append(out, rec)
		}
	}
	return out, nil
}

type fakeArchive struct {
	avg     float64
	rows    uint64
	series  []reaction.PricePoint
	err     error
	lastKey string
}

func (f *fakeArchive) AverageRealizedRange(ctx context.Context, eventKey calendar.EventType, from, to time.Time) (float64, uint64, error) {
	return f.avg, f.rows, f.err
}

func (f *fakeArchive) GetRows(ctx context.Context, eventKey calendar.EventType, occurrenceDate string) ([]reaction.PricePoint, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.lastKey = reaction.Key(eventKey, occurrenceDate)
	return f.series, nil
}

func record(eventKey calendar.EventType, day string, d1 *float64, dir reaction.Direction) reaction.Record {
	return reaction.Record{
		EventKey:       eventKey,
		OccurrenceDate: day,
		Stats:          reaction.Stats{D1Return: d1, Direction: dir},
	}
}

func ptr(v float64) *float64 { return &v }

func TestAggregate_ZeroRecords(t *testing.T) {
	svc := NewService(&fakeReactionRepo{}, nil)

	result, err := svc.Aggregate(context.Background(), calendar.EventCPI)
	require.NoError(t, err)

	assert.Equal(t, calendar.EventCPI, result.EventKey)
	assert.Equal(t, 0, result.Count)
	assert.Equal(t, 0.0, result.WinRate)
	assert.Equal(t, 0.0, result.AvgReturn)
}

func TestAggregate_WinRateAndAverage(t *testing.T) {
	repo := &fakeReactionRepo{records: []reaction.Record{
		record(calendar.EventCPI, "2024-09-11", ptr(2.0), reaction.DirectionUp),
		record(calendar.EventCPI, "2024-10-10", ptr(-1.0), reaction.DirectionDown),
		record(calendar.EventCPI, "2024-11-13", ptr(3.0), reaction.DirectionUp),
		// A record with no D+1 row counts toward Count only
		record(calendar.EventCPI, "2024-12-11", nil, reaction.DirectionChop),
		// Other event types stay out of the fold
		record(calendar.EventPPI, "2024-11-14", ptr(9.0), reaction.DirectionUp),
	}}

	svc := NewService(repo, nil)
	result, err := svc.Aggregate(context.Background(), calendar.EventCPI)
	require.NoError(t, err)

	assert.Equal(t, 4, result.Count)
	assert.InDelta(t, 2.0/3.0, result.WinRate, 1e-9)
	assert.InDelta(t, 4.0/3.0, result.AvgReturn, 1e-9)
}

func TestAggregateHorizon_D0(t *testing.T) {
	repo := &fakeReactionRepo{records: []reaction.Record{
		{EventKey: calendar.EventFOMC, OccurrenceDate: "2024-11-07", Stats: reaction.Stats{D0Return: 1.5}},
		{EventKey: calendar.EventFOMC, OccurrenceDate: "2024-12-18", Stats: reaction.Stats{D0Return: -0.5}},
	}}

	svc := NewService(repo, nil)
	result, err := svc.AggregateHorizon(context.Background(), calendar.EventFOMC, HorizonD0)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Count)
	assert.InDelta(t, 0.5, result.WinRate, 1e-9)
	assert.InDelta(t, 0.5, result.AvgReturn, 1e-9)
}

func TestAggregate_RepoError(t *testing.T) {
	repo := &fakeReactionRepo{err: errors.ErrUnavailable}
	svc := NewService(repo, nil)

	_, err := svc.Aggregate(context.Background(), calendar.EventCPI)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrUnavailable))
}

func TestAverageRange(t *testing.T) {
	svc := NewService(&fakeReactionRepo{}, &fakeArchive{avg: 0.031, rows: 12})

	result, err := svc.AverageRange(context.Background(), calendar.EventCPI, time.Time{}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 0.031, result.AverageRange)
	assert.Equal(t, uint64(12), result.Rows)
}

func TestAverageRange_NoArchive(t *testing.T) {
	svc := NewService(&fakeReactionRepo{}, nil)

	_, err := svc.AverageRange(context.Background(), calendar.EventCPI, time.Time{}, time.Now())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrUnavailable))
}

func TestArchivedSeries(t *testing.T) {
	archive := &fakeArchive{series: []reaction.PricePoint{
		{Date: "2024-11-12", Open: 5980, High: 6010, Low: 5975, Close: 6001},
		{Date: "2024-11-13", Open: 6001, High: 6040, Low: 5990, Close: 6035},
	}}
	svc := NewService(&fakeReactionRepo{}, archive)

	rows, err := svc.ArchivedSeries(context.Background(), calendar.EventCPI, "2024-11-13")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "2024-11-12", rows[0].Date)
	assert.Equal(t, "cpi-2024-11-13", archive.lastKey)
}

func TestArchivedSeries_NoArchive(t *testing.T) {
	svc := NewService(&fakeReactionRepo{}, nil)

	_, err := svc.ArchivedSeries(context.Background(), calendar.EventCPI, "2024-11-13")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrUnavailable))
}
