package stats

import (
	"context"
	"time"

	"janus/internal/domain/calendar"
	"janus/internal/domain/reaction"
	"janus/pkg/errors"
	"janus/pkg/logger"
)

// Horizon selects which post-event return a fold compares on
type Horizon string

const (
	HorizonD0 Horizon = "d0"
	HorizonD1 Horizon = "d1"
	HorizonD7 Horizon = "d7"
)

// EventStats is the aggregate view over all reactions of one event type.
// A type with no records yields the zero value, never an error.
type EventStats struct {
	EventKey  calendar.EventType `json:"eventKey"`
	Count     int                `json:"count"`
	WinRate   float64            `json:"winRate"`
	AvgReturn float64            `json:"avgReturn"`
}

// RangeStats is the realized-range rollup read from the market-row archive
type RangeStats struct {
	EventKey     calendar.EventType `json:"eventKey"`
	AverageRange float64            `json:"averageRange"`
	Rows         uint64             `json:"rows"`
}

// ArchiveReader exposes the read side of the market-row archive
type ArchiveReader interface {
	AverageRealizedRange(ctx context.Context, eventKey calendar.EventType, from, to time.Time) (float64, uint64, error)
	GetRows(ctx context.Context, eventKey calendar.EventType, occurrenceDate string) ([]reaction.PricePoint, error)
}

// Service is a pure read-side fold over reaction records. Nothing is
// cached here; callers that need caching put it in front.
type Service struct {
	reactions reaction.Repository
	archive   ArchiveReader
	log       *logger.Logger
}

// NewService creates a new aggregator. archive may be nil when no column
// store is configured; the archive-backed reads then report ErrUnavailable.
func NewService(reactions reaction.Repository, archive ArchiveReader) *Service {
	return &Service{
		reactions: reactions,
		archive:   archive,
		log:       logger.Get().With("component", "stats_service"),
	}
}

// Aggregate folds over every reaction record of an event type using the
// default D+1 horizon
func (s *Service) Aggregate(ctx context.Context, eventKey calendar.EventType) (EventStats, error) {
	return s.AggregateHorizon(ctx, eventKey, HorizonD1)
}

// AggregateHorizon folds with a caller-selected comparison horizon.
// Records missing the horizon's return are counted but excluded from the
// win rate and the average, the usual treatment for unavailable data.
func (s *Service) AggregateHorizon(ctx context.Context, eventKey calendar.EventType, horizon Horizon) (EventStats, error) {
	result := EventStats{EventKey: eventKey}

	records, err := s.reactions.ListByEvent(ctx, eventKey)
	if err != nil {
		return result, errors.Wrapf(err, "list reactions for %s", eventKey)
	}

	result.Count = len(records)
	if len(records) == 0 {
		return result, nil
	}

	var sum float64
	var measured, wins int

	for _, rec := range records {
		r, ok := horizonReturn(rec.Stats, horizon)
		if !ok {
			continue
		}

		measured++
		sum += r
		if r > 0 {
			wins++
		}
	}

	if measured > 0 {
		result.WinRate = float64(wins) / float64(measured)
		result.AvgReturn = sum / float64(measured)
	}

	return result, nil
}

// AverageRange reads the realized-range rollup for occurrence days within
// [from, to] from the market-row archive
func (s *Service) AverageRange(ctx context.Context, eventKey calendar.EventType, from, to time.Time) (RangeStats, error) {
	result := RangeStats{EventKey: eventKey}

	if s.archive == nil {
		return result, errors.Wrap(errors.ErrUnavailable, "market-row archive not configured")
	}

	avg, rows, err := s.archive.AverageRealizedRange(ctx, eventKey, from, to)
	if err != nil {
		return result, errors.Wrapf(err, "realized range for %s", eventKey)
	}

	result.AverageRange = avg
	result.Rows = rows
	return result, nil
}

// ArchivedSeries reads the merged daily rows archived for one occurrence,
// oldest first. Research reads go through the archive so they never race
// the reaction cache's whole-record replaces.
func (s *Service) ArchivedSeries(ctx context.Context, eventKey calendar.EventType, day string) ([]reaction.PricePoint, error) {
	if s.archive == nil {
		return nil, errors.Wrap(errors.ErrUnavailable, "market-row archive not configured")
	}

	rows, err := s.archive.GetRows(ctx, eventKey, day)
	if err != nil {
		return nil, errors.Wrapf(err, "archived rows for %s %s", eventKey, day)
	}

	return rows, nil
}

func horizonReturn(st reaction.Stats, horizon Horizon) (float64, bool) {
	switch horizon {
	case HorizonD0:
		return st.D0Return, true
	case HorizonD7:
		if st.D7Return == nil {
			return 0, false
		}
		return *st.D7Return, true
	default:
		if st.D1Return == nil {
			return 0, false
		}
		return *st.D1Return, true
	}
}
