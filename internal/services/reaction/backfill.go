package reaction

import (
	"context"
	"sort"
	"time"

	"janus/internal/adapters/marketdata"
	"janus/internal/domain/calendar"
	"janus/internal/domain/reaction"
	"janus/internal/events"
	"janus/internal/metrics"
	"janus/pkg/errors"
	"janus/pkg/logger"
)

// MarketSource fetches the three daily series merged into a reaction window
type MarketSource interface {
	DailyCandles(ctx context.Context, from, to time.Time) ([]marketdata.Candle, error)
	FundingHistory(ctx context.Context, from, to time.Time) ([]marketdata.FundingPoint, error)
	OpenInterestHistory(ctx context.Context, from, to time.Time) ([]marketdata.OpenInterestPoint, error)
}

// Archive receives a write-through copy of each computed record's merged
// rows for cross-occurrence rollups
type Archive interface {
	InsertRows(ctx context.Context, rec *reaction.Record) error
}

const (
	windowDaysBefore = 3
	windowDaysAfter  = 5

	// directionThreshold is the D+1 return (percent) beyond which the
	// reaction counts as directional instead of chop
	directionThreshold = 0.5
)

// Service computes and caches market reactions around occurrences.
//
// Batch runs are strictly sequential with a pause between occurrences:
// the provider's rate limit is a shared budget, and parallel occurrence
// processing would blow through it.
type Service struct {
	occurrences calendar.Repository
	reactions   reaction.Repository
	market      MarketSource
	archive     Archive
	publisher   events.Publisher
	pause       time.Duration
	log         *logger.Logger
}

// NewService creates a new backfill engine. archive may be nil when no
// column store is configured.
func NewService(
	occurrences calendar.Repository,
	reactions reaction.Repository,
	market MarketSource,
	archive Archive,
	publisher events.Publisher,
	pause time.Duration,
) *Service {
	return &Service{
		occurrences: occurrences,
		reactions:   reactions,
		market:      market,
		archive:     archive,
		publisher:   publisher,
		pause:       pause,
		log:         logger.Get().With("component", "backfill_service"),
	}
}

// Result reports one batch backfill pass
type Result struct {
	Computed int
	Skipped  int
	Errors   []error
}

// Backfill computes the reaction record for one occurrence. It returns
// skipped=true without touching the store when a rich record already
// exists; reruns are safe because of this check, not despite it.
func (s *Service) Backfill(ctx context.Context, occ *calendar.Occurrence) (*reaction.Record, bool, error) {
	day := occ.Day()

	existing, err := s.reactions.Get(ctx, reaction.Key(occ.EventKey, day))
	if err != nil {
		return nil, false, errors.Wrapf(err, "load reaction %s-%s", occ.EventKey, day)
	}
	if existing != nil && existing.IsRich() {
		metrics.ReactionsComputed.WithLabelValues(occ.EventKey.String(), "skipped").Inc()
		s.log.Debugw("Reaction already rich, skipping",
			"event", occ.EventKey,
			"date", day,
		)
		return existing, true, nil
	}

	d0 := occ.ScheduledAt.UTC().Truncate(24 * time.Hour)
	from := d0.AddDate(0, 0, -windowDaysBefore)
	to := d0.AddDate(0, 0, windowDaysAfter+1).Add(-time.Second)

	candles, err := s.market.DailyCandles(ctx, from, to)
	if err != nil {
		metrics.ReactionsComputed.WithLabelValues(occ.EventKey.String(), "failed").Inc()
		return nil, false, errors.Wrapf(err, "fetch candles for %s %s", occ.EventKey, day)
	}
	if len(candles) == 0 {
		metrics.ReactionsComputed.WithLabelValues(occ.EventKey.String(), "failed").Inc()
		return nil, false, errors.Wrapf(errors.ErrNoPriceData, "%s %s", occ.EventKey, day)
	}

	// Secondary series degrade: a failed fetch leaves the fields nil on
	// every row instead of aborting the occurrence
	funding, err := s.market.FundingHistory(ctx, from, to)
	if err != nil {
		s.log.Warnw("Funding history unavailable, proceeding without it",
			"event", occ.EventKey,
			"date", day,
			"error", err,
		)
		funding = nil
	}

	openInterest, err := s.market.OpenInterestHistory(ctx, from, to)
	if err != nil {
		s.log.Warnw("Open interest unavailable, proceeding without it",
			"event", occ.EventKey,
			"date", day,
			"error", err,
		)
		openInterest = nil
	}

	series := mergeSeries(candles, funding, openInterest)

	rec := &reaction.Record{
		EventKey:       occ.EventKey,
		OccurrenceDate: day,
		Stats:          computeStats(series, day),
		PriceSeries:    series,
		ComputedAt:     time.Now().UTC(),
	}

	if err := s.reactions.Put(ctx, rec); err != nil {
		metrics.ReactionsComputed.WithLabelValues(occ.EventKey.String(), "failed").Inc()
		return nil, false, errors.Wrapf(err, "store reaction %s", rec.Key())
	}

	if s.archive != nil {
		if err := s.archive.InsertRows(ctx, rec); err != nil {
			s.log.Warnw("Market-row archive write failed",
				"key", rec.Key(),
				"error", err,
			)
		}
	}

	metrics.ReactionsComputed.WithLabelValues(occ.EventKey.String(), "computed").Inc()
	s.publisher.ReactionComputed(ctx, rec)

	s.log.Infow("Reaction computed",
		"event", occ.EventKey,
		"date", day,
		"rows", len(series),
		"direction", rec.Stats.Direction,
	)

	return rec, false, nil
}

// BackfillAll processes every past occurrence
func (s *Service) BackfillAll(ctx context.Context) (Result, error) {
	occurrences, err := s.occurrences.ListPast(ctx, time.Now().UTC())
	if err != nil {
		return Result{}, errors.Wrap(err, "list past occurrences")
	}
	return s.run(ctx, occurrences), nil
}

// BackfillRange processes past occurrences scheduled within [from, to]
func (s *Service) BackfillRange(ctx context.Context, from, to time.Time) (Result, error) {
	occurrences, err := s.occurrences.ListBetween(ctx, from, to)
	if err != nil {
		return Result{}, errors.Wrap(err, "list occurrences in range")
	}

	now := time.Now().UTC()
	past := occurrences[:0]
	for _, occ := range occurrences {
		if occ.ScheduledAt.Before(now) {
			past = append(past, occ)
		}
	}

	return s.run(ctx, past), nil
}

// run is the sequential batch loop. Interruption between occurrences is
// safe: each occurrence persists as one whole-record replace.
func (s *Service) run(ctx context.Context, occurrences []calendar.Occurrence) Result {
	var res Result

	for i := range occurrences {
		occ := &occurrences[i]

		if ctx.Err() != nil {
			res.Errors = append(res.Errors, ctx.Err())
			return res
		}

		_, skipped, err := s.Backfill(ctx, occ)
		switch {
		case err != nil:
			s.log.Errorw("Backfill failed for occurrence",
				"event", occ.EventKey,
				"date", occ.Day(),
				"error", err,
			)
			res.Errors = append(res.Errors, err)
		case skipped:
			res.Skipped++
		default:
			res.Computed++
		}

		// Pace the provider between occurrences, but never after a skip:
		// skips make no API calls
		if !skipped && i < len(occurrences)-1 && s.pause > 0 {
			select {
			case <-ctx.Done():
				res.Errors = append(res.Errors, ctx.Err())
				return res
			case <-time.After(s.pause):
			}
		}
	}

	s.log.Infow("Backfill pass complete",
		"computed", res.Computed,
		"skipped", res.Skipped,
		"errors", len(res.Errors),
	)

	return res
}

// mergeSeries joins the three daily series on their YYYY-MM-DD keys. Dates
// present only in the secondary series are dropped; dates missing from a
// secondary series keep nil fields.
func mergeSeries(candles []marketdata.Candle, funding []marketdata.FundingPoint, openInterest []marketdata.OpenInterestPoint) []reaction.PricePoint {
	fundingByDate := make(map[string]float64, len(funding))
	for _, f := range funding {
		fundingByDate[f.Date] = f.Rate
	}

	oiByDate := make(map[string]float64, len(openInterest))
	for _, o := range openInterest {
		oiByDate[o.Date] = o.Value
	}

	series := make([]reaction.PricePoint, 0, len(candles))
	for _, c := range candles {
		p := reaction.PricePoint{
			Date:  c.Date,
			Open:  c.Open,
			High:  c.High,
			Low:   c.Low,
			Close: c.Close,
		}
		if rate, ok := fundingByDate[c.Date]; ok {
			r := rate
			p.FundingRate = &r
		}
		if value, ok := oiByDate[c.Date]; ok {
			v := value
			p.OpenInterest = &v
		}
		series = append(series, p)
	}

	sort.Slice(series, func(i, j int) bool { return series[i].Date < series[j].Date })

	return series
}

// computeStats derives the event-relative statistics from a merged series.
// Returns are percentages.
func computeStats(series []reaction.PricePoint, occurrenceDate string) reaction.Stats {
	stats := reaction.Stats{Direction: reaction.DirectionChop}

	byDate := make(map[string]reaction.PricePoint, len(series))
	for _, p := range series {
		byDate[p.Date] = p
	}

	d0, ok := byDate[occurrenceDate]
	if !ok {
		return stats
	}

	if d0.Open != 0 {
		stats.D0Return = (d0.Close - d0.Open) / d0.Open * 100
	}
	if d0.Close != 0 {
		stats.Range = (d0.High - d0.Low) / d0.Close * 100
	}

	day, err := time.Parse("2006-01-02", occurrenceDate)
	if err != nil {
		return stats
	}

	if d1, ok := byDate[day.AddDate(0, 0, 1).Format("2006-01-02")]; ok && d0.Close != 0 {
		r := (d1.Close - d0.Close) / d0.Close * 100
		stats.D1Return = &r

		switch {
		case r > directionThreshold:
			stats.Direction = reaction.DirectionUp
		case r < -directionThreshold:
			stats.Direction = reaction.DirectionDown
		}
	}

	if d7, ok := byDate[day.AddDate(0, 0, 7).Format("2006-01-02")]; ok && d0.Close != 0 {
		r := (d7.Close - d0.Close) / d0.Close * 100
		stats.D7Return = &r
	}

	return stats
}
