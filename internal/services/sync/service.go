package sync

import (
	"context"
	"time"

	"janus/internal/adapters/fred"
	"janus/internal/domain/calendar"
	"janus/internal/domain/reaction"
	"janus/internal/events"
	"janus/internal/metrics"
	"janus/pkg/errors"
	"janus/pkg/logger"
)

// ObservationSource fetches raw series observations, most recent first
type ObservationSource interface {
	Observations(ctx context.Context, seriesID string, limit int) ([]fred.Observation, error)
}

// Backfiller computes the market reaction for one occurrence
type Backfiller interface {
	Backfill(ctx context.Context, occ *calendar.Occurrence) (*reaction.Record, bool, error)
}

// seriesIDs maps event types to the external series identifiers they are
// published under
var seriesIDs = map[calendar.EventType]string{
	calendar.EventCPI:    "CPIAUCSL",
	calendar.EventPPI:    "PPIACO",
	calendar.EventNFP:    "PAYEMS",
	calendar.EventUnrate: "UNRATE",
	calendar.EventFOMC:   "DFEDTARU",
}

const (
	// referenceToleranceDays bounds how far an observation's reference
	// date may drift from an occurrence's reference period and still match
	referenceToleranceDays = 45

	// meetingTolerance bounds how long after a meeting the policy-rate
	// series is still attributed to that decision
	meetingTolerance = 7 * 24 * time.Hour
)

// Result reports one sync pass. Errors collects recoverable per-series
// failures; a pass with errors still counts its successful updates.
type Result struct {
	Updated int
	Errors  []error
}

// Service reconciles stored occurrences against officially published values
type Service struct {
	occurrences calendar.Repository
	source      ObservationSource
	backfiller  Backfiller
	publisher   events.Publisher
	lookback    int
	log         *logger.Logger
}

// NewService creates a new synchronizer
func NewService(
	occurrences calendar.Repository,
	source ObservationSource,
	backfiller Backfiller,
	publisher events.Publisher,
	lookback int,
) *Service {
	return &Service{
		occurrences: occurrences,
		source:      source,
		backfiller:  backfiller,
		publisher:   publisher,
		lookback:    lookback,
		log:         logger.Get().With("component", "sync_service"),
	}
}

// SyncAll runs Sync for every supported event type. A failing series is
// recorded and the pass moves on: one broken feed must not block the rest.
func (s *Service) SyncAll(ctx context.Context) Result {
	var total Result

	for _, eventKey := range calendar.AllEventTypes() {
		res := s.Sync(ctx, eventKey)
		total.Updated += res.Updated
		total.Errors = append(total.Errors, res.Errors...)
	}

	s.log.Infow("Observed-value sync complete",
		"updated", total.Updated,
		"errors", len(total.Errors),
	)

	return total
}

// Sync fetches the series mapped to one event type, derives its metric,
// and writes matched values onto occurrences
func (s *Service) Sync(ctx context.Context, eventKey calendar.EventType) Result {
	var res Result

	seriesID, ok := seriesIDs[eventKey]
	if !ok {
		res.Errors = append(res.Errors, errors.Wrapf(errors.ErrUnknownEventType, "%s", eventKey))
		return res
	}

	observations, err := s.source.Observations(ctx, seriesID, s.lookback)
	if err != nil {
		s.log.Errorw("Series fetch failed",
			"event", eventKey,
			"series", seriesID,
			"error", err,
		)
		res.Errors = append(res.Errors, errors.Wrapf(err, "fetch series %s for %s", seriesID, eventKey))
		return res
	}

	var derived []DerivedPoint
	switch eventKey {
	case calendar.EventCPI, calendar.EventPPI:
		derived = CalculateYoY(observations)
	case calendar.EventNFP:
		derived = CalculateMoM(observations)
	default:
		derived = PassThrough(observations)
	}

	if len(derived) == 0 {
		s.log.Debugw("No derivable observations", "event", eventKey, "series", seriesID)
		return res
	}

	if eventKey == calendar.EventFOMC {
		s.matchByProximity(ctx, eventKey, derived, &res)
	} else {
		s.matchByReferencePeriod(ctx, eventKey, derived, &res)
	}

	s.log.Infow("Series synced",
		"event", eventKey,
		"series", seriesID,
		"observations", len(observations),
		"derived", len(derived),
		"updated", res.Updated,
	)

	return res
}

// matchByReferencePeriod joins derived points onto occurrences through the
// reference-period label: an observation dated within the tolerance window
// of an occurrence's reference month belongs to that occurrence.
// Publication calendars drift, hence a window instead of equality.
func (s *Service) matchByReferencePeriod(ctx context.Context, eventKey calendar.EventType, derived []DerivedPoint, res *Result) {
	occurrences, err := s.occurrences.ListByEvent(ctx, eventKey)
	if err != nil {
		res.Errors = append(res.Errors, errors.Wrapf(err, "list occurrences for %s", eventKey))
		return
	}

	for i := range occurrences {
		occ := &occurrences[i]

		refDate, ok := referencePeriodStart(occ.Notes)
		if !ok {
			continue
		}

		point := nearestPoint(derived, refDate, referenceToleranceDays*24*time.Hour)
		if point == nil {
			continue
		}

		s.applyMatch(ctx, occ, point.Value, res)
	}
}

// matchByProximity resolves one winning observation per occurrence for the
// policy-rate series. The daily series carries the old rate right up to the
// decision and only reflects it afterwards, so each occurrence takes the
// latest point dated strictly after the meeting day within the tolerance;
// pre-decision points never qualify, no matter how close they sit.
func (s *Service) matchByProximity(ctx context.Context, eventKey calendar.EventType, derived []DerivedPoint, res *Result) {
	occurrences, err := s.occurrences.ListByEvent(ctx, eventKey)
	if err != nil {
		res.Errors = append(res.Errors, errors.Wrapf(err, "list occurrences for %s", eventKey))
		return
	}

	for i := range occurrences {
		occ := &occurrences[i]

		point := postDecisionPoint(derived, occ.ScheduledAt, meetingTolerance)
		if point == nil {
			continue
		}

		s.applyMatch(ctx, occ, point.Value, res)
	}
}

// applyMatch writes the observed value onto an occurrence and, for past
// occurrences, triggers the reaction backfill in the same pass so actual
// and marketReaction become available together
func (s *Service) applyMatch(ctx context.Context, occ *calendar.Occurrence, value float64, res *Result) {
	if occ.Actual != nil && *occ.Actual == value {
		return
	}

	if err := s.occurrences.SetActual(ctx, occ.EventKey, occ.ScheduledAt, value); err != nil {
		res.Errors = append(res.Errors, errors.Wrapf(err, "set actual for %s %s", occ.EventKey, occ.Day()))
		return
	}

	occ.Actual = &value
	res.Updated++
	metrics.ObservedValuesMatched.WithLabelValues(occ.EventKey.String()).Inc()
	s.publisher.OccurrenceUpdated(ctx, occ, value)

	if occ.ScheduledAt.Before(time.Now().UTC()) && s.backfiller != nil {
		if _, _, err := s.backfiller.Backfill(ctx, occ); err != nil {
			res.Errors = append(res.Errors, errors.Wrapf(err, "backfill %s %s", occ.EventKey, occ.Day()))
		}
	}
}

// referencePeriodStart parses the reference month out of a notes label
// such as "Oct 2024 CPI"
func referencePeriodStart(notes string) (time.Time, bool) {
	if len(notes) < 8 {
		return time.Time{}, false
	}
	t, err := time.Parse("Jan 2006", notes[:8])
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}

// postDecisionPoint returns the latest derived point dated after the
// meeting day and within tolerance of it, or nil when the series has not
// caught up with the decision yet
func postDecisionPoint(derived []DerivedPoint, meeting time.Time, tolerance time.Duration) *DerivedPoint {
	day := meeting.UTC().Truncate(24 * time.Hour)

	var best *DerivedPoint
	for i := range derived {
		date := derived[i].Date
		if !date.After(day) || date.Sub(day) > tolerance {
			continue
		}
		if best == nil || date.After(best.Date) {
			best = &derived[i]
		}
	}

	return best
}

// nearestPoint returns the derived point closest to target within
// tolerance, or nil
func nearestPoint(derived []DerivedPoint, target time.Time, tolerance time.Duration) *DerivedPoint {
	var best *DerivedPoint
	var bestDelta time.Duration

	for i := range derived {
		delta := derived[i].Date.Sub(target)
		if delta < 0 {
			delta = -delta
		}
		if delta > tolerance {
			continue
		}
		if best == nil || delta < bestDelta {
			best = &derived[i]
			bestDelta = delta
		}
	}

	return best
}
