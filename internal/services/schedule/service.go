package schedule

import (
	"context"

	"janus/internal/domain/calendar"
	"janus/internal/metrics"
	"janus/pkg/errors"
	"janus/pkg/logger"
)

// Service seeds and extends the occurrence store from the compiled
// recurrence rules
type Service struct {
	repo calendar.Repository
	log  *logger.Logger
}

// NewService creates a new schedule service
func NewService(repo calendar.Repository) *Service {
	return &Service{
		repo: repo,
		log:  logger.Get().With("component", "schedule_service"),
	}
}

// Extend generates occurrences for every event type across the year range
// and upserts them. Safe to re-run: the store keys on (event, calendar day),
// so existing occurrences keep their actual/forecast values. The meeting
// list running out for a requested year is reported, not papered over.
func (s *Service) Extend(ctx context.Context, startYear, endYear int) (int, error) {
	written := 0
	var merr errors.MultiError

	for _, eventKey := range calendar.AllEventTypes() {
		occurrences, err := Generate(eventKey, startYear, endYear)
		if err != nil {
			if errors.Is(err, errors.ErrInvalidYearRange) {
				return written, err
			}
			s.log.Errorw("Failed to generate schedule",
				"event", eventKey,
				"error", err,
			)
			merr.Add(errors.Wrapf(err, "generate %s", eventKey))
			continue
		}

		for i := range occurrences {
			if err := s.repo.Upsert(ctx, &occurrences[i]); err != nil {
				merr.Add(errors.Wrapf(err, "upsert %s %s", eventKey, occurrences[i].Day()))
				continue
			}
			written++
			metrics.OccurrencesUpserted.WithLabelValues(eventKey.String()).Inc()
		}
	}

	s.log.Infow("Schedule extended",
		"start_year", startYear,
		"end_year", endYear,
		"written", written,
		"errors", len(merr.Errors),
	)

	return written, merr.ToError()
}
