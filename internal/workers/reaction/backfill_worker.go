package reaction

import (
	"context"
	"time"

	reactionsvc "janus/internal/services/reaction"
	"janus/internal/workers"
	"janus/pkg/errors"
)

// BackfillWorker sweeps past occurrences for missing reaction records.
// The skip-if-rich check makes the periodic sweep cheap: settled
// occurrences cost one cache read each.
type BackfillWorker struct {
	*workers.BaseWorker
	service *reactionsvc.Service
}

// NewBackfillWorker creates a new reaction-backfill worker
func NewBackfillWorker(service *reactionsvc.Service, interval time.Duration, enabled bool) *BackfillWorker {
	return &BackfillWorker{
		BaseWorker: workers.NewBaseWorker("reaction_backfill", interval, enabled),
		service:    service,
	}
}

// Run backfills all past occurrences
func (w *BackfillWorker) Run(ctx context.Context) error {
	start := time.Now()

	res, err := w.service.BackfillAll(ctx)
	if err != nil {
		w.RecordError(err, time.Since(start))
		return err
	}

	var merr errors.MultiError
	for _, e := range res.Errors {
		merr.Add(e)
	}

	if err := merr.ToError(); err != nil {
		w.RecordError(err, time.Since(start))
		return err
	}

	w.RecordRun(time.Since(start))
	w.Log().Debugw("Backfill pass complete",
		"computed", res.Computed,
		"skipped", res.Skipped,
	)
	return nil
}
