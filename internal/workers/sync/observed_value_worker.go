package sync

import (
	"context"
	"time"

	syncsvc "janus/internal/services/sync"
	"janus/internal/workers"
	"janus/pkg/errors"
)

// ObservedValueWorker reconciles occurrences against published values on
// an interval
type ObservedValueWorker struct {
	*workers.BaseWorker
	service *syncsvc.Service
}

// NewObservedValueWorker creates a new observed-value sync worker
func NewObservedValueWorker(service *syncsvc.Service, interval time.Duration, enabled bool) *ObservedValueWorker {
	return &ObservedValueWorker{
		BaseWorker: workers.NewBaseWorker("observed_value_sync", interval, enabled),
		service:    service,
	}
}

// Run syncs every event type. Per-series failures surface as one combined
// error; the pass itself always completes.
func (w *ObservedValueWorker) Run(ctx context.Context) error {
	start := time.Now()

	res := w.service.SyncAll(ctx)

	var merr errors.MultiError
	for _, err := range res.Errors {
		merr.Add(err)
	}

	if err := merr.ToError(); err != nil {
		w.RecordError(err, time.Since(start))
		return err
	}

	w.RecordRun(time.Since(start))
	w.Log().Debugw("Observed-value sync pass complete", "updated", res.Updated)
	return nil
}
