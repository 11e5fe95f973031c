package calendar

import (
	"context"
	"time"

	"janus/internal/services/schedule"
	"janus/internal/workers"
)

// yearsAhead is how far past the current year the schedule is kept seeded
const yearsAhead = 1

// ScheduleExtender keeps the occurrence store seeded through next year
type ScheduleExtender struct {
	*workers.BaseWorker
	service *schedule.Service
}

// NewScheduleExtender creates a new schedule-extender worker
func NewScheduleExtender(service *schedule.Service, interval time.Duration, enabled bool) *ScheduleExtender {
	return &ScheduleExtender{
		BaseWorker: workers.NewBaseWorker("schedule_extender", interval, enabled),
		service:    service,
	}
}

// Run extends the schedule from the current year through next year
func (w *ScheduleExtender) Run(ctx context.Context) error {
	start := time.Now()
	year := time.Now().UTC().Year()

	written, err := w.service.Extend(ctx, year, year+yearsAhead)
	if err != nil {
		w.RecordError(err, time.Since(start))
		return err
	}

	w.RecordRun(time.Since(start))
	w.Log().Debugw("Schedule extension pass complete", "written", written)
	return nil
}
