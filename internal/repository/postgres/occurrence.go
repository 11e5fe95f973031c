package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"janus/internal/domain/calendar"
	"janus/pkg/errors"
)

// Compile-time check
var _ calendar.Repository = (*OccurrenceRepository)(nil)

// OccurrenceRepository implements calendar.Repository using sqlx.
// The occurrences table carries a scheduled_on date column that this
// repository keeps in step with scheduled_at on every write; its unique
// index on (event_key, scheduled_on) is what enforces the
// one-occurrence-per-calendar-day invariant.
type OccurrenceRepository struct {
	db *sqlx.DB
}

// NewOccurrenceRepository creates a new occurrence repository
func NewOccurrenceRepository(db *sqlx.DB) *OccurrenceRepository {
	return &OccurrenceRepository{db: db}
}

const occurrenceColumns = `id, event_key, scheduled_at, forecast, actual, notes, created_at, updated_at`

// Upsert inserts an occurrence or refreshes the schedule fields of the
// existing one for the same (event_key, calendar day). Actual and forecast
// are never clobbered by a schedule re-run.
func (r *OccurrenceRepository) Upsert(ctx context.Context, occ *calendar.Occurrence) error {
	if occ.ID == uuid.Nil {
		occ.ID = uuid.New()
	}

	query := `
		INSERT INTO occurrences (
			id, event_key, scheduled_at, scheduled_on, forecast, actual, notes, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		ON CONFLICT (event_key, scheduled_on) DO UPDATE SET
			scheduled_at = EXCLUDED.scheduled_at,
			notes = EXCLUDED.notes,
			updated_at = NOW()`

	_, err := r.db.ExecContext(ctx, query,
		occ.ID, occ.EventKey, occ.ScheduledAt.UTC(), occ.ScheduledAt.UTC().Format("2006-01-02"),
		occ.Forecast, occ.Actual, occ.Notes,
	)

	return err
}

// ListByEvent retrieves all occurrences of one event type, oldest first
func (r *OccurrenceRepository) ListByEvent(ctx context.Context, eventKey calendar.EventType) ([]calendar.Occurrence, error) {
	var occurrences []calendar.Occurrence

	query := `SELECT ` + occurrenceColumns + ` FROM occurrences WHERE event_key = $1 ORDER BY scheduled_at ASC`

	if err := r.db.SelectContext(ctx, &occurrences, query, eventKey); err != nil {
		return nil, err
	}

	return occurrences, nil
}

// ListBetween retrieves all occurrences scheduled in [from, to]
func (r *OccurrenceRepository) ListBetween(ctx context.Context, from, to time.Time) ([]calendar.Occurrence, error) {
	var occurrences []calendar.Occurrence

	query := `
		SELECT ` + occurrenceColumns + ` FROM occurrences
		WHERE scheduled_at >= $1 AND scheduled_at <= $2
		ORDER BY scheduled_at ASC`

	if err := r.db.SelectContext(ctx, &occurrences, query, from.UTC(), to.UTC()); err != nil {
		return nil, err
	}

	return occurrences, nil
}

// ListPast retrieves all occurrences scheduled before the given instant
func (r *OccurrenceRepository) ListPast(ctx context.Context, before time.Time) ([]calendar.Occurrence, error) {
	var occurrences []calendar.Occurrence

	query := `SELECT ` + occurrenceColumns + ` FROM occurrences WHERE scheduled_at < $1 ORDER BY scheduled_at ASC`

	if err := r.db.SelectContext(ctx, &occurrences, query, before.UTC()); err != nil {
		return nil, err
	}

	return occurrences, nil
}

// SetActual records the published value on the occurrence for the given day
func (r *OccurrenceRepository) SetActual(ctx context.Context, eventKey calendar.EventType, day time.Time, actual float64) error {
	query := `UPDATE occurrences SET actual = $3, updated_at = NOW() WHERE event_key = $1 AND scheduled_on = $2`

	res, err := r.db.ExecContext(ctx, query, eventKey, day.UTC().Format("2006-01-02"), actual)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return errors.Wrapf(errors.ErrNotFound, "occurrence %s on %s", eventKey, day.UTC().Format("2006-01-02"))
	}

	return nil
}
