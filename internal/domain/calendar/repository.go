package calendar

import (
	"context"
	"time"
)

// Repository defines the occurrence store contract.
// Upsert keys on (event_key, calendar day) so the generator and the
// synchronizer can both run repeatedly without creating duplicates.
type Repository interface {
	Upsert(ctx context.Context, occ *Occurrence) error

	ListByEvent(ctx context.Context, eventKey EventType) ([]Occurrence, error)
	ListBetween(ctx context.Context, from, to time.Time) ([]Occurrence, error)
	ListPast(ctx context.Context, before time.Time) ([]Occurrence, error)

	// SetActual records the officially published value on an occurrence
	SetActual(ctx context.Context, eventKey EventType, day time.Time, actual float64) error
}
