package reaction

import (
	"context"

	"janus/internal/domain/calendar"
)

// Repository defines the reaction cache contract.
// Get returns (nil, nil) when no record exists for the key.
// Put replaces any existing record wholesale.
type Repository interface {
	Get(ctx context.Context, key string) (*Record, error)
	Put(ctx context.Context, rec *Record) error
	ListByEvent(ctx context.Context, eventKey calendar.EventType) ([]Record, error)
}
