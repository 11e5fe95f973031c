package redis

import (
	"context"
	"sort"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"janus/internal/adapters/redis"
	"janus/internal/domain/calendar"
	"janus/internal/domain/reaction"
	"janus/pkg/errors"
)

// Compile-time check
var _ reaction.Repository = (*ReactionRepository)(nil)

const keyPrefix = "reaction:"

// ReactionRepository implements reaction.Repository on Redis.
// Records are stored as one JSON value per key and replaced wholesale,
// which is the whole-record-replace idempotency contract of the backfill
// engine. No TTL: reaction history is kept until recomputed.
type ReactionRepository struct {
	client *redis.Client
}

// NewReactionRepository creates a new reaction cache repository
func NewReactionRepository(client *redis.Client) *ReactionRepository {
	return &ReactionRepository{client: client}
}

// Get retrieves a record by cache key, returning (nil, nil) when absent
func (r *ReactionRepository) Get(ctx context.Context, key string) (*reaction.Record, error) {
	var rec reaction.Record

	err := r.client.Get(ctx, keyPrefix+key, &rec)
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get reaction %s", key)
	}

	return &rec, nil
}

// Put stores a record, replacing any previous one for the same key
func (r *ReactionRepository) Put(ctx context.Context, rec *reaction.Record) error {
	if err := r.client.Set(ctx, keyPrefix+rec.Key(), rec, time.Duration(0)); err != nil {
		return errors.Wrapf(err, "put reaction %s", rec.Key())
	}
	return nil
}

// ListByEvent retrieves all records of one event type, ordered by
// occurrence date
func (r *ReactionRepository) ListByEvent(ctx context.Context, eventKey calendar.EventType) ([]reaction.Record, error) {
	keys, err := r.client.Keys(ctx, keyPrefix+eventKey.String()+"-*")
	if err != nil {
		return nil, errors.Wrapf(err, "scan reactions for %s", eventKey)
	}

	records := make([]reaction.Record, 0, len(keys))
	for _, key := range keys {
		var rec reaction.Record
		if err := r.client.Get(ctx, key, &rec); err != nil {
			if errors.Is(err, goredis.Nil) {
				continue // deleted between scan and read
			}
			return nil, errors.Wrapf(err, "get reaction %s", strings.TrimPrefix(key, keyPrefix))
		}
		records = append(records, rec)
	}

	// YYYY-MM-DD keys sort lexically in chronological order
	sort.Slice(records, func(i, j int) bool {
		return records[i].OccurrenceDate < records[j].OccurrenceDate
	})

	return records, nil
}
