package events

import (
	"context"
	"time"

	"janus/internal/adapters/kafka"
	"janus/internal/domain/calendar"
	"janus/internal/domain/reaction"
	"janus/pkg/logger"
)

// Topics consumed by the presentation layer
const (
	TopicOccurrenceUpdated = "janus.occurrence.updated"
	TopicReactionComputed  = "janus.reaction.computed"
)

// OccurrenceUpdatedEvent announces that an occurrence received its
// officially published value
type OccurrenceUpdatedEvent struct {
	EventKey    string    `json:"eventKey"`
	Day         string    `json:"day"`
	Actual      float64   `json:"actual"`
	Notes       string    `json:"notes"`
	PublishedAt time.Time `json:"publishedAt"`
}

// ReactionComputedEvent announces a freshly computed reaction record
type ReactionComputedEvent struct {
	EventKey    string    `json:"eventKey"`
	Day         string    `json:"day"`
	Direction   string    `json:"direction"`
	PublishedAt time.Time `json:"publishedAt"`
}

// Publisher emits pipeline events for downstream consumers.
// Publishing is best-effort: batch jobs never fail on a publish error.
type Publisher interface {
	OccurrenceUpdated(ctx context.Context, occ *calendar.Occurrence, actual float64)
	ReactionComputed(ctx context.Context, rec *reaction.Record)
}

// KafkaPublisher publishes events to Kafka topics
type KafkaPublisher struct {
	producer *kafka.Producer
	log      *logger.Logger
}

// NewKafkaPublisher creates a Kafka-backed publisher
func NewKafkaPublisher(producer *kafka.Producer) *KafkaPublisher {
	return &KafkaPublisher{
		producer: producer,
		log:      logger.Get().With("component", "event_publisher"),
	}
}

// OccurrenceUpdated publishes an occurrence-updated event
func (p *KafkaPublisher) OccurrenceUpdated(ctx context.Context, occ *calendar.Occurrence, actual float64) {
	event := OccurrenceUpdatedEvent{
		EventKey:    occ.EventKey.String(),
		Day:         occ.Day(),
		Actual:      actual,
		Notes:       occ.Notes,
		PublishedAt: time.Now().UTC(),
	}

	key := occ.EventKey.String() + "-" + occ.Day()
	if err := p.producer.Publish(ctx, TopicOccurrenceUpdated, key, event); err != nil {
		p.log.Warnw("Failed to publish occurrence update", "key", key, "error", err)
	}
}

// ReactionComputed publishes a reaction-computed event
func (p *KafkaPublisher) ReactionComputed(ctx context.Context, rec *reaction.Record) {
	event := ReactionComputedEvent{
		EventKey:    rec.EventKey.String(),
		Day:         rec.OccurrenceDate,
		Direction:   string(rec.Stats.Direction),
		PublishedAt: time.Now().UTC(),
	}

	if err := p.producer.Publish(ctx, TopicReactionComputed, rec.Key(), event); err != nil {
		p.log.Warnw("Failed to publish reaction event", "key", rec.Key(), "error", err)
	}
}

// NoopPublisher drops all events. Wired when Kafka is not configured.
type NoopPublisher struct{}

// NewNoopPublisher creates a publisher that discards events
func NewNoopPublisher() *NoopPublisher {
	return &NoopPublisher{}
}

// OccurrenceUpdated does nothing
func (p *NoopPublisher) OccurrenceUpdated(ctx context.Context, occ *calendar.Occurrence, actual float64) {
}

// ReactionComputed does nothing
func (p *NoopPublisher) ReactionComputed(ctx context.Context, rec *reaction.Record) {}
