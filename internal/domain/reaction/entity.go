package reaction

import (
	"fmt"
	"time"

	"janus/internal/domain/calendar"
)

// Direction classifies the market's day-after response to a release
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
	DirectionChop Direction = "chop"
)

// Stats holds event-relative reaction statistics.
// D1Return and D7Return are nil when the window has no row for that day;
// consumers must treat nil as "data unavailable", never as zero.
type Stats struct {
	D0Return float64  `json:"d0Return"`
	D1Return *float64 `json:"d1Return"`
	D7Return *float64 `json:"d7Return"`

	// MaxDrawdown is reserved for a later computation pass and is emitted
	// as 0 until then
	MaxDrawdown float64 `json:"maxDrawdown"`

	Range     float64   `json:"range"`
	Direction Direction `json:"direction"`
}

// PricePoint is one merged daily row around an occurrence. OpenInterest and
// FundingRate stay nil for dates where the secondary series had no data.
type PricePoint struct {
	Date  string  `json:"date"` // YYYY-MM-DD
	Open  float64 `json:"open"`
	High  float64 `json:"high"`
	Low   float64 `json:"low"`
	Close float64 `json:"close"`

	OpenInterest *float64 `json:"openInterest,omitempty"`
	FundingRate  *float64 `json:"fundingRate,omitempty"`
}

// Record is the cached market reaction for one occurrence, keyed by
// eventKey-occurrenceDate. Records are replaced wholesale on recompute,
// never patched in place.
type Record struct {
	EventKey       calendar.EventType `json:"eventKey"`
	OccurrenceDate string             `json:"occurrenceDate"` // YYYY-MM-DD

	Stats       Stats        `json:"stats"`
	PriceSeries []PricePoint `json:"priceSeries"`

	ComputedAt time.Time `json:"computedAt"`
}

// Key builds the cache key for an event type and occurrence day
func Key(eventKey calendar.EventType, day string) string {
	return fmt.Sprintf("%s-%s", eventKey, day)
}

// Key returns the record's cache key
func (r *Record) Key() string {
	return Key(r.EventKey, r.OccurrenceDate)
}

// IsRich reports whether the record carries both derivatives series on its
// price points. Rich records are skipped by the backfill engine, which is
// what makes repeated runs safe and cheap.
func (r *Record) IsRich() bool {
	for _, p := range r.PriceSeries {
		if p.OpenInterest != nil && p.FundingRate != nil {
			return true
		}
	}
	return false
}
