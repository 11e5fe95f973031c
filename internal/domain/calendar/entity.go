package calendar

import (
	"time"

	"github.com/google/uuid"
)

// EventType identifies a supported recurring macroeconomic release
type EventType string

const (
	EventCPI    EventType = "cpi"    // Consumer Price Index
	EventPPI    EventType = "ppi"    // Producer Price Index
	EventNFP    EventType = "nfp"    // Non-Farm Payrolls
	EventUnrate EventType = "unrate" // Unemployment rate
	EventFOMC   EventType = "fomc"   // Policy-rate decision
)

// AllEventTypes lists every supported release type
func AllEventTypes() []EventType {
	return []EventType{EventCPI, EventPPI, EventNFP, EventUnrate, EventFOMC}
}

// Valid checks if the event type is supported
func (e EventType) Valid() bool {
	switch e {
	case EventCPI, EventPPI, EventNFP, EventUnrate, EventFOMC:
		return true
	}
	return false
}

// String returns the string representation
func (e EventType) String() string {
	return string(e)
}

// Occurrence is one scheduled instance of a recurring release.
// Created in bulk by the schedule generator; the synchronizer fills Actual
// and the backfill engine attaches the market reaction. Exactly one
// occurrence exists per (event key, calendar day).
type Occurrence struct {
	ID       uuid.UUID `db:"id"`
	EventKey EventType `db:"event_key"`

	// ScheduledAt is the release instant in UTC, DST-corrected
	ScheduledAt time.Time `db:"scheduled_at"`

	Forecast *float64 `db:"forecast"`
	Actual   *float64 `db:"actual"`

	// Notes labels the reference period, e.g. "Oct 2024 CPI".
	// Economic data describes the month before its release month.
	Notes string `db:"notes"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// Day returns the occurrence's UTC calendar day as YYYY-MM-DD
func (o *Occurrence) Day() string {
	return o.ScheduledAt.UTC().Format("2006-01-02")
}
