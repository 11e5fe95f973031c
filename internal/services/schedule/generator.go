package schedule

import (
	"fmt"
	"time"

	"janus/internal/domain/calendar"
	"janus/pkg/errors"
)

// Release times are anchored to the publishing authority's timezone
// (US Eastern). Rather than carrying a tzdata dependency into a pure
// generator, DST is approximated: April through October count as the
// daylight offset (UTC-4), everything else as the winter offset (UTC-5).
// Real transitions move by a week or two each year, so releases in a
// transition week can be off by up to one hour. That trade is deliberate
// and keeps the generator fully deterministic.
const (
	winterOffsetHours = 5
	dstStartMonth     = time.April
	dstEndMonth       = time.October
)

// weekdayRule describes an Nth-weekday-of-month recurrence
type weekdayRule struct {
	weekday       time.Weekday
	nth           int
	releaseHour   int // local (Eastern) wall-clock hour
	releaseMinute int

	// earlyFallback shifts to the (nth+1)th weekday when the computed day
	// lands on or before the 9th. CPI and PPI are never published that
	// early in practice; NFP genuinely is first-Friday.
	earlyFallback bool

	// label names the event in the reference-period note
	label string
}

var weekdayRules = map[calendar.EventType]weekdayRule{
	calendar.EventCPI:    {weekday: time.Tuesday, nth: 2, releaseHour: 8, releaseMinute: 30, earlyFallback: true, label: "CPI"},
	calendar.EventPPI:    {weekday: time.Thursday, nth: 2, releaseHour: 8, releaseMinute: 30, earlyFallback: true, label: "PPI"},
	calendar.EventNFP:    {weekday: time.Friday, nth: 1, releaseHour: 8, releaseMinute: 30, label: "NFP"},
	calendar.EventUnrate: {weekday: time.Friday, nth: 1, releaseHour: 8, releaseMinute: 30, label: "Unemployment"},
}

// fomcDecisionDays is the hand-maintained list of policy decision days
// (the second day of each scheduled meeting), published by the authority
// years in advance. Statements go out at 14:00 Eastern.
//
// TODO: extend with the 2027 meeting schedule once the authority publishes it.
var fomcDecisionDays = []struct {
	year  int
	month time.Month
	day   int
}{
	{2022, time.January, 26}, {2022, time.March, 16}, {2022, time.May, 4}, {2022, time.June, 15},
	{2022, time.July, 27}, {2022, time.September, 21}, {2022, time.November, 2}, {2022, time.December, 14},
	{2023, time.February, 1}, {2023, time.March, 22}, {2023, time.May, 3}, {2023, time.June, 14},
	{2023, time.July, 26}, {2023, time.September, 20}, {2023, time.November, 1}, {2023, time.December, 13},
	{2024, time.January, 31}, {2024, time.March, 20}, {2024, time.May, 1}, {2024, time.June, 12},
	{2024, time.July, 31}, {2024, time.September, 18}, {2024, time.November, 7}, {2024, time.December, 18},
	{2025, time.January, 29}, {2025, time.March, 19}, {2025, time.May, 7}, {2025, time.June, 18},
	{2025, time.July, 30}, {2025, time.September, 17}, {2025, time.October, 29}, {2025, time.December, 10},
	{2026, time.January, 28}, {2026, time.March, 18}, {2026, time.April, 29}, {2026, time.June, 17},
	{2026, time.July, 29}, {2026, time.September, 16}, {2026, time.October, 28}, {2026, time.December, 9},
}

const (
	fomcFirstYear   = 2022
	fomcLastYear    = 2026
	fomcReleaseHour = 14
)

// Generate emits the scheduled occurrences for one event type across
// [startYear, endYear], ordered by instant. Pure and deterministic: the
// only failures are an inverted year range, an unknown event key, and a
// year beyond the hand-maintained meeting list.
func Generate(eventKey calendar.EventType, startYear, endYear int) ([]calendar.Occurrence, error) {
	if startYear > endYear {
		return nil, errors.Wrapf(errors.ErrInvalidYearRange, "%d > %d", startYear, endYear)
	}

	if eventKey == calendar.EventFOMC {
		return generateFromList(startYear, endYear)
	}

	rule, ok := weekdayRules[eventKey]
	if !ok {
		return nil, errors.Wrapf(errors.ErrUnknownEventType, "%s", eventKey)
	}

	return generateFromRule(eventKey, rule, startYear, endYear), nil
}

func generateFromRule(eventKey calendar.EventType, rule weekdayRule, startYear, endYear int) []calendar.Occurrence {
	var occurrences []calendar.Occurrence

	for year := startYear; year <= endYear; year++ {
		for month := time.January; month <= time.December; month++ {
			day := nthWeekday(year, month, rule.weekday, rule.nth)
			if rule.earlyFallback && day <= 9 {
				day = nthWeekday(year, month, rule.weekday, rule.nth+1)
			}

			occurrences = append(occurrences, calendar.Occurrence{
				EventKey:    eventKey,
				ScheduledAt: releaseInstant(year, month, day, rule.releaseHour, rule.releaseMinute),
				Notes:       referenceNote(year, month, rule.label),
			})
		}
	}

	return occurrences
}

func generateFromList(startYear, endYear int) ([]calendar.Occurrence, error) {
	if endYear > fomcLastYear || startYear < fomcFirstYear {
		return nil, errors.Wrapf(errors.ErrCalendarExhausted,
			"meeting list covers %d-%d, requested %d-%d", fomcFirstYear, fomcLastYear, startYear, endYear)
	}

	var occurrences []calendar.Occurrence
	for _, meeting := range fomcDecisionDays {
		if meeting.year < startYear || meeting.year > endYear {
			continue
		}

		occurrences = append(occurrences, calendar.Occurrence{
			EventKey:    calendar.EventFOMC,
			ScheduledAt: releaseInstant(meeting.year, meeting.month, meeting.day, fomcReleaseHour, 0),
			Notes:       fmt.Sprintf("%s %d FOMC", meeting.month.String()[:3], meeting.year),
		})
	}

	return occurrences, nil
}

// nthWeekday returns the day-of-month of the nth given weekday
func nthWeekday(year int, month time.Month, weekday time.Weekday, nth int) int {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	offset := (int(weekday) - int(first.Weekday()) + 7) % 7
	return 1 + offset + 7*(nth-1)
}

// releaseInstant converts a local Eastern release time to UTC using the
// fixed-window DST approximation
func releaseInstant(year int, month time.Month, day, hour, minute int) time.Time {
	offset := winterOffsetHours
	if month >= dstStartMonth && month <= dstEndMonth {
		offset--
	}
	return time.Date(year, month, day, hour+offset, minute, 0, 0, time.UTC)
}

// referenceNote labels the reference period: economic data describes the
// calendar month before its release month
func referenceNote(releaseYear int, releaseMonth time.Month, label string) string {
	ref := time.Date(releaseYear, releaseMonth, 1, 0, 0, 0, 0, time.UTC).AddDate(0, -1, 0)
	return fmt.Sprintf("%s %d %s", ref.Month().String()[:3], ref.Year(), label)
}
