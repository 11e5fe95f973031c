package sync

import (
	"time"

	"github.com/shopspring/decimal"

	"janus/internal/adapters/fred"
)

// DerivedPoint is one computed metric value keyed by the reference date of
// the observation it was derived from
type DerivedPoint struct {
	Date  time.Time
	Value float64
}

// priorYearToleranceDays bounds how far from exactly one year back the
// prior-year observation may sit. Reference dates are first-of-month, so a
// generous window still cannot skip to the wrong month.
const priorYearToleranceDays = 45

// CalculateYoY derives year-over-year percent change for each observation
// that has both a numeric value and a prior-year counterpart. Results keep
// the input's newest-first ordering and are rounded to one decimal, the
// precision official releases are quoted at.
func CalculateYoY(observations []fred.Observation) []DerivedPoint {
	derived := make([]DerivedPoint, 0, len(observations))

	for _, obs := range observations {
		current, ok := obs.Float()
		if !ok {
			continue
		}

		prior, ok := priorYearValue(observations, obs.Date)
		if !ok || prior == 0 {
			continue
		}

		yoy := decimal.NewFromFloat(current).
			Sub(decimal.NewFromFloat(prior)).
			Div(decimal.NewFromFloat(prior)).
			Mul(decimal.NewFromInt(100)).
			Round(1)

		derived = append(derived, DerivedPoint{
			Date:  obs.Date,
			Value: yoy.InexactFloat64(),
		})
	}

	return derived
}

// CalculateMoM derives the month-over-month delta between consecutive
// observations. The input is newest first, so the prior observation is the
// next element.
func CalculateMoM(observations []fred.Observation) []DerivedPoint {
	derived := make([]DerivedPoint, 0, len(observations))

	for i := 0; i < len(observations)-1; i++ {
		current, ok := observations[i].Float()
		if !ok {
			continue
		}
		prior, ok := observations[i+1].Float()
		if !ok {
			continue
		}

		delta := decimal.NewFromFloat(current).
			Sub(decimal.NewFromFloat(prior)).
			Round(1)

		derived = append(derived, DerivedPoint{
			Date:  observations[i].Date,
			Value: delta.InexactFloat64(),
		})
	}

	return derived
}

// PassThrough carries numeric observations over unchanged, dropping
// sentinel and unparsable values
func PassThrough(observations []fred.Observation) []DerivedPoint {
	derived := make([]DerivedPoint, 0, len(observations))

	for _, obs := range observations {
		value, ok := obs.Float()
		if !ok {
			continue
		}
		derived = append(derived, DerivedPoint{Date: obs.Date, Value: value})
	}

	return derived
}

// priorYearValue finds the observation closest to one year before date,
// within the tolerance window
func priorYearValue(observations []fred.Observation, date time.Time) (float64, bool) {
	target := date.AddDate(-1, 0, 0)
	tolerance := priorYearToleranceDays * 24 * time.Hour

	var bestValue float64
	var bestDelta time.Duration
	found := false

	for _, obs := range observations {
		value, ok := obs.Float()
		if !ok {
			continue
		}

		delta := obs.Date.Sub(target)
		if delta < 0 {
			delta = -delta
		}
		if delta > tolerance {
			continue
		}

		if !found || delta < bestDelta {
			bestValue = value
			bestDelta = delta
			found = true
		}
	}

	return bestValue, found
}
