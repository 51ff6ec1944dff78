package types

import (
	"math"
	"time"

	"github.com/moznion/go-optional"
)

// Bar is one row of the input series. Prices are optional because the source
// may contain NULL cells; indicator values are optional because of warm-up rows.
type Bar struct {
	// Index is the row position in the input series.
	Index int
	Time  time.Time
	Open  optional.Option[float64]
	High  optional.Option[float64]
	Low   optional.Option[float64]
	Close optional.Option[float64]
	// Spread is expressed in pips.
	Spread     optional.Option[float64]
	Indicators map[string]optional.Option[float64]
}

// Indicator returns the named indicator value, or None when the column is
// absent or the cell is NULL.
func (b Bar) Indicator(name string) optional.Option[float64] {
	value, ok := b.Indicators[name]
	if !ok {
		return optional.None[float64]()
	}

	return value
}

// MissingPrice returns the name of the first absent or non-finite OHLC field.
func (b Bar) MissingPrice() optional.Option[string] {
	fields := []struct {
		name  string
		value optional.Option[float64]
	}{
		{"open", b.Open},
		{"high", b.High},
		{"low", b.Low},
		{"close", b.Close},
	}

	for _, field := range fields {
		if field.value.IsNone() || !isFinite(field.value.Unwrap()) {
			return optional.Some(field.name)
		}
	}

	return optional.None[string]()
}

// SpreadOrZero returns the spread in pips, treating an absent or non-finite
// spread as zero.
func (b Bar) SpreadOrZero() float64 {
	if b.Spread.IsSome() && isFinite(b.Spread.Unwrap()) {
		return b.Spread.Unwrap()
	}

	return 0
}

// Prices holds the OHLC values of a bar whose prices are all present.
type Prices struct {
	Open  float64
	High  float64
	Low   float64
	Close float64
}

// Prices unwraps the OHLC values. Callers must check MissingPrice first.
func (b Bar) Prices() Prices {
	return Prices{
		Open:  b.Open.Unwrap(),
		High:  b.High.Unwrap(),
		Low:   b.Low.Unwrap(),
		Close: b.Close.Unwrap(),
	}
}

// NewBar builds a bar with all prices present. Mostly used by tests and generators.
func NewBar(index int, t time.Time, open, high, low, close, spread float64, indicators map[string]float64) Bar {
	values := make(map[string]optional.Option[float64], len(indicators))
	for name, value := range indicators {
		values[name] = optional.Some(value)
	}

	return Bar{
		Index:      index,
		Time:       t,
		Open:       optional.Some(open),
		High:       optional.Some(high),
		Low:        optional.Some(low),
		Close:      optional.Some(close),
		Spread:     optional.Some(spread),
		Indicators: values,
	}
}

func isFinite(value float64) bool {
	return !math.IsNaN(value) && !math.IsInf(value, 0)
}
