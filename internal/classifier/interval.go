package classifier

import (
	"fmt"
	"math"
)

// Interval is a closed numeric interval with normalized bounds (Low <= High).
//
// Configuration files describe intervals as two-element lists where the
// second element may be below the first to express a mirrored negative range,
// e.g. the bid side [0, -100] of an ask side [0, 100]. NewInterval accepts
// either order and always stores the smaller bound in Low.
type Interval struct {
	Low   float64 `yaml:"low" json:"low"`
	High  float64 `yaml:"high" json:"high"`
	empty bool
}

// NewInterval builds the interval spanning a and b, in either order.
func NewInterval(a, b float64) Interval {
	return Interval{
		Low:   math.Min(a, b),
		High:  math.Max(a, b),
		empty: false,
	}
}

// EmptyInterval returns an interval that contains no value.
func EmptyInterval() Interval {
	return Interval{Low: 0, High: 0, empty: true}
}

// IntervalFromBounds builds an interval from a configuration pair.
func IntervalFromBounds(bounds []float64) (Interval, error) {
	if len(bounds) != 2 {
		return EmptyInterval(), fmt.Errorf("interval expects 2 bounds, got %d", len(bounds))
	}

	if math.IsNaN(bounds[0]) || math.IsNaN(bounds[1]) {
		return EmptyInterval(), fmt.Errorf("interval bounds must be numbers")
	}

	return NewInterval(bounds[0], bounds[1]), nil
}

// Contains reports whether Low <= value <= High. NaN is never contained.
func (i Interval) Contains(value float64) bool {
	if i.empty || math.IsNaN(value) {
		return false
	}

	return i.Low <= value && value <= i.High
}

// IsEmpty reports whether the interval contains nothing.
func (i Interval) IsEmpty() bool {
	return i.empty
}

// Mirror returns the interval reflected around zero.
func (i Interval) Mirror() Interval {
	if i.empty {
		return i
	}

	return NewInterval(-i.Low, -i.High)
}

// Overlaps reports whether both intervals share at least one value.
func (i Interval) Overlaps(other Interval) bool {
	if i.empty || other.empty {
		return false
	}

	return i.Low <= other.High && other.Low <= i.High
}

func (i Interval) String() string {
	if i.empty {
		return "[]"
	}

	return fmt.Sprintf("[%g,%g]", i.Low, i.High)
}
