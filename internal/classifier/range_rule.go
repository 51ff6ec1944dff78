package classifier

import (
	"fmt"
	"math"

	"github.com/moznion/go-optional"
	"github.com/shopspring/decimal"
)

// MinSplit is the smallest split accepted by configuration validation.
const MinSplit = 2

// RangeRule partitions [Min, Max] into Split equal-width buckets.
// When Digits is set every bucket boundary is rounded to that many decimals.
type RangeRule struct {
	Min    float64
	Max    float64
	Split  int
	Digits optional.Option[int]
}

// Validate checks the rule. Split must be at least MinSplit.
func (r RangeRule) Validate() error {
	if math.IsNaN(r.Min) || math.IsNaN(r.Max) || r.Min >= r.Max {
		return fmt.Errorf("range min (%g) must be below max (%g)", r.Min, r.Max)
	}

	if r.Split < MinSplit {
		return fmt.Errorf("range split must be >= %d, got %d", MinSplit, r.Split)
	}

	if r.Digits.IsSome() && r.Digits.Unwrap() < 0 {
		return fmt.Errorf("range digits must be >= 0, got %d", r.Digits.Unwrap())
	}

	return nil
}

// BucketCount returns the number of buckets the rule produces. A split below
// 2 degenerates to a single bucket covering the full range.
func (r RangeRule) BucketCount() int {
	if r.Split < MinSplit {
		return 1
	}

	return r.Split
}

// Buckets returns the partition of [Min, Max] in ascending order.
func (r RangeRule) Buckets() []Interval {
	count := r.BucketCount()
	if count == 1 {
		return []Interval{NewInterval(r.boundary(decimal.NewFromFloat(r.Min)), r.boundary(decimal.NewFromFloat(r.Max)))}
	}

	lower := decimal.NewFromFloat(r.Min)
	upper := decimal.NewFromFloat(r.Max)
	width := upper.Sub(lower).Div(decimal.NewFromInt(int64(count)))

	buckets := make([]Interval, 0, count)

	for i := range count {
		low := lower.Add(width.Mul(decimal.NewFromInt(int64(i))))

		high := lower.Add(width.Mul(decimal.NewFromInt(int64(i + 1))))
		if i == count-1 {
			high = upper
		}

		buckets = append(buckets, NewInterval(r.boundary(low), r.boundary(high)))
	}

	return buckets
}

// Bucket returns the index of the first bucket containing value, or -1.
func (r RangeRule) Bucket(value float64) int {
	for i, bucket := range r.Buckets() {
		if bucket.Contains(value) {
			return i
		}
	}

	return -1
}

// Specs returns one mirrored DirectionSpec per bucket.
func (r RangeRule) Specs() []DirectionSpec {
	buckets := r.Buckets()
	specs := make([]DirectionSpec, len(buckets))

	for i, bucket := range buckets {
		specs[i] = MirroredSpec(bucket)
	}

	return specs
}

func (r RangeRule) boundary(value decimal.Decimal) float64 {
	if r.Digits.IsSome() {
		value = value.Round(int32(r.Digits.Unwrap()))
	}

	return value.InexactFloat64()
}
