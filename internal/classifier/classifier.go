// Package classifier turns a row of indicator values into a trade direction
// using per-column numeric range rules.
package classifier

import (
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-range-backtest/internal/types"
)

// Row is anything that exposes named indicator values.
type Row interface {
	Indicator(name string) optional.Option[float64]
}

// ColumnSpec binds a DirectionSpec to an indicator column.
type ColumnSpec struct {
	Column string
	Spec   DirectionSpec
}

// ColumnVerdict is the per-column outcome of a classification.
type ColumnVerdict struct {
	Column    string
	Value     optional.Option[float64]
	Direction types.Direction
}

// Classify combines every column with logical AND: the row gets a direction
// only when every column yields the same non-none direction. A column whose
// value is absent fails the row. No specs means no direction.
func Classify(row Row, specs []ColumnSpec) types.Direction {
	result := types.DirectionNone

	for i, spec := range specs {
		value := row.Indicator(spec.Column)
		if value.IsNone() {
			return types.DirectionNone
		}

		direction := spec.Spec.Direction(value.Unwrap())
		if direction == types.DirectionNone {
			return types.DirectionNone
		}

		if i == 0 {
			result = direction

			continue
		}

		if direction != result {
			return types.DirectionNone
		}
	}

	return result
}

// Explain returns the verdict of every column without short-circuiting.
func Explain(row Row, specs []ColumnSpec) []ColumnVerdict {
	verdicts := make([]ColumnVerdict, 0, len(specs))

	for _, spec := range specs {
		value := row.Indicator(spec.Column)

		direction := types.DirectionNone
		if value.IsSome() {
			direction = spec.Spec.Direction(value.Unwrap())
		}

		verdicts = append(verdicts, ColumnVerdict{
			Column:    spec.Column,
			Value:     value,
			Direction: direction,
		})
	}

	return verdicts
}

// ClassifySeries classifies every bar of a series.
func ClassifySeries(bars []types.Bar, specs []ColumnSpec) []types.Direction {
	directions := make([]types.Direction, len(bars))
	for i, bar := range bars {
		directions[i] = Classify(bar, specs)
	}

	return directions
}
