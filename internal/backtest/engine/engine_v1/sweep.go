package engine

import (
	"fmt"
	"iter"
	"strings"

	"github.com/rxtech-lab/argo-range-backtest/internal/classifier"
	"github.com/rxtech-lab/argo-range-backtest/internal/types"
	"github.com/rxtech-lab/argo-range-backtest/pkg/errors"
)

// ColumnSelection is the rule a point applies to one active column.
type ColumnSelection struct {
	Column string
	// Swept is false for columns with a fixed direction.
	Swept bool
	// Bucket is the bucket index of a swept column, -1 otherwise.
	Bucket   int
	Interval classifier.Interval
	Spec     classifier.DirectionSpec
}

// Point is one configuration of the sweep.
type Point struct {
	Index     int
	Key       string
	Block     int
	BlockName string
	Columns   []ColumnSelection
	// Profit and Loss are in pips.
	Profit float64
	Loss   float64
}

// Specs returns the classifier specs of the point in column order.
func (p Point) Specs() []classifier.ColumnSpec {
	specs := make([]classifier.ColumnSpec, len(p.Columns))
	for i, column := range p.Columns {
		specs[i] = classifier.ColumnSpec{Column: column.Column, Spec: column.Spec}
	}

	return specs
}

// Ranges returns the bucket chosen for every swept column.
func (p Point) Ranges() []types.RangeSelection {
	var ranges []types.RangeSelection

	for _, column := range p.Columns {
		if !column.Swept {
			continue
		}

		ranges = append(ranges, types.RangeSelection{
			Column: column.Column,
			Bucket: column.Bucket,
			Low:    column.Interval.Low,
			High:   column.Interval.High,
		})
	}

	return ranges
}

type sweepColumn struct {
	name    string
	fixed   classifier.DirectionSpec
	buckets []classifier.Interval
}

func (c sweepColumn) size() int {
	if len(c.buckets) == 0 {
		return 1
	}

	return len(c.buckets)
}

type sweepBlock struct {
	name    string
	columns []sweepColumn
	// combos is the number of bucket combinations of the block.
	combos int
	offset int
}

// Sweep enumerates every configuration point lazily. Points are addressed by
// index, so any point can be rebuilt without walking the ones before it.
type Sweep struct {
	blocks    []sweepBlock
	profits   []float64
	losses    []float64
	symmetric bool
	total     int
}

// NewSweep builds the enumeration for a validated configuration.
func NewSweep(config BacktestEngineV1Config) (*Sweep, error) {
	levels := config.ProfitLoss.Levels()

	sweep := &Sweep{
		profits:   levels,
		losses:    levels,
		symmetric: config.ProfitLoss.Symmetric,
	}

	for _, parameter := range config.DirectionParameters {
		block := sweepBlock{name: parameter.Name, combos: 1, offset: sweep.total}

		for _, name := range parameter.ActiveColumns(config.Timeframes) {
			columnRange, ok := parameter.Ranges[name]
			if !ok {
				return nil, errors.NewConfigurationError(errors.ErrCodeMissingDirection, "direction_parameters["+parameter.Name+"].ranges."+name, nil, "selected column has no ranges entry")
			}

			column := sweepColumn{name: name}

			switch {
			case columnRange.Range != nil:
				column.buckets = columnRange.Range.Rule().Buckets()
			case columnRange.Direction != nil:
				spec, err := columnRange.Direction.Spec()
				if err != nil {
					return nil, errors.NewConfigurationError(errors.ErrCodeInvalidRange, "direction_parameters["+parameter.Name+"].ranges."+name+".direction", *columnRange.Direction, err.Error())
				}

				column.fixed = spec
			default:
				return nil, errors.NewConfigurationError(errors.ErrCodeMissingDirection, "direction_parameters["+parameter.Name+"].ranges."+name, nil, "either direction or range is required")
			}

			block.columns = append(block.columns, column)
			block.combos *= column.size()
		}

		sweep.blocks = append(sweep.blocks, block)
		sweep.total += block.combos * sweep.levelPairs()
	}

	return sweep, nil
}

func (s *Sweep) levelPairs() int {
	if s.symmetric {
		return len(s.profits)
	}

	return len(s.profits) * len(s.losses)
}

// Len returns the number of points.
func (s *Sweep) Len() int {
	return s.total
}

// At decodes the point at index. Loss varies fastest, then profit, then the
// buckets of the columns from last to first, then the block.
func (s *Sweep) At(index int) (Point, error) {
	if index < 0 || index >= s.total {
		return Point{}, errors.Newf(errors.ErrCodeInvalidParameter, "sweep index %d out of range [0,%d)", index, s.total)
	}

	blockIndex := len(s.blocks) - 1
	for i := range s.blocks {
		if i+1 < len(s.blocks) && index < s.blocks[i+1].offset {
			blockIndex = i

			break
		}
	}

	block := s.blocks[blockIndex]
	local := index - block.offset

	pairs := s.levelPairs()
	pair := local % pairs
	combo := local / pairs

	point := Point{
		Index:     index,
		Block:     blockIndex,
		BlockName: block.name,
		Columns:   make([]ColumnSelection, len(block.columns)),
	}

	if s.symmetric {
		point.Profit = s.profits[pair]
		point.Loss = s.losses[pair]
	} else {
		point.Profit = s.profits[pair/len(s.losses)]
		point.Loss = s.losses[pair%len(s.losses)]
	}

	for i := len(block.columns) - 1; i >= 0; i-- {
		column := block.columns[i]
		size := column.size()
		bucket := combo % size
		combo /= size

		if len(column.buckets) == 0 {
			point.Columns[i] = ColumnSelection{
				Column: column.name,
				Bucket: -1,
				Spec:   column.fixed,
			}

			continue
		}

		interval := column.buckets[bucket]
		point.Columns[i] = ColumnSelection{
			Column:   column.name,
			Swept:    true,
			Bucket:   bucket,
			Interval: interval,
			Spec:     classifier.MirroredSpec(interval),
		}
	}

	point.Key = pointKey(point)

	return point, nil
}

// All yields every point in index order. The sequence can be iterated any number of times.
func (s *Sweep) All() iter.Seq2[int, Point] {
	return func(yield func(int, Point) bool) {
		for i := 0; i < s.total; i++ {
			point, err := s.At(i)
			if err != nil {
				return
			}

			if !yield(i, point) {
				return
			}
		}
	}
}

// DirectionKey identifies the column rules of the point. Points sharing it
// produce the same direction series. The bucket index keeps keys unique when
// rounding collapses neighbouring buckets onto the same interval.
func (p Point) DirectionKey() string {
	parts := []string{p.BlockName}

	for _, column := range p.Columns {
		if column.Swept {
			parts = append(parts, fmt.Sprintf("%s#%d=%s", column.Column, column.Bucket, column.Interval))
		}
	}

	return strings.Join(parts, "/")
}

func pointKey(point Point) string {
	return fmt.Sprintf("%s/p=%g/l=%g", point.DirectionKey(), point.Profit, point.Loss)
}
