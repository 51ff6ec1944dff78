package classifier

import "github.com/rxtech-lab/argo-range-backtest/internal/types"

// DirectionSpec maps one indicator value to a direction: values in the ask
// interval signal a buy, values in the bid interval signal a sell.
type DirectionSpec struct {
	Ask Interval `yaml:"ask" json:"ask"`
	Bid Interval `yaml:"bid" json:"bid"`
}

// NewDirectionSpec builds a spec from configuration pairs such as
// ask=[0, 100], bid=[0, -100].
func NewDirectionSpec(ask, bid []float64) (DirectionSpec, error) {
	askInterval, err := IntervalFromBounds(ask)
	if err != nil {
		return DirectionSpec{}, err
	}

	bidInterval, err := IntervalFromBounds(bid)
	if err != nil {
		return DirectionSpec{}, err
	}

	return DirectionSpec{Ask: askInterval, Bid: bidInterval}, nil
}

// MirroredSpec uses bucket as the ask interval and its reflection around zero
// as the bid interval.
func MirroredSpec(bucket Interval) DirectionSpec {
	return DirectionSpec{Ask: bucket, Bid: bucket.Mirror()}
}

// Direction classifies a single value. A value inside both intervals (a
// shared boundary such as 0 for [0,100] / [0,-100]) is ambiguous and yields none.
func (s DirectionSpec) Direction(value float64) types.Direction {
	inAsk := s.Ask.Contains(value)
	inBid := s.Bid.Contains(value)

	switch {
	case inAsk && !inBid:
		return types.DirectionBuy
	case inBid && !inAsk:
		return types.DirectionSell
	default:
		return types.DirectionNone
	}
}
