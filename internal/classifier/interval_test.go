package classifier

import (
	"math"
	"testing"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-range-backtest/internal/types"
	"github.com/stretchr/testify/suite"
)

type IntervalTestSuite struct {
	suite.Suite
}

func TestIntervalSuite(t *testing.T) {
	suite.Run(t, new(IntervalTestSuite))
}

func (suite *IntervalTestSuite) TestNormalizesMirroredBounds() {
	interval := NewInterval(0, -100)
	suite.Equal(-100.0, interval.Low)
	suite.Equal(0.0, interval.High)
	suite.True(interval.Contains(-50))
	suite.True(interval.Contains(0))
	suite.True(interval.Contains(-100))
	suite.False(interval.Contains(1))
	suite.Equal("[-100,0]", interval.String())
}

func (suite *IntervalTestSuite) TestEmptyInterval() {
	interval := EmptyInterval()
	suite.True(interval.IsEmpty())
	suite.False(interval.Contains(0))
	suite.False(interval.Overlaps(NewInterval(-1, 1)))
	suite.Equal("[]", interval.String())
	suite.True(interval.Mirror().IsEmpty())
}

func (suite *IntervalTestSuite) TestFromBounds() {
	interval, err := IntervalFromBounds([]float64{80, 100})
	suite.NoError(err)
	suite.Equal(NewInterval(80, 100), interval)

	_, err = IntervalFromBounds([]float64{1})
	suite.Error(err)

	_, err = IntervalFromBounds([]float64{math.NaN(), 1})
	suite.Error(err)
}

func (suite *IntervalTestSuite) TestMirrorAndOverlap() {
	interval := NewInterval(20, 40)
	suite.Equal(NewInterval(-40, -20), interval.Mirror())
	suite.False(interval.Overlaps(interval.Mirror()))
	suite.True(NewInterval(-10, 10).Overlaps(NewInterval(-10, 10).Mirror()))
}

type RangeRuleTestSuite struct {
	suite.Suite
}

func TestRangeRuleSuite(t *testing.T) {
	suite.Run(t, new(RangeRuleTestSuite))
}

func (suite *RangeRuleTestSuite) TestBuckets() {
	rule := RangeRule{Min: 0, Max: 100, Split: 4, Digits: optional.None[int]()}

	suite.Equal([]Interval{
		NewInterval(0, 25),
		NewInterval(25, 50),
		NewInterval(50, 75),
		NewInterval(75, 100),
	}, rule.Buckets())
	suite.Equal(4, rule.BucketCount())
}

func (suite *RangeRuleTestSuite) TestBucketsRoundedToDigits() {
	rule := RangeRule{Min: 0, Max: 100, Split: 3, Digits: optional.Some(1)}

	suite.Equal([]Interval{
		NewInterval(0, 33.3),
		NewInterval(33.3, 66.7),
		NewInterval(66.7, 100),
	}, rule.Buckets())
}

func (suite *RangeRuleTestSuite) TestSplitOneDegeneratesToFullRange() {
	rule := RangeRule{Min: -100, Max: 100, Split: 1, Digits: optional.None[int]()}

	suite.Equal([]Interval{NewInterval(-100, 100)}, rule.Buckets())
	suite.Equal(1, rule.BucketCount())
	suite.Error(rule.Validate())
}

func (suite *RangeRuleTestSuite) TestBucketLookup() {
	rule := RangeRule{Min: 0, Max: 100, Split: 4, Digits: optional.None[int]()}

	suite.Equal(0, rule.Bucket(10))
	suite.Equal(0, rule.Bucket(25), "shared boundary belongs to the first bucket")
	suite.Equal(3, rule.Bucket(100))
	suite.Equal(-1, rule.Bucket(101))
}

func (suite *RangeRuleTestSuite) TestSpecsAreMirrored() {
	rule := RangeRule{Min: 0, Max: 100, Split: 2, Digits: optional.None[int]()}
	specs := rule.Specs()

	suite.Require().Len(specs, 2)
	suite.Equal(NewInterval(0, 50), specs[0].Ask)
	suite.Equal(NewInterval(-50, 0), specs[0].Bid)
	suite.Equal(types.DirectionBuy, specs[1].Direction(60))
	suite.Equal(types.DirectionSell, specs[1].Direction(-60))
	suite.Equal(types.DirectionNone, specs[1].Direction(40))
}

func (suite *RangeRuleTestSuite) TestValidate() {
	suite.NoError(RangeRule{Min: 0, Max: 10, Split: 2}.Validate())
	suite.Error(RangeRule{Min: 10, Max: 10, Split: 2}.Validate())
	suite.Error(RangeRule{Min: 0, Max: 10, Split: 0}.Validate())
	suite.Error(RangeRule{Min: 0, Max: 10, Split: 2, Digits: optional.Some(-1)}.Validate())
}
