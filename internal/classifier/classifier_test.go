package classifier

import (
	"math"
	"testing"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-range-backtest/internal/types"
	"github.com/stretchr/testify/suite"
)

type ClassifierTestSuite struct {
	suite.Suite
	spec DirectionSpec
}

func TestClassifierSuite(t *testing.T) {
	suite.Run(t, new(ClassifierTestSuite))
}

func (suite *ClassifierTestSuite) SetupTest() {
	spec, err := NewDirectionSpec([]float64{0, 100}, []float64{0, -100})
	suite.Require().NoError(err)
	suite.spec = spec
}

func row(values map[string]float64) types.Bar {
	return types.NewBar(0, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), 1, 1, 1, 1, 0, values)
}

func (suite *ClassifierTestSuite) TestSingleColumn() {
	specs := []ColumnSpec{{Column: "rci", Spec: suite.spec}}

	tests := []struct {
		name     string
		value    float64
		expected types.Direction
	}{
		{name: "inside ask interval", value: 50, expected: types.DirectionBuy},
		{name: "inside mirrored bid interval", value: -50, expected: types.DirectionSell},
		{name: "outside both intervals", value: 150, expected: types.DirectionNone},
		{name: "below both intervals", value: -150, expected: types.DirectionNone},
		{name: "ask upper bound is inclusive", value: 100, expected: types.DirectionBuy},
		{name: "bid lower bound is inclusive", value: -100, expected: types.DirectionSell},
		{name: "shared boundary is ambiguous", value: 0, expected: types.DirectionNone},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			suite.Equal(tc.expected, Classify(row(map[string]float64{"rci": tc.value}), specs))
		})
	}
}

func (suite *ClassifierTestSuite) TestAllColumnsMustAgree() {
	specs := []ColumnSpec{
		{Column: "period_34_shift_diff_under", Spec: suite.spec},
		{Column: "period_144_shift_diff_top", Spec: suite.spec},
	}

	suite.Equal(types.DirectionBuy, Classify(row(map[string]float64{
		"period_34_shift_diff_under": 50,
		"period_144_shift_diff_top":  20,
	}), specs))

	suite.Equal(types.DirectionSell, Classify(row(map[string]float64{
		"period_34_shift_diff_under": -50,
		"period_144_shift_diff_top":  -20,
	}), specs))

	suite.Equal(types.DirectionNone, Classify(row(map[string]float64{
		"period_34_shift_diff_under": 50,
		"period_144_shift_diff_top":  -50,
	}), specs), "conflicting columns")

	suite.Equal(types.DirectionNone, Classify(row(map[string]float64{
		"period_34_shift_diff_under": 50,
		"period_144_shift_diff_top":  150,
	}), specs), "one column outside")
}

func (suite *ClassifierTestSuite) TestAbsentValueFails() {
	specs := []ColumnSpec{
		{Column: "a", Spec: suite.spec},
		{Column: "b", Spec: suite.spec},
	}

	bar := row(map[string]float64{"a": 50})
	suite.Equal(types.DirectionNone, Classify(bar, specs), "missing column")

	bar.Indicators["b"] = optional.None[float64]()
	suite.Equal(types.DirectionNone, Classify(bar, specs), "null cell")
}

func (suite *ClassifierTestSuite) TestNaNNeverMatches() {
	specs := []ColumnSpec{{Column: "a", Spec: suite.spec}}
	suite.Equal(types.DirectionNone, Classify(row(map[string]float64{"a": math.NaN()}), specs))
}

func (suite *ClassifierTestSuite) TestNoSpecs() {
	suite.Equal(types.DirectionNone, Classify(row(map[string]float64{"a": 50}), nil))
}

func (suite *ClassifierTestSuite) TestExplain() {
	specs := []ColumnSpec{
		{Column: "a", Spec: suite.spec},
		{Column: "b", Spec: suite.spec},
		{Column: "c", Spec: suite.spec},
	}

	verdicts := Explain(row(map[string]float64{"a": 50, "b": -50}), specs)
	suite.Require().Len(verdicts, 3)
	suite.Equal(types.DirectionBuy, verdicts[0].Direction)
	suite.Equal(types.DirectionSell, verdicts[1].Direction)
	suite.Equal(types.DirectionNone, verdicts[2].Direction)
	suite.True(verdicts[2].Value.IsNone())
}

func (suite *ClassifierTestSuite) TestClassifySeries() {
	specs := []ColumnSpec{{Column: "a", Spec: suite.spec}}
	bars := []types.Bar{
		row(map[string]float64{"a": 50}),
		row(map[string]float64{"a": -50}),
		row(map[string]float64{}),
	}

	suite.Equal([]types.Direction{types.DirectionBuy, types.DirectionSell, types.DirectionNone}, ClassifySeries(bars, specs))
}
