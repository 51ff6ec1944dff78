package types

import (
	"math"
	"testing"
	"time"

	"github.com/moznion/go-optional"
	"github.com/stretchr/testify/suite"
)

type BarTestSuite struct {
	suite.Suite
}

func TestBarSuite(t *testing.T) {
	suite.Run(t, new(BarTestSuite))
}

func (suite *BarTestSuite) TestNewBar() {
	now := time.Date(2024, 1, 1, 3, 0, 0, 0, time.UTC)
	bar := NewBar(2, now, 100.0, 100.5, 99.5, 100.2, 0.3, map[string]float64{"rci": 50})

	suite.Equal(2, bar.Index)
	suite.Equal(now, bar.Time)
	suite.Equal(Prices{Open: 100.0, High: 100.5, Low: 99.5, Close: 100.2}, bar.Prices())
	suite.Equal(0.3, bar.SpreadOrZero())
	suite.Equal(optional.Some(50.0), bar.Indicator("rci"))
	suite.True(bar.MissingPrice().IsNone())
}

func (suite *BarTestSuite) TestIndicatorAbsent() {
	bar := Bar{Indicators: map[string]optional.Option[float64]{"rci": optional.None[float64]()}}

	suite.True(bar.Indicator("rci").IsNone())
	suite.True(bar.Indicator("unknown").IsNone())
}

func (suite *BarTestSuite) TestMissingPrice() {
	bar := NewBar(0, time.Now(), 1, 1, 1, 1, 0, nil)
	bar.High = optional.None[float64]()

	missing := bar.MissingPrice()
	suite.True(missing.IsSome())
	suite.Equal("high", missing.Unwrap())
}

func (suite *BarTestSuite) TestNonFinitePriceIsMissing() {
	bar := NewBar(0, time.Now(), 1, 1, 1, 1, 0, nil)
	bar.Low = optional.Some(math.NaN())

	missing := bar.MissingPrice()
	suite.True(missing.IsSome())
	suite.Equal("low", missing.Unwrap())

	bar.Low = optional.Some(1.0)
	bar.Close = optional.Some(math.Inf(-1))
	suite.Equal(optional.Some("close"), bar.MissingPrice())
}

func (suite *BarTestSuite) TestSpreadOrZero() {
	bar := Bar{}
	suite.Equal(0.0, bar.SpreadOrZero())

	bar.Spread = optional.Some(math.NaN())
	suite.Equal(0.0, bar.SpreadOrZero())

	bar.Spread = optional.Some(math.Inf(1))
	suite.Equal(0.0, bar.SpreadOrZero())
}

func (suite *BarTestSuite) TestDirection() {
	suite.Equal(DirectionSell, DirectionBuy.Reverse())
	suite.Equal(DirectionBuy, DirectionSell.Reverse())
	suite.Equal(DirectionNone, DirectionNone.Reverse())
	suite.Equal(1, DirectionBuy.Sign())
	suite.Equal(-1, DirectionSell.Sign())
	suite.Equal(0, DirectionNone.Sign())
	suite.True(DirectionBuy.IsTrade())
	suite.False(DirectionNone.IsTrade())
}

func (suite *BarTestSuite) TestPositionStatus() {
	suite.False(PositionStatusOpen.IsClosed())
	suite.False(PositionStatus("").IsClosed())

	for _, status := range AllClosedStatuses {
		suite.True(status.IsClosed(), string(status))
	}

	position := Position{Status: PositionStatusOpen}
	suite.True(position.IsOpen())
	suite.False(position.IsTrailing())

	position.TrailSteps = 1
	suite.True(position.IsTrailing())
}

func (suite *BarTestSuite) TestLedgerTotalPips() {
	ledger := Ledger{{Pips: 10}, {Pips: -4.5}}
	suite.InDelta(5.5, ledger.TotalPips(), 1e-9)
}
