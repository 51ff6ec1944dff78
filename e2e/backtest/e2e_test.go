package backtest

import (
	"testing"

	"github.com/rxtech-lab/argo-range-backtest/e2e/backtest/testhelper"
	"github.com/rxtech-lab/argo-range-backtest/internal/types"
	"github.com/rxtech-lab/argo-range-backtest/mocks"
	"github.com/stretchr/testify/suite"
)

const e2eConfig = `
symbols: [USDJPY]
timeframes: [5m]
technical_indicator: sma
pip: 0.01
trail_stop: true
position_count: 2
workers: 4
profit_loss:
  min: 10
  max: 20
  increase: 10
direction_parameters:
  - name: trend
    ranges:
      sma_diff:
        range:
          min: 0
          max: 60
          split: 3
  - name: reversal
    ranges:
      sma_diff:
        direction:
          ask: [5, 1000]
          bid: [-5, -1000]
`

// 3 buckets x 4 levels + 1 direction x 4 levels
const e2ePoints = 16

type BacktestE2ETestSuite struct {
	testhelper.E2ETestSuite
	bars     []types.Bar
	dataPath string
}

func TestBacktestE2ETestSuite(t *testing.T) {
	suite.Run(t, new(BacktestE2ETestSuite))
}

func (s *BacktestE2ETestSuite) SetupTest() {
	s.E2ETestSuite.SetupTest(e2eConfig)

	config := mocks.DefaultConfig()
	config.Count = 2000
	config.Volatility = 0.001
	s.bars = mocks.NewDataGenerator(11).Generate(config)
	s.dataPath = testhelper.WriteBars(&s.E2ETestSuite, s.T().TempDir(), "USDJPY_5m.parquet", s.bars, []string{"sma_diff"})
}

func (s *BacktestE2ETestSuite) TestReportMatchesLedger() {
	resultPath := testhelper.RunBacktest(&s.E2ETestSuite, s.dataPath)

	report := testhelper.ReadReport(&s.E2ETestSuite, resultPath)
	s.Equal(len(s.bars), report.BarCount)
	s.Equal(0, report.SkippedRows)
	s.Require().Len(report.Records, e2ePoints)
	s.Require().NotNil(report.Best)
	s.Equal(report.Records[0].Key, report.Best.Key)

	rows, err := testhelper.ReadLedger(&s.E2ETestSuite, resultPath)
	s.Require().NoError(err)

	counts := make(map[string]int)
	pips := make(map[string]float64)

	for _, row := range rows {
		s.NotEqual(string(types.PositionStatusOpen), row.Status)
		counts[row.Key]++
		pips[row.Key] += row.Pips
	}

	total := 0

	for _, record := range report.Records {
		s.Equal(record.TotalCount, counts[record.Key], record.Key)
		s.InDelta(record.NetPips, pips[record.Key], 1e-6, record.Key)
		s.Equal(record.TotalCount, record.WinCount+record.LossCount)
		total += record.TotalCount
	}

	s.Len(rows, total)
	s.Greater(total, 0)
}

func (s *BacktestE2ETestSuite) TestBreakdownOfBest() {
	resultPath := testhelper.RunBacktest(&s.E2ETestSuite, s.dataPath)

	report := testhelper.ReadReport(&s.E2ETestSuite, resultPath)
	breakdown := testhelper.ReadBreakdown(&s.E2ETestSuite, resultPath)
	s.Equal(report.Best.Key, breakdown.Key)

	for _, period := range types.AllPeriods {
		count := 0
		net := 0.0

		for _, row := range breakdown.Periods[period] {
			count += row.TotalCount
			net += row.NetPips
		}

		s.Equal(report.Best.TotalCount, count, string(period))
		s.InDelta(report.Best.NetPips, net, 1e-6, string(period))
	}
}

func (s *BacktestE2ETestSuite) TestParquetAndCSVAgree() {
	parquetReport := testhelper.ReadReport(&s.E2ETestSuite, testhelper.RunBacktest(&s.E2ETestSuite, s.dataPath))

	csvPath, err := testhelper.ConvertToCSV(s.dataPath)
	s.Require().NoError(err)

	csvReport := testhelper.ReadReport(&s.E2ETestSuite, testhelper.RunBacktest(&s.E2ETestSuite, csvPath))
	s.Require().Len(csvReport.Records, len(parquetReport.Records))

	for i, record := range parquetReport.Records {
		s.Equal(record.Key, csvReport.Records[i].Key)
		s.Equal(record.TotalCount, csvReport.Records[i].TotalCount)
		s.InDelta(record.NetPips, csvReport.Records[i].NetPips, 1e-6)
	}
}
