package datasource

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rxtech-lab/argo-range-backtest/internal/logger"
	"github.com/rxtech-lab/argo-range-backtest/pkg/errors"
	"github.com/stretchr/testify/suite"
)

// DuckDBTestSuite is a test suite for DuckDBDataSource
type DuckDBTestSuite struct {
	suite.Suite
	ds     DataSource
	logger *logger.Logger
	dir    string
}

// SetupSuite runs once before all tests in the suite
func (suite *DuckDBTestSuite) SetupSuite() {
	suite.logger = logger.NewNopLogger()
}

// SetupTest runs before each test
func (suite *DuckDBTestSuite) SetupTest() {
	ds, err := NewDataSource(":memory:", suite.logger)
	suite.Require().NoError(err)

	suite.ds = ds
	suite.dir = suite.T().TempDir()
}

// TearDownTest runs after each test
func (suite *DuckDBTestSuite) TearDownTest() {
	if suite.ds != nil {
		suite.ds.Close()
		suite.ds = nil
	}
}

func TestDuckDBTestSuite(t *testing.T) {
	suite.Run(t, new(DuckDBTestSuite))
}

func (suite *DuckDBTestSuite) writeCSV(name string, lines ...string) string {
	path := filepath.Join(suite.dir, name)
	suite.Require().NoError(os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0644))

	return path
}

const csvHeader = "time,open,high,low,close,spread,sma_diff"

func (suite *DuckDBTestSuite) TestInitializeAndCount() {
	path := suite.writeCSV("bars.csv",
		csvHeader,
		"2024-01-01 00:00:00,100.0,100.2,99.9,100.1,0.2,10",
		"2024-01-01 00:05:00,100.1,100.3,100.0,100.2,0.3,20",
		"2024-01-01 00:10:00,100.2,100.4,100.1,100.3,0.1,30",
	)

	suite.Require().NoError(suite.ds.Initialize(path))

	count, err := suite.ds.Count()
	suite.Require().NoError(err)
	suite.Equal(3, count)

	columns, err := suite.ds.Columns()
	suite.Require().NoError(err)
	suite.Equal([]string{"time", "open", "high", "low", "close", "spread", "sma_diff"}, columns)
}

func (suite *DuckDBTestSuite) TestInitializeUnsupportedExtension() {
	err := suite.ds.Initialize(filepath.Join(suite.dir, "bars.json"))
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeDataSourceUnavailable))
}

func (suite *DuckDBTestSuite) TestInitializeMissingFile() {
	err := suite.ds.Initialize(filepath.Join(suite.dir, "missing.csv"))
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeDataSourceUnavailable))
}

func (suite *DuckDBTestSuite) TestReadAll() {
	path := suite.writeCSV("bars.csv",
		csvHeader,
		"2024-01-01 00:00:00,100.0,100.2,99.9,100.1,0.2,10",
		"2024-01-01 00:05:00,100.1,,100.0,100.2,0.3,",
	)
	suite.Require().NoError(suite.ds.Initialize(path))

	bars, err := LoadBars(suite.ds, DefaultColumnMapping(), []string{"sma_diff"})
	suite.Require().NoError(err)
	suite.Require().Len(bars, 2)

	first := bars[0]
	suite.Equal(0, first.Index)
	suite.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), first.Time.UTC())
	suite.InDelta(100.0, first.Open.Unwrap(), 1e-9)
	suite.InDelta(100.2, first.High.Unwrap(), 1e-9)
	suite.InDelta(99.9, first.Low.Unwrap(), 1e-9)
	suite.InDelta(100.1, first.Close.Unwrap(), 1e-9)
	suite.InDelta(0.2, first.Spread.Unwrap(), 1e-9)
	suite.InDelta(10.0, first.Indicator("sma_diff").Unwrap(), 1e-9)

	second := bars[1]
	suite.Equal(1, second.Index)
	suite.True(second.High.IsNone())
	suite.Equal("high", second.MissingPrice().Unwrap())
	suite.True(second.Indicator("sma_diff").IsNone())
}

func (suite *DuckDBTestSuite) TestReadAllNonFiniteCellsAreAbsent() {
	path := suite.writeCSV("bars.csv",
		csvHeader,
		"2024-01-01 00:00:00,100,100,100,100,0,1",
		"2024-01-01 00:05:00,100,100,NaN,100,inf,NaN",
	)
	suite.Require().NoError(suite.ds.Initialize(path))

	bars, err := LoadBars(suite.ds, DefaultColumnMapping(), []string{"sma_diff"})
	suite.Require().NoError(err)
	suite.Require().Len(bars, 2)

	second := bars[1]
	suite.True(second.Low.IsNone())
	suite.Equal("low", second.MissingPrice().Unwrap())
	suite.True(second.Spread.IsNone())
	suite.True(second.Indicator("sma_diff").IsNone())
}

func (suite *DuckDBTestSuite) TestReadAllCustomMapping() {
	path := suite.writeCSV("bars.csv",
		"ts,o,h,l,c,ind",
		"2024-01-01 00:00:00,1.0,1.2,0.9,1.1,5",
	)
	suite.Require().NoError(suite.ds.Initialize(path))

	mapping := ColumnMapping{Time: "ts", Open: "o", High: "h", Low: "l", Close: "c"}

	bars, err := LoadBars(suite.ds, mapping, []string{"ind"})
	suite.Require().NoError(err)
	suite.Require().Len(bars, 1)
	suite.True(bars[0].Spread.IsNone())
	suite.InDelta(0.0, bars[0].SpreadOrZero(), 1e-9)
	suite.InDelta(1.1, bars[0].Close.Unwrap(), 1e-9)
}

func (suite *DuckDBTestSuite) TestReadAllStopsEarly() {
	path := suite.writeCSV("bars.csv",
		csvHeader,
		"2024-01-01 00:00:00,100.0,100.2,99.9,100.1,0.2,10",
		"2024-01-01 00:05:00,100.1,100.3,100.0,100.2,0.3,20",
	)
	suite.Require().NoError(suite.ds.Initialize(path))

	seen := 0

	for _, err := range suite.ds.ReadAll(DefaultColumnMapping(), nil) {
		suite.Require().NoError(err)

		seen++

		break
	}

	suite.Equal(1, seen)
}

func (suite *DuckDBTestSuite) TestLoadBarsMissingColumn() {
	path := suite.writeCSV("bars.csv",
		csvHeader,
		"2024-01-01 00:00:00,100.0,100.2,99.9,100.1,0.2,10",
	)
	suite.Require().NoError(suite.ds.Initialize(path))

	_, err := LoadBars(suite.ds, DefaultColumnMapping(), []string{"rsi"})
	suite.Require().Error(err)
	suite.True(errors.IsDataQualityError(err))
	suite.True(errors.HasCode(err, errors.ErrCodeMissingColumn))
}

func (suite *DuckDBTestSuite) TestLoadBarsNonMonotonic() {
	path := suite.writeCSV("bars.csv",
		csvHeader,
		"2024-01-01 00:05:00,100.0,100.2,99.9,100.1,0.2,10",
		"2024-01-01 00:00:00,100.1,100.3,100.0,100.2,0.3,20",
	)
	suite.Require().NoError(suite.ds.Initialize(path))

	_, err := LoadBars(suite.ds, DefaultColumnMapping(), nil)
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeNonMonotonicTime))

	var dataErr *errors.DataQualityError
	suite.Require().True(errors.As(err, &dataErr))
	suite.Equal(1, dataErr.Row)
}

func (suite *DuckDBTestSuite) TestLoadBarsDuplicateTimestamp() {
	path := suite.writeCSV("bars.csv",
		csvHeader,
		"2024-01-01 00:00:00,100.0,100.2,99.9,100.1,0.2,10",
		"2024-01-01 00:05:00,100.1,100.3,100.0,100.2,0.3,20",
		"2024-01-01 00:05:00,100.1,100.3,100.0,100.2,0.3,20",
	)
	suite.Require().NoError(suite.ds.Initialize(path))

	_, err := LoadBars(suite.ds, DefaultColumnMapping(), nil)
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeDuplicateTimestamp))
}

func (suite *DuckDBTestSuite) TestLoadBarsEmpty() {
	path := suite.writeCSV("bars.csv", csvHeader)
	suite.Require().NoError(suite.ds.Initialize(path))

	_, err := LoadBars(suite.ds, DefaultColumnMapping(), nil)
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeEmptySeries))
}

func (suite *DuckDBTestSuite) TestColumnMappingDefaults() {
	mapping := ColumnMapping{Close: "mid"}.WithDefaults()
	suite.Equal("time", mapping.Time)
	suite.Equal("mid", mapping.Close)
	suite.Equal("", mapping.Spread)
	suite.Equal([]string{"time", "open", "high", "low", "mid"}, mapping.Required())
}
