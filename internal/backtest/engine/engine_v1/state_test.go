package engine

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rxtech-lab/argo-range-backtest/internal/logger"
	"github.com/rxtech-lab/argo-range-backtest/internal/types"
	"github.com/stretchr/testify/suite"
)

type LedgerStoreTestSuite struct {
	suite.Suite
	store *LedgerStore
}

func TestLedgerStoreSuite(t *testing.T) {
	suite.Run(t, new(LedgerStoreTestSuite))
}

func (suite *LedgerStoreTestSuite) SetupTest() {
	store, err := NewLedgerStore(logger.NewNopLogger())
	suite.Require().NoError(err)
	suite.Require().NoError(store.Initialize())
	suite.store = store
}

func (suite *LedgerStoreTestSuite) TearDownTest() {
	suite.store.Close()
}

func testLedger(size int) types.Ledger {
	start := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)
	ledger := make(types.Ledger, size)

	for i := range ledger {
		ledger[i] = types.Position{
			ID:          i + 1,
			Direction:   types.DirectionBuy,
			EntryPrice:  100,
			EntryTime:   start.Add(time.Duration(i) * time.Hour),
			EntryIndex:  i * 12,
			Spread:      0.3,
			TargetPrice: 100.1,
			StopPrice:   99.9,
			TrailPrice:  99.9,
			Status:      types.PositionStatusClosedTarget,
			ExitPrice:   100.1,
			ExitTime:    start.Add(time.Duration(i)*time.Hour + 30*time.Minute),
			ExitIndex:   i*12 + 6,
			Pips:        10,
			Result:      0.1,
		}
	}

	return ledger
}

func (suite *LedgerStoreTestSuite) TestAppendAndRead() {
	ledger := testLedger(3)
	ledger[1].Direction = types.DirectionSell
	ledger[1].Status = types.PositionStatusClosedTrail
	ledger[1].TrailSteps = 2

	suite.Require().NoError(suite.store.Append("a", 0, ledger))
	suite.Require().NoError(suite.store.Append("b", 1, testLedger(2)))

	count, err := suite.store.Count()
	suite.Require().NoError(err)
	suite.Equal(5, count)

	read, err := suite.store.Ledger(0)
	suite.Require().NoError(err)
	suite.Require().Len(read, 3)

	for i := range ledger {
		suite.Equal(ledger[i].ID, read[i].ID)
		suite.Equal(ledger[i].Direction, read[i].Direction)
		suite.Equal(ledger[i].Status, read[i].Status)
		suite.Equal(ledger[i].TrailSteps, read[i].TrailSteps)
		suite.Equal(ledger[i].ExitIndex, read[i].ExitIndex)
		suite.InDelta(ledger[i].Pips, read[i].Pips, 1e-9)
		suite.True(ledger[i].EntryTime.Equal(read[i].EntryTime))
		suite.True(ledger[i].ExitTime.Equal(read[i].ExitTime))
	}
}

func (suite *LedgerStoreTestSuite) TestLedgerIsReadByPointIndex() {
	suite.Require().NoError(suite.store.Append("same", 0, testLedger(3)))
	suite.Require().NoError(suite.store.Append("same", 1, testLedger(2)))

	first, err := suite.store.Ledger(0)
	suite.Require().NoError(err)
	suite.Len(first, 3)

	second, err := suite.store.Ledger(1)
	suite.Require().NoError(err)
	suite.Len(second, 2)
}

func (suite *LedgerStoreTestSuite) TestEmptyLedger() {
	suite.Require().NoError(suite.store.Append("empty", 0, nil))

	count, err := suite.store.Count()
	suite.Require().NoError(err)
	suite.Zero(count)

	read, err := suite.store.Ledger(0)
	suite.Require().NoError(err)
	suite.Empty(read)
}

func (suite *LedgerStoreTestSuite) TestLargeLedgerIsBatched() {
	suite.Require().NoError(suite.store.Append("large", 0, testLedger(1234)))

	read, err := suite.store.Ledger(0)
	suite.Require().NoError(err)
	suite.Require().Len(read, 1234)
	suite.Equal(1234, read[1233].ID)
}

func (suite *LedgerStoreTestSuite) TestConcurrentAppend() {
	var wg sync.WaitGroup

	for i := range 8 {
		wg.Add(1)

		go func() {
			defer wg.Done()
			suite.NoError(suite.store.Append(fmt.Sprintf("point-%d", i), i, testLedger(10)))
		}()
	}

	wg.Wait()

	count, err := suite.store.Count()
	suite.Require().NoError(err)
	suite.Equal(80, count)
}

func (suite *LedgerStoreTestSuite) TestCleanup() {
	suite.Require().NoError(suite.store.Append("a", 0, testLedger(3)))
	suite.Require().NoError(suite.store.Cleanup())

	count, err := suite.store.Count()
	suite.Require().NoError(err)
	suite.Zero(count)
}

func (suite *LedgerStoreTestSuite) TestWriteParquet() {
	suite.Require().NoError(suite.store.Append("b", 1, testLedger(2)))
	suite.Require().NoError(suite.store.Append("a", 0, testLedger(3)))

	dir := filepath.Join(suite.T().TempDir(), "nested")

	path, err := suite.store.Write(dir)
	suite.Require().NoError(err)
	suite.Equal(filepath.Join(dir, LedgerFileName), path)
	suite.FileExists(path)

	db, err := sql.Open("duckdb", "")
	suite.Require().NoError(err)
	defer db.Close()

	rows, err := db.Query(fmt.Sprintf("SELECT config_key, seq FROM read_parquet('%s')", path))
	suite.Require().NoError(err)
	defer rows.Close()

	var keys []string

	for rows.Next() {
		var (
			key string
			seq int
		)

		suite.Require().NoError(rows.Scan(&key, &seq))
		keys = append(keys, fmt.Sprintf("%s/%d", key, seq))
	}

	suite.Require().NoError(rows.Err())
	suite.Equal([]string{"a/0", "a/1", "a/2", "b/0", "b/1"}, keys)
}
