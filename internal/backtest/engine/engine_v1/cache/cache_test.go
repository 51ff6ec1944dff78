package cache

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/rxtech-lab/argo-range-backtest/internal/types"
	"github.com/stretchr/testify/suite"
)

type CacheTestSuite struct {
	suite.Suite
}

func TestCacheSuite(t *testing.T) {
	suite.Run(t, new(CacheTestSuite))
}

func (suite *CacheTestSuite) TestComputesOncePerKey() {
	c := NewDirectionCache()

	var calls atomic.Int32

	compute := func() []types.Direction {
		calls.Add(1)

		return []types.Direction{types.DirectionBuy, types.DirectionNone}
	}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			directions := c.GetOrCompute("block/a=[0,25]", compute)
			suite.Equal([]types.Direction{types.DirectionBuy, types.DirectionNone}, directions)
		}()
	}

	wg.Wait()

	suite.Equal(int32(1), calls.Load())
	suite.Equal(1, c.Len())
}

func (suite *CacheTestSuite) TestSeparateKeys() {
	c := NewDirectionCache()

	buy := c.GetOrCompute("a", func() []types.Direction { return []types.Direction{types.DirectionBuy} })
	sell := c.GetOrCompute("b", func() []types.Direction { return []types.Direction{types.DirectionSell} })

	suite.Equal(types.DirectionBuy, buy[0])
	suite.Equal(types.DirectionSell, sell[0])
	suite.Equal(2, c.Len())
}

func (suite *CacheTestSuite) TestReset() {
	c := NewDirectionCache()
	c.GetOrCompute("a", func() []types.Direction { return nil })

	c.Reset()

	suite.Equal(0, c.Len())
}
