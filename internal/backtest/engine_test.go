package backtest

import (
	"testing"
	"time"

	"github.com/quantfold/replay/internal/logger"
	"github.com/quantfold/replay/internal/pricestore"
	"github.com/quantfold/replay/internal/types"
	"github.com/stretchr/testify/suite"
)

type EngineTestSuite struct {
	suite.Suite
	engine *Engine
	prices *pricestore.Store
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineTestSuite))
}

func testDay(d int) time.Time {
	return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)
}

func (suite *EngineTestSuite) SetupTest() {
	config := DefaultConfig()

	engine, err := NewEngine(config, logger.NewNopLogger())
	suite.Require().NoError(err)
	suite.engine = engine

	suite.prices = pricestore.NewStore()
	suite.prices.Add(
		types.Bar{Symbol: "AAPL", Time: testDay(2), Open: 99.5, High: 101, Low: 99, Close: 100, Volume: 1000000},
		types.Bar{Symbol: "AAPL", Time: testDay(3), Open: 100.5, High: 102, Low: 100, Close: 101, Volume: 1100000},
		types.Bar{Symbol: "AAPL", Time: testDay(4), Open: 101.5, High: 103, Low: 101, Close: 102, Volume: 1200000},
	)
}

func (suite *EngineTestSuite) TestNewEngineRejectsInvalidConfig() {
	config := DefaultConfig()
	config.InitialCash = -1

	_, err := NewEngine(config, nil)
	suite.Error(err)
}

// Pins the documented sizing arithmetic: a trade targeting 10% of cash on a
// bar closing at 100 with 0.1% commission and 0.01% slippage.
func (suite *EngineTestSuite) TestBuyExecution() {
	suite.engine.SetAllocationPolicy(func(confidence float64, cash float64) float64 {
		return 0.1 * cash
	})

	signals := []types.Signal{
		{Time: testDay(2), Symbol: "AAPL", Action: types.SignalActionBuy, Confidence: 0.8},
	}

	suite.Require().NoError(suite.engine.ExecuteTrades(signals, suite.prices))

	trades := suite.engine.Trades()
	suite.Require().Len(trades, 1)

	trade := trades[0]
	suite.Equal(types.SideBuy, trade.Side)
	suite.Equal("AAPL", trade.Symbol)
	suite.Equal(int64(99), trade.Quantity) // floor(10000 / 100.01)
	suite.InDelta(100.01, trade.Price, 1e-9)
	suite.InDelta(99*100.01*0.001, trade.Commission, 1e-9)
	suite.InDelta(99*100*0.0001, trade.SlippageCost, 1e-9)

	expectedCash := 100000 - (99*100.01 + 99*100.01*0.001)
	suite.InDelta(expectedCash, trade.CashAfter, 1e-6)
	suite.InDelta(expectedCash, suite.engine.Ledger().Cash(), 1e-6)

	position, ok := suite.engine.Ledger().Position("AAPL")
	suite.Require().True(ok)
	suite.Equal(int64(99), position.Quantity)
	suite.True(position.CostBasisConsistent(1e-6))
}

func (suite *EngineTestSuite) TestSellExecution() {
	// Pre-existing position: 100 shares at average price 100.
	suite.Require().NoError(suite.engine.Ledger().Accumulate("AAPL", 100, 100.0, 10000))
	cashBefore := suite.engine.Ledger().Cash()

	signals := []types.Signal{
		{Time: testDay(2), Symbol: "AAPL", Action: types.SignalActionSell, Confidence: 0.8},
	}

	suite.Require().NoError(suite.engine.ExecuteTrades(signals, suite.prices))

	trades := suite.engine.Trades()
	suite.Require().Len(trades, 1)

	trade := trades[0]
	suite.Equal(types.SideSell, trade.Side)
	suite.Equal(int64(100), trade.Quantity)
	suite.InDelta(99.99, trade.Price, 1e-9) // 100 * (1 - 0.0001)
	suite.InDelta(100*99.99*0.001, trade.Commission, 1e-9)

	// Proceeds credited net of commission
	expectedProceeds := 100*99.99 - 100*99.99*0.001
	suite.InDelta(cashBefore+expectedProceeds, suite.engine.Ledger().Cash(), 1e-6)
	suite.Greater(suite.engine.Ledger().Cash(), cashBefore)

	// Realized PnL against the pre-sale average price, net of commission
	suite.InDelta((99.99-100.0)*100-9.999, trade.PnL, 1e-6)

	// Position removed from the book
	_, ok := suite.engine.Ledger().Position("AAPL")
	suite.False(ok)
}

func (suite *EngineTestSuite) TestHoldIsIdempotent() {
	signals := []types.Signal{
		{Time: testDay(2), Symbol: "AAPL", Action: types.SignalActionHold, Confidence: 0.9},
		{Time: testDay(3), Symbol: "AAPL", Action: types.SignalActionHold, Confidence: 0.9},
	}

	suite.Require().NoError(suite.engine.ExecuteTrades(signals, suite.prices))

	suite.Empty(suite.engine.Trades())
	suite.Equal(100000.0, suite.engine.Ledger().Cash())
	suite.Empty(suite.engine.Ledger().Positions())
}

func (suite *EngineTestSuite) TestConfidenceThreshold() {
	config := DefaultConfig()
	config.MinConfidence = 0.5

	engine, err := NewEngine(config, logger.NewNopLogger())
	suite.Require().NoError(err)

	signals := []types.Signal{
		{Time: testDay(2), Symbol: "AAPL", Action: types.SignalActionBuy, Confidence: 0.4},
	}

	suite.Require().NoError(engine.ExecuteTrades(signals, suite.prices))
	suite.Empty(engine.Trades())
	suite.Equal(100000.0, engine.Ledger().Cash())
}

func (suite *EngineTestSuite) TestMissingPriceBarSkipsSignal() {
	signals := []types.Signal{
		{Time: testDay(20), Symbol: "AAPL", Action: types.SignalActionBuy, Confidence: 0.9},
		{Time: testDay(2), Symbol: "MSFT", Action: types.SignalActionBuy, Confidence: 0.9},
	}

	suite.Require().NoError(suite.engine.ExecuteTrades(signals, suite.prices))
	suite.Empty(suite.engine.Trades())
	suite.Equal(100000.0, suite.engine.Ledger().Cash())
}

func (suite *EngineTestSuite) TestMalformedSignalSkippedStreamContinues() {
	signals := []types.Signal{
		{Time: testDay(2), Symbol: "", Action: types.SignalActionBuy, Confidence: 0.9},
		{Time: testDay(2), Symbol: "AAPL", Action: types.SignalAction("short"), Confidence: 0.9},
		{Time: testDay(2), Symbol: "AAPL", Action: types.SignalActionBuy, Confidence: 0.9},
	}

	suite.Require().NoError(suite.engine.ExecuteTrades(signals, suite.prices))
	suite.Len(suite.engine.Trades(), 1)
}

func (suite *EngineTestSuite) TestEmptyInputs() {
	empty := pricestore.NewStore()
	suite.Require().NoError(suite.engine.ExecuteTrades(nil, empty))
	suite.Empty(suite.engine.Trades())

	suite.Require().NoError(suite.engine.Run(nil, empty))
	suite.Empty(suite.engine.EquityCurve())
}

func (suite *EngineTestSuite) TestSellWithoutPositionRejected() {
	signals := []types.Signal{
		{Time: testDay(2), Symbol: "AAPL", Action: types.SignalActionSell, Confidence: 0.9},
	}

	suite.Require().NoError(suite.engine.ExecuteTrades(signals, suite.prices))
	suite.Empty(suite.engine.Trades())
	suite.Equal(100000.0, suite.engine.Ledger().Cash())
}

// Same-day duplicates execute independently in arrival order: the second buy
// adds to the position the first created, the second sell of a closed
// position is rejected.
func (suite *EngineTestSuite) TestDuplicateSignalsSameDay() {
	signals := []types.Signal{
		{Time: testDay(2), Symbol: "AAPL", Action: types.SignalActionBuy, Confidence: 0.8},
		{Time: testDay(2), Symbol: "AAPL", Action: types.SignalActionBuy, Confidence: 0.8},
		{Time: testDay(2), Symbol: "AAPL", Action: types.SignalActionSell, Confidence: 0.8},
		{Time: testDay(2), Symbol: "AAPL", Action: types.SignalActionSell, Confidence: 0.8},
	}

	suite.Require().NoError(suite.engine.ExecuteTrades(signals, suite.prices))

	trades := suite.engine.Trades()
	suite.Require().Len(trades, 3)
	suite.Equal(types.SideBuy, trades[0].Side)
	suite.Equal(types.SideBuy, trades[1].Side)
	suite.Equal(types.SideSell, trades[2].Side)

	// The sell closed the combined quantity of both buys.
	suite.Equal(trades[0].Quantity+trades[1].Quantity, trades[2].Quantity)

	_, ok := suite.engine.Ledger().Position("AAPL")
	suite.False(ok)
}

// Cash conservation: every record's CashAfter follows from the previous
// balance plus or minus notional and commission, and never goes negative.
func (suite *EngineTestSuite) TestCashConservation() {
	signals := []types.Signal{
		{Time: testDay(2), Symbol: "AAPL", Action: types.SignalActionBuy, Confidence: 1.0},
		{Time: testDay(3), Symbol: "AAPL", Action: types.SignalActionBuy, Confidence: 0.5},
		{Time: testDay(4), Symbol: "AAPL", Action: types.SignalActionSell, Confidence: 1.0},
	}

	suite.Require().NoError(suite.engine.ExecuteTrades(signals, suite.prices))

	cash := 100000.0

	for _, trade := range suite.engine.Trades() {
		notional := float64(trade.Quantity) * trade.Price

		switch trade.Side {
		case types.SideBuy:
			cash -= notional + trade.Commission
		case types.SideSell:
			cash += notional - trade.Commission
		}

		suite.InDelta(cash, trade.CashAfter, 1e-6)
		suite.GreaterOrEqual(trade.CashAfter, 0.0)
	}

	suite.InDelta(cash, suite.engine.Ledger().Cash(), 1e-6)
}

// Cost-basis invariant: repeated buys without sells keep
// total_cost == quantity * average_price within 1e-6 relative tolerance.
func (suite *EngineTestSuite) TestCostBasisInvariantAcrossBuys() {
	signals := []types.Signal{
		{Time: testDay(2), Symbol: "AAPL", Action: types.SignalActionBuy, Confidence: 0.8},
		{Time: testDay(3), Symbol: "AAPL", Action: types.SignalActionBuy, Confidence: 0.6},
		{Time: testDay(4), Symbol: "AAPL", Action: types.SignalActionBuy, Confidence: 0.9},
	}

	suite.Require().NoError(suite.engine.ExecuteTrades(signals, suite.prices))
	suite.Require().Len(suite.engine.Trades(), 3)

	position, ok := suite.engine.Ledger().Position("AAPL")
	suite.Require().True(ok)
	suite.True(position.CostBasisConsistent(1e-6))
}

func (suite *EngineTestSuite) TestInsufficientCashRejected() {
	config := DefaultConfig()
	config.InitialCash = 50 // less than one share at 100.01

	engine, err := NewEngine(config, logger.NewNopLogger())
	suite.Require().NoError(err)
	engine.SetAllocationPolicy(func(confidence float64, cash float64) float64 {
		return cash
	})

	signals := []types.Signal{
		{Time: testDay(2), Symbol: "AAPL", Action: types.SignalActionBuy, Confidence: 1.0},
	}

	suite.Require().NoError(engine.ExecuteTrades(signals, suite.prices))
	suite.Empty(engine.Trades())
	suite.Equal(50.0, engine.Ledger().Cash())
}

func (suite *EngineTestSuite) TestObserverNotified() {
	observer := &recordingObserver{}
	suite.engine.SetObserver(observer)

	signals := []types.Signal{
		{Time: testDay(2), Symbol: "AAPL", Action: types.SignalActionBuy, Confidence: 0.8},
	}

	suite.Require().NoError(suite.engine.Run(signals, suite.prices))
	suite.Equal(1, observer.trades)
	suite.Equal(3, observer.valuations) // one per bar date
}

type recordingObserver struct {
	trades     int
	valuations int
}

func (o *recordingObserver) OnTrade(types.TradeRecord) {
	o.trades++
}

func (o *recordingObserver) OnValuation(types.EquityPoint) {
	o.valuations++
}
