package metrics

import (
	"math"
	"testing"
	"time"

	"github.com/quantfold/replay/internal/types"
	"github.com/stretchr/testify/suite"
)

type PerformanceTestSuite struct {
	suite.Suite
}

func TestPerformanceSuite(t *testing.T) {
	suite.Run(t, new(PerformanceTestSuite))
}

func curveOf(values ...float64) []types.EquityPoint {
	curve := make([]types.EquityPoint, len(values))
	for i, v := range values {
		curve[i] = types.EquityPoint{
			Time:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i),
			Value: v,
		}
	}

	return curve
}

func (suite *PerformanceTestSuite) TestDailyReturns() {
	returns := DailyReturns(curveOf(100, 110, 99))
	suite.Require().Len(returns, 2)
	suite.InDelta(0.1, returns[0], 1e-9)
	suite.InDelta(-0.1, returns[1], 1e-9)
}

func (suite *PerformanceTestSuite) TestDailyReturnsTooShort() {
	suite.Nil(DailyReturns(nil))
	suite.Nil(DailyReturns(curveOf(100)))
}

func (suite *PerformanceTestSuite) TestTotalReturn() {
	report := ComputePerformance(curveOf(100000, 105000, 110000), nil, 100000)
	suite.InDelta(0.1, report.TotalReturn, 1e-9)
}

func (suite *PerformanceTestSuite) TestAnnualizedReturn() {
	// 2 trading days over a 10% total return compounds to (1.1)^126 - 1.
	report := ComputePerformance(curveOf(100000, 105000, 110000), nil, 100000)
	expected := math.Pow(1.1, 252.0/2.0) - 1
	suite.InDelta(expected, report.AnnualizedReturn, 1e-6)
}

func (suite *PerformanceTestSuite) TestAnnualizedReturnGuards() {
	suite.Equal(0.0, ComputePerformance(nil, nil, 100000).AnnualizedReturn)
	suite.Equal(0.0, ComputePerformance(curveOf(100000), nil, 100000).AnnualizedReturn)
}

func (suite *PerformanceTestSuite) TestSharpeRatio() {
	// +1% then -1% has mean 0, so Sharpe is 0.
	report := ComputePerformance(curveOf(100, 101, 99.99), nil, 100)
	suite.InDelta(0.0, report.SharpeRatio, 1e-6)

	// Constant equity has zero stddev; report 0, not NaN.
	flat := ComputePerformance(curveOf(100, 100, 100), nil, 100)
	suite.Equal(0.0, flat.SharpeRatio)
	suite.False(math.IsNaN(flat.SharpeRatio))
}

func (suite *PerformanceTestSuite) TestSharpeRatioPositiveDrift() {
	curve := curveOf(100, 102, 103, 105, 106)
	report := ComputePerformance(curve, nil, 100)
	suite.Greater(report.SharpeRatio, 0.0)
}

func (suite *PerformanceTestSuite) TestMaxDrawdownSinglePeakAndTrough() {
	// Peak 120, monotonic decline to trough 90, then recovery.
	curve := curveOf(100, 120, 110, 100, 90, 95, 105)
	suite.InDelta((120.0-90.0)/120.0, MaxDrawdown(curve), 1e-9)
}

func (suite *PerformanceTestSuite) TestMaxDrawdownMonotonicRise() {
	suite.Equal(0.0, MaxDrawdown(curveOf(100, 110, 120)))
}

func (suite *PerformanceTestSuite) TestMaxDrawdownEmpty() {
	suite.Equal(0.0, MaxDrawdown(nil))
}

func (suite *PerformanceTestSuite) TestTradeOutcomes() {
	trades := []types.TradeRecord{
		{Side: types.SideBuy, PnL: 0},
		{Side: types.SideSell, PnL: 100},
		{Side: types.SideBuy, PnL: 0},
		{Side: types.SideSell, PnL: -40},
		{Side: types.SideSell, PnL: 60},
	}

	report := ComputePerformance(curveOf(100, 110), trades, 100)
	suite.Equal(5, report.TotalTrades)
	suite.InDelta(2.0/3.0, report.WinRate, 1e-9)
	suite.InDelta(160.0/40.0, report.ProfitFactor, 1e-9)
}

func (suite *PerformanceTestSuite) TestProfitFactorNoLosers() {
	trades := []types.TradeRecord{
		{Side: types.SideSell, PnL: 100},
	}

	report := ComputePerformance(curveOf(100, 110), trades, 100)
	suite.True(math.IsInf(report.ProfitFactor, 1))
	suite.Equal(1.0, report.WinRate)
}

func (suite *PerformanceTestSuite) TestNoTrades() {
	report := ComputePerformance(curveOf(100, 110), nil, 100)
	suite.Equal(0, report.TotalTrades)
	suite.Equal(0.0, report.WinRate)
	suite.Equal(0.0, report.ProfitFactor)
}
