// Package metrics computes performance and risk statistics from a backtest's
// equity curve and trade log. Every degenerate input (too few points, zero
// variance, no losing trades) maps to a documented fallback value instead of
// an error.
package metrics

import (
	"math"

	"github.com/quantfold/replay/internal/types"
)

// tradingDaysPerYear is the annualization base for daily series.
const tradingDaysPerYear = 252

// DailyReturns derives the simple daily return series r_t = v_t/v_{t-1} - 1
// from an equity curve. Points with a non-positive previous value are skipped.
func DailyReturns(curve []types.EquityPoint) []float64 {
	if len(curve) < 2 {
		return nil
	}

	returns := make([]float64, 0, len(curve)-1)

	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].Value
		if prev <= 0 {
			continue
		}

		returns = append(returns, curve[i].Value/prev-1)
	}

	return returns
}

// ComputePerformance builds the performance report from the equity curve and
// the trade log.
func ComputePerformance(curve []types.EquityPoint, trades []types.TradeRecord, initialCash float64) types.PerformanceReport {
	report := types.PerformanceReport{
		TotalTrades: len(trades),
	}

	if len(curve) > 0 && initialCash > 0 {
		final := curve[len(curve)-1].Value
		report.TotalReturn = (final - initialCash) / initialCash
	}

	report.AnnualizedReturn = annualizedReturn(report.TotalReturn, len(curve))
	report.SharpeRatio = sharpeRatio(DailyReturns(curve))
	report.MaxDrawdown = MaxDrawdown(curve)
	report.WinRate, report.ProfitFactor = tradeOutcomes(trades)

	return report
}

// annualizedReturn compounds the total return over 252/tradingDays periods.
// With fewer than 2 equity points there is no time base, report 0.
func annualizedReturn(totalReturn float64, points int) float64 {
	tradingDays := points - 1
	if tradingDays < 1 {
		return 0
	}

	return math.Pow(1+totalReturn, tradingDaysPerYear/float64(tradingDays)) - 1
}

// sharpeRatio is mean/stddev of daily returns scaled by sqrt(252), using the
// sample standard deviation. Zero stddev reports 0 rather than dividing.
func sharpeRatio(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}

	m := mean(returns)

	sd := sampleStdDev(returns, m)
	if sd == 0 {
		return 0
	}

	return m / sd * math.Sqrt(tradingDaysPerYear)
}

// MaxDrawdown is the largest peak-to-trough decline of the equity curve as a
// fraction of the running peak.
func MaxDrawdown(curve []types.EquityPoint) float64 {
	if len(curve) == 0 {
		return 0
	}

	maxDrawdown := 0.0
	peak := curve[0].Value

	for _, point := range curve {
		if point.Value > peak {
			peak = point.Value
		}

		if peak > 0 {
			drawdown := (peak - point.Value) / peak
			if drawdown > maxDrawdown {
				maxDrawdown = drawdown
			}
		}
	}

	return maxDrawdown
}

// tradeOutcomes derives win rate and profit factor from the sell records;
// every sell fully closes a position so each one is a closed trade. With no
// losing trades the profit factor reports +Inf rather than dividing by zero.
func tradeOutcomes(trades []types.TradeRecord) (winRate float64, profitFactor float64) {
	closed := 0
	wins := 0
	grossProfit := 0.0
	grossLoss := 0.0

	for _, trade := range trades {
		if trade.Side != types.SideSell {
			continue
		}

		closed++

		if trade.PnL > 0 {
			wins++
			grossProfit += trade.PnL
		} else {
			grossLoss += -trade.PnL
		}
	}

	if closed > 0 {
		winRate = float64(wins) / float64(closed)
	}

	if grossLoss == 0 {
		if grossProfit > 0 {
			profitFactor = math.Inf(1)
		}
	} else {
		profitFactor = grossProfit / grossLoss
	}

	return winRate, profitFactor
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	sum := 0.0
	for _, v := range values {
		sum += v
	}

	return sum / float64(len(values))
}

func sampleStdDev(values []float64, m float64) float64 {
	if len(values) < 2 {
		return 0
	}

	sumSquaredDiff := 0.0

	for _, v := range values {
		diff := v - m
		sumSquaredDiff += diff * diff
	}

	return math.Sqrt(sumSquaredDiff / float64(len(values)-1))
}
