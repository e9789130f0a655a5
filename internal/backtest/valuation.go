package backtest

import (
	"time"

	"github.com/moznion/go-optional"
	"github.com/quantfold/replay/internal/metrics"
	"github.com/quantfold/replay/internal/pricestore"
	"github.com/quantfold/replay/internal/types"
	"go.uber.org/zap"
)

// ValueAt marks the portfolio to market on the given date: cash plus, for
// every open position, quantity times the close of the latest bar at or
// before the date. A position with no usable price is valued at its average
// cost rather than dropped from the total.
func (e *Engine) ValueAt(prices *pricestore.Store, t time.Time) float64 {
	total := e.ledger.Cash()

	for symbol, position := range e.ledger.Positions() {
		price := position.AveragePrice
		if bar, ok := prices.AtOrBefore(symbol, t); ok {
			price = bar.Close
		}

		total += float64(position.Quantity) * price
	}

	return total
}

// EquityCurve returns the equity points recorded by Run, ascending by date.
func (e *Engine) EquityCurve() []types.EquityPoint {
	return e.curve
}

// Run replays the full backtest: for each valuation date in ascending order
// it executes that date's signals, then values the portfolio, so every equity
// point reflects the ledger state as of that date. Signals are assumed
// chronological; within a date they execute strictly in arrival order.
// Empty signal and price inputs yield zero trades and a zero-length curve.
func (e *Engine) Run(signals []types.Signal, prices *pricestore.Store) error {
	dates := e.valuationDates(prices)

	// Signals are consumed by a cursor so same-date duplicates keep their
	// arrival order.
	cursor := 0

	for _, date := range dates {
		for cursor < len(signals) && !signals[cursor].Time.After(date) {
			if err := e.executeSignal(signals[cursor], prices); err != nil {
				return err
			}

			cursor++
		}

		point := types.EquityPoint{Time: date, Value: e.ValueAt(prices, date)}
		e.curve = append(e.curve, point)

		if e.observer != nil {
			e.observer.OnValuation(point)
		}
	}

	// Signals dated past the valuation range still execute; they simply have
	// no matching bar unless the store knows their date.
	for ; cursor < len(signals); cursor++ {
		if err := e.executeSignal(signals[cursor], prices); err != nil {
			return err
		}
	}

	e.log.Info("Backtest run complete",
		zap.Int("signals", len(signals)),
		zap.Int("trades", len(e.trades)),
		zap.Int("equity_points", len(e.curve)),
		zap.Float64("final_cash", e.ledger.Cash()),
	)

	return nil
}

// valuationDates is the ascending union of bar dates, clipped to the
// configured start and end times.
func (e *Engine) valuationDates(prices *pricestore.Store) []time.Time {
	all := prices.Dates()
	dates := make([]time.Time, 0, len(all))

	for _, date := range all {
		if e.config.StartTime.IsSome() && date.Before(e.config.StartTime.Unwrap()) {
			continue
		}

		if e.config.EndTime.IsSome() && date.After(e.config.EndTime.Unwrap()) {
			continue
		}

		dates = append(dates, date)
	}

	return dates
}

// Report computes the full metrics report from the run's equity curve and
// trade log. The benchmark return series is optional; without one the
// benchmark-relative risk metrics report zero.
func (e *Engine) Report(benchmark optional.Option[[]float64]) types.MetricsReport {
	returns := metrics.DailyReturns(e.curve)

	return types.MetricsReport{
		Performance: metrics.ComputePerformance(e.curve, e.trades, e.config.InitialCash),
		Risk:        metrics.ComputeRisk(returns, benchmark),
	}
}
