package types

import (
	"os"

	"github.com/quantfold/replay/pkg/errors"
	"gopkg.in/yaml.v3"
)

// PerformanceReport holds return- and trade-outcome-based statistics computed
// from the equity curve and the trade log.
type PerformanceReport struct {
	// TotalReturn is (final value - initial cash) / initial cash.
	TotalReturn float64 `yaml:"total_return" json:"total_return"`
	// AnnualizedReturn is (1+TotalReturn)^(252/trading days) - 1.
	AnnualizedReturn float64 `yaml:"annualized_return" json:"annualized_return"`
	// SharpeRatio is mean(daily returns) / sample stddev(daily returns) * sqrt(252).
	SharpeRatio float64 `yaml:"sharpe_ratio" json:"sharpe_ratio"`
	// MaxDrawdown is the largest peak-to-trough decline as a fraction of the peak.
	MaxDrawdown float64 `yaml:"max_drawdown" json:"max_drawdown"`
	// WinRate is the fraction of closed trades with positive realized PnL.
	WinRate float64 `yaml:"win_rate" json:"win_rate"`
	// ProfitFactor is gross profit over gross loss. +Inf when there are no losers.
	ProfitFactor float64 `yaml:"profit_factor" json:"profit_factor"`
	// TotalTrades counts every executed trade, buys and sells alike.
	TotalTrades int `yaml:"total_trades" json:"total_trades"`
}

// RiskReport holds dispersion- and tail-risk statistics computed from the
// daily return series.
type RiskReport struct {
	// Volatility is the annualized standard deviation of daily returns.
	Volatility float64 `yaml:"volatility" json:"volatility"`
	// VaR95 is the 5th percentile of the empirical return distribution.
	// Negative for a loss threshold.
	VaR95 float64 `yaml:"var_95" json:"var_95"`
	// CVaR95 is the mean of all returns at or below VaR95.
	CVaR95 float64 `yaml:"cvar_95" json:"cvar_95"`
	// Beta is cov(returns, market) / var(market). Zero without a benchmark.
	Beta float64 `yaml:"beta" json:"beta"`
	// CorrelationToMarket is the Pearson correlation with the benchmark
	// return series. Zero without a benchmark.
	CorrelationToMarket float64 `yaml:"correlation_to_market" json:"correlation_to_market"`
}

// MetricsReport is the fixed-shape output of a backtest run, suitable for
// serialization to a structured text format for downstream reporting.
type MetricsReport struct {
	Performance PerformanceReport `yaml:"performance" json:"performance"`
	Risk        RiskReport        `yaml:"risk" json:"risk"`
}

// WriteMetricsReport marshals the report to YAML and writes it to path.
func WriteMetricsReport(path string, report MetricsReport) error {
	data, err := yaml.Marshal(report)
	if err != nil {
		return errors.Wrap(errors.ErrCodeReportFailed, "failed to marshal metrics report to YAML", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.Wrap(errors.ErrCodeReportFailed, "failed to write metrics report to file", err)
	}

	return nil
}
