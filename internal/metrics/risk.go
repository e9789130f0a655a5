package metrics

import (
	"math"
	"sort"

	"github.com/moznion/go-optional"
	"github.com/quantfold/replay/internal/types"
)

// ComputeRisk builds the risk report from the daily return series. The
// benchmark return series is optional; without one (or with a zero-variance
// benchmark) beta and correlation report 0.
func ComputeRisk(returns []float64, benchmark optional.Option[[]float64]) types.RiskReport {
	report := types.RiskReport{}

	if len(returns) < 2 {
		return report
	}

	report.Volatility = sampleStdDev(returns, mean(returns)) * math.Sqrt(tradingDaysPerYear)
	report.VaR95, report.CVaR95 = historicalVaR(returns, 0.05)

	if benchmark.IsSome() {
		market := benchmark.Unwrap()
		report.Beta = beta(returns, market)
		report.CorrelationToMarket = pearsonCorrelation(returns, market)
	}

	return report
}

// historicalVaR computes Value-at-Risk by historical simulation: the return
// at the given tail quantile of the sorted empirical distribution, and the
// conditional VaR as the mean of everything at or below it.
func historicalVaR(returns []float64, quantile float64) (valueAtRisk float64, conditional float64) {
	sorted := make([]float64, len(returns))
	copy(sorted, returns)
	sort.Float64s(sorted)

	index := int(math.Floor(quantile * float64(len(sorted))))
	if index >= len(sorted) {
		index = len(sorted) - 1
	}

	valueAtRisk = sorted[index]

	tailSum := 0.0
	tailCount := 0

	for _, r := range sorted {
		if r <= valueAtRisk {
			tailSum += r
			tailCount++
		}
	}

	if tailCount > 0 {
		conditional = tailSum / float64(tailCount)
	}

	return valueAtRisk, conditional
}

// beta is cov(returns, market) / var(market). Series are aligned by position
// and truncated to the shorter length.
func beta(returns []float64, market []float64) float64 {
	n := min(len(returns), len(market))
	if n < 2 {
		return 0
	}

	r := returns[:n]
	m := market[:n]

	marketVariance := sampleVariance(m, mean(m))
	if marketVariance == 0 {
		return 0
	}

	return sampleCovariance(r, m) / marketVariance
}

// pearsonCorrelation is cov(r, m) / (stddev(r) * stddev(m)) with the same
// alignment and zero-variance guards as beta.
func pearsonCorrelation(returns []float64, market []float64) float64 {
	n := min(len(returns), len(market))
	if n < 2 {
		return 0
	}

	r := returns[:n]
	m := market[:n]

	sdR := sampleStdDev(r, mean(r))
	sdM := sampleStdDev(m, mean(m))

	if sdR == 0 || sdM == 0 {
		return 0
	}

	return sampleCovariance(r, m) / (sdR * sdM)
}

func sampleVariance(values []float64, m float64) float64 {
	if len(values) < 2 {
		return 0
	}

	sumSquaredDiff := 0.0

	for _, v := range values {
		diff := v - m
		sumSquaredDiff += diff * diff
	}

	return sumSquaredDiff / float64(len(values)-1)
}

func sampleCovariance(a []float64, b []float64) float64 {
	n := min(len(a), len(b))
	if n < 2 {
		return 0
	}

	meanA := mean(a[:n])
	meanB := mean(b[:n])

	sum := 0.0
	for i := 0; i < n; i++ {
		sum += (a[i] - meanA) * (b[i] - meanB)
	}

	return sum / float64(n-1)
}
