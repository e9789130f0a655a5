package backtest

// AllocationPolicy maps a signal's confidence and the current cash balance to
// a target trade value. Policies must be monotonic in confidence and must
// never return more than cash.
type AllocationPolicy func(confidence float64, cash float64) float64

// ConfidenceScaledAllocation targets maxFraction of current cash scaled
// linearly by confidence. A full-confidence signal targets maxFraction*cash;
// the result is capped at the available cash.
func ConfidenceScaledAllocation(maxFraction float64) AllocationPolicy {
	return func(confidence float64, cash float64) float64 {
		target := maxFraction * cash * confidence
		if target > cash {
			target = cash
		}

		return target
	}
}
