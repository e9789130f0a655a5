package backtest

import "github.com/quantfold/replay/internal/types"

// Observer receives notifications after each executed trade and each equity
// valuation step. It is optional and never required for correctness; the
// engine ignores a nil observer.
type Observer interface {
	OnTrade(record types.TradeRecord)
	OnValuation(point types.EquityPoint)
}
