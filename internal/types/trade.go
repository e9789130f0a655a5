package types

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// Side is the direction of an executed trade.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// TradeRecord is one entry of the append-only trade log. Hold signals and
// rejected trades produce no record.
type TradeRecord struct {
	ID     string    `csv:"id" yaml:"id" json:"id"`
	Time   time.Time `csv:"time" yaml:"time" json:"time"`
	Symbol string    `csv:"symbol" yaml:"symbol" json:"symbol"`
	Side   Side      `csv:"side" yaml:"side" json:"side"`
	// Quantity is the number of shares filled. Always positive.
	Quantity int64 `csv:"quantity" yaml:"quantity" json:"quantity"`
	// Price is the fill price after slippage has been applied.
	Price float64 `csv:"price" yaml:"price" json:"price"`
	// Commission charged on the trade notional.
	Commission float64 `csv:"commission" yaml:"commission" json:"commission"`
	// SlippageCost is the modeled adverse price impact in cash terms.
	SlippageCost float64 `csv:"slippage_cost" yaml:"slippage_cost" json:"slippage_cost"`
	// CashAfter is the ledger cash balance immediately after this trade settled.
	CashAfter float64 `csv:"cash_after" yaml:"cash_after" json:"cash_after"`
	// PnL is the realized profit and loss. Computed against the position's
	// average price at the time of sale, net of the sell commission. Zero for buys.
	PnL float64 `csv:"pnl" yaml:"pnl" json:"pnl"`
}

// Position represents the current holding of one symbol. Positions are owned
// exclusively by the ledger; a quantity of zero means the position is absent.
type Position struct {
	Symbol string `csv:"symbol" yaml:"symbol" json:"symbol"`
	// Quantity is the number of shares held. Never negative.
	Quantity int64 `csv:"quantity" yaml:"quantity" json:"quantity"`
	// AveragePrice is the weighted-average fill price paid for the held
	// quantity. Recomputed on every buy, left unchanged by sells.
	AveragePrice float64 `csv:"average_price" yaml:"average_price" json:"average_price"`
	// TotalCost is the total cost basis, Quantity * AveragePrice within
	// floating tolerance.
	TotalCost float64 `csv:"total_cost" yaml:"total_cost" json:"total_cost"`
}

// CostBasisConsistent reports whether TotalCost matches Quantity*AveragePrice
// within the given relative tolerance.
func (p *Position) CostBasisConsistent(tolerance float64) bool {
	expected := float64(p.Quantity) * p.AveragePrice
	if expected == 0 {
		return math.Abs(p.TotalCost) <= tolerance
	}

	return math.Abs(p.TotalCost-expected)/math.Abs(expected) <= tolerance
}

// RealizedPnL computes the realized profit and loss of selling qty shares at
// fillPrice against this position's average price, net of commission.
// Decimal arithmetic avoids drift on repeated float subtraction.
func (p *Position) RealizedPnL(qty int64, fillPrice float64, commission float64) float64 {
	entry := decimal.NewFromInt(qty).Mul(decimal.NewFromFloat(p.AveragePrice))
	exit := decimal.NewFromInt(qty).Mul(decimal.NewFromFloat(fillPrice)).Sub(decimal.NewFromFloat(commission))
	pnl, _ := exit.Sub(entry).Float64()

	return pnl
}

// EquityPoint is one point of the equity curve: total portfolio value
// (cash + mark-to-market positions) on a given date.
type EquityPoint struct {
	Time  time.Time `csv:"time" yaml:"time" json:"time"`
	Value float64   `csv:"value" yaml:"value" json:"value"`
}
