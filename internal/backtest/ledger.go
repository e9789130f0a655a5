package backtest

import (
	"github.com/quantfold/replay/internal/types"
	"github.com/quantfold/replay/pkg/errors"
)

// Ledger owns the cash balance and the position book for one backtest run.
// All mutation goes through Accumulate and Reduce so the cost-basis and
// non-negative-cash invariants hold at every step. A Ledger must not be
// shared across concurrent runs.
type Ledger struct {
	cash      float64
	positions map[string]*types.Position
}

// NewLedger creates a ledger with the given starting cash.
// Non-positive initial cash is the fatal configuration error.
func NewLedger(initialCash float64) (*Ledger, error) {
	if initialCash <= 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidConfiguration, "initial cash must be positive, got %.2f", initialCash)
	}

	return &Ledger{
		cash:      initialCash,
		positions: make(map[string]*types.Position),
	}, nil
}

// Cash returns the current cash balance.
func (l *Ledger) Cash() float64 {
	return l.cash
}

// Position returns a copy of the open position for symbol, if any.
func (l *Ledger) Position(symbol string) (types.Position, bool) {
	position, ok := l.positions[symbol]
	if !ok {
		return types.Position{}, false
	}

	return *position, true
}

// Positions returns a copy of the full position book.
func (l *Ledger) Positions() map[string]types.Position {
	book := make(map[string]types.Position, len(l.positions))
	for symbol, position := range l.positions {
		book[symbol] = *position
	}

	return book
}

// Accumulate adds qty shares filled at fillPrice to the book and debits
// totalDebit (notional plus commission) from cash. The average price is
// recomputed as a weighted average over the combined quantity. The debit is
// rejected if it would drive cash negative.
func (l *Ledger) Accumulate(symbol string, qty int64, fillPrice float64, totalDebit float64) error {
	if qty <= 0 {
		return errors.Newf(errors.ErrCodeZeroQuantity, "cannot accumulate %d shares of %s", qty, symbol)
	}

	if totalDebit > l.cash {
		return errors.Newf(errors.ErrCodeInsufficientCash, "debit %.2f exceeds cash %.2f", totalDebit, l.cash)
	}

	position, ok := l.positions[symbol]
	if !ok {
		position = &types.Position{Symbol: symbol}
		l.positions[symbol] = position
	}

	cost := float64(qty) * fillPrice
	position.TotalCost += cost
	position.Quantity += qty
	position.AveragePrice = position.TotalCost / float64(position.Quantity)

	l.cash -= totalDebit

	return nil
}

// Reduce fully closes the position for symbol and credits proceeds
// (notional minus commission) to cash. Partial exits are not modeled; the
// closed quantity is always the full open quantity.
func (l *Ledger) Reduce(symbol string, proceeds float64) (types.Position, error) {
	position, ok := l.positions[symbol]
	if !ok || position.Quantity == 0 {
		return types.Position{}, errors.Newf(errors.ErrCodePositionNotFound, "no open position for %s", symbol)
	}

	closed := *position
	delete(l.positions, symbol)
	l.cash += proceeds

	return closed, nil
}
