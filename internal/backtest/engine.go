package backtest

import (
	"math"

	"github.com/google/uuid"
	"github.com/quantfold/replay/internal/logger"
	"github.com/quantfold/replay/internal/pricestore"
	"github.com/quantfold/replay/internal/types"
	"github.com/quantfold/replay/pkg/errors"
	"go.uber.org/zap"
)

// Engine replays a signal stream against historical bars, simulating order
// execution against the ledger and appending to the trade log. The replay is
// deterministic and single-threaded; independent runs on separate Engine
// instances may be parallelized freely.
type Engine struct {
	config   Config
	policy   AllocationPolicy
	ledger   *Ledger
	log      *logger.Logger
	store    *TradeStore
	observer Observer
	trades   []types.TradeRecord
	curve    []types.EquityPoint
}

// NewEngine creates an engine for one run. The config is validated here;
// this is the only place a backtest can fail fatally.
func NewEngine(config Config, log *logger.Logger) (*Engine, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	ledger, err := NewLedger(config.InitialCash)
	if err != nil {
		return nil, err
	}

	if log == nil {
		log = logger.NewNopLogger()
	}

	return &Engine{
		config:   config,
		policy:   ConfidenceScaledAllocation(config.MaxAllocationFraction),
		ledger:   ledger,
		log:      log,
		store:    nil,
		observer: nil,
		trades:   nil,
		curve:    nil,
	}, nil
}

// SetObserver attaches an optional observer notified after each trade and
// valuation step.
func (e *Engine) SetObserver(observer Observer) {
	e.observer = observer
}

// SetAllocationPolicy overrides the default confidence-scaled allocation.
func (e *Engine) SetAllocationPolicy(policy AllocationPolicy) {
	if policy != nil {
		e.policy = policy
	}
}

// AttachStore attaches a TradeStore that receives a copy of every executed
// trade for audit and export. The engine works without one.
func (e *Engine) AttachStore(store *TradeStore) {
	e.store = store
}

// Ledger exposes the run's ledger for valuation and inspection.
func (e *Engine) Ledger() *Ledger {
	return e.ledger
}

// Trades returns the append-only trade log in execution order.
func (e *Engine) Trades() []types.TradeRecord {
	return e.trades
}

// ExecuteTrades consumes signals strictly in arrival order against the given
// price store, mutating the ledger and appending to the trade log. Missing
// prices, malformed signals, and policy rejections are all recovered locally;
// the only errors surfaced are trade store failures.
func (e *Engine) ExecuteTrades(signals []types.Signal, prices *pricestore.Store) error {
	for _, signal := range signals {
		if err := e.executeSignal(signal, prices); err != nil {
			return err
		}
	}

	return nil
}

func (e *Engine) executeSignal(signal types.Signal, prices *pricestore.Store) error {
	if err := signal.Validate(); err != nil {
		e.log.Debug("Skipping malformed signal",
			zap.String("symbol", signal.Symbol),
			zap.Error(err),
		)

		return nil
	}

	bar, ok := prices.At(signal.Symbol, signal.Time)
	if !ok {
		e.log.Debug("No price bar for signal, skipping",
			zap.String("symbol", signal.Symbol),
			zap.Time("time", signal.Time),
		)

		return nil
	}

	if signal.Action == types.SignalActionHold || signal.Confidence < e.config.MinConfidence {
		return nil
	}

	var record types.TradeRecord

	var executed bool

	switch signal.Action {
	case types.SignalActionBuy:
		record, executed = e.executeBuy(signal, bar)
	case types.SignalActionSell:
		record, executed = e.executeSell(signal, bar)
	case types.SignalActionHold:
		return nil
	}

	if !executed {
		return nil
	}

	e.trades = append(e.trades, record)

	if e.store != nil {
		if err := e.store.Append(record); err != nil {
			return errors.Wrap(errors.ErrCodeStoreQueryFailed, "failed to append trade record", err)
		}
	}

	if e.observer != nil {
		e.observer.OnTrade(record)
	}

	return nil
}

// executeBuy sizes the trade from the allocation policy, applies slippage and
// commission, and accumulates the position. Rejections (zero quantity,
// insufficient cash) are no-ops.
func (e *Engine) executeBuy(signal types.Signal, bar types.Bar) (types.TradeRecord, bool) {
	targetValue := e.policy(signal.Confidence, e.ledger.Cash())
	fillPrice := bar.Close * (1 + e.config.SlippageRate)

	if fillPrice <= 0 {
		return types.TradeRecord{}, false
	}

	quantity := int64(math.Floor(targetValue / fillPrice))
	if quantity <= 0 {
		return types.TradeRecord{}, false
	}

	notional := float64(quantity) * fillPrice
	if notional*(1+e.config.CommissionRate) > e.ledger.Cash() {
		e.log.Debug("Buy rejected: insufficient cash",
			zap.String("symbol", signal.Symbol),
			zap.Float64("cash", e.ledger.Cash()),
			zap.Float64("required", notional*(1+e.config.CommissionRate)),
		)

		return types.TradeRecord{}, false
	}

	commission := notional * e.config.CommissionRate
	slippageCost := float64(quantity) * bar.Close * e.config.SlippageRate

	if err := e.ledger.Accumulate(signal.Symbol, quantity, fillPrice, notional+commission); err != nil {
		return types.TradeRecord{}, false
	}

	return types.TradeRecord{
		ID:           uuid.New().String(),
		Time:         signal.Time,
		Symbol:       signal.Symbol,
		Side:         types.SideBuy,
		Quantity:     quantity,
		Price:        fillPrice,
		Commission:   commission,
		SlippageCost: slippageCost,
		CashAfter:    e.ledger.Cash(),
		PnL:          0,
	}, true
}

// executeSell fully closes the open position. Partial exits are not modeled.
func (e *Engine) executeSell(signal types.Signal, bar types.Bar) (types.TradeRecord, bool) {
	position, ok := e.ledger.Position(signal.Symbol)
	if !ok || position.Quantity == 0 {
		e.log.Debug("Sell rejected: no open position",
			zap.String("symbol", signal.Symbol),
		)

		return types.TradeRecord{}, false
	}

	quantity := position.Quantity
	fillPrice := bar.Close * (1 - e.config.SlippageRate)
	notional := float64(quantity) * fillPrice
	commission := notional * e.config.CommissionRate
	slippageCost := float64(quantity) * bar.Close * e.config.SlippageRate
	pnl := position.RealizedPnL(quantity, fillPrice, commission)

	if _, err := e.ledger.Reduce(signal.Symbol, notional-commission); err != nil {
		return types.TradeRecord{}, false
	}

	return types.TradeRecord{
		ID:           uuid.New().String(),
		Time:         signal.Time,
		Symbol:       signal.Symbol,
		Side:         types.SideSell,
		Quantity:     quantity,
		Price:        fillPrice,
		Commission:   commission,
		SlippageCost: slippageCost,
		CashAfter:    e.ledger.Cash(),
		PnL:          pnl,
	}, true
}
