package backtest

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"github.com/quantfold/replay/internal/logger"
	"github.com/quantfold/replay/internal/types"
	"go.uber.org/zap"
)

// TradeStore is a duckdb-backed append-only audit store for executed trades.
// It mirrors the engine's in-memory trade log so runs can be queried with SQL
// and exported to Parquet after the fact.
type TradeStore struct {
	db     *sql.DB
	logger *logger.Logger
	sq     squirrel.StatementBuilderType
}

// SymbolStats aggregates realized trade outcomes for one symbol.
type SymbolStats struct {
	Symbol        string  `yaml:"symbol" json:"symbol"`
	TotalTrades   int     `yaml:"total_trades" json:"total_trades"`
	WinningTrades int     `yaml:"winning_trades" json:"winning_trades"`
	LosingTrades  int     `yaml:"losing_trades" json:"losing_trades"`
	RealizedPnL   float64 `yaml:"realized_pnl" json:"realized_pnl"`
	TotalFees     float64 `yaml:"total_fees" json:"total_fees"`
}

// NewTradeStore opens an in-memory duckdb database for one run.
func NewTradeStore(log *logger.Logger) (*TradeStore, error) {
	db, err := sql.Open("duckdb", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if log == nil {
		log = logger.NewNopLogger()
	}

	return &TradeStore{
		db:     db,
		logger: log,
		sq:     squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
	}, nil
}

// Initialize creates the trades table.
func (s *TradeStore) Initialize() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS trades (
			id TEXT PRIMARY KEY,
			time TIMESTAMP,
			symbol TEXT,
			side TEXT,
			quantity BIGINT,
			price DOUBLE,
			commission DOUBLE,
			slippage_cost DOUBLE,
			cash_after DOUBLE,
			pnl DOUBLE
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create trades table: %w", err)
	}

	return nil
}

// Append inserts one trade record.
func (s *TradeStore) Append(record types.TradeRecord) error {
	insertQuery := s.sq.
		Insert("trades").
		Columns(
			"id", "time", "symbol", "side", "quantity",
			"price", "commission", "slippage_cost", "cash_after", "pnl",
		).
		Values(
			record.ID, record.Time, record.Symbol, record.Side, record.Quantity,
			record.Price, record.Commission, record.SlippageCost, record.CashAfter, record.PnL,
		).
		RunWith(s.db)

	if _, err := insertQuery.Exec(); err != nil {
		return fmt.Errorf("failed to insert trade: %w", err)
	}

	return nil
}

// All returns every stored trade in execution order.
func (s *TradeStore) All() ([]types.TradeRecord, error) {
	selectQuery := s.sq.
		Select(
			"id", "time", "symbol", "side", "quantity",
			"price", "commission", "slippage_cost", "cash_after", "pnl",
		).
		From("trades").
		OrderBy("time ASC").
		RunWith(s.db)

	rows, err := selectQuery.Query()
	if err != nil {
		return nil, fmt.Errorf("failed to query trades: %w", err)
	}
	defer rows.Close()

	var trades []types.TradeRecord

	for rows.Next() {
		var trade types.TradeRecord

		err := rows.Scan(
			&trade.ID,
			&trade.Time,
			&trade.Symbol,
			&trade.Side,
			&trade.Quantity,
			&trade.Price,
			&trade.Commission,
			&trade.SlippageCost,
			&trade.CashAfter,
			&trade.PnL,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}

		trades = append(trades, trade)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trades: %w", err)
	}

	return trades, nil
}

// SymbolStats aggregates closed-trade outcomes for one symbol. Only sell
// records carry realized PnL; fees cover both sides.
func (s *TradeStore) SymbolStats(symbol string) (SymbolStats, error) {
	query := `
		SELECT
			COUNT(*) as total_trades,
			SUM(CASE WHEN side = 'SELL' AND pnl > 0 THEN 1 ELSE 0 END) as winning_trades,
			SUM(CASE WHEN side = 'SELL' AND pnl < 0 THEN 1 ELSE 0 END) as losing_trades,
			COALESCE(SUM(CASE WHEN side = 'SELL' THEN pnl ELSE 0 END), 0) as realized_pnl,
			COALESCE(SUM(commission), 0) as total_fees
		FROM trades
		WHERE symbol = ?
	`

	stats := SymbolStats{Symbol: symbol}

	err := s.db.QueryRow(query, symbol).Scan(
		&stats.TotalTrades,
		&stats.WinningTrades,
		&stats.LosingTrades,
		&stats.RealizedPnL,
		&stats.TotalFees,
	)
	if err != nil {
		return SymbolStats{}, fmt.Errorf("failed to calculate symbol stats: %w", err)
	}

	return stats, nil
}

// Symbols returns every symbol that has trades, sorted.
func (s *TradeStore) Symbols() ([]string, error) {
	selectQuery := s.sq.
		Select("DISTINCT symbol").
		From("trades").
		OrderBy("symbol").
		RunWith(s.db)

	rows, err := selectQuery.Query()
	if err != nil {
		return nil, fmt.Errorf("failed to get unique symbols: %w", err)
	}
	defer rows.Close()

	var symbols []string

	for rows.Next() {
		var symbol string
		if err := rows.Scan(&symbol); err != nil {
			return nil, fmt.Errorf("failed to scan symbol: %w", err)
		}

		symbols = append(symbols, symbol)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating symbols: %w", err)
	}

	return symbols, nil
}

// Write exports the trade log to a Parquet file in the given directory.
func (s *TradeStore) Write(path string) error {
	if err := os.MkdirAll(path, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tradesPath := filepath.Join(path, "trades.parquet")

	_, err := s.db.Exec(fmt.Sprintf(`COPY trades TO '%s' (FORMAT PARQUET)`, tradesPath))
	if err != nil {
		return fmt.Errorf("failed to export trades to Parquet: %w", err)
	}

	s.logger.Info("Exported trade log to Parquet",
		zap.String("trades", tradesPath),
	)

	return nil
}

// Cleanup resets the store for another run.
func (s *TradeStore) Cleanup() error {
	if _, err := s.db.Exec(`DROP TABLE IF EXISTS trades`); err != nil {
		return fmt.Errorf("failed to cleanup tables: %w", err)
	}

	return s.Initialize()
}

// Close closes the underlying database.
func (s *TradeStore) Close() error {
	return s.db.Close()
}
