package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	apperrors "trade-reconciler/internal/errors"
	"trade-reconciler/internal/models"
)

// SQLiteStore implements DataStore using SQLite. Decimal amounts are stored
// as TEXT so they round-trip exactly.
type SQLiteStore struct {
	db          *sql.DB
	mu          sync.RWMutex
	importTimes map[string]time.Time
}

// NewSQLiteStore creates a new SQLite-based data store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	store := &SQLiteStore{
		db:          db,
		importTimes: make(map[string]time.Time),
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates all required tables and indexes.
func (s *SQLiteStore) initSchema() error {
	schema := `
	-- Matched round-trip trades, in the order the ledger created them
	CREATE TABLE IF NOT EXISTS matched_trades (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		symbol TEXT NOT NULL,
		broker TEXT,
		quantity INTEGER NOT NULL,
		date_acquired DATETIME NOT NULL,
		date_disposed DATETIME NOT NULL,
		proceeds TEXT NOT NULL,
		cost_basis TEXT NOT NULL,
		adjustment TEXT NOT NULL,
		cumulative_profit TEXT NOT NULL,
		commission TEXT NOT NULL,
		fees TEXT NOT NULL,
		buy_order_id INTEGER,
		sell_order_id INTEGER,
		long_term INTEGER DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	-- Order transactions as produced from fills
	CREATE TABLE IF NOT EXISTS transactions (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		symbol TEXT NOT NULL,
		exchange TEXT,
		broker TEXT,
		description TEXT,
		direction TEXT NOT NULL,
		order_id INTEGER,
		quantity INTEGER NOT NULL,
		unit_price TEXT NOT NULL,
		amount TEXT NOT NULL,
		commission TEXT NOT NULL,
		fees TEXT NOT NULL,
		trade_date DATETIME NOT NULL,
		settled_date DATETIME,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	-- Last import time per fill source
	CREATE TABLE IF NOT EXISTS import_status (
		source TEXT PRIMARY KEY,
		last_import DATETIME NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_matched_trades_symbol ON matched_trades(symbol);
	CREATE INDEX IF NOT EXISTS idx_matched_trades_disposed ON matched_trades(date_disposed);
	CREATE INDEX IF NOT EXISTS idx_transactions_symbol ON transactions(symbol);
	CREATE INDEX IF NOT EXISTS idx_transactions_trade_date ON transactions(trade_date);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ============================================================================
// Matched Trades
// ============================================================================

const insertTrade = `
	INSERT INTO matched_trades (id, symbol, broker, quantity, date_acquired, date_disposed, proceeds, cost_basis, adjustment, cumulative_profit, commission, fees, buy_order_id, sell_order_id, long_term)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

func tradeArgs(t *models.MatchedTrade) []interface{} {
	longTerm := 0
	if t.LongTermGain {
		longTerm = 1
	}
	return []interface{}{
		t.ID, t.Symbol, t.Broker, t.Quantity, t.DateAcquired, t.DateDisposed,
		t.Proceeds.String(), t.CostOrBasis.String(), t.AdjustmentAmount.String(), t.CumulativeProfit.String(),
		t.Commission.String(), t.Fees.String(), t.BuyOrderID, t.SellOrderID, longTerm,
	}
}

// LogTrade saves a single matched trade.
func (s *SQLiteStore) LogTrade(ctx context.Context, trade *models.MatchedTrade) error {
	if _, err := s.db.ExecContext(ctx, insertTrade, tradeArgs(trade)...); err != nil {
		return fmt.Errorf("failed to log trade %s: %w", trade.ID, err)
	}
	return nil
}

// SaveTrades saves trades in one transaction; either all are written or none.
func (s *SQLiteStore) SaveTrades(ctx context.Context, trades []models.MatchedTrade) error {
	if len(trades) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, insertTrade)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for i := range trades {
		if _, err := stmt.ExecContext(ctx, tradeArgs(&trades[i])...); err != nil {
			return fmt.Errorf("failed to insert trade %s: %w", trades[i].ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetTrades retrieves matched trades in creation order. With a limit, the
// most recent trades are returned.
func (s *SQLiteStore) GetTrades(ctx context.Context, filter TradeFilter) ([]models.MatchedTrade, error) {
	query := "SELECT seq, id, symbol, broker, quantity, date_acquired, date_disposed, proceeds, cost_basis, adjustment, cumulative_profit, commission, fees, buy_order_id, sell_order_id, long_term FROM matched_trades WHERE 1=1"
	args := []interface{}{}

	if filter.Symbol != "" {
		query += " AND symbol = ?"
		args = append(args, filter.Symbol)
	}
	if !filter.StartDate.IsZero() {
		query += " AND date_disposed >= ?"
		args = append(args, filter.StartDate)
	}
	if !filter.EndDate.IsZero() {
		query += " AND date_disposed <= ?"
		args = append(args, filter.EndDate)
	}
	if filter.LongTerm != nil {
		longTerm := 0
		if *filter.LongTerm {
			longTerm = 1
		}
		query += " AND long_term = ?"
		args = append(args, longTerm)
	}

	query += " ORDER BY seq DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}
	query = "SELECT * FROM (" + query + ") ORDER BY seq ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades: %w", err)
	}
	defer rows.Close()

	var trades []models.MatchedTrade
	for rows.Next() {
		var t models.MatchedTrade
		var seq int64
		var broker sql.NullString
		var longTerm int

		if err := rows.Scan(&seq, &t.ID, &t.Symbol, &broker, &t.Quantity, &t.DateAcquired, &t.DateDisposed,
			&t.Proceeds, &t.CostOrBasis, &t.AdjustmentAmount, &t.CumulativeProfit, &t.Commission, &t.Fees,
			&t.BuyOrderID, &t.SellOrderID, &longTerm); err != nil {
			return nil, apperrors.NewDataError("trade", filter.Symbol, "failed to scan row", err)
		}

		t.Broker = broker.String
		t.LongTermGain = longTerm == 1
		trades = append(trades, t)
	}

	return trades, rows.Err()
}

// ============================================================================
// Order Transactions
// ============================================================================

// SaveTransaction saves an order transaction.
func (s *SQLiteStore) SaveTransaction(ctx context.Context, tx *models.OrderTransaction) error {
	var settled interface{}
	if !tx.SettledDate.IsZero() {
		settled = tx.SettledDate
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transactions (symbol, exchange, broker, description, direction, order_id, quantity, unit_price, amount, commission, fees, trade_date, settled_date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, tx.Symbol, tx.Exchange, tx.Broker, tx.Description, string(tx.Direction), tx.OrderID, tx.Quantity,
		tx.UnitPrice.String(), tx.Amount.String(), tx.Commission.String(), tx.Fees.String(), tx.TradeDate, settled)
	if err != nil {
		return fmt.Errorf("failed to save transaction: %w", err)
	}
	return nil
}

// GetTransactions retrieves order transactions in arrival order.
func (s *SQLiteStore) GetTransactions(ctx context.Context, filter TransactionFilter) ([]models.OrderTransaction, error) {
	query := "SELECT symbol, exchange, broker, description, direction, order_id, quantity, unit_price, amount, commission, fees, trade_date, settled_date FROM transactions WHERE 1=1"
	args := []interface{}{}

	if filter.Symbol != "" {
		query += " AND symbol = ?"
		args = append(args, filter.Symbol)
	}
	if filter.Direction != "" {
		query += " AND direction = ?"
		args = append(args, string(filter.Direction))
	}
	if !filter.StartDate.IsZero() {
		query += " AND trade_date >= ?"
		args = append(args, filter.StartDate)
	}
	if !filter.EndDate.IsZero() {
		query += " AND trade_date <= ?"
		args = append(args, filter.EndDate)
	}

	query += " ORDER BY seq ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var txs []models.OrderTransaction
	for rows.Next() {
		var tx models.OrderTransaction
		var exchange, broker, description sql.NullString
		var direction string
		var settled sql.NullTime

		if err := rows.Scan(&tx.Symbol, &exchange, &broker, &description, &direction, &tx.OrderID, &tx.Quantity,
			&tx.UnitPrice, &tx.Amount, &tx.Commission, &tx.Fees, &tx.TradeDate, &settled); err != nil {
			return nil, apperrors.NewDataError("transaction", filter.Symbol, "failed to scan row", err)
		}

		tx.Exchange = exchange.String
		tx.Broker = broker.String
		tx.Description = description.String
		tx.Direction = models.Direction(direction)
		if settled.Valid {
			tx.SettledDate = settled.Time
		}
		txs = append(txs, tx)
	}

	return txs, rows.Err()
}

// ============================================================================
// Import Bookkeeping
// ============================================================================

// GetLastImport returns when source was last reconciled, or the zero time.
func (s *SQLiteStore) GetLastImport(source string) time.Time {
	s.mu.RLock()
	if t, ok := s.importTimes[source]; ok {
		s.mu.RUnlock()
		return t
	}
	s.mu.RUnlock()

	var last time.Time
	err := s.db.QueryRow(`
		SELECT last_import FROM import_status WHERE source = ?
	`, source).Scan(&last)
	if err != nil {
		return time.Time{}
	}

	s.mu.Lock()
	s.importTimes[source] = last
	s.mu.Unlock()

	return last
}

// SetLastImport records when source was last reconciled.
func (s *SQLiteStore) SetLastImport(source string, t time.Time) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO import_status (source, last_import, updated_at)
		VALUES (?, ?, ?)
	`, source, t, time.Now())
	if err != nil {
		return fmt.Errorf("failed to set last import: %w", err)
	}

	s.mu.Lock()
	s.importTimes[source] = t
	s.mu.Unlock()

	return nil
}
