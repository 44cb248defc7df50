// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"trade-reconciler/internal/models"
)

// DataStore defines the interface for data persistence.
type DataStore interface {
	// Matched trades
	LogTrade(ctx context.Context, trade *models.MatchedTrade) error
	SaveTrades(ctx context.Context, trades []models.MatchedTrade) error
	GetTrades(ctx context.Context, filter TradeFilter) ([]models.MatchedTrade, error)

	// Order transactions
	SaveTransaction(ctx context.Context, tx *models.OrderTransaction) error
	GetTransactions(ctx context.Context, filter TransactionFilter) ([]models.OrderTransaction, error)

	// Import bookkeeping
	GetLastImport(source string) time.Time
	SetLastImport(source string, t time.Time) error

	// Lifecycle
	Close() error
}

// TradeFilter represents filters for querying matched trades. Dates apply to
// the disposal date.
type TradeFilter struct {
	Symbol    string
	StartDate time.Time
	EndDate   time.Time
	LongTerm  *bool
	Limit     int
}

// TransactionFilter represents filters for querying order transactions.
type TransactionFilter struct {
	Symbol    string
	Direction models.Direction
	StartDate time.Time
	EndDate   time.Time
	Limit     int
}
