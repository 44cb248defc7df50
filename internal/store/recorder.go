package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/mattn/go-sqlite3"

	"trade-reconciler/internal/dispatch"
	apperrors "trade-reconciler/internal/errors"
	"trade-reconciler/internal/models"
	"trade-reconciler/pkg/utils"
)

// TradeSaver is the subset of DataStore the recorder writes through.
type TradeSaver interface {
	SaveTrades(ctx context.Context, trades []models.MatchedTrade) error
}

// TradeRecorder persists matched trades as the ledger creates them, in
// batches. Register it as a ledger observer and call Flush when done.
type TradeRecorder struct {
	batcher *dispatch.Batcher[models.MatchedTrade]

	mu    sync.Mutex
	err   error
	saved int
}

// NewTradeRecorder creates a recorder writing batches of batchSize trades.
// Batches that hit a busy or locked database are retried with backoff.
func NewTradeRecorder(ctx context.Context, saver TradeSaver, batchSize int) *TradeRecorder {
	retry := utils.DefaultRetryConfig()
	retry.Retryable = IsBusy

	r := &TradeRecorder{}
	r.batcher = dispatch.NewBatcher(batchSize, func(trades []models.MatchedTrade) error {
		err := utils.Retry(ctx, retry, func() error {
			return saver.SaveTrades(ctx, trades)
		})
		if err != nil {
			return fmt.Errorf("%w: %v", apperrors.ErrDatabaseError, err)
		}
		r.mu.Lock()
		r.saved += len(trades)
		r.mu.Unlock()
		return nil
	})
	return r
}

// OnTrade queues trade for persistence. The first write error is kept and
// reported by Flush and Err.
func (r *TradeRecorder) OnTrade(trade models.MatchedTrade) {
	if err := r.batcher.Add(trade); err != nil {
		r.setErr(err)
	}
}

// Flush writes any pending trades.
func (r *TradeRecorder) Flush() error {
	if err := r.batcher.Flush(); err != nil {
		r.setErr(err)
	}
	return r.Err()
}

// Err returns the first write error, if any.
func (r *TradeRecorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Saved returns the number of trades written so far.
func (r *TradeRecorder) Saved() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saved
}

func (r *TradeRecorder) setErr(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err == nil {
		r.err = err
	}
}

// IsBusy reports whether err is SQLite refusing a write because another
// connection holds the lock.
func IsBusy(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
	}
	return false
}
