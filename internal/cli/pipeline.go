package cli

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"trade-reconciler/internal/dispatch"
	apperrors "trade-reconciler/internal/errors"
	"trade-reconciler/internal/factory"
	"trade-reconciler/internal/inventory"
	"trade-reconciler/internal/ledger"
	"trade-reconciler/internal/logging"
	"trade-reconciler/internal/models"
	"trade-reconciler/internal/store"
)

// RunOptions controls a reconciliation run.
type RunOptions struct {
	Discipline inventory.Discipline
	Workers    int
	Persist    bool
	// Source names the input for import bookkeeping, usually the file path.
	Source string
}

// Rejection is a fill the ledger refused.
type Rejection struct {
	Symbol  string `json:"symbol"`
	OrderID int64  `json:"order_id"`
	Rule    string `json:"rule,omitempty"`
	Error   string `json:"error"`
}

// RunResult is the outcome of a reconciliation run.
type RunResult struct {
	Processor *ledger.Processor
	Fills     int
	Rejected  []Rejection
	Dispatch  dispatch.Stats
	Persisted int
}

// Reconcile feeds fills through the factory and the ledger. Fills of one
// symbol are processed in input order on a single worker; symbols run in
// parallel. A rejected fill leaves the ledger untouched and is reported in the
// result rather than failing the run.
func (a *App) Reconcile(ctx context.Context, fills []models.Fill, opts RunOptions) (*RunResult, error) {
	logger := logging.WithOperation(a.Logger, "reconcile")
	ctx = logging.WithLogger(ctx, logger)

	fees, err := factory.NewFeeModel(a.Config.FeeModelConfig())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrConfigInvalid, err)
	}
	txFactory := factory.New(a.Config.Ledger.Broker, fees, a.Config.Settlement.Days)

	procOpts := []ledger.Option{
		ledger.WithDiscipline(opts.Discipline),
		ledger.WithObserver(logging.TradeLogger{Logger: logger}),
	}

	var (
		dataStore store.DataStore
		recorder  *store.TradeRecorder
	)
	if opts.Persist {
		dataStore, err = a.DataStore()
		if err != nil {
			return nil, err
		}
		recorder = store.NewTradeRecorder(ctx, dataStore, a.Config.Dispatch.BatchSize)
		procOpts = append(procOpts, ledger.WithObserver(recorder))
	}

	processor := ledger.NewProcessor(procOpts...)
	result := &RunResult{Processor: processor, Fills: len(fills)}

	var (
		mu       sync.Mutex
		firstErr error
	)
	reject := func(tx models.OrderTransaction, fill models.Fill, err error) {
		r := Rejection{Symbol: fill.Symbol, OrderID: fill.OrderID, Error: err.Error()}
		var acct *apperrors.AccountingError
		if apperrors.As(err, &acct) {
			r.Rule = acct.Rule
		}
		logging.LogInvariantViolation(logging.WithSymbol(logger, fill.Symbol), tx, err)

		mu.Lock()
		result.Rejected = append(result.Rejected, r)
		mu.Unlock()
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = a.Config.Dispatch.Workers
	}
	dispatcher := dispatch.New(workers, a.Config.Dispatch.QueueSize,
		dispatch.WithErrorHandler(func(symbol string, err error) {
			logger.Error().Str("symbol", symbol).Err(err).Msg("Task failed")
			mu.Lock()
			if firstErr == nil {
				firstErr = err
			}
			mu.Unlock()
		}))
	dispatcher.Start()

	start := time.Now()
	for _, fill := range fills {
		fill := fill
		task := func() error {
			logging.LogFill(logger, fill)

			tx, err := txFactory.FromFill(fill)
			if err != nil {
				reject(models.OrderTransaction{Symbol: fill.Symbol, OrderID: fill.OrderID, Quantity: fill.Quantity}, fill, err)
				return nil
			}
			if _, err := processor.ProcessTransaction(tx); err != nil {
				reject(tx, fill, err)
				return nil
			}
			if dataStore != nil {
				if err := dataStore.SaveTransaction(ctx, &tx); err != nil {
					return fmt.Errorf("%w: order %d: %v", apperrors.ErrDatabaseError, tx.OrderID, err)
				}
			}
			return nil
		}

		if err := dispatcher.Submit(ctx, fill.Symbol, task); err != nil {
			dispatcher.Stop()
			return nil, apperrors.Wrapf(err, "submitting order %d", fill.OrderID)
		}
	}
	dispatcher.Stop()
	result.Dispatch = dispatcher.Stats()

	sort.SliceStable(result.Rejected, func(i, j int) bool {
		return result.Rejected[i].OrderID < result.Rejected[j].OrderID
	})

	if recorder != nil {
		if err := recorder.Flush(); err != nil && firstErr == nil {
			firstErr = err
		}
		result.Persisted = recorder.Saved()
	}
	if firstErr != nil {
		return result, firstErr
	}

	if dataStore != nil && opts.Source != "" {
		if err := dataStore.SetLastImport(opts.Source, time.Now()); err != nil {
			return result, err
		}
	}

	totals := processor.Totals()
	logger.Info().
		Int("fills", len(fills)).
		Int("trades", totals.TradeCount).
		Int("rejected", len(result.Rejected)).
		Int("open_symbols", totals.OpenSymbols).
		Str("realized_pnl", totals.Profit.StringFixed(2)).
		Dur("elapsed", time.Since(start)).
		Msg("Reconciliation complete")

	return result, nil
}
