// Package logging provides structured logging functionality.
package logging

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	apperrors "trade-reconciler/internal/errors"
	"trade-reconciler/internal/models"
)

// LogConfig holds logging configuration.
type LogConfig struct {
	Level      string
	Console    bool
	File       bool
	FilePath   string
	MaxSize    int // megabytes
	MaxBackups int
	MaxAge     int // days
}

// DefaultLogConfig returns the default logging configuration.
func DefaultLogConfig() LogConfig {
	home, _ := os.UserHomeDir()
	return LogConfig{
		Level:      "info",
		Console:    true,
		File:       true,
		FilePath:   filepath.Join(home, ".config", "trade-reconciler", "logs", "reconciler.log"),
		MaxSize:    100,
		MaxBackups: 7,
		MaxAge:     30,
	}
}

// NewLogger creates a new logger with default configuration.
func NewLogger() zerolog.Logger {
	return NewLoggerWithConfig(DefaultLogConfig())
}

// NewLoggerWithConfig creates a new logger with the specified configuration.
// Console output goes to stderr so command output on stdout stays parseable.
func NewLoggerWithConfig(cfg LogConfig) zerolog.Logger {
	var writers []io.Writer

	if cfg.Console {
		writers = append(writers, zerolog.ConsoleWriter{
			Out:         os.Stderr,
			TimeFormat:  time.RFC3339,
			FormatLevel: formatLevel,
		})
	}

	// File writer with rotation
	if cfg.File && cfg.FilePath != "" {
		logDir := filepath.Dir(cfg.FilePath)
		if err := os.MkdirAll(logDir, 0755); err == nil {
			fileWriter := &lumberjack.Logger{
				Filename:   cfg.FilePath,
				MaxSize:    cfg.MaxSize,
				MaxBackups: cfg.MaxBackups,
				MaxAge:     cfg.MaxAge,
				Compress:   true,
			}
			writers = append(writers, fileWriter)
		}
	}

	var writer io.Writer
	switch len(writers) {
	case 0:
		writer = io.Discard
	case 1:
		writer = writers[0]
	default:
		writer = zerolog.MultiLevelWriter(writers...)
	}

	return New(writer, cfg.Level)
}

var levelTags = map[string]string{
	"debug": color.CyanString("DBG"),
	"info":  color.GreenString("INF"),
	"warn":  color.YellowString("WRN"),
	"error": color.RedString("ERR"),
}

// formatLevel renders the three-letter level tag on the console.
func formatLevel(i interface{}) string {
	level, _ := i.(string)
	if tag, ok := levelTags[level]; ok {
		return tag
	}
	return strings.ToUpper(level)
}

// New creates a logger writing JSON lines to w at the given level.
func New(w io.Writer, level string) zerolog.Logger {
	return zerolog.New(w).
		Level(ParseLevel(level)).
		With().
		Timestamp().
		Logger()
}

// ParseLevel converts a level name to a zerolog level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// ContextKey is the type for context keys.
type ContextKey string

const (
	// LoggerKey is the context key for the logger.
	LoggerKey ContextKey = "logger"
)

// WithLogger adds a logger to the context.
func WithLogger(ctx context.Context, logger zerolog.Logger) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}

// FromContext retrieves the logger from context.
func FromContext(ctx context.Context) zerolog.Logger {
	if logger, ok := ctx.Value(LoggerKey).(zerolog.Logger); ok {
		return logger
	}
	return zerolog.Nop()
}

// WithSymbol adds a symbol to the logger context.
func WithSymbol(logger zerolog.Logger, symbol string) zerolog.Logger {
	return logger.With().Str("symbol", symbol).Logger()
}

// WithOrderID adds an order ID to the logger context.
func WithOrderID(logger zerolog.Logger, orderID int64) zerolog.Logger {
	return logger.With().Int64("order_id", orderID).Logger()
}

// WithOperation adds an operation name to the logger context.
func WithOperation(logger zerolog.Logger, operation string) zerolog.Logger {
	return logger.With().Str("operation", operation).Logger()
}

// LogFill logs an incoming fill.
func LogFill(logger zerolog.Logger, fill models.Fill) {
	logger.Debug().
		Str("event", "fill").
		Str("symbol", fill.Symbol).
		Int64("order_id", fill.OrderID).
		Str("side", string(fill.Direction())).
		Int64("quantity", fill.Quantity).
		Str("price", fill.Price.String()).
		Time("fill_time", fill.Time).
		Msg("Fill received")
}

// LogMatchedTrade logs a closed round trip.
func LogMatchedTrade(logger zerolog.Logger, trade models.MatchedTrade) {
	logger.Info().
		Str("event", "matched_trade").
		Str("trade_id", trade.ID).
		Str("symbol", trade.Symbol).
		Int64("quantity", trade.Quantity).
		Int64("buy_order_id", trade.BuyOrderID).
		Int64("sell_order_id", trade.SellOrderID).
		Str("proceeds", trade.Proceeds.String()).
		Str("cost_basis", trade.CostOrBasis.String()).
		Str("gain", trade.GainOrLoss().String()).
		Str("cumulative_profit", trade.CumulativeProfit.String()).
		Bool("long_term", trade.LongTermGain).
		Msg("Trade matched")
}

// LogInvariantViolation logs a rejected transaction. Accounting errors are
// logged at error level with the broken rule; anything else is a warning.
func LogInvariantViolation(logger zerolog.Logger, tx models.OrderTransaction, err error) {
	var acct *apperrors.AccountingError
	if apperrors.As(err, &acct) {
		logger.Error().
			Str("event", "invariant_violation").
			Str("symbol", acct.Symbol).
			Str("rule", acct.Rule).
			Int64("buy_order_id", acct.BuyOrderID).
			Int64("sell_order_id", acct.SellOrderID).
			Int64("order_id", tx.OrderID).
			Err(err).
			Msg("Accounting invariant violated, transaction abandoned")
		return
	}

	logger.Warn().
		Str("event", "rejected_transaction").
		Str("symbol", tx.Symbol).
		Int64("order_id", tx.OrderID).
		Int64("quantity", tx.Quantity).
		Err(err).
		Msg("Transaction rejected")
}

// TradeLogger logs every matched trade it observes.
type TradeLogger struct {
	Logger zerolog.Logger
}

// OnTrade logs trade.
func (l TradeLogger) OnTrade(trade models.MatchedTrade) {
	LogMatchedTrade(WithSymbol(l.Logger, trade.Symbol), trade)
}
