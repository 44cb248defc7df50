// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrAccountingInvariant = errors.New("accounting invariant violated")
	ErrInvalidTransaction  = errors.New("invalid transaction")
	ErrInvalidFill         = errors.New("invalid fill")
	ErrConfigInvalid       = errors.New("invalid configuration")
	ErrDatabaseError       = errors.New("database error")
	ErrDispatcherStopped   = errors.New("dispatcher stopped")
	ErrQueueFull           = errors.New("dispatcher queue full")
)

// AccountingError reports a broken accounting invariant while matching a buy
// and a sell. It means the incoming trade stream is corrupt; the transaction
// that triggered it must be abandoned.
type AccountingError struct {
	Symbol      string
	Rule        string
	BuyOrderID  int64
	SellOrderID int64
	Message     string
}

func (e *AccountingError) Error() string {
	return fmt.Sprintf("accounting invariant [%s] %s (buy #%d, sell #%d): %s",
		e.Rule, e.Symbol, e.BuyOrderID, e.SellOrderID, e.Message)
}

func (e *AccountingError) Unwrap() error {
	return ErrAccountingInvariant
}

// NewAccountingError creates a new AccountingError.
func NewAccountingError(symbol, rule string, buyOrderID, sellOrderID int64, message string) *AccountingError {
	return &AccountingError{
		Symbol:      symbol,
		Rule:        rule,
		BuyOrderID:  buyOrderID,
		SellOrderID: sellOrderID,
		Message:     message,
	}
}

// ValidationError represents a validation error.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s (%v): %s", e.Field, e.Value, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// NewTransactionError creates a ValidationError for a malformed transaction.
func NewTransactionError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
		Err:     ErrInvalidTransaction,
	}
}

// NewFillError creates a ValidationError for a malformed fill.
func NewFillError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
		Err:     ErrInvalidFill,
	}
}

// DataError represents a data-related error.
type DataError struct {
	DataType string
	Symbol   string
	Message  string
	Err      error
}

func (e *DataError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("data error [%s] %s: %s: %v", e.DataType, e.Symbol, e.Message, e.Err)
	}
	return fmt.Sprintf("data error [%s] %s: %s", e.DataType, e.Symbol, e.Message)
}

func (e *DataError) Unwrap() error {
	return e.Err
}

// NewDataError creates a new DataError.
func NewDataError(dataType, symbol, message string, err error) *DataError {
	return &DataError{
		DataType: dataType,
		Symbol:   symbol,
		Message:  message,
		Err:      err,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// IsAccountingError reports whether err signals a corrupted trade stream.
func IsAccountingError(err error) bool {
	return errors.Is(err, ErrAccountingInvariant)
}
