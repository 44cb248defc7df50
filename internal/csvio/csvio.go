// Package csvio reads fill events from CSV and writes matched trades back out.
package csvio

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/shopspring/decimal"

	apperrors "trade-reconciler/internal/errors"
	"trade-reconciler/internal/models"
)

// timeLayouts are tried in order when parsing the fill time column.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"20060102 15:04:05",
}

// FillRecord is one row of a fills file. Fields are kept as text and parsed
// explicitly so money never passes through a float.
type FillRecord struct {
	Time     string `csv:"time"`
	Symbol   string `csv:"symbol"`
	OrderID  string `csv:"order_id"`
	Quantity string `csv:"quantity"`
	Price    string `csv:"price"`
	Exchange string `csv:"exchange"`
}

// ToFill parses the record. Times without a zone are read in loc.
func (r FillRecord) ToFill(loc *time.Location) (models.Fill, error) {
	symbol := strings.ToUpper(strings.TrimSpace(r.Symbol))
	if symbol == "" {
		return models.Fill{}, apperrors.NewFillError("symbol", r.Symbol, "symbol is required")
	}

	qty, err := strconv.ParseInt(strings.TrimSpace(r.Quantity), 10, 64)
	if err != nil {
		return models.Fill{}, apperrors.NewFillError("quantity", r.Quantity, "not an integer")
	}

	price, err := decimal.NewFromString(strings.TrimSpace(r.Price))
	if err != nil {
		return models.Fill{}, apperrors.NewFillError("price", r.Price, "not a number")
	}

	var orderID int64
	if s := strings.TrimSpace(r.OrderID); s != "" {
		if orderID, err = strconv.ParseInt(s, 10, 64); err != nil {
			return models.Fill{}, apperrors.NewFillError("order_id", r.OrderID, "not an integer")
		}
	}

	at, err := ParseTime(r.Time, loc)
	if err != nil {
		return models.Fill{}, apperrors.NewFillError("time", r.Time, err.Error())
	}

	return models.Fill{
		Symbol:   symbol,
		OrderID:  orderID,
		Quantity: qty,
		Price:    price,
		Time:     at,
		Exchange: strings.TrimSpace(r.Exchange),
	}, nil
}

// ParseTime parses a fill timestamp. An empty string yields the zero time.
func ParseTime(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised time format %q", s)
}

// ReadFills parses every row of r. Row numbers in errors count the header as
// line 1.
func ReadFills(r io.Reader, loc *time.Location) ([]models.Fill, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read fills: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	var records []*FillRecord
	if err := gocsv.UnmarshalBytes(data, &records); err != nil {
		return nil, fmt.Errorf("failed to parse fills: %w", err)
	}

	fills := make([]models.Fill, 0, len(records))
	for i, rec := range records {
		fill, err := rec.ToFill(loc)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+2, err)
		}
		fills = append(fills, fill)
	}
	return fills, nil
}

// ReadFillsFile opens path and parses its fills.
func ReadFillsFile(path string, loc *time.Location) ([]models.Fill, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open fills file: %w", err)
	}
	defer f.Close()

	fills, err := ReadFills(f, loc)
	if err != nil {
		return nil, apperrors.Wrap(err, path)
	}
	return fills, nil
}

// TradeRecord is one row of a matched-trade export.
type TradeRecord struct {
	ID               string `csv:"id"`
	Symbol           string `csv:"symbol"`
	Quantity         int64  `csv:"quantity"`
	DateAcquired     string `csv:"date_acquired"`
	DateDisposed     string `csv:"date_disposed"`
	Proceeds         string `csv:"proceeds"`
	CostOrBasis      string `csv:"cost_basis"`
	AdjustmentAmount string `csv:"adjustment"`
	GainOrLoss       string `csv:"gain_or_loss"`
	CumulativeProfit string `csv:"cumulative_profit"`
	Commission       string `csv:"commission"`
	Fees             string `csv:"fees"`
	BuyOrderID       int64  `csv:"buy_order_id"`
	SellOrderID      int64  `csv:"sell_order_id"`
	Term             string `csv:"term"`
}

// NewTradeRecord flattens a matched trade for export.
func NewTradeRecord(t models.MatchedTrade) TradeRecord {
	term := "short"
	if t.LongTermGain {
		term = "long"
	}
	return TradeRecord{
		ID:               t.ID,
		Symbol:           t.Symbol,
		Quantity:         t.Quantity,
		DateAcquired:     t.DateAcquired.Format(time.RFC3339),
		DateDisposed:     t.DateDisposed.Format(time.RFC3339),
		Proceeds:         t.Proceeds.StringFixed(2),
		CostOrBasis:      t.CostOrBasis.StringFixed(2),
		AdjustmentAmount: t.AdjustmentAmount.StringFixed(2),
		GainOrLoss:       t.GainOrLoss().StringFixed(2),
		CumulativeProfit: t.CumulativeProfit.StringFixed(2),
		Commission:       t.Commission.StringFixed(2),
		Fees:             t.Fees.StringFixed(2),
		BuyOrderID:       t.BuyOrderID,
		SellOrderID:      t.SellOrderID,
		Term:             term,
	}
}

// WriteTrades writes trades as CSV with a header row.
func WriteTrades(w io.Writer, trades []models.MatchedTrade) error {
	records := make([]*TradeRecord, 0, len(trades))
	for _, t := range trades {
		rec := NewTradeRecord(t)
		records = append(records, &rec)
	}
	if err := gocsv.Marshal(&records, w); err != nil {
		return fmt.Errorf("failed to write trades: %w", err)
	}
	return nil
}

// WriteTradesFile creates path and writes trades to it.
func WriteTradesFile(path string, trades []models.MatchedTrade) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}
	if err := WriteTrades(f, trades); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
