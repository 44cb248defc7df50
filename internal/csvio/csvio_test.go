package csvio

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	apperrors "trade-reconciler/internal/errors"
	"trade-reconciler/internal/models"
)

const fillsCSV = `time,symbol,order_id,quantity,price,exchange
2024-03-04 09:30:00,aapl,1,100,10.01,NASDAQ
2024-03-05T15:59:00Z,AAPL,2,-150,12.00,NASDAQ
,MSFT,3,-20,410.25,
`

func TestReadFills(t *testing.T) {
	fills, err := ReadFills(strings.NewReader(fillsCSV), time.UTC)
	if err != nil {
		t.Fatalf("ReadFills: %v", err)
	}
	if len(fills) != 3 {
		t.Fatalf("got %d fills, want 3", len(fills))
	}

	first := fills[0]
	if first.Symbol != "AAPL" || first.OrderID != 1 || first.Quantity != 100 {
		t.Errorf("first fill = %+v", first)
	}
	if !first.Price.Equal(decimal.RequireFromString("10.01")) {
		t.Errorf("price = %s, want 10.01", first.Price)
	}
	if want := time.Date(2024, 3, 4, 9, 30, 0, 0, time.UTC); !first.Time.Equal(want) {
		t.Errorf("time = %s, want %s", first.Time, want)
	}

	if fills[1].Direction() != models.DirectionSell {
		t.Errorf("negative quantity should be a sell")
	}
	if !fills[2].Time.IsZero() || fills[2].Exchange != "" {
		t.Errorf("blank columns should stay empty: %+v", fills[2])
	}
}

func TestReadFillsReportsLine(t *testing.T) {
	in := "time,symbol,order_id,quantity,price,exchange\n" +
		"2024-03-04,AAPL,1,100,10,X\n" +
		"2024-03-04,AAPL,2,ten,10,X\n"

	_, err := ReadFills(strings.NewReader(in), nil)
	if err == nil {
		t.Fatal("expected an error")
	}
	if !apperrors.Is(err, apperrors.ErrInvalidFill) {
		t.Errorf("err = %v, want ErrInvalidFill", err)
	}
	if !strings.Contains(err.Error(), "line 3") {
		t.Errorf("err = %v, want line 3", err)
	}
}

func TestReadFillsEmptyInput(t *testing.T) {
	fills, err := ReadFills(strings.NewReader("  \n"), nil)
	if err != nil || len(fills) != 0 {
		t.Errorf("empty input = %v, %v", fills, err)
	}
}

func TestParseTimeUsesLocation(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skip("tzdata not available")
	}
	got, err := ParseTime("2024-07-01 09:30:00", ny)
	if err != nil {
		t.Fatalf("ParseTime: %v", err)
	}
	if got.UTC().Hour() != 13 {
		t.Errorf("09:30 New York = %s UTC, want 13:30", got.UTC())
	}
	if _, err := ParseTime("yesterday", ny); err == nil {
		t.Error("expected error for unparseable time")
	}
}

func TestWriteTrades(t *testing.T) {
	at := time.Date(2024, 3, 4, 14, 30, 0, 0, time.UTC)
	trades := []models.MatchedTrade{{
		ID:               "T1",
		Symbol:           "AAPL",
		Quantity:         100,
		DateAcquired:     at,
		DateDisposed:     at.AddDate(1, 0, 2),
		Proceeds:         decimal.NewFromInt(1199),
		CostOrBasis:      decimal.NewFromInt(1001),
		AdjustmentAmount: decimal.Zero,
		CumulativeProfit: decimal.NewFromInt(198),
		Commission:       decimal.NewFromInt(-2),
		Fees:             decimal.Zero,
		BuyOrderID:       1,
		SellOrderID:      2,
		LongTermGain:     true,
	}}

	var buf bytes.Buffer
	if err := WriteTrades(&buf, trades); err != nil {
		t.Fatalf("WriteTrades: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want header + 1", len(lines))
	}
	if !strings.HasPrefix(lines[0], "id,symbol,quantity,date_acquired") {
		t.Errorf("header = %q", lines[0])
	}
	for _, want := range []string{"T1", "1199.00", "1001.00", "198.00", "-2.00", "long"} {
		if !strings.Contains(lines[1], want) {
			t.Errorf("row %q missing %q", lines[1], want)
		}
	}
}

func TestWriteTradesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trades.csv")
	if err := WriteTradesFile(path, nil); err != nil {
		t.Fatalf("WriteTradesFile: %v", err)
	}
	if _, err := ReadFillsFile(filepath.Join(t.TempDir(), "missing.csv"), nil); err == nil {
		t.Error("missing file should fail")
	}
}
