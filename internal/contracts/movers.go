package contracts

import (
	"fmt"
	"strings"
	"time"
)

// MoverRecord is one symbol's change over its most recent session
type MoverRecord struct {
	Symbol    string    `json:"symbol"`
	Date      time.Time `json:"date"`
	PctChange float64   `json:"pct_change"`
}

// Movers is the ranking output
type Movers struct {
	Gainers []MoverRecord `json:"gainers"`
	Losers  []MoverRecord `json:"losers"`
}

// EmptyMovers returns movers with non-nil empty slices
func EmptyMovers() Movers {
	return Movers{Gainers: []MoverRecord{}, Losers: []MoverRecord{}}
}

// IsEmpty reports whether neither side has entries
func (m Movers) IsEmpty() bool {
	return len(m.Gainers) == 0 && len(m.Losers) == 0
}

// ReportRow is one consolidated report line: a symbol-day with its derived values
type ReportRow struct {
	Symbol     string    `json:"symbol"`
	Date       time.Time `json:"date"`
	Open       float64   `json:"open"`
	High       float64   `json:"high"`
	Low        float64   `json:"low"`
	Close      float64   `json:"close"`
	Volume     float64   `json:"volume"`
	SMA50      float64   `json:"sma_50"`
	Volatility float64   `json:"volatility"`
}

// PartitionKey identifies one persisted (symbol, date) blob
type PartitionKey struct {
	Symbol string
	Date   time.Time
}

// Path returns the blob path {symbol}/{YYYY-MM-DD}.csv
func (k PartitionKey) Path() string {
	return k.Symbol + "/" + k.Date.Format(DateLayout) + ".csv"
}

// ParsePartitionPath is the inverse of PartitionKey.Path
func ParsePartitionPath(path string) (PartitionKey, error) {
	idx := strings.LastIndex(path, "/")
	if idx <= 0 || !strings.HasSuffix(path, ".csv") {
		return PartitionKey{}, fmt.Errorf("invalid partition path %q", path)
	}

	date, err := time.Parse(DateLayout, strings.TrimSuffix(path[idx+1:], ".csv"))
	if err != nil {
		return PartitionKey{}, fmt.Errorf("invalid partition path %q: %w", path, err)
	}
	return PartitionKey{Symbol: path[:idx], Date: date}, nil
}
