package contracts

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// DateLayout is the canonical day format used in partition paths and reports
const DateLayout = "2006-01-02"

// Derived field names written by the indicator stage
const (
	DerivedSMA50      = "SMA_50"
	DerivedVolatility = "Volatility"
)

// Null returns the missing-value marker for numeric row fields
func Null() float64 {
	return math.NaN()
}

// IsNull reports whether v is the missing-value marker
func IsNull(v float64) bool {
	return math.IsNaN(v)
}

// Row is one trading day of OHLCV data
// ⭐ SSOT: 결측값은 NaN 으로 표현 (IsNull 사용)
type Row struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// HasNulls reports whether any numeric field is missing
func (r Row) HasNulls() bool {
	return IsNull(r.Open) || IsNull(r.High) || IsNull(r.Low) || IsNull(r.Close) || IsNull(r.Volume)
}

// Priced reports whether open and close are both present
func (r Row) Priced() bool {
	return !IsNull(r.Open) && !IsNull(r.Close)
}

// DataSeries is a per-symbol daily OHLC series plus derived indicator columns
type DataSeries struct {
	Symbol string
	Rows   []Row

	// Derived holds per-row indicator values keyed by name, NaN where undefined.
	// nil until the indicator stage runs for this series.
	Derived map[string][]float64
}

// NewSeries builds a series and normalizes its row order
func NewSeries(symbol string, rows []Row) *DataSeries {
	s := &DataSeries{Symbol: symbol, Rows: rows}
	s.Normalize()
	return s
}

// IsEmpty reports whether the series has no rows
func (s *DataSeries) IsEmpty() bool {
	return s == nil || len(s.Rows) == 0
}

// Len returns the number of rows
func (s *DataSeries) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Rows)
}

// Last returns the most recent row
func (s *DataSeries) Last() (Row, bool) {
	if s.IsEmpty() {
		return Row{}, false
	}
	return s.Rows[len(s.Rows)-1], true
}

// DerivedAt returns derived value name at row i, or NaN when absent
func (s *DataSeries) DerivedAt(name string, i int) float64 {
	col, ok := s.Derived[name]
	if !ok || i < 0 || i >= len(col) {
		return Null()
	}
	return col[i]
}

// Normalize sorts rows by date and drops duplicate dates, keeping the later entry
func (s *DataSeries) Normalize() {
	if len(s.Rows) < 2 {
		return
	}

	sort.SliceStable(s.Rows, func(i, j int) bool {
		return s.Rows[i].Date.Before(s.Rows[j].Date)
	})

	out := s.Rows[:0]
	for _, r := range s.Rows {
		if n := len(out); n > 0 && out[n-1].Date.Equal(r.Date) {
			out[n-1] = r
			continue
		}
		out = append(out, r)
	}
	s.Rows = out
}

// Clone returns a deep copy
func (s *DataSeries) Clone() *DataSeries {
	if s == nil {
		return nil
	}

	c := &DataSeries{
		Symbol: s.Symbol,
		Rows:   append([]Row(nil), s.Rows...),
	}
	if s.Derived != nil {
		c.Derived = make(map[string][]float64, len(s.Derived))
		for k, v := range s.Derived {
			c.Derived[k] = append([]float64(nil), v...)
		}
	}
	return c
}

// Batch maps symbol to series for one pipeline run.
// Stages take a batch and return a new one; the input is not written after hand-off.
type Batch map[string]*DataSeries

// Symbols returns the batch symbols in ascending order
func (b Batch) Symbols() []string {
	out := make([]string, 0, len(b))
	for sym := range b {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// Clone returns a deep copy of every series
func (b Batch) Clone() Batch {
	out := make(Batch, len(b))
	for sym, s := range b {
		out[sym] = s.Clone()
	}
	return out
}

// Without returns a shallow copy of b minus the given symbols
func (b Batch) Without(symbols ...string) Batch {
	drop := make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		drop[s] = struct{}{}
	}

	out := make(Batch, len(b))
	for sym, s := range b {
		if _, ok := drop[sym]; ok {
			continue
		}
		out[sym] = s
	}
	return out
}

// DateRange is an inclusive day range
type DateRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// NewDateRange truncates both ends to UTC midnight
func NewDateRange(from, to time.Time) DateRange {
	return DateRange{From: truncateDay(from), To: truncateDay(to)}
}

// LookbackRange returns the range of `days` calendar days ending at end
func LookbackRange(end time.Time, days int) DateRange {
	return NewDateRange(end.AddDate(0, 0, -days), end)
}

// ParseDateRange parses two YYYY-MM-DD dates
func ParseDateRange(from, to string) (DateRange, error) {
	f, err := time.Parse(DateLayout, from)
	if err != nil {
		return DateRange{}, fmt.Errorf("invalid from date %q: %w", from, err)
	}
	t, err := time.Parse(DateLayout, to)
	if err != nil {
		return DateRange{}, fmt.Errorf("invalid to date %q: %w", to, err)
	}
	return NewDateRange(f, t), nil
}

// Validate checks that both ends are set and ordered
func (r DateRange) Validate() error {
	if r.From.IsZero() || r.To.IsZero() {
		return &ConfigurationError{Field: "date_range", Message: "from and to are required"}
	}
	if r.To.Before(r.From) {
		return &ConfigurationError{
			Field:   "date_range",
			Message: fmt.Sprintf("to %s is before from %s", r.To.Format(DateLayout), r.From.Format(DateLayout)),
		}
	}
	return nil
}

// Days returns the number of calendar days covered, inclusive
func (r DateRange) Days() int {
	return int(r.To.Sub(r.From).Hours()/24) + 1
}

// Contains reports whether t falls on a day inside the range
func (r DateRange) Contains(t time.Time) bool {
	d := truncateDay(t)
	return !d.Before(r.From) && !d.After(r.To)
}

func (r DateRange) String() string {
	return r.From.Format(DateLayout) + ".." + r.To.Format(DateLayout)
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
