package storage

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"

	"github.com/wonny/tickerflow/internal/contracts"
)

// PartitionHeader is the column layout of every partition blob
var PartitionHeader = []string{"date", "open", "high", "low", "close", "volume",
	contracts.DerivedSMA50, contracts.DerivedVolatility}

// EncodePartition renders row i of the series as a one-row CSV blob.
// Output depends only on the row values, so re-encoding is byte-identical.
func EncodePartition(s *contracts.DataSeries, i int) ([]byte, error) {
	if i < 0 || i >= s.Len() {
		return nil, fmt.Errorf("row %d out of range for %s (%d rows)", i, s.Symbol, s.Len())
	}
	r := s.Rows[i]

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(PartitionHeader); err != nil {
		return nil, err
	}
	if err := w.Write([]string{
		r.Date.Format(contracts.DateLayout),
		FormatFloat(r.Open),
		FormatFloat(r.High),
		FormatFloat(r.Low),
		FormatFloat(r.Close),
		FormatFloat(r.Volume),
		FormatFloat(s.DerivedAt(contracts.DerivedSMA50, i)),
		FormatFloat(s.DerivedAt(contracts.DerivedVolatility, i)),
	}); err != nil {
		return nil, err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// FormatFloat renders v in the shortest exact form; null becomes an empty cell
func FormatFloat(v float64) string {
	if contracts.IsNull(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
