package report

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/tidwall/pretty"

	"github.com/wonny/tickerflow/internal/contracts"
	"github.com/wonny/tickerflow/internal/storage"
	"github.com/wonny/tickerflow/pkg/logger"
)

// ConsolidatedHeader is the column layout of consolidated.csv
var ConsolidatedHeader = []string{"symbol", "date", "open", "high", "low", "close", "volume",
	contracts.DerivedSMA50, contracts.DerivedVolatility}

// MoversHeader is the column layout of top_movers.csv
var MoversHeader = []string{"rank", "top_gainer", "gainer_pct", "top_loser", "loser_pct"}

// Paths of the artifacts written for a run date
func ConsolidatedPath(runDate time.Time) string {
	return "reports/" + runDate.Format(contracts.DateLayout) + "/consolidated.csv"
}

func MoversCSVPath(runDate time.Time) string {
	return "reports/" + runDate.Format(contracts.DateLayout) + "/top_movers.csv"
}

func MoversJSONPath(runDate time.Time) string {
	return "reports/" + runDate.Format(contracts.DateLayout) + "/top_movers.json"
}

// StoreEmitter writes report artifacts into the partition store.
// Paths depend only on the run date, so re-runs overwrite.
type StoreEmitter struct {
	store  contracts.PartitionStore
	logger *logger.Logger
}

// NewStoreEmitter creates an emitter over store
func NewStoreEmitter(store contracts.PartitionStore, log *logger.Logger) *StoreEmitter {
	return &StoreEmitter{
		store:  store,
		logger: log.WithField("module", "report"),
	}
}

// EmitConsolidated writes one CSV line per symbol-day
func (e *StoreEmitter) EmitConsolidated(ctx context.Context, runDate time.Time, rows []contracts.ReportRow) error {
	payload, err := EncodeConsolidated(rows)
	if err != nil {
		return fmt.Errorf("encode consolidated report: %w", err)
	}

	path := ConsolidatedPath(runDate)
	if err := e.store.Write(ctx, path, payload); err != nil {
		return err
	}

	e.logger.WithFields(map[string]interface{}{
		"path": path,
		"rows": len(rows),
	}).Info("Consolidated report written")
	return nil
}

// EmitMovers writes the gainers/losers table as CSV and pretty JSON
func (e *StoreEmitter) EmitMovers(ctx context.Context, runDate time.Time, movers contracts.Movers) error {
	table, err := EncodeMoversTable(movers)
	if err != nil {
		return fmt.Errorf("encode movers table: %w", err)
	}
	if err := e.store.Write(ctx, MoversCSVPath(runDate), table); err != nil {
		return err
	}

	raw, err := json.Marshal(movers)
	if err != nil {
		return fmt.Errorf("marshal movers: %w", err)
	}
	if err := e.store.Write(ctx, MoversJSONPath(runDate), pretty.Pretty(raw)); err != nil {
		return err
	}

	e.logger.WithFields(map[string]interface{}{
		"gainers": len(movers.Gainers),
		"losers":  len(movers.Losers),
		"date":    runDate.Format(contracts.DateLayout),
	}).Info("Top movers written")
	return nil
}

// EncodeConsolidated renders report rows as CSV
func EncodeConsolidated(rows []contracts.ReportRow) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(ConsolidatedHeader); err != nil {
		return nil, err
	}
	for _, r := range rows {
		if err := w.Write([]string{
			r.Symbol,
			r.Date.Format(contracts.DateLayout),
			storage.FormatFloat(r.Open),
			storage.FormatFloat(r.High),
			storage.FormatFloat(r.Low),
			storage.FormatFloat(r.Close),
			storage.FormatFloat(r.Volume),
			storage.FormatFloat(r.SMA50),
			storage.FormatFloat(r.Volatility),
		}); err != nil {
			return nil, err
		}
	}

	w.Flush()
	return buf.Bytes(), w.Error()
}

// EncodeMoversTable renders gainers and losers side by side
func EncodeMoversTable(movers contracts.Movers) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(MoversHeader); err != nil {
		return nil, err
	}

	n := len(movers.Gainers)
	if len(movers.Losers) > n {
		n = len(movers.Losers)
	}
	for i := 0; i < n; i++ {
		line := []string{strconv.Itoa(i + 1), "", "", "", ""}
		if i < len(movers.Gainers) {
			line[1] = movers.Gainers[i].Symbol
			line[2] = formatPct(movers.Gainers[i].PctChange)
		}
		if i < len(movers.Losers) {
			line[3] = movers.Losers[i].Symbol
			line[4] = formatPct(movers.Losers[i].PctChange)
		}
		if err := w.Write(line); err != nil {
			return nil, err
		}
	}

	w.Flush()
	return buf.Bytes(), w.Error()
}

func formatPct(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
