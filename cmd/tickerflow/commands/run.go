package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/tickerflow/internal/contracts"
	"github.com/wonny/tickerflow/internal/provider"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "파이프라인 1회 실행",
	Long: `파이프라인을 한 번 실행합니다.

단계:
  fetch → quality → indicators → persist → report → rank

날짜 범위를 주지 않으면 lookback_days 만큼 오늘로부터 거슬러 올라갑니다.
--dry-run 은 결정적 합성 데이터와 메모리 저장소를 사용합니다 (네트워크/DB 없음).

Example:
  go run ./cmd/tickerflow run --dry-run
  go run ./cmd/tickerflow run --symbols PETR4.SA,VALE3.SA
  go run ./cmd/tickerflow run --from 2024-01-01 --to 2024-03-31 --top-n 5`,
	RunE: runPipeline,
}

var (
	runSymbols string
	runFrom    string
	runTo      string
	runTopN    int
	runDryRun  bool
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runSymbols, "symbols", "", "comma-separated symbols (default: configured universe)")
	runCmd.Flags().StringVar(&runFrom, "from", "", "range start YYYY-MM-DD")
	runCmd.Flags().StringVar(&runTo, "to", "", "range end YYYY-MM-DD")
	runCmd.Flags().IntVar(&runTopN, "top-n", 0, "movers per side (default: configured top_n)")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "synthetic data, in-memory store")
}

func runPipeline(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := loadApp(ctx, runDryRun)
	if err != nil {
		return err
	}
	defer a.close()

	symbols := a.flow.Universe
	if runSymbols != "" {
		symbols = parseSymbols(runSymbols)
	}

	rng, err := resolveRange(runFrom, runTo, a.flow.LookbackDays, time.Now())
	if err != nil {
		return err
	}

	var prov contracts.Provider
	if runDryRun {
		static := provider.NewStaticProvider()
		for _, sym := range symbols {
			static.Set(provider.Synthetic(sym, rng))
		}
		prov = static
	} else if prov, err = a.provider(); err != nil {
		return err
	}

	p, err := a.newPipeline(prov, runTopN)
	if err != nil {
		return err
	}

	PrintJobHeader(JobMetadata{
		RunType:   "Pipeline Run",
		Tag:       prov.Name(),
		Timestamp: time.Now().Format("2006-01-02 15:04:05"),
		Period:    &Period{StartDate: rng.From.Format(contracts.DateLayout), EndDate: rng.To.Format(contracts.DateLayout)},
		Symbols:   fmt.Sprintf("%d", len(symbols)),
	})

	result, runErr := p.RunOnce(ctx, symbols, rng)
	if result == nil {
		return runErr
	}

	PrintStageTable(result)
	PrintMovers(result.Movers)

	if excluded := result.ExcludedSymbols(); len(excluded) > 0 {
		PrintWarning(fmt.Sprintf("%d symbols excluded: %s", len(excluded), strings.Join(excluded, ", ")))
	}

	if runErr != nil {
		PrintError(runErr.Error())
		return runErr
	}
	PrintRunCompletion(result.RunID, result.Duration().Seconds())
	return nil
}

// parseSymbols splits a comma list, trimming blanks
func parseSymbols(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, strings.ToUpper(part))
		}
	}
	return out
}

// resolveRange parses --from/--to or falls back to the lookback window ending now
func resolveRange(from, to string, lookbackDays int, now time.Time) (contracts.DateRange, error) {
	switch {
	case from == "" && to == "":
		return contracts.LookbackRange(now, lookbackDays), nil
	case from == "" || to == "":
		return contracts.DateRange{}, &contracts.ConfigurationError{Field: "date_range", Message: "--from and --to must be given together"}
	}

	rng, err := contracts.ParseDateRange(from, to)
	if err != nil {
		return contracts.DateRange{}, err
	}
	return rng, rng.Validate()
}
