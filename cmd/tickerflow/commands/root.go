package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	pipelineFile string
	verbose      bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "tickerflow",
	Short: "tickerflow - 일봉 수집 / 지표 / top movers 파이프라인",
	Long: `tickerflow Unified CLI

fetch → quality → indicators → persist → report → rank
종목별 실패는 격리되고, 단계별 재시도 정책이 적용됩니다.

Usage:
  go run ./cmd/tickerflow [command]

Examples:
  go run ./cmd/tickerflow run --dry-run
  go run ./cmd/tickerflow run --symbols PETR4.SA,VALE3.SA --from 2024-01-01 --to 2024-03-31
  go run ./cmd/tickerflow scheduler start
  go run ./cmd/tickerflow api`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&pipelineFile, "pipeline", "", "pipeline YAML (default $PIPELINE_CONFIG or configs/pipeline.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}
