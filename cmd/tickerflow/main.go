package main

import (
	"os"

	"github.com/wonny/tickerflow/cmd/tickerflow/commands"
)

// main is the entry point for the tickerflow CLI
// ⭐ 통합 CLI 진입점: go run ./cmd/tickerflow [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
