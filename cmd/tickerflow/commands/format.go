package commands

import (
	"fmt"
	"time"

	"github.com/wonny/tickerflow/internal/contracts"
)

// ═══════════════════════════════════════════════════════════
// Common Formatting Utilities
// 모든 커맨드가 동일한 출력 포맷을 사용하도록 통일
// ═══════════════════════════════════════════════════════════

// JobMetadata holds run header metadata
type JobMetadata struct {
	RunType   string
	Tag       string
	Timestamp string
	Period    *Period // Optional
	Symbols   string  // Optional
}

// Period represents a date range
type Period struct {
	StartDate string
	EndDate   string
}

// PrintJobHeader prints a formatted run header
func PrintJobHeader(meta JobMetadata) {
	fmt.Println()
	PrintDoubleSeparator()
	fmt.Printf("  %s\n", meta.RunType)
	PrintSeparator()

	if meta.Period != nil {
		fmt.Printf("  Period    : %s ~ %s\n", meta.Period.StartDate, meta.Period.EndDate)
	}
	if meta.Symbols != "" {
		fmt.Printf("  Symbols   : %s\n", meta.Symbols)
	}

	PrintSeparator()
	fmt.Printf("[%s] Run triggered at %s\n", meta.Tag, meta.Timestamp)
}

// PrintStageTable prints one row per executed stage
func PrintStageTable(result *contracts.RunResult) {
	fmt.Println()
	widths := []int{12, 10, 10, 10, 10, 10}
	PrintTableHeader([]string{"STAGE", "SUCCEEDED", "EXCLUDED", "FAILED", "ATTEMPTS", "DURATION"}, widths)
	for _, rep := range result.Stages {
		c := rep.Counts()
		PrintTableRow([]string{
			rep.Stage.String(),
			fmt.Sprintf("%d", c.Succeeded),
			fmt.Sprintf("%d", c.Excluded),
			fmt.Sprintf("%d", c.Failed),
			fmt.Sprintf("%d", rep.Attempts),
			rep.Duration.Round(time.Millisecond).String(),
		}, widths)
	}
}

// PrintMovers prints gainers and losers side by side
func PrintMovers(m contracts.Movers) {
	fmt.Println()
	if m.IsEmpty() {
		PrintInfo("No movers (nothing rankable)")
		return
	}

	widths := []int{4, 14, 9, 14, 9}
	PrintTableHeader([]string{"#", "TOP GAINER", "%", "TOP LOSER", "%"}, widths)
	for i := 0; i < max(len(m.Gainers), len(m.Losers)); i++ {
		row := []string{fmt.Sprintf("%d", i+1), "", "", "", ""}
		if i < len(m.Gainers) {
			row[1], row[2] = m.Gainers[i].Symbol, fmt.Sprintf("%+.2f", m.Gainers[i].PctChange)
		}
		if i < len(m.Losers) {
			row[3], row[4] = m.Losers[i].Symbol, fmt.Sprintf("%+.2f", m.Losers[i].PctChange)
		}
		PrintTableRow(row, widths)
	}
}

// PrintRunCompletion prints run completion message
func PrintRunCompletion(runID string, duration float64) {
	fmt.Println()
	fmt.Printf("✅ Run %s completed in %.2fs\n", runID, duration)
}

// PrintSeparator prints a visual separator
func PrintSeparator() {
	fmt.Println("───────────────────────────────────────────────────────────")
}

// PrintDoubleSeparator prints a double-line separator
func PrintDoubleSeparator() {
	fmt.Println("═══════════════════════════════════════════════════════════")
}

// PrintWarning prints a warning message
func PrintWarning(message string) {
	fmt.Println()
	fmt.Printf("⚠️  %s\n", message)
	fmt.Println()
}

// PrintSuccess prints a success message
func PrintSuccess(message string) {
	fmt.Printf("✅ %s\n", message)
}

// PrintError prints an error message
func PrintError(message string) {
	fmt.Printf("❌ %s\n", message)
}

// PrintInfo prints an info message
func PrintInfo(message string) {
	fmt.Printf("ℹ️  %s\n", message)
}

// PrintTableHeader prints a table header
func PrintTableHeader(columns []string, widths []int) {
	PrintTableRow(columns, widths)

	totalWidth := 0
	for i, width := range widths {
		totalWidth += width
		if i < len(widths)-1 {
			totalWidth += 2 // spacing
		}
	}
	for i := 0; i < totalWidth; i++ {
		fmt.Print("─")
	}
	fmt.Println()
}

// PrintTableRow prints a table row
func PrintTableRow(values []string, widths []int) {
	for i, val := range values {
		fmt.Printf("%-*s", widths[i], val)
		if i < len(values)-1 {
			fmt.Print("  ")
		}
	}
	fmt.Println()
}

// PrintKeyValue prints key-value pairs
func PrintKeyValue(key string, value string, keyWidth int) {
	fmt.Printf("   %-*s : %s\n", keyWidth, key, value)
}
