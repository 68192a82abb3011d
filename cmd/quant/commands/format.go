package commands

import (
	"fmt"
	"sort"

	"github.com/wonny/factorscore/internal/brain"
	"github.com/wonny/factorscore/internal/contracts"
)

// ═══════════════════════════════════════════════════════════
// Common Formatting Utilities
// 모든 커맨드가 동일한 출력 포맷을 사용하도록 통일
// ═══════════════════════════════════════════════════════════

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

// PrintTableHeader prints a table header
func PrintTableHeader(columns []string, widths []int) {
	for i, col := range columns {
		fmt.Printf("%-*s", widths[i], col)
		if i < len(columns)-1 {
			fmt.Print("  ")
		}
	}
	fmt.Println()

	// Separator line
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

// formatScore renders a nullable score
func formatScore(v *float64) string {
	if v == nil {
		return "NULL"
	}
	return fmt.Sprintf("%.2f", *v)
}

// sortForDisplay orders by composite desc; NULL composites last, ties by entity id
func sortForDisplay(scores []*contracts.CompositeScore) []*contracts.CompositeScore {
	out := make([]*contracts.CompositeScore, len(scores))
	copy(out, scores)

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Composite, out[j].Composite
		switch {
		case a == nil && b == nil:
			return out[i].EntityID < out[j].EntityID
		case a == nil:
			return false
		case b == nil:
			return true
		case *a != *b:
			return *a > *b
		default:
			return out[i].EntityID < out[j].EntityID
		}
	})
	return out
}

func printSummary(s *contracts.RunSummary) {
	PrintKeyValue("Run ID", s.RunID, 14)
	PrintKeyValue("As Of", s.AsOfDate.Format("2006-01-02"), 14)
	PrintKeyValue("Period", string(s.PeriodType), 14)
	PrintKeyValue("Config Hash", s.ConfigHash, 14)
	PrintKeyValue("Universe", fmt.Sprintf("%d", s.UniverseSize), 14)
	PrintKeyValue("Written", fmt.Sprintf("%d (NULL composite %d)", s.Written, s.NullComposite), 14)
	PrintKeyValue("Rejected", fmt.Sprintf("%d", s.Rejected), 14)
	PrintKeyValue("Write Failed", fmt.Sprintf("%d", s.WriteFailed), 14)
	PrintKeyValue("Skipped", fmt.Sprintf("%d", s.Skipped), 14)
	PrintKeyValue("Duration", s.Duration().String(), 14)

	kinds := make([]string, 0, len(s.IssueCounts))
	for kind := range s.IssueCounts {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	for _, kind := range kinds {
		PrintKeyValue("Issues", fmt.Sprintf("%s=%d", kind, s.IssueCounts[kind]), 14)
	}
}

func printRunResult(result *brain.RunResult, top int) {
	fmt.Println()
	if result.Success {
		PrintSuccess("Scoring Run Completed")
	}
	fmt.Println()

	if result.Summary != nil {
		printSummary(result.Summary)
	}
	fmt.Println()

	rows := sortForDisplay(result.Scores)
	if top > 0 && len(rows) > top {
		rows = rows[:top]
	}

	columns := []string{"Entity", "Composite", "Conf", "Trend", "Recommendation", "Factors"}
	widths := []int{12, 9, 6, 10, 17, 7}
	PrintTableHeader(columns, widths)
	for _, cs := range rows {
		PrintTableRow([]string{
			cs.EntityID,
			formatScore(cs.Composite),
			formatScore(cs.Confidence),
			string(cs.CompositeTrend),
			string(cs.Recommendation),
			fmt.Sprintf("%d/%d", cs.PresentFactors, len(contracts.AllFactors())),
		}, widths)
	}
}
