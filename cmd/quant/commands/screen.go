package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wonny/kquant/internal/analysis"
	"github.com/wonny/kquant/internal/contracts"
)

// screenCmd represents the screen command
var screenCmd = &cobra.Command{
	Use:   "screen [name]",
	Short: "스타일 스크린 평가",
	Long: `저장된 대시보드 위에서 투자 스타일 스크린을 평가합니다.

Screens:
  quality_value    우량주 (품질+밸류)
  momentum         실적 모멘텀
  garp             합리적 가격의 성장주
  cashcow          캐시카우
  turnaround       턴어라운드
  dividend_growth  배당성장

Example:
  go run ./cmd/quant screen quality_value
  go run ./cmd/quant screen garp --limit 10`,
	Args: cobra.ExactArgs(1),
	RunE: runScreen,
}

var screenLimit int

func init() {
	rootCmd.AddCommand(screenCmd)

	screenCmd.Flags().IntVar(&screenLimit, "limit", 30, "출력할 최대 종목 수")
}

func runScreen(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	rt, err := newRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	records, err := rt.dashboard.Load(ctx)
	if err != nil {
		return fmt.Errorf("load dashboard: %w", err)
	}
	if len(records) == 0 {
		return fmt.Errorf("dashboard is empty, run the pipeline first")
	}

	result, err := analysis.EvaluateScreen(args[0], records)
	if err != nil {
		return err
	}

	fmt.Printf("=== %s: %d 종목 ===\n", result.Screen, len(result.Entries))
	printScreenTable(result.Entries, screenLimit)
	return nil
}

func printScreenTable(entries []contracts.ScreenEntry, limit int) {
	if len(entries) == 0 {
		fmt.Println("(조건을 만족하는 종목 없음)")
		return
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}

	fmt.Println(strings.Repeat("─", 78))
	fmt.Printf("%-8s %-16s %-7s %8s %8s %8s %8s %8s\n",
		"코드", "종목명", "시장", "스타일", "종합", "PER", "PBR", "ROE")
	fmt.Println(strings.Repeat("─", 78))
	for _, e := range entries {
		fmt.Printf("%-8s %-16s %-7s %8s %8s %8s %8s %8s\n",
			e.Ticker, truncateName(e.Name, 16), e.Market,
			fmtCell(e.StyleScore, 1), fmtCell(e.Composite, 1),
			fmtCell(e.PER, 2), fmtCell(e.PBR, 2), fmtCell(e.ROE, 1))
	}
	fmt.Println(strings.Repeat("─", 78))
}

func fmtCell(v contracts.Float, decimals int) string {
	if v.IsNaN() {
		return "-"
	}
	return fmt.Sprintf("%.*f", decimals, float64(v))
}

func truncateName(name string, max int) string {
	runes := []rune(name)
	if len(runes) <= max {
		return name
	}
	return string(runes[:max-1]) + "…"
}
