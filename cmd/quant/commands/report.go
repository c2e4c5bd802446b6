package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/kquant/internal/report"
)

// reportCmd represents the report command
var reportCmd = &cobra.Command{
	Use:   "report [ticker]",
	Short: "Claude 정성 분석 보고서 생성",
	Long: `스코어링된 종목 하나에 대해 Claude 정성 분석 보고서를 생성합니다.

5대 투자 대가(Buffett, Damodaran, Fisher, Dorsey, Kostolany) 관점의
구조화된 평가를 생성하여 저장합니다. ANTHROPIC_API_KEY가 필요합니다.

Example:
  go run ./cmd/quant report 005930`,
	Args: cobra.ExactArgs(1),
	RunE: runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)
}

func runReport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	rt, err := newRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	ticker := args[0]
	rec, err := rt.dashboard.LoadOne(ctx, ticker)
	if err != nil {
		return fmt.Errorf("load stock: %w", err)
	}
	if rec == nil {
		return fmt.Errorf("ticker %s not found in dashboard, run the pipeline first", ticker)
	}

	gen, err := report.NewGenerator(rt.cfg, rt.log, rt.reports)
	if err != nil {
		return err
	}

	fmt.Printf("=== %s %s 정성 분석 ===\n", rec.Ticker, rec.Name)
	result, err := gen.Generate(ctx, rec)
	if err != nil {
		return fmt.Errorf("generate report: %w", err)
	}

	fmt.Printf("\n투자등급: %s (종합 %d/100)\n\n", result.Grade, result.CompositeScore)
	for _, key := range []string{"buffett", "damodaran", "fisher", "dorsey", "kostolany"} {
		m := result.Masters[key]
		fmt.Printf("[%s] %d/10 - %s\n", key, m.Score, m.Title)
	}
	fmt.Printf("\n%s\n", result.Summary)

	fmt.Println("\n주요 리스크:")
	for _, r := range result.Risks {
		fmt.Printf("  - %s\n", r)
	}
	fmt.Println("상승 촉매:")
	for _, c := range result.Catalysts {
		fmt.Printf("  - %s\n", c)
	}
	return nil
}
