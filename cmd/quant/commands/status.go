package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "저장된 데이터 현황 조회",
	Long: `최신 스냅샷과 대시보드의 행 수를 조회합니다.

Example:
  go run ./cmd/quant status`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	rt, err := newRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	listings, err := rt.market.LoadLatestListings(ctx)
	if err != nil {
		return fmt.Errorf("load listings: %w", err)
	}
	daily, err := rt.market.LoadLatestDaily(ctx)
	if err != nil {
		return fmt.Errorf("load daily snapshot: %w", err)
	}
	indicators, err := rt.market.LoadLatestIndicators(ctx)
	if err != nil {
		return fmt.Errorf("load indicators: %w", err)
	}
	statements, err := rt.market.LoadLatestStatements(ctx)
	if err != nil {
		return fmt.Errorf("load statements: %w", err)
	}
	shares, err := rt.market.LoadLatestShares(ctx)
	if err != nil {
		return fmt.Errorf("load share counts: %w", err)
	}
	records, err := rt.dashboard.Load(ctx)
	if err != nil {
		return fmt.Errorf("load dashboard: %w", err)
	}

	fmt.Println("=== kquant 데이터 현황 ===")
	fmt.Printf("  상장 종목     : %d\n", len(listings))
	fmt.Printf("  일별 스냅샷   : %d\n", len(daily))
	fmt.Printf("  재무 지표     : %d행\n", len(indicators))
	fmt.Printf("  재무제표      : %d행\n", len(statements))
	fmt.Printf("  발행주식수    : %d\n", len(shares))
	fmt.Printf("  대시보드      : %d 종목\n", len(records))

	if len(daily) > 0 {
		fmt.Printf("  스냅샷 기준일 : %s\n", daily[0].Date)
	}
	return nil
}
