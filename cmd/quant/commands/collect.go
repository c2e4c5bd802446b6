package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/kquant/internal/contracts"
)

// collectCmd represents the collect command
var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "KRX/FnGuide 스냅샷 수집",
	Long: `전 종목 시장 스냅샷과 재무 데이터를 수집하여 저장합니다.

이 명령어는:
- KRX에서 코스피/코스닥 전 종목 시세·시총·상장주식수 수집
- 보통주에 한해 FnGuide 재무비율·재무제표·주식수 스크래핑
- 네이버에서 주가 히스토리 수집
- 수집일 기준 스냅샷으로 저장 (같은 날 재실행 시 덮어씀)

Example:
  go run ./cmd/quant collect
  go run ./cmd/quant collect --skip-prices
  go run ./cmd/quant collect --price-days 60`,
	RunE: runCollect,
}

var (
	collectSkipPrices bool
	collectPriceDays  int
)

func init() {
	rootCmd.AddCommand(collectCmd)

	collectCmd.Flags().BoolVar(&collectSkipPrices, "skip-prices", false, "주가 히스토리 수집 생략")
	collectCmd.Flags().IntVar(&collectPriceDays, "price-days", 430, "주가 히스토리 수집 구간 (달력일)")
}

func runCollect(cmd *cobra.Command, args []string) error {
	fmt.Println("=== kquant 데이터 수집 ===")

	ctx := cmd.Context()
	rt, err := newRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	started := time.Now()
	col := rt.newCollector()

	dataset, err := col.CollectSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("collect snapshot: %w", err)
	}

	today := time.Now().Format("2006-01-02")
	if err := saveDataset(ctx, rt, today, dataset); err != nil {
		return err
	}
	fmt.Printf("✅ 스냅샷 저장: 종목 %d, 지표 %d행, 재무 %d행\n",
		len(dataset.Listings), len(dataset.Indicators), len(dataset.Statements))

	if !collectSkipPrices {
		var commons []string
		for _, l := range dataset.Listings {
			if l.Class == contracts.ClassCommon {
				commons = append(commons, l.Ticker)
			}
		}
		rows := col.CollectPriceHistory(ctx, commons, collectPriceDays)
		if err := rt.prices.SaveHistory(ctx, rows); err != nil {
			return fmt.Errorf("save price history: %w", err)
		}
		fmt.Printf("✅ 주가 히스토리 저장: %d 캔들\n", len(rows))
	}

	fmt.Printf("완료 (%.1fs)\n", time.Since(started).Seconds())
	return nil
}

func saveDataset(ctx context.Context, rt *runtime, date string, dataset *contracts.SnapshotDataset) error {
	if err := rt.market.SaveListings(ctx, date, dataset.Listings); err != nil {
		return fmt.Errorf("save listings: %w", err)
	}
	if err := rt.market.SaveDaily(ctx, date, dataset.Daily); err != nil {
		return fmt.Errorf("save daily snapshot: %w", err)
	}
	if err := rt.market.SaveIndicators(ctx, date, dataset.Indicators); err != nil {
		return fmt.Errorf("save indicators: %w", err)
	}
	if err := rt.market.SaveStatements(ctx, date, dataset.Statements); err != nil {
		return fmt.Errorf("save statements: %w", err)
	}
	if err := rt.market.SaveShares(ctx, date, dataset.Shares); err != nil {
		return fmt.Errorf("save share counts: %w", err)
	}
	return nil
}
