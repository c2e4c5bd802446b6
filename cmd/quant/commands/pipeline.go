package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// pipelineCmd represents the pipeline command
var pipelineCmd = &cobra.Command{
	Use:   "pipeline",
	Short: "스코어링 파이프라인 실행",
	Long: `저장된 최신 스냅샷으로 전체 스코어링 파이프라인을 실행합니다.

이 명령어는:
- 최신 스냅샷 로드 및 단위 자동 감지
- 종목별 기본적 분석 (TTM, 성장, 품질, 배당)
- 밸류에이션·백분위 스코어링 및 종합점수 산출
- 기술적 지표 오버레이
- 6개 스타일 스크린 평가
- 대시보드 저장 및 엑셀 내보내기

Example:
  go run ./cmd/quant pipeline`,
	RunE: runPipeline,
}

func init() {
	rootCmd.AddCommand(pipelineCmd)
}

func runPipeline(cmd *cobra.Command, args []string) error {
	fmt.Println("=== kquant 스코어링 파이프라인 ===")

	ctx := cmd.Context()
	rt, err := newRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	summary, err := rt.newRunner().Run(ctx)
	if err != nil {
		return fmt.Errorf("run pipeline: %w", err)
	}

	fmt.Printf("✅ 완료: 유니버스 %d, 분석 %d, 스코어링 %d (%.1fs)\n",
		summary.Universe, summary.Analyzed, summary.Scored, summary.Duration.Seconds())
	for screen, count := range summary.PerScreen {
		fmt.Printf("  - %-16s %d 종목\n", screen, count)
	}
	return nil
}
