package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wonny/kquant/internal/scheduler"
	"github.com/wonny/kquant/internal/scheduler/jobs"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "일일 배치 스케줄러 시작",
	Long: `장 마감 후 일일 배치(수집 → 스코어링 → 내보내기)를 cron으로
실행하는 스케줄러를 시작합니다.

기본 스케줄은 평일 18:10 (Asia/Seoul) 이며
BATCH_PIPELINE_SCHEDULE / BATCH_TIMEZONE 으로 바꿀 수 있습니다.

Example:
  go run ./cmd/quant scheduler
  go run ./cmd/quant scheduler --run-now`,
	RunE: runScheduler,
}

var schedulerRunNow bool

func init() {
	rootCmd.AddCommand(schedulerCmd)

	schedulerCmd.Flags().BoolVar(&schedulerRunNow, "run-now", false, "시작 직후 1회 즉시 실행")
}

func runScheduler(cmd *cobra.Command, args []string) error {
	fmt.Println("=== kquant Scheduler ===")

	ctx := cmd.Context()
	rt, err := newRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	job := jobs.NewPipelineJob(rt.cfg, rt.log, rt.newCollector(), rt.market, rt.prices, rt.newRunner())

	sched := scheduler.New(rt.cfg, rt.log)
	if err := sched.AddJob(job); err != nil {
		return fmt.Errorf("add job: %w", err)
	}

	sched.Start()
	defer sched.Stop()

	if schedulerRunNow {
		if err := sched.RunJob(job.Name()); err != nil {
			return err
		}
	}

	fmt.Printf("✅ Scheduler running (schedule: %s, timezone: %s)\n",
		rt.cfg.Batch.PipelineSchedule, rt.cfg.Batch.Timezone)
	fmt.Println("Press Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	return nil
}
