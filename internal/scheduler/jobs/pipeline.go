// Package jobs holds the scheduled batch jobs.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/kquant/internal/collector"
	"github.com/wonny/kquant/internal/contracts"
	"github.com/wonny/kquant/internal/pipeline"
	"github.com/wonny/kquant/pkg/config"
	"github.com/wonny/kquant/pkg/logger"
)

// 기술적 지표 윈도(400일)를 넉넉히 덮는 수집 구간
const historyFetchDays = 430

// PipelineJob runs the daily batch: collect the snapshot, persist it,
// refresh price history, then score the universe.
type PipelineJob struct {
	cfg       *config.Config
	log       *logger.Logger
	collector *collector.Collector
	market    contracts.MarketDataRepository
	prices    contracts.PriceHistoryRepository
	runner    *pipeline.Runner
}

// NewPipelineJob creates the daily pipeline job.
func NewPipelineJob(cfg *config.Config, log *logger.Logger, c *collector.Collector,
	market contracts.MarketDataRepository, prices contracts.PriceHistoryRepository,
	runner *pipeline.Runner) *PipelineJob {

	return &PipelineJob{
		cfg:       cfg,
		log:       log,
		collector: c,
		market:    market,
		prices:    prices,
		runner:    runner,
	}
}

// Name returns the job name
func (j *PipelineJob) Name() string {
	return "daily_pipeline"
}

// Schedule returns the cron schedule expression
func (j *PipelineJob) Schedule() string {
	return j.cfg.Batch.PipelineSchedule
}

// Run executes the job
func (j *PipelineJob) Run(ctx context.Context) error {
	dataset, err := j.collector.CollectSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("collect snapshot: %w", err)
	}

	today := time.Now().Format("2006-01-02")
	if err := j.saveSnapshot(ctx, today, dataset); err != nil {
		return err
	}

	var commons []string
	for _, listing := range dataset.Listings {
		if listing.Class == contracts.ClassCommon {
			commons = append(commons, listing.Ticker)
		}
	}
	rows := j.collector.CollectPriceHistory(ctx, commons, historyFetchDays)
	if err := j.prices.SaveHistory(ctx, rows); err != nil {
		return fmt.Errorf("save price history: %w", err)
	}
	j.log.WithFields(map[string]interface{}{
		"tickers": len(commons),
		"candles": len(rows),
	}).Info("주가 히스토리 저장 완료")

	summary, err := j.runner.Run(ctx)
	if err != nil {
		return fmt.Errorf("run pipeline: %w", err)
	}
	j.log.WithFields(map[string]interface{}{
		"universe": summary.Universe,
		"scored":   summary.Scored,
	}).Info("일일 배치 완료")
	return nil
}

func (j *PipelineJob) saveSnapshot(ctx context.Context, date string, dataset *contracts.SnapshotDataset) error {
	if err := j.market.SaveListings(ctx, date, dataset.Listings); err != nil {
		return fmt.Errorf("save listings: %w", err)
	}
	if err := j.market.SaveDaily(ctx, date, dataset.Daily); err != nil {
		return fmt.Errorf("save daily snapshot: %w", err)
	}
	if err := j.market.SaveIndicators(ctx, date, dataset.Indicators); err != nil {
		return fmt.Errorf("save indicators: %w", err)
	}
	if err := j.market.SaveStatements(ctx, date, dataset.Statements); err != nil {
		return fmt.Errorf("save statements: %w", err)
	}
	if err := j.market.SaveShares(ctx, date, dataset.Shares); err != nil {
		return fmt.Errorf("save share counts: %w", err)
	}
	return nil
}
