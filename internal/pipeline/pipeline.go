package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/kquant/internal/analysis"
	"github.com/wonny/kquant/internal/contracts"
	"github.com/wonny/kquant/pkg/logger"
)

// 기술적 지표 계산에 쓰는 히스토리 길이 (달력일)
const historyWindowDays = 400

// Exporter writes screen results to files. 파이프라인은 내보내기
// 실패를 경고로만 취급한다.
type Exporter interface {
	ExportScreens(results []contracts.ScreenResult) error
}

// Summary describes one pipeline run.
type Summary struct {
	Universe  int            `json:"universe"`
	Analyzed  int            `json:"analyzed"`
	Scored    int            `json:"scored"`
	PerScreen map[string]int `json:"per_screen"`
	StartedAt time.Time      `json:"started_at"`
	Duration  time.Duration  `json:"duration"`
}

// Runner wires the stages of the daily scoring pipeline.
// ⭐ SSOT: 스냅샷 → 대시보드 변환은 여기서만
type Runner struct {
	log       *logger.Logger
	market    contracts.MarketDataRepository
	prices    contracts.PriceHistoryRepository
	dashboard contracts.DashboardRepository
	exporter  Exporter

	analyzer  *analysis.Analyzer
	valuer    *analysis.Valuer
	technical *analysis.TechnicalCalculator
}

// NewRunner creates a pipeline runner. exporter may be nil.
func NewRunner(log *logger.Logger, market contracts.MarketDataRepository,
	prices contracts.PriceHistoryRepository, dashboard contracts.DashboardRepository,
	exporter Exporter) *Runner {

	return &Runner{
		log:       log,
		market:    market,
		prices:    prices,
		dashboard: dashboard,
		exporter:  exporter,
		analyzer:  analysis.NewAnalyzer(log),
		valuer:    analysis.NewValuer(log),
		technical: analysis.NewTechnicalCalculator(log),
	}
}

// Run executes the full pipeline over the latest snapshot.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	started := time.Now()

	dataset, err := r.loadDataset(ctx)
	if err != nil {
		return nil, err
	}
	if len(dataset.Daily) == 0 {
		return nil, fmt.Errorf("daily snapshot is empty")
	}

	indicators := dedupIndicators(dataset.Indicators)
	multiplier := r.detectMultiplier(indicators)

	analyses := r.analyzeAll(indicators, dataset.Statements)
	records := r.valuer.Score(analyses, dataset.Daily, dataset.Listings, dataset.Shares, multiplier)

	history, err := r.prices.LoadHistory(ctx, historyWindowDays)
	if err != nil {
		r.log.WithError(err).Warn("주가 히스토리 로드 실패, 기술적 지표 생략")
		history = nil
	}
	r.technical.Apply(records, history)

	screens := analysis.EvaluateAllScreens(records)

	if err := r.dashboard.Replace(ctx, records); err != nil {
		return nil, fmt.Errorf("persist dashboard: %w", err)
	}

	if r.exporter != nil {
		if err := r.exporter.ExportScreens(screens); err != nil {
			r.log.WithError(err).Warn("엑셀 내보내기 실패")
		}
	}

	summary := &Summary{
		Universe:  len(dataset.Daily),
		Analyzed:  len(analyses),
		Scored:    len(records),
		PerScreen: map[string]int{},
		StartedAt: started,
		Duration:  time.Since(started),
	}
	for _, s := range screens {
		summary.PerScreen[s.Screen] = len(s.Entries)

		preview := make([]string, 0, 10)
		for i, e := range s.Entries {
			if i == 10 {
				break
			}
			preview = append(preview, e.Ticker+" "+e.Name)
		}
		r.log.WithFields(map[string]interface{}{
			"screen":  s.Screen,
			"matches": len(s.Entries),
			"top":     preview,
		}).Info("스크린 결과")
	}

	r.log.WithFields(map[string]interface{}{
		"universe": summary.Universe,
		"scored":   summary.Scored,
		"duration": summary.Duration.String(),
	}).Info("파이프라인 완료")
	return summary, nil
}

func (r *Runner) loadDataset(ctx context.Context) (*contracts.SnapshotDataset, error) {
	listings, err := r.market.LoadLatestListings(ctx)
	if err != nil {
		return nil, fmt.Errorf("load listings: %w", err)
	}
	daily, err := r.market.LoadLatestDaily(ctx)
	if err != nil {
		return nil, fmt.Errorf("load daily snapshot: %w", err)
	}
	indicators, err := r.market.LoadLatestIndicators(ctx)
	if err != nil {
		return nil, fmt.Errorf("load indicators: %w", err)
	}
	statements, err := r.market.LoadLatestStatements(ctx)
	if err != nil {
		return nil, fmt.Errorf("load statements: %w", err)
	}
	shares, err := r.market.LoadLatestShares(ctx)
	if err != nil {
		return nil, fmt.Errorf("load share counts: %w", err)
	}

	return &contracts.SnapshotDataset{
		Listings:   listings,
		Daily:      daily,
		Indicators: indicators,
		Statements: statements,
		Shares:     shares,
	}, nil
}

// dedupIndicators keeps the first row per (ticker, date, group, account).
func dedupIndicators(rows []contracts.IndicatorRow) []contracts.IndicatorRow {
	seen := map[[4]string]bool{}
	out := make([]contracts.IndicatorRow, 0, len(rows))
	for _, row := range rows {
		key := [4]string{row.Ticker, row.Date, row.Group, row.Account}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, row)
	}
	return out
}

// detectMultiplier derives the collection unit from the reference
// ticker's revenue scale.
func (r *Runner) detectMultiplier(indicators []contracts.IndicatorRow) float64 {
	var cells []analysis.Cell
	for _, row := range indicators {
		if row.Ticker == analysis.ReferenceTicker && row.Group == contracts.GroupRatioAnnual {
			cells = append(cells, analysis.Cell{Date: row.Date, Account: row.Account, Value: row.Value})
		}
	}

	multiplier := analysis.DetectUnitMultiplier(cells)
	r.log.WithField("multiplier", multiplier).Debug("수집 단위 감지")
	return multiplier
}

// analyzeAll runs the per-ticker analyzer over every ticker that has
// indicator or statement rows. 어느 한쪽만 있어도 부분 레코드를 만든다.
func (r *Runner) analyzeAll(indicators []contracts.IndicatorRow, statements []contracts.StatementRow) []contracts.Analysis {
	indByTicker := map[string][]contracts.IndicatorRow{}
	var order []string
	for _, row := range indicators {
		if _, ok := indByTicker[row.Ticker]; !ok {
			order = append(order, row.Ticker)
		}
		indByTicker[row.Ticker] = append(indByTicker[row.Ticker], row)
	}

	stByTicker := map[string][]contracts.StatementRow{}
	for _, row := range statements {
		if _, seen := stByTicker[row.Ticker]; !seen {
			if _, ok := indByTicker[row.Ticker]; !ok {
				order = append(order, row.Ticker)
			}
		}
		stByTicker[row.Ticker] = append(stByTicker[row.Ticker], row)
	}

	analyses := make([]contracts.Analysis, 0, len(order))
	for _, ticker := range order {
		analyses = append(analyses, r.analyzer.AnalyzeOne(ticker, indByTicker[ticker], stByTicker[ticker]))
	}
	return analyses
}
