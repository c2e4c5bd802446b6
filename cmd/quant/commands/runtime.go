package commands

import (
	"context"
	"fmt"

	"github.com/wonny/kquant/internal/collector"
	"github.com/wonny/kquant/internal/export"
	"github.com/wonny/kquant/internal/pipeline"
	"github.com/wonny/kquant/internal/store"
	"github.com/wonny/kquant/pkg/config"
	"github.com/wonny/kquant/pkg/database"
	"github.com/wonny/kquant/pkg/httputil"
	"github.com/wonny/kquant/pkg/logger"
)

// runtime bundles the shared wiring every command needs.
// ⭐ SSOT: 설정/DB/저장소 초기화는 여기서만
type runtime struct {
	cfg *config.Config
	log *logger.Logger
	db  *database.DB

	market    *store.MarketRepository
	prices    *store.PriceHistoryRepository
	dashboard *store.DashboardRepository
	reports   *store.ReportRepository
}

func newRuntime(ctx context.Context) (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg)

	db, err := database.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := store.InitSchema(ctx, db.Pool); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &runtime{
		cfg:       cfg,
		log:       log,
		db:        db,
		market:    store.NewMarketRepository(db.Pool),
		prices:    store.NewPriceHistoryRepository(db.Pool),
		dashboard: store.NewDashboardRepository(db.Pool),
		reports:   store.NewReportRepository(db.Pool),
	}, nil
}

func (rt *runtime) Close() {
	rt.db.Close()
}

func (rt *runtime) newCollector() *collector.Collector {
	return collector.New(rt.cfg, rt.log, httputil.New(rt.cfg, rt.log))
}

func (rt *runtime) newRunner() *pipeline.Runner {
	exporter := export.NewWriter(rt.cfg, rt.log)
	return pipeline.NewRunner(rt.log, rt.market, rt.prices, rt.dashboard, exporter)
}
