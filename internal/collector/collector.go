package collector

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/wonny/kquant/internal/contracts"
	"github.com/wonny/kquant/pkg/config"
	"github.com/wonny/kquant/pkg/httputil"
	"github.com/wonny/kquant/pkg/logger"
)

// Collector drives the full collection run: KRX master/daily snapshot,
// then per-ticker FnGuide scraping over a bounded worker pool.
type Collector struct {
	cfg     *config.Config
	log     *logger.Logger
	krx     *KRXClient
	fnguide *FnGuideClient
	naver   *NaverClient
	limiter *rate.Limiter
}

// New creates a collector with its clients wired to one HTTP client.
func New(cfg *config.Config, log *logger.Logger, httpClient *httputil.Client) *Collector {
	perSecond := cfg.Collector.RatePerSecond
	if perSecond <= 0 {
		perSecond = 10
	}

	return &Collector{
		cfg:     cfg,
		log:     log,
		krx:     NewKRXClient(httpClient, log),
		fnguide: NewFnGuideClient(httpClient, log),
		naver:   NewNaverClient(httpClient, log),
		limiter: rate.NewLimiter(rate.Limit(perSecond), 1),
	}
}

// CollectSnapshot runs a full collection and returns the dataset to
// persist. Per-ticker scraping failures are logged and skipped; an
// empty KRX snapshot is a hard error.
func (c *Collector) CollectSnapshot(ctx context.Context) (*contracts.SnapshotDataset, error) {
	now := time.Now()

	var rows []MarketRow
	for _, marketID := range []string{krxMarketKOSPI, krxMarketKOSDAQ} {
		marketRows, err := c.krx.FetchMarketSnapshot(ctx, marketID, now)
		if err != nil {
			return nil, fmt.Errorf("fetch %s snapshot: %w", marketID, err)
		}
		rows = append(rows, marketRows...)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("empty KRX snapshot")
	}

	// 업종은 부가 정보: 실패해도 수집은 계속
	sectors, err := c.krx.FetchSectors(ctx)
	if err != nil {
		c.log.WithError(err).Warn("업종 정보 수집 실패, 공란 유지")
		sectors = map[string]string{}
	}

	dataset := &contracts.SnapshotDataset{}
	today := now.Format("2006-01-02")

	var commons []string
	for _, row := range rows {
		class := ClassifyListing(row.Ticker, row.Name)
		dataset.Listings = append(dataset.Listings, contracts.Listing{
			Ticker: row.Ticker,
			Name:   row.Name,
			Market: row.Market,
			Sector: sectors[row.Ticker],
			Class:  class,
		})
		dataset.Daily = append(dataset.Daily, contracts.DailyRow{
			Ticker:    row.Ticker,
			Date:      today,
			Close:     contracts.Float(row.Close),
			Volume:    contracts.Float(row.Volume),
			MarketCap: contracts.Float(row.MarketCap),
			Shares:    contracts.Float(row.Shares),
		})
		if class == contracts.ClassCommon {
			commons = append(commons, row.Ticker)
		}
	}

	c.log.WithFields(map[string]interface{}{
		"total":   len(dataset.Listings),
		"commons": len(commons),
	}).Info("KRX 스냅샷 수집 완료, FnGuide 수집 시작")

	var mu sync.Mutex
	c.forEachTicker(ctx, commons, func(ctx context.Context, ticker string) error {
		indicators, err := c.fnguide.FetchIndicators(ctx, ticker)
		if err != nil {
			return err
		}
		statements, err := c.fnguide.FetchStatements(ctx, ticker)
		if err != nil {
			return err
		}
		share, err := c.fnguide.FetchShares(ctx, ticker)
		if err != nil {
			return err
		}

		mu.Lock()
		defer mu.Unlock()
		dataset.Indicators = append(dataset.Indicators, indicators...)
		dataset.Statements = append(dataset.Statements, statements...)
		if share != nil {
			dataset.Shares = append(dataset.Shares, *share)
		}
		return nil
	})

	return dataset, nil
}

// CollectPriceHistory fetches the last N calendar days of candles for
// every given ticker.
func (c *Collector) CollectPriceHistory(ctx context.Context, tickers []string, days int) []contracts.PriceRow {
	to := time.Now()
	from := to.AddDate(0, 0, -days)

	var mu sync.Mutex
	var out []contracts.PriceRow
	c.forEachTicker(ctx, tickers, func(ctx context.Context, ticker string) error {
		rows, err := c.naver.FetchPriceHistory(ctx, ticker, from, to)
		if err != nil {
			return err
		}
		mu.Lock()
		out = append(out, rows...)
		mu.Unlock()
		return nil
	})
	return out
}

// forEachTicker fans tickers out over the worker pool. Failures are
// logged per ticker and never abort the run.
func (c *Collector) forEachTicker(ctx context.Context, tickers []string, fn func(context.Context, string) error) {
	workers := c.cfg.Collector.Workers
	if workers < 1 {
		workers = 1
	}

	jobs := make(chan string)
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ticker := range jobs {
				if err := c.limiter.Wait(ctx); err != nil {
					return // 컨텍스트 취소
				}
				if err := fn(ctx, ticker); err != nil {
					c.log.WithField("ticker", ticker).WithError(err).Warn("종목 수집 실패, 건너뜀")
				}
				if delay := c.cfg.Collector.RequestDelay; delay > 0 {
					select {
					case <-time.After(delay):
					case <-ctx.Done():
						return
					}
				}
			}
		}()
	}

	for _, ticker := range tickers {
		select {
		case jobs <- ticker:
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return
		}
	}
	close(jobs)
	wg.Wait()
}
