package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/kquant/internal/contracts"
)

// testPool connects to DATABASE_URL or skips the integration test.
func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, InitSchema(ctx, pool))
	return pool
}

func TestNullable(t *testing.T) {
	assert.Nil(t, nullable(contracts.NaN()))
	assert.Equal(t, 3.5, nullable(contracts.Float(3.5)))
	assert.Equal(t, 0.0, nullable(contracts.Float(0)))
}

func TestScanFloat(t *testing.T) {
	assert.True(t, scanFloat(nil).IsNaN())
	v := 7.0
	assert.Equal(t, contracts.Float(7), scanFloat(&v))
}

func TestMarketRepositoryRoundTrip(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	repo := NewMarketRepository(pool)

	collected := time.Now().Format("2006-01-02")

	listings := []contracts.Listing{
		{Ticker: "000001", Name: "테스트전자", Market: "KOSPI", Class: contracts.ClassCommon},
		{Ticker: "000002", Name: "테스트화학우", Market: "KOSPI", Class: contracts.ClassPreferred},
	}
	require.NoError(t, repo.SaveListings(ctx, collected, listings))

	got, err := repo.LoadLatestListings(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "테스트전자", got[0].Name)
	assert.Equal(t, contracts.ClassPreferred, got[1].Class)

	daily := []contracts.DailyRow{
		{Ticker: "000001", Date: collected, Close: 70000, Volume: 1e6, MarketCap: 4e14, Shares: 5.9e9},
		{Ticker: "000002", Date: collected, Close: 50000, Volume: contracts.NaN(), MarketCap: 1e12, Shares: contracts.NaN()},
	}
	require.NoError(t, repo.SaveDaily(ctx, collected, daily))

	gotDaily, err := repo.LoadLatestDaily(ctx)
	require.NoError(t, err)
	require.Len(t, gotDaily, 2)
	assert.Equal(t, 70000.0, float64(gotDaily[0].Close))
	// NULL 컬럼은 NaN으로 복원
	assert.True(t, gotDaily[1].Volume.IsNaN())
	assert.True(t, gotDaily[1].Shares.IsNaN())

	// 같은 collected_date 재저장은 전체 교체
	require.NoError(t, repo.SaveDaily(ctx, collected, daily[:1]))
	gotDaily, err = repo.LoadLatestDaily(ctx)
	require.NoError(t, err)
	assert.Len(t, gotDaily, 1)

	shares := []contracts.ShareCountRow{
		{Ticker: "000001", Date: collected, Shares: 5.9e9, Treasury: 1e8, FreeFloat: 5.8e9},
	}
	require.NoError(t, repo.SaveShares(ctx, collected, shares))

	gotShares, err := repo.LoadLatestShares(ctx)
	require.NoError(t, err)
	require.Len(t, gotShares, 1)
	assert.Equal(t, 5.9e9, float64(gotShares[0].Shares))
	assert.Equal(t, 1e8, float64(gotShares[0].Treasury))
	assert.Equal(t, 5.8e9, float64(gotShares[0].FreeFloat))
}

func TestMarketRepositoryIndicators(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	repo := NewMarketRepository(pool)

	collected := time.Now().Format("2006-01-02")
	value := 125.0

	rows := []contracts.IndicatorRow{
		{Ticker: "000001", Date: "2024-12-31", Group: contracts.GroupRatioAnnual, Account: "매출액", Value: &value},
		{Ticker: "000001", Date: "2024-12-31", Group: contracts.GroupRatioAnnual, Account: "영업이익", Value: nil},
	}
	require.NoError(t, repo.SaveIndicators(ctx, collected, rows))

	got, err := repo.LoadLatestIndicators(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)

	byAccount := map[string]*float64{}
	for _, row := range got {
		byAccount[row.Account] = row.Value
	}
	require.NotNil(t, byAccount["매출액"])
	assert.Equal(t, 125.0, *byAccount["매출액"])
	assert.Nil(t, byAccount["영업이익"])
}

func TestPriceHistoryRepository(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	repo := NewPriceHistoryRepository(pool)

	today := time.Now().Format("2006-01-02")
	rows := []contracts.PriceRow{
		{Ticker: "000001", Date: today, Open: 100, High: 110, Low: 95, Close: 105, Volume: 1000, Amount: 105000},
		{Ticker: "000001", Date: today, Open: 100, High: 112, Low: 95, Close: 108, Volume: 1200, Amount: contracts.NaN()},
	}

	// 같은 (ticker, date)는 나중 값으로 upsert
	require.NoError(t, repo.SaveHistory(ctx, rows))

	got, err := repo.LoadTickerHistory(ctx, "000001", 7)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 108.0, float64(got[0].Close))
	assert.True(t, got[0].Amount.IsNaN())
}

func TestDashboardRepositoryReplace(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	repo := NewDashboardRepository(pool)

	first := contracts.ScoredRecord{}
	first.Ticker = "000001"
	first.Name = "테스트전자"
	first.Market = "KOSPI"
	first.Composite = 85
	first.PER = contracts.NaN() // JSONB에서 null로 저장

	second := contracts.ScoredRecord{}
	second.Ticker = "000002"
	second.Composite = 40

	require.NoError(t, repo.Replace(ctx, []contracts.ScoredRecord{second, first}))

	got, err := repo.Load(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	// 종합점수 내림차순
	assert.Equal(t, "000001", got[0].Ticker)
	assert.True(t, got[0].PER.IsNaN())

	one, err := repo.LoadOne(ctx, "000001")
	require.NoError(t, err)
	require.NotNil(t, one)
	assert.Equal(t, "테스트전자", one.Name)

	missing, err := repo.LoadOne(ctx, "999999")
	require.NoError(t, err)
	assert.Nil(t, missing)

	// Replace는 이전 내용을 모두 지운다
	require.NoError(t, repo.Replace(ctx, []contracts.ScoredRecord{first}))
	got, err = repo.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestReportRepository(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	repo := NewReportRepository(pool)

	report := &contracts.Report{
		Ticker:         "000001",
		Name:           "테스트전자",
		CompositeScore: 78,
		Grade:          "A",
		Summary:        "현금창출력이 탄탄한 성장주",
		Masters: map[string]contracts.MasterScore{
			"buffett": {Score: 8, Title: "경제적 해자", Analysis: "시장 지배력 유지"},
		},
		Model:     "claude-sonnet-4-20250514",
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, repo.Save(ctx, report))

	got, err := repo.Load(ctx, "000001")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 78, got.CompositeScore)
	assert.Equal(t, 8, got.Masters["buffett"].Score)

	// 같은 티커 재저장은 upsert
	report.Grade = "A+"
	require.NoError(t, repo.Save(ctx, report))
	got, err = repo.Load(ctx, "000001")
	require.NoError(t, err)
	assert.Equal(t, "A+", got.Grade)

	missing, err := repo.Load(ctx, "999999")
	require.NoError(t, err)
	assert.Nil(t, missing)
}
