package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/kquant/internal/contracts"
)

const testMultiplier = 1e8 // 억원

func baseAnalysis(ticker string) contracts.Analysis {
	a := contracts.Analysis{Ticker: ticker}
	// 실제 파이프라인에서는 Analyzer가 NaN 초기화를 책임진다
	a.TTMRevenue = contracts.NaN()
	a.TTMOperatingIncome = contracts.NaN()
	a.TTMNetIncome = contracts.NaN()
	a.QRevenueYoY = contracts.NaN()
	a.QOpIncomeYoY = contracts.NaN()
	a.TTMRevenueYoY = contracts.NaN()
	a.TTMOpIncomeYoY = contracts.NaN()
	a.Equity = contracts.NaN()
	a.Liabilities = contracts.NaN()
	a.TotalAssets = contracts.NaN()
	a.RevenueCAGR = contracts.NaN()
	a.OpIncomeCAGR = contracts.NaN()
	a.NetIncomeCAGR = contracts.NaN()
	a.OpMargin = contracts.NaN()
	a.PrevOpMargin = contracts.NaN()
	a.MarginDelta = contracts.NaN()
	a.OCF = contracts.NaN()
	a.Capex = contracts.NaN()
	a.FCF = contracts.NaN()
	a.OCFCAGR = contracts.NaN()
	a.FCFCAGR = contracts.NaN()
	a.DPS = contracts.NaN()
	a.DPSCAGR = contracts.NaN()
	return a
}

func TestScoreRatios(t *testing.T) {
	v := NewValuer(nil)

	anal := baseAnalysis("000001")
	anal.TTMRevenue = 100
	anal.TTMNetIncome = 10
	anal.Equity = 50
	anal.Liabilities = 25
	anal.OCF = 12
	anal.Capex = 2
	anal.FCF = 10
	anal.NetIncomeCAGR = 20

	daily := []contracts.DailyRow{
		{Ticker: "000001", Close: 10000, MarketCap: 2e10, Shares: 1e6},
	}
	listings := []contracts.Listing{
		{Ticker: "000001", Name: "테스트전자", Market: "KOSPI"},
	}

	records := v.Score([]contracts.Analysis{anal}, daily, listings, nil, testMultiplier)
	require.Len(t, records, 1)
	r := records[0]

	assert.Equal(t, "테스트전자", r.Name)
	assert.Equal(t, "KOSPI", r.Market)

	assert.InDelta(t, 20.0, float64(r.PER), 1e-9)
	assert.InDelta(t, 4.0, float64(r.PBR), 1e-9)
	assert.InDelta(t, 20.0, float64(r.ROE), 1e-9)
	assert.InDelta(t, 50.0, float64(r.DebtRatio), 1e-9)
	assert.InDelta(t, 5000.0, float64(r.BPS), 1e-9)
	assert.InDelta(t, 1000.0, float64(r.EPS), 1e-9)
	assert.InDelta(t, 2.0, float64(r.PSR), 1e-9)
	assert.InDelta(t, 1.0, float64(r.PEG), 1e-9)
	assert.InDelta(t, 10.0, float64(r.EarningsYield), 1e-9)
	assert.InDelta(t, 5.0, float64(r.FCFYield), 1e-9)
	assert.InDelta(t, 120.0, float64(r.CashConversion), 1e-9)
	assert.InDelta(t, 100.0/6, float64(r.CapexRatio), 1e-9)
	assert.Equal(t, 1, r.EarningsQuality)
	assert.InDelta(t, 0.48, float64(r.DebtService), 1e-9)

	// S-RIM: 5000 + 5000×(20-8)/8 = 12500
	assert.InDelta(t, 12500.0, float64(r.FairValue), 1e-9)
	assert.InDelta(t, 25.0, float64(r.ValuationGap), 1e-9)
	assert.False(t, r.PERAnomaly)

	// 배당 없음 → 수익률 0 (NaN 아님)
	assert.Equal(t, 0.0, float64(r.DividendYield))
}

func TestScoreUndefinedGuards(t *testing.T) {
	v := NewValuer(nil)

	anal := baseAnalysis("000001")
	anal.TTMNetIncome = -10 // 적자
	anal.Equity = 0

	daily := []contracts.DailyRow{{Ticker: "000001", Close: 10000, MarketCap: 2e10, Shares: 1e6}}

	records := v.Score([]contracts.Analysis{anal}, daily, nil, nil, testMultiplier)
	require.Len(t, records, 1)
	r := records[0]

	assert.True(t, r.PER.IsNaN())
	assert.True(t, r.PBR.IsNaN())
	assert.True(t, r.ROE.IsNaN())
	assert.True(t, r.DebtRatio.IsNaN())
	assert.True(t, r.PEG.IsNaN())
	assert.True(t, r.CashConversion.IsNaN())
	assert.True(t, r.FairValue.IsNaN())
	assert.False(t, r.PERAnomaly) // NaN PER은 이상치가 아니다
}

func TestScoreSRIMDiscountBranch(t *testing.T) {
	v := NewValuer(nil)

	anal := baseAnalysis("000001")
	anal.TTMNetIncome = 2 // ROE 4% < 요구수익률
	anal.Equity = 50

	daily := []contracts.DailyRow{{Ticker: "000001", Close: 5000, MarketCap: 2e10, Shares: 1e6}}

	records := v.Score([]contracts.Analysis{anal}, daily, nil, nil, testMultiplier)
	require.Len(t, records, 1)

	// BPS 5000 → 적정주가 4500 (10% 할인)
	assert.InDelta(t, 4500.0, float64(records[0].FairValue), 1e-9)
	assert.InDelta(t, -10.0, float64(records[0].ValuationGap), 1e-9)
}

func TestScorePERAnomaly(t *testing.T) {
	v := NewValuer(nil)

	anal := baseAnalysis("000001")
	anal.TTMNetIncome = 0.0001
	anal.Equity = 50

	daily := []contracts.DailyRow{{Ticker: "000001", Close: 10000, MarketCap: 2e10, Shares: 1e6}}

	records := v.Score([]contracts.Analysis{anal}, daily, nil, nil, testMultiplier)
	require.Len(t, records, 1)
	assert.True(t, records[0].PERAnomaly)
}

func TestScoreInnerJoinAndBackfill(t *testing.T) {
	v := NewValuer(nil)

	analyses := []contracts.Analysis{baseAnalysis("000001"), baseAnalysis("000002")}
	analyses[0].TTMNetIncome = 10
	analyses[0].Equity = 50

	// 000002는 일별 시세가 없어 탈락
	daily := []contracts.DailyRow{{Ticker: "000001", Close: 10000, MarketCap: 2e10, Shares: 0}}
	shares := []contracts.ShareCountRow{
		{Ticker: "000001", Date: "2024-06-30", Shares: 1e6},
		{Ticker: "000001", Date: "2024-12-31", Shares: 9e5},
	}

	records := v.Score(analyses, daily, nil, shares, testMultiplier)
	require.Len(t, records, 1)
	r := records[0]
	assert.Equal(t, "000001", r.Ticker)

	// 상장주식수 0 → shares 테이블에서 백필
	assert.Equal(t, 1e6, float64(r.Shares))

	// 발행주식수 감소 → F7 확정, 퀄리티 스코어 재계산
	assert.Equal(t, 1, r.F7)
	assert.Equal(t, 1, r.QualityScore) // F1=0이지만 F7=1
}

func TestScoreDilutionIncrease(t *testing.T) {
	v := NewValuer(nil)

	anal := baseAnalysis("000001")
	daily := []contracts.DailyRow{{Ticker: "000001", Close: 10000, MarketCap: 2e10, Shares: 1e6}}
	shares := []contracts.ShareCountRow{
		{Ticker: "000001", Date: "2024-06-30", Shares: 1e6},
		{Ticker: "000001", Date: "2024-12-31", Shares: 1.2e6}, // 증자
	}

	records := v.Score([]contracts.Analysis{anal}, daily, nil, shares, testMultiplier)
	require.Len(t, records, 1)
	assert.Equal(t, 0, records[0].F7)
}

func TestScoreCompositeOrdering(t *testing.T) {
	v := NewValuer(nil)

	strong := baseAnalysis("000001")
	strong.TTMRevenue = 100
	strong.TTMNetIncome = 10
	strong.Equity = 50
	strong.Liabilities = 25
	strong.RevenueCAGR = 15
	strong.OpIncomeCAGR = 15
	strong.NetIncomeCAGR = 15
	strong.RevenueStreak = 3
	strong.F1, strong.F2, strong.F4 = 1, 1, 1
	strong.QualityScore = 3

	weak := baseAnalysis("000002")
	weak.TTMRevenue = 100
	weak.TTMNetIncome = 1
	weak.Equity = 50
	weak.Liabilities = 80
	weak.RevenueCAGR = -5
	weak.OpIncomeCAGR = -5
	weak.NetIncomeCAGR = -5

	daily := []contracts.DailyRow{
		{Ticker: "000001", Close: 10000, MarketCap: 2e10, Shares: 1e6},
		{Ticker: "000002", Close: 10000, MarketCap: 2e10, Shares: 1e6},
	}

	records := v.Score([]contracts.Analysis{strong, weak}, daily, nil, nil, testMultiplier)
	require.Len(t, records, 2)

	var s, w *contracts.ScoredRecord
	for i := range records {
		if records[i].Ticker == "000001" {
			s = &records[i]
		} else {
			w = &records[i]
		}
	}
	require.NotNil(t, s)
	require.NotNil(t, w)

	assert.False(t, s.Composite.IsNaN())
	assert.False(t, w.Composite.IsNaN())
	assert.Greater(t, float64(s.Composite), float64(w.Composite))

	// 정의된 스코어는 0~100 범위
	for _, sc := range []contracts.Float{s.ScoreROE, s.ScoreRevCAGR, s.ScoreStreak} {
		if !sc.IsNaN() {
			assert.GreaterOrEqual(t, float64(sc), 0.0)
			assert.LessOrEqual(t, float64(sc), 100.0)
		}
	}
}

func TestScoreEmptyUniverse(t *testing.T) {
	v := NewValuer(nil)
	records := v.Score(nil, nil, nil, nil, testMultiplier)
	assert.Empty(t, records)
}

func TestScoreKeepsNaNScores(t *testing.T) {
	v := NewValuer(nil)

	anal := baseAnalysis("000001")
	daily := []contracts.DailyRow{
		{Ticker: "000001", Close: contracts.NaN(), MarketCap: contracts.NaN(), Shares: 0},
	}

	records := v.Score([]contracts.Analysis{anal}, daily, nil, nil, testMultiplier)
	require.Len(t, records, 1)
	r := records[0]

	// 미정의 지표는 순위 스코어도 미정의로 남는다
	assert.True(t, r.ScorePER.IsNaN())
	assert.True(t, r.ScoreROE.IsNaN())
	assert.True(t, r.ScoreGap.IsNaN())

	// 배당수익률 0과 퀄리티 0은 정의된 값이라 단독 유니버스에선 만점
	assert.InDelta(t, 100.0, float64(r.ScoreDivYield), 1e-9)
	assert.InDelta(t, 100.0, float64(r.ScoreQuality), 1e-9)

	// 종합점수는 NaN 스코어를 0으로 치고 합산
	assert.InDelta(t, 100*0.3+100*2.0, float64(r.Composite), 1e-9)
}
