package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/kquant/internal/contracts"
)

func ind(date, group, account string, v float64) contracts.IndicatorRow {
	return contracts.IndicatorRow{Ticker: "000001", Date: date, Group: group, Account: account, Value: fv(v)}
}

func st(date, freq, account string, v float64) contracts.StatementRow {
	return contracts.StatementRow{Ticker: "000001", Date: date, Freq: freq, Account: account, Value: fv(v)}
}

// healthyFixture is a growing, cash-generative company.
func healthyFixture() ([]contracts.IndicatorRow, []contracts.StatementRow) {
	indicators := []contracts.IndicatorRow{
		ind("2022-12-31", contracts.GroupRatioAnnual, "매출액", 100),
		ind("2023-12-31", contracts.GroupRatioAnnual, "매출액", 110),
		ind("2024-12-31", contracts.GroupRatioAnnual, "매출액", 125),
		ind("2022-12-31", contracts.GroupRatioAnnual, "영업이익", 8),
		ind("2023-12-31", contracts.GroupRatioAnnual, "영업이익", 10),
		ind("2024-12-31", contracts.GroupRatioAnnual, "영업이익", 13),
		ind("2022-12-31", contracts.GroupRatioAnnual, "당기순이익", 5),
		ind("2023-12-31", contracts.GroupRatioAnnual, "당기순이익", 7),
		ind("2024-12-31", contracts.GroupRatioAnnual, "당기순이익", 9),
		ind("2022-12-31", contracts.GroupRatioAnnual, "영업활동현금흐름", 9),
		ind("2023-12-31", contracts.GroupRatioAnnual, "영업활동현금흐름", 11),
		ind("2024-12-31", contracts.GroupRatioAnnual, "영업활동현금흐름", 14),
		ind("2022-12-31", contracts.GroupRatioAnnual, "유형자산의취득", -3),
		ind("2023-12-31", contracts.GroupRatioAnnual, "유형자산의취득", -4),
		ind("2024-12-31", contracts.GroupRatioAnnual, "유형자산의취득", -4),
		ind("2022-12-31", contracts.GroupDPS, "주당배당금", 100),
		ind("2023-12-31", contracts.GroupDPS, "주당배당금", 110),
		ind("2024-12-31", contracts.GroupDPS, "주당배당금", 120),
	}

	statements := []contracts.StatementRow{
		st("2023-12-31", "y", "자산총계", 105),
		st("2024-12-31", "y", "자산총계", 108),
		st("2023-12-31", "y", "유동자산", 40),
		st("2024-12-31", "y", "유동자산", 45),
		st("2023-12-31", "y", "유동부채", 20),
		st("2024-12-31", "y", "유동부채", 19),
		st("2023-12-31", "y", "매출총이익", 30),
		st("2024-12-31", "y", "매출총이익", 36),
		st("2023-12-31", "y", "부채", 55),
		st("2024-12-31", "y", "부채", 50),
		st("2023-12-31", "y", "자본", 55),
		st("2024-12-31", "y", "자본", 60),
	}
	return indicators, statements
}

func TestAnalyzeOneHealthy(t *testing.T) {
	a := NewAnalyzer(nil)
	indicators, statements := healthyFixture()

	res := a.AnalyzeOne("000001", indicators, statements)

	// TTM: 분기 데이터가 없으니 최근 연간값으로 대체
	assert.Equal(t, 125.0, float64(res.TTMRevenue))
	assert.Equal(t, 13.0, float64(res.TTMOperatingIncome))
	assert.Equal(t, 9.0, float64(res.TTMNetIncome))

	// 자본/부채: 재무제표 최신일 기준
	assert.Equal(t, 60.0, float64(res.Equity))
	assert.Equal(t, 50.0, float64(res.Liabilities))
	assert.Equal(t, 108.0, float64(res.TotalAssets))

	// 성장성
	assert.InDelta(t, 11.8, float64(res.RevenueCAGR), 0.1)
	assert.Equal(t, 2, res.RevenueStreak)
	assert.Equal(t, 2, res.OpIncomeStreak)
	assert.Equal(t, 2, res.NetIncomeStreak)

	// 이익률 개선 (8% → 9.09% → 10.4%)
	assert.InDelta(t, 10.4, float64(res.OpMargin), 0.01)
	assert.Equal(t, 1, res.MarginImproved)
	assert.InDelta(t, 1.31, float64(res.MarginDelta), 0.01)
	assert.Equal(t, 0, res.MarginSurge)
	assert.Equal(t, 0, res.Turnaround)

	// 현금흐름: CAPEX는 절대값 처리
	assert.Equal(t, 14.0, float64(res.OCF))
	assert.Equal(t, 4.0, float64(res.Capex))
	assert.Equal(t, 10.0, float64(res.FCF))
	assert.Equal(t, 2, res.OCFStreak)

	// 퀄리티 스코어: F7(희석)은 밸류에이션 단계 전이라 0
	assert.Equal(t, 1, res.F1)
	assert.Equal(t, 1, res.F2)
	assert.Equal(t, 1, res.F3)
	assert.Equal(t, 1, res.F4)
	assert.Equal(t, 1, res.F5)
	assert.Equal(t, 1, res.F6)
	assert.Equal(t, 0, res.F7)
	assert.Equal(t, 1, res.F8)
	assert.Equal(t, 1, res.F9)
	assert.Equal(t, 8, res.QualityScore)

	// 배당
	assert.Equal(t, 120.0, float64(res.DPS))
	assert.Equal(t, 2, res.DPSStreak)
	assert.Equal(t, 1, res.DividendGrowthAligned)
}

func TestAnalyzeOneWeak(t *testing.T) {
	a := NewAnalyzer(nil)

	// 순이익 한 해치만 있는 빈약한 데이터
	indicators := []contracts.IndicatorRow{
		ind("2024-12-31", contracts.GroupRatioAnnual, "당기순이익", 5),
	}

	res := a.AnalyzeOne("000001", indicators, nil)

	assert.Equal(t, 5.0, float64(res.TTMNetIncome))
	assert.Equal(t, 1, res.F1)
	assert.Equal(t, 1, res.QualityScore)

	assert.True(t, res.TTMRevenue.IsNaN())
	assert.True(t, res.RevenueCAGR.IsNaN())
	assert.Equal(t, 0, res.RevenueStreak)
	assert.True(t, res.OpMargin.IsNaN())
	assert.True(t, res.Equity.IsNaN())
}

func TestAnalyzeOneQuarterly(t *testing.T) {
	a := NewAnalyzer(nil)

	quarters := []struct {
		date string
		rev  float64
		op   float64
		ni   float64
	}{
		{"2023-03-31", 100, 10, 8}, {"2023-06-30", 100, 10, 8},
		{"2023-09-30", 100, 10, 8}, {"2023-12-31", 100, 10, 8},
		{"2024-03-31", 110, 12, 10}, {"2024-06-30", 110, 12, 10},
		{"2024-09-30", 110, 12, 10}, {"2024-12-31", 110, 12, 10},
	}

	var indicators []contracts.IndicatorRow
	for _, q := range quarters {
		indicators = append(indicators,
			ind(q.date, contracts.GroupRatioQuarterly, "매출액", q.rev),
			ind(q.date, contracts.GroupRatioQuarterly, "영업이익", q.op),
			ind(q.date, contracts.GroupRatioQuarterly, "당기순이익", q.ni),
		)
	}

	res := a.AnalyzeOne("000001", indicators, nil)

	// TTM = 2024년 4개 분기 합
	assert.Equal(t, 440.0, float64(res.TTMRevenue))
	assert.Equal(t, 48.0, float64(res.TTMOperatingIncome))

	assert.Equal(t, "2024-12-31", res.LatestQuarter)
	assert.InDelta(t, 10.0, float64(res.QRevenueYoY), 1e-9)
	assert.InDelta(t, 20.0, float64(res.QOpIncomeYoY), 1e-9)
	assert.InDelta(t, 25.0, float64(res.QNetIncomeYoY), 1e-9)
	assert.Equal(t, 4, res.QRevenueYoYStreak)
	assert.Equal(t, 4, res.QNetIncomeYoYStreak)
	assert.InDelta(t, 10.0, float64(res.TTMRevenueYoY), 1e-9)
	assert.InDelta(t, 20.0, float64(res.TTMOpIncomeYoY), 1e-9)
	assert.InDelta(t, 25.0, float64(res.TTMNetIncomeYoY), 1e-9)
}

func TestAnalyzeOneTurnaround(t *testing.T) {
	a := NewAnalyzer(nil)

	indicators := []contracts.IndicatorRow{
		ind("2022-12-31", contracts.GroupRatioAnnual, "당기순이익", 3),
		ind("2023-12-31", contracts.GroupRatioAnnual, "당기순이익", -5),
		ind("2024-12-31", contracts.GroupRatioAnnual, "당기순이익", 4),
	}

	res := a.AnalyzeOne("000001", indicators, nil)
	assert.Equal(t, 1, res.Turnaround)

	// 흑자 유지 기업은 턴어라운드가 아니다
	indicators[1].Value = fv(2)
	res = a.AnalyzeOne("000001", indicators, nil)
	assert.Equal(t, 0, res.Turnaround)
}

func TestAnalyzeOneEmpty(t *testing.T) {
	a := NewAnalyzer(nil)

	res := a.AnalyzeOne("000001", nil, nil)
	require.Equal(t, "000001", res.Ticker)
	assert.True(t, res.TTMRevenue.IsNaN())
	assert.True(t, res.DPS.IsNaN())
	assert.Equal(t, 0, res.QualityScore)
	assert.Equal(t, "", res.LatestQuarter)
}
