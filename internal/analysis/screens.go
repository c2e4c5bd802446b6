package analysis

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/wonny/kquant/internal/contracts"
)

// Screen names.
const (
	ScreenQualityValue   = "quality_value"
	ScreenMomentum       = "momentum"
	ScreenGARP           = "garp"
	ScreenCashCow        = "cashcow"
	ScreenTurnaround     = "turnaround"
	ScreenDividendGrowth = "dividend_growth"
)

// 시가총액 하한 (원)
const (
	midCapFloor   = 50_000_000_000
	smallCapFloor = 30_000_000_000
)

var screenFuncs = map[string]func([]contracts.ScoredRecord) []contracts.ScreenEntry{
	ScreenQualityValue:   qualityValueScreen,
	ScreenMomentum:       momentumScreen,
	ScreenGARP:           garpScreen,
	ScreenCashCow:        cashCowScreen,
	ScreenTurnaround:     turnaroundScreen,
	ScreenDividendGrowth: dividendGrowthScreen,
}

// ScreenNames lists the available screens in presentation order.
func ScreenNames() []string {
	return []string{
		ScreenQualityValue, ScreenMomentum, ScreenGARP,
		ScreenCashCow, ScreenTurnaround, ScreenDividendGrowth,
	}
}

// EvaluateScreen runs one named screen over the scored universe.
// Pure function of its input: 같은 입력이면 항상 같은 결과.
func EvaluateScreen(name string, records []contracts.ScoredRecord) (contracts.ScreenResult, error) {
	fn, ok := screenFuncs[name]
	if !ok {
		return contracts.ScreenResult{}, fmt.Errorf("unknown screen: %s", name)
	}
	return contracts.ScreenResult{
		Screen:      name,
		GeneratedAt: time.Now(),
		Entries:     fn(records),
	}, nil
}

// EvaluateAllScreens runs every screen.
func EvaluateAllScreens(records []contracts.ScoredRecord) []contracts.ScreenResult {
	var out []contracts.ScreenResult
	for _, name := range ScreenNames() {
		res, _ := EvaluateScreen(name, records)
		out = append(out, res)
	}
	return out
}

// ① 기본 우량주/저평가: 종합점수 순
func qualityValueScreen(records []contracts.ScoredRecord) []contracts.ScreenEntry {
	subset := filterRecords(records, func(r *contracts.ScoredRecord) bool {
		return float64(r.TTMNetIncome) > 0 &&
			float64(r.ROE) >= 5 &&
			between(float64(r.PER), 1, 50) &&
			between(float64(r.PBR), 0.1, 10) &&
			r.RevenueStreak >= 2 &&
			r.NetIncomeStreak >= 1 &&
			float64(r.MarketCap) >= midCapFloor &&
			!r.PERAnomaly &&
			r.QualityScore >= 5
	})

	entries := make([]contracts.ScreenEntry, len(subset))
	for i, r := range subset {
		entries[i] = contracts.ScreenEntry{ScoredRecord: r, StyleScore: r.Composite}
	}
	sortByStyleScore(entries)
	return entries
}

// ② 모멘텀/성장주 (계절성 통제 포함)
func momentumScreen(records []contracts.ScoredRecord) []contracts.ScreenEntry {
	subset := filterRecords(records, func(r *contracts.ScoredRecord) bool {
		return !r.RevenueCAGR.IsNaN() && !r.OpIncomeCAGR.IsNaN() &&
			(float64(r.RevenueCAGR) >= 15 || float64(r.OpIncomeCAGR) >= 15) &&
			r.MarginImproved == 1 &&
			float64(r.ROE) >= 5 &&
			float64(r.TTMNetIncome) > 0 &&
			float64(r.MarketCap) >= midCapFloor
	})

	rank := subsetRanker(subset)
	revCAGR := rank(func(r *contracts.ScoredRecord) float64 { return float64(r.RevenueCAGR) })
	opCAGR := rank(func(r *contracts.ScoredRecord) float64 { return float64(r.OpIncomeCAGR) })
	roe := rank(func(r *contracts.ScoredRecord) float64 { return float64(r.ROE) })
	opMargin := rank(func(r *contracts.ScoredRecord) float64 { return float64(r.OpMargin) })
	improved := rank(func(r *contracts.ScoredRecord) float64 { return float64(r.MarginImproved) })
	qRevYoY := rank(func(r *contracts.ScoredRecord) float64 { return r.QRevenueYoY.Or(0) })
	qOpYoY := rank(func(r *contracts.ScoredRecord) float64 { return r.QOpIncomeYoY.Or(0) })
	qRevStreak := rank(func(r *contracts.ScoredRecord) float64 { return clip(float64(r.QRevenueYoYStreak), 0, 4) })
	rsi := rank(func(r *contracts.ScoredRecord) float64 { return r.RSI14.Or(50) })
	ma20 := rank(func(r *contracts.ScoredRecord) float64 { return r.MA20Dev.Or(0) })
	traded := rank(func(r *contracts.ScoredRecord) float64 { return r.TradedValueChange.Or(0) })

	return scoredEntries(subset, func(i int) float64 {
		return revCAGR[i]*2.0 + opCAGR[i]*2.5 + roe[i]*1.5 + opMargin[i]*1.0 +
			improved[i]*0.5 + qRevYoY[i]*2.0 + qOpYoY[i]*2.0 + qRevStreak[i]*1.5 +
			rsi[i]*1.0 + ma20[i]*1.0 + traded[i]*0.5
	})
}

// ③ GARP: 성장 대비 합리적 가격 (피터 린치 스타일)
func garpScreen(records []contracts.ScoredRecord) []contracts.ScreenEntry {
	subset := filterRecords(records, func(r *contracts.ScoredRecord) bool {
		peg := float64(r.PEG)
		return peg > 0 && peg < 1.5 &&
			float64(r.RevenueCAGR) >= 10 &&
			float64(r.ROE) >= 12 &&
			between(float64(r.PER), 5, 30) &&
			float64(r.MarketCap) >= midCapFloor &&
			float64(r.TTMNetIncome) > 0 &&
			!r.PERAnomaly
	})

	rank := subsetRanker(subset)
	peg := rank(func(r *contracts.ScoredRecord) float64 { return float64(r.PEG) })
	revCAGR := rank(func(r *contracts.ScoredRecord) float64 { return float64(r.RevenueCAGR) })
	opCAGR := rank(func(r *contracts.ScoredRecord) float64 { return float64(r.OpIncomeCAGR) })
	roe := rank(func(r *contracts.ScoredRecord) float64 { return float64(r.ROE) })
	per := rank(func(r *contracts.ScoredRecord) float64 { return float64(r.PER) })
	pbr := rank(func(r *contracts.ScoredRecord) float64 { return clip(float64(r.PBR), 0.5, 10) })
	cashConv := rank(func(r *contracts.ScoredRecord) float64 { return clip(r.CashConversion.Or(100), 50, 200) })
	quality := rank(func(r *contracts.ScoredRecord) float64 { return float64(r.QualityScore) })

	return scoredEntries(subset, func(i int) float64 {
		r := &subset[i]
		return (1-peg[i])*3.0 + revCAGR[i]*2.0 + opCAGR[i]*1.5 + roe[i]*2.0 +
			(1-per[i])*1.5 + (1-pbr[i])*1.0 + cashConv[i]*1.0 + quality[i]*0.5 +
			float64(r.MarginImproved)*0.5 + r.ScoreGap.Or(0)/100*0.5
	})
}

// ④ 캐시카우: 고수익 우량주 (버핏 스타일)
func cashCowScreen(records []contracts.ScoredRecord) []contracts.ScreenEntry {
	subset := filterRecords(records, func(r *contracts.ScoredRecord) bool {
		return float64(r.ROE) >= 10 &&
			float64(r.OpMargin) >= 10 &&
			(r.DebtRatio.IsNaN() || float64(r.DebtRatio) < 100) &&
			r.RevenueStreak >= 1 &&
			float64(r.MarketCap) >= midCapFloor &&
			float64(r.TTMNetIncome) > 0 &&
			r.EarningsQuality == 1 &&
			r.QualityScore >= 6
	})

	rank := subsetRanker(subset)
	roe := rank(func(r *contracts.ScoredRecord) float64 { return float64(r.ROE) })
	opMargin := rank(func(r *contracts.ScoredRecord) float64 { return float64(r.OpMargin) })
	debtRatio := rank(func(r *contracts.ScoredRecord) float64 { return r.DebtRatio.Or(0) })
	fcfYield := rank(func(r *contracts.ScoredRecord) float64 { return r.FCFYield.Or(0) })
	debtSvc := rank(func(r *contracts.ScoredRecord) float64 { return clip(r.DebtService.Or(0), 0, 3) })
	revStreak := rank(func(r *contracts.ScoredRecord) float64 { return float64(r.RevenueStreak) })
	per := rank(func(r *contracts.ScoredRecord) float64 { return clip(float64(r.PER), 1, 100) })
	divYield := rank(func(r *contracts.ScoredRecord) float64 { return float64(r.DividendYield) })
	quality := rank(func(r *contracts.ScoredRecord) float64 { return float64(r.QualityScore) })

	return scoredEntries(subset, func(i int) float64 {
		r := &subset[i]
		return roe[i]*2.0 + opMargin[i]*2.0 + (1-debtRatio[i])*1.5 + fcfYield[i]*2.5 +
			debtSvc[i]*2.0 + revStreak[i]*1.0 + (1-per[i])*1.0 + divYield[i]*0.5 +
			quality[i]*1.0 + r.ScoreGap.Or(0)/100*0.5
	})
}

// ⑤ 턴어라운드: 실적 반등 역발상
func turnaroundScreen(records []contracts.ScoredRecord) []contracts.ScreenEntry {
	subset := filterRecords(records, func(r *contracts.ScoredRecord) bool {
		return (r.Turnaround == 1 || r.MarginSurge == 1) &&
			float64(r.TTMNetIncome) > 0 &&
			float64(r.MarketCap) >= smallCapFloor
	})

	rank := subsetRanker(subset)
	delta := rank(func(r *contracts.ScoredRecord) float64 { return r.MarginDelta.Or(0) })
	revCAGR := rank(func(r *contracts.ScoredRecord) float64 { return float64(r.RevenueCAGR) })
	roe := rank(func(r *contracts.ScoredRecord) float64 { return float64(r.ROE) })
	per := rank(func(r *contracts.ScoredRecord) float64 { return clip(float64(r.PER), 0, 100) })
	rsi := rank(func(r *contracts.ScoredRecord) float64 { return r.RSI14.Or(50) })
	highDist := rank(func(r *contracts.ScoredRecord) float64 { return math.Abs(r.High52wDist.Or(0)) })
	quality := rank(func(r *contracts.ScoredRecord) float64 { return float64(r.QualityScore) })

	return scoredEntries(subset, func(i int) float64 {
		r := &subset[i]
		return delta[i]*2.0 + revCAGR[i]*2.0 + roe[i]*1.5 + float64(r.Turnaround)*2.0 +
			(1-per[i])*1.0 + float64(r.MarginSurge)*1.5 + (1-rsi[i])*1.0 +
			(1-highDist[i])*1.0 + quality[i]*0.5 + r.ScoreGap.Or(0)/100*0.5
	})
}

// ⑥ 배당 성장주: 배당과 수익이 함께 늘어나는 기업
func dividendGrowthScreen(records []contracts.ScoredRecord) []contracts.ScreenEntry {
	subset := filterRecords(records, func(r *contracts.ScoredRecord) bool {
		return r.NetIncomeStreak >= 2 &&
			r.DPSStreak >= 1 &&
			float64(r.DPSCAGR) > 0 &&
			float64(r.ROE) >= 5 &&
			float64(r.DividendYield) > 0 &&
			float64(r.MarketCap) >= smallCapFloor &&
			float64(r.TTMNetIncome) > 0 &&
			r.DividendGrowthAligned == 1
	})

	rank := subsetRanker(subset)
	dpsCAGR := rank(func(r *contracts.ScoredRecord) float64 { return float64(r.DPSCAGR) })
	niCAGR := rank(func(r *contracts.ScoredRecord) float64 { return float64(r.NetIncomeCAGR) })
	dpsStreak := rank(func(r *contracts.ScoredRecord) float64 { return float64(r.DPSStreak) })
	niStreak := rank(func(r *contracts.ScoredRecord) float64 { return float64(r.NetIncomeStreak) })
	roe := rank(func(r *contracts.ScoredRecord) float64 { return float64(r.ROE) })
	divYield := rank(func(r *contracts.ScoredRecord) float64 { return float64(r.DividendYield) })
	debtRatio := rank(func(r *contracts.ScoredRecord) float64 { return r.DebtRatio.Or(0) })
	quality := rank(func(r *contracts.ScoredRecord) float64 { return float64(r.QualityScore) })
	per := rank(func(r *contracts.ScoredRecord) float64 { return clip(float64(r.PER), 1, 100) })

	return scoredEntries(subset, func(i int) float64 {
		return dpsCAGR[i]*3.0 + niCAGR[i]*2.5 + dpsStreak[i]*2.0 + niStreak[i]*2.0 +
			roe[i]*1.5 + divYield[i]*1.5 + (1-debtRatio[i])*1.0 + quality[i]*0.5 +
			(1-per[i])*0.5
	})
}

// between is inclusive on both ends; NaN fails.
func between(v, lo, hi float64) bool {
	return v >= lo && v <= hi
}

func filterRecords(records []contracts.ScoredRecord, pred func(*contracts.ScoredRecord) bool) []contracts.ScoredRecord {
	var out []contracts.ScoredRecord
	for i := range records {
		if pred(&records[i]) {
			out = append(out, records[i])
		}
	}
	return out
}

// subsetRanker builds percentile ranks over the screen's passing
// subset only, so sub-scores are relative within the style.
func subsetRanker(subset []contracts.ScoredRecord) func(func(*contracts.ScoredRecord) float64) []float64 {
	return func(get func(*contracts.ScoredRecord) float64) []float64 {
		vals := make([]float64, len(subset))
		for i := range subset {
			vals[i] = get(&subset[i])
		}
		return percentileRanks(vals)
	}
}

func scoredEntries(subset []contracts.ScoredRecord, score func(int) float64) []contracts.ScreenEntry {
	entries := make([]contracts.ScreenEntry, len(subset))
	for i := range subset {
		entries[i] = contracts.ScreenEntry{
			ScoredRecord: subset[i],
			StyleScore:   contracts.Float(score(i)),
		}
	}
	sortByStyleScore(entries)
	return entries
}

// sortByStyleScore orders descending, undefined scores last.
func sortByStyleScore(entries []contracts.ScreenEntry) {
	sort.SliceStable(entries, func(a, b int) bool {
		sa, sb := float64(entries[a].StyleScore), float64(entries[b].StyleScore)
		if math.IsNaN(sa) {
			return false
		}
		if math.IsNaN(sb) {
			return true
		}
		return sa > sb
	})
}
