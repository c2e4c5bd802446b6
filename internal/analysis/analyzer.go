package analysis

import (
	"math"
	"sort"

	"github.com/wonny/kquant/internal/contracts"
	"github.com/wonny/kquant/pkg/logger"
)

// Analyzer derives one fundamental Analysis record per ticker from its
// indicator and statement history.
// ⭐ SSOT: 종목별 펀더멘털 지표 산출은 여기서만
type Analyzer struct {
	log *logger.Logger
}

// NewAnalyzer creates a new Analyzer.
func NewAnalyzer(log *logger.Logger) *Analyzer {
	return &Analyzer{log: log}
}

// AnalyzeOne builds the analysis record for a single ticker. Missing
// data never fails the record; underivable fields stay NaN.
func (a *Analyzer) AnalyzeOne(ticker string, indicators []contracts.IndicatorRow, statements []contracts.StatementRow) contracts.Analysis {
	res := contracts.Analysis{
		Ticker:             ticker,
		TTMRevenue:         contracts.NaN(),
		TTMOperatingIncome: contracts.NaN(),
		TTMNetIncome:       contracts.NaN(),
		QRevenueYoY:        contracts.NaN(),
		QOpIncomeYoY:       contracts.NaN(),
		QNetIncomeYoY:      contracts.NaN(),
		TTMRevenueYoY:      contracts.NaN(),
		TTMOpIncomeYoY:     contracts.NaN(),
		TTMNetIncomeYoY:    contracts.NaN(),
		Equity:             contracts.NaN(),
		Liabilities:        contracts.NaN(),
		TotalAssets:        contracts.NaN(),
		RevenueCAGR:        contracts.NaN(),
		OpIncomeCAGR:       contracts.NaN(),
		NetIncomeCAGR:      contracts.NaN(),
		OpMargin:           contracts.NaN(),
		PrevOpMargin:       contracts.NaN(),
		MarginDelta:        contracts.NaN(),
		OCF:                contracts.NaN(),
		Capex:              contracts.NaN(),
		FCF:                contracts.NaN(),
		OCFCAGR:            contracts.NaN(),
		FCFCAGR:            contracts.NaN(),
		DPS:                contracts.NaN(),
		DPSCAGR:            contracts.NaN(),
	}

	ratioY := indicatorCells(indicators, contracts.GroupRatioAnnual)
	ratioQ := indicatorCells(indicators, contracts.GroupRatioQuarterly)
	dpsCells := indicatorCells(indicators, contracts.GroupDPS)
	fsAll := statementCells(statements, "")
	fsAnnual := statementCells(statements, contracts.FreqAnnual)

	annualDates := annualDatesOf(ratioY)

	// TTM: 최근 4개 분기 합, 없으면 최근 연간값
	ttmRev := a.ttmFigure(ratioQ, ratioY, annualDates, AccRevenue)
	ttmOp := a.ttmFigure(ratioQ, ratioY, annualDates, AccOperatingIncome)
	ttmNI := a.ttmFigure(ratioQ, ratioY, annualDates, AccNetIncome)
	res.TTMRevenue = contracts.Float(ttmRev)
	res.TTMOperatingIncome = contracts.Float(ttmOp)
	res.TTMNetIncome = contracts.Float(ttmNI)

	// 계절성 통제: 분기 YoY와 TTM YoY
	if qDates := uniqueDates(ratioQ); len(qDates) > 0 {
		res.LatestQuarter = qDates[len(qDates)-1]

		if len(qDates) >= 5 {
			revYoY := QuarterlyYoY(ResolveSeries(ratioQ, AccRevenue))
			opYoY := QuarterlyYoY(ResolveSeries(ratioQ, AccOperatingIncome))
			niYoY := QuarterlyYoY(ResolveSeries(ratioQ, AccNetIncome))
			res.QRevenueYoY = contracts.Float(revYoY.Latest)
			res.QOpIncomeYoY = contracts.Float(opYoY.Latest)
			res.QNetIncomeYoY = contracts.Float(niYoY.Latest)
			res.QRevenueYoYStreak = revYoY.PositiveRuns
			res.QOpIncomeYoYStreak = opYoY.PositiveRuns
			res.QNetIncomeYoYStreak = niYoY.PositiveRuns
		}
		if len(qDates) >= 8 {
			res.TTMRevenueYoY = contracts.Float(TTMYoY(ResolveSeries(ratioQ, AccRevenue)))
			res.TTMOpIncomeYoY = contracts.Float(TTMYoY(ResolveSeries(ratioQ, AccOperatingIncome)))
			res.TTMNetIncomeYoY = contracts.Float(TTMYoY(ResolveSeries(ratioQ, AccNetIncome)))
		}
	}

	// 자본/부채: 재무제표 최신일 우선, 없으면 연간 지표
	equity, debt := balanceSnapshot(fsAll)
	if math.IsNaN(equity) {
		if e := ResolveSeries(ratioY, AccEquity); len(e) > 0 {
			_, equity, _ = e.Latest()
		}
		if d := ResolveSeries(ratioY, AccLiabilities); len(d) > 0 {
			_, debt, _ = d.Latest()
		}
	}
	res.Equity = contracts.Float(equity)
	res.Liabilities = contracts.Float(debt)

	// 퀄리티 스코어용 BS/IS 연간 시계열 (재무제표 우선)
	totalAssets := ResolveSeries(fsAnnual, AccTotalAssets)
	currentAssets := ResolveSeries(fsAnnual, AccCurrentAssets)
	currentLiabs := ResolveSeries(fsAnnual, AccCurrentLiabilities)
	grossProfit := ResolveSeries(fsAnnual, AccGrossProfit)
	debtSeries := ResolveSeries(fsAnnual, AccLiabilities)
	equitySeries := ResolveSeries(fsAnnual, AccEquity)

	if len(totalAssets) == 0 {
		totalAssets = ResolveSeries(ratioY, AccTotalAssets)
	}
	if len(debtSeries) == 0 {
		debtSeries = ResolveSeries(ratioY, AccLiabilities)
		equitySeries = ResolveSeries(ratioY, AccEquity)
	}

	if _, v, ok := totalAssets.Latest(); ok {
		res.TotalAssets = contracts.Float(v)
	}

	// 성장성: 연간(12-31) 데이터 2개 이상일 때만
	var revSeries, opSeries, niSeries Series
	if len(annualDates) >= 2 {
		yearly := filterDates(ratioY, annualDates)
		revSeries = ResolveSeries(yearly, AccRevenue)
		opSeries = ResolveSeries(yearly, AccOperatingIncome)
		niSeries = ResolveSeries(yearly, AccNetIncome)
	}
	res.RevenueCAGR = contracts.Float(CAGR(revSeries))
	res.OpIncomeCAGR = contracts.Float(CAGR(opSeries))
	res.NetIncomeCAGR = contracts.Float(CAGR(niSeries))
	res.RevenueStreak = ConsecutiveGrowth(revSeries)
	res.OpIncomeStreak = ConsecutiveGrowth(opSeries)
	res.NetIncomeStreak = ConsecutiveGrowth(niSeries)

	// 이익률 개선
	a.fillMargins(&res, revSeries, opSeries)

	// 턴어라운드: 전년 적자 → 당기 흑자
	if len(niSeries) >= 2 {
		dates := niSeries.SortedDates()
		prev, cur := niSeries[dates[len(dates)-2]], niSeries[dates[len(dates)-1]]
		if prev < 0 && cur > 0 {
			res.Turnaround = 1
		}
	}

	// 현금흐름: 지표 우선, 재무제표 fallback
	ocfSeries := ResolveSeries(filterDates(ratioY, annualDates), AccOperatingCF)
	capexSeries := ResolveSeries(filterDates(ratioY, annualDates), AccCapex)
	if len(ocfSeries) == 0 {
		ocfSeries = ResolveSeries(fsAnnual, AccOperatingCF)
	}
	if len(capexSeries) == 0 {
		capexSeries = ResolveSeries(fsAnnual, AccCapex)
	}

	// CAPEX는 취득액이 음수로 기재되므로 절대값
	for d, v := range capexSeries {
		capexSeries[d] = math.Abs(v)
	}

	fcfSeries := Series{}
	for d, ocf := range ocfSeries {
		if capex, ok := capexSeries[d]; ok {
			fcfSeries[d] = ocf - capex
		}
	}

	if _, v, ok := ocfSeries.Latest(); ok {
		res.OCF = contracts.Float(v)
	}
	if _, v, ok := capexSeries.Latest(); ok {
		res.Capex = contracts.Float(v)
	}
	if _, v, ok := fcfSeries.Latest(); ok {
		res.FCF = contracts.Float(v)
	}
	res.OCFCAGR = contracts.Float(CAGR(ocfSeries))
	res.FCFCAGR = contracts.Float(CAGR(fcfSeries))
	res.OCFStreak = ConsecutiveGrowth(ocfSeries)

	// 퀄리티 스코어 (9개 항목, F7은 밸류에이션 단계에서 확정)
	a.fillQualityScore(&res, niSeries, revSeries, totalAssets, debtSeries, equitySeries,
		currentAssets, currentLiabs, grossProfit)

	// 배당
	dpsSeries := Series{}
	if annualDPS := annualDatesOf(dpsCells); len(annualDPS) > 0 {
		dpsSeries = ResolveSeries(filterDates(dpsCells, annualDPS), AccDPS)
	}
	if _, v, ok := dpsSeries.Latest(); ok {
		res.DPS = contracts.Float(v)
	}
	res.DPSCAGR = contracts.Float(CAGR(dpsSeries))
	res.DPSStreak = ConsecutiveGrowth(dpsSeries)

	// 순이익과 배당이 함께 늘고 있는지
	if ConsecutiveGrowth(niSeries) >= 2 && res.DPSStreak >= 1 {
		res.DividendGrowthAligned = 1
	}

	return res
}

// ttmFigure sums the last four quarters of an account. When fewer than
// four quarterly values exist, the latest annual value stands in.
func (a *Analyzer) ttmFigure(ratioQ, ratioY []Cell, annualDates []string, key string) float64 {
	val := math.NaN()

	qDates := uniqueDates(ratioQ)
	if len(qDates) >= 4 {
		last4 := qDates[len(qDates)-4:]
		s := ResolveSeries(filterDates(ratioQ, last4), key)
		if len(s) >= 4 {
			sum := 0.0
			for _, v := range s {
				sum += v
			}
			val = sum
		}
	}

	if math.IsNaN(val) && len(annualDates) > 0 {
		s := ResolveSeries(filterDates(ratioY, annualDates), key)
		if _, v, ok := s.Latest(); ok {
			val = v
		}
	}
	return val
}

func (a *Analyzer) fillMargins(res *contracts.Analysis, revSeries, opSeries Series) {
	if len(revSeries) < 2 || len(opSeries) < 2 {
		return
	}

	dates := revSeries.SortedDates()
	latest, prev := dates[len(dates)-1], dates[len(dates)-2]

	opmLatest := marginAt(opSeries, revSeries, latest)
	opmPrev := marginAt(opSeries, revSeries, prev)
	res.OpMargin = contracts.Float(opmLatest)
	res.PrevOpMargin = contracts.Float(opmPrev)

	if !math.IsNaN(opmLatest) && !math.IsNaN(opmPrev) {
		if opmLatest > opmPrev {
			res.MarginImproved = 1
		}
		delta := opmLatest - opmPrev
		res.MarginDelta = contracts.Float(delta)
		if delta >= 5 {
			res.MarginSurge = 1
		}
	}
}

// marginAt computes operating margin for one date. A missing operating
// income counts as zero; a non-positive revenue leaves it undefined.
func marginAt(opSeries, revSeries Series, date string) float64 {
	rev := revSeries[date]
	if rev <= 0 {
		return math.NaN()
	}
	return opSeries[date] / rev * 100
}

func (a *Analyzer) fillQualityScore(res *contracts.Analysis, niSeries, revSeries, totalAssets,
	debtSeries, equitySeries, currentAssets, currentLiabs, grossProfit Series) {

	ttmNI := float64(res.TTMNetIncome)
	ttmOCF := float64(res.OCF)

	// F1: 수익성 (TTM 순이익 > 0)
	if ttmNI > 0 {
		res.F1 = 1
	}

	// F2: 영업현금흐름 > 0
	if ttmOCF > 0 {
		res.F2 = 1
	}

	// F3: ROA 개선
	if len(niSeries) >= 2 && len(totalAssets) >= 2 {
		niDates := niSeries.SortedDates()
		taDates := totalAssets.SortedDates()
		roaCurr := safeDiv(niSeries[niDates[len(niDates)-1]], totalAssets[taDates[len(taDates)-1]])
		roaPrev := safeDiv(niSeries[niDates[len(niDates)-2]], totalAssets[taDates[len(taDates)-2]])
		if roaCurr > roaPrev {
			res.F3 = 1
		}
	}

	// F4: 이익품질 (영업CF > 순이익 > 0)
	if ttmNI > 0 && ttmOCF > ttmNI {
		res.F4 = 1
	}

	// F5: 레버리지 감소
	if len(debtSeries) >= 2 && len(equitySeries) >= 2 {
		dDates := debtSeries.SortedDates()
		eDates := equitySeries.SortedDates()
		eCurr, ePrev := equitySeries[eDates[len(eDates)-1]], equitySeries[eDates[len(eDates)-2]]
		if eCurr > 0 && ePrev > 0 {
			drCurr := debtSeries[dDates[len(dDates)-1]] / eCurr
			drPrev := debtSeries[dDates[len(dDates)-2]] / ePrev
			if drCurr < drPrev {
				res.F5 = 1
			}
		}
	}

	// F6: 유동비율 개선
	if len(currentAssets) >= 2 && len(currentLiabs) >= 2 {
		caDates := currentAssets.SortedDates()
		clDates := currentLiabs.SortedDates()
		clCurr, clPrev := currentLiabs[clDates[len(clDates)-1]], currentLiabs[clDates[len(clDates)-2]]
		if clCurr > 0 && clPrev > 0 {
			crCurr := currentAssets[caDates[len(caDates)-1]] / clCurr
			crPrev := currentAssets[caDates[len(caDates)-2]] / clPrev
			if crCurr > crPrev {
				res.F6 = 1
			}
		}
	}

	// F7: 주식 희석 없음 — 발행주식수 이력이 필요해서 밸류에이션 단계에서 확정

	// F8: 매출총이익률 개선
	if len(grossProfit) >= 2 && len(revSeries) >= 2 {
		gpDates := grossProfit.SortedDates()
		rvDates := revSeries.SortedDates()
		rvCurr, rvPrev := revSeries[rvDates[len(rvDates)-1]], revSeries[rvDates[len(rvDates)-2]]
		if rvCurr > 0 && rvPrev > 0 {
			gmCurr := grossProfit[gpDates[len(gpDates)-1]] / rvCurr
			gmPrev := grossProfit[gpDates[len(gpDates)-2]] / rvPrev
			if gmCurr > gmPrev {
				res.F8 = 1
			}
		}
	}

	// F9: 자산회전율 개선
	if len(revSeries) >= 2 && len(totalAssets) >= 2 {
		rvDates := revSeries.SortedDates()
		taDates := totalAssets.SortedDates()
		taCurr, taPrev := totalAssets[taDates[len(taDates)-1]], totalAssets[taDates[len(taDates)-2]]
		if taCurr > 0 && taPrev > 0 {
			atCurr := revSeries[rvDates[len(rvDates)-1]] / taCurr
			atPrev := revSeries[rvDates[len(rvDates)-2]] / taPrev
			if atCurr > atPrev {
				res.F9 = 1
			}
		}
	}

	res.QualityScore = res.F1 + res.F2 + res.F3 + res.F4 + res.F5 + res.F6 + res.F7 + res.F8 + res.F9
}

// safeDiv returns zero when the denominator is not positive.
func safeDiv(num, den float64) float64 {
	if den <= 0 {
		return 0
	}
	return num / den
}

// balanceSnapshot reads equity and liabilities off the latest
// statement date.
func balanceSnapshot(fsAll []Cell) (equity, debt float64) {
	equity, debt = math.NaN(), math.NaN()

	dates := uniqueDates(fsAll)
	if len(dates) == 0 {
		return equity, debt
	}
	last := dates[len(dates)-1]
	latest := filterDates(fsAll, []string{last})

	if e := ResolveSeries(latest, AccEquity); len(e) > 0 {
		_, equity, _ = e.Latest()
	}
	if d := ResolveSeries(latest, AccLiabilities); len(d) > 0 {
		_, debt, _ = d.Latest()
	}
	return equity, debt
}

func indicatorCells(rows []contracts.IndicatorRow, group string) []Cell {
	var cells []Cell
	for _, r := range rows {
		if r.Group != group {
			continue
		}
		cells = append(cells, Cell{Date: r.Date, Account: r.Account, Value: r.Value})
	}
	return cells
}

// statementCells converts statement rows; freq "" keeps all rows.
func statementCells(rows []contracts.StatementRow, freq string) []Cell {
	var cells []Cell
	for _, r := range rows {
		if freq != "" && r.Freq != freq {
			continue
		}
		cells = append(cells, Cell{Date: r.Date, Account: r.Account, Value: r.Value})
	}
	return cells
}

func filterDates(cells []Cell, dates []string) []Cell {
	keep := map[string]bool{}
	for _, d := range dates {
		keep[d] = true
	}

	var out []Cell
	for _, c := range cells {
		if keep[c.Date] {
			out = append(out, c)
		}
	}
	return out
}

func uniqueDates(cells []Cell) []string {
	seen := map[string]bool{}
	var dates []string
	for _, c := range cells {
		if !seen[c.Date] {
			seen[c.Date] = true
			dates = append(dates, c.Date)
		}
	}
	sort.Strings(dates)
	return dates
}

func annualDatesOf(cells []Cell) []string {
	var out []string
	for _, d := range uniqueDates(cells) {
		if len(d) >= 5 && d[len(d)-5:] == "12-31" {
			out = append(out, d)
		}
	}
	return out
}
