package analysis

import (
	"math"
	"sort"

	"github.com/wonny/kquant/internal/contracts"
	"github.com/wonny/kquant/pkg/logger"
)

// 요구수익률 (S-RIM)
const costOfEquity = 8.0

// Composite weights. 퀄리티·성장 중심, 배당은 보조.
var compositeWeights = []struct {
	score  func(*contracts.ScoredRecord) contracts.Float
	weight float64
}{
	{func(r *contracts.ScoredRecord) contracts.Float { return r.ScorePER }, 1.5},
	{func(r *contracts.ScoredRecord) contracts.Float { return r.ScorePBR }, 1.0},
	{func(r *contracts.ScoredRecord) contracts.Float { return r.ScoreROE }, 2.0},
	{func(r *contracts.ScoredRecord) contracts.Float { return r.ScoreRevCAGR }, 2.0},
	{func(r *contracts.ScoredRecord) contracts.Float { return r.ScoreOpCAGR }, 2.0},
	{func(r *contracts.ScoredRecord) contracts.Float { return r.ScoreNICAGR }, 1.0},
	{func(r *contracts.ScoredRecord) contracts.Float { return r.ScoreStreak }, 1.0},
	{func(r *contracts.ScoredRecord) contracts.Float { return r.ScoreMarginImprove }, 1.0},
	{func(r *contracts.ScoredRecord) contracts.Float { return r.ScoreDivYield }, 0.3},
	{func(r *contracts.ScoredRecord) contracts.Float { return r.ScoreDivStreak }, 0.3},
	{func(r *contracts.ScoredRecord) contracts.Float { return r.ScoreGap }, 1.0},
	{func(r *contracts.ScoredRecord) contracts.Float { return r.ScoreQuality }, 2.0},
	{func(r *contracts.ScoredRecord) contracts.Float { return r.ScoreFCFYield }, 1.5},
}

// Valuer joins analysis records with the daily snapshot and produces
// the fully scored universe.
// ⭐ SSOT: 밸류에이션 지표와 종합점수는 여기서만 산출
type Valuer struct {
	log *logger.Logger
}

// NewValuer creates a new Valuer.
func NewValuer(log *logger.Logger) *Valuer {
	return &Valuer{log: log}
}

// Score builds one ScoredRecord per ticker present in both the daily
// snapshot and the analysis set. multiplier converts collected
// financial figures to won.
func (v *Valuer) Score(analyses []contracts.Analysis, daily []contracts.DailyRow,
	listings []contracts.Listing, shares []contracts.ShareCountRow, multiplier float64) []contracts.ScoredRecord {

	dailyByTicker := map[string]contracts.DailyRow{}
	for _, d := range daily {
		if _, ok := dailyByTicker[d.Ticker]; !ok {
			dailyByTicker[d.Ticker] = d
		}
	}

	nameByTicker := map[string]contracts.Listing{}
	for _, l := range listings {
		if _, ok := nameByTicker[l.Ticker]; !ok {
			nameByTicker[l.Ticker] = l
		}
	}

	// 상장주식수 백필용: 종목별 첫 스냅샷
	sharesByTicker := map[string]float64{}
	sharesHistory := map[string][]contracts.ShareCountRow{}
	for _, s := range shares {
		if _, ok := sharesByTicker[s.Ticker]; !ok {
			sharesByTicker[s.Ticker] = float64(s.Shares)
		}
		sharesHistory[s.Ticker] = append(sharesHistory[s.Ticker], s)
	}

	var records []contracts.ScoredRecord
	for _, anal := range analyses {
		d, ok := dailyByTicker[anal.Ticker]
		if !ok {
			continue // inner join: 일별 시세 없는 종목 제외
		}

		rec := contracts.ScoredRecord{Analysis: anal}
		if l, ok := nameByTicker[anal.Ticker]; ok {
			rec.Name = l.Name
			rec.Market = l.Market
		}
		rec.Close = d.Close
		rec.MarketCap = d.MarketCap

		shareCount := float64(d.Shares)
		if math.IsNaN(shareCount) || shareCount == 0 {
			if backfill, ok := sharesByTicker[anal.Ticker]; ok {
				shareCount = backfill
			}
		}
		rec.Shares = contracts.Float(shareCount)

		v.fillRatios(&rec, multiplier)
		v.finalizeDilution(&rec, sharesHistory[anal.Ticker])
		records = append(records, rec)
	}

	v.fillScores(records)

	if v.log != nil {
		v.log.WithField("count", len(records)).Info("밸류에이션 스코어링 완료")
	}
	return records
}

// fillRatios computes the per-record valuation ratios. Every ratio is
// guarded by its definedness condition and stays NaN otherwise.
func (v *Valuer) fillRatios(rec *contracts.ScoredRecord, m float64) {
	close := float64(rec.Close)
	mcap := float64(rec.MarketCap)
	ni := float64(rec.TTMNetIncome)
	rev := float64(rec.TTMRevenue)
	equity := float64(rec.Equity)
	debt := float64(rec.Liabilities)
	ocf := float64(rec.OCF)
	capex := float64(rec.Capex)
	fcf := float64(rec.FCF)
	dps := float64(rec.DPS)
	shares := float64(rec.Shares)

	per := math.NaN()
	if ni > 0 && mcap > 0 {
		per = mcap / (ni * m)
	}
	rec.PER = contracts.Float(per)

	pbr := math.NaN()
	if equity > 0 && mcap > 0 {
		pbr = mcap / (equity * m)
	}
	rec.PBR = contracts.Float(pbr)

	roe := math.NaN()
	if equity > 0 && !math.IsNaN(ni) {
		roe = ni / equity * 100
	}
	rec.ROE = contracts.Float(roe)

	debtRatio := math.NaN()
	if equity > 0 {
		debtRatio = debt / equity * 100
	}
	rec.DebtRatio = contracts.Float(debtRatio)

	sharesSafe := shares
	if sharesSafe == 0 {
		sharesSafe = math.NaN()
	}
	bps := equity * m / sharesSafe
	eps := ni * m / sharesSafe
	rec.BPS = contracts.Float(bps)
	rec.EPS = contracts.Float(eps)

	// 배당수익률은 미지급을 0으로 본다 (NaN 아님)
	divYield := 0.0
	if close > 0 && dps > 0 {
		divYield = dps / close * 100
	}
	rec.DividendYield = contracts.Float(divYield)

	psr := math.NaN()
	if rev > 0 && mcap > 0 {
		psr = mcap / (rev * m)
	}
	rec.PSR = contracts.Float(psr)

	peg := math.NaN()
	niCAGR := float64(rec.NetIncomeCAGR)
	if per > 0 && niCAGR > 0 {
		peg = per / niCAGR
	}
	rec.PEG = contracts.Float(peg)

	earningsYield := math.NaN()
	if close > 0 && eps > 0 {
		earningsYield = eps / close * 100
	}
	rec.EarningsYield = contracts.Float(earningsYield)

	fcfYield := math.NaN()
	if !math.IsNaN(fcf) && mcap > 0 {
		fcfYield = fcf * m / mcap * 100
	}
	rec.FCFYield = contracts.Float(fcfYield)

	cashConv := math.NaN()
	if !math.IsNaN(ocf) && ni > 0 {
		cashConv = ocf / ni * 100
	}
	rec.CashConversion = contracts.Float(cashConv)

	capexRatio := math.NaN()
	if !math.IsNaN(capex) && ocf > 0 {
		capexRatio = capex / ocf * 100
	}
	rec.CapexRatio = contracts.Float(capexRatio)

	if ni > 0 && ocf > ni {
		rec.EarningsQuality = 1
	}

	debtService := math.NaN()
	if !math.IsNaN(ocf) && debt > 0 {
		debtService = ocf / debt
	}
	rec.DebtService = contracts.Float(debtService)

	// S-RIM: 초과이익이 있으면 가산, 없으면 10% 할인한 청산가치
	fair := math.NaN()
	switch {
	case roe > costOfEquity && bps > 0:
		fair = bps + bps*(roe-costOfEquity)/costOfEquity
	case bps > 0:
		fair = bps * 0.9
	}
	rec.FairValue = contracts.Float(fair)

	gap := math.NaN()
	if close > 0 {
		gap = (fair - close) / close * 100
	}
	rec.ValuationGap = contracts.Float(gap)

	rec.PERAnomaly = !math.IsNaN(per) && (per < 0.5 || per > 500)
}

// finalizeDilution decides F7 from share-count snapshots and folds it
// back into the quality score.
func (v *Valuer) finalizeDilution(rec *contracts.ScoredRecord, history []contracts.ShareCountRow) {
	if len(history) < 2 {
		return
	}

	sorted := make([]contracts.ShareCountRow, len(history))
	copy(sorted, history)
	sort.Slice(sorted, func(a, b int) bool { return sorted[a].Date < sorted[b].Date })

	latest := float64(sorted[len(sorted)-1].Shares)
	prev := float64(sorted[len(sorted)-2].Shares)
	if math.IsNaN(latest) || math.IsNaN(prev) || prev <= 0 {
		return
	}

	if latest <= prev {
		rec.F7 = 1
	}
	rec.QualityScore = rec.F1 + rec.F2 + rec.F3 + rec.F4 + rec.F5 + rec.F6 + rec.F7 + rec.F8 + rec.F9
}

// fillScores assigns universe-wide percentile scores and the weighted
// composite. NaN inputs keep their score NaN; only the final composite
// sum treats NaN as zero.
func (v *Valuer) fillScores(records []contracts.ScoredRecord) {
	n := len(records)
	if n == 0 {
		return
	}

	rankInto := func(get func(*contracts.ScoredRecord) float64, set func(*contracts.ScoredRecord, float64), invert bool) {
		vals := make([]float64, n)
		for i := range records {
			vals[i] = get(&records[i])
		}
		ranks := percentileRanks(vals)
		for i := range records {
			r := ranks[i]
			if invert {
				set(&records[i], (1-r)*100)
			} else {
				set(&records[i], r*100)
			}
		}
	}

	rankInto(func(r *contracts.ScoredRecord) float64 { return float64(r.PER) },
		func(r *contracts.ScoredRecord, s float64) { r.ScorePER = contracts.Float(s) }, true)
	rankInto(func(r *contracts.ScoredRecord) float64 { return float64(r.PBR) },
		func(r *contracts.ScoredRecord, s float64) { r.ScorePBR = contracts.Float(s) }, true)
	rankInto(func(r *contracts.ScoredRecord) float64 { return float64(r.ROE) },
		func(r *contracts.ScoredRecord, s float64) { r.ScoreROE = contracts.Float(s) }, false)
	rankInto(func(r *contracts.ScoredRecord) float64 { return float64(r.RevenueCAGR) },
		func(r *contracts.ScoredRecord, s float64) { r.ScoreRevCAGR = contracts.Float(s) }, false)
	rankInto(func(r *contracts.ScoredRecord) float64 { return float64(r.OpIncomeCAGR) },
		func(r *contracts.ScoredRecord, s float64) { r.ScoreOpCAGR = contracts.Float(s) }, false)
	rankInto(func(r *contracts.ScoredRecord) float64 { return float64(r.NetIncomeCAGR) },
		func(r *contracts.ScoredRecord, s float64) { r.ScoreNICAGR = contracts.Float(s) }, false)
	rankInto(func(r *contracts.ScoredRecord) float64 { return float64(r.MarginDelta) },
		func(r *contracts.ScoredRecord, s float64) { r.ScoreMarginImprove = contracts.Float(s) }, false)
	rankInto(func(r *contracts.ScoredRecord) float64 { return float64(r.DividendYield) },
		func(r *contracts.ScoredRecord, s float64) { r.ScoreDivYield = contracts.Float(s) }, false)
	rankInto(func(r *contracts.ScoredRecord) float64 { return float64(r.ValuationGap) },
		func(r *contracts.ScoredRecord, s float64) { r.ScoreGap = contracts.Float(s) }, false)
	rankInto(func(r *contracts.ScoredRecord) float64 { return float64(r.QualityScore) },
		func(r *contracts.ScoredRecord, s float64) { r.ScoreQuality = contracts.Float(s) }, false)
	rankInto(func(r *contracts.ScoredRecord) float64 { return float64(r.FCFYield) },
		func(r *contracts.ScoredRecord, s float64) { r.ScoreFCFYield = contracts.Float(s) }, false)
	rankInto(func(r *contracts.ScoredRecord) float64 { return float64(r.QRevenueYoY) },
		func(r *contracts.ScoredRecord, s float64) { r.ScoreQRevYoY = contracts.Float(s) }, false)
	rankInto(func(r *contracts.ScoredRecord) float64 { return float64(r.QOpIncomeYoY) },
		func(r *contracts.ScoredRecord, s float64) { r.ScoreQOpYoY = contracts.Float(s) }, false)
	rankInto(func(r *contracts.ScoredRecord) float64 { return float64(r.TTMRevenueYoY) },
		func(r *contracts.ScoredRecord, s float64) { r.ScoreTTMRevYoY = contracts.Float(s) }, false)
	rankInto(func(r *contracts.ScoredRecord) float64 { return float64(r.TTMOpIncomeYoY) },
		func(r *contracts.ScoredRecord, s float64) { r.ScoreTTMOpYoY = contracts.Float(s) }, false)

	for i := range records {
		r := &records[i]

		// 연속성장: 각 0~5년을 0~100으로 정규화해 평균
		r.ScoreStreak = contracts.Float((clip(float64(r.RevenueStreak), 0, 5)/5*100 +
			clip(float64(r.OpIncomeStreak), 0, 5)/5*100 +
			clip(float64(r.NetIncomeStreak), 0, 5)/5*100) / 3)

		r.ScoreDivStreak = contracts.Float(clip(float64(r.DPSStreak), 0, 5) / 5 * 100)

		r.ScoreQStreak = contracts.Float((clip(float64(r.QRevenueYoYStreak), 0, 4)/4*100 +
			clip(float64(r.QOpIncomeYoYStreak), 0, 4)/4*100) / 2)

		total := 0.0
		for _, w := range compositeWeights {
			total += w.score(r).Or(0) * w.weight
		}
		r.Composite = contracts.Float(total)
	}
}
