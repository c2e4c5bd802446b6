package analysis

import (
	"math"
	"sort"

	"github.com/wonny/kquant/internal/contracts"
	"github.com/wonny/kquant/pkg/logger"
)

// TechnicalCalculator overlays price-history indicators onto scored
// records. 펀더멘털과 무관하게 가격 흐름만 본다.
type TechnicalCalculator struct {
	log *logger.Logger
}

// NewTechnicalCalculator creates a new TechnicalCalculator.
func NewTechnicalCalculator(log *logger.Logger) *TechnicalCalculator {
	return &TechnicalCalculator{log: log}
}

// Apply computes the overlay for each record in place. Records with
// fewer than five price rows keep NaN indicators.
func (t *TechnicalCalculator) Apply(records []contracts.ScoredRecord, history []contracts.PriceRow) {
	byTicker := map[string][]contracts.PriceRow{}
	for _, row := range history {
		byTicker[row.Ticker] = append(byTicker[row.Ticker], row)
	}

	for i := range records {
		records[i].Technicals = computeTechnicals(byTicker[records[i].Ticker])
	}

	if t.log != nil && len(history) == 0 {
		t.log.Warn("주가 히스토리 없음, 기술적 지표 생략")
	}
}

func computeTechnicals(rows []contracts.PriceRow) contracts.Technicals {
	tech := contracts.Technicals{
		High52wDist:       contracts.NaN(),
		Low52wDist:        contracts.NaN(),
		MA20Dev:           contracts.NaN(),
		MA60Dev:           contracts.NaN(),
		RSI14:             contracts.NaN(),
		AvgTraded20:       contracts.NaN(),
		TradedValueChange: contracts.NaN(),
		Volatility60:      contracts.NaN(),
	}

	if len(rows) < 5 {
		return tech
	}

	sorted := make([]contracts.PriceRow, len(rows))
	copy(sorted, rows)
	sort.Slice(sorted, func(a, b int) bool { return sorted[a].Date < sorted[b].Date })

	var closes []float64
	for _, r := range sorted {
		if !r.Close.IsNaN() {
			closes = append(closes, float64(r.Close))
		}
	}
	if len(closes) < 5 {
		return tech
	}
	latest := closes[len(closes)-1]

	// 52주 최고/최저 대비
	high := seriesMax(sorted, func(r contracts.PriceRow) contracts.Float { return r.High })
	low := seriesMin(sorted, func(r contracts.PriceRow) contracts.Float { return r.Low })
	if math.IsNaN(high) {
		high = maxOf(closes)
	}
	if math.IsNaN(low) {
		low = minOf(closes)
	}
	if high > 0 {
		tech.High52wDist = contracts.Float((latest - high) / high * 100)
	}
	if low > 0 {
		tech.Low52wDist = contracts.Float((latest - low) / low * 100)
	}

	// 이동평균 이격도
	if len(closes) >= 20 {
		if ma := mean(closes[len(closes)-20:]); ma > 0 {
			tech.MA20Dev = contracts.Float((latest/ma - 1) * 100)
		}
	}
	if len(closes) >= 60 {
		if ma := mean(closes[len(closes)-60:]); ma > 0 {
			tech.MA60Dev = contracts.Float((latest/ma - 1) * 100)
		}
	}

	// RSI 14일
	if len(closes) >= 15 {
		tech.RSI14 = contracts.Float(rsi14(closes))
	}

	// 거래대금 (없으면 종가×거래량으로 추정)
	amounts := tradedAmounts(sorted)
	if len(amounts) >= 20 {
		avg20 := mean(amounts[len(amounts)-20:])
		tech.AvgTraded20 = contracts.Float(avg20)
		if avg20 > 0 {
			avg5 := mean(amounts[len(amounts)-5:])
			tech.TradedValueChange = contracts.Float((avg5/avg20 - 1) * 100)
		}
	}

	// 변동성 (60일 수익률 표준편차, 연환산)
	if len(closes) >= 61 {
		returns := make([]float64, 0, len(closes)-1)
		for i := 1; i < len(closes); i++ {
			if closes[i-1] != 0 {
				returns = append(returns, closes[i]/closes[i-1]-1)
			}
		}
		if len(returns) >= 60 {
			tech.Volatility60 = contracts.Float(stddev(returns[len(returns)-60:]) * math.Sqrt(252) * 100)
		}
	}

	return tech
}

func rsi14(closes []float64) float64 {
	n := len(closes)
	var gains, losses []float64
	for i := 1; i < n; i++ {
		delta := closes[i] - closes[i-1]
		if delta > 0 {
			gains = append(gains, delta)
			losses = append(losses, 0)
		} else {
			gains = append(gains, 0)
			losses = append(losses, -delta)
		}
	}

	avgGain := mean(gains[len(gains)-14:])
	avgLoss := mean(losses[len(losses)-14:])

	switch {
	case avgLoss > 0:
		rs := avgGain / avgLoss
		return 100 - 100/(1+rs)
	case avgGain > 0:
		return 100
	default:
		return 50
	}
}

func tradedAmounts(rows []contracts.PriceRow) []float64 {
	var amounts []float64
	for _, r := range rows {
		if !r.Amount.IsNaN() {
			amounts = append(amounts, float64(r.Amount))
		}
	}
	if len(amounts) > 0 {
		return amounts
	}

	for _, r := range rows {
		if !r.Close.IsNaN() && !r.Volume.IsNaN() {
			amounts = append(amounts, float64(r.Close)*float64(r.Volume))
		}
	}
	return amounts
}

func seriesMax(rows []contracts.PriceRow, get func(contracts.PriceRow) contracts.Float) float64 {
	out := math.NaN()
	for _, r := range rows {
		v := get(r)
		if v.IsNaN() {
			continue
		}
		if math.IsNaN(out) || float64(v) > out {
			out = float64(v)
		}
	}
	return out
}

func seriesMin(rows []contracts.PriceRow, get func(contracts.PriceRow) contracts.Float) float64 {
	out := math.NaN()
	for _, r := range rows {
		v := get(r)
		if v.IsNaN() {
			continue
		}
		if math.IsNaN(out) || float64(v) < out {
			out = float64(v)
		}
	}
	return out
}

func maxOf(vals []float64) float64 {
	out := vals[0]
	for _, v := range vals[1:] {
		if v > out {
			out = v
		}
	}
	return out
}

func minOf(vals []float64) float64 {
	out := vals[0]
	for _, v := range vals[1:] {
		if v < out {
			out = v
		}
	}
	return out
}

func mean(vals []float64) float64 {
	if len(vals) == 0 {
		return math.NaN()
	}
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

// stddev is the sample standard deviation.
func stddev(vals []float64) float64 {
	n := len(vals)
	if n < 2 {
		return math.NaN()
	}
	m := mean(vals)
	sum := 0.0
	for _, v := range vals {
		sum += (v - m) * (v - m)
	}
	return math.Sqrt(sum / float64(n-1))
}
