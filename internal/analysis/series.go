package analysis

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"
)

// Series is a sparse time series keyed by YYYY-MM-DD date strings.
// Dates with unparseable or missing values are simply absent.
type Series map[string]float64

// SortedDates returns the series dates in ascending order.
func (s Series) SortedDates() []string {
	dates := make([]string, 0, len(s))
	for d := range s {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	return dates
}

// Latest returns the most recent date and value.
func (s Series) Latest() (string, float64, bool) {
	if len(s) == 0 {
		return "", 0, false
	}
	dates := s.SortedDates()
	last := dates[len(dates)-1]
	return last, s[last], true
}

// AnnualOnly keeps only fiscal year-end dates (12-31 결산 기준).
func (s Series) AnnualOnly() Series {
	out := Series{}
	for d, v := range s {
		if len(d) >= 5 && d[len(d)-5:] == "12-31" {
			out[d] = v
		}
	}
	return out
}

// CAGR returns the compound annual growth rate in percent.
// Undefined (NaN) when fewer than two points, when either endpoint is
// not positive, or when the span is under half a year.
func CAGR(s Series) float64 {
	if len(s) < 2 {
		return math.NaN()
	}

	dates := s.SortedDates()
	first, last := dates[0], dates[len(dates)-1]
	v0, v1 := s[first], s[last]
	if v0 <= 0 || v1 <= 0 {
		return math.NaN()
	}

	t0, err0 := time.Parse("2006-01-02", first)
	t1, err1 := time.Parse("2006-01-02", last)
	if err0 != nil || err1 != nil {
		return math.NaN()
	}

	years := t1.Sub(t0).Hours() / 24 / 365.25
	if years < 0.5 {
		return math.NaN()
	}

	return (math.Pow(v1/v0, 1/years) - 1) * 100
}

// ConsecutiveGrowth counts how many of the most recent periods grew
// over the prior period. The scan walks backward from the latest value
// and stops at the first non-growth or at a non-positive base.
func ConsecutiveGrowth(s Series) int {
	if len(s) < 2 {
		return 0
	}

	dates := s.SortedDates()
	count := 0
	for i := len(dates) - 1; i >= 1; i-- {
		cur, prev := s[dates[i]], s[dates[i-1]]
		if cur > prev && prev > 0 {
			count++
		} else {
			break
		}
	}
	return count
}

// YoYResult is the outcome of a quarterly year-over-year comparison.
type YoYResult struct {
	Latest       float64 // 최신 분기 YoY %
	LatestDate   string
	Series       Series // 날짜별 YoY (흑자전환 분기는 NaN 항목으로 존재)
	PositiveRuns int    // 최근 연속 플러스 분기 수
}

// QuarterlyYoY compares each quarter against the same calendar quarter
// of the prior year. A sign flip from loss to profit has no defined
// growth rate and yields a NaN entry; a negative prior with a still
// negative current yields no entry at all.
func QuarterlyYoY(s Series) YoYResult {
	res := YoYResult{Latest: math.NaN(), Series: Series{}}
	if len(s) < 5 {
		return res
	}

	dates := s.SortedDates()
	for _, d := range dates {
		prev, ok := prevYearDate(d)
		if !ok {
			continue
		}
		pv, exists := s[prev]
		if !exists {
			continue
		}
		cv := s[d]
		switch {
		case pv > 0:
			res.Series[d] = ((cv / pv) - 1) * 100
		case pv < 0 && cv > 0:
			// 흑자전환: 증가율 미정의
			res.Series[d] = math.NaN()
		}
	}

	if len(res.Series) == 0 {
		return res
	}

	yoyDates := res.Series.SortedDates()
	res.LatestDate = yoyDates[len(yoyDates)-1]
	res.Latest = res.Series[res.LatestDate]

	for i := len(yoyDates) - 1; i >= 0; i-- {
		v := res.Series[yoyDates[i]]
		if math.IsNaN(v) || v <= 0 {
			break
		}
		res.PositiveRuns++
	}
	return res
}

// prevYearDate returns the same month-day one year earlier.
func prevYearDate(d string) (string, bool) {
	if len(d) != 10 {
		return "", false
	}
	year, err := strconv.Atoi(d[:4])
	if err != nil {
		return "", false
	}
	return fmt.Sprintf("%04d%s", year-1, d[4:]), true
}

// TTMYoY compares the sum of the latest four quarters against the sum
// of the four before that. Needs eight quarters; undefined when the
// prior-year sum is not positive.
func TTMYoY(s Series) float64 {
	if len(s) < 8 {
		return math.NaN()
	}

	dates := s.SortedDates()
	n := len(dates)

	var cur, prev float64
	for _, d := range dates[n-4:] {
		cur += s[d]
	}
	for _, d := range dates[n-8 : n-4] {
		prev += s[d]
	}

	if prev <= 0 {
		return math.NaN()
	}
	return ((cur / prev) - 1) * 100
}
