package analysis

import "strings"

// Canonical account keys.
const (
	AccRevenue            = "revenue"
	AccOperatingIncome    = "operating_income"
	AccNetIncome          = "net_income"
	AccEquity             = "equity"
	AccLiabilities        = "liabilities"
	AccOperatingCF        = "operating_cf"
	AccInvestingCF        = "investing_cf"
	AccCapex              = "capex"
	AccDPS                = "dps"
	AccTotalAssets        = "total_assets"
	AccCurrentAssets      = "current_assets"
	AccCurrentLiabilities = "current_liabilities"
	AccGrossProfit        = "gross_profit"
)

// exactLabels maps each canonical key to the FnGuide labels that are
// accepted as exact matches, in preference order. 금융업은 계정명이
// 달라서 (영업수익, 이자수익 등) 대체 라벨을 함께 둔다.
var exactLabels = map[string][]string{
	AccRevenue:            {"매출액", "영업수익", "이자수익", "보험료수익", "순영업수익"},
	AccOperatingIncome:    {"영업이익"},
	AccNetIncome:          {"지배주주순이익", "당기순이익"},
	AccEquity:             {"자본", "자본총계", "지배주주지분", "지배기업주주지분"},
	AccLiabilities:        {"부채", "부채총계"},
	AccOperatingCF:        {"영업활동현금흐름", "영업활동으로인한현금흐름"},
	AccInvestingCF:        {"투자활동현금흐름", "투자활동으로인한현금흐름"},
	AccCapex:              {"유형자산의취득", "유형자산취득"},
	AccDPS:                {"주당배당금"},
	AccTotalAssets:        {"자산총계", "자산"},
	AccCurrentAssets:      {"유동자산"},
	AccCurrentLiabilities: {"유동부채"},
	AccGrossProfit:        {"매출총이익"},
}

// excludeMarkers disqualify prefix matches that are derived columns
// (증가율, 평균 등) rather than the raw account.
var excludeMarkers = []string{
	"증가율", "(-1Y)", "(평균)", "률(", "비율", "배율", "(-1A", "(-1Q", "/ 수정평균",
}

// Cell is one (date, account, value) observation for a single ticker.
// Value가 nil이면 수집은 되었으나 파싱 불가였던 칸.
type Cell struct {
	Date    string
	Account string
	Value   *float64
}

// ResolveSeries picks the cells matching a canonical account key and
// builds a date-keyed series. Exact label matches win; otherwise any
// account starting with one of the labels is accepted unless it
// carries a derived-column marker. Duplicate dates keep the first
// occurrence. Unparseable values are dropped.
func ResolveSeries(cells []Cell, canonical string) Series {
	labels, ok := exactLabels[canonical]
	if !ok {
		return Series{}
	}

	matched := matchExact(cells, labels)
	if len(matched) == 0 {
		matched = matchPrefix(cells, labels)
	}

	out := Series{}
	seen := map[string]bool{}
	for _, c := range matched {
		if seen[c.Date] {
			continue
		}
		seen[c.Date] = true
		if c.Value == nil {
			continue
		}
		out[c.Date] = *c.Value
	}
	return out
}

func matchExact(cells []Cell, labels []string) []Cell {
	set := map[string]bool{}
	for _, l := range labels {
		set[l] = true
	}

	var matched []Cell
	for _, c := range cells {
		if set[c.Account] {
			matched = append(matched, c)
		}
	}
	return matched
}

func matchPrefix(cells []Cell, labels []string) []Cell {
	var matched []Cell
	for _, c := range cells {
		if !hasLabelPrefix(c.Account, labels) {
			continue
		}
		if hasExcludeMarker(c.Account) {
			continue
		}
		matched = append(matched, c)
	}
	return matched
}

func hasLabelPrefix(account string, labels []string) bool {
	for _, l := range labels {
		if strings.HasPrefix(account, l) {
			return true
		}
	}
	return false
}

func hasExcludeMarker(account string) bool {
	for _, m := range excludeMarkers {
		if strings.Contains(account, m) {
			return true
		}
	}
	return false
}
