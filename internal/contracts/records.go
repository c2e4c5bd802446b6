package contracts

import (
	"encoding/json"
	"math"
	"strings"
)

// Float is a float64 that serializes NaN as JSON null.
// 미정의 값은 NaN으로 전파 (0과 구분)
type Float float64

// NaN returns the undefined value.
func NaN() Float {
	return Float(math.NaN())
}

// IsNaN reports whether the value is undefined.
func (f Float) IsNaN() bool {
	return math.IsNaN(float64(f))
}

// Or returns the value, or def when undefined.
func (f Float) Or(def float64) float64 {
	if f.IsNaN() {
		return def
	}
	return float64(f)
}

// MarshalJSON encodes NaN as null.
func (f Float) MarshalJSON() ([]byte, error) {
	if f.IsNaN() {
		return []byte("null"), nil
	}
	return json.Marshal(float64(f))
}

// UnmarshalJSON decodes null as NaN.
func (f *Float) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*f = NaN()
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*f = Float(v)
	return nil
}

// Indicator group tags, matching the collected FnGuide sections.
const (
	GroupRatioAnnual    = "RATIO_Y"
	GroupRatioQuarterly = "RATIO_Q"
	GroupDPS            = "DPS"
)

// Statement frequency tags.
const (
	FreqAnnual    = "y"
	FreqQuarterly = "q"
)

// Share classes derived from listing names.
const (
	ClassCommon    = "common"
	ClassPreferred = "preferred"
	ClassSPAC      = "spac"
	ClassREIT      = "reit"
)

// Listing is one row of the KRX master table.
type Listing struct {
	Ticker string `json:"ticker"`
	Name   string `json:"name"`
	Market string `json:"market"` // KOSPI, KOSDAQ
	Sector string `json:"sector,omitempty"`
	Class  string `json:"class"` // common, preferred, spac, reit
}

// DailyRow is one row of the daily snapshot table (price + market cap).
type DailyRow struct {
	Ticker    string `json:"ticker"`
	Date      string `json:"date"` // YYYY-MM-DD
	Close     Float  `json:"close"`
	Volume    Float  `json:"volume"`
	MarketCap Float  `json:"market_cap"`
	Shares    Float  `json:"shares"`
}

// IndicatorRow is one (ticker, date, account) cell of the FnGuide
// financial-highlight tables.
type IndicatorRow struct {
	Ticker  string   `json:"ticker"`
	Date    string   `json:"date"`  // YYYY-MM-DD (결산월 말일)
	Group   string   `json:"group"` // RATIO_Y, RATIO_Q, DPS
	Account string   `json:"account"`
	Value   *float64 `json:"value"` // nil = 수집되었으나 값 없음
}

// StatementRow is one cell of the full financial statements.
type StatementRow struct {
	Ticker   string   `json:"ticker"`
	Date     string   `json:"date"`
	Freq     string   `json:"freq"` // y, q
	Account  string   `json:"account"`
	Value    *float64 `json:"value"`
	Estimate bool     `json:"estimate"` // 컨센서스/잠정치 여부
}

// ShareCountRow is a share-count snapshot used to backfill missing
// share counts and to detect buybacks.
type ShareCountRow struct {
	Ticker    string `json:"ticker"`
	Date      string `json:"date"`
	Shares    Float  `json:"shares"`     // 발행주식수 (보통주)
	Treasury  Float  `json:"treasury"`   // 자사주
	FreeFloat Float  `json:"free_float"` // 발행 - 자사주, 최소 0
}

// PriceRow is one day of OHLCV history.
type PriceRow struct {
	Ticker string `json:"ticker"`
	Date   string `json:"date"`
	Open   Float  `json:"open"`
	High   Float  `json:"high"`
	Low    Float  `json:"low"`
	Close  Float  `json:"close"`
	Volume Float  `json:"volume"`
	Amount Float  `json:"amount"` // 거래대금, 없으면 close*volume으로 근사
}

// NormalizeCode zero-pads a ticker code to 6 digits.
// Returns false for codes that are not purely numeric.
func NormalizeCode(code string) (string, bool) {
	code = strings.TrimSpace(code)
	if code == "" || len(code) > 6 {
		return "", false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return "", false
		}
	}
	for len(code) < 6 {
		code = "0" + code
	}
	return code, true
}
