package contracts

import "time"

// Analysis holds the per-stock fundamental analysis derived from
// indicator and statement history. Fields that could not be derived
// stay NaN; a partial record is still emitted.
type Analysis struct {
	Ticker string `json:"ticker"`

	// TTM figures (최근 4개 분기 합, 없으면 최근 연간)
	TTMRevenue        Float `json:"ttm_revenue"`
	TTMOperatingIncome Float `json:"ttm_operating_income"`
	TTMNetIncome      Float `json:"ttm_net_income"`

	// Quarterly YoY (전년 동분기 대비)
	LatestQuarter       string `json:"latest_quarter,omitempty"`
	QRevenueYoY         Float  `json:"q_revenue_yoy"`
	QOpIncomeYoY        Float  `json:"q_op_income_yoy"`
	QNetIncomeYoY       Float  `json:"q_net_income_yoy"`
	QRevenueYoYStreak   int    `json:"q_revenue_yoy_streak"`
	QOpIncomeYoYStreak  int    `json:"q_op_income_yoy_streak"`
	QNetIncomeYoYStreak int    `json:"q_net_income_yoy_streak"`
	TTMRevenueYoY       Float  `json:"ttm_revenue_yoy"`
	TTMOpIncomeYoY      Float  `json:"ttm_op_income_yoy"`
	TTMNetIncomeYoY     Float  `json:"ttm_net_income_yoy"`

	// Balance sheet snapshot
	Equity      Float `json:"equity"`
	Liabilities Float `json:"liabilities"`
	TotalAssets Float `json:"total_assets"`

	// Long-term growth (연간 데이터 기준)
	RevenueCAGR    Float `json:"revenue_cagr"`
	OpIncomeCAGR   Float `json:"op_income_cagr"`
	NetIncomeCAGR  Float `json:"net_income_cagr"`
	RevenueStreak  int   `json:"revenue_streak"`
	OpIncomeStreak int   `json:"op_income_streak"`
	NetIncomeStreak int  `json:"net_income_streak"`

	// Operating margin trend
	OpMargin       Float `json:"op_margin"`
	PrevOpMargin   Float `json:"prev_op_margin"`
	MarginImproved int   `json:"margin_improved"`
	MarginDelta    Float `json:"margin_delta"`
	MarginSurge    int   `json:"margin_surge"` // 개선폭 5%p 이상
	Turnaround     int   `json:"turnaround"`   // 직전 연간 적자 → 흑자

	// Cash flow (TTM 기준)
	OCF       Float `json:"ocf"`
	Capex     Float `json:"capex"`
	FCF       Float `json:"fcf"`
	OCFCAGR   Float `json:"ocf_cagr"`
	FCFCAGR   Float `json:"fcf_cagr"`
	OCFStreak int   `json:"ocf_streak"`

	// Quality score components. F7 (발행주식수 감소) is finalized
	// during valuation where share history is available.
	F1, F2, F3, F4, F5, F6, F7, F8, F9 int `json:"-"`
	QualityScore                       int `json:"quality_score"`

	// Dividends
	DPS                   Float `json:"dps"`
	DPSCAGR               Float `json:"dps_cagr"`
	DPSStreak             int   `json:"dps_streak"`
	DividendGrowthAligned int   `json:"dividend_growth_aligned"` // 순이익·배당 동반 증가
}

// Technicals holds the price-history overlay for one ticker.
type Technicals struct {
	High52wDist      Float `json:"high_52w_dist"` // 52주 최고 대비 %
	Low52wDist       Float `json:"low_52w_dist"`
	MA20Dev          Float `json:"ma20_dev"`
	MA60Dev          Float `json:"ma60_dev"`
	RSI14            Float `json:"rsi14"`
	AvgTraded20      Float `json:"avg_traded_20"` // 20일 평균 거래대금
	TradedValueChange Float `json:"traded_value_change"` // 5일/20일 평균 거래대금 증감 %
	Volatility60     Float `json:"volatility_60"` // 연환산 %
}

// ScoredRecord is one fully scored universe row: analysis joined with
// the daily snapshot, valuation ratios, percentile scores, and the
// technical overlay.
type ScoredRecord struct {
	Analysis

	Name   string `json:"name"`
	Market string `json:"market"`

	// Daily snapshot
	Close     Float `json:"close"`
	MarketCap Float `json:"market_cap"`
	Shares    Float `json:"shares"`

	// Valuation ratios
	PER             Float `json:"per"`
	PBR             Float `json:"pbr"`
	ROE             Float `json:"roe"`
	DebtRatio       Float `json:"debt_ratio"`
	BPS             Float `json:"bps"`
	EPS             Float `json:"eps"`
	DividendYield   Float `json:"dividend_yield"`
	PSR             Float `json:"psr"`
	PEG             Float `json:"peg"`
	EarningsYield   Float `json:"earnings_yield"`
	FCFYield        Float `json:"fcf_yield"`
	CashConversion  Float `json:"cash_conversion"`  // 영업CF / 순이익 %
	CapexRatio      Float `json:"capex_ratio"`      // CAPEX / 영업CF %
	EarningsQuality int   `json:"earnings_quality"` // OCF > NI > 0
	DebtService     Float `json:"debt_service"`     // 영업CF / 부채
	FairValue       Float `json:"fair_value"`       // S-RIM 적정주가
	ValuationGap    Float `json:"valuation_gap"`    // (적정주가-현재가)/현재가 %
	PERAnomaly      bool  `json:"per_anomaly"`

	Technicals

	// Percentile scores (0~100)
	ScorePER           Float `json:"score_per"`
	ScorePBR           Float `json:"score_pbr"`
	ScoreROE           Float `json:"score_roe"`
	ScoreRevCAGR       Float `json:"score_rev_cagr"`
	ScoreOpCAGR        Float `json:"score_op_cagr"`
	ScoreNICAGR        Float `json:"score_ni_cagr"`
	ScoreStreak        Float `json:"score_streak"`
	ScoreMarginImprove Float `json:"score_margin_improve"`
	ScoreDivYield      Float `json:"score_div_yield"`
	ScoreDivStreak     Float `json:"score_div_streak"`
	ScoreGap           Float `json:"score_gap"`
	ScoreQuality       Float `json:"score_quality"`
	ScoreFCFYield      Float `json:"score_fcf_yield"`
	ScoreQRevYoY       Float `json:"score_q_rev_yoy"`
	ScoreQOpYoY        Float `json:"score_q_op_yoy"`
	ScoreTTMRevYoY     Float `json:"score_ttm_rev_yoy"`
	ScoreTTMOpYoY      Float `json:"score_ttm_op_yoy"`
	ScoreQStreak       Float `json:"score_q_streak"`

	Composite Float `json:"composite"`
}

// ScreenEntry is one row of a screen result, ordered by style score.
type ScreenEntry struct {
	ScoredRecord
	StyleScore Float `json:"style_score"`
}

// ScreenResult is the outcome of evaluating one investment-style screen.
type ScreenResult struct {
	Screen      string        `json:"screen"`
	GeneratedAt time.Time     `json:"generated_at"`
	Entries     []ScreenEntry `json:"entries"`
}

// MasterScore is one investor-framework verdict inside a qualitative report.
type MasterScore struct {
	Score    int    `json:"score"` // 1~10
	Title    string `json:"title"`
	Analysis string `json:"analysis"`
}

// Report is a qualitative analysis report generated for one ticker.
type Report struct {
	Ticker         string                 `json:"ticker"`
	Name           string                 `json:"name"`
	Masters        map[string]MasterScore `json:"masters"` // buffett, damodaran, fisher, dorsey, kostolany
	CompositeScore int                    `json:"composite_score"` // 1~100
	Grade          string                 `json:"investment_grade"` // A+ ~ D
	Summary        string                 `json:"summary"`
	Risks          []string               `json:"risks"`
	Catalysts      []string               `json:"catalysts"`
	Model          string                 `json:"model"`
	CreatedAt      time.Time              `json:"created_at"`
}
