package contracts

import "context"

// ⭐ SSOT: Repository 인터페이스 정의는 여기서만

// SnapshotDataset is one fully loaded collection snapshot, ready for
// analysis. Each slice reflects the latest collected_date of its table.
type SnapshotDataset struct {
	Listings   []Listing
	Daily      []DailyRow
	Indicators []IndicatorRow
	Statements []StatementRow
	Shares     []ShareCountRow
}

// MarketDataRepository manages the snapshot-versioned raw tables.
// Load* 메서드는 항상 최신 collected_date 스냅샷만 반환
type MarketDataRepository interface {
	LoadLatestListings(ctx context.Context) ([]Listing, error)
	LoadLatestDaily(ctx context.Context) ([]DailyRow, error)
	LoadLatestIndicators(ctx context.Context) ([]IndicatorRow, error)
	LoadLatestStatements(ctx context.Context) ([]StatementRow, error)
	LoadLatestShares(ctx context.Context) ([]ShareCountRow, error)

	SaveListings(ctx context.Context, collectedDate string, rows []Listing) error
	SaveDaily(ctx context.Context, collectedDate string, rows []DailyRow) error
	SaveIndicators(ctx context.Context, collectedDate string, rows []IndicatorRow) error
	SaveStatements(ctx context.Context, collectedDate string, rows []StatementRow) error
	SaveShares(ctx context.Context, collectedDate string, rows []ShareCountRow) error
}

// PriceHistoryRepository manages daily OHLCV history (append + upsert).
type PriceHistoryRepository interface {
	LoadHistory(ctx context.Context, days int) ([]PriceRow, error)
	LoadTickerHistory(ctx context.Context, ticker string, days int) ([]PriceRow, error)
	SaveHistory(ctx context.Context, rows []PriceRow) error
}

// DashboardRepository persists the scored universe for the web dashboard.
// Replace 의미론: 저장할 때마다 전체 교체
type DashboardRepository interface {
	Replace(ctx context.Context, records []ScoredRecord) error
	Load(ctx context.Context) ([]ScoredRecord, error)
	LoadOne(ctx context.Context, ticker string) (*ScoredRecord, error)
}

// ReportRepository persists qualitative analysis reports, keyed by ticker.
type ReportRepository interface {
	Save(ctx context.Context, report *Report) error
	Load(ctx context.Context, ticker string) (*Report, error)
}
