package store

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/kquant/internal/contracts"
)

// 배치당 500건 (트랜잭션 타임아웃 방지)
const insertBatchSize = 500

// MarketRepository implements contracts.MarketDataRepository on the
// snapshot-versioned raw tables.
// ⭐ SSOT: 수집 원본 데이터 저장소는 여기서만
type MarketRepository struct {
	pool *pgxpool.Pool
}

// NewMarketRepository creates a new market data repository.
func NewMarketRepository(pool *pgxpool.Pool) *MarketRepository {
	return &MarketRepository{pool: pool}
}

// nullable converts NaN to SQL NULL.
func nullable(f contracts.Float) interface{} {
	if f.IsNaN() {
		return nil
	}
	return float64(f)
}

// scanFloat converts SQL NULL back to NaN.
func scanFloat(p *float64) contracts.Float {
	if p == nil {
		return contracts.NaN()
	}
	return contracts.Float(*p)
}

func dateString(t time.Time) string {
	return t.Format("2006-01-02")
}

// saveSnapshot replaces one collected_date worth of rows: 같은 날짜로
// 재수집해도 멱등.
func (r *MarketRepository) saveSnapshot(ctx context.Context, table, collectedDate string,
	n int, insert func(pgx.Tx, int) error) error {

	if _, err := r.pool.Exec(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE collected_date = $1", table), collectedDate); err != nil {
		return fmt.Errorf("clear %s snapshot: %w", table, err)
	}

	for start := 0; start < n; start += insertBatchSize {
		end := start + insertBatchSize
		if end > n {
			end = n
		}

		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}

		for i := start; i < end; i++ {
			if err := insert(tx, i); err != nil {
				tx.Rollback(ctx)
				return fmt.Errorf("insert into %s: %w", table, err)
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit transaction: %w", err)
		}
	}
	return nil
}

// latestDateClause selects only the most recent snapshot of a table.
func latestDateClause(table string) string {
	return fmt.Sprintf("collected_date = (SELECT MAX(collected_date) FROM %s)", table)
}

// SaveListings stores the KRX listing master for one collection date.
func (r *MarketRepository) SaveListings(ctx context.Context, collectedDate string, rows []contracts.Listing) error {
	query := `
		INSERT INTO quant.listings (collected_date, ticker, name, market, sector, class)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	return r.saveSnapshot(ctx, "quant.listings", collectedDate, len(rows), func(tx pgx.Tx, i int) error {
		row := rows[i]
		_, err := tx.Exec(ctx, query, collectedDate, row.Ticker, row.Name, row.Market, row.Sector, row.Class)
		return err
	})
}

// LoadLatestListings returns the most recent listing snapshot.
func (r *MarketRepository) LoadLatestListings(ctx context.Context) ([]contracts.Listing, error) {
	query := `
		SELECT ticker, name, market, COALESCE(sector, ''), class
		FROM quant.listings
		WHERE ` + latestDateClause("quant.listings") + `
		ORDER BY ticker
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query listings: %w", err)
	}
	defer rows.Close()

	var out []contracts.Listing
	for rows.Next() {
		var l contracts.Listing
		if err := rows.Scan(&l.Ticker, &l.Name, &l.Market, &l.Sector, &l.Class); err != nil {
			return nil, fmt.Errorf("scan listing: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// SaveDaily stores the daily price/market-cap snapshot.
func (r *MarketRepository) SaveDaily(ctx context.Context, collectedDate string, rows []contracts.DailyRow) error {
	query := `
		INSERT INTO quant.daily_snapshot (collected_date, ticker, trade_date, close_price, volume, market_cap, shares)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	return r.saveSnapshot(ctx, "quant.daily_snapshot", collectedDate, len(rows), func(tx pgx.Tx, i int) error {
		row := rows[i]
		_, err := tx.Exec(ctx, query, collectedDate, row.Ticker, row.Date,
			nullable(row.Close), nullable(row.Volume), nullable(row.MarketCap), nullable(row.Shares))
		return err
	})
}

// LoadLatestDaily returns the most recent daily snapshot.
func (r *MarketRepository) LoadLatestDaily(ctx context.Context) ([]contracts.DailyRow, error) {
	query := `
		SELECT ticker, trade_date, close_price, volume, market_cap, shares
		FROM quant.daily_snapshot
		WHERE ` + latestDateClause("quant.daily_snapshot") + `
		ORDER BY ticker
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query daily snapshot: %w", err)
	}
	defer rows.Close()

	var out []contracts.DailyRow
	for rows.Next() {
		var d contracts.DailyRow
		var tradeDate time.Time
		var closeP, volume, mcap, shares *float64
		if err := rows.Scan(&d.Ticker, &tradeDate, &closeP, &volume, &mcap, &shares); err != nil {
			return nil, fmt.Errorf("scan daily row: %w", err)
		}
		d.Date = dateString(tradeDate)
		d.Close = scanFloat(closeP)
		d.Volume = scanFloat(volume)
		d.MarketCap = scanFloat(mcap)
		d.Shares = scanFloat(shares)
		out = append(out, d)
	}
	return out, rows.Err()
}

// SaveIndicators stores the collected indicator cells.
func (r *MarketRepository) SaveIndicators(ctx context.Context, collectedDate string, rows []contracts.IndicatorRow) error {
	query := `
		INSERT INTO quant.indicators (collected_date, ticker, fiscal_date, group_tag, account, value)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (collected_date, ticker, fiscal_date, group_tag, account) DO NOTHING
	`
	return r.saveSnapshot(ctx, "quant.indicators", collectedDate, len(rows), func(tx pgx.Tx, i int) error {
		row := rows[i]
		var value interface{}
		if row.Value != nil && !math.IsNaN(*row.Value) {
			value = *row.Value
		}
		_, err := tx.Exec(ctx, query, collectedDate, row.Ticker, row.Date, row.Group, row.Account, value)
		return err
	})
}

// LoadLatestIndicators returns the most recent indicator snapshot.
func (r *MarketRepository) LoadLatestIndicators(ctx context.Context) ([]contracts.IndicatorRow, error) {
	query := `
		SELECT ticker, fiscal_date, group_tag, account, value
		FROM quant.indicators
		WHERE ` + latestDateClause("quant.indicators") + `
		ORDER BY ticker, fiscal_date
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query indicators: %w", err)
	}
	defer rows.Close()

	var out []contracts.IndicatorRow
	for rows.Next() {
		var row contracts.IndicatorRow
		var fiscalDate time.Time
		if err := rows.Scan(&row.Ticker, &fiscalDate, &row.Group, &row.Account, &row.Value); err != nil {
			return nil, fmt.Errorf("scan indicator: %w", err)
		}
		row.Date = dateString(fiscalDate)
		out = append(out, row)
	}
	return out, rows.Err()
}

// SaveStatements stores the collected financial statement cells.
func (r *MarketRepository) SaveStatements(ctx context.Context, collectedDate string, rows []contracts.StatementRow) error {
	query := `
		INSERT INTO quant.statements (collected_date, ticker, fiscal_date, freq, account, value, estimate)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (collected_date, ticker, fiscal_date, freq, account) DO NOTHING
	`
	return r.saveSnapshot(ctx, "quant.statements", collectedDate, len(rows), func(tx pgx.Tx, i int) error {
		row := rows[i]
		var value interface{}
		if row.Value != nil && !math.IsNaN(*row.Value) {
			value = *row.Value
		}
		_, err := tx.Exec(ctx, query, collectedDate, row.Ticker, row.Date, row.Freq, row.Account, value, row.Estimate)
		return err
	})
}

// LoadLatestStatements returns the most recent statement snapshot.
func (r *MarketRepository) LoadLatestStatements(ctx context.Context) ([]contracts.StatementRow, error) {
	query := `
		SELECT ticker, fiscal_date, freq, account, value, estimate
		FROM quant.statements
		WHERE ` + latestDateClause("quant.statements") + `
		ORDER BY ticker, fiscal_date
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query statements: %w", err)
	}
	defer rows.Close()

	var out []contracts.StatementRow
	for rows.Next() {
		var row contracts.StatementRow
		var fiscalDate time.Time
		if err := rows.Scan(&row.Ticker, &fiscalDate, &row.Freq, &row.Account, &row.Value, &row.Estimate); err != nil {
			return nil, fmt.Errorf("scan statement: %w", err)
		}
		row.Date = dateString(fiscalDate)
		out = append(out, row)
	}
	return out, rows.Err()
}

// SaveShares stores share-count snapshots.
func (r *MarketRepository) SaveShares(ctx context.Context, collectedDate string, rows []contracts.ShareCountRow) error {
	query := `
		INSERT INTO quant.share_counts (collected_date, ticker, snapshot_date, shares, treasury_shares, float_shares)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (collected_date, ticker, snapshot_date) DO NOTHING
	`
	return r.saveSnapshot(ctx, "quant.share_counts", collectedDate, len(rows), func(tx pgx.Tx, i int) error {
		row := rows[i]
		_, err := tx.Exec(ctx, query, collectedDate, row.Ticker, row.Date,
			nullable(row.Shares), nullable(row.Treasury), nullable(row.FreeFloat))
		return err
	})
}

// LoadLatestShares returns the most recent share-count snapshot.
func (r *MarketRepository) LoadLatestShares(ctx context.Context) ([]contracts.ShareCountRow, error) {
	query := `
		SELECT ticker, snapshot_date, shares, treasury_shares, float_shares
		FROM quant.share_counts
		WHERE ` + latestDateClause("quant.share_counts") + `
		ORDER BY ticker, snapshot_date
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query share counts: %w", err)
	}
	defer rows.Close()

	var out []contracts.ShareCountRow
	for rows.Next() {
		var row contracts.ShareCountRow
		var snapshotDate time.Time
		var shares, treasury, floatShares *float64
		if err := rows.Scan(&row.Ticker, &snapshotDate, &shares, &treasury, &floatShares); err != nil {
			return nil, fmt.Errorf("scan share count: %w", err)
		}
		row.Date = dateString(snapshotDate)
		row.Shares = scanFloat(shares)
		row.Treasury = scanFloat(treasury)
		row.FreeFloat = scanFloat(floatShares)
		out = append(out, row)
	}
	return out, rows.Err()
}

// LoadDataset loads the full latest snapshot in one call.
func (r *MarketRepository) LoadDataset(ctx context.Context) (*contracts.SnapshotDataset, error) {
	listings, err := r.LoadLatestListings(ctx)
	if err != nil {
		return nil, err
	}
	daily, err := r.LoadLatestDaily(ctx)
	if err != nil {
		return nil, err
	}
	indicators, err := r.LoadLatestIndicators(ctx)
	if err != nil {
		return nil, err
	}
	statements, err := r.LoadLatestStatements(ctx)
	if err != nil {
		return nil, err
	}
	shares, err := r.LoadLatestShares(ctx)
	if err != nil {
		return nil, err
	}

	return &contracts.SnapshotDataset{
		Listings:   listings,
		Daily:      daily,
		Indicators: indicators,
		Statements: statements,
		Shares:     shares,
	}, nil
}
