package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/kquant/internal/contracts"
)

// PriceHistoryRepository implements contracts.PriceHistoryRepository.
// 히스토리는 스냅샷이 아니라 누적 (upsert).
type PriceHistoryRepository struct {
	pool *pgxpool.Pool
}

// NewPriceHistoryRepository creates a new price history repository.
func NewPriceHistoryRepository(pool *pgxpool.Pool) *PriceHistoryRepository {
	return &PriceHistoryRepository{pool: pool}
}

const priceColumns = "ticker, trade_date, open_price, high_price, low_price, close_price, volume, amount"

func scanPriceRows(rows pgx.Rows) ([]contracts.PriceRow, error) {
	var out []contracts.PriceRow
	for rows.Next() {
		var p contracts.PriceRow
		var tradeDate time.Time
		var open, high, low, closeP, volume, amount *float64
		if err := rows.Scan(&p.Ticker, &tradeDate, &open, &high, &low, &closeP, &volume, &amount); err != nil {
			return nil, fmt.Errorf("scan price row: %w", err)
		}
		p.Date = dateString(tradeDate)
		p.Open = scanFloat(open)
		p.High = scanFloat(high)
		p.Low = scanFloat(low)
		p.Close = scanFloat(closeP)
		p.Volume = scanFloat(volume)
		p.Amount = scanFloat(amount)
		out = append(out, p)
	}
	return out, rows.Err()
}

// LoadHistory returns all tickers' history for the last N calendar days.
func (r *PriceHistoryRepository) LoadHistory(ctx context.Context, days int) ([]contracts.PriceRow, error) {
	query := `
		SELECT ` + priceColumns + `
		FROM quant.price_history
		WHERE trade_date >= CURRENT_DATE - $1::int
		ORDER BY ticker, trade_date
	`
	rows, err := r.pool.Query(ctx, query, days)
	if err != nil {
		return nil, fmt.Errorf("query price history: %w", err)
	}
	defer rows.Close()
	return scanPriceRows(rows)
}

// LoadTickerHistory returns one ticker's history for the last N calendar days.
func (r *PriceHistoryRepository) LoadTickerHistory(ctx context.Context, ticker string, days int) ([]contracts.PriceRow, error) {
	query := `
		SELECT ` + priceColumns + `
		FROM quant.price_history
		WHERE ticker = $1 AND trade_date >= CURRENT_DATE - $2::int
		ORDER BY trade_date
	`
	rows, err := r.pool.Query(ctx, query, ticker, days)
	if err != nil {
		return nil, fmt.Errorf("query ticker history: %w", err)
	}
	defer rows.Close()
	return scanPriceRows(rows)
}

// SaveHistory upserts OHLCV rows in 500-row transactions.
func (r *PriceHistoryRepository) SaveHistory(ctx context.Context, rows []contracts.PriceRow) error {
	if len(rows) == 0 {
		return nil
	}

	query := `
		INSERT INTO quant.price_history (` + priceColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (ticker, trade_date) DO UPDATE SET
			open_price = EXCLUDED.open_price,
			high_price = EXCLUDED.high_price,
			low_price = EXCLUDED.low_price,
			close_price = EXCLUDED.close_price,
			volume = EXCLUDED.volume,
			amount = EXCLUDED.amount
	`

	for start := 0; start < len(rows); start += insertBatchSize {
		end := start + insertBatchSize
		if end > len(rows) {
			end = len(rows)
		}

		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}

		for _, p := range rows[start:end] {
			if _, err := tx.Exec(ctx, query, p.Ticker, p.Date,
				nullable(p.Open), nullable(p.High), nullable(p.Low),
				nullable(p.Close), nullable(p.Volume), nullable(p.Amount)); err != nil {
				tx.Rollback(ctx)
				return fmt.Errorf("insert price for %s: %w", p.Ticker, err)
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit transaction: %w", err)
		}
	}
	return nil
}
