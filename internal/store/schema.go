package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ⭐ SSOT: 테이블 스키마 정의는 여기서만

// 수집 테이블은 collected_date로 스냅샷 버전을 구분한다.
// 분석은 항상 최신 스냅샷만 읽는다.
var schemaStatements = []string{
	`CREATE SCHEMA IF NOT EXISTS quant`,

	`CREATE TABLE IF NOT EXISTS quant.listings (
		collected_date DATE NOT NULL,
		ticker VARCHAR(6) NOT NULL,
		name TEXT NOT NULL,
		market VARCHAR(10) NOT NULL,
		sector TEXT,
		class VARCHAR(10) NOT NULL DEFAULT 'common',
		PRIMARY KEY (collected_date, ticker)
	)`,

	`CREATE TABLE IF NOT EXISTS quant.daily_snapshot (
		collected_date DATE NOT NULL,
		ticker VARCHAR(6) NOT NULL,
		trade_date DATE NOT NULL,
		close_price DOUBLE PRECISION,
		volume DOUBLE PRECISION,
		market_cap DOUBLE PRECISION,
		shares DOUBLE PRECISION,
		PRIMARY KEY (collected_date, ticker)
	)`,

	`CREATE TABLE IF NOT EXISTS quant.indicators (
		collected_date DATE NOT NULL,
		ticker VARCHAR(6) NOT NULL,
		fiscal_date DATE NOT NULL,
		group_tag VARCHAR(10) NOT NULL,
		account TEXT NOT NULL,
		value DOUBLE PRECISION,
		PRIMARY KEY (collected_date, ticker, fiscal_date, group_tag, account)
	)`,

	`CREATE TABLE IF NOT EXISTS quant.statements (
		collected_date DATE NOT NULL,
		ticker VARCHAR(6) NOT NULL,
		fiscal_date DATE NOT NULL,
		freq VARCHAR(1) NOT NULL,
		account TEXT NOT NULL,
		value DOUBLE PRECISION,
		estimate BOOLEAN NOT NULL DEFAULT FALSE,
		PRIMARY KEY (collected_date, ticker, fiscal_date, freq, account)
	)`,

	`CREATE TABLE IF NOT EXISTS quant.share_counts (
		collected_date DATE NOT NULL,
		ticker VARCHAR(6) NOT NULL,
		snapshot_date DATE NOT NULL,
		shares DOUBLE PRECISION,
		treasury_shares DOUBLE PRECISION,
		float_shares DOUBLE PRECISION,
		PRIMARY KEY (collected_date, ticker, snapshot_date)
	)`,

	`CREATE TABLE IF NOT EXISTS quant.price_history (
		ticker VARCHAR(6) NOT NULL,
		trade_date DATE NOT NULL,
		open_price DOUBLE PRECISION,
		high_price DOUBLE PRECISION,
		low_price DOUBLE PRECISION,
		close_price DOUBLE PRECISION,
		volume DOUBLE PRECISION,
		amount DOUBLE PRECISION,
		PRIMARY KEY (ticker, trade_date)
	)`,

	`CREATE TABLE IF NOT EXISTS quant.dashboard (
		ticker VARCHAR(6) PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		market VARCHAR(10) NOT NULL DEFAULT '',
		composite DOUBLE PRECISION,
		record JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS quant.analysis_reports (
		ticker VARCHAR(6) PRIMARY KEY,
		report JSONB NOT NULL,
		model TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE INDEX IF NOT EXISTS idx_price_history_date
		ON quant.price_history (trade_date)`,
	`CREATE INDEX IF NOT EXISTS idx_indicators_ticker
		ON quant.indicators (collected_date, ticker)`,
	`CREATE INDEX IF NOT EXISTS idx_statements_ticker
		ON quant.statements (collected_date, ticker)`,
}

// InitSchema creates the schema and all tables if they do not exist.
func InitSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schemaStatements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}
