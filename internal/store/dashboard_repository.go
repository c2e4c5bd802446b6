package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/kquant/internal/contracts"
)

// DashboardRepository implements contracts.DashboardRepository.
// 대시보드는 항상 최신 파이프라인 결과 전체로 교체한다.
type DashboardRepository struct {
	pool *pgxpool.Pool
}

// NewDashboardRepository creates a new dashboard repository.
func NewDashboardRepository(pool *pgxpool.Pool) *DashboardRepository {
	return &DashboardRepository{pool: pool}
}

// Replace swaps the whole dashboard in one transaction.
func (r *DashboardRepository) Replace(ctx context.Context, records []contracts.ScoredRecord) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "DELETE FROM quant.dashboard"); err != nil {
		return fmt.Errorf("clear dashboard: %w", err)
	}

	query := `
		INSERT INTO quant.dashboard (ticker, name, market, composite, record, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
	`
	for i := range records {
		rec := &records[i]
		payload, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal record %s: %w", rec.Ticker, err)
		}
		if _, err := tx.Exec(ctx, query,
			rec.Ticker, rec.Name, rec.Market, nullable(rec.Composite), payload); err != nil {
			return fmt.Errorf("insert dashboard row %s: %w", rec.Ticker, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Load returns the full dashboard ordered by composite score.
func (r *DashboardRepository) Load(ctx context.Context) ([]contracts.ScoredRecord, error) {
	query := `
		SELECT record
		FROM quant.dashboard
		ORDER BY composite DESC NULLS LAST, ticker
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query dashboard: %w", err)
	}
	defer rows.Close()

	var out []contracts.ScoredRecord
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan dashboard row: %w", err)
		}
		var rec contracts.ScoredRecord
		if err := json.Unmarshal(payload, &rec); err != nil {
			return nil, fmt.Errorf("unmarshal dashboard row: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// LoadOne returns one scored record, or nil when the ticker is absent.
func (r *DashboardRepository) LoadOne(ctx context.Context, ticker string) (*contracts.ScoredRecord, error) {
	var payload []byte
	err := r.pool.QueryRow(ctx,
		"SELECT record FROM quant.dashboard WHERE ticker = $1", ticker).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query dashboard row: %w", err)
	}

	var rec contracts.ScoredRecord
	if err := json.Unmarshal(payload, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal dashboard row: %w", err)
	}
	return &rec, nil
}

// ReportRepository implements contracts.ReportRepository.
type ReportRepository struct {
	pool *pgxpool.Pool
}

// NewReportRepository creates a new report repository.
func NewReportRepository(pool *pgxpool.Pool) *ReportRepository {
	return &ReportRepository{pool: pool}
}

// Save upserts a report, keyed by ticker.
func (r *ReportRepository) Save(ctx context.Context, report *contracts.Report) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	query := `
		INSERT INTO quant.analysis_reports (ticker, report, model, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (ticker) DO UPDATE SET
			report = EXCLUDED.report,
			model = EXCLUDED.model,
			created_at = EXCLUDED.created_at
	`
	if _, err := r.pool.Exec(ctx, query, report.Ticker, payload, report.Model, report.CreatedAt); err != nil {
		return fmt.Errorf("insert report for %s: %w", report.Ticker, err)
	}
	return nil
}

// Load returns the stored report, or nil when none exists.
func (r *ReportRepository) Load(ctx context.Context, ticker string) (*contracts.Report, error) {
	var payload []byte
	err := r.pool.QueryRow(ctx,
		"SELECT report FROM quant.analysis_reports WHERE ticker = $1", ticker).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query report: %w", err)
	}

	var report contracts.Report
	if err := json.Unmarshal(payload, &report); err != nil {
		return nil, fmt.Errorf("unmarshal report: %w", err)
	}
	return &report, nil
}
