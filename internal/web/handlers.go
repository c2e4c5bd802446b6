package web

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/gorilla/mux"

	"github.com/wonny/kquant/internal/analysis"
	"github.com/wonny/kquant/internal/contracts"
	"github.com/wonny/kquant/internal/pipeline"
	"github.com/wonny/kquant/pkg/logger"
	"github.com/wonny/kquant/pkg/redis"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
	detailPriceDays = 60
)

// PipelineRunner triggers a full scoring run.
type PipelineRunner interface {
	Run(ctx context.Context) (*pipeline.Summary, error)
}

// Handler serves the dashboard API endpoints.
// ⭐ SSOT: 대시보드 API 핸들러는 이 구조체에서만
type Handler struct {
	log       *logger.Logger
	dashboard contracts.DashboardRepository
	prices    contracts.PriceHistoryRepository
	reports   contracts.ReportRepository
	cache     *redis.Cache
	runner    PipelineRunner

	mu      sync.Mutex
	running bool
	lastRun *pipeline.Summary
	lastErr string
}

// NewHandler creates the API handler. cache and runner may be nil.
func NewHandler(log *logger.Logger, dashboard contracts.DashboardRepository,
	prices contracts.PriceHistoryRepository, reports contracts.ReportRepository,
	cache *redis.Cache, runner PipelineRunner) *Handler {

	return &Handler{
		log:       log,
		dashboard: dashboard,
		prices:    prices,
		reports:   reports,
		cache:     cache,
		runner:    runner,
	}
}

// StockListResponse is a paginated slice of the scored universe.
type StockListResponse struct {
	Total    int                     `json:"total"`
	Page     int                     `json:"page"`
	PageSize int                     `json:"page_size"`
	Stocks   []contracts.ScoredRecord `json:"stocks"`
}

// ListStocks returns the scored universe with filtering, sorting and
// pagination.
// GET /api/stocks?market=KOSPI&search=삼성&sort=per&page=1&page_size=50
func (h *Handler) ListStocks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	market := q.Get("market")
	search := strings.TrimSpace(q.Get("search"))
	sortBy := q.Get("sort")
	if sortBy == "" {
		sortBy = "composite"
	}
	page := intParam(q.Get("page"), 1)
	pageSize := intParam(q.Get("page_size"), defaultPageSize)
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	cacheKey := redis.StockListKey(market, search, sortBy, page)
	if h.cache != nil {
		var cached StockListResponse
		if found, _ := h.cache.Get(ctx, cacheKey, &cached); found {
			respondJSON(w, http.StatusOK, cached)
			return
		}
	}

	records, err := h.dashboard.Load(ctx)
	if err != nil {
		h.log.WithError(err).Error("대시보드 조회 실패")
		respondError(w, http.StatusInternalServerError, "Failed to load dashboard")
		return
	}

	filtered := filterRecords(records, market, search)
	sortRecords(filtered, sortBy)

	resp := StockListResponse{
		Total:    len(filtered),
		Page:     page,
		PageSize: pageSize,
		Stocks:   paginate(filtered, page, pageSize),
	}
	if h.cache != nil {
		_ = h.cache.Set(ctx, cacheKey, resp, redis.TTLShort)
	}
	respondJSON(w, http.StatusOK, resp)
}

// StockDetailResponse joins a scored record with its recent candles.
type StockDetailResponse struct {
	Stock  contracts.ScoredRecord `json:"stock"`
	Prices []contracts.PriceRow   `json:"prices"`
}

// GetStock returns one scored record plus 60 days of candles.
// GET /api/stocks/{code}
func (h *Handler) GetStock(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	code := mux.Vars(r)["code"]

	rec, err := h.dashboard.LoadOne(ctx, code)
	if err != nil {
		h.log.WithError(err).WithField("code", code).Error("종목 조회 실패")
		respondError(w, http.StatusInternalServerError, "Failed to load stock")
		return
	}
	if rec == nil {
		respondError(w, http.StatusNotFound, "stock not found")
		return
	}

	prices, err := h.prices.LoadTickerHistory(ctx, code, detailPriceDays)
	if err != nil {
		h.log.WithError(err).WithField("code", code).Warn("주가 조회 실패, 생략")
		prices = nil
	}

	respondJSON(w, http.StatusOK, StockDetailResponse{Stock: *rec, Prices: prices})
}

// GetScreen evaluates one screen over the stored universe. 저장된
// 마스크가 아니라 스크린 평가기를 직접 호출한다.
// GET /api/screens/{name}
func (h *Handler) GetScreen(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	name := mux.Vars(r)["name"]

	cacheKey := redis.ScreenKey(name)
	if h.cache != nil {
		var cached contracts.ScreenResult
		if found, _ := h.cache.Get(ctx, cacheKey, &cached); found {
			respondJSON(w, http.StatusOK, cached)
			return
		}
	}

	records, err := h.dashboard.Load(ctx)
	if err != nil {
		h.log.WithError(err).Error("대시보드 조회 실패")
		respondError(w, http.StatusInternalServerError, "Failed to load dashboard")
		return
	}

	result, err := analysis.EvaluateScreen(name, records)
	if err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}

	if h.cache != nil {
		_ = h.cache.Set(ctx, cacheKey, result, redis.TTLScreen)
	}
	respondJSON(w, http.StatusOK, result)
}

// GetReport returns the stored qualitative report for one ticker.
// GET /api/reports/{code}
func (h *Handler) GetReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	code := mux.Vars(r)["code"]

	report, err := h.reports.Load(ctx, code)
	if err != nil {
		h.log.WithError(err).WithField("code", code).Error("보고서 조회 실패")
		respondError(w, http.StatusInternalServerError, "Failed to load report")
		return
	}
	if report == nil {
		respondError(w, http.StatusNotFound, "report not found")
		return
	}
	respondJSON(w, http.StatusOK, report)
}

// GetStatus reports universe size and the last pipeline run.
// GET /api/status
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	records, err := h.dashboard.Load(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to load dashboard")
		return
	}

	h.mu.Lock()
	status := map[string]interface{}{
		"stocks":   len(records),
		"screens":  analysis.ScreenNames(),
		"running":  h.running,
		"last_run": h.lastRun,
	}
	if h.lastErr != "" {
		status["last_error"] = h.lastErr
	}
	h.mu.Unlock()

	respondJSON(w, http.StatusOK, status)
}

// TriggerPipeline starts a scoring run in the background. 이미 실행
// 중이면 409.
// POST /api/pipeline/trigger
func (h *Handler) TriggerPipeline(w http.ResponseWriter, r *http.Request) {
	if h.runner == nil {
		respondError(w, http.StatusServiceUnavailable, "pipeline is not configured")
		return
	}

	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		respondError(w, http.StatusConflict, "pipeline is already running")
		return
	}
	h.running = true
	h.mu.Unlock()

	go func() {
		summary, err := h.runner.Run(context.Background())

		h.mu.Lock()
		defer h.mu.Unlock()
		h.running = false
		if err != nil {
			h.lastErr = err.Error()
			h.log.WithError(err).Error("파이프라인 실행 실패")
			return
		}
		h.lastErr = ""
		h.lastRun = summary
	}()

	respondJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

func filterRecords(records []contracts.ScoredRecord, market, search string) []contracts.ScoredRecord {
	out := make([]contracts.ScoredRecord, 0, len(records))
	for _, rec := range records {
		if market != "" && rec.Market != market {
			continue
		}
		if search != "" && !strings.Contains(rec.Name, search) && !strings.Contains(rec.Ticker, search) {
			continue
		}
		out = append(out, rec)
	}
	return out
}

// sortRecords orders the universe by the requested column. 낮을수록
// 좋은 지표는 오름차순, 나머지는 내림차순이며 NaN은 항상 뒤로 간다.
func sortRecords(records []contracts.ScoredRecord, sortBy string) {
	key := func(rec *contracts.ScoredRecord) contracts.Float {
		switch sortBy {
		case "per":
			return rec.PER
		case "pbr":
			return rec.PBR
		case "roe":
			return rec.ROE
		case "market_cap":
			return rec.MarketCap
		case "dividend_yield":
			return rec.DividendYield
		default:
			return rec.Composite
		}
	}
	ascending := sortBy == "per" || sortBy == "pbr"

	sort.SliceStable(records, func(i, j int) bool {
		a, b := key(&records[i]), key(&records[j])
		switch {
		case a.IsNaN():
			return false
		case b.IsNaN():
			return true
		case ascending:
			return a < b
		default:
			return a > b
		}
	})
}

func paginate(records []contracts.ScoredRecord, page, pageSize int) []contracts.ScoredRecord {
	start := (page - 1) * pageSize
	if start >= len(records) {
		return []contracts.ScoredRecord{}
	}
	end := start + pageSize
	if end > len(records) {
		end = len(records)
	}
	return records[start:end]
}

func intParam(s string, def int) int {
	if v, err := strconv.Atoi(s); err == nil && v > 0 {
		return v
	}
	return def
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}
