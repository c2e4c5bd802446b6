package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/kquant/internal/contracts"
	"github.com/wonny/kquant/internal/pipeline"
	"github.com/wonny/kquant/pkg/config"
	"github.com/wonny/kquant/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(&config.Config{Env: "test", LogLevel: "error"})
}

type fakeDashboard struct {
	records []contracts.ScoredRecord
}

func (f *fakeDashboard) Replace(ctx context.Context, records []contracts.ScoredRecord) error {
	f.records = records
	return nil
}
func (f *fakeDashboard) Load(ctx context.Context) ([]contracts.ScoredRecord, error) {
	return f.records, nil
}
func (f *fakeDashboard) LoadOne(ctx context.Context, ticker string) (*contracts.ScoredRecord, error) {
	for i := range f.records {
		if f.records[i].Ticker == ticker {
			return &f.records[i], nil
		}
	}
	return nil, nil
}

type fakePrices struct{}

func (f *fakePrices) LoadHistory(ctx context.Context, days int) ([]contracts.PriceRow, error) {
	return nil, nil
}
func (f *fakePrices) LoadTickerHistory(ctx context.Context, ticker string, days int) ([]contracts.PriceRow, error) {
	return []contracts.PriceRow{{Ticker: ticker, Date: "2025-08-28", Close: 70000}}, nil
}
func (f *fakePrices) SaveHistory(ctx context.Context, rows []contracts.PriceRow) error { return nil }

type fakeReports struct {
	report *contracts.Report
}

func (f *fakeReports) Save(ctx context.Context, report *contracts.Report) error {
	f.report = report
	return nil
}
func (f *fakeReports) Load(ctx context.Context, ticker string) (*contracts.Report, error) {
	if f.report != nil && f.report.Ticker == ticker {
		return f.report, nil
	}
	return nil, nil
}

type blockingRunner struct {
	release chan struct{}
	ran     chan struct{}
}

func (r *blockingRunner) Run(ctx context.Context) (*pipeline.Summary, error) {
	<-r.release
	close(r.ran)
	return &pipeline.Summary{Universe: 1}, nil
}

func record(ticker, name, market string, composite float64) contracts.ScoredRecord {
	var rec contracts.ScoredRecord
	rec.Ticker = ticker
	rec.Name = name
	rec.Market = market
	rec.Composite = contracts.Float(composite)
	rec.PER = 10
	return rec
}

func newTestServer(dash *fakeDashboard, reports *fakeReports, runner PipelineRunner) *httptest.Server {
	h := NewHandler(testLogger(), dash, &fakePrices{}, reports, nil, runner)
	return httptest.NewServer(NewRouter(h, testLogger()))
}

func getJSON(t *testing.T, url string, dest interface{}) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if dest != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(dest))
	}
	return resp.StatusCode
}

func TestListStocks(t *testing.T) {
	dash := &fakeDashboard{records: []contracts.ScoredRecord{
		record("005930", "삼성전자", "KOSPI", 80),
		record("000660", "SK하이닉스", "KOSPI", 90),
		record("035720", "카카오", "KOSDAQ", 40),
	}}
	srv := newTestServer(dash, &fakeReports{}, nil)
	defer srv.Close()

	var resp StockListResponse
	code := getJSON(t, srv.URL+"/api/stocks", &resp)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 3, resp.Total)
	// 기본 정렬은 종합점수 내림차순
	assert.Equal(t, "000660", resp.Stocks[0].Ticker)

	code = getJSON(t, srv.URL+"/api/stocks?market=KOSDAQ", &resp)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, 1, resp.Total)
	assert.Equal(t, "카카오", resp.Stocks[0].Name)

	code = getJSON(t, srv.URL+"/api/stocks?search=삼성", &resp)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, 1, resp.Total)
	assert.Equal(t, "005930", resp.Stocks[0].Ticker)
}

func TestListStocksPagination(t *testing.T) {
	dash := &fakeDashboard{records: []contracts.ScoredRecord{
		record("000001", "가", "KOSPI", 30),
		record("000002", "나", "KOSPI", 20),
		record("000003", "다", "KOSPI", 10),
	}}
	srv := newTestServer(dash, &fakeReports{}, nil)
	defer srv.Close()

	var resp StockListResponse
	code := getJSON(t, srv.URL+"/api/stocks?page=2&page_size=2", &resp)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 3, resp.Total)
	require.Len(t, resp.Stocks, 1)
	assert.Equal(t, "000003", resp.Stocks[0].Ticker)

	// 범위 밖 페이지는 빈 목록
	code = getJSON(t, srv.URL+"/api/stocks?page=9&page_size=2", &resp)
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, resp.Stocks)
}

func TestSortRecordsNaNLast(t *testing.T) {
	records := []contracts.ScoredRecord{
		record("000001", "가", "KOSPI", 10),
		record("000002", "나", "KOSPI", 50),
	}
	records[0].PER = contracts.NaN()
	records[1].PER = 5

	sortRecords(records, "per")
	assert.Equal(t, "000002", records[0].Ticker)

	sortRecords(records, "composite")
	assert.Equal(t, "000002", records[0].Ticker)
}

func TestGetStock(t *testing.T) {
	dash := &fakeDashboard{records: []contracts.ScoredRecord{
		record("005930", "삼성전자", "KOSPI", 80),
	}}
	srv := newTestServer(dash, &fakeReports{}, nil)
	defer srv.Close()

	var resp StockDetailResponse
	code := getJSON(t, srv.URL+"/api/stocks/005930", &resp)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "삼성전자", resp.Stock.Name)
	require.Len(t, resp.Prices, 1)
	assert.Equal(t, "005930", resp.Prices[0].Ticker)

	code = getJSON(t, srv.URL+"/api/stocks/999999", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestGetScreen(t *testing.T) {
	dash := &fakeDashboard{records: []contracts.ScoredRecord{
		record("005930", "삼성전자", "KOSPI", 80),
	}}
	srv := newTestServer(dash, &fakeReports{}, nil)
	defer srv.Close()

	var result contracts.ScreenResult
	code := getJSON(t, srv.URL+"/api/screens/quality_value", &result)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "quality_value", result.Screen)

	code = getJSON(t, srv.URL+"/api/screens/nope", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestGetReport(t *testing.T) {
	reports := &fakeReports{report: &contracts.Report{Ticker: "005930", Grade: "A"}}
	srv := newTestServer(&fakeDashboard{}, reports, nil)
	defer srv.Close()

	var report contracts.Report
	code := getJSON(t, srv.URL+"/api/reports/005930", &report)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "A", report.Grade)

	code = getJSON(t, srv.URL+"/api/reports/000660", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestTriggerPipeline(t *testing.T) {
	runner := &blockingRunner{release: make(chan struct{}), ran: make(chan struct{})}
	srv := newTestServer(&fakeDashboard{}, &fakeReports{}, runner)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/pipeline/trigger", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	// 실행 중에는 중복 트리거 거부
	resp, err = http.Post(srv.URL+"/api/pipeline/trigger", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	close(runner.release)
	select {
	case <-runner.ran:
	case <-time.After(2 * time.Second):
		t.Fatal("pipeline run did not finish")
	}

	// 완료 후 상태에 마지막 실행 결과가 남는다
	require.Eventually(t, func() bool {
		resp, err := http.Get(srv.URL + "/api/status")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		var status map[string]interface{}
		if json.NewDecoder(resp.Body).Decode(&status) != nil {
			return false
		}
		running, _ := status["running"].(bool)
		return !running && status["last_run"] != nil
	}, 2*time.Second, 10*time.Millisecond)
}

func TestTriggerPipelineUnconfigured(t *testing.T) {
	srv := newTestServer(&fakeDashboard{}, &fakeReports{}, nil)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/pipeline/trigger", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
