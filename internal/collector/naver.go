package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/wonny/kquant/internal/contracts"
	"github.com/wonny/kquant/pkg/httputil"
	"github.com/wonny/kquant/pkg/logger"
)

// NaverClient fetches daily OHLCV history from the Naver chart API.
// ⭐ SSOT: 네이버 시세 호출은 이 클라이언트에서만
type NaverClient struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	chartURL   string
}

// NewNaverClient creates a new Naver chart client.
func NewNaverClient(httpClient *httputil.Client, log *logger.Logger) *NaverClient {
	return &NaverClient{
		httpClient: httpClient,
		logger:     log,
		chartURL:   "https://fchart.stock.naver.com/siseJson.naver",
	}
}

// FetchPriceHistory fetches daily candles for one ticker.
func (c *NaverClient) FetchPriceHistory(ctx context.Context, ticker string, from, to time.Time) ([]contracts.PriceRow, error) {
	fullURL := fmt.Sprintf(
		"%s?symbol=%s&requestType=1&startTime=%s&endTime=%s&timeframe=day",
		c.chartURL, ticker, from.Format("20060102"), to.Format("20060102"),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Referer", "https://finance.naver.com/")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("naver request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	rows, err := parsePriceHistory(string(body), ticker)
	if err != nil {
		return nil, fmt.Errorf("parse prices for %s: %w", ticker, err)
	}

	c.logger.WithFields(map[string]interface{}{
		"ticker": ticker,
		"count":  len(rows),
	}).Debug("네이버 시세 수신")
	return rows, nil
}

// parsePriceHistory decodes the quasi-JSON chart payload:
// [["날짜","시가",...], ["20240102", 1000, ...], ...]
func parsePriceHistory(body, ticker string) ([]contracts.PriceRow, error) {
	body = strings.TrimSpace(body)
	body = strings.ReplaceAll(body, "'", `"`)

	var raw [][]interface{}
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return nil, fmt.Errorf("decode chart payload: %w", err)
	}

	var rows []contracts.PriceRow
	for i, record := range raw {
		if i == 0 || len(record) < 6 {
			continue // 헤더 행
		}

		dateStr, ok := record[0].(string)
		if !ok || len(dateStr) != 8 {
			continue
		}
		date, err := time.Parse("20060102", dateStr)
		if err != nil {
			continue
		}

		open := toFloat(record[1])
		high := toFloat(record[2])
		low := toFloat(record[3])
		closeP := toFloat(record[4])
		volume := toFloat(record[5])

		rows = append(rows, contracts.PriceRow{
			Ticker: ticker,
			Date:   date.Format("2006-01-02"),
			Open:   contracts.Float(open),
			High:   contracts.Float(high),
			Low:    contracts.Float(low),
			Close:  contracts.Float(closeP),
			Volume: contracts.Float(volume),
			Amount: contracts.Float(closeP * volume),
		})
	}
	return rows, nil
}

func toFloat(v interface{}) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case string:
		if p := parseNumber(val); p != nil {
			return *p
		}
	}
	return 0
}
