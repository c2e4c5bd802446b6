package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/transform"

	"github.com/wonny/kquant/internal/contracts"
	"github.com/wonny/kquant/pkg/httputil"
	"github.com/wonny/kquant/pkg/logger"
)

// KRX market identifiers.
const (
	krxMarketKOSPI  = "STK"
	krxMarketKOSDAQ = "KSQ"
)

// KRXClient downloads the listing master and the daily trading snapshot.
// ⭐ SSOT: KRX 호출은 이 클라이언트에서만
type KRXClient struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	dataURL    string
	kindURL    string
}

// NewKRXClient creates a new KRX client.
func NewKRXClient(httpClient *httputil.Client, log *logger.Logger) *KRXClient {
	return &KRXClient{
		httpClient: httpClient,
		logger:     log,
		dataURL:    "http://data.krx.co.kr/comm/bldAttendant/getJsonData.cmd",
		kindURL:    "https://kind.krx.co.kr/corpgeneral/corpList.do",
	}
}

// MarketRow is one stock of the daily all-market snapshot.
type MarketRow struct {
	Ticker    string
	Name      string
	Market    string // KOSPI, KOSDAQ
	Close     float64
	Volume    float64
	MarketCap float64
	Shares    float64
}

// FetchMarketSnapshot downloads the full daily snapshot for one market.
func (c *KRXClient) FetchMarketSnapshot(ctx context.Context, marketID string, date time.Time) ([]MarketRow, error) {
	form := url.Values{
		"bld":    {"dbms/MDC/STAT/standard/MDCSTAT01501"},
		"mktId":  {marketID},
		"trdDd":  {date.Format("20060102")},
		"share":  {"1"},
		"money":  {"1"},
		"csvxls": {"false"},
	}

	resp, err := c.httpClient.PostForm(ctx, c.dataURL, form)
	if err != nil {
		return nil, fmt.Errorf("KRX request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	rows, err := parseMarketSnapshot(body, marketLabel(marketID))
	if err != nil {
		return nil, err
	}

	c.logger.WithFields(map[string]interface{}{
		"market": marketID,
		"count":  len(rows),
	}).Debug("KRX 시장 스냅샷 수신")
	return rows, nil
}

func marketLabel(marketID string) string {
	if marketID == krxMarketKOSDAQ {
		return "KOSDAQ"
	}
	return "KOSPI"
}

// parseMarketSnapshot decodes the MDC JSON payload.
func parseMarketSnapshot(body []byte, market string) ([]MarketRow, error) {
	var payload struct {
		Items []struct {
			Ticker    string `json:"ISU_SRT_CD"`
			Name      string `json:"ISU_ABBRV"`
			Close     string `json:"TDD_CLSPRC"`
			Volume    string `json:"ACC_TRDVOL"`
			MarketCap string `json:"MKTCAP"`
			Shares    string `json:"LIST_SHRS"`
		} `json:"OutBlock_1"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("parse KRX snapshot: %w", err)
	}

	var rows []MarketRow
	for _, item := range payload.Items {
		code, ok := contracts.NormalizeCode(item.Ticker)
		if !ok {
			continue
		}
		rows = append(rows, MarketRow{
			Ticker:    code,
			Name:      strings.TrimSpace(item.Name),
			Market:    market,
			Close:     numOr(parseNumber(item.Close)),
			Volume:    numOr(parseNumber(item.Volume)),
			MarketCap: numOr(parseNumber(item.MarketCap)),
			Shares:    numOr(parseNumber(item.Shares)),
		})
	}
	return rows, nil
}

// FetchSectors downloads the KIND corporation list (EUC-KR encoded HTML
// table) and returns ticker → sector.
func (c *KRXClient) FetchSectors(ctx context.Context) (map[string]string, error) {
	fullURL := c.kindURL + "?method=download&searchType=13"

	resp, err := c.httpClient.Get(ctx, fullURL)
	if err != nil {
		return nil, fmt.Errorf("KIND request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	// KIND는 EUC-KR로 내려준다
	decoded := transform.NewReader(resp.Body, korean.EUCKR.NewDecoder())
	sectors, err := parseSectorTable(decoded)
	if err != nil {
		return nil, err
	}

	c.logger.WithField("count", len(sectors)).Debug("KIND 업종 정보 수신")
	return sectors, nil
}

// parseSectorTable extracts (code, sector) pairs from the download table.
func parseSectorTable(r io.Reader) (map[string]string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse KIND table: %w", err)
	}

	sectors := map[string]string{}
	doc.Find("table tr").Each(func(i int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 3 {
			return
		}
		code, ok := contracts.NormalizeCode(strings.TrimSpace(cells.Eq(1).Text()))
		if !ok {
			return
		}
		sector := strings.TrimSpace(cells.Eq(2).Text())
		if sector != "" {
			sectors[code] = sector
		}
	})
	return sectors, nil
}
