package collector

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/encoding/korean"

	"github.com/wonny/kquant/internal/contracts"
	"github.com/wonny/kquant/pkg/httputil"
	"github.com/wonny/kquant/pkg/logger"
)

// FnGuideClient scrapes per-ticker financial pages.
// ⭐ SSOT: FnGuide 호출은 이 클라이언트에서만
type FnGuideClient struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	baseURL    string
}

// NewFnGuideClient creates a new FnGuide client.
func NewFnGuideClient(httpClient *httputil.Client, log *logger.Logger) *FnGuideClient {
	return &FnGuideClient{
		httpClient: httpClient,
		logger:     log,
		baseURL:    "https://comp.fnguide.com/SVO2/ASP",
	}
}

// htmlTable is one scraped table: a header row plus body rows.
type htmlTable struct {
	headers []string
	rows    [][]string
}

var periodPattern = regexp.MustCompile(`(\d{4})[./](\d{2})`)

// parsePeriod extracts the fiscal month-end date from a column header
// like "2024/12" or "2024.03(E)".
func parsePeriod(col string) (string, bool, bool) {
	estimate := strings.Contains(col, "(E)")
	m := periodPattern.FindStringSubmatch(col)
	if m == nil {
		return "", estimate, false
	}

	t, err := time.Parse("2006-01", m[1]+"-"+m[2])
	if err != nil {
		return "", estimate, false
	}
	// 해당 월 말일
	end := t.AddDate(0, 1, -1)
	return end.Format("2006-01-02"), estimate, true
}

// decodeKorean tolerates both cp949 and utf-8 pages.
func decodeKorean(body []byte) (string, error) {
	if utf8.Valid(body) {
		return string(body), nil
	}
	decoded, err := korean.EUCKR.NewDecoder().Bytes(body)
	if err != nil {
		return "", fmt.Errorf("decode cp949: %w", err)
	}
	return string(decoded), nil
}

func (c *FnGuideClient) fetchTables(ctx context.Context, fullURL string) ([]htmlTable, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Referer", "https://comp.fnguide.com/")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fnguide request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	html, err := decodeKorean(body)
	if err != nil {
		return nil, err
	}
	return parseTables(html)
}

// parseTables extracts every table as header + string cells. Multi-row
// headers keep the last header row (날짜가 있는 줄).
func parseTables(html string) ([]htmlTable, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var tables []htmlTable
	doc.Find("table").Each(func(i int, table *goquery.Selection) {
		var t htmlTable

		headerRows := table.Find("thead tr")
		if headerRows.Length() > 0 {
			last := headerRows.Eq(headerRows.Length() - 1)
			last.Find("th, td").Each(func(j int, cell *goquery.Selection) {
				t.headers = append(t.headers, strings.TrimSpace(cell.Text()))
			})
		}

		table.Find("tbody tr").Each(func(j int, row *goquery.Selection) {
			var cells []string
			row.Find("th, td").Each(func(k int, cell *goquery.Selection) {
				cells = append(cells, strings.TrimSpace(cell.Text()))
			})
			if len(cells) > 0 {
				t.rows = append(t.rows, cells)
			}
		})

		if len(t.rows) > 0 {
			tables = append(tables, t)
		}
	})
	return tables, nil
}

func cleanAccount(s string) string {
	s = strings.ReplaceAll(s, "계산에 참여한 계정 펼치기", "")
	return strings.Join(strings.Fields(s), "")
}

// meltIndicators converts one ratio table to indicator rows. Estimate
// columns get the _E suffix so the analyzer skips them.
func meltIndicators(t htmlTable, ticker, group string) []contracts.IndicatorRow {
	if len(t.headers) < 2 {
		return nil
	}

	var rows []contracts.IndicatorRow
	for _, cells := range t.rows {
		if len(cells) < 2 {
			continue
		}
		account := cleanAccount(cells[0])
		if account == "" {
			continue
		}

		for i := 1; i < len(cells) && i < len(t.headers); i++ {
			date, estimate, ok := parsePeriod(t.headers[i])
			if !ok {
				continue
			}
			tag := group
			if estimate {
				tag = group + "_E"
			}
			rows = append(rows, contracts.IndicatorRow{
				Ticker:  ticker,
				Date:    date,
				Group:   tag,
				Account: account,
				Value:   parseNumber(cells[i]),
			})
		}
	}
	return rows
}

// FetchIndicators collects the financial-ratio tables (annual +
// quarterly) and the dividend-per-share row from the main page.
func (c *FnGuideClient) FetchIndicators(ctx context.Context, ticker string) ([]contracts.IndicatorRow, error) {
	ratioURL := fmt.Sprintf("%s/SVD_FinanceRatio.asp?pGB=1&gicode=A%s&stkGb=701", c.baseURL, ticker)
	tables, err := c.fetchTables(ctx, ratioURL)
	if err != nil {
		return nil, fmt.Errorf("fetch ratios for %s: %w", ticker, err)
	}

	var rows []contracts.IndicatorRow
	if len(tables) >= 1 {
		rows = append(rows, meltIndicators(tables[0], ticker, contracts.GroupRatioAnnual)...)
	}
	if len(tables) >= 2 {
		rows = append(rows, meltIndicators(tables[1], ticker, contracts.GroupRatioQuarterly)...)
	}

	mainURL := fmt.Sprintf("%s/SVD_Main.asp?pGB=1&gicode=A%s&stkGb=701", c.baseURL, ticker)
	mainTables, err := c.fetchTables(ctx, mainURL)
	if err != nil {
		// 비율은 건졌으니 배당만 포기
		c.logger.WithField("ticker", ticker).WithError(err).Warn("메인 페이지 수집 실패, DPS 생략")
		return rows, nil
	}
	rows = append(rows, extractDPS(mainTables, ticker)...)

	return rows, nil
}

// extractDPS pulls the 주당배당금 row out of the highlight table.
func extractDPS(tables []htmlTable, ticker string) []contracts.IndicatorRow {
	for _, t := range tables {
		if len(t.headers) < 2 {
			continue
		}
		for _, cells := range t.rows {
			if len(cells) < 2 {
				continue
			}
			account := cleanAccount(cells[0])
			if !strings.Contains(account, "배당금") && !strings.Contains(account, "DPS") {
				continue
			}

			var rows []contracts.IndicatorRow
			for i := 1; i < len(cells) && i < len(t.headers); i++ {
				date, _, ok := parsePeriod(t.headers[i])
				if !ok {
					continue
				}
				value := parseNumber(cells[i])
				if value == nil {
					continue
				}
				rows = append(rows, contracts.IndicatorRow{
					Ticker:  ticker,
					Date:    date,
					Group:   contracts.GroupDPS,
					Account: "주당배당금",
					Value:   value,
				})
			}
			return rows
		}
	}
	return nil
}

// statement table kinds
const (
	fsIncome  = "IS"
	fsBalance = "BS"
	fsCash    = "CF"
)

// classifyStatement judges IS/BS/CF from first-column keywords.
func classifyStatement(t htmlTable) string {
	var parts []string
	for _, cells := range t.rows {
		if len(cells) > 0 {
			parts = append(parts, cells[0])
		}
	}
	text := strings.Join(parts, " ")

	switch {
	case (strings.Contains(text, "매출액") || strings.Contains(text, "영업수익")) && !strings.Contains(text, "자산"):
		return fsIncome
	case strings.Contains(text, "자산") && strings.Contains(text, "부채") && strings.Contains(text, "자본"):
		return fsBalance
	case strings.Contains(text, "영업활동") && strings.Contains(text, "투자활동"):
		return fsCash
	default:
		return ""
	}
}

// meltStatements converts one statement table. Unparseable cells are
// dropped; 전년동기 columns are skipped.
func meltStatements(t htmlTable, ticker, freq string) []contracts.StatementRow {
	if len(t.headers) < 2 {
		return nil
	}

	seen := map[string]bool{}
	var rows []contracts.StatementRow
	for _, cells := range t.rows {
		if len(cells) < 2 {
			continue
		}
		account := cleanAccount(cells[0])
		if account == "" || seen[account] {
			continue
		}
		seen[account] = true

		for i := 1; i < len(cells) && i < len(t.headers); i++ {
			if strings.Contains(t.headers[i], "전년동기") {
				continue
			}
			date, estimate, ok := parsePeriod(t.headers[i])
			if !ok {
				continue
			}
			value := parseNumber(cells[i])
			if value == nil {
				continue
			}
			rows = append(rows, contracts.StatementRow{
				Ticker:   ticker,
				Date:     date,
				Freq:     freq,
				Account:  account,
				Value:    value,
				Estimate: estimate,
			})
		}
	}
	return rows
}

// FetchStatements collects the full financial statements. Each of
// IS/BS/CF appears twice on the page: annual first, then quarterly.
func (c *FnGuideClient) FetchStatements(ctx context.Context, ticker string) ([]contracts.StatementRow, error) {
	fullURL := fmt.Sprintf("%s/SVD_Finance.asp?pGB=1&gicode=A%s", c.baseURL, ticker)
	tables, err := c.fetchTables(ctx, fullURL)
	if err != nil {
		return nil, fmt.Errorf("fetch statements for %s: %w", ticker, err)
	}

	slots := map[string][]htmlTable{}
	for _, t := range tables {
		kind := classifyStatement(t)
		if kind == "" || len(slots[kind]) >= 2 {
			continue
		}
		slots[kind] = append(slots[kind], t)
	}

	var rows []contracts.StatementRow
	for _, kind := range []string{fsIncome, fsBalance, fsCash} {
		for i, t := range slots[kind] {
			freq := contracts.FreqAnnual
			if i == 1 {
				freq = contracts.FreqQuarterly
			}
			rows = append(rows, meltStatements(t, ticker, freq)...)
		}
	}
	return rows, nil
}

// FetchShares reads the share-count snapshot off the main page. The
// issued cell reads like "5,919,637,922/ 822,886,700" (보통주/우선주);
// treasury shares come from the 자사주 row when present.
func (c *FnGuideClient) FetchShares(ctx context.Context, ticker string) (*contracts.ShareCountRow, error) {
	fullURL := fmt.Sprintf("%s/SVD_Main.asp?pGB=1&gicode=A%s&stkGb=701", c.baseURL, ticker)
	tables, err := c.fetchTables(ctx, fullURL)
	if err != nil {
		return nil, fmt.Errorf("fetch shares for %s: %w", ticker, err)
	}
	return extractShares(tables, ticker), nil
}

// extractShares builds the share-count row from the main-page tables.
// 발행주식수가 없으면 nil.
func extractShares(tables []htmlTable, ticker string) *contracts.ShareCountRow {
	var issued *float64
	treasury := 0.0
	for _, t := range tables {
		for _, cells := range t.rows {
			if len(cells) < 2 {
				continue
			}
			switch {
			case issued == nil && strings.Contains(cells[0], "발행주식수"):
				issued = parseNumber(strings.SplitN(cells[1], "/", 2)[0])
			case strings.Contains(cells[0], "자사주"):
				if v := parseNumber(cells[1]); v != nil {
					treasury = *v
				}
			}
		}
	}
	if issued == nil {
		return nil
	}

	floatShares := *issued - treasury
	if floatShares < 0 {
		floatShares = 0
	}
	return &contracts.ShareCountRow{
		Ticker:    ticker,
		Date:      time.Now().Format("2006-01-02"),
		Shares:    contracts.Float(*issued),
		Treasury:  contracts.Float(treasury),
		FreeFloat: contracts.Float(floatShares),
	}
}
