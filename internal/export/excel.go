// Package export writes screen results to styled Excel workbooks.
package export

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"github.com/wonny/kquant/internal/contracts"
	"github.com/wonny/kquant/pkg/config"
	"github.com/wonny/kquant/pkg/logger"
)

// 시트명으로 쓰는 스크린 한글 이름
var screenTitles = map[string]string{
	"quality_value":   "우량주",
	"momentum":        "모멘텀",
	"garp":            "GARP",
	"cashcow":         "캐시카우",
	"turnaround":      "턴어라운드",
	"dividend_growth": "배당성장",
}

// 컬럼 그룹별 헤더 배경색
var groupFills = map[string]string{
	"기본정보":  "D6E4F0",
	"주요지표":  "E2EFDA",
	"점수":    "C6EFCE",
	"성장추세":  "FFF2CC",
	"밸류에이션": "DAEEF3",
	"기술":    "FCE4D6",
	"배당":    "F2DCDB",
}

type column struct {
	group  string
	header string
	numFmt string
	value  func(e *contracts.ScreenEntry) contracts.Float
	text   func(e *contracts.ScreenEntry) string
}

const (
	fmtWhole   = "#,##0"
	fmtDecimal = "#,##0.00"
	fmtScore   = "#,##0.0"
)

func floatCol(group, header, numFmt string, fn func(e *contracts.ScreenEntry) contracts.Float) column {
	return column{group: group, header: header, numFmt: numFmt, value: fn}
}

func intCol(group, header string, fn func(e *contracts.ScreenEntry) int) column {
	return column{group: group, header: header, numFmt: fmtWhole,
		value: func(e *contracts.ScreenEntry) contracts.Float { return contracts.Float(fn(e)) }}
}

func textCol(group, header string, fn func(e *contracts.ScreenEntry) string) column {
	return column{group: group, header: header, text: fn}
}

// 원본 대시보드와 같은 그룹 순서로 컬럼을 나열한다.
var columns = []column{
	textCol("기본정보", "종목코드", func(e *contracts.ScreenEntry) string { return e.Ticker }),
	textCol("기본정보", "종목명", func(e *contracts.ScreenEntry) string { return e.Name }),
	textCol("기본정보", "시장", func(e *contracts.ScreenEntry) string { return e.Market }),
	floatCol("기본정보", "종가", fmtWhole, func(e *contracts.ScreenEntry) contracts.Float { return e.Close }),
	floatCol("기본정보", "시가총액", fmtWhole, func(e *contracts.ScreenEntry) contracts.Float { return e.MarketCap }),

	floatCol("주요지표", "PER", fmtDecimal, func(e *contracts.ScreenEntry) contracts.Float { return e.PER }),
	floatCol("주요지표", "PBR", fmtDecimal, func(e *contracts.ScreenEntry) contracts.Float { return e.PBR }),
	floatCol("주요지표", "PSR", fmtDecimal, func(e *contracts.ScreenEntry) contracts.Float { return e.PSR }),
	floatCol("주요지표", "PEG", fmtDecimal, func(e *contracts.ScreenEntry) contracts.Float { return e.PEG }),
	floatCol("주요지표", "ROE(%)", fmtDecimal, func(e *contracts.ScreenEntry) contracts.Float { return e.ROE }),
	floatCol("주요지표", "EPS", fmtWhole, func(e *contracts.ScreenEntry) contracts.Float { return e.EPS }),
	floatCol("주요지표", "BPS", fmtWhole, func(e *contracts.ScreenEntry) contracts.Float { return e.BPS }),
	floatCol("주요지표", "부채비율(%)", fmtDecimal, func(e *contracts.ScreenEntry) contracts.Float { return e.DebtRatio }),
	floatCol("주요지표", "이익수익률(%)", fmtDecimal, func(e *contracts.ScreenEntry) contracts.Float { return e.EarningsYield }),
	floatCol("주요지표", "FCF수익률(%)", fmtDecimal, func(e *contracts.ScreenEntry) contracts.Float { return e.FCFYield }),
	intCol("주요지표", "이익품질_양호", func(e *contracts.ScreenEntry) int { return e.EarningsQuality }),

	floatCol("점수", "스타일점수", fmtScore, func(e *contracts.ScreenEntry) contracts.Float { return e.StyleScore }),
	floatCol("점수", "종합점수", fmtScore, func(e *contracts.ScreenEntry) contracts.Float { return e.Composite }),
	intCol("점수", "품질점수", func(e *contracts.ScreenEntry) int { return e.QualityScore }),

	floatCol("성장추세", "매출_CAGR", fmtDecimal, func(e *contracts.ScreenEntry) contracts.Float { return e.RevenueCAGR }),
	floatCol("성장추세", "영업이익_CAGR", fmtDecimal, func(e *contracts.ScreenEntry) contracts.Float { return e.OpIncomeCAGR }),
	floatCol("성장추세", "순이익_CAGR", fmtDecimal, func(e *contracts.ScreenEntry) contracts.Float { return e.NetIncomeCAGR }),
	intCol("성장추세", "매출_연속성장", func(e *contracts.ScreenEntry) int { return e.RevenueStreak }),
	intCol("성장추세", "영업이익_연속성장", func(e *contracts.ScreenEntry) int { return e.OpIncomeStreak }),
	intCol("성장추세", "순이익_연속성장", func(e *contracts.ScreenEntry) int { return e.NetIncomeStreak }),
	floatCol("성장추세", "영업이익률(%)", fmtDecimal, func(e *contracts.ScreenEntry) contracts.Float { return e.OpMargin }),
	intCol("성장추세", "이익률_개선", func(e *contracts.ScreenEntry) int { return e.MarginImproved }),
	intCol("성장추세", "흑자전환", func(e *contracts.ScreenEntry) int { return e.Turnaround }),
	floatCol("성장추세", "Q_매출_YoY(%)", fmtDecimal, func(e *contracts.ScreenEntry) contracts.Float { return e.QRevenueYoY }),
	floatCol("성장추세", "Q_영업이익_YoY(%)", fmtDecimal, func(e *contracts.ScreenEntry) contracts.Float { return e.QOpIncomeYoY }),
	floatCol("성장추세", "Q_순이익_YoY(%)", fmtDecimal, func(e *contracts.ScreenEntry) contracts.Float { return e.QNetIncomeYoY }),
	intCol("성장추세", "Q_매출_연속YoY성장", func(e *contracts.ScreenEntry) int { return e.QRevenueYoYStreak }),
	intCol("성장추세", "Q_영업이익_연속YoY성장", func(e *contracts.ScreenEntry) int { return e.QOpIncomeYoYStreak }),
	intCol("성장추세", "Q_순이익_연속YoY성장", func(e *contracts.ScreenEntry) int { return e.QNetIncomeYoYStreak }),
	floatCol("성장추세", "TTM_매출_YoY(%)", fmtDecimal, func(e *contracts.ScreenEntry) contracts.Float { return e.TTMRevenueYoY }),
	floatCol("성장추세", "TTM_영업이익_YoY(%)", fmtDecimal, func(e *contracts.ScreenEntry) contracts.Float { return e.TTMOpIncomeYoY }),
	floatCol("성장추세", "TTM_순이익_YoY(%)", fmtDecimal, func(e *contracts.ScreenEntry) contracts.Float { return e.TTMNetIncomeYoY }),

	floatCol("밸류에이션", "적정주가_SRIM", fmtWhole, func(e *contracts.ScreenEntry) contracts.Float { return e.FairValue }),
	floatCol("밸류에이션", "괴리율(%)", fmtDecimal, func(e *contracts.ScreenEntry) contracts.Float { return e.ValuationGap }),

	floatCol("배당", "배당수익률(%)", fmtDecimal, func(e *contracts.ScreenEntry) contracts.Float { return e.DividendYield }),
	floatCol("배당", "DPS", fmtWhole, func(e *contracts.ScreenEntry) contracts.Float { return e.DPS }),
	floatCol("배당", "DPS_CAGR", fmtDecimal, func(e *contracts.ScreenEntry) contracts.Float { return e.DPSCAGR }),
	intCol("배당", "배당_연속증가", func(e *contracts.ScreenEntry) int { return e.DPSStreak }),

	floatCol("기술", "52주_최고대비(%)", fmtDecimal, func(e *contracts.ScreenEntry) contracts.Float { return e.High52wDist }),
	floatCol("기술", "RSI_14", fmtDecimal, func(e *contracts.ScreenEntry) contracts.Float { return e.RSI14 }),
	floatCol("기술", "거래대금_20일평균", fmtWhole, func(e *contracts.ScreenEntry) contracts.Float { return e.AvgTraded20 }),
	floatCol("기술", "변동성_60일(%)", fmtDecimal, func(e *contracts.ScreenEntry) contracts.Float { return e.Volatility60 }),
}

// Writer renders screen results as one workbook per screen under the
// configured export directory.
type Writer struct {
	cfg *config.Config
	log *logger.Logger
}

func NewWriter(cfg *config.Config, log *logger.Logger) *Writer {
	return &Writer{cfg: cfg, log: log}
}

// ExportScreens writes every screen result to disk.
func (w *Writer) ExportScreens(results []contracts.ScreenResult) error {
	if err := os.MkdirAll(w.cfg.ExportDir, 0o755); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}

	for _, res := range results {
		path := filepath.Join(w.cfg.ExportDir, fmt.Sprintf("quant_%s.xlsx", res.Screen))
		if err := writeWorkbook(path, res); err != nil {
			return fmt.Errorf("export %s: %w", res.Screen, err)
		}
		w.log.WithFields(map[string]interface{}{
			"screen": res.Screen,
			"rows":   len(res.Entries),
			"path":   path,
		}).Info("엑셀 저장 완료")
	}
	return nil
}

func writeWorkbook(path string, res contracts.ScreenResult) error {
	wb := excelize.NewFile()
	defer wb.Close()

	sheet := screenTitles[res.Screen]
	if sheet == "" {
		sheet = res.Screen
	}
	wb.SetSheetName("Sheet1", sheet)

	if err := writeHeader(wb, sheet); err != nil {
		return err
	}
	if err := writeRows(wb, sheet, res.Entries); err != nil {
		return err
	}

	for i, col := range columns {
		width := 12.0
		switch {
		case col.header == "종목명":
			width = 18
		case col.group == "점수":
			width = 14
		}
		name, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := wb.SetColWidth(sheet, name, name, width); err != nil {
			return err
		}
	}

	last, err := excelize.CoordinatesToCellName(len(columns), len(res.Entries)+1)
	if err != nil {
		return err
	}
	if err := wb.AutoFilter(sheet, "A1:"+last, nil); err != nil {
		return err
	}
	// 종목코드·종목명 열과 헤더 행 고정
	if err := wb.SetPanes(sheet, &excelize.Panes{
		Freeze: true, XSplit: 2, YSplit: 1,
		TopLeftCell: "C2", ActivePane: "bottomRight",
	}); err != nil {
		return err
	}

	return wb.SaveAs(path)
}

func writeHeader(wb *excelize.File, sheet string) error {
	styleByGroup := map[string]int{}
	for group, color := range groupFills {
		id, err := wb.NewStyle(&excelize.Style{
			Font: &excelize.Font{Bold: true, Size: 10, Family: "맑은 고딕"},
			Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{color}},
			Alignment: &excelize.Alignment{
				Horizontal: "center", Vertical: "center", WrapText: true,
			},
		})
		if err != nil {
			return err
		}
		styleByGroup[group] = id
	}

	for i, col := range columns {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := wb.SetCellValue(sheet, cell, col.header); err != nil {
			return err
		}
		if err := wb.SetCellStyle(sheet, cell, cell, styleByGroup[col.group]); err != nil {
			return err
		}
	}
	return nil
}

func writeRows(wb *excelize.File, sheet string, entries []contracts.ScreenEntry) error {
	styleByFmt := map[string]int{}
	for _, numFmt := range []string{fmtWhole, fmtDecimal, fmtScore} {
		custom := numFmt
		id, err := wb.NewStyle(&excelize.Style{
			Font:         &excelize.Font{Size: 9, Family: "맑은 고딕"},
			CustomNumFmt: &custom,
		})
		if err != nil {
			return err
		}
		styleByFmt[numFmt] = id
	}
	textStyle, err := wb.NewStyle(&excelize.Style{
		Font: &excelize.Font{Size: 9, Family: "맑은 고딕"},
	})
	if err != nil {
		return err
	}

	for rowIdx := range entries {
		entry := &entries[rowIdx]
		for colIdx, col := range columns {
			cell, err := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			if err != nil {
				return err
			}

			style := textStyle
			if col.text != nil {
				if err := wb.SetCellValue(sheet, cell, col.text(entry)); err != nil {
					return err
				}
			} else {
				style = styleByFmt[col.numFmt]
				v := col.value(entry)
				if !v.IsNaN() {
					rounded := math.Round(float64(v)*100) / 100
					if err := wb.SetCellValue(sheet, cell, rounded); err != nil {
						return err
					}
				}
			}
			if err := wb.SetCellStyle(sheet, cell, cell, style); err != nil {
				return err
			}
		}
	}
	return nil
}
