package export

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/wonny/kquant/internal/contracts"
	"github.com/wonny/kquant/pkg/config"
	"github.com/wonny/kquant/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(&config.Config{Env: "test", LogLevel: "error"})
}

func sampleEntry(ticker, name string) contracts.ScreenEntry {
	var e contracts.ScreenEntry
	e.Ticker = ticker
	e.Name = name
	e.Market = "KOSPI"
	e.Close = 70000
	e.MarketCap = 4e14
	e.PER = 12.5
	e.PBR = contracts.NaN()
	e.Composite = 81.27
	e.StyleScore = 75.5
	e.QualityScore = 7
	return e
}

func TestExportScreens(t *testing.T) {
	cfg := &config.Config{ExportDir: t.TempDir()}
	w := NewWriter(cfg, testLogger())

	results := []contracts.ScreenResult{
		{
			Screen:      "quality_value",
			GeneratedAt: time.Now(),
			Entries: []contracts.ScreenEntry{
				sampleEntry("005930", "삼성전자"),
				sampleEntry("000660", "SK하이닉스"),
			},
		},
		{Screen: "momentum", GeneratedAt: time.Now()},
	}

	require.NoError(t, w.ExportScreens(results))

	path := filepath.Join(cfg.ExportDir, "quant_quality_value.xlsx")
	wb, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer wb.Close()

	assert.Equal(t, []string{"우량주"}, wb.GetSheetList())

	header, err := wb.GetCellValue("우량주", "A1")
	require.NoError(t, err)
	assert.Equal(t, "종목코드", header)

	ticker, err := wb.GetCellValue("우량주", "A2")
	require.NoError(t, err)
	assert.Equal(t, "005930", ticker)

	name, err := wb.GetCellValue("우량주", "B3")
	require.NoError(t, err)
	assert.Equal(t, "SK하이닉스", name)

	// PER은 6번째 컬럼, NaN인 PBR(7번째)은 빈 셀
	per, err := wb.GetCellValue("우량주", "F2", excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	assert.Equal(t, "12.5", per)

	pbr, err := wb.GetCellValue("우량주", "G2")
	require.NoError(t, err)
	assert.Equal(t, "", pbr)

	// 빈 스크린도 헤더만 있는 파일을 만든다
	empty, err := excelize.OpenFile(filepath.Join(cfg.ExportDir, "quant_momentum.xlsx"))
	require.NoError(t, err)
	defer empty.Close()
	assert.Equal(t, []string{"모멘텀"}, empty.GetSheetList())
}

func TestExportScreensUnknownName(t *testing.T) {
	cfg := &config.Config{ExportDir: t.TempDir()}
	w := NewWriter(cfg, testLogger())

	require.NoError(t, w.ExportScreens([]contracts.ScreenResult{{Screen: "custom"}}))

	wb, err := excelize.OpenFile(filepath.Join(cfg.ExportDir, "quant_custom.xlsx"))
	require.NoError(t, err)
	defer wb.Close()
	assert.Equal(t, []string{"custom"}, wb.GetSheetList())
}
