package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fv(v float64) *float64 { return &v }

func TestResolveSeriesExactMatch(t *testing.T) {
	cells := []Cell{
		{Date: "2023-12-31", Account: "매출액", Value: fv(100)},
		{Date: "2024-12-31", Account: "매출액", Value: fv(120)},
		{Date: "2024-12-31", Account: "매출액증가율", Value: fv(20)}, // 파생 컬럼은 무시
	}

	s := ResolveSeries(cells, AccRevenue)
	require.Len(t, s, 2)
	assert.Equal(t, 100.0, s["2023-12-31"])
	assert.Equal(t, 120.0, s["2024-12-31"])
}

func TestResolveSeriesFinancialLabels(t *testing.T) {
	// 은행/보험업은 매출액 대신 영업수익 계열 라벨을 쓴다
	cells := []Cell{
		{Date: "2024-12-31", Account: "이자수익", Value: fv(500)},
	}

	s := ResolveSeries(cells, AccRevenue)
	require.Len(t, s, 1)
	assert.Equal(t, 500.0, s["2024-12-31"])
}

func TestResolveSeriesPrefixFallback(t *testing.T) {
	t.Run("prefix accepted when no exact match", func(t *testing.T) {
		cells := []Cell{
			{Date: "2024-12-31", Account: "영업이익(발표기준)", Value: fv(42)},
		}
		s := ResolveSeries(cells, AccOperatingIncome)
		require.Len(t, s, 1)
		assert.Equal(t, 42.0, s["2024-12-31"])
	})

	t.Run("derived columns rejected", func(t *testing.T) {
		cells := []Cell{
			{Date: "2024-12-31", Account: "영업이익증가율", Value: fv(15)},
			{Date: "2024-12-31", Account: "영업이익률(%)", Value: fv(8)},
			{Date: "2024-12-31", Account: "영업이익(-1Y)", Value: fv(30)},
		}
		assert.Empty(t, ResolveSeries(cells, AccOperatingIncome))
	})

	t.Run("exact match wins over prefix", func(t *testing.T) {
		cells := []Cell{
			{Date: "2024-12-31", Account: "영업이익(발표기준)", Value: fv(40)},
			{Date: "2024-12-31", Account: "영업이익", Value: fv(42)},
		}
		s := ResolveSeries(cells, AccOperatingIncome)
		assert.Equal(t, 42.0, s["2024-12-31"])
	})
}

func TestResolveSeriesDedup(t *testing.T) {
	t.Run("first occurrence wins", func(t *testing.T) {
		cells := []Cell{
			{Date: "2024-12-31", Account: "당기순이익", Value: fv(10)},
			{Date: "2024-12-31", Account: "지배주주순이익", Value: fv(8)},
		}
		s := ResolveSeries(cells, AccNetIncome)
		require.Len(t, s, 1)
		assert.Equal(t, 10.0, s["2024-12-31"])
	})

	t.Run("unparseable first occurrence shadows later duplicates", func(t *testing.T) {
		cells := []Cell{
			{Date: "2024-12-31", Account: "당기순이익", Value: nil},
			{Date: "2024-12-31", Account: "지배주주순이익", Value: fv(8)},
		}
		assert.Empty(t, ResolveSeries(cells, AccNetIncome))
	})
}

func TestResolveSeriesEmpty(t *testing.T) {
	assert.Empty(t, ResolveSeries(nil, AccRevenue))
	assert.Empty(t, ResolveSeries([]Cell{{Date: "2024-12-31", Account: "기타", Value: fv(1)}}, AccRevenue))
	assert.Empty(t, ResolveSeries([]Cell{{Date: "2024-12-31", Account: "매출액", Value: fv(1)}}, "unknown_key"))
}
