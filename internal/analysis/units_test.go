package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectUnitMultiplier(t *testing.T) {
	tests := []struct {
		name    string
		revenue float64
		want    float64
	}{
		{"원 단위", 3.0e14, 1},
		{"백만원 단위", 3.0e8, 1e6},
		{"억원 단위", 3.0e6, 1e8},
		{"비정상적으로 작은 값", 1.0e4, 1e8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cells := []Cell{
				{Date: "2024-12-31", Account: "매출액", Value: fv(tt.revenue)},
			}
			assert.Equal(t, tt.want, DetectUnitMultiplier(cells))
		})
	}
}

func TestDetectUnitMultiplierUsesLatestAnnual(t *testing.T) {
	cells := []Cell{
		{Date: "2023-12-31", Account: "매출액", Value: fv(3.0e14)}, // 과거엔 원 단위
		{Date: "2024-12-31", Account: "매출액", Value: fv(3.0e6)},  // 최신 연간은 억원
		{Date: "2024-09-30", Account: "매출액", Value: fv(9.0e14)}, // 분기말은 무시
	}
	assert.Equal(t, 1e8, DetectUnitMultiplier(cells))
}

func TestDetectUnitMultiplierMissingReference(t *testing.T) {
	assert.Equal(t, DefaultMultiplier, DetectUnitMultiplier(nil))
	assert.Equal(t, DefaultMultiplier, DetectUnitMultiplier([]Cell{
		{Date: "2024-12-31", Account: "영업이익", Value: fv(1)},
	}))
}
