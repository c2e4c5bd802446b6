package analysis

// ReferenceTicker anchors the unit heuristic. 삼성전자 매출 규모는
// 항상 수백조 원이라 수집 단위를 역추정할 수 있다.
const ReferenceTicker = "005930"

// DefaultMultiplier is assumed when the reference ticker is missing.
const DefaultMultiplier = 1e8 // 억원

// DetectUnitMultiplier infers the krw multiplier of collected financial
// figures from the reference ticker's latest annual revenue. The cells
// must be the reference ticker's annual-ratio rows.
func DetectUnitMultiplier(cells []Cell) float64 {
	revenue := ResolveSeries(cells, AccRevenue)

	annual := revenue.AnnualOnly()
	if len(annual) == 0 {
		annual = revenue
	}

	_, latest, ok := annual.Latest()
	if !ok {
		return DefaultMultiplier
	}

	switch {
	case latest > 1e14:
		return 1 // 원 단위 그대로
	case latest > 1e8:
		return 1e6 // 백만원
	case latest > 1e5:
		return 1e8 // 억원
	default:
		return DefaultMultiplier
	}
}
