package collector

import (
	"math"
	"strconv"
	"strings"
)

// parseNumber coerces a scraped cell to a number. Returns nil for
// blanks, dashes, and anything unparseable.
func parseNumber(s string) *float64 {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSuffix(s, "%")

	if s == "" || s == "-" || s == "N/A" || s == "적전" || s == "흑전" {
		return nil
	}

	// 회계 표기 음수: (1234)
	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	if negative {
		v = -v
	}
	return &v
}

// numOr unwraps a parsed number, NaN when absent.
func numOr(p *float64) float64 {
	if p == nil {
		return math.NaN()
	}
	return *p
}
