package collector

import (
	"regexp"
	"strings"

	"github.com/wonny/kquant/internal/contracts"
)

// SPAC 판별을 위한 정규식 패턴
var spacPattern = regexp.MustCompile(`(?i)(스팩|SPAC|스펙|\d+호$|제\d+호)`)

// ClassifyListing tags a share class from the ticker and name.
// 보통주 코드는 끝자리 0, 우선주는 그 외 숫자.
func ClassifyListing(ticker, name string) string {
	switch {
	case spacPattern.MatchString(name):
		return contracts.ClassSPAC
	case len(ticker) == 6 && ticker[5] != '0':
		return contracts.ClassPreferred
	case strings.HasSuffix(name, "리츠"):
		return contracts.ClassREIT
	default:
		return contracts.ClassCommon
	}
}
