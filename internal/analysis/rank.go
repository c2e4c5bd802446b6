package analysis

import (
	"math"
	"sort"
)

// percentileRanks computes percentile ranks the way pandas does with
// rank(pct=True): ties share their average ordinal rank, and the rank
// is divided by the count of defined values. NaN in, NaN out.
func percentileRanks(vals []float64) []float64 {
	out := make([]float64, len(vals))

	var idx []int
	for i, v := range vals {
		if math.IsNaN(v) {
			out[i] = math.NaN()
		} else {
			idx = append(idx, i)
		}
	}

	n := len(idx)
	if n == 0 {
		return out
	}

	sort.SliceStable(idx, func(a, b int) bool {
		return vals[idx[a]] < vals[idx[b]]
	})

	// 동률은 평균 순위 공유
	for i := 0; i < n; {
		j := i
		for j+1 < n && vals[idx[j+1]] == vals[idx[i]] {
			j++
		}
		avgRank := float64(i+j+2) / 2 // 1-based 순위 (i+1..j+1)의 평균
		for k := i; k <= j; k++ {
			out[idx[k]] = avgRank / float64(n)
		}
		i = j + 1
	}
	return out
}

// clip bounds a value to [lo, hi]. NaN passes through.
func clip(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return v
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// fill replaces NaN with a default.
func fill(v, def float64) float64 {
	if math.IsNaN(v) {
		return def
	}
	return v
}
