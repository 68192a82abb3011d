package s2_signals

import (
	"math"
	"sort"

	"github.com/wonny/factorscore/internal/contracts"
	"github.com/wonny/factorscore/internal/strategyconfig"
)

// NormalizeOptions controls one cross-sectional normalization pass
type NormalizeOptions struct {
	Method         string  // percentile | zscore
	WinsorizeLow   float64 // 0.01 = 1st percentile
	WinsorizeHigh  float64 // 0.99 = 99th percentile
	ZScoreClip     float64
	SectorRelative bool
	SectorMinPeers int // 섹터 표본이 이보다 작으면 전체 분포 사용
}

// OptionsFor builds NormalizeOptions for a sub-metric
func OptionsFor(n strategyconfig.Normalization, m strategyconfig.MetricSpec) NormalizeOptions {
	return NormalizeOptions{
		Method:         m.EffectiveMethod(),
		WinsorizeLow:   n.WinsorizeLowPct,
		WinsorizeHigh:  n.WinsorizeHighPct,
		ZScoreClip:     n.ZScoreClip,
		SectorRelative: m.SectorRelative,
		SectorMinPeers: n.SectorMinPeers,
	}
}

type point struct {
	id    string
	value float64
}

// Normalize maps a full cross-section of raw values to scores in [0,100].
// ⭐ SSOT: 횡단면 정규화는 여기서만 (엔티티 단위 증분 호출 금지)
//
// Entities with a nil or non-finite value are excluded from the distribution
// and map to nil. With sectors supplied and SectorRelative set, ranking runs
// within sector; entities whose sector has fewer than SectorMinPeers present
// values keep their rank in the global distribution.
func Normalize(values []contracts.MetricValue, dir contracts.Direction, sectors map[string]string, opts NormalizeOptions) map[string]*float64 {
	out := make(map[string]*float64, len(values))

	present := make([]point, 0, len(values))
	for _, mv := range values {
		out[mv.EntityID] = nil
		if mv.Value == nil || math.IsNaN(*mv.Value) || math.IsInf(*mv.Value, 0) {
			continue
		}
		present = append(present, point{id: mv.EntityID, value: *mv.Value})
	}
	if len(present) == 0 {
		return out
	}

	sort.Slice(present, func(i, j int) bool { return present[i].id < present[j].id })

	for id, score := range scoreGroup(present, dir, opts) {
		out[id] = contracts.Float(score)
	}

	if !opts.SectorRelative || sectors == nil {
		return out
	}

	groups := make(map[string][]point)
	for _, p := range present {
		sector := sectors[p.id]
		if sector == "" {
			continue
		}
		groups[sector] = append(groups[sector], p)
	}

	for _, group := range groups {
		if len(group) < opts.SectorMinPeers {
			continue
		}
		for id, score := range scoreGroup(group, dir, opts) {
			out[id] = contracts.Float(score)
		}
	}

	return out
}

// scoreGroup winsorizes one distribution and scores it
func scoreGroup(points []point, dir contracts.Direction, opts NormalizeOptions) map[string]float64 {
	raw := make([]float64, len(points))
	for i, p := range points {
		raw[i] = p.value
	}
	clipped := Winsorize(raw, opts.WinsorizeLow, opts.WinsorizeHigh)

	var scores []float64
	if opts.Method == strategyconfig.MethodZScore {
		scores = zscoreScores(clipped, dir, opts.ZScoreClip)
	} else {
		scores = percentileScores(clipped, dir)
	}

	out := make(map[string]float64, len(points))
	for i, p := range points {
		out[p.id] = scores[i]
	}
	return out
}

// Winsorize caps values at the low/high quantiles of the sample.
// The input slice is not modified.
func Winsorize(values []float64, lowPct, highPct float64) []float64 {
	out := make([]float64, len(values))
	copy(out, values)
	if len(values) < 2 {
		return out
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	lo := Quantile(sorted, lowPct)
	hi := Quantile(sorted, highPct)

	for i, v := range out {
		if v < lo {
			out[i] = lo
		} else if v > hi {
			out[i] = hi
		}
	}
	return out
}

// Quantile returns the p-quantile of an ascending sample (linear interpolation)
func Quantile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[n-1]
	}

	pos := p * float64(n-1)
	lower := int(math.Floor(pos))
	upper := int(math.Ceil(pos))
	if lower == upper {
		return sorted[lower]
	}
	frac := pos - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}

// AverageRanks returns 1-based ascending ranks, ties sharing their average rank
func AverageRanks(values []float64) []float64 {
	n := len(values)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return values[idx[a]] < values[idx[b]] })

	ranks := make([]float64, n)
	for i := 0; i < n; {
		j := i
		for j+1 < n && values[idx[j+1]] == values[idx[i]] {
			j++
		}
		// positions i..j (0-based) share rank average of (i+1)..(j+1)
		avg := float64(i+j+2) / 2
		for k := i; k <= j; k++ {
			ranks[idx[k]] = avg
		}
		i = j + 1
	}
	return ranks
}

// percentileScores: higher_is_better → rank/n·100,
// lower_is_better → 100 − (rank−1)/n·100. The best value scores 100.
func percentileScores(values []float64, dir contracts.Direction) []float64 {
	n := float64(len(values))
	ranks := AverageRanks(values)

	out := make([]float64, len(values))
	for i, r := range ranks {
		if dir == contracts.LowerIsBetter {
			out[i] = 100 - (r-1)/n*100
		} else {
			out[i] = r / n * 100
		}
	}
	return out
}

// ZScores returns population z-scores, all zero when the sample has no spread
func ZScores(values []float64) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}

	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	variance := 0.0
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	std := math.Sqrt(variance / float64(len(values)))
	if std == 0 {
		return out
	}

	for i, v := range values {
		out[i] = (v - mean) / std
	}
	return out
}

// zscoreScores maps clipped z-scores through the normal CDF to [0,100]
func zscoreScores(values []float64, dir contracts.Direction, clip float64) []float64 {
	z := ZScores(values)

	out := make([]float64, len(values))
	for i, v := range z {
		if clip > 0 {
			v = math.Max(-clip, math.Min(clip, v))
		}
		if dir == contracts.LowerIsBetter {
			v = -v
		}
		out[i] = 100 * normalCDF(v)
	}
	return out
}

func normalCDF(z float64) float64 {
	return 0.5 * (1 + math.Erf(z/math.Sqrt2))
}
