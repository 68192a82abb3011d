package s2_signals

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/factorscore/internal/contracts"
	"github.com/wonny/factorscore/internal/strategyconfig"
)

func defaultOptions() NormalizeOptions {
	return NormalizeOptions{
		Method:         strategyconfig.MethodPercentile,
		WinsorizeLow:   0.01,
		WinsorizeHigh:  0.99,
		ZScoreClip:     3.0,
		SectorMinPeers: 5,
	}
}

func column(values map[string]*float64) []contracts.MetricValue {
	out := make([]contracts.MetricValue, 0, len(values))
	for id, v := range values {
		out = append(out, contracts.MetricValue{EntityID: id, Value: v})
	}
	return out
}

func f(v float64) *float64 { return contracts.Float(v) }

func TestNormalizePriceToBookScenario(t *testing.T) {
	// P/B 1000은 상한 초과 → 결측 처리, 나머지 4개로 순위
	lo, hi := 0.0, 100.0
	cfg := &strategyconfig.Config{
		Normalization: strategyconfig.Normalization{WinsorizeLowPct: 0.01, WinsorizeHighPct: 0.99, ZScoreClip: 3, SectorMinPeers: 5},
		Factors: []strategyconfig.FactorSpec{{
			Name: contracts.FactorValue, Weight: 1, MinPresent: 1,
			Groups: []strategyconfig.GroupSpec{{Name: "valuation_multiples", Weight: 1, Metrics: []strategyconfig.MetricSpec{
				{Name: "pb_ratio", Weight: 1, Direction: contracts.LowerIsBetter, Min: &lo, Max: &hi},
			}}},
		}},
	}

	entities := []contracts.Entity{{ID: "A"}, {ID: "B"}, {ID: "C"}, {ID: "D"}, {ID: "E"}}
	snapshot := contracts.NewUniverseSnapshot("snap", time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC), contracts.PeriodDaily, entities,
		map[string]map[string]*float64{
			"pb_ratio": {"A": f(1), "B": f(2), "C": f(3), "D": f(4), "E": f(1000)},
		})

	tables := PrepareTables(snapshot, cfg)

	want := map[string]float64{"A": 100, "B": 75, "C": 50, "D": 25}
	for id, score := range want {
		got := tables.Score(contracts.FactorValue, "pb_ratio", id)
		require.NotNil(t, got, id)
		assert.InDelta(t, score, *got, 1e-9, id)
	}
	assert.Nil(t, tables.Score(contracts.FactorValue, "pb_ratio", "E"))

	issues := tables.Issues("E")
	require.Len(t, issues, 1)
	assert.ErrorIs(t, issues[0], contracts.ErrImplausibleValue)
	require.NotNil(t, issues[0].RawValue)
	assert.Equal(t, 1000.0, *issues[0].RawValue)
	assert.Equal(t, 1, tables.IssueCounts()["implausible_value"])
}

func TestNormalizePreservesRankOrder(t *testing.T) {
	raw := map[string]*float64{
		"A": f(-3.5), "B": f(0.2), "C": f(7.1), "D": f(2.2), "E": f(0.9),
		"F": f(12.0), "G": f(-0.4), "H": f(5.5), "I": f(3.3), "J": f(1.1),
	}

	for _, dir := range []contracts.Direction{contracts.HigherIsBetter, contracts.LowerIsBetter} {
		scores := Normalize(column(raw), dir, nil, defaultOptions())

		best := 0.0
		for a, va := range raw {
			require.NotNil(t, scores[a])
			assert.GreaterOrEqual(t, *scores[a], 0.0)
			assert.LessOrEqual(t, *scores[a], 100.0)
			if *scores[a] > best {
				best = *scores[a]
			}
			for b, vb := range raw {
				if *va > *vb {
					if dir == contracts.HigherIsBetter {
						assert.Greater(t, *scores[a], *scores[b], "%s > %s", a, b)
					} else {
						assert.Less(t, *scores[a], *scores[b], "%s > %s", a, b)
					}
				}
			}
		}
		assert.Equal(t, 100.0, best, "best value scores 100")
	}
}

func TestNormalizeTiesShareAverageRank(t *testing.T) {
	scores := Normalize(column(map[string]*float64{"A": f(5), "B": f(5), "C": f(1)}), contracts.HigherIsBetter, nil, defaultOptions())

	assert.InDelta(t, 2.5/3*100, *scores["A"], 1e-9)
	assert.Equal(t, *scores["A"], *scores["B"])
	assert.InDelta(t, 100.0/3, *scores["C"], 1e-9)
}

func TestNormalizeMissingExcluded(t *testing.T) {
	scores := Normalize(column(map[string]*float64{"A": f(1), "B": nil, "C": f(3)}), contracts.HigherIsBetter, nil, defaultOptions())

	require.Contains(t, scores, "B")
	assert.Nil(t, scores["B"], "missing input never gets a default score")
	assert.InDelta(t, 50.0, *scores["A"], 1e-9)
	assert.InDelta(t, 100.0, *scores["C"], 1e-9)
}

func TestNormalizeEmptyAndSingle(t *testing.T) {
	assert.Empty(t, Normalize(nil, contracts.HigherIsBetter, nil, defaultOptions()))

	scores := Normalize(column(map[string]*float64{"A": nil}), contracts.HigherIsBetter, nil, defaultOptions())
	assert.Nil(t, scores["A"])

	scores = Normalize(column(map[string]*float64{"A": f(42)}), contracts.LowerIsBetter, nil, defaultOptions())
	assert.Equal(t, 100.0, *scores["A"])
}

func TestNormalizeSectorRelative(t *testing.T) {
	raw := map[string]*float64{
		"T1": f(1), "T2": f(2), "T3": f(3), "T4": f(4), "T5": f(5),
		"F1": f(100), "F2": f(200),
	}
	sectors := map[string]string{
		"T1": "tech", "T2": "tech", "T3": "tech", "T4": "tech", "T5": "tech",
		"F1": "financials", "F2": "financials",
	}

	opts := defaultOptions()
	opts.SectorRelative = true
	scores := Normalize(column(raw), contracts.HigherIsBetter, sectors, opts)

	// tech: 5개 → 섹터 내 순위
	assert.InDelta(t, 20.0, *scores["T1"], 1e-9)
	assert.InDelta(t, 100.0, *scores["T5"], 1e-9)

	// financials: 2개 < 5 → 전체 분포 fallback
	assert.InDelta(t, 6.0/7*100, *scores["F1"], 1e-9)
	assert.InDelta(t, 100.0, *scores["F2"], 1e-9)

	// 섹터 옵션이 꺼져 있으면 전체 순위
	opts.SectorRelative = false
	global := Normalize(column(raw), contracts.HigherIsBetter, sectors, opts)
	assert.InDelta(t, 5.0/7*100, *global["T5"], 1e-9)
}

func TestNormalizeDeterministic(t *testing.T) {
	values := []contracts.MetricValue{
		{EntityID: "C", Value: f(3)},
		{EntityID: "A", Value: f(1)},
		{EntityID: "B", Value: f(2)},
		{EntityID: "D", Value: nil},
	}
	reversed := make([]contracts.MetricValue, len(values))
	for i, v := range values {
		reversed[len(values)-1-i] = v
	}

	for _, method := range []string{strategyconfig.MethodPercentile, strategyconfig.MethodZScore} {
		opts := defaultOptions()
		opts.Method = method
		assert.Equal(t, Normalize(values, contracts.HigherIsBetter, nil, opts), Normalize(reversed, contracts.HigherIsBetter, nil, opts), method)
	}
}

func TestNormalizeZScoreMethod(t *testing.T) {
	opts := defaultOptions()
	opts.Method = strategyconfig.MethodZScore
	opts.WinsorizeLow, opts.WinsorizeHigh = 0, 1

	raw := map[string]*float64{"A": f(1), "B": f(2), "C": f(3)}

	higher := Normalize(column(raw), contracts.HigherIsBetter, nil, opts)
	assert.InDelta(t, 50.0, *higher["B"], 1e-9)
	assert.Less(t, *higher["A"], *higher["B"])
	assert.InDelta(t, 100.0, *higher["A"]+*higher["C"], 1e-9)

	lower := Normalize(column(raw), contracts.LowerIsBetter, nil, opts)
	assert.InDelta(t, *higher["C"], *lower["A"], 1e-9)

	flat := Normalize(column(map[string]*float64{"A": f(7), "B": f(7)}), contracts.HigherIsBetter, nil, opts)
	assert.Equal(t, 50.0, *flat["A"])
	assert.Equal(t, 50.0, *flat["B"])
}

func TestWinsorize(t *testing.T) {
	input := []float64{1, 2, 3, 4, 100}
	out := Winsorize(input, 0, 0.75)

	assert.Equal(t, []float64{1, 2, 3, 4, 4}, out)
	assert.Equal(t, 100.0, input[4], "input not modified")
}

func TestQuantile(t *testing.T) {
	sorted := []float64{1, 2, 3, 4}

	tests := []struct {
		p    float64
		want float64
	}{
		{0, 1},
		{1, 4},
		{0.5, 2.5},
		{0.01, 1.03},
		{0.99, 3.97},
	}

	for _, tt := range tests {
		assert.InDelta(t, tt.want, Quantile(sorted, tt.p), 1e-9, "p=%v", tt.p)
	}
}

func TestAverageRanks(t *testing.T) {
	assert.Equal(t, []float64{3, 1.5, 1.5, 4}, AverageRanks([]float64{10, 5, 5, 20}))
}
