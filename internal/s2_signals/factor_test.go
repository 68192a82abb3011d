package s2_signals

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/factorscore/internal/contracts"
	"github.com/wonny/factorscore/internal/strategyconfig"
	"github.com/wonny/factorscore/pkg/logger"
)

// tablesFor builds Tables with already-normalized scores for one factor
func tablesFor(factor contracts.Factor, entityID string, scores map[string]float64) *Tables {
	t := &Tables{
		scores: make(map[string]map[string]*float64),
		issues: make(map[string][]contracts.DataIssue),
		counts: make(map[string]int),
	}
	for metric, s := range scores {
		t.scores[tableKey(factor, metric)] = map[string]*float64{entityID: contracts.Float(s)}
	}
	return t
}

func momentumCalculator(t *testing.T) *Calculator {
	t.Helper()
	spec, ok := strategyconfig.Default().Factor(contracts.FactorMomentum)
	require.True(t, ok)

	c, err := NewCalculator(spec, logger.Nop())
	require.NoError(t, err)
	return c
}

func TestMomentumTwoOfSixRenormalized(t *testing.T) {
	c := momentumCalculator(t)

	// return_3m (0.70×0.25), return_6m (0.70×0.30) 만 존재
	tables := tablesFor(contracts.FactorMomentum, "X", map[string]float64{
		"return_3m": 80,
		"return_6m": 40,
	})

	fs := c.Compute("X", tables)
	require.True(t, fs.HasScore())

	want := (0.175*80 + 0.21*40) / (0.175 + 0.21)
	assert.InDelta(t, want, *fs.Score, 1e-9)
	assert.Equal(t, 2, fs.ContributingComponents)
	assert.Equal(t, 6, fs.AvailableComponents)
	assert.Equal(t, contracts.TrendUnknown, fs.Trend)
}

func TestMomentumBelowMinimumIsNull(t *testing.T) {
	c := momentumCalculator(t)

	tables := tablesFor(contracts.FactorMomentum, "X", map[string]float64{"return_12m": 90})

	fs := c.Compute("X", tables)
	assert.False(t, fs.HasScore())
	assert.Equal(t, 1, fs.ContributingComponents)
}

func TestFactorAllPresentUsesConfiguredWeights(t *testing.T) {
	c := momentumCalculator(t)

	scores := map[string]float64{
		"return_1m": 10, "return_3m": 20, "return_6m": 30, "return_12m": 40,
		"price_to_52w_high": 50, "volume_trend": 60,
	}
	fs := c.Compute("X", tablesFor(contracts.FactorMomentum, "X", scores))
	require.True(t, fs.HasScore())

	want := 0.70*(0.15*10+0.25*20+0.30*30+0.30*40) + 0.30*(0.5*50+0.5*60)
	assert.InDelta(t, want, *fs.Score, 1e-9)
	assert.Equal(t, 6, fs.ContributingComponents)
}

func TestFactorUnknownEntityIsNull(t *testing.T) {
	c := momentumCalculator(t)

	fs := c.Compute("missing", tablesFor(contracts.FactorMomentum, "X", map[string]float64{"return_1m": 10}))
	assert.Nil(t, fs.Score)
	assert.Equal(t, 0, fs.ContributingComponents)
}

func TestCalculatorRejectsInvalidSpec(t *testing.T) {
	tests := []struct {
		name string
		spec strategyconfig.FactorSpec
	}{
		{"unknown factor", strategyconfig.FactorSpec{Name: "sentiment", Groups: []strategyconfig.GroupSpec{{Name: "g", Weight: 1, Metrics: []strategyconfig.MetricSpec{{Name: "m", Weight: 1}}}}}},
		{"no sub-metrics", strategyconfig.FactorSpec{Name: contracts.FactorValue}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCalculator(tt.spec, logger.Nop())
			assert.Error(t, err)
		})
	}
}

func TestCalculatorFollowsSpecPerFactor(t *testing.T) {
	cfg := strategyconfig.Default()

	// 같은 계산기라도 팩터별 설정(그룹 가중치, 최소 개수)을 그대로 따름
	value, ok := cfg.Factor(contracts.FactorValue)
	require.True(t, ok)
	c, err := NewCalculator(value, logger.Nop())
	require.NoError(t, err)

	fs := c.Compute("X", tablesFor(contracts.FactorValue, "X", map[string]float64{
		"pe_ratio":       60,
		"dividend_yield": 20,
	}))
	require.True(t, fs.HasScore())
	want := (0.45*0.40*60 + 0.05*1.0*20) / (0.45*0.40 + 0.05*1.0)
	assert.InDelta(t, want, *fs.Score, 1e-9)
	assert.Equal(t, 7, fs.AvailableComponents)

	quality, ok := cfg.Factor(contracts.FactorQuality)
	require.True(t, ok)
	c, err = NewCalculator(quality, logger.Nop())
	require.NoError(t, err)

	// quality는 최소 3개 필요
	fs = c.Compute("X", tablesFor(contracts.FactorQuality, "X", map[string]float64{"roe": 70, "roa": 50}))
	assert.False(t, fs.HasScore())
	assert.Equal(t, 2, fs.ContributingComponents)
}

func TestRegistryCanonicalOrder(t *testing.T) {
	r, err := NewRegistry(strategyconfig.Default(), logger.Nop())
	require.NoError(t, err)

	computers := r.Computers()
	require.Len(t, computers, 6)
	for i, f := range contracts.AllFactors() {
		assert.Equal(t, f, computers[i].Factor())
		assert.Equal(t, f, computers[i].Spec().Name)
	}
}

func TestRegistryMissingFactor(t *testing.T) {
	cfg := strategyconfig.Default()
	cfg.Factors = cfg.Factors[:5]

	_, err := NewRegistry(cfg, logger.Nop())
	assert.Error(t, err)
}

func TestComputeAllOverSnapshot(t *testing.T) {
	cfg := strategyconfig.Default()

	entities := make([]contracts.Entity, 0, 12)
	values := make(map[string]map[string]*float64)
	for i := 0; i < 12; i++ {
		id := fmt.Sprintf("E%02d", i)
		entities = append(entities, contracts.Entity{ID: id, Sector: []string{"tech", "energy"}[i%2]})

		for j, metric := range cfg.MetricNames() {
			// E00은 데이터 없음
			if i == 0 {
				continue
			}
			if values[metric] == nil {
				values[metric] = make(map[string]*float64)
			}
			values[metric][id] = contracts.Float(float64((i*7+j*3)%11) / 20)
		}
	}

	snapshot := contracts.NewUniverseSnapshot("snap", time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC), contracts.PeriodDaily, entities, values)
	tables := PrepareTables(snapshot, cfg)

	r, err := NewRegistry(cfg, logger.Nop())
	require.NoError(t, err)

	for _, id := range snapshot.Entities() {
		scores := r.ComputeAll(id, tables)
		require.Len(t, scores, 6)

		for f, fs := range scores {
			assert.Equal(t, f, fs.Factor)
			if fs.Score != nil {
				assert.GreaterOrEqual(t, *fs.Score, 0.0)
				assert.LessOrEqual(t, *fs.Score, 100.0)
			}
		}
	}

	empty := r.ComputeAll("E00", tables)
	for _, fs := range empty {
		assert.Nil(t, fs.Score)
	}
	assert.Len(t, tables.Issues("E00"), cfg.TotalComponents())
	assert.Equal(t, cfg.TotalComponents(), tables.IssueCounts()["missing_metric"])
}
