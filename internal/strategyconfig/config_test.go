package strategyconfig

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/factorscore/internal/contracts"
)

const defaultConfigPath = "../../config/scoring/default.yaml"

func TestLoad(t *testing.T) {
	cfg, yamlData, err := Load(defaultConfigPath)
	require.NoError(t, err)

	assert.Equal(t, "multi_factor_v1", cfg.Meta.StrategyID)
	assert.Len(t, cfg.Factors, 6)
	assert.NotEmpty(t, yamlData)

	// 해시 생성
	hash, err := Hash(cfg)
	require.NoError(t, err)
	assert.Len(t, hash, 64)

	// 동일 설정 → 동일 해시
	hash2, _ := Hash(cfg)
	assert.Equal(t, hash, hash2, "hash not deterministic")

	t.Logf("config hash: %s", hash)
}

func TestDefaultMatchesYAML(t *testing.T) {
	cfg, _, err := Load(defaultConfigPath)
	require.NoError(t, err)

	want, err := Hash(Default())
	require.NoError(t, err)
	got, err := Hash(cfg)
	require.NoError(t, err)

	assert.Equal(t, want, got, "config/scoring/default.yaml drifted from Default()")
}

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	require.NoError(t, Validate(cfg))
	assert.Empty(t, Warn(cfg))

	assert.Equal(t, 35, cfg.TotalComponents())
	assert.Len(t, cfg.MetricNames(), 35)
}

func TestParseRejectsUnknownField(t *testing.T) {
	_, err := Parse([]byte("meta:\n  strategy_id: x\n  versoin: typo\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "versoin")
}

func TestLoadOrDefault(t *testing.T) {
	cfg, data, err := LoadOrDefault("")
	require.NoError(t, err)
	assert.NotEmpty(t, data)

	// 직렬화된 기본값은 다시 파싱 가능해야 함
	reparsed, err := Parse(data)
	require.NoError(t, err)

	h1, _ := Hash(cfg)
	h2, _ := Hash(reparsed)
	assert.Equal(t, h1, h2)
}

func TestValidateFailures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		field  string
	}{
		{
			name:   "missing strategy id",
			mutate: func(c *Config) { c.Meta.StrategyID = "" },
			field:  "meta.strategy_id",
		},
		{
			name:   "factor weights do not sum to one",
			mutate: func(c *Config) { c.Factors[0].Weight = 0.5 },
			field:  "factors.weight",
		},
		{
			name:   "duplicate factor",
			mutate: func(c *Config) { c.Factors[1].Name = contracts.FactorMomentum },
			field:  "factors[1].name",
		},
		{
			name:   "unknown factor",
			mutate: func(c *Config) { c.Factors[2].Name = "sentiment" },
			field:  "factors[2].name",
		},
		{
			name:   "group weights do not sum to one",
			mutate: func(c *Config) { c.Factors[0].Groups[0].Weight = 0.9 },
			field:  "factors[0].groups",
		},
		{
			name:   "metric weights do not sum to one",
			mutate: func(c *Config) { c.Factors[0].Groups[0].Metrics[0].Weight = 0.5 },
			field:  "factors[0].groups[0].metrics",
		},
		{
			name:   "invalid direction",
			mutate: func(c *Config) { c.Factors[1].Groups[0].Metrics[0].Direction = "sideways" },
			field:  "factors[1].groups[0].metrics[0].direction",
		},
		{
			name:   "invalid method",
			mutate: func(c *Config) { c.Factors[1].Groups[0].Metrics[0].Method = "minmax" },
			field:  "factors[1].groups[0].metrics[0].method",
		},
		{
			name: "min greater than max",
			mutate: func(c *Config) {
				c.Factors[1].Groups[0].Metrics[0].Min = bound(10)
				c.Factors[1].Groups[0].Metrics[0].Max = bound(1)
			},
			field: "factors[1].groups[0].metrics[0]",
		},
		{
			name:   "min present above component count",
			mutate: func(c *Config) { c.Factors[0].MinPresent = 7 },
			field:  "factors[0].min_present",
		},
		{
			name:   "winsorize bounds inverted",
			mutate: func(c *Config) { c.Normalization.WinsorizeLowPct = 0.99; c.Normalization.WinsorizeHighPct = 0.01 },
			field:  "normalization",
		},
		{
			name:   "sector min peers too small",
			mutate: func(c *Config) { c.Normalization.SectorMinPeers = 1 },
			field:  "normalization.sector_min_peers",
		},
		{
			name:   "min factors out of range",
			mutate: func(c *Config) { c.Composite.MinFactors = 7 },
			field:  "composite.min_factors",
		},
		{
			name:   "unsupported policy",
			mutate: func(c *Config) { c.Composite.MissingFactorPolicy = "zero_fill" },
			field:  "composite.missing_factor_policy",
		},
		{
			name:   "negative tolerance",
			mutate: func(c *Config) { c.Trend.TolerancePts = -1 },
			field:  "trend.tolerance_pts",
		},
		{
			name:   "thresholds not descending",
			mutate: func(c *Config) { c.Recommendation.Thresholds[1].MinScore = 85 },
			field:  "recommendation.thresholds[1].min_score",
		},
		{
			name: "last threshold not zero",
			mutate: func(c *Config) {
				c.Recommendation.Thresholds[len(c.Recommendation.Thresholds)-1].MinScore = 10
			},
			field: "recommendation.thresholds",
		},
		{
			name:   "zero staleness",
			mutate: func(c *Config) { c.Universe.MaxStalenessDays = 0 },
			field:  "universe.max_staleness_days",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := Validate(cfg)
			require.Error(t, err)

			var ve ValidationError
			require.True(t, errors.As(err, &ve), "expected ValidationError, got %T", err)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestEffectiveWeights(t *testing.T) {
	spec, ok := Default().Factor(contracts.FactorMomentum)
	require.True(t, ok)

	weights := spec.EffectiveWeights()
	require.Len(t, weights, len(spec.Metrics()))

	sum := 0.0
	for _, w := range weights {
		sum += w
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
	assert.InDelta(t, 0.70*0.15, weights[0], 1e-12)
}

func TestMetricPlausible(t *testing.T) {
	m := MetricSpec{Min: bound(0), Max: bound(100)}

	assert.True(t, m.Plausible(0), "min is inclusive")
	assert.True(t, m.Plausible(100), "max is inclusive")
	assert.False(t, m.Plausible(-0.01))
	assert.False(t, m.Plausible(1000))

	unbounded := MetricSpec{}
	assert.True(t, unbounded.Plausible(math.MaxFloat64))
}

func TestStalenessWindow(t *testing.T) {
	cfg := Default()
	cfg.Universe.MaxStalenessDays = 10

	asOf := mustDate("2026-10-16")
	assert.Equal(t, mustDate("2026-10-06"), cfg.StalenessWindow(asOf))
}

func mustDate(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d
}
