package selection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/factorscore/internal/contracts"
	"github.com/wonny/factorscore/internal/strategyconfig"
	"github.com/wonny/factorscore/pkg/logger"
)

func factorScore(f contracts.Factor, score float64, contributing, available int) contracts.FactorScore {
	return contracts.FactorScore{
		Factor:                 f,
		Score:                  contracts.Float(score),
		Trend:                  contracts.TrendUnknown,
		ContributingComponents: contributing,
		AvailableComponents:    available,
	}
}

func nullFactor(f contracts.Factor, contributing, available int) contracts.FactorScore {
	return contracts.FactorScore{
		Factor:                 f,
		Trend:                  contracts.TrendUnknown,
		ContributingComponents: contributing,
		AvailableComponents:    available,
	}
}

// weightedConfig mirrors a published weight set that does not sum exactly to 1
func weightedConfig() *strategyconfig.Config {
	cfg := strategyconfig.Default()
	weights := map[contracts.Factor]float64{
		contracts.FactorMomentum:    0.125,
		contracts.FactorGrowth:      0.1875,
		contracts.FactorValue:       0.1875,
		contracts.FactorQuality:     0.2604,
		contracts.FactorStability:   0.1667,
		contracts.FactorPositioning: 0.1146,
	}
	for i := range cfg.Factors {
		cfg.Factors[i].Weight = weights[cfg.Factors[i].Name]
	}
	return cfg
}

func TestAggregateSixFactors(t *testing.T) {
	a := NewAggregator(weightedConfig(), logger.Nop())

	factors := map[contracts.Factor]contracts.FactorScore{
		contracts.FactorMomentum:    factorScore(contracts.FactorMomentum, 70.4, 6, 6),
		contracts.FactorGrowth:      factorScore(contracts.FactorGrowth, 58.1, 5, 5),
		contracts.FactorValue:       factorScore(contracts.FactorValue, 47.5, 7, 7),
		contracts.FactorQuality:     factorScore(contracts.FactorQuality, 54.1, 8, 8),
		contracts.FactorStability:   factorScore(contracts.FactorStability, 46.1, 5, 5),
		contracts.FactorPositioning: factorScore(contracts.FactorPositioning, 49.7, 4, 4),
	}

	cs := a.Aggregate("ACME", factors, nil)

	require.NotNil(t, cs.Composite)
	assert.InDelta(t, 53.8, *cs.Composite, 0.05)
	assert.Equal(t, 6, cs.PresentFactors)
	require.NotNil(t, cs.Confidence)
	assert.InDelta(t, 100.0, *cs.Confidence, 1e-9)
	assert.Equal(t, contracts.RecommendationHold, cs.Recommendation)
	assert.Equal(t, contracts.TrendUnknown, cs.CompositeTrend, "no prior record")
}

func TestAggregateTrendImproving(t *testing.T) {
	a := NewAggregator(weightedConfig(), logger.Nop())

	factors := map[contracts.Factor]contracts.FactorScore{
		contracts.FactorMomentum:    factorScore(contracts.FactorMomentum, 70.4, 6, 6),
		contracts.FactorGrowth:      factorScore(contracts.FactorGrowth, 58.1, 5, 5),
		contracts.FactorValue:       factorScore(contracts.FactorValue, 47.5, 7, 7),
		contracts.FactorQuality:     factorScore(contracts.FactorQuality, 54.1, 8, 8),
		contracts.FactorStability:   factorScore(contracts.FactorStability, 46.1, 5, 5),
		contracts.FactorPositioning: factorScore(contracts.FactorPositioning, 49.7, 4, 4),
	}
	prior := &contracts.CompositeScore{
		Composite: contracts.Float(50.0),
		Factors: map[contracts.Factor]contracts.FactorScore{
			contracts.FactorMomentum: {Factor: contracts.FactorMomentum, Score: contracts.Float(75.0)},
			contracts.FactorValue:    {Factor: contracts.FactorValue, Score: contracts.Float(46.0)},
		},
	}

	cs := a.Aggregate("ACME", factors, prior)

	assert.Equal(t, contracts.TrendImproving, cs.CompositeTrend)
	assert.Equal(t, contracts.TrendDeclining, cs.Factors[contracts.FactorMomentum].Trend)
	assert.Equal(t, contracts.TrendStable, cs.Factors[contracts.FactorValue].Trend)
	assert.Equal(t, contracts.TrendUnknown, cs.Factors[contracts.FactorGrowth].Trend, "no prior factor value")
}

func TestAggregateRenormalizesMissingFactors(t *testing.T) {
	cfg := strategyconfig.Default()
	a := NewAggregator(cfg, logger.Nop())

	factors := map[contracts.Factor]contracts.FactorScore{
		contracts.FactorMomentum:    factorScore(contracts.FactorMomentum, 60, 6, 6),
		contracts.FactorValue:       factorScore(contracts.FactorValue, 40, 4, 7),
		contracts.FactorQuality:     factorScore(contracts.FactorQuality, 80, 8, 8),
		contracts.FactorGrowth:      factorScore(contracts.FactorGrowth, 50, 3, 5),
		contracts.FactorStability:   nullFactor(contracts.FactorStability, 1, 5),
		contracts.FactorPositioning: nullFactor(contracts.FactorPositioning, 0, 4),
	}

	cs := a.Aggregate("ACME", factors, nil)
	require.NotNil(t, cs.Composite)

	want := (0.12*60 + 0.18*40 + 0.25*80 + 0.18*50) / (0.12 + 0.18 + 0.25 + 0.18)
	assert.InDelta(t, want, *cs.Composite, 1e-9)
	assert.Equal(t, 4, cs.PresentFactors)

	// 계산된 팩터의 서브 지표만 집계 (stability 1개는 제외)
	require.NotNil(t, cs.Confidence)
	assert.InDelta(t, float64(6+4+8+3)/35*100, *cs.Confidence, 1e-9)
}

func TestAggregateBelowMinimumFactors(t *testing.T) {
	a := NewAggregator(strategyconfig.Default(), logger.Nop())

	factors := map[contracts.Factor]contracts.FactorScore{
		contracts.FactorMomentum: factorScore(contracts.FactorMomentum, 90, 6, 6),
		contracts.FactorValue:    factorScore(contracts.FactorValue, 90, 7, 7),
		contracts.FactorQuality:  factorScore(contracts.FactorQuality, 90, 8, 8),
	}
	prior := &contracts.CompositeScore{Composite: contracts.Float(10)}

	cs := a.Aggregate("ACME", factors, prior)

	assert.Nil(t, cs.Composite)
	assert.Nil(t, cs.Confidence)
	assert.Equal(t, 3, cs.PresentFactors)
	assert.Equal(t, contracts.RecommendationInsufficientData, cs.Recommendation)
	assert.Equal(t, contracts.TrendUnknown, cs.CompositeTrend)

	// 누락된 팩터도 레코드에는 NULL로 존재
	require.Len(t, cs.Factors, 6)
	growth := cs.Factors[contracts.FactorGrowth]
	assert.Nil(t, growth.Score)
	assert.Equal(t, 5, growth.AvailableComponents)
}

func TestConfidenceMonotone(t *testing.T) {
	prev := -1.0
	for contributing := 0; contributing <= 35; contributing++ {
		c := Confidence(contributing, 35)
		assert.Greater(t, c, prev)
		prev = c
	}
	assert.Equal(t, 100.0, Confidence(35, 35))
	assert.Equal(t, 0.0, Confidence(0, 0))
}

func TestClassifyTrend(t *testing.T) {
	a := NewAggregator(strategyconfig.Default(), logger.Nop())

	tests := []struct {
		name    string
		current *float64
		prior   *float64
		want    contracts.Trend
	}{
		{"improving", contracts.Float(53.8), contracts.Float(50), contracts.TrendImproving},
		{"declining", contracts.Float(40), contracts.Float(50), contracts.TrendDeclining},
		{"inside band", contracts.Float(51), contracts.Float(50), contracts.TrendStable},
		{"on band edge", contracts.Float(52), contracts.Float(50), contracts.TrendStable},
		{"edge after rounding", contracts.Float(52.004), contracts.Float(50), contracts.TrendStable},
		{"past edge after rounding", contracts.Float(52.006), contracts.Float(50), contracts.TrendImproving},
		{"declining edge after rounding", contracts.Float(47.996), contracts.Float(50), contracts.TrendStable},
		{"float edge", contracts.Float(52.3), contracts.Float(50.3), contracts.TrendStable},
		{"no prior", contracts.Float(52), nil, contracts.TrendUnknown},
		{"no current", nil, contracts.Float(50), contracts.TrendUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, a.ClassifyTrend(tt.current, tt.prior))
		})
	}
}

func TestRecommend(t *testing.T) {
	a := NewAggregator(strategyconfig.Default(), logger.Nop())

	tests := []struct {
		score float64
		want  contracts.Recommendation
	}{
		{100, contracts.RecommendationStrongBuy},
		{80, contracts.RecommendationStrongBuy},
		{79.99, contracts.RecommendationBuy},
		{65, contracts.RecommendationBuy},
		{53.8, contracts.RecommendationHold},
		{30, contracts.RecommendationSell},
		{29.99, contracts.RecommendationStrongSell},
		{0, contracts.RecommendationStrongSell},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, a.Recommend(tt.score), "score=%v", tt.score)
	}
}
