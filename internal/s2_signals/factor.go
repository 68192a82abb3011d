package s2_signals

import (
	"fmt"

	"github.com/wonny/factorscore/internal/contracts"
	"github.com/wonny/factorscore/internal/strategyconfig"
	"github.com/wonny/factorscore/pkg/logger"
)

// FactorComputer computes one factor score for one entity from frozen tables.
// Implementations hold no per-run mutable state.
type FactorComputer interface {
	Factor() contracts.Factor
	Spec() strategyconfig.FactorSpec
	Compute(entityID string, tables *Tables) contracts.FactorScore
}

// GroupResult is the weighted sub-score of one metric group (debug only)
type GroupResult struct {
	Name    string
	Score   *float64
	Present int
	Total   int
}

// Calculator scores a factor as the weighted mean of its present normalized
// sub-metrics. Effective weight = group.weight × metric.weight, renormalized
// over present sub-metrics.
// ⭐ SSOT: 팩터 계산은 여기서만
//
// 팩터별 차이(서브 지표, 방향, 섹터 상대, 정규화 방식, 최소 개수)는 FactorSpec으로만 표현
type Calculator struct {
	spec   strategyconfig.FactorSpec
	logger *logger.Logger
}

// NewCalculator creates a calculator for one configured factor
func NewCalculator(spec strategyconfig.FactorSpec, log *logger.Logger) (*Calculator, error) {
	if !contracts.IsValidFactor(string(spec.Name)) {
		return nil, fmt.Errorf("unknown factor %q", spec.Name)
	}
	if len(spec.Metrics()) == 0 {
		return nil, fmt.Errorf("factor %s has no sub-metrics", spec.Name)
	}
	return &Calculator{spec: spec, logger: log}, nil
}

// Factor returns the factor this calculator scores
func (c *Calculator) Factor() contracts.Factor {
	return c.spec.Name
}

// Spec returns the factor configuration
func (c *Calculator) Spec() strategyconfig.FactorSpec {
	return c.spec
}

// Compute calculates the factor score for one entity
func (c *Calculator) Compute(entityID string, tables *Tables) contracts.FactorScore {
	fs, groups := c.score(entityID, tables)
	c.logResult(entityID, fs, groups)
	return fs
}

// score returns the factor score and per-group breakdown
func (c *Calculator) score(entityID string, tables *Tables) (contracts.FactorScore, []GroupResult) {
	result := contracts.FactorScore{
		Factor:              c.spec.Name,
		Trend:               contracts.TrendUnknown,
		AvailableComponents: len(c.spec.Metrics()),
	}

	groups := make([]GroupResult, 0, len(c.spec.Groups))
	var weightedSum, weightSum float64

	for _, g := range c.spec.Groups {
		gr := GroupResult{Name: g.Name, Total: len(g.Metrics)}
		var gSum, gWeight float64

		for _, m := range g.Metrics {
			s := tables.Score(c.spec.Name, m.Name, entityID)
			if s == nil {
				continue
			}
			eff := g.Weight * m.Weight
			weightedSum += eff * *s
			weightSum += eff
			gSum += m.Weight * *s
			gWeight += m.Weight
			gr.Present++
		}

		if gWeight > 0 {
			gr.Score = contracts.Float(gSum / gWeight)
		}
		result.ContributingComponents += gr.Present
		groups = append(groups, gr)
	}

	// 최소 데이터 게이트: 유효 서브 지표 부족 시 NULL
	if result.ContributingComponents < c.spec.MinPresent || weightSum <= 0 {
		return result, groups
	}

	result.Score = contracts.Float(clampScore(weightedSum / weightSum))
	return result, groups
}

func (c *Calculator) logResult(entityID string, fs contracts.FactorScore, groups []GroupResult) {
	fields := map[string]interface{}{
		"entity_id": entityID,
		"factor":    string(fs.Factor),
		"present":   fs.ContributingComponents,
		"available": fs.AvailableComponents,
	}
	for _, g := range groups {
		if g.Score != nil {
			fields[g.Name] = *g.Score
		}
	}
	if fs.Score != nil {
		fields["score"] = *fs.Score
		c.logger.WithFields(fields).Debug("Calculated factor")
		return
	}

	fields["min_present"] = c.spec.MinPresent
	c.logger.WithFields(fields).Debug("Insufficient data for factor")
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
