package selection

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/wonny/factorscore/internal/contracts"
	"github.com/wonny/factorscore/internal/strategyconfig"
	"github.com/wonny/factorscore/pkg/logger"
)

// Aggregator implements S4: composite score, confidence, trend, recommendation
// ⭐ SSOT: S4 종합 점수 로직은 여기서만
//
// Missing factors are excluded and the remaining weights renormalized:
// composite = Σ(w·s) / Σw over present factors.
type Aggregator struct {
	cfg     *strategyconfig.Config
	weights map[contracts.Factor]float64
	logger  *logger.Logger
}

// NewAggregator creates a new aggregator
func NewAggregator(cfg *strategyconfig.Config, log *logger.Logger) *Aggregator {
	return &Aggregator{
		cfg:     cfg,
		weights: cfg.FactorWeights(),
		logger:  log,
	}
}

// Aggregate combines six factor scores into one CompositeScore.
// prior is the entity's immediately preceding record, nil when none exists.
// Run metadata (RunID, AsOfDate, PeriodType) is filled in by the caller.
func (a *Aggregator) Aggregate(entityID string, factors map[contracts.Factor]contracts.FactorScore, prior *contracts.CompositeScore) *contracts.CompositeScore {
	cs := &contracts.CompositeScore{
		EntityID:       entityID,
		Factors:        make(map[contracts.Factor]contracts.FactorScore, len(contracts.AllFactors())),
		CompositeTrend: contracts.TrendUnknown,
		Recommendation: contracts.RecommendationInsufficientData,
	}

	var weightedSum, weightSum float64
	contributing, available := 0, 0

	// canonical order: 합산 순서 고정 (결정성)
	for _, f := range contracts.AllFactors() {
		fs, ok := factors[f]
		if !ok {
			fs = contracts.FactorScore{Factor: f}
			if spec, found := a.cfg.Factor(f); found {
				fs.AvailableComponents = len(spec.Metrics())
			}
		}

		var priorScore *float64
		if prior != nil {
			priorScore = prior.FactorValue(f)
		}
		fs.Trend = a.ClassifyTrend(fs.Score, priorScore)
		cs.Factors[f] = fs

		available += fs.AvailableComponents
		if !fs.HasScore() {
			continue
		}

		cs.PresentFactors++
		contributing += fs.ContributingComponents
		weightedSum += a.weights[f] * *fs.Score
		weightSum += a.weights[f]
	}

	if cs.PresentFactors < a.cfg.Composite.MinFactors || weightSum <= 0 {
		a.logger.WithFields(map[string]interface{}{
			"entity_id":       entityID,
			"present_factors": cs.PresentFactors,
			"min_factors":     a.cfg.Composite.MinFactors,
		}).Debug("Insufficient factors for composite")
		return cs
	}

	composite := clamp(weightedSum / weightSum)
	cs.Composite = contracts.Float(composite)
	cs.Confidence = contracts.Float(Confidence(contributing, available))
	cs.Recommendation = a.Recommend(composite)

	if prior != nil {
		cs.CompositeTrend = a.ClassifyTrend(cs.Composite, prior.Composite)
	}

	return cs
}

// Confidence maps component completeness to 0~100.
// contributing counts sub-metrics present in successfully computed factors;
// available counts every sub-metric the configured factors define.
func Confidence(contributing, available int) float64 {
	if available <= 0 {
		return 0
	}
	return clamp(float64(contributing) / float64(available) * 100)
}

// ClassifyTrend labels current against prior within the tolerance band.
// Both sides are compared at the persisted precision (prior is read back rounded).
func (a *Aggregator) ClassifyTrend(current, prior *float64) contracts.Trend {
	if current == nil || prior == nil {
		return contracts.TrendUnknown
	}

	diff := roundScore(current).Decimal.Sub(roundScore(prior).Decimal)
	tol := decimal.NewFromFloat(a.cfg.Trend.TolerancePts)
	switch {
	case diff.GreaterThan(tol):
		return contracts.TrendImproving
	case diff.LessThan(tol.Neg()):
		return contracts.TrendDeclining
	default:
		return contracts.TrendStable
	}
}

// Recommend maps a composite score to the first threshold it meets
func (a *Aggregator) Recommend(composite float64) contracts.Recommendation {
	for _, t := range a.cfg.Recommendation.Thresholds {
		if composite >= t.MinScore {
			return t.Label
		}
	}
	return contracts.RecommendationInsufficientData
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}
