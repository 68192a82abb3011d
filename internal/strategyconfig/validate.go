package strategyconfig

import (
	"errors"
	"fmt"
	"math"

	"github.com/wonny/factorscore/internal/contracts"
)

// ValidationError 검증 실패 (프로그램 중단)
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Warning 권장 위반 (경고만)
type Warning struct {
	Code    string
	Message string
}

const weightEpsilon = 1e-3

// Validate checks all required constraints
// 실패 시 error 반환 (프로그램 중단)
func Validate(cfg *Config) error {
	// === Meta ===
	if cfg.Meta.StrategyID == "" {
		return ValidationError{"meta.strategy_id", "required"}
	}

	// === Universe ===
	if cfg.Universe.MaxStalenessDays <= 0 {
		return ValidationError{"universe.max_staleness_days", "must be > 0"}
	}

	// === Normalization ===
	n := cfg.Normalization
	if n.WinsorizeLowPct < 0 || n.WinsorizeHighPct > 1 || n.WinsorizeLowPct >= n.WinsorizeHighPct {
		return ValidationError{"normalization", "must satisfy 0 <= winsorize_low_pct < winsorize_high_pct <= 1"}
	}
	if n.ZScoreClip <= 0 {
		return ValidationError{"normalization.zscore_clip", "must be > 0"}
	}
	if n.SectorMinPeers < 2 {
		return ValidationError{"normalization.sector_min_peers", "must be >= 2"}
	}

	// === Factors ===
	if err := validateFactors(cfg.Factors); err != nil {
		return err
	}

	// === Composite ===
	if cfg.Composite.MinFactors < 1 || cfg.Composite.MinFactors > len(contracts.AllFactors()) {
		return ValidationError{"composite.min_factors", fmt.Sprintf("must be in [1, %d]", len(contracts.AllFactors()))}
	}
	if cfg.Composite.MissingFactorPolicy != MissingFactorRenormalize {
		return ValidationError{"composite.missing_factor_policy", fmt.Sprintf("must be '%s'", MissingFactorRenormalize)}
	}

	// === Trend ===
	if cfg.Trend.TolerancePts < 0 || math.IsNaN(cfg.Trend.TolerancePts) {
		return ValidationError{"trend.tolerance_pts", "must be >= 0"}
	}

	// === Recommendation ===
	return validateThresholds(cfg.Recommendation.Thresholds)
}

func validateFactors(factors []FactorSpec) error {
	if len(factors) != len(contracts.AllFactors()) {
		return ValidationError{"factors", fmt.Sprintf("must define all %d factors, got %d", len(contracts.AllFactors()), len(factors))}
	}

	seen := make(map[contracts.Factor]bool)
	weights := make([]float64, 0, len(factors))

	for i, f := range factors {
		field := fmt.Sprintf("factors[%d]", i)
		if !contracts.IsValidFactor(string(f.Name)) {
			return ValidationError{field + ".name", fmt.Sprintf("unknown factor %q", f.Name)}
		}
		if seen[f.Name] {
			return ValidationError{field + ".name", fmt.Sprintf("duplicate factor %q", f.Name)}
		}
		seen[f.Name] = true

		if f.Weight <= 0 {
			return ValidationError{field + ".weight", "must be > 0"}
		}
		weights = append(weights, f.Weight)

		if len(f.Groups) < 1 || len(f.Groups) > 4 {
			return ValidationError{field + ".groups", "must have 1 to 4 groups"}
		}

		groupWeights := make([]float64, 0, len(f.Groups))
		metricNames := make(map[string]bool)
		for j, g := range f.Groups {
			gfield := fmt.Sprintf("%s.groups[%d]", field, j)
			if g.Name == "" {
				return ValidationError{gfield + ".name", "required"}
			}
			groupWeights = append(groupWeights, g.Weight)

			metricWeights := make([]float64, 0, len(g.Metrics))
			for k, m := range g.Metrics {
				mfield := fmt.Sprintf("%s.metrics[%d]", gfield, k)
				if err := validateMetric(m, mfield); err != nil {
					return err
				}
				if metricNames[m.Name] {
					return ValidationError{mfield + ".name", fmt.Sprintf("duplicate metric %q in factor", m.Name)}
				}
				metricNames[m.Name] = true
				metricWeights = append(metricWeights, m.Weight)
			}
			if err := validateWeightsSum(metricWeights, 1.0, weightEpsilon); err != nil {
				return ValidationError{gfield + ".metrics", err.Error()}
			}
		}
		if err := validateWeightsSum(groupWeights, 1.0, weightEpsilon); err != nil {
			return ValidationError{field + ".groups", err.Error()}
		}

		total := len(f.Metrics())
		if f.MinPresent < 1 || f.MinPresent > total {
			return ValidationError{field + ".min_present", fmt.Sprintf("must be in [1, %d]", total)}
		}
	}

	if err := validateWeightsSum(weights, 1.0, weightEpsilon); err != nil {
		return ValidationError{"factors.weight", err.Error()}
	}

	return nil
}

func validateMetric(m MetricSpec, field string) error {
	if m.Name == "" {
		return ValidationError{field + ".name", "required"}
	}
	if m.Weight <= 0 {
		return ValidationError{field + ".weight", "must be > 0"}
	}
	if !m.Direction.IsValid() {
		return ValidationError{field + ".direction", fmt.Sprintf("must be %s or %s", contracts.HigherIsBetter, contracts.LowerIsBetter)}
	}
	if method := m.EffectiveMethod(); method != MethodPercentile && method != MethodZScore {
		return ValidationError{field + ".method", fmt.Sprintf("must be %s or %s", MethodPercentile, MethodZScore)}
	}
	if m.Min != nil && m.Max != nil && *m.Min > *m.Max {
		return ValidationError{field, "min must be <= max"}
	}
	return nil
}

func validateThresholds(thresholds []Threshold) error {
	if len(thresholds) == 0 {
		return ValidationError{"recommendation.thresholds", "required"}
	}

	for i, t := range thresholds {
		field := fmt.Sprintf("recommendation.thresholds[%d]", i)
		switch t.Label {
		case contracts.RecommendationStrongBuy, contracts.RecommendationBuy, contracts.RecommendationHold,
			contracts.RecommendationSell, contracts.RecommendationStrongSell:
		default:
			return ValidationError{field + ".label", fmt.Sprintf("unknown label %q", t.Label)}
		}
		if t.MinScore < 0 || t.MinScore > 100 {
			return ValidationError{field + ".min_score", "must be in [0, 100]"}
		}
		if i > 0 && t.MinScore >= thresholds[i-1].MinScore {
			return ValidationError{field + ".min_score", "thresholds must be strictly descending"}
		}
	}

	// 모든 composite 점수가 라벨을 갖도록 마지막 임계값은 0
	if last := thresholds[len(thresholds)-1]; last.MinScore != 0 {
		return ValidationError{"recommendation.thresholds", "last threshold must have min_score 0"}
	}

	return nil
}

// Warn checks recommended constraints (non-fatal)
func Warn(cfg *Config) []Warning {
	var warnings []Warning

	if cfg.Normalization.WinsorizeLowPct > 0.05 || cfg.Normalization.WinsorizeHighPct < 0.95 {
		warnings = append(warnings, Warning{
			Code:    "AGGRESSIVE_WINSORIZE",
			Message: "winsorization beyond 5th/95th percentile flattens a large part of the distribution",
		})
	}

	if cfg.Composite.MinFactors < 3 {
		warnings = append(warnings, Warning{
			Code:    "LOW_MIN_FACTORS",
			Message: "composite with fewer than 3 factors is dominated by a single factor",
		})
	}

	for _, f := range cfg.Factors {
		if f.MinPresent == 1 && len(f.Metrics()) > 2 {
			warnings = append(warnings, Warning{
				Code:    "SINGLE_METRIC_FACTOR",
				Message: fmt.Sprintf("factor %s may be scored from a single sub-metric", f.Name),
			})
		}
	}

	return warnings
}

// === Helper Functions ===

func validateWeightsSum(weights []float64, target float64, epsilon float64) error {
	if len(weights) == 0 {
		return errors.New("must not be empty")
	}
	sum := 0.0
	for _, w := range weights {
		sum += w
	}
	if math.Abs(sum-target) > epsilon {
		return fmt.Errorf("must sum to %.2f, got %.4f", target, sum)
	}
	return nil
}
