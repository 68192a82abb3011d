package contracts

import "time"

// Factor identifies one of the independently computed factor scores
type Factor string

const (
	FactorMomentum    Factor = "momentum"
	FactorValue       Factor = "value"
	FactorQuality     Factor = "quality"
	FactorGrowth      Factor = "growth"
	FactorStability   Factor = "stability"
	FactorPositioning Factor = "positioning"
)

// AllFactors returns all factors in canonical order.
// Aggregation and persistence iterate in this order so sums are reproducible.
func AllFactors() []Factor {
	return []Factor{
		FactorMomentum,
		FactorValue,
		FactorQuality,
		FactorGrowth,
		FactorStability,
		FactorPositioning,
	}
}

// IsValidFactor checks if a factor name is known
func IsValidFactor(s string) bool {
	for _, f := range AllFactors() {
		if string(f) == s {
			return true
		}
	}
	return false
}

// Trend labels a score against the entity's previous run
type Trend string

const (
	TrendImproving Trend = "improving"
	TrendStable    Trend = "stable"
	TrendDeclining Trend = "declining"
	TrendUnknown   Trend = "unknown"
)

// IsValid checks if the trend label is one of the known values
func (t Trend) IsValid() bool {
	switch t {
	case TrendImproving, TrendStable, TrendDeclining, TrendUnknown:
		return true
	}
	return false
}

// FactorScore is one factor result for one entity
// ⭐ SSOT: S2 → S4 팩터 점수 전달
type FactorScore struct {
	Factor                 Factor   `json:"factor"`
	Score                  *float64 `json:"score"` // 0~100, nil = insufficient data
	Trend                  Trend    `json:"trend"`
	ContributingComponents int      `json:"contributing_components"`
	AvailableComponents    int      `json:"available_components"` // sub-metrics the factor defines
}

// HasScore reports whether the factor produced a score
func (f FactorScore) HasScore() bool {
	return f.Score != nil
}

// CompositeScore is the output record per (entity_id, as_of_date, period_type)
// ⭐ SSOT: S4 → ScoreWriter 최종 출력 레코드
type CompositeScore struct {
	RunID          string                 `json:"run_id"`
	EntityID       string                 `json:"entity_id"`
	AsOfDate       time.Time              `json:"as_of_date"`
	PeriodType     PeriodType             `json:"period_type"`
	Factors        map[Factor]FactorScore `json:"factors"`
	Composite      *float64               `json:"composite"`  // 0~100, nil if too few factors
	Confidence     *float64               `json:"confidence"` // 0~100, nil iff Composite is nil
	CompositeTrend Trend                  `json:"composite_trend"`
	Recommendation Recommendation         `json:"recommendation"`
	PresentFactors int                    `json:"present_factors"`
}

// FactorValue returns the score for a factor, nil when absent
func (c *CompositeScore) FactorValue(f Factor) *float64 {
	fs, ok := c.Factors[f]
	if !ok {
		return nil
	}
	return fs.Score
}

// Recommendation is a threshold label over the composite score
type Recommendation string

const (
	RecommendationStrongBuy        Recommendation = "strong_buy"
	RecommendationBuy              Recommendation = "buy"
	RecommendationHold             Recommendation = "hold"
	RecommendationSell             Recommendation = "sell"
	RecommendationStrongSell       Recommendation = "strong_sell"
	RecommendationInsufficientData Recommendation = "insufficient_data"
)

// Float returns a pointer to v. Scores use pointers so NULL stays distinct from 0.
func Float(v float64) *float64 {
	return &v
}

// Direction declares how a raw sub-metric relates to quality of the score
type Direction string

const (
	HigherIsBetter Direction = "higher_is_better"
	LowerIsBetter  Direction = "lower_is_better"
)

// IsValid checks if the direction is known
func (d Direction) IsValid() bool {
	return d == HigherIsBetter || d == LowerIsBetter
}
