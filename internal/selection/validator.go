package selection

import (
	"fmt"
	"math"

	"github.com/wonny/factorscore/internal/contracts"
	"github.com/wonny/factorscore/internal/strategyconfig"
)

// ValidationError describes why a CompositeScore was rejected
type ValidationError struct {
	EntityID string
	Field    string
	Reason   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: entity=%s field=%s: %s", e.EntityID, e.Field, e.Reason)
}

// Is matches contracts.ErrValidation
func (e *ValidationError) Is(target error) bool {
	return target == contracts.ErrValidation
}

// Validator implements S5: output record checks before persistence
// ⭐ SSOT: S5 검증 로직은 여기서만
type Validator struct {
	minFactors int
}

// NewValidator creates a new validator
func NewValidator(cfg *strategyconfig.Config) *Validator {
	return &Validator{minFactors: cfg.Composite.MinFactors}
}

// Validate returns the record unchanged, or a *ValidationError
func (v *Validator) Validate(cs *contracts.CompositeScore) (*contracts.CompositeScore, error) {
	if cs == nil {
		return nil, &ValidationError{Field: "record", Reason: "nil record"}
	}

	reject := func(field, reason string) (*contracts.CompositeScore, error) {
		return nil, &ValidationError{EntityID: cs.EntityID, Field: field, Reason: reason}
	}

	if cs.EntityID == "" {
		return reject("entity_id", "required")
	}

	// 1. 팩터 점수: NULL 또는 [0,100]
	present := 0
	for _, f := range contracts.AllFactors() {
		fs, ok := cs.Factors[f]
		if !ok {
			return reject(string(f), "factor missing from record")
		}
		if reason := checkScore(fs.Score); reason != "" {
			return reject(string(f), reason)
		}
		if !fs.Trend.IsValid() {
			return reject(string(f)+".trend", fmt.Sprintf("unknown trend %q", fs.Trend))
		}
		if fs.HasScore() {
			present++
		}
	}
	for f := range cs.Factors {
		if !contracts.IsValidFactor(string(f)) {
			return reject(string(f), "unknown factor")
		}
	}

	// 2. composite / confidence 범위
	if reason := checkScore(cs.Composite); reason != "" {
		return reject("composite", reason)
	}
	if reason := checkScore(cs.Confidence); reason != "" {
		return reject("confidence", reason)
	}

	// 3. NULL 전파 규칙
	if (cs.Composite == nil) != (cs.Confidence == nil) {
		return reject("confidence", "confidence must be NULL iff composite is NULL")
	}
	if cs.Composite != nil && present < v.minFactors {
		return reject("composite", fmt.Sprintf("composite present with %d factors, minimum %d", present, v.minFactors))
	}
	if cs.PresentFactors != present {
		return reject("present_factors", fmt.Sprintf("recorded %d, counted %d", cs.PresentFactors, present))
	}

	// 4. 라벨 일관성
	if !cs.CompositeTrend.IsValid() {
		return reject("composite_trend", fmt.Sprintf("unknown trend %q", cs.CompositeTrend))
	}
	if cs.Composite == nil && cs.Recommendation != contracts.RecommendationInsufficientData {
		return reject("recommendation", "NULL composite must map to insufficient_data")
	}
	if cs.Composite != nil && cs.Recommendation == contracts.RecommendationInsufficientData {
		return reject("recommendation", "scored composite must carry a label")
	}

	return cs, nil
}

func checkScore(s *float64) string {
	if s == nil {
		return ""
	}
	v := *s
	if math.IsNaN(v) {
		return "NaN"
	}
	if math.IsInf(v, 0) {
		return "Inf"
	}
	if v < 0 || v > 100 {
		return fmt.Sprintf("%v outside [0,100]", v)
	}
	return ""
}
