package contracts

import (
	"errors"
	"fmt"
)

// Error taxonomy.
// Only ErrRepository is run-fatal; the rest are isolated per entity.
var (
	ErrMissingMetric    = errors.New("missing metric")
	ErrImplausibleValue = errors.New("implausible value")
	ErrInsufficientData = errors.New("insufficient data")
	ErrValidation       = errors.New("validation failed")
	ErrRepository       = errors.New("repository error")
)

// DataIssue records one non-fatal condition so a NULL score can be explained
type DataIssue struct {
	Kind     error    `json:"-"`
	EntityID string   `json:"entity_id"`
	Factor   Factor   `json:"factor,omitempty"`
	Metric   string   `json:"metric,omitempty"`
	RawValue *float64 `json:"raw_value,omitempty"`
	Detail   string   `json:"detail,omitempty"`
}

// Error implements error so issues can be matched with errors.Is
func (d DataIssue) Error() string {
	return fmt.Sprintf("%v: entity=%s factor=%s metric=%s %s", d.Kind, d.EntityID, d.Factor, d.Metric, d.Detail)
}

// Unwrap returns the taxonomy sentinel
func (d DataIssue) Unwrap() error {
	return d.Kind
}

// KindName returns a stable label for logs and metrics
func (d DataIssue) KindName() string {
	switch {
	case errors.Is(d.Kind, ErrMissingMetric):
		return "missing_metric"
	case errors.Is(d.Kind, ErrImplausibleValue):
		return "implausible_value"
	case errors.Is(d.Kind, ErrInsufficientData):
		return "insufficient_data"
	case errors.Is(d.Kind, ErrValidation):
		return "validation"
	default:
		return "unknown"
	}
}
