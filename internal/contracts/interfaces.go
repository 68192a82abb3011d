package contracts

import (
	"context"
	"time"
)

// ⭐ SSOT: 스코어링 엔진 외부 협력자 인터페이스 정의는 여기서만

// MetricsRepository supplies raw per-entity metrics (read-only).
// Errors returned here abort the run.
type MetricsRepository interface {
	// ListEntities returns every active entity eligible for scoring on the date
	ListEntities(ctx context.Context, date time.Time) ([]Entity, error)

	// LatestMetrics returns, per metric name, the latest value at-or-before date
	// for every entity. Rows older than notBefore are not returned.
	LatestMetrics(ctx context.Context, date, notBefore time.Time, metrics []string) ([]MetricSnapshot, error)
}

// ScoreWriter persists validated output records (append-only)
type ScoreWriter interface {
	Write(ctx context.Context, score *CompositeScore) error
}

// PriorScoreReader returns the immediately preceding record for trend classification.
// Returns (nil, nil) when the entity has no earlier record.
type PriorScoreReader interface {
	Prior(ctx context.Context, entityID string, period PeriodType, before time.Time) (*CompositeScore, error)
}

// RunRecorder stores the audit summary of one run
type RunRecorder interface {
	SaveRun(ctx context.Context, summary *RunSummary) error
}
