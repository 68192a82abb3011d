package s1_universe

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/factorscore/internal/contracts"
	"github.com/wonny/factorscore/internal/strategyconfig"
	"github.com/wonny/factorscore/pkg/logger"
)

// Builder constructs the frozen UniverseSnapshot for one run
type Builder struct {
	repo   contracts.MetricsRepository
	cfg    *strategyconfig.Config
	logger *logger.Logger
}

// NewBuilder creates a new Universe Builder
func NewBuilder(repo contracts.MetricsRepository, cfg *strategyconfig.Config, log *logger.Logger) *Builder {
	return &Builder{
		repo:   repo,
		cfg:    cfg,
		logger: log,
	}
}

// Build reads every entity's metrics for the anchored evaluation date
// ⭐ SSOT: S1 → S2 유니버스 스냅샷 생성
//
// Repository failures and duplicate entity ids are wrapped with
// contracts.ErrRepository and abort the run.
func (b *Builder) Build(ctx context.Context, snapshotID string, date time.Time, period contracts.PeriodType) (*contracts.UniverseSnapshot, error) {
	asOf := period.AnchorDate(date)
	notBefore := b.cfg.StalenessWindow(asOf)

	entities, err := b.repo.ListEntities(ctx, asOf)
	if err != nil {
		return nil, fmt.Errorf("%w: list entities: %v", contracts.ErrRepository, err)
	}

	// 동일 entity 중복 시 백분위 모집단이 왜곡되므로 run 중단
	seen := make(map[string]struct{}, len(entities))
	for _, e := range entities {
		if _, dup := seen[e.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate entity %s", contracts.ErrRepository, e.ID)
		}
		seen[e.ID] = struct{}{}
	}

	rows, err := b.repo.LatestMetrics(ctx, asOf, notBefore, b.cfg.MetricNames())
	if err != nil {
		return nil, fmt.Errorf("%w: load metrics: %v", contracts.ErrRepository, err)
	}

	values, dropped := resolveLatest(rows, asOf, notBefore)
	snapshot := contracts.NewUniverseSnapshot(snapshotID, asOf, period, entities, values)

	for _, metric := range b.cfg.MetricNames() {
		b.logger.WithFields(map[string]interface{}{
			"metric":   metric,
			"coverage": snapshot.Coverage(metric),
		}).Debug("Metric coverage")
	}

	b.logger.WithFields(map[string]interface{}{
		"snapshot_id":  snapshotID,
		"as_of_date":   asOf.Format("2006-01-02"),
		"period_type":  string(period),
		"not_before":   notBefore.Format("2006-01-02"),
		"entity_count": snapshot.Count(),
		"metric_rows":  len(rows),
		"dropped_rows": dropped,
	}).Info("Universe snapshot built")

	return snapshot, nil
}

// resolveLatest keeps, per (metric, entity), the latest row inside [notBefore, asOf].
// Rows outside the window are dropped; a nil value on the latest row means absent.
func resolveLatest(rows []contracts.MetricSnapshot, asOf, notBefore time.Time) (map[string]map[string]*float64, int) {
	type latest struct {
		date  time.Time
		value *float64
	}

	picked := make(map[string]map[string]latest)
	dropped := 0

	for _, row := range rows {
		if row.AsOfDate.After(asOf) || row.AsOfDate.Before(notBefore) {
			dropped++
			continue
		}

		byEntity, ok := picked[row.MetricName]
		if !ok {
			byEntity = make(map[string]latest)
			picked[row.MetricName] = byEntity
		}

		if cur, seen := byEntity[row.EntityID]; seen && !row.AsOfDate.After(cur.date) {
			continue
		}
		byEntity[row.EntityID] = latest{date: row.AsOfDate, value: row.Value}
	}

	values := make(map[string]map[string]*float64, len(picked))
	for metric, byEntity := range picked {
		m := make(map[string]*float64, len(byEntity))
		for id, l := range byEntity {
			m[id] = l.value
		}
		values[metric] = m
	}

	return values, dropped
}
