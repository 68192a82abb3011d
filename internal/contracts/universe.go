package contracts

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// PeriodType is the evaluation cadence of a run
type PeriodType string

const (
	PeriodDaily   PeriodType = "daily"
	PeriodWeekly  PeriodType = "weekly"
	PeriodMonthly PeriodType = "monthly"
)

// ParsePeriodType parses a period type string (case-insensitive)
func ParsePeriodType(s string) (PeriodType, error) {
	switch PeriodType(strings.ToLower(s)) {
	case PeriodDaily:
		return PeriodDaily, nil
	case PeriodWeekly:
		return PeriodWeekly, nil
	case PeriodMonthly:
		return PeriodMonthly, nil
	default:
		return "", fmt.Errorf("unknown period type %q (daily|weekly|monthly)", s)
	}
}

// AnchorDate resolves the evaluation date for the period.
// weekly: most recent Friday on/before date
// monthly: date itself if month-end, otherwise previous month-end
func (p PeriodType) AnchorDate(date time.Time) time.Time {
	d := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)

	switch p {
	case PeriodWeekly:
		offset := (int(d.Weekday()) - int(time.Friday) + 7) % 7
		return d.AddDate(0, 0, -offset)
	case PeriodMonthly:
		if d.AddDate(0, 0, 1).Month() != d.Month() {
			return d
		}
		return time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
	default:
		return d
	}
}

// MetricSnapshot is one raw metric value as stored by the metrics repository.
// Value nil means explicitly absent, never zero.
type MetricSnapshot struct {
	EntityID   string
	AsOfDate   time.Time
	MetricName string
	Value      *float64
}

// Entity is a member of the scoring universe
type Entity struct {
	ID     string `json:"id"`
	Sector string `json:"sector"`
}

// UniverseSnapshot is the frozen cross-section for one evaluation run
// ⭐ SSOT: S1 → S2 유니버스 스냅샷 전달 (run 중 변경 금지)
type UniverseSnapshot struct {
	SnapshotID string     `json:"snapshot_id"`
	AsOfDate   time.Time  `json:"as_of_date"`
	PeriodType PeriodType `json:"period_type"`

	entities []Entity
	sectors  map[string]string
	values   map[string]map[string]*float64 // metric → entity → value
}

// NewUniverseSnapshot freezes entities and their resolved metric values.
// Inputs are copied; later changes to the arguments do not affect the snapshot.
func NewUniverseSnapshot(id string, asOf time.Time, period PeriodType, entities []Entity, values map[string]map[string]*float64) *UniverseSnapshot {
	sorted := make([]Entity, len(entities))
	copy(sorted, entities)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	sectors := make(map[string]string, len(sorted))
	for _, e := range sorted {
		sectors[e.ID] = e.Sector
	}

	frozen := make(map[string]map[string]*float64, len(values))
	for metric, byEntity := range values {
		m := make(map[string]*float64, len(byEntity))
		for id, v := range byEntity {
			if _, member := sectors[id]; !member {
				continue
			}
			if v != nil {
				m[id] = Float(*v)
			}
		}
		frozen[metric] = m
	}

	return &UniverseSnapshot{
		SnapshotID: id,
		AsOfDate:   asOf,
		PeriodType: period,
		entities:   sorted,
		sectors:    sectors,
		values:     frozen,
	}
}

// Entities returns entity ids sorted ascending
func (u *UniverseSnapshot) Entities() []string {
	ids := make([]string, len(u.entities))
	for i, e := range u.entities {
		ids[i] = e.ID
	}
	return ids
}

// Count returns the number of entities in the universe
func (u *UniverseSnapshot) Count() int {
	return len(u.entities)
}

// Sectors returns a copy of the entity → sector mapping
func (u *UniverseSnapshot) Sectors() map[string]string {
	out := make(map[string]string, len(u.sectors))
	for k, v := range u.sectors {
		out[k] = v
	}
	return out
}

// Value returns the resolved raw value, nil when absent
func (u *UniverseSnapshot) Value(entityID, metric string) *float64 {
	byEntity, ok := u.values[metric]
	if !ok {
		return nil
	}
	v, ok := byEntity[entityID]
	if !ok || v == nil {
		return nil
	}
	return Float(*v)
}

// Column returns the whole cross-section for one metric in entity order.
// Entities lacking the metric are included with a nil value.
func (u *UniverseSnapshot) Column(metric string) []MetricValue {
	col := make([]MetricValue, len(u.entities))
	for i, e := range u.entities {
		col[i] = MetricValue{EntityID: e.ID, Value: u.Value(e.ID, metric)}
	}
	return col
}

// Coverage returns the fraction of entities with a value for the metric
func (u *UniverseSnapshot) Coverage(metric string) float64 {
	if len(u.entities) == 0 {
		return 0
	}
	return float64(len(u.values[metric])) / float64(len(u.entities))
}

// MetricValue is one entry of a cross-sectional vector
type MetricValue struct {
	EntityID string
	Value    *float64
}

// SnapshotIDForRun names the universe snapshot of a run
func SnapshotIDForRun(runID string) string {
	return "snap-" + runID
}

// SnapshotRecord is the persisted form of a UniverseSnapshot.
// Replaying Snapshot() yields the same cross-section the run scored.
type SnapshotRecord struct {
	SnapshotID string                         `json:"snapshot_id"`
	AsOfDate   time.Time                      `json:"as_of_date"`
	PeriodType PeriodType                     `json:"period_type"`
	Entities   []Entity                       `json:"entities"`
	Values     map[string]map[string]*float64 `json:"values"` // metric → entity → value (absent = missing)
}

// Record exports the frozen snapshot for audit storage
func (u *UniverseSnapshot) Record() SnapshotRecord {
	entities := make([]Entity, len(u.entities))
	copy(entities, u.entities)

	values := make(map[string]map[string]*float64, len(u.values))
	for metric, byEntity := range u.values {
		m := make(map[string]*float64, len(byEntity))
		for id, v := range byEntity {
			m[id] = Float(*v)
		}
		values[metric] = m
	}

	return SnapshotRecord{
		SnapshotID: u.SnapshotID,
		AsOfDate:   u.AsOfDate,
		PeriodType: u.PeriodType,
		Entities:   entities,
		Values:     values,
	}
}

// Snapshot rebuilds the frozen snapshot from a stored record
func (r SnapshotRecord) Snapshot() *UniverseSnapshot {
	return NewUniverseSnapshot(r.SnapshotID, r.AsOfDate, r.PeriodType, r.Entities, r.Values)
}
