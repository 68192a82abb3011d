package s1_universe

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/wonny/factorscore/internal/contracts"
)

// Fixture is the JSON input format for dry runs and tests
type Fixture struct {
	Entities []contracts.Entity `json:"entities"`
	Metrics  []FixtureMetric    `json:"metrics"`
}

// FixtureMetric is one raw metric row; a null value means explicitly absent
type FixtureMetric struct {
	EntityID string   `json:"entity_id"`
	AsOfDate string   `json:"as_of_date"` // YYYY-MM-DD
	Metric   string   `json:"metric"`
	Value    *float64 `json:"value"`
}

// MemoryRepository is an in-memory MetricsRepository
type MemoryRepository struct {
	entities []contracts.Entity
	rows     []contracts.MetricSnapshot
}

// NewMemoryRepository creates a repository over the given rows
func NewMemoryRepository(entities []contracts.Entity, rows []contracts.MetricSnapshot) *MemoryRepository {
	return &MemoryRepository{entities: entities, rows: rows}
}

// LoadFixture reads a JSON fixture file
func LoadFixture(path string) (*MemoryRepository, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}

	var fx Fixture
	if err := json.Unmarshal(data, &fx); err != nil {
		return nil, fmt.Errorf("decode fixture: %w", err)
	}

	rows := make([]contracts.MetricSnapshot, 0, len(fx.Metrics))
	for i, m := range fx.Metrics {
		d, err := time.Parse("2006-01-02", m.AsOfDate)
		if err != nil {
			return nil, fmt.Errorf("fixture metrics[%d]: invalid as_of_date %q: %w", i, m.AsOfDate, err)
		}
		rows = append(rows, contracts.MetricSnapshot{
			EntityID:   m.EntityID,
			AsOfDate:   d,
			MetricName: m.Metric,
			Value:      m.Value,
		})
	}

	return NewMemoryRepository(fx.Entities, rows), nil
}

// ListEntities returns all fixture entities sorted by id
func (m *MemoryRepository) ListEntities(_ context.Context, _ time.Time) ([]contracts.Entity, error) {
	out := make([]contracts.Entity, len(m.entities))
	copy(out, m.entities)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// LatestMetrics returns rows inside [notBefore, date] for the requested metrics
func (m *MemoryRepository) LatestMetrics(_ context.Context, date, notBefore time.Time, metrics []string) ([]contracts.MetricSnapshot, error) {
	wanted := make(map[string]bool, len(metrics))
	for _, name := range metrics {
		wanted[name] = true
	}

	out := make([]contracts.MetricSnapshot, 0)
	for _, row := range m.rows {
		if !wanted[row.MetricName] || row.AsOfDate.After(date) || row.AsOfDate.Before(notBefore) {
			continue
		}
		out = append(out, row)
	}
	return out, nil
}
