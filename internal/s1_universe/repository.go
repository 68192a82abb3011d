package s1_universe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/factorscore/internal/contracts"
)

// Repository reads raw metrics from PostgreSQL (read-only MetricsRepository)
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new Repository instance
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// ListEntities returns entities active and listed on the date
func (r *Repository) ListEntities(ctx context.Context, date time.Time) ([]contracts.Entity, error) {
	query := `
		SELECT entity_id, COALESCE(sector, '')
		FROM data.entities
		WHERE status = 'active'
		  AND (listed_date IS NULL OR listed_date <= $1)
		  AND (delisted_date IS NULL OR delisted_date > $1)
		ORDER BY entity_id
	`

	rows, err := r.db.Query(ctx, query, date)
	if err != nil {
		return nil, fmt.Errorf("query entities: %w", err)
	}
	defer rows.Close()

	entities := make([]contracts.Entity, 0)
	for rows.Next() {
		var e contracts.Entity
		if err := rows.Scan(&e.ID, &e.Sector); err != nil {
			return nil, fmt.Errorf("scan entity: %w", err)
		}
		entities = append(entities, e)
	}

	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate entities: %w", rows.Err())
	}

	return entities, nil
}

// LatestMetrics returns the latest row per (entity, metric) inside [notBefore, date]
func (r *Repository) LatestMetrics(ctx context.Context, date, notBefore time.Time, metrics []string) ([]contracts.MetricSnapshot, error) {
	query := `
		SELECT DISTINCT ON (entity_id, metric_name)
			entity_id, as_of_date, metric_name, value
		FROM data.metric_snapshots
		WHERE as_of_date <= $1
		  AND as_of_date >= $2
		  AND metric_name = ANY($3)
		ORDER BY entity_id, metric_name, as_of_date DESC
	`

	rows, err := r.db.Query(ctx, query, date, notBefore, metrics)
	if err != nil {
		return nil, fmt.Errorf("query metrics: %w", err)
	}
	defer rows.Close()

	out := make([]contracts.MetricSnapshot, 0)
	for rows.Next() {
		var m contracts.MetricSnapshot
		if err := rows.Scan(&m.EntityID, &m.AsOfDate, &m.MetricName, &m.Value); err != nil {
			return nil, fmt.Errorf("scan metric: %w", err)
		}
		out = append(out, m)
	}

	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate metrics: %w", rows.Err())
	}

	return out, nil
}

// SaveSnapshot stores the frozen snapshot used by a run (coverage + full values)
func (r *Repository) SaveSnapshot(ctx context.Context, runID string, snapshot *contracts.UniverseSnapshot, metrics []string) error {
	coverageJSON, entitiesJSON, valuesJSON, err := encodeSnapshot(snapshot, metrics)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO scoring.universe_snapshots (
			snapshot_id, run_id, as_of_date, period_type,
			entity_count, coverage, entities, metric_values, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
	`

	_, err = r.db.Exec(ctx, query,
		snapshot.SnapshotID,
		runID,
		snapshot.AsOfDate,
		string(snapshot.PeriodType),
		snapshot.Count(),
		coverageJSON,
		entitiesJSON,
		valuesJSON,
	)
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}

	return nil
}

// LoadSnapshot rebuilds a stored snapshot so a run can be replayed
func (r *Repository) LoadSnapshot(ctx context.Context, snapshotID string) (*contracts.UniverseSnapshot, error) {
	query := `
		SELECT as_of_date, period_type, entities, metric_values
		FROM scoring.universe_snapshots
		WHERE snapshot_id = $1
	`

	var (
		asOf         time.Time
		period       string
		entitiesJSON []byte
		valuesJSON   []byte
	)
	err := r.db.QueryRow(ctx, query, snapshotID).Scan(&asOf, &period, &entitiesJSON, &valuesJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("snapshot %s: %w", snapshotID, ErrSnapshotNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query snapshot: %w", err)
	}

	return decodeSnapshot(snapshotID, asOf, contracts.PeriodType(period), entitiesJSON, valuesJSON)
}

// ErrSnapshotNotFound is returned by LoadSnapshot for an unknown id
var ErrSnapshotNotFound = errors.New("snapshot not found")

func encodeSnapshot(snapshot *contracts.UniverseSnapshot, metrics []string) (coverage, entities, values []byte, err error) {
	cov := make(map[string]float64, len(metrics))
	for _, m := range metrics {
		cov[m] = snapshot.Coverage(m)
	}

	rec := snapshot.Record()

	if coverage, err = json.Marshal(cov); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal coverage: %w", err)
	}
	if entities, err = json.Marshal(rec.Entities); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal entities: %w", err)
	}
	if values, err = json.Marshal(rec.Values); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal metric values: %w", err)
	}
	return coverage, entities, values, nil
}

func decodeSnapshot(snapshotID string, asOf time.Time, period contracts.PeriodType, entitiesJSON, valuesJSON []byte) (*contracts.UniverseSnapshot, error) {
	rec := contracts.SnapshotRecord{
		SnapshotID: snapshotID,
		AsOfDate:   asOf,
		PeriodType: period,
	}
	if err := json.Unmarshal(entitiesJSON, &rec.Entities); err != nil {
		return nil, fmt.Errorf("decode entities: %w", err)
	}
	if err := json.Unmarshal(valuesJSON, &rec.Values); err != nil {
		return nil, fmt.Errorf("decode metric values: %w", err)
	}
	return rec.Snapshot(), nil
}
