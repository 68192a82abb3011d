package selection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/wonny/factorscore/internal/contracts"
)

// ErrRunNotFound is returned by GetRun for an unknown run id
var ErrRunNotFound = errors.New("run not found")

// scorePlaces is the persisted precision of every score column
const scorePlaces = 2

// Repository handles composite score persistence
// ⭐ SSOT: 점수 저장/조회는 여기서만 (append-only)
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new score repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// persistedFactor is the jsonb shape of one factor inside scoring.composite_scores.factors
type persistedFactor struct {
	Score        decimal.NullDecimal `json:"score"`
	Trend        contracts.Trend     `json:"trend"`
	Contributing int                 `json:"contributing_components"`
	Available    int                 `json:"available_components"`
}

// Write appends one record. Re-running a key inserts a superseding row.
func (r *Repository) Write(ctx context.Context, cs *contracts.CompositeScore) error {
	factors := make(map[contracts.Factor]persistedFactor, len(cs.Factors))
	for f, fs := range cs.Factors {
		factors[f] = persistedFactor{
			Score:        roundScore(fs.Score),
			Trend:        fs.Trend,
			Contributing: fs.ContributingComponents,
			Available:    fs.AvailableComponents,
		}
	}

	factorsJSON, err := json.Marshal(factors)
	if err != nil {
		return fmt.Errorf("failed to marshal factors: %w", err)
	}

	query := `
		INSERT INTO scoring.composite_scores (
			run_id, entity_id, as_of_date, period_type,
			momentum, value, quality, growth, stability, positioning,
			composite, confidence, composite_trend, recommendation,
			present_factors, factors
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`

	_, err = r.pool.Exec(ctx, query,
		cs.RunID, cs.EntityID, cs.AsOfDate, string(cs.PeriodType),
		roundScore(cs.FactorValue(contracts.FactorMomentum)),
		roundScore(cs.FactorValue(contracts.FactorValue)),
		roundScore(cs.FactorValue(contracts.FactorQuality)),
		roundScore(cs.FactorValue(contracts.FactorGrowth)),
		roundScore(cs.FactorValue(contracts.FactorStability)),
		roundScore(cs.FactorValue(contracts.FactorPositioning)),
		roundScore(cs.Composite), roundScore(cs.Confidence),
		string(cs.CompositeTrend), string(cs.Recommendation),
		cs.PresentFactors, factorsJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to insert composite score: %w", err)
	}

	return nil
}

// Prior returns the latest record with as_of_date strictly before `before`
func (r *Repository) Prior(ctx context.Context, entityID string, period contracts.PeriodType, before time.Time) (*contracts.CompositeScore, error) {
	query := `
		SELECT run_id, as_of_date, composite, confidence, composite_trend,
		       recommendation, present_factors, factors
		FROM scoring.composite_scores
		WHERE entity_id = $1 AND period_type = $2 AND as_of_date < $3
		ORDER BY as_of_date DESC, created_at DESC
		LIMIT 1
	`

	var (
		cs          contracts.CompositeScore
		composite   decimal.NullDecimal
		confidence  decimal.NullDecimal
		trend       string
		rec         string
		factorsJSON []byte
	)

	err := r.pool.QueryRow(ctx, query, entityID, string(period), before).Scan(
		&cs.RunID, &cs.AsOfDate, &composite, &confidence, &trend,
		&rec, &cs.PresentFactors, &factorsJSON,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get prior score: %w", err)
	}

	cs.EntityID = entityID
	cs.PeriodType = period
	cs.Composite = fromDecimal(composite)
	cs.Confidence = fromDecimal(confidence)
	cs.CompositeTrend = contracts.Trend(trend)
	cs.Recommendation = contracts.Recommendation(rec)

	factors, err := decodeFactors(factorsJSON)
	if err != nil {
		return nil, err
	}
	cs.Factors = factors

	return &cs, nil
}

// SaveRun stores the audit summary of one run
func (r *Repository) SaveRun(ctx context.Context, s *contracts.RunSummary) error {
	issuesJSON, err := json.Marshal(s.IssueCounts)
	if err != nil {
		return fmt.Errorf("failed to marshal issue counts: %w", err)
	}

	query := `
		INSERT INTO scoring.runs (
			run_id, as_of_date, period_type, config_hash, universe_size,
			written, null_composite, rejected, write_failed, skipped,
			issue_counts, started_at, finished_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err = r.pool.Exec(ctx, query,
		s.RunID, s.AsOfDate, string(s.PeriodType), s.ConfigHash, s.UniverseSize,
		s.Written, s.NullComposite, s.Rejected, s.WriteFailed, s.Skipped,
		issuesJSON, s.StartedAt, s.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save run summary: %w", err)
	}

	return nil
}

// GetRun retrieves one run summary
func (r *Repository) GetRun(ctx context.Context, runID string) (*contracts.RunSummary, error) {
	query := `
		SELECT run_id, as_of_date, period_type, config_hash, universe_size,
		       written, null_composite, rejected, write_failed, skipped,
		       issue_counts, started_at, finished_at
		FROM scoring.runs
		WHERE run_id = $1
	`

	var (
		s          contracts.RunSummary
		period     string
		issuesJSON []byte
	)
	err := r.pool.QueryRow(ctx, query, runID).Scan(
		&s.RunID, &s.AsOfDate, &period, &s.ConfigHash, &s.UniverseSize,
		&s.Written, &s.NullComposite, &s.Rejected, &s.WriteFailed, &s.Skipped,
		&issuesJSON, &s.StartedAt, &s.FinishedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", runID, ErrRunNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	s.PeriodType = contracts.PeriodType(period)
	if len(issuesJSON) > 0 {
		if err := json.Unmarshal(issuesJSON, &s.IssueCounts); err != nil {
			return nil, fmt.Errorf("failed to unmarshal issue counts: %w", err)
		}
	}

	return &s, nil
}

func decodeFactors(data []byte) (map[contracts.Factor]contracts.FactorScore, error) {
	stored := make(map[contracts.Factor]persistedFactor)
	if len(data) > 0 {
		if err := json.Unmarshal(data, &stored); err != nil {
			return nil, fmt.Errorf("failed to unmarshal factors: %w", err)
		}
	}

	out := make(map[contracts.Factor]contracts.FactorScore, len(stored))
	for f, pf := range stored {
		out[f] = contracts.FactorScore{
			Factor:                 f,
			Score:                  fromDecimal(pf.Score),
			Trend:                  pf.Trend,
			ContributingComponents: pf.Contributing,
			AvailableComponents:    pf.Available,
		}
	}
	return out, nil
}

// roundScore rounds half away from zero to scorePlaces, keeping NULL as NULL
func roundScore(v *float64) decimal.NullDecimal {
	if v == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: decimal.NewFromFloat(*v).Round(scorePlaces), Valid: true}
}

func fromDecimal(d decimal.NullDecimal) *float64 {
	if !d.Valid {
		return nil
	}
	v := d.Decimal.InexactFloat64()
	return &v
}

// RoundedCopy returns cs with every score rounded to the persisted precision
func RoundedCopy(cs *contracts.CompositeScore) *contracts.CompositeScore {
	out := *cs
	out.Composite = fromDecimal(roundScore(cs.Composite))
	out.Confidence = fromDecimal(roundScore(cs.Confidence))
	out.Factors = make(map[contracts.Factor]contracts.FactorScore, len(cs.Factors))
	for f, fs := range cs.Factors {
		fs.Score = fromDecimal(roundScore(fs.Score))
		out.Factors[f] = fs
	}
	return &out
}
