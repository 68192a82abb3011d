package s2_signals

import (
	"fmt"
	"math"
	"sort"

	"github.com/wonny/factorscore/internal/contracts"
	"github.com/wonny/factorscore/internal/strategyconfig"
)

// Tables holds the frozen normalization results of Phase 1.
// Read-only after PrepareTables returns; safe for concurrent readers.
type Tables struct {
	scores map[string]map[string]*float64 // factor/metric → entity → 0~100
	issues map[string][]contracts.DataIssue
	counts map[string]int
}

func tableKey(f contracts.Factor, metric string) string {
	return string(f) + "/" + metric
}

// PrepareTables normalizes every configured sub-metric over the whole snapshot.
// ⭐ SSOT: Phase 1 barrier. Phase 2 starts only after this returns.
//
// Missing values and values outside the plausibility bounds are excluded from
// the distribution and recorded as DataIssues for the affected entity.
func PrepareTables(snapshot *contracts.UniverseSnapshot, cfg *strategyconfig.Config) *Tables {
	t := &Tables{
		scores: make(map[string]map[string]*float64),
		issues: make(map[string][]contracts.DataIssue),
		counts: make(map[string]int),
	}

	sectors := snapshot.Sectors()

	for _, factor := range cfg.Factors {
		for _, metric := range factor.Metrics() {
			column := snapshot.Column(metric.Name)
			filtered := make([]contracts.MetricValue, len(column))

			for i, mv := range column {
				filtered[i] = contracts.MetricValue{EntityID: mv.EntityID}

				if mv.Value == nil {
					t.addIssue(contracts.DataIssue{
						Kind:     contracts.ErrMissingMetric,
						EntityID: mv.EntityID,
						Factor:   factor.Name,
						Metric:   metric.Name,
					})
					continue
				}

				v := *mv.Value
				finite := !math.IsNaN(v) && !math.IsInf(v, 0)
				if !finite || !metric.Plausible(v) {
					issue := contracts.DataIssue{
						Kind:     contracts.ErrImplausibleValue,
						EntityID: mv.EntityID,
						Factor:   factor.Name,
						Metric:   metric.Name,
						Detail:   boundsDetail(metric, v),
					}
					if finite {
						issue.RawValue = contracts.Float(v)
					}
					t.addIssue(issue)
					continue
				}

				filtered[i].Value = contracts.Float(v)
			}

			t.scores[tableKey(factor.Name, metric.Name)] = Normalize(filtered, metric.Direction, sectors, OptionsFor(cfg.Normalization, metric))
		}
	}

	return t
}

func (t *Tables) addIssue(issue contracts.DataIssue) {
	t.issues[issue.EntityID] = append(t.issues[issue.EntityID], issue)
	t.counts[issue.KindName()]++
}

// Score returns the normalized score of one sub-metric, nil when excluded
func (t *Tables) Score(f contracts.Factor, metric, entityID string) *float64 {
	byEntity, ok := t.scores[tableKey(f, metric)]
	if !ok {
		return nil
	}
	return byEntity[entityID]
}

// Issues returns the data issues recorded for an entity during normalization
func (t *Tables) Issues(entityID string) []contracts.DataIssue {
	return t.issues[entityID]
}

// IssueCounts returns issue totals by kind name
func (t *Tables) IssueCounts() map[string]int {
	out := make(map[string]int, len(t.counts))
	for k, v := range t.counts {
		out[k] = v
	}
	return out
}

// Keys returns the prepared table keys in sorted order
func (t *Tables) Keys() []string {
	keys := make([]string, 0, len(t.scores))
	for k := range t.scores {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func boundsDetail(m strategyconfig.MetricSpec, v float64) string {
	switch {
	case math.IsNaN(v) || math.IsInf(v, 0):
		return "not finite"
	case m.Min != nil && m.Max != nil:
		return fmt.Sprintf("outside [%g, %g]", *m.Min, *m.Max)
	case m.Min != nil:
		return fmt.Sprintf("below %g", *m.Min)
	case m.Max != nil:
		return fmt.Sprintf("above %g", *m.Max)
	default:
		return ""
	}
}
