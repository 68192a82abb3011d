package strategyconfig

import (
	"time"

	"github.com/wonny/factorscore/internal/contracts"
)

// Config는 스코어링 엔진의 전체 설정
// 한 번 로드되면 변경하지 않음: run 결과는 (UniverseSnapshot, Config)로 재현 가능
type Config struct {
	Meta           Meta           `yaml:"meta" json:"meta"`
	Universe       Universe       `yaml:"universe" json:"universe"`
	Normalization  Normalization  `yaml:"normalization" json:"normalization"`
	Factors        []FactorSpec   `yaml:"factors" json:"factors"`
	Composite      Composite      `yaml:"composite" json:"composite"`
	Trend          Trend          `yaml:"trend" json:"trend"`
	Recommendation Recommendation `yaml:"recommendation" json:"recommendation"`
}

// Meta 메타 정보
type Meta struct {
	StrategyID string `yaml:"strategy_id" json:"strategy_id"`
	Version    string `yaml:"version" json:"version"`
}

// Universe S1: 스냅샷 수집 규칙
type Universe struct {
	MaxStalenessDays int `yaml:"max_staleness_days" json:"max_staleness_days"`
}

// Normalization S2: 횡단면 정규화
type Normalization struct {
	WinsorizeLowPct  float64 `yaml:"winsorize_low_pct" json:"winsorize_low_pct"`   // 0.01 = 1st percentile
	WinsorizeHighPct float64 `yaml:"winsorize_high_pct" json:"winsorize_high_pct"` // 0.99 = 99th percentile
	ZScoreClip       float64 `yaml:"zscore_clip" json:"zscore_clip"`
	SectorMinPeers   int     `yaml:"sector_min_peers" json:"sector_min_peers"` // 미만이면 전체 분포로 fallback
}

// Normalization methods
const (
	MethodPercentile = "percentile"
	MethodZScore     = "zscore"
)

// FactorSpec S3: 팩터 정의 (그룹 → 서브 지표 트리)
type FactorSpec struct {
	Name       contracts.Factor `yaml:"name" json:"name"`
	Weight     float64          `yaml:"weight" json:"weight"`           // composite 가중치
	MinPresent int              `yaml:"min_present" json:"min_present"` // 최소 유효 서브 지표 수
	Groups     []GroupSpec      `yaml:"groups" json:"groups"`
}

// GroupSpec 팩터 내부 그룹
type GroupSpec struct {
	Name    string       `yaml:"name" json:"name"`
	Weight  float64      `yaml:"weight" json:"weight"` // 팩터 내 비중
	Metrics []MetricSpec `yaml:"metrics" json:"metrics"`
}

// MetricSpec 서브 지표
type MetricSpec struct {
	Name           string              `yaml:"name" json:"name"`
	Weight         float64             `yaml:"weight" json:"weight"` // 그룹 내 비중
	Direction      contracts.Direction `yaml:"direction" json:"direction"`
	SectorRelative bool                `yaml:"sector_relative,omitempty" json:"sector_relative,omitempty"`
	Method         string              `yaml:"method,omitempty" json:"method,omitempty"` // 기본: percentile
	Min            *float64            `yaml:"min,omitempty" json:"min,omitempty"`       // plausibility 하한
	Max            *float64            `yaml:"max,omitempty" json:"max,omitempty"`       // plausibility 상한
}

// Composite S4: 종합 점수
type Composite struct {
	MinFactors          int    `yaml:"min_factors" json:"min_factors"`
	MissingFactorPolicy string `yaml:"missing_factor_policy" json:"missing_factor_policy"` // 고정: renormalize
}

// MissingFactorRenormalize is the only supported composite policy
const MissingFactorRenormalize = "renormalize"

// Trend S4: 직전 run 대비 추세
type Trend struct {
	TolerancePts float64 `yaml:"tolerance_pts" json:"tolerance_pts"`
}

// Recommendation S4: composite → 라벨
type Recommendation struct {
	Thresholds []Threshold `yaml:"thresholds" json:"thresholds"` // min_score 내림차순
}

// Threshold maps composite >= MinScore to Label
type Threshold struct {
	Label    contracts.Recommendation `yaml:"label" json:"label"`
	MinScore float64                  `yaml:"min_score" json:"min_score"`
}

// Factor returns the spec for a factor
func (c *Config) Factor(f contracts.Factor) (FactorSpec, bool) {
	for _, spec := range c.Factors {
		if spec.Name == f {
			return spec, true
		}
	}
	return FactorSpec{}, false
}

// FactorWeights returns composite weights keyed by factor
func (c *Config) FactorWeights() map[contracts.Factor]float64 {
	weights := make(map[contracts.Factor]float64, len(c.Factors))
	for _, spec := range c.Factors {
		weights[spec.Name] = spec.Weight
	}
	return weights
}

// MetricNames returns every distinct raw metric the config reads, in declaration order
func (c *Config) MetricNames() []string {
	seen := make(map[string]bool)
	names := make([]string, 0)
	for _, f := range c.Factors {
		for _, m := range f.Metrics() {
			if !seen[m.Name] {
				seen[m.Name] = true
				names = append(names, m.Name)
			}
		}
	}
	return names
}

// TotalComponents returns the number of sub-metrics across all factors
func (c *Config) TotalComponents() int {
	total := 0
	for _, f := range c.Factors {
		total += len(f.Metrics())
	}
	return total
}

// StalenessWindow returns the oldest acceptable observation date for asOf
func (c *Config) StalenessWindow(asOf time.Time) time.Time {
	return asOf.AddDate(0, 0, -c.Universe.MaxStalenessDays)
}

// Metrics returns the flattened sub-metric list in declaration order
func (f FactorSpec) Metrics() []MetricSpec {
	out := make([]MetricSpec, 0)
	for _, g := range f.Groups {
		out = append(out, g.Metrics...)
	}
	return out
}

// EffectiveWeights returns group.weight × metric.weight per sub-metric, in declaration order
func (f FactorSpec) EffectiveWeights() []float64 {
	out := make([]float64, 0)
	for _, g := range f.Groups {
		for _, m := range g.Metrics {
			out = append(out, g.Weight*m.Weight)
		}
	}
	return out
}

// EffectiveMethod returns the normalization method, defaulting to percentile
func (m MetricSpec) EffectiveMethod() string {
	if m.Method == "" {
		return MethodPercentile
	}
	return m.Method
}

// Plausible reports whether v lies inside the configured bounds (inclusive)
func (m MetricSpec) Plausible(v float64) bool {
	if m.Min != nil && v < *m.Min {
		return false
	}
	if m.Max != nil && v > *m.Max {
		return false
	}
	return true
}

// RunSnapshot 실행 설정 스냅샷 (재현성용)
type RunSnapshot struct {
	ConfigHash string    `json:"config_hash"`
	ConfigYAML string    `json:"config_yaml"`
	StrategyID string    `json:"strategy_id"`
	Version    string    `json:"version"`
	CreatedAt  time.Time `json:"created_at"`
}
