package s2_signals

import (
	"fmt"

	"github.com/wonny/factorscore/internal/contracts"
	"github.com/wonny/factorscore/internal/strategyconfig"
	"github.com/wonny/factorscore/pkg/logger"
)

// Registry holds one FactorComputer per factor in canonical order
// ⭐ SSOT: 팩터 계산기 등록은 여기서만
type Registry struct {
	computers []FactorComputer
}

// NewRegistry builds calculators for every factor defined in cfg.
// 새 팩터 추가 시 contracts.AllFactors()와 설정만 수정
func NewRegistry(cfg *strategyconfig.Config, log *logger.Logger) (*Registry, error) {
	r := &Registry{}

	for _, f := range contracts.AllFactors() {
		spec, ok := cfg.Factor(f)
		if !ok {
			return nil, fmt.Errorf("factor %s not configured", f)
		}

		c, err := NewCalculator(spec, log)
		if err != nil {
			return nil, fmt.Errorf("create %s calculator: %w", f, err)
		}
		r.computers = append(r.computers, c)
	}

	return r, nil
}

// Computers returns the calculators in canonical factor order
func (r *Registry) Computers() []FactorComputer {
	out := make([]FactorComputer, len(r.computers))
	copy(out, r.computers)
	return out
}

// ComputeAll runs every calculator for one entity
func (r *Registry) ComputeAll(entityID string, tables *Tables) map[contracts.Factor]contracts.FactorScore {
	out := make(map[contracts.Factor]contracts.FactorScore, len(r.computers))
	for _, c := range r.computers {
		out[c.Factor()] = c.Compute(entityID, tables)
	}
	return out
}
