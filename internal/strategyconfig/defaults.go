package strategyconfig

import "github.com/wonny/factorscore/internal/contracts"

// Default returns the built-in scoring configuration.
// ⭐ SSOT: config/scoring/default.yaml 과 동일해야 함 (TestDefaultMatchesYAML)
func Default() *Config {
	return &Config{
		Meta: Meta{
			StrategyID: "multi_factor_v1",
			Version:    "1.0.0",
		},
		Universe: Universe{
			MaxStalenessDays: 400,
		},
		Normalization: Normalization{
			WinsorizeLowPct:  0.01,
			WinsorizeHighPct: 0.99,
			ZScoreClip:       3.0,
			SectorMinPeers:   5,
		},
		Factors: []FactorSpec{
			{
				Name:       contracts.FactorMomentum,
				Weight:     0.12,
				MinPresent: 2,
				Groups: []GroupSpec{
					{Name: "price_returns", Weight: 0.70, Metrics: []MetricSpec{
						{Name: "return_1m", Weight: 0.15, Direction: contracts.HigherIsBetter, Min: bound(-1)},
						{Name: "return_3m", Weight: 0.25, Direction: contracts.HigherIsBetter, Min: bound(-1)},
						{Name: "return_6m", Weight: 0.30, Direction: contracts.HigherIsBetter, Min: bound(-1)},
						{Name: "return_12m", Weight: 0.30, Direction: contracts.HigherIsBetter, Min: bound(-1)},
					}},
					{Name: "trend_strength", Weight: 0.30, Metrics: []MetricSpec{
						{Name: "price_to_52w_high", Weight: 0.50, Direction: contracts.HigherIsBetter, Min: bound(0), Max: bound(1.5)},
						{Name: "volume_trend", Weight: 0.50, Direction: contracts.HigherIsBetter, Min: bound(-1), Max: bound(50)},
					}},
				},
			},
			{
				Name:       contracts.FactorValue,
				Weight:     0.18,
				MinPresent: 2,
				Groups: []GroupSpec{
					{Name: "valuation_multiples", Weight: 0.45, Metrics: []MetricSpec{
						{Name: "pe_ratio", Weight: 0.40, Direction: contracts.LowerIsBetter, Min: bound(0), Max: bound(500)},
						{Name: "pb_ratio", Weight: 0.30, Direction: contracts.LowerIsBetter, Min: bound(0), Max: bound(100)},
						{Name: "ps_ratio", Weight: 0.30, Direction: contracts.LowerIsBetter, Min: bound(0), Max: bound(200)},
					}},
					{Name: "enterprise_value", Weight: 0.35, Metrics: []MetricSpec{
						{Name: "ev_ebitda", Weight: 0.60, Direction: contracts.LowerIsBetter, Min: bound(0), Max: bound(300)},
						{Name: "ev_sales", Weight: 0.40, Direction: contracts.LowerIsBetter, Min: bound(0), Max: bound(200)},
					}},
					{Name: "growth_adjusted", Weight: 0.15, Metrics: []MetricSpec{
						{Name: "peg_ratio", Weight: 1.0, Direction: contracts.LowerIsBetter, Min: bound(0), Max: bound(50)},
					}},
					{Name: "dividend", Weight: 0.05, Metrics: []MetricSpec{
						{Name: "dividend_yield", Weight: 1.0, Direction: contracts.HigherIsBetter, Min: bound(0), Max: bound(0.5)},
					}},
				},
			},
			{
				Name:       contracts.FactorQuality,
				Weight:     0.25,
				MinPresent: 3,
				Groups: []GroupSpec{
					{Name: "profitability", Weight: 0.50, Metrics: []MetricSpec{
						{Name: "roe", Weight: 0.35, Direction: contracts.HigherIsBetter, Min: bound(-5), Max: bound(5)},
						{Name: "roa", Weight: 0.25, Direction: contracts.HigherIsBetter, Min: bound(-2), Max: bound(2)},
						{Name: "gross_margin", Weight: 0.20, Direction: contracts.HigherIsBetter, Min: bound(-5), Max: bound(1)},
						{Name: "operating_margin", Weight: 0.20, Direction: contracts.HigherIsBetter, Min: bound(-5), Max: bound(1)},
					}},
					{Name: "balance_sheet", Weight: 0.30, Metrics: []MetricSpec{
						{Name: "debt_to_equity", Weight: 0.60, Direction: contracts.LowerIsBetter, SectorRelative: true, Min: bound(0), Max: bound(50)},
						{Name: "current_ratio", Weight: 0.40, Direction: contracts.HigherIsBetter, Min: bound(0), Max: bound(50)},
					}},
					{Name: "earnings_quality", Weight: 0.20, Metrics: []MetricSpec{
						{Name: "accruals_ratio", Weight: 0.50, Direction: contracts.LowerIsBetter, Min: bound(-1), Max: bound(1)},
						{Name: "fcf_to_net_income", Weight: 0.50, Direction: contracts.HigherIsBetter, Min: bound(-20), Max: bound(20)},
					}},
				},
			},
			{
				Name:       contracts.FactorGrowth,
				Weight:     0.18,
				MinPresent: 2,
				Groups: []GroupSpec{
					{Name: "revenue", Weight: 0.40, Metrics: []MetricSpec{
						{Name: "revenue_growth_yoy", Weight: 0.60, Direction: contracts.HigherIsBetter, Min: bound(-1), Max: bound(20)},
						{Name: "revenue_growth_3y_cagr", Weight: 0.40, Direction: contracts.HigherIsBetter, Min: bound(-1), Max: bound(10)},
					}},
					{Name: "earnings", Weight: 0.45, Metrics: []MetricSpec{
						{Name: "eps_growth_yoy", Weight: 0.60, Direction: contracts.HigherIsBetter, Min: bound(-10), Max: bound(50)},
						{Name: "eps_growth_3y_cagr", Weight: 0.40, Direction: contracts.HigherIsBetter, Min: bound(-1), Max: bound(20)},
					}},
					{Name: "cash_flow", Weight: 0.15, Metrics: []MetricSpec{
						{Name: "fcf_growth_yoy", Weight: 1.0, Direction: contracts.HigherIsBetter, Min: bound(-10), Max: bound(50)},
					}},
				},
			},
			{
				Name:       contracts.FactorStability,
				Weight:     0.16,
				MinPresent: 2,
				Groups: []GroupSpec{
					{Name: "price_risk", Weight: 0.60, Metrics: []MetricSpec{
						{Name: "volatility_1y", Weight: 0.40, Direction: contracts.LowerIsBetter, Method: MethodZScore, Min: bound(0), Max: bound(5)},
						{Name: "beta", Weight: 0.30, Direction: contracts.LowerIsBetter, Min: bound(-3), Max: bound(5)},
						{Name: "max_drawdown_1y", Weight: 0.30, Direction: contracts.LowerIsBetter, Min: bound(0), Max: bound(1)},
					}},
					{Name: "fundamental_risk", Weight: 0.40, Metrics: []MetricSpec{
						{Name: "earnings_variability", Weight: 0.60, Direction: contracts.LowerIsBetter, Min: bound(0), Max: bound(10)},
						{Name: "interest_coverage", Weight: 0.40, Direction: contracts.HigherIsBetter, SectorRelative: true, Min: bound(-100), Max: bound(1000)},
					}},
				},
			},
			{
				Name:       contracts.FactorPositioning,
				Weight:     0.11,
				MinPresent: 2,
				Groups: []GroupSpec{
					{Name: "ownership", Weight: 0.60, Metrics: []MetricSpec{
						{Name: "institutional_ownership", Weight: 0.60, Direction: contracts.HigherIsBetter, Min: bound(0), Max: bound(1)},
						{Name: "insider_ownership_change", Weight: 0.40, Direction: contracts.HigherIsBetter, Min: bound(-1), Max: bound(1)},
					}},
					{Name: "short_interest", Weight: 0.40, Metrics: []MetricSpec{
						{Name: "short_interest_pct", Weight: 0.60, Direction: contracts.LowerIsBetter, Min: bound(0), Max: bound(1)},
						{Name: "days_to_cover", Weight: 0.40, Direction: contracts.LowerIsBetter, Min: bound(0), Max: bound(100)},
					}},
				},
			},
		},
		Composite: Composite{
			MinFactors:          4,
			MissingFactorPolicy: MissingFactorRenormalize,
		},
		Trend: Trend{
			TolerancePts: 2.0,
		},
		Recommendation: Recommendation{
			Thresholds: []Threshold{
				{Label: contracts.RecommendationStrongBuy, MinScore: 80},
				{Label: contracts.RecommendationBuy, MinScore: 65},
				{Label: contracts.RecommendationHold, MinScore: 45},
				{Label: contracts.RecommendationSell, MinScore: 30},
				{Label: contracts.RecommendationStrongSell, MinScore: 0},
			},
		},
	}
}

func bound(v float64) *float64 {
	return &v
}
