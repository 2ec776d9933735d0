package pricing

// TierRule documents one row of the published tier table.
type TierRule struct {
	Tier            string `json:"tier"`
	Condition       string `json:"condition"`
	PriceAdjustment string `json:"price_adjustment"`
	Purpose         string `json:"purpose"`
}

// RulesDoc is the full transparency document served at GET /rules.
type RulesDoc struct {
	System            string            `json:"system"`
	Method            string            `json:"method"`
	AIUsed            bool              `json:"ai_used"`
	Description       string            `json:"description"`
	SupplyDemandTiers []TierRule        `json:"supply_demand_tiers"`
	Safeguards        map[string]string `json:"safeguards"`
	SeasonalAdjust    map[string]string `json:"seasonal_adjustment"`
	Formula           map[string]string `json:"formula"`
}

// Rules returns the complete pricing rule set. Anyone can see exactly how
// prices are calculated.
func Rules() RulesDoc {
	return RulesDoc{
		System:      "ETHANI Food Price Stabilization",
		Method:      "Rule-Based Supply-Demand",
		AIUsed:      false,
		Description: "Deterministic pricing based on supply-demand ratio",
		SupplyDemandTiers: []TierRule{
			{
				Tier:            "Critical Shortage",
				Condition:       "Ratio > 1.30 (Demand > 130% of Supply)",
				PriceAdjustment: "+15%",
				Purpose:         "Encourage farmers to increase production",
			},
			{
				Tier:            "Shortage",
				Condition:       "Ratio > 1.10 (Demand > 110% of Supply)",
				PriceAdjustment: "+8%",
				Purpose:         "Incentivize supply increase",
			},
			{
				Tier:            "Balanced",
				Condition:       "0.80 ≤ Ratio ≤ 1.10",
				PriceAdjustment: "0% (base price)",
				Purpose:         "Market equilibrium",
			},
			{
				Tier:            "Surplus",
				Condition:       "Ratio < 0.80 (Demand < 80% of Supply)",
				PriceAdjustment: "-10%",
				Purpose:         "Protect consumers from over-supply",
			},
		},
		Safeguards: map[string]string{
			"max_price_increase": "+50%",
			"max_price_decrease": "-30%",
			"purpose":            "Prevent extreme volatility and price shocks",
		},
		SeasonalAdjust: map[string]string{
			"range":       "0.5 to 2.0",
			"default":     "1.0",
			"description": "Adjust for seasonal factors (harvest time, holidays, etc.)",
		},
		Formula: map[string]string{
			"basic":   "Final Price = Base Price × Multiplier × Season Factor",
			"ratio":   "Ratio = Demand / Supply",
			"example": "If base = 100, demand = 150, supply = 100: Ratio = 1.50 → Shortage → Multiplier 1.15 → Price = 115",
		},
	}
}
