// Package pricing implements the ETHANI rule-based supply-demand price
// engine. All calculations are deterministic and reproducible: no external
// data sources, no model inference, just the published tier table.
package pricing

import (
	"errors"
	"fmt"
	"math"
)

// Supply-demand ratio thresholds.
const (
	CriticalShortageThreshold = 1.30
	ShortageThreshold         = 1.10
	SurplusThreshold          = 0.80
)

// Price multipliers per tier.
const (
	CriticalShortageMultiplier = 1.15
	ShortageMultiplier         = 1.08
	NormalMultiplier           = 1.0
	SurplusMultiplier          = 0.90
)

// Hard limits against extreme swings.
const (
	MaxPriceIncrease = 1.50
	MaxPriceDecrease = 0.70
)

// Season factor bounds.
const (
	MinSeasonFactor     = 0.5
	MaxSeasonFactor     = 2.0
	DefaultSeasonFactor = 1.0
)

// Validation errors surfaced to API clients.
var (
	ErrBasePriceNotPositive = errors.New("Base price must be positive")
	ErrNegativeSupply       = errors.New("Supply cannot be negative")
	ErrNegativeDemand       = errors.New("Demand cannot be negative")
	ErrDemandWithoutSupply  = errors.New("Cannot have demand with zero supply")
	ErrSeasonFactorRange    = errors.New("Season factor must be between 0.5 and 2.0")
)

// Tier classifies the supply-demand ratio.
type Tier string

const (
	TierCriticalShortage Tier = "critical_shortage"
	TierShortage         Tier = "shortage"
	TierBalanced         Tier = "balanced"
	TierSurplus          Tier = "surplus"
	TierError            Tier = "error"
)

// Calculation records the inputs and formulas behind a result so every price
// can be audited.
type Calculation struct {
	BasePrice    int     `json:"base_price"`
	Supply       int     `json:"supply"`
	Demand       int     `json:"demand"`
	SeasonFactor float64 `json:"season_factor"`
	RatioFormula string  `json:"ratio_formula,omitempty"`
	PriceFormula string  `json:"price_formula,omitempty"`
}

// Result is the outcome of a price calculation. Ratio is nil when there is
// no supply to compute one.
type Result struct {
	SuggestedPrice int         `json:"suggested_price"`
	Ratio          *float64    `json:"ratio"`
	Multiplier     float64     `json:"multiplier"`
	Reason         string      `json:"reason"`
	IsCapped       bool        `json:"is_capped"`
	Calculations   Calculation `json:"calculations"`
}

// RatioAnalysis explains a supply-demand ratio.
type RatioAnalysis struct {
	Ratio           *float64 `json:"ratio"`
	Tier            Tier     `json:"tier"`
	TierDescription string   `json:"tier_description"`
	Supply          int      `json:"supply"`
	Demand          int      `json:"demand"`
}

// Calculate applies the tier table, season factor and hard caps to produce a
// suggested price.
func Calculate(supply, demand, basePrice int, seasonFactor float64) Result {
	calc := Calculation{
		BasePrice:    basePrice,
		Supply:       supply,
		Demand:       demand,
		SeasonFactor: seasonFactor,
	}

	if supply <= 0 {
		return Result{
			SuggestedPrice: basePrice,
			Multiplier:     NormalMultiplier,
			Reason:         "No supply available - using base price",
			Calculations:   calc,
		}
	}

	ratio := float64(demand) / float64(supply)
	multiplier, tierReason := tierFor(ratio)

	calculated := float64(basePrice) * multiplier * seasonFactor

	maxAllowed := float64(basePrice) * MaxPriceIncrease
	minAllowed := float64(basePrice) * MaxPriceDecrease

	capped := false
	switch {
	case calculated > maxAllowed:
		calculated = maxAllowed
		tierReason += " [CAPPED at +50%]"
		capped = true
	case calculated < minAllowed:
		calculated = minAllowed
		tierReason += " [FLOORED at -30%]"
		capped = true
	}

	rounded := round2(ratio)
	calc.RatioFormula = fmt.Sprintf("%d / %d = %v", demand, supply, rounded)
	calc.PriceFormula = fmt.Sprintf("%d × %v × %v = %d", basePrice, round2(multiplier), seasonFactor, int(calculated))

	return Result{
		SuggestedPrice: int(math.Round(calculated)),
		Ratio:          &rounded,
		Multiplier:     round2(multiplier),
		Reason:         tierReason,
		IsCapped:       capped,
		Calculations:   calc,
	}
}

// Ratio classifies the supply-demand ratio into a pricing tier.
func Ratio(supply, demand int) RatioAnalysis {
	if supply <= 0 {
		return RatioAnalysis{
			Tier:            TierError,
			TierDescription: "No supply to calculate ratio",
			Supply:          supply,
			Demand:          demand,
		}
	}

	ratio := float64(demand) / float64(supply)
	rounded := round2(ratio)
	analysis := RatioAnalysis{Ratio: &rounded, Supply: supply, Demand: demand}

	switch {
	case ratio > CriticalShortageThreshold:
		analysis.Tier = TierCriticalShortage
		analysis.TierDescription = "Critical shortage - price +15%"
	case ratio > ShortageThreshold:
		analysis.Tier = TierShortage
		analysis.TierDescription = "Shortage - price +8%"
	case ratio < SurplusThreshold:
		analysis.Tier = TierSurplus
		analysis.TierDescription = "Surplus - price -10%"
	default:
		analysis.Tier = TierBalanced
		analysis.TierDescription = "Balanced supply-demand - price baseline"
	}
	return analysis
}

// ValidateInputs rejects inputs the engine cannot price.
func ValidateInputs(supply, demand, basePrice int) error {
	switch {
	case basePrice <= 0:
		return ErrBasePriceNotPositive
	case supply < 0:
		return ErrNegativeSupply
	case demand < 0:
		return ErrNegativeDemand
	case supply == 0 && demand > 0:
		return ErrDemandWithoutSupply
	}
	return nil
}

// ValidateSeasonFactor checks the seasonal multiplier bounds.
func ValidateSeasonFactor(factor float64) error {
	if factor < MinSeasonFactor || factor > MaxSeasonFactor {
		return ErrSeasonFactorRange
	}
	return nil
}

func tierFor(ratio float64) (multiplier float64, reason string) {
	switch {
	case ratio > CriticalShortageThreshold:
		return CriticalShortageMultiplier, "Critical shortage (ratio > 1.30)"
	case ratio > ShortageThreshold:
		return ShortageMultiplier, "Shortage detected (ratio > 1.10)"
	case ratio < SurplusThreshold:
		return SurplusMultiplier, "Surplus available (ratio < 0.80)"
	default:
		return NormalMultiplier, "Balanced supply-demand (0.80-1.10)"
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
